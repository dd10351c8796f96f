package oto

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vsariola/drawbar"
)

func TestSourceInterleaves(t *testing.T) {
	calls := 0
	s := &source{buf: drawbar.MakeAudioBuffer(blockSize), render: func(buf drawbar.AudioBuffer) {
		calls++
		for i := range buf.Len() {
			buf[0][i], buf[1][i] = 0.5, -2
		}
	}}
	p := make([]byte, (blockSize+10)*bytesPerFrame+3)
	n, err := s.Read(p)
	assert.NoError(t, err)
	assert.Equal(t, (blockSize+10)*bytesPerFrame, n)
	assert.Equal(t, 2, calls)
	sample := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:])) }
	assert.Equal(t, float32(0.5), sample(0))
	assert.Equal(t, float32(-1), sample(1), "output is clipped")
	assert.Equal(t, float32(0.5), sample(2*(blockSize+9)))
}
