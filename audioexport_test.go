package drawbar_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
)

func TestWavHeader(t *testing.T) {
	buf := drawbar.AudioBuffer{{0.5, -0.5, 1}, {0, 0.25, -1}}
	for _, pcm16 := range []bool{true, false} {
		data, err := drawbar.Wav(buf, 48000, pcm16)
		require.NoError(t, err)
		assert.Equal(t, "RIFF", string(data[0:4]))
		assert.Equal(t, uint32(len(data)-8), binary.LittleEndian.Uint32(data[4:8]))
		assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(data[24:28]))
		bytesPerSample := 4
		if pcm16 {
			bytesPerSample = 2
		}
		assert.Equal(t, uint32(6*bytesPerSample), binary.LittleEndian.Uint32(data[len(data)-6*bytesPerSample-4:]))
	}
}

func TestRawInterleaves(t *testing.T) {
	data, err := drawbar.Raw(drawbar.AudioBuffer{{1, 0}, {-1, 0.5}}, true)
	require.NoError(t, err)
	require.Len(t, data, 8)
	assert.Equal(t, int16(32767), int16(binary.LittleEndian.Uint16(data[0:])))
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(data[2:])))
	assert.Equal(t, int16(16383), int16(binary.LittleEndian.Uint16(data[6:])))
}
