package tonewheel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWheelFoldback(t *testing.T) {
	for _, c := range []struct{ note, wheel int }{
		{24, 0},
		{12, 0},
		{0, 0},
		{69, 45},
		{102, numWheels - 1},
		{103, 103 - 12 - lowWheel},
		{127 + 36, 163 - 72 - lowWheel},
	} {
		assert.Equal(t, c.wheel, wheelOf(c.note), "note %d", c.note)
	}
}

func TestTuning(t *testing.T) {
	e := New()
	assert.NoError(t, e.Init(44100))
	assert.Equal(t, phaseInc(440, 44100), e.incs[69-lowWheel])
	assert.Equal(t, uint32(0), phaseInc(30000, 44100), "wheels above Nyquist are silent")
}
