package delay_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar/delay"
)

func sine(n int, freq float64) []float32 {
	ret := make([]float32, n)
	for i := range ret {
		ret[i] = float32(math.Sin(2 * math.Pi * freq * float64(i)))
	}
	return ret
}

// run feeds signal through the line in blocks of blockLen, changing the
// target delay before the block starting at changeAt.
func run(t *testing.T, l *delay.Line, signal []float32, blockLen, changeAt, newDelay int) []float32 {
	out := make([]float32, len(signal))
	for start := 0; start < len(signal); start += blockLen {
		if start == changeAt {
			require.NoError(t, l.SetTargetDelay(newDelay))
		}
		end := min(start+blockLen, len(signal))
		l.Process(signal[start:end], out[start:end])
	}
	return out
}

func TestZeroDelayPassesThrough(t *testing.T) {
	l := delay.NewLine(1000, 64)
	in := sine(256, 0.01)
	out := run(t, l, in, 64, -1, 0)
	assert.Equal(t, in, out)
}

func TestFixedDelay(t *testing.T) {
	l := delay.NewLine(1000, 64)
	require.NoError(t, l.SetTargetDelay(10))
	in := sine(512, 0.01)
	out := run(t, l, in, 64, -1, 0)
	for i := range out {
		var want float32
		if i >= 10 {
			want = in[i-10]
		}
		require.Equal(t, want, out[i], "sample %d", i)
	}
}

func TestHistoryIsKeptDuringPassthrough(t *testing.T) {
	l := delay.NewLine(1000, 64)
	in := sine(512, 0.01)
	out := run(t, l, in, 64, 256, 100)
	// after the crossfade, the output is exactly the input 100 samples ago,
	// which was recorded while the line was passing samples through
	for i := 256 + delay.MaxFade; i < len(in); i++ {
		require.Equal(t, in[i-100], out[i], "sample %d", i)
	}
}

func TestCrossfadeIsBounded(t *testing.T) {
	for _, tc := range []struct {
		name              string
		from, to, blockLen int
	}{
		{"increase", 0, 300, 64},
		{"decrease", 300, 20, 64},
		{"short block", 50, 120, 8},
		{"one sample fade", 0, 40, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := delay.NewLine(1000, 64)
			require.NoError(t, l.SetTargetDelay(tc.from))
			const freq = 0.003
			in := sine(2048, freq)
			changeAt := 1024
			out := run(t, l, in, tc.blockLen, changeAt, tc.to)
			fade := min(delay.MaxFade, tc.blockLen/2)
			maxInputStep := 2 * math.Pi * freq
			// old and new taps of a unit sine differ by at most 2, spread
			// over the fade window
			bound := maxInputStep + 2/float64(fade) + 1e-5
			for i := tc.from + 1; i < len(out); i++ {
				step := math.Abs(float64(out[i] - out[i-1]))
				require.LessOrEqual(t, step, bound, "sample %d", i)
			}
			for i := changeAt + fade; i < len(out); i++ {
				require.Equal(t, in[i-tc.to], out[i], "sample %d", i)
			}
			assert.Equal(t, tc.to, l.Delay())
		})
	}
}

func TestDelayTooLongFailsFast(t *testing.T) {
	l := delay.NewLine(1000, 64)
	assert.ErrorIs(t, l.SetTargetDelay(l.MaxDelay()+1), delay.ErrDelayTooLong)
	assert.ErrorIs(t, l.SetTargetDelay(-1), delay.ErrDelayTooLong)
	assert.NoError(t, l.SetTargetDelay(l.MaxDelay()))
	assert.GreaterOrEqual(t, l.MaxDelay(), 1000)
}

func TestLongBlocksAreSplit(t *testing.T) {
	l := delay.NewLine(100, 16)
	require.NoError(t, l.SetTargetDelay(5))
	in := sine(200, 0.02)
	out := make([]float32, len(in))
	l.Process(in, out)
	for i := 5; i < len(in); i++ {
		require.Equal(t, in[i-5], out[i])
	}
}

func TestInPlaceProcessing(t *testing.T) {
	l := delay.NewLine(100, 64)
	require.NoError(t, l.SetTargetDelay(3))
	in := sine(64, 0.02)
	buf := append([]float32(nil), in...)
	l.Process(buf, buf)
	for i := 3; i < len(in); i++ {
		require.Equal(t, in[i-3], buf[i])
	}
}

func TestProcessDoesNotAllocate(t *testing.T) {
	l := delay.NewLine(48000, 256)
	in := sine(256, 0.01)
	out := make([]float32, 256)
	d := 0
	allocs := testing.AllocsPerRun(50, func() {
		d = (d + 37) % 1000
		l.SetTargetDelay(d)
		l.Process(in, out)
	})
	assert.Zero(t, allocs)
}

func TestCompensatorAlignsToSlowestPort(t *testing.T) {
	c := delay.NewCompensator(2, 1000, 64)
	require.NoError(t, c.SetLatency(0, 100))
	assert.Equal(t, 0, c.Line(0).Target())
	assert.Equal(t, 100, c.Line(1).Target())
	require.NoError(t, c.SetLatency(1, 40))
	assert.Equal(t, 60, c.Line(1).Target())
	assert.ErrorIs(t, c.SetLatency(1, -5000), delay.ErrDelayTooLong)
	assert.Equal(t, 40, c.Latency(1), "failed update is rolled back")
	assert.Equal(t, 60, c.Line(1).Target())
}
