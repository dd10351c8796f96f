package tonewheel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
	"github.com/vsariola/drawbar/tonewheel"
)

func newEngine(t *testing.T) (*tonewheel.Engine, *midicc.Registry) {
	t.Helper()
	e := tonewheel.New()
	b := midicc.NewBuilder()
	b.OnPanic(e.AllNotesOff)
	require.NoError(t, e.RegisterFunctions(b))
	require.NoError(t, e.Init(48000))
	t.Cleanup(e.Close)
	return e, b.Build()
}

func render(e *tonewheel.Engine, frames int) drawbar.AudioBuffer {
	out := drawbar.MakeAudioBuffer(frames)
	e.Render(drawbar.AudioBuffer{}, out)
	return out
}

func peak(b drawbar.AudioBuffer) float32 {
	var p float32
	for _, ch := range b {
		for _, v := range ch {
			p = max(p, v, -v)
		}
	}
	return p
}

func TestConfigure(t *testing.T) {
	e := tonewheel.New()
	require.NoError(t, e.Configure(tonewheel.TuningKey, "442"))
	require.NoError(t, e.Configure(tonewheel.RotaryFastKey, "7.2"))
	assert.Error(t, e.Configure(tonewheel.TuningKey, "1000"))
	assert.Error(t, e.Configure(tonewheel.RotarySlowKey, "slow"))
	assert.ErrorIs(t, e.Configure("tonewheel.nonsense", "1"), drawbar.ErrUnknownKey)
	assert.Error(t, e.Init(4000))
	assert.Equal(t, "tonewheel", tonewheel.Factory{}.Name())
}

func TestRegistersEveryFunction(t *testing.T) {
	_, r := newEngine(t)
	for fn := range midicc.Functions {
		assert.True(t, r.Registered(fn), fn.String())
	}
}

func TestSilentWithoutNotes(t *testing.T) {
	e, _ := newEngine(t)
	out := render(e, 1000)
	assert.Equal(t, float32(0), peak(out))
	assert.Equal(t, float32(0), e.Params()[drawbar.ParamOutputLevel])
}

func TestNotesSound(t *testing.T) {
	e, _ := newEngine(t)
	e.NoteOn(midicc.Upper, 60, 100)
	out := render(e, 1000)
	assert.Greater(t, peak(out), float32(0.01))
	assert.Less(t, peak(out), float32(1))
	assert.Greater(t, e.Params()[drawbar.ParamOutputLevel], float32(0))

	// with every drawbar in, the upper manual is silent
	for i := range 9 {
		e.SetParam(drawbar.ParamUpperDrawbar16+drawbar.ParamID(i), 0)
	}
	e.SetParam(drawbar.ParamReverbMix, 0)
	render(e, 4800)
	assert.Less(t, peak(render(e, 1000)), float32(1e-6))
}

func TestAllNotesOff(t *testing.T) {
	e, r := newEngine(t)
	e.SetParam(drawbar.ParamReverbMix, 0)
	e.NoteOn(midicc.Upper, 60, 100)
	e.NoteOn(midicc.Lower, 48, 100)
	e.NoteOn(midicc.Pedals, 36, 100)
	require.Greater(t, peak(render(e, 500)), float32(0))
	r.Dispatch(midicc.Lower, midicc.ControlAllNotesOff, 0)
	render(e, 4800)
	assert.Less(t, peak(render(e, 1000)), float32(1e-6))
}

func TestRotaryControllers(t *testing.T) {
	e, r := newEngine(t)
	speed := func() float32 { return e.Params()[drawbar.ParamRotarySpeed] }
	toggle, _ := midicc.FunctionByName("rotary.speed-toggle")
	sel, _ := midicc.FunctionByName("rotary.speed-select")
	require.NoError(t, r.Bind(midicc.Upper, 64, toggle, false))
	require.NoError(t, r.Bind(midicc.Upper, 1, sel, false))

	r.Dispatch(midicc.Upper, 64, 127)
	assert.Equal(t, float32(drawbar.RotaryFast), speed())
	r.Dispatch(midicc.Upper, 64, 0)
	assert.Equal(t, float32(drawbar.RotaryFast), speed(), "releasing the pedal keeps the speed")
	r.Dispatch(midicc.Upper, 64, 127)
	assert.Equal(t, float32(drawbar.RotarySlow), speed())

	r.Dispatch(midicc.Upper, 1, 100)
	assert.Equal(t, float32(drawbar.RotaryFast), speed())
	r.Dispatch(midicc.Upper, 1, 10)
	assert.Equal(t, float32(drawbar.RotarySlow), speed())
}

func TestVibratoRouting(t *testing.T) {
	e, r := newEngine(t)
	routing, _ := midicc.FunctionByName("vibrato.routing")
	require.NoError(t, r.Bind(midicc.Upper, 30, routing, false))
	for _, c := range []struct {
		value        uint8
		upper, lower float32
	}{{0, 0, 0}, {40, 0, 1}, {70, 1, 0}, {127, 1, 1}} {
		r.Dispatch(midicc.Upper, 30, c.value)
		assert.Equal(t, c.upper, e.Params()[drawbar.ParamVibratoUpper], "value %d", c.value)
		assert.Equal(t, c.lower, e.Params()[drawbar.ParamVibratoLower], "value %d", c.value)
	}
}

func TestInputPassesThrough(t *testing.T) {
	e, _ := newEngine(t)
	e.SetParam(drawbar.ParamReverbMix, 0)
	in := drawbar.MakeAudioBuffer(600)
	for i := range in[0] {
		in[0][i], in[1][i] = 0.5, 0.5
	}
	out := drawbar.MakeAudioBuffer(600)
	e.Render(in, out)
	assert.Greater(t, peak(out), float32(0.1))
}

func TestRenderDoesNotAllocate(t *testing.T) {
	e, _ := newEngine(t)
	for _, p := range []drawbar.ParamID{drawbar.ParamPercussionEnable, drawbar.ParamOverdriveEnable, drawbar.ParamVibratoUpper} {
		e.SetParam(p, 1)
	}
	e.SetParam(drawbar.ParamVibratoKnob, 3)
	in := drawbar.MakeAudioBuffer(700)
	out := drawbar.MakeAudioBuffer(700)
	note := byte(40)
	allocs := testing.AllocsPerRun(50, func() {
		e.NoteOn(midicc.Upper, note, 100)
		e.NoteOn(midicc.Pedals, note-12, 100)
		e.Render(in, out)
		e.NoteOff(midicc.Upper, note)
		note++
	})
	assert.Equal(t, float64(0), allocs)
}
