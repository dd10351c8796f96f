package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/ring"
)

func newTestProcessor(t *testing.T) (*core.Processor, *core.Broker, *testEngine) {
	t.Helper()
	inst, diags, err := core.NewInstance(&testFactory{}, core.InstanceConfig{SampleRate: 48000}, nil)
	require.NoError(t, err)
	require.Empty(t, diags)
	b := core.NewBroker()
	p := core.NewProcessor(b, core.NewLifecycle(inst), core.ProcessorConfig{MaxBlock: 32, MaxDelay: 1000})
	t.Cleanup(inst.Close)
	return p, b, inst.Engine.(*testEngine)
}

func TestProcessorSplitsBlocks(t *testing.T) {
	p, _, e := newTestProcessor(t)
	e.record = true
	var q core.EventQueue
	q.Add(core.MakeMIDIEvent(10, []byte{0x90, 60, 100}))
	q.Add(core.MakeMIDIEvent(10, []byte{0x90, 64, 100}))
	q.Add(core.MakeMIDIEvent(50, []byte{0x80, 60, 0}))
	out := drawbar.MakeAudioBuffer(100)
	p.Process(drawbar.AudioBuffer{}, out, &q)
	assert.Equal(t, []int{10, 32, 8, 32, 18}, e.renders)
	assert.Equal(t, 1, e.notes)
	assert.Equal(t, 0, q.Len())
	for _, v := range out[0] {
		require.Equal(t, e.params[drawbar.ParamVolume], v)
	}
}

func TestProcessorChannels(t *testing.T) {
	p, _, e := newTestProcessor(t)
	var q core.EventQueue
	q.Add(core.MakeMIDIEvent(0, []byte{0x90, 60, 100})) // upper
	q.Add(core.MakeMIDIEvent(0, []byte{0x91, 48, 100})) // lower
	q.Add(core.MakeMIDIEvent(0, []byte{0x92, 36, 100})) // pedals
	q.Add(core.MakeMIDIEvent(0, []byte{0x95, 36, 100})) // unassigned
	q.Add(core.MakeMIDIEvent(0, []byte{0x90, 62, 0}))   // note on with zero velocity ends a note
	p.Process(drawbar.AudioBuffer{}, drawbar.MakeAudioBuffer(16), &q)
	assert.Equal(t, 2, e.notes)
	q.Add(core.MakeMIDIEvent(0, []byte{0xB1, 123, 0}))
	p.Process(drawbar.AudioBuffer{}, drawbar.MakeAudioBuffer(16), &q)
	assert.Equal(t, 0, e.notes, "all notes off should release every manual")
}

func TestProcessorControlRings(t *testing.T) {
	p, b, e := newTestProcessor(t)
	require.True(t, b.ParamsToAudio.TryWriteValue(ring.Value{ID: uint32(drawbar.ParamSwell), Value: 0.5}))
	require.True(t, b.UIParamsToAudio.TryWriteValue(ring.Value{ID: uint32(drawbar.ParamReverbMix), Value: 2}))
	require.True(t, b.UIParamsToAudio.TryWriteValue(ring.Value{ID: uint32(drawbar.ParamOutputLevel), Value: 1}))
	require.True(t, b.UIParamsToAudio.TryWriteValue(ring.Value{ID: 1000, Value: 1}))
	p.Process(drawbar.AudioBuffer{}, drawbar.MakeAudioBuffer(16), core.NullContext{})
	assert.Equal(t, float32(0.5), e.params[drawbar.ParamSwell])
	assert.Equal(t, float32(1), e.params[drawbar.ParamReverbMix])

	// both observers hear about the changes
	for _, r := range []*ring.Ring{b.ParamsFromAudio, b.UIParamsFromAudio} {
		got := map[uint32]float32{}
		for v, ok := r.ReadValue(); ok; v, ok = r.ReadValue() {
			got[v.ID] = v.Value
		}
		assert.Equal(t, map[uint32]float32{
			uint32(drawbar.ParamSwell):       0.5,
			uint32(drawbar.ParamReverbMix):   1,
			uint32(drawbar.ParamOutputLevel): e.params[drawbar.ParamVolume],
		}, got)
	}
}

func TestProcessorDelaysInput(t *testing.T) {
	p, b, e := newTestProcessor(t)
	e.params[drawbar.ParamVolume] = 0
	in := drawbar.MakeAudioBuffer(64)
	for i := range in[0] {
		in[0][i], in[1][i] = float32(i+1), float32(i+1)
	}
	// input 1 arrives 5 frames late, so input 0 is held back to match
	require.True(t, b.ToAudio.TryWriteRecord(uint32(core.AtomLatency), []byte{1, 5, 0, 0, 0}))
	out := drawbar.MakeAudioBuffer(64)
	p.Process(in, out, core.NullContext{})
	p.Process(in, out, core.NullContext{})
	assert.Equal(t, in[1], out[1])
	assert.Equal(t, float32(64-5+1), out[0][0])
	assert.Equal(t, in[0][:59], out[0][5:])
}

func TestProcessorDoesNotAllocate(t *testing.T) {
	p, b, _ := newTestProcessor(t)
	var q core.EventQueue
	var ctx core.ProcessContext = &q
	in := drawbar.MakeAudioBuffer(256)
	out := drawbar.MakeAudioBuffer(256)
	learn := []byte{0, 0}
	events := []core.MIDIEvent{
		core.MakeMIDIEvent(3, []byte{0x90, 60, 100}),
		core.MakeMIDIEvent(40, []byte{0xB0, 20, 64}),
		core.MakeMIDIEvent(41, []byte{0xB0, 70, 64}),
		core.MakeMIDIEvent(100, []byte{0xC0, 1}),
		core.MakeMIDIEvent(200, []byte{0x80, 60, 0}),
	}
	value := float32(0)
	allocs := testing.AllocsPerRun(100, func() {
		value = 1 - value
		b.ParamsToAudio.TryWriteValue(ring.Value{ID: uint32(drawbar.ParamVolume), Value: value})
		b.ToAudio.TryWriteRecord(uint32(core.AtomArmLearn), learn)
		for _, ev := range events {
			q.Add(ev)
		}
		p.Process(in, out, ctx)
	})
	assert.Equal(t, float64(0), allocs)
}
