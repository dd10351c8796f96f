package gomidi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/gomidi"
	"gitlab.com/gomidi/midi/v2"
)

func TestInputTiming(t *testing.T) {
	in := gomidi.NewInput(48000)
	in.HandleMessage(midi.NoteOn(0, 60, 100), 0)
	in.HandleMessage(midi.NoteOff(0, 60), 10) // 480 frames later

	ev, ok := in.NextEvent(0)
	require.True(t, ok)
	assert.Equal(t, 0, ev.Frame)
	assert.Equal(t, []byte{0x90, 60, 100}, ev.Data[:ev.Len])

	// the second event is past the end of the block and gets carried over
	ev, ok = in.NextEvent(0)
	require.True(t, ok)
	assert.Equal(t, 480, ev.Frame)
	in.FinishBlock(256)

	// the clock is pulled a fifth of the way towards the pending event
	ev, ok = in.NextEvent(0)
	require.True(t, ok)
	assert.Equal(t, 180, ev.Frame)
	assert.Equal(t, byte(0x80), ev.Data[0])

	_, ok = in.NextEvent(180)
	assert.False(t, ok)
	in.FinishBlock(256)
	_, ok = in.NextEvent(0)
	assert.False(t, ok, "handled events are not repeated")
}

func TestInputIgnoresSysEx(t *testing.T) {
	in := gomidi.NewInput(44100)
	in.HandleMessage(midi.SysEx([]byte{1, 2, 3}), 0)
	in.HandleMessage(midi.Message{}, 0)
	_, ok := in.NextEvent(0)
	assert.False(t, ok)
}

func TestInputDropsWhenFull(t *testing.T) {
	in := gomidi.NewInput(44100)
	for range 5000 {
		in.HandleMessage(midi.ControlChange(1, 7, 100), 0)
	}
	assert.Greater(t, in.Dropped(), uint64(0))
	var ctx core.ProcessContext = in
	n := 0
	for _, ok := ctx.NextEvent(0); ok; _, ok = ctx.NextEvent(0) {
		n++
	}
	assert.Equal(t, 5000-int(in.Dropped()), n)
}
