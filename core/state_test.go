package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/ring"
)

func TestStateSet(t *testing.T) {
	var s core.State
	s.Set("volume", "0.5")
	s.Set("midi.controller.upper.20", "volume")
	s.Set("program.read", "a.pgm")
	s.Set("volume", "0.25")
	s.Set("program.read", "b.pgm")
	s.Set("program.read", "a.pgm")
	assert.Equal(t, []drawbar.ConfigLine{
		{Key: "midi.controller.upper.20", Value: "volume"},
		{Key: "volume", Value: "0.25"},
		{Key: "program.read", Value: "b.pgm"},
		{Key: "program.read", Value: "a.pgm"},
	}, s.Lines())
	v, ok := s.Get("program.read")
	assert.True(t, ok)
	assert.Equal(t, "a.pgm", v)

	s.Set("midi.controller.reset", "yes")
	assert.Equal(t, []drawbar.ConfigLine{
		{Key: "volume", Value: "0.25"},
		{Key: "program.read", Value: "b.pgm"},
		{Key: "program.read", Value: "a.pgm"},
		{Key: "midi.controller.reset", Value: "yes"},
	}, s.Lines())
}

func TestStateFilter(t *testing.T) {
	var s core.State
	s.Append(
		drawbar.ConfigLine{Key: "volume", Value: "0.5"},
		drawbar.ConfigLine{Key: "swell", Value: "1"},
		drawbar.ConfigLine{Key: "reverb.mix", Value: "0.1"},
	)
	removed := s.Filter(func(l drawbar.ConfigLine) bool { return l.Key != "swell" })
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, s.Len())
	lines := s.Lines()
	lines[0].Value = "changed"
	v, _ := s.Get("volume")
	assert.Equal(t, "0.5", v, "Lines should return a copy")
	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("volume")
	assert.False(t, ok)
}

func TestMirrorRetriesDroppedChanges(t *testing.T) {
	r := ring.New(ring.ValueSize)
	m := core.NewMirror([]float32{0, 0})
	current := []float32{1, 2}
	assert.Equal(t, 1, m.Publish(current, r), "only one value fits")
	v, ok := r.ReadValue()
	assert.True(t, ok)
	assert.Equal(t, ring.Value{ID: 0, Value: 1}, v)
	assert.Equal(t, []float32{1, 0}, m.Values())
	assert.Equal(t, 0, m.Publish(current, r))
	v, _ = r.ReadValue()
	assert.Equal(t, ring.Value{ID: 1, Value: 2}, v)
	assert.Equal(t, 0, m.Publish(current, r))
	_, ok = r.ReadValue()
	assert.False(t, ok, "nothing changed since the last publish")
}
