package core

import (
	"slices"
	"strings"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
)

// State is the running state: the assignments that, applied on top of the
// factory configuration, reproduce the live instance. Each key appears at
// most once, except program.read which lists every loaded program table.
// Keys are kept in the order of their last assignment.
type State struct {
	lines []drawbar.ConfigLine
}

// Set assigns the key, moving it last. Assigning midi.controller.reset
// removes all earlier controller assignments, which it overrides.
func (s *State) Set(key, value string) {
	switch {
	case key == drawbar.ProgramKey:
		s.lines = slices.DeleteFunc(s.lines, func(l drawbar.ConfigLine) bool { return l.Key == key && l.Value == value })
	case key == midicc.ResetKey:
		s.lines = slices.DeleteFunc(s.lines, func(l drawbar.ConfigLine) bool { return strings.HasPrefix(l.Key, midicc.ControllerPrefix) })
	default:
		s.Delete(key)
	}
	s.lines = append(s.lines, drawbar.ConfigLine{Key: key, Value: value})
}

// Append assigns every line in order.
func (s *State) Append(lines ...drawbar.ConfigLine) {
	for _, l := range lines {
		s.Set(l.Key, l.Value)
	}
}

func (s *State) Delete(key string) {
	s.lines = slices.DeleteFunc(s.lines, func(l drawbar.ConfigLine) bool { return l.Key == key })
}

// Get returns the value of the key; for program.read, the last one.
func (s *State) Get(key string) (string, bool) {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].Key == key {
			return s.lines[i].Value, true
		}
	}
	return "", false
}

// Lines returns a copy of the assignments, in order.
func (s *State) Lines() []drawbar.ConfigLine { return slices.Clone(s.lines) }

func (s *State) Len() int { return len(s.lines) }

func (s *State) Clear() { s.lines = s.lines[:0] }

// Filter keeps only the assignments for which keep returns true.
func (s *State) Filter(keep func(drawbar.ConfigLine) bool) (removed int) {
	n := len(s.lines)
	s.lines = slices.DeleteFunc(s.lines, func(l drawbar.ConfigLine) bool { return !keep(l) })
	return n - len(s.lines)
}
