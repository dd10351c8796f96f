//go:build !cgo

package cmd

import (
	"errors"
	"log/slog"

	"github.com/vsariola/drawbar/core"
)

type nullMIDIInput struct{ core.NullContext }

func NewMIDIInput(sampleRate int, logger *slog.Logger) MIDIInput {
	// with no cgo, we cannot use MIDI, so return a null input
	return nullMIDIInput{}
}

func (nullMIDIInput) TryToOpenBy(namePrefix string, takeFirst bool) error {
	if namePrefix == "" && !takeFirst {
		return nil
	}
	return errors.New("MIDI input is not available in builds without cgo")
}

func (nullMIDIInput) DeviceNames() []string { return nil }
func (nullMIDIInput) Close()                {}
