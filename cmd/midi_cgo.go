//go:build cgo

package cmd

import (
	"log/slog"

	"github.com/vsariola/drawbar/gomidi"
)

func NewMIDIInput(sampleRate int, logger *slog.Logger) MIDIInput {
	return gomidi.NewContext(sampleRate, logger)
}
