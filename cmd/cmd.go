// Package cmd holds what the drawbar binaries share.
package cmd

import (
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/tonewheel"
)

// MIDIInput is a live MIDI input port feeding the processor.
type MIDIInput interface {
	core.ProcessContext
	// TryToOpenBy opens the first port whose name starts with namePrefix,
	// or the first port if takeFirst is set.
	TryToOpenBy(namePrefix string, takeFirst bool) error
	DeviceNames() []string
	Close()
}

// Factory is the engine the binaries play.
var Factory drawbar.EngineFactory = tonewheel.Factory{}
