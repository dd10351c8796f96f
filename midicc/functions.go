// Package midicc routes MIDI control change messages to named engine
// functions. Functions are registered once, through a Builder, and bound to
// controllers per manual. Bindings can be changed while playing, either
// explicitly or by arming "learn" for a function and moving a controller.
package midicc

import "fmt"

type (
	// Manual is the logical role of a MIDI channel: which keyboard of the
	// organ it plays.
	Manual uint8

	// FunctionID identifies a controller function. IDs are stable indices to
	// the name table and are small enough to be sent over the rings.
	FunctionID uint8

	// Func is the callback of a function. value is the controller value in
	// the range 0..127, already inverted if the binding is inverted. Funcs
	// are called on the audio thread and must not block nor allocate.
	Func func(value uint8)
)

const (
	Upper Manual = iota
	Lower
	Pedals
	NumManuals
)

var manualNames = [NumManuals]string{"upper", "lower", "pedals"}

var functionNames = [...]string{
	"upper.drawbar16", "upper.drawbar513", "upper.drawbar8", "upper.drawbar4", "upper.drawbar223",
	"upper.drawbar2", "upper.drawbar135", "upper.drawbar113", "upper.drawbar1",
	"lower.drawbar16", "lower.drawbar513", "lower.drawbar8", "lower.drawbar4", "lower.drawbar223",
	"lower.drawbar2", "lower.drawbar135", "lower.drawbar113", "lower.drawbar1",
	"pedal.drawbar16", "pedal.drawbar8",
	"swellpedal1",
	"rotary.speed-preset", "rotary.speed-toggle", "rotary.speed-select",
	"vibrato.knob", "vibrato.routing", "vibrato.upper", "vibrato.lower",
	"percussion.enable", "percussion.volume", "percussion.decay", "percussion.harmonic",
	"overdrive.enable", "overdrive.character",
	"reverb.mix",
	"volume",
}

// NumFunctions is the number of functions in the name table.
const NumFunctions = len(functionNames)

var functionIndex = map[string]FunctionID{}

func init() {
	for i, n := range functionNames {
		functionIndex[n] = FunctionID(i)
	}
}

// FunctionByName finds a function by name.
func FunctionByName(name string) (FunctionID, bool) {
	id, ok := functionIndex[name]
	return id, ok
}

// Functions iterates over all function IDs, in order.
func Functions(yield func(FunctionID) bool) {
	for i := range NumFunctions {
		if !yield(FunctionID(i)) {
			return
		}
	}
}

func (f FunctionID) Valid() bool { return int(f) < NumFunctions }

func (f FunctionID) String() string {
	if !f.Valid() {
		return fmt.Sprintf("function(%d)", int(f))
	}
	return functionNames[f]
}

func (m Manual) Valid() bool { return m < NumManuals }

func (m Manual) String() string {
	if !m.Valid() {
		return fmt.Sprintf("manual(%d)", int(m))
	}
	return manualNames[m]
}

// ParseManual parses the name of a manual.
func ParseManual(s string) (Manual, bool) {
	for i, n := range manualNames {
		if n == s {
			return Manual(i), true
		}
	}
	return 0, false
}
