package drawbar

import (
	"errors"

	"github.com/vsariola/drawbar/midicc"
)

type (
	// AudioBuffer is a block of stereo audio, one slice per channel. Both
	// slices should have the same length.
	AudioBuffer [2][]float32

	// Engine is the sound generator and effects chain driven by the core. All
	// methods except Configure, Init, RegisterFunctions and Close are called
	// from the audio thread and must not block nor allocate.
	//
	// An Engine is configured (Configure, SetParam) and initialized (Init)
	// before it is ever rendered. Close releases everything the engine owns;
	// it is never called on the audio thread.
	Engine interface {
		// Configure applies one engine specific configuration assignment. It
		// returns an error wrapping ErrUnknownKey if the key is not recognized
		// by the engine.
		Configure(key, value string) error
		Init(sampleRate int) error
		// RegisterFunctions registers the functions that MIDI controllers can
		// be bound to.
		RegisterFunctions(b *midicc.Builder) error
		Render(in, out AudioBuffer)
		NoteOn(m midicc.Manual, note, velocity byte)
		NoteOff(m midicc.Manual, note byte)
		AllNotesOff()
		// Params returns the parameter values of the engine, indexed by
		// ParamID. The engine may change output parameters (e.g. meters)
		// during Render.
		Params() []float32
		SetParam(id ParamID, value float32)
		Close()
	}

	// EngineFactory allocates new engines. It is the only way the core gets
	// hold of engines.
	EngineFactory interface {
		Name() string
		NewEngine() (Engine, error)
	}
)

// ErrUnknownKey is returned by configuration functions when the key of an
// assignment is not known.
var ErrUnknownKey = errors.New("unknown configuration key")

// Len returns the number of frames in the buffer.
func (b AudioBuffer) Len() int { return min(len(b[0]), len(b[1])) }

// Slice returns the frames [start, end) of the buffer.
func (b AudioBuffer) Slice(start, end int) AudioBuffer {
	return AudioBuffer{b[0][start:end], b[1][start:end]}
}

// Clear zeroes the buffer.
func (b AudioBuffer) Clear() {
	clear(b[0])
	clear(b[1])
}

// MakeAudioBuffer allocates a buffer of length frames.
func MakeAudioBuffer(length int) AudioBuffer {
	return AudioBuffer{make([]float32, length), make([]float32, length)}
}

// ParamFunc returns a controller function that sets parameter id of engine e,
// scaling the controller range 0..127 to the range of the parameter.
func ParamFunc(e Engine, id ParamID) midicc.Func {
	info := Params[id]
	return func(value uint8) {
		e.SetParam(id, info.FromController(value))
	}
}
