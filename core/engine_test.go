package core_test

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
)

// testFactory makes engines that render their volume parameter as a DC
// signal and count the notes playing.
type testFactory struct {
	allocated atomic.Int32
	closed    atomic.Int32
}

type testEngine struct {
	factory *testFactory
	params  []float32
	notes   int
	gain    string
	fail    bool
	record  bool
	renders []int
}

func (f *testFactory) Name() string { return "test" }

func (f *testFactory) NewEngine() (drawbar.Engine, error) {
	f.allocated.Add(1)
	return &testEngine{factory: f, params: drawbar.DefaultParams()}, nil
}

func (f *testFactory) live() int32 { return f.allocated.Load() - f.closed.Load() }

func (e *testEngine) Configure(key, value string) error {
	switch key {
	case "test.gain":
		e.gain = value
	case "test.fail":
		e.fail = value == "yes"
	default:
		return fmt.Errorf("%s: %w", key, drawbar.ErrUnknownKey)
	}
	return nil
}

func (e *testEngine) Init(sampleRate int) error {
	if e.fail {
		return errors.New("init failed")
	}
	return nil
}

func (e *testEngine) RegisterFunctions(b *midicc.Builder) error {
	for id, info := range drawbar.Params {
		if _, ok := midicc.FunctionByName(info.Name); ok {
			if err := b.Register(info.Name, drawbar.ParamFunc(e, drawbar.ParamID(id))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *testEngine) Render(in, out drawbar.AudioBuffer) {
	if e.record {
		e.renders = append(e.renders, out.Len())
	}
	v := e.params[drawbar.ParamVolume]
	for i := range out[0] {
		out[0][i], out[1][i] = v+in[0][i], v+in[1][i]
	}
	e.params[drawbar.ParamOutputLevel] = v
}

func (e *testEngine) NoteOn(m midicc.Manual, note, velocity byte) { e.notes++ }
func (e *testEngine) NoteOff(m midicc.Manual, note byte)          { e.notes-- }
func (e *testEngine) AllNotesOff()                                { e.notes = 0 }
func (e *testEngine) Params() []float32                           { return e.params }

func (e *testEngine) SetParam(id drawbar.ParamID, value float32) { e.params[id] = value }

func (e *testEngine) Close() { e.factory.closed.Add(1) }
