package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
)

type (
	// Instance is a configured engine together with everything the audio
	// thread needs to drive it: controller bindings, compiled programs and
	// the mapping of MIDI channels to manuals.
	Instance struct {
		ID       uuid.UUID
		Engine   drawbar.Engine
		Registry *midicc.Registry
		Programs drawbar.ProgramTable

		programs map[int][]paramValue
		channels [16]int8 // manual played by each MIDI channel, -1 for none
	}

	// InstanceConfig tells how instances are built.
	InstanceConfig struct {
		SampleRate int
		// NoDefaults leaves out the factory controller assignment.
		NoDefaults bool
	}

	paramValue struct {
		id    drawbar.ParamID
		value float32
	}
)

// channel assignment keys, e.g. midi.upper.channel=1; channels are numbered
// from 1, and 0 disables the manual
const (
	channelKeyPrefix = "midi."
	channelKeySuffix = ".channel"
)

// NewInstance allocates an engine and configures it: factory controller
// assignment first, then lines in order, then initialization. Erroneous
// assignments are skipped and returned as diagnostics; err is non-nil only if
// the engine could not be allocated or initialized, in which case nothing is
// left allocated.
func NewInstance(f drawbar.EngineFactory, cfg InstanceConfig, lines []drawbar.ConfigLine) (*Instance, drawbar.ConfigErrors, error) {
	engine, err := f.NewEngine()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot allocate %s engine: %w", f.Name(), err)
	}
	var diags drawbar.ConfigErrors
	b := midicc.NewBuilder()
	b.OnPanic(engine.AllNotesOff)
	if err := engine.RegisterFunctions(b); err != nil {
		// a function registered twice is not fatal: the first registration wins
		diags = append(diags, drawbar.ConfigError{Err: err})
	}
	inst := &Instance{
		ID:       uuid.New(),
		Engine:   engine,
		Registry: b.Build(),
		programs: map[int][]paramValue{},
	}
	for i := range inst.channels {
		inst.channels[i] = -1
	}
	for m := range midicc.NumManuals {
		inst.channels[m] = int8(m)
	}
	if !cfg.NoDefaults {
		inst.Registry.LoadDefaults()
	}
	for _, l := range lines {
		if err := inst.Configure(l.Key, l.Value); err != nil {
			var errs drawbar.ConfigErrors
			if errors.As(err, &errs) {
				diags = append(diags, errs...)
				continue
			}
			diags = append(diags, l.Errorf(err))
		}
	}
	if err := engine.Init(cfg.SampleRate); err != nil {
		engine.Close()
		return nil, diags, fmt.Errorf("cannot initialize %s engine: %w", f.Name(), err)
	}
	diags = append(diags, inst.compilePrograms()...)
	return inst, diags, nil
}

// Configure applies one assignment. Controller, channel and program keys are
// handled here, parameter names set the parameter, and the rest is passed on
// to the engine.
func (inst *Instance) Configure(key, value string) error {
	if strings.HasPrefix(key, midicc.ControllerPrefix) {
		return inst.Registry.Configure(key, value)
	}
	if m, ok := parseChannelKey(key); ok {
		return inst.setChannel(m, value)
	}
	if key == drawbar.ProgramKey {
		table, errs, err := drawbar.LoadProgramFile(value)
		if err != nil {
			return err
		}
		inst.Programs.Merge(table)
		return errs.Err()
	}
	if id, ok := drawbar.ParamByName(key); ok {
		info := drawbar.Params[id]
		if info.Output {
			return fmt.Errorf("%s is an output parameter", key)
		}
		v, err := info.Parse(value)
		if err != nil {
			return err
		}
		inst.Engine.SetParam(id, v)
		return nil
	}
	return inst.Engine.Configure(key, value)
}

func parseChannelKey(key string) (midicc.Manual, bool) {
	name, ok := strings.CutPrefix(key, channelKeyPrefix)
	if !ok {
		return 0, false
	}
	name, ok = strings.CutSuffix(name, channelKeySuffix)
	if !ok {
		return 0, false
	}
	return midicc.ParseManual(name)
}

func channelKey(m midicc.Manual) string { return channelKeyPrefix + m.String() + channelKeySuffix }

func (inst *Instance) setChannel(m midicc.Manual, value string) error {
	ch, err := strconv.Atoi(value)
	if err != nil || ch < 0 || ch > 16 {
		return fmt.Errorf("invalid MIDI channel %q, expected 1-16 or 0 for none", value)
	}
	for i, cur := range inst.channels {
		if cur == int8(m) {
			inst.channels[i] = -1
		}
	}
	if ch > 0 {
		inst.channels[ch-1] = int8(m)
	}
	return nil
}

// Channel returns the MIDI channel (1-16) of the manual, or 0 if it has
// none.
func (inst *Instance) Channel(m midicc.Manual) int {
	for i, cur := range inst.channels {
		if cur == int8(m) {
			return i + 1
		}
	}
	return 0
}

// manual returns the manual played by a MIDI channel (0-15).
func (inst *Instance) manual(ch uint8) (midicc.Manual, bool) {
	if ch > 15 || inst.channels[ch] < 0 {
		return 0, false
	}
	return midicc.Manual(inst.channels[ch]), true
}

func (inst *Instance) compilePrograms() (diags drawbar.ConfigErrors) {
	for _, p := range inst.Programs.Programs {
		var values []paramValue
		for _, s := range p.Settings {
			id, ok := drawbar.ParamByName(s.Key)
			if !ok || drawbar.Params[id].Output {
				diags = append(diags, s.Errorf(fmt.Errorf("program %d: %w", p.Index, drawbar.ErrUnknownKey)))
				continue
			}
			v, err := drawbar.Params[id].Parse(s.Value)
			if err != nil {
				diags = append(diags, s.Errorf(err))
				continue
			}
			values = append(values, paramValue{id: id, value: v})
		}
		inst.programs[p.Index] = values
	}
	return diags
}

// recallProgram applies a program. Called on the audio thread.
func (inst *Instance) recallProgram(index int) bool {
	values, ok := inst.programs[index]
	if !ok {
		return false
	}
	for _, v := range values {
		inst.Engine.SetParam(v.id, v.value)
	}
	return true
}

// Export iterates over the assignments that reproduce the instance's
// parameters, bindings and channels, starting from empty controller tables.
// It must not be used while the instance is live.
func (inst *Instance) Export(yield func(key, value string) bool) {
	params := inst.Engine.Params()
	for id, info := range drawbar.Params {
		if info.Output || id >= len(params) {
			continue
		}
		if !yield(info.Name, info.Format(params[id])) {
			return
		}
	}
	for m := range midicc.NumManuals {
		if !yield(channelKey(m), strconv.Itoa(inst.Channel(m))) {
			return
		}
	}
	for k, v := range inst.Registry.ConfigLines {
		if !yield(k, v) {
			return
		}
	}
}

// Close frees the engine. Never called on the audio thread.
func (inst *Instance) Close() {
	inst.Engine.Close()
}
