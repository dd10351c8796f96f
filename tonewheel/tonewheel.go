// Package tonewheel is a small additive organ engine: a bank of sine
// tonewheels mixed through the drawbars, with percussion, a scanner-style
// vibrato, overdrive, a rotary speaker and reverb.
package tonewheel

import (
	"fmt"
	"math"
	"strconv"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
)

type (
	// Factory makes tonewheel engines.
	Factory struct{}

	// Engine implements drawbar.Engine. All methods except Configure, Init
	// and Close may be called on the audio thread and never allocate.
	Engine struct {
		params     []float32
		sampleRate float64
		tuning     float64
		rotarySlow float64
		rotaryFast float64

		keys     [midicc.NumManuals][128]bool
		keysDown [midicc.NumManuals]int
		dirty    bool

		phases [numWheels]uint32
		incs   [numWheels]uint32
		gains  [numBuses][numWheels]float32
		perc   [numWheels]float32

		percEnv   float32
		percCoefs [2]float32

		vibrato vibrato
		rotary  rotary
		reverb  reverb

		buses   [numBuses][chunkSize]float32
		percBus [chunkSize]float32
		wheel   [chunkSize]float32
		tmp     [chunkSize]float32
		env     [chunkSize]float32
	}
)

const (
	chunkSize = 256

	// the wheels run from C1 to F#7; notes outside are folded back by octaves
	lowWheel  = 24
	highWheel = 102
	numWheels = highWheel - lowWheel + 1

	keyGain = 0.08
)

const (
	busDry = iota
	busVibrato
	numBuses
)

// Configuration keys of the engine.
const (
	TuningKey     = "tonewheel.tuning"
	RotarySlowKey = "tonewheel.rotary.slow"
	RotaryFastKey = "tonewheel.rotary.fast"
)

// semitone offsets of the drawbar footages from the played key
var footageOffsets = [9]int{-12, 7, 0, 12, 19, 24, 28, 31, 36}

func (Factory) Name() string { return "tonewheel" }

func (Factory) NewEngine() (drawbar.Engine, error) { return New(), nil }

// New returns an engine with default parameters, tuned to A4 = 440 Hz.
func New() *Engine {
	return &Engine{
		params:     drawbar.DefaultParams(),
		tuning:     440,
		rotarySlow: 0.8,
		rotaryFast: 6.8,
		dirty:      true,
	}
}

func (e *Engine) Configure(key, value string) error {
	var dst *float64
	var lo, hi float64
	switch key {
	case TuningKey:
		dst, lo, hi = &e.tuning, 220, 880
	case RotarySlowKey:
		dst, lo, hi = &e.rotarySlow, 0.1, 3
	case RotaryFastKey:
		dst, lo, hi = &e.rotaryFast, 3, 12
	default:
		return fmt.Errorf("%s: %w", key, drawbar.ErrUnknownKey)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if v < lo || v > hi {
		return fmt.Errorf("%s: %g out of range [%g, %g]", key, v, lo, hi)
	}
	*dst = v
	return nil
}

func (e *Engine) Init(sampleRate int) error {
	if sampleRate < 8000 {
		return fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	e.sampleRate = float64(sampleRate)
	for w := range numWheels {
		freq := e.tuning * math.Exp2(float64(lowWheel+w-69)/12)
		e.incs[w] = phaseInc(freq, e.sampleRate)
	}
	// fast and slow percussion decay to -60 dB in 0.3 and 1.5 seconds
	for i, t := range [2]float64{0.3, 1.5} {
		e.percCoefs[i] = float32(math.Pow(1e-3, 1/(t*e.sampleRate)))
	}
	e.vibrato.init(e.sampleRate)
	e.reverb.init(e.sampleRate)
	e.rotary.speed = e.rotaryTarget()
	return nil
}

// RegisterFunctions registers every function of the name table. Most map a
// controller directly to a parameter; the rotary speed controls and the
// vibrato routing switch interpret the controller value.
func (e *Engine) RegisterFunctions(b *midicc.Builder) error {
	for id, info := range drawbar.Params {
		if _, ok := midicc.FunctionByName(info.Name); !ok {
			continue
		}
		if err := b.Register(info.Name, drawbar.ParamFunc(e, drawbar.ParamID(id))); err != nil {
			return err
		}
	}
	custom := []struct {
		name string
		fn   midicc.Func
	}{
		{"swellpedal1", drawbar.ParamFunc(e, drawbar.ParamSwell)},
		{"rotary.speed-preset", drawbar.ParamFunc(e, drawbar.ParamRotarySpeed)},
		{"rotary.speed-toggle", e.toggleRotary},
		{"rotary.speed-select", e.selectRotary},
		{"vibrato.routing", e.routeVibrato},
	}
	for _, c := range custom {
		if err := b.Register(c.name, c.fn); err != nil {
			return err
		}
	}
	return nil
}

// toggleRotary switches between slow and fast on every press of a pedal.
func (e *Engine) toggleRotary(value uint8) {
	if value < 64 {
		return
	}
	speed := float32(drawbar.RotaryFast)
	if e.params[drawbar.ParamRotarySpeed] == drawbar.RotaryFast {
		speed = drawbar.RotarySlow
	}
	e.SetParam(drawbar.ParamRotarySpeed, speed)
}

// selectRotary is for a continuous controller: low half slow, high half fast.
func (e *Engine) selectRotary(value uint8) {
	speed := float32(drawbar.RotarySlow)
	if value >= 64 {
		speed = drawbar.RotaryFast
	}
	e.SetParam(drawbar.ParamRotarySpeed, speed)
}

// routeVibrato splits the controller range in four: off, lower, upper, both.
func (e *Engine) routeVibrato(value uint8) {
	r := value / 32
	e.SetParam(drawbar.ParamVibratoLower, float32(r&1))
	e.SetParam(drawbar.ParamVibratoUpper, float32(r>>1))
}

func (e *Engine) NoteOn(m midicc.Manual, note, velocity byte) {
	if !m.Valid() || note > 127 || e.keys[m][note] {
		return
	}
	// single triggered: percussion sounds only when no other key is held
	if m == midicc.Upper && e.keysDown[m] == 0 && e.params[drawbar.ParamPercussionEnable] != 0 {
		e.percEnv = 1
	}
	e.keys[m][note] = true
	e.keysDown[m]++
	e.dirty = true
}

func (e *Engine) NoteOff(m midicc.Manual, note byte) {
	if !m.Valid() || note > 127 || !e.keys[m][note] {
		return
	}
	e.keys[m][note] = false
	e.keysDown[m]--
	e.dirty = true
}

func (e *Engine) AllNotesOff() {
	e.keys = [midicc.NumManuals][128]bool{}
	e.keysDown = [midicc.NumManuals]int{}
	e.percEnv = 0
	e.dirty = true
}

func (e *Engine) Params() []float32 { return e.params }

func (e *Engine) SetParam(id drawbar.ParamID, value float32) {
	if !id.Valid() {
		return
	}
	e.params[id] = value
	e.dirty = true
}

func (e *Engine) Close() {
	e.reverb = reverb{}
}

// Render renders the organ, with the input mixed in before the overdrive
// and the rotary speaker.
func (e *Engine) Render(in, out drawbar.AudioBuffer) {
	for start := 0; start < out.Len(); start += chunkSize {
		end := min(out.Len(), start+chunkSize)
		var chunkIn drawbar.AudioBuffer
		if len(in[0]) >= end && len(in[1]) >= end {
			chunkIn = in.Slice(start, end)
		}
		e.renderChunk(chunkIn, out.Slice(start, end))
	}
}

func (e *Engine) renderChunk(in, out drawbar.AudioBuffer) {
	n := out.Len()
	if e.dirty {
		e.updateGains()
	}
	dry, vib, perc := e.buses[busDry][:n], e.buses[busVibrato][:n], e.percBus[:n]
	clear(dry)
	clear(vib)
	clear(perc)
	wheel := e.wheel[:n]
	for w := range numWheels {
		ph, inc := e.phases[w], e.incs[w]
		g0, g1, gp := e.gains[busDry][w], e.gains[busVibrato][w], e.perc[w]
		if g0 == 0 && g1 == 0 && gp == 0 {
			e.phases[w] = ph + inc*uint32(n)
			continue
		}
		for i := range wheel {
			wheel[i] = sine(ph)
			ph += inc
		}
		e.phases[w] = ph
		e.mix(dry, wheel, g0)
		e.mix(vib, wheel, g1)
		e.mix(perc, wheel, gp)
	}
	if e.percEnv > 1e-4 {
		env := e.env[:n]
		coef := e.percCoefs[0]
		if e.params[drawbar.ParamPercussionDecay] != 0 {
			coef = e.percCoefs[1]
		}
		for i := range env {
			env[i] = e.percEnv
			e.percEnv *= coef
		}
		vek32.Mul_Inplace(perc, env)
		if e.params[drawbar.ParamVibratoUpper] != 0 {
			vek32.Add_Inplace(vib, perc)
		} else {
			vek32.Add_Inplace(dry, perc)
		}
	} else {
		e.percEnv = 0
	}
	e.vibrato.process(vib, int(e.params[drawbar.ParamVibratoKnob]))
	vek32.Add_Inplace(dry, vib)
	if in[0] != nil {
		tmp := vek32.Add_Into(e.tmp[:n], in[0], in[1])
		e.mix(dry, tmp, 0.5)
	}
	if e.params[drawbar.ParamOverdriveEnable] != 0 {
		overdrive(dry, e.params[drawbar.ParamOverdriveCharacter])
	}
	e.rotary.process(dry, out[0], out[1], e.rotaryTarget(), e.sampleRate)
	e.reverb.process(out, e.params[drawbar.ParamReverbMix])
	gain := e.params[drawbar.ParamVolume] * e.params[drawbar.ParamSwell]
	vek32.MulNumber_Inplace(out[0], gain)
	vek32.MulNumber_Inplace(out[1], gain)
	rms := math.Sqrt(float64(vek32.Dot(out[0], out[0])+vek32.Dot(out[1], out[1])) / float64(2*n))
	e.params[drawbar.ParamOutputLevel] = float32(min(rms, 1))
}

// mix adds src scaled by g to dst.
func (e *Engine) mix(dst, src []float32, g float32) {
	if g == 0 {
		return
	}
	tmp := vek32.MulNumber_Into(e.tmp[:len(src)], src, g)
	vek32.Add_Inplace(dst, tmp)
}

// updateGains recomputes how loud each wheel sounds on each bus from the
// keys held and the drawbar settings.
func (e *Engine) updateGains() {
	e.dirty = false
	e.gains = [numBuses][numWheels]float32{}
	e.perc = [numWheels]float32{}
	routed := [midicc.NumManuals]bool{
		midicc.Upper: e.params[drawbar.ParamVibratoUpper] != 0,
		midicc.Lower: e.params[drawbar.ParamVibratoLower] != 0,
	}
	for m := range midicc.NumManuals {
		if e.keysDown[m] == 0 {
			continue
		}
		bus := busDry
		if routed[m] {
			bus = busVibrato
		}
		var levels [9]float32
		switch m {
		case midicc.Upper:
			copy(levels[:], e.params[drawbar.ParamUpperDrawbar16:])
		case midicc.Lower:
			copy(levels[:], e.params[drawbar.ParamLowerDrawbar16:])
		case midicc.Pedals:
			levels[0] = e.params[drawbar.ParamPedalDrawbar16]
			levels[2] = e.params[drawbar.ParamPedalDrawbar8]
		}
		for key, down := range e.keys[m] {
			if !down {
				continue
			}
			for h, level := range levels {
				if level > 0 {
					e.gains[bus][wheelOf(key+footageOffsets[h])] += level / 8 * keyGain
				}
			}
		}
	}
	if e.params[drawbar.ParamPercussionEnable] == 0 || e.keysDown[midicc.Upper] == 0 {
		return
	}
	// second harmonic (4') or third harmonic (2 2/3'), soft or normal
	offset := footageOffsets[3]
	if e.params[drawbar.ParamPercussionHarmonic] != 0 {
		offset = footageOffsets[4]
	}
	level := float32(2 * keyGain)
	if e.params[drawbar.ParamPercussionVolume] != 0 {
		level /= 2
	}
	for key, down := range e.keys[midicc.Upper] {
		if down {
			e.perc[wheelOf(key+offset)] += level
		}
	}
}

func (e *Engine) rotaryTarget() float64 {
	switch int(e.params[drawbar.ParamRotarySpeed]) {
	case drawbar.RotaryStop:
		return 0
	case drawbar.RotaryFast:
		return e.rotaryFast
	}
	return e.rotarySlow
}

func wheelOf(note int) int {
	for note < lowWheel {
		note += 12
	}
	for note > highWheel {
		note -= 12
	}
	return note - lowWheel
}

func overdrive(x []float32, character float32) {
	drive := 1 + 9*float64(character)
	norm := 1 / math.Tanh(drive)
	for i, v := range x {
		x[i] = float32(math.Tanh(drive*float64(v)) * norm)
	}
}
