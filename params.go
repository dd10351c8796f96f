package drawbar

import (
	"fmt"
	"math"
	"strconv"
)

type (
	// ParamID identifies a control parameter. IDs are stable: they index the
	// Params table, the parameter arrays of engines and the control rings.
	ParamID int

	// ParamInfo describes a control parameter: its name in configuration
	// files, range and default value. Output parameters are written by the
	// engine (e.g. meters) and are never part of persistent state.
	ParamInfo struct {
		Name     string
		Min, Max float32
		Default  float32
		Integer  bool
		Output   bool
	}
)

const (
	ParamVolume ParamID = iota
	ParamSwell
	ParamOverdriveEnable
	ParamOverdriveCharacter
	ParamReverbMix
	ParamRotarySpeed
	ParamVibratoKnob
	ParamVibratoUpper
	ParamVibratoLower
	ParamPercussionEnable
	ParamPercussionVolume
	ParamPercussionDecay
	ParamPercussionHarmonic
	ParamUpperDrawbar16
	ParamUpperDrawbar513
	ParamUpperDrawbar8
	ParamUpperDrawbar4
	ParamUpperDrawbar223
	ParamUpperDrawbar2
	ParamUpperDrawbar135
	ParamUpperDrawbar113
	ParamUpperDrawbar1
	ParamLowerDrawbar16
	ParamLowerDrawbar513
	ParamLowerDrawbar8
	ParamLowerDrawbar4
	ParamLowerDrawbar223
	ParamLowerDrawbar2
	ParamLowerDrawbar135
	ParamLowerDrawbar113
	ParamLowerDrawbar1
	ParamPedalDrawbar16
	ParamPedalDrawbar8
	ParamOutputLevel
	NumParams
)

// Rotary speeds, the values of ParamRotarySpeed.
const (
	RotaryStop = iota
	RotarySlow
	RotaryFast
)

// DrawbarFootages lists the footages of the manual drawbars, in the order of
// the drawbar parameters.
var DrawbarFootages = [9]string{"16", "513", "8", "4", "223", "2", "135", "113", "1"}

// Params describes every parameter, indexed by ParamID.
var Params = [NumParams]ParamInfo{
	ParamVolume:             {Name: "volume", Min: 0, Max: 1, Default: 0.7},
	ParamSwell:              {Name: "swell", Min: 0, Max: 1, Default: 1},
	ParamOverdriveEnable:    {Name: "overdrive.enable", Min: 0, Max: 1, Integer: true},
	ParamOverdriveCharacter: {Name: "overdrive.character", Min: 0, Max: 1, Default: 0.3},
	ParamReverbMix:          {Name: "reverb.mix", Min: 0, Max: 1, Default: 0.1},
	ParamRotarySpeed:        {Name: "rotary.speed", Min: RotaryStop, Max: RotaryFast, Default: RotarySlow, Integer: true},
	ParamVibratoKnob:        {Name: "vibrato.knob", Min: 0, Max: 5, Integer: true},
	ParamVibratoUpper:       {Name: "vibrato.upper", Min: 0, Max: 1, Integer: true},
	ParamVibratoLower:       {Name: "vibrato.lower", Min: 0, Max: 1, Integer: true},
	ParamPercussionEnable:   {Name: "percussion.enable", Min: 0, Max: 1, Integer: true},
	ParamPercussionVolume:   {Name: "percussion.volume", Min: 0, Max: 1, Integer: true},
	ParamPercussionDecay:    {Name: "percussion.decay", Min: 0, Max: 1, Integer: true},
	ParamPercussionHarmonic: {Name: "percussion.harmonic", Min: 0, Max: 1, Integer: true},
	ParamPedalDrawbar16:     {Name: "pedal.drawbar16", Min: 0, Max: 8, Default: 8, Integer: true},
	ParamPedalDrawbar8:      {Name: "pedal.drawbar8", Min: 0, Max: 8, Integer: true},
	ParamOutputLevel:        {Name: "output.level", Min: 0, Max: 1, Output: true},
}

var paramIndex = map[string]ParamID{}

func init() {
	// classic 888000000 registration on the upper, 008800000 on the lower
	upper := [9]float32{8, 8, 8}
	lower := [9]float32{0, 0, 8, 8}
	for i, f := range DrawbarFootages {
		Params[ParamUpperDrawbar16+ParamID(i)] = ParamInfo{Name: "upper.drawbar" + f, Min: 0, Max: 8, Default: upper[i], Integer: true}
		Params[ParamLowerDrawbar16+ParamID(i)] = ParamInfo{Name: "lower.drawbar" + f, Min: 0, Max: 8, Default: lower[i], Integer: true}
	}
	for i, p := range Params {
		paramIndex[p.Name] = ParamID(i)
	}
}

// ParamByName finds a parameter by its configuration name.
func ParamByName(name string) (ParamID, bool) {
	id, ok := paramIndex[name]
	return id, ok
}

func (id ParamID) String() string {
	if id < 0 || id >= NumParams {
		return fmt.Sprintf("param(%d)", int(id))
	}
	return Params[id].Name
}

// Valid reports whether id indexes the Params table.
func (id ParamID) Valid() bool { return id >= 0 && id < NumParams }

// DefaultParams returns the default values of all parameters.
func DefaultParams() []float32 {
	ret := make([]float32, NumParams)
	for i, p := range Params {
		ret[i] = p.Default
	}
	return ret
}

// Clamp limits value to the range of the parameter, rounding integer
// parameters to the closest integer.
func (p ParamInfo) Clamp(value float32) float32 {
	if value != value { // NaN
		return p.Default
	}
	if p.Integer {
		value = float32(math.Round(float64(value)))
	}
	return min(max(value, p.Min), p.Max)
}

// FromController maps a controller value 0..127 to the parameter range.
func (p ParamInfo) FromController(value uint8) float32 {
	return p.Clamp(p.Min + (p.Max-p.Min)*float32(min(value, 127))/127)
}

// Format formats a parameter value the way it is written to configuration
// files.
func (p ParamInfo) Format(value float32) string {
	if p.Integer {
		return strconv.Itoa(int(math.Round(float64(value))))
	}
	return strconv.FormatFloat(float64(value), 'g', -1, 32)
}

// Parse parses a parameter value from a configuration file. Values out of the
// range of the parameter are an error.
func (p ParamInfo) Parse(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid value %q", p.Name, s)
	}
	v := float32(f)
	if v < p.Min || v > p.Max {
		return 0, fmt.Errorf("%s: value %v out of range [%v, %v]", p.Name, v, p.Min, p.Max)
	}
	return p.Clamp(v), nil
}
