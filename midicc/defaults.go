package midicc

// defaultMap is the factory controller assignment, laid out for common
// drawbar controllers: nine faders per manual starting at CC 70.
var defaultMap = []struct {
	manual  Manual
	control uint8
	name    string
	invert  bool
}{
	{Upper, 1, "rotary.speed-select", false},
	{Upper, 7, "volume", false},
	{Upper, 11, "swellpedal1", false},
	{Upper, 64, "rotary.speed-toggle", false},
	{Upper, 70, "upper.drawbar16", false},
	{Upper, 71, "upper.drawbar513", false},
	{Upper, 72, "upper.drawbar8", false},
	{Upper, 73, "upper.drawbar4", false},
	{Upper, 74, "upper.drawbar223", false},
	{Upper, 75, "upper.drawbar2", false},
	{Upper, 76, "upper.drawbar135", false},
	{Upper, 77, "upper.drawbar113", false},
	{Upper, 78, "upper.drawbar1", false},
	{Upper, 80, "percussion.enable", false},
	{Upper, 81, "percussion.volume", false},
	{Upper, 82, "percussion.decay", false},
	{Upper, 83, "percussion.harmonic", false},
	{Upper, 84, "vibrato.knob", false},
	{Upper, 85, "vibrato.upper", false},
	{Upper, 86, "vibrato.lower", false},
	{Upper, 87, "overdrive.enable", false},
	{Upper, 88, "overdrive.character", false},
	{Upper, 91, "reverb.mix", false},
	{Lower, 11, "swellpedal1", false},
	{Lower, 70, "lower.drawbar16", false},
	{Lower, 71, "lower.drawbar513", false},
	{Lower, 72, "lower.drawbar8", false},
	{Lower, 73, "lower.drawbar4", false},
	{Lower, 74, "lower.drawbar223", false},
	{Lower, 75, "lower.drawbar2", false},
	{Lower, 76, "lower.drawbar135", false},
	{Lower, 77, "lower.drawbar113", false},
	{Lower, 78, "lower.drawbar1", false},
	{Pedals, 11, "swellpedal1", false},
	{Pedals, 70, "pedal.drawbar16", false},
	{Pedals, 71, "pedal.drawbar8", false},
}

// LoadDefaults binds the factory controller assignment, on top of the
// current bindings.
func (r *Registry) LoadDefaults() {
	for _, d := range defaultMap {
		fn, _ := FunctionByName(d.name)
		r.Bind(d.manual, d.control, fn, d.invert)
	}
}
