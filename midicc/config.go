package midicc

import (
	"fmt"
	"strconv"
	"strings"
)

// Configuration keys handled by the registry.
//
//	midi.controller.<manual>.<cc>=<function>   bind
//	midi.controller.<manual>.<cc>=-<function>  bind inverted
//	midi.controller.<manual>.<cc>=unmap        unbind
//	midi.controller.reset=yes                  remove all bindings
const (
	ControllerPrefix = "midi.controller."
	ResetKey         = ControllerPrefix + "reset"
	UnmapValue       = "unmap"
)

// Key returns the configuration key of the controller.
func Key(m Manual, cc uint8) string {
	return ControllerPrefix + m.String() + "." + strconv.Itoa(int(cc))
}

// ParseKey parses a controller configuration key.
func ParseKey(key string) (m Manual, cc uint8, ok bool) {
	rest, found := strings.CutPrefix(key, ControllerPrefix)
	if !found {
		return 0, 0, false
	}
	name, num, found := strings.Cut(rest, ".")
	if !found {
		return 0, 0, false
	}
	m, ok = ParseManual(name)
	if !ok {
		return 0, 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 || n > 127 {
		return 0, 0, false
	}
	return m, uint8(n), true
}

// ConfigValue returns the configuration value of the binding.
func (b Binding) ConfigValue() string {
	if b.Invert {
		return "-" + b.Function.String()
	}
	return b.Function.String()
}

func (b Binding) String() string {
	return Key(b.Manual, b.Control) + "=" + b.ConfigValue()
}

// Configure applies a midi.controller.* assignment.
func (r *Registry) Configure(key, value string) error {
	if key == ResetKey {
		switch strings.ToLower(value) {
		case "yes", "true", "1":
			r.Reset()
		case "no", "false", "0":
		default:
			return fmt.Errorf("invalid value %q, expected yes or no", value)
		}
		return nil
	}
	m, cc, ok := ParseKey(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrOutOfRange, key)
	}
	if IsReserved(cc) {
		return fmt.Errorf("controller %d: %w", cc, ErrReserved)
	}
	if value == UnmapValue {
		r.Unbind(m, cc)
		return nil
	}
	name, invert := strings.CutPrefix(value, "-")
	fn, ok := FunctionByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return r.Bind(m, cc, fn, invert)
}

// ConfigLines iterates over the assignments reproducing the current
// bindings, starting from empty tables.
func (r *Registry) ConfigLines(yield func(key, value string) bool) {
	for b := range r.All {
		if !yield(Key(b.Manual, b.Control), b.ConfigValue()) {
			return
		}
	}
}
