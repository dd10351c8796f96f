package midicc

import (
	"errors"
	"fmt"
	"math/bits"
)

type (
	// Builder collects the function registrations of an engine. Each
	// function can be registered at most once; Build then freezes the set of
	// functions into a Registry.
	Builder struct {
		funcs   [NumFunctions]Func
		onPanic func()
	}

	// Registry holds the dispatch tables of the three manuals and the reverse
	// index from functions to their bindings.
	//
	// Dispatch, Bind, Unbind, ArmLearn and CancelLearn do not allocate and
	// can be called on the audio thread. A Registry is not safe for
	// concurrent use: the live registry is owned by the audio thread, and
	// the worker only touches registries it is building.
	Registry struct {
		funcs   [NumFunctions]Func
		onPanic func()
		notify  func(Change)

		table   [NumManuals][128]uint8 // function + 1, 0 means unbound
		flags   [NumManuals][128]uint8
		reverse [NumFunctions][slotWords]uint64
		values  [NumFunctions]int16 // -1 if not received yet

		learnArmed  bool
		learnFunc   FunctionID
		learnInvert bool

		bankMSB, bankLSB uint8
	}

	// Binding binds a controller of a manual to a function.
	Binding struct {
		Function FunctionID
		Manual   Manual
		Control  uint8
		Invert   bool
	}

	// Change is reported to the notification hook whenever a binding changes
	// or a bound controller is dispatched.
	Change struct {
		Kind ChangeKind
		Binding
		Value uint8 // for ChangeValue: the value passed to the function
	}

	ChangeKind uint8
)

const (
	ChangeBound ChangeKind = iota
	ChangeUnbound
	ChangeValue
)

// FlagInvert marks a binding whose controller value is inverted (127 - value)
// before it is passed to the function.
const FlagInvert uint8 = 1

// Reserved controllers, handled by the registry itself and never bindable.
const (
	ControlBankSelectMSB = 0
	ControlBankSelectLSB = 32
	ControlAllSoundOff   = 120
	ControlAllNotesOff   = 123
)

const slotWords = (int(NumManuals)*128 + 63) / 64

var (
	ErrUnknownFunction   = errors.New("unknown function")
	ErrAlreadyRegistered = errors.New("function already registered")
	ErrReserved          = errors.New("reserved controller")
	ErrOutOfRange        = errors.New("controller out of range")
)

func NewBuilder() *Builder { return &Builder{} }

// Register registers the callback of the named function. It fails for names
// not in the function table and for functions registered already; callers
// are expected to log the error and go on.
func (b *Builder) Register(name string, fn Func) error {
	id, ok := FunctionByName(name)
	if !ok {
		return fmt.Errorf("register %q: %w", name, ErrUnknownFunction)
	}
	if b.funcs[id] != nil {
		return fmt.Errorf("register %q: %w", name, ErrAlreadyRegistered)
	}
	b.funcs[id] = fn
	return nil
}

// OnPanic sets the function called for the all-notes-off and all-sound-off
// controllers.
func (b *Builder) OnPanic(fn func()) { b.onPanic = fn }

// Build returns a registry with the registered functions and empty dispatch
// tables.
func (b *Builder) Build() *Registry {
	r := &Registry{funcs: b.funcs, onPanic: b.onPanic}
	for i := range r.values {
		r.values[i] = -1
	}
	return r
}

// IsReserved reports whether the controller is handled by the registry
// itself.
func IsReserved(cc uint8) bool {
	switch cc {
	case ControlBankSelectMSB, ControlBankSelectLSB, ControlAllSoundOff, ControlAllNotesOff:
		return true
	}
	return false
}

// Registered reports whether a callback was registered for the function.
func (r *Registry) Registered(fn FunctionID) bool { return fn.Valid() && r.funcs[fn] != nil }

// SetNotify installs the change notification hook, replacing the previous
// one. nil removes the hook. The hook is called on the goroutine that made
// the change, which for the live registry is the audio thread.
func (r *Registry) SetNotify(fn func(Change)) { r.notify = fn }

// Bind binds controller cc of manual m to fn, replacing whatever was bound to
// that controller.
func (r *Registry) Bind(m Manual, cc uint8, fn FunctionID, invert bool) error {
	if !m.Valid() || cc > 127 {
		return ErrOutOfRange
	}
	if IsReserved(cc) {
		return ErrReserved
	}
	if !fn.Valid() {
		return ErrUnknownFunction
	}
	if cur, ok := r.Lookup(m, cc); ok {
		if cur.Function == fn && cur.Invert == invert {
			return nil
		}
		r.Unbind(m, cc)
	}
	r.table[m][cc] = uint8(fn) + 1
	r.flags[m][cc] = 0
	if invert {
		r.flags[m][cc] = FlagInvert
	}
	slot := slotOf(m, cc)
	r.reverse[fn][slot/64] |= 1 << (slot % 64)
	r.report(Change{Kind: ChangeBound, Binding: Binding{Function: fn, Manual: m, Control: cc, Invert: invert}})
	return nil
}

// Unbind removes the binding of controller cc of manual m, if any.
func (r *Registry) Unbind(m Manual, cc uint8) {
	b, ok := r.Lookup(m, cc)
	if !ok {
		return
	}
	r.table[m][cc] = 0
	r.flags[m][cc] = 0
	slot := slotOf(m, cc)
	r.reverse[b.Function][slot/64] &^= 1 << (slot % 64)
	r.report(Change{Kind: ChangeUnbound, Binding: b})
}

// UnbindFunction removes every binding of fn.
func (r *Registry) UnbindFunction(fn FunctionID) {
	if !fn.Valid() {
		return
	}
	for w := range r.reverse[fn] {
		for r.reverse[fn][w] != 0 {
			slot := w*64 + bits.TrailingZeros64(r.reverse[fn][w])
			r.Unbind(Manual(slot/128), uint8(slot%128))
		}
	}
}

// Reset removes all bindings and cancels learn.
func (r *Registry) Reset() {
	for m := range NumManuals {
		for cc := range 128 {
			r.Unbind(m, uint8(cc))
		}
	}
	r.learnArmed = false
}

// Lookup returns the binding of controller cc of manual m.
func (r *Registry) Lookup(m Manual, cc uint8) (Binding, bool) {
	if !m.Valid() || cc > 127 || r.table[m][cc] == 0 {
		return Binding{}, false
	}
	return Binding{
		Function: FunctionID(r.table[m][cc] - 1),
		Manual:   m,
		Control:  cc,
		Invert:   r.flags[m][cc]&FlagInvert != 0,
	}, true
}

// Bindings iterates over the bindings of fn, ordered by manual and
// controller.
func (r *Registry) Bindings(fn FunctionID) func(yield func(Binding) bool) {
	return func(yield func(Binding) bool) {
		if !fn.Valid() {
			return
		}
		for w, word := range r.reverse[fn] {
			for word != 0 {
				slot := w*64 + bits.TrailingZeros64(word)
				word &= word - 1
				b, _ := r.Lookup(Manual(slot/128), uint8(slot%128))
				if !yield(b) {
					return
				}
			}
		}
	}
}

// All iterates over all bindings, ordered by manual and controller.
func (r *Registry) All(yield func(Binding) bool) {
	for m := range NumManuals {
		for cc := range 128 {
			if b, ok := r.Lookup(m, uint8(cc)); ok && !yield(b) {
				return
			}
		}
	}
}

// Value returns the last value dispatched to fn.
func (r *Registry) Value(fn FunctionID) (uint8, bool) {
	if !fn.Valid() || r.values[fn] < 0 {
		return 0, false
	}
	return uint8(r.values[fn]), true
}

// ArmLearn makes the next controller message bind to fn instead of being
// dispatched. Arming again replaces the pending request.
func (r *Registry) ArmLearn(fn FunctionID, invert bool) error {
	if !fn.Valid() {
		return ErrUnknownFunction
	}
	r.learnArmed, r.learnFunc, r.learnInvert = true, fn, invert
	return nil
}

// CancelLearn disarms learn.
func (r *Registry) CancelLearn() { r.learnArmed = false }

// CopyLearn arms or disarms learn the way it is in o.
func (r *Registry) CopyLearn(o *Registry) {
	r.learnArmed, r.learnFunc, r.learnInvert = o.learnArmed, o.learnFunc, o.learnInvert
}

// Learning returns the function learn is armed for.
func (r *Registry) Learning() (FunctionID, bool) { return r.learnFunc, r.learnArmed }

// Bank returns the bank selected with the bank select controllers.
func (r *Registry) Bank() int { return int(r.bankMSB)<<7 | int(r.bankLSB) }

// SetBank sets the bank select state, e.g. to carry it over to a new
// registry.
func (r *Registry) SetBank(bank int) {
	r.bankMSB, r.bankLSB = uint8(bank>>7)&127, uint8(bank)&127
}

// Dispatch handles a control change of manual m. Reserved controllers are
// handled first; then, if learn is armed, the controller is bound to the
// armed function. Otherwise the bound function, if any, is called. It reports
// whether the message was consumed. Out of range input is ignored.
func (r *Registry) Dispatch(m Manual, cc, value uint8) bool {
	if !m.Valid() || cc > 127 || value > 127 {
		return false
	}
	switch cc {
	case ControlBankSelectMSB:
		r.bankMSB = value
		return true
	case ControlBankSelectLSB:
		r.bankLSB = value
		return true
	case ControlAllSoundOff, ControlAllNotesOff:
		if r.onPanic != nil {
			r.onPanic()
		}
		return true
	}
	if r.learnArmed {
		r.learnArmed = false
		r.UnbindFunction(r.learnFunc)
		r.Bind(m, cc, r.learnFunc, r.learnInvert)
		return true
	}
	e := r.table[m][cc]
	if e == 0 {
		return false
	}
	fn := FunctionID(e - 1)
	if r.flags[m][cc]&FlagInvert != 0 {
		value = 127 - value
	}
	if f := r.funcs[fn]; f != nil {
		f(value)
	}
	r.values[fn] = int16(value)
	r.report(Change{Kind: ChangeValue, Binding: Binding{Function: fn, Manual: m, Control: cc, Invert: r.flags[m][cc]&FlagInvert != 0}, Value: value})
	return true
}

func (r *Registry) report(c Change) {
	if r.notify != nil {
		r.notify(c)
	}
}

func slotOf(m Manual, cc uint8) int { return int(m)*128 + int(cc) }
