package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
	"github.com/vsariola/drawbar/ring"
)

type (
	// Session is the non real-time side of the organ. It owns the running
	// state, runs the worker that builds new instances, and polls the rings
	// coming from the audio thread to keep an observable copy of the
	// parameters and bindings of the live instance.
	//
	// All methods are safe for concurrent use.
	Session struct {
		broker    *Broker
		lifecycle *Lifecycle
		processor *Processor
		factory   drawbar.EngineFactory
		opts      Options
		logger    *slog.Logger

		sendMu sync.Mutex // producers of ToAudio and ParamsToAudio

		mu         sync.Mutex
		state      State
		restore    []drawbar.ConfigLine
		hasRestore bool
		factoryCfg map[string]string
		programs   drawbar.ProgramTable
		built      map[uuid.UUID]*bindingTable
		instanceID uuid.UUID
		params     []float32
		bindings   *bindingTable
		values     [midicc.NumFunctions]int16
		dropped    uint64

		seq    atomic.Uint32
		alerts chan Alert
		done   chan WorkItem
	}

	// Options configure a Session.
	Options struct {
		SampleRate int
		// Base is the startup configuration, applied to every instance
		// before the running state.
		Base []drawbar.ConfigLine
		// NoDefaults leaves out the factory controller assignment.
		NoDefaults bool
		MaxBlock   int
		// MaxDelay is the longest input latency compensated, in frames.
		// Defaults to 4 seconds.
		MaxDelay int
		Logger   *slog.Logger
	}

	bindingTable struct {
		slots [midicc.NumManuals][128]midicc.Binding
		bound [midicc.NumManuals][128]bool
	}
)

var (
	// ErrBusy is returned when a request is made while another is in flight.
	ErrBusy = errors.New("another request is in progress")
	// ErrQueueFull is returned when a message to the audio thread was
	// dropped because the ring was full.
	ErrQueueFull = errors.New("audio thread queue full")
	// ErrFailed wraps the message of a failed request.
	ErrFailed = errors.New("request failed")
)

const (
	alertBufferSize = 64
	doneBufferSize  = 4
)

// NewSession builds the first instance and starts the worker and observer
// goroutines. The returned Processor is the audio callback; the caller hands
// it to the audio host. If the first instance cannot be built, nothing is
// started.
func NewSession(factory drawbar.EngineFactory, opts Options) (*Session, *Processor, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.MaxBlock <= 0 {
		opts.MaxBlock = DefaultMaxBlock
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 4 * opts.SampleRate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		broker:     NewBroker(),
		factory:    factory,
		opts:       opts,
		logger:     opts.Logger.With("engine", factory.Name()),
		factoryCfg: map[string]string{},
		built:      map[uuid.UUID]*bindingTable{},
		alerts:     make(chan Alert, alertBufferSize),
		done:       make(chan WorkItem, doneBufferSize),
	}
	inst, diags, err := NewInstance(factory, s.instanceConfig(), opts.Base)
	if err != nil {
		return nil, nil, err
	}
	s.reportDiagnostics(diags)
	for k, v := range inst.Export {
		s.factoryCfg[k] = v
	}
	s.instanceID = inst.ID
	s.programs = inst.Programs
	s.params = append([]float32(nil), inst.Engine.Params()...)
	s.bindings = tableOf(inst.Registry)
	for i := range s.values {
		s.values[i] = -1
	}
	s.lifecycle = NewLifecycle(inst)
	s.processor = NewProcessor(s.broker, s.lifecycle, ProcessorConfig{MaxBlock: opts.MaxBlock, MaxDelay: opts.MaxDelay})
	s.logger.Info("session started", "instance", inst.ID, "sampleRate", opts.SampleRate)
	go s.runWorker()
	go s.runObserver()
	return s, s.processor, nil
}

func (s *Session) instanceConfig() InstanceConfig {
	return InstanceConfig{SampleRate: s.opts.SampleRate, NoDefaults: s.opts.NoDefaults}
}

// Broker returns the rings of the session, e.g. for attaching a remote UI to
// the UI rings.
func (s *Session) Broker() *Broker { return s.broker }

func (s *Session) Lifecycle() *Lifecycle { return s.lifecycle }

// Alerts returns the channel of user facing messages. Alerts are dropped if
// nobody reads them.
func (s *Session) Alerts() <-chan Alert { return s.alerts }

// Close stops the goroutines of the session and frees all instances. The
// audio host must have stopped calling the Processor before.
func (s *Session) Close() {
	TrySend(s.broker.CloseWorker, struct{}{})
	TrySend(s.broker.CloseObserver, struct{}{})
	TimeoutReceive(s.broker.FinishedWorker, 3*time.Second)
	TimeoutReceive(s.broker.FinishedObserver, 3*time.Second)
	for _, inst := range []*Instance{s.lifecycle.TakeRetired(), s.lifecycle.takeOffline(), s.lifecycle.Live()} {
		if inst != nil {
			inst.Close()
		}
	}
	s.logger.Info("session closed")
}

// Request starts a request without waiting for it to complete. It fails with
// ErrBusy if another request is in flight; the request is then not queued.
func (s *Session) Request(c Command, arg string) error {
	_, err := s.request(NewWorkItem(c, arg), true)
	return err
}

func (s *Session) request(item WorkItem, alertBusy bool) (uint32, error) {
	if item.Command == CommandFree || item.Command >= numCommands {
		return 0, fmt.Errorf("%v cannot be requested", item.Command)
	}
	if !s.lifecycle.Begin() {
		if alertBusy {
			s.alert(AlertBusy, Warning, "%s rejected: another request is in progress", item.Command)
		}
		return 0, fmt.Errorf("%v: %w", item.Command, ErrBusy)
	}
	item.Seq = s.seq.Add(1)
	var buf [workItemSize]byte
	if !s.sendAtom(AtomRequest, item.encode(&buf)) {
		s.lifecycle.abort()
		return 0, fmt.Errorf("%v: %w", item.Command, ErrQueueFull)
	}
	return item.Seq, nil
}

// Do makes a request and waits for it to complete. A request rejected as
// busy returns an item with StatusBusy.
func (s *Session) Do(ctx context.Context, c Command, arg string) (WorkItem, error) {
	seq, err := s.request(NewWorkItem(c, arg), true)
	if err != nil {
		item := NewWorkItem(c, err.Error())
		item.Status = StatusFailed
		if errors.Is(err, ErrBusy) {
			item.Status = StatusBusy
		}
		return item, err
	}
	return s.wait(ctx, c, seq)
}

// wait returns the completed item of request seq, skipping completions of
// earlier requests nobody waited for.
func (s *Session) wait(ctx context.Context, c Command, seq uint32) (WorkItem, error) {
	for {
		select {
		case item := <-s.done:
			if item.Seq != seq {
				continue
			}
			if item.Status != StatusOK {
				return item, fmt.Errorf("%v: %w: %s", item.Command, ErrFailed, item.Message())
			}
			return item, nil
		case <-ctx.Done():
			return WorkItem{Command: c, Seq: seq}, ctx.Err()
		}
	}
}

func (s *Session) Reset(ctx context.Context) error {
	_, err := s.Do(ctx, CommandReset, "")
	return err
}

func (s *Session) LoadConfig(ctx context.Context, path string) error {
	_, err := s.Do(ctx, CommandLoadConfig, path)
	return err
}

func (s *Session) SetConfigLine(ctx context.Context, line string) error {
	_, err := s.Do(ctx, CommandSetConfigLine, line)
	return err
}

func (s *Session) LoadProgram(ctx context.Context, path string) error {
	_, err := s.Do(ctx, CommandLoadProgram, path)
	return err
}

func (s *Session) SaveConfig(ctx context.Context, path string) error {
	_, err := s.Do(ctx, CommandSaveConfig, path)
	return err
}

func (s *Session) SaveProgram(ctx context.Context, path string) error {
	_, err := s.Do(ctx, CommandSaveProgram, path)
	return err
}

func (s *Session) Purge(ctx context.Context) error {
	_, err := s.Do(ctx, CommandPurge, "")
	return err
}

// SaveState returns the running state in the configuration file format.
func (s *Session) SaveState() []byte {
	s.mu.Lock()
	lines := s.state.Lines()
	s.mu.Unlock()
	var buf bytes.Buffer
	drawbar.WriteConfig(&buf, lines)
	return buf.Bytes()
}

// RestoreState replaces the running state with data, produced by SaveState,
// and rebuilds the instance. If a request is in flight, it waits for it to
// complete first.
func (s *Session) RestoreState(ctx context.Context, data []byte) error {
	lines, diags := drawbar.ReadConfig(bytes.NewReader(data), "state")
	s.reportDiagnostics(diags)
	s.mu.Lock()
	s.restore, s.hasRestore = lines, true
	s.mu.Unlock()
	for {
		seq, err := s.request(NewWorkItem(CommandReset, "restore"), false)
		if err == nil {
			_, err = s.wait(ctx, CommandReset, seq)
			return err
		}
		if !errors.Is(err, ErrBusy) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(WorkerPollInterval):
		}
	}
}

// SetParam sets a parameter of the live instance.
func (s *Session) SetParam(id drawbar.ParamID, value float32) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.broker.ParamsToAudio.TryWriteValue(ring.Value{ID: uint32(id), Value: value}) {
		return ErrQueueFull
	}
	return nil
}

// ArmLearn makes the next controller moved bind to fn.
func (s *Session) ArmLearn(fn midicc.FunctionID, invert bool) error {
	if !fn.Valid() {
		return fmt.Errorf("function %d: %w", fn, midicc.ErrUnknownFunction)
	}
	return s.sendErr(AtomArmLearn, []byte{byte(fn), boolByte(invert)})
}

func (s *Session) CancelLearn() error { return s.sendErr(AtomCancelLearn, nil) }

// Bind binds a controller of the live instance. Reserved or out of range
// controllers and unknown functions are rejected before reaching the audio
// thread.
func (s *Session) Bind(b midicc.Binding) error {
	if err := checkController(b.Manual, b.Control); err != nil {
		return err
	}
	if midicc.IsReserved(b.Control) {
		return fmt.Errorf("%v cc %d: %w", b.Manual, b.Control, midicc.ErrReserved)
	}
	if !b.Function.Valid() {
		return fmt.Errorf("function %d: %w", b.Function, midicc.ErrUnknownFunction)
	}
	var buf [4]byte
	return s.sendErr(AtomBind, encodeBinding(buf[:], b))
}

// Unbind removes a binding of the live instance.
func (s *Session) Unbind(m midicc.Manual, cc uint8) error {
	if err := checkController(m, cc); err != nil {
		return err
	}
	var buf [4]byte
	return s.sendErr(AtomUnbind, encodeBinding(buf[:], midicc.Binding{Manual: m, Control: cc}))
}

// SetLatency reports the upstream latency of an input, in frames.
func (s *Session) SetLatency(port, frames int) error {
	var buf [5]byte
	return s.sendErr(AtomLatency, encodeLatency(buf[:], latencyAtom{Port: uint8(port), Samples: int32(frames)}))
}

// Panic releases all notes.
func (s *Session) Panic() error { return s.sendErr(AtomPanic, nil) }

func checkController(m midicc.Manual, cc uint8) error {
	if !m.Valid() || cc > 127 {
		return fmt.Errorf("manual %d cc %d: %w", m, cc, midicc.ErrOutOfRange)
	}
	return nil
}

func (s *Session) sendErr(kind AtomKind, payload []byte) error {
	if !s.sendAtom(kind, payload) {
		return ErrQueueFull
	}
	return nil
}

func (s *Session) sendAtom(kind AtomKind, payload []byte) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.broker.ToAudio.TryWriteRecord(uint32(kind), payload)
}

// Param returns the value of a parameter of the live instance, as last
// reported by the audio thread.
func (s *Session) Param(id drawbar.ParamID) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.params) {
		return 0
	}
	return s.params[id]
}

// Params returns a copy of all parameter values.
func (s *Session) Params() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.params...)
}

// Binding returns the binding of a controller of the live instance.
func (s *Session) Binding(m midicc.Manual, cc uint8) (midicc.Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !m.Valid() || cc > 127 || !s.bindings.bound[m][cc] {
		return midicc.Binding{}, false
	}
	return s.bindings.slots[m][cc], true
}

// Bindings returns all bindings of the live instance.
func (s *Session) Bindings() []midicc.Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings.list()
}

// FunctionValue returns the last controller value dispatched to fn.
func (s *Session) FunctionValue(fn midicc.FunctionID) (uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn.Valid() || s.values[fn] < 0 {
		return 0, false
	}
	return uint8(s.values[fn]), true
}

// Instance returns the ID of the live instance.
func (s *Session) Instance() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceID
}

// State returns the running state.
func (s *Session) State() []drawbar.ConfigLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Lines()
}

// Programs returns the program table of the most recently built instance.
func (s *Session) Programs() drawbar.ProgramTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.programs
}

func (s *Session) alert(name string, p AlertPriority, format string, args ...any) {
	a := Alert{Name: name, Message: fmt.Sprintf(format, args...), Priority: p}
	s.logger.Log(context.Background(), p.level(), a.Message, "alert", name)
	TrySend(s.alerts, a)
}

func (s *Session) reportDiagnostics(diags drawbar.ConfigErrors) {
	for _, d := range diags {
		s.logger.Warn("configuration error", "file", d.File, "line", d.Line, "err", d.Err)
	}
	switch len(diags) {
	case 0:
	case 1:
		s.alert(AlertConfig, Warning, "%v", diags[0])
	default:
		s.alert(AlertConfig, Warning, "%v (and %d more)", diags[0], len(diags)-1)
	}
}

func tableOf(r *midicc.Registry) *bindingTable {
	t := &bindingTable{}
	for b := range r.All {
		t.slots[b.Manual][b.Control] = b
		t.bound[b.Manual][b.Control] = true
	}
	return t
}

func (t *bindingTable) list() []midicc.Binding {
	var ret []midicc.Binding
	for m := range t.slots {
		for cc := range t.slots[m] {
			if t.bound[m][cc] {
				ret = append(ret, t.slots[m][cc])
			}
		}
	}
	return ret
}
