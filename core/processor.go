package core

import (
	"sync/atomic"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/delay"
	"github.com/vsariola/drawbar/midicc"
	"github.com/vsariola/drawbar/ring"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Processor is the audio callback. Process is called by the audio host
	// for every block; it applies pending control changes, swaps in a new
	// instance if one is ready, delays the inputs to compensate for their
	// latencies, renders the live engine and reports what changed.
	//
	// Process never blocks and does not allocate. All the other goroutines
	// talk to it only through the rings of the broker.
	Processor struct {
		broker    *Broker
		lifecycle *Lifecycle
		live      *Instance

		mirrors [2]mirrorPort
		delays  *delay.Compensator
		delayed drawbar.AudioBuffer
		silence []float32

		maxBlock int
		notify   func(midicc.Change)
		event    MIDIEvent
		eventOK  bool
		msg      [3]byte
		in       [maxAtomSize]byte
		out      [maxAtomSize]byte

		carry carryOver

		dropped atomic.Uint64
	}

	// carryOver tracks what changed on the live instance since the last
	// request reached the audio thread. The instance the request builds was
	// configured from the running state as it was then, so these changes are
	// copied onto it when it is swapped in.
	carryOver struct {
		base     [drawbar.NumParams]float32
		params   [drawbar.NumParams]bool
		bindings [midicc.NumManuals][128]bool
	}

	mirrorPort struct {
		in     *ring.Ring
		out    *ring.Ring
		mirror Mirror
	}

	// ProcessorConfig sets the sizes of the buffers of a Processor.
	ProcessorConfig struct {
		// MaxBlock is the largest number of frames rendered at once; longer
		// blocks are split.
		MaxBlock int
		// MaxDelay is the largest latency difference compensated between the
		// inputs, in frames.
		MaxDelay int
	}
)

const (
	DefaultMaxBlock = 4096
	numInputs       = 2
)

// NewProcessor returns a processor rendering the live instance of l.
func NewProcessor(b *Broker, l *Lifecycle, cfg ProcessorConfig) *Processor {
	cfg.MaxBlock = max(cfg.MaxBlock, 1)
	p := &Processor{
		broker:    b,
		lifecycle: l,
		live:      l.Live(),
		delays:    delay.NewCompensator(numInputs, cfg.MaxDelay, cfg.MaxBlock),
		delayed:   drawbar.MakeAudioBuffer(cfg.MaxBlock),
		silence:   make([]float32, cfg.MaxBlock),
		maxBlock:  cfg.MaxBlock,
	}
	params := p.live.Engine.Params()
	p.mirrors[0] = mirrorPort{in: b.ParamsToAudio, out: b.ParamsFromAudio, mirror: NewMirror(params)}
	p.mirrors[1] = mirrorPort{in: b.UIParamsToAudio, out: b.UIParamsFromAudio, mirror: NewMirror(params)}
	p.notify = p.onChange
	p.live.Registry.SetNotify(p.notify)
	return p
}

// Dropped returns the number of messages the audio thread has dropped
// because a ring was full.
func (p *Processor) Dropped() uint64 { return p.dropped.Load() }

// Process renders one block to out. in may be nil or shorter than out for
// instruments without inputs; missing input is silence.
func (p *Processor) Process(in, out drawbar.AudioBuffer, context ProcessContext) {
	p.workResponses()
	p.readAtoms()
	for i := range p.mirrors {
		p.readParams(p.mirrors[i].in)
	}
	n := out.Len()
	p.event, p.eventOK = context.NextEvent(0)
	for frame := 0; frame < n; {
		for p.eventOK && p.event.Frame <= frame {
			p.handleMIDI()
			p.event, p.eventOK = context.NextEvent(frame)
		}
		end := min(n, frame+p.maxBlock)
		if p.eventOK && p.event.Frame < end {
			end = p.event.Frame
		}
		p.render(in, out, frame, end)
		frame = end
	}
	context.FinishBlock(n)
	params := p.live.Engine.Params()
	for i := range p.mirrors {
		if d := p.mirrors[i].mirror.Publish(params, p.mirrors[i].out); d > 0 {
			p.dropped.Add(uint64(d))
		}
	}
}

func (p *Processor) render(in, out drawbar.AudioBuffer, start, end int) {
	length := end - start
	for ch := range numInputs {
		src := p.silence[:length]
		if len(in[ch]) >= end {
			src = in[ch][start:end]
		}
		p.delays.Process(ch, src, p.delayed[ch][:length])
	}
	p.live.Engine.Render(p.delayed.Slice(0, length), out.Slice(start, end))
}

func (p *Processor) handleMIDI() {
	n := copy(p.msg[:], p.event.Data[:p.event.Len])
	msg := midi.Message(p.msg[:n])
	var channel, key, velocity, control, value, program uint8
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		if m, ok := p.live.manual(channel); ok {
			p.live.Engine.NoteOn(m, key, velocity)
		}
	case msg.GetNoteEnd(&channel, &key):
		if m, ok := p.live.manual(channel); ok {
			p.live.Engine.NoteOff(m, key)
		}
	case msg.GetControlChange(&channel, &control, &value):
		if m, ok := p.live.manual(channel); ok {
			p.live.Registry.Dispatch(m, control, value)
		}
	case msg.GetProgramChange(&channel, &program):
		if _, ok := p.live.manual(channel); ok {
			p.live.recallProgram(p.live.Registry.Bank()<<7 | int(program))
		}
	}
}

func (p *Processor) readParams(r *ring.Ring) {
	params := p.live.Engine.Params()
	for {
		v, ok := r.ReadValue()
		if !ok {
			return
		}
		id := drawbar.ParamID(v.ID)
		if !id.Valid() || int(id) >= len(params) || drawbar.Params[id].Output {
			continue
		}
		p.live.Engine.SetParam(id, drawbar.Params[id].Clamp(v.Value))
		p.carry.params[id] = true
	}
}

func (p *Processor) readAtoms() {
	for {
		rec, ok := p.broker.ToAudio.ReadRecord(p.in[:])
		if !ok {
			return
		}
		if rec.Truncated {
			continue
		}
		reg := p.live.Registry
		switch AtomKind(rec.Kind) {
		case AtomRequest:
			p.scheduleWork(rec.Payload)
		case AtomArmLearn:
			if len(rec.Payload) >= 2 {
				reg.ArmLearn(midicc.FunctionID(rec.Payload[0]), rec.Payload[1] != 0)
			}
		case AtomCancelLearn:
			reg.CancelLearn()
		case AtomBind:
			if b, ok := decodeBinding(rec.Payload); ok {
				reg.Bind(b.Manual, b.Control, b.Function, b.Invert)
			}
		case AtomUnbind:
			if b, ok := decodeBinding(rec.Payload); ok {
				reg.Unbind(b.Manual, b.Control)
			}
		case AtomLatency:
			if l, ok := decodeLatency(rec.Payload); ok {
				if err := p.delays.SetLatency(int(l.Port), int(l.Samples)); err != nil {
					p.send(AtomLatencyRejected, encodeLatency(p.out[:], l))
				}
			}
		case AtomPanic:
			p.live.Engine.AllNotesOff()
		}
	}
}

// scheduleWork passes a request on to the worker. If the worker ring is full,
// which it never should be, the request fails at once.
func (p *Processor) scheduleWork(payload []byte) {
	p.carry.reset(p.live.Engine.Params())
	if p.broker.ToWorker.TryWriteRecord(uint32(AtomWork), payload) {
		return
	}
	var item WorkItem
	if item.decode(payload) {
		item.Status = StatusFailed
		item.SetMessage("worker queue full")
		p.lifecycle.finish()
		p.send(AtomStatus, item.encode(&p.out))
	}
}

// workResponses handles the results of the worker: a successful
// reconfiguration swaps in the instance the worker built.
func (p *Processor) workResponses() {
	for {
		rec, ok := p.broker.FromWorker.ReadRecord(p.in[:])
		if !ok {
			return
		}
		var item WorkItem
		if rec.Truncated || AtomKind(rec.Kind) != AtomWork || !item.decode(rec.Payload) {
			continue
		}
		if item.Status == StatusOK && item.Command.Swaps() {
			p.swap(item.Command)
		}
		p.lifecycle.finish()
		p.send(AtomStatus, item.encode(&p.out))
	}
}

// swap makes the offered instance live. Except after a reset, parameters and
// bindings changed on the old instance during the build are carried over; the
// observer hears about the swap first and then about the carried bindings.
func (p *Processor) swap(c Command) {
	next, prev := p.lifecycle.swap()
	if next == nil {
		return
	}
	prev.Registry.SetNotify(nil)
	next.Registry.SetNotify(p.notify)
	next.Registry.SetBank(prev.Registry.Bank())
	p.live = next
	p.send(AtomSwapped, next.ID[:])
	if c != CommandReset {
		p.carry.apply(prev, next)
	}
	free := WorkItem{Command: CommandFree}
	if !p.broker.ToWorker.TryWriteRecord(uint32(AtomWork), free.encode(&p.out)) {
		p.dropped.Add(1)
	}
}

func (p *Processor) onChange(c midicc.Change) {
	if c.Kind != midicc.ChangeValue && c.Manual.Valid() && c.Control < 128 {
		p.carry.bindings[c.Manual][c.Control] = true
	}
	p.send(AtomChange, encodeChange(p.out[:], c))
}

func (p *Processor) send(kind AtomKind, payload []byte) {
	if !p.broker.FromAudio.TryWriteRecord(uint32(kind), payload) {
		p.dropped.Add(1)
	}
}

func (c *carryOver) reset(params []float32) {
	copy(c.base[:], params)
	c.params = [drawbar.NumParams]bool{}
	c.bindings = [midicc.NumManuals][128]bool{}
}

// apply copies the parameters written or moved since reset, and the
// controllers bound or unbound since reset, from prev to next.
func (c *carryOver) apply(prev, next *Instance) {
	from, to := prev.Engine.Params(), next.Engine.Params()
	for i := range min(len(from), len(to), len(c.base)) {
		if drawbar.Params[i].Output || !c.params[i] && from[i] == c.base[i] {
			continue
		}
		next.Engine.SetParam(drawbar.ParamID(i), from[i])
	}
	for m := range midicc.NumManuals {
		for cc := range uint8(128) {
			if !c.bindings[m][cc] {
				continue
			}
			if b, ok := prev.Registry.Lookup(m, cc); ok {
				next.Registry.Bind(m, cc, b.Function, b.Invert)
			} else {
				next.Registry.Unbind(m, cc)
			}
		}
	}
	next.Registry.CopyLearn(prev.Registry)
}
