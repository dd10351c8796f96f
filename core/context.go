package core

type (
	// ProcessContext feeds MIDI events to the processor during one call of
	// Process. NextEvent returns the next event to handle, with Frame
	// relative to the start of the current block; frame tells how far the
	// processor has rendered. Events with Frame beyond the block may be kept
	// for the next block. FinishBlock is called once the block, of length
	// frame, has been rendered.
	ProcessContext interface {
		NextEvent(frame int) (event MIDIEvent, ok bool)
		FinishBlock(frame int)
	}

	// MIDIEvent is a short MIDI message. System exclusive messages are not
	// passed to the processor.
	MIDIEvent struct {
		Frame int
		Data  [3]byte
		Len   uint8
	}

	// NullContext has no events.
	NullContext struct{}

	// EventQueue is a ProcessContext for hosts that deliver the events of a
	// block before processing it, like plugin hosts and offline rendering.
	// Events must be added in the order of their frames. The queue is emptied
	// by FinishBlock, keeping its memory.
	EventQueue struct {
		events []MIDIEvent
		index  int
	}
)

func (NullContext) NextEvent(frame int) (MIDIEvent, bool) { return MIDIEvent{}, false }
func (NullContext) FinishBlock(frame int)                 {}

// MakeMIDIEvent returns an event of the given message. Messages longer than
// three bytes are truncated.
func MakeMIDIEvent(frame int, msg []byte) MIDIEvent {
	ev := MIDIEvent{Frame: frame}
	ev.Len = uint8(copy(ev.Data[:], msg))
	return ev
}

func (q *EventQueue) Add(ev MIDIEvent) { q.events = append(q.events, ev) }

func (q *EventQueue) Len() int { return len(q.events) - q.index }

func (q *EventQueue) NextEvent(frame int) (MIDIEvent, bool) {
	if q.index >= len(q.events) {
		return MIDIEvent{}, false
	}
	q.index++
	return q.events[q.index-1], true
}

func (q *EventQueue) FinishBlock(frame int) {
	q.events = q.events[:0] // reset buffer, but keep the allocated memory
	q.index = 0
}
