package core

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/vsariola/drawbar/midicc"
)

// AtomKind tags the records of the atom rings. Every kind has exactly one
// payload layout, encoded and decoded by the functions below.
type AtomKind uint32

const (
	// session → audio
	AtomRequest     AtomKind = iota + 1 // WorkItem
	AtomArmLearn                        // function, invert
	AtomCancelLearn                     // no payload
	AtomBind                            // manual, control, function, invert
	AtomUnbind                          // manual, control
	AtomLatency                         // port, samples
	AtomPanic                           // no payload

	// audio → session
	AtomChange          // kind, function, manual, control, invert, value
	AtomSwapped         // instance ID
	AtomStatus          // WorkItem
	AtomLatencyRejected // port, samples

	// audio ↔ worker
	AtomWork // WorkItem
)

// maxAtomSize is the largest payload of any atom.
const maxAtomSize = workItemSize

type latencyAtom struct {
	Port    uint8
	Samples int32
}

func encodeChange(b []byte, c midicc.Change) []byte {
	b[0] = byte(c.Kind)
	b[1] = byte(c.Function)
	b[2] = byte(c.Manual)
	b[3] = c.Control
	b[4] = boolByte(c.Invert)
	b[5] = c.Value
	return b[:6]
}

func decodeChange(p []byte) (c midicc.Change, ok bool) {
	if len(p) < 6 {
		return c, false
	}
	c.Kind = midicc.ChangeKind(p[0])
	c.Function = midicc.FunctionID(p[1])
	c.Manual = midicc.Manual(p[2])
	c.Control = p[3]
	c.Invert = p[4] != 0
	c.Value = p[5]
	return c, c.Function.Valid() && c.Manual.Valid() && c.Control < 128
}

func encodeBinding(b []byte, v midicc.Binding) []byte {
	b[0] = byte(v.Manual)
	b[1] = v.Control
	b[2] = byte(v.Function)
	b[3] = boolByte(v.Invert)
	return b[:4]
}

func decodeBinding(p []byte) (v midicc.Binding, ok bool) {
	if len(p) < 4 {
		return v, false
	}
	return midicc.Binding{Manual: midicc.Manual(p[0]), Control: p[1], Function: midicc.FunctionID(p[2]), Invert: p[3] != 0}, true
}

func encodeLatency(b []byte, l latencyAtom) []byte {
	b[0] = l.Port
	binary.LittleEndian.PutUint32(b[1:], uint32(l.Samples))
	return b[:5]
}

func decodeLatency(p []byte) (l latencyAtom, ok bool) {
	if len(p) < 5 {
		return l, false
	}
	return latencyAtom{Port: p[0], Samples: int32(binary.LittleEndian.Uint32(p[1:]))}, true
}

func decodeID(p []byte) (id uuid.UUID, ok bool) {
	if len(p) < len(id) {
		return id, false
	}
	copy(id[:], p)
	return id, true
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
