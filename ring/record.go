package ring

import (
	"encoding/binary"
	"math"
)

// HeaderSize is the size of a record header: a little-endian uint32 payload
// size followed by a little-endian uint32 kind tag.
const HeaderSize = 8

// ValueSize is the size of one encoded Value.
const ValueSize = 8

type (
	// Record is a self-delimiting message read from a ring. Payload aliases
	// the buffer given to ReadRecord. Truncated is set when the record was
	// larger than that buffer; the remainder was skipped so that the next
	// read starts at a record boundary again.
	Record struct {
		Kind      uint32
		Payload   []byte
		Truncated bool
	}

	// Value is a control value change: parameter ID and its new value. Value
	// rings carry fixed size records without headers.
	Value struct {
		ID    uint32
		Value float32
	}
)

// TryWriteRecord writes a header and payload as one message. It returns
// false, writing nothing, if the ring lacks space for the whole record.
func (r *Ring) TryWriteRecord(kind uint32, payload []byte) bool {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:], kind)
	return r.tryWrite(hdr[:], payload)
}

// ReadRecord consumes the next record, copying its payload into buf. ok is
// false if the ring holds no complete record.
func (r *Ring) ReadRecord(buf []byte) (rec Record, ok bool) {
	var hdr [HeaderSize]byte
	if r.Peek(hdr[:]) < HeaderSize {
		return Record{}, false
	}
	size := int(binary.LittleEndian.Uint32(hdr[0:]))
	if r.ReadAvailable() < HeaderSize+size {
		// writes publish whole records, so this only happens if the
		// producer is not using the record API; leave the bytes alone
		return Record{}, false
	}
	r.Skip(HeaderSize)
	rec.Kind = binary.LittleEndian.Uint32(hdr[4:])
	n := r.Read(buf[:min(size, len(buf))])
	rec.Payload = buf[:n]
	if n < size {
		r.Skip(size - n)
		rec.Truncated = true
	}
	return rec, true
}

// TryWriteValue writes one control value change.
func (r *Ring) TryWriteValue(v Value) bool {
	var b [ValueSize]byte
	binary.LittleEndian.PutUint32(b[0:], v.ID)
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Value))
	return r.tryWrite(b[:], nil)
}

// ReadValue consumes one control value change.
func (r *Ring) ReadValue() (Value, bool) {
	var b [ValueSize]byte
	if r.ReadAvailable() < ValueSize {
		return Value{}, false
	}
	r.Read(b[:])
	return Value{
		ID:    binary.LittleEndian.Uint32(b[0:]),
		Value: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
	}, true
}
