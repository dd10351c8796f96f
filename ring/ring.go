// Package ring implements the fixed-capacity, lock-free rings used to pass
// messages across the real-time boundary.
//
// A Ring has exactly one producer and one consumer goroutine. Neither side
// ever blocks: a producer that finds too little free space gets false back
// and nothing is written, which callers treat as a dropped message. No memory
// is allocated after New returns.
//
// Rings are sized so that drops are a theoretical occurrence: the observer
// side polls at least 25 times per second while the audio callback runs at
// least a thousand cycles per second, so each ring holds comfortably more than
// 40 cycles worth of worst-case traffic.
package ring

import (
	"sync/atomic"
)

// Ring is a single-producer single-consumer byte ring.
type Ring struct {
	buf Buffer[byte]
	// write and read count bytes since construction; their difference is the
	// number of unread bytes. Only the producer stores write and only the
	// consumer stores read.
	write atomic.Uint64
	_     [56]byte // keep the two counters on separate cache lines
	read  atomic.Uint64
}

// New returns a ring holding at least capacity bytes; capacity is rounded up
// to the next power of two.
func New(capacity int) *Ring {
	return &Ring{buf: NewBuffer[byte](capacity)}
}

// Cap returns the capacity of the ring in bytes.
func (r *Ring) Cap() int { return r.buf.Len() }

// WriteSpace returns the number of bytes the producer can currently write.
func (r *Ring) WriteSpace() int {
	return r.buf.Len() - int(r.write.Load()-r.read.Load())
}

// TryWrite writes p as a whole or not at all. It returns false if the free
// space is insufficient. Only the producer may call TryWrite.
func (r *Ring) TryWrite(p []byte) bool {
	return r.tryWrite(p, nil)
}

// tryWrite publishes a and b as one contiguous message: the write counter is
// advanced only after both parts are in place, so the consumer never observes
// a partial message.
func (r *Ring) tryWrite(a, b []byte) bool {
	n := uint64(len(a) + len(b))
	w := r.write.Load()
	if uint64(r.buf.Len())-(w-r.read.Load()) < n {
		return false
	}
	r.buf.Put(w, a)
	r.buf.Put(w+uint64(len(a)), b)
	r.write.Store(w + n)
	return true
}

// ReadAvailable returns the number of bytes ready to be read. Only the
// consumer may call ReadAvailable.
func (r *Ring) ReadAvailable() int {
	return int(r.write.Load() - r.read.Load())
}

// Peek copies up to len(p) unread bytes into p without consuming them and
// returns the number of bytes copied.
func (r *Ring) Peek(p []byte) int {
	rd := r.read.Load()
	n := min(len(p), int(r.write.Load()-rd))
	r.buf.Get(rd, p[:n])
	return n
}

// Read consumes up to len(p) bytes into p and returns the number of bytes
// read.
func (r *Ring) Read(p []byte) int {
	n := r.Peek(p)
	r.read.Add(uint64(n))
	return n
}

// Skip discards up to n unread bytes and returns the number discarded.
func (r *Ring) Skip(n int) int {
	rd := r.read.Load()
	n = min(n, int(r.write.Load()-rd))
	r.read.Store(rd + uint64(n))
	return n
}
