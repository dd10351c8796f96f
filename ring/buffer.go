package ring

import "math/bits"

// Buffer is a power-of-two sized circular buffer addressed with absolute,
// monotonically increasing positions. Position p maps to slot p & mask, so
// callers never do wraparound arithmetic themselves: they keep counting and
// the buffer folds the count into its storage.
type Buffer[T any] struct {
	data []T
	mask uint64
}

// NewBuffer returns a zeroed buffer holding at least size items. The actual
// length is size rounded up to the next power of two (and at least 1).
func NewBuffer[T any](size int) Buffer[T] {
	n := ceilPow2(size)
	return Buffer[T]{data: make([]T, n), mask: uint64(n - 1)}
}

func ceilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Len returns the number of slots in the buffer.
func (b Buffer[T]) Len() int { return len(b.data) }

// At returns the item at absolute position pos.
func (b Buffer[T]) At(pos uint64) T { return b.data[pos&b.mask] }

// Set stores v at absolute position pos.
func (b Buffer[T]) Set(pos uint64, v T) { b.data[pos&b.mask] = v }

// Put copies values into the buffer starting at absolute position pos,
// wrapping around the end of the storage. len(values) must not exceed Len().
func (b Buffer[T]) Put(pos uint64, values []T) {
	i := pos & b.mask
	c := copy(b.data[i:], values)
	copy(b.data, values[c:])
}

// Get copies len(dst) items starting at absolute position pos into dst,
// wrapping around the end of the storage. len(dst) must not exceed Len().
func (b Buffer[T]) Get(pos uint64, dst []T) {
	i := pos & b.mask
	c := copy(dst, b.data[i:])
	copy(dst[c:], b.data)
}

// Clear zeroes the whole buffer.
func (b Buffer[T]) Clear() {
	clear(b.data)
}
