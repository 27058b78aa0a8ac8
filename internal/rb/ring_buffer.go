// Package rb provides a lock-free spsc generic ring buffer.
//
// The buffer is bounded and holds exactly the configured capacity.
// It is safe for one producer goroutine calling Push and one consumer
// goroutine calling Pop at the same time, and for nothing more than
// that: a second concurrent producer or consumer breaks the protocol.
// Occupancy queries may be called from any goroutine, but their result
// is advisory, since the other side may move a cursor right after the
// query returns.
package rb

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ErrEmpty is returned when popping from an empty buffer.
var ErrEmpty = errors.New("ring buffer: buffer is empty")

// ErrFull is returned when pushing into a full buffer.
var ErrFull = errors.New("ring buffer: buffer is full")

// ErrInvalidCapacity is returned when the requested capacity is lower than 1.
var ErrInvalidCapacity = errors.New("ring buffer: capacity must be at least 1")

// RingBuffer is a lock-free spsc generic ring buffer.
//
// The backing array is one slot longer than the capacity and that
// extra slot never holds an item. With the reserved slot the cursors
// coincide only when the buffer is empty, and the buffer is full
// exactly when the write cursor sits right behind the read cursor,
// so each side decides from its own cursor and one fresh load of the
// other side's cursor. A stale load of the other cursor under-reports
// the available items or space but never yields a slot the other side
// still owns.
type RingBuffer[T any] struct {
	// writeCursor is the index of the next slot to push into.
	// It is only mutated by the producer.
	writeCursor atomic.Uint64

	_ cpu.CacheLinePad

	// readCursor is the index of the next slot to pop from.
	// It is only mutated by the consumer.
	readCursor atomic.Uint64

	_ cpu.CacheLinePad

	// modulus is the length of the backing array: the capacity plus
	// the reserved slot. Both cursors stay in [0, modulus) and wrap
	// on advance.
	modulus uint64

	// buffer holds the items. A slot is only written by the producer
	// before the write cursor publishes it, and only read by the
	// consumer after that, so the two sides never touch a slot at once.
	buffer []T
}

// NewRingBuffer returns a new lock-free spsc generic ring buffer
// holding up to capacity items. The backing array allocates one slot
// more than the capacity for the reserved slot of the cursor scheme.
// It returns ErrInvalidCapacity if capacity is lower than 1.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	return &RingBuffer[T]{
		modulus: uint64(capacity) + 1,

		buffer: make([]T, capacity+1),
	}, nil
}

// Push adds the item to the buffer. It returns ErrFull without
// mutating anything if the buffer has no space left.
//
// Push must only be called by the single producer goroutine.
func (rb *RingBuffer[T]) Push(item T) error {
	// Get the cursors
	w := rb.writeCursor.Load()
	r := rb.readCursor.Load()

	next := w + 1
	if next == rb.modulus {
		next = 0
	}

	// The buffer is full when the next slot is the one the consumer
	// still has to pop. The fullness decision and the slot write below
	// must use the same loaded cursors.
	if next == r {
		return ErrFull
	}

	// Write the item before publishing the new cursor
	rb.buffer[w] = item

	// Publish the new cursor. The atomic store makes the slot write
	// visible to the consumer.
	rb.writeCursor.Store(next)

	return nil
}

// Pop removes and returns the oldest item in the buffer. It returns
// ErrEmpty without mutating anything if the buffer holds no items.
//
// Pop must only be called by the single consumer goroutine.
func (rb *RingBuffer[T]) Pop() (T, error) {
	var zero T

	// Get the cursors
	w := rb.writeCursor.Load()
	r := rb.readCursor.Load()

	// The buffer is empty when the cursors coincide
	if w == r {
		return zero, ErrEmpty
	}

	// Read the item before publishing the new cursor
	item := rb.buffer[r]

	next := r + 1
	if next == rb.modulus {
		next = 0
	}

	// Publish the new cursor. The atomic store releases the slot
	// back to the producer.
	rb.readCursor.Store(next)

	return item, nil
}

// ReadAvailable returns the number of items the consumer could pop
// right now. The result is computed from a single snapshot of each
// cursor and is advisory in a concurrent setting.
func (rb *RingBuffer[T]) ReadAvailable() int {
	w := rb.writeCursor.Load()
	r := rb.readCursor.Load()

	if w >= r {
		return int(w - r)
	}

	// The write cursor has wrapped
	return int(rb.modulus - r + w)
}

// WriteAvailable returns the number of items the producer could push
// right now. The result is computed from a single snapshot of each
// cursor and is advisory in a concurrent setting.
func (rb *RingBuffer[T]) WriteAvailable() int {
	w := rb.writeCursor.Load()
	r := rb.readCursor.Load()

	if w >= r {
		return int(rb.modulus - 1 - (w - r))
	}

	// The write cursor has wrapped
	return int(r - w - 1)
}

// IsEmpty states whether the buffer holds no items.
func (rb *RingBuffer[T]) IsEmpty() bool {
	return rb.ReadAvailable() == 0
}

// IsFull states whether the buffer has no space left.
func (rb *RingBuffer[T]) IsFull() bool {
	return rb.WriteAvailable() == 0
}

// Len returns the number of items in the buffer.
// It is a synonym of ReadAvailable.
func (rb *RingBuffer[T]) Len() int {
	return rb.ReadAvailable()
}

// Cap returns the number of items the buffer can hold. The reserved
// slot is not part of the capacity.
func (rb *RingBuffer[T]) Cap() int {
	return int(rb.modulus - 1)
}

// Clear resets the buffer to the empty state and zeroes every slot,
// so the cleared items do not stay reachable through the backing array.
//
// Clear is NOT safe to call concurrently with Push or Pop. It is meant
// to be used while no producer/consumer activity is in flight, like
// before starting the two goroutines or after both have quiesced.
func (rb *RingBuffer[T]) Clear() {
	rb.writeCursor.Store(0)
	rb.readCursor.Store(0)

	clear(rb.buffer)
}
