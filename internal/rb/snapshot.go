package rb

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when restoring a snapshot whose fields
// do not describe a valid buffer state.
var ErrInvalidState = errors.New("ring buffer: invalid state")

// Snapshot is the persisted-state representation of a ring buffer:
// the backing array contents in index order and the two cursors, all
// as plain fields. It is meant for snapshotting and debugging, not
// for the hot path.
type Snapshot[T any] struct {
	// Slots holds the backing array contents in index order. Its
	// length is the capacity of the buffer plus the reserved slot.
	Slots []T `json:"slots"`

	// WriteCursor is the index of the next slot to push into.
	WriteCursor uint64 `json:"write_cursor"`

	// ReadCursor is the index of the next slot to pop from.
	ReadCursor uint64 `json:"read_cursor"`
}

// Snapshot copies the current state of the buffer out.
//
// It must not run while the producer or the consumer goroutine is
// active: the copy is not atomic with respect to Push/Pop.
func (rb *RingBuffer[T]) Snapshot() *Snapshot[T] {
	slots := make([]T, rb.modulus)
	copy(slots, rb.buffer)

	return &Snapshot[T]{
		Slots: slots,

		WriteCursor: rb.writeCursor.Load(),
		ReadCursor:  rb.readCursor.Load(),
	}
}

// FromSnapshot rebuilds a ring buffer from a snapshot. The rebuilt
// buffer has the same occupancy as the snapshotted one and pops the
// same values in the same order.
//
// It returns ErrInvalidState if the snapshot fields do not describe
// a valid buffer state.
func FromSnapshot[T any](s *Snapshot[T]) (*RingBuffer[T], error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidState)
	}

	// One slot is reserved, so a valid backing array holds at least two
	modulus := uint64(len(s.Slots))
	if modulus < 2 {
		return nil, fmt.Errorf("%w: %d slots leave no usable capacity", ErrInvalidState, modulus)
	}

	if s.WriteCursor >= modulus {
		return nil, fmt.Errorf("%w: write cursor %d out of range [0, %d)", ErrInvalidState, s.WriteCursor, modulus)
	}

	if s.ReadCursor >= modulus {
		return nil, fmt.Errorf("%w: read cursor %d out of range [0, %d)", ErrInvalidState, s.ReadCursor, modulus)
	}

	rb := &RingBuffer[T]{
		modulus: modulus,

		buffer: make([]T, modulus),
	}

	copy(rb.buffer, s.Slots)

	rb.writeCursor.Store(s.WriteCursor)
	rb.readCursor.Store(s.ReadCursor)

	return rb, nil
}
