// Package staffetta provides a lock-free, bounded, single-producer
// single-consumer ring buffer.
package staffetta

import (
	"github.com/FerroO2000/staffetta/internal/rb"
)

// ErrEmpty is returned when popping from an empty ring buffer.
var ErrEmpty = rb.ErrEmpty

// ErrFull is returned when pushing into a full ring buffer.
var ErrFull = rb.ErrFull

// ErrInvalidCapacity is returned when creating a ring buffer
// with a capacity lower than 1.
var ErrInvalidCapacity = rb.ErrInvalidCapacity

// ErrInvalidState is returned when restoring a ring buffer
// from an inconsistent snapshot.
var ErrInvalidState = rb.ErrInvalidState

// RingBuffer is a lock-free spsc generic ring buffer.
type RingBuffer[T any] = rb.RingBuffer[T]

// Snapshot represents the full state of a ring buffer.
type Snapshot[T any] = rb.Snapshot[T]

// NewRingBuffer returns a new lock-free spsc generic ring buffer
// with the given capacity.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	return rb.NewRingBuffer[T](capacity)
}

// FromSnapshot returns a new ring buffer restored from the given snapshot.
func FromSnapshot[T any](snap *Snapshot[T]) (*RingBuffer[T], error) {
	return rb.FromSnapshot(snap)
}
