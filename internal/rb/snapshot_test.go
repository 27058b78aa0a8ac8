package rb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Snapshot_RoundTrip(t *testing.T) {
	const capacity = 8

	suite := []struct {
		name  string
		setup func(buf *RingBuffer[int])
	}{
		{"empty", func(_ *RingBuffer[int]) {}},
		{"partial", func(buf *RingBuffer[int]) {
			for val := range 5 {
				_ = buf.Push(val)
			}
		}},
		{"full", func(buf *RingBuffer[int]) {
			for val := range capacity {
				_ = buf.Push(val)
			}
		}},
		{"wrapped", func(buf *RingBuffer[int]) {
			// Leaves the write cursor behind the read cursor
			for val := range capacity {
				_ = buf.Push(val)
			}
			for range 5 {
				_, _ = buf.Pop()
			}
			for val := range 3 {
				_ = buf.Push(100 + val)
			}
		}},
		{"drained at offset", func(buf *RingBuffer[int]) {
			for val := range 3 {
				_ = buf.Push(val)
			}
			for range 3 {
				_, _ = buf.Pop()
			}
		}},
	}

	for _, tCase := range suite {
		t.Run(tCase.name, func(t *testing.T) {
			assert := assert.New(t)

			buf, err := NewRingBuffer[int](capacity)
			assert.NoError(err)

			tCase.setup(buf)

			restored, err := FromSnapshot(buf.Snapshot())
			assert.NoError(err)

			// The restored buffer must report the same occupancy
			assert.Equal(buf.Cap(), restored.Cap())
			assert.Equal(buf.ReadAvailable(), restored.ReadAvailable())
			assert.Equal(buf.WriteAvailable(), restored.WriteAvailable())

			// and pop the same values in the same order
			for !buf.IsEmpty() {
				want, err := buf.Pop()
				assert.NoError(err)

				got, err := restored.Pop()
				assert.NoError(err)

				assert.Equal(want, got)
			}

			assert.True(restored.IsEmpty())
		})
	}
}

func Test_Snapshot_Fields(t *testing.T) {
	assert := assert.New(t)

	buf, err := NewRingBuffer[int](4)
	assert.NoError(err)

	for val := range 4 {
		assert.NoError(buf.Push(val))
	}

	snap := buf.Snapshot()

	// The slots include the reserved one
	assert.Len(snap.Slots, 5)
	assert.Equal([]int{0, 1, 2, 3}, snap.Slots[:4])
	assert.Equal(uint64(4), snap.WriteCursor)
	assert.Equal(uint64(0), snap.ReadCursor)

	// The snapshot must be a copy, not a view over the live buffer
	_, err = buf.Pop()
	assert.NoError(err)
	assert.Equal(uint64(0), snap.ReadCursor)
	assert.Equal([]int{0, 1, 2, 3}, snap.Slots[:4])
}

func Test_Snapshot_Restore_Invalid(t *testing.T) {
	suite := []struct {
		name string
		snap *Snapshot[int]
	}{
		{"nil snapshot", nil},
		{"no slots", &Snapshot[int]{}},
		{"single slot", &Snapshot[int]{
			Slots: make([]int, 1),
		}},
		{"write cursor out of range", &Snapshot[int]{
			Slots:       make([]int, 4),
			WriteCursor: 4,
		}},
		{"read cursor out of range", &Snapshot[int]{
			Slots:      make([]int, 4),
			ReadCursor: 17,
		}},
	}

	for _, tCase := range suite {
		t.Run(tCase.name, func(t *testing.T) {
			assert := assert.New(t)

			buf, err := FromSnapshot(tCase.snap)
			assert.ErrorIs(err, ErrInvalidState)
			assert.Nil(buf)
		})
	}
}
