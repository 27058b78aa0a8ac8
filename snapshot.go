package staffetta

import (
	"fmt"

	"github.com/sugawarayuuta/sonnet"
)

// EncodeSnapshot serializes the full state of the given ring buffer.
// It must not be called while a producer or a consumer is running.
func EncodeSnapshot[T any](buf *RingBuffer[T]) ([]byte, error) {
	data, err := sonnet.Marshal(buf.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("cannot encode snapshot: %w", err)
	}

	return data, nil
}

// DecodeSnapshot returns a new ring buffer restored from a serialized
// snapshot. Popping from the restored ring buffer yields the items
// in the same order as the snapshotted one.
func DecodeSnapshot[T any](data []byte) (*RingBuffer[T], error) {
	snap := new(Snapshot[T])
	if err := sonnet.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("cannot decode snapshot: %w", err)
	}

	return FromSnapshot(snap)
}
