package staffetta

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_NewRingBuffer(t *testing.T) {
	assert := assert.New(t)

	buf, err := NewRingBuffer[string](16)
	assert.NoError(err)
	assert.Equal(16, buf.Cap())
	assert.True(buf.IsEmpty())

	buf, err = NewRingBuffer[string](0)
	assert.ErrorIs(err, ErrInvalidCapacity)
	assert.Nil(buf)
}

func Test_NewPair(t *testing.T) {
	assert := assert.New(t)

	prod, cons, err := NewPair[int](0)
	assert.ErrorIs(err, ErrInvalidCapacity)
	assert.Nil(prod)
	assert.Nil(cons)

	prod, cons, err = NewPair[int](4)
	assert.NoError(err)
	assert.Equal(4, prod.Cap())
	assert.Equal(4, cons.Cap())

	// The two handles operate on the same buffer
	assert.True(cons.IsEmpty())
	for val := range 4 {
		assert.NoError(prod.Push(val))
	}

	assert.True(prod.IsFull())
	assert.Equal(0, prod.WriteAvailable())
	assert.Equal(4, cons.ReadAvailable())
	assert.ErrorIs(prod.Push(99), ErrFull)

	for val := range 4 {
		item, err := cons.Pop()
		assert.NoError(err)
		assert.Equal(val, item)
	}

	assert.True(cons.IsEmpty())
	assert.Equal(4, prod.WriteAvailable())

	_, err = cons.Pop()
	assert.ErrorIs(err, ErrEmpty)
}

func Test_Handles_Concurrency(t *testing.T) {
	assert := assert.New(t)

	const items = 500_000

	prod, cons, err := NewPair[int](1024)
	assert.NoError(err)

	var skippedPush atomic.Int64
	var skippedPop atomic.Int64

	startTime := time.Now()

	pushWg := &sync.WaitGroup{}
	pushWg.Add(1)

	// The producer pushes a monotonically increasing counter
	go func() {
		defer pushWg.Done()

		produced := 0
		for produced < items {
			if prod.Push(produced) != nil {
				skippedPush.Add(1)
				runtime.Gosched()
				continue
			}

			produced++
		}
	}()

	// The consumer checks that no value is skipped, duplicated
	// or observed out of order
	expected := 0
	for expected < items {
		val, err := cons.Pop()
		if err != nil {
			skippedPop.Add(1)
			runtime.Gosched()
			continue
		}

		assert.Equal(expected, val)
		expected++
	}

	pushWg.Wait()

	assert.True(cons.IsEmpty())

	duration := time.Since(startTime)
	itemsPerSec := int(float64(items) / duration.Seconds())
	t.Logf("Processed %d items in %v (%d items/sec)", items, duration, itemsPerSec)
	t.Logf("Skipped push call: %d", skippedPush.Load())
	t.Logf("Skipped pop call: %d", skippedPop.Load())
}
