package staffetta

// Producer is the write side of a ring buffer.
// At most one goroutine at a time may use it.
type Producer[T any] struct {
	buf *RingBuffer[T]
}

// Push appends the given item to the ring buffer.
// It returns ErrFull if the ring buffer is full.
func (p *Producer[T]) Push(item T) error {
	return p.buf.Push(item)
}

// WriteAvailable returns the number of free slots in the ring buffer.
func (p *Producer[T]) WriteAvailable() int {
	return p.buf.WriteAvailable()
}

// IsFull returns whether the ring buffer is full.
func (p *Producer[T]) IsFull() bool {
	return p.buf.IsFull()
}

// Cap returns the capacity of the ring buffer.
func (p *Producer[T]) Cap() int {
	return p.buf.Cap()
}

// Consumer is the read side of a ring buffer.
// At most one goroutine at a time may use it.
type Consumer[T any] struct {
	buf *RingBuffer[T]
}

// Pop removes and returns the oldest item in the ring buffer.
// It returns ErrEmpty if the ring buffer is empty.
func (c *Consumer[T]) Pop() (T, error) {
	return c.buf.Pop()
}

// ReadAvailable returns the number of items in the ring buffer.
func (c *Consumer[T]) ReadAvailable() int {
	return c.buf.ReadAvailable()
}

// IsEmpty returns whether the ring buffer is empty.
func (c *Consumer[T]) IsEmpty() bool {
	return c.buf.IsEmpty()
}

// Cap returns the capacity of the ring buffer.
func (c *Consumer[T]) Cap() int {
	return c.buf.Cap()
}

// NewPair returns the producer and consumer sides of a new ring buffer
// with the given capacity. Handing each side to its own goroutine
// enforces the single-producer single-consumer discipline.
func NewPair[T any](capacity int) (*Producer[T], *Consumer[T], error) {
	buf, err := NewRingBuffer[T](capacity)
	if err != nil {
		return nil, nil, err
	}

	return &Producer[T]{buf: buf}, &Consumer[T]{buf: buf}, nil
}
