package ringbuffer

import (
	"errors"
	"sync"
)

// ErrClosed is returned when writing to a closed buffer.
var ErrClosed = errors.New("write to closed ring buffer")

// RingBuffer is a concurrent-safe blocking ring buffer of samples.
type RingBuffer[T any] struct {
	buf        []T
	size       int
	readIndex  int
	writeIndex int
	closed     bool
	mu         sync.Mutex
	cond       *sync.Cond
}

// New creates a new RingBuffer that can hold size-1 samples.
func New[T any](size int) *RingBuffer[T] {
	if size < 2 {
		size = 2
	}
	rb := &RingBuffer[T]{
		buf:  make([]T, size),
		size: size,
	}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// AvailableRead returns the number of samples available for reading.
func (rb *RingBuffer[T]) AvailableRead() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableRead()
}

func (rb *RingBuffer[T]) availableWrite() int {
	return rb.size - rb.availableRead() - 1
}

func (rb *RingBuffer[T]) availableRead() int {
	if rb.writeIndex >= rb.readIndex {
		return rb.writeIndex - rb.readIndex
	}
	return rb.size - rb.readIndex + rb.writeIndex
}

// Close marks the buffer as closed, indicating no more writes will occur.
// It broadcasts to all waiting readers and writers to wake them up.
func (rb *RingBuffer[T]) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}

// Write adds data to the buffer, blocking until space is available. It
// returns ErrClosed if the buffer is closed before all data was written.
func (rb *RingBuffer[T]) Write(data []T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for i := 0; i < len(data); {
		// Wait for space to become available.
		for !rb.closed && rb.availableWrite() == 0 {
			rb.cond.Wait()
		}
		if rb.closed {
			return ErrClosed
		}

		// Copy up to the end of the buffer or up to the free space, whichever is smaller.
		end := min(rb.size, rb.writeIndex+rb.availableWrite())
		written := copy(rb.buf[rb.writeIndex:end], data[i:])
		rb.writeIndex = (rb.writeIndex + written) % rb.size
		i += written
		rb.cond.Broadcast() // Signal reader that data is available.
	}
	return nil
}

// ReadSome fills dst with whatever is available, blocking until at least one
// sample can be read. It returns 0 once the buffer is closed and drained.
func (rb *RingBuffer[T]) ReadSome(dst []T) int {
	if len(dst) == 0 {
		return 0
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for !rb.closed && rb.availableRead() == 0 {
		rb.cond.Wait()
	}
	n := min(len(dst), rb.availableRead())
	rb.take(dst[:n])
	return n
}

// take copies len(dst) samples out of the buffer; the caller holds the lock.
func (rb *RingBuffer[T]) take(dst []T) {
	readSize := len(dst)
	if readSize == 0 {
		return
	}
	if rb.readIndex+readSize <= rb.size {
		copy(dst, rb.buf[rb.readIndex:rb.readIndex+readSize])
	} else {
		part1 := rb.size - rb.readIndex
		copy(dst, rb.buf[rb.readIndex:])
		copy(dst[part1:], rb.buf[0:readSize-part1])
	}
	rb.readIndex = (rb.readIndex + readSize) % rb.size
	rb.cond.Broadcast()
}
