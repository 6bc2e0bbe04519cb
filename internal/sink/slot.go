package sink

import (
	"context"
	"errors"
	"sync"

	"hackrf-receiver/internal/pal"
)

// ErrSlotClosed is returned by Next once the slot is closed and empty.
var ErrSlotClosed = errors.New("frame slot closed")

// FrameSlot hands frames from the decoder to a slower video consumer. It
// holds one frame; a new frame replaces an unread one, which is counted as
// dropped. Put never blocks.
type FrameSlot struct {
	mu      sync.Mutex
	frame   *pal.Frame
	closed  bool
	dropped uint64
	ready   chan struct{}
}

// NewFrameSlot returns an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{ready: make(chan struct{}, 1)}
}

// Put stores f, replacing any unread frame. It reports whether a frame was
// dropped. Frames put after Close are ignored.
func (s *FrameSlot) Put(f *pal.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	dropped := s.frame != nil
	if dropped {
		s.dropped++
	}
	s.frame = f
	select {
	case s.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Next blocks until a frame is available and takes it.
func (s *FrameSlot) Next(ctx context.Context) (*pal.Frame, error) {
	for {
		s.mu.Lock()
		f := s.frame
		s.frame = nil
		closed := s.closed
		s.mu.Unlock()

		if f != nil {
			return f, nil
		}
		if closed {
			return nil, ErrSlotClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		}
	}
}

// Dropped returns the number of frames replaced before they were read.
func (s *FrameSlot) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close wakes the consumer. A frame still in the slot can be taken.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ready)
}
