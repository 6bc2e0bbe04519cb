package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"hackrf-receiver/internal/metrics"
	"hackrf-receiver/internal/sink"
	"hackrf-receiver/internal/transport"
)

// ErrSessionEnded is returned by Run when the source stops delivering data.
// The source's error is wrapped alongside it.
var ErrSessionEnded = errors.New("session ended")

// Options selects where a session's output goes. Audio defaults to
// sink.Discard; a nil Video discards frames.
type Options struct {
	Audio   sink.AudioSink
	Video   sink.VideoSink
	Metrics *metrics.Metrics
}

// Session streams one source through one processor. Chunks are processed in
// arrival order on the goroutine calling Run.
type Session struct {
	ID string

	proc    Processor
	src     transport.Source
	audio   sink.AudioSink
	video   sink.VideoSink
	metrics *metrics.Metrics
	slot    *sink.FrameSlot

	mode          string
	chunks        int64
	audioSamples  int64
	frames        uint64
	decodeDropped uint64
}

// NewSession prepares a session. The session takes ownership of src and
// closes it when Run returns; the sinks stay open.
func NewSession(proc Processor, src transport.Source, opts Options) *Session {
	audio := opts.Audio
	if audio == nil {
		audio = sink.Discard
	}
	s := &Session{
		ID:      uuid.NewString(),
		proc:    proc,
		src:     src,
		audio:   audio,
		video:   opts.Video,
		metrics: opts.Metrics,
		mode:    proc.Mode().String(),
	}
	if s.video != nil {
		s.slot = sink.NewFrameSlot()
	}
	return s
}

// DroppedFrames returns the frames lost between decoder and video sink.
func (s *Session) DroppedFrames() uint64 {
	n := s.decodeDropped
	if s.slot != nil {
		n += s.slot.Dropped()
	}
	return n
}

// Run reads and processes chunks until the source fails or ctx is done. It
// returns ctx.Err() on cancellation, otherwise an error wrapping both
// ErrSessionEnded and the source error (io.EOF, transport.ErrTimeout, ...).
func (s *Session) Run(ctx context.Context) error {
	log.Printf("Session %s: starting %s at %d Hz audio", s.ID, s.mode, s.proc.AudioRate())
	s.metrics.SessionStarted(s.mode)
	defer s.src.Close()

	// Closing the source unblocks a pending read.
	stop := context.AfterFunc(ctx, func() { s.src.Close() })
	defer stop()

	var wg sync.WaitGroup
	if s.slot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.drainVideo(ctx)
		}()
		defer wg.Wait()
		defer s.slot.Close()
	}

	err := s.loop(ctx)
	log.Printf("Session %s: stopped after %d chunks, %d audio samples, %d frames (%d dropped): %v",
		s.ID, s.chunks, s.audioSamples, s.frames, s.DroppedFrames(), err)
	return err
}

func (s *Session) loop(ctx context.Context) error {
	for {
		chunk, err := s.src.ReadChunk()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSessionEnded, err)
		}

		start := time.Now()
		audio, frame := s.proc.Process(chunk)
		elapsed := time.Since(start)

		// Output of a chunk finished after cancellation is discarded.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		s.chunks++
		s.metrics.ObserveChunk(s.mode, len(chunk), len(audio), elapsed)

		if len(audio) > 0 {
			if err := s.audio.WriteAudio(audio); err != nil {
				return fmt.Errorf("audio sink: %w", err)
			}
			s.audioSamples += int64(len(audio))
		}
		s.countDecoderDrops()
		if frame != nil {
			s.frames++
			s.metrics.FrameEmitted(s.mode)
			if s.slot != nil && s.slot.Put(frame) {
				s.metrics.FramesDropped(s.mode, 1)
			}
		}
	}
}

// countDecoderDrops picks up frames the decoder replaced within one chunk.
func (s *Session) countDecoderDrops() {
	d, ok := s.proc.(interface{ DroppedFrames() uint64 })
	if !ok {
		return
	}
	if n := d.DroppedFrames(); n > s.decodeDropped {
		s.metrics.FramesDropped(s.mode, int(n-s.decodeDropped))
		s.decodeDropped = n
	}
}

// drainVideo feeds frames from the slot to the video sink until the slot is
// closed and empty.
func (s *Session) drainVideo(ctx context.Context) {
	for {
		f, err := s.slot.Next(ctx)
		if err != nil {
			return
		}
		if err := s.video.WriteFrame(f); err != nil {
			log.Printf("Session %s: video sink: %v", s.ID, err)
		}
	}
}
