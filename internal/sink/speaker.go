package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"

	"hackrf-receiver/internal/ringbuffer"
)

// Speaker plays audio through the system output. Samples are queued in a
// ring buffer that oto drains from its own goroutine; WriteAudio blocks
// while the buffer is full.
type Speaker struct {
	rb     *ringbuffer.RingBuffer[float32]
	player *oto.Player
	volume float32

	// drainTimeout bounds how long Close waits for queued audio to play.
	drainTimeout time.Duration
}

// NewSpeaker opens the audio device for mono float32 output at sampleRate.
// bufferSize is the ring buffer capacity in samples.
func NewSpeaker(sampleRate, bufferSize int, volume float64) (*Speaker, error) {
	// Setup Oto v3 context
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	<-ready

	rb := ringbuffer.New[float32](bufferSize)
	player := ctx.NewPlayer(&sampleReader{rb: rb})
	player.Play()

	log.Printf("Audio output started: %d Hz, %d sample buffer", sampleRate, bufferSize)
	return &Speaker{
		rb:           rb,
		player:       player,
		volume:       float32(volume),
		drainTimeout: time.Duration(bufferSize)*time.Second/time.Duration(sampleRate) + 500*time.Millisecond,
	}, nil
}

// WriteAudio queues samples for playback.
func (s *Speaker) WriteAudio(samples []float32) error {
	if s.volume != 1 {
		scaled := make([]float32, len(samples))
		for i, v := range samples {
			scaled[i] = v * s.volume
		}
		samples = scaled
	}
	return s.rb.Write(samples)
}

// Close stops accepting audio, waits for the ring buffer and the player's
// own buffer to play out, then closes the player.
func (s *Speaker) Close() error {
	s.rb.Close()
	queued := func() int { return s.rb.AvailableRead() + s.player.BufferedSize() }
	if !waitDrained(queued, s.drainTimeout, 10*time.Millisecond) {
		log.Printf("Audio output closed with %d samples still queued", s.rb.AvailableRead())
	}
	return s.player.Close()
}

// waitDrained polls queued until it reports zero. It returns false if that
// does not happen within timeout.
func waitDrained(queued func() int, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for queued() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
	return true
}

// sampleReader exposes a float32 ring buffer as a little-endian byte stream.
type sampleReader struct {
	rb      *ringbuffer.RingBuffer[float32]
	samples []float32
}

// Read blocks until at least one sample is queued. It returns io.EOF once
// the ring buffer is closed and empty.
func (r *sampleReader) Read(p []byte) (int, error) {
	want := len(p) / 4
	if want == 0 {
		return 0, nil
	}
	if cap(r.samples) < want {
		r.samples = make([]float32, want)
	}
	n := r.rb.ReadSome(r.samples[:want])
	if n == 0 {
		return 0, io.EOF
	}
	for i, v := range r.samples[:n] {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return n * 4, nil
}
