// Package sink renders what the receiver produces: audio to the speaker or a
// WAV file, video frames to an ffplay window or PNG snapshots.
package sink

import (
	"errors"

	"hackrf-receiver/internal/pal"
)

// AudioSink consumes mono float32 audio chunks. WriteAudio may block to
// apply backpressure; it must not retain the slice after returning.
type AudioSink interface {
	WriteAudio(samples []float32) error
	Close() error
}

// VideoSink consumes decoded frames.
type VideoSink interface {
	WriteFrame(f *pal.Frame) error
	Close() error
}

// Discard drops all audio.
var Discard AudioSink = discard{}

type discard struct{}

func (discard) WriteAudio([]float32) error { return nil }
func (discard) Close() error               { return nil }

// MultiAudio fans audio out to several sinks in order.
type MultiAudio []AudioSink

// WriteAudio writes to every sink and returns the first error.
func (m MultiAudio) WriteAudio(samples []float32) error {
	for _, s := range m {
		if err := s.WriteAudio(samples); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink.
func (m MultiAudio) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// MultiVideo fans frames out to several sinks in order.
type MultiVideo []VideoSink

// WriteFrame writes to every sink and returns the first error.
func (m MultiVideo) WriteFrame(f *pal.Frame) error {
	for _, s := range m {
		if err := s.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink.
func (m MultiVideo) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
