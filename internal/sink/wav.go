package sink

import (
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVRecorder writes audio to a 16-bit mono PCM WAV file.
type WAVRecorder struct {
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	clipped int64
}

// NewWAVRecorder creates path and writes the header for sampleRate.
func NewWAVRecorder(path string, sampleRate int) (*WAVRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	log.Printf("Recording audio to %s at %d Hz", path, sampleRate)
	return &WAVRecorder{
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, 16, 1, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// WriteAudio converts samples to 16-bit PCM, clipping at full scale.
func (w *WAVRecorder) WriteAudio(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, v := range samples {
		s := int(v * 32767)
		if s > 32767 {
			w.clipped++
			s = 32767
		} else if s < -32768 {
			w.clipped++
			s = -32768
		}
		w.buf.Data[i] = s
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return nil
}

// Clipped returns the number of samples clipped so far.
func (w *WAVRecorder) Clipped() int64 {
	return w.clipped
}

// Close finalizes the WAV header and closes the file.
func (w *WAVRecorder) Close() error {
	if w.clipped > 0 {
		log.Printf("[STATS] Total clipped samples: %d", w.clipped)
	}
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	return w.file.Close()
}
