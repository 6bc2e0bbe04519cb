package transport

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// File reads IQ chunks from a recording: raw signed 8-bit pairs (.iq, .cs8,
// .bin) or a two-channel 8 or 16-bit WAV file.
type File struct {
	file    *os.File
	decoder *wav.Decoder
	pcm     *audio.IntBuffer
	buf     []byte
	rate    int
}

// OpenFile opens path for chunked reading. chunkSize is in bytes and is
// clamped to MaxChunkSize.
func OpenFile(path string, chunkSize int) (*File, error) {
	if chunkSize < 2 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	chunkSize &^= 1

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open IQ file: %w", err)
	}
	f := &File{file: file, buf: make([]byte, chunkSize)}

	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		log.Printf("Reading raw IQ from %s", path)
		return f, nil
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek to PCM data: %w", err)
	}
	log.Printf("Reading IQ from WAV file: Bit Depth: %d, Sample Rate: %d, Channels: %d",
		decoder.BitDepth, decoder.SampleRate, decoder.NumChans)

	if decoder.NumChans != 2 {
		file.Close()
		return nil, fmt.Errorf("IQ WAV files need 2 channels, got %d", decoder.NumChans)
	}
	if decoder.BitDepth != 8 && decoder.BitDepth != 16 {
		file.Close()
		return nil, fmt.Errorf("unsupported WAV bit depth %d", decoder.BitDepth)
	}

	f.decoder = decoder
	f.rate = int(decoder.SampleRate)
	f.pcm = &audio.IntBuffer{
		Format: decoder.Format(),
		Data:   make([]int, chunkSize), // one int per I or Q value
	}
	return f, nil
}

// SampleRate returns the rate stored in a WAV header, or 0 for raw files.
func (f *File) SampleRate() int {
	return f.rate
}

// ReadChunk returns the next chunk of signed 8-bit I/Q bytes.
func (f *File) ReadChunk() ([]byte, error) {
	if f.decoder != nil {
		return f.readWAV()
	}
	n, err := f.file.Read(f.buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, f.buf[:n])
		return chunk, nil
	}
	if err == nil || err == io.EOF {
		return nil, io.EOF
	}
	return nil, fmt.Errorf("IQ file read failed: %w", err)
}

// readWAV converts PCM samples to signed 8-bit values. 8-bit WAV data is
// unsigned with a 128 offset; 16-bit data keeps its top byte.
func (f *File) readWAV() ([]byte, error) {
	n, err := f.decoder.PCMBuffer(f.pcm)
	if n == 0 {
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("WAV read failed: %w", err)
	}

	chunk := make([]byte, n)
	for i, v := range f.pcm.Data[:n] {
		if f.decoder.BitDepth == 8 {
			chunk[i] = byte(int8(v - 128))
		} else {
			chunk[i] = byte(int8(v >> 8))
		}
	}
	return chunk, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.file.Close()
}
