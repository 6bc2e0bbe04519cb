package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestConn_ReadsUntilEOF(t *testing.T) {
	ln := listen(t)
	payload := make([]byte, 3*MaxChunkSize+123)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write(payload)
		conn.Close()
	}()

	c, err := Dial(context.Background(), ln.Addr().String(), Options{DialTimeout: time.Second, ReadTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got []byte
	for {
		chunk, err := c.ReadChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) > MaxChunkSize {
			t.Fatalf("Chunk of %d bytes exceeds the maximum", len(chunk))
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Received %d bytes, expected %d identical bytes", len(got), len(payload))
	}
}

func TestConn_ChunksAreNotReused(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte{1, 2, 3, 4})
		time.Sleep(50 * time.Millisecond)
		conn.Write([]byte{9, 9, 9, 9})
		conn.Close()
	}()

	c, err := Dial(context.Background(), ln.Addr().String(), Options{DialTimeout: time.Second, ReadTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	first, err := c.ReadChunk()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReadChunk(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, []byte{1, 2, 3, 4}) {
		t.Errorf("First chunk was overwritten: %v", first)
	}
}

func TestConn_Timeout(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	}()

	c, err := Dial(context.Background(), ln.Addr().String(), Options{DialTimeout: time.Second, ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.ReadChunk(); !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestDial_Refused(t *testing.T) {
	ln := listen(t)
	addr := ln.Addr().String()
	ln.Close()

	if _, err := Dial(context.Background(), addr, Options{DialTimeout: time.Second}); err == nil {
		t.Error("Expected an error dialing a closed port")
	}
}

func readAll(t *testing.T, src Source) []byte {
	t.Helper()
	var got []byte
	for {
		chunk, err := src.ReadChunk()
		if errors.Is(err, io.EOF) {
			return got
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, chunk...)
	}
}

func TestOpenFile_Raw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.iq")
	data := []byte{0x7f, 0x81, 0x00, 0x10, 0xf0, 0x05}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenFile(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if f.SampleRate() != 0 {
		t.Errorf("Raw files carry no rate, got %d", f.SampleRate())
	}
	if got := readAll(t, f); !bytes.Equal(got, data) {
		t.Errorf("Expected %v, got %v", data, got)
	}
}

func writeWAV(t *testing.T, bitDepth int, values []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.wav")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(out, 2_000_000, bitDepth, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 2_000_000},
		Data:           values,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenFile_WAV16(t *testing.T) {
	path := writeWAV(t, 16, []int{32512, -32768, 256, -256, 0, 1000})

	f, err := OpenFile(path, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if f.SampleRate() != 2_000_000 {
		t.Errorf("Expected rate from header, got %d", f.SampleRate())
	}
	want := []byte{127, 0x80, 1, 0xff, 0, 3}
	if got := readAll(t, f); !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestOpenFile_WAV8(t *testing.T) {
	path := writeWAV(t, 8, []int{255, 0, 128, 129})

	f, err := OpenFile(path, 1024)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	want := []byte{127, 0x80, 0, 1}
	if got := readAll(t, f); !bytes.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestOpenFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := OpenFile(filepath.Join(dir, "missing.iq"), 1024); err == nil {
		t.Error("Expected an error for a missing file")
	}

	bogus := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(bogus, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(bogus, 1024); err == nil {
		t.Error("Expected an error for an invalid WAV file")
	}
}

type memSource struct {
	chunks [][]byte
}

func (m *memSource) ReadChunk() ([]byte, error) {
	if len(m.chunks) == 0 {
		return nil, io.EOF
	}
	c := m.chunks[0]
	m.chunks = m.chunks[1:]
	return c, nil
}

func (m *memSource) Close() error { return nil }

func TestThrottle_PacesChunks(t *testing.T) {
	// 4 chunks of 1000 samples at 20 kHz take 200 ms.
	src := &memSource{}
	for n := 0; n < 4; n++ {
		src.chunks = append(src.chunks, make([]byte, 2000))
	}
	th := Throttle(context.Background(), src, 20_000)

	start := time.Now()
	got := readAll(t, th)
	elapsed := time.Since(start)

	if len(got) != 8000 {
		t.Errorf("Expected 8000 bytes, got %d", len(got))
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("Throttle too fast: %v", elapsed)
	}
}

func TestThrottle_Canceled(t *testing.T) {
	src := &memSource{chunks: [][]byte{make([]byte, 2000), make([]byte, 2000)}}
	ctx, cancel := context.WithCancel(context.Background())
	th := Throttle(ctx, src, 1) // 1000 s per chunk

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := th.ReadChunk(); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
