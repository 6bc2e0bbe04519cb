package ringbuffer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRingBuffer_ConcurrentReadWrite(t *testing.T) {
	// Use a large number of samples to ensure goroutines have to wait for each other,
	// forcing the wait conditions in ReadSome and Write to be exercised.
	const totalSamples = 200000
	const bufferSize = 8192
	const writeChunkSize = 256
	const readChunkSize = 192 // Use different, non-aligned chunk sizes to stress test the logic.

	rb := New[int16](bufferSize)

	// Generate the source data that the writer will send.
	// Using sequential numbers makes it easy to verify correctness later.
	sourceData := make([]int16, totalSamples)
	for i := 0; i < totalSamples; i++ {
		sourceData[i] = int16(i)
	}

	// This slice will hold the data the reader receives.
	// It's protected by a mutex because it's written to from the reader goroutine.
	destData := make([]int16, 0, totalSamples)
	var destMutex sync.Mutex

	var wg sync.WaitGroup
	wg.Add(2)

	// --- Writer Goroutine ---
	go func() {
		defer wg.Done()
		writtenCount := 0
		for writtenCount < totalSamples {
			end := min(writtenCount+writeChunkSize, totalSamples)
			if err := rb.Write(sourceData[writtenCount:end]); err != nil {
				t.Errorf("Write failed: %v", err)
				return
			}
			writtenCount = end
		}
		// Signal that the writer is done.
		rb.Close()
	}()

	// --- Reader Goroutine ---
	go func() {
		defer wg.Done()
		readCount := 0
		chunk := make([]int16, readChunkSize)
		for readCount < totalSamples {
			n := rb.ReadSome(chunk)
			// Zero means the buffer is closed and empty.
			if n == 0 {
				break
			}

			destMutex.Lock()
			destData = append(destData, chunk[:n]...)
			destMutex.Unlock()

			readCount += n
		}
	}()

	// Wait for both the reader and writer to finish their work.
	wg.Wait()

	// --- Verification ---
	if len(destData) != totalSamples {
		t.Fatalf("Data loss detected: expected %d samples, but got %d", totalSamples, len(destData))
	}

	for i := 0; i < totalSamples; i++ {
		if sourceData[i] != destData[i] {
			t.Fatalf("Data corruption at index %d: expected %d, but got %d", i, sourceData[i], destData[i])
		}
	}
}

func TestRingBuffer_ReadSomeFloat32(t *testing.T) {
	rb := New[float32](16)

	done := make(chan []float32)
	go func() {
		var got []float32
		buf := make([]float32, 5)
		for {
			n := rb.ReadSome(buf)
			if n == 0 {
				break
			}
			got = append(got, buf[:n]...)
		}
		done <- got
	}()

	var want []float32
	for i := 0; i < 100; i++ {
		want = append(want, float32(i)/100)
	}
	for i := 0; i < len(want); i += 7 {
		if err := rb.Write(want[i:min(i+7, len(want))]); err != nil {
			t.Fatal(err)
		}
	}
	rb.Close()

	got := <-done
	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Sample %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestRingBuffer_CloseUnblocksWriter(t *testing.T) {
	rb := New[float32](4)
	if err := rb.Write([]float32{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error)
	go func() { errc <- rb.Write([]float32{4}) }()

	time.Sleep(20 * time.Millisecond)
	rb.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Writer still blocked after Close")
	}

	// Buffered samples are still readable after Close.
	if n := rb.AvailableRead(); n != 3 {
		t.Errorf("Expected 3 queued samples, got %d", n)
	}
	buf := make([]float32, 10)
	if n := rb.ReadSome(buf); n != 3 {
		t.Errorf("Expected 3 remaining samples, got %v", buf[:n])
	}
	if n := rb.ReadSome(buf); n != 0 {
		t.Errorf("Expected nothing from a drained closed buffer, got %d samples", n)
	}
	if n := rb.AvailableRead(); n != 0 {
		t.Errorf("Expected an empty buffer, got %d queued", n)
	}
}
