package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveChunk(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionStarted("fm")
	m.ObserveChunk("fm", 1000, 24, time.Millisecond)
	m.ObserveChunk("fm", 500, 12, time.Millisecond)
	m.ObserveChunk("am", 10, 0, time.Millisecond)

	if got := testutil.ToFloat64(m.chunks.WithLabelValues("fm")); got != 2 {
		t.Errorf("Expected 2 fm chunks, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytes.WithLabelValues("fm")); got != 1500 {
		t.Errorf("Expected 1500 fm bytes, got %v", got)
	}
	if got := testutil.ToFloat64(m.audioSamples.WithLabelValues("fm")); got != 36 {
		t.Errorf("Expected 36 audio samples, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessions.WithLabelValues("fm")); got != 1 {
		t.Errorf("Expected 1 session, got %v", got)
	}
	if got := testutil.CollectAndCount(m.chunkSeconds); got != 2 {
		t.Errorf("Expected histograms for 2 modes, got %d", got)
	}
}

func TestFrames(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.FrameEmitted("pal")
	m.FrameEmitted("pal")
	m.FramesDropped("pal", 3)
	m.FramesDropped("pal", 0)

	if got := testutil.ToFloat64(m.frames.WithLabelValues("pal")); got != 2 {
		t.Errorf("Expected 2 frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.framesDropped.WithLabelValues("pal")); got != 3 {
		t.Errorf("Expected 3 dropped frames, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.SessionStarted("fm")
	m.ObserveChunk("fm", 1, 1, time.Second)
	m.FrameEmitted("pal")
	m.FramesDropped("pal", 1)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveChunk("nfm", 64, 1, time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `hackrf_receiver_chunks_total{mode="nfm"} 1`) {
		t.Errorf("Metric missing from output:\n%s", body)
	}
}
