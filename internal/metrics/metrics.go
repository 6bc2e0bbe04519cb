// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hackrf_receiver"

// Metrics holds the receiver's collectors, all labelled by mode. A nil
// *Metrics records nothing.
type Metrics struct {
	chunks        *prometheus.CounterVec
	bytes         *prometheus.CounterVec
	audioSamples  *prometheus.CounterVec
	frames        *prometheus.CounterVec
	framesDropped *prometheus.CounterVec
	sessions      *prometheus.CounterVec
	chunkSeconds  *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := []string{"mode"}
	return &Metrics{
		chunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_total",
				Help:      "IQ chunks processed",
			},
			labels,
		),
		bytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "IQ bytes processed",
			},
			labels,
		),
		audioSamples: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_samples_total",
				Help:      "Audio samples delivered to sinks",
			},
			labels,
		),
		frames: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Video frames completed by the decoder",
			},
			labels,
		),
		framesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Video frames replaced before a sink could take them",
			},
			labels,
		),
		sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Receiver sessions started",
			},
			labels,
		),
		chunkSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chunk_processing_seconds",
				Help:      "Time spent demodulating one IQ chunk",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			labels,
		),
	}
}

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted(mode string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(mode).Inc()
}

// ObserveChunk records one processed chunk.
func (m *Metrics) ObserveChunk(mode string, bytes, audioSamples int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(mode).Inc()
	m.bytes.WithLabelValues(mode).Add(float64(bytes))
	m.audioSamples.WithLabelValues(mode).Add(float64(audioSamples))
	m.chunkSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// FrameEmitted counts a completed frame.
func (m *Metrics) FrameEmitted(mode string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(mode).Inc()
}

// FramesDropped counts n dropped frames.
func (m *Metrics) FramesDropped(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.framesDropped.WithLabelValues(mode).Add(float64(n))
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics available on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
