package main

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hackrf-receiver/internal/config"
	"hackrf-receiver/internal/demod"
	"hackrf-receiver/internal/metrics"
	"hackrf-receiver/internal/receiver"
	"hackrf-receiver/internal/sink"
	"hackrf-receiver/internal/transport"
)

// run streams src through a processor for cfg until it ends or ctx is done.
func run(ctx context.Context, cfg *config.Config, src transport.Source) error {
	proc, err := receiver.NewProcessor(cfg)
	if err != nil {
		src.Close()
		return err
	}

	audio, err := openAudio(cfg, proc.AudioRate())
	if err != nil {
		src.Close()
		return err
	}
	defer func() {
		if err := audio.Close(); err != nil {
			log.Printf("Closing audio: %v", err)
		}
	}()

	opts := receiver.Options{Audio: audio}
	if cfg.Mode == demod.ModePAL {
		video, err := openVideo(cfg)
		if err != nil {
			src.Close()
			return err
		}
		if video != nil {
			defer video.Close()
			opts.Video = video
		}
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts.Metrics = metrics.New(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	session := receiver.NewSession(proc, src, opts)
	err = session.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Println("Interrupted, shutting down.")
		return nil
	case errors.Is(err, io.EOF):
		log.Println("End of stream.")
		return nil
	}
	return err
}

// newSpeaker opens the system audio output.
var newSpeaker = func(sampleRate, bufferSize int, volume float64) (sink.AudioSink, error) {
	return sink.NewSpeaker(sampleRate, bufferSize, volume)
}

// openAudio builds the configured audio sinks. Both the speaker and the
// recorder run at the rate the processor actually produces, which is the
// configured output rate rounded by integer decimation.
func openAudio(cfg *config.Config, effectiveRate int) (sink.AudioSink, error) {
	var sinks sink.MultiAudio
	if cfg.Audio.Speaker {
		speaker, err := newSpeaker(effectiveRate, cfg.RingBufferSize, cfg.Audio.Volume)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, speaker)
	}
	if cfg.Audio.RecordPath != "" {
		rec, err := sink.NewWAVRecorder(cfg.Audio.RecordPath, effectiveRate)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, rec)
	}
	if len(sinks) == 0 {
		return sink.Discard, nil
	}
	return sinks, nil
}

// openVideo builds the configured video sinks, or nil if there are none.
func openVideo(cfg *config.Config) (sink.VideoSink, error) {
	var sinks sink.MultiVideo
	if cfg.Video.FFplay {
		ff, err := sink.StartFFplay("PAL-B/G Receiver")
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ff)
	}
	if cfg.Video.SnapshotDir != "" {
		snaps, err := sink.NewSnapshots(cfg.Video.SnapshotDir, cfg.Video.SnapshotEvery)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, snaps)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}
