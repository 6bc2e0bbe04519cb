package main

import (
	"testing"

	"hackrf-receiver/internal/config"
	"hackrf-receiver/internal/demod"
	"hackrf-receiver/internal/receiver"
	"hackrf-receiver/internal/sink"
)

func TestOpenAudio_SpeakerRunsAtProducedRate(t *testing.T) {
	var opened []int
	saved := newSpeaker
	newSpeaker = func(sampleRate, bufferSize int, volume float64) (sink.AudioSink, error) {
		opened = append(opened, sampleRate)
		return sink.Discard, nil
	}
	defer func() { newSpeaker = saved }()

	for _, mode := range []demod.Mode{demod.ModeFM, demod.ModeAM, demod.ModeNFM, demod.ModePAL} {
		cfg := config.New()
		cfg.Mode = mode
		proc, err := receiver.NewProcessor(cfg)
		if err != nil {
			t.Fatal(err)
		}

		opened = opened[:0]
		audio, err := openAudio(cfg, proc.AudioRate())
		if err != nil {
			t.Fatal(err)
		}
		audio.Close()
		if len(opened) != 1 || opened[0] != proc.AudioRate() {
			t.Errorf("%s: speaker opened at %v, processor produces %d Hz", mode, opened, proc.AudioRate())
		}
	}
}

func TestProcessor_OutputMatchesAudioRate(t *testing.T) {
	cfg := config.New()
	proc, err := receiver.NewProcessor(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// One second of a steady carrier at 2 MS/s.
	raw := make([]byte, 2*cfg.SampleRate())
	for i := 0; i < len(raw); i += 2 {
		raw[i] = 64
	}
	produced := 0
	for i := 0; i < len(raw); i += 256 * 1024 {
		audio, _ := proc.Process(raw[i:min(i+256*1024, len(raw))])
		produced += len(audio)
	}
	if diff := produced - proc.AudioRate(); diff < -2 || diff > 2 {
		t.Errorf("One second produced %d samples, speaker consumes %d per second", produced, proc.AudioRate())
	}
}
