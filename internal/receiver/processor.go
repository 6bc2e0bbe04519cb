// Package receiver connects an IQ source to a demodulator or PAL decoder and
// routes what it produces to the audio and video sinks.
package receiver

import (
	"fmt"

	"hackrf-receiver/internal/config"
	"hackrf-receiver/internal/demod"
	"hackrf-receiver/internal/pal"
)

// Processor turns IQ chunks into audio and, for television, frames.
// Implementations keep their filter state across calls and are owned by a
// single goroutine.
type Processor interface {
	Process(chunk []byte) (audio []float32, frame *pal.Frame)
	Mode() demod.Mode
	AudioRate() int
	Reset()
}

// audioProcessor adapts an AM, FM or NFM demodulator.
type audioProcessor struct {
	*demod.Demodulator
}

func (a audioProcessor) Process(chunk []byte) ([]float32, *pal.Frame) {
	return a.Demodulator.Process(chunk), nil
}

// tvProcessor adapts the PAL decoder.
type tvProcessor struct {
	*pal.Decoder
}

func (t tvProcessor) Process(chunk []byte) ([]float32, *pal.Frame) {
	return t.Decode(chunk)
}

func (t tvProcessor) Mode() demod.Mode {
	return demod.ModePAL
}

// NewProcessor builds the processor for cfg.Mode at cfg.SampleRate().
func NewProcessor(cfg *config.Config) (Processor, error) {
	rate := cfg.SampleRate()
	switch cfg.Mode {
	case demod.ModePAL:
		palCfg := pal.DefaultConfig(rate)
		palCfg.AudioRate = cfg.OutputSampleRate
		palCfg.ChannelRate = cfg.IntermediateRate
		d, err := pal.New(palCfg)
		if err != nil {
			return nil, err
		}
		return tvProcessor{d}, nil
	case demod.ModeAM:
		return newAudioProcessor(demod.AMConfig(rate, cfg.OutputSampleRate))
	case demod.ModeNFM:
		dcfg := demod.NFMConfig(rate, cfg.OutputSampleRate)
		if cfg.NFMDeemphasis {
			dcfg.DeemphasisTau = demod.BroadcastDeemphasis
		}
		return newAudioProcessor(dcfg)
	case demod.ModeFM:
		return newAudioProcessor(demod.FMConfig(rate, cfg.OutputSampleRate))
	default:
		return nil, fmt.Errorf("unsupported mode %s", cfg.Mode)
	}
}

func newAudioProcessor(cfg demod.Config) (Processor, error) {
	d, err := demod.New(cfg)
	if err != nil {
		return nil, err
	}
	return audioProcessor{d}, nil
}
