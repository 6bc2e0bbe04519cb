package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hackrf-receiver/internal/control"
	"hackrf-receiver/internal/demod"
)

// ErrInvalid is returned by Validate for settings that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Default sample rates per mode.
const (
	DefaultAudioSampleRate = 2_000_000
	DefaultTVSampleRate    = 16_000_000
)

// Config holds all the configuration parameters for the application.
type Config struct {
	Mode demod.Mode `yaml:"mode"`

	// IQSampleRate is the front-end sample rate in Hz. Zero selects the
	// mode default (2 MS/s for audio modes, 16 MS/s for PAL).
	IQSampleRate     int `yaml:"iq_sample_rate"`
	OutputSampleRate int `yaml:"output_sample_rate"`
	// IntermediateRate is the channel-filter rate used ahead of the PAL sound
	// discriminator.
	IntermediateRate int  `yaml:"intermediate_rate"`
	NFMDeemphasis    bool `yaml:"nfm_deemphasis"`
	RingBufferSize   int  `yaml:"ring_buffer_size"`

	Server  ServerConfig  `yaml:"server"`
	Control ControlConfig `yaml:"control"`
	Audio   AudioConfig   `yaml:"audio"`
	Video   VideoConfig   `yaml:"video"`

	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ServerConfig describes the IQ data connection.
type ServerConfig struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ChunkSize   int           `yaml:"chunk_size"`
}

// ControlConfig describes the front-end control connection and the tuning
// parameters sent over it.
type ControlConfig struct {
	Address     string `yaml:"address"`
	Enabled     bool   `yaml:"enabled"`
	FrequencyHz int64  `yaml:"frequency_hz"`
	VGAGain     int    `yaml:"vga_gain"`
	LNAGain     int    `yaml:"lna_gain"`
	RxAmpGain   int    `yaml:"rx_amp_gain"`
}

// AudioConfig selects the audio sinks.
type AudioConfig struct {
	Speaker    bool    `yaml:"speaker"`
	Volume     float64 `yaml:"volume"`
	RecordPath string  `yaml:"record_path"`
}

// VideoConfig selects the video sinks.
type VideoConfig struct {
	FFplay        bool   `yaml:"ffplay"`
	SnapshotDir   string `yaml:"snapshot_dir"`
	SnapshotEvery int    `yaml:"snapshot_every"`
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		Mode:             demod.ModeFM,
		OutputSampleRate: 48_000,
		IntermediateRate: 240_000,
		RingBufferSize:   2 * 48_000, // 2s of audio
		Server: ServerConfig{
			Address:     "127.0.0.1:5000",
			DialTimeout: 5 * time.Second,
			ReadTimeout: 5 * time.Second,
			ChunkSize:   256 * 1024,
		},
		Control: ControlConfig{
			Address:     "127.0.0.1:5001",
			FrequencyHz: 100_000_000,
			VGAGain:     20,
			LNAGain:     16,
		},
		Audio: AudioConfig{
			Speaker: true,
			Volume:  1.0,
		},
		Video: VideoConfig{
			SnapshotEvery: 25,
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SampleRate returns the IQ sample rate, applying the mode default.
func (c *Config) SampleRate() int {
	if c.IQSampleRate > 0 {
		return c.IQSampleRate
	}
	if c.Mode == demod.ModePAL {
		return DefaultTVSampleRate
	}
	return DefaultAudioSampleRate
}

// Validate rejects settings that would fail at session start.
func (c *Config) Validate() error {
	switch c.Mode {
	case demod.ModeFM, demod.ModeAM, demod.ModeNFM, demod.ModePAL:
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalid, c.Mode)
	}
	if c.IQSampleRate < 0 {
		return fmt.Errorf("%w: iq_sample_rate %d", ErrInvalid, c.IQSampleRate)
	}
	if c.OutputSampleRate <= 0 {
		return fmt.Errorf("%w: output_sample_rate %d", ErrInvalid, c.OutputSampleRate)
	}
	if c.IntermediateRate < 0 {
		return fmt.Errorf("%w: intermediate_rate %d", ErrInvalid, c.IntermediateRate)
	}
	if c.RingBufferSize < 2 {
		return fmt.Errorf("%w: ring_buffer_size %d", ErrInvalid, c.RingBufferSize)
	}
	if c.Server.ChunkSize < 2 {
		return fmt.Errorf("%w: server.chunk_size %d", ErrInvalid, c.Server.ChunkSize)
	}
	if c.Server.ReadTimeout < 0 || c.Server.DialTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	}
	if c.Control.Enabled {
		for _, cmd := range c.Control.Commands(c.SampleRate()) {
			if err := cmd.Validate(); err != nil {
				return fmt.Errorf("%w: control: %v", ErrInvalid, err)
			}
		}
	}
	if c.Audio.Volume < 0 {
		return fmt.Errorf("%w: audio.volume %f", ErrInvalid, c.Audio.Volume)
	}
	if c.Video.SnapshotEvery < 0 {
		return fmt.Errorf("%w: video.snapshot_every %d", ErrInvalid, c.Video.SnapshotEvery)
	}
	return nil
}

// Commands returns the tuning commands that configure the front end for a
// session at sampleRate.
func (c ControlConfig) Commands(sampleRate int) []control.Command {
	return []control.Command{
		control.SetSampleRate(int64(sampleRate)),
		control.SetFrequency(c.FrequencyHz),
		control.SetVGAGain(c.VGAGain),
		control.SetLNAGain(c.LNAGain),
		control.SetRxAmpGain(c.RxAmpGain),
	}
}
