// Package pal decodes PAL-B/G television from 8-bit IQ: a grayscale picture
// from the AM vision carrier and mono sound from the FM subcarrier 5.5 MHz
// above it.
package pal

import (
	"errors"
	"fmt"
	"log"
	"math"

	"hackrf-receiver/internal/demod"
	"hackrf-receiver/internal/dsp"
)

// PAL-B/G frame structure.
const (
	LineFrequency   = 15625.0 // Hz
	LinesPerFrame   = 625
	FirstActiveLine = 49
	FrameWidth      = 720
	FrameHeight     = LinesPerFrame - FirstActiveLine
)

// Line timing in seconds.
const (
	SyncDuration      = 5e-6
	BackPorchDuration = 6e-6
)

// SyncThreshold is the envelope level below which a sample counts as sync tip.
const SyncThreshold = 0.2

// Sound carrier defaults.
const (
	AudioOffsetHz      = 5.5e6
	DefaultChannelRate = 240_000
	DefaultAudioRate   = 48_000
)

// minChunkBytes is the shortest chunk (two I/Q samples) that is decoded.
const minChunkBytes = 4

// ErrInvalidConfig is returned for configurations that cannot be decoded.
var ErrInvalidConfig = errors.New("invalid PAL decoder config")

// Config describes one PAL decoding session.
type Config struct {
	// SampleRate is the IQ input rate in Hz.
	SampleRate int
	// AudioRate is the requested sound output rate in Hz.
	AudioRate int
	// AudioOffsetHz is the sound carrier offset from the vision carrier.
	AudioOffsetHz float64
	// DeemphasisTau is the sound de-emphasis time constant in seconds.
	DeemphasisTau float64
	// ChannelRate is the rate the shifted sound carrier is filtered down to
	// before FM detection. Zero detects at the full sample rate.
	ChannelRate int
	// TargetAmplitude is the per-block sound peak after normalization. Zero
	// disables normalization.
	TargetAmplitude float32
}

// DefaultConfig returns the PAL-B/G settings for sampleRate.
func DefaultConfig(sampleRate int) Config {
	return Config{
		SampleRate:      sampleRate,
		AudioRate:       DefaultAudioRate,
		AudioOffsetHz:   AudioOffsetHz,
		DeemphasisTau:   demod.PALDeemphasis,
		ChannelRate:     DefaultChannelRate,
		TargetAmplitude: demod.FMTarget,
	}
}

// Decoder holds the video line state machine and the sound demodulator of
// one PAL session. It is not safe for concurrent use.
type Decoder struct {
	cfg Config

	samplesPerLine int
	activeStart    int

	// Pulse widths in samples: horizontal sync tips and vertical broad pulses.
	minSync, maxSync   int
	minBroad, maxBroad int

	line     int
	cursor   int // expected start of the next line in leftover
	inVSync  bool
	leftover []float32
	frame    []byte
	emitted  uint64
	dropped  uint64
	carry    []byte

	nco   *dsp.NCO
	sound *demod.Demodulator
}

// New creates a PAL decoder.
func New(cfg Config) (*Decoder, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, cfg.SampleRate)
	}
	if cfg.AudioRate <= 0 {
		return nil, fmt.Errorf("%w: audio rate %d", ErrInvalidConfig, cfg.AudioRate)
	}
	samplesPerLine := int(math.Round(float64(cfg.SampleRate) / LineFrequency))
	activeStart := int(float64(cfg.SampleRate)*SyncDuration) + int(float64(cfg.SampleRate)*BackPorchDuration)
	if samplesPerLine < 2 || activeStart >= samplesPerLine {
		return nil, fmt.Errorf("%w: %d Hz is too slow for PAL lines", ErrInvalidConfig, cfg.SampleRate)
	}

	soundCfg := demod.FMConfig(cfg.SampleRate, cfg.AudioRate)
	soundCfg.DeemphasisTau = cfg.DeemphasisTau
	soundCfg.ChannelRate = cfg.ChannelRate
	soundCfg.TargetAmplitude = cfg.TargetAmplitude
	sound, err := demod.New(soundCfg)
	if err != nil {
		return nil, fmt.Errorf("sound demodulator: %w", err)
	}

	log.Printf("PAL decoder initialized: %d Hz, %d samples/line, active video from sample %d",
		cfg.SampleRate, samplesPerLine, activeStart)

	syncSamples := int(float64(cfg.SampleRate) * SyncDuration)
	return &Decoder{
		cfg:            cfg,
		samplesPerLine: samplesPerLine,
		activeStart:    activeStart,
		minSync:        max(syncSamples/2, 1),
		maxSync:        max(2*syncSamples, 1),
		minBroad:       max(samplesPerLine/4, 1),
		maxBroad:       samplesPerLine / 2,
		frame:          make([]byte, FrameWidth*FrameHeight),
		nco:            dsp.NewNCO(-cfg.AudioOffsetHz, cfg.SampleRate),
		sound:          sound,
	}, nil
}

// SamplesPerLine returns the number of IQ samples consumed per video line.
func (d *Decoder) SamplesPerLine() int {
	return d.samplesPerLine
}

// LineIndex returns the index of the next line to be assembled, 0..624.
func (d *Decoder) LineIndex() int {
	return d.line
}

// AudioRate returns the effective sound sample rate.
func (d *Decoder) AudioRate() int {
	return d.sound.AudioRate()
}

// DroppedFrames counts frames that were replaced by a newer frame completed
// within the same Decode call.
func (d *Decoder) DroppedFrames() uint64 {
	return d.dropped
}

// Decode feeds one chunk of interleaved signed 8-bit I/Q bytes through both
// the video and the sound path. It returns the sound produced by this chunk
// (possibly nil) and the newest frame completed by it (usually nil).
func (d *Decoder) Decode(chunk []byte) ([]float32, *Frame) {
	chunk, d.carry = dsp.AlignIQ(d.carry, chunk)
	if len(chunk) < minChunkBytes {
		d.carry = append(append([]byte(nil), chunk...), d.carry...)
		return nil, nil
	}
	iq := dsp.BytesToIQ(chunk)

	frame := d.decodeVideo(iq)
	audio := d.sound.ProcessIQ(d.nco.Mix(iq))
	return audio, frame
}

// decodeVideo appends the envelope to the line buffer and assembles every
// complete line. A line starts at the falling edge of its sync pulse when one
// is found near the expected position; otherwise lines are cut by count.
func (d *Decoder) decodeVideo(iq []complex128) *Frame {
	d.leftover = append(d.leftover, dsp.Envelope(iq)...)

	var frame *Frame
	for len(d.leftover)-d.cursor >= d.samplesPerLine {
		start, ok := d.lineStart()
		if !ok {
			break
		}
		d.checkVSync(start)
		d.drawLine(d.leftover[start : start+d.samplesPerLine])
		d.cursor = start + d.samplesPerLine

		d.line++
		if d.line >= LinesPerFrame {
			d.line = 0
			if frame != nil {
				d.dropped++
			}
			frame = d.emitFrame()
		}
	}

	// Keep the samples the next search may look back at.
	keep := max(d.cursor-d.minSync-1, 0)
	n := copy(d.leftover, d.leftover[keep:])
	d.leftover = d.leftover[:n]
	d.cursor -= keep
	return frame
}

// lineStart searches one line's worth of samples around the cursor for a
// horizontal sync pulse and returns where the next line begins. It returns
// false when more samples are needed to decide.
func (d *Decoder) lineStart() (int, bool) {
	from := max(d.cursor-d.minSync, 0)
	to := from + d.samplesPerLine
	for i := from; i < to; i++ {
		if !d.fallingEdge(i) {
			continue
		}
		n, ok := d.runLength(i, d.maxSync+1)
		if !ok {
			return 0, false
		}
		if n >= d.minSync && n <= d.maxSync {
			if i+d.samplesPerLine > len(d.leftover) {
				return 0, false
			}
			return i, true
		}
		i += n
	}
	return d.cursor, true
}

// checkVSync realigns the line counter when the line at start opens the
// first field's vertical sync. The partial frame assembled so far is dropped.
func (d *Decoder) checkVSync(start int) {
	broad := d.firstBroadPulse(start)
	if broad >= 0 && !d.inVSync && broad < d.samplesPerLine/4 && d.line != 0 {
		d.line = 0
		clear(d.frame)
	}
	d.inVSync = broad >= 0
}

// firstBroadPulse returns the offset of the first vertical sync broad pulse
// inside the line at start, or -1.
func (d *Decoder) firstBroadPulse(start int) int {
	end := start + d.samplesPerLine
	for i := start; i < end; i++ {
		if !d.fallingEdge(i) {
			continue
		}
		n, _ := d.runLength(i, end-i)
		if i+n < end && n >= d.minBroad && n <= d.maxBroad {
			return i - start
		}
		i += n
	}
	return -1
}

// fallingEdge reports whether sync tip starts at leftover[i]. The first
// sample of the stream has no predecessor and counts as an edge when low.
func (d *Decoder) fallingEdge(i int) bool {
	if d.leftover[i] >= SyncThreshold {
		return false
	}
	return i == 0 || d.leftover[i-1] >= SyncThreshold
}

// runLength counts sync tip samples from i, up to limit. It returns false
// when the buffer ends before the run does.
func (d *Decoder) runLength(i, limit int) (int, bool) {
	for n := 0; n < limit; n++ {
		if i+n >= len(d.leftover) {
			return n, false
		}
		if d.leftover[i+n] >= SyncThreshold {
			return n, true
		}
	}
	return limit, true
}

// drawLine writes the active part of the current line into the frame buffer.
// Lines in the vertical blanking interval are skipped.
func (d *Decoder) drawLine(line []float32) {
	if d.line < FirstActiveLine || d.line >= LinesPerFrame {
		return
	}
	pixels := dsp.ResampleLinear(line[d.activeStart:], FrameWidth)
	row := d.frame[(d.line-FirstActiveLine)*FrameWidth:][:FrameWidth]
	for x, v := range pixels {
		row[x] = byte(min(max(v, 0), 1) * 255)
	}
}

// emitFrame hands out a copy of the frame buffer and clears it for the next cycle.
func (d *Decoder) emitFrame() *Frame {
	f := &Frame{
		Width:  FrameWidth,
		Height: FrameHeight,
		Pix:    make([]byte, len(d.frame)),
		Index:  d.emitted,
	}
	copy(f.Pix, d.frame)
	clear(d.frame)
	d.emitted++
	return f
}

// Reset discards the partial frame, buffered samples, and all filter state.
func (d *Decoder) Reset() {
	d.line = 0
	d.cursor = 0
	d.inVSync = false
	d.leftover = d.leftover[:0]
	d.carry = nil
	clear(d.frame)
	d.nco.Reset()
	d.sound.Reset()
}
