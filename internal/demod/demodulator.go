// Package demod turns raw 8-bit IQ chunks into audio. AM, FM and NFM share
// one pipeline whose stages are switched on and off by Config.
package demod

import (
	"errors"
	"fmt"
	"log"

	"hackrf-receiver/internal/dsp"
)

// Default pipeline parameters.
const (
	BroadcastDeemphasis = 75e-6 // broadcast FM
	PALDeemphasis       = 50e-6 // PAL-B/G television sound

	AMTarget  = 0.5
	FMTarget  = 0.5
	NFMTarget = 0.3

	VoiceCutoffHz = 3000.0
	VoiceTaps     = 31

	dcCutoffHz = 20.0
	minTaps    = 31
)

// ErrInvalidConfig is returned for configurations that cannot be streamed.
var ErrInvalidConfig = errors.New("invalid demodulator config")

// Config describes one demodulation pipeline.
type Config struct {
	Mode Mode

	// SampleRate is the IQ input rate in Hz.
	SampleRate int

	// AudioRate is the requested audio rate in Hz. The effective rate is
	// the channel rate divided by floor(channelRate/AudioRate).
	AudioRate int

	// ChannelRate, when non-zero, enables a complex low-pass filter ahead of
	// the detector that decimates the IQ stream to roughly this rate.
	ChannelRate int

	// ChannelCutoffHz is the channel filter cutoff. Zero means 40% of ChannelRate.
	ChannelCutoffHz float64

	// VoiceCutoffHz, when non-zero, adds a VoiceTaps-tap low-pass after the
	// detector to model a voice channel.
	VoiceCutoffHz float64

	// DeemphasisTau is the de-emphasis time constant in seconds. Zero disables it.
	DeemphasisTau float64

	// DecimationTaps is the length of the audio decimation filter. Zero
	// derives it from the decimation factor.
	DecimationTaps int

	// TargetAmplitude is the per-block peak after normalization. Zero
	// disables normalization.
	TargetAmplitude float32
}

// AMConfig returns the AM pipeline: envelope, DC removal, decimation, peak 0.5.
func AMConfig(sampleRate, audioRate int) Config {
	return Config{
		Mode:            ModeAM,
		SampleRate:      sampleRate,
		AudioRate:       audioRate,
		TargetAmplitude: AMTarget,
	}
}

// FMConfig returns the broadcast FM pipeline with 75 µs de-emphasis.
func FMConfig(sampleRate, audioRate int) Config {
	return Config{
		Mode:            ModeFM,
		SampleRate:      sampleRate,
		AudioRate:       audioRate,
		DeemphasisTau:   BroadcastDeemphasis,
		TargetAmplitude: FMTarget,
	}
}

// NFMConfig returns the narrowband FM pipeline: a 3 kHz voice filter, no
// de-emphasis, peak 0.3.
func NFMConfig(sampleRate, audioRate int) Config {
	return Config{
		Mode:            ModeNFM,
		SampleRate:      sampleRate,
		AudioRate:       audioRate,
		VoiceCutoffHz:   VoiceCutoffHz,
		TargetAmplitude: NFMTarget,
	}
}

// Validate checks that the configuration can be streamed.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeAM, ModeFM, ModeNFM:
	default:
		return fmt.Errorf("%w: mode %s has no audio pipeline", ErrInvalidConfig, c.Mode)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.AudioRate <= 0 {
		return fmt.Errorf("%w: audio rate %d", ErrInvalidConfig, c.AudioRate)
	}
	if c.ChannelRate < 0 || c.DeemphasisTau < 0 || c.VoiceCutoffHz < 0 || c.TargetAmplitude < 0 {
		return fmt.Errorf("%w: negative parameter", ErrInvalidConfig)
	}
	return nil
}

// Demodulator holds the persistent state of one AM, FM or NFM channel. It is
// not safe for concurrent use; one worker owns it for the whole session.
type Demodulator struct {
	cfg Config

	channelI *dsp.FIRFilter
	channelQ *dsp.FIRFilter

	disc   *dsp.Discriminator
	dc     *dsp.DCBlocker
	voice  *dsp.FIRFilter
	decim  *dsp.FIRFilter
	deemph *dsp.Deemphasis

	detectorRate int
	minBytes     int
	// carry holds bytes not yet processed: a split I/Q pair or a chunk
	// below the minimum length.
	carry []byte
}

// New builds a demodulator for cfg.
func New(cfg Config) (*Demodulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Demodulator{cfg: cfg, detectorRate: cfg.SampleRate}

	// --- Stage 1: optional channel selection filter ---
	if cfg.ChannelRate > 0 && cfg.ChannelRate < cfg.SampleRate {
		chanDecim := dsp.DecimationFactor(cfg.SampleRate, cfg.ChannelRate)
		cutoff := cfg.ChannelCutoffHz
		if cutoff <= 0 {
			cutoff = 0.4 * float64(cfg.ChannelRate)
		}
		taps := dsp.DesignFIRLowPass(filterLength(chanDecim), cutoff/float64(cfg.SampleRate))
		d.channelI = dsp.NewFIRFilter(taps, chanDecim)
		d.channelQ = dsp.NewFIRFilter(taps, chanDecim)
		d.detectorRate = cfg.SampleRate / chanDecim
	}

	// --- Stage 2: detector ---
	switch cfg.Mode {
	case ModeAM:
		d.dc = dsp.NewDCBlocker(d.detectorRate, dcCutoffHz)
		d.minBytes = 2
	default:
		d.disc = dsp.NewDiscriminator()
		d.minBytes = 4
	}
	if cfg.VoiceCutoffHz > 0 {
		d.voice = dsp.NewFIRFilter(dsp.DesignFIRLowPass(VoiceTaps, cfg.VoiceCutoffHz/float64(d.detectorRate)), 1)
	}

	// --- Stage 3: anti-alias filter, decimation and de-emphasis ---
	decimation := dsp.DecimationFactor(d.detectorRate, cfg.AudioRate)
	numTaps := cfg.DecimationTaps
	if numTaps <= 0 {
		numTaps = filterLength(decimation)
	}
	d.decim = dsp.NewFIRFilter(dsp.DesignFIRLowPass(numTaps, 0.5/float64(decimation)), decimation)
	if cfg.DeemphasisTau > 0 {
		d.deemph = dsp.NewDeemphasis(d.AudioRate(), cfg.DeemphasisTau)
	}

	log.Printf("%s demodulator initialized: SR=%d, AR=%d, detector=%d Hz, Dec=%d",
		cfg.Mode, cfg.SampleRate, d.AudioRate(), d.detectorRate, decimation)
	return d, nil
}

// NewAM creates an AM demodulator.
func NewAM(sampleRate, audioRate int) (*Demodulator, error) {
	return New(AMConfig(sampleRate, audioRate))
}

// NewFM creates a broadcast FM demodulator.
func NewFM(sampleRate, audioRate int) (*Demodulator, error) {
	return New(FMConfig(sampleRate, audioRate))
}

// NewNFM creates a narrowband FM demodulator.
func NewNFM(sampleRate, audioRate int) (*Demodulator, error) {
	return New(NFMConfig(sampleRate, audioRate))
}

// filterLength picks an odd kernel length of about four taps per decimated
// sample, never shorter than minTaps.
func filterLength(decimation int) int {
	return max(minTaps, 4*decimation+1)
}

// Mode returns the demodulation mode.
func (d *Demodulator) Mode() Mode {
	return d.cfg.Mode
}

// Decimation returns the fixed audio decimation factor.
func (d *Demodulator) Decimation() int {
	return d.decim.Decimation()
}

// AudioRate returns the effective output sample rate.
func (d *Demodulator) AudioRate() int {
	return d.detectorRate / d.decim.Decimation()
}

// Process demodulates a chunk of interleaved signed 8-bit I/Q bytes. It
// returns nil when the chunk is too short or yields no audio yet. Chunks may
// split an I/Q pair; bytes that cannot be processed yet are kept for the
// next call.
func (d *Demodulator) Process(chunk []byte) []float32 {
	chunk, d.carry = dsp.AlignIQ(d.carry, chunk)
	if len(chunk) < d.minBytes {
		d.carry = append(append([]byte(nil), chunk...), d.carry...)
		return nil
	}
	return d.ProcessIQ(dsp.BytesToIQ(chunk))
}

// ProcessIQ demodulates complex samples already scaled to [-1, 1].
func (d *Demodulator) ProcessIQ(samples []complex128) []float32 {
	if len(samples) == 0 {
		return nil
	}
	if d.channelI != nil {
		samples = d.selectChannel(samples)
		if len(samples) == 0 {
			return nil
		}
	}

	var signal []float32
	if d.disc != nil {
		signal = d.disc.Process(samples)
	} else {
		signal = dsp.Envelope(samples)
		d.dc.Process(signal)
	}
	if len(signal) == 0 {
		return nil
	}
	if d.voice != nil {
		signal = d.voice.Process(signal)
	}

	audio := d.decim.Process(signal)
	if len(audio) == 0 {
		return nil
	}
	if d.deemph != nil {
		d.deemph.Process(audio)
	}
	if d.cfg.TargetAmplitude > 0 {
		dsp.Normalize(audio, d.cfg.TargetAmplitude)
	}
	return audio
}

// selectChannel low-passes I and Q separately and decimates to the channel rate.
func (d *Demodulator) selectChannel(samples []complex128) []complex128 {
	I := make([]float32, len(samples))
	Q := make([]float32, len(samples))
	for i, s := range samples {
		I[i] = float32(real(s))
		Q[i] = float32(imag(s))
	}
	fI := d.channelI.Process(I)
	fQ := d.channelQ.Process(Q)

	out := make([]complex128, len(fI))
	for i := range fI {
		out[i] = complex(float64(fI[i]), float64(fQ[i]))
	}
	return out
}

// Reset discards all carried filter state.
func (d *Demodulator) Reset() {
	d.carry = nil
	if d.channelI != nil {
		d.channelI.Reset()
		d.channelQ.Reset()
	}
	if d.disc != nil {
		d.disc.Reset()
	}
	if d.dc != nil {
		d.dc.Reset()
	}
	if d.voice != nil {
		d.voice.Reset()
	}
	d.decim.Reset()
	if d.deemph != nil {
		d.deemph.Reset()
	}
}
