package dsp

import "math"

const twoPi = 2 * math.Pi

// maxPhase bounds the carried unwrapped phase before it is rebased.
const maxPhase = 1 << 20

// PhaseUnwrapper removes ±2π jumps from a phase sequence. The running
// correction and the last raw phase are kept between calls, so a stream split
// into chunks unwraps exactly like the whole stream.
type PhaseUnwrapper struct {
	prevRaw    float64
	correction float64
	primed     bool
}

// Unwrap returns the unwrapped copy of phases.
func (u *PhaseUnwrapper) Unwrap(phases []float64) []float64 {
	out := make([]float64, len(phases))
	for i, p := range phases {
		if u.primed {
			delta := p - u.prevRaw
			if delta > math.Pi {
				u.correction -= twoPi
			} else if delta < -math.Pi {
				u.correction += twoPi
			}
		}
		u.prevRaw = p
		u.primed = true
		out[i] = p + u.correction
	}
	return out
}

// Reset forgets the accumulated correction.
func (u *PhaseUnwrapper) Reset() {
	*u = PhaseUnwrapper{}
}

// Discriminator implements an FM discriminator: atan2 phase, unwrap,
// differentiate. The output is the instantaneous frequency in radians per
// sample.
type Discriminator struct {
	unwrap PhaseUnwrapper
	last   float64
	primed bool
}

// NewDiscriminator creates a new FM discriminator.
func NewDiscriminator() *Discriminator {
	return &Discriminator{}
}

// Process demodulates a block of complex IQ samples into an audio signal.
// The first block ever processed yields one sample less than its input; every
// later block is differentiated against the last phase of the previous one.
func (d *Discriminator) Process(samples []complex128) []float32 {
	if len(samples) == 0 {
		return nil
	}
	phases := make([]float64, len(samples))
	for i, s := range samples {
		phases[i] = math.Atan2(imag(s), real(s))
	}
	unwrapped := d.unwrap.Unwrap(phases)

	output := make([]float32, 0, len(unwrapped))
	prev := d.last
	for i, p := range unwrapped {
		if i > 0 || d.primed {
			output = append(output, float32(p-prev))
		}
		prev = p
	}

	// Save the last phase of the current block for the next call.
	d.last = prev
	d.primed = true
	if math.Abs(d.last) > maxPhase {
		// Rebase by whole turns; differences are unchanged.
		shift := twoPi * math.Round(d.last/twoPi)
		d.last -= shift
		d.unwrap.correction -= shift
	}
	if len(output) == 0 {
		return nil
	}
	return output
}

// Reset clears the carried phase.
func (d *Discriminator) Reset() {
	*d = Discriminator{}
}
