package dsp

import "math"

// NCO is a numerically controlled oscillator that shifts a complex signal by
// a fixed frequency. Its phase accumulator carries over between blocks.
type NCO struct {
	step  float64
	phase float64
}

// NewNCO creates an oscillator shifting by shiftHz at the given sample rate.
// A negative shift moves a carrier at +|shiftHz| down to baseband.
func NewNCO(shiftHz float64, sampleRate int) *NCO {
	return &NCO{step: twoPi * shiftHz / float64(sampleRate)}
}

// Mix returns the block multiplied by e^{jθ}, advancing θ per sample.
func (n *NCO) Mix(samples []complex128) []complex128 {
	out := make([]complex128, len(samples))
	theta := n.phase
	for i, s := range samples {
		sin, cos := math.Sincos(theta)
		re, im := real(s), imag(s)
		out[i] = complex(re*cos-im*sin, re*sin+im*cos)
		theta += n.step
	}
	n.phase = math.Mod(theta, twoPi)
	if n.phase < 0 {
		n.phase += twoPi
	}
	return out
}

// Phase returns the current accumulator value in [0, 2π).
func (n *NCO) Phase() float64 {
	return n.phase
}

// Reset sets the accumulator back to zero.
func (n *NCO) Reset() {
	n.phase = 0
}
