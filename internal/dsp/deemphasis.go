package dsp

import "math"

// Deemphasis implements a first-order low-pass filter for FM de-emphasis.
type Deemphasis struct {
	b0   float64
	x    float64
	prev float64
}

// NewDeemphasis creates a new de-emphasis filter.
// sampleRate is the audio sample rate.
// tau is the time constant (e.g., 50e-6 for Europe and PAL-B/G, 75e-6 for US broadcast).
func NewDeemphasis(sampleRate int, tau float64) *Deemphasis {
	x := math.Exp(-1.0 / (float64(sampleRate) * tau))
	return &Deemphasis{b0: 1 - x, x: x}
}

// Filter applies the de-emphasis filter to a single sample.
func (d *Deemphasis) Filter(in float64) float64 {
	d.prev = d.b0*in + d.x*d.prev
	return d.prev
}

// Process filters a block in place.
func (d *Deemphasis) Process(samples []float32) {
	for i, v := range samples {
		samples[i] = float32(d.Filter(float64(v)))
	}
}

// Reset clears the filter memory.
func (d *Deemphasis) Reset() {
	d.prev = 0
}

// DCBlocker is a one-pole high-pass filter, y[n] = x[n] - x[n-1] + R·y[n-1],
// whose memory survives across blocks.
type DCBlocker struct {
	r      float64
	prevX  float64
	prevY  float64
	primed bool
}

// NewDCBlocker creates a DC blocker with the given -3 dB corner frequency.
func NewDCBlocker(sampleRate int, cutoffHz float64) *DCBlocker {
	return &DCBlocker{r: math.Exp(-2 * math.Pi * cutoffHz / float64(sampleRate))}
}

// Process removes the DC component from the block in place.
func (d *DCBlocker) Process(samples []float32) {
	for i, v := range samples {
		x := float64(v)
		if !d.primed {
			// Start from the first level seen instead of a step from zero.
			d.prevX, d.primed = x, true
		}
		y := x - d.prevX + d.r*d.prevY
		d.prevX, d.prevY = x, y
		samples[i] = float32(y)
	}
}

// Reset clears the filter memory.
func (d *DCBlocker) Reset() {
	d.prevX, d.prevY = 0, 0
	d.primed = false
}
