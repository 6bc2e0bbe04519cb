package dsp

import "math"

// normEpsilon is the smallest block peak that is still normalized.
const normEpsilon = 1e-6

// DesignFIRLowPass creates a low-pass FIR filter using the windowed-sinc method.
// cutoff is normalized to the sample rate (0 < cutoff < 0.5).
func DesignFIRLowPass(numTaps int, cutoff float64) []float64 {
	if numTaps <= 1 {
		return []float64{1}
	}
	taps := make([]float64, numTaps)
	M := float64(numTaps - 1)
	// The cutoff frequency must be normalized to the Nyquist frequency (0.5 * sample_rate)
	fc := cutoff * 2
	for n := 0; n < numTaps; n++ {
		x := float64(n) - M/2
		if x == 0 {
			taps[n] = fc
		} else {
			taps[n] = fc * math.Sin(math.Pi*fc*x) / (math.Pi * fc * x)
		}
		// Apply Hamming window
		taps[n] *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/M)
	}
	// Normalize
	sum := 0.0
	for _, t := range taps {
		sum += t
	}
	if sum == 0 {
		return taps
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// DecimationFactor returns floor(inRate/outRate), clamped to at least 1.
func DecimationFactor(inRate, outRate int) int {
	if inRate <= 0 || outRate <= 0 {
		return 1
	}
	if d := inRate / outRate; d > 1 {
		return d
	}
	return 1
}

// ResampleLinear stretches or squeezes a signal to width samples using
// linear interpolation between neighbouring input samples.
func ResampleLinear(input []float32, width int) []float32 {
	if width <= 0 || len(input) == 0 {
		return nil
	}
	output := make([]float32, width)
	if len(input) == 1 || width == 1 {
		for i := range output {
			output[i] = input[0]
		}
		return output
	}
	ratio := float64(len(input)-1) / float64(width-1)
	for i := range output {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(input)-1 {
			output[i] = input[len(input)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		output[i] = input[idx]*(1-frac) + input[idx+1]*frac
	}
	return output
}

// BytesToIQ converts interleaved signed 8-bit I/Q bytes into complex samples
// scaled to [-1, 1]. A trailing odd byte is ignored.
func BytesToIQ(raw []byte) []complex128 {
	samples := make([]complex128, len(raw)/2)
	for i := range samples {
		iVal := float64(int8(raw[2*i])) / 127.0
		qVal := float64(int8(raw[2*i+1])) / 127.0
		samples[i] = complex(iVal, qVal)
	}
	return samples
}

// AlignIQ prepends a byte carried from the previous chunk and splits off a
// new trailing byte when the result has odd length, so that I/Q pairs stay
// intact across arbitrary chunk boundaries.
func AlignIQ(carry, chunk []byte) (aligned, rest []byte) {
	if len(carry) > 0 {
		chunk = append(append(make([]byte, 0, len(carry)+len(chunk)), carry...), chunk...)
	}
	if len(chunk)%2 == 1 {
		return chunk[:len(chunk)-1], []byte{chunk[len(chunk)-1]}
	}
	return chunk, nil
}

// Envelope returns the magnitude sqrt(I²+Q²) of each sample.
func Envelope(samples []complex128) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(math.Hypot(real(s), imag(s)))
	}
	return out
}

// Normalize scales the block in place so that its peak absolute value equals
// target. Blocks whose peak is below a small epsilon are left untouched and
// false is returned.
func Normalize(samples []float32, target float32) bool {
	var peak float32
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak < normEpsilon {
		return false
	}
	scale := target / peak
	for i := range samples {
		samples[i] *= scale
	}
	return true
}
