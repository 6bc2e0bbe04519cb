package dsp

// FIRFilter implements a stateful, block-based decimating Finite Impulse
// Response filter. Splitting the input stream at any point yields the same
// output as processing it in one block.
type FIRFilter struct {
	taps       []float64
	state      []float32
	decimation int
	// offset is the position in the next buffer (history + input) where the
	// next output window starts.
	offset int
}

// NewFIRFilter creates a new FIR filter with the given taps that keeps every
// decimation'th filtered sample. A decimation below 1 is treated as 1.
func NewFIRFilter(taps []float64, decimation int) *FIRFilter {
	if decimation < 1 {
		decimation = 1
	}
	return &FIRFilter{
		taps:       taps,
		state:      make([]float32, len(taps)-1),
		decimation: decimation,
	}
}

// Decimation returns the fixed decimation factor.
func (f *FIRFilter) Decimation() int {
	return f.decimation
}

// Delay returns the group delay of the filter in input samples.
func (f *FIRFilter) Delay() int {
	return (len(f.taps) - 1) / 2
}

// Process filters a block of input samples and updates the filter's internal state.
func (f *FIRFilter) Process(input []float32) []float32 {
	if len(input) == 0 {
		return nil
	}
	buffer := make([]float32, len(f.state)+len(input))
	copy(buffer, f.state)
	copy(buffer[len(f.state):], input)

	n := len(f.taps)
	var output []float32
	start := f.offset
	for ; start+n <= len(buffer); start += f.decimation {
		var acc float64
		window := buffer[start : start+n]
		for j, tap := range f.taps {
			acc += float64(window[j]) * tap
		}
		output = append(output, float32(acc))
	}

	// The state for the next run is the last (filter_length - 1) samples of the buffer.
	consumed := len(buffer) - (n - 1)
	f.offset = start - consumed
	f.state = append(f.state[:0], buffer[consumed:]...)
	return output
}

// Reset clears the filter history.
func (f *FIRFilter) Reset() {
	for i := range f.state {
		f.state[i] = 0
	}
	f.offset = 0
}
