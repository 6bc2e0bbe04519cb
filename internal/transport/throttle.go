package transport

import (
	"context"
	"time"
)

// Throttled paces a Source so that chunks are handed out no faster than a
// live front end at the given sample rate would deliver them.
type Throttled struct {
	Source
	ctx     context.Context
	rate    float64
	start   time.Time
	samples int64
}

// Throttle wraps src. Each I/Q pair counts as one sample. A rate of zero or
// less disables pacing.
func Throttle(ctx context.Context, src Source, sampleRate int) *Throttled {
	return &Throttled{Source: src, ctx: ctx, rate: float64(sampleRate)}
}

// ReadChunk reads the next chunk and waits until its samples are due.
// It returns the context error if ctx ends while waiting.
func (t *Throttled) ReadChunk() ([]byte, error) {
	chunk, err := t.Source.ReadChunk()
	if err != nil || t.rate <= 0 {
		return chunk, err
	}
	if t.start.IsZero() {
		t.start = time.Now()
	}
	t.samples += int64(len(chunk) / 2)

	due := t.start.Add(time.Duration(float64(t.samples) / t.rate * float64(time.Second)))
	wait := time.Until(due)
	if wait <= 0 {
		return chunk, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-t.ctx.Done():
		return nil, t.ctx.Err()
	case <-timer.C:
		return chunk, nil
	}
}
