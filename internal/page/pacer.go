package page

import (
	"context"
	"math/rand/v2"
	"time"
)

// Range is a closed interval of seconds
type Range struct {
	Min, Max float64
}

// Pacer is the delay policy applied after UI-mutating actions
type Pacer interface {
	Pause(ctx context.Context, r Range)
	// Jitter returns a uniform integer in [-n, n]
	Jitter(n int) int
}

// RandomPacer sleeps for a uniformly random duration scaled by Scale
type RandomPacer struct {
	Scale float64
}

// NewRandomPacer creates a pacer; scale 0 keeps the jitter but skips every sleep
func NewRandomPacer(scale float64) *RandomPacer {
	return &RandomPacer{Scale: scale}
}

func (p *RandomPacer) Pause(ctx context.Context, r Range) {
	if p.Scale <= 0 {
		return
	}
	secs := r.Min
	if r.Max > r.Min {
		secs += rand.Float64() * (r.Max - r.Min)
	}
	d := time.Duration(secs * p.Scale * float64(time.Second))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *RandomPacer) Jitter(n int) int {
	if n <= 0 {
		return 0
	}
	return rand.IntN(2*n+1) - n
}

// NoPacer never sleeps and never jitters
type NoPacer struct{}

func (NoPacer) Pause(context.Context, Range) {}

func (NoPacer) Jitter(int) int { return 0 }
