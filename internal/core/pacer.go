package core

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// IntervalPacer spaces oracle calls at least interval apart, the first call included
type IntervalPacer struct {
	limiter *rate.Limiter
}

// NewIntervalPacer creates a pacer; a non-positive interval never waits
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	if interval <= 0 {
		return &IntervalPacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(interval), 1)
	l.Allow()
	return &IntervalPacer{limiter: l}
}

// Wait blocks until the next call is allowed or ctx is done
func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NoPacer never waits
type NoPacer struct{}

// Wait returns ctx's error, if any
func (NoPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
