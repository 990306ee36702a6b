package app

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"bank_reviews/internal/adapters/observability"
)

// Politeness spaces out interactions with the listings service: every Wait
// takes a token from a shared limiter, then sleeps a uniform random pause in
// [min, max]. Safe for concurrent use by several workers.
type Politeness struct {
	min, max time.Duration
	limiter  *rate.Limiter
	jitter   func(n int64) int64
}

// NewPoliteness builds the policy. perSecond <= 0 disables the rate cap.
func NewPoliteness(min, max time.Duration, perSecond float64) *Politeness {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Politeness{min: min, max: max, limiter: lim, jitter: rand.Int64N}
}

// NoDelay is the explicit zero-delay policy used by tests and dry runs.
func NoDelay() *Politeness { return NewPoliteness(0, 0, 0) }

// Next draws the pause for one interaction.
func (p *Politeness) Next() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + time.Duration(p.jitter(int64(p.max-p.min)+1))
}

func (p *Politeness) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	d := p.Next()
	observability.ObservePoliteness(d)
	if !sleepCtx(ctx, d) {
		return ctx.Err()
	}
	return nil
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
