package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Limiter paces outbound fetches, with optional jitter so request timing does
// not look mechanical to the target. Safe for concurrent use.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// NewLimiter creates a limiter allowing rps requests per second. A jitter
// factor between 0 and 1 randomizes each wait by up to that fraction of the
// interval. If rps <= 0 the limiter never blocks.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{jitter: jitter}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	interval := time.Duration(float64(time.Second) / rps)
	ticker := time.NewTicker(interval)

	return &Limiter{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// Wait blocks until the next slot, or until the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		if l.jitter <= 0 {
			return nil
		}
		// Random extra delay in [0, jitter*interval). The ticker already
		// enforces the minimum spacing, so jitter only ever adds time.
		extra := time.Duration(rand.Float64() * l.jitter * float64(l.interval))
		if extra > 0 {
			select {
			case <-time.After(extra):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Stop releases the limiter's ticker.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
