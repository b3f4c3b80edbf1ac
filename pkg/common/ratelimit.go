package common

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// minLimitDivisor bounds how far Throttle can lower the rate below the
// configured ceiling.
const minLimitDivisor = 16

// RateLimiter paces calls to a downstream service. The rate starts at the
// configured ceiling; Throttle halves it when the service pushes back and
// Recover doubles it again, never exceeding the ceiling.
type RateLimiter struct {
	mu      sync.Mutex // Serializes limit adjustments
	limiter *rate.Limiter
	ceiling rate.Limit
	floor   rate.Limit
}

// NewRateLimiter creates a RateLimiter allowing rps requests per second with
// bursts of up to burst requests. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	ceiling := rate.Limit(rps)
	if rps <= 0 {
		ceiling = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(ceiling, burst),
		ceiling: ceiling,
		floor:   ceiling / minLimitDivisor,
	}
}

// Wait blocks until the limiter allows an event or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error { return rl.limiter.Wait(ctx) }

// Limit reports the current requests per second.
func (rl *RateLimiter) Limit() float64 { return float64(rl.limiter.Limit()) }

// Throttle halves the current rate, down to a sixteenth of the ceiling, and
// returns the new limit. An unlimited limiter is left alone.
func (rl *RateLimiter) Throttle() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cur := rl.limiter.Limit()
	if cur == rate.Inf {
		return float64(cur)
	}
	next := cur / 2
	if next < rl.floor {
		next = rl.floor
	}
	rl.limiter.SetLimit(next)
	return float64(next)
}

// Recover doubles the current rate up to the ceiling and returns the new
// limit.
func (rl *RateLimiter) Recover() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cur := rl.limiter.Limit()
	if cur >= rl.ceiling {
		return float64(cur)
	}
	next := cur * 2
	if next > rl.ceiling {
		next = rl.ceiling
	}
	rl.limiter.SetLimit(next)
	return float64(next)
}
