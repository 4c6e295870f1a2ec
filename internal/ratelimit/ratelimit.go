package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket shared by every poller in the process, so the
// provider's requests-per-minute ceiling is enforced globally rather than
// per component. The bulk collector and each registry refresh loop call
// Wait before every upstream fetch.
type Limiter struct {
	ratePerSec float64
	capacity   float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// PerMinute builds a limiter from a requests-per-minute ceiling with a small
// burst allowance.
func PerMinute(rpm int, burst int) *Limiter {
	if rpm <= 0 {
		rpm = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		ratePerSec: float64(rpm) / 60.0,
		capacity:   float64(burst),
		tokens:     float64(burst),
		last:       time.Now(),
	}
}

// Wait blocks until one token is available or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
			l.tokens += elapsed * l.ratePerSec
			if l.tokens > l.capacity {
				l.tokens = l.capacity
			}
			l.last = now
		}
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		deficit := 1 - l.tokens
		l.mu.Unlock()

		wait := time.Duration(deficit / l.ratePerSec * float64(time.Second))
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
