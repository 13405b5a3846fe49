package edgar

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a ceiling on requests per rolling window against the
// registry. SEC EDGAR allows at most 10 requests per second; exceeding it
// gets the client blocked, so every network round-trip in this package goes
// through Acquire first.
type Limiter struct {
	mu         sync.Mutex
	maxAllowed int
	window     time.Duration
	timestamps []time.Time
}

// NewLimiter creates a limiter allowing maxAllowed acquisitions per rolling
// window. A single instance is shared by every call site hitting the registry.
func NewLimiter(maxAllowed int, window time.Duration) *Limiter {
	return &Limiter{
		maxAllowed: maxAllowed,
		window:     window,
	}
}

// Acquire blocks until a request slot is free, then claims it. It cannot fail
// on its own; the only error path is context cancellation while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)

		if len(l.timestamps) < l.maxAllowed {
			l.timestamps = append(l.timestamps, now)
			l.mu.Unlock()
			return nil
		}

		// Window is full. Sleep exactly until the oldest timestamp exits
		// the window, then re-evaluate; another caller may have claimed
		// the freed slot in the meantime.
		wait := l.window - now.Sub(l.timestamps[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
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

// prune drops timestamps that have aged out of the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
