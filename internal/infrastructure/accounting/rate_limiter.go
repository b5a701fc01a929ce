package accounting

import (
	"context"
	"sync"
	"time"

	"github.com/erp/billsync/internal/infrastructure/clock"
)

// rateLimiter spaces outbound calls of one client instance at least interval apart.
// Callers are serialized: the lock is held while waiting.
type rateLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	last     time.Time
}

func newRateLimiter(c clock.Clock, interval time.Duration) *rateLimiter {
	return &rateLimiter{
		clock:    c,
		interval: interval,
	}
}

// Wait blocks until interval has passed since the previous call was released.
// The gap is measured against the clock after every sleep, so a sleep that
// returns early or late never shortens the next gap.
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.clock.Now()
		delay := r.interval - now.Sub(r.last)
		if r.last.IsZero() || delay <= 0 {
			r.last = now
			return nil
		}
		if err := r.clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}
