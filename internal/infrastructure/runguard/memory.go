package runguard

import (
	"context"
	"sync"
	"time"

	"github.com/erp/billsync/internal/infrastructure/clock"
)

const sweepInterval = 5 * time.Minute

// MemoryGuard keeps claims in process memory. Claims are not shared between
// instances, so it only prevents duplicate runs within one process.
type MemoryGuard struct {
	clock clock.Clock

	mu        sync.Mutex
	claims    map[string]time.Time // key -> expiry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryGuard creates a guard and starts its expiry sweeper. A nil clock
// uses the system clock.
func NewMemoryGuard(c clock.Clock) *MemoryGuard {
	if c == nil {
		c = clock.NewSystem()
	}
	g := &MemoryGuard{
		clock:    c,
		claims:   make(map[string]time.Time),
		stopChan: make(chan struct{}),
	}

	g.wg.Add(1)
	go g.sweepLoop()

	return g
}

// Claim records key for ttl. It reports false while an unexpired claim exists.
func (g *MemoryGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if expiresAt, ok := g.claims[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)
	return true, nil
}

// Claimed reports whether key holds an unexpired claim
func (g *MemoryGuard) Claimed(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiresAt, ok := g.claims[key]
	return ok && g.clock.Now().Before(expiresAt), nil
}

// Release drops a claim so the key can be claimed again
func (g *MemoryGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
	return nil
}

// Close stops the sweeper. Safe to call multiple times.
func (g *MemoryGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

// Size returns the number of stored claims, expired ones included until swept
func (g *MemoryGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

func (g *MemoryGuard) sweepLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *MemoryGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for key, expiresAt := range g.claims {
		if !now.Before(expiresAt) {
			delete(g.claims, key)
		}
	}
}

var _ Guard = (*MemoryGuard)(nil)
