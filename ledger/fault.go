package ledger

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// FaultInjector simulates network-like latency and transient failures so
// callers can exercise their error-handling paths. Disabled it costs
// nothing; enabled it only ever delays or rejects an operation before any
// state change, never after.
type FaultInjector struct {
	Enabled    bool
	ErrorRate  float64 // 0..1 chance of ErrTransient
	MinLatency time.Duration
	MaxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFaultInjector returns an injector with its own PRNG. A zero-valued
// FaultInjector is also usable and permanently disabled.
func NewFaultInjector(enabled bool, errorRate float64, minLatency, maxLatency time.Duration) *FaultInjector {
	return &FaultInjector{
		Enabled:    enabled,
		ErrorRate:  errorRate,
		MinLatency: minLatency,
		MaxLatency: maxLatency,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Inject sleeps for a random latency in the configured band, honoring
// context cancellation, then rolls for a transient failure.
func (f *FaultInjector) Inject(ctx context.Context) error {
	if f == nil || !f.Enabled {
		return nil
	}

	f.mu.Lock()
	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	delay := f.MinLatency
	if f.MaxLatency > f.MinLatency {
		delay += time.Duration(f.rng.Int63n(int64(f.MaxLatency - f.MinLatency)))
	}
	fail := f.rng.Float64() < f.ErrorRate
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if fail {
		return ErrTransient
	}
	return nil
}
