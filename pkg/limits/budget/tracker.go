// Package budget implements the token-budget counter.
//
// The budget is the secondary quota: a flat TTL counter of token units
// consumed per (hashed user, provider) key, deliberately coarser than the
// request window. Exact per-token timestamps would cost far more to store
// than a secondary guard is worth, so the counter simply expires as a
// whole after its TTL.
//
// Admission is a reservation estimate made before the call; Add records
// the actual usage afterward, which may be smaller. The budget is a soft
// ceiling with no take-back for overestimates, not an exact ledger.
package budget

import (
	"context"
	"time"

	"mercator-hq/floodgate/pkg/limits/storage"
)

// DefaultTTL is how long a token counter lives after its last update.
// It must be at least twice the request window so a counter never expires
// while requests that contributed to it are still inside the window.
const DefaultTTL = 120 * time.Second

// Tracker is a TTL token counter over a shared store backend.
type Tracker struct {
	store storage.Backend
	ttl   time.Duration
}

// Config configures a Tracker.
type Config struct {
	// Store is the shared backend holding the counters. Required.
	Store storage.Backend

	// TTL is the counter lifetime. Default: 120 seconds.
	TTL time.Duration
}

// NewTracker creates a token-budget tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}

	return &Tracker{
		store: cfg.Store,
		ttl:   cfg.TTL,
	}
}

// Get returns the tokens consumed under key, 0 if absent or expired.
func (t *Tracker) Get(ctx context.Context, key string) (int64, error) {
	return t.store.GetCounter(ctx, key)
}

// Add increments the counter by amount and refreshes its TTL.
func (t *Tracker) Add(ctx context.Context, key string, amount int64) error {
	_, err := t.store.IncrCounter(ctx, key, amount, t.ttl)
	return err
}

// Allowed reports whether a request estimated at estimate tokens fits
// under limit given the current counter value.
func Allowed(current, estimate, limit int64) bool {
	return current+estimate <= limit
}
