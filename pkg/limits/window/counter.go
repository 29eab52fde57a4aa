// Package window implements the sliding-window request counter.
//
// The counter tracks one ordered collection of request timestamps per
// (hashed user, provider) key in the shared store. Counting always evicts
// entries that fell out of the trailing window first, and eviction plus
// counting happen as one atomic store operation; see the storage package
// for why that atomicity is non-negotiable.
//
// This is a true sliding window: a burst recorded at t=0 frees its quota
// at t=60, not at the next wall-clock minute boundary.
package window

import (
	"context"
	"time"

	"mercator-hq/floodgate/pkg/limits/storage"
)

// DefaultWindow is the length of the sliding window.
const DefaultWindow = 60 * time.Second

// Stats describes the state of one key's window.
type Stats struct {
	// Count is the number of requests inside the window.
	Count int64

	// Oldest is the timestamp of the oldest request still in the window.
	// Zero when Count is 0.
	Oldest time.Time
}

// Counter is a sliding-window counter over a shared store backend.
//
// Counter holds no mutable state of its own; every process running one
// against the same backend sees the same counts.
type Counter struct {
	store  storage.Backend
	window time.Duration
	clock  func() time.Time
}

// Config configures a Counter.
type Config struct {
	// Store is the shared backend holding the window entries. Required.
	Store storage.Backend

	// Window is the sliding-window length. Default: 60 seconds.
	Window time.Duration

	// Clock overrides the time source. Used by tests; defaults to
	// time.Now.
	Clock func() time.Time
}

// NewCounter creates a sliding-window counter.
func NewCounter(cfg Config) *Counter {
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Counter{
		store:  cfg.Store,
		window: cfg.Window,
		clock:  cfg.Clock,
	}
}

// Window returns the configured window length.
func (c *Counter) Window() time.Duration {
	return c.window
}

// CountInWindow atomically evicts entries older than now-window and
// returns the count of requests in (now-window, now]. An unseen key
// counts as 0. Repeated calls with no intervening Insert never increase
// the count.
func (c *Counter) CountInWindow(ctx context.Context, key string) (Stats, error) {
	now := c.clock()
	stats, err := c.store.CountInWindow(ctx, key, now.Add(-c.window), now)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: stats.Count, Oldest: stats.Oldest}, nil
}

// Insert records one request at ts and refreshes the key's expiry to
// twice the window length, so idle keys age out of the store on their
// own.
func (c *Counter) Insert(ctx context.Context, key string, ts time.Time) error {
	return c.store.Insert(ctx, key, ts, 2*c.window)
}

// ResetTime returns when the window next frees a slot given its oldest
// entry: the moment that entry slides out of the window. With an empty
// window the full quota is already available, so the reset is now+window
// (when even a request made this instant would expire).
func (c *Counter) ResetTime(stats Stats) time.Time {
	if stats.Count == 0 || stats.Oldest.IsZero() {
		return c.clock().Add(c.window)
	}
	return stats.Oldest.Add(c.window)
}
