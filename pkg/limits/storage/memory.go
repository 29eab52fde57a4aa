package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend implements Backend with in-process state.
//
// It exists for tests and single-instance deployments; state is local to
// the process, so it cannot enforce a global quota across replicas. The
// evict-and-count contract is honored by running eviction and counting
// under one mutex hold.
type MemoryBackend struct {
	mu       sync.Mutex
	windows  map[string]*windowSet
	counters map[string]*counterEntry

	clock           func() time.Time
	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// windowSet holds the ordered timestamps (unix milliseconds) for one key.
type windowSet struct {
	entries   []int64
	expiresAt time.Time
}

// counterEntry holds one TTL integer counter.
type counterEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// CleanupInterval is how often the background sweep removes expired
	// keys. Default: 1 minute.
	CleanupInterval time.Duration

	// Clock overrides the time source. Used by tests; defaults to
	// time.Now.
	Clock func() time.Time
}

// NewMemoryBackend creates an in-process backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{})
}

// NewMemoryBackendWithConfig creates an in-process backend with custom
// configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	backend := &MemoryBackend{
		windows:         make(map[string]*windowSet),
		counters:        make(map[string]*counterEntry),
		clock:           cfg.Clock,
		cleanupInterval: cfg.CleanupInterval,
		done:            make(chan struct{}),
	}

	go backend.cleanupLoop()

	return backend
}

// CountInWindow atomically evicts entries older than windowStart and
// counts the survivors up to windowEnd.
func (m *MemoryBackend) CountInWindow(ctx context.Context, key string, windowStart, windowEnd time.Time) (WindowStats, error) {
	if err := ctx.Err(); err != nil {
		return WindowStats{}, classifyContextErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ws, exists := m.windows[key]
	if !exists {
		return WindowStats{}, nil
	}
	if ws.expiresAt.Before(m.clock()) {
		delete(m.windows, key)
		return WindowStats{}, nil
	}

	startMS := windowStart.UnixMilli()
	endMS := windowEnd.UnixMilli()

	// Entries are kept sorted, so eviction is a prefix cut.
	cut := sort.Search(len(ws.entries), func(i int) bool {
		return ws.entries[i] >= startMS
	})
	ws.entries = ws.entries[cut:]

	if len(ws.entries) == 0 {
		return WindowStats{}, nil
	}

	count := int64(0)
	for _, ts := range ws.entries {
		if ts <= endMS {
			count++
		}
	}
	if count == 0 {
		return WindowStats{}, nil
	}

	return WindowStats{
		Count:  count,
		Oldest: time.UnixMilli(ws.entries[0]),
	}, nil
}

// Insert adds one timestamped entry and refreshes the key's expiry.
func (m *MemoryBackend) Insert(ctx context.Context, key string, ts time.Time, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return classifyContextErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ws, exists := m.windows[key]
	if !exists || ws.expiresAt.Before(m.clock()) {
		ws = &windowSet{}
		m.windows[key] = ws
	}

	tsMS := ts.UnixMilli()
	idx := sort.Search(len(ws.entries), func(i int) bool {
		return ws.entries[i] > tsMS
	})
	ws.entries = append(ws.entries, 0)
	copy(ws.entries[idx+1:], ws.entries[idx:])
	ws.entries[idx] = tsMS

	ws.expiresAt = m.clock().Add(ttl)
	return nil
}

// GetCounter returns the counter value, 0 if absent or expired.
func (m *MemoryBackend) GetCounter(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyContextErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.counters[key]
	if !exists {
		return 0, nil
	}
	if entry.expiresAt.Before(m.clock()) {
		delete(m.counters, key)
		return 0, nil
	}

	return entry.value, nil
}

// IncrCounter increments the counter and refreshes its TTL.
func (m *MemoryBackend) IncrCounter(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classifyContextErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	entry, exists := m.counters[key]
	if !exists || entry.expiresAt.Before(now) {
		entry = &counterEntry{}
		m.counters[key] = entry
	}

	entry.value += amount
	entry.expiresAt = now.Add(ttl)
	return entry.value, nil
}

// Delete removes all state for key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return classifyContextErr(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, key)
	delete(m.counters, key)
	return nil
}

// Cleanup removes keys whose expiry is before olderThan.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, ws := range m.windows {
		if ws.expiresAt.Before(olderThan) {
			delete(m.windows, key)
			removed++
		}
	}
	for key, entry := range m.counters {
		if entry.expiresAt.Before(olderThan) {
			delete(m.counters, key)
			removed++
		}
	}

	return removed, nil
}

// Ping always succeeds for the in-process backend.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close stops the background sweep.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	return nil
}

// Size returns the number of tracked keys. Useful for monitoring and
// tests.
func (m *MemoryBackend) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows) + len(m.counters)
}

// cleanupLoop periodically sweeps expired keys.
func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = m.Cleanup(context.Background(), m.clock())
		case <-m.done:
			return
		}
	}
}

// classifyContextErr maps context errors onto the backend error taxonomy.
func classifyContextErr(err error) error {
	if err == context.DeadlineExceeded {
		return ErrTimeout
	}
	return ErrUnavailable
}
