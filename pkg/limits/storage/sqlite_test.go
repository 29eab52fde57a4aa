package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestSQLiteBackend(t *testing.T, clock *fakeClock) *SQLiteBackend {
	t.Helper()

	backend, err := NewSQLiteBackendWithConfig(SQLiteBackendConfig{
		DBPath: filepath.Join(t.TempDir(), "floodgate.db"),
		Clock:  clock.Now,
	})
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	return backend
}

// ============================================================================
// Window Tests
// ============================================================================

func TestSQLiteBackend_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteBackendWithConfig(SQLiteBackendConfig{}); err == nil {
		t.Error("Expected error for empty db path")
	}
}

func TestSQLiteBackend_CountInWindow_UnseenKey(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	now := clock.Now()
	stats, err := backend.CountInWindow(context.Background(), "nope", now.Add(-time.Minute), now)
	if err != nil {
		t.Fatalf("CountInWindow failed: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Expected count 0 for unseen key, got %d", stats.Count)
	}
	if !stats.Oldest.IsZero() {
		t.Errorf("Expected zero Oldest for unseen key, got %v", stats.Oldest)
	}
}

func TestSQLiteBackend_InsertAndCount(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	base := clock.Now()

	for i := 0; i < 3; i++ {
		if err := backend.Insert(ctx, "k", base.Add(time.Duration(i)*time.Second), 2*time.Minute); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	stats, err := backend.CountInWindow(ctx, "k", base.Add(-time.Minute), base.Add(time.Minute))
	if err != nil {
		t.Fatalf("CountInWindow failed: %v", err)
	}
	if stats.Count != 3 {
		t.Errorf("Expected count 3, got %d", stats.Count)
	}
	if stats.Oldest.UnixMilli() != base.UnixMilli() {
		t.Errorf("Expected oldest %v, got %v", base, stats.Oldest)
	}
}

func TestSQLiteBackend_CountInWindow_EvictsOldEntries(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	base := clock.Now()

	backend.Insert(ctx, "k", base, 2*time.Minute)
	backend.Insert(ctx, "k", base.Add(time.Second), 2*time.Minute)
	backend.Insert(ctx, "k", base.Add(70*time.Second), 2*time.Minute)

	stats, err := backend.CountInWindow(ctx, "k", base.Add(20*time.Second), base.Add(80*time.Second))
	if err != nil {
		t.Fatalf("CountInWindow failed: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("Expected count 1 after eviction, got %d", stats.Count)
	}

	// Eviction is a real DELETE; a wider window must not see old rows.
	stats, err = backend.CountInWindow(ctx, "k", base.Add(-time.Minute), base.Add(80*time.Second))
	if err != nil {
		t.Fatalf("CountInWindow failed: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("Evicted rows came back: expected count 1, got %d", stats.Count)
	}
}

func TestSQLiteBackend_KeysAreIsolated(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	now := clock.Now()

	backend.Insert(ctx, "a", now, 2*time.Minute)
	backend.Insert(ctx, "b", now, 2*time.Minute)
	backend.Insert(ctx, "b", now.Add(time.Second), 2*time.Minute)

	statsA, _ := backend.CountInWindow(ctx, "a", now.Add(-time.Minute), now.Add(time.Minute))
	statsB, _ := backend.CountInWindow(ctx, "b", now.Add(-time.Minute), now.Add(time.Minute))
	if statsA.Count != 1 {
		t.Errorf("Expected 1 entry for key a, got %d", statsA.Count)
	}
	if statsB.Count != 2 {
		t.Errorf("Expected 2 entries for key b, got %d", statsB.Count)
	}
}

// ============================================================================
// Counter Tests
// ============================================================================

func TestSQLiteBackend_Counter_IncrAndGet(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()

	val, err := backend.IncrCounter(ctx, "c", 500, 2*time.Minute)
	if err != nil {
		t.Fatalf("IncrCounter failed: %v", err)
	}
	if val != 500 {
		t.Errorf("Expected 500, got %d", val)
	}

	val, err = backend.IncrCounter(ctx, "c", 250, 2*time.Minute)
	if err != nil {
		t.Fatalf("IncrCounter failed: %v", err)
	}
	if val != 750 {
		t.Errorf("Expected 750, got %d", val)
	}

	got, err := backend.GetCounter(ctx, "c")
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if got != 750 {
		t.Errorf("Expected 750 from GetCounter, got %d", got)
	}
}

func TestSQLiteBackend_Counter_ExpiredReadsZero(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	backend.IncrCounter(ctx, "c", 900, 2*time.Minute)

	clock.Advance(3 * time.Minute)

	val, err := backend.GetCounter(ctx, "c")
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if val != 0 {
		t.Errorf("Expected 0 from expired counter, got %d", val)
	}
}

func TestSQLiteBackend_Counter_ExpiryRestarts(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	backend.IncrCounter(ctx, "c", 900, 2*time.Minute)

	clock.Advance(3 * time.Minute)

	val, err := backend.IncrCounter(ctx, "c", 100, 2*time.Minute)
	if err != nil {
		t.Fatalf("IncrCounter failed: %v", err)
	}
	if val != 100 {
		t.Errorf("Expected expired counter to restart at 100, got %d", val)
	}
}

// ============================================================================
// Maintenance Tests
// ============================================================================

func TestSQLiteBackend_Delete(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	now := clock.Now()
	backend.Insert(ctx, "k", now, 2*time.Minute)
	backend.IncrCounter(ctx, "k", 5, 2*time.Minute)

	if err := backend.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	stats, _ := backend.CountInWindow(ctx, "k", now.Add(-time.Minute), now.Add(time.Minute))
	if stats.Count != 0 {
		t.Errorf("Expected count 0 after delete, got %d", stats.Count)
	}
	val, _ := backend.GetCounter(ctx, "k")
	if val != 0 {
		t.Errorf("Expected counter 0 after delete, got %d", val)
	}
}

func TestSQLiteBackend_Cleanup(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()
	backend.Insert(ctx, "old", clock.Now(), time.Minute)
	backend.IncrCounter(ctx, "oldc", 1, time.Minute)

	clock.Advance(2 * time.Minute)
	backend.Insert(ctx, "fresh", clock.Now(), time.Minute)

	removed, err := backend.Cleanup(ctx, clock.Now())
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 rows removed, got %d", removed)
	}

	// Fresh row survived.
	now := clock.Now()
	stats, _ := backend.CountInWindow(ctx, "fresh", now.Add(-time.Minute), now.Add(time.Minute))
	if stats.Count != 1 {
		t.Errorf("Expected fresh entry to survive cleanup, got count %d", stats.Count)
	}
}

func TestSQLiteBackend_PingAndClose(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	if err := backend.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	// Close is idempotent.
	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestSQLiteBackend_ConcurrentIncrements(t *testing.T) {
	clock := newFakeClock()
	backend := newTestSQLiteBackend(t, clock)

	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if _, err := backend.IncrCounter(ctx, "shared", 1, 2*time.Minute); err != nil {
					t.Errorf("IncrCounter failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	val, err := backend.GetCounter(ctx, "shared")
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if val != goroutines*perGoroutine {
		t.Errorf("Expected %d after concurrent increments, got %d", goroutines*perGoroutine, val)
	}
}
