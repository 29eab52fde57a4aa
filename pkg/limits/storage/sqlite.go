package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend on a SQLite database file.
//
// This backend serves single-host deployments where several server
// processes share one database file: SQLite's own file locking plus
// immediate transactions give the same evict-and-count atomicity the
// Redis backend gets from Lua scripts. It is not suitable when limiter
// processes run on different hosts.
//
// The database uses WAL mode for concurrent readers and a busy timeout
// so writers queue instead of failing under contention.
type SQLiteBackend struct {
	db        *sql.DB
	clock     func() time.Time
	closeOnce sync.Once
	closeErr  error

	insertStmt  *sql.Stmt
	getStmt     *sql.Stmt
	deleteStmts []*sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration

	// Clock overrides the time source. Used by tests; defaults to
	// time.Now.
	Clock func() time.Time
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	backend := &SQLiteBackend{
		db:    db,
		clock: cfg.Clock,
	}

	if err := backend.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := backend.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return backend, nil
}

// initSchema creates the tables and indexes if they do not exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS window_entries (
		key        TEXT    NOT NULL,
		ts_ms      INTEGER NOT NULL,
		expires_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_window_entries_key_ts
		ON window_entries(key, ts_ms);
	CREATE INDEX IF NOT EXISTS idx_window_entries_expires
		ON window_entries(expires_ms);

	CREATE TABLE IF NOT EXISTS counters (
		key        TEXT    PRIMARY KEY,
		value      INTEGER NOT NULL,
		expires_ms INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// prepareStatements pre-compiles the hot-path statements.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(
		`INSERT INTO window_entries (key, ts_ms, expires_ms) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(
		`SELECT value, expires_ms FROM counters WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	for _, query := range []string{
		`DELETE FROM window_entries WHERE key = ?`,
		`DELETE FROM counters WHERE key = ?`,
	} {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare delete statement: %w", err)
		}
		s.deleteStmts = append(s.deleteStmts, stmt)
	}

	return nil
}

// CountInWindow evicts expired entries and counts the survivors inside a
// single immediate transaction, which holds the database write lock for
// the whole evict-and-count step.
func (s *SQLiteBackend) CountInWindow(ctx context.Context, key string, windowStart, windowEnd time.Time) (WindowStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WindowStats{}, classifySQLiteErr("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	startMS := windowStart.UnixMilli()
	endMS := windowEnd.UnixMilli()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM window_entries WHERE key = ? AND ts_ms < ?`,
		key, startMS); err != nil {
		return WindowStats{}, classifySQLiteErr("evict", err)
	}

	var count int64
	var oldestMS sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(ts_ms) FROM window_entries WHERE key = ? AND ts_ms <= ?`,
		key, endMS).Scan(&count, &oldestMS); err != nil {
		return WindowStats{}, classifySQLiteErr("count", err)
	}

	if err := tx.Commit(); err != nil {
		return WindowStats{}, classifySQLiteErr("commit", err)
	}

	if count == 0 || !oldestMS.Valid {
		return WindowStats{}, nil
	}
	return WindowStats{
		Count:  count,
		Oldest: time.UnixMilli(oldestMS.Int64),
	}, nil
}

// Insert adds one timestamped entry. Per-entry expiry stands in for key
// TTL; Cleanup sweeps rows whose expiry has passed.
func (s *SQLiteBackend) Insert(ctx context.Context, key string, ts time.Time, ttl time.Duration) error {
	expiresMS := s.clock().Add(ttl).UnixMilli()
	if _, err := s.insertStmt.ExecContext(ctx, key, ts.UnixMilli(), expiresMS); err != nil {
		return classifySQLiteErr("insert", err)
	}
	return nil
}

// GetCounter returns the counter value, 0 if absent or expired.
func (s *SQLiteBackend) GetCounter(ctx context.Context, key string) (int64, error) {
	var value, expiresMS int64
	err := s.getStmt.QueryRowContext(ctx, key).Scan(&value, &expiresMS)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classifySQLiteErr("get-counter", err)
	}

	if expiresMS < s.clock().UnixMilli() {
		return 0, nil
	}
	return value, nil
}

// IncrCounter increments the counter and refreshes its TTL. An expired
// counter restarts from amount. The upsert runs as one statement, so
// concurrent increments serialize on SQLite's write lock.
func (s *SQLiteBackend) IncrCounter(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	nowMS := s.clock().UnixMilli()
	expiresMS := s.clock().Add(ttl).UnixMilli()

	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (key, value, expires_ms) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CASE
				WHEN counters.expires_ms < ? THEN excluded.value
				ELSE counters.value + excluded.value
			END,
			expires_ms = excluded.expires_ms
		RETURNING value`,
		key, amount, expiresMS, nowMS).Scan(&value)
	if err != nil {
		return 0, classifySQLiteErr("incr-counter", err)
	}
	return value, nil
}

// Delete removes all state for key.
func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	for _, stmt := range s.deleteStmts {
		if _, err := stmt.ExecContext(ctx, key); err != nil {
			return classifySQLiteErr("delete", err)
		}
	}
	return nil
}

// Cleanup removes rows whose expiry is before olderThan. The janitor
// calls this on a schedule; nothing on the hot path depends on it.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	cutoffMS := olderThan.UnixMilli()
	removed := 0

	for _, query := range []string{
		`DELETE FROM window_entries WHERE expires_ms < ?`,
		`DELETE FROM counters WHERE expires_ms < ?`,
	} {
		result, err := s.db.ExecContext(ctx, query, cutoffMS)
		if err != nil {
			return removed, classifySQLiteErr("cleanup", err)
		}
		if n, err := result.RowsAffected(); err == nil {
			removed += int(n)
		}
	}

	return removed, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classifySQLiteErr("ping", err)
	}
	return nil
}

// Close releases prepared statements and the database handle.
func (s *SQLiteBackend) Close() error {
	s.closeOnce.Do(func() {
		stmts := []*sql.Stmt{s.insertStmt, s.getStmt}
		stmts = append(stmts, s.deleteStmts...)
		for _, stmt := range stmts {
			if stmt != nil {
				_ = stmt.Close()
			}
		}
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// classifySQLiteErr maps database errors onto the backend error taxonomy.
func classifySQLiteErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
