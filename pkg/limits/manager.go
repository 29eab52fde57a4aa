package limits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mercator-hq/floodgate/pkg/identity"
	"mercator-hq/floodgate/pkg/limits/budget"
	"mercator-hq/floodgate/pkg/limits/storage"
	"mercator-hq/floodgate/pkg/limits/window"
)

// DefaultStoreTimeout bounds all store calls made by one check. The
// limiter targets sub-5ms overhead in the happy path; 100ms is the hard
// ceiling before the degradation policy takes over.
const DefaultStoreTimeout = 100 * time.Millisecond

// failClosedRetry is the fixed retry hint handed out when the store is
// down and the limiter fails closed.
const failClosedRetry = 60 * time.Second

// unmeteredRemaining is the placeholder remaining count reported when no
// quota applies: unconfigured providers and fail-open admissions.
const unmeteredRemaining = 999_999

// Manager orchestrates the sliding-window counter and token budget
// against the quota table to produce allow/deny verdicts.
//
// A Manager holds no mutable state between calls. All coordination
// happens through the injected store backend, so any number of Manager
// instances across any number of processes enforce one global quota as
// long as they share a store.
type Manager struct {
	quotas  *Table
	window  *window.Counter
	budget  *budget.Tracker
	store   storage.Backend
	metrics *Metrics
	logger  *slog.Logger

	failOpen     bool
	storeTimeout time.Duration
	keyPrefix    string
	clock        func() time.Time
}

// Config configures a Manager.
type Config struct {
	// Store is the shared backend holding all limiter state. Required.
	Store storage.Backend

	// Quotas is the static provider quota table. Required.
	Quotas *Table

	// FailOpen selects the degradation policy when the store is
	// unreachable: true admits (availability over strictness), false
	// denies with a fixed 60s retry. True is the recommended default for
	// inference-serving platforms: a short burst of over-admission is
	// cheaper than an outage.
	FailOpen bool

	// StoreTimeout bounds the store calls of one check or record.
	// Default: 100ms.
	StoreTimeout time.Duration

	// KeyPrefix namespaces the store keys. Default: "floodgate".
	KeyPrefix string

	// Metrics receives limiter metrics. Nil disables instrumentation.
	Metrics *Metrics

	// Logger receives structured limiter logs. Default: slog.Default().
	Logger *slog.Logger

	// Clock overrides the time source. Used by tests; defaults to
	// time.Now.
	Clock func() time.Time
}

// NewManager creates a rate-limit manager.
func NewManager(cfg Config) *Manager {
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "floodgate"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Manager{
		quotas: cfg.Quotas,
		window: window.NewCounter(window.Config{
			Store: cfg.Store,
			Clock: cfg.Clock,
		}),
		budget: budget.NewTracker(budget.Config{
			Store: cfg.Store,
		}),
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		failOpen:     cfg.FailOpen,
		storeTimeout: cfg.StoreTimeout,
		keyPrefix:    cfg.KeyPrefix,
		clock:        cfg.Clock,
	}
}

// CheckRateLimit decides whether one request for (userID, provider) may
// proceed. It never returns an error: unconfigured providers are
// admitted, and store failures resolve through the fail-open policy.
//
// The check evicts expired window entries as a side effect of its atomic
// counting call but records nothing; admission is committed only when
// the caller invokes RecordRequest after the gated call actually runs.
// That separation lets callers probe without consuming quota and keeps
// checked-but-never-made calls out of the count.
func (m *Manager) CheckRateLimit(ctx context.Context, userID, provider, endpoint string, estimatedTokens int64) *Result {
	start := time.Now()
	result := m.check(ctx, userID, provider, endpoint, estimatedTokens)
	m.metrics.RecordDuration("check", time.Since(start).Seconds())
	m.metrics.RecordCheck(provider, result.Allowed)
	if !result.Allowed {
		m.metrics.RecordDenial(provider, result.Reason)
	}
	return result
}

func (m *Manager) check(ctx context.Context, userID, provider, endpoint string, estimatedTokens int64) *Result {
	quota, configured := m.quotas.Lookup(provider)
	if !configured {
		// Unmanaged providers fail open by design: a missing config
		// entry must never block traffic.
		m.logger.Warn("provider not configured for rate limiting, admitting",
			"provider", provider,
			"endpoint", endpoint,
		)
		return m.allowUnmetered(ProviderQuota{})
	}

	key := identity.Hash(userID)

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	stats, err := m.window.CountInWindow(ctx, m.windowKey(key, provider))
	if err != nil {
		return m.degrade("count", key, provider, quota, err)
	}

	reset := m.window.ResetTime(stats)

	if stats.Count >= quota.RequestsPerMinute {
		return newResult(false, ReasonRequests, quota, 0, nil, reset, reset.Sub(m.clock()))
	}

	var tokensRemaining *int64
	if quota.TokensPerMinute > 0 {
		remaining := quota.TokensPerMinute
		if estimatedTokens > 0 {
			current, err := m.budget.Get(ctx, m.tokenKey(key, provider))
			if err != nil {
				return m.degrade("budget", key, provider, quota, err)
			}
			if !budget.Allowed(current, estimatedTokens, quota.TokensPerMinute) {
				zero := int64(0)
				return newResult(false, ReasonTokens, quota, 0, &zero, reset, reset.Sub(m.clock()))
			}
			remaining = clampNonNegative(quota.TokensPerMinute - current - estimatedTokens)
		}
		tokensRemaining = &remaining
	}

	// The admitted request will occupy one window slot once recorded, so
	// remaining reports the quota left after this request.
	requestsRemaining := clampNonNegative(quota.RequestsPerMinute - stats.Count - 1)
	return newResult(true, "", quota, requestsRemaining, tokensRemaining, reset, 0)
}

// RecordRequest commits one admitted request: a window entry at now,
// plus a token-budget increment when tokensUsed is positive. It is best
// effort: the gated call has already happened, so failures are logged
// and swallowed rather than surfaced.
func (m *Manager) RecordRequest(ctx context.Context, userID, provider, endpoint string, tokensUsed int64) {
	start := time.Now()
	defer func() {
		m.metrics.RecordDuration("record", time.Since(start).Seconds())
	}()

	if _, configured := m.quotas.Lookup(provider); !configured {
		return
	}

	key := identity.Hash(userID)

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if err := m.window.Insert(ctx, m.windowKey(key, provider), m.clock()); err != nil {
		m.metrics.RecordStoreError("insert", errKind(err))
		m.logger.Warn("failed to record request, window will undercount",
			"provider", provider,
			"endpoint", endpoint,
			"key", key,
			"error", err,
		)
		return
	}

	if tokensUsed > 0 {
		if err := m.budget.Add(ctx, m.tokenKey(key, provider), tokensUsed); err != nil {
			m.metrics.RecordStoreError("incr", errKind(err))
			m.logger.Warn("failed to record token usage, budget will undercount",
				"provider", provider,
				"endpoint", endpoint,
				"key", key,
				"error", err,
			)
		}
	}
}

// GetStatus returns a read-only snapshot of current usage against the
// configured limits for one (user, provider) pair. The counting step is
// the same atomic evict-and-count used by checks. Unlike CheckRateLimit,
// store failures are returned to the caller: this is a diagnostic path,
// not a gate.
func (m *Manager) GetStatus(ctx context.Context, userID, provider string) (*Status, error) {
	start := time.Now()
	defer func() {
		m.metrics.RecordDuration("status", time.Since(start).Seconds())
	}()

	quota, _ := m.quotas.Lookup(provider)
	key := identity.Hash(userID)

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	stats, err := m.window.CountInWindow(ctx, m.windowKey(key, provider))
	if err != nil {
		m.metrics.RecordStoreError("count", errKind(err))
		return nil, err
	}

	tokensUsed, err := m.budget.Get(ctx, m.tokenKey(key, provider))
	if err != nil {
		m.metrics.RecordStoreError("get", errKind(err))
		return nil, err
	}

	return &Status{
		Provider:      provider,
		Key:           key,
		RequestsUsed:  stats.Count,
		RequestsLimit: quota.RequestsPerMinute,
		TokensUsed:    tokensUsed,
		TokensLimit:   quota.TokensPerMinute,
		ResetTime:     m.window.ResetTime(stats),
	}, nil
}

// Reset removes all limiter state for one (user, provider) pair.
// Administrative operation, never called on the hot path.
func (m *Manager) Reset(ctx context.Context, userID, provider string) error {
	key := identity.Hash(userID)

	if err := m.store.Delete(ctx, m.windowKey(key, provider)); err != nil {
		return err
	}
	return m.store.Delete(ctx, m.tokenKey(key, provider))
}

// degrade resolves a store failure inside a check according to the
// fail-open policy.
func (m *Manager) degrade(operation, key, provider string, quota ProviderQuota, err error) *Result {
	m.metrics.RecordStoreError(operation, errKind(err))

	if m.failOpen {
		m.metrics.RecordFailOpen()
		m.logger.Warn("store unreachable, failing open",
			"provider", provider,
			"key", key,
			"operation", operation,
			"error", err,
		)
		return m.allowUnmetered(quota)
	}

	m.logger.Error("store unreachable, failing closed",
		"provider", provider,
		"key", key,
		"operation", operation,
		"error", err,
	)
	reset := m.clock().Add(failClosedRetry)
	return newResult(false, ReasonStoreFailClosed, quota, 0, nil, reset, failClosedRetry)
}

// allowUnmetered builds the unconditional-allow verdict used for
// unconfigured providers and fail-open admissions.
func (m *Manager) allowUnmetered(quota ProviderQuota) *Result {
	reset := m.clock().Add(window.DefaultWindow)
	return newResult(true, "", quota, unmeteredRemaining, nil, reset, 0)
}

// windowKey is the store key for the request window of (key, provider).
func (m *Manager) windowKey(key, provider string) string {
	return m.keyPrefix + ":req:" + normalizeProvider(provider) + ":" + key
}

// tokenKey is the store key for the token budget of (key, provider).
func (m *Manager) tokenKey(key, provider string) string {
	return m.keyPrefix + ":tok:" + normalizeProvider(provider) + ":" + key
}

// errKind classifies a store error for metric labels.
func errKind(err error) string {
	if errors.Is(err, storage.ErrTimeout) {
		return "timeout"
	}
	return "unavailable"
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
