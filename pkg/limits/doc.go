// Package limits enforces per-(user, provider) quotas for outbound LLM
// requests across any number of stateless server processes.
//
// # Overview
//
// Two quotas apply per (user, provider) pair:
//
//   - A rolling 60-second request-count quota, enforced with a true
//     sliding window so a burst never gets a free second helping at a
//     wall-clock minute boundary.
//   - A secondary token-budget quota, enforced with a coarser TTL
//     counter.
//
// All durable state lives in a shared store (see the storage package).
// The Manager itself is stateless between calls: running N replicas
// requires nothing beyond pointing them at the same store.
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - window: sliding-window request counter (atomic evict-and-count)
//   - budget: TTL token-budget counter
//   - storage: shared-state backends (Redis, SQLite, memory)
//
// # Usage
//
//	manager := limits.NewManager(limits.Config{
//	    Store:    backend,
//	    Quotas:   table,
//	    FailOpen: true,
//	})
//
//	// Before the gated call
//	result := manager.CheckRateLimit(ctx, userID, "openai", "/v1/chat", 500)
//	if !result.Allowed {
//	    // Deny; result.RetryAfter and result.Headers are ready to use.
//	}
//
//	// After the gated call actually happened
//	manager.RecordRequest(ctx, userID, "openai", "/v1/chat", usedTokens)
//
// Check and record are deliberately separate operations: a check commits
// nothing, so callers can probe without consuming quota, and a call that
// was checked but never made is never counted.
//
// # Failure Policy
//
// CheckRateLimit never surfaces an error. Store timeouts and outages
// resolve through the FailOpen policy: open favors availability (allow
// with a placeholder remaining count), closed favors strict cost control
// (deny with a fixed 60-second retry). RecordRequest failures are always
// swallowed: undercounting a call that already happened beats surfacing
// an error for it.
package limits
