// Package storage provides shared-state backends for the limits package.
//
// All durable rate-limit state lives in a Backend; the limiter process
// itself is stateless between calls, which is what lets any number of
// server processes enforce one global quota by pointing at the same store.
//
// # Backends
//
//   - RedisBackend: production backend for multi-host deployments. The
//     evict-and-count step runs as a single Lua script, so concurrent
//     checkers can never observe a stale count.
//   - SQLiteBackend: single-host deployments where several processes share
//     one database file. Evict-and-count runs in one immediate
//     transaction.
//   - MemoryBackend: in-process backend for tests and single-instance use.
//     Same atomic semantics, enforced by a single mutex.
//
// # Atomicity
//
// CountInWindow is the load-bearing contract: it must evict expired
// entries and count the survivors in one atomic store operation. A
// read-count-then-separately-evict sequence reopens the admission race
// this package exists to close: two concurrent callers could both see
// "under limit" and both be admitted.
//
// # Error Taxonomy
//
// Backends report failures through two sentinel errors so callers can
// apply a degradation policy without inspecting backend internals:
//
//   - ErrTimeout: the bounded deadline elapsed before the store answered.
//   - ErrUnavailable: a connection-level failure reaching the store.
package storage
