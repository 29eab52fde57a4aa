// Package server exposes the rate limiter as an HTTP admission API.
//
// The limiter core (pkg/limits) has no notion of HTTP; this package is
// the transport wrapper that turns verdicts into responses. A denial
// becomes a 429 with Retry-After; the rate-limit headers on every
// response come straight from the verdict's derived header map.
//
// # Endpoints
//
//	POST /v1/check   admission check; no quota is consumed
//	POST /v1/record  commit one completed request
//	GET  /v1/status  usage snapshot for one (user, provider) pair
//	GET  /healthz    liveness plus shared-store reachability
//	GET  /metrics    Prometheus metrics
//
// Check and record are separate calls on purpose: the caller records
// only once the gated request has actually been made.
package server
