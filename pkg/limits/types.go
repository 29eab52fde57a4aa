package limits

import (
	"math"
	"strconv"
	"time"
)

// Deny reasons, used in Result.Reason and as metric labels.
const (
	// ReasonRequests means the rolling request-count quota is exhausted.
	ReasonRequests = "requests"

	// ReasonTokens means the token budget cannot fit the estimate.
	ReasonTokens = "tokens"

	// ReasonStoreFailClosed means the store failed and the limiter is
	// configured to fail closed.
	ReasonStoreFailClosed = "store_fail_closed"
)

// Result is the verdict of one rate-limit check.
//
// A Result is always computed, never stored. RetryAfter is positive if
// and only if Allowed is false. Headers is derived deterministically from
// the other fields at construction time and never independently mutated;
// the transport wrapper that consumes the verdict copies them onto its
// response as-is.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Reason names which quota denied the request (one of the Reason*
	// constants). Empty when Allowed.
	Reason string

	// RequestsRemaining is the request quota left in the window after
	// admitting this request. 0 on denial.
	RequestsRemaining int64

	// TokensRemaining is the token budget left after admitting this
	// request. Nil when the provider has no token limit.
	TokensRemaining *int64

	// ResetTime is when the window next frees capacity.
	ResetTime time.Time

	// RetryAfter is how long a denied caller should wait before
	// retrying. 0 when Allowed.
	RetryAfter time.Duration

	// Headers carries the rate-limit response headers derived from the
	// fields above.
	Headers map[string]string
}

// Status is a read-only diagnostic snapshot of one (user, provider)
// pair's usage against its limits. Used for observability, not gating.
type Status struct {
	// Provider is the normalized provider name.
	Provider string

	// Key is the hashed caller identity the usage is tracked under.
	Key string

	// RequestsUsed is the current count inside the sliding window.
	RequestsUsed int64

	// RequestsLimit is the configured request quota. 0 when the provider
	// is not configured.
	RequestsLimit int64

	// TokensUsed is the current token-budget counter value.
	TokensUsed int64

	// TokensLimit is the configured token quota. 0 when the provider has
	// no token limit.
	TokensLimit int64

	// ResetTime is when the window next frees capacity.
	ResetTime time.Time
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds with
// a floor of 1, or 0 when the request was allowed. This is the value a
// transport wrapper puts in a Retry-After header.
func (r *Result) RetryAfterSeconds() int64 {
	if r.Allowed {
		return 0
	}
	return ceilSeconds(r.RetryAfter)
}

// newResult assembles a Result and derives its headers. All Result
// construction funnels through here so the headers-follow-fields
// invariant cannot drift.
func newResult(allowed bool, reason string, quota ProviderQuota, requestsRemaining int64, tokensRemaining *int64, reset time.Time, retryAfter time.Duration) *Result {
	result := &Result{
		Allowed:           allowed,
		Reason:            reason,
		RequestsRemaining: requestsRemaining,
		TokensRemaining:   tokensRemaining,
		ResetTime:         reset,
		RetryAfter:        retryAfter,
	}
	result.Headers = deriveHeaders(result, quota)
	return result
}

// deriveHeaders renders the standard rate-limit headers from a Result.
// The limiter has no notion of HTTP; it only produces the map. Limits of
// 0 (unmanaged provider, fail-open placeholder) omit the limit headers.
func deriveHeaders(result *Result, quota ProviderQuota) map[string]string {
	headers := map[string]string{
		"X-RateLimit-Remaining": strconv.FormatInt(result.RequestsRemaining, 10),
		"X-RateLimit-Reset":     strconv.FormatInt(result.ResetTime.Unix(), 10),
	}

	if quota.RequestsPerMinute > 0 {
		headers["X-RateLimit-Limit"] = strconv.FormatInt(quota.RequestsPerMinute, 10)
	}
	if quota.TokensPerMinute > 0 {
		headers["X-RateLimit-Limit-Tokens"] = strconv.FormatInt(quota.TokensPerMinute, 10)
	}
	if result.TokensRemaining != nil {
		headers["X-RateLimit-Remaining-Tokens"] = strconv.FormatInt(*result.TokensRemaining, 10)
	}
	if !result.Allowed {
		headers["Retry-After"] = strconv.FormatInt(result.RetryAfterSeconds(), 10)
	}

	return headers
}

// ceilSeconds rounds a duration up to whole seconds, with a floor of 1:
// a denied caller must always wait at least one second.
func ceilSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
