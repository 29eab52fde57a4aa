package limits

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderQuota holds the per-minute quotas for one provider.
type ProviderQuota struct {
	// RequestsPerMinute is the rolling 60-second request quota.
	RequestsPerMinute int64

	// TokensPerMinute is the rolling token-budget quota. 0 means the
	// provider has no token limit.
	TokensPerMinute int64
}

// Table is the static quota table: provider name to quota, keyed
// case-insensitively. It is built once at startup and never mutated, so
// it is safe for concurrent readers without locking.
type Table struct {
	quotas map[string]ProviderQuota
}

// NewTable builds a quota table from a provider-to-quota map.
// Provider names are normalized to lower case. A provider with a
// non-positive request quota is rejected as a configuration mistake.
func NewTable(quotas map[string]ProviderQuota) (*Table, error) {
	normalized := make(map[string]ProviderQuota, len(quotas))
	for name, quota := range quotas {
		if quota.RequestsPerMinute <= 0 {
			return nil, fmt.Errorf("provider %q: requests_per_minute must be positive, got %d",
				name, quota.RequestsPerMinute)
		}
		if quota.TokensPerMinute < 0 {
			return nil, fmt.Errorf("provider %q: tokens_per_minute cannot be negative, got %d",
				name, quota.TokensPerMinute)
		}
		normalized[strings.ToLower(name)] = quota
	}

	return &Table{quotas: normalized}, nil
}

// Lookup returns the quota for a provider, matching case-insensitively.
// The second return is false when the provider is not configured, which
// is not an error: unmanaged providers are admitted unconditionally.
func (t *Table) Lookup(provider string) (ProviderQuota, bool) {
	quota, ok := t.quotas[strings.ToLower(provider)]
	return quota, ok
}

// normalizeProvider lower-cases a provider name for case-insensitive
// keying.
func normalizeProvider(provider string) string {
	return strings.ToLower(provider)
}

// Providers returns the configured provider names, sorted.
func (t *Table) Providers() []string {
	names := make([]string, 0, len(t.quotas))
	for name := range t.quotas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
