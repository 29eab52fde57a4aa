// Package identity derives opaque store keys from raw caller identifiers.
//
// Raw identifiers (API keys, user IDs, IP addresses) must never appear in
// shared-store keys or log output. Every component that needs a per-caller
// key goes through Hash first, so the only identifier that leaves the
// process is a short one-way digest.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the length of the opaque key returned by Hash.
// 16 hex characters (64 bits of the digest) keeps store keys short while
// making accidental collisions between callers vanishingly unlikely.
const HashLength = 16

// Hash returns a deterministic, one-way transform of a raw caller
// identifier. The same input always produces the same key, and the raw
// identifier cannot be recovered from it.
func Hash(rawID string) string {
	sum := sha256.Sum256([]byte(rawID))
	return hex.EncodeToString(sum[:])[:HashLength]
}
