// Package cas implements the content-addressed store for patterns,
// grammars, raw files and extraction records. Every stored object gets an
// exact cryptographic hash for identity and deduplication, and a small
// non-cryptographic similarity hash for fuzzy discovery.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// DisplayHashLen is how many hex characters of an exact hash are shown in
// human-facing output. Full hashes are always used for addressing.
const DisplayHashLen = 12

// validHash matches a lowercase hex-encoded SHA-256 hash.
var validHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ExactHash returns the SHA-256 digest of the payload as lowercase hex.
// Two payloads are identical iff their exact hashes match.
func ExactHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ShortHash truncates an exact hash to its display width.
func ShortHash(hash string) string {
	if len(hash) > DisplayHashLen {
		return hash[:DisplayHashLen]
	}
	return hash
}

// ValidHash reports whether s looks like a full exact hash.
func ValidHash(s string) bool {
	return validHash.MatchString(s)
}
