// Package export turns store snapshots into anonymized statistics and
// downloadable transcripts.
package export

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenLength is the number of hex characters kept from the digest (64 bits).
const TokenLength = 16

// Anonymize derives the stable, non-reversible token shown in place of a session id.
func Anonymize(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])[:TokenLength]
}
