package util

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a short stable identifier for a piece of query text.
// Ledger entries and feedback records both carry it, so a feedback submission
// can be correlated with the routing decision that produced the answer
// without storing the full query twice.
func Fingerprint(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
