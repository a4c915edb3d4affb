// Package event persists raw inbound deliveries and enforces the
// idempotency guarantees the rest of the pipeline relies on.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DedupeKey derives the deterministic idempotency key for one delivery:
// a hash over provider, contact id, and the normalized message text.
// Redeliveries of the same message produce the same key and collapse on
// the storage-layer unique constraint.
func DedupeKey(provider, contactID, text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(provider + "\x1f" + contactID + "\x1f" + normalized))
	return hex.EncodeToString(sum[:])
}
