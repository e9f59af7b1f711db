package booking

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// IdempotencyKey fingerprints a booking request. Identical tuples always
// yield the identical key, so a retried commit is a backend no-op instead of
// a double booking.
func IdempotencyKey(salon, variationID string, startAt time.Time, customerID, staffID string) string {
	parts := []string{
		salon,
		variationID,
		startAt.UTC().Format(time.RFC3339),
		customerID,
		staffID,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
