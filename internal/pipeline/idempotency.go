package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the idempotency key for a delivery. Two deliveries
// of the same request for the same card collapse onto one fingerprint.
func Fingerprint(requestID, userID, cardID string) string {
	h := sha256.New()
	h.Write([]byte(requestID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(cardID))
	return hex.EncodeToString(h.Sum(nil))
}
