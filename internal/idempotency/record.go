// Package idempotency records the outcome of keyed requests so client
// retries return the prior result instead of reprocessing.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the lifecycle of a keyed request.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DefaultTTL is how long a resolved record shields against retries.
const DefaultTTL = 24 * time.Hour

// Record is the stored outcome of a keyed request. Key is unique per
// tenant; RequestHash fingerprints the request payload so a reused key
// with a different payload can be told apart from a genuine retry.
type Record struct {
	ID          uuid.UUID
	TenantID    int64
	Key         string
	RequestHash string
	Response    json.RawMessage
	Status      Status
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the record no longer shields the key.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// HashRequest returns the SHA-256 hex fingerprint of the canonical JSON
// encoding of a request payload.
func HashRequest(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
