// Package otp implements the one-time-code lifecycle: generation, lazy
// expiry, resend throttling and single-use verification, keyed by phone
// number.
package otp

import (
	"context"
	"time"
)

// Record is a live one-time code. At most one record exists per phone number;
// regeneration replaces the previous record. Creation time is derived as
// ExpiresAt minus the configured TTL.
type Record struct {
	Code      string
	ExpiresAt time.Time
}

// Store is the concurrency-safe key-value store backing the OTP lifecycle.
// Implementations must keep per-key operations atomic relative to each other
// so a verify can never succeed against a code that a concurrent generate has
// already replaced.
type Store interface {
	// Put stores the record for the key, replacing any existing one.
	Put(ctx context.Context, key string, rec Record) error
	// Get returns the record for the key, reporting whether one exists.
	Get(ctx context.Context, key string) (Record, bool, error)
	// Delete removes the record for the key if present.
	Delete(ctx context.Context, key string) error
	// DeleteIfCode removes the record only if it still carries the given
	// code, reporting whether a record was removed.
	DeleteIfCode(ctx context.Context, key, code string) (bool, error)
}
