// Package backend defines the pluggable key-value storage contract behind the
// per-user memory store. A backend holds one JSON document per (user, tier);
// the core never depends on the storage medium, only on these operations.
package backend

import (
	"context"
	"fmt"
)

// Tier names a memory tier document.
type Tier string

const (
	// TierSTM holds the short-term record of raw recent sessions.
	TierSTM Tier = "stm"
	// TierLTM holds the long-term record of derived trends and preferences.
	TierLTM Tier = "ltm"
)

// Backend is the storage interface for memory documents.
type Backend interface {
	// Get returns the document for (user, tier), or NotFoundError.
	Get(ctx context.Context, userID string, tier Tier) ([]byte, error)

	// Put stores the document for (user, tier), replacing any previous one.
	Put(ctx context.Context, userID string, tier Tier, data []byte) error

	// Delete removes the document for (user, tier). Missing documents are
	// not an error.
	Delete(ctx context.Context, userID string, tier Tier) error

	// Users lists all user IDs with at least one stored document.
	Users(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// NotFoundError indicates that no document exists for the user and tier.
type NotFoundError struct {
	UserID string
	Tier   Tier
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("memory %s not found for user %s", e.Tier, e.UserID)
}

// UnavailableError indicates that the backend could not complete an
// operation.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }
