// Package persistence defines the storage interfaces the pipeline depends
// on. Concrete backends live in subpackages (postgres, fsstore, redisstore)
// so the orchestrator stays backend-agnostic.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/collectiq/collectiq/internal/models"
)

var (
	// ErrNotFound is returned when the addressed card does not exist or has
	// been soft-deleted.
	ErrNotFound = errors.New("card not found")
	// ErrForbidden is returned when the card exists but belongs to another
	// user.
	ErrForbidden = errors.New("card belongs to another user")
)

// CardRepo stores analysis results. The aggregator is its only pipeline
// writer.
type CardRepo interface {
	// Upsert writes the card unconditionally, creating the row when absent.
	// Used when the analysis results carry the full card state and no
	// pre-existing row needs to be consulted.
	Upsert(ctx context.Context, card *models.Card) error

	// UpdateAnalysis merges analysis fields into an existing, live card.
	// Returns ErrNotFound when no live row matches (user_id, card_id) and
	// ErrForbidden when the card exists under a different owner.
	UpdateAnalysis(ctx context.Context, card *models.Card) error

	// Get fetches a card by owner and id, excluding soft-deleted rows.
	Get(ctx context.Context, userID, cardID string) (*models.Card, error)

	// ListByUser returns the user's live cards, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Card, error)

	// SoftDelete marks the card deleted without removing the row.
	SoftDelete(ctx context.Context, userID, cardID string) error

	// HardDelete removes the row entirely. Used when moderation rejects the
	// submission and no trace of it may remain.
	HardDelete(ctx context.Context, userID, cardID string) error
}

// ObjectStore is a flat blob store addressed by key. Keys use slash-separated
// prefixes (uploads/, authentic-samples/, deadletter/).
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// List returns the keys under a prefix, lexicographically sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ClaimState is the outcome of an idempotency claim.
type ClaimState struct {
	// Won is true when this caller recorded the claim.
	Won bool
	// Completed is true when a finished run already holds the fingerprint;
	// UserID and CardID then locate the prior result.
	Completed bool
	UserID    string
	CardID    string
}

// IdempotencyStore records processed request fingerprints so redelivered
// events do not double-write results. Implementations must use conditional
// writes: the store is shared across workers.
type IdempotencyStore interface {
	// Claim atomically records the fingerprint as in-flight. When the
	// fingerprint is already present the returned state says whether the
	// earlier run finished or is still running.
	Claim(ctx context.Context, fingerprint string, ttl time.Duration) (ClaimState, error)
	// Complete overwrites the claim with a durable completion marker
	// pointing at the persisted result.
	Complete(ctx context.Context, fingerprint, userID, cardID string, retention time.Duration) error
	// Release drops the claim so a failed run can be retried.
	Release(ctx context.Context, fingerprint string) error
}
