// Package redisstore implements the idempotency store on Redis. In-flight
// claims are SETNX keys with a TTL so stuck claims expire on their own;
// completed runs overwrite the claim with a durable marker pointing at the
// persisted card.
package redisstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/collectiq/collectiq/internal/persistence"
)

const (
	claimPrefix    = "collectiq:idempotency:"
	inflightMarker = "inflight|"
	doneMarker     = "done|"
)

// IdempotencyStore records processed request fingerprints in Redis.
type IdempotencyStore struct {
	client redis.Cmdable
}

// NewIdempotencyStore wires the store over a Redis client.
func NewIdempotencyStore(client redis.Cmdable) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

var _ persistence.IdempotencyStore = (*IdempotencyStore)(nil)

// Claim records the fingerprint atomically. When the claim is lost the
// stored value distinguishes a completed run from one still in flight.
func (s *IdempotencyStore) Claim(ctx context.Context, fingerprint string, ttl time.Duration) (persistence.ClaimState, error) {
	key := claimPrefix + fingerprint
	won, err := s.client.SetNX(ctx, key, inflightMarker+time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return persistence.ClaimState{}, fmt.Errorf("failed to claim fingerprint: %w", err)
	}
	if won {
		return persistence.ClaimState{Won: true}, nil
	}

	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// The earlier claim expired between SETNX and GET; try once more.
		won, err = s.client.SetNX(ctx, key, inflightMarker+time.Now().UTC().Format(time.RFC3339), ttl).Result()
		if err != nil {
			return persistence.ClaimState{}, fmt.Errorf("failed to claim fingerprint: %w", err)
		}
		return persistence.ClaimState{Won: won}, nil
	}
	if err != nil {
		return persistence.ClaimState{}, fmt.Errorf("failed to read existing claim: %w", err)
	}

	if rest, ok := strings.CutPrefix(val, doneMarker); ok {
		if user, card, found := strings.Cut(rest, "|"); found {
			return persistence.ClaimState{Completed: true, UserID: user, CardID: card}, nil
		}
	}
	return persistence.ClaimState{}, nil
}

// Complete overwrites the in-flight claim with a completion marker retained
// well past the claim TTL, so late redeliveries resolve to the prior result.
func (s *IdempotencyStore) Complete(ctx context.Context, fingerprint, userID, cardID string, retention time.Duration) error {
	val := doneMarker + userID + "|" + cardID
	if err := s.client.Set(ctx, claimPrefix+fingerprint, val, retention).Err(); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// Release drops the claim so a failed run can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, fingerprint string) error {
	if err := s.client.Del(ctx, claimPrefix+fingerprint).Err(); err != nil {
		return fmt.Errorf("failed to release fingerprint: %w", err)
	}
	return nil
}
