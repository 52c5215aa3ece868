package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/persistence"
)

// DeadLetter captures a submission whose results could not be persisted,
// preserving everything needed for manual replay.
type DeadLetter struct {
	RequestID     string    `json:"requestId"`
	UserID        string    `json:"userId"`
	CardID        string    `json:"cardId"`
	FrontImageRef string    `json:"frontImageRef"`
	Error         string    `json:"error"`
	Attempts      int       `json:"attempts"`
	CapturedAt    time.Time `json:"capturedAt"`
	Payload       any       `json:"payload,omitempty"`
}

// DeadLetterSink writes dead letters to durable storage.
type DeadLetterSink struct {
	store persistence.ObjectStore
}

// NewDeadLetterSink wires the sink over an object store.
func NewDeadLetterSink(store persistence.ObjectStore) *DeadLetterSink {
	return &DeadLetterSink{store: store}
}

// Capture writes the dead letter under deadletter/{requestId}/{uuid}.json.
// Capture failures are logged; the caller has nothing better to do with
// them.
func (s *DeadLetterSink) Capture(ctx context.Context, dl DeadLetter) {
	dl.CapturedAt = time.Now().UTC()
	data, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		log.Error().Err(err).Str("request_id", dl.RequestID).Msg("failed to marshal dead letter")
		return
	}
	key := fmt.Sprintf("deadletter/%s/%s.json", dl.RequestID, uuid.NewString())
	if err := s.store.Put(ctx, key, data); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to write dead letter")
		return
	}
	log.Warn().Str("key", key).Str("card_id", dl.CardID).Msg("submission dead-lettered")
}
