// Package events carries the pipeline's event bus. Envelopes mirror the
// source/detail-type shape used by the upstream card service; the Redis
// implementation publishes them on a single channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every event on the bus.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detailType"`
	Time       time.Time       `json:"time"`
	Detail     json.RawMessage `json:"detail"`
}

// Bus publishes and subscribes to pipeline events.
type Bus interface {
	// Publish emits a detail under the given source and detail type.
	Publish(ctx context.Context, source, detailType string, detail interface{}) error
	// Subscribe delivers envelopes until the context ends. Handler errors
	// are logged by the implementation, not redelivered.
	Subscribe(ctx context.Context, handler func(Envelope)) error
}

// NewEnvelope builds an envelope around a marshaled detail.
func NewEnvelope(source, detailType string, detail interface{}) (Envelope, error) {
	data, err := json.Marshal(detail)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event detail: %w", err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Source:     source,
		DetailType: detailType,
		Time:       time.Now().UTC(),
		Detail:     data,
	}, nil
}
