package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/collectiq/internal/events"
	"github.com/collectiq/collectiq/internal/extractor"
	"github.com/collectiq/collectiq/internal/models"
)

type scriptedBus struct {
	envelopes []events.Envelope
}

func (b *scriptedBus) Publish(context.Context, string, string, interface{}) error { return nil }

func (b *scriptedBus) Subscribe(_ context.Context, handler func(events.Envelope)) error {
	for _, env := range b.envelopes {
		handler(env)
	}
	return nil
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) RecordRun(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestTriggerIgnoresUnrelatedEvents(t *testing.T) {
	bus := &scriptedBus{envelopes: []events.Envelope{
		{ID: "evt-1", DetailType: models.EventValuationCompleted, Detail: json.RawMessage(`{}`)},
		{ID: "evt-2", DetailType: models.EventCardCreated, Detail: json.RawMessage(`not json`)},
	}}
	obs := &recordingObserver{}
	// Neither envelope survives filtering, so the orchestrator is never run.
	trigger := NewTrigger(bus, nil, obs, false)

	assert.NoError(t, trigger.Listen(context.Background()))
	assert.Empty(t, obs.outcomes)
}

func TestTriggerIgnoresCardUpdatedWhenAutoRevalueOff(t *testing.T) {
	bus := &scriptedBus{envelopes: []events.Envelope{
		{ID: "evt-1", DetailType: models.EventCardUpdated, Detail: json.RawMessage(`{"cardId":"card-1","userId":"user-1"}`)},
	}}
	obs := &recordingObserver{}
	trigger := NewTrigger(bus, nil, obs, false)

	assert.NoError(t, trigger.Listen(context.Background()))
	assert.Empty(t, obs.outcomes)
}

func TestTriggerCardUpdatedRunsRevaluation(t *testing.T) {
	agg := &fakePersister{}
	scorer := &fakeScorer{result: models.AuthenticityResult{Score: 0.9}}
	repo := &memRepo{cards: map[string]*models.Card{
		"user-1/card-1": {UserID: "user-1", CardID: "card-1", FrontImageRef: "uploads/user-1/stored.png"},
	}}
	o := newTestOrchestrator(&fakeExtractor{env: &models.FeatureEnvelope{}}, &fakePricer{}, scorer, agg, repo, nil, nil)

	bus := &scriptedBus{envelopes: []events.Envelope{
		{ID: "evt-1", DetailType: models.EventCardUpdated, Detail: json.RawMessage(`{"cardId":"card-1","userId":"user-1"}`)},
	}}
	obs := &recordingObserver{}
	trigger := NewTrigger(bus, o, obs, true)

	assert.NoError(t, trigger.Listen(context.Background()))
	assert.Equal(t, []string{"completed"}, obs.outcomes)
	require.Len(t, agg.persisted, 1)
	assert.False(t, agg.persisted[0].SkipCardFetch, "update-driven runs take the verified-update path")
	assert.Equal(t, "uploads/user-1/stored.png", agg.persisted[0].FrontImageRef)
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil_is_completed", nil, "completed"},
		{"duplicate_delivery", ErrDuplicateDelivery, "duplicate"},
		{"wrapped_duplicate", errors.Join(errors.New("outer"), ErrDuplicateDelivery), "duplicate"},
		{"moderation_is_rejected", &extractor.Error{Code: extractor.CodeInappropriateContent}, "rejected"},
		{"invalid_image_is_rejected", &extractor.Error{Code: extractor.CodeInvalidCardImage}, "rejected"},
		{"fetch_failure_is_failed", &extractor.Error{Code: extractor.CodeSourceUnavailable}, "failed"},
		{"generic_error_is_failed", errors.New("boom"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeOf(tt.err))
		})
	}
}
