package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/events"
	"github.com/collectiq/collectiq/internal/models"
)

// RunObserver is notified of every pipeline run's outcome (completed,
// rejected, failed, duplicate). Used for the worker's rolling KPIs.
type RunObserver interface {
	RecordRun(outcome string)
}

// Trigger consumes card events and runs the pipeline for each. CardCreated
// always starts an analysis; CardUpdated starts a revaluation only when
// autoRevalue is enabled.
type Trigger struct {
	bus          events.Bus
	orchestrator *Orchestrator
	observer     RunObserver
	autoRevalue  bool
}

// NewTrigger wires the consumer. observer may be nil.
func NewTrigger(bus events.Bus, orchestrator *Orchestrator, observer RunObserver, autoRevalue bool) *Trigger {
	return &Trigger{bus: bus, orchestrator: orchestrator, observer: observer, autoRevalue: autoRevalue}
}

// Listen blocks, running the pipeline for every triggering event until the
// context ends. Per-event failures are logged; the subscription stays up.
func (t *Trigger) Listen(ctx context.Context) error {
	return t.bus.Subscribe(ctx, func(env events.Envelope) {
		switch env.DetailType {
		case models.EventCardCreated:
			var detail models.CardCreatedDetail
			if err := json.Unmarshal(env.Detail, &detail); err != nil {
				log.Warn().Err(err).Str("event_id", env.ID).Msg("dropping malformed card created event")
				return
			}
			t.dispatch(ctx, Request{
				RequestID:     env.ID,
				UserID:        detail.UserID,
				CardID:        detail.CardID,
				FrontImageRef: detail.FrontS3Key,
				SkipCardFetch: true,
			})
		case models.EventCardUpdated:
			if !t.autoRevalue {
				return
			}
			var detail models.CardUpdatedDetail
			if err := json.Unmarshal(env.Detail, &detail); err != nil {
				log.Warn().Err(err).Str("event_id", env.ID).Msg("dropping malformed card updated event")
				return
			}
			t.dispatch(ctx, Request{
				RequestID:     env.ID,
				UserID:        detail.UserID,
				CardID:        detail.CardID,
				FrontImageRef: detail.FrontS3Key,
				SkipCardFetch: false,
			})
		}
	})
}

func (t *Trigger) dispatch(ctx context.Context, req Request) {
	_, err := t.orchestrator.Run(ctx, req)
	if err != nil && !errors.Is(err, ErrDuplicateDelivery) {
		log.Error().Err(err).Str("card_id", req.CardID).Msg("pipeline run failed")
	}
	if t.observer != nil {
		t.observer.RecordRun(outcomeOf(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrDuplicateDelivery):
		return "duplicate"
	case isTerminal(err):
		return "rejected"
	default:
		return "failed"
	}
}
