// Package aggregate merges the pipeline branch results into the persisted
// card and emits the completion event. It is the only pipeline component
// that writes cards.
package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/events"
	"github.com/collectiq/collectiq/internal/models"
	"github.com/collectiq/collectiq/internal/persistence"
)

// Input carries everything the aggregator needs from the upstream stages.
// Pricing, Summary, and Authenticity are nil when their branch failed.
type Input struct {
	RequestID     string
	UserID        string
	CardID        string
	FrontImageRef string

	// SkipCardFetch selects the upsert path: results are written without
	// consulting any pre-existing row.
	SkipCardFetch bool

	Metadata     *models.CardMetadata
	Pricing      *models.PricingResult
	Summary      *models.ValuationSummary
	Authenticity *models.AuthenticityResult
}

// Aggregator persists merged results and emits completion events.
type Aggregator struct {
	repo persistence.CardRepo
	bus  events.Bus
}

// New wires the aggregator. bus may be nil, disabling event emission.
func New(repo persistence.CardRepo, bus events.Bus) *Aggregator {
	return &Aggregator{repo: repo, bus: bus}
}

// Persist writes the merged results. On the upsert path the card row is
// created or replaced outright; otherwise the existing live row is read
// and updated, propagating ErrNotFound and ErrForbidden.
func (a *Aggregator) Persist(ctx context.Context, in Input) (*models.Card, error) {
	var card *models.Card
	if in.SkipCardFetch {
		card = &models.Card{
			UserID:        in.UserID,
			CardID:        in.CardID,
			FrontImageRef: in.FrontImageRef,
		}
		mergeResults(card, in)
		if err := a.repo.Upsert(ctx, card); err != nil {
			return nil, err
		}
		return card, nil
	}

	existing, err := a.repo.Get(ctx, in.UserID, in.CardID)
	if err != nil {
		return nil, err
	}
	card = existing
	mergeResults(card, in)
	if err := a.repo.UpdateAnalysis(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// Emit publishes the completion event. Emission failures are logged, never
// fatal: the persisted card is the source of truth.
func (a *Aggregator) Emit(ctx context.Context, in Input, card *models.Card) {
	if a.bus == nil {
		return
	}
	detail := completionDetail(in, card)
	if err := a.bus.Publish(ctx, models.SourceBackend, models.EventValuationCompleted, detail); err != nil {
		log.Warn().
			Err(err).
			Str("card_id", in.CardID).
			Str("request_id", in.RequestID).
			Msg("failed to publish valuation completed event")
	}
}

// mergeResults applies the merge rules: pricing and authenticity results
// are always copied, OCR metadata is always stored, and identification
// fields are copied only from AI-verified metadata with non-null values.
func mergeResults(card *models.Card, in Input) {
	if in.Metadata != nil {
		meta := *in.Metadata
		card.OCRMetadata = &meta

		if meta.VerifiedByAI {
			setIfPresent(&card.Name, meta.Name.Value)
			setIfPresent(&card.Set, meta.Set.Resolved())
			setIfPresent(&card.Rarity, meta.Rarity.Value)
			setIfPresent(&card.CollectorNumber, meta.CollectorNumber.Value)
			setIfPresent(&card.Condition, meta.Condition.Value)
			conf := meta.OverallConfidence
			card.IDConfidence = &conf
		}
	}

	if in.Pricing != nil {
		p := in.Pricing
		card.ValueLow = &p.ValueLow
		card.ValueMedian = &p.ValueMedian
		card.ValueHigh = &p.ValueHigh
		card.CompsCount = &p.CompsCount
		card.PricingSources = p.Sources
		if p.Message != "" {
			card.PricingMessage = &p.Message
		}
	}
	if in.Summary != nil {
		s := *in.Summary
		card.ValuationSummary = &s
	}

	if in.Authenticity != nil {
		score := in.Authenticity.Score
		signals := in.Authenticity.Signals
		card.AuthenticityScore = &score
		card.AuthenticitySignals = &signals
	}
}

func setIfPresent(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func completionDetail(in Input, card *models.Card) models.ValuationCompletedDetail {
	detail := models.ValuationCompletedDetail{
		CardID:    in.CardID,
		UserID:    in.UserID,
		Name:      card.Name,
		Set:       card.Set,
		RequestID: in.RequestID,
		Timestamp: time.Now().UTC(),
	}
	if in.Pricing != nil {
		detail.ValueLow = in.Pricing.ValueLow
		detail.ValueMedian = in.Pricing.ValueMedian
		detail.ValueHigh = in.Pricing.ValueHigh
		detail.PricingConfidence = in.Pricing.Confidence
		detail.PricingSources = in.Pricing.Sources
	}
	if in.Summary != nil {
		detail.ValuationTrend = in.Summary.Trend
		detail.ValuationFairValue = in.Summary.FairValue
	}
	if in.Authenticity != nil {
		detail.AuthenticityScore = in.Authenticity.Score
		detail.FakeDetected = in.Authenticity.FakeDetected
	}
	if in.Metadata != nil {
		detail.OCRMetadata = &models.OCRSummary{
			Name:              in.Metadata.Name.Value,
			Set:               in.Metadata.Set.Resolved(),
			OverallConfidence: in.Metadata.OverallConfidence,
			VerifiedByAI:      in.Metadata.VerifiedByAI,
		}
	}
	return detail
}
