// Package pipeline orchestrates the analysis stages for one submission:
// feature extraction, OCR reasoning, the pricing/authenticity fan-out, and
// result aggregation.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/aggregate"
	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/extractor"
	"github.com/collectiq/collectiq/internal/metrics"
	"github.com/collectiq/collectiq/internal/models"
	"github.com/collectiq/collectiq/internal/persistence"
)

// ErrDuplicateDelivery marks a redelivered request that was already
// processed; callers treat it as success. When the earlier run completed,
// Run returns the prior card alongside this error.
var ErrDuplicateDelivery = errors.New("request already processed")

// completedRetention keeps completion markers long past the in-flight
// claim TTL so late redeliveries resolve to the prior result.
const completedRetention = 7 * 24 * time.Hour

// Request identifies one submission to analyze. ExpectedSet and
// ExpectedRarity are caller-supplied hints used when OCR cannot determine
// the field; ForceRefresh re-runs the pipeline even when a completed
// record already holds the fingerprint.
type Request struct {
	RequestID     string
	UserID        string
	CardID        string
	FrontImageRef string
	SkipCardFetch bool

	ExpectedSet    string
	ExpectedRarity string
	ForceRefresh   bool
}

// Extractor produces the feature envelope for an image.
type Extractor interface {
	Extract(ctx context.Context, imageRef string) (*models.FeatureEnvelope, error)
}

// Reasoner interprets OCR blocks into card metadata. It never fails.
type Reasoner interface {
	Interpret(ctx context.Context, env *models.FeatureEnvelope) *models.CardMetadata
}

// Pricer values a card from market comparables.
type Pricer interface {
	Price(ctx context.Context, q models.PriceQuery) (models.PricingResult, models.ValuationSummary, error)
}

// Scorer judges authenticity. It never fails.
type Scorer interface {
	Score(ctx context.Context, env *models.FeatureEnvelope, meta *models.CardMetadata) models.AuthenticityResult
}

// Persister writes the merged results and emits completion events.
type Persister interface {
	Persist(ctx context.Context, in aggregate.Input) (*models.Card, error)
	Emit(ctx context.Context, in aggregate.Input, card *models.Card)
}

const persistAttempts = 3

// Orchestrator runs the pipeline stages in order with per-stage timeouts
// under one overall deadline.
type Orchestrator struct {
	extractor  Extractor
	reasoner   Reasoner
	pricer     Pricer
	scorer     Scorer
	aggregator Persister

	repo       persistence.CardRepo
	store      persistence.ObjectStore
	idem       persistence.IdempotencyStore
	deadletter *DeadLetterSink

	cfg config.PipelineConfig

	persistBackoff time.Duration
}

// New wires the orchestrator. idem and deadletter may be nil, disabling
// deduplication and dead-letter capture respectively.
func New(
	ext Extractor, reasoner Reasoner, pricer Pricer, scorer Scorer, agg Persister,
	repo persistence.CardRepo, store persistence.ObjectStore,
	idem persistence.IdempotencyStore, deadletter *DeadLetterSink,
	cfg config.PipelineConfig,
) *Orchestrator {
	return &Orchestrator{
		extractor:      ext,
		reasoner:       reasoner,
		pricer:         pricer,
		scorer:         scorer,
		aggregator:     agg,
		repo:           repo,
		store:          store,
		idem:           idem,
		deadletter:     deadletter,
		cfg:            cfg,
		persistBackoff: 2 * time.Second,
	}
}

// Run executes the full pipeline for one submission. A duplicate of a
// completed run returns the prior card with ErrDuplicateDelivery; a
// duplicate of an in-flight run returns ErrDuplicateDelivery alone.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.Card, error) {
	fingerprint := Fingerprint(req.RequestID, req.UserID, req.CardID)
	if o.idem != nil && !req.ForceRefresh {
		state, err := o.idem.Claim(ctx, fingerprint, o.overallDeadline()*2)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency claim failed, proceeding without dedup")
		} else if !state.Won {
			metrics.PipelineRuns.WithLabelValues("duplicate").Inc()
			log.Info().Str("request_id", req.RequestID).Str("card_id", req.CardID).
				Bool("prior_completed", state.Completed).
				Msg("duplicate delivery skipped")
			if state.Completed && o.repo != nil {
				if prior, gerr := o.repo.Get(ctx, state.UserID, state.CardID); gerr == nil {
					return prior, ErrDuplicateDelivery
				}
			}
			return nil, ErrDuplicateDelivery
		}
	}

	card, err := o.run(ctx, req)
	if o.idem != nil {
		switch {
		case err == nil:
			if cerr := o.idem.Complete(context.WithoutCancel(ctx), fingerprint, req.UserID, req.CardID, completedRetention); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to record idempotency completion")
			}
		case !isTerminal(err):
			// Transient failures release the claim so a redelivery can retry.
			if rerr := o.idem.Release(context.WithoutCancel(ctx), fingerprint); rerr != nil {
				log.Warn().Err(rerr).Msg("failed to release idempotency claim")
			}
		}
	}
	return card, err
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, o.overallDeadline())
	defer cancel()

	logger := log.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Str("card_id", req.CardID).
		Logger()

	// Revaluation of an existing card may omit the image ref; resolve it
	// from the stored row.
	if req.FrontImageRef == "" && !req.SkipCardFetch && o.repo != nil {
		existing, err := o.repo.Get(ctx, req.UserID, req.CardID)
		if err != nil {
			return nil, err
		}
		req.FrontImageRef = existing.FrontImageRef
	}

	// Stage 1: feature extraction.
	env, err := o.extract(ctx, req)
	if err != nil {
		if isTerminal(err) {
			o.cleanupRejected(ctx, req)
			metrics.PipelineRuns.WithLabelValues("rejected").Inc()
			logger.Warn().Err(err).Msg("submission rejected")
		} else {
			metrics.PipelineRuns.WithLabelValues("failed").Inc()
			logger.Error().Err(err).Msg("feature extraction failed")
		}
		return nil, err
	}

	// Stage 2: OCR reasoning. Degrades internally, never fails.
	meta := o.interpret(ctx, env)

	// Stages 3 and 4 fan out; each branch runs under its own timeout and
	// a branch failure never touches the other. Caller hints fill fields
	// OCR could not determine, for the branches only.
	pricingRes, summary, authRes := o.fanOut(ctx, &logger, env, withHints(meta, req))

	// Stage 5: aggregation with bounded retry, then dead-letter.
	in := aggregate.Input{
		RequestID:     req.RequestID,
		UserID:        req.UserID,
		CardID:        req.CardID,
		FrontImageRef: req.FrontImageRef,
		SkipCardFetch: req.SkipCardFetch,
		Metadata:      meta,
		Pricing:       pricingRes,
		Summary:       summary,
		Authenticity:  authRes,
	}
	card, err := o.persistWithRetry(ctx, in)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	o.aggregator.Emit(ctx, in, card)
	if authRes != nil && authRes.FakeDetected {
		metrics.FakesDetected.Inc()
	}
	metrics.PipelineRuns.WithLabelValues("completed").Inc()
	logger.Info().Msg("pipeline run complete")
	return card, nil
}

func (o *Orchestrator) extract(ctx context.Context, req Request) (*models.FeatureEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.ExtractorTimeoutMS))
	defer cancel()
	defer observe("extract")()
	return o.extractor.Extract(ctx, req.FrontImageRef)
}

func (o *Orchestrator) interpret(ctx context.Context, env *models.FeatureEnvelope) *models.CardMetadata {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.OCRTimeoutMS))
	defer cancel()
	defer observe("ocr")()
	return o.reasoner.Interpret(ctx, env)
}

// fanOut runs pricing and authenticity concurrently. Plain goroutines with
// independent contexts: one branch failing or timing out must not cancel
// the other.
func (o *Orchestrator) fanOut(ctx context.Context, logger *zerolog.Logger, env *models.FeatureEnvelope, meta *models.CardMetadata) (*models.PricingResult, *models.ValuationSummary, *models.AuthenticityResult) {
	type pricingOut struct {
		result  models.PricingResult
		summary models.ValuationSummary
		err     error
	}

	pricingCh := make(chan pricingOut, 1)
	authCh := make(chan models.AuthenticityResult, 1)

	go func() {
		branchCtx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.PricingTimeoutMS))
		defer cancel()
		defer observe("pricing")()
		result, summary, err := o.pricer.Price(branchCtx, priceQuery(meta))
		pricingCh <- pricingOut{result: result, summary: summary, err: err}
	}()

	go func() {
		branchCtx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.AuthTimeoutMS))
		defer cancel()
		defer observe("authenticity")()
		authCh <- o.scorer.Score(branchCtx, env, meta)
	}()

	p := <-pricingCh
	auth := <-authCh

	var pricingRes *models.PricingResult
	var summary *models.ValuationSummary
	if p.err != nil {
		metrics.BranchFailures.WithLabelValues("pricing").Inc()
		logger.Warn().Err(p.err).Msg("pricing branch failed, continuing with empty valuation")
		pricingRes = &models.PricingResult{Message: pricingUnavailableMessage}
	} else {
		pricingRes = &p.result
		summary = &p.summary
	}
	return pricingRes, summary, &auth
}

// pricingUnavailableMessage is persisted with the zero-valued result when
// the pricing branch fails outright.
const pricingUnavailableMessage = "Pricing temporarily unavailable"

// withHints overlays caller-supplied set/rarity hints onto a copy of the
// metadata for the pricing and authenticity branches. The stored OCR
// metadata is left untouched.
func withHints(meta *models.CardMetadata, req Request) *models.CardMetadata {
	if req.ExpectedSet == "" && req.ExpectedRarity == "" {
		return meta
	}
	h := models.CardMetadata{}
	if meta != nil {
		h = *meta
	}
	if req.ExpectedSet != "" && h.Set.Resolved() == nil {
		v := req.ExpectedSet
		h.Set.Value = &v
	}
	if req.ExpectedRarity != "" && h.Rarity.Value == nil {
		v := req.ExpectedRarity
		h.Rarity.Value = &v
	}
	return &h
}

// persistWithRetry tries the aggregation write up to 3 times at 2s, 4s,
// 8s. Ownership errors are not retried. Exhaustion dead-letters the run.
func (o *Orchestrator) persistWithRetry(ctx context.Context, in aggregate.Input) (*models.Card, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout(o.cfg.AggregatorTimeoutMS))
	defer cancel()
	defer observe("aggregate")()

	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		card, err := o.aggregator.Persist(stageCtx, in)
		if err == nil {
			return card, nil
		}
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, persistence.ErrForbidden) {
			return nil, err
		}
		lastErr = err
		if attempt < persistAttempts {
			select {
			case <-time.After(o.persistBackoff << (attempt - 1)):
			case <-stageCtx.Done():
				lastErr = stageCtx.Err()
				attempt = persistAttempts
			}
		}
	}

	if o.deadletter != nil {
		metrics.DeadLetters.Inc()
		o.deadletter.Capture(context.WithoutCancel(ctx), DeadLetter{
			RequestID:     in.RequestID,
			UserID:        in.UserID,
			CardID:        in.CardID,
			FrontImageRef: in.FrontImageRef,
			Error:         lastErr.Error(),
			Attempts:      persistAttempts,
			Payload:       in,
		})
	}
	return nil, lastErr
}

// cleanupRejected removes all trace of a submission the content screen
// rejected: the image object and any card row.
func (o *Orchestrator) cleanupRejected(ctx context.Context, req Request) {
	ctx = context.WithoutCancel(ctx)
	if o.store != nil {
		if err := o.store.Delete(ctx, req.FrontImageRef); err != nil {
			log.Warn().Err(err).Str("ref", req.FrontImageRef).Msg("failed to delete rejected image")
		}
	}
	if o.repo != nil {
		if err := o.repo.HardDelete(ctx, req.UserID, req.CardID); err != nil {
			log.Warn().Err(err).Str("card_id", req.CardID).Msg("failed to delete rejected card row")
		}
	}
}

func priceQuery(meta *models.CardMetadata) models.PriceQuery {
	q := models.PriceQuery{}
	if meta == nil {
		return q
	}
	if meta.Name.Value != nil {
		q.CardName = *meta.Name.Value
	}
	if set := meta.Set.Resolved(); set != nil {
		q.Set = *set
	}
	if meta.CollectorNumber.Value != nil {
		q.Number = *meta.CollectorNumber.Value
	}
	if meta.Rarity.Value != nil {
		q.Rarity = *meta.Rarity.Value
	}
	if meta.Condition.Value != nil {
		q.Condition = *meta.Condition.Value
	}
	return q
}

func isTerminal(err error) bool {
	if e, ok := extractor.AsError(err); ok {
		return e.Terminal()
	}
	return false
}

func (o *Orchestrator) overallDeadline() time.Duration {
	return time.Duration(o.cfg.OverallDeadlineMS) * time.Millisecond
}

func (o *Orchestrator) stageTimeout(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func observe(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
