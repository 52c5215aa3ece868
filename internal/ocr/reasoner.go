// Package ocr implements the second pipeline stage: interpreting raw OCR
// blocks and visual context into structured card metadata with a language
// model, with a deterministic fallback when the model is unavailable.
package ocr

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/llm"
	"github.com/collectiq/collectiq/internal/models"
)

const fallbackRationale = "Fallback: AI reasoning unavailable"

// Reasoner is the OCR interpretation stage.
type Reasoner struct {
	client llm.Client
	model  config.ModelCallConfig
	retry  llm.RetryPolicy
}

// New creates a reasoner. The retry policy follows the model config's
// MaxRetries with the 1s/2s/4s backoff ladder.
func New(client llm.Client, model config.ModelCallConfig) *Reasoner {
	retry := llm.OCRRetryPolicy()
	if model.MaxRetries > 0 {
		retry.MaxAttempts = model.MaxRetries
	}
	return &Reasoner{client: client, model: model, retry: retry}
}

// Interpret turns a FeatureEnvelope into CardMetadata. It never fails the
// pipeline: on model exhaustion or schema violation it returns the
// fallback metadata with VerifiedByAI=false.
func (r *Reasoner) Interpret(ctx context.Context, env *models.FeatureEnvelope) *models.CardMetadata {
	sortByPosition(env.OCRBlocks)
	prompt := buildPrompt(env)

	var meta *models.CardMetadata
	err := r.retry.Do(ctx, func() error {
		raw, err := r.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			Temperature: r.model.Temperature,
			MaxTokens:   r.model.MaxTokens,
		})
		if err != nil {
			return err
		}
		parsed, perr := parseResponse(raw)
		if perr != nil {
			// Schema violations are not retried; a malformed response is a
			// model behavior, not a transient fault.
			return &llm.Error{Category: "schema_violation", Retryable: false, Err: perr}
		}
		meta = parsed
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("ocr reasoning unavailable, using fallback metadata")
		return r.fallback(env)
	}

	r.applyNameGuard(meta, env)

	log.Info().
		Float64("overall_confidence", meta.OverallConfidence).
		Bool("verified_by_ai", meta.VerifiedByAI).
		Msg("ocr interpretation complete")
	return meta
}

// applyNameGuard replaces a clearly wrong model name with the best OCR
// block candidate. Anti-regression only; it never touches a plausible name.
func (r *Reasoner) applyNameGuard(meta *models.CardMetadata, env *models.FeatureEnvelope) {
	if meta.Name.Value == nil || plausibleName(*meta.Name.Value) {
		return
	}
	candidate := guessNameFromBlocks(env.OCRBlocks)
	if candidate == nil {
		return
	}
	log.Debug().Str("rejected", *meta.Name.Value).Str("candidate", candidate.Text).
		Msg("name guard replaced implausible card name")
	text := candidate.Text
	meta.Name.Value = &text
	meta.Name.Confidence = math.Min(meta.Name.Confidence, candidate.Confidence)
	meta.Name.Rationale = "Name guard: model value was implausible; replaced with best-positioned OCR block"
}

// fallback builds the degraded metadata: the topmost OCR block becomes the
// name at 0.7x its OCR confidence, everything else is null.
func (r *Reasoner) fallback(env *models.FeatureEnvelope) *models.CardMetadata {
	meta := &models.CardMetadata{
		Name:            models.Field{Rationale: fallbackRationale},
		Set:             models.SetField{Rationale: fallbackRationale},
		Rarity:          models.Field{Rationale: fallbackRationale},
		CollectorNumber: models.Field{Rationale: fallbackRationale},
		Illustrator:     models.Field{Rationale: fallbackRationale},
		Condition:       models.Field{Rationale: fallbackRationale},
		VerifiedByAI:    false,
		ExtractedAt:     time.Now().UTC(),
	}
	if top := env.TopmostBlock(); top != nil {
		text := top.Text
		meta.Name.Value = &text
		meta.Name.Confidence = top.Confidence * 0.7
	}
	meta.OverallConfidence = math.Max(0, meta.Name.Confidence*0.5)
	return meta
}
