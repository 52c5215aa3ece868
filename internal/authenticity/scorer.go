// Package authenticity scores how likely a submitted card is genuine. Five
// independent signals (perceptual hash, print text, holo pattern, border
// geometry, font rendering) feed a language-model judgment, with a fixed
// weighted blend as the fallback when the model is unreachable.
package authenticity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/llm"
	"github.com/collectiq/collectiq/internal/models"
	"github.com/collectiq/collectiq/internal/persistence"
)

// fakeThreshold is the score at or below which a card is flagged fake.
const fakeThreshold = 0.50

// Fallback blend weights, most reliable signal first.
var signalWeights = struct {
	visual, text, holo, border, font float64
}{0.30, 0.25, 0.20, 0.15, 0.10}

const fallbackRationale = "AI analysis unavailable. Manual review recommended."

// Scorer produces the authenticity judgment for a submission.
type Scorer struct {
	client      llm.Client
	refs        *ReferenceStore
	store       persistence.ObjectStore
	refDefault  float64
	temperature float64
	maxTokens   int
	retry       llm.RetryPolicy
}

// NewScorer wires the scorer. client may be nil, forcing the weighted
// fallback on every call.
func NewScorer(client llm.Client, refs *ReferenceStore, store persistence.ObjectStore, cfg config.AuthenticityConfig) *Scorer {
	retry := llm.AuthenticityRetryPolicy()
	if cfg.Model.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Model.MaxRetries
	}
	return &Scorer{
		client:      client,
		refs:        refs,
		store:       store,
		refDefault:  cfg.ReferenceDefault,
		temperature: cfg.Model.Temperature,
		maxTokens:   cfg.Model.MaxTokens,
		retry:       retry,
	}
}

// Score computes the five signals and asks the model for a judgment.
// It never fails: model errors degrade to the weighted blend.
func (s *Scorer) Score(ctx context.Context, env *models.FeatureEnvelope, meta *models.CardMetadata) models.AuthenticityResult {
	cardName := ""
	if meta != nil && meta.Name.Value != nil {
		cardName = *meta.Name.Value
	}
	rarity := ""
	if meta != nil && meta.Rarity.Value != nil {
		rarity = *meta.Rarity.Value
	}

	signals := models.AuthenticitySignals{
		VisualHash:        s.visualHashSignal(ctx, env.ImageRef, cardName),
		TextMatch:         textMatchSignal(env.OCRBlocks, cardName),
		HoloPattern:       holoSignal(env.HolographicVariance, holoExpected(rarity)),
		BorderConsistency: borderSignal(env.Border),
		FontValidation:    fontSignal(env.Font),
	}

	if s.client == nil {
		return fallbackResult(signals)
	}

	result, err := s.judge(ctx, signals, cardName, rarity, env.Quality)
	if err != nil {
		log.Warn().Err(err).Str("card", cardName).Msg("authenticity model unavailable, using weighted blend")
		return fallbackResult(signals)
	}
	return result
}

// visualHashSignal hashes the submitted image and compares it to the
// known-authentic references for the card. With no references (or any
// failure along the way) the neutral default applies.
func (s *Scorer) visualHashSignal(ctx context.Context, imageRef, cardName string) float64 {
	if cardName == "" || s.store == nil {
		return s.refDefault
	}

	refs, err := s.refs.HashesFor(ctx, cardName)
	if err != nil || len(refs) == 0 {
		if err != nil {
			log.Warn().Err(err).Str("card", cardName).Msg("reference hash lookup failed")
		}
		return s.refDefault
	}

	data, err := s.store.Get(ctx, imageRef)
	if err != nil {
		log.Warn().Err(err).Str("ref", imageRef).Msg("failed to fetch image for hashing")
		return s.refDefault
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Str("ref", imageRef).Msg("failed to decode image for hashing")
		return s.refDefault
	}

	hash := PerceptualHash(img)
	best := 0.0
	for _, ref := range refs {
		dist, err := HammingDistance(hash, ref.Hash)
		if err != nil {
			continue
		}
		if sim := HashSimilarity(dist); sim > best {
			best = sim
		}
	}
	return best
}

type judgmentResponse struct {
	AuthenticityScore float64 `json:"authenticityScore"`
	FakeDetected      *bool   `json:"fakeDetected"`
	Rationale         string  `json:"rationale"`
}

func (s *Scorer) judge(ctx context.Context, signals models.AuthenticitySignals, cardName, rarity string, quality models.ImageQuality) (models.AuthenticityResult, error) {
	var parsed judgmentResponse
	err := s.retry.Do(ctx, func() error {
		deadline := time.Now().Add(25 * time.Second)
		callCtx, cancel := context.WithDeadline(ctx, deadline)
		defer cancel()

		resp, err := s.client.Generate(callCtx, llm.Request{
			Prompt:      judgmentPrompt(signals, cardName, rarity, quality),
			Temperature: s.temperature,
			MaxTokens:   s.maxTokens,
		})
		if err != nil {
			return err
		}
		p, err := parseJudgment(resp)
		if err != nil {
			return &llm.Error{Category: "schema", Err: err}
		}
		parsed = p
		return nil
	})
	if err != nil {
		return models.AuthenticityResult{}, err
	}

	// The flag is derived from the score threshold; when the model's own
	// flag disagrees the score wins, keeping score and flag consistent.
	fake := parsed.AuthenticityScore <= fakeThreshold
	if *parsed.FakeDetected != fake {
		log.Debug().Float64("score", parsed.AuthenticityScore).Bool("model_flag", *parsed.FakeDetected).
			Msg("judgment fake flag disagrees with score threshold")
	}
	return models.AuthenticityResult{
		Score:        parsed.AuthenticityScore,
		FakeDetected: fake,
		Rationale:    parsed.Rationale,
		Signals:      signals,
		VerifiedByAI: true,
	}, nil
}

func judgmentPrompt(s models.AuthenticitySignals, cardName, rarity string, q models.ImageQuality) string {
	name := cardName
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf(`You are a trading card authentication expert. Five automated checks were run
on a submitted card photo; each score is in [0,1] where 1 is most authentic.

Card: %s (rarity: %s)
Visual hash match vs known-authentic samples: %.3f
Expected print text present: %.3f
Holographic pattern plausibility: %.3f
Border geometry consistency: %.3f
Font rendering consistency: %.3f

Image quality: blur=%.2f glare=%v brightness=%.2f
Weigh the signals yourself; discount visual signals when image quality is poor.

Respond with ONLY a JSON object:
{
  "authenticityScore": <number 0-1, overall probability the card is genuine>,
  "fakeDetected": <boolean, true when the card is likely counterfeit>,
  "rationale": "<2-3 sentences explaining the judgment>"
}`,
		name, rarity,
		s.VisualHash, s.TextMatch, s.HoloPattern, s.BorderConsistency, s.FontValidation,
		q.BlurScore, q.GlareDetected, q.Brightness)
}

func parseJudgment(raw string) (judgmentResponse, error) {
	var p judgmentResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &p); err != nil {
		return p, fmt.Errorf("failed to parse judgment response: %w", err)
	}
	if p.AuthenticityScore < 0 || p.AuthenticityScore > 1 {
		return p, fmt.Errorf("judgment score out of range: %f", p.AuthenticityScore)
	}
	if p.FakeDetected == nil {
		return p, fmt.Errorf("judgment response missing fakeDetected")
	}
	if p.Rationale == "" {
		return p, fmt.Errorf("judgment response missing rationale")
	}
	return p, nil
}

// fallbackResult blends the signals with fixed weights when no model
// judgment is available.
func fallbackResult(signals models.AuthenticitySignals) models.AuthenticityResult {
	score := signalWeights.visual*signals.VisualHash +
		signalWeights.text*signals.TextMatch +
		signalWeights.holo*signals.HoloPattern +
		signalWeights.border*signals.BorderConsistency +
		signalWeights.font*signals.FontValidation

	return models.AuthenticityResult{
		Score:        score,
		FakeDetected: score <= fakeThreshold,
		Rationale:    fallbackRationale,
		Signals:      signals,
		VerifiedByAI: false,
	}
}
