package pricing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/llm"
	"github.com/collectiq/collectiq/internal/models"
)

// Summarizer produces the qualitative market summary for a valuation via
// the language model, falling back to a synthesized summary when the model
// is unreachable or returns an invalid response.
type Summarizer struct {
	client llm.Client
	retry  llm.RetryPolicy
}

// NewSummarizer wires a summarizer over a model client.
func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{client: client, retry: llm.OCRRetryPolicy()}
}

// Summarize never fails: model errors degrade to a statistics-derived
// summary with trend "stable" and a manual-review recommendation.
func (s *Summarizer) Summarize(ctx context.Context, q models.PriceQuery, result models.PricingResult) models.ValuationSummary {
	if result.CompsCount == 0 {
		return synthesizeSummary(result)
	}

	var summary models.ValuationSummary
	err := s.retry.Do(ctx, func() error {
		resp, err := s.client.Generate(ctx, llm.Request{
			Prompt:      summaryPrompt(q, result),
			Temperature: 0.15,
			MaxTokens:   512,
		})
		if err != nil {
			return err
		}
		parsed, err := parseSummary(resp)
		if err != nil {
			return &llm.Error{Category: "schema", Err: err}
		}
		summary = parsed
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("card", q.CardName).Msg("valuation summary model unavailable, synthesizing")
		return synthesizeSummary(result)
	}
	return summary
}

func summaryPrompt(q models.PriceQuery, r models.PricingResult) string {
	return fmt.Sprintf(`You are a trading card market analyst. Summarize the market for this card.

Card: %s
Set: %s
Comparable sales (last %d days): %d
Price distribution (USD): low=%.2f median=%.2f high=%.2f
Volatility (coefficient of variation): %.3f

Respond with ONLY a JSON object:
{
  "summary": "<2-3 sentence market summary>",
  "fairValue": <number, your fair value estimate in USD>,
  "trend": "<rising|falling|stable>",
  "recommendation": "<one sentence for a collector holding this card>",
  "confidence": <number 0-1>
}`,
		q.CardName, q.Set, r.WindowDays, r.CompsCount, r.ValueLow, r.ValueMedian, r.ValueHigh, r.Volatility)
}

func parseSummary(raw string) (models.ValuationSummary, error) {
	var s models.ValuationSummary
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &s); err != nil {
		return s, fmt.Errorf("failed to parse summary response: %w", err)
	}
	if s.Summary == "" {
		return s, fmt.Errorf("summary response missing summary text")
	}
	if !models.ValidTrend(s.Trend) {
		return s, fmt.Errorf("summary response has invalid trend %q", s.Trend)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return s, fmt.Errorf("summary confidence out of range: %f", s.Confidence)
	}
	return s, nil
}

// synthesizeSummary derives a summary from the statistics alone. Fair
// value is the median, trend defaults to stable, and confidence is
// discounted to reflect the missing qualitative analysis.
func synthesizeSummary(r models.PricingResult) models.ValuationSummary {
	summary := fmt.Sprintf("Based on %d comparable sales over %d days, the card's market value centers around $%.2f (range $%.2f-$%.2f).",
		r.CompsCount, r.WindowDays, r.ValueMedian, r.ValueLow, r.ValueHigh)
	if r.CompsCount == 0 {
		summary = "No comparable sales were found in the lookback window."
	}
	return models.ValuationSummary{
		Summary:        summary,
		FairValue:      r.ValueMedian,
		Trend:          models.TrendStable,
		Recommendation: "manual review recommended",
		Confidence:     0.7 * r.Confidence,
	}
}
