package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiConfig configures the Gemini-backed client.
type GeminiConfig struct {
	APIKey string
	Model  string
	RPS    float64 // Token-bucket refill rate for outbound calls
	Burst  int
}

// GeminiClient is the Gemini implementation of Client. A token-bucket
// limiter serializes pressure on the provider; per-call settings come from
// the Request.
type GeminiClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// NewGeminiClient dials the Gemini API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Generate runs a single prompt and returns the concatenated text parts.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", classify(err)
	}

	model := g.client.GenerativeModel(g.model)
	temp := float32(req.Temperature)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		maxTok := int32(req.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTok
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		cerr := classify(err)
		log.Warn().Str("model", g.model).Int("status", cerr.StatusCode).
			Str("category", cerr.Category).Msg("gemini call failed")
		return "", cerr
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &Error{Category: "empty_response", Retryable: true, Err: errors.New("no candidates returned")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", &Error{Category: "empty_response", Retryable: true, Err: errors.New("candidate had no text parts")}
	}
	return sb.String(), nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// classify maps provider errors onto the retry taxonomy. 429 is throttling,
// 5xx and timeouts are transient, everything else is terminal.
func classify(err error) *Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &Error{Category: "rate_limit", StatusCode: apiErr.Code, Retryable: true, RateLimited: true, Err: err}
		case apiErr.Code >= 500:
			return &Error{Category: "server_error", StatusCode: apiErr.Code, Retryable: true, Err: err}
		default:
			return &Error{Category: "request_error", StatusCode: apiErr.Code, Retryable: false, Err: err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Category: "timeout", Retryable: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Category: "canceled", Retryable: false, Err: err}
	}
	return &Error{Category: "network_error", Retryable: true, Err: err}
}
