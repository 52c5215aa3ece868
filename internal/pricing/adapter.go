package pricing

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/models"
)

// ErrSourcesUnavailable is returned when every configured pricing source
// has an open circuit (or none are configured).
var ErrSourcesUnavailable = errors.New("all pricing sources are unavailable")

// SourceAdapter is one external pricing source. Available reflects the
// circuit-breaker state without side effects; Fetch encapsulates the
// source's query syntax, authentication, rate limiting, and retries.
type SourceAdapter interface {
	Name() string
	Available() bool
	Fetch(ctx context.Context, q models.PriceQuery) ([]models.RawComp, error)
}

// AdapterStats is a point-in-time view of an adapter's guard state,
// surfaced on the ops debug endpoint.
type AdapterStats struct {
	Name         string `json:"name"`
	CircuitState string `json:"circuit_state"`
	Failures     int    `json:"failures"`
	WindowUsed   int    `json:"window_used"`
}

const fetchRetries = 3

// guardedSource composes the shared adapter machinery: sliding-window rate
// limit, consecutive-failure circuit breaker, and bounded retry. Concrete
// adapters plug in their fetch function.
type guardedSource struct {
	name    string
	limiter *RateLimiter
	breaker *CircuitBreaker
	backoff time.Duration // base delay between retries
}

func newGuardedSource(name string, cfg config.SourceConfig) guardedSource {
	return guardedSource{
		name:    name,
		limiter: NewRateLimiter(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowMS)*time.Millisecond),
		breaker: NewCircuitBreaker(cfg.CircuitBreaker.Threshold, time.Duration(cfg.CircuitBreaker.TimeoutMS)*time.Millisecond),
		backoff: time.Second,
	}
}

func (g *guardedSource) Name() string    { return g.name }
func (g *guardedSource) Available() bool { return g.breaker.Available() }

func (g *guardedSource) Stats() AdapterStats {
	return AdapterStats{
		Name:         g.name,
		CircuitState: g.breaker.State().String(),
		Failures:     g.breaker.Failures(),
		WindowUsed:   g.limiter.Pending(),
	}
}

// fetch runs fn under the rate limit with up to 3 attempts at 1s, 2s, 4s.
// Exhaustion trips the breaker and yields an empty comp list rather than
// an error: one failing source must not fail the aggregation.
func (g *guardedSource) fetch(ctx context.Context, fn func(context.Context) ([]models.RawComp, error)) ([]models.RawComp, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchRetries; attempt++ {
		if err := g.limiter.Acquire(ctx); err != nil {
			g.breaker.OnFailure()
			return nil, nil
		}
		comps, err := fn(ctx)
		if err == nil {
			g.breaker.OnSuccess()
			return comps, nil
		}
		lastErr = err
		if attempt < fetchRetries {
			select {
			case <-time.After(g.backoff << (attempt - 1)):
			case <-ctx.Done():
				g.breaker.OnFailure()
				return nil, nil
			}
		}
	}
	g.breaker.OnFailure()
	log.Warn().Str("source", g.name).Err(lastErr).Msg("pricing source exhausted retries")
	return nil, nil
}

// problematicNumber matches collector numbers whose punctuation breaks
// source query syntax (everything beyond alphanumerics, slash, dash).
var problematicNumber = regexp.MustCompile(`[^a-zA-Z0-9/\-]`)

// numberSafeForQuery reports whether the collector number can be embedded
// in a source query verbatim.
func numberSafeForQuery(number string) bool {
	return number != "" && !problematicNumber.MatchString(number)
}

// Price-variant keywords, checked against the rarity in order.
var holofoilKeywords = []string{
	"holo", "ultra rare", "secret rare", "rainbow rare", "full art", "vmax", "vstar", "ex", "gx",
}

// priceVariant selects the source price bucket for a rarity: holofoil for
// holo-class rarities, reverse-holofoil for reverse prints, 1st-edition
// when flagged, else normal (with holofoil as the documented fallback).
func priceVariant(rarity string) string {
	r := strings.ToLower(rarity)
	if strings.Contains(r, "1st edition") {
		return "1stEdition"
	}
	if strings.Contains(r, "reverse") {
		return "reverseHolofoil"
	}
	for _, kw := range holofoilKeywords {
		if strings.Contains(r, kw) {
			return "holofoil"
		}
	}
	return "normal"
}
