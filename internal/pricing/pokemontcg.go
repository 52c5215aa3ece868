package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/models"
)

// PokemonTCGAdapter queries the Pokemon TCG API's TCGplayer price blocks.
type PokemonTCGAdapter struct {
	guardedSource
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewPokemonTCGAdapter creates the adapter from its source config.
func NewPokemonTCGAdapter(cfg config.SourceConfig) *PokemonTCGAdapter {
	return &PokemonTCGAdapter{
		guardedSource: newGuardedSource("PokemonTCG", cfg),
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

type tcgPricePoints struct {
	Low    float64 `json:"low"`
	Mid    float64 `json:"mid"`
	High   float64 `json:"high"`
	Market float64 `json:"market"`
}

type tcgCard struct {
	Name      string `json:"name"`
	TCGPlayer struct {
		URL       string                    `json:"url"`
		UpdatedAt string                    `json:"updatedAt"`
		Prices    map[string]tcgPricePoints `json:"prices"`
	} `json:"tcgplayer"`
}

// Fetch searches by quoted name and set, falling back to name-only when
// the primary query returns nothing.
func (a *PokemonTCGAdapter) Fetch(ctx context.Context, q models.PriceQuery) ([]models.RawComp, error) {
	return a.fetch(ctx, func(ctx context.Context) ([]models.RawComp, error) {
		comps, err := a.search(ctx, a.buildQuery(q, true), q)
		if err != nil {
			return nil, err
		}
		if len(comps) == 0 && q.Set != "" {
			comps, err = a.search(ctx, a.buildQuery(q, false), q)
			if err != nil {
				return nil, err
			}
		}
		return comps, nil
	})
}

// buildQuery builds the source query syntax. Set names are quoted phrases;
// the collector number is skipped when its punctuation would break the
// query grammar.
func (a *PokemonTCGAdapter) buildQuery(q models.PriceQuery, withSet bool) string {
	parts := []string{fmt.Sprintf("name:%q", q.CardName)}
	if withSet && q.Set != "" {
		parts = append(parts, fmt.Sprintf("set.name:%q", q.Set))
	}
	if withSet && numberSafeForQuery(q.Number) {
		number := q.Number
		if idx := strings.Index(number, "/"); idx > 0 {
			number = number[:idx]
		}
		parts = append(parts, "number:"+number)
	}
	return strings.Join(parts, " ")
}

func (a *PokemonTCGAdapter) search(ctx context.Context, query string, q models.PriceQuery) ([]models.RawComp, error) {
	u := fmt.Sprintf("%s/cards?q=%s&pageSize=20", a.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if a.apiKey != "" {
		req.Header.Set("X-Api-Key", a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("pokemontcg returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []tcgCard `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode pokemontcg response: %w", err)
	}

	variant := priceVariant(q.Rarity)
	var comps []models.RawComp
	for _, card := range payload.Data {
		points, ok := card.TCGPlayer.Prices[variant]
		if !ok {
			// Documented fallback: holofoil when the preferred bucket is absent.
			points, ok = card.TCGPlayer.Prices["holofoil"]
		}
		if !ok {
			continue
		}
		soldDate := parseTCGDate(card.TCGPlayer.UpdatedAt)
		for _, price := range []float64{points.Market, points.Low, points.Mid, points.High} {
			if price > 0 {
				comps = append(comps, models.RawComp{
					Source:     a.name,
					Price:      price,
					Currency:   "USD",
					Condition:  "Near Mint",
					SoldDate:   soldDate,
					ListingURL: card.TCGPlayer.URL,
				})
			}
		}
	}
	return comps, nil
}

func parseTCGDate(s string) time.Time {
	if t, err := time.Parse("2006/01/02", s); err == nil {
		return t
	}
	return time.Now().UTC()
}
