package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/models"
)

// CardmarketAdapter queries Cardmarket's product price guide. Prices come
// back in EUR and are converted by the normalizer.
type CardmarketAdapter struct {
	guardedSource
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewCardmarketAdapter creates the adapter from its source config.
func NewCardmarketAdapter(cfg config.SourceConfig) *CardmarketAdapter {
	return &CardmarketAdapter{
		guardedSource: newGuardedSource("Cardmarket", cfg),
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

type cardmarketProduct struct {
	Name      string `json:"enName"`
	Website   string `json:"website"`
	PriceGuide struct {
		Avg      float64 `json:"AVG"`
		Low      float64 `json:"LOW"`
		Trend    float64 `json:"TREND"`
		AvgFoil  float64 `json:"AVG-FOIL"`
		LowFoil  float64 `json:"LOWFOIL"`
	} `json:"priceGuide"`
}

// Fetch searches the product catalog; set filtering happens via the search
// term since the source exposes no structured set filter.
func (a *CardmarketAdapter) Fetch(ctx context.Context, q models.PriceQuery) ([]models.RawComp, error) {
	return a.fetch(ctx, func(ctx context.Context) ([]models.RawComp, error) {
		term := q.CardName
		if q.Set != "" {
			term = fmt.Sprintf("%s %q", q.CardName, q.Set)
		}
		comps, err := a.search(ctx, term, q)
		if err != nil {
			return nil, err
		}
		if len(comps) == 0 && q.Set != "" {
			comps, err = a.search(ctx, q.CardName, q)
			if err != nil {
				return nil, err
			}
		}
		return comps, nil
	})
}

func (a *CardmarketAdapter) search(ctx context.Context, term string, q models.PriceQuery) ([]models.RawComp, error) {
	u := fmt.Sprintf("%s/products/find?search=%s&idGame=6&maxResults=20", a.baseURL, url.QueryEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("cardmarket returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Products []cardmarketProduct `json:"product"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode cardmarket response: %w", err)
	}

	foil := priceVariant(q.Rarity) == "holofoil"
	now := time.Now().UTC()
	var comps []models.RawComp
	for _, p := range payload.Products {
		prices := []float64{p.PriceGuide.Avg, p.PriceGuide.Low, p.PriceGuide.Trend}
		if foil {
			prices = []float64{p.PriceGuide.AvgFoil, p.PriceGuide.LowFoil, p.PriceGuide.Trend}
		}
		for _, price := range prices {
			if price > 0 {
				comps = append(comps, models.RawComp{
					Source:     a.name,
					Price:      price,
					Currency:   "EUR",
					Condition:  "Near Mint",
					SoldDate:   now,
					ListingURL: p.Website,
				})
			}
		}
	}
	return comps, nil
}
