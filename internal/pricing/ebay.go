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

// EBayAdapter searches eBay's Browse API for recently sold listings.
type EBayAdapter struct {
	guardedSource
	baseURL string
	token   string
	http    *http.Client
}

// NewEBayAdapter creates the adapter from its source config.
func NewEBayAdapter(cfg config.SourceConfig) *EBayAdapter {
	return &EBayAdapter{
		guardedSource: newGuardedSource("eBay", cfg),
		baseURL:       cfg.BaseURL,
		token:         cfg.APIKey,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

type ebayItem struct {
	Title string `json:"title"`
	Price struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	Condition  string `json:"condition"`
	ItemWebURL string `json:"itemWebUrl"`
	ItemEndDate string `json:"itemEndDate"`
}

// Fetch searches sold listings by name and quoted set phrase, retrying
// name-only when the combined search finds nothing.
func (a *EBayAdapter) Fetch(ctx context.Context, q models.PriceQuery) ([]models.RawComp, error) {
	return a.fetch(ctx, func(ctx context.Context) ([]models.RawComp, error) {
		comps, err := a.search(ctx, a.searchTerm(q, true))
		if err != nil {
			return nil, err
		}
		if len(comps) == 0 && q.Set != "" {
			comps, err = a.search(ctx, a.searchTerm(q, false))
			if err != nil {
				return nil, err
			}
		}
		return comps, nil
	})
}

func (a *EBayAdapter) searchTerm(q models.PriceQuery, withSet bool) string {
	parts := []string{q.CardName}
	if withSet && q.Set != "" {
		parts = append(parts, fmt.Sprintf("%q", q.Set))
	}
	if withSet && numberSafeForQuery(q.Number) {
		parts = append(parts, q.Number)
	}
	parts = append(parts, "pokemon card")
	return strings.Join(parts, " ")
}

func (a *EBayAdapter) search(ctx context.Context, term string) ([]models.RawComp, error) {
	u := fmt.Sprintf("%s/item_summary/search?q=%s&filter=buyingOptions:{FIXED_PRICE}&limit=50",
		a.baseURL, url.QueryEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("ebay returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		ItemSummaries []ebayItem `json:"itemSummaries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode ebay response: %w", err)
	}

	var comps []models.RawComp
	for _, item := range payload.ItemSummaries {
		var price float64
		if _, err := fmt.Sscanf(item.Price.Value, "%f", &price); err != nil {
			continue
		}
		soldDate := time.Now().UTC()
		if t, err := time.Parse(time.RFC3339, item.ItemEndDate); err == nil {
			soldDate = t
		}
		comps = append(comps, models.RawComp{
			Source:     a.name,
			Price:      price,
			Currency:   item.Price.Currency,
			Condition:  item.Condition,
			SoldDate:   soldDate,
			ListingURL: item.ItemWebURL,
		})
	}
	return comps, nil
}
