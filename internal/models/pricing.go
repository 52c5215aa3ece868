package models

import (
	"time"
)

// CardCondition is the normalized condition scale used for comparables.
type CardCondition string

const (
	ConditionPoor      CardCondition = "Poor"
	ConditionGood      CardCondition = "Good"
	ConditionExcellent CardCondition = "Excellent"
	ConditionNearMint  CardCondition = "Near Mint"
	ConditionMint      CardCondition = "Mint"
)

// PriceQuery identifies the card to price and the lookback window.
type PriceQuery struct {
	CardName   string `json:"cardName"`
	Set        string `json:"set,omitempty"`
	Number     string `json:"number,omitempty"`
	Rarity     string `json:"rarity,omitempty"`
	Condition  string `json:"condition,omitempty"`
	WindowDays int    `json:"windowDays"`
}

// RawComp is a comparable sale as returned by a source adapter, before
// normalization. Price is in the source's native currency.
type RawComp struct {
	Source     string    `json:"source"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	Condition  string    `json:"condition"`
	SoldDate   time.Time `json:"soldDate"`
	ListingURL string    `json:"listingUrl,omitempty"`
}

// NormalizedComp is a comparable sale after currency and condition
// normalization. Price is always USD.
type NormalizedComp struct {
	Source     string        `json:"source"`
	Price      float64       `json:"price"`
	Condition  CardCondition `json:"condition"`
	SoldDate   time.Time     `json:"soldDate"`
	ListingURL string        `json:"listingUrl,omitempty"`
}

// PricingResult is the pricing aggregator's valuation of a card.
type PricingResult struct {
	ValueLow    float64  `json:"valueLow"`
	ValueMedian float64  `json:"valueMedian"`
	ValueHigh   float64  `json:"valueHigh"`
	CompsCount  int      `json:"compsCount"`
	WindowDays  int      `json:"windowDays"`
	Sources     []string `json:"sources"`
	Confidence  float64  `json:"confidence"`
	Volatility  float64  `json:"volatility"`
	Message     string   `json:"message,omitempty"`
}

// MarketTrend is the qualitative direction label in a valuation summary.
type MarketTrend string

const (
	TrendRising  MarketTrend = "rising"
	TrendFalling MarketTrend = "falling"
	TrendStable  MarketTrend = "stable"
)

// ValidTrend reports whether t is one of the closed trend labels.
func ValidTrend(t MarketTrend) bool {
	switch t {
	case TrendRising, TrendFalling, TrendStable:
		return true
	}
	return false
}

// ValuationSummary is the qualitative market summary paired with every
// PricingResult.
type ValuationSummary struct {
	Summary        string      `json:"summary"`
	FairValue      float64     `json:"fairValue"`
	Trend          MarketTrend `json:"trend"`
	Recommendation string      `json:"recommendation"`
	Confidence     float64     `json:"confidence"`
}
