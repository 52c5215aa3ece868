package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/collectiq/internal/models"
)

func TestNormalizeCondition(t *testing.T) {
	tests := []struct {
		raw  string
		want models.CardCondition
	}{
		{"Gem Mint 10", models.ConditionMint},
		{"PRISTINE", models.ConditionMint},
		{"Mint", models.ConditionMint},
		{"Near Mint", models.ConditionNearMint},
		{"NM", models.ConditionNearMint},
		{"like new", models.ConditionNearMint},
		{"Excellent", models.ConditionExcellent},
		{"Lightly Played", models.ConditionExcellent},
		{"LP", models.ConditionExcellent},
		{"Good", models.ConditionGood},
		{"Moderately Played", models.ConditionGood},
		{"MP", models.ConditionGood},
		{"Poor", models.ConditionPoor},
		{"Damaged", models.ConditionPoor},
		{"Heavily Played", models.ConditionPoor},
		{"HP", models.ConditionPoor},
		{"", models.ConditionGood},
		{"something else entirely", models.ConditionGood},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCondition(tt.raw))
		})
	}
}

func TestToUSD(t *testing.T) {
	assert.InDelta(t, 100.0, ToUSD(100, "USD"), 1e-9)
	assert.InDelta(t, 108.0, ToUSD(100, "EUR"), 1e-9)
	assert.InDelta(t, 127.0, ToUSD(100, "GBP"), 1e-9)
	assert.InDelta(t, 73.0, ToUSD(100, "CAD"), 1e-9)
	assert.InDelta(t, 65.0, ToUSD(100, "AUD"), 1e-9)
	assert.InDelta(t, 6.7, ToUSD(1000, "JPY"), 1e-9)
	assert.InDelta(t, 108.0, ToUSD(100, "eur"), 1e-9)
}

func TestToUSDUnknownCurrencyPassesThrough(t *testing.T) {
	assert.InDelta(t, 50.0, ToUSD(50, "CHF"), 1e-9)
}

func TestNormalizeDropsInvalidPrices(t *testing.T) {
	now := time.Now()
	raw := []models.RawComp{
		{Source: "eBay", Price: 10, Currency: "USD", Condition: "Near Mint", SoldDate: now},
		{Source: "eBay", Price: 0, Currency: "USD", SoldDate: now},
		{Source: "eBay", Price: -5, Currency: "USD", SoldDate: now},
		{Source: "eBay", Price: math.NaN(), Currency: "USD", SoldDate: now},
		{Source: "eBay", Price: math.Inf(1), Currency: "USD", SoldDate: now},
		{Source: "Cardmarket", Price: 20, Currency: "EUR", Condition: "NM", SoldDate: now},
	}

	out := Normalize(raw)
	require.Len(t, out, 2)
	assert.InDelta(t, 10.0, out[0].Price, 1e-9)
	assert.InDelta(t, 21.6, out[1].Price, 1e-9)
	assert.Equal(t, models.ConditionNearMint, out[1].Condition)
}
