package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collectiq/collectiq/internal/models"
)

func TestValuateEmptySet(t *testing.T) {
	result := Valuate(nil, 14)
	assert.Zero(t, result.CompsCount)
	assert.Zero(t, result.ValueMedian)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, "No pricing data available from any source", result.Message)
	assert.Equal(t, 14, result.WindowDays)
}

func TestValuatePercentiles(t *testing.T) {
	result := Valuate(compsAt(10, 20, 30, 40, 50), 14)

	assert.Equal(t, 5, result.CompsCount)
	assert.InDelta(t, 14.0, result.ValueLow, 1e-9)
	assert.InDelta(t, 30.0, result.ValueMedian, 1e-9)
	assert.InDelta(t, 46.0, result.ValueHigh, 1e-9)
	assert.Empty(t, result.Message)
}

func TestValuateVolatilityAndConfidence(t *testing.T) {
	// mean 30, population stddev sqrt(200); CV = stddev/mean.
	result := Valuate(compsAt(10, 20, 30, 40, 50), 14)
	assert.InDelta(t, 0.4714, result.Volatility, 1e-3)
	assert.InDelta(t, 0.2714, result.Confidence, 1e-3)

	// Identical prices: zero volatility, dispersion factor saturates.
	flat := Valuate(compsAt(25, 25, 25, 25), 14)
	assert.Zero(t, flat.Volatility)
	assert.InDelta(t, 0.6*(4.0/50)+0.4, flat.Confidence, 1e-9)
}

func TestValuateConfidenceSaturatesAtFiftyComps(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100
	}
	result := Valuate(compsAt(prices...), 14)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestValuateSourceOrderIrrelevant(t *testing.T) {
	a := []models.NormalizedComp{
		{Source: "eBay", Price: 10},
		{Source: "PokemonTCG", Price: 20},
		{Source: "Cardmarket", Price: 30},
	}
	b := []models.NormalizedComp{a[2], a[0], a[1]}

	ra := Valuate(a, 14)
	rb := Valuate(b, 14)
	assert.Equal(t, ra.ValueLow, rb.ValueLow)
	assert.Equal(t, ra.ValueMedian, rb.ValueMedian)
	assert.Equal(t, ra.ValueHigh, rb.ValueHigh)
	assert.Equal(t, ra.Sources, rb.Sources)
}
