package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/collectiq/internal/models"
)

func compsAt(prices ...float64) []models.NormalizedComp {
	out := make([]models.NormalizedComp, len(prices))
	for i, p := range prices {
		out[i] = models.NormalizedComp{Source: "test", Price: p, Condition: models.ConditionNearMint}
	}
	return out
}

func pricesOf(comps []models.NormalizedComp) []float64 {
	out := make([]float64, len(comps))
	for i, c := range comps {
		out[i] = c.Price
	}
	return out
}

func TestFilterOutliersSkipsSmallSets(t *testing.T) {
	for _, prices := range [][]float64{
		{100},
		{1, 1000},
		{1, 50, 1000},
	} {
		comps := compsAt(prices...)
		assert.Equal(t, comps, FilterOutliers(comps), "sets below 4 comps pass through")
	}
}

func TestFilterOutliersAppliesAtFourComps(t *testing.T) {
	// Three clustered prices plus one extreme spike.
	got := FilterOutliers(compsAt(10, 11, 12, 500))
	require.Len(t, got, 3)
	assert.NotContains(t, pricesOf(got), 500.0)
}

func TestFilterOutliersKeepsTightCluster(t *testing.T) {
	comps := compsAt(10, 10.5, 11, 11.5, 12)
	assert.Len(t, FilterOutliers(comps), 5)
}

func TestFilterOutliersRemovesBothTails(t *testing.T) {
	got := FilterOutliers(compsAt(0.01, 50, 51, 52, 53, 54, 5000))
	prices := pricesOf(got)
	assert.NotContains(t, prices, 0.01)
	assert.NotContains(t, prices, 5000.0)
	assert.Len(t, got, 5)
}

func TestFilterOutliersRevertsWhenAllFiltered(t *testing.T) {
	// Identical prices give IQR 0; nothing should be dropped, and even if a
	// pathological distribution filtered everything the original set must
	// come back.
	comps := compsAt(10, 10, 10, 10)
	assert.Equal(t, comps, FilterOutliers(comps))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 30.0, percentile(sorted, 50), 1e-9)
	assert.InDelta(t, 14.0, percentile(sorted, 10), 1e-9)
	assert.InDelta(t, 46.0, percentile(sorted, 90), 1e-9)
	assert.InDelta(t, 10.0, percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 50.0, percentile(sorted, 100), 1e-9)
	assert.InDelta(t, 25.0, percentile([]float64{10, 40}, 50), 1e-9)
	assert.InDelta(t, 7.0, percentile([]float64{7}, 90), 1e-9)
	assert.Zero(t, percentile(nil, 50))
}
