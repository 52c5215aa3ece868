package pricing

import (
	"sort"

	"github.com/collectiq/collectiq/internal/models"
)

// FilterOutliers removes price outliers with Tukey's IQR fences
// (1.5 * IQR beyond Q1/Q3). Sets with fewer than 4 comps are returned
// unchanged, and a filter that would empty the set is reverted.
func FilterOutliers(comps []models.NormalizedComp) []models.NormalizedComp {
	if len(comps) < 4 {
		return comps
	}

	prices := make([]float64, len(comps))
	for i, c := range comps {
		prices[i] = c.Price
	}
	sort.Float64s(prices)

	q1 := percentile(prices, 25)
	q3 := percentile(prices, 75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	kept := make([]models.NormalizedComp, 0, len(comps))
	for _, c := range comps {
		if c.Price >= lo && c.Price <= hi {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return comps
	}
	return kept
}

// percentile computes the p-th percentile of sorted values with linear
// interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(rank)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
