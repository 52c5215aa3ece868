package pricing

import (
	"math"
	"sort"

	"github.com/collectiq/collectiq/internal/models"
)

// Valuate computes the price distribution statistics over filtered comps.
// ValueLow/Median/High are the 10th, 50th and 90th percentiles. Volatility
// is the coefficient of variation, and confidence blends sample size with
// price dispersion.
func Valuate(comps []models.NormalizedComp, windowDays int) models.PricingResult {
	result := models.PricingResult{
		CompsCount: len(comps),
		WindowDays: windowDays,
		Sources:    sourceNames(comps),
	}
	if len(comps) == 0 {
		result.Message = "No pricing data available from any source"
		return result
	}

	prices := make([]float64, len(comps))
	for i, c := range comps {
		prices[i] = c.Price
	}
	sort.Float64s(prices)

	result.ValueLow = percentile(prices, 10)
	result.ValueMedian = percentile(prices, 50)
	result.ValueHigh = percentile(prices, 90)

	mean, stddev := meanStddev(prices)
	if mean > 0 {
		result.Volatility = stddev / mean
	}
	result.Confidence = confidence(len(prices), mean, stddev)
	return result
}

// confidence is 0.6 * sample-size factor (saturating at 50 comps) plus
// 0.4 * dispersion factor (1 - coefficient of variation, floored at 0).
func confidence(n int, mean, stddev float64) float64 {
	sizeFactor := math.Min(float64(n)/50, 1)
	dispersion := 0.0
	if mean > 0 {
		dispersion = math.Max(0, 1-stddev/mean)
	}
	return 0.6*sizeFactor + 0.4*dispersion
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func sourceNames(comps []models.NormalizedComp) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range comps {
		if !seen[c.Source] {
			seen[c.Source] = true
			names = append(names, c.Source)
		}
	}
	sort.Strings(names)
	return names
}
