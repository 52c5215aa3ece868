package pricing

import (
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/models"
)

// Fixed conversion rates to USD. Unknown currencies are logged and treated
// as already-USD rather than dropped.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"CAD": 0.73,
	"AUD": 0.65,
	"JPY": 0.0067,
}

// conditionPatterns maps source condition text onto the normalized scale
// by case-insensitive substring match, checked in order.
var conditionPatterns = []struct {
	keywords  []string
	condition models.CardCondition
}{
	{[]string{"gem", "pristine"}, models.ConditionMint},
	{[]string{"near mint", "nm", "like new"}, models.ConditionNearMint},
	{[]string{"excellent", "lightly played", "lp"}, models.ConditionExcellent},
	{[]string{"poor", "damaged", "heavily played", "hp"}, models.ConditionPoor},
	{[]string{"good", "played", "moderately played", "mp"}, models.ConditionGood},
	{[]string{"mint"}, models.ConditionMint},
}

// NormalizeCondition maps arbitrary source condition text onto the
// five-value scale. Unknown text defaults to Good.
func NormalizeCondition(raw string) models.CardCondition {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return models.ConditionGood
	}
	for _, p := range conditionPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(s, kw) {
				return p.condition
			}
		}
	}
	return models.ConditionGood
}

// ToUSD converts a price to USD with the fixed rate table.
func ToUSD(price float64, currency string) float64 {
	rate, ok := usdRates[strings.ToUpper(currency)]
	if !ok {
		log.Warn().Str("currency", currency).Msg("unknown currency, treating as USD")
		rate = 1.0
	}
	return price * rate
}

// Normalize converts raw comps to USD with standardized conditions,
// discarding comps with non-positive or non-finite prices.
func Normalize(raw []models.RawComp) []models.NormalizedComp {
	out := make([]models.NormalizedComp, 0, len(raw))
	for _, c := range raw {
		if c.Price <= 0 || math.IsNaN(c.Price) || math.IsInf(c.Price, 0) {
			continue
		}
		out = append(out, models.NormalizedComp{
			Source:     c.Source,
			Price:      ToUSD(c.Price, c.Currency),
			Condition:  NormalizeCondition(c.Condition),
			SoldDate:   c.SoldDate,
			ListingURL: c.ListingURL,
		})
	}
	return out
}
