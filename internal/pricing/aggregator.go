package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/models"
)

// Aggregator fans a price query out to every available source, normalizes
// and filters the comparables, and produces a valuation with a qualitative
// market summary.
type Aggregator struct {
	adapters   []SourceAdapter
	summarizer *Summarizer
	windowDays int
}

// NewAggregator wires the configured source adapters. A nil summarizer
// means summaries are always synthesized from the statistics.
func NewAggregator(cfg config.PricingConfig, summarizer *Summarizer) *Aggregator {
	var adapters []SourceAdapter
	for name, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		switch name {
		case "PokemonTCG":
			adapters = append(adapters, NewPokemonTCGAdapter(src))
		case "eBay":
			adapters = append(adapters, NewEBayAdapter(src))
		case "Cardmarket":
			adapters = append(adapters, NewCardmarketAdapter(src))
		default:
			log.Warn().Str("source", name).Msg("unknown pricing source in config, skipping")
		}
	}
	return &Aggregator{adapters: adapters, summarizer: summarizer, windowDays: cfg.WindowDays}
}

// NewAggregatorWithAdapters builds an aggregator over explicit adapters.
func NewAggregatorWithAdapters(adapters []SourceAdapter, summarizer *Summarizer, windowDays int) *Aggregator {
	return &Aggregator{adapters: adapters, summarizer: summarizer, windowDays: windowDays}
}

// Stats reports the guard state of every adapter that exposes one.
func (a *Aggregator) Stats() []AdapterStats {
	var stats []AdapterStats
	for _, ad := range a.adapters {
		if s, ok := ad.(interface{ Stats() AdapterStats }); ok {
			stats = append(stats, s.Stats())
		}
	}
	return stats
}

// Price fetches comparables from all available sources in parallel and
// computes the valuation. It returns ErrSourcesUnavailable only when no
// source is available at all; sources that fail after being tried simply
// contribute nothing.
func (a *Aggregator) Price(ctx context.Context, q models.PriceQuery) (models.PricingResult, models.ValuationSummary, error) {
	if q.WindowDays <= 0 {
		q.WindowDays = a.windowDays
	}

	var available []SourceAdapter
	for _, ad := range a.adapters {
		if ad.Available() {
			available = append(available, ad)
		} else {
			log.Debug().Str("source", ad.Name()).Msg("pricing source circuit open, skipping")
		}
	}
	if len(available) == 0 {
		return models.PricingResult{}, models.ValuationSummary{}, ErrSourcesUnavailable
	}

	start := time.Now()
	raw := a.collect(ctx, available, q)
	comps := FilterOutliers(Normalize(raw))
	result := Valuate(comps, q.WindowDays)

	log.Info().
		Str("card", q.CardName).
		Int("sources_queried", len(available)).
		Int("comps_raw", len(raw)).
		Int("comps_used", result.CompsCount).
		Float64("median", result.ValueMedian).
		Dur("elapsed", time.Since(start)).
		Msg("pricing aggregation complete")

	summary := a.summarize(ctx, q, result)
	return result, summary, nil
}

// collect runs every adapter concurrently and gathers comps in completion
// order. Order never affects the valuation since the statistics are
// computed over the merged set.
func (a *Aggregator) collect(ctx context.Context, adapters []SourceAdapter, q models.PriceQuery) []models.RawComp {
	results := make(chan []models.RawComp, len(adapters))
	var wg sync.WaitGroup
	for _, ad := range adapters {
		wg.Add(1)
		go func(ad SourceAdapter) {
			defer wg.Done()
			comps, err := ad.Fetch(ctx, q)
			if err != nil {
				log.Warn().Str("source", ad.Name()).Err(err).Msg("pricing source fetch failed")
				return
			}
			results <- comps
		}(ad)
	}
	wg.Wait()
	close(results)

	var all []models.RawComp
	for comps := range results {
		all = append(all, comps...)
	}
	return all
}

func (a *Aggregator) summarize(ctx context.Context, q models.PriceQuery, result models.PricingResult) models.ValuationSummary {
	if a.summarizer == nil {
		return synthesizeSummary(result)
	}
	return a.summarizer.Summarize(ctx, q, result)
}
