package rebalancing

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxPriceLookups bounds concurrent latest-price requests in one cycle
const maxPriceLookups = 4

// PriceSource returns the latest trade price for a symbol
type PriceSource interface {
	LatestTradePrice(ctx context.Context, symbol string) (float64, error)
}

// PriceResolver fills in current prices for target symbols the account
// does not already price.
type PriceResolver struct {
	source PriceSource
	log    zerolog.Logger
}

// NewPriceResolver creates a resolver backed by source
func NewPriceResolver(source PriceSource, log zerolog.Logger) *PriceResolver {
	return &PriceResolver{
		source: source,
		log:    log.With().Str("component", "price_resolver").Logger(),
	}
}

// Resolve returns a price map covering known plus every symbol it could price.
// Lookups run concurrently and are best-effort: a failed or non-positive
// lookup leaves the symbol out of the map, and the planner treats it as unbuyable.
func (r *PriceResolver) Resolve(ctx context.Context, symbols []string, known map[string]float64) map[string]float64 {
	prices := make(map[string]float64, len(known)+len(symbols))
	for symbol, price := range known {
		if price > 0 {
			prices[strings.ToUpper(symbol)] = price
		}
	}

	var missing []string
	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if _, ok := prices[symbol]; ok || seen[symbol] {
			continue
		}
		seen[symbol] = true
		missing = append(missing, symbol)
	}
	if len(missing) == 0 || r.source == nil {
		return prices
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPriceLookups)

	for _, symbol := range missing {
		g.Go(func() error {
			price, err := r.source.LatestTradePrice(gctx, symbol)
			if err != nil {
				r.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to resolve price, symbol will not be bought")
				return nil
			}
			if price <= 0 {
				r.log.Warn().Str("symbol", symbol).Float64("price", price).Msg("Non-positive price ignored")
				return nil
			}
			mu.Lock()
			prices[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.log.Debug().
		Int("requested", len(missing)).
		Int("priced", len(prices)).
		Msg("Resolved missing prices")

	return prices
}
