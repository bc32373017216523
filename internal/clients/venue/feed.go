package venue

import (
	"context"
	"iter"
	"sort"

	"github.com/aristath/autopilot/internal/domain"
)

// MaxTradesPerCycle caps how many trades one replay cycle may scan
const MaxTradesPerCycle = 2500

// Trades lazily walks the maker's trade history from the initial cursor,
// yielding each page newest-first. Iteration ends at the terminal cursor, an
// empty or repeated cursor, after limit trades, or when the consumer stops.
// A page fetch failure is yielded once as an error and ends the sequence.
func Trades(ctx context.Context, client domain.VenueClient, maker string, limit int) iter.Seq2[domain.Trade, error] {
	if limit <= 0 {
		limit = MaxTradesPerCycle
	}

	return func(yield func(domain.Trade, error) bool) {
		cursor := InitialCursor
		yielded := 0

		for {
			page, err := client.TradesPage(ctx, maker, cursor)
			if err != nil {
				yield(domain.Trade{}, err)
				return
			}

			trades := make([]domain.Trade, len(page.Trades))
			copy(trades, page.Trades)
			sort.SliceStable(trades, func(i, j int) bool {
				return trades[i].MatchTime.After(trades[j].MatchTime)
			})

			for _, t := range trades {
				if yielded >= limit {
					return
				}
				yielded++
				if !yield(t, nil) {
					return
				}
			}

			next := page.NextCursor
			if len(page.Trades) == 0 || next == "" || next == TerminalCursor || next == cursor {
				return
			}
			cursor = next
		}
	}
}
