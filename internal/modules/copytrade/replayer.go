package copytrade

import (
	"iter"
	"slices"

	"github.com/aristath/autopilot/internal/domain"
)

// CollectNewTrades reads a newest-first feed until it reaches the cursor's
// anchor and returns the unseen trades oldest first.
//
// With a stored trade id collection stops at that id; a trade strictly older
// than the stored match time also stops it, in case the anchored trade has
// left the feed. Without an id it stops at the first trade not strictly after
// the anchor time. A feed error aborts collection so the anchor never advances
// past trades that were not seen.
func CollectNewTrades(feed iter.Seq2[domain.Trade, error], cursor domain.ReplayCursor) ([]domain.Trade, error) {
	var collected []domain.Trade

	for t, err := range feed {
		if err != nil {
			return nil, err
		}
		if reachedAnchor(t, cursor) {
			break
		}
		collected = append(collected, t)
	}

	slices.Reverse(collected)
	return collected, nil
}

func reachedAnchor(t domain.Trade, cursor domain.ReplayCursor) bool {
	if cursor.LastTradeID != "" {
		if t.ID == cursor.LastTradeID {
			return true
		}
		return cursor.LastTradeMatchTime != nil && t.MatchTime.Before(*cursor.LastTradeMatchTime)
	}
	if cursor.LastTradeMatchTime != nil {
		return !t.MatchTime.After(*cursor.LastTradeMatchTime)
	}
	return false
}
