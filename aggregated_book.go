package lob

import (
	"fmt"
	"sync/atomic"

	"github.com/igrmk/treemap/v2"
)

// AggregatedBook maintains a simplified view of the order book, tracking only
// price levels and their aggregated sizes (depth). It is designed for
// downstream consumers that rebuild book state from the L3 event feed.
// Both sides iterate best-first.
type AggregatedBook struct {
	seq atomic.Uint64 // last applied event Seq, for gap detection
	ask *treemap.TreeMap[int64, uint64]
	bid *treemap.TreeMap[int64, uint64]
}

// NewAggregatedBook creates an AggregatedBook with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: treemap.NewWithKeyCompare[int64, uint64](func(a, b int64) bool {
			return a < b
		}),
		bid: treemap.NewWithKeyCompare[int64, uint64](func(a, b int64) bool {
			return a > b
		}),
	}
}

// Seq returns the sequence of the last applied event.
func (ab *AggregatedBook) Seq() uint64 {
	return ab.seq.Load()
}

// Apply folds one L3 event into the aggregated state.
// Events must arrive in sequence order; a gap is reported as an error and the
// event is not applied.
func (ab *AggregatedBook) Apply(e *Event) error {
	last := ab.seq.Load()
	if last != 0 && e.Seq != last+1 {
		return fmt.Errorf("event sequence gap: have %d, got %d", last, e.Seq)
	}

	change := CalculateDepthChange(e)
	if change.SizeDiff != 0 {
		side := ab.bid
		if change.Side == Ask {
			side = ab.ask
		}

		size, _ := side.Get(change.PriceTick)
		next := int64(size) + change.SizeDiff
		if next < 0 {
			return fmt.Errorf("negative depth at %s tick %d after seq %d", change.Side, change.PriceTick, e.Seq)
		}
		if next == 0 {
			side.Del(change.PriceTick)
		} else {
			side.Set(change.PriceTick, uint64(next))
		}
	}

	ab.seq.Store(e.Seq)
	return nil
}

// Depth returns up to n levels of one side, best-first.
func (ab *AggregatedBook) Depth(side Side, n int) []DepthItem {
	tree := ab.bid
	if side == Ask {
		tree = ab.ask
	}

	result := make([]DepthItem, 0, n)
	for it := tree.Iterator(); it.Valid() && len(result) < n; it.Next() {
		result = append(result, DepthItem{PriceTick: it.Key(), Size: it.Value()})
	}
	return result
}

// Levels returns the number of price levels on one side.
func (ab *AggregatedBook) Levels(side Side) int {
	if side == Ask {
		return ab.ask.Len()
	}
	return ab.bid.Len()
}
