package stream

import (
	"sync/atomic"

	lob "github.com/lobforge/lobsim"
	"github.com/lobforge/lobsim/protocol"
)

// Sampler converts the live book into bounded wire snapshots. Each call
// captures whatever the book looks like right now, so a sampler polled
// slower than the book advances naturally coalesces intermediate states.
type Sampler struct {
	book  *lob.OrderBook
	ticks lob.TickConverter
	depth int
	seq   atomic.Uint64
}

// NewSampler creates a sampler capped at depth levels per side.
func NewSampler(book *lob.OrderBook, depth int) *Sampler {
	return &Sampler{
		book:  book,
		ticks: book.Ticks(),
		depth: depth,
	}
}

// Sample captures one snapshot. The returned seq strictly increases per
// sampler and is independent of the book's event sequence.
func (s *Sampler) Sample() *protocol.Snapshot {
	view := s.book.Snapshot(s.depth)

	return &protocol.Snapshot{
		TS:   uint64(view.Timestamp),
		Seq:  s.seq.Add(1),
		Bids: s.levels(view.Bids),
		Asks: s.levels(view.Asks),
	}
}

func (s *Sampler) levels(items []lob.DepthItem) []protocol.Level {
	out := make([]protocol.Level, len(items))
	for i, d := range items {
		out[i] = protocol.Level{
			Price: s.ticks.TickToPrice(d.PriceTick),
			Size:  d.Size,
		}
	}
	return out
}
