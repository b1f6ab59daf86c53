package lob

// BookSnapshot is a bounded-depth immutable view of the book, both sides
// best-first. It carries ticks; price rendering is left to the caller so the
// wire layer decides the float boundary.
type BookSnapshot struct {
	Timestamp int64
	Seq       uint64 // L3 event sequence at capture time
	Bids      []DepthItem
	Asks      []DepthItem
}

// Snapshot captures up to depth levels per side under a single read guard,
// so no partial view of a match is ever observed. It is read-only: the
// timestamp is the one stamped by the last mutation, so sampling never
// touches the clock and concurrent snapshots leave the book's event stream
// untouched.
func (book *OrderBook) Snapshot(depth int) *BookSnapshot {
	book.mu.RLock()
	defer book.mu.RUnlock()

	return &BookSnapshot{
		Timestamp: book.lastTS,
		Seq:       book.seq.Load(),
		Bids:      book.bidQueue.depth(depth),
		Asks:      book.askQueue.depth(depth),
	}
}
