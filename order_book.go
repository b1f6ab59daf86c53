package lob

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Clock supplies monotonic nanosecond timestamps for admission and events.
// The generator installs a simulated clock; the default is process monotonic
// time. Successive calls must never go backwards.
type Clock func() int64

func monotonicClock() Clock {
	base := time.Now()
	return func() int64 {
		return time.Since(base).Nanoseconds()
	}
}

// Option configures an OrderBook at construction time.
type Option func(*OrderBook)

// WithTickSize sets the price quantum used by the book's tick converter.
func WithTickSize(tickSize decimal.Decimal) Option {
	return func(book *OrderBook) {
		book.ticks = NewTickConverter(tickSize)
	}
}

// WithClock replaces the monotonic clock, e.g. with a simulated one.
func WithClock(clock Clock) Option {
	return func(book *OrderBook) {
		book.clock = clock
	}
}

// WithValidation enables full invariant checks after every mutation.
// A violation panics: it indicates programmer error, not input error.
func WithValidation(enabled bool) Option {
	return func(book *OrderBook) {
		book.validate = enabled
	}
}

// OrderBook is a single-symbol, tick-priced, price-time-priority book.
//
// Concurrency model: all mutating calls (Add, Cancel, CancelLevel) must come
// from one writer goroutine. Read calls (BestBid, BestAsk, Depth, Snapshot)
// take a read guard and may run concurrently from a sampler goroutine; their
// worst case is bounded by the requested depth.
type OrderBook struct {
	mu       sync.RWMutex
	ticks    TickConverter
	clock    Clock
	lastTS   int64 // timestamp of the last mutation, guarded by mu
	validate bool
	seq      atomic.Uint64 // strictly increasing L3 event sequence
	bidQueue *sideQueue
	askQueue *sideQueue
	pub      L3Publisher
}

// NewOrderBook creates a new order book publishing its L3 feed to pub.
func NewOrderBook(pub L3Publisher, opts ...Option) *OrderBook {
	if pub == nil {
		pub = NewDiscardPublisher()
	}

	book := &OrderBook{
		ticks:    NewTickConverter(DefaultTickSize),
		clock:    monotonicClock(),
		bidQueue: newBidQueue(),
		askQueue: newAskQueue(),
		pub:      pub,
	}

	for _, opt := range opts {
		opt(book)
	}

	return book
}

// Ticks returns the book's tick converter.
func (book *OrderBook) Ticks() TickConverter {
	return book.ticks
}

// Seq returns the sequence of the last published L3 event.
func (book *OrderBook) Seq() uint64 {
	return book.seq.Load()
}

// stamp draws the next timestamp and records it for read-side consumers.
// The clock is only ever invoked here, under the write lock, so read paths
// never advance a simulated clock. Callers hold the write lock.
func (book *OrderBook) stamp() int64 {
	ts := book.clock()
	book.lastTS = ts
	return ts
}

// Add admits an order. Limit orders match aggressively against the opposite
// side and the remainder rests; Market orders consume liquidity best-first
// and any unfilled remainder is dropped. Returns the executed trades.
//
// Fails with ErrInvalidOrder on zero quantity or a Limit without a positive
// price tick; the book state is unchanged on failure.
func (book *OrderBook) Add(order *Order) ([]Trade, error) {
	if order == nil || order.ID == 0 || order.Quantity == 0 {
		return nil, ErrInvalidOrder
	}
	if order.Side != Bid && order.Side != Ask {
		return nil, ErrInvalidOrder
	}
	if order.Type == Limit && order.PriceTick <= 0 {
		return nil, ErrInvalidOrder
	}
	if order.Type != Limit && order.Type != Market {
		return nil, ErrInvalidOrder
	}

	book.mu.Lock()

	if book.bidQueue.order(order.ID) != nil || book.askQueue.order(order.ID) != nil {
		book.mu.Unlock()
		return nil, ErrDuplicateID
	}

	order.Timestamp = book.stamp()

	var trades []Trade
	var events []*Event

	switch order.Type {
	case Limit:
		trades, events = book.matchLimit(order)
	case Market:
		trades, events = book.matchMarket(order)
	}

	book.assertInvariants()
	book.mu.Unlock()

	book.publish(events)
	return trades, nil
}

// Cancel removes the resting order with the given id and returns its
// cancelled quantity. Unknown ids are a no-op returning 0, never an error.
func (book *OrderBook) Cancel(id uint64) uint64 {
	book.mu.Lock()

	myQueue := book.bidQueue
	order := myQueue.order(id)
	if order == nil {
		myQueue = book.askQueue
		order = myQueue.order(id)
	}
	if order == nil {
		book.mu.Unlock()
		return 0
	}

	cancelled := order.Quantity
	myQueue.removeOrder(order.PriceTick, id)

	e := acquireEvent()
	e.Seq = book.seq.Add(1)
	e.Type = EventCancel
	e.Timestamp = book.stamp()
	e.OrderID = order.ID
	e.Side = order.Side
	e.PriceTick = order.PriceTick
	e.Quantity = cancelled

	book.assertInvariants()
	book.mu.Unlock()

	book.publish([]*Event{e})
	return cancelled
}

// CancelLevel cancels up to quantity from the head of the (side, tick) level,
// removing whole orders front to back and partially reducing the last one if
// needed. Returns the total quantity cancelled.
func (book *OrderBook) CancelLevel(side Side, tick int64, quantity uint64) uint64 {
	if quantity == 0 {
		return 0
	}

	book.mu.Lock()

	myQueue := book.bidQueue
	if side == Ask {
		myQueue = book.askQueue
	}

	level := myQueue.level(tick)
	if level == nil {
		book.mu.Unlock()
		return 0
	}

	var cancelled uint64
	events := make([]*Event, 0, 4)

	for quantity > 0 {
		head := level.head
		if head == nil {
			break
		}

		e := acquireEvent()
		e.Seq = book.seq.Add(1)
		e.Type = EventCancel
		e.Timestamp = book.stamp()
		e.OrderID = head.ID
		e.Side = side
		e.PriceTick = tick

		if quantity >= head.Quantity {
			e.Quantity = head.Quantity
			cancelled += head.Quantity
			quantity -= head.Quantity
			myQueue.removeOrder(tick, head.ID)
		} else {
			e.Quantity = quantity
			cancelled += quantity
			myQueue.reduceOrder(head.ID, quantity)
			quantity = 0
		}
		events = append(events, e)

		// The level may have been deleted with its last order.
		if level = myQueue.level(tick); level == nil {
			break
		}
	}

	book.assertInvariants()
	book.mu.Unlock()

	book.publish(events)
	return cancelled
}

// BestBid returns the highest bid level, if any. O(1).
func (book *OrderBook) BestBid() (Quote, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.bidQueue.bestQuote()
}

// BestAsk returns the lowest ask level, if any. O(1).
func (book *OrderBook) BestAsk() (Quote, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.askQueue.bestQuote()
}

// Contains reports whether an order id is resting in the book.
func (book *OrderBook) Contains(id uint64) bool {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.bidQueue.order(id) != nil || book.askQueue.order(id) != nil
}

// Resting returns a copy of the resting order with the given id.
func (book *OrderBook) Resting(id uint64) (Order, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	order := book.bidQueue.order(id)
	if order == nil {
		order = book.askQueue.order(id)
	}
	if order == nil {
		return Order{}, false
	}

	cpy := *order
	cpy.next, cpy.prev = nil, nil
	return cpy, true
}

// Depth returns up to n price levels of one side, best-first.
func (book *OrderBook) Depth(side Side, n int) []DepthItem {
	book.mu.RLock()
	defer book.mu.RUnlock()

	if side == Bid {
		return book.bidQueue.depth(n)
	}
	return book.askQueue.depth(n)
}

// RestingVolume returns the total resting quantity across both sides.
func (book *OrderBook) RestingVolume() uint64 {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.bidQueue.volume() + book.askQueue.volume()
}

// Stats returns usage statistics for the order book.
func (book *OrderBook) Stats() BookStats {
	book.mu.RLock()
	defer book.mu.RUnlock()

	return BookStats{
		AskDepthCount: book.askQueue.depthCount(),
		AskOrderCount: book.askQueue.orderCount(),
		BidDepthCount: book.bidQueue.depthCount(),
		BidOrderCount: book.bidQueue.orderCount(),
	}
}

// matchLimit matches a Limit order against the opposite queue and rests the
// remaining quantity. Trade price is always the maker's resting tick.
func (book *OrderBook) matchLimit(order *Order) ([]Trade, []*Event) {
	myQueue, targetQueue := book.bidQueue, book.askQueue
	if order.Side == Ask {
		myQueue, targetQueue = book.askQueue, book.bidQueue
	}

	trades := make([]Trade, 0, 4)
	events := make([]*Event, 0, 4)

	for order.Quantity > 0 {
		maker := targetQueue.peekHeadOrder()
		if maker == nil {
			break
		}

		// Marketable check before consuming.
		if order.Side == Bid && maker.PriceTick > order.PriceTick ||
			order.Side == Ask && maker.PriceTick < order.PriceTick {
			break
		}

		book.fill(order, maker, targetQueue, &trades, &events)
	}

	if order.Quantity > 0 {
		myQueue.insertOrder(order, false)

		e := acquireEvent()
		e.Seq = book.seq.Add(1)
		e.Type = EventAdd
		e.Timestamp = book.stamp()
		e.OrderID = order.ID
		e.Side = order.Side
		e.PriceTick = order.PriceTick
		e.Quantity = order.Quantity
		events = append(events, e)
	}

	return trades, events
}

// matchMarket walks the opposite side best-first until the order is exhausted
// or the book runs dry. Market orders never rest: the remainder is dropped.
func (book *OrderBook) matchMarket(order *Order) ([]Trade, []*Event) {
	targetQueue := book.bidQueue
	if order.Side == Bid {
		targetQueue = book.askQueue
	}

	trades := make([]Trade, 0, 4)
	events := make([]*Event, 0, 4)

	for order.Quantity > 0 {
		maker := targetQueue.peekHeadOrder()
		if maker == nil {
			break
		}
		book.fill(order, maker, targetQueue, &trades, &events)
	}

	return trades, events
}

// fill executes one lot between the incoming order and the maker at the head
// of its level. The maker is partially reduced in place (keeping its queue
// position) or fully consumed and removed.
func (book *OrderBook) fill(order, maker *Order, targetQueue *sideQueue, trades *[]Trade, events *[]*Event) {
	qty := order.Quantity
	if maker.Quantity < qty {
		qty = maker.Quantity
	}

	ts := book.stamp()

	e := acquireEvent()
	e.Seq = book.seq.Add(1)
	e.Type = EventExecute
	e.Timestamp = ts
	e.OrderID = maker.ID
	e.Side = order.Side
	e.PriceTick = maker.PriceTick
	e.Quantity = qty
	*events = append(*events, e)

	*trades = append(*trades, Trade{
		MakerID:       maker.ID,
		AggressorSide: order.Side,
		PriceTick:     maker.PriceTick,
		Quantity:      qty,
		Timestamp:     ts,
	})

	order.Quantity -= qty
	if qty == maker.Quantity {
		targetQueue.removeOrder(maker.PriceTick, maker.ID)
	} else {
		targetQueue.reduceOrder(maker.ID, qty)
	}
}

// publish hands events to the publisher and recycles them.
// Publishers must clone anything they keep past the call.
func (book *OrderBook) publish(events []*Event) {
	if len(events) == 0 {
		return
	}

	book.pub.Publish(events...)
	for _, e := range events {
		releaseEvent(e)
	}
}

// assertInvariants runs the full invariant scan when validation is enabled.
// Callers hold the write lock.
func (book *OrderBook) assertInvariants() {
	if !book.validate {
		return
	}
	if err := book.validateLocked(); err != nil {
		panic(err)
	}
}

// Validate runs a full consistency scan over both sides and the top of book.
// It is O(resting orders) and intended for tests and validated builds.
func (book *OrderBook) Validate() error {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.validateLocked()
}

func (book *OrderBook) validateLocked() error {
	bestBid, hasBid := book.bidQueue.bestQuote()
	bestAsk, hasAsk := book.askQueue.bestQuote()
	if hasBid && hasAsk && bestBid.PriceTick >= bestAsk.PriceTick {
		return fmt.Errorf("%w: crossed book, bid %d >= ask %d", ErrInvariant, bestBid.PriceTick, bestAsk.PriceTick)
	}

	for _, q := range []*sideQueue{book.bidQueue, book.askQueue} {
		var orders, levels int64
		for el := q.depthList.Front(); el != nil; el = el.Next() {
			tick, _ := el.Key().(int64)
			level, _ := el.Value.(*priceLevel)
			levels++

			if level.count == 0 || level.head == nil {
				return fmt.Errorf("%w: empty %s level at tick %d", ErrInvariant, q.side, tick)
			}

			var sum uint64
			var count int64
			for o := level.head; o != nil; o = o.next {
				if o.PriceTick != tick {
					return fmt.Errorf("%w: order %d at tick %d linked into level %d", ErrInvariant, o.ID, o.PriceTick, tick)
				}
				if o.Quantity == 0 {
					return fmt.Errorf("%w: zero-quantity order %d resting", ErrInvariant, o.ID)
				}
				if q.orders[o.ID] != o {
					return fmt.Errorf("%w: order %d missing from id index", ErrInvariant, o.ID)
				}
				sum += o.Quantity
				count++
				orders++
			}
			if sum != level.totalSize {
				return fmt.Errorf("%w: %s level %d size %d != queued sum %d", ErrInvariant, q.side, tick, level.totalSize, sum)
			}
			if count != level.count {
				return fmt.Errorf("%w: %s level %d count %d != queued count %d", ErrInvariant, q.side, tick, level.count, count)
			}
		}
		if orders != q.totalOrders {
			return fmt.Errorf("%w: %s order count %d != indexed %d", ErrInvariant, q.side, orders, q.totalOrders)
		}
		if levels != q.depths {
			return fmt.Errorf("%w: %s level count %d != tracked %d", ErrInvariant, q.side, levels, q.depths)
		}
		if int64(len(q.orders)) != q.totalOrders {
			return fmt.Errorf("%w: %s id index size %d != order count %d", ErrInvariant, q.side, len(q.orders), q.totalOrders)
		}
	}

	return nil
}
