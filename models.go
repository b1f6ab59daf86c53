package lob

import "sync"

type Side int8

const (
	Bid Side = 1
	Ask Side = 2
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

type OrderType int8

const (
	Limit  OrderType = 1
	Market OrderType = 2
)

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

// Order represents a single order admitted to the book.
// Quantity is decremented in place on partial fills; the order is removed at 0.
// Timestamp is monotonic nanoseconds at admission and defines time priority.
type Order struct {
	ID        uint64    `json:"id"`
	Side      Side      `json:"side"`
	Type      OrderType `json:"type"`
	PriceTick int64     `json:"price_tick"` // unused for Market orders
	Quantity  uint64    `json:"quantity"`
	Timestamp int64     `json:"timestamp"`

	// Intrusive FIFO list pointers within a price level (ignored by JSON)
	next *Order
	prev *Order
}

// Trade is a single execution against a resting maker order.
// PriceTick is always the maker's resting price.
type Trade struct {
	MakerID       uint64 `json:"maker_id"`
	AggressorSide Side   `json:"aggressor_side"`
	PriceTick     int64  `json:"price_tick"`
	Quantity      uint64 `json:"quantity"`
	Timestamp     int64  `json:"ts"`
}

// EventType discriminates the L3 feed entries.
type EventType uint8

const (
	EventAdd     EventType = 1
	EventExecute EventType = 2
	EventCancel  EventType = 3
)

func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "ADD"
	case EventExecute:
		return "EXECUTE"
	case EventCancel:
		return "CANCEL"
	}
	return "UNKNOWN"
}

// Event is one entry of the per-order (L3) feed.
// Seq is a strictly increasing sequence assigned by the book; downstream
// consumers use it for ordering, deduplication and gap detection.
//
// Field meaning by type:
//   - Add:     OrderID/Side/PriceTick/Quantity describe the resting remainder.
//   - Execute: OrderID is the maker, Side is the aggressor side, PriceTick is
//     the maker's resting price, Quantity the traded lot.
//   - Cancel:  OrderID/Side/PriceTick identify the pulled order, Quantity is
//     the cancelled remainder.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"ts"`
	OrderID   uint64    `json:"order_id"`
	Side      Side      `json:"side"`
	PriceTick int64     `json:"price_tick"`
	Quantity  uint64    `json:"quantity"`
}

var eventPool = sync.Pool{
	New: func() interface{} {
		return new(Event)
	},
}

func acquireEvent() *Event {
	return eventPool.Get().(*Event)
}

func releaseEvent(e *Event) {
	*e = Event{}
	eventPool.Put(e)
}

// Quote is one side of the top of book.
type Quote struct {
	PriceTick int64
	Size      uint64
}

// DepthItem is one aggregated price level, best-first in depth listings.
type DepthItem struct {
	PriceTick int64  `json:"price_tick"`
	Size      uint64 `json:"size"`
	Count     int64  `json:"count"`
}

// BookStats contains statistics about the order book queues.
type BookStats struct {
	AskDepthCount int64
	AskOrderCount int64
	BidDepthCount int64
	BidOrderCount int64
}
