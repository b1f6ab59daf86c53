package lob

import (
	"github.com/huandu/skiplist"
)

// priceLevel is one FIFO queue of resting orders sharing a (side, tick).
type priceLevel struct {
	totalSize uint64
	head      *Order
	tail      *Order
	count     int64
}

// sideQueue holds all price levels of one side.
// depthList orders levels best-first (bids descending, asks ascending);
// priceList gives O(1) access to a level element; orders is the id index.
type sideQueue struct {
	side        Side
	totalOrders int64
	totalVolume uint64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[int64]*skiplist.Element
	orders      map[uint64]*Order
}

// newBidQueue creates the bid side. Levels are sorted by tick in
// descending order (highest bid first).
func newBidQueue() *sideQueue {
	return &sideQueue{
		side: Bid,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			t1, _ := lhs.(int64)
			t2, _ := rhs.(int64)

			if t1 < t2 {
				return 1
			} else if t1 > t2 {
				return -1
			}

			return 0
		})),
		priceList: make(map[int64]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// newAskQueue creates the ask side. Levels are sorted by tick in
// ascending order (lowest ask first).
func newAskQueue() *sideQueue {
	return &sideQueue{
		side: Ask,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			t1, _ := lhs.(int64)
			t2, _ := rhs.(int64)

			if t1 > t2 {
				return 1
			} else if t1 < t2 {
				return -1
			}

			return 0
		})),
		priceList: make(map[int64]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// order finds a resting order by its ID.
func (q *sideQueue) order(id uint64) *Order {
	return q.orders[id]
}

// insertOrder inserts an order into the queue.
// isFront re-inserts a partially filled maker at the head of its level.
func (q *sideQueue) insertOrder(order *Order, isFront bool) {
	el, ok := q.priceList[order.PriceTick]
	if ok {
		level, _ := el.Value.(*priceLevel)
		if isFront {
			order.next = level.head
			order.prev = nil
			if level.head != nil {
				level.head.prev = order
			}
			level.head = order
			if level.tail == nil {
				level.tail = order
			}
		} else {
			order.prev = level.tail
			order.next = nil
			if level.tail != nil {
				level.tail.next = order
			}
			level.tail = order
			if level.head == nil {
				level.head = order
			}
		}

		level.totalSize += order.Quantity
		level.count++
	} else {
		level := &priceLevel{
			head:      order,
			tail:      order,
			totalSize: order.Quantity,
			count:     1,
		}
		order.next = nil
		order.prev = nil

		el := q.depthList.Set(order.PriceTick, level)
		q.priceList[order.PriceTick] = el
		q.depths++
	}

	q.orders[order.ID] = order
	q.totalOrders++
	q.totalVolume += order.Quantity
}

// removeOrder removes an order from its level by tick and ID.
// The level is deleted once it holds no orders.
func (q *sideQueue) removeOrder(tick int64, id uint64) {
	el, ok := q.priceList[tick]
	if !ok {
		return
	}
	level, _ := el.Value.(*priceLevel)

	order, ok := q.orders[id]
	if !ok {
		return
	}

	if order.prev != nil {
		order.prev.next = order.next
	} else {
		level.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		level.tail = order.prev
	}

	// Clear pointers to avoid leaks
	order.next = nil
	order.prev = nil

	level.totalSize -= order.Quantity
	level.count--
	delete(q.orders, id)
	q.totalOrders--
	q.totalVolume -= order.Quantity

	if level.count == 0 {
		q.depthList.RemoveElement(el)
		delete(q.priceList, tick)
		q.depths--
	}
}

// reduceOrder decrements an order's quantity in place.
// Used for partial fills and partial cancels; the order keeps its queue slot.
func (q *sideQueue) reduceOrder(id uint64, by uint64) {
	order, ok := q.orders[id]
	if !ok || by == 0 || by > order.Quantity {
		return
	}

	el, ok := q.priceList[order.PriceTick]
	if ok {
		level, _ := el.Value.(*priceLevel)
		level.totalSize -= by
		order.Quantity -= by
		q.totalVolume -= by
	}
}

// peekHeadOrder returns the order at the front of the best level without removing it.
func (q *sideQueue) peekHeadOrder() *Order {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	level, _ := el.Value.(*priceLevel)
	return level.head
}

// popHeadOrder removes and returns the order at the front of the best level.
func (q *sideQueue) popHeadOrder() *Order {
	ord := q.peekHeadOrder()

	if ord != nil {
		q.removeOrder(ord.PriceTick, ord.ID)
	}

	return ord
}

// level returns the price level at the given tick, or nil.
func (q *sideQueue) level(tick int64) *priceLevel {
	el, ok := q.priceList[tick]
	if !ok {
		return nil
	}
	level, _ := el.Value.(*priceLevel)
	return level
}

// bestQuote returns the best level's tick and aggregate size.
func (q *sideQueue) bestQuote() (Quote, bool) {
	el := q.depthList.Front()
	if el == nil {
		return Quote{}, false
	}

	tick, _ := el.Key().(int64)
	level, _ := el.Value.(*priceLevel)
	return Quote{PriceTick: tick, Size: level.totalSize}, true
}

// orderCount returns the total number of resting orders on this side.
func (q *sideQueue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels on this side.
func (q *sideQueue) depthCount() int64 {
	return q.depths
}

// volume returns the total resting quantity on this side.
func (q *sideQueue) volume() uint64 {
	return q.totalVolume
}

// depth returns up to limit levels best-first as aggregated items.
func (q *sideQueue) depth(limit int) []DepthItem {
	result := make([]DepthItem, 0, limit)

	el := q.depthList.Front()
	for i := 0; i < limit && el != nil; i++ {
		tick, _ := el.Key().(int64)
		level, _ := el.Value.(*priceLevel)
		result = append(result, DepthItem{
			PriceTick: tick,
			Size:      level.totalSize,
			Count:     level.count,
		})
		el = el.Next()
	}

	return result
}
