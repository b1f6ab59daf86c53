package lob

import (
	"math/rand"
	"testing"
)

func benchBook() *OrderBook {
	var now int64
	return NewOrderBook(nil, WithClock(func() int64 {
		now++
		return now
	}))
}

func BenchmarkAddRestingLimit(b *testing.B) {
	book := benchBook()
	rng := rand.New(rand.NewSource(1))

	// pre-split the grid so bids and asks never cross
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i + 1)
		if i%2 == 0 {
			book.Add(&Order{ID: id, Side: Bid, Type: Limit,
				PriceTick: int64(900 + rng.Intn(50)), Quantity: 10})
		} else {
			book.Add(&Order{ID: id, Side: Ask, Type: Limit,
				PriceTick: int64(1050 + rng.Intn(50)), Quantity: 10})
		}
	}
}

func BenchmarkAddAndCancel(b *testing.B) {
	book := benchBook()
	rng := rand.New(rand.NewSource(2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i + 1)
		book.Add(&Order{ID: id, Side: Bid, Type: Limit,
			PriceTick: int64(900 + rng.Intn(100)), Quantity: 10})
		if id > 64 {
			book.Cancel(id - 64)
		}
	}
}

func BenchmarkMarketSweep(b *testing.B) {
	book := benchBook()
	for i := 0; i < 10000; i++ {
		book.Add(&Order{ID: uint64(i + 1), Side: Ask, Type: Limit,
			PriceTick: int64(1000 + i%200), Quantity: 50})
	}

	b.ResetTimer()
	id := uint64(1000000)
	for i := 0; i < b.N; i++ {
		id++
		book.Add(&Order{ID: id, Side: Bid, Type: Market, Quantity: 5})

		// refill so the book never runs dry
		id++
		book.Add(&Order{ID: id, Side: Ask, Type: Limit,
			PriceTick: int64(1000 + i%200), Quantity: 5})
	}
}

func BenchmarkSnapshot(b *testing.B) {
	book := benchBook()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 5000; i++ {
		id := uint64(i + 1)
		if i%2 == 0 {
			book.Add(&Order{ID: id, Side: Bid, Type: Limit,
				PriceTick: int64(800 + rng.Intn(200)), Quantity: 10})
		} else {
			book.Add(&Order{ID: id, Side: Ask, Type: Limit,
				PriceTick: int64(1001 + rng.Intn(200)), Quantity: 10})
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		book.Snapshot(50)
	}
}
