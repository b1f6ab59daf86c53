package structure

import (
	"math/rand"
	"testing"

	"github.com/huandu/skiplist"
)

// Compares the pooled arena skiplist against the pointer-based library used by
// the live book, under a level-churn workload shaped like order flow.

func benchTicks(n int) []int64 {
	rng := rand.New(rand.NewSource(99))
	ticks := make([]int64, n)
	for i := range ticks {
		ticks[i] = int64(rng.Intn(2000) + 9000)
	}
	return ticks
}

func BenchmarkPooledSkiplistChurn(b *testing.B) {
	ticks := benchTicks(1024)
	sl := NewTickSkiplist(4096, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tk := ticks[i%len(ticks)]
		ok, _ := sl.Insert(tk)
		if !ok {
			sl.Delete(tk)
		}
	}
}

func BenchmarkLibrarySkiplistChurn(b *testing.B) {
	ticks := benchTicks(1024)
	sl := skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs interface{}) int {
		a, bb := lhs.(int64), rhs.(int64)
		switch {
		case a < bb:
			return -1
		case a > bb:
			return 1
		default:
			return 0
		}
	}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tk := ticks[i%len(ticks)]
		if sl.Get(tk) == nil {
			sl.Set(tk, struct{}{})
		} else {
			sl.Remove(tk)
		}
	}
}

func BenchmarkPooledSkiplistScan(b *testing.B) {
	sl := NewTickSkiplist(4096, 1)
	for _, tk := range benchTicks(1024) {
		sl.Insert(tk)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var sum int64
		for it := sl.Iterator(); it.Valid(); it.Next() {
			sum += it.Tick()
		}
		_ = sum
	}
}
