package stream

import (
	"sync"
	"sync/atomic"
)

// Mailbox is a single-slot, latest-wins handoff between one producer and one
// consumer. A new value overwrites an unconsumed one instead of queueing, so
// a slow consumer always sees the freshest state and never a backlog.
type Mailbox[T any] struct {
	mu     sync.Mutex
	val    T
	full   bool
	notify chan struct{}
	drops  atomic.Uint64
}

func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		notify: make(chan struct{}, 1),
	}
}

// Put stores a value, overwriting any unconsumed one. Returns true when a
// value was overwritten (dropped).
func (m *Mailbox[T]) Put(v T) bool {
	m.mu.Lock()
	overwrote := m.full
	m.val = v
	m.full = true
	m.mu.Unlock()

	if overwrote {
		m.drops.Add(1)
	}

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return overwrote
}

// Take removes and returns the stored value, if any.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		var zero T
		return zero, false
	}
	v := m.val
	var zero T
	m.val = zero
	m.full = false
	return v, true
}

// Notify returns the channel signalled after each Put. The signal is
// coalesced: one receive may cover several Puts, which is fine because Take
// always yields the latest value.
func (m *Mailbox[T]) Notify() <-chan struct{} {
	return m.notify
}

// Empty reports whether the slot currently holds no value.
func (m *Mailbox[T]) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.full
}

// Drops reports how many values were overwritten before consumption.
func (m *Mailbox[T]) Drops() uint64 {
	return m.drops.Load()
}
