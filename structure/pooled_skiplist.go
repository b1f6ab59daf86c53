package structure

import (
	"errors"
	"math/rand"
)

// TickSkiplist is a fixed-level skiplist of integer price ticks with
// arena-based memory management: O(log N) operations with zero allocations on
// the hot path.
//
// Design:
// - All nodes have fixed MaxLevel pointers (wastes some memory but enables pooling)
// - The node arena is pre-allocated and expands automatically when exhausted
// - Random level generation provides probabilistic balancing

const (
	SkiplistMaxLevel    = 16 // Maximum level height
	SkiplistP           = 4  // 1/P probability of level increase
	DefaultGrowthFactor = 2  // Default expansion factor

	NullIndex int32 = -1
)

var ErrMaxCapacityReached = errors.New("skiplist: max capacity reached")

// TickNode represents a node in the pooled skiplist.
type TickNode struct {
	Forward [SkiplistMaxLevel]int32 // Forward pointers (fixed size for pooling)
	Tick    int64                   // Key
	Level   int32                   // Actual level of this node (1 to MaxLevel)
}

// Options configures the pooled skiplist behavior.
type Options struct {
	// MaxCapacity sets the maximum number of nodes allowed.
	// If 0 (default), there is no limit and the arena grows indefinitely.
	MaxCapacity int32

	// OnGrow is called when the arena expands.
	OnGrow func(oldCap, newCap int32)
}

// TickSkiplist is an arena-backed skiplist for price ticks.
type TickSkiplist struct {
	nodes       []TickNode
	head        int32 // Head sentinel node index
	freeHead    int32 // Head of free list
	count       int32
	level       int32 // Current max level in use
	rng         *rand.Rand
	maxCapacity int32
	onGrow      func(int32, int32)
}

// NewTickSkiplist creates a pooled skiplist with pre-allocated capacity.
func NewTickSkiplist(capacity int32, seed int64) *TickSkiplist {
	return NewTickSkiplistWithOptions(capacity, seed, Options{})
}

// NewTickSkiplistWithOptions creates a pooled skiplist with custom options.
func NewTickSkiplistWithOptions(capacity int32, seed int64, opts Options) *TickSkiplist {
	// +1 for head sentinel
	totalCap := capacity + 1
	sl := &TickSkiplist{
		nodes:       make([]TickNode, totalCap),
		freeHead:    1, // 0 is reserved for head
		level:       1,
		rng:         rand.New(rand.NewSource(seed)),
		maxCapacity: opts.MaxCapacity,
		onGrow:      opts.OnGrow,
	}

	// Head sentinel at index 0
	sl.head = 0
	sl.nodes[0].Level = SkiplistMaxLevel
	for i := 0; i < SkiplistMaxLevel; i++ {
		sl.nodes[0].Forward[i] = NullIndex
	}

	// Free list starts at index 1
	for i := int32(1); i < totalCap-1; i++ {
		sl.nodes[i].Forward[0] = i + 1
	}
	sl.nodes[totalCap-1].Forward[0] = NullIndex

	return sl
}

// grow expands the arena capacity.
func (sl *TickSkiplist) grow() error {
	oldCap := int32(len(sl.nodes))
	newCap := oldCap * DefaultGrowthFactor

	if sl.maxCapacity > 0 && newCap > sl.maxCapacity {
		if oldCap >= sl.maxCapacity {
			return ErrMaxCapacityReached
		}
		newCap = sl.maxCapacity
	}

	if sl.onGrow != nil {
		sl.onGrow(oldCap, newCap)
	}

	newNodes := make([]TickNode, newCap)
	copy(newNodes, sl.nodes)

	// Thread new nodes onto the free list
	for i := oldCap; i < newCap-1; i++ {
		newNodes[i].Forward[0] = i + 1
	}
	newNodes[newCap-1].Forward[0] = sl.freeHead
	sl.freeHead = oldCap

	sl.nodes = newNodes
	return nil
}

// alloc allocates a node from the free list, growing if necessary.
func (sl *TickSkiplist) alloc() (int32, error) {
	if sl.freeHead == NullIndex {
		if err := sl.grow(); err != nil {
			return NullIndex, err
		}
	}
	idx := sl.freeHead
	sl.freeHead = sl.nodes[idx].Forward[0]

	for i := 0; i < SkiplistMaxLevel; i++ {
		sl.nodes[idx].Forward[i] = NullIndex
	}
	return idx, nil
}

// free returns a node to the free list.
func (sl *TickSkiplist) free(idx int32) {
	sl.nodes[idx].Forward[0] = sl.freeHead
	sl.freeHead = idx
}

func (sl *TickSkiplist) randomLevel() int32 {
	level := int32(1)
	for level < SkiplistMaxLevel && sl.rng.Intn(SkiplistP) == 0 {
		level++
	}
	return level
}

// Insert inserts a tick. Returns true if inserted, false if already present.
func (sl *TickSkiplist) Insert(tick int64) (bool, error) {
	var update [SkiplistMaxLevel]int32
	x := sl.head

	for i := sl.level - 1; i >= 0; i-- {
		for sl.nodes[x].Forward[i] != NullIndex &&
			sl.nodes[sl.nodes[x].Forward[i]].Tick < tick {
			x = sl.nodes[x].Forward[i]
		}
		update[i] = x
	}

	x = sl.nodes[x].Forward[0]

	if x != NullIndex && sl.nodes[x].Tick == tick {
		return false, nil
	}

	newLevel := sl.randomLevel()
	if newLevel > sl.level {
		for i := sl.level; i < newLevel; i++ {
			update[i] = sl.head
		}
		sl.level = newLevel
	}

	newNode, err := sl.alloc()
	if err != nil {
		return false, err
	}
	sl.nodes[newNode].Tick = tick
	sl.nodes[newNode].Level = newLevel

	for i := int32(0); i < newLevel; i++ {
		sl.nodes[newNode].Forward[i] = sl.nodes[update[i]].Forward[i]
		sl.nodes[update[i]].Forward[i] = newNode
	}

	sl.count++
	return true, nil
}

// Contains checks if a tick exists.
func (sl *TickSkiplist) Contains(tick int64) bool {
	x := sl.head

	for i := sl.level - 1; i >= 0; i-- {
		for sl.nodes[x].Forward[i] != NullIndex &&
			sl.nodes[sl.nodes[x].Forward[i]].Tick < tick {
			x = sl.nodes[x].Forward[i]
		}
	}

	x = sl.nodes[x].Forward[0]
	return x != NullIndex && sl.nodes[x].Tick == tick
}

// Delete removes a tick. Returns true if deleted, false if not found.
func (sl *TickSkiplist) Delete(tick int64) bool {
	var update [SkiplistMaxLevel]int32
	x := sl.head

	for i := sl.level - 1; i >= 0; i-- {
		for sl.nodes[x].Forward[i] != NullIndex &&
			sl.nodes[sl.nodes[x].Forward[i]].Tick < tick {
			x = sl.nodes[x].Forward[i]
		}
		update[i] = x
	}

	x = sl.nodes[x].Forward[0]

	if x == NullIndex || sl.nodes[x].Tick != tick {
		return false
	}

	for i := int32(0); i < sl.level; i++ {
		if sl.nodes[update[i]].Forward[i] != x {
			break
		}
		sl.nodes[update[i]].Forward[i] = sl.nodes[x].Forward[i]
	}

	sl.free(x)

	for sl.level > 1 && sl.nodes[sl.head].Forward[sl.level-1] == NullIndex {
		sl.level--
	}

	sl.count--
	return true
}

// Min returns the minimum tick.
func (sl *TickSkiplist) Min() (int64, bool) {
	x := sl.nodes[sl.head].Forward[0]
	if x == NullIndex {
		return 0, false
	}
	return sl.nodes[x].Tick, true
}

// DeleteMin removes and returns the minimum tick.
func (sl *TickSkiplist) DeleteMin() (int64, bool) {
	x := sl.nodes[sl.head].Forward[0]
	if x == NullIndex {
		return 0, false
	}

	tick := sl.nodes[x].Tick

	for i := int32(0); i < sl.level; i++ {
		if sl.nodes[sl.head].Forward[i] != x {
			break
		}
		sl.nodes[sl.head].Forward[i] = sl.nodes[x].Forward[i]
	}

	sl.free(x)

	for sl.level > 1 && sl.nodes[sl.head].Forward[sl.level-1] == NullIndex {
		sl.level--
	}

	sl.count--
	return tick, true
}

// Count returns the number of ticks held.
func (sl *TickSkiplist) Count() int32 {
	return sl.count
}

// Capacity returns the current capacity of the arena.
func (sl *TickSkiplist) Capacity() int32 {
	return int32(len(sl.nodes)) - 1 // -1 for head sentinel
}

// Iterator provides ordered traversal.
// Usage:
//
//	iter := sl.Iterator()
//	for iter.Valid() {
//	    tick := iter.Tick()
//	    // ...
//	    iter.Next()
//	}
type Iterator struct {
	sl      *TickSkiplist
	current int32
}

// Iterator returns an iterator positioned at the first (minimum) element.
func (sl *TickSkiplist) Iterator() *Iterator {
	return &Iterator{
		sl:      sl,
		current: sl.nodes[sl.head].Forward[0],
	}
}

// Valid returns true if the iterator points to a valid element.
func (it *Iterator) Valid() bool {
	return it.current != NullIndex
}

// Next advances the iterator to the next element.
func (it *Iterator) Next() {
	if it.current != NullIndex {
		it.current = it.sl.nodes[it.current].Forward[0]
	}
}

// Tick returns the tick at the current iterator position.
// Only valid when Valid() returns true.
func (it *Iterator) Tick() int64 {
	return it.sl.nodes[it.current].Tick
}
