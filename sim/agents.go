package sim

import (
	"math/rand"

	lob "github.com/lobforge/lobsim"
)

// IntentKind discriminates the actions an agent may propose.
type IntentKind int

const (
	IntentAdd IntentKind = iota + 1
	IntentCancel
)

// Intent is one proposed book action. Agents never touch the book directly;
// the generator applies intents and reports the outcome back.
type Intent struct {
	Kind      IntentKind
	Side      lob.Side
	Type      lob.OrderType
	PriceTick int64
	Quantity  uint64
	CancelID  uint64 // set for IntentCancel
}

// View is the read-only market state handed to agents each tick.
type View struct {
	T        int64 // simulation tick counter
	Mid      float64
	MidTick  int64
	BestBid  *lob.Quote // nil when the side is empty
	BestAsk  *lob.Quote
	Momentum float64
	Book     *lob.OrderBook // read-only access for own-order lookups
}

// Agent produces order flow intents and tracks ownership of its resting
// orders so cancels are always owner-initiated.
type Agent interface {
	Name() string

	// Propose returns this tick's intents. Implementations must draw all
	// randomness from rng.
	Propose(v View, rng *rand.Rand) []Intent

	// OnOrderPlaced registers a resting order as owned by this agent.
	OnOrderPlaced(id uint64)
	// OnOrderRemoved drops an order from the agent's ownership set after a
	// fill or cancel.
	OnOrderRemoved(id uint64)

	// LiveOrders returns the ids this agent believes are resting, in a
	// stable order.
	LiveOrders() []uint64

	// PickCancel chooses one of the agent's own orders to pull, favoring
	// orders far from mid. Returns 0 when nothing is cancellable.
	PickCancel(v View, rng *rand.Rand) uint64

	// PullStale returns the agent's orders further than maxDistance ticks
	// from mid that it decides to pull this round.
	PullStale(v View, maxDistance int64, rng *rand.Rand) []uint64
}

// baseAgent carries the shared ownership bookkeeping. The id slice keeps
// iteration order deterministic; the index map gives O(1) removal.
type baseAgent struct {
	name        string
	cancelEager float64 // keenness to pull stale orders, in [0,1]
	ids         []uint64
	idx         map[uint64]int
}

func newBaseAgent(name string, cancelEager float64) baseAgent {
	return baseAgent{
		name:        name,
		cancelEager: cancelEager,
		idx:         make(map[uint64]int),
	}
}

func (a *baseAgent) Name() string { return a.name }

func (a *baseAgent) OnOrderPlaced(id uint64) {
	if _, ok := a.idx[id]; ok {
		return
	}
	a.idx[id] = len(a.ids)
	a.ids = append(a.ids, id)
}

func (a *baseAgent) OnOrderRemoved(id uint64) {
	i, ok := a.idx[id]
	if !ok {
		return
	}
	last := len(a.ids) - 1
	a.ids[i] = a.ids[last]
	a.idx[a.ids[i]] = i
	a.ids = a.ids[:last]
	delete(a.idx, id)
}

func (a *baseAgent) LiveOrders() []uint64 {
	return a.ids
}

// pruneDead drops ids that disappeared from the book (filled).
func (a *baseAgent) pruneDead(book *lob.OrderBook) {
	for i := 0; i < len(a.ids); {
		if book.Contains(a.ids[i]) {
			i++
			continue
		}
		a.OnOrderRemoved(a.ids[i])
	}
}

// PickCancel samples one owned order with distance-squared weighting, so
// orders far from mid are pulled first.
func (a *baseAgent) PickCancel(v View, rng *rand.Rand) uint64 {
	a.pruneDead(v.Book)
	if len(a.ids) == 0 {
		return 0
	}

	total := 0.0
	weights := make([]float64, len(a.ids))
	for i, id := range a.ids {
		o, ok := v.Book.Resting(id)
		if !ok {
			continue
		}
		dist := float64(abs64(o.PriceTick - v.MidTick))
		w := max(1.0, dist*dist)
		weights[i] = w
		total += w
	}
	if total == 0 {
		return 0
	}

	u := rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if u < cum {
			return a.ids[i]
		}
	}
	return a.ids[len(a.ids)-1]
}

// PullStale reviews owned orders and pulls those beyond maxDistance with
// probability scaled by the agent's cancel eagerness.
func (a *baseAgent) PullStale(v View, maxDistance int64, rng *rand.Rand) []uint64 {
	a.pruneDead(v.Book)
	if maxDistance < 1 {
		maxDistance = 1
	}

	var pulled []uint64
	for _, id := range a.ids {
		o, ok := v.Book.Resting(id)
		if !ok {
			continue
		}
		dist := abs64(o.PriceTick - v.MidTick)
		if dist <= maxDistance {
			continue
		}
		p := a.cancelEager * min(1.0, float64(dist)/float64(maxDistance))
		if rng.Float64() < p {
			pulled = append(pulled, id)
		}
	}
	return pulled
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// MarketMaker quotes both sides symmetrically around the mid. It pulls stale
// quotes aggressively when the mid moves away.
type MarketMaker struct {
	baseAgent
	SpreadTicks int64
	Size        uint64
}

// NewMarketMaker returns a maker quoting SpreadTicks away from mid.
func NewMarketMaker() *MarketMaker {
	return &MarketMaker{
		baseAgent:   newBaseAgent("market_maker", 0.95),
		SpreadTicks: 2,
		Size:        5,
	}
}

func (a *MarketMaker) Propose(v View, rng *rand.Rand) []Intent {
	bidTick := v.MidTick - a.SpreadTicks
	if bidTick < 1 {
		bidTick = 1
	}
	askTick := v.MidTick + a.SpreadTicks

	return []Intent{
		{Kind: IntentAdd, Side: lob.Bid, Type: lob.Limit, PriceTick: bidTick, Quantity: a.Size},
		{Kind: IntentAdd, Side: lob.Ask, Type: lob.Limit, PriceTick: askTick, Quantity: a.Size},
	}
}

// Momentum trades in the direction of the momentum signal with market orders
// once it clears the threshold.
type Momentum struct {
	baseAgent
	Threshold float64
	Size      uint64
}

func NewMomentum() *Momentum {
	return &Momentum{
		baseAgent: newBaseAgent("momentum", 0.3),
		Threshold: 0.003,
		Size:      5,
	}
}

func (a *Momentum) Propose(v View, rng *rand.Rand) []Intent {
	var side lob.Side
	switch {
	case v.Momentum > a.Threshold:
		side = lob.Bid
	case v.Momentum < -a.Threshold:
		side = lob.Ask
	default:
		return nil
	}

	return []Intent{{Kind: IntentAdd, Side: side, Type: lob.Market, Quantity: a.Size}}
}

// MeanReversion fades large deviations from its reference price.
type MeanReversion struct {
	baseAgent
	RefPrice  float64
	Threshold float64
	Size      uint64
}

func NewMeanReversion(refPrice float64) *MeanReversion {
	return &MeanReversion{
		baseAgent: newBaseAgent("mean_reversion", 0.5),
		RefPrice:  refPrice,
		Threshold: 0.02,
		Size:      5,
	}
}

func (a *MeanReversion) Propose(v View, rng *rand.Rand) []Intent {
	diff := (v.Mid - a.RefPrice) / a.RefPrice

	var side lob.Side
	switch {
	case diff > a.Threshold:
		side = lob.Ask
	case diff < -a.Threshold:
		side = lob.Bid
	default:
		return nil
	}

	return []Intent{{Kind: IntentAdd, Side: side, Type: lob.Market, Quantity: a.Size}}
}

// Noise posts small limit orders alternating sides a few ticks off mid.
type Noise struct {
	baseAgent
	Size        uint64
	SpreadTicks int64
	flip        bool
}

func NewNoise() *Noise {
	return &Noise{
		baseAgent:   newBaseAgent("noise", 0.15),
		Size:        3,
		SpreadTicks: 4,
	}
}

func (a *Noise) Propose(v View, rng *rand.Rand) []Intent {
	a.flip = !a.flip

	side := lob.Bid
	tick := v.MidTick - a.SpreadTicks
	if a.flip {
		side = lob.Ask
		tick = v.MidTick + a.SpreadTicks
	}
	if tick < 1 {
		tick = 1
	}

	return []Intent{{Kind: IntentAdd, Side: side, Type: lob.Limit, PriceTick: tick, Quantity: a.Size}}
}

// DefaultAgents is the standard population used by the stream commands.
func DefaultAgents(refPrice float64) []Agent {
	return []Agent{
		NewMarketMaker(),
		NewMomentum(),
		NewMeanReversion(refPrice),
		NewNoise(),
	}
}
