package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	lob "github.com/lobforge/lobsim"
)

// StepResult is the outcome of applying one intent to the book: the L3
// events it produced, in emission order, and any trades executed.
type StepResult struct {
	Agent  string // originating agent, "" for noise flow and maintenance
	Events []lob.Event
	Trades []lob.Trade
}

// eventCollector captures the book's L3 feed for the step in progress.
// Publish copies the events, so pooling on the book side stays safe.
type eventCollector struct {
	events []lob.Event
}

func (c *eventCollector) Publish(events ...*lob.Event) {
	for _, e := range events {
		c.events = append(c.events, *e)
	}
}

func (c *eventCollector) drain() []lob.Event {
	if len(c.events) == 0 {
		return nil
	}
	out := make([]lob.Event, len(c.events))
	copy(out, c.events)
	c.events = c.events[:0]
	return out
}

// Generator drives the synthetic market: it evolves the latent mid price,
// walks the regime chain, polls the agent population, mixes in noise flow
// and applies everything to the book.
//
// The generator is the book's only writer. It owns its rng, so two
// generators built from the same config produce identical event sequences.
type Generator struct {
	cfg   Config
	book  *lob.OrderBook
	ticks lob.TickConverter
	rng   *rand.Rand

	collector eventCollector

	now    int64 // simulated nanos, strictly increasing
	t      int64 // simulation tick counter
	nextID uint64

	mid      float64
	momentum float64
	anchor   float64
	machine  *regimeMachine
	day      int

	agents []Agent
	owners map[uint64]Agent

	// live resting ids with O(1) uniform sampling and removal
	liveIDs []uint64
	liveIdx map[uint64]int
}

// NewGenerator builds a generator with a freshly seeded book. The agent
// population defaults to DefaultAgents when none is given.
func NewGenerator(cfg Config, agents ...Agent) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator config: %w", err)
	}
	if len(agents) == 0 {
		agents = DefaultAgents(cfg.StartPrice)
	}

	g := &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		now:     1,
		nextID:  1,
		mid:     cfg.StartPrice,
		anchor:  cfg.StartPrice,
		machine: newRegimeMachine(cfg.RegimeMatrix),
		agents:  agents,
		owners:  make(map[uint64]Agent),
		liveIdx: make(map[uint64]int),
	}

	g.book = lob.NewOrderBook(&g.collector,
		lob.WithTickSize(decimal.NewFromFloat(cfg.TickSize)),
		lob.WithClock(g.clock),
		lob.WithValidation(cfg.ValidateOrders),
	)
	g.ticks = g.book.Ticks()

	g.seedBook()
	return g, nil
}

// Book exposes the underlying book for read-side consumers (samplers).
func (g *Generator) Book() *lob.OrderBook { return g.book }

// Mid returns the current latent mid price.
func (g *Generator) Mid() float64 { return g.mid }

// Regime returns the current regime without advancing the chain.
func (g *Generator) Regime() Regime { return g.machine.Current() }

// Now returns the current simulated timestamp in nanoseconds.
func (g *Generator) Now() int64 { return g.now }

// clock hands the book a strictly increasing simulated timestamp. The
// +1ns bump keeps (ts, id) ordering unambiguous within a burst.
func (g *Generator) clock() int64 {
	ts := g.now
	g.now++
	return ts
}

// seedBook pre-loads resting liquidity on both sides (opening auction).
// Ownership is spread across the agent population so every order stays
// cancellable by its owner.
func (g *Generator) seedBook() {
	midTick := g.ticks.PriceToTick(g.mid)
	halfSpread := max64(1, g.ticks.PriceToTick(g.cfg.Spread/2))
	minTick := max64(1, g.ticks.PriceToTick(g.cfg.MinPrice))

	for i := 0; i < g.cfg.SeedLevels; i++ {
		bidTick := max64(minTick, midTick-halfSpread-int64(i))
		askTick := midTick + halfSpread + int64(i)

		for j := 0; j < g.cfg.SeedOrdersPerLevel; j++ {
			g.applySeedOrder(lob.Bid, bidTick)
			g.applySeedOrder(lob.Ask, askTick)
		}
	}
	g.collector.drain()
}

func (g *Generator) applySeedOrder(side lob.Side, tick int64) {
	qty := g.lognormQty(2.3, 0.6, 200)
	id := g.nextID
	g.nextID++

	_, err := g.book.Add(&lob.Order{
		ID:        id,
		Side:      side,
		Type:      lob.Limit,
		PriceTick: tick,
		Quantity:  qty,
	})
	if err != nil {
		return
	}
	if g.book.Contains(id) {
		owner := g.agents[g.rng.Intn(len(g.agents))]
		g.track(id, owner)
	}
}

// Step runs one simulation tick and returns the results of every applied
// intent, in submission order.
func (g *Generator) Step() []StepResult {
	// 1. advance simulated time by ~1ms
	g.now += 500_000 + g.rng.Int63n(1_000_000)
	g.t++

	sessionSecs := float64(g.cfg.SessionSeconds)
	intoSession := math.Mod(float64(g.now)/1e9, sessionSecs)
	day := int(float64(g.now) / 1e9 / sessionSecs)
	if day != g.day {
		g.rollSession(day)
	}

	// 2. mid-price evolution with intraday volatility scaling
	params := g.machine.Current().Params()
	volScale := intradayVolatility(intoSession, sessionSecs)
	g.mid, g.momentum = evolveMid(g.rng, g.mid, g.momentum, params,
		g.anchor, g.cfg.MeanReversion, g.cfg.MinPrice, volScale)

	// 3. regime transition
	regime := g.machine.Step(g.rng)
	params = regime.Params()

	// 4. arrival budget
	activity := intradayActivity(intoSession, sessionSecs)
	budget := int(math.Round(float64(g.cfg.OrdersPerTick) * params.ArrivalMult * activity))
	if budget < 1 {
		budget = 1
	}

	var results []StepResult
	view := g.view()

	// 5. agent flow
	for _, agent := range g.agents {
		for _, intent := range agent.Propose(view, g.rng) {
			if res, ok := g.apply(agent, intent); ok {
				results = append(results, res)
			}
		}
	}

	// 6. noise flow: poisson cancels, the rest limit/market adds
	cancelRate := float64(budget) * g.cfg.CancelRatio * params.CancelMult
	cancels := g.poisson(cancelRate)
	adds := budget - cancels
	if adds < 0 {
		adds = 0
	}

	for i := 0; i < cancels; i++ {
		if res, ok := g.cancelRandom(); ok {
			results = append(results, res)
		}
	}
	for i := 0; i < adds; i++ {
		if res, ok := g.apply(nil, g.noiseIntent(params)); ok {
			results = append(results, res)
		}
	}

	// 7. book maintenance
	if g.cfg.Replenish {
		results = append(results, g.replenish(params)...)
	}
	if g.cfg.StalePurgeInterval > 0 && g.t%int64(g.cfg.StalePurgeInterval) == 0 {
		results = append(results, g.purgeStale()...)
	}

	return results
}

func (g *Generator) view() View {
	v := View{
		T:        g.t,
		Mid:      g.mid,
		MidTick:  g.ticks.PriceToTick(g.mid),
		Momentum: g.momentum,
		Book:     g.book,
	}
	if q, ok := g.book.BestBid(); ok {
		v.BestBid = &q
	}
	if q, ok := g.book.BestAsk(); ok {
		v.BestAsk = &q
	}
	return v
}

// rollSession applies the overnight gap and anchor drift at a session
// boundary.
func (g *Generator) rollSession(day int) {
	g.day = day
	g.anchor = dailyDrift(g.rng, g.anchor, g.cfg.DailyDriftSigma)
	g.mid = max(g.cfg.MinPrice, overnightGap(g.rng, g.mid, g.cfg.OvernightGapSigma))
}

// apply submits one intent to the book and packages the resulting events.
// Reports false when the intent was a no-op (nothing cancelled, rejected).
func (g *Generator) apply(owner Agent, intent Intent) (StepResult, bool) {
	switch intent.Kind {
	case IntentCancel:
		return g.applyCancel(intent.CancelID)
	case IntentAdd:
		return g.applyAdd(owner, intent)
	default:
		return StepResult{}, false
	}
}

func (g *Generator) applyAdd(owner Agent, intent Intent) (StepResult, bool) {
	id := g.nextID
	g.nextID++

	order := &lob.Order{
		ID:        id,
		Side:      intent.Side,
		Type:      intent.Type,
		PriceTick: intent.PriceTick,
		Quantity:  intent.Quantity,
	}

	trades, err := g.book.Add(order)
	if err != nil {
		lob.Logger().Warn("order rejected",
			"id", id, "side", intent.Side.String(), "err", err)
		return StepResult{}, false
	}

	events := g.collector.drain()
	g.reconcile(events)

	if g.book.Contains(id) {
		g.track(id, owner)
	}

	res := StepResult{Events: events, Trades: trades}
	if owner != nil {
		res.Agent = owner.Name()
	}
	return res, true
}

func (g *Generator) applyCancel(id uint64) (StepResult, bool) {
	if g.book.Cancel(id) == 0 {
		g.untrack(id)
		return StepResult{}, false
	}

	events := g.collector.drain()
	g.reconcile(events)
	return StepResult{Events: events}, true
}

// cancelRandom pulls one order chosen uniformly from all resting ids. The
// owner is notified through untrack, so its bookkeeping stays consistent.
func (g *Generator) cancelRandom() (StepResult, bool) {
	if len(g.liveIDs) == 0 {
		return StepResult{}, false
	}

	id := g.liveIDs[g.rng.Intn(len(g.liveIDs))]
	owner := g.owners[id]

	res, ok := g.applyCancel(id)
	if ok && owner != nil {
		res.Agent = owner.Name()
	}
	return res, ok
}

// noiseIntent builds one random order: market with the regime-scaled
// probability, otherwise a limit with an exponential offset from mid.
func (g *Generator) noiseIntent(params RegimeParams) Intent {
	sideBias := 0.5 + params.Imbalance
	if g.momentum > 0 {
		sideBias += 0.08
	} else {
		sideBias -= 0.08
	}
	sideBias = clamp(sideBias, 0.05, 0.95)

	side := lob.Ask
	if g.rng.Float64() < sideBias {
		side = lob.Bid
	}

	qty := g.lognormQty(2.2, 0.8, 500)

	marketRatio := clamp(g.cfg.MarketRatio*params.MarketRatio/0.15, 0.01, 0.9)
	if g.rng.Float64() < marketRatio {
		return Intent{Kind: IntentAdd, Side: side, Type: lob.Market, Quantity: qty}
	}

	// concentrate liquidity near mid: exponential offset plus jitter
	dynamicSpread := g.cfg.Spread * params.SpreadMult
	offset := dynamicSpread/2 + g.rng.ExpFloat64()*max(0.01, dynamicSpread*0.35)
	if g.rng.Float64() < 0.6 {
		offset *= 0.2 + g.rng.Float64()*0.4
	}

	price := g.mid + offset
	if side == lob.Bid {
		price = g.mid - offset
	}

	// cluster some liquidity on 0.05 boundaries
	if g.rng.Float64() < 0.5 {
		price = math.Round(price*20) / 20
	}

	tick := g.ticks.PriceToTick(max(g.cfg.MinPrice, price))
	if tick < 1 {
		tick = 1
	}

	return Intent{Kind: IntentAdd, Side: side, Type: lob.Limit, PriceTick: tick, Quantity: qty}
}

// replenish posts fresh liquidity when the top of book drifted too far from
// mid, so the spread does not blow out after a sweep.
func (g *Generator) replenish(params RegimeParams) []StepResult {
	dynamicSpread := g.cfg.Spread * params.SpreadMult
	midTick := g.ticks.PriceToTick(g.mid)
	tickSize := g.cfg.TickSize
	maxGap := max64(1, int64(math.Round(dynamicSpread*2.5/tickSize)))
	halfSpread := max64(1, int64(math.Round(dynamicSpread/(2*tickSize))))

	var results []StepResult

	if q, ok := g.book.BestBid(); ok && abs64(midTick-q.PriceTick) > maxGap {
		intent := Intent{
			Kind:      IntentAdd,
			Side:      lob.Bid,
			Type:      lob.Limit,
			PriceTick: max64(1, midTick-halfSpread),
			Quantity:  max64u(1, g.lognormQty(2.0, 0.7, 200)/2),
		}
		if res, ok := g.applyAdd(nil, intent); ok {
			results = append(results, res)
		}
	}

	if q, ok := g.book.BestAsk(); ok && abs64(q.PriceTick-midTick) > maxGap {
		intent := Intent{
			Kind:      IntentAdd,
			Side:      lob.Ask,
			Type:      lob.Limit,
			PriceTick: midTick + halfSpread,
			Quantity:  max64u(1, g.lognormQty(2.0, 0.7, 200)/2),
		}
		if res, ok := g.applyAdd(nil, intent); ok {
			results = append(results, res)
		}
	}

	return results
}

// purgeStale lets each agent pull its own orders that drifted too far from
// the mid.
func (g *Generator) purgeStale() []StepResult {
	view := g.view()
	maxDist := int64(g.cfg.StalePurgeDistance)

	var results []StepResult
	for _, agent := range g.agents {
		for _, id := range agent.PullStale(view, maxDist, g.rng) {
			if res, ok := g.applyCancel(id); ok {
				res.Agent = agent.Name()
				results = append(results, res)
			}
		}
	}
	return results
}

// reconcile folds a batch of L3 events into the ownership tracking.
func (g *Generator) reconcile(events []lob.Event) {
	for i := range events {
		e := &events[i]
		switch e.Type {
		case lob.EventCancel:
			g.untrack(e.OrderID)
		case lob.EventExecute:
			// maker removed once fully filled
			if !g.book.Contains(e.OrderID) {
				g.untrack(e.OrderID)
			}
		}
	}
}

func (g *Generator) track(id uint64, owner Agent) {
	if _, ok := g.liveIdx[id]; ok {
		return
	}
	g.liveIdx[id] = len(g.liveIDs)
	g.liveIDs = append(g.liveIDs, id)
	if owner != nil {
		g.owners[id] = owner
		owner.OnOrderPlaced(id)
	}
}

func (g *Generator) untrack(id uint64) {
	if owner, ok := g.owners[id]; ok {
		owner.OnOrderRemoved(id)
		delete(g.owners, id)
	}

	i, ok := g.liveIdx[id]
	if !ok {
		return
	}
	last := len(g.liveIDs) - 1
	g.liveIDs[i] = g.liveIDs[last]
	g.liveIdx[g.liveIDs[i]] = i
	g.liveIDs = g.liveIDs[:last]
	delete(g.liveIdx, id)
}

// poisson samples a Poisson count via Knuth's method. Fine for the small
// rates used here.
func (g *Generator) poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= limit {
			return k
		}
		k++
	}
}

// lognormQty draws a heavy-tailed order size clamped to [1, cap].
func (g *Generator) lognormQty(mu, sigma float64, capQty uint64) uint64 {
	v := math.Exp(mu + sigma*g.rng.NormFloat64())
	if v < 1 {
		return 1
	}
	if v > float64(capQty) {
		return capQty
	}
	return uint64(v)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func max64u(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
