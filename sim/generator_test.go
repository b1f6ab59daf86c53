package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lob "github.com/lobforge/lobsim"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.OrdersPerTick = 6
	cfg.SeedLevels = 8
	cfg.SeedOrdersPerLevel = 2
	cfg.ValidateOrders = true
	return cfg
}

func TestNewGeneratorSeedsBook(t *testing.T) {
	g, err := NewGenerator(fastConfig())
	require.NoError(t, err)

	book := g.Book()
	bid, okBid := book.BestBid()
	ask, okAsk := book.BestAsk()

	require.True(t, okBid)
	require.True(t, okAsk)
	assert.Less(t, bid.PriceTick, ask.PriceTick)
	assert.Greater(t, book.RestingVolume(), uint64(0))

	stats := book.Stats()
	assert.Greater(t, stats.BidOrderCount, int64(0))
	assert.Greater(t, stats.AskOrderCount, int64(0))
}

func TestNewGeneratorRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickSize = 0

	_, err := NewGenerator(cfg)
	assert.Error(t, err)
}

func TestGeneratorDeterminism(t *testing.T) {
	cfg := fastConfig()

	a, err := NewGenerator(cfg)
	require.NoError(t, err)
	b, err := NewGenerator(cfg)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		resA := a.Step()
		resB := b.Step()

		require.Equal(t, len(resA), len(resB), "step %d", i)
		for j := range resA {
			assert.Equal(t, resA[j].Agent, resB[j].Agent)
			assert.Equal(t, resA[j].Events, resB[j].Events)
			assert.Equal(t, resA[j].Trades, resB[j].Trades)
		}
	}

	assert.Equal(t, a.Mid(), b.Mid())
	assert.Equal(t, a.Now(), b.Now())
	assert.Equal(t, a.Regime(), b.Regime())
}

func TestConcurrentSamplingDoesNotPerturbFlow(t *testing.T) {
	// Snapshots are read-only: a sampler hammering the book from another
	// goroutine must not advance the simulated clock or otherwise disturb
	// the event stream. Run with -race.
	cfg := fastConfig()

	ref, err := NewGenerator(cfg)
	require.NoError(t, err)
	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				g.Book().Snapshot(10)
				g.Book().BestBid()
			}
		}
	}()

	var want, got []lob.Event
	for i := 0; i < 300; i++ {
		for _, res := range ref.Step() {
			want = append(want, res.Events...)
		}
		for _, res := range g.Step() {
			got = append(got, res.Events...)
		}
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, want, got)
	assert.Equal(t, ref.Now(), g.Now())
}

func TestGeneratorSeedChangesFlow(t *testing.T) {
	cfgA := fastConfig()
	cfgB := fastConfig()
	cfgB.Seed = 1234

	a, err := NewGenerator(cfgA)
	require.NoError(t, err)
	b, err := NewGenerator(cfgB)
	require.NoError(t, err)

	var eventsA, eventsB []lob.Event
	for i := 0; i < 50; i++ {
		for _, r := range a.Step() {
			eventsA = append(eventsA, r.Events...)
		}
		for _, r := range b.Step() {
			eventsB = append(eventsB, r.Events...)
		}
	}

	assert.NotEqual(t, eventsA, eventsB)
}

func TestGeneratorEventSequence(t *testing.T) {
	g, err := NewGenerator(fastConfig())
	require.NoError(t, err)

	var lastSeq uint64
	var lastTS int64
	for i := 0; i < 200; i++ {
		for _, res := range g.Step() {
			for _, e := range res.Events {
				assert.Greater(t, e.Seq, lastSeq)
				assert.Greater(t, e.Timestamp, lastTS)
				lastSeq = e.Seq
				lastTS = e.Timestamp
			}
		}
	}
	assert.Greater(t, lastSeq, uint64(0))
}

func TestGeneratorBookStaysValid(t *testing.T) {
	g, err := NewGenerator(fastConfig())
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		g.Step()
	}
	assert.NoError(t, g.Book().Validate())
}

func TestGeneratorTimeAdvances(t *testing.T) {
	g, err := NewGenerator(fastConfig())
	require.NoError(t, err)

	prev := g.Now()
	for i := 0; i < 100; i++ {
		g.Step()
		now := g.Now()
		assert.Greater(t, now, prev)
		prev = now
	}
}

func TestGeneratorMidStaysPositive(t *testing.T) {
	cfg := fastConfig()
	cfg.MinPrice = 1.0

	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		g.Step()
		assert.GreaterOrEqual(t, g.Mid(), cfg.MinPrice)
	}
}

func TestGeneratorReplayMatchesAggregatedBook(t *testing.T) {
	// With no pre-seeded liquidity the L3 feed is complete, so replaying it
	// must reconstruct the book's depth exactly.
	cfg := fastConfig()
	cfg.SeedLevels = 0

	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	agg := lob.NewAggregatedBook()
	for i := 0; i < 200; i++ {
		for _, res := range g.Step() {
			for j := range res.Events {
				require.NoError(t, agg.Apply(&res.Events[j]))
			}
		}
	}

	book := g.Book()
	for _, side := range []lob.Side{lob.Bid, lob.Ask} {
		live := book.Depth(side, 10000)
		replayed := agg.Depth(side, 10000)

		require.Equal(t, len(live), len(replayed), "side %s", side)
		for i := range live {
			assert.Equal(t, live[i].PriceTick, replayed[i].PriceTick, "side %s level %d", side, i)
			assert.Equal(t, live[i].Size, replayed[i].Size, "side %s level %d", side, i)
		}
	}
}

func TestGeneratorOwnershipConsistent(t *testing.T) {
	g, err := NewGenerator(fastConfig())
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		g.Step()
	}

	// every id an agent believes is live must be resting in the book
	for _, agent := range g.agents {
		for _, id := range agent.LiveOrders() {
			assert.True(t, g.Book().Contains(id), "agent %s id %d", agent.Name(), id)
		}
	}

	// and the generator's live set matches the book exactly
	stats := g.Book().Stats()
	assert.Equal(t, int(stats.BidOrderCount+stats.AskOrderCount), len(g.liveIDs))
	for _, id := range g.liveIDs {
		assert.True(t, g.Book().Contains(id))
	}
}
