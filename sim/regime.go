package sim

import "math/rand"

// Regime labels the current volatility state of the synthetic market.
type Regime int

const (
	Calm Regime = iota
	Normal
	Stress

	numRegimes = 3
)

func (r Regime) String() string {
	switch r {
	case Calm:
		return "calm"
	case Normal:
		return "normal"
	case Stress:
		return "stress"
	default:
		return "unknown"
	}
}

// RegimeParams is the parameter bundle one regime applies to the flow.
type RegimeParams struct {
	Sigma       float64 // per-tick return volatility
	ArrivalMult float64 // scales the order arrival budget
	CancelMult  float64 // scales the cancel ratio
	JumpProb    float64
	JumpSigma   float64
	SpreadMult  float64
	MarketRatio float64 // regime baseline market order ratio
	Imbalance   float64 // buy-side bias added to the side coin
}

// DefaultRegimeMatrix keeps calm and normal dwelling for hundreds of ticks
// and stress for tens of ticks. Rows are Calm, Normal, Stress.
var DefaultRegimeMatrix = [3][3]float64{
	{0.995, 0.004, 0.001},
	{0.004, 0.992, 0.004},
	{0.010, 0.040, 0.950},
}

var regimeParams = [numRegimes]RegimeParams{
	Calm: {
		Sigma:       0.002,
		ArrivalMult: 0.8,
		CancelMult:  0.9,
		JumpProb:    0.0005,
		JumpSigma:   0.01,
		SpreadMult:  0.7,
		MarketRatio: 0.08,
		Imbalance:   0.01,
	},
	Normal: {
		Sigma:       0.005,
		ArrivalMult: 1.0,
		CancelMult:  1.0,
		JumpProb:    0.002,
		JumpSigma:   0.03,
		SpreadMult:  1.0,
		MarketRatio: 0.15,
		Imbalance:   0.0,
	},
	Stress: {
		Sigma:       0.02,
		ArrivalMult: 1.6,
		CancelMult:  1.4,
		JumpProb:    0.008,
		JumpSigma:   0.08,
		SpreadMult:  1.6,
		MarketRatio: 0.30,
		Imbalance:   -0.03,
	},
}

// Params returns the parameter bundle for a regime.
func (r Regime) Params() RegimeParams {
	return regimeParams[r]
}

// regimeMachine is a Markov chain over the three regimes. One transition is
// sampled per simulation tick from the row of the current state.
type regimeMachine struct {
	matrix  [numRegimes][numRegimes]float64
	current Regime
}

func newRegimeMachine(matrix [3][3]float64) *regimeMachine {
	return &regimeMachine{matrix: matrix, current: Normal}
}

// Step samples the next regime and returns it.
func (m *regimeMachine) Step(rng *rand.Rand) Regime {
	u := rng.Float64()
	row := m.matrix[m.current]

	cum := 0.0
	for next, p := range row {
		cum += p
		if u < cum {
			m.current = Regime(next)
			return m.current
		}
	}

	// Rounding slack lands on the last state.
	m.current = Regime(numRegimes - 1)
	return m.current
}

// Current returns the regime without advancing the chain.
func (m *regimeMachine) Current() Regime {
	return m.current
}
