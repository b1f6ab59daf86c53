package sim

import "math/rand"

// Mid-price evolution and intraday modulation. All randomness comes from the
// caller's rng so runs are reproducible from a seed.

// intradayActivity is a U-shaped activity curve over the session (high at
// open and close, low midday). Returns a multiplier in ~[0.3, 2.5].
func intradayActivity(secondsIntoSession, sessionSeconds float64) float64 {
	t := secondsIntoSession / max(1.0, sessionSeconds)
	u := 4.0 * (t - 0.5) * (t - 0.5) // 0 at midday, 1 at the edges

	openBoost := max(0.0, 1.0-5.0*t) * 0.5
	closeRush := max(0.0, (t-0.85)/0.15) * 0.3

	return clamp(0.4+1.2*u+openBoost+closeRush, 0.3, 2.5)
}

// intradayVolatility is the volatility U-shape, with an extra kick in the
// first 5% of the session. Returns a multiplier in ~[0.4, 2.0].
func intradayVolatility(secondsIntoSession, sessionSeconds float64) float64 {
	t := secondsIntoSession / max(1.0, sessionSeconds)
	u := 4.0 * (t - 0.5) * (t - 0.5)

	factor := 0.6 + 0.6*u
	if t < 0.05 {
		factor += 0.4
	}
	return clamp(factor, 0.4, 2.0)
}

// evolveMid advances the latent mid price one step.
//
// The return is a momentum-damped gaussian shock plus a rare jump plus a
// mean-reversion drift toward the anchor. The new momentum is returned so the
// caller can feed it back next step.
func evolveMid(
	rng *rand.Rand,
	mid, momentum float64,
	params RegimeParams,
	anchor, meanReversion, minPrice, volScale float64,
) (newMid, newMomentum float64) {
	sigma := params.Sigma * volScale
	shock := rng.NormFloat64() * sigma
	momentum = 0.95*momentum + shock

	jump := 0.0
	if rng.Float64() < params.JumpProb {
		jump = rng.NormFloat64() * params.JumpSigma * volScale
	}

	drift := 0.0
	if anchor > 0 {
		drift = meanReversion * (anchor - mid) / anchor
	}

	mid *= max(0.01, 1.0+shock+jump+drift)
	mid = max(minPrice, mid)
	return mid, momentum
}

// overnightGap applies the close-to-open jump between sessions.
func overnightGap(rng *rand.Rand, mid, gapSigma float64) float64 {
	return mid * (1.0 + rng.NormFloat64()*gapSigma)
}

// dailyDrift wanders the long-term anchor so the mid is not mean-reverting
// to the same level forever.
func dailyDrift(rng *rand.Rand, anchor, driftSigma float64) float64 {
	return anchor * (1.0 + rng.NormFloat64()*driftSigma)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
