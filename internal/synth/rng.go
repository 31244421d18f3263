package synth

import "math/rand"

// defaultSeed is used when callers pass seed 0.
const defaultSeed int64 = 1

// rngFromSeed returns a deterministic source; seed 0 means defaultSeed.
func rngFromSeed(seed int64) *rand.Rand {
	if seed == 0 {
		seed = defaultSeed
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible test data, not security
}

// spread returns a value uniformly distributed in [v*(1-frac), v*(1+frac)).
func spread(rng *rand.Rand, v, frac float64) float64 {
	if frac <= 0 {
		return v
	}
	return v * (1 + frac*(2*rng.Float64()-1))
}
