package simulation

import (
	"math/rand/v2"
	"time"
)

// Random is the source of all stochastic decisions of a car.
// *rand.Rand satisfies this interface.
type Random interface {
	Float64() float64
}

// NewRandom returns a deterministic PCG source for the given seed and stream.
// Different streams of the same seed are independent of each other.
func NewRandom(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func newTimeSeededRandom() *rand.Rand {
	//nolint:gosec // no crypto needed
	return NewRandom(uint64(time.Now().UnixNano()), 0)
}

// uniform returns a value in [-v,v)
func uniform(r Random, v float64) float64 {
	return -v + 2*v*r.Float64()
}

func bernoulli(r Random, p float64) bool {
	return r.Float64() < p
}
