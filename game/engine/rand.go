package engine

import "math/rand/v2"

// Rand is the randomness provider for dice, shuffles and opponent picks.
// Implementations used by a live server must be safe for concurrent use.
type Rand interface {
	// IntN returns a uniform int in [0, n). n must be positive.
	IntN(n int) int
}

type systemRand struct{}

func (systemRand) IntN(n int) int {
	return rand.IntN(n)
}

// SystemRand returns the process-wide random source. Every call draws fresh
// randomness; it is never seeded deterministically.
func SystemRand() Rand {
	return systemRand{}
}
