package albert

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is the randomness consumed while building examples.
//
// Implementations are not expected to be safe for concurrent use: each worker
// should own its own Source.
type Source interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int

	// Float64 returns a uniform value in [0, 1).
	Float64() float64

	// Shuffle permutes n elements uniformly.
	Shuffle(n int, swap func(i, j int))

	// Categorical returns an index in [0, len(weights)) drawn with the given relative weights.
	Categorical(weights []float64) int
}

// Rand is the default Source, backed by a seedable PCG generator.
//
// Distributions are rebuilt from their parameters on every draw, so the only state
// carried between calls is the generator itself.
type Rand struct {
	src *rand.PCG
	*rand.Rand
}

// Compile time assert that Rand implements Source.
var _ Source = &Rand{}

// NewRand creates a Rand seeded with seed. Two Rand created with the same seed
// produce the same stream.
func NewRand(seed uint64) *Rand {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Rand{src: src, Rand: rand.New(src)}
}

// Categorical implements Source.
func (r *Rand) Categorical(weights []float64) int {
	return int(distuv.NewCategorical(weights, r.src).Rand())
}
