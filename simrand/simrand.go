// Package simrand is the simulator's single source of randomness. It wraps a
// seeded PRNG so the whole run — spawner arrivals, driver imperfection,
// pre-fill sampling — draws from one deterministic stream, the way teacher's
// phys package was the single owner of a physical measurement concern.
//
// Every run uses exactly one Source, seeded once from config.RandomSeed. No
// other package may construct its own PRNG: that is what makes two runs with
// the same seed produce byte-identical traces (spec.md §8).
package simrand

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is the simulator's deterministic PRNG wrapper.
type Source struct {
	rng *rand.Rand
}

// New returns a Source seeded with the given seed. The same seed always
// produces the same sequence of draws, for the same sequence of calls.
func New(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a pseudo-random float64 in [0, 1).
func (s *Source) Float64() float64 {
	return s.rng.Float64()
}

// IntN returns a pseudo-random int in [0, n).
func (s *Source) IntN(n int) int {
	return s.rng.IntN(n)
}

// Normal draws from a normal distribution with the given mean and standard
// deviation. Used for desired-speed jitter and for equilibrium pre-fill
// speed sampling (spec.md §4.5); the Krauß imperfection term η is a uniform
// Float64 draw instead.
func (s *Source) Normal(mean, stdDev float64) float64 {
	d := distuv.Normal{Mu: mean, Sigma: stdDev, Src: s.rng}
	return d.Rand()
}

// Poisson draws from a Poisson distribution with the given rate (lambda).
// Used by the flow depart-method to generate arrivals (spec.md §4.5).
func (s *Source) Poisson(lambda float64) float64 {
	d := distuv.Poisson{Lambda: lambda, Src: s.rng}
	return d.Rand()
}

// UniformRange draws a uniform float64 in [lo, hi).
func (s *Source) UniformRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}
