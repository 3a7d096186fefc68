// Package rng provides the deterministic xorshift64 generator used to
// derive LSH hyperplanes. The generator is part of the persistence
// contract: hyperplanes regenerated from the same seed must be identical,
// so the algorithm must never change.
package rng

import "math"

// DefaultSeed is the historical hyperplane seed.
const DefaultSeed uint64 = 42

// XorShift64 is a xorshift64 PRNG.
type XorShift64 struct {
	state uint64
}

// New creates a generator from seed. A zero seed would lock xorshift at
// zero forever, so it is replaced with DefaultSeed.
func New(seed uint64) *XorShift64 {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &XorShift64{state: seed}
}

// Uint64 returns the next value in the sequence.
func (r *XorShift64) Uint64() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x
}

// Float32 returns a value in [0, 1].
func (r *XorShift64) Float32() float32 {
	return float32(float64(r.Uint64()) / float64(math.MaxUint64))
}

// NormFloat32 returns a standard-normal sample via the Box-Muller
// transform.
func (r *XorShift64) NormFloat32() float32 {
	u1 := r.Float32()
	u2 := r.Float32()
	if u1 < 1e-9 {
		u1 = 1e-9
	}
	return float32(math.Sqrt(-2*math.Log(float64(u1))) * math.Cos(2*math.Pi*float64(u2)))
}
