package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXorShift64(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a := New(42)
		b := New(42)
		for i := 0; i < 1000; i++ {
			require.Equal(t, a.Uint64(), b.Uint64())
		}
	})

	t.Run("SeedChangesSequence", func(t *testing.T) {
		a := New(42)
		b := New(43)
		assert.NotEqual(t, a.Uint64(), b.Uint64())
	})

	t.Run("ZeroSeedFallsBack", func(t *testing.T) {
		a := New(0)
		b := New(DefaultSeed)
		assert.Equal(t, a.Uint64(), b.Uint64())
	})

	t.Run("Float32Range", func(t *testing.T) {
		r := New(1)
		for i := 0; i < 1000; i++ {
			f := r.Float32()
			assert.GreaterOrEqual(t, f, float32(0))
			assert.LessOrEqual(t, f, float32(1))
		}
	})

	t.Run("NormFloat32Moments", func(t *testing.T) {
		r := New(7)
		const n = 20000
		var sum, sumSq float64
		for i := 0; i < n; i++ {
			v := float64(r.NormFloat32())
			require.False(t, math.IsNaN(v))
			sum += v
			sumSq += v * v
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		assert.InDelta(t, 0, mean, 0.05)
		assert.InDelta(t, 1, variance, 0.1)
	})
}
