package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigavector/gigavector/distance"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(7).UniformRangeVectors(10, 4)
	b := NewRNG(7).UniformRangeVectors(10, 4)
	assert.Equal(t, a, b)

	r := NewRNG(7)
	first := r.UniformRangeVectors(10, 4)
	r.Reset()
	assert.Equal(t, first, r.UniformRangeVectors(10, 4))
}

func TestUnitVectorNorm(t *testing.T) {
	vec := NewRNG(3).UnitVector(16)
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestBruteForceSearch(t *testing.T) {
	vecs := [][]float32{
		{0, 0},
		{3, 0},
		{1, 0},
	}
	got := BruteForceSearch(vecs, []float32{0, 0}, 2, distance.MetricEuclidean)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(0), got[0].ID)
	assert.Equal(t, uint64(2), got[1].ID)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	approx := []SearchResult{{ID: 1}, {ID: 3}, {ID: 9}, {ID: 10}}
	assert.InDelta(t, 0.5, ComputeRecall(truth, approx), 1e-9)
	assert.Equal(t, 1.0, ComputeRecall(nil, approx))
}
