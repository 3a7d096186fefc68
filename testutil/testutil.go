// Package testutil provides deterministic vector generators and exact
// ground-truth search for tests.
package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/gigavector/gigavector/distance"
)

// SearchResult is a ground-truth search hit.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// RNG is a seeded, thread-safe random vector generator.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a generator with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// Reset rewinds the generator to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// UniformRangeVectors generates num vectors with components in [-1, 1),
// sharing one backing array.
func (r *RNG) UniformRangeVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)
	for i := range vectors {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()*2 - 1
		}
		vectors[i] = vec
	}
	return vectors
}

// UnitVector generates a single L2-normalized vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vec := make([]float32, dimensions)
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		norm = 1
	}
	invNorm := float32(1.0 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= invNorm
	}
	return vec
}

// ClusteredVectors generates vectors spread around clusters unit
// centroids.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := make([][]float32, clusters)
	for i := range centroids {
		centroids[i] = r.UnitVector(dim)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range vectors {
		centroid := centroids[i%clusters]
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}
	return vectors
}

// BruteForceSearch returns the exact k nearest vectors to query under
// metric.
func BruteForceSearch(vectors [][]float32, query []float32, k int, metric distance.Metric) []SearchResult {
	distFn := distance.Provider(metric)

	results := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		results[i] = SearchResult{ID: uint64(i), Distance: distFn(query, v)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ComputeRecall compares approximate results against ground truth and
// returns the hit fraction.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 {
		return 1.0
	}
	truthSet := make(map[uint64]struct{}, len(groundTruth))
	for _, g := range groundTruth {
		truthSet[g.ID] = struct{}{}
	}
	hits := 0
	for _, a := range approximate {
		if _, ok := truthSet[a.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}
