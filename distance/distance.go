// Package distance provides the vector distance kernels used by the engine.
// All metrics produce values where smaller is better, so a single top-k
// selection works for every metric.
package distance

import "math"

// Metric selects the distance function used for vector comparison.
type Metric uint32

const (
	MetricEuclidean Metric = iota
	MetricCosine
	MetricDot
	MetricManhattan
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "Euclidean"
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	case MetricManhattan:
		return "Manhattan"
	default:
		return "Unknown"
	}
}

// Func is a function type for distance calculation.
// Assumes vectors are the same length (caller's responsibility).
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// Unknown metrics fall back to Euclidean.
func Provider(m Metric) Func {
	switch m {
	case MetricCosine:
		return Cosine
	case MetricDot:
		return Dot
	case MetricManhattan:
		return Manhattan
	default:
		return Euclidean
	}
}

// Euclidean calculates the L2 distance between two vectors.
func Euclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// Cosine calculates the cosine distance 1 - cos(a, b).
// A zero-norm operand yields 0: there is no meaningful ordering for it.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return 1 - dot/float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}

// Dot calculates the negated dot product, turning similarity into a
// smaller-is-better distance.
func Dot(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return -dot
}

// Manhattan calculates the L1 distance between two vectors.
func Manhattan(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}
