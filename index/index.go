// Package index defines the search backend abstraction shared by the
// flat, graph, and LSH implementations.
package index

import (
	"fmt"

	"github.com/gigavector/gigavector/distance"
)

// Type selects a search backend.
type Type uint32

const (
	// TypeFlat is exact brute-force scan.
	TypeFlat Type = iota
	// TypeGraph is approximate proximity-graph search.
	TypeGraph
	// TypeLSH is approximate locality-sensitive hashing.
	TypeLSH
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case TypeFlat:
		return "flat"
	case TypeGraph:
		return "graph"
	case TypeLSH:
		return "lsh"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Valid reports whether t names a known backend.
func (t Type) Valid() bool {
	return t <= TypeLSH
}

// SearchResult represents a single result, by storage slot.
type SearchResult struct {
	Slot     uint64
	Distance float32
}

// Data is the backend's read-only view of vector storage. Slots in
// [0, Count()) are addressable; tombstoned slots must be skipped.
type Data interface {
	Dimension() int
	Count() int
	IsDeleted(i int) bool
	VectorAt(i int) []float32
}

// Backend is a search index over slot-addressed vector storage.
type Backend interface {
	// Insert registers slot i with the index. The slot's vector must
	// already be visible through Data.
	Insert(i int) error

	// Search returns up to k live slots ordered by ascending distance
	// to the query under the given metric.
	Search(query []float32, k int, metric distance.Metric) ([]SearchResult, error)

	// Rebuild reconstructs the index from scratch over all live slots.
	// Called after compaction renumbers slots.
	Rebuild() error
}
