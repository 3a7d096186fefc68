// Package graph provides an approximate proximity-graph search backend.
// The graph is single-level: every inserted slot links to its M nearest
// live slots found by exact scan, and neighbors link back only while they
// have spare edge capacity. Search is a capped breadth-first expansion
// from the first live slot.
package graph

import (
	"sort"

	"github.com/gigavector/gigavector/distance"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/internal/bitset"
	"github.com/gigavector/gigavector/internal/mem"
	"github.com/gigavector/gigavector/internal/queue"
)

const (
	// DefaultM is the per-node edge budget.
	DefaultM = 16
	// DefaultEfConstruction is the default search expansion width.
	DefaultEfConstruction = 64
)

// Compile-time check that Graph implements the index.Backend interface.
var _ index.Backend = (*Graph)(nil)

// Graph is the proximity-graph backend.
type Graph struct {
	data    index.Data
	tracker *mem.Tracker

	m              int
	efConstruction int

	neighbors [][]uint64 // one adjacency list per slot, cap m

	visited *bitset.FastBitSet // search scratch, reused across calls
}

// New creates a graph backend over data with default parameters.
func New(data index.Data, tracker *mem.Tracker) *Graph {
	return &Graph{
		data:           data,
		tracker:        tracker,
		m:              DefaultM,
		efConstruction: DefaultEfConstruction,
		visited:        bitset.NewFast(0),
	}
}

// Params returns the edge budget M and the expansion width.
func (g *Graph) Params() (m, efConstruction int) {
	return g.m, g.efConstruction
}

// SetParams overrides M and the expansion width. Existing adjacency lists
// are not re-trimmed; callers set params before inserting.
func (g *Graph) SetParams(m, efConstruction int) {
	if m > 0 {
		g.m = m
	}
	if efConstruction > 0 {
		g.efConstruction = efConstruction
	}
}

// Neighbors returns one adjacency list per slot for the first count
// slots. Slots past the indexed range, such as a slot whose insert
// failed, get empty lists so the result always has count entries. The
// inner slices alias internal memory.
func (g *Graph) Neighbors(count int) [][]uint64 {
	if count <= len(g.neighbors) {
		return g.neighbors[:count]
	}
	out := make([][]uint64, count)
	copy(out, g.neighbors)
	return out
}

// SetNeighbors installs persisted adjacency lists, replacing any state.
func (g *Graph) SetNeighbors(lists [][]uint64) error {
	if err := g.ensureNodes(len(lists)); err != nil {
		return err
	}
	for i, l := range lists {
		g.neighbors[i] = append(g.neighbors[i][:0], l...)
	}
	return nil
}

// ensureNodes grows the adjacency table to cover n slots, accounting the
// per-node edge arrays against the memory budget.
func (g *Graph) ensureNodes(n int) error {
	if n <= len(g.neighbors) {
		return nil
	}
	grow := n - len(g.neighbors)
	if err := g.tracker.Reserve(int64(grow) * int64(g.m) * 8); err != nil {
		return err
	}
	for i := 0; i < grow; i++ {
		g.neighbors = append(g.neighbors, make([]uint64, 0, g.m))
	}
	return nil
}

// Insert links slot i to its nearest live slots. Link selection always
// uses Euclidean distance regardless of the search metric, so the graph
// shape is metric-independent.
func (g *Graph) Insert(i int) error {
	if err := g.ensureNodes(i + 1); err != nil {
		return err
	}
	g.neighbors[i] = g.neighbors[i][:0]

	vec := g.data.VectorAt(i)
	distFn := distance.Provider(distance.MetricEuclidean)

	type cand struct {
		slot uint64
		d    float32
	}
	var cands []cand
	n := g.data.Count()
	for j := 0; j < n; j++ {
		if j == i || g.data.IsDeleted(j) {
			continue
		}
		cands = append(cands, cand{uint64(j), distFn(vec, g.data.VectorAt(j))})
	}
	sort.Slice(cands, func(a, b int) bool { return cands[a].d < cands[b].d })

	limit := g.m
	if limit > len(cands) {
		limit = len(cands)
	}
	for _, c := range cands[:limit] {
		g.neighbors[i] = append(g.neighbors[i], c.slot)
		// Back-edge only while the neighbor has spare capacity; no
		// pruning of existing edges.
		nb := int(c.slot)
		if len(g.neighbors[nb]) < g.m {
			g.neighbors[nb] = append(g.neighbors[nb], uint64(i))
		}
	}
	return nil
}

// Search runs a breadth-first expansion from the first live slot. The
// expansion list holds at most ef slots: 64 when k < 64, otherwise 2k,
// capped at the slot count.
func (g *Graph) Search(query []float32, k int, metric distance.Metric) ([]index.SearchResult, error) {
	n := g.data.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	entry := -1
	for i := 0; i < n; i++ {
		if !g.data.IsDeleted(i) {
			entry = i
			break
		}
	}
	if entry == -1 {
		return nil, nil
	}

	ef := 64
	if k >= 64 {
		ef = 2 * k
	}
	if ef > n {
		ef = n
	}

	distFn := distance.Provider(metric)
	g.visited.Reset()

	top := queue.NewMax(k)
	top.PushBounded(queue.Item{
		Slot:     uint64(entry),
		Distance: distFn(query, g.data.VectorAt(entry)),
	}, k)

	// Expansion list capped at ef. Neighbors of expanded nodes are always
	// scored into the result heap; only expansion stops at the cap.
	candidates := make([]int, 0, ef)
	candidates = append(candidates, entry)
	g.visited.TestAndSet(entry)

	for cursor := 0; cursor < len(candidates); cursor++ {
		cur := candidates[cursor]
		if cur >= len(g.neighbors) {
			continue
		}
		for _, nb := range g.neighbors[cur] {
			if int(nb) >= n {
				continue
			}
			if g.visited.TestAndSet(int(nb)) {
				continue
			}
			if g.data.IsDeleted(int(nb)) {
				continue
			}
			top.PushBounded(queue.Item{
				Slot:     nb,
				Distance: distFn(query, g.data.VectorAt(int(nb))),
			}, k)
			if len(candidates) < ef {
				candidates = append(candidates, int(nb))
			}
		}
	}

	items := top.ExtractAscending()
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]index.SearchResult, len(items))
	for i, it := range items {
		out[i] = index.SearchResult{Slot: it.Slot, Distance: it.Distance}
	}
	return out, nil
}

// Rebuild discards all edges and re-inserts every live slot in slot
// order.
func (g *Graph) Rebuild() error {
	for i := range g.neighbors {
		g.neighbors[i] = g.neighbors[i][:0]
	}
	n := g.data.Count()
	for i := 0; i < n; i++ {
		if g.data.IsDeleted(i) {
			continue
		}
		if err := g.Insert(i); err != nil {
			return err
		}
	}
	return nil
}
