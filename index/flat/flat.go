// Package flat provides an exact brute-force search backend. Every live
// slot is scanned; results are exact under any metric. Large scans are
// sharded across CPUs.
package flat

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gigavector/gigavector/distance"
	"github.com/gigavector/gigavector/index"
)

// parallelThreshold is the slot count above which the scan is sharded.
// Below it the goroutine fan-out costs more than it saves.
const parallelThreshold = 4096

// Compile-time check that Flat implements the index.Backend interface.
var _ index.Backend = (*Flat)(nil)

// Flat is the exact scan backend. It keeps no state beyond its data view.
type Flat struct {
	data index.Data
}

// New creates a flat backend over data.
func New(data index.Data) *Flat {
	return &Flat{data: data}
}

// Insert is a no-op: the scan reads storage directly.
func (f *Flat) Insert(_ int) error { return nil }

// Rebuild is a no-op for the same reason.
func (f *Flat) Rebuild() error { return nil }

// Search scans all live slots and returns the k nearest.
func (f *Flat) Search(query []float32, k int, metric distance.Metric) ([]index.SearchResult, error) {
	return f.SearchFiltered(query, k, metric, nil)
}

// SearchFiltered scans all live slots passing the filter and returns the
// k nearest. A nil filter admits every slot.
func (f *Flat) SearchFiltered(query []float32, k int, metric distance.Metric, filter func(uint64) bool) ([]index.SearchResult, error) {
	n := f.data.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	var results []index.SearchResult
	if n < parallelThreshold {
		results = f.scan(query, k, metric, filter, 0, n)
	} else {
		results = f.scanParallel(query, k, metric, filter, n)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// scan walks slots [lo, hi) and returns up to k nearest in ascending
// distance order.
func (f *Flat) scan(query []float32, k int, metric distance.Metric, filter func(uint64) bool, lo, hi int) []index.SearchResult {
	distFn := distance.Provider(metric)
	top := newTopK(k)
	for i := lo; i < hi; i++ {
		if f.data.IsDeleted(i) {
			continue
		}
		if filter != nil && !filter(uint64(i)) {
			continue
		}
		top.push(uint64(i), distFn(query, f.data.VectorAt(i)))
	}
	return top.ascending()
}

// scanParallel shards the slot range across CPUs and merges per-shard
// top-k lists.
func (f *Flat) scanParallel(query []float32, k int, metric distance.Metric, filter func(uint64) bool, n int) []index.SearchResult {
	shards := runtime.GOMAXPROCS(0)
	if shards > n {
		shards = n
	}

	partial := make([][]index.SearchResult, shards)
	var g errgroup.Group
	chunk := (n + shards - 1) / shards
	for s := 0; s < shards; s++ {
		lo := s * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		s := s
		g.Go(func() error {
			partial[s] = f.scan(query, k, metric, filter, lo, hi)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never fail

	merged := newTopK(k)
	for _, p := range partial {
		for _, r := range p {
			merged.push(r.Slot, r.Distance)
		}
	}
	return merged.ascending()
}
