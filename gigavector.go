// Package gigavector provides an embedded vector database for Go.
//
// An Engine stores fixed-dimension float32 vectors in slot-addressed
// storage and answers k-nearest-neighbor queries under Euclidean, cosine,
// dot-product, or Manhattan distance. Three search backends are
// available:
//
//   - Flat: exact brute-force scan
//   - Graph: approximate single-level proximity graph
//   - LSH: approximate random-hyperplane hashing
//
// Deletes are tombstones: slots keep their numbers until Compact
// renumbers them and rebuilds the backend. Optional scalar quantization
// maintains a compact 4- or 8-bit mirror of every vector alongside the
// raw floats. All tracked allocations are accounted against a soft
// memory budget, and Save/Load round-trip the full database through a
// single snapshot file.
//
// Quick start:
//
//	db, err := gigavector.Open(128, func(o *gigavector.Options) {
//		o.IndexType = index.TypeGraph
//		o.MemoryLimitMB = 256
//	})
//	if err != nil {
//		panic(err)
//	}
//	defer db.Close()
//
//	id, _ := db.Add(vec)
//	results, _ := db.Search(query, 10, distance.MetricCosine)
//
// The Engine is not safe for concurrent use; callers wanting shared
// access must serialize externally.
package gigavector

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/gigavector/gigavector/distance"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/index/flat"
	"github.com/gigavector/gigavector/index/graph"
	"github.com/gigavector/gigavector/index/lsh"
	"github.com/gigavector/gigavector/internal/mem"
	"github.com/gigavector/gigavector/persistence"
	"github.com/gigavector/gigavector/store"
)

// SearchResult is a single query result.
type SearchResult struct {
	// ID is the storage slot of the vector.
	ID uint64
	// Distance is the metric distance to the query, smaller is closer.
	Distance float32
}

// Engine is an embedded vector database instance.
type Engine struct {
	opts    Options
	logger  *Logger
	dim     int
	tracker *mem.Tracker
	store   *store.Store

	backend index.Backend
	flat    *flat.Flat // always available for exact filtered scans

	closed bool
}

// Open creates an empty engine for dimension-sized vectors.
func Open(dimension int, optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return open(dimension, opts)
}

func open(dimension int, opts Options) (*Engine, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}
	if !opts.IndexType.Valid() {
		return nil, &ErrInvalidIndexType{IndexType: opts.IndexType}
	}
	if opts.Quantize != 0 && opts.Quantize != 4 && opts.Quantize != 8 {
		return nil, &ErrInvalidQuantize{Bits: opts.Quantize}
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	tracker := mem.NewTracker(opts.budgetBytes())
	st, err := store.New(dimension, opts.MaxVectors, opts.Quantize, tracker)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		logger:  opts.Logger,
		dim:     dimension,
		tracker: tracker,
		store:   st,
		flat:    flat.New(st),
	}

	switch opts.IndexType {
	case index.TypeGraph:
		e.backend = graph.New(st, tracker)
	case index.TypeLSH:
		l, err := lsh.New(st, tracker, opts.LSHSeed)
		if err != nil {
			return nil, err
		}
		e.backend = l
	default:
		e.backend = e.flat
	}

	e.logger.Debug("engine opened",
		"dimension", dimension,
		"index_type", opts.IndexType.String(),
		"quantize", opts.Quantize,
		"budget_bytes", tracker.Budget(),
	)
	return e, nil
}

// Close releases the engine. Subsequent operations return ErrClosed.
func (e *Engine) Close() error {
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	e.logger.Debug("engine closed", "slots", e.store.Count())
	return nil
}

// Add appends a vector and returns its slot ID.
func (e *Engine) Add(vector []float32) (uint64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if len(vector) != e.dim {
		return 0, &ErrDimensionMismatch{Expected: e.dim, Actual: len(vector)}
	}

	idx, err := e.store.Append(vector)
	if err != nil {
		return 0, err
	}
	if err := e.backend.Insert(idx); err != nil {
		return 0, err
	}

	e.logger.Debug("vector added", "id", idx)
	return uint64(idx), nil
}

// AddWithID writes a vector into a specific slot, tombstoning any gap
// below it and silently overwriting an existing slot.
func (e *Engine) AddWithID(id uint64, vector []float32) error {
	if e.closed {
		return ErrClosed
	}
	if len(vector) != e.dim {
		return &ErrDimensionMismatch{Expected: e.dim, Actual: len(vector)}
	}
	// Slot numbers are ints internally; ids past that range can never be
	// allocated.
	if id >= uint64(math.MaxInt) {
		return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, id)
	}

	if err := e.store.WriteAt(int(id), vector); err != nil {
		return err
	}
	if err := e.backend.Insert(int(id)); err != nil {
		return err
	}

	e.logger.Debug("vector added", "id", id)
	return nil
}

// Get returns a copy of the vector in slot id.
func (e *Engine) Get(id uint64) ([]float32, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if id >= uint64(e.store.Count()) || e.store.IsDeleted(int(id)) {
		return nil, fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}

	out := make([]float32, e.dim)
	copy(out, e.store.VectorAt(int(id)))
	return out, nil
}

// Delete tombstones slot id. The slot number is not reused until
// Compact.
func (e *Engine) Delete(id uint64) error {
	if e.closed {
		return ErrClosed
	}
	if id >= uint64(e.store.Count()) || e.store.IsDeleted(int(id)) {
		return fmt.Errorf("%w: slot %d", ErrNotFound, id)
	}

	e.store.MarkDeleted(int(id))
	e.logger.Debug("vector deleted", "id", id)
	return nil
}

// Search returns up to k nearest live vectors under the given metric,
// ordered by ascending distance.
func (e *Engine) Search(query []float32, k int, metric distance.Metric) ([]SearchResult, error) {
	return e.search(query, k, metric, e.backend.Search)
}

// SearchFiltered is Search restricted to an allow-list of slot IDs. The
// scan is exact regardless of the configured backend.
func (e *Engine) SearchFiltered(query []float32, k int, metric distance.Metric, allowed *roaring64.Bitmap) ([]SearchResult, error) {
	if allowed == nil {
		return e.Search(query, k, metric)
	}
	return e.search(query, k, metric, func(q []float32, k int, m distance.Metric) ([]index.SearchResult, error) {
		return e.flat.SearchFiltered(q, k, m, allowed.Contains)
	})
}

func (e *Engine) search(query []float32, k int, metric distance.Metric, fn func([]float32, int, distance.Metric) ([]index.SearchResult, error)) ([]SearchResult, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if len(query) != e.dim {
		return nil, &ErrDimensionMismatch{Expected: e.dim, Actual: len(query)}
	}

	raw, err := fn(query, k, metric)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(raw))
	for i, r := range raw {
		results[i] = SearchResult{ID: r.Slot, Distance: r.Distance}
	}
	e.logger.Debug("search completed", "k", k, "metric", metric.String(), "results", len(results))
	return results, nil
}

// Count returns the number of live vectors.
func (e *Engine) Count() int {
	return e.store.ActiveCount()
}

// Slots returns the number of allocated slots, including tombstones.
func (e *Engine) Slots() int {
	return e.store.Count()
}

// Dimension returns the configured vector dimension.
func (e *Engine) Dimension() int {
	return e.dim
}

// MemoryUsage returns the tracked allocation total in bytes.
func (e *Engine) MemoryUsage() int64 {
	return e.tracker.Used()
}

// Compact renumbers live slots to be contiguous from zero and rebuilds
// the search backend. A no-op when nothing is tombstoned.
func (e *Engine) Compact() error {
	if e.closed {
		return ErrClosed
	}
	before := e.store.Count()
	if e.store.ActiveCount() == before {
		return nil
	}

	after := e.store.Compact()
	if err := e.backend.Rebuild(); err != nil {
		return err
	}

	e.logger.Info("compaction completed", "slots_before", before, "slots_after", after)
	return nil
}

// Save writes a snapshot of the engine to path.
func (e *Engine) Save(path string) error {
	if e.closed {
		return ErrClosed
	}

	snap := &persistence.Snapshot{
		Header: persistence.Header{
			Dimension:     uint64(e.dim),
			Count:         uint64(e.store.Count()),
			IndexType:     uint32(e.opts.IndexType),
			Quantize:      uint32(e.opts.Quantize),
			MaxVectors:    uint64(e.opts.MaxVectors),
			MemoryLimitMB: e.persistedLimitMB(),
		},
		Deleted: e.store.DeletedBytes(),
		Vectors: e.store.RawVectors(),
	}

	if q := e.store.Quantizer(); q != nil {
		snap.Quant = &persistence.QuantState{
			Min:  q.Min(),
			Max:  q.Max(),
			Data: q.Data(e.store.Count()),
		}
	}

	switch b := e.backend.(type) {
	case *graph.Graph:
		m, ef := b.Params()
		snap.Graph = &persistence.GraphState{
			M:              uint64(m),
			EfConstruction: uint64(ef),
			Neighbors:      b.Neighbors(e.store.Count()),
		}
	case *lsh.LSH:
		tables, bits, buckets := b.Params()
		snap.LSH = &persistence.LSHState{
			Tables:      uint64(tables),
			Bits:        uint64(bits),
			Buckets:     uint64(buckets),
			Hyperplanes: b.Hyperplanes(),
		}
	}

	if err := persistence.SaveFile(snap, path); err != nil {
		e.logger.Error("snapshot failed", "path", path, "error", err)
		return err
	}
	e.logger.Info("snapshot saved", "path", path, "slots", e.store.Count())
	return nil
}

// persistedLimitMB maps the configured budget to the on-disk field,
// where zero means unlimited.
func (e *Engine) persistedLimitMB() uint64 {
	b := e.opts.budgetBytes()
	if b == 0 {
		return 0
	}
	return uint64(b / (1024 * 1024))
}

// Load reconstructs an engine from a snapshot written by Save. Index
// configuration comes from the file; option functions can still set the
// logger. Reconstruction runs without a budget so an already-valid
// snapshot never fails its own limit, then the persisted limit is
// restored.
func Load(path string, optFns ...func(o *Options)) (*Engine, error) {
	snap, err := persistence.LoadFile(path)
	if err != nil {
		return nil, err
	}
	h := snap.Header

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.IndexType = index.Type(h.IndexType)
	opts.MaxVectors = int(h.MaxVectors)
	opts.Quantize = int(h.Quantize)
	if h.MemoryLimitMB == 0 {
		opts.MemoryLimitMB = MemoryUnlimited
	} else {
		opts.MemoryLimitMB = int64(h.MemoryLimitMB)
	}

	restored := opts
	opts.MemoryLimitMB = MemoryUnlimited
	e, err := open(int(h.Dimension), opts)
	if err != nil {
		return nil, err
	}

	count := int(h.Count)
	if count > 0 {
		if err := e.store.EnsureCapacity(count); err != nil {
			return nil, err
		}
		e.store.Restore(count, snap.Vectors, snap.Deleted)

		if snap.Quant != nil {
			e.store.Quantizer().Restore(snap.Quant.Min, snap.Quant.Max, snap.Quant.Data)
		}
	}

	// Index state is restored even at count zero: an empty snapshot still
	// carries the graph parameters and the LSH hyperplanes.
	switch b := e.backend.(type) {
	case *graph.Graph:
		if snap.Graph != nil {
			b.SetParams(int(snap.Graph.M), int(snap.Graph.EfConstruction))
			if err := b.SetNeighbors(snap.Graph.Neighbors); err != nil {
				return nil, err
			}
		}
	case *lsh.LSH:
		if snap.LSH != nil {
			b.SetHyperplanes(snap.LSH.Hyperplanes)
			if err := b.Rebuild(); err != nil {
				return nil, err
			}
		}
	}

	e.opts.MemoryLimitMB = restored.MemoryLimitMB
	e.tracker.SetBudget(restored.budgetBytes())

	e.logger.Info("snapshot loaded", "path", path, "slots", count)
	return e, nil
}
