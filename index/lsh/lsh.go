// Package lsh provides an approximate search backend using random
// hyperplane locality-sensitive hashing. Each of T tables hashes a vector
// to a B-bit signature by the sign of its dot product with B gaussian
// hyperplanes; search unions the query's bucket across all tables.
//
// Hyperplanes are derived deterministically from a seed, so only the seed
// material (the planes themselves) needs persisting; bucket contents are
// rebuilt on load.
package lsh

import (
	"github.com/gigavector/gigavector/distance"
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/internal/bitset"
	"github.com/gigavector/gigavector/internal/mem"
	"github.com/gigavector/gigavector/internal/queue"
	"github.com/gigavector/gigavector/internal/rng"
)

const (
	// DefaultTables is the number of hash tables.
	DefaultTables = 8
	// DefaultBits is the signature width per table.
	DefaultBits = 12
	// maxBuckets caps the bucket array per table regardless of bit width.
	maxBuckets = 4096

	initialBucketCapacity = 8
)

// Compile-time check that LSH implements the index.Backend interface.
var _ index.Backend = (*LSH)(nil)

// bucket is one hash bucket's slot list.
type bucket struct {
	slots []uint64
}

// LSH is the locality-sensitive hashing backend.
type LSH struct {
	data    index.Data
	tracker *mem.Tracker

	tables  int
	bits    int
	buckets int

	// hyperplanes holds tables*bits planes of dimension floats each,
	// indexed [table*bits+bit].
	hyperplanes [][]float32

	table []([]bucket) // tables x buckets

	visited *bitset.FastBitSet // search scratch
}

// New creates an LSH backend over data, deriving hyperplanes from seed.
func New(data index.Data, tracker *mem.Tracker, seed uint64) (*LSH, error) {
	l := &LSH{
		data:    data,
		tracker: tracker,
		tables:  DefaultTables,
		bits:    DefaultBits,
		visited: bitset.NewFast(0),
	}
	l.buckets = 1 << l.bits
	if l.buckets > maxBuckets {
		l.buckets = maxBuckets
	}

	dim := data.Dimension()
	planes := l.tables * l.bits
	if err := tracker.Reserve(int64(planes) * int64(dim) * 4); err != nil {
		return nil, err
	}

	r := rng.New(seed)
	l.hyperplanes = make([][]float32, planes)
	for i := range l.hyperplanes {
		p := make([]float32, dim)
		for d := range p {
			p[d] = r.NormFloat32()
		}
		l.hyperplanes[i] = p
	}

	l.table = make([][]bucket, l.tables)
	for t := range l.table {
		l.table[t] = make([]bucket, l.buckets)
	}
	return l, nil
}

// Params returns the table count, signature bits, and bucket count.
func (l *LSH) Params() (tables, bits, buckets int) {
	return l.tables, l.bits, l.buckets
}

// Hyperplanes returns the plane matrix. The slices alias internal memory.
func (l *LSH) Hyperplanes() [][]float32 {
	return l.hyperplanes
}

// SetHyperplanes installs persisted planes, replacing the seed-derived
// ones. Bucket contents become stale and must be rebuilt.
func (l *LSH) SetHyperplanes(planes [][]float32) {
	l.hyperplanes = planes
}

// hash computes the B-bit signature of vec under table t.
func (l *LSH) hash(vec []float32, t int) uint32 {
	var h uint32
	base := t * l.bits
	for b := 0; b < l.bits; b++ {
		plane := l.hyperplanes[base+b]
		var dot float32
		for d, v := range vec {
			dot += v * plane[d]
		}
		if dot >= 0 {
			h |= 1 << b
		}
	}
	return h
}

// Insert hashes slot i into one bucket per table.
func (l *LSH) Insert(i int) error {
	vec := l.data.VectorAt(i)
	for t := 0; t < l.tables; t++ {
		idx := l.hash(vec, t) % uint32(l.buckets)
		if err := l.bucketAdd(&l.table[t][idx], uint64(i)); err != nil {
			return err
		}
	}
	return nil
}

// bucketAdd appends slot to b, doubling capacity as needed with the
// growth accounted against the memory budget.
func (l *LSH) bucketAdd(b *bucket, slot uint64) error {
	if len(b.slots) >= cap(b.slots) {
		newCap := initialBucketCapacity
		if cap(b.slots) > 0 {
			newCap = cap(b.slots) * 2
		}
		if err := l.tracker.Reserve(int64(newCap-cap(b.slots)) * 8); err != nil {
			return err
		}
		next := make([]uint64, len(b.slots), newCap)
		copy(next, b.slots)
		b.slots = next
	}
	b.slots = append(b.slots, slot)
	return nil
}

// Search unions the query's bucket across all tables and ranks the
// deduplicated candidates by exact distance.
func (l *LSH) Search(query []float32, k int, metric distance.Metric) ([]index.SearchResult, error) {
	if l.data.Count() == 0 || k <= 0 {
		return nil, nil
	}

	distFn := distance.Provider(metric)
	l.visited.Reset()
	top := queue.NewMax(k)

	n := l.data.Count()
	for t := 0; t < l.tables; t++ {
		idx := l.hash(query, t) % uint32(l.buckets)
		for _, slot := range l.table[t][idx].slots {
			if slot >= uint64(n) {
				continue
			}
			if l.visited.TestAndSet(int(slot)) {
				continue
			}
			if l.data.IsDeleted(int(slot)) {
				continue
			}
			top.PushBounded(queue.Item{
				Slot:     slot,
				Distance: distFn(query, l.data.VectorAt(int(slot))),
			}, k)
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

// Rebuild clears every bucket, keeps the hyperplanes, and re-hashes all
// live slots.
func (l *LSH) Rebuild() error {
	for t := range l.table {
		for b := range l.table[t] {
			l.table[t][b].slots = l.table[t][b].slots[:0]
		}
	}
	n := l.data.Count()
	for i := 0; i < n; i++ {
		if l.data.IsDeleted(i) {
			continue
		}
		if err := l.Insert(i); err != nil {
			return err
		}
	}
	return nil
}
