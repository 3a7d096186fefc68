// Package store owns the engine's vector storage: a contiguous float32
// buffer, the deletion bitmap, and the optional scalar-quantized mirror of
// every vector. All buffer growth is atomic: every new size is computed and
// reserved against the memory budget before any buffer is replaced, so a
// failed grow leaves no partial state.
package store

import (
	"errors"
	"fmt"

	"github.com/gigavector/gigavector/internal/bitset"
	"github.com/gigavector/gigavector/internal/mem"
)

// initialCapacity is the slot capacity allocated at open time, clamped by
// the hard cap.
const initialCapacity = 64

// ErrCapacityExceeded is returned when an operation would exceed the
// configured hard cap on slot count.
var ErrCapacityExceeded = errors.New("vector capacity exceeded")

// Store is the slot-addressed vector storage.
type Store struct {
	dim        int
	maxVectors int // hard cap on slots, 0 = unbounded
	tracker    *mem.Tracker

	vectors  []float32 // capacity*dim floats
	deleted  *bitset.BitSet
	count    int // slots ever allocated, including tombstones
	capacity int

	quant *Quantizer // nil when quantization is disabled
}

// New creates a store for dim-sized vectors. quantBits must be 0, 4 or 8;
// validation happens at the engine boundary.
func New(dim, maxVectors, quantBits int, tracker *mem.Tracker) (*Store, error) {
	capacity := initialCapacity
	if maxVectors > 0 && maxVectors < capacity {
		capacity = maxVectors
	}

	s := &Store{
		dim:        dim,
		maxVectors: maxVectors,
		tracker:    tracker,
		capacity:   capacity,
	}

	total := vectorBytes(capacity, dim) + bitmapBytes(capacity)
	if quantBits > 0 {
		s.quant = newQuantizer(dim, quantBits)
		total += quantStateBytes(dim) + quantDataBytes(capacity, s.quant.bytesPerVector)
	}
	if err := tracker.Reserve(total); err != nil {
		return nil, err
	}

	s.vectors = make([]float32, capacity*dim)
	s.deleted = bitset.New(capacity)
	if s.quant != nil {
		s.quant.data = make([]byte, capacity*s.quant.bytesPerVector)
	}
	return s, nil
}

func vectorBytes(capacity, dim int) int64  { return int64(capacity) * int64(dim) * 4 }
func bitmapBytes(capacity int) int64       { return int64(bitset.SizeBytes(capacity)) }
func quantStateBytes(dim int) int64        { return 2 * int64(dim) * 4 }
func quantDataBytes(capacity, bpv int) int64 { return int64(capacity) * int64(bpv) }

// EnsureCapacity grows storage so that at least needed slots exist.
// Growth doubles, is capped by the hard cap, and is all-or-nothing.
func (s *Store) EnsureCapacity(needed int) error {
	if needed <= s.capacity {
		return nil
	}
	if s.maxVectors > 0 && needed > s.maxVectors {
		return fmt.Errorf("%w: %d slots requested, cap is %d", ErrCapacityExceeded, needed, s.maxVectors)
	}

	newCap := s.capacity
	if newCap == 0 {
		newCap = initialCapacity
	}
	for newCap < needed {
		newCap *= 2
	}
	if s.maxVectors > 0 && newCap > s.maxVectors {
		newCap = s.maxVectors
	}

	delta := vectorBytes(newCap, s.dim) - vectorBytes(s.capacity, s.dim)
	delta += bitmapBytes(newCap) - bitmapBytes(s.capacity)
	if s.quant != nil {
		bpv := s.quant.bytesPerVector
		delta += quantDataBytes(newCap, bpv) - quantDataBytes(s.capacity, bpv)
	}
	if err := s.tracker.Reserve(delta); err != nil {
		return err
	}

	vectors := make([]float32, newCap*s.dim)
	copy(vectors, s.vectors)
	s.vectors = vectors
	s.deleted.Resize(newCap)
	if s.quant != nil {
		data := make([]byte, newCap*s.quant.bytesPerVector)
		copy(data, s.quant.data)
		s.quant.data = data
	}
	s.capacity = newCap
	return nil
}

// Append copies vec into the next free slot and returns its index.
func (s *Store) Append(vec []float32) (int, error) {
	if s.maxVectors > 0 && s.count >= s.maxVectors {
		return 0, fmt.Errorf("%w: cap is %d", ErrCapacityExceeded, s.maxVectors)
	}
	if err := s.EnsureCapacity(s.count + 1); err != nil {
		return 0, err
	}

	idx := s.count
	copy(s.vectors[idx*s.dim:(idx+1)*s.dim], vec)
	s.deleted.Clear(idx)
	s.count++

	if s.quant != nil {
		s.quant.Update(vec)
		s.quant.Encode(idx, vec)
	}
	return idx, nil
}

// WriteAt copies vec into slot id, extending the slot array with
// tombstones for any gap and silently overwriting an existing slot.
func (s *Store) WriteAt(id int, vec []float32) error {
	if id < 0 {
		return fmt.Errorf("%w: slot %d", ErrCapacityExceeded, id)
	}
	if s.maxVectors > 0 && id >= s.maxVectors {
		return fmt.Errorf("%w: slot %d, cap is %d", ErrCapacityExceeded, id, s.maxVectors)
	}
	if err := s.EnsureCapacity(id + 1); err != nil {
		return err
	}

	for s.count < id+1 {
		s.deleted.Set(s.count)
		s.count++
	}

	copy(s.vectors[id*s.dim:(id+1)*s.dim], vec)
	s.deleted.Clear(id)

	if s.quant != nil {
		s.quant.Update(vec)
		s.quant.Encode(id, vec)
	}
	return nil
}

// VectorAt returns the slot's floats as a view into internal storage.
// Callers must treat the slice as read-only.
func (s *Store) VectorAt(i int) []float32 {
	return s.vectors[i*s.dim : (i+1)*s.dim]
}

// MarkDeleted tombstones slot i.
func (s *Store) MarkDeleted(i int) {
	s.deleted.Set(i)
}

// IsDeleted reports whether slot i is tombstoned.
func (s *Store) IsDeleted(i int) bool {
	return s.deleted.Test(i)
}

// Count returns the number of slots ever allocated, including tombstones.
func (s *Store) Count() int { return s.count }

// ActiveCount returns the number of live slots.
func (s *Store) ActiveCount() int { return s.count - s.deleted.Count() }

// Dimension returns the per-vector dimension.
func (s *Store) Dimension() int { return s.dim }

// Capacity returns the allocated slot capacity.
func (s *Store) Capacity() int { return s.capacity }

// Quantizer returns the scalar quantizer, or nil when disabled.
func (s *Store) Quantizer() *Quantizer { return s.quant }

// DeletedBytes returns the bitmap's backing bytes for the allocated slot
// range, in on-disk layout. The slice aliases internal memory.
func (s *Store) DeletedBytes() []byte {
	return s.deleted.Bytes(s.count)
}

// RawVectors returns the float buffer for the allocated slot range.
// The slice aliases internal memory.
func (s *Store) RawVectors() []float32 {
	return s.vectors[:s.count*s.dim]
}

// Compact collapses live slots to the front, re-encodes quantized data,
// clears every tombstone, and returns the new slot count. Slot indices are
// renumbered; index backends must be rebuilt by the caller.
func (s *Store) Compact() int {
	write := 0
	for read := 0; read < s.count; read++ {
		if s.deleted.Test(read) {
			continue
		}
		if write != read {
			copy(s.vectors[write*s.dim:(write+1)*s.dim], s.vectors[read*s.dim:(read+1)*s.dim])
		}
		if s.quant != nil {
			s.quant.Encode(write, s.vectors[write*s.dim:(write+1)*s.dim])
		}
		write++
	}
	s.count = write
	s.deleted.ClearAll()
	return write
}

// Restore installs persisted state: the slot count, raw vectors, and
// deletion bitmap. Capacity must already cover count.
func (s *Store) Restore(count int, vectors []float32, deleted []byte) {
	s.count = count
	copy(s.vectors, vectors)
	copy(s.deleted.Bytes(count), deleted)
}
