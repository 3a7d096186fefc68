// Package bitset provides a byte-backed bitset.
//
// The engine is single-threaded by contract, so no atomics are used. The
// backing bytes are exposed directly because the persistence format stores
// the deletion bitmap as ceil(count/8) raw bytes.
package bitset

import "math/bits"

// BitSet is a fixed-layout bitset over a byte slice, bit i living at
// byte i/8, bit position i%8.
type BitSet struct {
	bytes []byte
}

// New creates a BitSet able to hold at least n bits.
func New(n int) *BitSet {
	return &BitSet{bytes: make([]byte, SizeBytes(n))}
}

// FromBytes wraps existing backing bytes without copying.
func FromBytes(b []byte) *BitSet {
	return &BitSet{bytes: b}
}

// SizeBytes returns the number of backing bytes needed for n bits.
func SizeBytes(n int) int {
	return (n + 7) / 8
}

// Set sets bit i.
func (b *BitSet) Set(i int) {
	b.bytes[i/8] |= 1 << (i % 8)
}

// Clear clears bit i.
func (b *BitSet) Clear(i int) {
	b.bytes[i/8] &^= 1 << (i % 8)
}

// Test reports whether bit i is set. Bits beyond the backing array are
// reported as unset.
func (b *BitSet) Test(i int) bool {
	if i/8 >= len(b.bytes) {
		return false
	}
	return b.bytes[i/8]&(1<<(i%8)) != 0
}

// Count returns the number of set bits.
func (b *BitSet) Count() int {
	n := 0
	for _, v := range b.bytes {
		n += bits.OnesCount8(v)
	}
	return n
}

// ClearAll zeroes every bit.
func (b *BitSet) ClearAll() {
	clear(b.bytes)
}

// Resize replaces the backing array with one holding at least n bits,
// preserving existing bits. Shrinking truncates.
func (b *BitSet) Resize(n int) {
	next := make([]byte, SizeBytes(n))
	copy(next, b.bytes)
	b.bytes = next
}

// Bytes returns the first SizeBytes(n) backing bytes. The slice aliases
// internal memory; callers must not modify it.
func (b *BitSet) Bytes(n int) []byte {
	return b.bytes[:SizeBytes(n)]
}

// Len returns the current backing size in bytes.
func (b *BitSet) Len() int {
	return len(b.bytes)
}

// FastBitSet is a reusable visited-set for search scratch space. Reset is
// O(set bits) via a dirty list, which keeps repeated graph traversals cheap.
type FastBitSet struct {
	bits  []uint64
	dirty []int
}

// NewFast creates a FastBitSet sized for capacity bits.
func NewFast(capacity int) *FastBitSet {
	return &FastBitSet{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]int, 0, 128),
	}
}

// TestAndSet sets bit id and returns true if it was already set.
func (b *FastBitSet) TestAndSet(id int) bool {
	word := id >> 6
	mask := uint64(1) << (id & 63)
	if word >= len(b.bits) {
		b.grow(word + 1)
	}
	if b.bits[word]&mask != 0 {
		return true
	}
	b.bits[word] |= mask
	b.dirty = append(b.dirty, id)
	return false
}

// Test reports whether bit id is set.
func (b *FastBitSet) Test(id int) bool {
	word := id >> 6
	if word >= len(b.bits) {
		return false
	}
	return b.bits[word]&(uint64(1)<<(id&63)) != 0
}

// Reset clears all previously set bits.
func (b *FastBitSet) Reset() {
	for _, id := range b.dirty {
		b.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	b.dirty = b.dirty[:0]
}

func (b *FastBitSet) grow(words int) {
	next := make([]uint64, max(words, len(b.bits)*2))
	copy(next, b.bits)
	b.bits = next
}
