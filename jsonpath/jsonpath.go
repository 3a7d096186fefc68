// Package jsonpath maintains secondary indexes over JSON metadata
// attached to vector slots. Each registered path keeps a sorted
// (value, slot) array per value type; lookups binary-search and return
// slot sets as roaring bitmaps suitable for filtered vector search.
//
// Unlike the engine core, the Index is safe for concurrent use: reads
// take a shared lock, mutations an exclusive one.
package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// MaxPaths is the hard limit on registered paths.
const MaxPaths = 64

// maxPathLen bounds path names, matching the on-disk format.
const maxPathLen = 256

const initialEntryCapacity = 16

var (
	// ErrTooManyPaths is returned when MaxPaths is exceeded.
	ErrTooManyPaths = errors.New("too many indexed paths")
	// ErrDuplicatePath is returned when a path is registered twice.
	ErrDuplicatePath = errors.New("path already indexed")
	// ErrPathNotFound is returned when a path was never registered.
	ErrPathNotFound = errors.New("path not indexed")
	// ErrTypeMismatch is returned when a lookup type disagrees with the
	// registered path type.
	ErrTypeMismatch = errors.New("path type mismatch")
	// ErrPathTooLong is returned when a path name exceeds maxPathLen.
	ErrPathTooLong = errors.New("path name too long")
)

// ValueType is the indexed value type of a path.
type ValueType uint32

const (
	// TypeString indexes JSON strings.
	TypeString ValueType = iota
	// TypeInt indexes JSON numbers truncated to int64.
	TypeInt
	// TypeFloat indexes JSON numbers as float64.
	TypeFloat
	// TypeBool indexes JSON booleans.
	TypeBool
)

// String implements the fmt.Stringer interface.
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Valid reports whether t names a known value type.
func (t ValueType) Valid() bool {
	return t <= TypeBool
}

type stringEntry struct {
	value string
	slot  uint64
}

type intEntry struct {
	value int64
	slot  uint64
}

type floatEntry struct {
	value float64
	slot  uint64
}

type boolEntry struct {
	value bool
	slot  uint64
}

// pathIndex is one registered path's sorted entry storage. Only the
// slice matching typ is used.
type pathIndex struct {
	path string
	typ  ValueType

	strs   []stringEntry
	ints   []intEntry
	floats []floatEntry
	bools  []boolEntry
}

func (p *pathIndex) count() int {
	switch p.typ {
	case TypeString:
		return len(p.strs)
	case TypeInt:
		return len(p.ints)
	case TypeFloat:
		return len(p.floats)
	default:
		return len(p.bools)
	}
}

// Index is a set of per-path secondary indexes.
type Index struct {
	mu    sync.RWMutex
	paths []*pathIndex
}

// New creates an empty index.
func New() *Index {
	return &Index{}
}

func (x *Index) find(path string) *pathIndex {
	for _, p := range x.paths {
		if p.path == path {
			return p
		}
	}
	return nil
}

// AddPath registers a path for indexing. Only documents inserted after
// registration are indexed under it.
func (x *Index) AddPath(path string, typ ValueType) error {
	if len(path) == 0 || len(path) >= maxPathLen {
		return fmt.Errorf("%w: %q", ErrPathTooLong, path)
	}
	if !typ.Valid() {
		return fmt.Errorf("invalid path type: %d", uint32(typ))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.paths) >= MaxPaths {
		return fmt.Errorf("%w: limit is %d", ErrTooManyPaths, MaxPaths)
	}
	if x.find(path) != nil {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, path)
	}

	p := &pathIndex{path: path, typ: typ}
	switch typ {
	case TypeString:
		p.strs = make([]stringEntry, 0, initialEntryCapacity)
	case TypeInt:
		p.ints = make([]intEntry, 0, initialEntryCapacity)
	case TypeFloat:
		p.floats = make([]floatEntry, 0, initialEntryCapacity)
	case TypeBool:
		p.bools = make([]boolEntry, 0, initialEntryCapacity)
	}
	x.paths = append(x.paths, p)
	return nil
}

// RemovePath unregisters a path and drops its entries.
func (x *Index) RemovePath(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i, p := range x.paths {
		if p.path == path {
			x.paths = append(x.paths[:i], x.paths[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrPathNotFound, path)
}

// Paths returns the registered path names in registration order.
func (x *Index) Paths() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]string, len(x.paths))
	for i, p := range x.paths {
		out[i] = p.path
	}
	return out
}

// Insert indexes doc under slot for every registered path it resolves.
// Paths the document does not contain, or whose value has the wrong
// type, are skipped silently.
func (x *Index) Insert(slot uint64, doc []byte) error {
	var root any
	if err := json.Unmarshal(doc, &root); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, p := range x.paths {
		val, ok := resolve(root, p.path)
		if !ok {
			continue
		}
		switch p.typ {
		case TypeString:
			if s, ok := val.(string); ok {
				p.insertString(slot, s)
			}
		case TypeInt:
			if n, ok := val.(float64); ok {
				p.insertInt(slot, int64(n))
			}
		case TypeFloat:
			if n, ok := val.(float64); ok {
				p.insertFloat(slot, n)
			}
		case TypeBool:
			if b, ok := val.(bool); ok {
				p.insertBool(slot, b)
			}
		}
	}
	return nil
}

// Remove drops every entry for slot across all paths.
func (x *Index) Remove(slot uint64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, p := range x.paths {
		switch p.typ {
		case TypeString:
			w := 0
			for _, e := range p.strs {
				if e.slot != slot {
					p.strs[w] = e
					w++
				}
			}
			p.strs = p.strs[:w]
		case TypeInt:
			w := 0
			for _, e := range p.ints {
				if e.slot != slot {
					p.ints[w] = e
					w++
				}
			}
			p.ints = p.ints[:w]
		case TypeFloat:
			w := 0
			for _, e := range p.floats {
				if e.slot != slot {
					p.floats[w] = e
					w++
				}
			}
			p.floats = p.floats[:w]
		case TypeBool:
			w := 0
			for _, e := range p.bools {
				if e.slot != slot {
					p.bools[w] = e
					w++
				}
			}
			p.bools = p.bools[:w]
		}
	}
}

func (p *pathIndex) insertString(slot uint64, v string) {
	pos := sort.Search(len(p.strs), func(i int) bool { return p.strs[i].value >= v })
	p.strs = append(p.strs, stringEntry{})
	copy(p.strs[pos+1:], p.strs[pos:])
	p.strs[pos] = stringEntry{value: v, slot: slot}
}

func (p *pathIndex) insertInt(slot uint64, v int64) {
	pos := sort.Search(len(p.ints), func(i int) bool { return p.ints[i].value >= v })
	p.ints = append(p.ints, intEntry{})
	copy(p.ints[pos+1:], p.ints[pos:])
	p.ints[pos] = intEntry{value: v, slot: slot}
}

func (p *pathIndex) insertFloat(slot uint64, v float64) {
	pos := sort.Search(len(p.floats), func(i int) bool { return p.floats[i].value >= v })
	p.floats = append(p.floats, floatEntry{})
	copy(p.floats[pos+1:], p.floats[pos:])
	p.floats[pos] = floatEntry{value: v, slot: slot}
}

// insertBool keeps false entries before true entries.
func (p *pathIndex) insertBool(slot uint64, v bool) {
	pos := len(p.bools)
	if !v {
		pos = sort.Search(len(p.bools), func(i int) bool { return p.bools[i].value })
	}
	p.bools = append(p.bools, boolEntry{})
	copy(p.bools[pos+1:], p.bools[pos:])
	p.bools[pos] = boolEntry{value: v, slot: slot}
}

func (x *Index) lookupPath(path string, typ ValueType) (*pathIndex, error) {
	p := x.find(path)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}
	if p.typ != typ {
		return nil, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, path, p.typ, typ)
	}
	return p, nil
}

// LookupString returns the slots whose value at path equals value.
func (x *Index) LookupString(path, value string) (*roaring64.Bitmap, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, err := x.lookupPath(path, TypeString)
	if err != nil {
		return nil, err
	}

	out := roaring64.New()
	lo := sort.Search(len(p.strs), func(i int) bool { return p.strs[i].value >= value })
	for i := lo; i < len(p.strs) && p.strs[i].value == value; i++ {
		out.Add(p.strs[i].slot)
	}
	return out, nil
}

// LookupIntRange returns the slots whose value at path lies in
// [min, max], inclusive.
func (x *Index) LookupIntRange(path string, min, max int64) (*roaring64.Bitmap, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, err := x.lookupPath(path, TypeInt)
	if err != nil {
		return nil, err
	}

	out := roaring64.New()
	lo := sort.Search(len(p.ints), func(i int) bool { return p.ints[i].value >= min })
	hi := sort.Search(len(p.ints), func(i int) bool { return p.ints[i].value > max })
	for i := lo; i < hi; i++ {
		out.Add(p.ints[i].slot)
	}
	return out, nil
}

// LookupFloatRange returns the slots whose value at path lies in
// [min, max], inclusive.
func (x *Index) LookupFloatRange(path string, min, max float64) (*roaring64.Bitmap, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, err := x.lookupPath(path, TypeFloat)
	if err != nil {
		return nil, err
	}

	out := roaring64.New()
	lo := sort.Search(len(p.floats), func(i int) bool { return p.floats[i].value >= min })
	hi := sort.Search(len(p.floats), func(i int) bool { return p.floats[i].value > max })
	for i := lo; i < hi; i++ {
		out.Add(p.floats[i].slot)
	}
	return out, nil
}

// LookupBool returns the slots whose value at path equals value.
func (x *Index) LookupBool(path string, value bool) (*roaring64.Bitmap, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, err := x.lookupPath(path, TypeBool)
	if err != nil {
		return nil, err
	}

	out := roaring64.New()
	for _, e := range p.bools {
		if e.value == value {
			out.Add(e.slot)
		}
	}
	return out, nil
}

// Count returns the number of entries indexed under path, zero when the
// path is unknown.
func (x *Index) Count(path string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p := x.find(path)
	if p == nil {
		return 0
	}
	return p.count()
}
