// Package persistence implements the binary snapshot format.
//
// Layout, all integers little-endian:
//
//	magic "GVEM", version u32
//	dimension u64, count u64, index_type u32, quantize u32,
//	max_vectors u64, memory_limit_mb u64
//	deleted bitmap, ceil(count/8) bytes
//	raw vectors, count*dimension float32
//	if quantize > 0: min [dim]f32, max [dim]f32, codes count*bpv bytes
//	if graph index: M u64, ef u64, then per slot u32 edge count + edges u64
//	if lsh index:   tables u64, bits u64, buckets u64, hyperplanes
//	                tables*bits*[dim]f32
//
// The count field includes tombstoned slots; the bitmap marks them. The
// graph and LSH sections are present whenever the index type matches,
// even at count zero, so an empty snapshot still carries the graph
// parameters and the LSH hyperplanes. LSH bucket contents are not
// persisted, only the hyperplanes: buckets are deterministically
// rebuilt on load.
package persistence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	// Magic identifies a snapshot file.
	Magic = "GVEM"
	// Version is the current format version.
	Version uint32 = 1
)

var (
	// ErrInvalidMagic is returned when a file does not start with Magic.
	ErrInvalidMagic = errors.New("invalid snapshot magic")
	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("unsupported snapshot version")
	// ErrTruncated is returned when a file ends mid-section.
	ErrTruncated = errors.New("truncated snapshot")
	// ErrCorrupt is returned when decoded fields are out of range or
	// inconsistent.
	ErrCorrupt = errors.New("corrupt snapshot")
)

// headerLen is the encoded size of the magic, version, and Header.
const headerLen = 4 + 4 + 8 + 8 + 4 + 4 + 8 + 8

// Sanity bounds on decoded fields, far past any real engine but small
// enough that a corrupt header cannot drive huge allocations.
const (
	maxDimension = 1 << 24
	maxCount     = 1 << 40
	maxLSHTables = 1 << 12
	maxLSHBits   = 64
)

// Index type tags as stored on disk.
const (
	indexFlat  uint32 = 0
	indexGraph uint32 = 1
	indexLSH   uint32 = 2
)

// Header is the fixed-size portion of a snapshot.
type Header struct {
	Dimension     uint64
	Count         uint64
	IndexType     uint32
	Quantize      uint32
	MaxVectors    uint64
	MemoryLimitMB uint64
}

// validate rejects headers whose fields are out of range, would
// overflow int arithmetic, or name an unknown index or quantizer.
func (h Header) validate() error {
	if h.Dimension == 0 || h.Dimension > maxDimension {
		return fmt.Errorf("%w: dimension %d", ErrCorrupt, h.Dimension)
	}
	if h.Count > maxCount {
		return fmt.Errorf("%w: count %d", ErrCorrupt, h.Count)
	}
	if h.Count > (math.MaxInt64/4)/h.Dimension {
		return fmt.Errorf("%w: count %d at dimension %d overflows", ErrCorrupt, h.Count, h.Dimension)
	}
	if h.IndexType > indexLSH {
		return fmt.Errorf("%w: index type %d", ErrCorrupt, h.IndexType)
	}
	if h.Quantize != 0 && h.Quantize != 4 && h.Quantize != 8 {
		return fmt.Errorf("%w: quantize bits %d", ErrCorrupt, h.Quantize)
	}
	return nil
}

// QuantState is the persisted quantizer state.
type QuantState struct {
	Min  []float32
	Max  []float32
	Data []byte
}

// GraphState is the persisted proximity-graph adjacency.
type GraphState struct {
	M              uint64
	EfConstruction uint64
	Neighbors      [][]uint64
}

// LSHState is the persisted LSH configuration. Bucket contents are
// rebuilt from the hyperplanes on load.
type LSHState struct {
	Tables      uint64
	Bits        uint64
	Buckets     uint64
	Hyperplanes [][]float32
}

// Snapshot is a fully decoded database image.
type Snapshot struct {
	Header  Header
	Deleted []byte
	Vectors []float32

	Quant *QuantState // non-nil iff Header.Quantize > 0 and Count > 0
	Graph *GraphState // non-nil iff graph index
	LSH   *LSHState   // non-nil iff lsh index
}

// Write encodes the snapshot to w.
func (s *Snapshot) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	for _, v := range []any{
		Version,
		s.Header.Dimension, s.Header.Count,
		s.Header.IndexType, s.Header.Quantize,
		s.Header.MaxVectors, s.Header.MemoryLimitMB,
	} {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if len(s.Deleted) > 0 {
		if _, err := bw.Write(s.Deleted); err != nil {
			return err
		}
	}
	if len(s.Vectors) > 0 {
		if err := binary.Write(bw, binary.LittleEndian, s.Vectors); err != nil {
			return err
		}
	}

	if s.Header.Quantize > 0 && s.Quant != nil {
		if err := binary.Write(bw, binary.LittleEndian, s.Quant.Min); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, s.Quant.Max); err != nil {
			return err
		}
		if len(s.Quant.Data) > 0 {
			if _, err := bw.Write(s.Quant.Data); err != nil {
				return err
			}
		}
	}

	if s.Header.IndexType == indexGraph && s.Graph != nil {
		if err := binary.Write(bw, binary.LittleEndian, s.Graph.M); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, s.Graph.EfConstruction); err != nil {
			return err
		}
		for _, edges := range s.Graph.Neighbors {
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(edges))); err != nil {
				return err
			}
			if len(edges) > 0 {
				if err := binary.Write(bw, binary.LittleEndian, edges); err != nil {
					return err
				}
			}
		}
	}

	if s.Header.IndexType == indexLSH && s.LSH != nil {
		for _, v := range []uint64{s.LSH.Tables, s.LSH.Bits, s.LSH.Buckets} {
			if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		for _, plane := range s.LSH.Hyperplanes {
			if err := binary.Write(bw, binary.LittleEndian, plane); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// ReadHeader decodes and validates only the fixed-size header.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, truncated(err)
	}
	if string(magic) != Magic {
		return h, ErrInvalidMagic
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return h, truncated(err)
	}
	if version != Version {
		return h, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}

	for _, v := range []any{
		&h.Dimension, &h.Count,
		&h.IndexType, &h.Quantize,
		&h.MaxVectors, &h.MemoryLimitMB,
	} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return h, truncated(err)
		}
	}
	if err := h.validate(); err != nil {
		return h, err
	}
	return h, nil
}

// Read decodes a full snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)

	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Header: h}

	count := int(h.Count)
	dim := int(h.Dimension)

	if count > 0 {
		s.Deleted = make([]byte, (count+7)/8)
		if _, err := io.ReadFull(br, s.Deleted); err != nil {
			return nil, truncated(err)
		}
		s.Vectors = make([]float32, count*dim)
		if err := binary.Read(br, binary.LittleEndian, s.Vectors); err != nil {
			return nil, truncated(err)
		}
	}

	if h.Quantize > 0 && count > 0 {
		bpv := (dim*int(h.Quantize) + 7) / 8
		q := &QuantState{
			Min:  make([]float32, dim),
			Max:  make([]float32, dim),
			Data: make([]byte, count*bpv),
		}
		if err := binary.Read(br, binary.LittleEndian, q.Min); err != nil {
			return nil, truncated(err)
		}
		if err := binary.Read(br, binary.LittleEndian, q.Max); err != nil {
			return nil, truncated(err)
		}
		if _, err := io.ReadFull(br, q.Data); err != nil {
			return nil, truncated(err)
		}
		s.Quant = q
	}

	if h.IndexType == indexGraph {
		g := &GraphState{}
		if err := binary.Read(br, binary.LittleEndian, &g.M); err != nil {
			return nil, truncated(err)
		}
		if err := binary.Read(br, binary.LittleEndian, &g.EfConstruction); err != nil {
			return nil, truncated(err)
		}
		if count > 0 {
			g.Neighbors = make([][]uint64, count)
		}
		for i := 0; i < count; i++ {
			var nc uint32
			if err := binary.Read(br, binary.LittleEndian, &nc); err != nil {
				return nil, truncated(err)
			}
			if nc == 0 {
				continue
			}
			edges := make([]uint64, nc)
			if err := binary.Read(br, binary.LittleEndian, edges); err != nil {
				return nil, truncated(err)
			}
			g.Neighbors[i] = edges
		}
		s.Graph = g
	}

	if h.IndexType == indexLSH {
		l := &LSHState{}
		for _, v := range []*uint64{&l.Tables, &l.Bits, &l.Buckets} {
			if err := binary.Read(br, binary.LittleEndian, v); err != nil {
				return nil, truncated(err)
			}
		}
		if l.Tables == 0 || l.Tables > maxLSHTables || l.Bits == 0 || l.Bits > maxLSHBits {
			return nil, fmt.Errorf("%w: lsh geometry %d tables, %d bits", ErrCorrupt, l.Tables, l.Bits)
		}
		planes := int(l.Tables) * int(l.Bits)
		l.Hyperplanes = make([][]float32, planes)
		for i := range l.Hyperplanes {
			p := make([]float32, dim)
			if err := binary.Read(br, binary.LittleEndian, p); err != nil {
				return nil, truncated(err)
			}
			l.Hyperplanes[i] = p
		}
		s.LSH = l
	}

	return s, nil
}

// SaveFile writes the snapshot to path via a temp file and rename, so a
// crash mid-write never clobbers an existing snapshot.
func SaveFile(s *Snapshot, path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFile reads a snapshot from path. The file size is checked against
// the header before any section is allocated.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if need := minFileSize(h); fi.Size() < need {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrTruncated, fi.Size(), need)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return Read(f)
}

// minFileSize is the smallest valid file length for h: header, bitmap,
// vectors, and quantizer state. The index sections are variable-length
// and not included.
func minFileSize(h Header) int64 {
	size := int64(headerLen)
	size += int64((h.Count + 7) / 8)
	size += int64(h.Count) * int64(h.Dimension) * 4
	if h.Quantize > 0 && h.Count > 0 {
		bpv := (int64(h.Dimension)*int64(h.Quantize) + 7) / 8
		size += 2*int64(h.Dimension)*4 + int64(h.Count)*bpv
	}
	return size
}

// InspectFile reads only the header from path.
func InspectFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	return ReadHeader(f)
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return err
}
