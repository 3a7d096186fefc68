package persistence

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Header: Header{
			Dimension:     2,
			Count:         3,
			IndexType:     indexGraph,
			Quantize:      0,
			MaxVectors:    100,
			MemoryLimitMB: 64,
		},
		Deleted: []byte{0x02}, // slot 1 tombstoned
		Vectors: []float32{0, 0, 1, 1, 2, 2},
		Graph: &GraphState{
			M:              16,
			EfConstruction: 64,
			Neighbors:      [][]uint64{{1, 2}, {0}, {0}},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Run("Graph", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, sampleSnapshot().Write(&buf))

		got, err := Read(&buf)
		require.NoError(t, err)
		assert.Equal(t, sampleSnapshot(), got)
	})

	t.Run("LSHWithQuant", func(t *testing.T) {
		s := &Snapshot{
			Header: Header{
				Dimension: 2,
				Count:     2,
				IndexType: indexLSH,
				Quantize:  8,
			},
			Deleted: []byte{0x00},
			Vectors: []float32{0, 0, 1, 1},
			Quant: &QuantState{
				Min:  []float32{0, 0},
				Max:  []float32{1, 1},
				Data: []byte{0x00, 0x00, 0xFF, 0xFF},
			},
			LSH: &LSHState{
				Tables:      2,
				Bits:        2,
				Buckets:     4,
				Hyperplanes: [][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}},
			},
		}
		var buf bytes.Buffer
		require.NoError(t, s.Write(&buf))

		got, err := Read(&buf)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	})

	t.Run("EmptyFlat", func(t *testing.T) {
		s := &Snapshot{Header: Header{Dimension: 4, IndexType: indexFlat}}
		var buf bytes.Buffer
		require.NoError(t, s.Write(&buf))

		got, err := Read(&buf)
		require.NoError(t, err)
		assert.Equal(t, s.Header, got.Header)
		assert.Empty(t, got.Vectors)
	})

	t.Run("EmptyGraphKeepsParams", func(t *testing.T) {
		s := &Snapshot{
			Header: Header{Dimension: 4, IndexType: indexGraph},
			Graph:  &GraphState{M: 16, EfConstruction: 64},
		}
		var buf bytes.Buffer
		require.NoError(t, s.Write(&buf))

		got, err := Read(&buf)
		require.NoError(t, err)
		require.NotNil(t, got.Graph)
		assert.Equal(t, uint64(16), got.Graph.M)
		assert.Equal(t, uint64(64), got.Graph.EfConstruction)
		assert.Empty(t, got.Graph.Neighbors)
	})

	t.Run("EmptyLSHKeepsHyperplanes", func(t *testing.T) {
		s := &Snapshot{
			Header: Header{Dimension: 2, IndexType: indexLSH},
			LSH: &LSHState{
				Tables:      2,
				Bits:        2,
				Buckets:     4,
				Hyperplanes: [][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}},
			},
		}
		var buf bytes.Buffer
		require.NoError(t, s.Write(&buf))

		got, err := Read(&buf)
		require.NoError(t, err)
		require.NotNil(t, got.LSH)
		assert.Equal(t, s.LSH, got.LSH)
	})
}

func TestSnapshotHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleSnapshot().Write(&buf))
	raw := buf.Bytes()

	assert.Equal(t, []byte("GVEM"), raw[:4])
	assert.Equal(t, Version, binary.LittleEndian.Uint32(raw[4:8]))
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(raw[8:16]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(raw[16:24]))
	assert.Equal(t, uint32(indexGraph), binary.LittleEndian.Uint32(raw[24:28]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[28:32]))
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(raw[32:40]))
	assert.Equal(t, uint64(64), binary.LittleEndian.Uint64(raw[40:48]))
	// Bitmap follows immediately.
	assert.Equal(t, byte(0x02), raw[48])
}

func TestSnapshotErrors(t *testing.T) {
	t.Run("BadMagic", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte("NOPE\x01\x00\x00\x00")))
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("BadVersion", func(t *testing.T) {
		var buf bytes.Buffer
		buf.WriteString(Magic)
		binary.Write(&buf, binary.LittleEndian, uint32(99))
		_, err := Read(&buf)
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})

	t.Run("Truncated", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, sampleSnapshot().Write(&buf))
		raw := buf.Bytes()

		for _, cut := range []int{2, 6, 20, 50, len(raw) - 1} {
			_, err := Read(bytes.NewReader(raw[:cut]))
			assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
		}
	})

	t.Run("CorruptHeader", func(t *testing.T) {
		// A header whose fields pass the magic and version checks can
		// still describe an impossible snapshot. Each patch below must be
		// rejected before any section allocation happens.
		patches := map[string]func(raw []byte){
			"ZeroDimension": func(raw []byte) {
				binary.LittleEndian.PutUint64(raw[8:16], 0)
			},
			"HugeDimension": func(raw []byte) {
				binary.LittleEndian.PutUint64(raw[8:16], 1<<25)
			},
			"CountTopBit": func(raw []byte) {
				binary.LittleEndian.PutUint64(raw[16:24], 1<<63)
			},
			"CountDimensionOverflow": func(raw []byte) {
				binary.LittleEndian.PutUint64(raw[8:16], 1<<24)
				binary.LittleEndian.PutUint64(raw[16:24], 1<<40)
			},
			"BadIndexType": func(raw []byte) {
				binary.LittleEndian.PutUint32(raw[24:28], 7)
			},
			"BadQuantize": func(raw []byte) {
				binary.LittleEndian.PutUint32(raw[28:32], 3)
			},
		}
		for name, patch := range patches {
			t.Run(name, func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, sampleSnapshot().Write(&buf))
				raw := buf.Bytes()
				patch(raw)

				_, err := Read(bytes.NewReader(raw))
				assert.ErrorIs(t, err, ErrCorrupt)
			})
		}
	})

	t.Run("CorruptLSHGeometry", func(t *testing.T) {
		s := &Snapshot{
			Header: Header{Dimension: 2, IndexType: indexLSH},
			LSH: &LSHState{
				Tables:      1,
				Bits:        1,
				Buckets:     2,
				Hyperplanes: [][]float32{{1, 0}},
			},
		}
		var buf bytes.Buffer
		require.NoError(t, s.Write(&buf))
		raw := buf.Bytes()
		// With no vectors the LSH section starts right after the header,
		// and tables is its first word.
		binary.LittleEndian.PutUint64(raw[headerLen:], 1<<20)

		_, err := Read(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestSnapshotFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.gvem")
	require.NoError(t, SaveFile(sampleSnapshot(), path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)

	h, err := InspectFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot().Header, h)

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent"))
		assert.Error(t, err)
	})

	t.Run("Undersized", func(t *testing.T) {
		// A header promising more data than the file holds must fail the
		// size check instead of attempting the full read.
		var buf bytes.Buffer
		require.NoError(t, sampleSnapshot().Write(&buf))
		short := filepath.Join(t.TempDir(), "short.gvem")
		require.NoError(t, os.WriteFile(short, buf.Bytes()[:headerLen], 0o644))

		_, err := LoadFile(short)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}
