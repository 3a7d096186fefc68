package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/persistence"
)

// writeSnapshot creates a small flat-index snapshot file and returns
// its path and raw bytes.
func writeSnapshot(t *testing.T, dir string) (string, []byte) {
	t.Helper()

	s := &persistence.Snapshot{
		Header: persistence.Header{
			Dimension:  4,
			Count:      3,
			MaxVectors: 100,
		},
		Deleted: []byte{0x02}, // slot 1 tombstoned
		Vectors: []float32{
			1, 2, 3, 4,
			5, 6, 7, 8,
			9, 10, 11, 12,
		},
	}
	path := filepath.Join(dir, "db.gvem")
	require.NoError(t, persistence.SaveFile(s, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return path, raw
}

func TestCreateInspectRestore(t *testing.T) {
	dir := t.TempDir()
	src, raw := writeSnapshot(t, dir)
	bak := filepath.Join(dir, "db.gvbak")

	h, err := Create(src, bak, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, uint64(3), h.VectorCount)
	assert.Equal(t, uint64(4), h.Dimension)
	assert.Equal(t, index.TypeFlat, h.IndexType)
	assert.Equal(t, uint64(len(raw)), h.OriginalSize)
	assert.Equal(t, uint64(0), h.CompressedSize)
	assert.False(t, h.Compressed())
	assert.False(t, h.Encrypted())
	assert.Len(t, h.Checksum, 64)

	got, err := Inspect(bak)
	require.NoError(t, err)
	assert.True(t, h.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = h.CreatedAt
	assert.Equal(t, h, got)

	require.NoError(t, Verify(bak))

	dst := filepath.Join(dir, "restored.gvem")
	require.NoError(t, Restore(bak, dst, DefaultRestoreOptions()))

	restored, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, raw, restored)
}

func TestCompressionCodecs(t *testing.T) {
	for _, codec := range []Codec{CodecZstd, CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			dir := t.TempDir()
			src, raw := writeSnapshot(t, dir)
			bak := filepath.Join(dir, "db.gvbak")

			h, err := Create(src, bak, Options{Codec: codec, VerifyAfter: true})
			require.NoError(t, err)
			assert.True(t, h.Compressed())
			assert.Equal(t, codec, h.Codec())
			assert.NotZero(t, h.CompressedSize)

			dst := filepath.Join(dir, "restored.gvem")
			require.NoError(t, Restore(bak, dst, DefaultRestoreOptions()))

			restored, err := os.ReadFile(dst)
			require.NoError(t, err)
			assert.Equal(t, raw, restored)
		})
	}
}

func TestEncryption(t *testing.T) {
	dir := t.TempDir()
	src, raw := writeSnapshot(t, dir)
	bak := filepath.Join(dir, "db.gvbak")

	h, err := Create(src, bak, Options{Key: "hunter2", VerifyAfter: true})
	require.NoError(t, err)
	assert.True(t, h.Encrypted())

	dst := filepath.Join(dir, "restored.gvem")

	t.Run("MissingKey", func(t *testing.T) {
		err := Restore(bak, dst, DefaultRestoreOptions())
		assert.ErrorIs(t, err, ErrKeyRequired)
	})

	t.Run("WrongKey", func(t *testing.T) {
		opts := DefaultRestoreOptions()
		opts.Key = "*******"
		err := Restore(bak, dst, opts)
		assert.ErrorIs(t, err, ErrDecryptFailed)
	})

	t.Run("CorrectKey", func(t *testing.T) {
		opts := DefaultRestoreOptions()
		opts.Key = "hunter2"
		require.NoError(t, Restore(bak, dst, opts))

		restored, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, raw, restored)
	})
}

func TestCompressedAndEncrypted(t *testing.T) {
	dir := t.TempDir()
	src, raw := writeSnapshot(t, dir)
	bak := filepath.Join(dir, "db.gvbak")

	h, err := Create(src, bak, Options{
		Codec:       CodecZstd,
		Key:         "secret",
		VerifyAfter: true,
	})
	require.NoError(t, err)
	assert.True(t, h.Compressed())
	assert.True(t, h.Encrypted())
	assert.Equal(t, CodecZstd, h.Codec())

	dst := filepath.Join(dir, "restored.gvem")
	require.NoError(t, Restore(bak, dst, RestoreOptions{Key: "secret", VerifyChecksum: true}))

	restored, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, raw, restored)
}

func TestVerifyDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	src, _ := writeSnapshot(t, dir)
	bak := filepath.Join(dir, "db.gvbak")

	_, err := Create(src, bak, DefaultOptions())
	require.NoError(t, err)

	raw, err := os.ReadFile(bak)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(bak, raw, 0o644))

	assert.ErrorIs(t, Verify(bak), ErrChecksumMismatch)
	assert.ErrorIs(t, Restore(bak, filepath.Join(dir, "out.gvem"), DefaultRestoreOptions()), ErrChecksumMismatch)
}

func TestRestoreDestinationExists(t *testing.T) {
	dir := t.TempDir()
	src, raw := writeSnapshot(t, dir)
	bak := filepath.Join(dir, "db.gvbak")

	_, err := Create(src, bak, DefaultOptions())
	require.NoError(t, err)

	// Restoring over the source snapshot must be refused by default.
	err = Restore(bak, src, DefaultRestoreOptions())
	assert.ErrorIs(t, err, ErrDestinationExists)

	opts := DefaultRestoreOptions()
	opts.Overwrite = true
	require.NoError(t, Restore(bak, src, opts))

	restored, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, raw, restored)
}

func TestInspectErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("BadMagic", func(t *testing.T) {
		path := filepath.Join(dir, "bad.gvbak")
		require.NoError(t, os.WriteFile(path, make([]byte, headerSize), 0o644))

		_, err := Inspect(path)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Truncated", func(t *testing.T) {
		path := filepath.Join(dir, "short.gvbak")
		require.NoError(t, os.WriteFile(path, []byte(Magic), 0o644))

		_, err := Inspect(path)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("BadVersion", func(t *testing.T) {
		src, _ := writeSnapshot(t, dir)
		bak := filepath.Join(dir, "v.gvbak")
		_, err := Create(src, bak, DefaultOptions())
		require.NoError(t, err)

		raw, err := os.ReadFile(bak)
		require.NoError(t, err)
		raw[len(Magic)] = 99
		require.NoError(t, os.WriteFile(bak, raw, 0o644))

		_, err = Inspect(bak)
		assert.ErrorIs(t, err, ErrInvalidVersion)
	})
}

func TestParseCodec(t *testing.T) {
	cases := []struct {
		name string
		want Codec
		ok   bool
	}{
		{"", CodecNone, true},
		{"none", CodecNone, true},
		{"zstd", CodecZstd, true},
		{"lz4", CodecLZ4, true},
		{"gzip", CodecNone, false},
	}
	for _, tc := range cases {
		got, err := ParseCodec(tc.name)
		if tc.ok {
			require.NoError(t, err, "codec %q", tc.name)
			assert.Equal(t, tc.want, got)
		} else {
			assert.Error(t, err, "codec %q", tc.name)
		}
	}
}
