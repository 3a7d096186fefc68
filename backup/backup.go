// Package backup archives engine snapshot files into a framed backup
// format with optional compression and encryption.
//
// Layout, all integers little-endian:
//
//	magic "GVBAK"
//	version u32, flags u32
//	created_at u64 (unix seconds)
//	vector_count u64, dimension u64, index_type u32
//	original_size u64, compressed_size u64
//	checksum, 64 bytes hex SHA-256
//	payload
//
// The payload is the snapshot file, compressed first and encrypted
// second when the corresponding flags are set. The checksum covers the
// whole backup file with the checksum region zeroed; compressed_size is
// the on-disk payload length when it differs from original_size, zero
// otherwise.
package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/persistence"
)

const (
	// Magic identifies a backup file.
	Magic = "GVBAK"
	// Version is the current backup format version.
	Version uint32 = 1
)

// Flag bits in the header flags field.
const (
	// FlagCompressed marks a compressed payload; zstd unless FlagLZ4 is
	// also set.
	FlagCompressed uint32 = 0x01
	// FlagEncrypted marks an AES-256-GCM encrypted payload.
	FlagEncrypted uint32 = 0x02
	// FlagIncremental is reserved.
	FlagIncremental uint32 = 0x04
	// FlagLZ4 selects the lz4 codec; only valid with FlagCompressed.
	FlagLZ4 uint32 = 0x08
)

const (
	headerSize     = len(Magic) + 4 + 4 + 8 + 8 + 8 + 4 + 8 + 8 + checksumLen
	checksumOffset = headerSize - checksumLen
	checksumLen    = 64
)

var (
	// ErrInvalidMagic is returned when a file does not start with Magic.
	ErrInvalidMagic = errors.New("invalid backup magic")
	// ErrInvalidVersion is returned for unsupported backup versions.
	ErrInvalidVersion = errors.New("unsupported backup version")
	// ErrTruncated is returned when a file is shorter than its header
	// claims.
	ErrTruncated = errors.New("truncated backup")
	// ErrChecksumMismatch is returned when the stored checksum does not
	// match the file contents.
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
	// ErrKeyRequired is returned when restoring an encrypted backup
	// without a key.
	ErrKeyRequired = errors.New("backup is encrypted, key required")
	// ErrDestinationExists is returned when the restore target exists
	// and overwrite was not requested.
	ErrDestinationExists = errors.New("destination already exists")
)

// Header is the decoded fixed-size portion of a backup file.
type Header struct {
	Version        uint32
	Flags          uint32
	CreatedAt      time.Time
	VectorCount    uint64
	Dimension      uint64
	IndexType      index.Type
	OriginalSize   uint64
	CompressedSize uint64
	Checksum       string
}

// Compressed reports whether the payload is compressed.
func (h Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// Encrypted reports whether the payload is encrypted.
func (h Header) Encrypted() bool { return h.Flags&FlagEncrypted != 0 }

// Codec returns the payload compression codec.
func (h Header) Codec() Codec {
	switch {
	case !h.Compressed():
		return CodecNone
	case h.Flags&FlagLZ4 != 0:
		return CodecLZ4
	default:
		return CodecZstd
	}
}

// payloadSize is the expected on-disk payload length.
func (h Header) payloadSize() uint64 {
	if h.CompressedSize > 0 {
		return h.CompressedSize
	}
	return h.OriginalSize
}

// Options controls backup creation.
type Options struct {
	// Codec selects payload compression; CodecNone stores the snapshot
	// verbatim.
	Codec Codec
	// Key enables AES-256-GCM encryption when non-empty.
	Key string
	// VerifyAfter re-reads and checksums the backup after writing it.
	VerifyAfter bool
}

// DefaultOptions returns the default creation options: no compression,
// no encryption, verify after writing.
func DefaultOptions() Options {
	return Options{Codec: CodecNone, VerifyAfter: true}
}

// RestoreOptions controls backup restoration.
type RestoreOptions struct {
	// Key decrypts an encrypted backup.
	Key string
	// Overwrite allows replacing an existing destination file.
	Overwrite bool
	// VerifyChecksum validates the backup checksum before restoring.
	VerifyChecksum bool
}

// DefaultRestoreOptions returns the default restore options: verify the
// checksum, never overwrite.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{VerifyChecksum: true}
}

// Create archives the snapshot file at snapshotPath into a backup at
// backupPath and returns the written header.
func Create(snapshotPath, backupPath string, opts Options) (Header, error) {
	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return Header{}, fmt.Errorf("read snapshot: %w", err)
	}

	sh, err := persistence.ReadHeader(bytes.NewReader(raw))
	if err != nil {
		return Header{}, fmt.Errorf("parse snapshot: %w", err)
	}

	h := Header{
		Version:      Version,
		CreatedAt:    time.Now().Truncate(time.Second),
		VectorCount:  sh.Count,
		Dimension:    sh.Dimension,
		IndexType:    index.Type(sh.IndexType),
		OriginalSize: uint64(len(raw)),
	}

	payload := raw
	if opts.Codec != CodecNone {
		payload, err = compress(opts.Codec, payload)
		if err != nil {
			return Header{}, err
		}
		h.Flags |= FlagCompressed
		if opts.Codec == CodecLZ4 {
			h.Flags |= FlagLZ4
		}
	}
	if opts.Key != "" {
		payload, err = encrypt(payload, opts.Key)
		if err != nil {
			return Header{}, err
		}
		h.Flags |= FlagEncrypted
	}
	if h.Flags != 0 {
		h.CompressedSize = uint64(len(payload))
	}

	out := make([]byte, 0, headerSize+len(payload))
	out = h.append(out)
	out = append(out, payload...)

	// The checksum region is zero at this point; digest then patch.
	sum := sha256.Sum256(out)
	copy(out[checksumOffset:], hex.EncodeToString(sum[:]))
	h.Checksum = hex.EncodeToString(sum[:])

	if err := writeFile(backupPath, out); err != nil {
		return Header{}, err
	}

	if opts.VerifyAfter {
		if err := Verify(backupPath); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

// Restore unpacks the backup at backupPath into a snapshot file at
// snapshotPath.
func Restore(backupPath, snapshotPath string, opts RestoreOptions) error {
	if !opts.Overwrite {
		if _, err := os.Stat(snapshotPath); err == nil {
			return fmt.Errorf("%w: %s", ErrDestinationExists, snapshotPath)
		}
	}
	if opts.VerifyChecksum {
		if err := Verify(backupPath); err != nil {
			return err
		}
	}

	raw, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	h, err := parseHeader(raw)
	if err != nil {
		return err
	}
	if uint64(len(raw)-headerSize) < h.payloadSize() {
		return fmt.Errorf("%w: payload %d bytes, expected %d",
			ErrTruncated, len(raw)-headerSize, h.payloadSize())
	}
	payload := raw[headerSize:]

	if h.Encrypted() {
		if opts.Key == "" {
			return ErrKeyRequired
		}
		payload, err = decrypt(payload, opts.Key)
		if err != nil {
			return err
		}
	}
	if h.Compressed() {
		payload, err = decompress(h.Codec(), payload)
		if err != nil {
			return err
		}
	}

	if _, err := persistence.ReadHeader(bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("restored payload: %w", err)
	}
	return writeFile(snapshotPath, payload)
}

// Inspect reads the header of the backup at path.
func Inspect(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return parseHeader(buf)
}

// Verify checks the backup's version, size, and checksum.
func Verify(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	h, err := parseHeader(raw)
	if err != nil {
		return err
	}
	if want := uint64(headerSize) + h.payloadSize(); uint64(len(raw)) < want {
		return fmt.Errorf("%w: %d bytes, expected at least %d",
			ErrTruncated, len(raw), want)
	}

	stored := make([]byte, checksumLen)
	copy(stored, raw[checksumOffset:checksumOffset+checksumLen])
	for i := checksumOffset; i < checksumOffset+checksumLen; i++ {
		raw[i] = 0
	}
	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != string(stored) {
		return ErrChecksumMismatch
	}
	return nil
}

// append serializes the header with a zeroed checksum region.
func (h Header) append(out []byte) []byte {
	out = append(out, Magic...)
	out = binary.LittleEndian.AppendUint32(out, h.Version)
	out = binary.LittleEndian.AppendUint32(out, h.Flags)
	out = binary.LittleEndian.AppendUint64(out, uint64(h.CreatedAt.Unix()))
	out = binary.LittleEndian.AppendUint64(out, h.VectorCount)
	out = binary.LittleEndian.AppendUint64(out, h.Dimension)
	out = binary.LittleEndian.AppendUint32(out, uint32(h.IndexType))
	out = binary.LittleEndian.AppendUint64(out, h.OriginalSize)
	out = binary.LittleEndian.AppendUint64(out, h.CompressedSize)
	out = append(out, make([]byte, checksumLen)...)
	return out
}

func parseHeader(raw []byte) (Header, error) {
	if len(raw) < headerSize {
		return Header{}, fmt.Errorf("%w: %d bytes, header is %d",
			ErrTruncated, len(raw), headerSize)
	}
	if string(raw[:len(Magic)]) != Magic {
		return Header{}, ErrInvalidMagic
	}

	h := Header{}
	off := len(Magic)
	h.Version = binary.LittleEndian.Uint32(raw[off:])
	off += 4
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}
	h.Flags = binary.LittleEndian.Uint32(raw[off:])
	off += 4
	h.CreatedAt = time.Unix(int64(binary.LittleEndian.Uint64(raw[off:])), 0)
	off += 8
	h.VectorCount = binary.LittleEndian.Uint64(raw[off:])
	off += 8
	h.Dimension = binary.LittleEndian.Uint64(raw[off:])
	off += 8
	h.IndexType = index.Type(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	h.OriginalSize = binary.LittleEndian.Uint64(raw[off:])
	off += 8
	h.CompressedSize = binary.LittleEndian.Uint64(raw[off:])
	off += 8
	h.Checksum = string(raw[off : off+checksumLen])
	return h, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
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
