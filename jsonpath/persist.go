package jsonpath

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// On-disk layout, little-endian: magic "GV_JPI", version u32, path
// count u32, then per path a length-prefixed name, type u32, entry
// count u64, and typed entries. String values are length-prefixed,
// ints are i64, floats are f64, bools one byte; every entry ends with
// its slot as u64.

const (
	// PersistMagic identifies a path-index file.
	PersistMagic = "GV_JPI"
	// PersistVersion is the current file version.
	PersistVersion uint32 = 1
)

var (
	// ErrInvalidMagic is returned when a file does not start with
	// PersistMagic.
	ErrInvalidMagic = errors.New("invalid path-index magic")
	// ErrInvalidVersion is returned for unsupported file versions.
	ErrInvalidVersion = errors.New("unsupported path-index version")
	// ErrCorrupt is returned for truncated or inconsistent files.
	ErrCorrupt = errors.New("corrupt path-index file")
)

// WriteTo encodes the index to w.
func (x *Index) WriteTo(w io.Writer) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(PersistMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, PersistVersion); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(x.paths))); err != nil {
		return err
	}

	for _, p := range x.paths {
		if err := writeString(bw, p.path); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(p.typ)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint64(p.count())); err != nil {
			return err
		}

		switch p.typ {
		case TypeString:
			for _, e := range p.strs {
				if err := writeString(bw, e.value); err != nil {
					return err
				}
				if err := binary.Write(bw, binary.LittleEndian, e.slot); err != nil {
					return err
				}
			}
		case TypeInt:
			for _, e := range p.ints {
				if err := binary.Write(bw, binary.LittleEndian, e.value); err != nil {
					return err
				}
				if err := binary.Write(bw, binary.LittleEndian, e.slot); err != nil {
					return err
				}
			}
		case TypeFloat:
			for _, e := range p.floats {
				if err := binary.Write(bw, binary.LittleEndian, e.value); err != nil {
					return err
				}
				if err := binary.Write(bw, binary.LittleEndian, e.slot); err != nil {
					return err
				}
			}
		case TypeBool:
			for _, e := range p.bools {
				var b byte
				if e.value {
					b = 1
				}
				if err := bw.WriteByte(b); err != nil {
					return err
				}
				if err := binary.Write(bw, binary.LittleEndian, e.slot); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// ReadFrom decodes an index from r, replacing any current state.
func ReadFrom(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(PersistMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, corrupt(err)
	}
	if string(magic) != PersistMagic {
		return nil, ErrInvalidMagic
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, corrupt(err)
	}
	if version != PersistVersion {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}

	var pathCount uint32
	if err := binary.Read(br, binary.LittleEndian, &pathCount); err != nil {
		return nil, corrupt(err)
	}
	if pathCount > MaxPaths {
		return nil, fmt.Errorf("%w: %d paths", ErrCorrupt, pathCount)
	}

	x := New()
	for i := uint32(0); i < pathCount; i++ {
		name, err := readString(br)
		if err != nil {
			return nil, err
		}

		var typ uint32
		if err := binary.Read(br, binary.LittleEndian, &typ); err != nil {
			return nil, corrupt(err)
		}
		if !ValueType(typ).Valid() {
			return nil, fmt.Errorf("%w: path type %d", ErrCorrupt, typ)
		}

		var count uint64
		if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
			return nil, corrupt(err)
		}

		p := &pathIndex{path: name, typ: ValueType(typ)}
		for j := uint64(0); j < count; j++ {
			switch p.typ {
			case TypeString:
				v, err := readString(br)
				if err != nil {
					return nil, err
				}
				slot, err := readSlot(br)
				if err != nil {
					return nil, err
				}
				p.strs = append(p.strs, stringEntry{value: v, slot: slot})
			case TypeInt:
				var v int64
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, corrupt(err)
				}
				slot, err := readSlot(br)
				if err != nil {
					return nil, err
				}
				p.ints = append(p.ints, intEntry{value: v, slot: slot})
			case TypeFloat:
				var v float64
				if err := binary.Read(br, binary.LittleEndian, &v); err != nil {
					return nil, corrupt(err)
				}
				slot, err := readSlot(br)
				if err != nil {
					return nil, err
				}
				p.floats = append(p.floats, floatEntry{value: v, slot: slot})
			case TypeBool:
				b, err := br.ReadByte()
				if err != nil {
					return nil, corrupt(err)
				}
				slot, err := readSlot(br)
				if err != nil {
					return nil, err
				}
				p.bools = append(p.bools, boolEntry{value: b != 0, slot: slot})
			}
		}
		x.paths = append(x.paths, p)
	}
	return x, nil
}

// Save writes the index to path via temp file and rename.
func (x *Index) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := x.WriteTo(f); err != nil {
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

// Load reads an index from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFrom(f)
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", corrupt(err)
	}
	if n >= maxPathLen*16 {
		return "", fmt.Errorf("%w: string length %d", ErrCorrupt, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", corrupt(err)
	}
	return string(buf), nil
}

func readSlot(r io.Reader) (uint64, error) {
	var slot uint64
	if err := binary.Read(r, binary.LittleEndian, &slot); err != nil {
		return 0, corrupt(err)
	}
	return slot, nil
}

func corrupt(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return err
}
