package gigavector

import (
	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/internal/rng"
)

// MemoryUnlimited disables the soft memory budget entirely.
const MemoryUnlimited int64 = -1

// DefaultMemoryLimitMB is the budget applied when none is configured.
const DefaultMemoryLimitMB int64 = 64

// Options configures an Engine.
type Options struct {
	// IndexType selects the search backend. Default is exact scan.
	IndexType index.Type

	// MaxVectors is a hard cap on slot count, including tombstones.
	// Zero means unbounded.
	MaxVectors int

	// MemoryLimitMB is the soft budget for tracked allocations. Zero
	// applies DefaultMemoryLimitMB; MemoryUnlimited disables the budget.
	MemoryLimitMB int64

	// Quantize enables scalar quantization at 4 or 8 bits per dimension.
	// Zero disables it. Raw floats are kept either way.
	Quantize int

	// LSHSeed seeds hyperplane generation for the LSH backend. Zero
	// selects the default seed. Not persisted: snapshots carry the
	// derived hyperplanes instead.
	LSHSeed uint64

	// Logger receives operation logs. Defaults to a silent logger.
	Logger *Logger
}

// DefaultOptions returns the options applied by Open before the caller's
// option functions run.
func DefaultOptions() Options {
	return Options{
		IndexType: index.TypeFlat,
		LSHSeed:   rng.DefaultSeed,
		Logger:    NoopLogger(),
	}
}

// budgetBytes resolves MemoryLimitMB to a tracker budget in bytes.
func (o Options) budgetBytes() int64 {
	switch {
	case o.MemoryLimitMB == MemoryUnlimited:
		return 0
	case o.MemoryLimitMB == 0:
		return DefaultMemoryLimitMB * 1024 * 1024
	default:
		return o.MemoryLimitMB * 1024 * 1024
	}
}
