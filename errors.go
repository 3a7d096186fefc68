package gigavector

import (
	"errors"
	"fmt"

	"github.com/gigavector/gigavector/index"
	"github.com/gigavector/gigavector/internal/mem"
	"github.com/gigavector/gigavector/store"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotFound is returned when a slot is out of range or tombstoned.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the engine has been closed.
	ErrClosed = errors.New("engine is closed")

	// ErrCapacityExceeded is returned when the hard vector cap is hit.
	ErrCapacityExceeded = store.ErrCapacityExceeded

	// ErrBudgetExceeded is returned when an allocation would exceed the
	// memory budget.
	ErrBudgetExceeded = mem.ErrBudgetExceeded
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrInvalidIndexType indicates an unknown index type.
type ErrInvalidIndexType struct {
	IndexType index.Type
}

func (e *ErrInvalidIndexType) Error() string {
	return fmt.Sprintf("invalid index type: %d", uint32(e.IndexType))
}

// ErrInvalidQuantize indicates an unsupported quantization width.
type ErrInvalidQuantize struct {
	Bits int
}

func (e *ErrInvalidQuantize) Error() string {
	return fmt.Sprintf("invalid quantize bits: %d (must be 0, 4 or 8)", e.Bits)
}
