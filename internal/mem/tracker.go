// Package mem provides byte accounting against a soft memory budget.
//
// Every buffer the engine owns is reserved here before allocation and
// released on free, so MemoryUsage is exact and a configured budget is
// enforced before any partial allocation becomes visible. Transient search
// and compaction scratch is deliberately not routed through the tracker.
package mem

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded is returned when a reservation would push tracked usage
// above the configured budget.
var ErrBudgetExceeded = errors.New("memory budget exceeded")

// Tracker accounts bytes held by a single engine instance.
// A budget of 0 means unlimited; usage is still tracked for reporting.
type Tracker struct {
	budget int64
	used   int64
}

// NewTracker creates a tracker with the given budget in bytes.
func NewTracker(budget int64) *Tracker {
	if budget < 0 {
		budget = 0
	}
	return &Tracker{budget: budget}
}

// Reserve accounts n additional bytes, failing if the budget would be
// exceeded. On failure nothing is accounted.
func (t *Tracker) Reserve(n int64) error {
	if n < 0 {
		return fmt.Errorf("mem: negative reservation %d", n)
	}
	if t.budget > 0 && t.used+n > t.budget {
		return fmt.Errorf("%w: used %d + request %d > budget %d", ErrBudgetExceeded, t.used, n, t.budget)
	}
	t.used += n
	return nil
}

// Release returns n bytes to the tracker. Releasing more than is held
// clamps to zero, mirroring free-side tolerance in the accounting contract.
func (t *Tracker) Release(n int64) {
	if n >= t.used {
		t.used = 0
		return
	}
	t.used -= n
}

// Regrow accounts a reallocation from oldSize to newSize using the signed
// delta. Shrinks always succeed.
func (t *Tracker) Regrow(oldSize, newSize int64) error {
	if newSize >= oldSize {
		return t.Reserve(newSize - oldSize)
	}
	t.Release(oldSize - newSize)
	return nil
}

// Used returns the tracked byte total.
func (t *Tracker) Used() int64 {
	return t.used
}

// Budget returns the configured budget (0 = unlimited).
func (t *Tracker) Budget() int64 {
	return t.budget
}

// SetBudget replaces the budget. Existing usage above the new budget is
// tolerated; only future reservations are checked.
func (t *Tracker) SetBudget(budget int64) {
	if budget < 0 {
		budget = 0
	}
	t.budget = budget
}
