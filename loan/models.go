// Package loan defines the loan record and its lifecycle states.
package loan

import (
	"time"

	"github.com/xraph/bnpl/types"
)

// Status is the lifecycle state of a loan.
type Status string

const (
	StatusActive    Status = "active"
	StatusRepaid    Status = "repaid"
	StatusDefaulted Status = "defaulted"
)

// Loan is a single deferred-payment credit draw for a fixed principal.
// Records are append-only: everything except the terminal flags is
// immutable after creation, and loans are never deleted.
//
// IDs are store-assigned, monotonic, 1-based and never reused.
type Loan struct {
	types.Entity
	ID        uint64        `json:"id"`
	Borrower  types.Address `json:"borrower"`
	Merchant  types.Address `json:"merchant"`
	Principal types.Money   `json:"principal"`
	DueAt     time.Time     `json:"due_at"`

	// Terminal flags, each settable at most once. A loan the detector has
	// flagged defaulted may still be repaid afterwards, in which case both
	// flags end up set; Status then reports it as repaid.
	Repaid      bool       `json:"repaid"`
	Defaulted   bool       `json:"defaulted"`
	RepaidAt    *time.Time `json:"repaid_at,omitempty"`
	DefaultedAt *time.Time `json:"defaulted_at,omitempty"`
}

// Status returns the lifecycle state derived from the terminal flags.
func (l *Loan) Status() Status {
	switch {
	case l.Repaid:
		return StatusRepaid
	case l.Defaulted:
		return StatusDefaulted
	default:
		return StatusActive
	}
}

// IsTerminal reports whether the loan has reached a terminal state.
func (l *Loan) IsTerminal() bool {
	return l.Repaid || l.Defaulted
}

// Overdue reports whether the loan is past due at the given instant.
// Repaid loans are never overdue.
func (l *Loan) Overdue(now time.Time) bool {
	return !l.Repaid && !now.Before(l.DueAt)
}

// DaysOverdue returns the whole days elapsed past the due time, floored,
// or 0 if the loan is not yet due.
func (l *Loan) DaysOverdue(now time.Time) int64 {
	if now.Before(l.DueAt) {
		return 0
	}
	return int64(now.Sub(l.DueAt) / (24 * time.Hour))
}

// ListOpts filters loan history queries.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
