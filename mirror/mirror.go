// Package mirror defines the append-only event records the protocol emits
// and the sink they are delivered to.
//
// The mirror is fire-and-forget by contract: no return value feeds back
// into core state, delivery is never retried, and a failing sink never
// aborts the operation that produced the event. The Sink interface is
// defined locally so deployments can bridge to any event backend at wiring
// time without this package importing it.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/bnpl/id"
	"github.com/xraph/bnpl/types"
)

// Kind discriminates mirror event payloads.
type Kind string

const (
	KindLoanCreated Kind = "loan_created"
	KindRepayment   Kind = "repayment"
	KindDefault     Kind = "default"
	KindDispute     Kind = "dispute"
)

// Event is a single mirrored protocol record.
type Event interface {
	// EventID returns the unique record identity.
	EventID() id.EventID
	// Kind returns the payload discriminator.
	Kind() Kind
	// OccurredAt returns the protocol clock reading when the event fired.
	OccurredAt() time.Time
}

// header carries the fields every event shares.
type header struct {
	ID   id.EventID `json:"id"`
	Time time.Time  `json:"time"`
}

func (h header) EventID() id.EventID   { return h.ID }
func (h header) OccurredAt() time.Time { return h.Time }

func newHeader(now time.Time) header {
	return header{ID: id.NewEventID(), Time: now}
}

// LoanCreated records a new loan and its instant merchant payout.
type LoanCreated struct {
	header
	User     types.Address `json:"user"`
	Merchant types.Address `json:"merchant"`
	LoanID   uint64        `json:"loan_id"`
	Amount   types.Money   `json:"amount"`
	DueAt    time.Time     `json:"due_at"`
}

// Kind implements Event.
func (LoanCreated) Kind() Kind { return KindLoanCreated }

// NewLoanCreated builds a loan-created record stamped at now.
func NewLoanCreated(now time.Time, user, merchant types.Address, loanID uint64, amount types.Money, dueAt time.Time) *LoanCreated {
	return &LoanCreated{
		header:   newHeader(now),
		User:     user,
		Merchant: merchant,
		LoanID:   loanID,
		Amount:   amount,
		DueAt:    dueAt,
	}
}

// Repayment records a repayment attempt, successful or not.
type Repayment struct {
	header
	User     types.Address `json:"user"`
	Merchant types.Address `json:"merchant"`
	LoanID   uint64        `json:"loan_id"`
	Amount   types.Money   `json:"amount"`
	Success  bool          `json:"success"`
}

// Kind implements Event.
func (Repayment) Kind() Kind { return KindRepayment }

// NewRepayment builds a repayment record stamped at now.
func NewRepayment(now time.Time, user, merchant types.Address, loanID uint64, amount types.Money, success bool) *Repayment {
	return &Repayment{
		header:   newHeader(now),
		User:     user,
		Merchant: merchant,
		LoanID:   loanID,
		Amount:   amount,
		Success:  success,
	}
}

// Default records a processed loan default.
type Default struct {
	header
	User          types.Address `json:"user"`
	LoanID        uint64        `json:"loan_id"`
	OverdueAmount types.Money   `json:"overdue_amount"`
	DaysOverdue   int64         `json:"days_overdue"`
}

// Kind implements Event.
func (Default) Kind() Kind { return KindDefault }

// NewDefault builds a default record stamped at now.
func NewDefault(now time.Time, user types.Address, loanID uint64, overdue types.Money, daysOverdue int64) *Default {
	return &Default{
		header:        newHeader(now),
		User:          user,
		LoanID:        loanID,
		OverdueAmount: overdue,
		DaysOverdue:   daysOverdue,
	}
}

// Dispute records a logged dispute. The protocol performs no adjudication;
// the record is the entire feature.
type Dispute struct {
	header
	DisputeID id.DisputeID  `json:"dispute_id"`
	User      types.Address `json:"user"`
	Merchant  types.Address `json:"merchant"`
	LoanID    uint64        `json:"loan_id"`
	Reason    string        `json:"reason"`
}

// Kind implements Event.
func (Dispute) Kind() Kind { return KindDispute }

// NewDispute builds a dispute record stamped at now.
func NewDispute(now time.Time, user, merchant types.Address, loanID uint64, reason string) *Dispute {
	return &Dispute{
		header:    newHeader(now),
		DisputeID: id.NewDisputeID(),
		User:      user,
		Merchant:  merchant,
		LoanID:    loanID,
		Reason:    reason,
	}
}

// Sink receives mirrored events. Implementations must not assume the
// engine inspects the returned error; it is logged and dropped.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc is an adapter to use a plain function as a Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// NopSink discards every event.
func NopSink() Sink {
	return SinkFunc(func(context.Context, Event) error { return nil })
}

// SlogSink logs every event through the given logger at info level.
func SlogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(_ context.Context, e Event) error {
		logger.Info("mirror event",
			"kind", e.Kind(),
			"event_id", e.EventID().String(),
			"time", e.OccurredAt(),
		)
		return nil
	})
}
