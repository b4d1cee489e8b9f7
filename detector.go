package bnpl

import (
	"context"

	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/loan"
	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/types"
)

// DefaultDetector evaluates overdue loans and processes defaults: it flags
// the borrower in the credit ledger, freezes custody on a best-effort
// basis and writes a default record to the mirror. It never moves funds
// and never touches the pool; a defaulted loan's outstanding credit stays
// on the books until repaid.
type DefaultDetector struct {
	p *Protocol
}

// Detector returns the default detector component.
func (p *Protocol) Detector() *DefaultDetector { return &DefaultDetector{p: p} }

// CheckAndProcessDefault evaluates a single loan. Callable by the admin or
// the orchestrator. Returns true when a default was processed, false when
// the loan is already repaid or the borrower already defaulted. A missing
// loan or a loan not yet past due plus grace is an error.
//
// The single-loan path flags only the credit ledger; it does not mark the
// loan record itself defaulted. Only the batch sweep notifies the
// orchestrator to flip loan records.
func (d *DefaultDetector) CheckAndProcessDefault(ctx context.Context, caller, user types.Address, loanID uint64) (bool, error) {
	if err := d.p.roster.RequireAdminOrOrchestrator(caller); err != nil {
		return false, err
	}
	if user.IsZero() {
		return false, ErrInvalidIdentity
	}

	if err := d.p.enterMutation(); err != nil {
		return false, err
	}
	defer d.p.mu.Unlock()

	return d.p.processDefault(ctx, user, loanID)
}

// BatchCheckDefaults evaluates user/loan pairs in one sweep. Callable by
// the admin or the orchestrator. Unlike the single path, an ineligible
// pair is skipped rather than aborting the batch, and each processed
// default additionally notifies the orchestrator to flip the loan record.
// Returns the number of defaults processed.
func (d *DefaultDetector) BatchCheckDefaults(ctx context.Context, caller types.Address, users []types.Address, loanIDs []uint64) (int, error) {
	if err := d.p.roster.RequireAdminOrOrchestrator(caller); err != nil {
		return 0, err
	}
	if len(users) != len(loanIDs) {
		return 0, ErrBatchLengthMismatch
	}

	if err := d.p.enterMutation(); err != nil {
		return 0, err
	}
	defer d.p.mu.Unlock()

	processed := 0
	for i, user := range users {
		if user.IsZero() {
			continue
		}
		ok, err := d.p.processDefault(ctx, user, loanIDs[i])
		if err != nil || !ok {
			if err != nil {
				d.p.logger.Debug("batch default check skipped pair",
					"user", user,
					"loan_id", loanIDs[i],
					"reason", err,
				)
			}
			continue
		}
		processed++

		// Orchestrator notification, best effort: the credit-side default
		// already happened and is not rolled back if flipping the loan
		// record fails.
		if err := d.p.markLoanDefaulted(ctx, user, loanIDs[i]); err != nil {
			d.p.logger.Warn("loan record not flagged after default",
				"user", user,
				"loan_id", loanIDs[i],
				"error", err,
			)
		}
	}

	d.p.logger.Info("batch default sweep finished",
		"pairs", len(users),
		"processed", processed,
	)
	return processed, nil
}

// Overdue reports whether a loan is past due plus the grace period.
func (d *DefaultDetector) Overdue(ctx context.Context, loanID uint64) (bool, error) {
	l, err := d.p.store.GetLoan(ctx, loanID)
	if err != nil {
		return false, err
	}
	if l.Repaid {
		return false, nil
	}
	return d.p.pastGrace(l), nil
}

// ──────────────────────────────────────────────────
// Internal transitions (callers hold p.mu)
// ──────────────────────────────────────────────────

// pastGrace reports whether now has reached dueAt plus the grace period.
// Boundary inclusive: a loan becomes eligible exactly at that instant.
func (p *Protocol) pastGrace(l *loan.Loan) bool {
	return !p.now().Before(l.DueAt.Add(p.gracePeriod))
}

// processDefault runs the shared eligibility and processing logic for one
// user/loan pair.
func (p *Protocol) processDefault(ctx context.Context, user types.Address, loanID uint64) (bool, error) {
	l, err := p.store.GetLoan(ctx, loanID)
	if err != nil {
		return false, err
	}
	if l.Borrower != user {
		return false, ValidationError{Field: "user", Message: "loan does not belong to user"}
	}
	if l.Repaid {
		return false, nil
	}
	if !p.pastGrace(l) {
		return false, ErrNotOverdue
	}

	acct, err := p.store.GetCreditAccount(ctx, user)
	if err != nil && !IsNotFound(err) {
		return false, err
	}
	if acct != nil && acct.Defaulted {
		return false, nil
	}

	now := p.now()
	daysOverdue := l.DaysOverdue(now)

	if err := p.markAccountDefaulted(ctx, user); err != nil {
		return false, err
	}

	// Custody freeze is soft: a missing Freezer or a failed call is
	// logged and reported to plugins, never unwound.
	if freezer, ok := p.asset.(custody.Freezer); ok {
		if ferr := freezer.Freeze(ctx, user); ferr != nil {
			p.logger.Warn("custody freeze failed", "user", user, "error", ferr)
			p.plugins.EmitFreezeFailed(ctx, user.String(), ferr)
		}
	}

	p.emit(mirror.NewDefault(now, user, l.ID, l.Principal, daysOverdue))
	p.plugins.EmitLoanDefaulted(ctx, l, daysOverdue)
	p.logger.Info("default processed",
		"user", user,
		"loan_id", l.ID,
		"overdue", l.Principal,
		"days_overdue", daysOverdue,
	)

	return true, nil
}
