package bnpl

import (
	"context"
	"errors"
	"strings"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/types"
)

// CreateLoan opens a loan for the borrower and settles the merchant in one
// atomic step: credit is reserved, the pool pays out the principal net of
// the protocol fee, the loan record is written and the active-loan pointer
// set. Any refused or failed custody transfer unwinds every prior write
// and surfaces ErrTransferFailed.
//
// Preconditions, checked in order before anything mutates: borrower not
// defaulted, no active loan, amount within available credit, KYC passed
// (when the custody layer exposes a probe), amount within available pool
// liquidity.
func (p *Protocol) CreateLoan(ctx context.Context, borrower, merchant types.Address, amount types.Money) (*loan.Loan, error) {
	if borrower.IsZero() || merchant.IsZero() {
		return nil, ErrInvalidIdentity
	}
	if err := p.validAmount(amount); err != nil {
		return nil, err
	}

	if err := p.enterMutation(); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	acct, err := p.store.GetCreditAccount(ctx, borrower)
	if err != nil {
		if IsNotFound(err) {
			// No account means no limit.
			return nil, ErrInsufficientCredit
		}
		return nil, err
	}
	if err := p.checkDraw(acct, amount); err != nil {
		return nil, err
	}

	// A custody layer without a KYC probe treats every user as passed.
	if prober, ok := p.asset.(custody.KycProber); ok {
		passed, kerr := prober.IsKycPassed(ctx, borrower)
		if kerr != nil {
			return nil, kerr
		}
		if !passed {
			return nil, ErrKycNotPassed
		}
	}

	pool, err := p.poolState(ctx)
	if err != nil {
		return nil, err
	}
	if pool.Available().LessThan(amount) {
		return nil, ErrInsufficientLiquidity
	}

	now := p.now()
	fee := amount.BpsOf(p.feeBps)

	// All checks passed; start mutating. The credit reservation comes
	// first so the snapshot below is the only thing needed to unwind it.
	prevAcct := snapshotAccount(acct)
	if err := p.useCredit(ctx, acct, amount); err != nil {
		return nil, err
	}

	if err := p.settleMerchant(ctx, pool, merchant, amount, fee, 0); err != nil {
		p.compensateAccount(ctx, &prevAcct)
		return nil, err
	}
	if !fee.IsZero() {
		if err := p.collectFees(ctx, pool, fee); err != nil {
			p.unwindSettlement(ctx, &prevAcct, pool, merchant, amount, fee)
			return nil, err
		}
	}

	l := &loan.Loan{
		Entity:    types.EntityAt(now),
		Borrower:  borrower,
		Merchant:  merchant,
		Principal: amount,
		DueAt:     now.Add(p.repaymentWindow),
	}
	if err := p.store.CreateLoan(ctx, l); err != nil {
		p.unwindSettlement(ctx, &prevAcct, pool, merchant, amount, fee)
		return nil, err
	}
	if err := p.store.SetActiveLoanID(ctx, borrower, l.ID); err != nil {
		// The loan row is already written and rows are append-only; the
		// pointer is the only thing missing. Surface the error loudly.
		p.logger.Error("active loan pointer not set, ledgers diverge",
			"loan_id", l.ID,
			"borrower", borrower,
			"error", err,
		)
		return nil, err
	}

	p.emit(mirror.NewLoanCreated(now, borrower, merchant, l.ID, amount, l.DueAt))
	p.plugins.EmitLoanCreated(ctx, l)
	p.logger.Info("loan created",
		"loan_id", l.ID,
		"borrower", borrower,
		"merchant", merchant,
		"principal", amount,
		"fee", fee,
		"due_at", l.DueAt,
	)

	return l, nil
}

// RepayLoan repays a loan in full. Borrower-only; partial repayment is not
// supported. The principal is pulled from the borrower before any ledger
// writes, so a refused transfer changes nothing except a failed-repayment
// mirror record. A store write failing after the pull unwinds every prior
// write and refunds the principal. Repaying an already-defaulted loan is
// allowed and does not clear the borrower's defaulted flag.
func (p *Protocol) RepayLoan(ctx context.Context, caller types.Address, loanID uint64) error {
	if err := p.enterMutation(); err != nil {
		return err
	}
	defer p.mu.Unlock()

	l, err := p.store.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if l.Repaid {
		return ErrLoanAlreadyRepaid
	}
	if caller != l.Borrower {
		return ErrNotBorrower
	}

	pool, err := p.poolState(ctx)
	if err != nil {
		return err
	}

	now := p.now()
	prevPool := *pool
	if err := p.receiveRepayment(ctx, pool, l.Borrower, l.Principal, l.ID); err != nil {
		if errors.Is(err, ErrTransferFailed) {
			p.emit(mirror.NewRepayment(now, l.Borrower, l.Merchant, l.ID, l.Principal, false))
			return err
		}
		// The pull landed but the pool write did not.
		p.unwindRepayment(ctx, &prevPool, l.Borrower, l.Principal)
		return err
	}

	acct, err := p.creditAccount(ctx, l.Borrower)
	if err != nil {
		p.unwindRepayment(ctx, &prevPool, l.Borrower, l.Principal)
		return err
	}
	prevAcct := snapshotAccount(acct)
	if err := p.restoreCredit(ctx, acct, l.Principal); err != nil {
		p.unwindRepayment(ctx, &prevPool, l.Borrower, l.Principal)
		return err
	}
	if err := p.store.ClearActiveLoanID(ctx, l.Borrower); err != nil {
		p.compensateAccount(ctx, &prevAcct)
		p.unwindRepayment(ctx, &prevPool, l.Borrower, l.Principal)
		return err
	}
	// The repaid flag is terminal and has no reverse writer, so it is the
	// last write: every earlier step can still be unwound.
	if err := p.store.MarkLoanRepaid(ctx, l.ID, now); err != nil {
		if aerr := p.store.SetActiveLoanID(ctx, l.Borrower, l.ID); aerr != nil {
			p.logger.Error("active loan pointer not restored, ledgers diverge",
				"loan_id", l.ID,
				"borrower", l.Borrower,
				"error", aerr,
			)
		}
		p.compensateAccount(ctx, &prevAcct)
		p.unwindRepayment(ctx, &prevPool, l.Borrower, l.Principal)
		return err
	}

	l.Repaid = true
	l.RepaidAt = &now

	p.emit(mirror.NewRepayment(now, l.Borrower, l.Merchant, l.ID, l.Principal, true))
	p.plugins.EmitLoanRepaid(ctx, l)
	p.logger.Info("loan repaid", "loan_id", l.ID, "borrower", l.Borrower, "principal", l.Principal)

	return nil
}

// MarkLoanDefaulted flips a loan record's defaulted flag. Detector-only;
// this is the orchestrator notification the detector's batch sweep sends.
// It touches neither the credit ledger nor the pool: outstanding credit
// for a defaulted loan stays on the books as the recorded loss exposure.
func (p *Protocol) MarkLoanDefaulted(ctx context.Context, caller, borrower types.Address, loanID uint64) error {
	if err := p.roster.RequireDetector(caller); err != nil {
		return err
	}

	if err := p.enterMutation(); err != nil {
		return err
	}
	defer p.mu.Unlock()

	return p.markLoanDefaulted(ctx, borrower, loanID)
}

// markLoanDefaulted is the lock-free inner transition shared with the
// batch sweep.
func (p *Protocol) markLoanDefaulted(ctx context.Context, borrower types.Address, loanID uint64) error {
	l, err := p.store.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if l.Borrower != borrower {
		return ValidationError{Field: "borrower", Message: "loan does not belong to borrower"}
	}
	if l.Repaid {
		return ErrLoanAlreadyRepaid
	}
	if l.Defaulted {
		return ErrLoanAlreadyDefaulted
	}
	return p.store.MarkLoanDefaulted(ctx, loanID, p.now())
}

// Eligible re-runs the createLoan preconditions (minus the KYC probe)
// without mutating anything. A nil result means a draw of this amount
// would currently pass; otherwise the first failing precondition's error
// is returned.
func (p *Protocol) Eligible(ctx context.Context, borrower types.Address, amount types.Money) error {
	if borrower.IsZero() {
		return ErrInvalidIdentity
	}
	if err := p.validAmount(amount); err != nil {
		return err
	}

	acct, err := p.store.GetCreditAccount(ctx, borrower)
	if err != nil {
		if IsNotFound(err) {
			return ErrInsufficientCredit
		}
		return err
	}
	if err := p.checkDraw(acct, amount); err != nil {
		return err
	}

	pool, err := p.poolState(ctx)
	if err != nil {
		return err
	}
	if pool.Available().LessThan(amount) {
		return ErrInsufficientLiquidity
	}
	return nil
}

// LogDispute records a dispute against a loan in the event mirror. The
// loan must exist and belong to the user; core loan state is untouched,
// dispute resolution happens off the books.
func (p *Protocol) LogDispute(ctx context.Context, user, merchant types.Address, loanID uint64, reason string) error {
	if user.IsZero() || merchant.IsZero() {
		return ErrInvalidIdentity
	}
	if strings.TrimSpace(reason) == "" {
		return ValidationError{Field: "reason", Message: "reason is required"}
	}

	l, err := p.store.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if l.Borrower != user {
		return ValidationError{Field: "user", Message: "loan does not belong to user"}
	}

	ev := mirror.NewDispute(p.now(), user, merchant, loanID, reason)
	p.emit(ev)
	p.plugins.EmitDisputeLogged(ctx, user.String(), merchant.String(), loanID, reason)
	p.logger.Info("dispute logged",
		"dispute_id", ev.DisputeID.String(),
		"loan_id", loanID,
		"user", user,
		"merchant", merchant,
	)
	return nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetLoan returns a loan by ID, or ErrLoanNotFound.
func (p *Protocol) GetLoan(ctx context.Context, loanID uint64) (*loan.Loan, error) {
	return p.store.GetLoan(ctx, loanID)
}

// ActiveLoanID returns the borrower's active loan ID, zero when none.
func (p *Protocol) ActiveLoanID(ctx context.Context, borrower types.Address) (uint64, error) {
	return p.store.GetActiveLoanID(ctx, borrower)
}

// ActiveLoan returns the borrower's active loan, or ErrNoActiveLoan.
func (p *Protocol) ActiveLoan(ctx context.Context, borrower types.Address) (*loan.Loan, error) {
	loanID, err := p.store.GetActiveLoanID(ctx, borrower)
	if err != nil {
		return nil, err
	}
	if loanID == 0 {
		return nil, ErrNoActiveLoan
	}
	return p.store.GetLoan(ctx, loanID)
}

// ListLoans returns the borrower's loan history, newest first.
func (p *Protocol) ListLoans(ctx context.Context, borrower types.Address, opts loan.ListOpts) ([]*loan.Loan, error) {
	return p.store.ListLoans(ctx, borrower, opts)
}

// ──────────────────────────────────────────────────
// Compensation helpers (callers hold p.mu)
// ──────────────────────────────────────────────────

// compensateAccount restores a pre-mutation credit account row.
func (p *Protocol) compensateAccount(ctx context.Context, prev *credit.Account) {
	if err := p.store.PutCreditAccount(ctx, prev); err != nil {
		p.logger.Error("credit compensation failed, accounting may be inconsistent",
			"user", prev.User,
			"error", err,
		)
	}
}

// unwindSettlement reverses a completed merchant settlement after a later
// store write failed: restores the credit row and pool row and claws the
// net payout back from the merchant on a best-effort basis.
func (p *Protocol) unwindSettlement(ctx context.Context, prevAcct *credit.Account, pool *liquidity.PoolState, merchant types.Address, amount, fee types.Money) {
	p.compensateAccount(ctx, prevAcct)

	prev := *pool
	prev.TotalLiquidity = prev.TotalLiquidity.Add(amount.Subtract(fee))
	prev.OutstandingCredit = prev.OutstandingCredit.Subtract(amount)
	prev.ProtocolFees = prev.ProtocolFees.Subtract(fee)
	p.compensatePool(ctx, &prev)

	net := amount.Subtract(fee)
	if err := p.withGuard(func() error {
		ok, terr := p.asset.TransferFrom(ctx, merchant, net)
		if terr != nil {
			return terr
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		p.logger.Error("merchant clawback failed, custody and accounting diverge",
			"merchant", merchant,
			"net", net,
			"error", err,
		)
	}
}

// unwindRepayment reverses a received repayment after a later store write
// failed: restores the pool row and refunds the pulled principal to the
// borrower on a best-effort basis.
func (p *Protocol) unwindRepayment(ctx context.Context, prevPool *liquidity.PoolState, borrower types.Address, amount types.Money) {
	p.compensatePool(ctx, prevPool)

	if err := p.withGuard(func() error {
		ok, terr := p.asset.Transfer(ctx, borrower, amount)
		if terr != nil {
			return terr
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		p.logger.Error("borrower refund failed, custody and accounting diverge",
			"borrower", borrower,
			"amount", amount,
			"error", err,
		)
	}
}
