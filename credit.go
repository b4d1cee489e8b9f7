package bnpl

import (
	"context"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/types"
)

// CreditLedger manages per-user credit limits, usage and default status.
// Limits are set by the admin; usage moves only on orchestrator
// instruction; default flags are set by the detector and cleared by the
// admin. It never touches custody.
type CreditLedger struct {
	p *Protocol
}

// Credit returns the credit ledger component.
func (p *Protocol) Credit() *CreditLedger { return &CreditLedger{p: p} }

// SetLimit sets a user's credit limit, creating the account on first use.
// Admin-only. The limit must be positive and at least the user's current
// usage; to remove a user from the program, let outstanding draws settle
// first.
func (c *CreditLedger) SetLimit(ctx context.Context, caller, user types.Address, limit types.Money) error {
	if err := c.p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if user.IsZero() {
		return ErrInvalidIdentity
	}
	if limit.Currency != c.p.currency {
		return ValidationError{Field: "limit", Message: "currency does not match pool denomination"}
	}
	if !limit.IsPositive() {
		return ErrInvalidLimit
	}

	if err := c.p.enterMutation(); err != nil {
		return err
	}
	defer c.p.mu.Unlock()

	return c.p.setLimit(ctx, user, limit)
}

// BatchSetLimits sets limits for several users in one call. Admin-only.
// The whole batch is validated before any account is written: one invalid
// element aborts the entire batch.
func (c *CreditLedger) BatchSetLimits(ctx context.Context, caller types.Address, users []types.Address, limits []types.Money) error {
	if err := c.p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if len(users) != len(limits) {
		return ErrBatchLengthMismatch
	}

	if err := c.p.enterMutation(); err != nil {
		return err
	}
	defer c.p.mu.Unlock()

	// Validate everything first so a bad element leaves no partial writes.
	for i, user := range users {
		if user.IsZero() {
			return ErrInvalidIdentity
		}
		if limits[i].Currency != c.p.currency {
			return ValidationError{Field: "limits", Message: "currency does not match pool denomination"}
		}
		if !limits[i].IsPositive() {
			return ErrInvalidLimit
		}
		acct, err := c.p.store.GetCreditAccount(ctx, user)
		if err != nil && !IsNotFound(err) {
			return err
		}
		if acct != nil && limits[i].LessThan(acct.Used) {
			return ValidationError{Field: "limits", Message: "limit below current usage"}
		}
	}

	for i, user := range users {
		if err := c.p.setLimit(ctx, user, limits[i]); err != nil {
			return err
		}
	}
	return nil
}

// UseCredit reserves credit against a user's limit. Orchestrator-only.
func (c *CreditLedger) UseCredit(ctx context.Context, caller, user types.Address, amount types.Money) error {
	if err := c.p.roster.RequireOrchestrator(caller); err != nil {
		return err
	}
	if err := c.p.validAmount(amount); err != nil {
		return err
	}

	if err := c.p.enterMutation(); err != nil {
		return err
	}
	defer c.p.mu.Unlock()

	acct, err := c.p.creditAccount(ctx, user)
	if err != nil {
		return err
	}
	if err := c.p.checkDraw(acct, amount); err != nil {
		return err
	}
	return c.p.useCredit(ctx, acct, amount)
}

// RestoreCredit releases previously used credit. Orchestrator-only.
func (c *CreditLedger) RestoreCredit(ctx context.Context, caller, user types.Address, amount types.Money) error {
	if err := c.p.roster.RequireOrchestrator(caller); err != nil {
		return err
	}
	if err := c.p.validAmount(amount); err != nil {
		return err
	}

	if err := c.p.enterMutation(); err != nil {
		return err
	}
	defer c.p.mu.Unlock()

	acct, err := c.p.creditAccount(ctx, user)
	if err != nil {
		return err
	}
	return c.p.restoreCredit(ctx, acct, amount)
}

// MarkDefaulted flags a user as defaulted, creating the account if it does
// not exist. Detector-only. Idempotent; does not touch usage.
func (c *CreditLedger) MarkDefaulted(ctx context.Context, caller, user types.Address) error {
	if err := c.p.roster.RequireDetector(caller); err != nil {
		return err
	}
	if user.IsZero() {
		return ErrInvalidIdentity
	}

	if err := c.p.enterMutation(); err != nil {
		return err
	}
	defer c.p.mu.Unlock()

	return c.p.markAccountDefaulted(ctx, user)
}

// Unblock clears a user's defaulted flag. Admin-only. A no-op for users
// that are not defaulted or have no account; usage and limit are untouched.
func (c *CreditLedger) Unblock(ctx context.Context, caller, user types.Address) error {
	if err := c.p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if user.IsZero() {
		return ErrInvalidIdentity
	}

	if err := c.p.enterMutation(); err != nil {
		return err
	}
	defer c.p.mu.Unlock()

	acct, err := c.p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if !acct.Defaulted {
		return nil
	}

	acct.Defaulted = false
	acct.TouchAt(c.p.now())
	if err := c.p.store.PutCreditAccount(ctx, acct); err != nil {
		return err
	}

	c.p.plugins.EmitUserUnblocked(ctx, user.String())
	c.p.logger.Info("user unblocked", "user", user)
	return nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// Account returns a user's credit account, or ErrAccountNotFound.
func (c *CreditLedger) Account(ctx context.Context, user types.Address) (*credit.Account, error) {
	return c.p.store.GetCreditAccount(ctx, user)
}

// Available returns the user's remaining credit, zero for unknown users.
func (c *CreditLedger) Available(ctx context.Context, user types.Address) (types.Money, error) {
	acct, err := c.p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if IsNotFound(err) {
			return types.Zero(c.p.currency), nil
		}
		return types.Money{}, err
	}
	return acct.Available(), nil
}

// CanBorrow reports whether a user could draw the given amount right now,
// considering limit, usage, default status and the active-draw flag.
func (c *CreditLedger) CanBorrow(ctx context.Context, user types.Address, amount types.Money) (bool, error) {
	acct, err := c.p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return acct.CanBorrow(amount), nil
}

// IsDefaulted reports the user's default flag, false for unknown users.
func (c *CreditLedger) IsDefaulted(ctx context.Context, user types.Address) (bool, error) {
	acct, err := c.p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return acct.Defaulted, nil
}

// UtilizationBps returns used/limit in basis points, zero for unknown users.
func (c *CreditLedger) UtilizationBps(ctx context.Context, user types.Address) (int64, error) {
	acct, err := c.p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return acct.UtilizationBps(), nil
}

// ListAccounts returns credit accounts, optionally only defaulted ones.
func (c *CreditLedger) ListAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	return c.p.store.ListCreditAccounts(ctx, opts)
}

// ──────────────────────────────────────────────────
// Internal transitions (callers hold p.mu)
// ──────────────────────────────────────────────────

// creditAccount fetches an account, mapping a missing row to
// ErrAccountNotFound from the package sentinel set.
func (p *Protocol) creditAccount(ctx context.Context, user types.Address) (*credit.Account, error) {
	acct, err := p.store.GetCreditAccount(ctx, user)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (p *Protocol) setLimit(ctx context.Context, user types.Address, limit types.Money) error {
	now := p.now()
	acct, err := p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if !IsNotFound(err) {
			return err
		}
		acct = &credit.Account{
			Entity: types.EntityAt(now),
			User:   user,
			Used:   types.Zero(limit.Currency),
		}
	}
	if limit.LessThan(acct.Used) {
		return ValidationError{Field: "limit", Message: "limit below current usage"}
	}

	acct.Limit = limit
	acct.TouchAt(now)
	if err := p.store.PutCreditAccount(ctx, acct); err != nil {
		return err
	}

	p.plugins.EmitCreditLimitSet(ctx, user.String(), limit)
	p.logger.Info("credit limit set", "user", user, "limit", limit)
	return nil
}

// checkDraw enforces the three draw preconditions in order: not defaulted,
// no active draw, amount within available credit.
func (p *Protocol) checkDraw(acct *credit.Account, amount types.Money) error {
	if acct.Defaulted {
		return ErrBorrowerDefaulted
	}
	if acct.HasActiveCredit {
		return ErrActiveLoanExists
	}
	if acct.Available().LessThan(amount) {
		return ErrInsufficientCredit
	}
	return nil
}

func (p *Protocol) useCredit(ctx context.Context, acct *credit.Account, amount types.Money) error {
	acct.Used = acct.Used.Add(amount)
	acct.HasActiveCredit = true
	acct.TouchAt(p.now())
	return p.store.PutCreditAccount(ctx, acct)
}

func (p *Protocol) restoreCredit(ctx context.Context, acct *credit.Account, amount types.Money) error {
	if acct.Used.LessThan(amount) {
		return ErrRestoreExceedsUsed
	}
	acct.Used = acct.Used.Subtract(amount)
	if acct.Used.IsZero() {
		acct.HasActiveCredit = false
	}
	acct.TouchAt(p.now())
	return p.store.PutCreditAccount(ctx, acct)
}

func (p *Protocol) markAccountDefaulted(ctx context.Context, user types.Address) error {
	now := p.now()
	acct, err := p.store.GetCreditAccount(ctx, user)
	if err != nil {
		if !IsNotFound(err) {
			return err
		}
		acct = &credit.Account{
			Entity: types.EntityAt(now),
			User:   user,
			Limit:  types.Zero(p.currency),
			Used:   types.Zero(p.currency),
		}
	}
	if acct.Defaulted {
		return nil
	}
	acct.Defaulted = true
	acct.TouchAt(now)
	return p.store.PutCreditAccount(ctx, acct)
}

// snapshotAccount returns a copy for compensation on a failed custody step.
func snapshotAccount(acct *credit.Account) credit.Account {
	cp := *acct
	return cp
}
