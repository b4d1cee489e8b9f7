package bnpl

import (
	"context"
	"fmt"

	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/types"
)

// LiquidityLedger manages the shared funding pool: total liquidity,
// outstanding credit and accrued protocol fees. It is the only component
// that moves funds through custody, and every fund-moving method holds
// the reentrancy guard across the custody call.
type LiquidityLedger struct {
	p *Protocol
}

// Liquidity returns the liquidity ledger component.
func (p *Protocol) Liquidity() *LiquidityLedger { return &LiquidityLedger{p: p} }

// Deposit pulls funds from the caller into the pool. Open to anyone.
func (l *LiquidityLedger) Deposit(ctx context.Context, from types.Address, amount types.Money) error {
	if from.IsZero() {
		return ErrInvalidIdentity
	}
	if err := l.p.validAmount(amount); err != nil {
		return err
	}

	if err := l.p.enterMutation(); err != nil {
		return err
	}
	defer l.p.mu.Unlock()

	pool, err := l.p.poolState(ctx)
	if err != nil {
		return err
	}

	if err := l.p.withGuard(func() error {
		ok, terr := l.p.asset.TransferFrom(ctx, from, amount)
		if terr != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, terr)
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		return err
	}

	pool.TotalLiquidity = pool.TotalLiquidity.Add(amount)
	pool.TouchAt(l.p.now())
	if err := l.p.store.PutPoolState(ctx, pool); err != nil {
		return err
	}

	l.p.plugins.EmitLiquidityDeposited(ctx, from.String(), amount)
	l.p.logger.Info("liquidity deposited", "from", from, "amount", amount)
	return nil
}

// Withdraw pushes pool funds to a recipient. Admin-only; the amount must
// not exceed available liquidity (total minus outstanding).
func (l *LiquidityLedger) Withdraw(ctx context.Context, caller types.Address, amount types.Money, recipient types.Address) error {
	if err := l.p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return ErrInvalidIdentity
	}
	if err := l.p.validAmount(amount); err != nil {
		return err
	}

	if err := l.p.enterMutation(); err != nil {
		return err
	}
	defer l.p.mu.Unlock()

	pool, err := l.p.poolState(ctx)
	if err != nil {
		return err
	}
	if pool.Available().LessThan(amount) {
		return ErrInsufficientLiquidity
	}

	prev := *pool
	pool.TotalLiquidity = pool.TotalLiquidity.Subtract(amount)
	pool.TouchAt(l.p.now())
	if err := l.p.store.PutPoolState(ctx, pool); err != nil {
		return err
	}

	if err := l.p.withGuard(func() error {
		ok, terr := l.p.asset.Transfer(ctx, recipient, amount)
		if terr != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, terr)
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		l.p.compensatePool(ctx, &prev)
		return err
	}

	l.p.plugins.EmitLiquidityWithdrawn(ctx, recipient.String(), amount)
	l.p.logger.Info("liquidity withdrawn", "recipient", recipient, "amount", amount)
	return nil
}

// SettleMerchant pays a merchant the net of a loan: the gross amount less
// the fee leaves the pool, while outstanding credit grows by the full
// gross amount. Orchestrator-only.
func (l *LiquidityLedger) SettleMerchant(ctx context.Context, caller, merchant types.Address, amount, fee types.Money, loanID uint64) error {
	if err := l.p.roster.RequireOrchestrator(caller); err != nil {
		return err
	}
	if merchant.IsZero() {
		return ErrInvalidIdentity
	}
	if err := l.p.validAmount(amount); err != nil {
		return err
	}
	if fee.Currency != l.p.currency || fee.IsNegative() || amount.LessThan(fee) {
		return ValidationError{Field: "fee", Message: "fee must be between zero and the settled amount"}
	}

	if err := l.p.enterMutation(); err != nil {
		return err
	}
	defer l.p.mu.Unlock()

	pool, err := l.p.poolState(ctx)
	if err != nil {
		return err
	}
	return l.p.settleMerchant(ctx, pool, merchant, amount, fee, loanID)
}

// ReceiveRepayment pulls a repayment from a user into the pool and
// retires the matching outstanding credit. Orchestrator-only.
func (l *LiquidityLedger) ReceiveRepayment(ctx context.Context, caller, user types.Address, amount types.Money, loanID uint64) error {
	if err := l.p.roster.RequireOrchestrator(caller); err != nil {
		return err
	}
	if user.IsZero() {
		return ErrInvalidIdentity
	}
	if err := l.p.validAmount(amount); err != nil {
		return err
	}

	if err := l.p.enterMutation(); err != nil {
		return err
	}
	defer l.p.mu.Unlock()

	pool, err := l.p.poolState(ctx)
	if err != nil {
		return err
	}
	return l.p.receiveRepayment(ctx, pool, user, amount, loanID)
}

// CollectFees records accrued protocol fees. Pure accounting: the fee
// portion never left custody, so no transfer happens. Orchestrator-only.
func (l *LiquidityLedger) CollectFees(ctx context.Context, caller types.Address, fee types.Money) error {
	if err := l.p.roster.RequireOrchestrator(caller); err != nil {
		return err
	}
	if err := l.p.validAmount(fee); err != nil {
		return err
	}

	if err := l.p.enterMutation(); err != nil {
		return err
	}
	defer l.p.mu.Unlock()

	pool, err := l.p.poolState(ctx)
	if err != nil {
		return err
	}
	return l.p.collectFees(ctx, pool, fee)
}

// WithdrawFees pushes accrued protocol fees to a recipient. Admin-only.
func (l *LiquidityLedger) WithdrawFees(ctx context.Context, caller types.Address, amount types.Money, recipient types.Address) error {
	if err := l.p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return ErrInvalidIdentity
	}
	if err := l.p.validAmount(amount); err != nil {
		return err
	}

	if err := l.p.enterMutation(); err != nil {
		return err
	}
	defer l.p.mu.Unlock()

	pool, err := l.p.poolState(ctx)
	if err != nil {
		return err
	}
	if pool.ProtocolFees.LessThan(amount) {
		return ErrInsufficientFees
	}

	prev := *pool
	pool.ProtocolFees = pool.ProtocolFees.Subtract(amount)
	pool.TouchAt(l.p.now())
	if err := l.p.store.PutPoolState(ctx, pool); err != nil {
		return err
	}

	if err := l.p.withGuard(func() error {
		ok, terr := l.p.asset.Transfer(ctx, recipient, amount)
		if terr != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, terr)
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		l.p.compensatePool(ctx, &prev)
		return err
	}

	l.p.plugins.EmitFeesWithdrawn(ctx, recipient.String(), amount)
	l.p.logger.Info("protocol fees withdrawn", "recipient", recipient, "amount", amount)
	return nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// State returns the pool accounting snapshot.
func (l *LiquidityLedger) State(ctx context.Context) (*liquidity.PoolState, error) {
	return l.p.store.GetPoolState(ctx)
}

// Available returns total liquidity minus outstanding credit, floored at
// zero.
func (l *LiquidityLedger) Available(ctx context.Context) (types.Money, error) {
	pool, err := l.p.store.GetPoolState(ctx)
	if err != nil {
		return types.Money{}, err
	}
	return pool.Available(), nil
}

// UtilizationBps returns outstanding/total in basis points.
func (l *LiquidityLedger) UtilizationBps(ctx context.Context) (int64, error) {
	pool, err := l.p.store.GetPoolState(ctx)
	if err != nil {
		return 0, err
	}
	return pool.UtilizationBps(), nil
}

// PoolBalance returns the pool's real custody balance, as opposed to the
// ledger's accounting view.
func (l *LiquidityLedger) PoolBalance(ctx context.Context) (types.Money, error) {
	return l.p.asset.BalanceOf(ctx, l.p.poolAddress)
}

// ──────────────────────────────────────────────────
// Internal transitions (callers hold p.mu)
// ──────────────────────────────────────────────────

func (p *Protocol) poolState(ctx context.Context) (*liquidity.PoolState, error) {
	return p.store.GetPoolState(ctx)
}

// withGuard latches the reentrancy guard around a custody call.
func (p *Protocol) withGuard(fn func() error) error {
	if !p.guard.TryEnter() {
		return ErrReentrantCall
	}
	defer p.guard.Exit()
	return fn()
}

// settleMerchant pays (amount - fee) to the merchant, decrements total
// liquidity by the same net and grows outstanding by the gross amount.
// The fee is not collected here; collectFees records it separately.
func (p *Protocol) settleMerchant(ctx context.Context, pool *liquidity.PoolState, merchant types.Address, amount, fee types.Money, loanID uint64) error {
	if pool.TotalLiquidity.LessThan(amount) {
		return ErrInsufficientLiquidity
	}
	net := amount.Subtract(fee)

	prev := *pool
	pool.TotalLiquidity = pool.TotalLiquidity.Subtract(net)
	pool.OutstandingCredit = pool.OutstandingCredit.Add(amount)
	pool.TouchAt(p.now())
	if err := p.store.PutPoolState(ctx, pool); err != nil {
		return err
	}

	if err := p.withGuard(func() error {
		ok, terr := p.asset.Transfer(ctx, merchant, net)
		if terr != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, terr)
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		p.compensatePool(ctx, &prev)
		return err
	}

	p.logger.Info("merchant settled",
		"merchant", merchant,
		"loan_id", loanID,
		"gross", amount,
		"net", net,
	)
	return nil
}

// receiveRepayment pulls the amount from the user, then credits the pool.
// The pull happens before any accounting so a refused transfer leaves the
// pool untouched.
func (p *Protocol) receiveRepayment(ctx context.Context, pool *liquidity.PoolState, user types.Address, amount types.Money, loanID uint64) error {
	if err := p.withGuard(func() error {
		ok, terr := p.asset.TransferFrom(ctx, user, amount)
		if terr != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, terr)
		}
		if !ok {
			return ErrTransferFailed
		}
		return nil
	}); err != nil {
		return err
	}

	pool.TotalLiquidity = pool.TotalLiquidity.Add(amount)
	pool.OutstandingCredit = pool.OutstandingCredit.Subtract(pool.OutstandingCredit.Min(amount))
	pool.TouchAt(p.now())
	if err := p.store.PutPoolState(ctx, pool); err != nil {
		return err
	}

	p.logger.Info("repayment received", "user", user, "loan_id", loanID, "amount", amount)
	return nil
}

func (p *Protocol) collectFees(ctx context.Context, pool *liquidity.PoolState, fee types.Money) error {
	pool.ProtocolFees = pool.ProtocolFees.Add(fee)
	pool.TouchAt(p.now())
	if err := p.store.PutPoolState(ctx, pool); err != nil {
		return err
	}
	p.logger.Debug("protocol fee collected", "fee", fee)
	return nil
}

// compensatePool restores the pre-mutation pool row after a failed custody
// step. A store that fails the restore too is logged loudly; that state
// needs operator attention.
func (p *Protocol) compensatePool(ctx context.Context, prev *liquidity.PoolState) {
	if err := p.store.PutPoolState(ctx, prev); err != nil {
		p.logger.Error("pool compensation failed, accounting may be inconsistent", "error", err)
	}
}
