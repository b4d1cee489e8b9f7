// Package plugin provides an extensible plugin system for the BNPL engine.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Loan lifecycle hooks
// ──────────────────────────────────────────────────

// OnLoanCreated is called after a loan is created and the merchant paid.
type OnLoanCreated interface {
	Plugin
	OnLoanCreated(ctx context.Context, l interface{}) error
}

// OnLoanRepaid is called after a loan is repaid in full.
type OnLoanRepaid interface {
	Plugin
	OnLoanRepaid(ctx context.Context, l interface{}) error
}

// OnLoanDefaulted is called after the detector processes a default.
type OnLoanDefaulted interface {
	Plugin
	OnLoanDefaulted(ctx context.Context, l interface{}, daysOverdue int64) error
}

// OnDisputeLogged is called when a dispute record is mirrored.
type OnDisputeLogged interface {
	Plugin
	OnDisputeLogged(ctx context.Context, user, merchant string, loanID uint64, reason string) error
}

// ──────────────────────────────────────────────────
// Credit ledger hooks
// ──────────────────────────────────────────────────

// OnCreditLimitSet is called when an admin sets or changes a credit limit.
type OnCreditLimitSet interface {
	Plugin
	OnCreditLimitSet(ctx context.Context, user string, limit interface{}) error
}

// OnUserUnblocked is called when an admin clears a user's defaulted flag.
type OnUserUnblocked interface {
	Plugin
	OnUserUnblocked(ctx context.Context, user string) error
}

// ──────────────────────────────────────────────────
// Liquidity pool hooks
// ──────────────────────────────────────────────────

// OnLiquidityDeposited is called after a deposit lands in the pool.
type OnLiquidityDeposited interface {
	Plugin
	OnLiquidityDeposited(ctx context.Context, from string, amount interface{}) error
}

// OnLiquidityWithdrawn is called after an admin pool withdrawal.
type OnLiquidityWithdrawn interface {
	Plugin
	OnLiquidityWithdrawn(ctx context.Context, recipient string, amount interface{}) error
}

// OnFeesWithdrawn is called after an admin fee withdrawal.
type OnFeesWithdrawn interface {
	Plugin
	OnFeesWithdrawn(ctx context.Context, recipient string, amount interface{}) error
}

// ──────────────────────────────────────────────────
// Soft-failure hooks
// ──────────────────────────────────────────────────

// OnFreezeFailed is called when a best-effort custody freeze fails.
// The default that triggered the freeze has already been committed.
type OnFreezeFailed interface {
	Plugin
	OnFreezeFailed(ctx context.Context, user string, err error) error
}
