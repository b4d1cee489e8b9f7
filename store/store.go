// Package store declares the unified storage interface for all BNPL
// entities. Implementations live in the backend subpackages (memory,
// sqlite, postgres, mongo).
package store

import (
	"context"
	"time"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	"github.com/xraph/bnpl/types"
)

// Store is the unified storage interface for all BNPL entities.
// Instead of embedding per-entity sub-interfaces, all methods are declared
// explicitly to avoid naming conflicts.
type Store interface {
	// Loan methods. CreateLoan assigns the loan ID: monotonic, 1-based,
	// never reused, regardless of backend. Loan records are never deleted;
	// the two mark methods flip the terminal flags exactly once.
	CreateLoan(ctx context.Context, l *loan.Loan) error
	GetLoan(ctx context.Context, loanID uint64) (*loan.Loan, error)
	ListLoans(ctx context.Context, borrower types.Address, opts loan.ListOpts) ([]*loan.Loan, error)
	MarkLoanRepaid(ctx context.Context, loanID uint64, at time.Time) error
	MarkLoanDefaulted(ctx context.Context, loanID uint64, at time.Time) error

	// Active-loan pointer methods. At most one non-terminal loan per
	// borrower; 0 means none.
	GetActiveLoanID(ctx context.Context, borrower types.Address) (uint64, error)
	SetActiveLoanID(ctx context.Context, borrower types.Address, loanID uint64) error
	ClearActiveLoanID(ctx context.Context, borrower types.Address) error

	// Credit account methods. PutCreditAccount upserts.
	GetCreditAccount(ctx context.Context, user types.Address) (*credit.Account, error)
	PutCreditAccount(ctx context.Context, a *credit.Account) error
	ListCreditAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error)

	// Pool state methods. The pool is a singleton row; GetPoolState on a
	// fresh store returns ErrPoolNotInitialized until the first put.
	GetPoolState(ctx context.Context) (*liquidity.PoolState, error)
	PutPoolState(ctx context.Context, p *liquidity.PoolState) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
