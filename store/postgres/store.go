// Package postgres implements the BNPL store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	bnplstore "github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/types"
)

// compile-time interface check
var _ bnplstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("bnpl/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bnpl/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Loan Store ====================

func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	loanID, err := s.nextLoanID(ctx)
	if err != nil {
		return err
	}
	l.ID = loanID

	m := toLoanModel(l)
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetLoan(ctx context.Context, loanID uint64) (*loan.Loan, error) {
	m := new(loanModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", loanID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrLoanNotFound
		}
		return nil, err
	}
	return fromLoanModel(m), nil
}

func (s *Store) ListLoans(ctx context.Context, borrower types.Address, opts loan.ListOpts) ([]*loan.Loan, error) {
	var models []loanModel
	q := s.pg.NewSelect(&models).Where("borrower = ?", borrower.String())

	switch opts.Status {
	case loan.StatusRepaid:
		q = q.Where("repaid = ?", true)
	case loan.StatusDefaulted:
		q = q.Where("defaulted = ?", true).Where("repaid = ?", false)
	case loan.StatusActive:
		q = q.Where("repaid = ?", false).Where("defaulted = ?", false)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*loan.Loan, len(models))
	for i := range models {
		result[i] = fromLoanModel(&models[i])
	}
	return result, nil
}

func (s *Store) MarkLoanRepaid(ctx context.Context, loanID uint64, at time.Time) error {
	res, err := s.pg.NewUpdate((*loanModel)(nil)).
		Set("repaid = ?", true).
		Set("repaid_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", loanID).
		Where("repaid = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, gerr := s.GetLoan(ctx, loanID); gerr != nil {
			return gerr
		}
		return bnpl.ErrLoanAlreadyRepaid
	}
	return nil
}

func (s *Store) MarkLoanDefaulted(ctx context.Context, loanID uint64, at time.Time) error {
	res, err := s.pg.NewUpdate((*loanModel)(nil)).
		Set("defaulted = ?", true).
		Set("defaulted_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", loanID).
		Where("defaulted = ?", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, gerr := s.GetLoan(ctx, loanID); gerr != nil {
			return gerr
		}
		return bnpl.ErrLoanAlreadyDefaulted
	}
	return nil
}

// nextLoanID bumps and reads the loan counter.
func (s *Store) nextLoanID(ctx context.Context) (uint64, error) {
	if _, err := s.pg.NewUpdate((*counterModel)(nil)).
		Set("value = value + 1").
		Where("name = ?", loanCounter).
		Exec(ctx); err != nil {
		return 0, err
	}

	m := new(counterModel)
	if err := s.pg.NewSelect(m).
		Where("name = ?", loanCounter).
		Scan(ctx); err != nil {
		return 0, err
	}
	return m.Value, nil
}

// ==================== Active-loan pointers ====================

func (s *Store) GetActiveLoanID(ctx context.Context, borrower types.Address) (uint64, error) {
	m := new(activeLoanModel)
	err := s.pg.NewSelect(m).
		Where("borrower = ?", borrower.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.LoanID, nil
}

func (s *Store) SetActiveLoanID(ctx context.Context, borrower types.Address, loanID uint64) error {
	res, err := s.pg.NewUpdate((*activeLoanModel)(nil)).
		Set("loan_id = ?", loanID).
		Where("borrower = ?", borrower.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		m := &activeLoanModel{Borrower: borrower.String(), LoanID: loanID}
		_, err = s.pg.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) ClearActiveLoanID(ctx context.Context, borrower types.Address) error {
	_, err := s.pg.NewDelete((*activeLoanModel)(nil)).
		Where("borrower = ?", borrower.String()).
		Exec(ctx)
	return err
}

// ==================== Credit accounts ====================

func (s *Store) GetCreditAccount(ctx context.Context, user types.Address) (*credit.Account, error) {
	m := new(creditAccountModel)
	err := s.pg.NewSelect(m).
		Where("user_id = ?", user.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrAccountNotFound
		}
		return nil, err
	}
	return fromCreditAccountModel(m), nil
}

func (s *Store) PutCreditAccount(ctx context.Context, a *credit.Account) error {
	m := toCreditAccountModel(a)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.pg.NewInsert(m).Exec(ctx)
	}
	return err
}

func (s *Store) ListCreditAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	var models []creditAccountModel
	q := s.pg.NewSelect(&models)

	if opts.DefaultedOnly {
		q = q.Where("defaulted = ?", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*credit.Account, len(models))
	for i := range models {
		result[i] = fromCreditAccountModel(&models[i])
	}
	return result, nil
}

// ==================== Pool state ====================

func (s *Store) GetPoolState(ctx context.Context) (*liquidity.PoolState, error) {
	m := new(poolStateModel)
	err := s.pg.NewSelect(m).
		Where("id = ?", poolRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, bnpl.ErrPoolNotInitialized
		}
		return nil, err
	}
	return fromPoolStateModel(m), nil
}

func (s *Store) PutPoolState(ctx context.Context, p *liquidity.PoolState) error {
	m := toPoolStateModel(p)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_, err = s.pg.NewInsert(m).Exec(ctx)
	}
	return err
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
