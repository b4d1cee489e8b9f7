// Package mongo implements the BNPL store on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	bnplstore "github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/types"
)

// Collection name constants.
const (
	colLoans       = "bnpl_loans"
	colActiveLoans = "bnpl_active_loans"
	colAccounts    = "bnpl_credit_accounts"
	colPoolState   = "bnpl_pool_state"
	colCounters    = "bnpl_counters"
)

// compile-time interface check
var _ bnplstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all BNPL collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bnpl/mongo: migrate %s indexes: %w", col, err)
		}
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
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bnpl/mongo: create loan: %w", err)
	}
	return nil
}

func (s *Store) GetLoan(ctx context.Context, loanID uint64) (*loan.Loan, error) {
	var m loanModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": loanID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrLoanNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get loan: %w", err)
	}
	return fromLoanModel(&m), nil
}

func (s *Store) ListLoans(ctx context.Context, borrower types.Address, opts loan.ListOpts) ([]*loan.Loan, error) {
	var models []loanModel

	filter := bson.M{"borrower": borrower.String()}
	switch opts.Status {
	case loan.StatusRepaid:
		filter["repaid"] = true
	case loan.StatusDefaulted:
		filter["defaulted"] = true
		filter["repaid"] = false
	case loan.StatusActive:
		filter["repaid"] = false
		filter["defaulted"] = false
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bnpl/mongo: list loans: %w", err)
	}

	result := make([]*loan.Loan, len(models))
	for i := range models {
		result[i] = fromLoanModel(&models[i])
	}
	return result, nil
}

func (s *Store) MarkLoanRepaid(ctx context.Context, loanID uint64, at time.Time) error {
	res, err := s.mdb.NewUpdate((*loanModel)(nil)).
		Filter(bson.M{"_id": loanID, "repaid": false}).
		Set("repaid", true).
		Set("repaid_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: mark loan repaid: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, gerr := s.GetLoan(ctx, loanID); gerr != nil {
			return gerr
		}
		return bnpl.ErrLoanAlreadyRepaid
	}
	return nil
}

func (s *Store) MarkLoanDefaulted(ctx context.Context, loanID uint64, at time.Time) error {
	res, err := s.mdb.NewUpdate((*loanModel)(nil)).
		Filter(bson.M{"_id": loanID, "defaulted": false}).
		Set("defaulted", true).
		Set("defaulted_at", at).
		Set("updated_at", at).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: mark loan defaulted: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, gerr := s.GetLoan(ctx, loanID); gerr != nil {
			return gerr
		}
		return bnpl.ErrLoanAlreadyDefaulted
	}
	return nil
}

// nextLoanID bumps and reads the loan counter document.
func (s *Store) nextLoanID(ctx context.Context) (uint64, error) {
	if _, err := s.mdb.NewUpdate((*counterModel)(nil)).
		Filter(bson.M{"_id": loanCounter}).
		SetUpdate(bson.M{"$inc": bson.M{"value": 1}}).
		Upsert().
		Exec(ctx); err != nil {
		return 0, fmt.Errorf("bnpl/mongo: bump loan counter: %w", err)
	}

	var m counterModel
	if err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": loanCounter}).
		Scan(ctx); err != nil {
		return 0, fmt.Errorf("bnpl/mongo: read loan counter: %w", err)
	}
	return m.Value, nil
}

// ==================== Active-loan pointers ====================

func (s *Store) GetActiveLoanID(ctx context.Context, borrower types.Address) (uint64, error) {
	var m activeLoanModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": borrower.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("bnpl/mongo: get active loan: %w", err)
	}
	return m.LoanID, nil
}

func (s *Store) SetActiveLoanID(ctx context.Context, borrower types.Address, loanID uint64) error {
	_, err := s.mdb.NewUpdate((*activeLoanModel)(nil)).
		Filter(bson.M{"_id": borrower.String()}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":     borrower.String(),
			"loan_id": loanID,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: set active loan: %w", err)
	}
	return nil
}

func (s *Store) ClearActiveLoanID(ctx context.Context, borrower types.Address) error {
	_, err := s.mdb.NewDelete((*activeLoanModel)(nil)).
		Filter(bson.M{"_id": borrower.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: clear active loan: %w", err)
	}
	return nil
}

// ==================== Credit accounts ====================

func (s *Store) GetCreditAccount(ctx context.Context, user types.Address) (*credit.Account, error) {
	var m creditAccountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": user.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrAccountNotFound
		}
		return nil, fmt.Errorf("bnpl/mongo: get credit account: %w", err)
	}
	return fromCreditAccountModel(&m), nil
}

func (s *Store) PutCreditAccount(ctx context.Context, a *credit.Account) error {
	m := toCreditAccountModel(a)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.User}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":               m.User,
			"credit_limit":      m.CreditLimit,
			"credit_used":       m.CreditUsed,
			"currency":          m.Currency,
			"defaulted":         m.Defaulted,
			"has_active_credit": m.HasActiveCredit,
			"created_at":        m.CreatedAt,
			"updated_at":        m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: put credit account: %w", err)
	}
	return nil
}

func (s *Store) ListCreditAccounts(ctx context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	var models []creditAccountModel

	filter := bson.M{}
	if opts.DefaultedOnly {
		filter["defaulted"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bnpl/mongo: list credit accounts: %w", err)
	}

	result := make([]*credit.Account, len(models))
	for i := range models {
		result[i] = fromCreditAccountModel(&models[i])
	}
	return result, nil
}

// ==================== Pool state ====================

func (s *Store) GetPoolState(ctx context.Context) (*liquidity.PoolState, error) {
	var m poolStateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": poolDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, bnpl.ErrPoolNotInitialized
		}
		return nil, fmt.Errorf("bnpl/mongo: get pool state: %w", err)
	}
	return fromPoolStateModel(&m), nil
}

func (s *Store) PutPoolState(ctx context.Context, p *liquidity.PoolState) error {
	m := toPoolStateModel(p)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": poolDocID}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":                poolDocID,
			"total_liquidity":    m.Total,
			"outstanding_credit": m.Outstanding,
			"protocol_fees":      m.Fees,
			"currency":           m.Currency,
			"created_at":         m.CreatedAt,
			"updated_at":         m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bnpl/mongo: put pool state: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all BNPL collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colLoans: {
			{Keys: bson.D{{Key: "borrower", Value: 1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "repaid", Value: 1}, {Key: "defaulted", Value: 1}, {Key: "due_at", Value: 1}}},
		},
		colActiveLoans: {},
		colAccounts:    {{Keys: bson.D{{Key: "defaulted", Value: 1}}}},
		colPoolState:   {},
		colCounters:    {},
	}
}
