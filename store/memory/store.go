// Package memory provides an in-memory Store for tests and embedded use.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	"github.com/xraph/bnpl/types"
)

type Store struct {
	mu sync.RWMutex

	// Loan storage. nextLoanID is 1-based and never reused.
	loans      map[uint64]*loan.Loan
	nextLoanID uint64

	// Active-loan pointers by borrower
	activeLoans map[types.Address]uint64

	// Credit account storage
	accounts map[types.Address]*credit.Account

	// Pool singleton, nil until first put
	pool *liquidity.PoolState

	closed bool
}

func New() *Store {
	return &Store{
		loans:       make(map[uint64]*loan.Loan),
		nextLoanID:  1,
		activeLoans: make(map[types.Address]uint64),
		accounts:    make(map[types.Address]*credit.Account),
	}
}

// Loan Store implementation. Get and List return copies so callers can
// mutate and re-put without aliasing the stored rows.
func (s *Store) CreateLoan(_ context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bnpl.ErrStoreClosed
	}

	l.ID = s.nextLoanID
	s.nextLoanID++

	cp := *l
	s.loans[l.ID] = &cp
	return nil
}

func (s *Store) GetLoan(_ context.Context, loanID uint64) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.loans[loanID]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, bnpl.ErrLoanNotFound
}

func (s *Store) ListLoans(_ context.Context, borrower types.Address, opts loan.ListOpts) ([]*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*loan.Loan, 0)
	// IDs are monotonic, so walking downward yields newest first.
	for lid := s.nextLoanID; lid > 0; lid-- {
		l, ok := s.loans[lid]
		if !ok || l.Borrower != borrower {
			continue
		}
		if opts.Status != "" && l.Status() != opts.Status {
			continue
		}
		cp := *l
		result = append(result, &cp)
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) MarkLoanRepaid(_ context.Context, loanID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.loans[loanID]
	if !ok {
		return bnpl.ErrLoanNotFound
	}
	if l.Repaid {
		return bnpl.ErrLoanAlreadyRepaid
	}
	l.Repaid = true
	l.RepaidAt = &at
	l.UpdatedAt = at
	return nil
}

func (s *Store) MarkLoanDefaulted(_ context.Context, loanID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.loans[loanID]
	if !ok {
		return bnpl.ErrLoanNotFound
	}
	if l.Defaulted {
		return bnpl.ErrLoanAlreadyDefaulted
	}
	l.Defaulted = true
	l.DefaultedAt = &at
	l.UpdatedAt = at
	return nil
}

// Active-loan pointer implementation
func (s *Store) GetActiveLoanID(_ context.Context, borrower types.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeLoans[borrower], nil
}

func (s *Store) SetActiveLoanID(_ context.Context, borrower types.Address, loanID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeLoans[borrower] = loanID
	return nil
}

func (s *Store) ClearActiveLoanID(_ context.Context, borrower types.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.activeLoans, borrower)
	return nil
}

// Credit account implementation
func (s *Store) GetCreditAccount(_ context.Context, user types.Address) (*credit.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[user]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, bnpl.ErrAccountNotFound
}

func (s *Store) PutCreditAccount(_ context.Context, a *credit.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bnpl.ErrStoreClosed
	}

	cp := *a
	s.accounts[a.User] = &cp
	return nil
}

func (s *Store) ListCreditAccounts(_ context.Context, opts credit.ListOpts) ([]*credit.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Account, 0)
	for _, a := range s.accounts {
		if opts.DefaultedOnly && !a.Defaulted {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Pool state implementation
func (s *Store) GetPoolState(_ context.Context) (*liquidity.PoolState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return nil, bnpl.ErrPoolNotInitialized
	}
	cp := *s.pool
	return &cp, nil
}

func (s *Store) PutPoolState(_ context.Context, p *liquidity.PoolState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bnpl.ErrStoreClosed
	}

	cp := *p
	s.pool = &cp
	return nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return bnpl.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
