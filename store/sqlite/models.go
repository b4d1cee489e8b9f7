package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bnpl/credit"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	"github.com/xraph/bnpl/types"
)

// ==================== Loan models ====================

type loanModel struct {
	grove.BaseModel `grove:"table:bnpl_loans"`

	ID          uint64     `grove:"id,pk"`
	Borrower    string     `grove:"borrower"`
	Merchant    string     `grove:"merchant"`
	Principal   int64      `grove:"principal"`
	Currency    string     `grove:"currency"`
	DueAt       time.Time  `grove:"due_at"`
	Repaid      bool       `grove:"repaid"`
	Defaulted   bool       `grove:"defaulted"`
	RepaidAt    *time.Time `grove:"repaid_at"`
	DefaultedAt *time.Time `grove:"defaulted_at"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toLoanModel(l *loan.Loan) *loanModel {
	return &loanModel{
		ID:          l.ID,
		Borrower:    l.Borrower.String(),
		Merchant:    l.Merchant.String(),
		Principal:   l.Principal.Amount,
		Currency:    l.Principal.Currency,
		DueAt:       l.DueAt,
		Repaid:      l.Repaid,
		Defaulted:   l.Defaulted,
		RepaidAt:    l.RepaidAt,
		DefaultedAt: l.DefaultedAt,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func fromLoanModel(m *loanModel) *loan.Loan {
	return &loan.Loan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          m.ID,
		Borrower:    types.Address(m.Borrower),
		Merchant:    types.Address(m.Merchant),
		Principal:   types.In(m.Currency, m.Principal),
		DueAt:       m.DueAt,
		Repaid:      m.Repaid,
		Defaulted:   m.Defaulted,
		RepaidAt:    m.RepaidAt,
		DefaultedAt: m.DefaultedAt,
	}
}

// ==================== Active-loan pointer models ====================

type activeLoanModel struct {
	grove.BaseModel `grove:"table:bnpl_active_loans"`

	Borrower string `grove:"borrower,pk"`
	LoanID   uint64 `grove:"loan_id"`
}

// ==================== Credit account models ====================

type creditAccountModel struct {
	grove.BaseModel `grove:"table:bnpl_credit_accounts"`

	User            string    `grove:"user,pk"`
	CreditLimit     int64     `grove:"credit_limit"`
	CreditUsed      int64     `grove:"credit_used"`
	Currency        string    `grove:"currency"`
	Defaulted       bool      `grove:"defaulted"`
	HasActiveCredit bool      `grove:"has_active_credit"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toCreditAccountModel(a *credit.Account) *creditAccountModel {
	return &creditAccountModel{
		User:            a.User.String(),
		CreditLimit:     a.Limit.Amount,
		CreditUsed:      a.Used.Amount,
		Currency:        a.Limit.Currency,
		Defaulted:       a.Defaulted,
		HasActiveCredit: a.HasActiveCredit,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromCreditAccountModel(m *creditAccountModel) *credit.Account {
	return &credit.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		User:            types.Address(m.User),
		Limit:           types.In(m.Currency, m.CreditLimit),
		Used:            types.In(m.Currency, m.CreditUsed),
		Defaulted:       m.Defaulted,
		HasActiveCredit: m.HasActiveCredit,
	}
}

// ==================== Pool state models ====================

// The pool is a singleton row with a fixed primary key.
const poolRowID = 1

type poolStateModel struct {
	grove.BaseModel `grove:"table:bnpl_pool_state"`

	ID          int       `grove:"id,pk"`
	Total       int64     `grove:"total_liquidity"`
	Outstanding int64     `grove:"outstanding_credit"`
	Fees        int64     `grove:"protocol_fees"`
	Currency    string    `grove:"currency"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toPoolStateModel(p *liquidity.PoolState) *poolStateModel {
	return &poolStateModel{
		ID:          poolRowID,
		Total:       p.TotalLiquidity.Amount,
		Outstanding: p.OutstandingCredit.Amount,
		Fees:        p.ProtocolFees.Amount,
		Currency:    p.TotalLiquidity.Currency,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPoolStateModel(m *poolStateModel) *liquidity.PoolState {
	return &liquidity.PoolState{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TotalLiquidity:    types.In(m.Currency, m.Total),
		OutstandingCredit: types.In(m.Currency, m.Outstanding),
		ProtocolFees:      types.In(m.Currency, m.Fees),
	}
}

// ==================== Counter models ====================

// counterModel backs monotonic ID allocation. One row per counter name;
// the loan counter is seeded by the migrations.
type counterModel struct {
	grove.BaseModel `grove:"table:bnpl_counters"`

	Name  string `grove:"name,pk"`
	Value uint64 `grove:"value"`
}

const loanCounter = "loan_id"
