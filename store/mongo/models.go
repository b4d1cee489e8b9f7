package mongo

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

	ID          uint64     `grove:"id,pk"        bson:"_id"`
	Borrower    string     `grove:"borrower"     bson:"borrower"`
	Merchant    string     `grove:"merchant"     bson:"merchant"`
	Principal   int64      `grove:"principal"    bson:"principal"`
	Currency    string     `grove:"currency"     bson:"currency"`
	DueAt       time.Time  `grove:"due_at"       bson:"due_at"`
	Repaid      bool       `grove:"repaid"       bson:"repaid"`
	Defaulted   bool       `grove:"defaulted"    bson:"defaulted"`
	RepaidAt    *time.Time `grove:"repaid_at"    bson:"repaid_at,omitempty"`
	DefaultedAt *time.Time `grove:"defaulted_at" bson:"defaulted_at,omitempty"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"   bson:"updated_at"`
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

	Borrower string `grove:"borrower,pk" bson:"_id"`
	LoanID   uint64 `grove:"loan_id"     bson:"loan_id"`
}

// ==================== Credit account models ====================

type creditAccountModel struct {
	grove.BaseModel `grove:"table:bnpl_credit_accounts"`

	User            string    `grove:"user,pk"           bson:"_id"`
	CreditLimit     int64     `grove:"credit_limit"      bson:"credit_limit"`
	CreditUsed      int64     `grove:"credit_used"       bson:"credit_used"`
	Currency        string    `grove:"currency"          bson:"currency"`
	Defaulted       bool      `grove:"defaulted"         bson:"defaulted"`
	HasActiveCredit bool      `grove:"has_active_credit" bson:"has_active_credit"`
	CreatedAt       time.Time `grove:"created_at"        bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"        bson:"updated_at"`
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

const poolDocID = "pool"

type poolStateModel struct {
	grove.BaseModel `grove:"table:bnpl_pool_state"`

	ID          string    `grove:"id,pk"              bson:"_id"`
	Total       int64     `grove:"total_liquidity"    bson:"total_liquidity"`
	Outstanding int64     `grove:"outstanding_credit" bson:"outstanding_credit"`
	Fees        int64     `grove:"protocol_fees"      bson:"protocol_fees"`
	Currency    string    `grove:"currency"           bson:"currency"`
	CreatedAt   time.Time `grove:"created_at"         bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"         bson:"updated_at"`
}

func toPoolStateModel(p *liquidity.PoolState) *poolStateModel {
	return &poolStateModel{
		ID:          poolDocID,
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

// counterModel backs monotonic loan ID allocation via a $inc on a
// singleton document.
type counterModel struct {
	grove.BaseModel `grove:"table:bnpl_counters"`

	Name  string `grove:"name,pk" bson:"_id"`
	Value uint64 `grove:"value"   bson:"value"`
}

const loanCounter = "loan_id"
