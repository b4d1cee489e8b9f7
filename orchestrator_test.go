package bnpl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/loan"
	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
)

func TestCreateLoanAccounting(t *testing.T) {
	f := newFixture(t) // default 50 bps fee
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	if l.ID != 1 {
		t.Errorf("loan ID: got %d, want 1", l.ID)
	}
	wantDue := f.clock.Now().Add(bnpl.DefaultRepaymentWindow)
	if !l.DueAt.Equal(wantDue) {
		t.Errorf("due at: got %v, want %v", l.DueAt, wantDue)
	}

	// 50 bps of 100000 = 500. Merchant receives the net, the fee stays
	// in pool custody, outstanding grows by the gross.
	if got := f.balance(merchantAddr); got != 99_500 {
		t.Errorf("merchant balance: got %d, want 99500", got)
	}
	if got := f.balance(poolAddr); got != 400_500 {
		t.Errorf("pool custody balance: got %d, want 400500", got)
	}

	total, outstanding, fees := f.poolState()
	if total != 400_500 {
		t.Errorf("total liquidity: got %d, want 400500", total)
	}
	if outstanding != 100_000 {
		t.Errorf("outstanding: got %d, want 100000", outstanding)
	}
	if fees != 500 {
		t.Errorf("protocol fees: got %d, want 500", fees)
	}

	acct, err := f.p.Credit().Account(ctx, aliceAddr)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Used.Amount != 100_000 {
		t.Errorf("used credit: got %d, want 100000", acct.Used.Amount)
	}
	if !acct.HasActiveCredit {
		t.Error("expected active credit flag set")
	}

	activeID, err := f.p.ActiveLoanID(ctx, aliceAddr)
	if err != nil {
		t.Fatalf("active loan id: %v", err)
	}
	if activeID != l.ID {
		t.Errorf("active loan id: got %d, want %d", activeID, l.ID)
	}
}

func TestCreateLoanDrainsPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(1_000)
	f.enroll(aliceAddr, 1_000)

	if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(1_000)); err != nil {
		t.Fatalf("create loan: %v", err)
	}

	// 50 bps of 1000 = 5: merchant gets 995, the fee stays behind, and
	// the full gross is committed so nothing is left to lend.
	if got := f.balance(merchantAddr); got != 995 {
		t.Errorf("merchant: got %d, want 995", got)
	}
	_, outstanding, fees := f.poolState()
	if outstanding != 1_000 || fees != 5 {
		t.Errorf("pool: outstanding=%d fees=%d", outstanding, fees)
	}
	avail, err := f.p.Liquidity().Available(ctx)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if !avail.IsZero() {
		t.Errorf("available: got %d, want 0", avail.Amount)
	}
}

func TestCreateLoanPreconditions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(f *fixture)
		amount  types.Money
		wantErr error
	}{
		{
			name:    "no credit account",
			setup:   func(f *fixture) { f.deposit(500_000); f.asset.SetKyc(aliceAddr, true) },
			amount:  types.USD(10_000),
			wantErr: bnpl.ErrInsufficientCredit,
		},
		{
			name: "amount exactly at limit passes",
			setup: func(f *fixture) {
				f.deposit(500_000)
				f.enroll(aliceAddr, 100_000)
			},
			amount:  types.USD(100_000),
			wantErr: nil,
		},
		{
			name: "one cent over limit",
			setup: func(f *fixture) {
				f.deposit(500_000)
				f.enroll(aliceAddr, 100_000)
			},
			amount:  types.USD(100_001),
			wantErr: bnpl.ErrInsufficientCredit,
		},
		{
			name: "kyc not passed",
			setup: func(f *fixture) {
				f.deposit(500_000)
				f.enroll(aliceAddr, 100_000)
				f.asset.SetKyc(aliceAddr, false)
			},
			amount:  types.USD(10_000),
			wantErr: bnpl.ErrKycNotPassed,
		},
		{
			name: "pool too small",
			setup: func(f *fixture) {
				f.deposit(5_000)
				f.enroll(aliceAddr, 100_000)
			},
			amount:  types.USD(10_000),
			wantErr: bnpl.ErrInsufficientLiquidity,
		},
		{
			name: "defaulted borrower",
			setup: func(f *fixture) {
				f.deposit(500_000)
				f.enroll(aliceAddr, 100_000)
				if err := f.p.Credit().MarkDefaulted(ctx, detectorAddr, aliceAddr); err != nil {
					f.t.Fatalf("mark defaulted: %v", err)
				}
			},
			amount:  types.USD(10_000),
			wantErr: bnpl.ErrBorrowerDefaulted,
		},
		{
			name: "second loan while one active",
			setup: func(f *fixture) {
				f.deposit(500_000)
				f.enroll(aliceAddr, 100_000)
				if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000)); err != nil {
					f.t.Fatalf("first loan: %v", err)
				}
			},
			amount:  types.USD(10_000),
			wantErr: bnpl.ErrActiveLoanExists,
		},
		{
			name:    "zero amount",
			setup:   func(f *fixture) { f.deposit(500_000); f.enroll(aliceAddr, 100_000) },
			amount:  types.USD(0),
			wantErr: bnpl.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateLoanRejectsCurrencyMismatch(t *testing.T) {
	f := newFixture(t)
	f.deposit(500_000)
	f.enroll(aliceAddr, 100_000)

	_, err := f.p.CreateLoan(context.Background(), aliceAddr, merchantAddr, types.EUR(10_000))
	if !bnpl.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestCreateLoanTransferRefusedLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 100_000)
	f.asset.RefuseTransfers = true

	_, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if !errors.Is(err, bnpl.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	// Everything unwinds: credit reservation, pool accounting, loan record.
	acct, err := f.p.Credit().Account(ctx, aliceAddr)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !acct.Used.IsZero() || acct.HasActiveCredit {
		t.Errorf("credit not unwound: used=%d active=%v", acct.Used.Amount, acct.HasActiveCredit)
	}

	total, outstanding, fees := f.poolState()
	if total != 500_000 || outstanding != 0 || fees != 0 {
		t.Errorf("pool not unwound: total=%d outstanding=%d fees=%d", total, outstanding, fees)
	}

	if _, err := f.p.GetLoan(ctx, 1); !errors.Is(err, bnpl.ErrLoanNotFound) {
		t.Errorf("loan record exists after failed create: %v", err)
	}
}

func TestRepayLoanFullRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	f.mint(aliceAddr, 100_000)
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
		t.Fatalf("repay: %v", err)
	}

	// Pool ends up ahead by exactly the fee: 500000 - 99500 + 100000.
	if got := f.balance(poolAddr); got != 500_500 {
		t.Errorf("pool custody balance: got %d, want 500500", got)
	}
	total, outstanding, fees := f.poolState()
	if total != 500_500 {
		t.Errorf("total liquidity: got %d, want 500500", total)
	}
	if outstanding != 0 {
		t.Errorf("outstanding: got %d, want 0", outstanding)
	}
	if fees != 500 {
		t.Errorf("fees: got %d, want 500", fees)
	}

	got, err := f.p.GetLoan(ctx, l.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if !got.Repaid || got.RepaidAt == nil {
		t.Error("loan not marked repaid")
	}
	if got.Status() != loan.StatusRepaid {
		t.Errorf("status: got %s, want repaid", got.Status())
	}

	acct, err := f.p.Credit().Account(ctx, aliceAddr)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !acct.Used.IsZero() || acct.HasActiveCredit {
		t.Errorf("credit not restored: used=%d active=%v", acct.Used.Amount, acct.HasActiveCredit)
	}

	if _, err := f.p.ActiveLoan(ctx, aliceAddr); !errors.Is(err, bnpl.ErrNoActiveLoan) {
		t.Errorf("active loan after repay: %v", err)
	}

	// Borrower can draw again.
	if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(50_000)); err != nil {
		t.Errorf("second loan after repay: %v", err)
	}
}

func TestRepayLoanRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	if err := f.p.RepayLoan(ctx, bobAddr, l.ID); !errors.Is(err, bnpl.ErrNotBorrower) {
		t.Errorf("wrong caller: got %v, want ErrNotBorrower", err)
	}
	if err := f.p.RepayLoan(ctx, aliceAddr, 99); !errors.Is(err, bnpl.ErrLoanNotFound) {
		t.Errorf("unknown loan: got %v, want ErrLoanNotFound", err)
	}

	f.mint(aliceAddr, 100_000)
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); !errors.Is(err, bnpl.ErrLoanAlreadyRepaid) {
		t.Errorf("double repay: got %v, want ErrLoanAlreadyRepaid", err)
	}
}

func TestRepayLoanInsufficientFundsIsClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	// Borrower holds less than the principal; the pull is refused and
	// nothing changes except the failed-repayment mirror record.
	f.mint(aliceAddr, 50_000)
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); !errors.Is(err, bnpl.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}

	got, err := f.p.GetLoan(ctx, l.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if got.Repaid {
		t.Error("loan marked repaid after refused pull")
	}
	_, outstanding, _ := f.poolState()
	if outstanding != 100_000 {
		t.Errorf("outstanding changed: got %d", outstanding)
	}

	f.stop()
	reps := f.sink.ByKind(mirror.KindRepayment)
	if len(reps) != 1 {
		t.Fatalf("repayment events: got %d, want 1", len(reps))
	}
	if reps[0].(*mirror.Repayment).Success {
		t.Error("expected failed repayment record")
	}
}

// faultStore wraps a Store and fails selected writes once, to drive the
// repayment unwind paths.
type faultStore struct {
	store.Store
	failPutPool     bool
	failClearActive bool
	failMarkRepaid  bool
}

var errWriteFailed = errors.New("write failed")

func (s *faultStore) PutPoolState(ctx context.Context, p *liquidity.PoolState) error {
	if s.failPutPool {
		s.failPutPool = false
		return errWriteFailed
	}
	return s.Store.PutPoolState(ctx, p)
}

func (s *faultStore) ClearActiveLoanID(ctx context.Context, borrower types.Address) error {
	if s.failClearActive {
		s.failClearActive = false
		return errWriteFailed
	}
	return s.Store.ClearActiveLoanID(ctx, borrower)
}

func (s *faultStore) MarkLoanRepaid(ctx context.Context, loanID uint64, at time.Time) error {
	if s.failMarkRepaid {
		s.failMarkRepaid = false
		return errWriteFailed
	}
	return s.Store.MarkLoanRepaid(ctx, loanID, at)
}

func TestRepayLoanUnwindsOnStoreFailure(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*faultStore)
	}{
		{"pool write fails after pull", func(s *faultStore) { s.failPutPool = true }},
		{"active pointer clear fails", func(s *faultStore) { s.failClearActive = true }},
		{"repaid flag write fails", func(s *faultStore) { s.failMarkRepaid = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &faultStore{Store: memory.New()}
			f := newFixtureWithStore(t, fs)
			ctx := context.Background()

			f.deposit(500_000)
			f.enroll(aliceAddr, 200_000)
			l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
			if err != nil {
				t.Fatalf("create loan: %v", err)
			}
			f.mint(aliceAddr, 100_000)

			tt.inject(fs)
			if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); !errors.Is(err, errWriteFailed) {
				t.Fatalf("got %v, want injected write error", err)
			}

			// The pulled principal came back to the borrower.
			if got := f.balance(aliceAddr); got != 100_000 {
				t.Errorf("borrower balance: got %d, want 100000", got)
			}

			// Every ledger reads as before the call: the loan is still
			// open and still owed.
			got, err := f.p.GetLoan(ctx, l.ID)
			if err != nil {
				t.Fatalf("get loan: %v", err)
			}
			if got.Repaid {
				t.Error("loan marked repaid after failed repayment")
			}
			total, outstanding, fees := f.poolState()
			if total != 400_500 || outstanding != 100_000 || fees != 500 {
				t.Errorf("pool = (%d, %d, %d), want (400500, 100000, 500)",
					total, outstanding, fees)
			}
			avail, err := f.p.Credit().Available(ctx, aliceAddr)
			if err != nil {
				t.Fatalf("available: %v", err)
			}
			if avail.Amount != 100_000 {
				t.Errorf("available credit: got %d, want 100000", avail.Amount)
			}
			active, err := f.p.ActiveLoanID(ctx, aliceAddr)
			if err != nil {
				t.Fatalf("active loan id: %v", err)
			}
			if active != l.ID {
				t.Errorf("active loan id: got %d, want %d", active, l.ID)
			}

			// With the fault gone the same repayment goes through.
			if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
				t.Fatalf("retry: %v", err)
			}
		})
	}
}

func TestRepayDefaultedLoanKeepsBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	f.clock.Advance(bnpl.DefaultRepaymentWindow + time.Hour)
	processed, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID)
	if err != nil || !processed {
		t.Fatalf("process default: processed=%v err=%v", processed, err)
	}

	// Late repayment is accepted but the defaulted flag stays until an
	// admin unblock. The custody freeze has to be lifted for the pull.
	if err := f.asset.Unfreeze(ctx, aliceAddr); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	f.mint(aliceAddr, 100_000)
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
		t.Fatalf("late repay: %v", err)
	}

	defaulted, err := f.p.Credit().IsDefaulted(ctx, aliceAddr)
	if err != nil {
		t.Fatalf("is defaulted: %v", err)
	}
	if !defaulted {
		t.Error("defaulted flag cleared by repayment")
	}

	if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000)); !errors.Is(err, bnpl.ErrBorrowerDefaulted) {
		t.Errorf("defaulted borrower drew again: %v", err)
	}

	if err := f.p.Credit().Unblock(ctx, adminAddr, aliceAddr); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000)); err != nil {
		t.Errorf("loan after unblock: %v", err)
	}
}

func TestReentrantCustodyCallbackRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	var reentrantErr error
	f.asset.OnTransfer = func() {
		// A malicious asset calling back into the engine mid-transfer.
		_, reentrantErr = f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(1_000))
	}

	if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000)); err != nil {
		t.Fatalf("outer loan: %v", err)
	}
	if !errors.Is(reentrantErr, bnpl.ErrReentrantCall) {
		t.Errorf("reentrant call: got %v, want ErrReentrantCall", reentrantErr)
	}
}

func TestEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(50_000)
	f.enroll(aliceAddr, 100_000)

	if err := f.p.Eligible(ctx, aliceAddr, types.USD(40_000)); err != nil {
		t.Errorf("eligible: %v", err)
	}
	if err := f.p.Eligible(ctx, aliceAddr, types.USD(60_000)); !errors.Is(err, bnpl.ErrInsufficientLiquidity) {
		t.Errorf("pool-bound check: got %v", err)
	}
	if err := f.p.Eligible(ctx, bobAddr, types.USD(1_000)); !errors.Is(err, bnpl.ErrInsufficientCredit) {
		t.Errorf("unknown borrower: got %v", err)
	}
}

func TestLogDispute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}

	if err := f.p.LogDispute(ctx, aliceAddr, merchantAddr, l.ID, "  "); !bnpl.IsValidation(err) {
		t.Errorf("blank reason: got %v", err)
	}
	if err := f.p.LogDispute(ctx, bobAddr, merchantAddr, l.ID, "not my loan"); !bnpl.IsValidation(err) {
		t.Errorf("foreign loan: got %v", err)
	}
	if err := f.p.LogDispute(ctx, aliceAddr, merchantAddr, 99, "missing"); !errors.Is(err, bnpl.ErrLoanNotFound) {
		t.Errorf("missing loan: got %v", err)
	}
	if err := f.p.LogDispute(ctx, aliceAddr, merchantAddr, l.ID, "goods never arrived"); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	// Core loan state is untouched; the record is the entire feature.
	got, err := f.p.GetLoan(ctx, l.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if got.Status() != loan.StatusActive {
		t.Errorf("status changed by dispute: %s", got.Status())
	}

	f.stop()
	disputes := f.sink.ByKind(mirror.KindDispute)
	if len(disputes) != 1 {
		t.Fatalf("dispute events: got %d, want 1", len(disputes))
	}
	d := disputes[0].(*mirror.Dispute)
	if d.Reason != "goods never arrived" || d.LoanID != l.ID {
		t.Errorf("dispute record: %+v", d)
	}
	if d.DisputeID.IsNil() {
		t.Error("dispute ID not assigned")
	}
}

func TestListLoansNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	for i := 0; i < 3; i++ {
		l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
		if err != nil {
			t.Fatalf("loan %d: %v", i, err)
		}
		f.mint(aliceAddr, 10_000)
		if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
			t.Fatalf("repay %d: %v", i, err)
		}
	}

	loans, err := f.p.ListLoans(ctx, aliceAddr, loan.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(loans) != 3 {
		t.Fatalf("got %d loans, want 3", len(loans))
	}
	for i, l := range loans {
		want := uint64(3 - i)
		if l.ID != want {
			t.Errorf("position %d: got ID %d, want %d", i, l.ID, want)
		}
	}

	repaid, err := f.p.ListLoans(ctx, aliceAddr, loan.ListOpts{Status: loan.StatusRepaid, Limit: 2})
	if err != nil {
		t.Fatalf("list repaid: %v", err)
	}
	if len(repaid) != 2 {
		t.Errorf("limit ignored: got %d", len(repaid))
	}
}

func TestMirrorRecordsLoanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("create loan: %v", err)
	}
	f.mint(aliceAddr, 100_000)
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
		t.Fatalf("repay: %v", err)
	}

	f.stop()

	created := f.sink.ByKind(mirror.KindLoanCreated)
	if len(created) != 1 {
		t.Fatalf("created events: got %d, want 1", len(created))
	}
	c := created[0].(*mirror.LoanCreated)
	if c.LoanID != l.ID || !c.Amount.Equal(types.USD(100_000)) {
		t.Errorf("created record: %+v", c)
	}
	if c.EventID().IsNil() {
		t.Error("event ID not assigned")
	}

	reps := f.sink.ByKind(mirror.KindRepayment)
	if len(reps) != 1 || !reps[0].(*mirror.Repayment).Success {
		t.Errorf("repayment records: %+v", reps)
	}
}
