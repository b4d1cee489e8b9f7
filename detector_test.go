package bnpl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/types"
)

func TestCheckAndProcessDefault(t *testing.T) {
	f := newFixture(t, bnpl.WithGracePeriod(48*time.Hour))
	ctx := context.Background()
	det := f.p.Detector()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)

	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(100_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}

	if _, err := det.CheckAndProcessDefault(ctx, aliceAddr, aliceAddr, l.ID); !errors.Is(err, bnpl.ErrUnauthorized) {
		t.Errorf("unauthorized caller: got %v", err)
	}

	// Not overdue yet, then overdue but within grace.
	if _, err := det.CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID); !errors.Is(err, bnpl.ErrNotOverdue) {
		t.Errorf("before due: got %v", err)
	}
	f.clock.Advance(bnpl.DefaultRepaymentWindow + 24*time.Hour)
	if _, err := det.CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID); !errors.Is(err, bnpl.ErrNotOverdue) {
		t.Errorf("within grace: got %v", err)
	}

	// Exactly at due plus grace: eligible at that instant.
	f.clock.Set(l.DueAt.Add(48 * time.Hour))
	processed, err := det.CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !processed {
		t.Fatal("expected default processed at the grace boundary")
	}

	defaulted, err := f.p.Credit().IsDefaulted(ctx, aliceAddr)
	if err != nil || !defaulted {
		t.Fatalf("credit flag: %v %v", defaulted, err)
	}
	if !f.asset.IsFrozen(aliceAddr) {
		t.Error("custody not frozen")
	}

	// The single path does not flip the loan record.
	got, err := f.p.GetLoan(ctx, l.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if got.Defaulted {
		t.Error("single path flagged the loan record")
	}

	// Second evaluation of the already-defaulted borrower is a no-op.
	processed, err = det.CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if processed {
		t.Error("second evaluation processed again")
	}
}

func TestDefaultAtExactDueTime(t *testing.T) {
	f := newFixture(t) // grace period zero
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)
	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}

	f.clock.Set(l.DueAt.Add(-time.Second))
	if _, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID); !errors.Is(err, bnpl.ErrNotOverdue) {
		t.Errorf("one second early: got %v", err)
	}

	f.clock.Set(l.DueAt)
	processed, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID)
	if err != nil || !processed {
		t.Fatalf("at due instant: processed=%v err=%v", processed, err)
	}

	f.stop()
	defs := f.sink.ByKind(mirror.KindDefault)
	if len(defs) != 1 {
		t.Fatalf("default events: got %d, want 1", len(defs))
	}
	if got := defs[0].(*mirror.Default).DaysOverdue; got != 0 {
		t.Errorf("days overdue at due instant: got %d, want 0", got)
	}
}

func TestProcessDefaultRejectsMismatchedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)
	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	f.clock.Advance(bnpl.DefaultRepaymentWindow)

	if _, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, bobAddr, l.ID); !bnpl.IsValidation(err) {
		t.Errorf("mismatched user: got %v", err)
	}
}

func TestProcessDefaultSkipsRepaidLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)
	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	f.mint(aliceAddr, 10_000)
	if err := f.p.RepayLoan(ctx, aliceAddr, l.ID); err != nil {
		t.Fatalf("repay: %v", err)
	}
	f.clock.Advance(bnpl.DefaultRepaymentWindow + time.Hour)

	processed, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed {
		t.Error("repaid loan processed as default")
	}
}

func TestBatchCheckDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 100_000)
	f.enroll(bobAddr, 100_000)

	la, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(50_000))
	if err != nil {
		t.Fatalf("alice loan: %v", err)
	}
	lb, err := f.p.CreateLoan(ctx, bobAddr, merchantAddr, types.USD(50_000))
	if err != nil {
		t.Fatalf("bob loan: %v", err)
	}

	// Bob repays before the sweep.
	f.mint(bobAddr, 50_000)
	if err := f.p.RepayLoan(ctx, bobAddr, lb.ID); err != nil {
		t.Fatalf("bob repay: %v", err)
	}

	f.clock.Advance(bnpl.DefaultRepaymentWindow + time.Hour)

	det := f.p.Detector()
	if _, err := det.BatchCheckDefaults(ctx, orchAddr, []types.Address{aliceAddr}, nil); !errors.Is(err, bnpl.ErrBatchLengthMismatch) {
		t.Errorf("length mismatch: got %v", err)
	}

	// The sweep processes alice, skips bob (repaid) and skips the unknown
	// loan rather than aborting.
	users := []types.Address{aliceAddr, bobAddr, aliceAddr}
	loanIDs := []uint64{la.ID, lb.ID, 999}
	processed, err := det.BatchCheckDefaults(ctx, orchAddr, users, loanIDs)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if processed != 1 {
		t.Errorf("processed: got %d, want 1", processed)
	}

	// The batch path also flips the loan record.
	got, err := f.p.GetLoan(ctx, la.ID)
	if err != nil {
		t.Fatalf("get loan: %v", err)
	}
	if !got.Defaulted || got.DefaultedAt == nil {
		t.Error("batch did not flag the loan record")
	}

	defaulted, err := f.p.Credit().IsDefaulted(ctx, bobAddr)
	if err != nil || defaulted {
		t.Errorf("bob flagged: %v %v", defaulted, err)
	}
}

func TestDefaultFreezeFailureIsSoft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)
	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	f.clock.Advance(bnpl.DefaultRepaymentWindow + time.Hour)
	f.asset.FailFreezes = true

	processed, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !processed {
		t.Fatal("freeze failure aborted the default")
	}
	defaulted, err := f.p.Credit().IsDefaulted(ctx, aliceAddr)
	if err != nil || !defaulted {
		t.Errorf("credit flag: %v %v", defaulted, err)
	}
}

func TestDefaultMirrorRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)
	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}
	f.clock.Advance(bnpl.DefaultRepaymentWindow + 72*time.Hour)

	if _, err := f.p.Detector().CheckAndProcessDefault(ctx, adminAddr, aliceAddr, l.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	f.stop()
	defs := f.sink.ByKind(mirror.KindDefault)
	if len(defs) != 1 {
		t.Fatalf("default events: got %d, want 1", len(defs))
	}
	d := defs[0].(*mirror.Default)
	if d.User != aliceAddr || d.LoanID != l.ID {
		t.Errorf("record: %+v", d)
	}
	if !d.OverdueAmount.Equal(types.USD(10_000)) {
		t.Errorf("overdue amount: %v", d.OverdueAmount)
	}
	if d.DaysOverdue != 3 {
		t.Errorf("days overdue: got %d, want 3", d.DaysOverdue)
	}
}

func TestOverdueQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(500_000)
	f.enroll(aliceAddr, 200_000)
	l, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(10_000))
	if err != nil {
		t.Fatalf("loan: %v", err)
	}

	overdue, err := f.p.Detector().Overdue(ctx, l.ID)
	if err != nil || overdue {
		t.Errorf("fresh loan: %v %v", overdue, err)
	}

	f.clock.Set(l.DueAt)
	overdue, err = f.p.Detector().Overdue(ctx, l.ID)
	if err != nil || !overdue {
		t.Errorf("at due: %v %v", overdue, err)
	}

	if _, err := f.p.Detector().Overdue(ctx, 999); !errors.Is(err, bnpl.ErrLoanNotFound) {
		t.Errorf("missing loan: got %v", err)
	}
}
