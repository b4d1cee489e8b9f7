package bnpl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/types"
)

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mint(lpAddr, 300_000)
	if err := f.p.Liquidity().Deposit(ctx, lpAddr, types.USD(200_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	total, outstanding, fees := f.poolState()
	if total != 200_000 || outstanding != 0 || fees != 0 {
		t.Errorf("pool: total=%d outstanding=%d fees=%d", total, outstanding, fees)
	}
	if got := f.balance(poolAddr); got != 200_000 {
		t.Errorf("pool custody: got %d, want 200000", got)
	}
	if got := f.balance(lpAddr); got != 100_000 {
		t.Errorf("lp balance: got %d, want 100000", got)
	}
}

func TestDepositRefusedChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No funds minted, so the pull is refused.
	err := f.p.Liquidity().Deposit(ctx, lpAddr, types.USD(100_000))
	if !errors.Is(err, bnpl.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}
	total, _, _ := f.poolState()
	if total != 0 {
		t.Errorf("total after refused deposit: %d", total)
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	liq := f.p.Liquidity()

	f.deposit(300_000)

	if err := liq.Withdraw(ctx, lpAddr, types.USD(100_000), lpAddr); !errors.Is(err, bnpl.ErrNotAdmin) {
		t.Errorf("non-admin withdraw: got %v", err)
	}
	if err := liq.Withdraw(ctx, adminAddr, types.USD(400_000), lpAddr); !errors.Is(err, bnpl.ErrInsufficientLiquidity) {
		t.Errorf("over-withdraw: got %v", err)
	}

	if err := liq.Withdraw(ctx, adminAddr, types.USD(100_000), lpAddr); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	total, _, _ := f.poolState()
	if total != 200_000 {
		t.Errorf("total: got %d, want 200000", total)
	}
	if got := f.balance(lpAddr); got != 100_000 {
		t.Errorf("recipient balance: got %d, want 100000", got)
	}
}

func TestWithdrawRespectsOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(300_000)
	f.enroll(aliceAddr, 200_000)
	if _, err := f.p.CreateLoan(ctx, aliceAddr, merchantAddr, types.USD(150_000)); err != nil {
		t.Fatalf("loan: %v", err)
	}

	// Total is 300000-149250=150750, outstanding 150000: only 750 free.
	err := f.p.Liquidity().Withdraw(ctx, adminAddr, types.USD(1_000), lpAddr)
	if !errors.Is(err, bnpl.ErrInsufficientLiquidity) {
		t.Errorf("withdraw into outstanding: got %v", err)
	}
	if err := f.p.Liquidity().Withdraw(ctx, adminAddr, types.USD(750), lpAddr); err != nil {
		t.Errorf("withdraw free headroom: %v", err)
	}
}

func TestWithdrawCompensatesOnRefusedTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.deposit(300_000)
	f.asset.RefuseTransfers = true

	err := f.p.Liquidity().Withdraw(ctx, adminAddr, types.USD(100_000), lpAddr)
	if !errors.Is(err, bnpl.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", err)
	}
	total, _, _ := f.poolState()
	if total != 300_000 {
		t.Errorf("total not compensated: got %d", total)
	}
}

func TestSettleMerchantValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	liq := f.p.Liquidity()

	f.deposit(100_000)

	if err := liq.SettleMerchant(ctx, adminAddr, merchantAddr, types.USD(10_000), types.USD(50), 1); !errors.Is(err, bnpl.ErrUnauthorized) {
		t.Errorf("non-orchestrator: got %v", err)
	}
	if err := liq.SettleMerchant(ctx, orchAddr, merchantAddr, types.USD(10_000), types.USD(-1), 1); !bnpl.IsValidation(err) {
		t.Errorf("negative fee: got %v", err)
	}
	if err := liq.SettleMerchant(ctx, orchAddr, merchantAddr, types.USD(10_000), types.USD(10_001), 1); !bnpl.IsValidation(err) {
		t.Errorf("fee above amount: got %v", err)
	}
	if err := liq.SettleMerchant(ctx, orchAddr, merchantAddr, types.USD(200_000), types.USD(1_000), 1); !errors.Is(err, bnpl.ErrInsufficientLiquidity) {
		t.Errorf("amount above total: got %v", err)
	}

	if err := liq.SettleMerchant(ctx, orchAddr, merchantAddr, types.USD(10_000), types.USD(50), 1); err != nil {
		t.Fatalf("settle: %v", err)
	}
	total, outstanding, _ := f.poolState()
	if total != 90_050 || outstanding != 10_000 {
		t.Errorf("pool: total=%d outstanding=%d", total, outstanding)
	}
	if got := f.balance(merchantAddr); got != 9_950 {
		t.Errorf("merchant: got %d, want 9950", got)
	}
}

func TestReceiveRepaymentCapsOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	liq := f.p.Liquidity()

	f.deposit(100_000)
	if err := liq.SettleMerchant(ctx, orchAddr, merchantAddr, types.USD(10_000), types.USD(0), 1); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// A repayment above outstanding retires all of it without going
	// negative.
	f.mint(aliceAddr, 15_000)
	if err := liq.ReceiveRepayment(ctx, orchAddr, aliceAddr, types.USD(15_000), 1); err != nil {
		t.Fatalf("repayment: %v", err)
	}
	total, outstanding, _ := f.poolState()
	if total != 105_000 {
		t.Errorf("total: got %d, want 105000", total)
	}
	if outstanding != 0 {
		t.Errorf("outstanding: got %d, want 0", outstanding)
	}
}

func TestCollectAndWithdrawFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	liq := f.p.Liquidity()

	f.deposit(100_000)

	if err := liq.CollectFees(ctx, orchAddr, types.USD(800)); err != nil {
		t.Fatalf("collect: %v", err)
	}
	_, _, fees := f.poolState()
	if fees != 800 {
		t.Errorf("fees: got %d, want 800", fees)
	}

	if err := liq.WithdrawFees(ctx, adminAddr, types.USD(1_000), lpAddr); !errors.Is(err, bnpl.ErrInsufficientFees) {
		t.Errorf("over-withdraw fees: got %v", err)
	}
	if err := liq.WithdrawFees(ctx, orchAddr, types.USD(100), lpAddr); !errors.Is(err, bnpl.ErrNotAdmin) {
		t.Errorf("non-admin fee withdraw: got %v", err)
	}

	if err := liq.WithdrawFees(ctx, adminAddr, types.USD(500), lpAddr); err != nil {
		t.Fatalf("withdraw fees: %v", err)
	}
	total, _, fees := f.poolState()
	if fees != 300 {
		t.Errorf("fees: got %d, want 300", fees)
	}
	if total != 100_000 {
		t.Errorf("fee withdrawal touched total liquidity: %d", total)
	}
	if got := f.balance(lpAddr); got != 500 {
		t.Errorf("recipient: got %d, want 500", got)
	}
}

func TestPoolQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	liq := f.p.Liquidity()

	f.deposit(100_000)
	if err := liq.SettleMerchant(ctx, orchAddr, merchantAddr, types.USD(25_000), types.USD(0), 1); err != nil {
		t.Fatalf("settle: %v", err)
	}

	avail, err := liq.Available(ctx)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if avail.Amount != 50_000 {
		t.Errorf("available: got %d, want 50000", avail.Amount)
	}

	bps, err := liq.UtilizationBps(ctx)
	if err != nil {
		t.Fatalf("utilization: %v", err)
	}
	// 25000 outstanding over 75000 total, floored.
	if bps != 3_333 {
		t.Errorf("utilization: got %d bps, want 3333", bps)
	}

	bal, err := liq.PoolBalance(ctx)
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if bal.Amount != 75_000 {
		t.Errorf("custody balance: got %d, want 75000", bal.Amount)
	}
}
