// Package bnpl provides an embeddable buy-now-pay-later credit engine for
// Go applications.
//
// BNPL is designed as a library, not a service. Import it directly into
// your Go application and wire it to your own custody layer. It provides:
//
//   - Single-draw loans with a fixed repayment window and basis-point fees
//   - Per-user credit limits with usage tracking and default flags
//   - A shared liquidity pool with outstanding-credit and fee accounting
//   - Grace-period default detection with best-effort custody freezes
//   - A fire-and-forget event mirror for external audit surfaces
//   - Pluggable lifecycle hooks and a Forge extension for app integration
//
// # Quick Start
//
// Create a protocol instance with your preferred store and custody asset:
//
//	import (
//	    "github.com/xraph/bnpl"
//	    "github.com/xraph/bnpl/custody"
//	    "github.com/xraph/bnpl/store/memory"
//	    "github.com/xraph/bnpl/types"
//	)
//
//	asset := custody.NewMemoryAsset("pool", "usd")
//	roster := bnpl.NewRoster("admin", "orchestrator", "detector")
//
//	p := bnpl.New(memory.New(), asset, roster, "pool",
//	    bnpl.WithRepaymentWindow(30*24*time.Hour),
//	    bnpl.WithFeeRate(50),
//	)
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Stop()
//
// # Core Concepts
//
// The admin funds credit limits and the pool:
//
//	p.Credit().SetLimit(ctx, "admin", "alice", bnpl.USD(100_000))
//	p.Liquidity().Deposit(ctx, "funder", bnpl.USD(1_000_000))
//
// Loans draw against both the borrower's limit and the pool. The merchant
// is paid the principal net of the protocol fee in the same step:
//
//	loan, err := p.CreateLoan(ctx, "alice", "store", bnpl.USD(100_000))
//
// Repayment is full-principal only and releases the credit reservation:
//
//	err = p.RepayLoan(ctx, "alice", loan.ID)
//
// Overdue loans are processed by the default detector:
//
//	ok, err := p.Detector().CheckAndProcessDefault(ctx, "admin", "alice", loan.ID)
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (cents for USD, pence for GBP, etc), and fees are computed
// in basis points with floor division.
//
// # Custody
//
// The engine never holds value itself. The custody.Asset interface is the
// boundary to whatever really holds the funds; transfer results are always
// checked, and a refused transfer unwinds every ledger write the operation
// made. Optional capabilities (freezing, KYC probes) are discovered by
// type assertion and tolerated when absent.
package bnpl
