// Package observability provides a metrics extension for BNPL that records
// lifecycle event counts via an injected MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/bnpl/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnLoanCreated        = (*MetricsExtension)(nil)
	_ plugin.OnLoanRepaid         = (*MetricsExtension)(nil)
	_ plugin.OnLoanDefaulted      = (*MetricsExtension)(nil)
	_ plugin.OnDisputeLogged      = (*MetricsExtension)(nil)
	_ plugin.OnCreditLimitSet     = (*MetricsExtension)(nil)
	_ plugin.OnUserUnblocked      = (*MetricsExtension)(nil)
	_ plugin.OnLiquidityDeposited = (*MetricsExtension)(nil)
	_ plugin.OnLiquidityWithdrawn = (*MetricsExtension)(nil)
	_ plugin.OnFeesWithdrawn      = (*MetricsExtension)(nil)
	_ plugin.OnFreezeFailed       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a BNPL plugin to automatically track lending metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Loan metrics
	LoansCreated   Counter
	LoansRepaid    Counter
	LoansDefaulted Counter
	DaysOverdue    Histogram
	Disputes       Counter

	// Credit metrics
	LimitsSet      Counter
	UsersUnblocked Counter

	// Liquidity metrics
	Deposits       Counter
	Withdrawals    Counter
	FeeWithdrawals Counter

	// Custody metrics
	FreezeFailures Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Loan metrics
		LoansCreated:   factory.Counter("bnpl.loan.created"),
		LoansRepaid:    factory.Counter("bnpl.loan.repaid"),
		LoansDefaulted: factory.Counter("bnpl.loan.defaulted"),
		DaysOverdue:    factory.Histogram("bnpl.loan.days_overdue"),
		Disputes:       factory.Counter("bnpl.dispute.logged"),

		// Credit metrics
		LimitsSet:      factory.Counter("bnpl.credit.limits_set"),
		UsersUnblocked: factory.Counter("bnpl.credit.users_unblocked"),

		// Liquidity metrics
		Deposits:       factory.Counter("bnpl.liquidity.deposits"),
		Withdrawals:    factory.Counter("bnpl.liquidity.withdrawals"),
		FeeWithdrawals: factory.Counter("bnpl.fees.withdrawals"),

		// Custody metrics
		FreezeFailures: factory.Counter("bnpl.custody.freeze_failures"),

		// Error metrics
		StoreErrors:  factory.Counter("bnpl.store.errors"),
		PluginErrors: factory.Counter("bnpl.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Loan lifecycle hooks
// ──────────────────────────────────────────────────

// OnLoanCreated implements plugin.OnLoanCreated.
func (m *MetricsExtension) OnLoanCreated(_ context.Context, _ interface{}) error {
	m.LoansCreated.Inc()
	return nil
}

// OnLoanRepaid implements plugin.OnLoanRepaid.
func (m *MetricsExtension) OnLoanRepaid(_ context.Context, _ interface{}) error {
	m.LoansRepaid.Inc()
	return nil
}

// OnLoanDefaulted implements plugin.OnLoanDefaulted.
func (m *MetricsExtension) OnLoanDefaulted(_ context.Context, _ interface{}, daysOverdue int64) error {
	m.LoansDefaulted.Inc()
	m.DaysOverdue.Observe(float64(daysOverdue))
	return nil
}

// OnDisputeLogged implements plugin.OnDisputeLogged.
func (m *MetricsExtension) OnDisputeLogged(_ context.Context, _, _ string, _ uint64, _ string) error {
	m.Disputes.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Credit lifecycle hooks
// ──────────────────────────────────────────────────

// OnCreditLimitSet implements plugin.OnCreditLimitSet.
func (m *MetricsExtension) OnCreditLimitSet(_ context.Context, _ string, _ interface{}) error {
	m.LimitsSet.Inc()
	return nil
}

// OnUserUnblocked implements plugin.OnUserUnblocked.
func (m *MetricsExtension) OnUserUnblocked(_ context.Context, _ string) error {
	m.UsersUnblocked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Liquidity lifecycle hooks
// ──────────────────────────────────────────────────

// OnLiquidityDeposited implements plugin.OnLiquidityDeposited.
func (m *MetricsExtension) OnLiquidityDeposited(_ context.Context, _ string, _ interface{}) error {
	m.Deposits.Inc()
	return nil
}

// OnLiquidityWithdrawn implements plugin.OnLiquidityWithdrawn.
func (m *MetricsExtension) OnLiquidityWithdrawn(_ context.Context, _ string, _ interface{}) error {
	m.Withdrawals.Inc()
	return nil
}

// OnFeesWithdrawn implements plugin.OnFeesWithdrawn.
func (m *MetricsExtension) OnFeesWithdrawn(_ context.Context, _ string, _ interface{}) error {
	m.FeeWithdrawals.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Custody hooks
// ──────────────────────────────────────────────────

// OnFreezeFailed implements plugin.OnFreezeFailed.
func (m *MetricsExtension) OnFreezeFailed(_ context.Context, _ string, _ error) error {
	m.FreezeFailures.Inc()
	return nil
}
