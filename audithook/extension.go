// Package audithook bridges BNPL lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import any
// concrete audit system directly. Callers inject a RecorderFunc adapter
// that bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/bnpl/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnLoanCreated        = (*Extension)(nil)
	_ plugin.OnLoanRepaid         = (*Extension)(nil)
	_ plugin.OnLoanDefaulted      = (*Extension)(nil)
	_ plugin.OnDisputeLogged      = (*Extension)(nil)
	_ plugin.OnCreditLimitSet     = (*Extension)(nil)
	_ plugin.OnUserUnblocked      = (*Extension)(nil)
	_ plugin.OnLiquidityDeposited = (*Extension)(nil)
	_ plugin.OnLiquidityWithdrawn = (*Extension)(nil)
	_ plugin.OnFeesWithdrawn      = (*Extension)(nil)
	_ plugin.OnFreezeFailed       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package stays free of backend dependencies;
// callers inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges BNPL lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Loan lifecycle hooks
// ──────────────────────────────────────────────────

// OnLoanCreated implements plugin.OnLoanCreated.
func (e *Extension) OnLoanCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionLoanCreated, SeverityInfo, OutcomeSuccess,
		ResourceLoan, "", CategoryLending, nil,
		"event", "loan_created",
	)
}

// OnLoanRepaid implements plugin.OnLoanRepaid.
func (e *Extension) OnLoanRepaid(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionLoanRepaid, SeverityInfo, OutcomeSuccess,
		ResourceLoan, "", CategoryLending, nil,
		"event", "loan_repaid",
	)
}

// OnLoanDefaulted implements plugin.OnLoanDefaulted. Defaults carry loss
// exposure, so they audit at warning severity.
func (e *Extension) OnLoanDefaulted(ctx context.Context, _ interface{}, daysOverdue int64) error {
	return e.record(ctx, ActionLoanDefaulted, SeverityWarning, OutcomeSuccess,
		ResourceLoan, "", CategoryRisk, nil,
		"event", "loan_defaulted",
		"days_overdue", daysOverdue,
	)
}

// OnDisputeLogged implements plugin.OnDisputeLogged.
func (e *Extension) OnDisputeLogged(ctx context.Context, user, merchant string, loanID uint64, reason string) error {
	return e.record(ctx, ActionDisputeLogged, SeverityWarning, OutcomeSuccess,
		ResourceDispute, "", CategoryLending, nil,
		"user", user,
		"merchant", merchant,
		"loan_id", loanID,
		"dispute_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Credit lifecycle hooks
// ──────────────────────────────────────────────────

// OnCreditLimitSet implements plugin.OnCreditLimitSet.
func (e *Extension) OnCreditLimitSet(ctx context.Context, user string, limit interface{}) error {
	return e.record(ctx, ActionCreditLimitSet, SeverityInfo, OutcomeSuccess,
		ResourceAccount, user, CategoryCredit, nil,
		"user", user,
		"limit", fmt.Sprintf("%v", limit),
	)
}

// OnUserUnblocked implements plugin.OnUserUnblocked.
func (e *Extension) OnUserUnblocked(ctx context.Context, user string) error {
	return e.record(ctx, ActionUserUnblocked, SeverityInfo, OutcomeSuccess,
		ResourceAccount, user, CategoryCredit, nil,
		"user", user,
	)
}

// ──────────────────────────────────────────────────
// Liquidity lifecycle hooks
// ──────────────────────────────────────────────────

// OnLiquidityDeposited implements plugin.OnLiquidityDeposited.
func (e *Extension) OnLiquidityDeposited(ctx context.Context, from string, amount interface{}) error {
	return e.record(ctx, ActionLiquidityDeposited, SeverityInfo, OutcomeSuccess,
		ResourcePool, "", CategoryTreasury, nil,
		"from", from,
		"amount", fmt.Sprintf("%v", amount),
	)
}

// OnLiquidityWithdrawn implements plugin.OnLiquidityWithdrawn.
func (e *Extension) OnLiquidityWithdrawn(ctx context.Context, recipient string, amount interface{}) error {
	return e.record(ctx, ActionLiquidityWithdrawn, SeverityWarning, OutcomeSuccess,
		ResourcePool, "", CategoryTreasury, nil,
		"recipient", recipient,
		"amount", fmt.Sprintf("%v", amount),
	)
}

// OnFeesWithdrawn implements plugin.OnFeesWithdrawn.
func (e *Extension) OnFeesWithdrawn(ctx context.Context, recipient string, amount interface{}) error {
	return e.record(ctx, ActionFeesWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourcePool, "", CategoryTreasury, nil,
		"recipient", recipient,
		"amount", fmt.Sprintf("%v", amount),
	)
}

// ──────────────────────────────────────────────────
// Custody hooks
// ──────────────────────────────────────────────────

// OnFreezeFailed implements plugin.OnFreezeFailed. Freeze failures leave a
// defaulted user's custody account live, so they audit as failures.
func (e *Extension) OnFreezeFailed(ctx context.Context, user string, err error) error {
	return e.record(ctx, ActionFreezeFailed, SeverityError, OutcomeFailure,
		ResourceCustody, user, CategoryRisk, err,
		"user", user,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
