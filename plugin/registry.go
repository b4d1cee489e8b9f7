package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onLoanCreated         []OnLoanCreated
	onLoanRepaid          []OnLoanRepaid
	onLoanDefaulted       []OnLoanDefaulted
	onDisputeLogged       []OnDisputeLogged
	onCreditLimitSet      []OnCreditLimitSet
	onUserUnblocked       []OnUserUnblocked
	onLiquidityDeposited  []OnLiquidityDeposited
	onLiquidityWithdrawn  []OnLiquidityWithdrawn
	onFeesWithdrawn       []OnFeesWithdrawn
	onFreezeFailed        []OnFreezeFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnLoanCreated); ok {
		r.onLoanCreated = append(r.onLoanCreated, v)
	}
	if v, ok := p.(OnLoanRepaid); ok {
		r.onLoanRepaid = append(r.onLoanRepaid, v)
	}
	if v, ok := p.(OnLoanDefaulted); ok {
		r.onLoanDefaulted = append(r.onLoanDefaulted, v)
	}
	if v, ok := p.(OnDisputeLogged); ok {
		r.onDisputeLogged = append(r.onDisputeLogged, v)
	}
	if v, ok := p.(OnCreditLimitSet); ok {
		r.onCreditLimitSet = append(r.onCreditLimitSet, v)
	}
	if v, ok := p.(OnUserUnblocked); ok {
		r.onUserUnblocked = append(r.onUserUnblocked, v)
	}
	if v, ok := p.(OnLiquidityDeposited); ok {
		r.onLiquidityDeposited = append(r.onLiquidityDeposited, v)
	}
	if v, ok := p.(OnLiquidityWithdrawn); ok {
		r.onLiquidityWithdrawn = append(r.onLiquidityWithdrawn, v)
	}
	if v, ok := p.(OnFeesWithdrawn); ok {
		r.onFeesWithdrawn = append(r.onFeesWithdrawn, v)
	}
	if v, ok := p.(OnFreezeFailed); ok {
		r.onFreezeFailed = append(r.onFreezeFailed, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLoanCreated emits a loan created event.
func (r *Registry) EmitLoanCreated(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLoanCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLoanCreated(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLoanCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLoanRepaid emits a loan repaid event.
func (r *Registry) EmitLoanRepaid(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onLoanRepaid
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLoanRepaid(ctx, l)
		}); err != nil {
			r.logger.Warn("plugin OnLoanRepaid failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLoanDefaulted emits a loan defaulted event.
func (r *Registry) EmitLoanDefaulted(ctx context.Context, l interface{}, daysOverdue int64) {
	r.mu.RLock()
	plugins := r.onLoanDefaulted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLoanDefaulted(ctx, l, daysOverdue)
		}); err != nil {
			r.logger.Warn("plugin OnLoanDefaulted failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitDisputeLogged emits a dispute logged event.
func (r *Registry) EmitDisputeLogged(ctx context.Context, user, merchant string, loanID uint64, reason string) {
	r.mu.RLock()
	plugins := r.onDisputeLogged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDisputeLogged(ctx, user, merchant, loanID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnDisputeLogged failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitCreditLimitSet emits a credit limit set event.
func (r *Registry) EmitCreditLimitSet(ctx context.Context, user string, limit interface{}) {
	r.mu.RLock()
	plugins := r.onCreditLimitSet
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCreditLimitSet(ctx, user, limit)
		}); err != nil {
			r.logger.Warn("plugin OnCreditLimitSet failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitUserUnblocked emits a user unblocked event.
func (r *Registry) EmitUserUnblocked(ctx context.Context, user string) {
	r.mu.RLock()
	plugins := r.onUserUnblocked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUserUnblocked(ctx, user)
		}); err != nil {
			r.logger.Warn("plugin OnUserUnblocked failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLiquidityDeposited emits a liquidity deposited event.
func (r *Registry) EmitLiquidityDeposited(ctx context.Context, from string, amount interface{}) {
	r.mu.RLock()
	plugins := r.onLiquidityDeposited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLiquidityDeposited(ctx, from, amount)
		}); err != nil {
			r.logger.Warn("plugin OnLiquidityDeposited failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLiquidityWithdrawn emits a liquidity withdrawn event.
func (r *Registry) EmitLiquidityWithdrawn(ctx context.Context, recipient string, amount interface{}) {
	r.mu.RLock()
	plugins := r.onLiquidityWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLiquidityWithdrawn(ctx, recipient, amount)
		}); err != nil {
			r.logger.Warn("plugin OnLiquidityWithdrawn failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitFeesWithdrawn emits a fees withdrawn event.
func (r *Registry) EmitFeesWithdrawn(ctx context.Context, recipient string, amount interface{}) {
	r.mu.RLock()
	plugins := r.onFeesWithdrawn
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFeesWithdrawn(ctx, recipient, amount)
		}); err != nil {
			r.logger.Warn("plugin OnFeesWithdrawn failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitFreezeFailed emits a freeze failed event.
func (r *Registry) EmitFreezeFailed(ctx context.Context, user string, ferr error) {
	r.mu.RLock()
	plugins := r.onFreezeFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFreezeFailed(ctx, user, ferr)
		}); err != nil {
			r.logger.Warn("plugin OnFreezeFailed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the lending pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
