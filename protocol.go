package bnpl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/liquidity"
	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/types"
)

// Protocol is the BNPL credit engine: the loan orchestrator plus the
// credit ledger, liquidity ledger and default detector it composes.
//
// All state-mutating entry points are strictly serialized, and a
// non-reentrant guard is held across every fund-moving custody call: a
// custody implementation that calls back into the engine mid-move is
// rejected with ErrReentrantCall instead of observing half-mutated state.
type Protocol struct {
	store   store.Store
	asset   custody.Asset
	roster  *Roster
	plugins *plugin.Registry
	logger  *slog.Logger
	sink    mirror.Sink

	// mu serializes state-mutating entry points; guard latches across
	// custody calls so reentrant invocations fail fast instead of
	// deadlocking on mu.
	mu    sync.Mutex
	guard types.Guard

	now func() time.Time

	// Configuration. Mutable only by admin setters, under mu.
	currency        string
	poolAddress     types.Address
	repaymentWindow time.Duration
	feeBps          int64
	gracePeriod     time.Duration
	skipMigrate     bool

	// Event mirror worker
	eventBuf chan mirror.Event
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Default configuration values.
const (
	DefaultRepaymentWindow = 14 * 24 * time.Hour
	DefaultFeeBps          = 50
	DefaultEventBuffer     = 1024
)

// New creates a new Protocol instance. The roster carries the wiring
// identities; the pool address is the engine's own custody account.
func New(s store.Store, asset custody.Asset, roster *Roster, poolAddress types.Address, opts ...Option) *Protocol {
	p := &Protocol{
		store:           s,
		asset:           asset,
		roster:          roster,
		plugins:         plugin.NewRegistry(),
		logger:          slog.Default(),
		sink:            mirror.NopSink(),
		now:             func() time.Time { return time.Now().UTC() },
		currency:        "usd",
		poolAddress:     poolAddress,
		repaymentWindow: DefaultRepaymentWindow,
		feeBps:          DefaultFeeBps,
		gracePeriod:     0,
		eventBuf:        make(chan mirror.Event, DefaultEventBuffer),
		stopChan:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Option configures a Protocol instance.
type Option func(*Protocol)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Protocol) {
		p.logger = logger
		p.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(pl plugin.Plugin) Option {
	return func(p *Protocol) {
		_ = p.plugins.Register(pl) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithMirror sets the event mirror sink.
func WithMirror(sink mirror.Sink) Option {
	return func(p *Protocol) {
		p.sink = sink
	}
}

// WithClock sets the time source shared by the orchestrator and detector.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		p.now = now
	}
}

// WithCurrency sets the pool denomination (default "usd").
func WithCurrency(currency string) Option {
	return func(p *Protocol) {
		p.currency = currency
	}
}

// WithRepaymentWindow sets the loan repayment window.
func WithRepaymentWindow(d time.Duration) Option {
	return func(p *Protocol) {
		p.repaymentWindow = d
	}
}

// WithFeeRate sets the protocol fee in basis points (0–10000).
func WithFeeRate(bps int64) Option {
	return func(p *Protocol) {
		p.feeBps = bps
	}
}

// WithGracePeriod sets the delay past due time before default eligibility.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Protocol) {
		p.gracePeriod = d
	}
}

// WithEventBuffer sets the mirror event buffer capacity.
func WithEventBuffer(n int) Option {
	return func(p *Protocol) {
		p.eventBuf = make(chan mirror.Event, n)
	}
}

// WithSkipMigrate disables store migration on Start. Use when migrations
// are managed externally.
func WithSkipMigrate() Option {
	return func(p *Protocol) {
		p.skipMigrate = true
	}
}

// Start validates configuration, migrates the store, initializes the pool
// row, initializes plugins and starts the mirror delivery worker.
func (p *Protocol) Start(ctx context.Context) error {
	if p.repaymentWindow <= 0 {
		return ErrInvalidWindow
	}
	if p.feeBps < 0 || p.feeBps > types.BpsDenominator {
		return ErrInvalidFeeRate
	}
	if p.gracePeriod < 0 {
		return ErrInvalidGracePeriod
	}
	if p.poolAddress.IsZero() {
		return ErrInvalidIdentity
	}

	if !p.skipMigrate {
		if err := p.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize the singleton pool row on first start.
	if _, err := p.store.GetPoolState(ctx); err != nil {
		if !IsNotFound(err) {
			return err
		}
		if err := p.store.PutPoolState(ctx, liquidity.NewPoolState(p.currency)); err != nil {
			return err
		}
	}

	p.plugins.EmitInit(ctx, p)

	p.wg.Add(1)
	go p.mirrorWorker(ctx)

	p.logger.Info("bnpl protocol started",
		"repayment_window", p.repaymentWindow,
		"fee_bps", p.feeBps,
		"grace_period", p.gracePeriod,
		"currency", p.currency,
	)

	return nil
}

// Stop shuts down the Protocol, draining buffered mirror events. Safe to
// call more than once; later calls return nil without doing anything.
func (p *Protocol) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.wg.Wait()

		ctx := context.Background()
		p.plugins.EmitShutdown(ctx)

		err = p.store.Close()
	})
	return err
}

// Roster returns the protocol's permission table.
func (p *Protocol) Roster() *Roster { return p.roster }

// Plugins returns the plugin registry.
func (p *Protocol) Plugins() *plugin.Registry { return p.plugins }

// ──────────────────────────────────────────────────
// Admin configuration
// ──────────────────────────────────────────────────

// SetRepaymentWindow changes the repayment window for future loans.
// Admin-only; existing loans keep their due times.
func (p *Protocol) SetRepaymentWindow(_ context.Context, caller types.Address, d time.Duration) error {
	if err := p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if d <= 0 {
		return ErrInvalidWindow
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repaymentWindow = d
	return nil
}

// SetFeeRate changes the protocol fee in basis points (0–10000). Admin-only.
func (p *Protocol) SetFeeRate(_ context.Context, caller types.Address, bps int64) error {
	if err := p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if bps < 0 || bps > types.BpsDenominator {
		return ErrInvalidFeeRate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feeBps = bps
	return nil
}

// SetGracePeriod changes the default-eligibility grace period. Admin-only;
// zero is valid.
func (p *Protocol) SetGracePeriod(_ context.Context, caller types.Address, d time.Duration) error {
	if err := p.roster.RequireAdmin(caller); err != nil {
		return err
	}
	if d < 0 {
		return ErrInvalidGracePeriod
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gracePeriod = d
	return nil
}

// RepaymentWindow returns the configured repayment window.
func (p *Protocol) RepaymentWindow() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repaymentWindow
}

// FeeRate returns the configured fee in basis points.
func (p *Protocol) FeeRate() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feeBps
}

// GracePeriod returns the configured grace period.
func (p *Protocol) GracePeriod() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gracePeriod
}

// ──────────────────────────────────────────────────
// Event mirror
// ──────────────────────────────────────────────────

// emit queues a mirror event without blocking. A full buffer drops the
// event: the mirror is fire-and-forget and feeds nothing back into core
// state, so losing a record never aborts or retries the operation.
func (p *Protocol) emit(e mirror.Event) {
	select {
	case p.eventBuf <- e:
	default:
		p.logger.Warn("mirror buffer full, event dropped",
			"kind", e.Kind(),
			"event_id", e.EventID().String(),
		)
	}
}

// mirrorWorker delivers buffered events to the sink.
func (p *Protocol) mirrorWorker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			// Final drain.
			for {
				select {
				case e := <-p.eventBuf:
					p.deliver(ctx, e)
				default:
					return
				}
			}

		case e := <-p.eventBuf:
			p.deliver(ctx, e)
		}
	}
}

func (p *Protocol) deliver(ctx context.Context, e mirror.Event) {
	if err := p.sink.Emit(ctx, e); err != nil {
		p.logger.Warn("mirror delivery failed",
			"kind", e.Kind(),
			"event_id", e.EventID().String(),
			"error", err,
		)
	}
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// enterMutation rejects reentrant invocations before they can block on mu,
// then serializes the caller. Must be paired with p.mu.Unlock.
func (p *Protocol) enterMutation() error {
	if p.guard.Held() {
		return ErrReentrantCall
	}
	p.mu.Lock()
	return nil
}

// validAmount rejects non-positive amounts and foreign currencies before
// any mutation.
func (p *Protocol) validAmount(amount types.Money) error {
	if amount.Currency != p.currency {
		return ValidationError{Field: "amount", Message: "currency does not match pool denomination"}
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
