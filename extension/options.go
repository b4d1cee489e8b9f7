package extension

import (
	"time"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/store"
)

// Option configures the BNPL extension.
type Option func(*Extension)

// WithStore sets the store backend. When unset the extension uses an
// in-memory store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithAsset sets the custody asset backend. When unset the extension
// uses an in-memory asset keyed by the configured pool address.
func WithAsset(a custody.Asset) Option {
	return func(e *Extension) {
		e.asset = a
	}
}

// WithConfig sets the full configuration programmatically.
// Config file values take precedence over programmatic values.
func WithConfig(cfg Config) Option {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithDisableMigrate disables automatic store migration on startup.
func WithDisableMigrate() Option {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}

// WithRequireConfig makes startup fail if no configuration is found
// in config files. Without this option the extension falls back to
// programmatic config merged with defaults.
func WithRequireConfig() Option {
	return func(e *Extension) {
		e.config.RequireConfig = true
	}
}

// WithRoles sets the admin, orchestrator and detector identities.
func WithRoles(admin, orchestrator, detector string) Option {
	return func(e *Extension) {
		e.config.Admin = admin
		e.config.Orchestrator = orchestrator
		e.config.Detector = detector
	}
}

// WithPoolAddress sets the engine's own custody account address.
func WithPoolAddress(addr string) Option {
	return func(e *Extension) {
		e.config.PoolAddress = addr
	}
}

// WithCurrency sets the currency code all amounts must carry.
func WithCurrency(code string) Option {
	return func(e *Extension) {
		e.config.Currency = code
	}
}

// WithFeeRate sets the merchant fee rate in basis points.
func WithFeeRate(bps int64) Option {
	return func(e *Extension) {
		e.config.FeeBps = bps
	}
}

// WithRepaymentWindow sets the loan repayment window.
func WithRepaymentWindow(d time.Duration) Option {
	return func(e *Extension) {
		e.config.RepaymentWindow = d
	}
}

// WithGracePeriod sets the post-due delay before default eligibility.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Extension) {
		e.config.GracePeriod = d
	}
}

// WithEventBuffer sets the mirror event buffer capacity.
func WithEventBuffer(n int) Option {
	return func(e *Extension) {
		e.config.EventBuffer = n
	}
}

// WithPlugin registers a lifecycle plugin with the engine.
func WithPlugin(p bnpl.Plugin) Option {
	return func(e *Extension) {
		e.bnplOpts = append(e.bnplOpts, bnpl.WithPlugin(p))
	}
}

// WithProtocolOption passes a raw bnpl.Option through to the engine.
func WithProtocolOption(opt bnpl.Option) Option {
	return func(e *Extension) {
		e.bnplOpts = append(e.bnplOpts, opt)
	}
}
