// Package extension provides the Forge extension adapter for BNPL.
//
// It implements the forge.Extension interface to integrate the BNPL engine
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.bnpl" or "bnpl" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/bnpl"
	"github.com/xraph/bnpl/custody"
	"github.com/xraph/bnpl/store"
	"github.com/xraph/bnpl/store/memory"
	"github.com/xraph/bnpl/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bnpl"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Embeddable buy-now-pay-later credit engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts BNPL as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *bnpl.Protocol
	store    store.Store
	asset    custody.Asset
	bnplOpts []bnpl.Option
}

// New creates a new BNPL Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Protocol instance.
// This is nil until Register is called.
func (e *Extension) Engine() *bnpl.Protocol { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the BNPL engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory backends if nothing was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.asset == nil {
		e.asset = custody.NewMemoryAsset(types.Address(e.config.PoolAddress), e.config.Currency)
	}

	roster := bnpl.NewRoster(
		types.Address(e.config.Admin),
		types.Address(e.config.Orchestrator),
		types.Address(e.config.Detector),
	)

	opts := e.buildProtocolOpts()

	eng := bnpl.New(e.store, e.asset, roster, types.Address(e.config.PoolAddress), opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*bnpl.Protocol, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("bnpl: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("bnpl: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildProtocolOpts constructs bnpl.Option values from the resolved config.
func (e *Extension) buildProtocolOpts() []bnpl.Option {
	opts := make([]bnpl.Option, 0, len(e.bnplOpts)+5)

	if e.config.Currency != "" {
		opts = append(opts, bnpl.WithCurrency(e.config.Currency))
	}
	if e.config.FeeBps > 0 {
		opts = append(opts, bnpl.WithFeeRate(e.config.FeeBps))
	}
	if e.config.RepaymentWindow > 0 {
		opts = append(opts, bnpl.WithRepaymentWindow(e.config.RepaymentWindow))
	}
	if e.config.GracePeriod > 0 {
		opts = append(opts, bnpl.WithGracePeriod(e.config.GracePeriod))
	}
	if e.config.EventBuffer > 0 {
		opts = append(opts, bnpl.WithEventBuffer(e.config.EventBuffer))
	}
	if e.config.DisableMigrate {
		opts = append(opts, bnpl.WithSkipMigrate())
	}

	// Append any pass-through protocol options.
	opts = append(opts, e.bnplOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("bnpl: configuration is required but not found in config files; " +
				"ensure 'extensions.bnpl' or 'bnpl' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("bnpl: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("currency", e.config.Currency),
		forge.F("fee_bps", e.config.FeeBps),
		forge.F("repayment_window", e.config.RepaymentWindow),
		forge.F("grace_period", e.config.GracePeriod),
		forge.F("event_buffer", e.config.EventBuffer),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.bnpl" first (namespaced pattern).
	if cm.IsSet("extensions.bnpl") {
		if err := cm.Bind("extensions.bnpl", &cfg); err == nil {
			e.Logger().Debug("bnpl: loaded config from file",
				forge.F("key", "extensions.bnpl"),
			)
			return cfg, true
		}
		e.Logger().Warn("bnpl: failed to bind extensions.bnpl config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "bnpl" key.
	if cm.IsSet("bnpl") {
		if err := cm.Bind("bnpl", &cfg); err == nil {
			e.Logger().Debug("bnpl: loaded config from file",
				forge.F("key", "bnpl"),
			)
			return cfg, true
		}
		e.Logger().Warn("bnpl: failed to bind bnpl config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = defaults.FeeBps
	}
	if cfg.RepaymentWindow == 0 {
		cfg.RepaymentWindow = defaults.RepaymentWindow
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = defaults.EventBuffer
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.Admin == "" && programmaticConfig.Admin != "" {
		yamlConfig.Admin = programmaticConfig.Admin
	}
	if yamlConfig.Orchestrator == "" && programmaticConfig.Orchestrator != "" {
		yamlConfig.Orchestrator = programmaticConfig.Orchestrator
	}
	if yamlConfig.Detector == "" && programmaticConfig.Detector != "" {
		yamlConfig.Detector = programmaticConfig.Detector
	}
	if yamlConfig.PoolAddress == "" && programmaticConfig.PoolAddress != "" {
		yamlConfig.PoolAddress = programmaticConfig.PoolAddress
	}
	if yamlConfig.Currency == "" && programmaticConfig.Currency != "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.FeeBps == 0 && programmaticConfig.FeeBps != 0 {
		yamlConfig.FeeBps = programmaticConfig.FeeBps
	}
	if yamlConfig.RepaymentWindow == 0 && programmaticConfig.RepaymentWindow != 0 {
		yamlConfig.RepaymentWindow = programmaticConfig.RepaymentWindow
	}
	if yamlConfig.GracePeriod == 0 && programmaticConfig.GracePeriod != 0 {
		yamlConfig.GracePeriod = programmaticConfig.GracePeriod
	}
	if yamlConfig.EventBuffer == 0 && programmaticConfig.EventBuffer != 0 {
		yamlConfig.EventBuffer = programmaticConfig.EventBuffer
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
