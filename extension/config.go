package extension

import "time"

// Config holds the BNPL extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.bnpl" or "bnpl" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Admin is the address allowed to perform admin operations.
	Admin string `json:"admin" mapstructure:"admin" yaml:"admin"`

	// Orchestrator is the address the loan orchestrator acts under.
	Orchestrator string `json:"orchestrator" mapstructure:"orchestrator" yaml:"orchestrator"`

	// Detector is the address the default detector acts under.
	Detector string `json:"detector" mapstructure:"detector" yaml:"detector"`

	// PoolAddress is the custody account holding pool funds.
	PoolAddress string `json:"pool_address" mapstructure:"pool_address" yaml:"pool_address"`

	// Currency is the pool denomination (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// FeeBps is the protocol fee in basis points (default: 50).
	FeeBps int64 `json:"fee_bps" mapstructure:"fee_bps" yaml:"fee_bps"`

	// RepaymentWindow is how long borrowers have to repay (default: 336h).
	RepaymentWindow time.Duration `json:"repayment_window" mapstructure:"repayment_window" yaml:"repayment_window"`

	// GracePeriod is the delay past due time before default eligibility
	// (default: 0).
	GracePeriod time.Duration `json:"grace_period" mapstructure:"grace_period" yaml:"grace_period"`

	// EventBuffer is the mirror event buffer capacity (default: 1024).
	EventBuffer int `json:"event_buffer" mapstructure:"event_buffer" yaml:"event_buffer"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:        "usd",
		FeeBps:          50,
		RepaymentWindow: 14 * 24 * time.Hour,
		EventBuffer:     1024,
	}
}
