package bnpl

import (
	"github.com/xraph/bnpl/plugin"
	"github.com/xraph/bnpl/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Address is re-exported from types package.
type Address = types.Address

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	Zero = types.Zero
	In   = types.In
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

// Plugin is re-exported from the plugin package.
type Plugin = plugin.Plugin
