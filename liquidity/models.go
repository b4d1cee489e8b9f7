// Package liquidity defines the shared pool state record.
package liquidity

import (
	"github.com/xraph/bnpl/types"
)

// PoolState is the authoritative accounting position of the liquidity pool.
// Custody of the underlying funds lives in the external asset; this record
// tracks what the pool believes it holds and has committed.
//
// Invariant maintained by the engine: OutstandingCredit never exceeds
// TotalLiquidity, and no field goes negative.
type PoolState struct {
	types.Entity
	TotalLiquidity    types.Money `json:"total_liquidity"`
	OutstandingCredit types.Money `json:"outstanding_credit"`
	ProtocolFees      types.Money `json:"protocol_fees"`
}

// NewPoolState returns an empty pool denominated in the given currency.
func NewPoolState(currency string) *PoolState {
	return &PoolState{
		Entity:            types.NewEntity(),
		TotalLiquidity:    types.Zero(currency),
		OutstandingCredit: types.Zero(currency),
		ProtocolFees:      types.Zero(currency),
	}
}

// Available returns pooled funds not committed to outstanding loans,
// floored at zero.
func (p *PoolState) Available() types.Money {
	return p.TotalLiquidity.Subtract(p.OutstandingCredit).FloorZero()
}

// UtilizationBps returns outstanding/total in basis points, 0 when the
// pool is empty.
func (p *PoolState) UtilizationBps() int64 {
	return p.OutstandingCredit.BpsRatio(p.TotalLiquidity)
}
