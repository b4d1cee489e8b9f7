// Package credit defines the per-user credit account record.
package credit

import (
	"github.com/xraph/bnpl/types"
)

// Account is the authoritative per-user credit position.
//
// Invariants maintained by the engine:
//   - Used never exceeds Limit.
//   - HasActiveCredit holds exactly when Used is positive: at most one
//     open draw per user.
//   - Defaulted is monotone; only an admin unblock clears it.
type Account struct {
	types.Entity
	User            types.Address `json:"user"`
	Limit           types.Money   `json:"limit"`
	Used            types.Money   `json:"used"`
	Defaulted       bool          `json:"defaulted"`
	HasActiveCredit bool          `json:"has_active_credit"`
}

// Available returns the remaining credit headroom, floored at zero.
func (a *Account) Available() types.Money {
	return a.Limit.Subtract(a.Used).FloorZero()
}

// CanBorrow reports whether a draw of the given amount would be accepted:
// not defaulted, no open draw, and amount within the available headroom.
func (a *Account) CanBorrow(amount types.Money) bool {
	if a.Defaulted || a.HasActiveCredit {
		return false
	}
	return !amount.GreaterThan(a.Available())
}

// UtilizationBps returns used/limit in basis points, 0 when limit is zero.
func (a *Account) UtilizationBps() int64 {
	return a.Used.BpsRatio(a.Limit)
}

// ListOpts filters credit account listings.
type ListOpts struct {
	DefaultedOnly bool
	Limit         int
	Offset        int
}
