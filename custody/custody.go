// Package custody declares the external asset interface the protocol
// consumes. The asset holds the real value; the engine only instructs it.
// Implementations are assumed correct but not assumed cooperative: transfer
// results must be checked, freeze calls may fail, and the KYC probe may be
// entirely absent.
package custody

import (
	"context"

	"github.com/xraph/bnpl/types"
)

// Asset is the custody surface every deployment must provide.
//
// Transfer and TransferFrom return an explicit ok flag in addition to the
// error: ok == false with a nil error is a clean refusal by the asset and
// must abort the caller's operation exactly like an error would.
type Asset interface {
	// Transfer moves amount from the pool's own custody account to the
	// recipient.
	Transfer(ctx context.Context, to types.Address, amount types.Money) (ok bool, err error)

	// TransferFrom pulls amount from a third party into the pool's custody
	// account, relying on whatever approval scheme the asset implements.
	TransferFrom(ctx context.Context, from types.Address, amount types.Money) (ok bool, err error)

	// BalanceOf reports the custody balance held for an address.
	BalanceOf(ctx context.Context, addr types.Address) (types.Money, error)
}

// Freezer is implemented by assets that can block an address from moving
// funds. Freeze failures are tolerated by the engine: default processing
// proceeds whether or not the freeze lands.
type Freezer interface {
	Freeze(ctx context.Context, addr types.Address) error
	Unfreeze(ctx context.Context, addr types.Address) error
}

// KycProber is implemented by assets that expose a KYC verdict. An Asset
// that does not implement KycProber is tolerated as "passed", not treated
// as a failure.
type KycProber interface {
	IsKycPassed(ctx context.Context, addr types.Address) (bool, error)
}
