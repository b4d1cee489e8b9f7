package custody

import (
	"context"
	"sync"

	"github.com/xraph/bnpl/types"
)

// MemoryAsset is an in-process custody asset for development and tests.
// It implements Asset, Freezer and KycProber, keeps balances in a map, and
// exposes failure and callback knobs so tests can exercise refusal paths
// and reentrant custody behavior.
type MemoryAsset struct {
	mu       sync.Mutex
	pool     types.Address
	currency string
	balances map[types.Address]int64
	frozen   map[types.Address]bool
	kyc      map[types.Address]bool

	// RefuseTransfers makes every Transfer/TransferFrom return ok=false.
	RefuseTransfers bool

	// FailFreezes makes Freeze/Unfreeze return an error.
	FailFreezes bool

	// OnTransfer, when set, runs during every successful transfer while
	// the engine's reentrancy guard is held. Tests use it to simulate a
	// malicious asset calling back into the protocol mid-move.
	OnTransfer func()
}

var (
	_ Asset     = (*MemoryAsset)(nil)
	_ Freezer   = (*MemoryAsset)(nil)
	_ KycProber = (*MemoryAsset)(nil)
)

// NewMemoryAsset creates an asset whose pool account is the given address.
func NewMemoryAsset(pool types.Address, currency string) *MemoryAsset {
	return &MemoryAsset{
		pool:     pool,
		currency: currency,
		balances: make(map[types.Address]int64),
		frozen:   make(map[types.Address]bool),
		kyc:      make(map[types.Address]bool),
	}
}

// Mint credits an address with funds out of thin air. Test setup only.
func (a *MemoryAsset) Mint(addr types.Address, amount types.Money) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[addr] += amount.Amount
}

// SetKyc marks an address as KYC-passed or not.
func (a *MemoryAsset) SetKyc(addr types.Address, passed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kyc[addr] = passed
}

// IsFrozen reports whether an address is currently frozen.
func (a *MemoryAsset) IsFrozen(addr types.Address) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen[addr]
}

// Transfer implements Asset.
func (a *MemoryAsset) Transfer(_ context.Context, to types.Address, amount types.Money) (bool, error) {
	return a.move(a.pool, to, amount)
}

// TransferFrom implements Asset.
func (a *MemoryAsset) TransferFrom(_ context.Context, from types.Address, amount types.Money) (bool, error) {
	return a.move(from, a.pool, amount)
}

func (a *MemoryAsset) move(from, to types.Address, amount types.Money) (bool, error) {
	a.mu.Lock()
	if a.RefuseTransfers || a.frozen[from] || a.balances[from] < amount.Amount {
		a.mu.Unlock()
		return false, nil
	}
	a.balances[from] -= amount.Amount
	a.balances[to] += amount.Amount
	callback := a.OnTransfer
	a.mu.Unlock()

	if callback != nil {
		callback()
	}
	return true, nil
}

// BalanceOf implements Asset.
func (a *MemoryAsset) BalanceOf(_ context.Context, addr types.Address) (types.Money, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.In(a.currency, a.balances[addr]), nil
}

// Freeze implements Freezer.
func (a *MemoryAsset) Freeze(_ context.Context, addr types.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailFreezes {
		return errFreezeUnavailable
	}
	a.frozen[addr] = true
	return nil
}

// Unfreeze implements Freezer.
func (a *MemoryAsset) Unfreeze(_ context.Context, addr types.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailFreezes {
		return errFreezeUnavailable
	}
	delete(a.frozen, addr)
	return nil
}

// IsKycPassed implements KycProber.
func (a *MemoryAsset) IsKycPassed(_ context.Context, addr types.Address) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kyc[addr], nil
}
