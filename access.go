package bnpl

import (
	"sync"

	"github.com/xraph/bnpl/types"
)

// Roster is the protocol's permission table. It replaces per-component
// stored-address checks with one explicit, constructor-injected set of
// trusted identities: a single admin capability, one orchestrator identity
// accepted by the dependent ledgers, and one detector identity. The wiring
// is set once at composition time and mutable only by the admin.
type Roster struct {
	mu           sync.RWMutex
	admin        types.Address
	orchestrator types.Address
	detector     types.Address
}

// NewRoster creates a roster with the initial wiring.
func NewRoster(admin, orchestrator, detector types.Address) *Roster {
	return &Roster{
		admin:        admin,
		orchestrator: orchestrator,
		detector:     detector,
	}
}

// Admin returns the current admin identity.
func (r *Roster) Admin() types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.admin
}

// Orchestrator returns the identity the ledgers accept for privileged
// mutations.
func (r *Roster) Orchestrator() types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orchestrator
}

// Detector returns the identity accepted for default processing.
func (r *Roster) Detector() types.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.detector
}

// RequireAdmin rejects callers other than the admin.
func (r *Roster) RequireAdmin(caller types.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller.IsZero() || caller != r.admin {
		return ErrNotAdmin
	}
	return nil
}

// RequireOrchestrator rejects callers other than the orchestrator.
func (r *Roster) RequireOrchestrator(caller types.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller.IsZero() || caller != r.orchestrator {
		return ErrUnauthorized
	}
	return nil
}

// RequireDetector rejects callers other than the detector.
func (r *Roster) RequireDetector(caller types.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller.IsZero() || caller != r.detector {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdminOrOrchestrator rejects callers that are neither.
func (r *Roster) RequireAdminOrOrchestrator(caller types.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if caller.IsZero() || (caller != r.admin && caller != r.orchestrator) {
		return ErrUnauthorized
	}
	return nil
}

// SetOrchestrator rewires the orchestrator identity. Admin-only.
func (r *Roster) SetOrchestrator(caller, orchestrator types.Address) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if orchestrator.IsZero() {
		return ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orchestrator = orchestrator
	return nil
}

// SetDetector rewires the detector identity. Admin-only.
func (r *Roster) SetDetector(caller, detector types.Address) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if detector.IsZero() {
		return ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector = detector
	return nil
}

// SetAdmin hands the admin capability to a new identity. Admin-only.
func (r *Roster) SetAdmin(caller, admin types.Address) error {
	if err := r.RequireAdmin(caller); err != nil {
		return err
	}
	if admin.IsZero() {
		return ErrInvalidIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admin = admin
	return nil
}
