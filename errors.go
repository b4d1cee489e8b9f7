package bnpl

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. They fall into three hard
// categories (validation, authorization, state conflict) plus the soft
// external failures (custody freeze, best-effort notification) that are
// logged and swallowed rather than surfaced.
var (
	// Validation errors: malformed input, rejected before any mutation.
	ErrInvalidInput        = errors.New("bnpl: invalid input")
	ErrInvalidAmount       = errors.New("bnpl: amount must be positive")
	ErrInvalidIdentity     = errors.New("bnpl: invalid identity")
	ErrInvalidLimit        = errors.New("bnpl: credit limit must be positive")
	ErrInvalidFeeRate      = errors.New("bnpl: fee rate out of range")
	ErrInvalidWindow       = errors.New("bnpl: repayment window must be positive")
	ErrInvalidGracePeriod  = errors.New("bnpl: grace period must not be negative")
	ErrBatchLengthMismatch = errors.New("bnpl: batch arrays differ in length")

	// Authorization errors: caller is not the required identity.
	ErrUnauthorized = errors.New("bnpl: unauthorized")
	ErrNotAdmin     = errors.New("bnpl: caller is not the admin")
	ErrNotBorrower  = errors.New("bnpl: caller is not the loan borrower")

	// Not-found errors.
	ErrLoanNotFound       = errors.New("bnpl: loan not found")
	ErrAccountNotFound    = errors.New("bnpl: credit account not found")
	ErrNoActiveLoan       = errors.New("bnpl: no active loan")
	ErrPoolNotInitialized = errors.New("bnpl: liquidity pool not initialized")

	// State-conflict errors: a lifecycle invariant would be violated.
	// Rejected with zero state change.
	ErrLoanAlreadyRepaid     = errors.New("bnpl: loan already repaid")
	ErrLoanAlreadyDefaulted  = errors.New("bnpl: loan already defaulted")
	ErrActiveLoanExists      = errors.New("bnpl: borrower already has an active loan")
	ErrBorrowerDefaulted     = errors.New("bnpl: borrower is in default")
	ErrKycNotPassed          = errors.New("bnpl: borrower has not passed KYC")
	ErrInsufficientCredit    = errors.New("bnpl: amount exceeds available credit")
	ErrInsufficientLiquidity = errors.New("bnpl: amount exceeds available liquidity")
	ErrInsufficientFees      = errors.New("bnpl: amount exceeds collected fees")
	ErrRestoreExceedsUsed    = errors.New("bnpl: restore amount exceeds used credit")
	ErrNotOverdue            = errors.New("bnpl: loan is not overdue")
	ErrTransferFailed        = errors.New("bnpl: custody transfer refused")
	ErrReentrantCall         = errors.New("bnpl: reentrant call during fund movement")

	// Store errors.
	ErrStoreClosed = errors.New("bnpl: store is closed")
)

// ValidationError represents a validation failure with field detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("bnpl: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets ValidationError match the category classifier.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsValidation returns true if the error is a malformed-input rejection.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidIdentity) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrInvalidFeeRate) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidGracePeriod) ||
		errors.Is(err, ErrBatchLengthMismatch) ||
		errors.As(err, &ve)
}

// IsAuthorization returns true if the error is a caller-identity rejection.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotAdmin) ||
		errors.Is(err, ErrNotBorrower)
}

// IsNotFound returns true if the error is a missing-record rejection.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrNoActiveLoan) ||
		errors.Is(err, ErrPoolNotInitialized)
}

// IsStateConflict returns true if the error is a lifecycle-invariant
// rejection: the request was well-formed and authorized but the ledgers
// cannot accept it in their current state.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrLoanAlreadyRepaid) ||
		errors.Is(err, ErrLoanAlreadyDefaulted) ||
		errors.Is(err, ErrActiveLoanExists) ||
		errors.Is(err, ErrBorrowerDefaulted) ||
		errors.Is(err, ErrKycNotPassed) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrInsufficientLiquidity) ||
		errors.Is(err, ErrInsufficientFees) ||
		errors.Is(err, ErrRestoreExceedsUsed) ||
		errors.Is(err, ErrNotOverdue) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrReentrantCall)
}
