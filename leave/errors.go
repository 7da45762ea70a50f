/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match sentinels with errors.Is and extract detail from the
  structured types with errors.As.

ERROR CATEGORIES:
  1. Allocation errors - Insufficient balance, never partial
  2. Reversal errors - Cancellation could not identify its target
  3. Ledger errors - Persistence and idempotency failures

SEE ALSO:
  - allocator.go: Produces InsufficientBalanceError
  - service.go: Produces AmbiguousReversalError, wraps ledger writes
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a requested usage exceeds the
	// sum of available, unexpired grants. No partial allocation is written.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrPolicyNotFound is returned when no active policy is configured at
	// the time a grant computation is attempted.
	ErrPolicyNotFound = errors.New("no active leave policy")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrAmbiguousReversal is returned when a cancellation cannot uniquely
	// identify the usage transactions it should reverse. The ledger is left
	// unchanged; guessing is never safer than a no-op.
	ErrAmbiguousReversal = errors.New("ambiguous usage reversal")

	// ErrLedgerWrite is returned when the underlying store rejects an append.
	ErrLedgerWrite = errors.New("ledger write failed")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. Expected on daily-update re-runs.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports the exact shortfall of a failed
// allocation.
type InsufficientBalanceError struct {
	MemberID  string
	Requested decimal.Decimal
	Available decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s: requested %s, available %s, short %s days",
		e.MemberID, e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// AmbiguousReversalError explains why a cancellation was declined.
type AmbiguousReversalError struct {
	RequestID string
	Matches   int
	Detail    string
}

func (e *AmbiguousReversalError) Error() string {
	return fmt.Sprintf("reversal of request %s declined (%d candidate usages): %s",
		e.RequestID, e.Matches, e.Detail)
}

func (e *AmbiguousReversalError) Unwrap() error { return ErrAmbiguousReversal }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than an engine or store fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAmbiguousReversal) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPolicyNotFound) ||
		errors.Is(err, ErrMemberNotFound)
}
