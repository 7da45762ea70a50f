/*
Package leave implements the annual-leave ledger engine.

PURPOSE:
  This package contains the core types and algorithms for a FIFO-ordered,
  transaction-sourced leave balance: granting days under a tenure policy,
  consuming them oldest-expiring-first, expiring unused remainders, and
  reversing prior operations with compensating transactions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger entry recording a signed day-amount
  - TransactionType: Closed enum of every ledger event kind
  - Policy: The tenure ruleset governing grant amounts and expiry
  - Member: The entity owning a ledger
  - BalanceSummary: Cached totals, always recomputable from the ledger

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Replay is truth: Any cached balance must equal the ledger sum
  4. Auditability: Every transaction has reason, actor, and idempotency key

SEE ALSO:
  - policy.go: The tenure policy engine (grants/expiries due at a date)
  - allocator.go: FIFO allocation across unexpired grants
  - balance.go: Balance summaries derived from the transaction log
  - ledger.go: Transaction persistence wrapper
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION - Atomic change to a member's leave balance
// =============================================================================

// TransactionType is the closed set of ledger event kinds. Every
// aggregation site switches exhaustively over these so a new kind cannot
// silently fall through.
type TransactionType string

const (
	TxGrant       TransactionType = "grant"        // Policy-driven grant (positive)
	TxManualGrant TransactionType = "manual_grant" // Admin-issued grant (positive)
	TxUse         TransactionType = "use"          // Approved consumption (negative)
	TxUseCancel   TransactionType = "use_cancel"   // Reversal of a use (positive mirror)
	TxExpire      TransactionType = "expire"       // Unused remainder expired (negative)
	TxAdjust      TransactionType = "adjust"       // Manual correction (either sign)
	TxGrantCancel TransactionType = "grant_cancel" // Reversal of a grant (negative mirror)
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxGrant, TxManualGrant, TxUse, TxUseCancel, TxExpire, TxAdjust, TxGrantCancel:
		return true
	}
	return false
}

// IsGrant reports whether t adds grant capacity (carries grant/expire dates).
func (t TransactionType) IsGrant() bool {
	return t == TxGrant || t == TxManualGrant
}

// TransactionStatus is a display-level marker. Voided history stays in the
// ledger; status never participates in balance math.
type TransactionStatus string

const (
	StatusActive    TransactionStatus = "active"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is one immutable ledger entry. The sum of all transactions
// for a member IS the member's balance; corrections are always new
// compensating entries, never edits.
type Transaction struct {
	ID       string
	MemberID string
	Type     TransactionType

	// Amount is a signed day-count: positive for grant/manual_grant/
	// use_cancel/adjust-up, negative for use/expire/grant_cancel/adjust-down.
	Amount decimal.Decimal

	// EffectiveAt is the ledger-effective date: the grant date for grants,
	// the anniversary for expiries, the approval date for usage.
	EffectiveAt time.Time

	// GrantDate/ExpireDate are set on grant-type transactions, and copied
	// onto use transactions for audit display. Nil on dateless entries.
	GrantDate  *time.Time
	ExpireDate *time.Time

	// ReferenceID links use/use_cancel/grant_cancel back to the grant they
	// debit. Legacy rows may instead hold a leave-request id here.
	ReferenceID string

	// RequestID links usage rows to the originating leave request. Empty on
	// legacy rows, which is why the reversal path keeps a text-matching shim.
	RequestID string

	Status TransactionStatus
	Reason string

	IdempotencyKey string

	// Audit fields
	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// POLICY - Versioned tenure configuration
// =============================================================================

// Policy is the active annual-leave configuration. Exactly one policy is
// active at a time; the engine receives it as an explicit parameter so
// historical versions can be replayed in tests.
type Policy struct {
	ID   string
	Name string

	// First-year phase: monthly grants on join-date anniversaries,
	// capped cumulatively.
	FirstYearMonthlyGrant float64
	FirstYearMaxDays      float64

	// Annual phase: base allotment plus tenure increments.
	BaseAnnualDays float64
	IncrementYears int
	IncrementDays  float64
	MaxAnnualDays  float64

	// Every grant expires this many months after its grant date.
	ExpireAfterMonths int

	IsActive  bool
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnnualDays returns the allotment for a 1-based service year:
// years 1-2 receive the base, increments apply starting year 3 at the
// configured cadence, capped at MaxAnnualDays.
func (p Policy) AnnualDays(serviceYear int) decimal.Decimal {
	base := decimal.NewFromFloat(p.BaseAnnualDays)
	if p.IncrementYears <= 0 || serviceYear < 1 {
		return base
	}
	steps := (serviceYear - 1) / p.IncrementYears
	days := base.Add(decimal.NewFromFloat(p.IncrementDays).Mul(decimal.NewFromInt(int64(steps))))
	max := decimal.NewFromFloat(p.MaxAnnualDays)
	if days.GreaterThan(max) {
		return max
	}
	return days
}

// =============================================================================
// MEMBER - Ledger owner
// =============================================================================

type Member struct {
	ID        string
	Name      string
	Email     string
	JoinDate  time.Time
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// GRANT BALANCE - Derived per-grant remainder (never stored)
// =============================================================================

// GrantBalance is the computed state of one grant transaction: how much of
// it has been consumed through linked usage and what remains.
type GrantBalance struct {
	GrantID    string
	Type       TransactionType
	GrantDate  time.Time
	ExpireDate time.Time
	Original   decimal.Decimal
	Used       decimal.Decimal
	Available  decimal.Decimal
	Expired    bool
	Cancelled  bool
}

// =============================================================================
// BALANCE SUMMARY - Cached totals, recomputed from replay
// =============================================================================

// BalanceSummary is the materialized view of a member's ledger. It exists
// for read performance only; the transaction log is the source of truth
// and the cache is rewritten from replay on every mutating operation.
type BalanceSummary struct {
	MemberID       string
	TotalGranted   decimal.Decimal
	TotalUsed      decimal.Decimal
	TotalExpired   decimal.Decimal
	TotalAdjusted  decimal.Decimal
	CurrentBalance decimal.Decimal
	LastUpdated    time.Time
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// Days builds a day-amount from a float configuration value.
func Days(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// DaysInt builds a whole day-amount.
func DaysInt(v int) decimal.Decimal { return decimal.NewFromInt(int64(v)) }

