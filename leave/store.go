/*
store.go - Persistence interfaces for the leave ledger

PURPOSE:
  Defines the boundary between the engine and the database. The Store
  handles transaction persistence with append-only semantics; Directory
  handles the surrounding records (members, policies, cached balances)
  the batch job and service layer need.

APPEND-ONLY CONTRACT:
  - Append(): single transaction write
  - AppendBatch(): atomic multi-transaction write
  - NO Update() or Delete() methods exist on the ledger

IDEMPOTENCY:
  Engine-generated transactions carry an idempotency key. If the key
  already exists the write is rejected with ErrDuplicateIdempotencyKey,
  which re-runs of the daily update treat as a no-op.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - leave/store: in-memory store for tests

SEE ALSO:
  - ledger.go: Higher-level wrapper using Store
*/
package leave

import "context"

// =============================================================================
// STORE - Transaction persistence (append-only)
// =============================================================================

// Store persists ledger transactions. Corrections are made via
// compensating transactions, never edits.
type Store interface {
	// Append persists one transaction. Returns ErrDuplicateIdempotencyKey
	// if the idempotency key already exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for a member, ordered by EffectiveAt
	// ascending then CreatedAt ascending.
	Load(ctx context.Context, memberID string) ([]Transaction, error)

	// UsageByRequest returns use/use_cancel transactions whose RequestID
	// matches. This is the primary reversal lookup.
	UsageByRequest(ctx context.Context, requestID string) ([]Transaction, error)

	// UsageByReference returns use transactions whose ReferenceID matches.
	// Legacy rows reference the leave request directly instead of a grant.
	UsageByReference(ctx context.Context, referenceID string) ([]Transaction, error)

	// Exists checks whether an idempotency key is already recorded.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support so a multi-grant
// allocation is written all-or-nothing.
type TxStore interface {
	Store

	// WithTx executes fn within a store-level transaction. If fn returns
	// an error the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// DIRECTORY - Members, policies, and the balance cache
// =============================================================================

// Directory provides the non-ledger records the engine orchestration
// needs. These rows are ordinary mutable state; only the ledger is
// append-only.
type Directory interface {
	// Member returns a member by id, or ErrMemberNotFound.
	Member(ctx context.Context, id string) (*Member, error)

	// ActiveMembers returns every member the daily update should process.
	ActiveMembers(ctx context.Context) ([]Member, error)

	// ActivePolicy returns the single active policy, or ErrPolicyNotFound.
	ActivePolicy(ctx context.Context) (*Policy, error)

	// UpsertBalance rewrites a member's cached balance row. The cache is
	// derived state; callers always recompute it from the ledger first.
	UpsertBalance(ctx context.Context, b BalanceSummary) error
}
