/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for all balance changes.
  Every grant, usage, expiry, adjustment, and reversal is recorded here.
  Balance is always computed by replaying transactions - the cached
  balance row is a projection, never an authority.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. AUDITABLE: Every balance change is traceable with full context
  4. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  If a mistake is made, you don't edit the transaction. Instead:
  1. Create a compensating transaction (use_cancel / grant_cancel)
  2. Both original and reversal remain in the ledger
  3. Net effect is correction, but history is preserved

SEE ALSO:
  - store.go: Low-level persistence interface
  - service.go: The operation layer writing through this ledger
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Validated writes over a Store
// =============================================================================

// Ledger validates and appends transactions. It is the ONLY write path
// into the transaction log.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Append adds a transaction after filling defaults and validating the
// type tag. Fails with ErrDuplicateIdempotencyKey on key reuse.
func (l *Ledger) Append(ctx context.Context, tx Transaction) error {
	prepared, err := prepare(tx)
	if err != nil {
		return err
	}
	if prepared.IdempotencyKey != "" {
		exists, err := l.store.Exists(ctx, prepared.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.store.Append(ctx, prepared)
}

// AppendBatch adds multiple transactions atomically.
func (l *Ledger) AppendBatch(ctx context.Context, txs []Transaction) error {
	prepared := make([]Transaction, len(txs))
	for i, tx := range txs {
		p, err := prepare(tx)
		if err != nil {
			return err
		}
		if p.IdempotencyKey != "" {
			exists, err := l.store.Exists(ctx, p.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
		prepared[i] = p
	}
	return l.store.AppendBatch(ctx, prepared)
}

// Transactions returns a member's full history, chronologically.
func (l *Ledger) Transactions(ctx context.Context, memberID string) ([]Transaction, error) {
	return l.store.Load(ctx, memberID)
}

func prepare(tx Transaction) (Transaction, error) {
	if !tx.Type.Valid() {
		return tx, fmt.Errorf("%w: unknown transaction type %q", ErrLedgerWrite, tx.Type)
	}
	if tx.MemberID == "" {
		return tx, fmt.Errorf("%w: transaction missing member id", ErrLedgerWrite)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Status == "" {
		tx.Status = StatusActive
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if tx.EffectiveAt.IsZero() {
		tx.EffectiveAt = DayOf(tx.CreatedAt)
	} else {
		tx.EffectiveAt = DayOf(tx.EffectiveAt)
	}
	return tx, nil
}
