/*
balance.go - Balance calculation from the transaction log

PURPOSE:
  Computes authoritative totals from a member's full transaction list.
  This is the central calculation answering "how many days does this
  member have?" - always by replay, never by trusting the cached row.

THE INVARIANT:
  current_balance == total_granted - total_used - total_expired
                     + total_adjusted
  which in turn equals the plain sum of every signed amount in the
  ledger. Reversal entries net into the same totals by their type-based
  sign convention (use_cancel reduces used, grant_cancel reduces
  granted).

GRANT HISTORY:
  GrantHistory derives the per-grant breakdown: how much of each grant
  has been consumed through linked usage and whether it has been swept
  by an expiry. The FIFO allocator and the policy engine's remainder
  math both build on it.

SEE ALSO:
  - allocator.go: Availability filtering on top of GrantHistory
  - service.go: Cache upserts after every mutating operation
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE SUMMARY - Replay of the full ledger
// =============================================================================

// Summarize folds a member's transactions into totals. The switch is
// exhaustive over TransactionType; unknown tags contribute nothing.
func Summarize(memberID string, history []Transaction) BalanceSummary {
	granted := decimal.Zero
	used := decimal.Zero
	expired := decimal.Zero
	adjusted := decimal.Zero

	for _, tx := range history {
		switch tx.Type {
		case TxGrant, TxManualGrant:
			granted = granted.Add(tx.Amount)
		case TxGrantCancel:
			// Negative mirror of a grant; nets against granted.
			granted = granted.Add(tx.Amount)
		case TxUse, TxUseCancel:
			// use is negative, use_cancel its positive mirror.
			used = used.Sub(tx.Amount)
		case TxExpire:
			expired = expired.Sub(tx.Amount)
		case TxAdjust:
			adjusted = adjusted.Add(tx.Amount)
		}
	}

	return BalanceSummary{
		MemberID:       memberID,
		TotalGranted:   granted,
		TotalUsed:      used,
		TotalExpired:   expired,
		TotalAdjusted:  adjusted,
		CurrentBalance: granted.Sub(used).Sub(expired).Add(adjusted),
		LastUpdated:    time.Now().UTC(),
	}
}

// =============================================================================
// GRANT HISTORY - Per-grant remainder derivation
// =============================================================================

// GrantHistory derives the state of every grant in a history, in FIFO
// consumption order. For each grant:
//   - Used sums the linked use / use_cancel / grant_cancel entries
//     (by ReferenceID = grant id)
//   - a linked expire zeroes the remainder, as does an unlinked sweep
//     expire covering policy grants issued before its date (the
//     first-year anniversary sweep is one aggregate transaction;
//     manual grants are outside its amount and outside its reach)
//   - Cancelled is set when a grant_cancel references the grant
//
// Expired/cancelled grants are included; audit display wants them.
// Availability filtering is the allocator's job.
func GrantHistory(history []Transaction) []GrantBalance {
	used := make(map[string]decimal.Decimal)
	cancelled := make(map[string]bool)
	sweptAt := make(map[string]time.Time)
	var aggregateSweeps []time.Time

	for _, tx := range history {
		switch tx.Type {
		case TxUse, TxUseCancel, TxGrantCancel:
			if tx.ReferenceID != "" {
				used[tx.ReferenceID] = used[tx.ReferenceID].Sub(tx.Amount)
			}
			if tx.Type == TxGrantCancel && tx.ReferenceID != "" {
				cancelled[tx.ReferenceID] = true
			}
		case TxExpire:
			if tx.ReferenceID != "" {
				if prev, ok := sweptAt[tx.ReferenceID]; !ok || tx.EffectiveAt.Before(prev) {
					sweptAt[tx.ReferenceID] = DayOf(tx.EffectiveAt)
				}
			} else {
				aggregateSweeps = append(aggregateSweeps, DayOf(tx.EffectiveAt))
			}
		case TxGrant, TxManualGrant, TxAdjust:
			// No per-grant effect.
		}
	}

	createdAt := make(map[string]time.Time)
	var out []GrantBalance
	for _, tx := range history {
		if !tx.Type.IsGrant() || tx.GrantDate == nil || tx.ExpireDate == nil {
			continue
		}

		gb := GrantBalance{
			GrantID:    tx.ID,
			Type:       tx.Type,
			GrantDate:  DayOf(*tx.GrantDate),
			ExpireDate: DayOf(*tx.ExpireDate),
			Original:   tx.Amount,
			Used:       used[tx.ID],
			Cancelled:  cancelled[tx.ID],
		}
		gb.Available = gb.Original.Sub(gb.Used)

		if _, ok := sweptAt[tx.ID]; ok {
			gb.Expired = true
			gb.Available = decimal.Zero
		}
		// The aggregate sweep's amount is computed from policy grants only
		// (firstYearRemainder), so only policy grants are zeroed by it.
		// Manual grants keep their own expire dates.
		for _, sweep := range aggregateSweeps {
			if gb.Type == TxGrant && gb.GrantDate.Before(sweep) {
				gb.Expired = true
				gb.Available = decimal.Zero
			}
		}

		createdAt[tx.ID] = tx.CreatedAt
		out = append(out, gb)
	}

	sortGrantsFIFO(out, createdAt)
	return out
}

// MarkExpired flags grants whose expire date has passed, for audit
// display where swept grants already carry the flag.
func MarkExpired(grants []GrantBalance, asOf time.Time) {
	asOf = DayOf(asOf)
	for i := range grants {
		if grants[i].ExpireDate.Before(asOf) {
			grants[i].Expired = true
		}
	}
}

// VerifyReplay reports whether a cached summary still matches a fresh
// replay of the ledger. Divergence means the cache must be rebuilt.
func VerifyReplay(cached BalanceSummary, history []Transaction) bool {
	fresh := Summarize(cached.MemberID, history)
	return cached.CurrentBalance.Equal(fresh.CurrentBalance) &&
		cached.TotalGranted.Equal(fresh.TotalGranted) &&
		cached.TotalUsed.Equal(fresh.TotalUsed) &&
		cached.TotalExpired.Equal(fresh.TotalExpired) &&
		cached.TotalAdjusted.Equal(fresh.TotalAdjusted)
}
