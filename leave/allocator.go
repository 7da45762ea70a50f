/*
allocator.go - FIFO allocation across unexpired grants

PURPOSE:
  When N days of leave are consumed, decides which grants are debited:
  oldest-expiring-first, ties broken by earlier grant date, then earlier
  creation. Allocation is a pure computation over an in-memory snapshot
  of the ledger; the service layer serializes concurrent allocations for
  the same member and writes the resulting use transactions atomically.

INVARIANTS:
  - A grant is never debited past its remainder.
  - A later-expiring grant is never touched while an earlier one has
    capacity.
  - Allocation is all-or-nothing: insufficiency fails before any write,
    reporting the exact shortfall.

SEE ALSO:
  - balance.go: GrantHistory, the per-grant remainder math
  - service.go: RecordUsage, which persists allocations
*/
package leave

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Allocation records how many days one usage takes from one grant.
type Allocation struct {
	GrantID    string
	Amount     decimal.Decimal
	GrantDate  time.Time
	ExpireDate time.Time
}

// AvailableGrants returns the grants a new usage may draw from, in FIFO
// consumption order. Excluded: cancelled grants, grants whose expire date
// is strictly before asOf, and grants with nothing left.
func AvailableGrants(history []Transaction, asOf time.Time) []GrantBalance {
	asOf = DayOf(asOf)
	var out []GrantBalance
	for _, gb := range GrantHistory(history) {
		if gb.Cancelled || gb.ExpireDate.Before(asOf) {
			continue
		}
		if gb.Available.IsPositive() {
			out = append(out, gb)
		}
	}
	return out
}

// Allocate walks the ordered grant list taking min(available, remaining)
// from each until the request is satisfied. Returns
// *InsufficientBalanceError with the exact shortfall if the grants are
// exhausted first; in that case nothing is allocated.
func Allocate(memberID string, grants []GrantBalance, requested decimal.Decimal) ([]Allocation, error) {
	remaining := requested
	var allocations []Allocation

	for _, g := range grants {
		if !remaining.IsPositive() {
			break
		}
		take := g.Available
		if take.GreaterThan(remaining) {
			take = remaining
		}
		allocations = append(allocations, Allocation{
			GrantID:    g.GrantID,
			Amount:     take,
			GrantDate:  g.GrantDate,
			ExpireDate: g.ExpireDate,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, &InsufficientBalanceError{
			MemberID:  memberID,
			Requested: requested,
			Available: requested.Sub(remaining),
			Shortfall: remaining,
		}
	}
	return allocations, nil
}

// =============================================================================
// ORDERING
// =============================================================================

// sortGrantsFIFO orders grants for consumption: expire date ascending,
// then grant date, then creation time.
func sortGrantsFIFO(grants []GrantBalance, createdAt map[string]time.Time) {
	sort.SliceStable(grants, func(i, j int) bool {
		a, b := grants[i], grants[j]
		if !a.ExpireDate.Equal(b.ExpireDate) {
			return a.ExpireDate.Before(b.ExpireDate)
		}
		if !a.GrantDate.Equal(b.GrantDate) {
			return a.GrantDate.Before(b.GrantDate)
		}
		return createdAt[a.GrantID].Before(createdAt[b.GrantID])
	})
}

// sortTransactions orders a batch by effective date, negatives first on a
// shared day so an anniversary's expire precedes its grant.
func sortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !SameDay(a.EffectiveAt, b.EffectiveAt) {
			return a.EffectiveAt.Before(b.EffectiveAt)
		}
		return a.Amount.IsNegative() && !b.Amount.IsNegative()
	})
}
