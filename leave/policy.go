/*
policy.go - Tenure policy engine

PURPOSE:
  Decides, for a member with a given join date, which grant and expire
  transactions are due as of a reference date. The engine is a pure
  computation over the member's transaction history: it never writes,
  and running it twice over the same history emits nothing the second
  time (query-before-write idempotency).

TWO PHASES, KEYED BY TENURE:
  First year (tenure < 1 year):
    On each monthly anniversary of the join date (day-of-month matched,
    short months clamped), grant FirstYearMonthlyGrant days, capped so
    cumulative first-year grants never exceed FirstYearMaxDays.

  Annual (tenure >= 1 year):
    On each join-date anniversary, expire the remaining balance of the
    previous year's grant (on the first anniversary: the remainder of
    every first-year grant, as one aggregate expire dated that day),
    then grant the allotment for the upcoming service year:
    min(base + floor((serviceYear-1)/incrementYears)*incrementDays, max).

  Every grant's expire date is grant date + ExpireAfterMonths months.

CATCH-UP:
  ComputeDue walks every due date chronologically up to asOf, threading
  its own pending output into the working history, so a ledger that is
  months behind converges in a single run.

SEE ALSO:
  - allocator.go: Per-grant remainder math reused for expiries
  - service.go: RunDailyUpdate appends the pending output
*/
package leave

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PENDING UPDATE - Engine output, not yet appended
// =============================================================================

// PendingUpdate is the set of transactions the policy engine found due.
// The caller appends them and recomputes the balance cache afterward;
// the engine itself never mutates anything.
type PendingUpdate struct {
	Grants  []Transaction
	Expires []Transaction
}

// IsEmpty reports whether nothing is due.
func (u PendingUpdate) IsEmpty() bool { return len(u.Grants) == 0 && len(u.Expires) == 0 }

// All returns grants and expires merged in effective-date order, expiries
// first on shared dates (an anniversary expires the old year before
// granting the new one).
func (u PendingUpdate) All() []Transaction {
	all := make([]Transaction, 0, len(u.Grants)+len(u.Expires))
	all = append(all, u.Expires...)
	all = append(all, u.Grants...)
	sortTransactions(all)
	return all
}

// GrantedDays is the total positive amount across pending grants.
func (u PendingUpdate) GrantedDays() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range u.Grants {
		total = total.Add(tx.Amount)
	}
	return total
}

// ExpiredDays is the total magnitude across pending expires.
func (u PendingUpdate) ExpiredDays() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range u.Expires {
		total = total.Sub(tx.Amount)
	}
	return total
}

// =============================================================================
// POLICY ENGINE
// =============================================================================

// ComputeDue returns the grant/expire transactions due for a member as of
// asOf, given the full transaction history. Pure: no writes, no clock.
func ComputeDue(memberID string, joinDate time.Time, p Policy, history []Transaction, asOf time.Time) PendingUpdate {
	join := DayOf(joinDate)
	asOf = DayOf(asOf)

	var upd PendingUpdate
	working := make([]Transaction, len(history))
	copy(working, history)

	emitGrant := func(date time.Time, amount decimal.Decimal, reason string) {
		if !amount.IsPositive() || hasGrantOn(working, date) {
			return
		}
		grantDate := date
		expireDate := AddMonthsClamped(date, p.ExpireAfterMonths)
		tx := Transaction{
			ID:             uuid.NewString(),
			MemberID:       memberID,
			Type:           TxGrant,
			Amount:         amount,
			EffectiveAt:    date,
			GrantDate:      &grantDate,
			ExpireDate:     &expireDate,
			Reason:         reason,
			CreatedBy:      SystemActor,
			IdempotencyKey: fmt.Sprintf("grant:%s:%s", memberID, date.Format("2006-01-02")),
		}
		upd.Grants = append(upd.Grants, tx)
		working = append(working, tx)
	}

	emitExpire := func(date time.Time, amount decimal.Decimal, referenceID, reason string) {
		if !amount.IsPositive() || hasExpireOn(working, date) {
			return
		}
		tx := Transaction{
			ID:             uuid.NewString(),
			MemberID:       memberID,
			Type:           TxExpire,
			Amount:         amount.Neg(),
			EffectiveAt:    date,
			ReferenceID:    referenceID,
			Reason:         reason,
			CreatedBy:      SystemActor,
			IdempotencyKey: fmt.Sprintf("expire:%s:%s", memberID, date.Format("2006-01-02")),
		}
		upd.Expires = append(upd.Expires, tx)
		working = append(working, tx)
	}

	firstAnniversary := AddYearsClamped(join, 1)

	// First-year phase: monthly grants up to the cumulative cap.
	monthly := Days(p.FirstYearMonthlyGrant)
	cap := Days(p.FirstYearMaxDays)
	accumulated := decimal.Zero
	for k := 1; ; k++ {
		date := AddMonthsClamped(join, k)
		if !date.Before(firstAnniversary) || date.After(asOf) {
			break
		}
		headroom := cap.Sub(accumulated)
		if !headroom.IsPositive() {
			break
		}
		amount := monthly
		if amount.GreaterThan(headroom) {
			amount = headroom
		}
		accumulated = accumulated.Add(amount)
		emitGrant(date, amount, "first-year monthly grant")
	}

	// Annual phase: each anniversary expires the prior year, then grants
	// the upcoming service year.
	for n := 1; ; n++ {
		anniversary := AddYearsClamped(join, n)
		if anniversary.After(asOf) {
			break
		}

		if n == 1 {
			remainder := firstYearRemainder(working, firstAnniversary)
			emitExpire(anniversary, remainder, "", "first-year grants expired at 1-year anniversary")
		} else {
			previous := AddYearsClamped(join, n-1)
			remainder, grantID := grantRemainderOn(working, previous)
			emitExpire(anniversary, remainder, grantID,
				fmt.Sprintf("annual grant of %s expired", previous.Format("2006-01-02")))
		}

		serviceYear := n + 1
		emitGrant(anniversary, p.AnnualDays(serviceYear),
			fmt.Sprintf("annual grant (service year %d)", serviceYear))
	}

	return upd
}

// SystemActor marks transactions written by the engine rather than a person.
const SystemActor = "system"

// =============================================================================
// HISTORY QUERIES (idempotency + remainders)
// =============================================================================

func hasGrantOn(history []Transaction, date time.Time) bool {
	for _, tx := range history {
		if tx.Type == TxGrant && tx.GrantDate != nil && SameDay(*tx.GrantDate, date) {
			return true
		}
	}
	return false
}

func hasExpireOn(history []Transaction, date time.Time) bool {
	for _, tx := range history {
		if tx.Type == TxExpire && SameDay(tx.EffectiveAt, date) {
			return true
		}
	}
	return false
}

// firstYearRemainder sums the unused remainder of every policy grant
// issued before the first anniversary.
func firstYearRemainder(history []Transaction, firstAnniversary time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, gb := range GrantHistory(history) {
		if gb.Cancelled || gb.Type != TxGrant || !gb.GrantDate.Before(firstAnniversary) {
			continue
		}
		if gb.Available.IsPositive() {
			total = total.Add(gb.Available)
		}
	}
	return total
}

// grantRemainderOn returns the unused remainder of the policy grant dated
// exactly on the given day, with its id for the expire reference.
func grantRemainderOn(history []Transaction, grantDate time.Time) (decimal.Decimal, string) {
	for _, gb := range GrantHistory(history) {
		if gb.Cancelled || gb.Type != TxGrant || !SameDay(gb.GrantDate, grantDate) {
			continue
		}
		return gb.Available, gb.GrantID
	}
	return decimal.Zero, ""
}
