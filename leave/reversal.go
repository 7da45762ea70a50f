/*
reversal.go - Legacy usage lookup for cancellations

PURPOSE:
  New usage transactions carry a RequestID, so reversing an approved
  request is a direct lookup. Rows written before that column existed
  have no such link: their only traces are a ReferenceID pointing at a
  grant and a reason string embedding the leave period. This file holds
  the text-matching shim for those rows, isolated behind an interface so
  it can be deleted once old data is backfilled.

FAIL CLOSED:
  Reason matching can collide when two requests for the same member have
  overlapping periods. The locator therefore refuses to match without a
  period to match on, and the service declines the whole reversal
  (AmbiguousReversalError) rather than guess. Leaving the ledger
  unchanged is always safer than reversing the wrong usage.
*/
package leave

import "strings"

// ReversalRequest identifies a previously approved leave request whose
// usage should be reversed.
type ReversalRequest struct {
	RequestID string

	// MemberID and Period feed the legacy text-matching path only; new
	// data reverses on RequestID alone. Period is the human-readable
	// range embedded in usage reasons, e.g. "2025-03-10 ~ 2025-03-12".
	MemberID string
	Period   string

	CancelledBy string
}

// reversalLocator finds the use transactions belonging to a request when
// no RequestID linkage exists on the rows.
type reversalLocator interface {
	Locate(history []Transaction, rev ReversalRequest, knownGrants map[string]bool) []Transaction
}

// legacyReasonLocator matches use transactions whose ReferenceID points
// at a known grant and whose reason text contains the request's period.
type legacyReasonLocator struct{}

func (legacyReasonLocator) Locate(history []Transaction, rev ReversalRequest, knownGrants map[string]bool) []Transaction {
	if rev.Period == "" {
		// Nothing safe to match on.
		return nil
	}

	var matches []Transaction
	for _, tx := range history {
		if tx.Type != TxUse || !knownGrants[tx.ReferenceID] {
			continue
		}
		if tx.RequestID != "" && tx.RequestID != rev.RequestID {
			// Linked to a different request; a reason collision here would
			// be exactly the bug this shim must not introduce.
			continue
		}
		if containsPeriod(tx.Reason, rev.Period) {
			matches = append(matches, tx)
		}
	}
	return matches
}

// alreadyReversed reports whether a usage has a use_cancel mirror in the
// history: same grant reference and exactly opposite amount. For legacy
// usage rows (no RequestID of their own) a mirror attributed to a
// DIFFERENT request does not count; two equal-amount legacy usages on one
// grant must each get their own mirror.
func alreadyReversed(history []Transaction, usage Transaction, revRequestID string) bool {
	for _, tx := range history {
		if tx.Type != TxUseCancel {
			continue
		}
		if tx.ReferenceID != usage.ReferenceID || !tx.Amount.Equal(usage.Amount.Neg()) {
			continue
		}
		if usage.RequestID != "" {
			if tx.RequestID == usage.RequestID {
				return true
			}
			continue
		}
		if tx.RequestID == "" || tx.RequestID == revRequestID {
			return true
		}
	}
	return false
}

func containsPeriod(reason, period string) bool {
	if reason == "" || period == "" {
		return false
	}
	return strings.Contains(reason, period)
}
