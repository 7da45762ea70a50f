package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sable/leave-engine/leave"
	"github.com/sable/leave-engine/leave/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc   *leave.Service
	store *store.TxMemory
	dir   *store.MemoryDirectory
}

func newFixture(t *testing.T, joinDate time.Time) fixture {
	t.Helper()

	dir := store.NewMemoryDirectory()
	dir.PutMember(leave.Member{
		ID:       "m-1",
		Name:     "Jordan Pike",
		JoinDate: joinDate,
		Active:   true,
	})
	dir.SetPolicy(standardPolicy())

	txStore := store.NewTxMemory()
	return fixture{
		svc:   leave.NewService(txStore, dir),
		store: txStore,
		dir:   dir,
	}
}

func (f fixture) balance(t *testing.T, memberID string) leave.BalanceSummary {
	t.Helper()
	s, err := f.svc.GetBalance(context.Background(), memberID)
	require.NoError(t, err)
	return s
}

func usageReq(requestID string, days int, start, end time.Time) leave.UsageRequest {
	return leave.UsageRequest{
		RequestID:  requestID,
		MemberID:   "m-1",
		MemberName: "Jordan Pike",
		LeaveType:  "annual",
		StartDate:  start,
		EndDate:    end,
		TotalDays:  leave.DaysInt(days),
		CreatedBy:  "approver",
		AsOf:       start,
	}
}

// =============================================================================
// DAILY UPDATE
// =============================================================================

func TestRunDailyUpdate_GrantsAndIsIdempotent(t *testing.T) {
	// GIVEN: A member six months into their first year, empty ledger
	// WHEN: The daily update runs, then runs again for the same date
	// THEN: Six monthly grants land once; the re-run writes nothing

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	result, err := f.svc.RunDailyUpdate(ctx, date(2025, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, result.Errors)
	assert.True(t, result.Granted.Equal(leave.DaysInt(6)), "granted = %s", result.Granted)

	again, err := f.svc.RunDailyUpdate(ctx, date(2025, time.January, 20))
	require.NoError(t, err)
	assert.Empty(t, again.Errors)
	assert.True(t, again.Granted.IsZero(), "re-run granted = %s", again.Granted)

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, history, 6)

	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(6)))
}

func TestRunDailyUpdate_AnniversaryScenario(t *testing.T) {
	// GIVEN: A member who joined 2024-07-17 and used 2 of their 11
	// first-year days
	// WHEN: The daily update runs on the 1-year anniversary
	// THEN: The 9 unused days expire and the 15-day annual grant lands,
	//       leaving a balance of exactly 15

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	_, err := f.svc.RunDailyUpdate(ctx, date(2025, time.July, 16))
	require.NoError(t, err)
	require.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(11)))

	err = f.svc.RecordUsage(ctx, usageReq("req-1", 2,
		date(2025, time.June, 2), date(2025, time.June, 3)))
	require.NoError(t, err)

	result, err := f.svc.RunDailyUpdate(ctx, date(2025, time.July, 17))
	require.NoError(t, err)
	assert.True(t, result.Expired.Equal(leave.DaysInt(9)), "expired = %s", result.Expired)
	assert.True(t, result.Granted.Equal(leave.DaysInt(15)), "granted = %s", result.Granted)

	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(15)))
}

func TestRunDailyUpdate_AnniversarySweepSparesManualGrant(t *testing.T) {
	// GIVEN: A member with 11 first-year days plus a 5-day manual grant
	// expiring well past the anniversary
	// WHEN: The daily update runs on the 1-year anniversary
	// THEN: Only the 11 policy days are swept; the manual days stay both in
	//       the balance and allocatable, so the full balance can be consumed

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	err := f.svc.ManualGrant(ctx, "m-1", leave.DaysInt(5),
		date(2025, time.May, 1), date(2026, time.May, 1), "retention bonus", "admin")
	require.NoError(t, err)

	result, err := f.svc.RunDailyUpdate(ctx, date(2025, time.July, 17))
	require.NoError(t, err)
	assert.True(t, result.Expired.Equal(leave.DaysInt(11)), "expired = %s", result.Expired)

	// 11 + 5 - 11 + 15 annual
	require.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(20)))

	// Every day the balance reports must be allocatable.
	err = f.svc.RecordUsage(ctx, usageReq("req-all", 20,
		date(2025, time.July, 18), date(2025, time.August, 14)))
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.IsZero())
}

func TestRunDailyUpdate_NoActivePolicy_CollectsPerMemberErrors(t *testing.T) {
	// GIVEN: Active members but no active policy
	// WHEN: The daily update runs
	// THEN: Every member is reported failed; the run itself succeeds

	dir := store.NewMemoryDirectory()
	dir.PutMember(leave.Member{ID: "m-1", Name: "A", JoinDate: date(2024, time.January, 1), Active: true})
	dir.PutMember(leave.Member{ID: "m-2", Name: "B", JoinDate: date(2024, time.February, 1), Active: true})
	svc := leave.NewService(store.NewTxMemory(), dir)

	result, err := svc.RunDailyUpdate(context.Background(), date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Len(t, result.Errors, 2)
}

// =============================================================================
// USAGE RECORDING
// =============================================================================

func TestRecordUsage_DebitsFIFOAndLinksGrants(t *testing.T) {
	// GIVEN: A member with three monthly grants
	// WHEN: Recording a 2-day usage
	// THEN: The two oldest-expiring grants are debited, each use row
	//       carrying the grant reference, the request id, and a reason
	//       embedding member, type, and period

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	_, err := f.svc.RunDailyUpdate(ctx, date(2024, time.October, 20))
	require.NoError(t, err)

	err = f.svc.RecordUsage(ctx, usageReq("req-1", 2,
		date(2024, time.November, 4), date(2024, time.November, 5)))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)

	var uses []leave.Transaction
	for _, tx := range history {
		if tx.Type == leave.TxUse {
			uses = append(uses, tx)
		}
	}
	require.Len(t, uses, 2)
	for _, u := range uses {
		assert.Equal(t, "req-1", u.RequestID)
		assert.NotEmpty(t, u.ReferenceID)
		assert.True(t, u.Amount.Equal(leave.DaysInt(-1)))
		assert.Contains(t, u.Reason, "Jordan Pike")
		assert.Contains(t, u.Reason, "annual")
		assert.Contains(t, u.Reason, "2024-11-04 ~ 2024-11-05")
	}
	// Oldest grants first: August and September.
	grants := leave.GrantHistory(history)
	assert.Equal(t, grants[0].GrantID, uses[0].ReferenceID)
	assert.Equal(t, grants[1].GrantID, uses[1].ReferenceID)

	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(1)))
}

func TestRecordUsage_InsufficientBalance_WritesNothing(t *testing.T) {
	// GIVEN: A member with 3 days available
	// WHEN: Recording a 5-day usage
	// THEN: InsufficientBalanceError with the exact shortfall, and the
	//       ledger is untouched

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	_, err := f.svc.RunDailyUpdate(ctx, date(2024, time.October, 20))
	require.NoError(t, err)
	before, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)

	err = f.svc.RecordUsage(ctx, usageReq("req-big", 5,
		date(2024, time.November, 4), date(2024, time.November, 8)))
	require.Error(t, err)

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Shortfall.Equal(leave.DaysInt(2)))

	after, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	assert.Len(t, after, len(before), "failed usage must not write")
}

// =============================================================================
// REVERSAL
// =============================================================================

func TestReverseUsage_ByRequestID_RoundTrip(t *testing.T) {
	// GIVEN: A recorded 2-day usage
	// WHEN: Reversing by request id, then reversing again
	// THEN: use_cancel mirrors restore the balance; the second call is a
	//       silent no-op

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	_, err := f.svc.RunDailyUpdate(ctx, date(2024, time.October, 20))
	require.NoError(t, err)
	err = f.svc.RecordUsage(ctx, usageReq("req-1", 2,
		date(2024, time.November, 4), date(2024, time.November, 5)))
	require.NoError(t, err)
	require.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(1)))

	err = f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID: "req-1", CancelledBy: "approver",
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(3)))

	err = f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID: "req-1", CancelledBy: "approver",
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(3)),
		"re-cancel must not double-credit")

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	cancels := 0
	for _, tx := range history {
		if tx.Type == leave.TxUseCancel {
			cancels++
			assert.Equal(t, "req-1", tx.RequestID)
		}
	}
	assert.Equal(t, 2, cancels)
}

func TestReverseUsage_LegacyReasonMatch(t *testing.T) {
	// GIVEN: A pre-migration usage row with no request id, only a grant
	// reference and a reason embedding the leave period
	// WHEN: Reversing with member id and period supplied
	// THEN: The shim finds the row and the balance is restored

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	_, err := f.svc.RunDailyUpdate(ctx, date(2024, time.October, 20))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	grants := leave.GrantHistory(history)
	require.NotEmpty(t, grants)

	legacy := leave.Transaction{
		ID: "legacy-use", MemberID: "m-1", Type: leave.TxUse,
		Amount:      leave.DaysInt(-1),
		EffectiveAt: date(2024, time.November, 4),
		ReferenceID: grants[0].GrantID,
		Reason:      "Jordan Pike annual 2024-11-04 ~ 2024-11-04",
	}
	require.NoError(t, f.store.Append(ctx, legacy))
	require.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(2)))

	err = f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID:   "req-legacy",
		MemberID:    "m-1",
		Period:      "2024-11-04 ~ 2024-11-04",
		CancelledBy: "approver",
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(3)))
}

func TestReverseUsage_EqualLegacyUsages_EachGetsOwnMirror(t *testing.T) {
	// GIVEN: Two pre-migration 1-day usages for different requests, both
	// debiting the same grant with equal amounts
	// WHEN: Reversing each request via the reason-text path
	// THEN: Each usage gets its own use_cancel; the first reversal's mirror
	//       must not satisfy the second request

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	_, err := f.svc.RunDailyUpdate(ctx, date(2024, time.October, 20))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	grantID := leave.GrantHistory(history)[0].GrantID

	for i, period := range []string{"2024-11-04 ~ 2024-11-04", "2024-11-11 ~ 2024-11-11"} {
		require.NoError(t, f.store.Append(ctx, leave.Transaction{
			ID: "legacy-use-" + period[:10], MemberID: "m-1", Type: leave.TxUse,
			Amount:      leave.DaysInt(-1),
			EffectiveAt: date(2024, time.November, 4+7*i),
			ReferenceID: grantID,
			Reason:      "Jordan Pike annual " + period,
		}))
	}
	require.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(1)))

	err = f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID: "req-a", MemberID: "m-1",
		Period: "2024-11-04 ~ 2024-11-04", CancelledBy: "approver",
	})
	require.NoError(t, err)
	require.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(2)))

	err = f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID: "req-b", MemberID: "m-1",
		Period: "2024-11-11 ~ 2024-11-11", CancelledBy: "approver",
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(3)),
		"second reversal must append its own mirror, not be swallowed")

	// Re-reversing either request stays a no-op.
	err = f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID: "req-b", MemberID: "m-1",
		Period: "2024-11-11 ~ 2024-11-11", CancelledBy: "approver",
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.DaysInt(3)))

	history, err = f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	cancels := 0
	for _, tx := range history {
		if tx.Type == leave.TxUseCancel {
			cancels++
		}
	}
	assert.Equal(t, 2, cancels)
}

func TestReverseUsage_NoMatch_FailsClosed(t *testing.T) {
	// GIVEN: No usage rows at all
	// WHEN: Reversing an unknown request
	// THEN: AmbiguousReversalError, ledger untouched

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	err := f.svc.ReverseUsage(ctx, leave.ReversalRequest{
		RequestID: "ghost", CancelledBy: "approver",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, leave.ErrAmbiguousReversal)

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

func TestManualGrantAndAdjust(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: An admin grants 5 days and adjusts by -1.5
	// THEN: The balance reflects both, and the manual grant is allocatable

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	err := f.svc.ManualGrant(ctx, "m-1", leave.DaysInt(5),
		date(2024, time.August, 1), date(2025, time.August, 1), "relocation bonus", "admin")
	require.NoError(t, err)

	err = f.svc.Adjust(ctx, "m-1", leave.Days(-1.5), "migration correction", "admin")
	require.NoError(t, err)

	assert.True(t, f.balance(t, "m-1").CurrentBalance.Equal(leave.Days(3.5)))

	err = f.svc.RecordUsage(ctx, usageReq("req-1", 2,
		date(2024, time.September, 2), date(2024, time.September, 3)))
	require.NoError(t, err)
}

func TestCancelGrant_VoidsRemainder(t *testing.T) {
	// GIVEN: A 5-day manual grant with 2 days used
	// WHEN: The grant is cancelled
	// THEN: A negative grant_cancel for the 3-day remainder lands; the used
	//       days stay used; cancelling again is a no-op

	f := newFixture(t, date(2024, time.July, 17))
	ctx := context.Background()

	err := f.svc.ManualGrant(ctx, "m-1", leave.DaysInt(5),
		date(2024, time.August, 1), date(2025, time.August, 1), "bonus", "admin")
	require.NoError(t, err)

	err = f.svc.RecordUsage(ctx, usageReq("req-1", 2,
		date(2024, time.September, 2), date(2024, time.September, 3)))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "m-1")
	require.NoError(t, err)
	grantID := leave.GrantHistory(history)[0].GrantID

	err = f.svc.CancelGrant(ctx, "m-1", grantID, "issued in error", "admin")
	require.NoError(t, err)
	assert.True(t, f.balance(t, "m-1").CurrentBalance.IsZero())

	err = f.svc.CancelGrant(ctx, "m-1", grantID, "issued in error", "admin")
	require.NoError(t, err, "re-cancel is a no-op")
	assert.True(t, f.balance(t, "m-1").CurrentBalance.IsZero())
}
