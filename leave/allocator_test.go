package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sable/leave-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func grantTx(id string, memberID string, amount int, grantDate, expireDate time.Time) leave.Transaction {
	gd, ed := leave.DayOf(grantDate), leave.DayOf(expireDate)
	return leave.Transaction{
		ID:          id,
		MemberID:    memberID,
		Type:        leave.TxGrant,
		Amount:      leave.DaysInt(amount),
		EffectiveAt: gd,
		GrantDate:   &gd,
		ExpireDate:  &ed,
	}
}

func useTx(id, memberID, grantID string, amount int, on time.Time) leave.Transaction {
	return leave.Transaction{
		ID:          id,
		MemberID:    memberID,
		Type:        leave.TxUse,
		Amount:      leave.DaysInt(amount).Neg(),
		EffectiveAt: leave.DayOf(on),
		ReferenceID: grantID,
	}
}

// =============================================================================
// FIFO ORDERING
// =============================================================================

func TestAllocate_OldestExpiringFirst(t *testing.T) {
	// GIVEN: G1 (5 days, expires 2025-03-01) and G2 (5 days, expires 2025-06-01)
	// WHEN: 7 days are requested
	// THEN: 5 come from G1, 2 from G2

	history := []leave.Transaction{
		grantTx("g2", "m-1", 5, date(2024, time.June, 1), date(2025, time.June, 1)),
		grantTx("g1", "m-1", 5, date(2024, time.March, 1), date(2025, time.March, 1)),
	}

	grants := leave.AvailableGrants(history, date(2024, time.July, 1))
	allocs, err := leave.Allocate("m-1", grants, leave.DaysInt(7))
	require.NoError(t, err)

	require.Len(t, allocs, 2)
	assert.Equal(t, "g1", allocs[0].GrantID)
	assert.True(t, allocs[0].Amount.Equal(leave.DaysInt(5)))
	assert.Equal(t, "g2", allocs[1].GrantID)
	assert.True(t, allocs[1].Amount.Equal(leave.DaysInt(2)))
}

func TestAllocate_TieBrokenByGrantDate(t *testing.T) {
	// GIVEN: Two grants with identical expire dates but different grant dates
	// WHEN: Allocating fewer days than either holds
	// THEN: The earlier-granted one is debited

	history := []leave.Transaction{
		grantTx("g-newer", "m-1", 5, date(2024, time.May, 1), date(2025, time.June, 1)),
		grantTx("g-older", "m-1", 5, date(2024, time.April, 1), date(2025, time.June, 1)),
	}

	grants := leave.AvailableGrants(history, date(2024, time.July, 1))
	allocs, err := leave.Allocate("m-1", grants, leave.DaysInt(3))
	require.NoError(t, err)

	require.Len(t, allocs, 1)
	assert.Equal(t, "g-older", allocs[0].GrantID)
}

func TestAllocate_SkipsPartiallyConsumedRemainders(t *testing.T) {
	// GIVEN: G1 has 2 of 5 days already used
	// WHEN: 4 days are requested
	// THEN: G1 yields its 3 remaining days, G2 covers the fourth

	history := []leave.Transaction{
		grantTx("g1", "m-1", 5, date(2024, time.March, 1), date(2025, time.March, 1)),
		grantTx("g2", "m-1", 5, date(2024, time.June, 1), date(2025, time.June, 1)),
		useTx("u1", "m-1", "g1", 2, date(2024, time.April, 10)),
	}

	grants := leave.AvailableGrants(history, date(2024, time.July, 1))
	allocs, err := leave.Allocate("m-1", grants, leave.DaysInt(4))
	require.NoError(t, err)

	require.Len(t, allocs, 2)
	assert.Equal(t, "g1", allocs[0].GrantID)
	assert.True(t, allocs[0].Amount.Equal(leave.DaysInt(3)))
	assert.Equal(t, "g2", allocs[1].GrantID)
	assert.True(t, allocs[1].Amount.Equal(leave.DaysInt(1)))
}

// =============================================================================
// AVAILABILITY FILTERING
// =============================================================================

func TestAvailableGrants_ExcludesExpired(t *testing.T) {
	// GIVEN: One grant expired yesterday, one expires today, one later
	// WHEN: Listing available grants as of today
	// THEN: The expired grant is gone; a grant expiring today still counts

	today := date(2025, time.March, 10)
	history := []leave.Transaction{
		grantTx("g-past", "m-1", 5, date(2024, time.March, 1), date(2025, time.March, 9)),
		grantTx("g-today", "m-1", 5, date(2024, time.March, 10), today),
		grantTx("g-future", "m-1", 5, date(2024, time.June, 1), date(2025, time.June, 1)),
	}

	grants := leave.AvailableGrants(history, today)
	require.Len(t, grants, 2)
	assert.Equal(t, "g-today", grants[0].GrantID)
	assert.Equal(t, "g-future", grants[1].GrantID)
}

func TestAvailableGrants_ExcludesCancelledAndDrained(t *testing.T) {
	// GIVEN: A cancelled grant and a fully consumed grant
	// WHEN: Listing available grants
	// THEN: Neither appears

	history := []leave.Transaction{
		grantTx("g-cancelled", "m-1", 5, date(2024, time.March, 1), date(2025, time.March, 1)),
		grantTx("g-drained", "m-1", 2, date(2024, time.April, 1), date(2025, time.April, 1)),
		grantTx("g-live", "m-1", 5, date(2024, time.May, 1), date(2025, time.May, 1)),
		{
			ID: "gc-1", MemberID: "m-1", Type: leave.TxGrantCancel,
			Amount: leave.DaysInt(5).Neg(), EffectiveAt: date(2024, time.March, 15),
			ReferenceID: "g-cancelled",
		},
		useTx("u1", "m-1", "g-drained", 2, date(2024, time.April, 10)),
	}

	grants := leave.AvailableGrants(history, date(2024, time.June, 1))
	require.Len(t, grants, 1)
	assert.Equal(t, "g-live", grants[0].GrantID)
}

// =============================================================================
// INSUFFICIENCY
// =============================================================================

func TestAllocate_InsufficientBalance_ExactShortfall(t *testing.T) {
	// GIVEN: 3 available days across two grants
	// WHEN: 5 days are requested
	// THEN: The error reports requested 5, available 3, short 2, and no
	//       allocations are returned

	history := []leave.Transaction{
		grantTx("g1", "m-1", 2, date(2024, time.March, 1), date(2025, time.March, 1)),
		grantTx("g2", "m-1", 1, date(2024, time.June, 1), date(2025, time.June, 1)),
	}

	grants := leave.AvailableGrants(history, date(2024, time.July, 1))
	allocs, err := leave.Allocate("m-1", grants, leave.DaysInt(5))

	require.Error(t, err)
	assert.Nil(t, allocs)
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "m-1", insufficient.MemberID)
	assert.True(t, insufficient.Requested.Equal(leave.DaysInt(5)))
	assert.True(t, insufficient.Available.Equal(leave.DaysInt(3)))
	assert.True(t, insufficient.Shortfall.Equal(leave.DaysInt(2)))
}

func TestAllocate_ZeroGrants(t *testing.T) {
	// GIVEN: No grants at all
	// WHEN: Any positive amount is requested
	// THEN: Insufficient, shortfall equals the full request

	_, err := leave.Allocate("m-1", nil, leave.DaysInt(1))
	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Shortfall.Equal(leave.DaysInt(1)))
}
