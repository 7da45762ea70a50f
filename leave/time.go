package leave

import "time"

// =============================================================================
// DATE HELPERS - All ledger math runs at day granularity in UTC
// =============================================================================

// Date builds a day-granular UTC time.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar day.
func Today() time.Time { return DayOf(time.Now()) }

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// AddMonthsClamped advances t by n months, clamping the day-of-month into
// the target month instead of letting it spill over (Jan 31 + 1 month is
// Feb 28/29, not Mar 2). Monthly join-date anniversaries depend on this.
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = DayOf(t)
	y, m, d := t.Year(), int(t.Month()), t.Day()

	m += n
	y += (m - 1) / 12
	m = (m-1)%12 + 1
	if m < 1 {
		m += 12
		y--
	}

	if last := daysInMonth(y, time.Month(m)); d > last {
		d = last
	}
	return Date(y, time.Month(m), d)
}

// AddYearsClamped advances t by n years with Feb 29 clamping to Feb 28.
func AddYearsClamped(t time.Time, n int) time.Time {
	return AddMonthsClamped(t, n*12)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
