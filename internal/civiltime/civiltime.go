// Package civiltime performs all calendar math in WIB (UTC+07:00).
//
// Month boundaries, "today" and the lock threshold are computed against this
// fixed civil offset, never against the host timezone or naive UTC, so the
// results are identical wherever the process runs.
package civiltime

import (
	"fmt"
	"time"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"

	// lockGrace is slack past midnight on the first of the following month,
	// to avoid racing in-flight writes exactly at rollover.
	lockGrace = 5 * time.Second
)

var wib = time.FixedZone("WIB", 7*60*60)

// Location returns the fixed WIB location.
func Location() *time.Location {
	return wib
}

// Clock provides the current instant in WIB. The zero source is the system
// clock; tests pin it with NewFixed.
type Clock struct {
	now func() time.Time
}

// New returns a Clock backed by the system clock.
func New() *Clock {
	return &Clock{now: time.Now}
}

// NewFixed returns a Clock frozen at t. Used by tests.
func NewFixed(t time.Time) *Clock {
	return &Clock{now: func() time.Time { return t }}
}

// Now returns the current instant in WIB.
func (c *Clock) Now() time.Time {
	return c.now().In(wib)
}

// NowISO returns the current instant as an RFC 3339 string carrying the
// +07:00 offset.
func (c *Clock) NowISO() string {
	return c.Now().Format(time.RFC3339)
}

// CurrentMonth returns the current WIB month as YYYY-MM.
func (c *Clock) CurrentMonth() string {
	return c.Now().Format(monthLayout)
}

// CurrentDate returns the current WIB date as YYYY-MM-DD.
func (c *Clock) CurrentDate() string {
	return c.Now().Format(dayLayout)
}

// LastCompletedMonth returns the month before the current WIB month.
// If today is Jan 17, 2026 it returns "2025-12".
func (c *Clock) LastCompletedMonth() string {
	// Subtract from the first of the month, not from today: AddDate on a
	// month-end day normalizes forward (Mar 31 minus one month is "Feb 31",
	// which is Mar 3).
	now := c.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, wib)
	return first.AddDate(0, -1, 0).Format(monthLayout)
}

// IsPastLockThreshold reports whether the current instant is after 00:00:05
// WIB on the first day of the month following ym.
func (c *Clock) IsPastLockThreshold(ym string) (bool, error) {
	start, err := time.ParseInLocation(monthLayout, ym, wib)
	if err != nil {
		return false, fmt.Errorf("parse month %q: %w", ym, err)
	}
	threshold := start.AddDate(0, 1, 0).Add(lockGrace)
	return c.Now().After(threshold), nil
}

// YearMonthOf converts an arbitrary-offset RFC 3339 timestamp to WIB, then
// truncates to month granularity. The input's own offset only matters for
// identifying the instant; the civil month is always the WIB one.
func YearMonthOf(dateISO string) (string, error) {
	t, err := time.Parse(time.RFC3339, dateISO)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", dateISO, err)
	}
	return t.In(wib).Format(monthLayout), nil
}

// DayOf converts an RFC 3339 timestamp to its WIB calendar day.
func DayOf(dateISO string) (string, error) {
	t, err := time.Parse(time.RFC3339, dateISO)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", dateISO, err)
	}
	return t.In(wib).Format(dayLayout), nil
}

// PreviousMonth returns the month before ym, rolling the year boundary:
// PreviousMonth("2025-01") is "2024-12".
func PreviousMonth(ym string) (string, error) {
	t, err := time.ParseInLocation(monthLayout, ym, wib)
	if err != nil {
		return "", fmt.Errorf("parse month %q: %w", ym, err)
	}
	return t.AddDate(0, -1, 0).Format(monthLayout), nil
}

// SameMonthPriorYear returns ym shifted back one year.
func SameMonthPriorYear(ym string) (string, error) {
	t, err := time.ParseInLocation(monthLayout, ym, wib)
	if err != nil {
		return "", fmt.Errorf("parse month %q: %w", ym, err)
	}
	return t.AddDate(-1, 0, 0).Format(monthLayout), nil
}

// MonthRange returns every month from start through end inclusive, ascending.
// The slice is rebuilt on each call; an end before start yields an empty
// slice.
func MonthRange(start, end string) ([]string, error) {
	cur, err := time.ParseInLocation(monthLayout, start, wib)
	if err != nil {
		return nil, fmt.Errorf("parse month %q: %w", start, err)
	}
	last, err := time.ParseInLocation(monthLayout, end, wib)
	if err != nil {
		return nil, fmt.Errorf("parse month %q: %w", end, err)
	}

	var months []string
	for !cur.After(last) {
		months = append(months, cur.Format(monthLayout))
		cur = cur.AddDate(0, 1, 0)
	}
	return months, nil
}

// DayRange returns every day from start through end inclusive, ascending.
func DayRange(start, end string) ([]string, error) {
	cur, err := time.ParseInLocation(dayLayout, start, wib)
	if err != nil {
		return nil, fmt.Errorf("parse day %q: %w", start, err)
	}
	last, err := time.ParseInLocation(dayLayout, end, wib)
	if err != nil {
		return nil, fmt.Errorf("parse day %q: %w", end, err)
	}

	var days []string
	for !cur.After(last) {
		days = append(days, cur.Format(dayLayout))
		cur = cur.AddDate(0, 0, 1)
	}
	return days, nil
}
