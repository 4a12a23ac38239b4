package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddCalendarMonths shifts a date forward by whole calendar months, keeping
// the day-of-month where the target month has it and clamping to the last
// day otherwise (Jan 31 + 1 month = Feb 28/29).
func AddCalendarMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	hour, min, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// IsDateOverdue checks if a due date has passed relative to the given instant
func IsDateOverdue(dueDate, now time.Time) bool {
	return dueDate.Before(now)
}

// Round2 rounds a monetary amount to 2 decimal places
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
