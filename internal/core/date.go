package core

import (
	"fmt"
	"time"
)

// Date is a civil date (UTC midnight). Time-of-day never matters to the
// ledger; every persisted date is an ISO day string.
type Date struct {
	time.Time
}

const isoDay = "2006-01-02"

// NewDate builds a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO day string ("2024-01-31").
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDay, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q: %v", ErrValidation, s, err)
	}
	return Date{Time: t}, nil
}

// ISO renders the date as "2006-01-02", the storage encoding.
func (d Date) ISO() string { return d.Format(isoDay) }

func (d Date) String() string { return d.ISO() }

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date { return Date{Time: d.AddDate(0, 0, n)} }

// AddMonths returns the date shifted by n calendar months. Month-end
// overflow follows time.AddDate; accrual watermarks sit on the first of the
// month so it never arises there.
func (d Date) AddMonths(n int) Date { return Date{Time: d.AddDate(0, n, 0)} }

// Before and After on embedded time.Time compare day-truncated values since
// every Date is constructed at UTC midnight.

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrValidation)
	}
	return nil
}
