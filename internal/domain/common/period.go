package common

import (
	"fmt"
	"time"
)

// Period filters bills by calendar month and year. Zero fields are unset.
type Period struct {
	Year  int
	Month int
}

// Validate rejects out-of-range values and a month without a year.
func (p Period) Validate() error {
	if p.Month < 0 || p.Month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrBadRequest)
	}
	if p.Year < 0 || p.Year > 9999 {
		return fmt.Errorf("%w: invalid year %d", ErrBadRequest, p.Year)
	}
	if p.Month != 0 && p.Year == 0 {
		return fmt.Errorf("%w: month requires a year", ErrBadRequest)
	}
	return nil
}

// IsZero reports whether no filter is set.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Range returns the half-open [from, to) interval covered by the period.
// ok is false when the period is unbounded.
func (p Period) Range() (from, to time.Time, ok bool) {
	switch {
	case p.Year == 0:
		return time.Time{}, time.Time{}, false
	case p.Month == 0:
		from = time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(1, 0, 0), true
	default:
		from = time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), true
	}
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	from, to, ok := p.Range()
	if !ok {
		return true
	}
	d := NormalizeDate(t)
	return !d.Before(from) && d.Before(to)
}

func (p Period) String() string {
	switch {
	case p.Year == 0:
		return "all"
	case p.Month == 0:
		return fmt.Sprintf("%04d", p.Year)
	default:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	}
}
