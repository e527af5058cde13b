package types

import (
	"fmt"
	"time"

	ierr "github.com/wispbill/wispbill/internal/errors"
)

// BillingPeriod is one calendar month of service in the billing timezone.
// Both ends are inclusive: Start is the first instant of the first day and
// End the last second of the last day.
type BillingPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewMonthlyPeriod returns the calendar month containing t, evaluated in loc
func NewMonthlyPeriod(t time.Time, loc *time.Location) BillingPeriod {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return NewMonthlyPeriodFor(local.Month(), local.Year(), loc)
}

// NewMonthlyPeriodFor returns the period of the given month and year
func NewMonthlyPeriodFor(month time.Month, year int, loc *time.Location) BillingPeriod {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	next := start.AddDate(0, 1, 0)
	return BillingPeriod{
		Start: start,
		End:   next.Add(-time.Second),
	}
}

func (p BillingPeriod) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || !p.End.After(p.Start) {
		return ierr.NewError("invalid billing period").
			WithHint("Period end must be after period start").
			WithReportableDetails(map[string]any{
				"start": p.Start,
				"end":   p.End,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Days is the number of calendar days in the period
func (p BillingPeriod) Days() int {
	start := StartOfDay(p.Start)
	end := StartOfDay(p.End.In(p.Start.Location()))
	// calendar days, not 24h blocks, so DST shifts do not change the count
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// DayIndex returns the 1-indexed day of t within the period, or 0 when t
// falls outside it
func (p BillingPeriod) DayIndex(t time.Time) int {
	if !p.Contains(t) {
		return 0
	}
	local := StartOfDay(t.In(p.Start.Location()))
	idx := 1
	for d := StartOfDay(p.Start); d.Before(local); d = d.AddDate(0, 0, 1) {
		idx++
	}
	return idx
}

// Contains reports whether t lies inside the closed period
func (p BillingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Overlaps reports whether two closed periods share at least one instant
func (p BillingPeriod) Overlaps(other BillingPeriod) bool {
	return !p.Start.After(other.End) && !other.Start.After(p.End)
}

// Month returns the calendar month the period belongs to
func (p BillingPeriod) Month() BillingMonth {
	return BillingMonth{Month: int(p.Start.Month()), Year: p.Start.Year()}
}

func (p BillingPeriod) Next() BillingPeriod {
	return NewMonthlyPeriod(p.End.Add(time.Second), p.Start.Location())
}

// Key identifies the period in caches and idempotency keys, e.g. 2026-10
func (p BillingPeriod) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Start.Year(), int(p.Start.Month()))
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%s..%s", p.Start.Format(time.DateOnly), p.End.Format(time.DateOnly))
}
