/*
calendar.go - Exclusion calendar and due-date shifting

PURPOSE:
  Determines whether a candidate payment date must be shifted forward
  because it falls on a weekend or a configured exclusion date (public
  holiday or extra fixed date), and performs the shift.

PRECOMPUTATION:
  Exclusion dates are computed once for a configurable multi-year
  horizon (Danish public holidays relative to Easter plus a static
  list of extra fixed dates) and persisted. At runtime the shift
  lookup is a set-membership check, not a recomputation.

SHIFTING:
  Advance one day at a time until a non-excluded weekday is found.
  Chains roll through: a Friday holiday, the weekend and a Monday
  holiday all shift to Tuesday. Shifting an already-valid date is a
  no-op (idempotent).
*/
package schedule

import "time"

// =============================================================================
// CALENDAR CONFIG - Explicit configuration, no ambient settings
// =============================================================================

// MonthDay is a fixed-date exclusion recurring every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// CalendarConfig controls exclusion precomputation.
type CalendarConfig struct {
	// HorizonYears is how many years of exclusions to precompute,
	// starting at the given from-year.
	HorizonYears int

	// ExtraDates are static exclusions applied every year in addition
	// to the computed public holidays.
	ExtraDates []MonthDay
}

// DefaultCalendarConfig covers the standard municipal setup: six years
// of horizon, plus Christmas Eve, New Year's Eve, Labour Day and
// Constitution Day as extra exclusions.
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		HorizonYears: 6,
		ExtraDates: []MonthDay{
			{time.December, 24},
			{time.December, 31},
			{time.May, 1},
			{time.June, 5},
		},
	}
}

// =============================================================================
// DANISH PUBLIC HOLIDAYS - Fixed relative to Easter
// =============================================================================

// Exclusion is a single excluded calendar date. Immutable reference
// data, queried by date.
type Exclusion struct {
	Date Date
	Name string
}

// EasterSunday computes Easter for a Gregorian year (anonymous
// Gregorian computus).
func EasterSunday(year int) Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return NewDate(year, time.Month(month), day)
}

// DanishHolidays returns the fixed public holidays for one year.
func DanishHolidays(year int) []Exclusion {
	easter := EasterSunday(year)
	return []Exclusion{
		{NewDate(year, time.January, 1), "New Year's Day"},
		{easter.AddDays(-3), "Maundy Thursday"},
		{easter.AddDays(-2), "Good Friday"},
		{easter, "Easter Sunday"},
		{easter.AddDays(1), "Easter Monday"},
		{easter.AddDays(26), "Great Prayer Day"},
		{easter.AddDays(39), "Ascension Day"},
		{easter.AddDays(49), "Whit Sunday"},
		{easter.AddDays(50), "Whit Monday"},
		{NewDate(year, time.December, 25), "Christmas Day"},
		{NewDate(year, time.December, 26), "Second Christmas Day"},
	}
}

// ComputeExclusions produces the full exclusion set for the configured
// horizon starting at fromYear. The result is persisted so runtime
// shifting never recomputes holidays.
func ComputeExclusions(cfg CalendarConfig, fromYear int) []Exclusion {
	var out []Exclusion
	for y := fromYear; y < fromYear+cfg.HorizonYears; y++ {
		out = append(out, DanishHolidays(y)...)
		for _, md := range cfg.ExtraDates {
			out = append(out, Exclusion{NewDate(y, md.Month, md.Day), "Configured exclusion"})
		}
	}
	return out
}

// =============================================================================
// CALENDAR - Set-membership shifting
// =============================================================================

// Calendar answers "is this date a valid payment date" against a
// precomputed exclusion set plus the weekend rule.
type Calendar struct {
	excluded map[Date]struct{}
}

// NewCalendar builds a calendar from persisted exclusion dates.
func NewCalendar(dates []Date) *Calendar {
	excluded := make(map[Date]struct{}, len(dates))
	for _, d := range dates {
		excluded[d] = struct{}{}
	}
	return &Calendar{excluded: excluded}
}

// IsExcluded reports whether payments must not land on the date.
func (c *Calendar) IsExcluded(d Date) bool {
	if d.IsWeekend() {
		return true
	}
	_, ok := c.excluded[d]
	return ok
}

// ShiftToValid advances the date one day at a time until it lands on a
// non-excluded weekday. Already-valid dates are returned unchanged.
func (c *Calendar) ShiftToValid(d Date) Date {
	for c.IsExcluded(d) {
		d = d.AddDays(1)
	}
	return d
}
