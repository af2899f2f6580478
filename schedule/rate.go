/*
rate.go - Time-bounded rates and per-unit prices

PURPOSE:
  A Rate is a named shared value (e.g. a per-diem) whose amount changes
  over time. Its history is a partition of time into non-overlapping,
  chronologically ordered periods with at most one open-ended entry,
  which must be the most recent. A Price is the per-unit variant bound
  to a single schedule, with the same period mechanics.

RECALCULATION:
  Changing a rate's current amount sets NeedsRecalculation. A scheduled
  job consumes the flag and re-derives amounts for every unpaid payment
  on schedules referencing the rate (see recalc.go).
*/
package schedule

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIODS - Non-overlapping validity partition
// =============================================================================

// RatePeriod is one validity window. A nil End means open-ended.
type RatePeriod struct {
	Start  Date
	End    *Date
	Amount decimal.Decimal
}

// Contains reports whether the date falls inside the period.
func (p RatePeriod) Contains(d Date) bool {
	if d.Before(p.Start) {
		return false
	}
	return p.End == nil || d.BeforeOrEqual(*p.End)
}

// Periods is a chronologically ordered partition of time.
type Periods []RatePeriod

// AmountOn returns the amount of the most recent period with
// Start <= d and (End nil or End >= d).
func (ps Periods) AmountOn(d Date) (decimal.Decimal, bool) {
	for i := len(ps) - 1; i >= 0; i-- {
		if ps[i].Contains(d) {
			return ps[i].Amount, true
		}
	}
	return decimal.Zero, false
}

// SetAmount records a new amount effective from the given date: periods
// starting on or after it are dropped, the period covering it is closed
// the day before, and a new open-ended period is appended.
func (ps Periods) SetAmount(amount decimal.Decimal, from Date) Periods {
	var out Periods
	for _, p := range ps {
		if p.Start.AfterOrEqual(from) {
			continue
		}
		if p.Contains(from) || p.End == nil {
			end := from.AddDays(-1)
			p.End = &end
		}
		out = append(out, p)
	}
	return append(out, RatePeriod{Start: from, Amount: amount})
}

// Validate checks the partition invariants: chronological order, no
// overlaps, and at most one open-ended period, which must be last.
func (ps Periods) Validate() error {
	for i, p := range ps {
		if p.End != nil && p.End.Before(p.Start) {
			return fmt.Errorf("rate period %d ends before it starts", i)
		}
		if i == 0 {
			continue
		}
		prev := ps[i-1]
		if prev.End == nil {
			return fmt.Errorf("open-ended rate period %d is not the most recent", i-1)
		}
		if !prev.End.Before(p.Start) {
			return fmt.Errorf("rate periods %d and %d overlap", i-1, i)
		}
	}
	return nil
}

// =============================================================================
// RATE - Shared, named value
// =============================================================================

type Rate struct {
	ID      RateID
	Name    string
	Periods Periods

	// NeedsRecalculation is set when the current amount changes and
	// cleared only after every dependent schedule has been reprocessed.
	NeedsRecalculation bool
}

// AmountOn looks up the amount valid at the date. A coverage gap is a
// data-integrity condition, reported rather than defaulted to zero.
func (r *Rate) AmountOn(d Date) (decimal.Decimal, error) {
	amount, ok := r.Periods.AmountOn(d)
	if !ok {
		return decimal.Zero, &RateNotFoundForDateError{RateID: r.ID, Date: d}
	}
	return amount, nil
}

// SetAmount records a new amount effective from the date and flags the
// rate for recalculation.
func (r *Rate) SetAmount(amount decimal.Decimal, from Date) {
	r.Periods = r.Periods.SetAmount(amount, from)
	r.NeedsRecalculation = true
}

// =============================================================================
// PRICE - Per-unit price bound to one schedule
// =============================================================================

type Price struct {
	Periods Periods
}

// AmountOn looks up the per-unit price valid at the date.
func (p *Price) AmountOn(scheduleID ScheduleID, d Date) (decimal.Decimal, error) {
	amount, ok := p.Periods.AmountOn(d)
	if !ok {
		return decimal.Zero, &RateNotFoundForDateError{RateID: RateID("price:" + scheduleID), Date: d}
	}
	return amount, nil
}
