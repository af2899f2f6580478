/*
Package export builds read-only payment reports for disbursement
export jobs.

PURPOSE:
  Export batches (PRISME disbursement files, DST statistics extracts)
  need per-payment amounts and yearly totals independently of the
  persisted rows, so discrepancies between recorded and recalculated
  amounts surface before money moves. This package only reads; the
  scheduling core owns all mutation.

REPORTS:
  ScheduleReport:  Per-payment recorded vs recalculated amounts plus
                   paid/unpaid/fictive totals for one schedule.
  YearlySummary:   Totals per calendar year across many payments,
                   split into granted (disbursed or due) and expected.

SEE ALSO:
  - activity/service.go: CalculatePerPaymentAmount feeding these reports
  - schedule/types.go: Payment
*/
package export

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/activity"
	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// SCHEDULE REPORT - One schedule, recorded vs recalculated
// =============================================================================

type ScheduleReport struct {
	ScheduleID schedule.ScheduleID
	Lines      []activity.PaymentAssessment

	TotalRecorded   decimal.Decimal
	TotalCalculated decimal.Decimal
	TotalPaid       decimal.Decimal
	UnpaidCount     int
	PaidCount       int

	// Mismatches counts lines whose recorded amount differs from the
	// recalculated one - a signal to hold the export and investigate.
	Mismatches int
}

// BuildScheduleReport aggregates per-payment assessments.
func BuildScheduleReport(id schedule.ScheduleID, lines []activity.PaymentAssessment) ScheduleReport {
	r := ScheduleReport{ScheduleID: id, Lines: lines}
	for _, line := range lines {
		r.TotalRecorded = r.TotalRecorded.Add(line.Recorded)
		r.TotalCalculated = r.TotalCalculated.Add(line.Calculated)
		if line.Paid {
			r.PaidCount++
			r.TotalPaid = r.TotalPaid.Add(line.Recorded)
		} else {
			r.UnpaidCount++
		}
		if !line.Recorded.Equal(line.Calculated) {
			r.Mismatches++
		}
	}
	return r
}

// =============================================================================
// YEARLY SUMMARY - Granted vs expected totals per calendar year
// =============================================================================

type YearTotals struct {
	Year     int
	Granted  decimal.Decimal // paid, or due on a non-fictive payment
	Expected decimal.Decimal // everything, fictive included
	Payments int
}

// YearlySummary groups payments by calendar year. Fictive payments
// count toward the expected total only; they are recorded but never
// disbursed.
func YearlySummary(payments []schedule.Payment) []YearTotals {
	byYear := make(map[int]*YearTotals)
	for _, p := range payments {
		year := p.Date.Year()
		t, ok := byYear[year]
		if !ok {
			t = &YearTotals{Year: year}
			byYear[year] = t
		}
		t.Payments++
		t.Expected = t.Expected.Add(p.Amount)
		if p.Fictive {
			continue
		}
		if p.Paid && p.PaidAmount != nil {
			t.Granted = t.Granted.Add(*p.PaidAmount)
		} else {
			t.Granted = t.Granted.Add(p.Amount)
		}
	}

	out := make([]YearTotals, 0, len(byYear))
	for _, t := range byYear {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
