package export_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munipay/payment-engine/activity"
	"github.com/munipay/payment-engine/export"
	"github.com/munipay/payment-engine/schedule"
)

func TestBuildScheduleReport_TotalsAndMismatches(t *testing.T) {
	lines := []activity.PaymentAssessment{
		{PaymentID: "p-1", Date: schedule.NewDate(2025, time.January, 15), Recorded: decimal.NewFromInt(500), Calculated: decimal.NewFromInt(500), Paid: true},
		{PaymentID: "p-2", Date: schedule.NewDate(2025, time.February, 17), Recorded: decimal.NewFromInt(500), Calculated: decimal.NewFromInt(550)},
		{PaymentID: "p-3", Date: schedule.NewDate(2025, time.March, 17), Recorded: decimal.NewFromInt(550), Calculated: decimal.NewFromInt(550)},
	}

	r := export.BuildScheduleReport("sch-1", lines)

	assert.True(t, r.TotalRecorded.Equal(decimal.NewFromInt(1550)))
	assert.True(t, r.TotalCalculated.Equal(decimal.NewFromInt(1600)))
	assert.True(t, r.TotalPaid.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 1, r.PaidCount)
	assert.Equal(t, 2, r.UnpaidCount)
	assert.Equal(t, 1, r.Mismatches)
}

func TestYearlySummary_GroupsByYear(t *testing.T) {
	paid := decimal.NewFromInt(480)
	payments := []schedule.Payment{
		{Date: schedule.NewDate(2025, time.November, 17), Amount: decimal.NewFromInt(500), Paid: true, PaidAmount: &paid},
		{Date: schedule.NewDate(2025, time.December, 15), Amount: decimal.NewFromInt(500)},
		{Date: schedule.NewDate(2026, time.January, 15), Amount: decimal.NewFromInt(500)},
		{Date: schedule.NewDate(2026, time.February, 16), Amount: decimal.NewFromInt(500)},
	}

	totals := export.YearlySummary(payments)
	require.Len(t, totals, 2)

	assert.Equal(t, 2025, totals[0].Year)
	assert.Equal(t, 2, totals[0].Payments)
	// Paid payment counts its actual disbursed amount
	assert.True(t, totals[0].Granted.Equal(decimal.NewFromInt(980)))
	assert.True(t, totals[0].Expected.Equal(decimal.NewFromInt(1000)))

	assert.Equal(t, 2026, totals[1].Year)
	assert.True(t, totals[1].Granted.Equal(decimal.NewFromInt(1000)))
}

func TestYearlySummary_FictiveCountsExpectedOnly(t *testing.T) {
	payments := []schedule.Payment{
		{Date: schedule.NewDate(2025, time.March, 3), Amount: decimal.NewFromInt(500)},
		{Date: schedule.NewDate(2025, time.April, 1), Amount: decimal.NewFromInt(500), Fictive: true},
	}

	totals := export.YearlySummary(payments)
	require.Len(t, totals, 1)

	assert.True(t, totals[0].Granted.Equal(decimal.NewFromInt(500)), "fictive must not count as granted")
	assert.True(t, totals[0].Expected.Equal(decimal.NewFromInt(1000)), "fictive counts as expected")
	assert.Equal(t, 2, totals[0].Payments)
}
