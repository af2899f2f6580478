package schedule_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
)

func openEndedRate(amount int64, from schedule.Date) *schedule.Rate {
	return &schedule.Rate{
		ID:   "rate-1",
		Name: "Mileage",
		Periods: schedule.Periods{
			{Start: from, Amount: decimal.NewFromInt(amount)},
		},
	}
}

// =============================================================================
// PERIOD PARTITION
// =============================================================================

func TestPeriods_AmountOn_PicksCoveringPeriod(t *testing.T) {
	// GIVEN: Two adjacent periods with different amounts
	// WHEN: Looking up dates in each
	// THEN: Each date resolves to its own period's amount

	end := date(2025, time.June, 30)
	periods := schedule.Periods{
		{Start: date(2025, time.January, 1), End: &end, Amount: decimal.NewFromInt(10)},
		{Start: date(2025, time.July, 1), Amount: decimal.NewFromInt(15)},
	}

	amount, ok := periods.AmountOn(date(2025, time.March, 1))
	if !ok || !amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("March should resolve to 10, got %s (ok=%v)", amount, ok)
	}
	amount, ok = periods.AmountOn(date(2025, time.August, 1))
	if !ok || !amount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("August should resolve to 15, got %s (ok=%v)", amount, ok)
	}
}

func TestPeriods_AmountOn_GapReportsMiss(t *testing.T) {
	// GIVEN: A partition starting July 1
	// WHEN: Looking up a date before any period
	// THEN: The lookup misses instead of defaulting to zero silently

	periods := schedule.Periods{
		{Start: date(2025, time.July, 1), Amount: decimal.NewFromInt(15)},
	}

	_, ok := periods.AmountOn(date(2025, time.March, 1))
	if ok {
		t.Error("date before the partition should not resolve")
	}
}

func TestPeriods_SetAmount_ClosesCoveringPeriod(t *testing.T) {
	// GIVEN: A single open-ended period at 10
	// WHEN: Setting 15 effective July 1
	// THEN: The old period ends June 30 and the new one is open-ended

	periods := schedule.Periods{
		{Start: date(2025, time.January, 1), Amount: decimal.NewFromInt(10)},
	}

	updated := periods.SetAmount(decimal.NewFromInt(15), date(2025, time.July, 1))
	if err := updated.Validate(); err != nil {
		t.Fatalf("updated partition invalid: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(updated))
	}
	if updated[0].End == nil || !updated[0].End.Equal(date(2025, time.June, 30)) {
		t.Errorf("old period should close June 30, got %v", updated[0].End)
	}
	if updated[1].End != nil {
		t.Error("new period should be open-ended")
	}

	amount, _ := updated.AmountOn(date(2025, time.June, 30))
	if !amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("June 30 should still be 10, got %s", amount)
	}
	amount, _ = updated.AmountOn(date(2025, time.July, 1))
	if !amount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("July 1 should be 15, got %s", amount)
	}
}

func TestPeriods_SetAmount_DropsSupersededFuturePeriods(t *testing.T) {
	// GIVEN: A partition with a future period already scheduled
	// WHEN: Setting a new amount before that future period starts
	// THEN: The future period is dropped, keeping the partition valid

	end := date(2025, time.June, 30)
	periods := schedule.Periods{
		{Start: date(2025, time.January, 1), End: &end, Amount: decimal.NewFromInt(10)},
		{Start: date(2025, time.July, 1), Amount: decimal.NewFromInt(15)},
	}

	updated := periods.SetAmount(decimal.NewFromInt(20), date(2025, time.April, 1))
	if err := updated.Validate(); err != nil {
		t.Fatalf("updated partition invalid: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(updated))
	}
	amount, _ := updated.AmountOn(date(2025, time.December, 1))
	if !amount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("December should be 20, got %s", amount)
	}
}

func TestPeriods_Validate_RejectsOverlap(t *testing.T) {
	// GIVEN: Two periods sharing a day
	// WHEN: Validating
	// THEN: The overlap is rejected

	end := date(2025, time.July, 1)
	periods := schedule.Periods{
		{Start: date(2025, time.January, 1), End: &end, Amount: decimal.NewFromInt(10)},
		{Start: date(2025, time.July, 1), Amount: decimal.NewFromInt(15)},
	}
	if periods.Validate() == nil {
		t.Error("overlapping periods should fail validation")
	}
}

// =============================================================================
// RATE
// =============================================================================

func TestRate_SetAmount_FlagsRecalculation(t *testing.T) {
	// GIVEN: A rate not flagged for recalculation
	// WHEN: Changing its amount
	// THEN: The flag is set and the new amount applies from the date

	rate := openEndedRate(10, date(2025, time.January, 1))
	if rate.NeedsRecalculation {
		t.Fatal("fresh rate should not be flagged")
	}

	rate.SetAmount(decimal.NewFromInt(15), date(2025, time.July, 1))
	if !rate.NeedsRecalculation {
		t.Error("amount change should flag the rate")
	}

	amount, err := rate.AmountOn(date(2025, time.August, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("August should be 15, got %s", amount)
	}
}

func TestRate_AmountOn_GapIsError(t *testing.T) {
	// GIVEN: A rate starting July 1
	// WHEN: Looking up a date before coverage
	// THEN: RateNotFoundForDateError carrying rate and date

	rate := openEndedRate(10, date(2025, time.July, 1))

	_, err := rate.AmountOn(date(2025, time.March, 1))
	if !errors.Is(err, schedule.ErrRateNotFoundForDate) {
		t.Fatalf("expected ErrRateNotFoundForDate, got %v", err)
	}
	var gapErr *schedule.RateNotFoundForDateError
	if !errors.As(err, &gapErr) {
		t.Fatalf("expected RateNotFoundForDateError, got %T", err)
	}
	if gapErr.RateID != "rate-1" {
		t.Errorf("error should carry the rate ID, got %q", gapErr.RateID)
	}
}
