package schedule_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func planInput(p schedule.ScheduleParams, rng schedule.DateRange, existing []schedule.Payment) schedule.PlanInput {
	return schedule.PlanInput{
		Params:   p,
		Range:    rng,
		Today:    date(2025, time.January, 1),
		Existing: existing,
		Calendar: schedule.NewCalendar(nil),
	}
}

func asExisting(targets []schedule.Payment) []schedule.Payment {
	out := make([]schedule.Payment, len(targets))
	for i, t := range targets {
		t.ID = schedule.PaymentRecordID("existing-" + t.Date.String())
		out[i] = t
	}
	return out
}

// =============================================================================
// SYNCHRONIZATION
// =============================================================================

func TestPlanSynchronization_EmptyStore_InsertsAll(t *testing.T) {
	// GIVEN: A monthly schedule with no persisted payments
	// WHEN: Planning synchronization over 6 months
	// THEN: Six inserts, no deletes

	p := fixedSchedule(schedule.FrequencyMonthly)
	rng := boundedRange(date(2025, time.January, 15), date(2025, time.June, 30))

	diff, err := schedule.PlanSynchronization(planInput(p, rng, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.Inserts) != 6 {
		t.Errorf("expected 6 inserts, got %d", len(diff.Inserts))
	}
	if len(diff.Deletes) != 0 {
		t.Errorf("expected no deletes, got %d", len(diff.Deletes))
	}
}

func TestPlanSynchronization_Idempotent(t *testing.T) {
	// GIVEN: A payment set that already matches the target
	// WHEN: Planning synchronization again
	// THEN: The diff is empty

	p := fixedSchedule(schedule.FrequencyMonthly)
	rng := boundedRange(date(2025, time.January, 15), date(2025, time.June, 30))

	first, err := schedule.PlanSynchronization(planInput(p, rng, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	diff, err := schedule.PlanSynchronization(planInput(p, rng, asExisting(first.Inserts)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("second synchronization should be a no-op, got %d inserts %d deletes",
			len(diff.Inserts), len(diff.Deletes))
	}
}

func TestPlanSynchronization_ShrinkingRangeDeletesTail(t *testing.T) {
	// GIVEN: Ten persisted monthly payments
	// WHEN: The activity end moves so only six occurrences remain
	// THEN: The four out-of-range payments are deleted, six kept

	p := fixedSchedule(schedule.FrequencyMonthly)
	wide := boundedRange(date(2025, time.January, 15), date(2025, time.October, 31))

	initial, err := schedule.PlanSynchronization(planInput(p, wide, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(initial.Inserts) != 10 {
		t.Fatalf("expected 10 initial payments, got %d", len(initial.Inserts))
	}

	narrow := boundedRange(date(2025, time.January, 15), date(2025, time.June, 30))
	diff, err := schedule.PlanSynchronization(planInput(p, narrow, asExisting(initial.Inserts)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.Deletes) != 4 {
		t.Errorf("expected 4 deletes, got %d", len(diff.Deletes))
	}
	if len(diff.Inserts) != 0 {
		t.Errorf("expected no inserts, got %d", len(diff.Inserts))
	}
}

func TestPlanSynchronization_PaidPaymentsAreUntouchable(t *testing.T) {
	// GIVEN: A paid payment whose date falls outside the new range
	// WHEN: Planning synchronization
	// THEN: The paid payment is neither deleted nor re-inserted

	p := fixedSchedule(schedule.FrequencyMonthly)
	wide := boundedRange(date(2025, time.January, 15), date(2025, time.October, 31))

	initial, err := schedule.PlanSynchronization(planInput(p, wide, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	existing := asExisting(initial.Inserts)
	paidDate := date(2025, time.September, 15)
	for i := range existing {
		if existing[i].Date.Equal(paidDate) {
			existing[i].Paid = true
			pd := paidDate
			existing[i].PaidDate = &pd
		}
	}

	narrow := boundedRange(date(2025, time.January, 15), date(2025, time.June, 30))
	diff, err := schedule.PlanSynchronization(planInput(p, narrow, existing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range diff.Deletes {
		if id == schedule.PaymentRecordID("existing-"+paidDate.String()) {
			t.Error("paid payment must never be deleted")
		}
	}
	if len(diff.Deletes) != 3 {
		t.Errorf("expected 3 deletes (unpaid out-of-range only), got %d", len(diff.Deletes))
	}
}

func TestPlanSynchronization_PaidDateBlocksReinsertion(t *testing.T) {
	// GIVEN: A paid payment on a date still in the target set
	// WHEN: Planning synchronization
	// THEN: No duplicate unpaid payment is inserted on that date

	p := fixedSchedule(schedule.FrequencyMonthly)
	rng := boundedRange(date(2025, time.January, 15), date(2025, time.June, 30))

	initial, err := schedule.PlanSynchronization(planInput(p, rng, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	existing := asExisting(initial.Inserts)
	existing[2].Paid = true

	diff, err := schedule.PlanSynchronization(planInput(p, rng, existing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ins := range diff.Inserts {
		if ins.Date.Equal(existing[2].Date) {
			t.Errorf("no insert may land on the paid date %s", existing[2].Date)
		}
	}
	if !diff.Empty() {
		t.Errorf("expected no-op diff, got %d inserts %d deletes", len(diff.Inserts), len(diff.Deletes))
	}
}

func TestPlanSynchronization_ShiftCollisionsCollapse(t *testing.T) {
	// GIVEN: Daily occurrences over a weekend, all shifting to Monday
	// WHEN: Planning synchronization
	// THEN: One payment per calendar day; date uniqueness wins

	p := fixedSchedule(schedule.FrequencyDaily)
	// Friday through Monday: Sat+Sun shift onto Monday
	rng := boundedRange(date(2025, time.March, 7), date(2025, time.March, 10))

	diff, err := schedule.PlanSynchronization(planInput(p, rng, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.Inserts) != 2 {
		t.Fatalf("expected 2 payments (Friday and Monday), got %d", len(diff.Inserts))
	}

	seen := make(map[schedule.Date]bool)
	for _, ins := range diff.Inserts {
		if seen[ins.Date] {
			t.Errorf("duplicate payment date %s", ins.Date)
		}
		seen[ins.Date] = true
	}
}

func TestPlanSynchronization_RecipientSnapshot(t *testing.T) {
	// GIVEN: A schedule with recipient details
	// WHEN: Planning inserts
	// THEN: Each payment carries a snapshot of the recipient

	p := fixedSchedule(schedule.FrequencyMonthly)
	rng := boundedRange(date(2025, time.January, 15), date(2025, time.March, 31))

	diff, err := schedule.PlanSynchronization(planInput(p, rng, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ins := range diff.Inserts {
		if ins.RecipientName != "Jens Hansen" || ins.RecipientID != "cpr-1" {
			t.Errorf("payment missing recipient snapshot: %+v", ins)
		}
		if ins.RecipientType != schedule.RecipientPerson {
			t.Errorf("payment missing recipient type: %+v", ins)
		}
	}
}

// =============================================================================
// REGENERATION
// =============================================================================

func TestPlanRegeneration_DropsAllUnpaid(t *testing.T) {
	// GIVEN: An existing payment set, one payment paid
	// WHEN: Planning regeneration
	// THEN: Every unpaid payment is deleted and rebuilt; the paid one
	//       stays and blocks its date

	p := fixedSchedule(schedule.FrequencyMonthly)
	rng := boundedRange(date(2025, time.January, 15), date(2025, time.June, 30))

	initial, err := schedule.PlanRegeneration(planInput(p, rng, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	existing := asExisting(initial.Inserts)
	existing[0].Paid = true

	diff, err := schedule.PlanRegeneration(planInput(p, rng, existing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.Deletes) != 5 {
		t.Errorf("expected 5 deletes, got %d", len(diff.Deletes))
	}
	if len(diff.Inserts) != 5 {
		t.Errorf("expected 5 inserts, got %d", len(diff.Inserts))
	}
	for _, ins := range diff.Inserts {
		if ins.Date.Equal(existing[0].Date) {
			t.Errorf("regeneration must not re-insert the paid date %s", ins.Date)
		}
	}
}

// =============================================================================
// RATE RECALCULATION
// =============================================================================

func TestPlanRateRecalculation_UpdatesOnlyChangedUnpaid(t *testing.T) {
	// GIVEN: Payments generated at rate 10, then the rate moves to 15
	//        from July; one pre-July payment is paid
	// WHEN: Planning recalculation
	// THEN: Only unpaid payments from July onward get updates

	p := rateSchedule()
	rate := openEndedRate(10, date(2025, time.January, 1))

	in := planInput(p, boundedRange(date(2025, time.January, 15), date(2025, time.October, 31)), nil)
	in.Rate = rate
	initial, err := schedule.PlanSynchronization(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payments := asExisting(initial.Inserts)
	payments[0].Paid = true

	rate.SetAmount(decimal.NewFromInt(15), date(2025, time.July, 1))

	updates, err := schedule.PlanRateRecalculation(p, payments, rate, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// July 15 through October 15 are unpaid and repriced: 4 updates.
	if len(updates) != 4 {
		t.Fatalf("expected 4 updates, got %d", len(updates))
	}
	for _, u := range updates {
		if !u.Amount.Equal(decimal.NewFromInt(15)) {
			t.Errorf("expected updated amount 15, got %s", u.Amount)
		}
		if u.PaymentID == payments[0].ID {
			t.Error("paid payment must not be repriced")
		}
	}
}

func TestPlanRateRecalculation_NoChangeNoUpdates(t *testing.T) {
	// GIVEN: Payments already priced at the current rate
	// WHEN: Planning recalculation
	// THEN: No updates are produced

	p := rateSchedule()
	rate := openEndedRate(10, date(2025, time.January, 1))

	in := planInput(p, boundedRange(date(2025, time.January, 15), date(2025, time.June, 30)), nil)
	in.Rate = rate
	initial, err := schedule.PlanSynchronization(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updates, err := schedule.PlanRateRecalculation(p, asExisting(initial.Inserts), rate, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 0 {
		t.Errorf("expected no updates, got %d", len(updates))
	}
}
