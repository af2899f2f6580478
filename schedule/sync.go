/*
sync.go - The payment schedule synchronizer

PURPOSE:
  Reconciles the persisted payment set against what the recurrence
  generator and cost calculator say should exist for a date range,
  producing a minimal diff (inserts + deletes) for the persistence
  layer to apply in one transaction.

PARTITIONING:
  - unpaid payments whose date is in the target set: left untouched
    (idempotent, no spurious writes)
  - unpaid payments outside the target set: deleted
  - target dates not already present: inserted with the computed
    amount and a recipient snapshot
  - PAID payments are historical fact: never deleted, recreated or
    amount-mutated, regardless of target set membership

ATOMICITY:
  Planning is pure; any error (invalid frequency, rate gap) surfaces
  before a single write happens. The caller applies the diff inside a
  store transaction, so either all intended changes commit or none do.
*/
package schedule

import "github.com/shopspring/decimal"

// =============================================================================
// DIFF - The planner's output
// =============================================================================

// Diff is the minimal set of store operations that brings a schedule's
// payment set in line with its target occurrence set.
type Diff struct {
	Inserts []Payment
	Deletes []PaymentRecordID
}

func (d Diff) Empty() bool { return len(d.Inserts) == 0 && len(d.Deletes) == 0 }

// =============================================================================
// PLAN INPUT - Everything the planner needs, explicitly
// =============================================================================

type PlanInput struct {
	Params   ScheduleParams
	Range    DateRange
	Today    Date
	Existing []Payment // every persisted payment for the schedule, paid and unpaid
	Calendar *Calendar
	Rate     *Rate // resolved shared rate; nil unless CostGlobalRate
	VAT      decimal.Decimal
}

// =============================================================================
// SYNCHRONIZATION - Preserve paid history, diff the rest
// =============================================================================

// PlanSynchronization computes the diff for a granted activity: paid
// history is preserved, unpaid payments are reconciled against the
// target set.
func PlanSynchronization(in PlanInput) (Diff, error) {
	targets, err := targetPayments(in)
	if err != nil {
		return Diff{}, err
	}

	inTarget := make(map[Date]bool, len(targets))
	for _, t := range targets {
		inTarget[t.Date] = true
	}

	var diff Diff
	covered := make(map[Date]bool)
	for _, existing := range in.Existing {
		if existing.Paid {
			// Historical fact. It also blocks re-insertion on its date.
			covered[existing.Date] = true
			continue
		}
		if inTarget[existing.Date] && !covered[existing.Date] {
			covered[existing.Date] = true
			continue
		}
		diff.Deletes = append(diff.Deletes, existing.ID)
	}

	for _, t := range targets {
		if !covered[t.Date] {
			diff.Inserts = append(diff.Inserts, t)
			covered[t.Date] = true
		}
	}
	return diff, nil
}

// PlanRegeneration computes the diff for a draft activity: nothing is
// paid yet, so every unpaid payment is dropped and the target set is
// recreated from scratch (refreshing amounts and recipient snapshots).
func PlanRegeneration(in PlanInput) (Diff, error) {
	targets, err := targetPayments(in)
	if err != nil {
		return Diff{}, err
	}

	var diff Diff
	paidDates := make(map[Date]bool)
	for _, existing := range in.Existing {
		if existing.Paid {
			paidDates[existing.Date] = true
			continue
		}
		diff.Deletes = append(diff.Deletes, existing.ID)
	}
	for _, t := range targets {
		if !paidDates[t.Date] {
			diff.Inserts = append(diff.Inserts, t)
		}
	}
	return diff, nil
}

// targetPayments generates the occurrence dates, shifts each through
// the exclusion calendar, de-duplicates collisions and assigns amounts.
func targetPayments(in PlanInput) ([]Payment, error) {
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}

	dates, err := Occurrences(in.Params, in.Range, in.Today)
	if err != nil {
		return nil, err
	}

	var targets []Payment
	seen := make(map[Date]bool, len(dates))
	for _, d := range dates {
		due := d
		if in.Calendar != nil {
			due = in.Calendar.ShiftToValid(d)
		}
		// Two occurrences shifted onto the same valid day collapse to
		// one payment; date uniqueness wins over occurrence count.
		if seen[due] {
			continue
		}
		seen[due] = true

		amount, err := AmountForOccurrence(in.Params, due, in.Rate, in.VAT)
		if err != nil {
			return nil, err
		}

		targets = append(targets, Payment{
			ScheduleID:    in.Params.ID,
			Date:          due,
			Amount:        amount,
			RecipientType: in.Params.RecipientType,
			RecipientID:   in.Params.RecipientID,
			RecipientName: in.Params.RecipientName,
			Fictive:       in.Params.Fictive,
		})
	}
	return targets, nil
}

// =============================================================================
// RATE RECALCULATION - Re-derive unpaid amounts after a rate change
// =============================================================================

// AmountUpdate is one amount correction produced by recalculation.
type AmountUpdate struct {
	PaymentID PaymentRecordID
	Amount    decimal.Decimal
}

// PlanRateRecalculation recomputes the amount of every unpaid payment
// on the schedule against the rate's current periods, returning
// updates only where the amount actually changed. Paid payments are
// untouched.
func PlanRateRecalculation(p ScheduleParams, payments []Payment, rate *Rate, vat decimal.Decimal) ([]AmountUpdate, error) {
	var updates []AmountUpdate
	for _, payment := range payments {
		if payment.Paid {
			continue
		}
		amount, err := AmountForOccurrence(p, payment.Date, rate, vat)
		if err != nil {
			return nil, err
		}
		if !amount.Equal(payment.Amount) {
			updates = append(updates, AmountUpdate{PaymentID: payment.ID, Amount: amount})
		}
	}
	return updates, nil
}
