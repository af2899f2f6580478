/*
service.go - Payment orchestration over planners and stores

PURPOSE:
  PaymentService is the surface the rest of the platform calls:
  activity lifecycle hooks invoke SynchronizePayments/GeneratePayments
  on save, scheduled jobs invoke RenewPayments and
  RecalculateOnChangedRate, and export jobs invoke
  CalculatePerPaymentAmount. Every mutating call runs inside one store
  transaction: either all intended changes apply or none do.

CONCURRENCY:
  Different schedules synchronize independently; the same schedule is
  serialized by the store transaction (the whole plan-and-apply runs
  under WithTx), so a double-submitted save cannot race itself into
  duplicate dates.

SEE ALSO:
  - schedule/sync.go: The pure planners this service applies
  - store/sqlite: The production TxStore implementation
*/
package activity

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
)

// PaymentService wires the pure scheduling core to persistence.
type PaymentService struct {
	Store TxStore

	// Now is the clock used for horizon capping and expiry checks.
	// Injectable for tests; defaults to schedule.Today.
	Now func() schedule.Date
}

func NewPaymentService(store TxStore) *PaymentService {
	return &PaymentService{Store: store, Now: schedule.Today}
}

// =============================================================================
// ACTIVITY LIFECYCLE
// =============================================================================

// CreateActivity persists a new activity with its payment schedule and
// generates the initial payment set.
func (s *PaymentService) CreateActivity(ctx context.Context, a Activity, p schedule.ScheduleParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.PaymentID == "" {
		p.PaymentID = uuid.NewString()
	}
	p.ActivityID = a.ID

	return s.Store.WithTx(ctx, func(st Store) error {
		if err := st.SaveActivity(ctx, a); err != nil {
			return err
		}
		if err := st.SaveSchedule(ctx, p); err != nil {
			return err
		}
		return s.synchronize(ctx, st, a, p, a.Range())
	})
}

// SupersedeActivity records a modified version of an existing
// activity. The new schedule inherits the original's stable payment
// id, keeping the chain's payments linkable across modifications.
func (s *PaymentService) SupersedeActivity(ctx context.Context, previousID schedule.ActivityID, a Activity, p schedule.ScheduleParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.ModifiesID = previousID
	p.ActivityID = a.ID

	return s.Store.WithTx(ctx, func(st Store) error {
		previous, err := st.ScheduleByActivity(ctx, previousID)
		if err != nil {
			return err
		}
		p.PaymentID = previous.PaymentID

		if err := st.SaveActivity(ctx, a); err != nil {
			return err
		}
		if err := st.SaveSchedule(ctx, p); err != nil {
			return err
		}
		return s.synchronize(ctx, st, a, p, a.Range())
	})
}

// =============================================================================
// SYNCHRONIZATION ENTRY POINTS
// =============================================================================

// SynchronizePayments reconciles a schedule's payments against a new
// date range. Invoked whenever the owning activity's dates are saved.
func (s *PaymentService) SynchronizePayments(ctx context.Context, id schedule.ScheduleID, rng schedule.DateRange) error {
	return s.Store.WithTx(ctx, func(st Store) error {
		p, err := st.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		a, err := st.GetActivity(ctx, p.ActivityID)
		if err != nil {
			return err
		}
		return s.synchronize(ctx, st, *a, *p, rng)
	})
}

// GeneratePayments creates the initial payment set for a schedule.
// Equivalent to synchronizing against an empty existing set.
func (s *PaymentService) GeneratePayments(ctx context.Context, id schedule.ScheduleID, rng schedule.DateRange) error {
	return s.SynchronizePayments(ctx, id, rng)
}

// RenewPayments extends the generation horizon of open-ended granted
// schedules. Run periodically (near year-end) by the scheduler so
// unbounded schedules always cover through the end of next year.
// Returns the number of schedules extended.
func (s *PaymentService) RenewPayments(ctx context.Context) (int, error) {
	activities, err := s.Store.ListActivities(ctx)
	if err != nil {
		return 0, err
	}

	renewed := 0
	for _, a := range activities {
		if a.Status != StatusGranted || a.End != nil {
			continue
		}
		a := a
		err := s.Store.WithTx(ctx, func(st Store) error {
			p, err := st.ScheduleByActivity(ctx, a.ID)
			if err != nil {
				return err
			}
			return s.synchronize(ctx, st, a, *p, a.Range())
		})
		if err != nil {
			log.Printf("[Renew] activity %s: %v", a.ID, err)
			continue
		}
		renewed++
	}
	return renewed, nil
}

// synchronize plans and applies the diff for one schedule. Draft and
// expected activities fully regenerate; granted activities preserve
// paid history.
func (s *PaymentService) synchronize(ctx context.Context, st Store, a Activity, p schedule.ScheduleParams, rng schedule.DateRange) error {
	existing, err := st.PaymentsBySchedule(ctx, p.ID)
	if err != nil {
		return err
	}
	cal, err := s.calendar(ctx, st)
	if err != nil {
		return err
	}
	rate, err := s.resolveRate(ctx, st, p)
	if err != nil {
		return err
	}
	vat, err := s.vatFactor(ctx, st, a)
	if err != nil {
		return err
	}

	in := schedule.PlanInput{
		Params:   p,
		Range:    rng,
		Today:    s.Now(),
		Existing: existing,
		Calendar: cal,
		Rate:     rate,
		VAT:      vat,
	}

	var diff schedule.Diff
	if a.Regenerates() {
		diff, err = schedule.PlanRegeneration(in)
	} else {
		diff, err = schedule.PlanSynchronization(in)
	}
	if err != nil {
		return err
	}
	return schedule.ApplyDiff(ctx, st, diff)
}

// =============================================================================
// RATE RECALCULATION
// =============================================================================

// RecalculateOnChangedRate scans rates flagged needs_recalculation and
// re-derives amounts for every unpaid payment on schedules referencing
// them. One rate's failure is logged and leaves its flag set for
// retry, without aborting the other rates in the batch. Returns the
// number of rates fully processed.
func (s *PaymentService) RecalculateOnChangedRate(ctx context.Context) (int, error) {
	rates, err := s.Store.ListRatesNeedingRecalculation(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, rate := range rates {
		if err := s.recalculateRate(ctx, rate); err != nil {
			log.Printf("[Recalculate] rate %s: %v (flag left set for retry)", rate.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// recalculateRate reprocesses every dependent schedule in one
// transaction and clears the flag only when all of them succeeded.
func (s *PaymentService) recalculateRate(ctx context.Context, rate *schedule.Rate) error {
	today := s.Now()
	return s.Store.WithTx(ctx, func(st Store) error {
		params, err := st.ListSchedulesByRate(ctx, rate.ID)
		if err != nil {
			return err
		}
		for _, p := range params {
			if p.CostType != schedule.CostGlobalRate {
				continue
			}
			a, err := st.GetActivity(ctx, p.ActivityID)
			if err != nil {
				return err
			}
			if a.Expired(today) {
				continue
			}
			payments, err := st.PaymentsBySchedule(ctx, p.ID)
			if err != nil {
				return err
			}
			vat, err := s.vatFactor(ctx, st, *a)
			if err != nil {
				return err
			}
			updates, err := schedule.PlanRateRecalculation(p, payments, rate, vat)
			if err != nil {
				return err
			}
			if err := st.UpdateAmounts(ctx, updates); err != nil {
				return err
			}
		}
		return st.ClearRecalculationFlag(ctx, rate.ID)
	})
}

// =============================================================================
// READ-ONLY VERIFICATION
// =============================================================================

// PaymentAssessment pairs a persisted payment with its independently
// recalculated amount, for report generators and export jobs.
type PaymentAssessment struct {
	PaymentID  schedule.PaymentRecordID
	Date       schedule.Date
	Recorded   decimal.Decimal
	Calculated decimal.Decimal
	Paid       bool
}

// CalculatePerPaymentAmount recomputes every payment's amount without
// mutating state. A zero vatFactor uses the activity's provider (or
// the no-discount default).
func (s *PaymentService) CalculatePerPaymentAmount(ctx context.Context, id schedule.ScheduleID, vatFactor decimal.Decimal) ([]PaymentAssessment, error) {
	p, err := s.Store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	rate, err := s.resolveRate(ctx, s.Store, *p)
	if err != nil {
		return nil, err
	}
	if vatFactor.IsZero() {
		a, err := s.Store.GetActivity(ctx, p.ActivityID)
		if err != nil {
			return nil, err
		}
		vatFactor, err = s.vatFactor(ctx, s.Store, *a)
		if err != nil {
			return nil, err
		}
	}
	payments, err := s.Store.PaymentsBySchedule(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	out := make([]PaymentAssessment, 0, len(payments))
	for _, payment := range payments {
		amount, err := schedule.AmountForOccurrence(*p, payment.Date, rate, vatFactor)
		if err != nil {
			return nil, err
		}
		out = append(out, PaymentAssessment{
			PaymentID:  payment.ID,
			Date:       payment.Date,
			Recorded:   payment.Amount,
			Calculated: amount,
			Paid:       payment.Paid,
		})
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *PaymentService) calendar(ctx context.Context, st Store) (*schedule.Calendar, error) {
	exclusions, err := st.ListExclusions(ctx)
	if err != nil {
		return nil, err
	}
	dates := make([]schedule.Date, len(exclusions))
	for i, e := range exclusions {
		dates[i] = e.Date
	}
	return schedule.NewCalendar(dates), nil
}

func (s *PaymentService) resolveRate(ctx context.Context, st Store, p schedule.ScheduleParams) (*schedule.Rate, error) {
	if p.CostType != schedule.CostGlobalRate {
		return nil, nil
	}
	return st.GetRate(ctx, p.RateID)
}

func (s *PaymentService) vatFactor(ctx context.Context, st Store, a Activity) (decimal.Decimal, error) {
	if a.ProviderID == "" {
		return schedule.DefaultVATFactor, nil
	}
	provider, err := st.GetProvider(ctx, a.ProviderID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if provider == nil || provider.VATFactor.IsZero() {
		return schedule.DefaultVATFactor, nil
	}
	return provider.VATFactor, nil
}
