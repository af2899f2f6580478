/*
Package schedule provides the payment scheduling core.

PURPOSE:
  This package contains the pure types and algorithms for generating,
  synchronizing and recalculating payment ledgers for municipal
  social-services activities. Everything in this package is expressed
  as functions over explicit value objects - no persistence imports,
  no ambient settings. The store interfaces in store.go are how the
  outside world applies the results.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleParams: The recurrence/cost configuration for one activity
  - Payment: One concrete, dated, amount-bearing disbursement record
  - Recipient/method/type/frequency/cost enums
  - Type-safe identifiers

DESIGN PRINCIPLES:
  1. Purity: Planners return diffs; stores apply them atomically
  2. Precision: Uses decimal.Decimal for all money (rounded to oere)
  3. History: Paid payments are immutable facts, never touched
  4. Exactly one cost path per schedule (fixed XOR rate XOR per-unit)

SEE ALSO:
  - recurrence.go: Occurrence date generation
  - calendar.go: Weekend/holiday shifting
  - cost.go: Per-occurrence amount calculation
  - sync.go: The diff-producing synchronizer
*/
package schedule

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ScheduleID string
type PaymentRecordID string
type RateID string
type ActivityID string

// =============================================================================
// ENUMS - Recipients, methods, payment types, frequencies, cost types
// =============================================================================

type RecipientType string

const (
	RecipientInternal RecipientType = "internal"
	RecipientPerson   RecipientType = "person"
	RecipientCompany  RecipientType = "company"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodInvoice  PaymentMethod = "invoice"
	MethodSD       PaymentMethod = "sd"
	MethodInternal PaymentMethod = "internal"
)

type PaymentType string

const (
	TypeOneTime    PaymentType = "one_time"
	TypeRunning    PaymentType = "running"
	TypePerHour    PaymentType = "per_hour"
	TypePerDay     PaymentType = "per_day"
	TypePerKm      PaymentType = "per_km"
	TypeIndividual PaymentType = "individual"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyNone    Frequency = "none" // one-time payments
)

// CostType selects which cost-determination path is active.
type CostType string

const (
	CostFixed      CostType = "fixed"       // configured fixed amount
	CostPerUnit    CostType = "per_unit"    // units x time-bounded price
	CostGlobalRate CostType = "global_rate" // shared rate looked up by date
)

// =============================================================================
// SCHEDULE PARAMS - The recurrence/cost configuration for one activity
// =============================================================================

// ScheduleParams is the value-object view of a payment schedule. The
// persistence layer owns the row; planners only ever see this.
type ScheduleParams struct {
	ID ScheduleID

	// PaymentID is stable across a chain of superseded schedules: a
	// modified activity's schedule inherits the original PaymentID.
	PaymentID string

	RecipientType RecipientType
	RecipientID   string
	RecipientName string
	Method        PaymentMethod

	Type      PaymentType
	Frequency Frequency
	CostType  CostType

	// Cost paths. Exactly one must be populated, per CostType.
	FixedAmount *decimal.Decimal // CostFixed
	Units       decimal.Decimal  // CostPerUnit: hours/days/km per occurrence
	Price       *Price           // CostPerUnit: time-bounded per-unit price
	RateID      RateID           // CostGlobalRate

	// DayOfMonth anchors monthly occurrences. 0 means "same day of
	// month as the activity start date", clipped to short months.
	DayOfMonth int

	// OneTimeDate is the explicit due date for one-time payments on
	// activities without start/end dates.
	OneTimeDate *Date

	// Fictive payments are recorded but never disbursed externally.
	Fictive bool

	ActivityID ActivityID
}

// Validate checks the cost-path invariant: exactly one active
// cost-determination path consistent with CostType.
func (p ScheduleParams) Validate() error {
	switch p.CostType {
	case CostFixed:
		if p.FixedAmount == nil {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "fixed cost requires a fixed amount"}
		}
		if p.RateID != "" || p.Price != nil {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "fixed cost excludes rate and price references"}
		}
	case CostPerUnit:
		if p.Price == nil {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "per-unit cost requires a price table"}
		}
		if p.FixedAmount != nil || p.RateID != "" {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "per-unit cost excludes fixed amount and rate reference"}
		}
		if !p.Units.IsPositive() {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "per-unit cost requires positive units"}
		}
	case CostGlobalRate:
		if p.RateID == "" {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "rate cost requires a rate reference"}
		}
		if p.FixedAmount != nil || p.Price != nil {
			return &InvalidScheduleError{ScheduleID: p.ID, Reason: "rate cost excludes fixed amount and price table"}
		}
	default:
		return &InvalidScheduleError{ScheduleID: p.ID, Reason: "unknown cost type: " + string(p.CostType)}
	}

	if p.Type == TypeOneTime && p.Frequency != FrequencyNone {
		return &InvalidScheduleError{ScheduleID: p.ID, Reason: "one-time payments carry no frequency"}
	}
	return nil
}

// =============================================================================
// PAYMENT - One concrete disbursement record
// =============================================================================

// Payment is a single dated amount owed to a recipient. The recipient
// fields are snapshots captured at generation time so historical
// correctness survives later recipient changes on the schedule.
type Payment struct {
	ID         PaymentRecordID
	ScheduleID ScheduleID

	Date   Date // due date, already calendar-shifted
	Amount decimal.Decimal

	Paid       bool
	PaidDate   *Date
	PaidAmount *decimal.Decimal // may differ from Amount

	RecipientType RecipientType
	RecipientID   string
	RecipientName string

	Fictive bool
}

// =============================================================================
// DATE RANGE
// =============================================================================

// DateRange is an activity's effective period. A nil End means the
// schedule is open-ended; callers cap generation via Horizon().
type DateRange struct {
	Start Date
	End   *Date
}

// Horizon resolves the generation end: the range's own end if bounded,
// otherwise December 31 of the year after today's. Open-ended running
// schedules are thereby bounded to a finite window that a periodic
// renewal job extends forward.
func (r DateRange) Horizon(today Date) Date {
	if r.End != nil {
		return *r.End
	}
	return EndOfYear(today.Year() + 1)
}
