// Package activity implements the case-management layer over the
// scheduling core: activities with their supersedes chains, service
// providers, and the payment service that wires planners to stores.
package activity

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// ACTIVITY - A granted or expected service bounded by start/end dates
// =============================================================================

type Status string

const (
	// StatusDraft: being edited; nothing is paid, saves fully
	// regenerate the payment set.
	StatusDraft Status = "draft"

	// StatusExpected: awaiting a grant decision; treated like draft
	// for payment generation.
	StatusExpected Status = "expected"

	// StatusGranted: legally granted; saves synchronize, preserving
	// paid history.
	StatusGranted Status = "granted"
)

// Activity is one concrete service within an appropriation. A modified
// activity supersedes its predecessor via ModifiesID; the chain shares
// one stable payment id across schedules.
type Activity struct {
	ID              schedule.ActivityID
	AppropriationID string
	Status          Status

	Start schedule.Date
	End   *schedule.Date // nil = open-ended

	// ModifiesID points at the activity this one supersedes, forming
	// a linked modification history.
	ModifiesID schedule.ActivityID

	// ProviderID resolves the VAT factor applied to payment amounts.
	ProviderID string
}

// Range returns the activity's effective date range.
func (a Activity) Range() schedule.DateRange {
	return schedule.DateRange{Start: a.Start, End: a.End}
}

// Expired reports whether the activity ended before today. Expired
// activities are skipped by rate recalculation.
func (a Activity) Expired(today schedule.Date) bool {
	return a.End != nil && a.End.Before(today)
}

// Regenerates reports whether a save fully regenerates payments (drop
// and recreate) rather than synchronizing against paid history.
func (a Activity) Regenerates() bool {
	return a.Status == StatusDraft || a.Status == StatusExpected
}

// =============================================================================
// SERVICE PROVIDER - Source of the VAT/discount factor
// =============================================================================

type ServiceProvider struct {
	ID        string
	Name      string
	VATFactor decimal.Decimal // percent; 100 = no discount
}

// =============================================================================
// STORE - Everything the payment service needs
// =============================================================================

// Store extends the scheduling core's store with activity and provider
// persistence.
type Store interface {
	schedule.Store

	GetActivity(ctx context.Context, id schedule.ActivityID) (*Activity, error)
	SaveActivity(ctx context.Context, a Activity) error
	ListActivities(ctx context.Context) ([]Activity, error)

	// ScheduleByActivity returns the activity's payment schedule or
	// schedule.ErrScheduleNotFound.
	ScheduleByActivity(ctx context.Context, id schedule.ActivityID) (*schedule.ScheduleParams, error)

	GetProvider(ctx context.Context, id string) (*ServiceProvider, error)
	SaveProvider(ctx context.Context, p ServiceProvider) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
