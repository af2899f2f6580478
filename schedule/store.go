/*
store.go - Persistence interfaces for the scheduling core

PURPOSE:
  Defines the interface between the pure planners and the database.
  Different implementations can use SQLite, PostgreSQL or in-memory
  storage.

PAID-PAYMENT CONTRACT:
  DeletePayments and UpdateAmounts refuse to touch paid payments.
  Implementations enforce this at the query level (WHERE paid = 0) so
  a buggy caller cannot rewrite history.

ATOMIC DIFFS:
  A synchronization diff (deletes + inserts) is applied inside
  WithTx: either the whole diff commits or none of it does, so an
  error mid-operation never leaves a half-synchronized ledger.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - schedule/store/memory.go: In-memory for testing

SEE ALSO:
  - sync.go: Produces the diffs these interfaces apply
  - activity/service.go: Orchestrates planners and stores
*/
package schedule

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// ScheduleStore persists payment schedule configurations.
type ScheduleStore interface {
	// GetSchedule returns the schedule or ErrScheduleNotFound.
	GetSchedule(ctx context.Context, id ScheduleID) (*ScheduleParams, error)

	// SaveSchedule inserts or replaces a schedule configuration.
	SaveSchedule(ctx context.Context, p ScheduleParams) error

	// ListSchedulesByRate returns every schedule referencing the rate.
	ListSchedulesByRate(ctx context.Context, rateID RateID) ([]ScheduleParams, error)
}

// PaymentStore persists the payment records of schedules.
type PaymentStore interface {
	// PaymentsBySchedule returns all payments for a schedule, ordered by date.
	PaymentsBySchedule(ctx context.Context, id ScheduleID) ([]Payment, error)

	// InsertPayments persists new payment records. Records without an
	// ID get one assigned.
	InsertPayments(ctx context.Context, payments []Payment) error

	// DeletePayments removes unpaid payments by ID. Paid payments are
	// silently skipped; they are immutable history.
	DeletePayments(ctx context.Context, ids []PaymentRecordID) error

	// UpdateAmounts rewrites amounts on unpaid payments.
	UpdateAmounts(ctx context.Context, updates []AmountUpdate) error

	// MarkPaid records a disbursement (normally done by the external
	// payment batch). The paid amount may differ from the due amount.
	MarkPaid(ctx context.Context, id PaymentRecordID, paidDate Date, paidAmount decimal.Decimal) error
}

// RateStore persists shared rates and their period partitions.
type RateStore interface {
	// GetRate returns the rate with its periods or ErrRateNotFound.
	GetRate(ctx context.Context, id RateID) (*Rate, error)

	// SaveRate inserts or replaces a rate and its periods.
	SaveRate(ctx context.Context, r *Rate) error

	// ListRatesNeedingRecalculation returns rates with the flag set.
	ListRatesNeedingRecalculation(ctx context.Context) ([]*Rate, error)

	// ClearRecalculationFlag resets needs_recalculation after all
	// dependent schedules were successfully reprocessed.
	ClearRecalculationFlag(ctx context.Context, id RateID) error
}

// ExclusionStore persists the precomputed exclusion dates.
type ExclusionStore interface {
	// ListExclusions returns every persisted exclusion date.
	ListExclusions(ctx context.Context) ([]Exclusion, error)

	// SaveExclusions persists exclusion dates, ignoring duplicates.
	SaveExclusions(ctx context.Context, exclusions []Exclusion) error
}

// Store bundles everything the service layer needs.
type Store interface {
	ScheduleStore
	PaymentStore
	RateStore
	ExclusionStore
}

// TxStore wraps Store with transaction support. Synchronization and
// recalculation run inside WithTx so partial writes cannot happen.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// DIFF APPLICATION
// =============================================================================

// ApplyDiff applies a synchronization diff: deletes first, then
// inserts. Run inside WithTx for atomicity.
func ApplyDiff(ctx context.Context, s PaymentStore, d Diff) error {
	if len(d.Deletes) > 0 {
		if err := s.DeletePayments(ctx, d.Deletes); err != nil {
			return err
		}
	}
	if len(d.Inserts) > 0 {
		if err := s.InsertPayments(ctx, d.Inserts); err != nil {
			return err
		}
	}
	return nil
}
