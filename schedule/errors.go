/*
errors.go - Centralized error types for the scheduling core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (service layer, API) classify with the helpers below and
  translate into transport-appropriate responses.

ERROR CATEGORIES:
  1. Configuration errors - bad frequency, payment type, cost path
  2. Data-integrity errors - rate coverage gaps
  3. Lookup errors - missing schedules, rates, activities

USAGE:
  if errors.Is(err, schedule.ErrRateNotFoundForDate) {
      var gap *schedule.RateNotFoundForDateError
      errors.As(err, &gap)
      // gap.RateID, gap.Date
  }
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidFrequency is returned when an unrecognized payment
	// frequency is encountered during generation or synchronization.
	// The whole operation aborts; no partial writes.
	ErrInvalidFrequency = errors.New("invalid payment frequency")

	// ErrInvalidPaymentType is returned when a payment type / cost
	// type combination is unrecognized during cost calculation.
	ErrInvalidPaymentType = errors.New("invalid payment type")

	// ErrRateNotFoundForDate is returned when a rate lookup finds no
	// period valid at the requested date. This is a data-integrity
	// condition and is reported, never silently defaulted to zero.
	ErrRateNotFoundForDate = errors.New("no rate period valid at date")

	// ErrInvalidSchedule is returned when the cost-path invariant is
	// violated (none or more than one cost path populated).
	ErrInvalidSchedule = errors.New("invalid payment schedule")

	// ErrScheduleNotFound is returned when a referenced schedule doesn't exist.
	ErrScheduleNotFound = errors.New("payment schedule not found")

	// ErrRateNotFound is returned when a referenced rate doesn't exist.
	ErrRateNotFound = errors.New("rate not found")

	// ErrActivityNotFound is returned when a referenced activity doesn't exist.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrConcurrentModification is returned when the unpaid-payment set
	// changed between planning and commit (double-submitted save).
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidFrequencyError reports the offending frequency value.
type InvalidFrequencyError struct {
	ScheduleID ScheduleID
	Frequency  Frequency
}

func (e *InvalidFrequencyError) Error() string {
	return fmt.Sprintf("schedule %s: unrecognized frequency %q", e.ScheduleID, e.Frequency)
}

func (e *InvalidFrequencyError) Unwrap() error { return ErrInvalidFrequency }

// InvalidPaymentTypeError reports the offending type/cost combination.
type InvalidPaymentTypeError struct {
	ScheduleID ScheduleID
	Type       PaymentType
	CostType   CostType
}

func (e *InvalidPaymentTypeError) Error() string {
	return fmt.Sprintf("schedule %s: unrecognized payment type %q with cost type %q",
		e.ScheduleID, e.Type, e.CostType)
}

func (e *InvalidPaymentTypeError) Unwrap() error { return ErrInvalidPaymentType }

// RateNotFoundForDateError reports a coverage gap in a rate partition.
type RateNotFoundForDateError struct {
	RateID RateID
	Date   Date
}

func (e *RateNotFoundForDateError) Error() string {
	return fmt.Sprintf("rate %s has no period valid at %s", e.RateID, e.Date)
}

func (e *RateNotFoundForDateError) Unwrap() error { return ErrRateNotFoundForDate }

// InvalidScheduleError reports a cost-path invariant violation.
type InvalidScheduleError struct {
	ScheduleID ScheduleID
	Reason     string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("schedule %s: %s", e.ScheduleID, e.Reason)
}

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid configuration.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidFrequency) ||
		errors.Is(err, ErrInvalidPaymentType) ||
		errors.Is(err, ErrInvalidSchedule)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrRateNotFound) ||
		errors.Is(err, ErrActivityNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
