/*
Package factory provides JSON to Go schedule conversion.

PURPOSE:
  Converts JSON schedule definitions into schedule.ScheduleParams.
  This enables payment-plan configuration without code changes -
  caseworker tooling and the admin API submit JSON, and the factory
  builds validated value objects.

JSON SCHEMA:
  {
    "id": "sched-001",
    "recipient": {"type": "person", "id": "0205891234", "name": "Jens Jensen"},
    "method": "sd",
    "payment_type": "running",
    "frequency": "monthly",
    "day_of_month": 1,
    "cost": {"type": "fixed", "amount": "595.00"},
    "fictive": false,
    "activity_id": "act-001"
  }

  Cost variants:
    {"type": "fixed", "amount": "595.00"}
    {"type": "per_unit", "units": "3", "prices": [{"start": "2020-01-01", "amount": "100.00"}]}
    {"type": "global_rate", "rate_id": "per-diem-2020"}

KEY FEATURES:
  - Validates enum values and the one-cost-path invariant
  - Sets sensible defaults (method invoice, frequency none for one-time)
  - Decimal amounts parsed from strings, never floats

SEE ALSO:
  - schedule/types.go: ScheduleParams and Validate()
  - api/handlers.go: Uses this factory for schedule creation
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the JSON representation of a payment schedule.
type ScheduleJSON struct {
	ID          string        `json:"id"`
	PaymentID   string        `json:"payment_id,omitempty"`
	Recipient   RecipientJSON `json:"recipient"`
	Method      string        `json:"method,omitempty"`
	PaymentType string        `json:"payment_type"`
	Frequency   string        `json:"frequency,omitempty"`
	DayOfMonth  int           `json:"day_of_month,omitempty"`
	OneTimeDate string        `json:"one_time_date,omitempty"`
	Cost        CostJSON      `json:"cost"`
	Fictive     bool          `json:"fictive,omitempty"`
	ActivityID  string        `json:"activity_id,omitempty"`
}

type RecipientJSON struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CostJSON struct {
	Type   string          `json:"type"`
	Amount string          `json:"amount,omitempty"`  // fixed
	Units  string          `json:"units,omitempty"`   // per_unit
	Prices []RatePeriodJSON `json:"prices,omitempty"` // per_unit
	RateID string          `json:"rate_id,omitempty"` // global_rate
}

type RatePeriodJSON struct {
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	Amount string `json:"amount"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule converts a JSON schedule definition into validated
// ScheduleParams.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (*schedule.ScheduleParams, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("invalid schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON builds validated ScheduleParams from the decoded form.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (*schedule.ScheduleParams, error) {
	if sj.ID == "" {
		return nil, fmt.Errorf("schedule id is required")
	}

	paymentType, err := parsePaymentType(sj.PaymentType)
	if err != nil {
		return nil, err
	}

	p := &schedule.ScheduleParams{
		ID:            schedule.ScheduleID(sj.ID),
		PaymentID:     sj.PaymentID,
		RecipientType: schedule.RecipientType(sj.Recipient.Type),
		RecipientID:   sj.Recipient.ID,
		RecipientName: sj.Recipient.Name,
		Method:        schedule.PaymentMethod(sj.Method),
		Type:          paymentType,
		DayOfMonth:    sj.DayOfMonth,
		Fictive:       sj.Fictive,
		ActivityID:    schedule.ActivityID(sj.ActivityID),
	}

	// Defaults
	if p.Method == "" {
		p.Method = schedule.MethodInvoice
	}
	switch p.RecipientType {
	case schedule.RecipientInternal, schedule.RecipientPerson, schedule.RecipientCompany:
	default:
		return nil, fmt.Errorf("unknown recipient type: %q", sj.Recipient.Type)
	}

	if paymentType == schedule.TypeOneTime {
		p.Frequency = schedule.FrequencyNone
	} else {
		p.Frequency, err = parseFrequency(sj.Frequency)
		if err != nil {
			return nil, err
		}
	}

	if sj.OneTimeDate != "" {
		d, err := schedule.ParseDate(sj.OneTimeDate)
		if err != nil {
			return nil, fmt.Errorf("invalid one_time_date: %w", err)
		}
		p.OneTimeDate = &d
	}

	if err := f.applyCost(p, sj.Cost); err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (f *ScheduleFactory) applyCost(p *schedule.ScheduleParams, cj CostJSON) error {
	switch cj.Type {
	case string(schedule.CostFixed):
		p.CostType = schedule.CostFixed
		amount, err := decimal.NewFromString(cj.Amount)
		if err != nil {
			return fmt.Errorf("invalid fixed amount %q: %w", cj.Amount, err)
		}
		p.FixedAmount = &amount

	case string(schedule.CostPerUnit):
		p.CostType = schedule.CostPerUnit
		units, err := decimal.NewFromString(cj.Units)
		if err != nil {
			return fmt.Errorf("invalid units %q: %w", cj.Units, err)
		}
		p.Units = units
		periods, err := ParsePeriods(cj.Prices)
		if err != nil {
			return err
		}
		p.Price = &schedule.Price{Periods: periods}

	case string(schedule.CostGlobalRate):
		p.CostType = schedule.CostGlobalRate
		p.RateID = schedule.RateID(cj.RateID)

	default:
		return fmt.Errorf("unknown cost type: %q", cj.Type)
	}
	return nil
}

// ParsePeriods converts JSON rate periods into a validated partition.
func ParsePeriods(pjs []RatePeriodJSON) (schedule.Periods, error) {
	var periods schedule.Periods
	for i, pj := range pjs {
		start, err := schedule.ParseDate(pj.Start)
		if err != nil {
			return nil, fmt.Errorf("period %d: invalid start: %w", i, err)
		}
		amount, err := decimal.NewFromString(pj.Amount)
		if err != nil {
			return nil, fmt.Errorf("period %d: invalid amount %q: %w", i, pj.Amount, err)
		}
		period := schedule.RatePeriod{Start: start, Amount: amount}
		if pj.End != "" {
			end, err := schedule.ParseDate(pj.End)
			if err != nil {
				return nil, fmt.Errorf("period %d: invalid end: %w", i, err)
			}
			period.End = &end
		}
		periods = append(periods, period)
	}
	if err := periods.Validate(); err != nil {
		return nil, err
	}
	return periods, nil
}

func parsePaymentType(s string) (schedule.PaymentType, error) {
	switch t := schedule.PaymentType(s); t {
	case schedule.TypeOneTime, schedule.TypeRunning, schedule.TypePerHour,
		schedule.TypePerDay, schedule.TypePerKm, schedule.TypeIndividual:
		return t, nil
	default:
		return "", fmt.Errorf("unknown payment type: %q", s)
	}
}

func parseFrequency(s string) (schedule.Frequency, error) {
	switch f := schedule.Frequency(s); f {
	case schedule.FrequencyDaily, schedule.FrequencyWeekly, schedule.FrequencyMonthly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown frequency: %q", s)
	}
}
