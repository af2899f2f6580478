/*
cost.go - Per-occurrence amount calculation

PURPOSE:
  Computes the amount due for one occurrence given the schedule's cost
  model and a VAT/discount factor:

    fixed:       fixed amount x (vat / 100)
    per-unit:    units x price-on-date x (vat / 100)
    global rate: rate-amount-on-date x (vat / 100)

  The VAT factor defaults to 100 (no discount) absent a service
  provider. Amounts are rounded to two decimals (oere).
*/
package schedule

import "github.com/shopspring/decimal"

// DefaultVATFactor is applied when no service provider is attached.
var DefaultVATFactor = decimal.NewFromInt(100)

var hundred = decimal.NewFromInt(100)

// AmountForOccurrence computes the amount due on one occurrence date.
// rate must be the resolved shared rate for CostGlobalRate schedules
// and may be nil otherwise.
func AmountForOccurrence(p ScheduleParams, d Date, rate *Rate, vatFactor decimal.Decimal) (decimal.Decimal, error) {
	if vatFactor.IsZero() {
		vatFactor = DefaultVATFactor
	}

	var base decimal.Decimal
	switch p.CostType {
	case CostFixed:
		if !fixedCostType(p.Type) || p.FixedAmount == nil {
			return decimal.Zero, &InvalidPaymentTypeError{ScheduleID: p.ID, Type: p.Type, CostType: p.CostType}
		}
		base = *p.FixedAmount

	case CostPerUnit:
		if !perUnitType(p.Type) || p.Price == nil {
			return decimal.Zero, &InvalidPaymentTypeError{ScheduleID: p.ID, Type: p.Type, CostType: p.CostType}
		}
		unitPrice, err := p.Price.AmountOn(p.ID, d)
		if err != nil {
			return decimal.Zero, err
		}
		base = p.Units.Mul(unitPrice)

	case CostGlobalRate:
		if !rateCostType(p.Type) || rate == nil {
			return decimal.Zero, &InvalidPaymentTypeError{ScheduleID: p.ID, Type: p.Type, CostType: p.CostType}
		}
		amount, err := rate.AmountOn(d)
		if err != nil {
			return decimal.Zero, err
		}
		base = amount

	default:
		return decimal.Zero, &InvalidPaymentTypeError{ScheduleID: p.ID, Type: p.Type, CostType: p.CostType}
	}

	return base.Mul(vatFactor).Div(hundred).Round(2), nil
}

// fixedCostType: one-time, running and individually priced payments
// carry a configured fixed amount.
func fixedCostType(t PaymentType) bool {
	return t == TypeOneTime || t == TypeRunning || t == TypeIndividual
}

// perUnitType: hour/day/km payments are units times a price table.
func perUnitType(t PaymentType) bool {
	return t == TypePerHour || t == TypePerDay || t == TypePerKm
}

// rateCostType: running and individually granted payments may follow a
// shared rate instead of a fixed amount.
func rateCostType(t PaymentType) bool {
	return t == TypeRunning || t == TypeIndividual
}
