/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Activity:
    ActivityDTO, CreateActivityRequest, SupersedeActivityRequest

  Schedule:
    Schedule definitions reuse factory.ScheduleJSON directly

  Payment:
    PaymentDTO, MarkPaidRequest

  Rate:
    RateDTO, CreateRateRequest, SetRateAmountRequest

  Exclusion:
    ExclusionDTO, AddExclusionsRequest, DefaultExclusionsRequest

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/schedule.go: ScheduleJSON type
*/
package api

import (
	"github.com/munipay/payment-engine/activity"
	"github.com/munipay/payment-engine/factory"
	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ActivityDTO represents a case activity in API responses.
type ActivityDTO struct {
	ID              string `json:"id"`
	AppropriationID string `json:"appropriation_id"`
	Status          string `json:"status"`
	Start           string `json:"start"`
	End             string `json:"end,omitempty"`
	ModifiesID      string `json:"modifies_id,omitempty"`
	ProviderID      string `json:"provider_id,omitempty"`
}

// CreateActivityRequest creates an activity together with its payment
// schedule. The schedule's activity_id is filled in from the activity.
type CreateActivityRequest struct {
	Activity ActivityDTO          `json:"activity"`
	Schedule factory.ScheduleJSON `json:"schedule"`
}

// SupersedeActivityRequest replaces an existing activity with a new
// version. The previous activity's ID comes from the URL.
type SupersedeActivityRequest struct {
	Activity ActivityDTO          `json:"activity"`
	Schedule factory.ScheduleJSON `json:"schedule"`
}

// PaymentDTO represents a single payment in API responses.
type PaymentDTO struct {
	ID            string `json:"id"`
	ScheduleID    string `json:"schedule_id"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Paid          bool   `json:"paid"`
	PaidDate      string `json:"paid_date,omitempty"`
	PaidAmount    string `json:"paid_amount,omitempty"`
	RecipientType string `json:"recipient_type"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	Fictive       bool   `json:"fictive,omitempty"`
}

// MarkPaidRequest records a disbursement against a payment.
type MarkPaidRequest struct {
	PaidDate   string `json:"paid_date"`
	PaidAmount string `json:"paid_amount"`
}

// SynchronizeRequest bounds the generation window. An empty end means
// the window is open-ended and capped by the renewal horizon.
type SynchronizeRequest struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// RateDTO represents a shared rate in API responses.
type RateDTO struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	Periods            []factory.RatePeriodJSON `json:"periods"`
	NeedsRecalculation bool                     `json:"needs_recalculation"`
}

// CreateRateRequest creates a rate with its initial validity periods.
type CreateRateRequest struct {
	ID      string                   `json:"id"`
	Name    string                   `json:"name"`
	Periods []factory.RatePeriodJSON `json:"periods"`
}

// SetRateAmountRequest changes a rate's amount from a given date.
type SetRateAmountRequest struct {
	Amount        string `json:"amount"`
	EffectiveFrom string `json:"effective_from"`
}

// ExclusionDTO represents a payment date exclusion.
type ExclusionDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// AddExclusionsRequest adds explicit exclusion dates.
type AddExclusionsRequest struct {
	Exclusions []ExclusionDTO `json:"exclusions"`
}

// DefaultExclusionsRequest loads the computed holiday exclusions
// starting at the given year.
type DefaultExclusionsRequest struct {
	FromYear int `json:"from_year"`
}

// ProviderDTO represents a service provider.
type ProviderDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VATFactor string `json:"vat_factor"`
}

// AssessmentDTO compares a recorded payment amount with the amount the
// current configuration would produce.
type AssessmentDTO struct {
	PaymentID  string `json:"payment_id"`
	Date       string `json:"date"`
	Recorded   string `json:"recorded"`
	Calculated string `json:"calculated"`
	Paid       bool   `json:"paid"`
}

// JobResultDTO reports how many items a background-style job touched.
type JobResultDTO struct {
	Processed int `json:"processed"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toActivityDTO(a activity.Activity) ActivityDTO {
	dto := ActivityDTO{
		ID:              string(a.ID),
		AppropriationID: a.AppropriationID,
		Status:          string(a.Status),
		Start:           a.Start.String(),
		ModifiesID:      string(a.ModifiesID),
		ProviderID:      a.ProviderID,
	}
	if a.End != nil {
		dto.End = a.End.String()
	}
	return dto
}

func toPaymentDTO(p schedule.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:            string(p.ID),
		ScheduleID:    string(p.ScheduleID),
		Date:          p.Date.String(),
		Amount:        p.Amount.String(),
		Paid:          p.Paid,
		RecipientType: string(p.RecipientType),
		RecipientID:   p.RecipientID,
		RecipientName: p.RecipientName,
		Fictive:       p.Fictive,
	}
	if p.PaidDate != nil {
		dto.PaidDate = p.PaidDate.String()
	}
	if p.PaidAmount != nil {
		dto.PaidAmount = p.PaidAmount.String()
	}
	return dto
}

func toPaymentDTOs(payments []schedule.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toRateDTO(r *schedule.Rate) RateDTO {
	dto := RateDTO{
		ID:                 string(r.ID),
		Name:               r.Name,
		NeedsRecalculation: r.NeedsRecalculation,
	}
	for _, p := range r.Periods {
		pj := factory.RatePeriodJSON{Start: p.Start.String(), Amount: p.Amount.String()}
		if p.End != nil {
			pj.End = p.End.String()
		}
		dto.Periods = append(dto.Periods, pj)
	}
	return dto
}

func toScheduleJSON(p *schedule.ScheduleParams) factory.ScheduleJSON {
	sj := factory.ScheduleJSON{
		ID:        string(p.ID),
		PaymentID: p.PaymentID,
		Recipient: factory.RecipientJSON{
			Type: string(p.RecipientType),
			ID:   p.RecipientID,
			Name: p.RecipientName,
		},
		Method:      string(p.Method),
		PaymentType: string(p.Type),
		Frequency:   string(p.Frequency),
		DayOfMonth:  p.DayOfMonth,
		Fictive:     p.Fictive,
		ActivityID:  string(p.ActivityID),
	}
	if p.OneTimeDate != nil {
		sj.OneTimeDate = p.OneTimeDate.String()
	}

	sj.Cost.Type = string(p.CostType)
	switch p.CostType {
	case schedule.CostFixed:
		if p.FixedAmount != nil {
			sj.Cost.Amount = p.FixedAmount.String()
		}
	case schedule.CostPerUnit:
		sj.Cost.Units = p.Units.String()
		if p.Price != nil {
			for _, period := range p.Price.Periods {
				pj := factory.RatePeriodJSON{Start: period.Start.String(), Amount: period.Amount.String()}
				if period.End != nil {
					pj.End = period.End.String()
				}
				sj.Cost.Prices = append(sj.Cost.Prices, pj)
			}
		}
	case schedule.CostGlobalRate:
		sj.Cost.RateID = string(p.RateID)
	}
	return sj
}

func toAssessmentDTOs(lines []activity.PaymentAssessment) []AssessmentDTO {
	dtos := make([]AssessmentDTO, len(lines))
	for i, l := range lines {
		dtos[i] = AssessmentDTO{
			PaymentID:  string(l.PaymentID),
			Date:       l.Date.String(),
			Recorded:   l.Recorded.String(),
			Calculated: l.Calculated.String(),
			Paid:       l.Paid,
		}
	}
	return dtos
}
