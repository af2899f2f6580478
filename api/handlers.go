/*
handlers.go - HTTP API handlers for the payment scheduling engine

PURPOSE:
  Exposes the payment engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Activities:
    GET    /api/activities                   List all activities
    POST   /api/activities                   Create activity + schedule
    GET    /api/activities/{id}              Get activity details
    POST   /api/activities/{id}/supersede    Replace with a new version
    GET    /api/activities/{id}/current      Latest version in the chain
    GET    /api/activities/{id}/history      Full supersedes chain
    GET    /api/activities/{id}/schedule     The activity's schedule

  Schedules:
    GET    /api/schedules/{id}               Get schedule configuration
    GET    /api/schedules/{id}/payments      List payments
    POST   /api/schedules/{id}/synchronize   Reconcile payments to config
    POST   /api/schedules/{id}/generate     Regenerate unpaid payments
    GET    /api/schedules/{id}/assessments   Recorded vs recalculated
    GET    /api/schedules/{id}/summary       Granted/expected per year

  Payments:
    POST   /api/payments/{id}/paid           Record a disbursement

  Rates:
    POST   /api/rates                        Create rate with periods
    GET    /api/rates/{id}                   Get rate
    POST   /api/rates/{id}/amount            Change amount from a date
    GET    /api/rates/flagged                Rates awaiting recalculation

  Exclusions:
    GET    /api/exclusions                   List exclusion dates
    POST   /api/exclusions                   Add explicit exclusions
    POST   /api/exclusions/defaults          Load computed holidays

  Admin:
    POST   /api/admin/recalculate            Recalculate flagged rates
    POST   /api/admin/renew                  Extend open-ended schedules

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/munipay/payment-engine/activity"
	"github.com/munipay/payment-engine/export"
	"github.com/munipay/payment-engine/factory"
	"github.com/munipay/payment-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   activity.TxStore
	Service *activity.PaymentService
	Factory *factory.ScheduleFactory
}

// NewHandler creates a new handler with the given store.
func NewHandler(store activity.TxStore) *Handler {
	return &Handler{
		Store:   store,
		Service: activity.NewPaymentService(store),
		Factory: factory.NewScheduleFactory(),
	}
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// ListActivities returns all activities.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.Store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activities", err)
		return
	}

	dtos := make([]ActivityDTO, len(activities))
	for i, a := range activities {
		dtos[i] = toActivityDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActivity returns a single activity.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	id := schedule.ActivityID(chi.URLParam(r, "id"))

	a, err := h.Store.GetActivity(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get activity", err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(*a))
}

// CreateActivity creates an activity together with its payment schedule
// and generates the initial payments.
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, p, err := h.parseActivityAndSchedule(req.Activity, req.Schedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity", err)
		return
	}

	if err := h.Service.CreateActivity(r.Context(), *a, *p); err != nil {
		writeDomainError(w, "Failed to create activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(*a))
}

// SupersedeActivity replaces an activity with a new version. The new
// schedule inherits the previous schedule's stable payment ID.
func (h *Handler) SupersedeActivity(w http.ResponseWriter, r *http.Request) {
	previousID := schedule.ActivityID(chi.URLParam(r, "id"))

	var req SupersedeActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	a, p, err := h.parseActivityAndSchedule(req.Activity, req.Schedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid activity", err)
		return
	}

	if err := h.Service.SupersedeActivity(r.Context(), previousID, *a, *p); err != nil {
		writeDomainError(w, "Failed to supersede activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(*a))
}

// GetCurrentActivity walks the supersedes chain forward and returns the
// latest version.
func (h *Handler) GetCurrentActivity(w http.ResponseWriter, r *http.Request) {
	id := schedule.ActivityID(chi.URLParam(r, "id"))
	ctx := r.Context()

	activities, err := h.Store.ListActivities(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activities", err)
		return
	}

	chain := activity.NewChain(activities)
	current, ok := chain.Current(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Activity not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toActivityDTO(current))
}

// GetActivityHistory returns the activity's full chain, most recent
// version first.
func (h *Handler) GetActivityHistory(w http.ResponseWriter, r *http.Request) {
	id := schedule.ActivityID(chi.URLParam(r, "id"))
	ctx := r.Context()

	activities, err := h.Store.ListActivities(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list activities", err)
		return
	}

	chain := activity.NewChain(activities)
	history := chain.History(id)
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "Activity not found", nil)
		return
	}

	dtos := make([]ActivityDTO, len(history))
	for i, a := range history {
		dtos[i] = toActivityDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActivitySchedule returns the schedule belonging to an activity.
func (h *Handler) GetActivitySchedule(w http.ResponseWriter, r *http.Request) {
	id := schedule.ActivityID(chi.URLParam(r, "id"))

	p, err := h.Store.ScheduleByActivity(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleJSON(p))
}

func (h *Handler) parseActivityAndSchedule(adto ActivityDTO, sj factory.ScheduleJSON) (*activity.Activity, *schedule.ScheduleParams, error) {
	start, err := schedule.ParseDate(adto.Start)
	if err != nil {
		return nil, nil, err
	}

	a := activity.Activity{
		ID:              schedule.ActivityID(adto.ID),
		AppropriationID: adto.AppropriationID,
		Status:          activity.Status(adto.Status),
		Start:           start,
		ModifiesID:      schedule.ActivityID(adto.ModifiesID),
		ProviderID:      adto.ProviderID,
	}
	if adto.End != "" {
		end, err := schedule.ParseDate(adto.End)
		if err != nil {
			return nil, nil, err
		}
		a.End = &end
	}

	sj.ActivityID = adto.ID
	p, err := h.Factory.FromJSON(sj)
	if err != nil {
		return nil, nil, err
	}
	return &a, p, nil
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns a schedule's configuration.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id := schedule.ScheduleID(chi.URLParam(r, "id"))

	p, err := h.Store.GetSchedule(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleJSON(p))
}

// GetPayments returns all payments of a schedule, ordered by date.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	id := schedule.ScheduleID(chi.URLParam(r, "id"))

	payments, err := h.Store.PaymentsBySchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// SynchronizePayments reconciles the schedule's payments with its
// current configuration, preserving paid payments.
func (h *Handler) SynchronizePayments(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.Service.SynchronizePayments)
}

// GeneratePayments deletes every unpaid payment and rebuilds the set
// from scratch.
func (h *Handler) GeneratePayments(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.Service.GeneratePayments)
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id schedule.ScheduleID, rng schedule.DateRange) error) {
	id := schedule.ScheduleID(chi.URLParam(r, "id"))

	var req SynchronizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rng, err := parseRange(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	if err := op(r.Context(), id, rng); err != nil {
		writeDomainError(w, "Failed to synchronize payments", err)
		return
	}

	payments, err := h.Store.PaymentsBySchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// GetAssessments recomputes every payment's amount from the current
// configuration and returns it next to the recorded amount.
func (h *Handler) GetAssessments(w http.ResponseWriter, r *http.Request) {
	id := schedule.ScheduleID(chi.URLParam(r, "id"))

	vat := schedule.DefaultVATFactor
	if v := r.URL.Query().Get("vat_factor"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid vat_factor", err)
			return
		}
		vat = parsed
	}

	lines, err := h.Service.CalculatePerPaymentAmount(r.Context(), id, vat)
	if err != nil {
		writeDomainError(w, "Failed to assess payments", err)
		return
	}

	report := export.BuildScheduleReport(id, lines)
	writeJSON(w, http.StatusOK, map[string]any{
		"schedule_id":      string(report.ScheduleID),
		"lines":            toAssessmentDTOs(report.Lines),
		"total_recorded":   report.TotalRecorded.String(),
		"total_calculated": report.TotalCalculated.String(),
		"total_paid":       report.TotalPaid.String(),
		"paid_count":       report.PaidCount,
		"unpaid_count":     report.UnpaidCount,
		"mismatches":       report.Mismatches,
	})
}

// GetYearlySummary returns granted and expected totals per calendar
// year for a schedule's payments.
func (h *Handler) GetYearlySummary(w http.ResponseWriter, r *http.Request) {
	id := schedule.ScheduleID(chi.URLParam(r, "id"))

	payments, err := h.Store.PaymentsBySchedule(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	totals := export.YearlySummary(payments)
	type yearDTO struct {
		Year     int    `json:"year"`
		Granted  string `json:"granted"`
		Expected string `json:"expected"`
		Payments int    `json:"payments"`
	}
	dtos := make([]yearDTO, len(totals))
	for i, t := range totals {
		dtos[i] = yearDTO{
			Year:     t.Year,
			Granted:  t.Granted.String(),
			Expected: t.Expected.String(),
			Payments: t.Payments,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// MarkPaid records a disbursement. Paid payments become immutable.
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id := schedule.PaymentRecordID(chi.URLParam(r, "id"))

	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paidDate, err := schedule.ParseDate(req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_date format (use YYYY-MM-DD)", err)
		return
	}
	paidAmount, err := decimal.NewFromString(req.PaidAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_amount", err)
		return
	}

	if err := h.Store.MarkPaid(r.Context(), id, paidDate, paidAmount); err != nil {
		writeDomainError(w, "Failed to mark payment paid", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// CreateRate creates a rate with its initial validity periods.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Rate id is required", nil)
		return
	}

	periods, err := factory.ParsePeriods(req.Periods)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate periods", err)
		return
	}

	rate := &schedule.Rate{
		ID:      schedule.RateID(req.ID),
		Name:    req.Name,
		Periods: periods,
	}
	if err := h.Store.SaveRate(r.Context(), rate); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateDTO(rate))
}

// GetRate returns a rate with its validity periods.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	id := schedule.RateID(chi.URLParam(r, "id"))

	rate, err := h.Store.GetRate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate))
}

// SetRateAmount changes the rate's amount from a given date and flags
// the rate for recalculation. Dependent payments are updated later by
// the recalculation job, not inline.
func (h *Handler) SetRateAmount(w http.ResponseWriter, r *http.Request) {
	id := schedule.RateID(chi.URLParam(r, "id"))

	var req SetRateAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	from, err := schedule.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from format (use YYYY-MM-DD)", err)
		return
	}

	ctx := r.Context()
	rate, err := h.Store.GetRate(ctx, id)
	if err != nil {
		writeDomainError(w, "Failed to get rate", err)
		return
	}

	rate.SetAmount(amount, from)
	if err := h.Store.SaveRate(ctx, rate); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate))
}

// ListFlaggedRates returns rates waiting for payment recalculation.
func (h *Handler) ListFlaggedRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Store.ListRatesNeedingRecalculation(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rates", err)
		return
	}

	dtos := make([]RateDTO, len(rates))
	for i, rate := range rates {
		dtos[i] = toRateDTO(rate)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EXCLUSION HANDLERS
// =============================================================================

// ListExclusions returns every persisted exclusion date.
func (h *Handler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	exclusions, err := h.Store.ListExclusions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exclusions", err)
		return
	}

	dtos := make([]ExclusionDTO, len(exclusions))
	for i, e := range exclusions {
		dtos[i] = ExclusionDTO{Date: e.Date.String(), Name: e.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddExclusions adds explicit exclusion dates. Duplicates are ignored.
func (h *Handler) AddExclusions(w http.ResponseWriter, r *http.Request) {
	var req AddExclusionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	exclusions := make([]schedule.Exclusion, 0, len(req.Exclusions))
	for _, e := range req.Exclusions {
		d, err := schedule.ParseDate(e.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exclusion date (use YYYY-MM-DD)", err)
			return
		}
		exclusions = append(exclusions, schedule.Exclusion{Date: d, Name: e.Name})
	}

	if err := h.Store.SaveExclusions(r.Context(), exclusions); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save exclusions", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": len(exclusions)})
}

// AddDefaultExclusions computes and persists the built-in holiday
// calendar from the given year forward.
func (h *Handler) AddDefaultExclusions(w http.ResponseWriter, r *http.Request) {
	var req DefaultExclusionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	fromYear := req.FromYear
	if fromYear == 0 {
		fromYear = schedule.Today().Year()
	}

	exclusions := schedule.ComputeExclusions(schedule.DefaultCalendarConfig(), fromYear)
	if err := h.Store.SaveExclusions(r.Context(), exclusions); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save exclusions", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": len(exclusions)})
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// CreateProvider registers a service provider with its VAT factor.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var req ProviderDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Provider id is required", nil)
		return
	}

	vat := schedule.DefaultVATFactor
	if req.VATFactor != "" {
		parsed, err := decimal.NewFromString(req.VATFactor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid vat_factor", err)
			return
		}
		vat = parsed
	}

	p := activity.ServiceProvider{ID: req.ID, Name: req.Name, VATFactor: vat}
	if err := h.Store.SaveProvider(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProviderDTO{ID: p.ID, Name: p.Name, VATFactor: p.VATFactor.String()})
}

// GetProvider returns a service provider.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Store.GetProvider(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get provider", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Provider not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, ProviderDTO{ID: p.ID, Name: p.Name, VATFactor: p.VATFactor.String()})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerRecalculation processes every rate flagged for recalculation.
func (h *Handler) TriggerRecalculation(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.RecalculateOnChangedRate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recalculate", err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultDTO{Processed: n})
}

// TriggerRenewal extends open-ended schedules to the current horizon.
func (h *Handler) TriggerRenewal(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.RenewPayments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to renew payments", err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultDTO{Processed: n})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRange(req SynchronizeRequest) (schedule.DateRange, error) {
	start, err := schedule.ParseDate(req.Start)
	if err != nil {
		return schedule.DateRange{}, err
	}
	rng := schedule.DateRange{Start: start}
	if req.End != "" {
		end, err := schedule.ParseDate(req.End)
		if err != nil {
			return schedule.DateRange{}, err
		}
		rng.End = &end
	}
	return rng, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case schedule.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
