/*
handlers.go - HTTP API handlers for the fleet billing system

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the fleet
  action layer and the billing engine.

ENDPOINTS:
  Clients:
    GET    /api/clients                 List clients with derived status
    POST   /api/clients                 Create/update client
    GET    /api/clients/{id}            Client detail with units
    DELETE /api/clients/{id}            Cascade delete client
    GET    /api/clients/{id}/debt       Current debt rollup
    GET    /api/clients/{id}/payments   Payment history

  Units:
    POST   /api/units                   Create/update unit
    GET    /api/units/{id}              Unit with classification
    POST   /api/units/bulk-delete       Best-effort batch delete
    GET    /api/units/{id}/notifications Notification audit log

  Payments:
    GET    /api/payments                Full ledger
    POST   /api/payments                Register payment (advances due date)
    DELETE /api/payments/{id}           Delete payment (reverts due date)

  Admin:
    POST   /api/admin/migrate           Idempotent legacy import
    POST   /api/admin/sweep             Trigger today's reminder sweep
    GET    /api/summary                 Fleet dashboard aggregate

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate invoice)
  - 500: Internal errors
  Operator actions additionally wrap outcomes in {success, message}.

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - fleet/service.go: The action layer behind admin operations
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/loggier/fleet-billing/billing"
	"github.com/loggier/fleet-billing/fleet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *fleet.Service
	Store   billing.TxStore
	Sweeps  billing.SweepStore
	Log     *logrus.Logger
}

// NewHandler creates a new handler over the action layer.
func NewHandler(service *fleet.Service, store billing.TxStore, sweeps billing.SweepStore, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Service: service, Store: store, Sweeps: sweeps, Log: log}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients with derived status and debt.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.ListClientSummaries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toClientDTO(s.Client)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a client with its units and classifications.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := billing.ClientID(chi.URLParam(r, "id"))

	summary, err := h.Service.GetClientSummary(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}

	units := make([]UnitDTO, len(summary.Units))
	for i, d := range summary.Units {
		units[i] = toUnitDTO(d)
	}
	writeJSON(w, http.StatusOK, struct {
		Client ClientDTO `json:"client"`
		Units  []UnitDTO `json:"units"`
	}{toClientDTO(summary.Client), units})
}

// SaveClient creates or updates a client.
func (h *Handler) SaveClient(w http.ResponseWriter, r *http.Request) {
	var req SaveClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result := h.Service.SaveClient(r.Context(), billing.Client{
		ID:    billing.ClientID(req.ID),
		Name:  req.Name,
		Phone: req.Phone,
	})
	writeAction(w, result, nil)
}

// DeleteClient removes a client and all of its units and payments.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id := billing.ClientID(chi.URLParam(r, "id"))
	result := h.Service.DeleteClient(r.Context(), id)
	writeAction(w, result, nil)
}

// GetClientDebt returns the client's overdue rollup.
func (h *Handler) GetClientDebt(w http.ResponseWriter, r *http.Request) {
	id := billing.ClientID(chi.URLParam(r, "id"))

	summary, err := h.Service.GetClientSummary(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get client debt", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		ClientID     string `json:"client_id"`
		Status       string `json:"status"`
		OverdueUnits int    `json:"overdue_units"`
		Debt         string `json:"debt"`
	}{string(id), string(summary.Rollup.Status), summary.Rollup.OverdueUnits, summary.Rollup.Debt.String()})
}

// ListClientPayments returns the client's payment history.
func (h *Handler) ListClientPayments(w http.ResponseWriter, r *http.Request) {
	id := billing.ClientID(chi.URLParam(r, "id"))

	payments, err := h.Service.Ledger().ListByClient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// SaveUnit creates or updates a unit.
func (h *Handler) SaveUnit(w http.ResponseWriter, r *http.Request) {
	var req SaveUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	unit, err := unitFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	existing, err := h.Store.GetUnit(r.Context(), unit.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save unit", err)
		return
	}
	mergeStoredUnitState(&unit, req, existing)

	result := h.Service.SaveUnit(r.Context(), unit)
	writeAction(w, result, nil)
}

// GetUnit returns a unit with its classification and monthly cost.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := billing.UnitID(chi.URLParam(r, "id"))

	unit, err := h.Store.GetUnit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}

	detail := fleet.UnitDetail{
		Unit:           *unit,
		Classification: billing.Classify(*unit, billing.Today()),
		MonthlyCost:    billing.MonthlyCost(*unit),
	}
	writeJSON(w, http.StatusOK, toUnitDTO(detail))
}

// BulkDeleteUnits removes a batch of units, best effort.
func (h *Handler) BulkDeleteUnits(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteUnitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ids := make([]billing.UnitID, len(req.UnitIDs))
	for i, s := range req.UnitIDs {
		ids[i] = billing.UnitID(s)
	}

	result, detail := h.Service.BulkDeleteUnits(r.Context(), ids)
	failed := make([]string, len(detail.FailedIDs))
	for i, id := range detail.FailedIDs {
		failed[i] = string(id)
	}
	writeAction(w, result, BulkDeleteResultDTO{
		DeletedCount: detail.DeletedCount,
		FailedIDs:    failed,
	})
}

// ListUnitNotifications returns the unit's notification audit trail,
// newest first.
func (h *Handler) ListUnitNotifications(w http.ResponseWriter, r *http.Request) {
	id := billing.UnitID(chi.URLParam(r, "id"))

	entries, err := h.Sweeps.ListNotifications(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, len(entries))
	for i, n := range entries {
		dtos[i] = toNotificationDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns the full ledger, oldest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Service.Ledger().ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// RegisterPayment appends a payment and advances the unit's due date.
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req RegisterPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paidAt, ok := billing.ParseDate(req.PaidAt)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid paid_at format (use YYYY-MM-DD)", nil)
		return
	}

	result, rec := h.Service.RegisterPayment(r.Context(), billing.RecordInput{
		UnitID:        billing.UnitID(req.UnitID),
		InvoiceNumber: req.InvoiceNumber,
		Amount:        billing.ParseMoney(req.Amount),
		PaidAt:        paidAt,
		Method:        req.Method,
	})
	if !result.Success {
		writeAction(w, result, nil)
		return
	}
	writeJSON(w, http.StatusCreated, ActionResponse{
		Success: true,
		Message: result.Message,
		Detail:  toPaymentDTO(rec),
	})
}

// DeletePayment removes a payment, restoring the prior due date.
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := billing.PaymentID(chi.URLParam(r, "id"))
	result := h.Service.DeletePayment(r.Context(), id)
	writeAction(w, result, nil)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerMigration runs the idempotent legacy payment import.
func (h *Handler) TriggerMigration(w http.ResponseWriter, r *http.Request) {
	result, detail := h.Service.MigrateNestedPayments(r.Context())
	writeAction(w, result, MigrationResultDTO{
		Migrated: detail.Migrated,
		Skipped:  detail.Skipped,
		Failed:   detail.Failed,
	})
}

// TriggerSweep runs today's reminder sweep on demand.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, detail := h.Service.SendRemindersNow(r.Context())
	writeAction(w, result, toSweepResultDTO(detail))
}

// GetFleetSummary returns the dashboard aggregate.
func (h *Handler) GetFleetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clients, err := h.Store.ListClients(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load summary", err)
		return
	}
	units, err := h.Store.ListUnits(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load summary", err)
		return
	}

	today := billing.Today()
	overdue := 0
	for _, u := range units {
		if billing.Classify(u, today).Status == billing.UnitOverdue {
			overdue++
		}
	}

	writeJSON(w, http.StatusOK, FleetSummaryDTO{
		Clients:       len(clients),
		Units:         len(units),
		OverdueUnits:  overdue,
		TotalExposure: billing.Exposure(units, today).String(),
		AsOf:          nowRFC3339(),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

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

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case billing.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, billing.ErrDuplicateInvoice):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// writeAction serializes an operator action result. Failed actions are
// still HTTP 200: the envelope carries the outcome.
func writeAction(w http.ResponseWriter, result fleet.ActionResult, detail any) {
	writeJSON(w, http.StatusOK, ActionResponse{
		Success: result.Success,
		Message: result.Message,
		Detail:  detail,
	})
}

// unitFromRequest converts and validates the unit payload. Amounts use
// the zero-coercion policy; the contract type must be known.
func unitFromRequest(req SaveUnitRequest) (billing.Unit, error) {
	ct := billing.ContractType(req.ContractType)
	if ct != billing.ContractFlatFee && ct != billing.ContractMetered {
		return billing.Unit{}, errors.New("contract_type must be con_contrato or sin_contrato")
	}

	unit := billing.Unit{
		ID:           billing.UnitID(req.ID),
		ClientID:     billing.ClientID(req.ClientID),
		Plate:        req.Plate,
		ContractType: ct,
		TotalCost:    billing.ParseMoney(req.TotalCost),
		TermMonths:   req.TermMonths,
		MonthlyCost:  billing.ParseMoney(req.MonthlyCost),
		PlanTier:     billing.PlanTier(req.PlanTier),
		IMEI:         req.IMEI,
		Active:       true,
	}
	if req.NextDueDate != "" {
		due, ok := billing.ParseDate(req.NextDueDate)
		if !ok {
			return billing.Unit{}, errors.New("invalid next_due_date format (use YYYY-MM-DD)")
		}
		unit.NextDueDate = due
	}
	if req.Withdrawn != nil {
		unit.Withdrawn = *req.Withdrawn
	}
	return unit, nil
}

// mergeStoredUnitState carries stored state forward when the payload
// omits it. An edit that leaves out next_due_date or withdrawn must not
// reset them: a plate correction cannot revive a withdrawn unit or zero
// its due date into the overdue bucket.
func mergeStoredUnitState(unit *billing.Unit, req SaveUnitRequest, existing *billing.Unit) {
	if existing == nil {
		return
	}
	if req.NextDueDate == "" {
		unit.NextDueDate = existing.NextDueDate
	}
	if req.Withdrawn == nil {
		unit.Withdrawn = existing.Withdrawn
	}
	unit.Active = existing.Active
}
