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

MONEY AND DATES:
  Money travels as a decimal string ("350.00") so clients never see
  float rounding. Dates travel as YYYY-MM-DD.

VALIDATION:
  Validation is done in handlers and the fleet layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - fleet/service.go: ActionResult behind ActionResponse
*/
package api

import (
	"time"

	"github.com/loggier/fleet-billing/billing"
	"github.com/loggier/fleet-billing/fleet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ClientDTO represents a client in API responses. Status and debt are
// derived from the client's units at read time.
type ClientDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Status string `json:"status"`
	Debt   string `json:"debt"`
}

// SaveClientRequest creates or updates a client.
type SaveClientRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// UnitDTO represents a tracked unit in API responses.
type UnitDTO struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	Plate        string `json:"plate"`
	ContractType string `json:"contract_type"`
	TotalCost    string `json:"total_cost,omitempty"`
	TermMonths   int    `json:"term_months,omitempty"`
	MonthlyCost  string `json:"monthly_cost"`
	PlanTier     string `json:"plan_tier,omitempty"`
	NextDueDate  string `json:"next_due_date,omitempty"`
	Status       string `json:"status"`
	DaysUntilDue int    `json:"days_until_due,omitempty"`
	DaysOverdue  int    `json:"days_overdue,omitempty"`
	Withdrawn    bool   `json:"withdrawn"`
	IMEI         string `json:"imei,omitempty"`
	Active       bool   `json:"active"`
}

// SaveUnitRequest creates or updates a unit. NextDueDate and Withdrawn
// are optional: omitted on an update, the stored values are kept.
type SaveUnitRequest struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	Plate        string `json:"plate"`
	ContractType string `json:"contract_type"`
	TotalCost    string `json:"total_cost,omitempty"`
	TermMonths   int    `json:"term_months,omitempty"`
	MonthlyCost  string `json:"monthly_cost,omitempty"`
	PlanTier     string `json:"plan_tier,omitempty"`
	NextDueDate  string `json:"next_due_date,omitempty"`
	Withdrawn    *bool  `json:"withdrawn,omitempty"`
	IMEI         string `json:"imei,omitempty"`
}

// PaymentDTO represents a ledger payment.
type PaymentDTO struct {
	ID            string `json:"id"`
	UnitID        string `json:"unit_id"`
	ClientID      string `json:"client_id"`
	Plate         string `json:"plate,omitempty"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	PaidAt        string `json:"paid_at"`
	Method        string `json:"method,omitempty"`
	RegisteredAt  string `json:"registered_at,omitempty"`
}

// RegisterPaymentRequest appends a payment to a unit's ledger.
type RegisterPaymentRequest struct {
	UnitID        string `json:"unit_id"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	PaidAt        string `json:"paid_at"`
	Method        string `json:"method,omitempty"`
}

// BulkDeleteUnitsRequest removes several units in one call.
type BulkDeleteUnitsRequest struct {
	UnitIDs []string `json:"unit_ids"`
}

// BulkDeleteResultDTO reports per-batch deletion outcome.
type BulkDeleteResultDTO struct {
	DeletedCount int      `json:"deleted_count"`
	FailedIDs    []string `json:"failed_ids,omitempty"`
}

// ActionResponse is the uniform operator-action envelope.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

// MigrationResultDTO is the audit of one migration run.
type MigrationResultDTO struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// SweepResultDTO is the audit of one reminder sweep.
type SweepResultDTO struct {
	Date       string `json:"date"`
	Processed  int    `json:"processed"`
	Sent       int    `json:"sent"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	AlreadyRan bool   `json:"already_ran"`
}

// NotificationDTO is one entry from the notification audit log.
type NotificationDTO struct {
	ID       string `json:"id"`
	UnitID   string `json:"unit_id"`
	ClientID string `json:"client_id"`
	Template string `json:"template"`
	SentOn   string `json:"sent_on"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// FleetSummaryDTO is the dashboard aggregate.
type FleetSummaryDTO struct {
	Clients       int    `json:"clients"`
	Units         int    `json:"units"`
	OverdueUnits  int    `json:"overdue_units"`
	TotalExposure string `json:"total_exposure"`
	AsOf          string `json:"as_of"`
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

func toClientDTO(c billing.Client) ClientDTO {
	return ClientDTO{
		ID:     string(c.ID),
		Name:   c.Name,
		Phone:  c.Phone,
		Status: string(c.Status),
		Debt:   c.Debt.String(),
	}
}

func toUnitDTO(d fleet.UnitDetail) UnitDTO {
	u := d.Unit
	return UnitDTO{
		ID:           string(u.ID),
		ClientID:     string(u.ClientID),
		Plate:        u.Plate,
		ContractType: string(u.ContractType),
		TotalCost:    u.TotalCost.String(),
		TermMonths:   u.TermMonths,
		MonthlyCost:  d.MonthlyCost.String(),
		PlanTier:     string(u.PlanTier),
		NextDueDate:  u.NextDueDate.String(),
		Status:       string(d.Classification.Status),
		DaysUntilDue: d.Classification.DaysUntilDue,
		DaysOverdue:  d.Classification.DaysOverdue,
		Withdrawn:    u.Withdrawn,
		IMEI:         u.IMEI,
		Active:       u.Active,
	}
}

func toPaymentDTO(p billing.PaymentRecord) PaymentDTO {
	dto := PaymentDTO{
		ID:            string(p.ID),
		UnitID:        string(p.UnitID),
		ClientID:      string(p.ClientID),
		Plate:         p.Plate,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount.String(),
		PaidAt:        p.PaidAt.String(),
		Method:        p.Method,
	}
	if !p.RegisteredAt.IsZero() {
		dto.RegisteredAt = p.RegisteredAt.String()
	}
	return dto
}

func toPaymentDTOs(ps []billing.PaymentRecord) []PaymentDTO {
	dtos := make([]PaymentDTO, len(ps))
	for i, p := range ps {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toNotificationDTO(n billing.NotificationEntry) NotificationDTO {
	return NotificationDTO{
		ID:       n.ID,
		UnitID:   string(n.UnitID),
		ClientID: string(n.ClientID),
		Template: string(n.Template),
		SentOn:   n.SentOn.String(),
		Success:  n.Success,
		Error:    n.Error,
	}
}

func toSweepResultDTO(r billing.SweepResult) SweepResultDTO {
	return SweepResultDTO{
		Date:       r.Date.String(),
		Processed:  r.Processed,
		Sent:       r.Sent,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		AlreadyRan: r.AlreadyRan,
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
