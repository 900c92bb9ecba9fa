/*
Package fleet is the operator-facing layer over the billing engine.

PURPOSE:
  Wraps engine operations into the action contract the UI consumes:
  every operation returns {success, message} and never panics out.
  Unexpected errors are caught here and converted into a generic
  failure result; the error taxonomy (validation / not-found /
  partial-batch / transactional) decides the message.

ACTIONS:
  RegisterPayment, DeletePayment, BulkDeleteUnits,
  MigrateNestedPayments, SendRemindersNow

  Plus the CRUD glue the list/detail views need: clients, units,
  client summaries with derived status and debt.

SEE ALSO:
  - billing/ledger.go: The mutations behind the actions
  - api/handlers.go: HTTP layer delegating here
*/
package fleet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/loggier/fleet-billing/billing"
)

// =============================================================================
// SERVICE
// =============================================================================

// ActionResult is the operator-facing outcome of every action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service holds the engine pieces behind the operator actions.
type Service struct {
	store    billing.TxStore
	ledger   *billing.Ledger
	migrator *billing.Migrator
	sweeper  *billing.Sweeper
	log      *logrus.Logger
}

func NewService(store billing.TxStore, migrator *billing.Migrator, sweeper *billing.Sweeper, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:    store,
		ledger:   billing.NewLedger(store),
		migrator: migrator,
		sweeper:  sweeper,
		log:      log,
	}
}

// Ledger exposes the underlying ledger for read paths.
func (s *Service) Ledger() *billing.Ledger { return s.ledger }

// guard converts a panic into a generic failure result. The boundary
// contract: nothing in this layer is fatal to the process.
func (s *Service) guard(result *ActionResult) {
	if r := recover(); r != nil {
		s.log.Errorf("recovered from panic in operator action: %v", r)
		result.Success = false
		result.Message = "internal error"
	}
}

// failureMessage maps engine errors onto operator-readable messages.
func failureMessage(err error) string {
	switch {
	case billing.IsValidation(err):
		return fmt.Sprintf("invalid request: %v", err)
	case billing.IsNotFound(err):
		return fmt.Sprintf("not found: %v", err)
	default:
		return fmt.Sprintf("operation failed: %v", err)
	}
}

// =============================================================================
// OPERATOR ACTIONS
// =============================================================================

// RegisterPayment appends a payment and advances the unit's due date.
func (s *Service) RegisterPayment(ctx context.Context, in billing.RecordInput) (result ActionResult, rec billing.PaymentRecord) {
	defer s.guard(&result)

	rec, err := s.ledger.Record(ctx, in)
	if err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}, billing.PaymentRecord{}
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("payment %s registered, next due %s", rec.ID, rec.PaidAt.AddMonths(1)),
	}, rec
}

// DeletePayment removes a payment, restoring the unit's prior due date.
func (s *Service) DeletePayment(ctx context.Context, id billing.PaymentID) (result ActionResult) {
	defer s.guard(&result)

	if err := s.ledger.Delete(ctx, id); err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("payment %s deleted and due date reverted", id)}
}

// BulkDeleteUnits removes units with cascading ledger cleanup.
// Partial completion is a success with caveats, not a failure.
func (s *Service) BulkDeleteUnits(ctx context.Context, ids []billing.UnitID) (result ActionResult, detail billing.BulkDeleteResult) {
	defer s.guard(&result)

	detail = s.ledger.BulkDeleteUnits(ctx, ids)
	msg := fmt.Sprintf("deleted %d of %d units", detail.DeletedCount, len(ids))
	if len(detail.FailedIDs) > 0 {
		msg = fmt.Sprintf("%s (%d failed)", msg, len(detail.FailedIDs))
	}
	return ActionResult{Success: true, Message: msg}, detail
}

// MigrateNestedPayments runs the idempotent legacy import.
func (s *Service) MigrateNestedPayments(ctx context.Context) (result ActionResult, detail billing.MigrationResult) {
	defer s.guard(&result)

	detail = s.migrator.Migrate(ctx)
	return ActionResult{Success: detail.Success, Message: detail.Message}, detail
}

// SendRemindersNow triggers the daily sweep outside its schedule.
func (s *Service) SendRemindersNow(ctx context.Context) (result ActionResult, detail billing.SweepResult) {
	defer s.guard(&result)

	detail, err := s.sweeper.Run(ctx, billing.Today())
	if err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}, detail
	}
	if detail.AlreadyRan {
		return ActionResult{Success: true, Message: "sweep already ran today, nothing sent"}, detail
	}
	return ActionResult{
		Success: true,
		Message: fmt.Sprintf("sweep complete: %d sent, %d skipped, %d failed", detail.Sent, detail.Skipped, detail.Failed),
	}, detail
}

// =============================================================================
// CLIENT / UNIT GLUE (list and detail views)
// =============================================================================

// SaveClient creates or updates a client.
func (s *Service) SaveClient(ctx context.Context, c billing.Client) (result ActionResult) {
	defer s.guard(&result)

	if c.ID == "" || c.Name == "" {
		return ActionResult{Success: false, Message: "client id and name are required"}
	}
	if err := s.store.SaveClient(ctx, c); err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("client %s saved", c.ID)}
}

// SaveUnit creates or updates a unit under an existing client.
func (s *Service) SaveUnit(ctx context.Context, u billing.Unit) (result ActionResult) {
	defer s.guard(&result)

	if u.ID == "" || u.ClientID == "" {
		return ActionResult{Success: false, Message: "unit id and client id are required"}
	}
	owner, err := s.store.GetClient(ctx, u.ClientID)
	if err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}
	}
	if owner == nil {
		return ActionResult{Success: false, Message: failureMessage(billing.ErrClientNotFound)}
	}
	if err := s.store.SaveUnit(ctx, u); err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("unit %s saved", u.ID)}
}

// DeleteClient removes a client and cascades to its units and their
// ledger entries. Unit removal is best-effort like any bulk delete;
// the client row goes only when every unit went.
func (s *Service) DeleteClient(ctx context.Context, id billing.ClientID) (result ActionResult) {
	defer s.guard(&result)

	units, err := s.store.ListUnitsByClient(ctx, id)
	if err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}
	}

	ids := make([]billing.UnitID, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	detail := s.ledger.BulkDeleteUnits(ctx, ids)
	if len(detail.FailedIDs) > 0 {
		return ActionResult{
			Success: false,
			Message: fmt.Sprintf("client kept: %d of %d units could not be removed", len(detail.FailedIDs), len(ids)),
		}
	}

	if err := s.store.DeleteClient(ctx, id); err != nil {
		return ActionResult{Success: false, Message: failureMessage(err)}
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("client %s and %d units deleted", id, detail.DeletedCount)}
}

// ClientSummary is a client with its derived status and unit detail.
type ClientSummary struct {
	Client billing.Client
	Rollup billing.ClientRollup
	Units  []UnitDetail
}

// UnitDetail pairs a unit with its classification and monthly cost.
type UnitDetail struct {
	Unit           billing.Unit
	Classification billing.Classification
	MonthlyCost    billing.Money
}

// GetClientSummary derives the full client view as of today.
func (s *Service) GetClientSummary(ctx context.Context, id billing.ClientID) (*ClientSummary, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, billing.ErrClientNotFound
	}

	units, err := s.store.ListUnitsByClient(ctx, id)
	if err != nil {
		return nil, err
	}

	today := billing.Today()
	rollup := billing.Rollup(units, today)
	client.Status = rollup.Status
	client.Debt = rollup.Debt

	summary := &ClientSummary{Client: *client, Rollup: rollup}
	for _, u := range units {
		summary.Units = append(summary.Units, UnitDetail{
			Unit:           u,
			Classification: billing.Classify(u, today),
			MonthlyCost:    billing.MonthlyCost(u),
		})
	}
	return summary, nil
}

// ListClientSummaries derives the list view for all clients.
func (s *Service) ListClientSummaries(ctx context.Context) ([]ClientSummary, error) {
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ClientSummary, 0, len(clients))
	for _, c := range clients {
		summary, err := s.GetClientSummary(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// FleetExposure sums the monthly cost of every overdue unit.
func (s *Service) FleetExposure(ctx context.Context) (billing.Money, error) {
	units, err := s.store.ListUnits(ctx)
	if err != nil {
		return billing.ZeroMoney(), err
	}
	return billing.Exposure(units, billing.Today()), nil
}
