package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggier/fleet-billing/billing"
	bstore "github.com/loggier/fleet-billing/billing/store"
	"github.com/loggier/fleet-billing/fleet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*fleet.Service, *bstore.TxMemory, *billing.RecordingNotifier) {
	t.Helper()
	store := bstore.NewTxMemory()
	notifier := billing.NewRecordingNotifier()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	migrator := billing.NewMigrator(store, store, log)
	sweeper := billing.NewSweeper(store, store, notifier, log)
	return fleet.NewService(store, migrator, sweeper, log), store, notifier
}

func seedClientWithUnit(t *testing.T, svc *fleet.Service, clientID, unitID string, due billing.Date) {
	t.Helper()
	ctx := context.Background()

	result := svc.SaveClient(ctx, billing.Client{ID: billing.ClientID(clientID), Name: "Cliente"})
	require.True(t, result.Success, result.Message)

	result = svc.SaveUnit(ctx, billing.Unit{
		ID:           billing.UnitID(unitID),
		ClientID:     billing.ClientID(clientID),
		Plate:        "ABC-123",
		ContractType: billing.ContractMetered,
		MonthlyCost:  billing.NewMoneyFromInt(30),
		NextDueDate:  due,
		Active:       true,
	})
	require.True(t, result.Success, result.Message)
}

// =============================================================================
// ACTION ENVELOPE
// =============================================================================

func TestService_RegisterPayment_SuccessEnvelope(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedClientWithUnit(t, svc, "c1", "u1", billing.NewDate(2026, time.August, 1))

	result, rec := svc.RegisterPayment(context.Background(), billing.RecordInput{
		UnitID:        "u1",
		InvoiceNumber: "F-001",
		Amount:        billing.NewMoneyFromInt(30),
		PaidAt:        billing.NewDate(2026, time.August, 5),
	})

	assert.True(t, result.Success)
	assert.NotEmpty(t, rec.ID)

	unit, err := store.GetUnit(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-05", unit.NextDueDate.String())
}

func TestService_RegisterPayment_FailureIsResultNotError(t *testing.T) {
	// Unknown unit surfaces as {success: false, message}, never a panic
	// or a bare error escaping the action layer.
	svc, _, _ := newTestService(t)

	result, _ := svc.RegisterPayment(context.Background(), billing.RecordInput{
		UnitID:        "ghost",
		InvoiceNumber: "F-001",
		PaidAt:        billing.NewDate(2026, time.August, 5),
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "not found")
}

func TestService_DeletePayment_UnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	result := svc.DeletePayment(context.Background(), "ghost")
	assert.False(t, result.Success)
}

func TestService_BulkDeleteUnits_PartialSuccessWithCaveat(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedClientWithUnit(t, svc, "c1", "u1", billing.NewDate(2026, time.August, 1))

	result, detail := svc.BulkDeleteUnits(context.Background(), []billing.UnitID{"u1", "ghost"})

	assert.True(t, result.Success)
	assert.Equal(t, 1, detail.DeletedCount)
	assert.Equal(t, []billing.UnitID{"ghost"}, detail.FailedIDs)
	assert.Contains(t, result.Message, "1 failed")
}

// =============================================================================
// CLIENT LIFECYCLE
// =============================================================================

func TestService_SaveUnit_RequiresExistingClient(t *testing.T) {
	svc, _, _ := newTestService(t)

	result := svc.SaveUnit(context.Background(), billing.Unit{
		ID:           "u1",
		ClientID:     "nobody",
		ContractType: billing.ContractMetered,
	})

	assert.False(t, result.Success)
}

func TestService_DeleteClient_CascadesUnitsAndPayments(t *testing.T) {
	// GIVEN: A client with a unit and a registered payment
	// WHEN: Deleting the client
	// THEN: Client, unit, and ledger entries are all gone

	svc, store, _ := newTestService(t)
	seedClientWithUnit(t, svc, "c1", "u1", billing.NewDate(2026, time.August, 1))
	ctx := context.Background()

	result, _ := svc.RegisterPayment(ctx, billing.RecordInput{
		UnitID: "u1", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 5),
	})
	require.True(t, result.Success)

	result = svc.DeleteClient(ctx, "c1")
	assert.True(t, result.Success, result.Message)

	client, err := store.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, client)

	unit, err := store.GetUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, unit)

	payments, err := store.ListPaymentsByClient(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// =============================================================================
// DERIVED SUMMARIES
// =============================================================================

func TestService_GetClientSummary_DerivesStatusAndDebt(t *testing.T) {
	svc, _, _ := newTestService(t)
	overdueSince := billing.Today().AddDays(-5)
	seedClientWithUnit(t, svc, "c1", "u1", overdueSince)

	summary, err := svc.GetClientSummary(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, billing.ClientOwing, summary.Client.Status)
	assert.Equal(t, "30.00", summary.Client.Debt.String())
	require.Len(t, summary.Units, 1)
	assert.Equal(t, billing.UnitOverdue, summary.Units[0].Classification.Status)
	assert.Equal(t, "30.00", summary.Units[0].MonthlyCost.String())
}

func TestService_GetClientSummary_UnknownClient(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetClientSummary(context.Background(), "nobody")
	assert.ErrorIs(t, err, billing.ErrClientNotFound)
}

// =============================================================================
// OPERATOR JOBS
// =============================================================================

func TestService_SendRemindersNow_SecondCallSameDayReportsNoOp(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedClientWithUnit(t, svc, "c1", "u1", billing.Today())

	first, detail := svc.SendRemindersNow(context.Background())
	assert.True(t, first.Success)
	assert.Equal(t, 1, detail.Sent)

	second, detail := svc.SendRemindersNow(context.Background())
	assert.True(t, second.Success)
	assert.True(t, detail.AlreadyRan)
}

func TestService_MigrateNestedPayments_ReportsCounts(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.SeedLegacy([]billing.LegacyPayment{
		{DocID: "d1", ClientID: "c1", UnitID: "u1", InvoiceNumber: "F-001", Amount: "350.00", PaidAt: "2026-01-15"},
	})

	result, detail := svc.MigrateNestedPayments(context.Background())
	assert.True(t, result.Success)
	assert.Equal(t, 1, detail.Migrated)
}
