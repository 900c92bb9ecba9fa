package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggier/fleet-billing/billing"
	bstore "github.com/loggier/fleet-billing/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) (*billing.Ledger, *bstore.TxMemory) {
	t.Helper()
	store := bstore.NewTxMemory()
	return billing.NewLedger(store), store
}

func seedUnit(t *testing.T, store *bstore.TxMemory, clientID billing.ClientID, unitID billing.UnitID, due billing.Date) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveClient(ctx, billing.Client{ID: clientID, Name: "Cliente " + string(clientID)}))
	require.NoError(t, store.SaveUnit(ctx, billing.Unit{
		ID:           unitID,
		ClientID:     clientID,
		Plate:        "ABC-" + string(unitID),
		ContractType: billing.ContractMetered,
		MonthlyCost:  billing.NewMoneyFromInt(30),
		NextDueDate:  due,
		Active:       true,
	}))
}

// =============================================================================
// PAYMENT RECORDING
// =============================================================================

func TestLedger_Record_AdvancesDueDateAndSnapshotsPrevious(t *testing.T) {
	// GIVEN: A unit due on 2026-08-01
	// WHEN: Recording a payment made on 2026-08-05
	// THEN: The unit is due 2026-09-05 and the payment remembers 2026-08-01

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	due := billing.NewDate(2026, time.August, 1)
	seedUnit(t, store, "c1", "u1", due)

	rec, err := ledger.Record(ctx, billing.RecordInput{
		UnitID:        "u1",
		InvoiceNumber: "F-001",
		Amount:        billing.NewMoneyFromInt(30),
		PaidAt:        billing.NewDate(2026, time.August, 5),
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-08-01", rec.PrevDueDate.String())
	assert.Equal(t, billing.ClientID("c1"), rec.ClientID)

	unit, err := store.GetUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-05", unit.NextDueDate.String())
}

func TestLedger_Record_UnknownUnitRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.Record(context.Background(), billing.RecordInput{
		UnitID:        "ghost",
		InvoiceNumber: "F-001",
		PaidAt:        billing.NewDate(2026, time.August, 5),
	})

	assert.ErrorIs(t, err, billing.ErrUnitNotFound)
}

func TestLedger_Record_MissingFieldsRejected(t *testing.T) {
	ledger, store := newTestLedger(t)
	seedUnit(t, store, "c1", "u1", billing.NewDate(2026, time.August, 1))

	_, err := ledger.Record(context.Background(), billing.RecordInput{
		UnitID: "u1",
		PaidAt: billing.NewDate(2026, time.August, 5),
	})

	assert.True(t, billing.IsValidation(err), "missing invoice should be a validation error")
}

func TestLedger_Record_DuplicateInvoiceSameClientRejected(t *testing.T) {
	// GIVEN: Client c1 already has invoice F-001 on one of its units
	// WHEN: Registering F-001 again on another unit of the same client
	// THEN: Rejected with DuplicateInvoiceError

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedUnit(t, store, "c1", "u1", billing.NewDate(2026, time.August, 1))
	seedUnit(t, store, "c1", "u2", billing.NewDate(2026, time.August, 1))

	_, err := ledger.Record(ctx, billing.RecordInput{
		UnitID: "u1", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 5),
	})
	require.NoError(t, err)

	_, err = ledger.Record(ctx, billing.RecordInput{
		UnitID: "u2", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 6),
	})

	var dup *billing.DuplicateInvoiceError
	assert.ErrorAs(t, err, &dup)
	assert.ErrorIs(t, err, billing.ErrDuplicateInvoice)
}

func TestLedger_Record_SameInvoiceNumberDifferentClientsAllowed(t *testing.T) {
	// Invoice numbers are unique per client, not globally.
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedUnit(t, store, "c1", "u1", billing.NewDate(2026, time.August, 1))
	seedUnit(t, store, "c2", "u2", billing.NewDate(2026, time.August, 1))

	_, err := ledger.Record(ctx, billing.RecordInput{
		UnitID: "u1", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 5),
	})
	require.NoError(t, err)

	_, err = ledger.Record(ctx, billing.RecordInput{
		UnitID: "u2", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 5),
	})
	assert.NoError(t, err)
}

// =============================================================================
// COMPENSATING DELETES
// =============================================================================

func TestLedger_Delete_RestoresSnapshotDueDate(t *testing.T) {
	// GIVEN: A payment that advanced the due date from 08-01 to 09-05
	// WHEN: Deleting that payment
	// THEN: The unit is due 08-01 again and classifies as it did before

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedUnit(t, store, "c1", "u1", billing.NewDate(2026, time.August, 1))

	rec, err := ledger.Record(ctx, billing.RecordInput{
		UnitID: "u1", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 5),
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Delete(ctx, rec.ID))

	unit, err := store.GetUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-01", unit.NextDueDate.String())

	gone, err := store.GetPayment(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestLedger_Delete_MigratedRecordFallsBackToRecomputation(t *testing.T) {
	// GIVEN: Two migrated payments (no PrevDueDate snapshot)
	// WHEN: Deleting the later one
	// THEN: Due date recomputes to one month past the remaining payment

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedUnit(t, store, "c1", "u1", billing.NewDate(2026, time.August, 1))

	older := billing.PaymentRecord{
		ID: "mig-1", UnitID: "u1", ClientID: "c1", InvoiceNumber: "F-010",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.June, 10),
	}
	newer := billing.PaymentRecord{
		ID: "mig-2", UnitID: "u1", ClientID: "c1", InvoiceNumber: "F-011",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.July, 10),
	}
	require.NoError(t, store.AppendPayment(ctx, older))
	require.NoError(t, store.AppendPayment(ctx, newer))

	require.NoError(t, ledger.Delete(ctx, "mig-2"))

	unit, err := store.GetUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-07-10", unit.NextDueDate.String())
}

func TestLedger_Delete_UnknownPaymentRejected(t *testing.T) {
	ledger, _ := newTestLedger(t)
	err := ledger.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, billing.ErrPaymentNotFound)
}

// =============================================================================
// BULK UNIT DELETION
// =============================================================================

func TestLedger_BulkDeleteUnits_PartialFailureIsReportedNotFatal(t *testing.T) {
	// GIVEN: Three requested deletions, one for a unit that doesn't exist
	// WHEN: Bulk deleting
	// THEN: Two deleted, the missing one reported, nothing rolled back

	ledger, store := newTestLedger(t)
	ctx := context.Background()
	seedUnit(t, store, "c1", "u1", billing.NewDate(2026, time.August, 1))
	seedUnit(t, store, "c1", "u2", billing.NewDate(2026, time.August, 1))

	_, err := ledger.Record(ctx, billing.RecordInput{
		UnitID: "u1", InvoiceNumber: "F-001",
		Amount: billing.NewMoneyFromInt(30), PaidAt: billing.NewDate(2026, time.August, 5),
	})
	require.NoError(t, err)

	result := ledger.BulkDeleteUnits(ctx, []billing.UnitID{"u1", "ghost", "u2"})

	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, []billing.UnitID{"ghost"}, result.FailedIDs)

	// Cascade removed u1's payment too.
	payments, err := store.ListPaymentsByUnit(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}
