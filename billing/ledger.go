/*
ledger.go - Payment ledger with compensating deletes

PURPOSE:
  The ledger is the authoritative store of payment events. Recording a
  payment and advancing the unit's due date are one atomic operation;
  deleting a payment is not mere removal but a compensating transaction
  that restores the unit's due date to its pre-payment value.

CRITICAL INVARIANTS:
  1. PAIRED WRITES: Payment append + due-date advance commit together or
     not at all. Same for delete + due-date restore.
  2. REVERSALS ARE EXACT: Each payment carries a PrevDueDate snapshot
     taken at registration; deletion restores precisely that value.
  3. INVOICE UNIQUENESS: One invoice number per client. Not globally
     unique; two clients may legitimately reuse a number.

REVERSAL RULE:
  The due date to restore on delete is the PrevDueDate snapshot stored on
  the payment at creation time. Records imported by the migration carry
  no snapshot (the legacy layout never stored one); for those the ledger
  recomputes deterministically from the remaining payment history. See
  RecomputeDueDate in contract.go for the exact rule.

BULK DELETION:
  Removing a fleet of units cascades each unit's ledger entries. Items
  are processed sequentially, each in its own small transaction; partial
  completion is an accepted, reported outcome. A half-cleaned fleet beats
  an untouched one.

SEE ALSO:
  - store.go: TxStore transaction boundary
  - contract.go: NextDueAfter, RecomputeDueDate
  - migration.go: Populates the ledger from legacy storage
*/
package billing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger performs all payment mutations through a transactional store.
type Ledger struct {
	store TxStore
}

func NewLedger(store TxStore) *Ledger {
	return &Ledger{store: store}
}

// RecordInput is the payment form payload.
type RecordInput struct {
	ID            PaymentID // optional; generated when empty
	UnitID        UnitID
	InvoiceNumber string
	Amount        Money
	PaidAt        Date
	Method        string
}

// Record appends a payment and advances the unit's due date by one
// billing period from the payment date. Both writes share one
// transaction scope.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (PaymentRecord, error) {
	if in.UnitID == "" {
		return PaymentRecord{}, &ValidationError{Field: "unitId", Message: "required"}
	}
	if in.InvoiceNumber == "" {
		return PaymentRecord{}, &ValidationError{Field: "invoiceNumber", Message: "required"}
	}
	if in.PaidAt.IsZero() {
		return PaymentRecord{}, &ValidationError{Field: "paymentDate", Message: "required"}
	}
	if in.Amount.IsNegative() {
		return PaymentRecord{}, &ValidationError{Field: "amount", Message: "must not be negative"}
	}

	unit, err := l.store.GetUnit(ctx, in.UnitID)
	if err != nil {
		return PaymentRecord{}, err
	}
	if unit == nil {
		return PaymentRecord{}, ErrUnitNotFound
	}

	existing, err := l.store.FindPaymentByInvoice(ctx, unit.ClientID, in.InvoiceNumber)
	if err != nil {
		return PaymentRecord{}, err
	}
	if existing != nil {
		return PaymentRecord{}, &DuplicateInvoiceError{
			ClientID:      unit.ClientID,
			InvoiceNumber: in.InvoiceNumber,
			ExistingID:    existing.ID,
		}
	}

	rec := PaymentRecord{
		ID:            in.ID,
		UnitID:        unit.ID,
		ClientID:      unit.ClientID,
		Plate:         unit.Plate,
		InvoiceNumber: in.InvoiceNumber,
		Amount:        in.Amount,
		PaidAt:        in.PaidAt,
		Method:        in.Method,
		PrevDueDate:   unit.NextDueDate,
		RegisteredAt:  Today(),
	}
	if rec.ID == "" {
		rec.ID = newPaymentID()
	}

	nextDue := NextDueAfter(*unit, in.PaidAt)

	err = l.store.WithTx(ctx, func(s Store) error {
		if err := s.AppendPayment(ctx, rec); err != nil {
			return err
		}
		return s.SetUnitDueDate(ctx, unit.ID, nextDue)
	})
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	return rec, nil
}

// Delete removes a payment and rolls the unit's due date back to its
// pre-payment value. Removal and restore share one transaction scope;
// the operation fails with a descriptive reason if either step cannot
// be verified, never silently half-succeeds.
func (l *Ledger) Delete(ctx context.Context, id PaymentID) error {
	p, err := l.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPaymentNotFound
	}

	unit, err := l.store.GetUnit(ctx, p.UnitID)
	if err != nil {
		return err
	}
	if unit == nil {
		return fmt.Errorf("cannot revert due date: %w (unit %s)", ErrUnitNotFound, p.UnitID)
	}

	restore := p.PrevDueDate
	if restore.IsZero() {
		// Migrated record without a snapshot: fall back to deterministic
		// recomputation from the remaining history.
		all, err := l.store.ListPaymentsByUnit(ctx, p.UnitID)
		if err != nil {
			return err
		}
		remaining := make([]PaymentRecord, 0, len(all))
		for _, other := range all {
			if other.ID != p.ID {
				remaining = append(remaining, other)
			}
		}
		restore = RecomputeDueDate(*unit, remaining, *p)
	}

	err = l.store.WithTx(ctx, func(s Store) error {
		if err := s.DeletePayment(ctx, p.ID); err != nil {
			return err
		}
		return s.SetUnitDueDate(ctx, unit.ID, restore)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return nil
}

// ListByClient returns a client's payments.
func (l *Ledger) ListByClient(ctx context.Context, clientID ClientID) ([]PaymentRecord, error) {
	return l.store.ListPaymentsByClient(ctx, clientID)
}

// ListAll returns every payment in the ledger.
func (l *Ledger) ListAll(ctx context.Context) ([]PaymentRecord, error) {
	return l.store.ListPayments(ctx)
}

// =============================================================================
// BULK UNIT DELETION
// =============================================================================

// BulkDeleteResult summarizes a best-effort fleet cleanup.
type BulkDeleteResult struct {
	DeletedCount int
	FailedIDs    []UnitID
}

// BulkDeleteUnits removes units and cascades their ledger entries.
// Each unit gets its own transaction so one failure never rolls back the
// others; the result reports what happened item by item.
func (l *Ledger) BulkDeleteUnits(ctx context.Context, ids []UnitID) BulkDeleteResult {
	var result BulkDeleteResult

	for _, id := range ids {
		err := l.store.WithTx(ctx, func(s Store) error {
			unit, err := s.GetUnit(ctx, id)
			if err != nil {
				return err
			}
			if unit == nil {
				return ErrUnitNotFound
			}

			payments, err := s.ListPaymentsByUnit(ctx, id)
			if err != nil {
				return err
			}
			for _, p := range payments {
				if err := s.DeletePayment(ctx, p.ID); err != nil {
					return err
				}
			}
			return s.DeleteUnit(ctx, id)
		})

		if err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}
		result.DeletedCount++
	}

	return result
}

// =============================================================================
// ID GENERATION
// =============================================================================

var paymentSeq atomic.Uint64

func newPaymentID() PaymentID {
	return PaymentID(fmt.Sprintf("pay-%d-%d", time.Now().UnixNano(), paymentSeq.Add(1)))
}
