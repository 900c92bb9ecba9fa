/*
migration.go - One-shot legacy payment migration

PURPOSE:
  Copies payment records from the legacy nested layout
  (clients/{id}/units/{id}/payments/{id}) into the flat ledger, tagging
  each with its owning client, without duplicating or losing history.

CORRECTNESS PROPERTY:
  Running Migrate N times yields the same ledger state as running it
  once. There is no checkpoint; idempotence comes from the existence
  check on the natural key (unitId + invoiceNumber + paymentDate). A run
  killed halfway is simply re-run; already-copied records are skipped.

FAILURE POLICY:
  One malformed legacy document never aborts the migration. It is logged,
  counted, and skipped; the final result reports migrated vs skipped vs
  failed so operators can audit completeness.

WHAT MIGRATION DOES NOT DO:
  It never touches unit due dates. The legacy records are history, not
  new payments; due dates were advanced when the money actually arrived.
  Migrated records carry no PrevDueDate snapshot, so a later delete of
  one falls back to the recomputation rule (see ledger.go).

SEE ALSO:
  - store.go: LegacyStore, FindPaymentByKey
  - types.go: PaymentKey
*/
package billing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// MIGRATION COORDINATOR
// =============================================================================

// MigrationResult is the operator-facing audit of one migration run.
type MigrationResult struct {
	Success  bool
	Migrated int // newly copied into the flat ledger
	Skipped  int // already present (natural key matched)
	Failed   int // malformed, logged and left behind
	Message  string
}

// Migrator copies legacy nested payments into the flat ledger.
type Migrator struct {
	legacy LegacyStore
	store  TxStore
	log    *logrus.Logger
}

func NewMigrator(legacy LegacyStore, store TxStore, log *logrus.Logger) *Migrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Migrator{legacy: legacy, store: store, log: log}
}

// Migrate scans the full legacy set and copies what is missing.
// Safe to call repeatedly and safe to interrupt.
func (m *Migrator) Migrate(ctx context.Context) MigrationResult {
	var result MigrationResult

	docs, err := m.legacy.LegacyPayments(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("could not enumerate legacy payments: %v", err)
		return result
	}

	for _, doc := range docs {
		rec, err := convertLegacyPayment(doc)
		if err != nil {
			result.Failed++
			m.log.WithFields(logrus.Fields{
				"doc":    doc.DocID,
				"client": doc.ClientID,
				"unit":   doc.UnitID,
			}).Warnf("skipping malformed legacy payment: %v", err)
			continue
		}

		existing, err := m.store.FindPaymentByKey(ctx, KeyOf(rec))
		if err != nil {
			result.Failed++
			m.log.WithField("key", KeyOf(rec).String()).Warnf("existence check failed: %v", err)
			continue
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		if err := m.store.AppendPayment(ctx, rec); err != nil {
			result.Failed++
			m.log.WithField("key", KeyOf(rec).String()).Warnf("copy failed: %v", err)
			continue
		}
		result.Migrated++
	}

	result.Success = true
	result.Message = fmt.Sprintf("migrated %d, skipped %d already present, %d failed of %d legacy records",
		result.Migrated, result.Skipped, result.Failed, len(docs))
	m.log.WithFields(logrus.Fields{
		"migrated": result.Migrated,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
	}).Info("legacy payment migration complete")
	return result
}

// convertLegacyPayment validates and converts one raw legacy document.
// The natural-key fields must be present and well-formed; everything
// else coerces (amounts per the zero-coercion policy).
func convertLegacyPayment(doc LegacyPayment) (PaymentRecord, error) {
	if doc.UnitID == "" {
		return PaymentRecord{}, fmt.Errorf("missing unit id")
	}
	if doc.ClientID == "" {
		return PaymentRecord{}, fmt.Errorf("missing client id")
	}
	if doc.InvoiceNumber == "" {
		return PaymentRecord{}, fmt.Errorf("missing invoice number")
	}
	paidAt, ok := ParseDate(doc.PaidAt)
	if !ok {
		return PaymentRecord{}, fmt.Errorf("unparseable payment date %q", doc.PaidAt)
	}

	return PaymentRecord{
		ID:            PaymentID("mig-" + doc.DocID),
		UnitID:        doc.UnitID,
		ClientID:      doc.ClientID,
		Plate:         doc.Plate,
		InvoiceNumber: doc.InvoiceNumber,
		Amount:        ParseMoney(doc.Amount),
		PaidAt:        paidAt,
		Method:        doc.Method,
		RegisteredAt:  Today(),
	}, nil
}
