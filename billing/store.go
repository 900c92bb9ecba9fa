/*
store.go - Persistence interfaces for the billing engine

PURPOSE:
  Defines the interface between billing logic and the document store.
  The engine never talks to a driver directly; everything goes through
  these interfaces so any backing store (document, relational, KV) can
  implement them.

KEY INTERFACES:
  Store:       Flat collections (clients, units, payments)
  TxStore:     Scoped transactions for paired writes
  LegacyStore: Read-only access to the nested legacy payment layout
  SweepStore:  Sweep markers and the notification audit log

TRANSACTION BOUNDARY:
  Every ledger mutation pairs a payment write with a unit due-date write.
  TxStore.WithTx wraps both in one atomic scope: acquire, perform both
  writes, release on every exit path. The Unit and the ledger never
  observe a state where one was updated and the other was not.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production store
  - billing/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Uses Store + TxStore
  - migration.go: Uses LegacyStore
  - sweep.go: Uses SweepStore
*/
package billing

import "context"

// =============================================================================
// STORE - Flat collections
// =============================================================================

// Store persists the flat collections. Get methods return nil (not an
// error) for missing records; callers decide whether absence is an error.
type Store interface {
	// Clients
	SaveClient(ctx context.Context, c Client) error
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	DeleteClient(ctx context.Context, id ClientID) error

	// Units (flat, each tagged with its ClientID)
	SaveUnit(ctx context.Context, u Unit) error
	GetUnit(ctx context.Context, id UnitID) (*Unit, error)
	ListUnits(ctx context.Context) ([]Unit, error)
	ListUnitsByClient(ctx context.Context, clientID ClientID) ([]Unit, error)
	DeleteUnit(ctx context.Context, id UnitID) error
	SetUnitDueDate(ctx context.Context, id UnitID, due Date) error

	// Payments (flat, tagged with ClientID + UnitID)
	AppendPayment(ctx context.Context, p PaymentRecord) error
	GetPayment(ctx context.Context, id PaymentID) (*PaymentRecord, error)
	DeletePayment(ctx context.Context, id PaymentID) error
	ListPayments(ctx context.Context) ([]PaymentRecord, error)
	ListPaymentsByClient(ctx context.Context, clientID ClientID) ([]PaymentRecord, error)
	ListPaymentsByUnit(ctx context.Context, unitID UnitID) ([]PaymentRecord, error)

	// FindPaymentByKey looks up a payment by its natural key.
	// This is the existence check that makes migration idempotent.
	FindPaymentByKey(ctx context.Context, key PaymentKey) (*PaymentRecord, error)

	// FindPaymentByInvoice enforces per-client invoice uniqueness.
	FindPaymentByInvoice(ctx context.Context, clientID ClientID, invoiceNumber string) (*PaymentRecord, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic paired writes
// =============================================================================

// TxStore wraps Store with scoped transactions.
// If fn returns an error the scope is rolled back; nothing it wrote is
// visible. If fn returns nil the scope is committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// LEGACY STORE - Nested payment layout, read-only
// =============================================================================

// LegacyStore exposes the legacy nested clients/{id}/units/{id}/payments
// layout. Consumed only by the migration coordinator; nothing else in the
// engine may read it.
type LegacyStore interface {
	// LegacyPayments enumerates every nested payment document across all
	// units. Records are returned raw; the coordinator validates them.
	LegacyPayments(ctx context.Context) ([]LegacyPayment, error)
}

// =============================================================================
// SWEEP STORE - Daily markers and notification audit
// =============================================================================

// SweepStore records sweep runs and sent notifications.
type SweepStore interface {
	// LastSweepDate returns the date of the most recent completed sweep.
	// ok is false when no sweep has ever run.
	LastSweepDate(ctx context.Context) (date Date, ok bool, err error)

	// RecordSweepRun persists the outcome of a sweep. Writing a run for a
	// date marks that date as swept.
	RecordSweepRun(ctx context.Context, run SweepRun) error

	// LogNotification appends to the notification audit log.
	LogNotification(ctx context.Context, entry NotificationEntry) error

	// ListNotifications returns the audit log for a unit, newest first.
	ListNotifications(ctx context.Context, unitID UnitID) ([]NotificationEntry, error)
}
