/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (billing.Store, billing.TxStore,
  billing.LegacyStore, billing.SweepStore) using SQLite. In production
  the same patterns apply to PostgreSQL - only minor dialect differences.

KEY TABLES:
  clients:          Billed accounts
  units:            Contracted vehicle/device lines, tagged with client_id
  payments:         Flat payment ledger, tagged with client_id + unit_id
  legacy_payments:  The nested legacy layout, flattened to rows for import
  sweep_runs:       One row per completed daily sweep (the per-day marker)
  notifications:    Audit log of sent/failed notices

INDEXES:
  - idx_payments_natural_key: UNIQUE(unit_id, invoice_number, paid_at),
    the migration dedup identity enforced at the database level
  - idx_payments_client_invoice: UNIQUE(client_id, invoice_number),
    per-client invoice uniqueness backstop
  - idx_payments_client / idx_payments_unit: list queries (hot path)

TRANSACTIONS:
  WithTx wraps paired writes (payment + unit due date) in one database
  transaction. Rollback on every error path; the ledger and the unit
  never observe half of a mutation.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers
  don't block, single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/fleet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  ledger := billing.NewLedger(st)

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loggier/fleet-billing/billing"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes WithTx scopes and direct writes
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives per connection; cap the pool at one so
	// every query sees the migrated schema.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Billed accounts
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	-- Contracted lines, flat and tagged with their owner
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		plate TEXT,
		contract_type TEXT NOT NULL,
		total_cost TEXT NOT NULL DEFAULT '0',
		term_months INTEGER NOT NULL DEFAULT 0,
		monthly_cost TEXT NOT NULL DEFAULT '0',
		plan_tier TEXT,
		next_due_date TEXT,
		withdrawn BOOLEAN NOT NULL DEFAULT FALSE,
		imei TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_client ON units(client_id);
	CREATE INDEX IF NOT EXISTS idx_units_due_date ON units(next_due_date);

	-- Flat payment ledger
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		plate TEXT,
		invoice_number TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		method TEXT,
		prev_due_date TEXT,
		registered_at TEXT NOT NULL
	);

	-- CRITICAL: the migration dedup identity. Re-running the import can
	-- never create a second row with the same natural key.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_natural_key
		ON payments(unit_id, invoice_number, paid_at);

	-- Invoice numbers are unique per client, not globally.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_client_invoice
		ON payments(client_id, invoice_number);

	CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id);
	CREATE INDEX IF NOT EXISTS idx_payments_unit ON payments(unit_id);

	-- Legacy nested layout, flattened for the migration to consume
	CREATE TABLE IF NOT EXISTS legacy_payments (
		doc_id TEXT PRIMARY KEY,
		client_id TEXT,
		unit_id TEXT,
		plate TEXT,
		invoice_number TEXT,
		amount TEXT,
		paid_at TEXT,
		method TEXT
	);

	-- One row per completed sweep; the per-day idempotency marker
	CREATE TABLE IF NOT EXISTS sweep_runs (
		sweep_date TEXT PRIMARY KEY,
		processed INTEGER NOT NULL DEFAULT 0,
		sent INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT NOT NULL
	);

	-- Notification audit log
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		template TEXT NOT NULL,
		sent_on TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_unit ON notifications(unit_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c billing.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveClient(ctx, s.db, c)
}

func saveClient(ctx context.Context, db execer, c billing.Client) error {
	query := `
		INSERT INTO clients (id, name, phone, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetClient(ctx context.Context, id billing.ClientID) (*billing.Client, error) {
	var (
		c     billing.Client
		phone sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &phone)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]billing.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, phone FROM clients ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []billing.Client
	for rows.Next() {
		var (
			c     billing.Client
			phone sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &phone); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) DeleteClient(ctx context.Context, id billing.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	return err
}

// =============================================================================
// UNITS
// =============================================================================

func (s *Store) SaveUnit(ctx context.Context, u billing.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUnit(ctx, s.db, u)
}

func saveUnit(ctx context.Context, db execer, u billing.Unit) error {
	query := `
		INSERT INTO units
		(id, client_id, plate, contract_type, total_cost, term_months,
		 monthly_cost, plan_tier, next_due_date, withdrawn, imei, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			plate = excluded.plate,
			contract_type = excluded.contract_type,
			total_cost = excluded.total_cost,
			term_months = excluded.term_months,
			monthly_cost = excluded.monthly_cost,
			plan_tier = excluded.plan_tier,
			next_due_date = excluded.next_due_date,
			withdrawn = excluded.withdrawn,
			imei = excluded.imei,
			active = excluded.active
	`
	_, err := db.ExecContext(ctx, query,
		u.ID, u.ClientID, u.Plate, u.ContractType,
		u.TotalCost.Value.String(), u.TermMonths, u.MonthlyCost.Value.String(),
		u.PlanTier, formatDate(u.NextDueDate), u.Withdrawn, u.IMEI, u.Active,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

const unitColumns = `id, client_id, plate, contract_type, total_cost, term_months,
	monthly_cost, plan_tier, next_due_date, withdrawn, imei, active`

func (s *Store) GetUnit(ctx context.Context, id billing.UnitID) (*billing.Unit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE id = ?", id)

	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUnits(ctx context.Context) ([]billing.Unit, error) {
	return s.queryUnits(ctx, "SELECT "+unitColumns+" FROM units ORDER BY id")
}

func (s *Store) ListUnitsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Unit, error) {
	return s.queryUnits(ctx,
		"SELECT "+unitColumns+" FROM units WHERE client_id = ? ORDER BY id", clientID)
}

func (s *Store) queryUnits(ctx context.Context, query string, args ...any) ([]billing.Unit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []billing.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (billing.Unit, error) {
	var (
		u           billing.Unit
		plate       sql.NullString
		totalCost   string
		monthlyCost string
		planTier    sql.NullString
		nextDue     sql.NullString
		imei        sql.NullString
	)

	err := row.Scan(
		&u.ID, &u.ClientID, &plate, &u.ContractType, &totalCost, &u.TermMonths,
		&monthlyCost, &planTier, &nextDue, &u.Withdrawn, &imei, &u.Active,
	)
	if err != nil {
		return u, err
	}

	u.Plate = plate.String
	u.TotalCost = billing.ParseMoney(totalCost)
	u.MonthlyCost = billing.ParseMoney(monthlyCost)
	u.PlanTier = billing.PlanTier(planTier.String)
	u.NextDueDate = parseDate(nextDue.String)
	u.IMEI = imei.String
	return u, nil
}

func (s *Store) DeleteUnit(ctx context.Context, id billing.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteUnit(ctx, s.db, id)
}

func deleteUnit(ctx context.Context, db execer, id billing.UnitID) error {
	_, err := db.ExecContext(ctx, "DELETE FROM units WHERE id = ?", id)
	return err
}

func (s *Store) SetUnitDueDate(ctx context.Context, id billing.UnitID, due billing.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setUnitDueDate(ctx, s.db, id, due)
}

func setUnitDueDate(ctx context.Context, db execer, id billing.UnitID, due billing.Date) error {
	res, err := db.ExecContext(ctx,
		"UPDATE units SET next_due_date = ? WHERE id = ?", formatDate(due), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrUnitNotFound
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) AppendPayment(ctx context.Context, p billing.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendPayment(ctx, s.db, p)
}

func appendPayment(ctx context.Context, db execer, p billing.PaymentRecord) error {
	query := `
		INSERT INTO payments
		(id, unit_id, client_id, plate, invoice_number, amount, paid_at,
		 method, prev_due_date, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID, p.UnitID, p.ClientID, p.Plate, p.InvoiceNumber,
		p.Amount.Value.String(), formatDate(p.PaidAt), p.Method,
		formatDate(p.PrevDueDate), formatDate(p.RegisteredAt))

	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "client_id, invoice_number") ||
				strings.Contains(err.Error(), "payments.client_id") {
				return billing.ErrDuplicateInvoice
			}
			return billing.ErrDuplicatePaymentKey
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, unit_id, client_id, plate, invoice_number, amount,
	paid_at, method, prev_due_date, registered_at`

func (s *Store) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, db execer, id billing.PaymentID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context) ([]billing.PaymentRecord, error) {
	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments ORDER BY paid_at ASC, id ASC")
}

func (s *Store) ListPaymentsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.PaymentRecord, error) {
	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE client_id = ? ORDER BY paid_at ASC, id ASC",
		clientID)
}

func (s *Store) ListPaymentsByUnit(ctx context.Context, unitID billing.UnitID) ([]billing.PaymentRecord, error) {
	return s.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE unit_id = ? ORDER BY paid_at ASC, id ASC",
		unitID)
}

func (s *Store) FindPaymentByKey(ctx context.Context, key billing.PaymentKey) (*billing.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE unit_id = ? AND invoice_number = ? AND paid_at = ?",
		key.UnitID, key.InvoiceNumber, formatDate(key.PaidAt))

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindPaymentByInvoice(ctx context.Context, clientID billing.ClientID, invoiceNumber string) (*billing.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE client_id = ? AND invoice_number = ?",
		clientID, invoiceNumber)

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]billing.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (billing.PaymentRecord, error) {
	var (
		p            billing.PaymentRecord
		plate        sql.NullString
		amount       string
		paidAt       string
		method       sql.NullString
		prevDue      sql.NullString
		registeredAt string
	)

	err := row.Scan(
		&p.ID, &p.UnitID, &p.ClientID, &plate, &p.InvoiceNumber,
		&amount, &paidAt, &method, &prevDue, &registeredAt,
	)
	if err != nil {
		return p, err
	}

	p.Plate = plate.String
	p.Amount = billing.ParseMoney(amount)
	p.PaidAt = parseDate(paidAt)
	p.Method = method.String
	p.PrevDueDate = parseDate(prevDue.String)
	p.RegisteredAt = parseDate(registeredAt)
	return p, nil
}

// =============================================================================
// TRANSACTIONAL STORE (billing.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes everything through the open transaction so a scope
// observes its own writes.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveClient(ctx context.Context, c billing.Client) error {
	return saveClient(ctx, ts.tx, c)
}

func (ts *txStore) GetClient(ctx context.Context, id billing.ClientID) (*billing.Client, error) {
	var (
		c     billing.Client
		phone sql.NullString
	)
	err := ts.tx.QueryRowContext(ctx,
		"SELECT id, name, phone FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Phone = phone.String
	return &c, nil
}

func (ts *txStore) ListClients(ctx context.Context) ([]billing.Client, error) {
	return ts.queryList(ctx, "SELECT id, name, phone FROM clients ORDER BY name")
}

func (ts *txStore) queryList(ctx context.Context, query string) ([]billing.Client, error) {
	rows, err := ts.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []billing.Client
	for rows.Next() {
		var (
			c     billing.Client
			phone sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &phone); err != nil {
			return nil, err
		}
		c.Phone = phone.String
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (ts *txStore) DeleteClient(ctx context.Context, id billing.ClientID) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	return err
}

func (ts *txStore) SaveUnit(ctx context.Context, u billing.Unit) error {
	return saveUnit(ctx, ts.tx, u)
}

func (ts *txStore) GetUnit(ctx context.Context, id billing.UnitID) (*billing.Unit, error) {
	row := ts.tx.QueryRowContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE id = ?", id)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (ts *txStore) ListUnits(ctx context.Context) ([]billing.Unit, error) {
	return ts.queryUnits(ctx, "SELECT "+unitColumns+" FROM units ORDER BY id")
}

func (ts *txStore) ListUnitsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.Unit, error) {
	return ts.queryUnits(ctx,
		"SELECT "+unitColumns+" FROM units WHERE client_id = ? ORDER BY id", clientID)
}

func (ts *txStore) queryUnits(ctx context.Context, query string, args ...any) ([]billing.Unit, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []billing.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (ts *txStore) DeleteUnit(ctx context.Context, id billing.UnitID) error {
	return deleteUnit(ctx, ts.tx, id)
}

func (ts *txStore) SetUnitDueDate(ctx context.Context, id billing.UnitID, due billing.Date) error {
	return setUnitDueDate(ctx, ts.tx, id, due)
}

func (ts *txStore) AppendPayment(ctx context.Context, p billing.PaymentRecord) error {
	return appendPayment(ctx, ts.tx, p)
}

func (ts *txStore) GetPayment(ctx context.Context, id billing.PaymentID) (*billing.PaymentRecord, error) {
	row := ts.tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (ts *txStore) DeletePayment(ctx context.Context, id billing.PaymentID) error {
	return deletePayment(ctx, ts.tx, id)
}

func (ts *txStore) ListPayments(ctx context.Context) ([]billing.PaymentRecord, error) {
	return ts.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments ORDER BY paid_at ASC, id ASC")
}

func (ts *txStore) ListPaymentsByClient(ctx context.Context, clientID billing.ClientID) ([]billing.PaymentRecord, error) {
	return ts.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE client_id = ? ORDER BY paid_at ASC, id ASC",
		clientID)
}

func (ts *txStore) ListPaymentsByUnit(ctx context.Context, unitID billing.UnitID) ([]billing.PaymentRecord, error) {
	return ts.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE unit_id = ? ORDER BY paid_at ASC, id ASC",
		unitID)
}

func (ts *txStore) queryPayments(ctx context.Context, query string, args ...any) ([]billing.PaymentRecord, error) {
	rows, err := ts.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []billing.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (ts *txStore) FindPaymentByKey(ctx context.Context, key billing.PaymentKey) (*billing.PaymentRecord, error) {
	row := ts.tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE unit_id = ? AND invoice_number = ? AND paid_at = ?",
		key.UnitID, key.InvoiceNumber, formatDate(key.PaidAt))
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (ts *txStore) FindPaymentByInvoice(ctx context.Context, clientID billing.ClientID, invoiceNumber string) (*billing.PaymentRecord, error) {
	row := ts.tx.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE client_id = ? AND invoice_number = ?",
		clientID, invoiceNumber)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// LEGACY STORE (billing.LegacyStore interface)
// =============================================================================

// SeedLegacy inserts raw legacy documents. Used by the import tooling
// that flattens the nested export into rows, and by tests.
func (s *Store) SeedLegacy(ctx context.Context, docs []billing.LegacyPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO legacy_payments
		(doc_id, client_id, unit_id, plate, invoice_number, amount, paid_at, method)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO NOTHING
	`
	for _, d := range docs {
		_, err := s.db.ExecContext(ctx, query,
			d.DocID, d.ClientID, d.UnitID, d.Plate,
			d.InvoiceNumber, d.Amount, d.PaidAt, d.Method)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LegacyPayments(ctx context.Context) ([]billing.LegacyPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, client_id, unit_id, plate, invoice_number, amount, paid_at, method
		FROM legacy_payments ORDER BY doc_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []billing.LegacyPayment
	for rows.Next() {
		var (
			d        billing.LegacyPayment
			clientID sql.NullString
			unitID   sql.NullString
			plate    sql.NullString
			invoice  sql.NullString
			amount   sql.NullString
			paidAt   sql.NullString
			method   sql.NullString
		)
		if err := rows.Scan(&d.DocID, &clientID, &unitID, &plate, &invoice, &amount, &paidAt, &method); err != nil {
			return nil, err
		}
		d.ClientID = billing.ClientID(clientID.String)
		d.UnitID = billing.UnitID(unitID.String)
		d.Plate = plate.String
		d.InvoiceNumber = invoice.String
		d.Amount = amount.String
		d.PaidAt = paidAt.String
		d.Method = method.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// =============================================================================
// SWEEP STORE (billing.SweepStore interface)
// =============================================================================

func (s *Store) LastSweepDate(ctx context.Context) (billing.Date, bool, error) {
	var dateStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT sweep_date FROM sweep_runs ORDER BY sweep_date DESC LIMIT 1",
	).Scan(&dateStr)

	if err == sql.ErrNoRows {
		return billing.Date{}, false, nil
	}
	if err != nil {
		return billing.Date{}, false, err
	}

	d, ok := billing.ParseDate(dateStr)
	if !ok {
		return billing.Date{}, false, fmt.Errorf("corrupt sweep marker: %q", dateStr)
	}
	return d, true, nil
}

func (s *Store) RecordSweepRun(ctx context.Context, run billing.SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sweep_runs (sweep_date, processed, sent, skipped, failed, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sweep_date) DO UPDATE SET
			processed = excluded.processed,
			sent = excluded.sent,
			skipped = excluded.skipped,
			failed = excluded.failed,
			completed_at = excluded.completed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		formatDate(run.Date), run.Processed, run.Sent, run.Skipped, run.Failed,
		run.CompletedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) LogNotification(ctx context.Context, entry billing.NotificationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO notifications (id, unit_id, client_id, template, sent_on, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.UnitID, entry.ClientID, entry.Template,
		formatDate(entry.SentOn), entry.Success, entry.Error,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) ListNotifications(ctx context.Context, unitID billing.UnitID) ([]billing.NotificationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, unit_id, client_id, template, sent_on, success, error
		FROM notifications WHERE unit_id = ? ORDER BY sent_on DESC, id DESC`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []billing.NotificationEntry
	for rows.Next() {
		var (
			e       billing.NotificationEntry
			sentOn  string
			errText sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UnitID, &e.ClientID, &e.Template, &sentOn, &e.Success, &errText); err != nil {
			return nil, err
		}
		e.SentOn = parseDate(sentOn)
		e.Error = errText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatDate(d billing.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseDate(s string) billing.Date {
	d, _ := billing.ParseDate(s)
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
