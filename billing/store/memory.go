// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/loggier/fleet-billing/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	clients  map[billing.ClientID]billing.Client
	units    map[billing.UnitID]billing.Unit
	payments map[billing.PaymentID]billing.PaymentRecord

	legacy []billing.LegacyPayment

	sweepRuns     []billing.SweepRun
	notifications []billing.NotificationEntry
}

func NewMemory() *Memory {
	return &Memory{
		clients:  make(map[billing.ClientID]billing.Client),
		units:    make(map[billing.UnitID]billing.Unit),
		payments: make(map[billing.PaymentID]billing.PaymentRecord),
	}
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) SaveClient(_ context.Context, c billing.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) GetClient(_ context.Context, id billing.ClientID) (*billing.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]billing.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteClient(_ context.Context, id billing.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
	return nil
}

// =============================================================================
// UNITS
// =============================================================================

func (m *Memory) SaveUnit(_ context.Context, u billing.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
	return nil
}

func (m *Memory) GetUnit(_ context.Context, id billing.UnitID) (*billing.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) ListUnits(_ context.Context) ([]billing.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Unit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListUnitsByClient(_ context.Context, clientID billing.ClientID) ([]billing.Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Unit
	for _, u := range m.units {
		if u.ClientID == clientID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteUnit(_ context.Context, id billing.UnitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.units, id)
	return nil
}

func (m *Memory) SetUnitDueDate(_ context.Context, id billing.UnitID, due billing.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return billing.ErrUnitNotFound
	}
	u.NextDueDate = due
	m.units[id] = u
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) AppendPayment(_ context.Context, p billing.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if billing.KeyOf(existing) == billing.KeyOf(p) {
			return billing.ErrDuplicatePaymentKey
		}
	}
	m.payments[p.ID] = p
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id billing.PaymentID) (*billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) DeletePayment(_ context.Context, id billing.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return billing.ErrPaymentNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) ListPayments(_ context.Context) ([]billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.PaymentRecord, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	sortPayments(out)
	return out, nil
}

func (m *Memory) ListPaymentsByClient(_ context.Context, clientID billing.ClientID) ([]billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.PaymentRecord
	for _, p := range m.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (m *Memory) ListPaymentsByUnit(_ context.Context, unitID billing.UnitID) ([]billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.PaymentRecord
	for _, p := range m.payments {
		if p.UnitID == unitID {
			out = append(out, p)
		}
	}
	sortPayments(out)
	return out, nil
}

func (m *Memory) FindPaymentByKey(_ context.Context, key billing.PaymentKey) (*billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if billing.KeyOf(p) == key {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindPaymentByInvoice(_ context.Context, clientID billing.ClientID, invoiceNumber string) (*billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.ClientID == clientID && p.InvoiceNumber == invoiceNumber {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func sortPayments(ps []billing.PaymentRecord) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].PaidAt.Equal(ps[j].PaidAt) {
			return ps[i].PaidAt.Before(ps[j].PaidAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

// =============================================================================
// LEGACY STORE (seedable for tests)
// =============================================================================

// SeedLegacy loads raw legacy documents for the migrator to consume.
func (m *Memory) SeedLegacy(docs []billing.LegacyPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy = append(m.legacy, docs...)
}

func (m *Memory) LegacyPayments(_ context.Context) ([]billing.LegacyPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.LegacyPayment, len(m.legacy))
	copy(out, m.legacy)
	return out, nil
}

// =============================================================================
// SWEEP STORE
// =============================================================================

func (m *Memory) LastSweepDate(_ context.Context) (billing.Date, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sweepRuns) == 0 {
		return billing.Date{}, false, nil
	}
	last := m.sweepRuns[0].Date
	for _, r := range m.sweepRuns[1:] {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return last, true, nil
}

func (m *Memory) RecordSweepRun(_ context.Context, run billing.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepRuns = append(m.sweepRuns, run)
	return nil
}

func (m *Memory) LogNotification(_ context.Context, entry billing.NotificationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, entry)
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, unitID billing.UnitID) ([]billing.NotificationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.NotificationEntry
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UnitID == unitID {
			out = append(out, m.notifications[i])
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot and
// rollback on error. Serialized so concurrent scopes can't interleave.
func (tm *TxMemory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		clients:  make(map[billing.ClientID]billing.Client, len(tm.clients)),
		units:    make(map[billing.UnitID]billing.Unit, len(tm.units)),
		payments: make(map[billing.PaymentID]billing.PaymentRecord, len(tm.payments)),
	}
	for k, v := range tm.clients {
		s.clients[k] = v
	}
	for k, v := range tm.units {
		s.units[k] = v
	}
	for k, v := range tm.payments {
		s.payments[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.clients = s.clients
	tm.units = s.units
	tm.payments = s.payments
}

type memorySnapshot struct {
	clients  map[billing.ClientID]billing.Client
	units    map[billing.UnitID]billing.Unit
	payments map[billing.PaymentID]billing.PaymentRecord
}
