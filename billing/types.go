/*
Package billing provides the core fleet billing engine.

PURPOSE:
  This package contains the types and algorithms that drive the billing
  lifecycle of a tracked fleet: contract cost derivation, payment status
  classification, the append-mostly payment ledger, the legacy data
  migration, and the daily reminder sweep.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal monetary amount (never float64)
  - Client: The billed account, owner of one or more Units
  - Unit: A contracted vehicle/device line with its own due date
  - PaymentRecord: An immutable ledger entry for one received payment
  - PaymentKey: The natural identity used for migration deduplication

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing client/unit IDs
  3. Coercion over panic: Malformed numeric input becomes zero, by policy
  4. Derived status: Client status is computed, never stored as truth

USAGE:
  cost := billing.MonthlyCost(unit)
  cls := billing.Classify(unit, billing.Today())

SEE ALSO:
  - contract.go: Monthly cost and due-date derivation
  - status.go: Status classification and client rollups
  - ledger.go: Payment recording with compensating deletes
*/
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal monetary amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

// ParseMoney converts a string to Money. Malformed input coerces to zero;
// this is deliberate policy, not leniency. Imported legacy data carries
// blank and garbage amounts and the engine must keep going.
func ParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Div(d decimal.Decimal) Money { return Money{Value: m.Value.Div(d)} }
func (m Money) Mul(d decimal.Decimal) Money { return Money{Value: m.Value.Mul(d)} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) String() string             { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type UnitID string
type PaymentID string

// =============================================================================
// CONTRACT TYPES AND PLAN TIERS
// =============================================================================

// ContractType determines how a unit's monthly cost is derived.
// Wire values match the legacy system's Spanish field values.
type ContractType string

const (
	// ContractFlatFee amortizes a fixed total cost over a fixed term.
	ContractFlatFee ContractType = "con_contrato"
	// ContractMetered charges a fixed recurring monthly cost, no term.
	ContractMetered ContractType = "sin_contrato"
)

// PlanTier is the service tier assigned to a unit.
type PlanTier string

const (
	TierBasico      PlanTier = "basico"
	TierEstandar    PlanTier = "estandar"
	TierAvanzado    PlanTier = "avanzado"
	TierPremium     PlanTier = "premium"
	TierFlota       PlanTier = "flota"
	TierCorporativo PlanTier = "corporativo"
)

// PlanTiers lists all valid tiers, in ascending service order.
func PlanTiers() []PlanTier {
	return []PlanTier{TierBasico, TierEstandar, TierAvanzado, TierPremium, TierFlota, TierCorporativo}
}

// =============================================================================
// STATUS ENUMS
// =============================================================================

// UnitStatus is the classification of a single unit.
type UnitStatus string

const (
	UnitCurrent   UnitStatus = "current"
	UnitOverdue   UnitStatus = "overdue"
	UnitWithdrawn UnitStatus = "withdrawn"
)

// ClientStatus is the rollup across a client's units.
// Wire values match the legacy system's Spanish estados.
type ClientStatus string

const (
	ClientCurrent   ClientStatus = "al_dia"
	ClientOwing     ClientStatus = "adeuda"
	ClientWithdrawn ClientStatus = "retirado"
)

// =============================================================================
// CLIENT - The billed account
// =============================================================================

type Client struct {
	ID    ClientID
	Name  string
	Phone string // WhatsApp recipient for reminders

	// Status and Debt are derived from the client's units and ledger.
	// They are recomputed on read, never treated as authoritative.
	Status ClientStatus
	Debt   Money
}

// =============================================================================
// UNIT - A contracted vehicle/device line
// =============================================================================

type Unit struct {
	ID       UnitID
	ClientID ClientID
	Plate    string

	ContractType ContractType
	// Flat-fee fields
	TotalCost  Money
	TermMonths int
	// Metered field
	MonthlyCost Money

	PlanTier    PlanTier
	NextDueDate Date

	// Withdrawn is a manually-set terminal state. It is never derived
	// from dates and excludes the unit from reminder processing.
	Withdrawn bool

	// Device telemetry, co-located but inert for billing.
	IMEI   string
	Active bool
}

// =============================================================================
// PAYMENT RECORD - Immutable ledger entry
// =============================================================================

type PaymentRecord struct {
	ID            PaymentID
	UnitID        UnitID
	ClientID      ClientID // owner tag, used for fast filtering
	Plate         string   // denormalized for display
	InvoiceNumber string
	Amount        Money
	PaidAt        Date
	Method        string

	// PrevDueDate is the unit's due date at the instant this payment was
	// registered. Deleting the payment restores it. Migrated records may
	// not carry one; the ledger then falls back to recomputation.
	PrevDueDate Date

	RegisteredAt Date
}

// =============================================================================
// PAYMENT KEY - Natural identity for migration dedup
// =============================================================================

// PaymentKey identifies a payment by content rather than by document ID.
// Two legacy documents with the same key are the same payment; this is
// what makes the migration re-runnable without duplicating history.
type PaymentKey struct {
	UnitID        UnitID
	InvoiceNumber string
	PaidAt        Date
}

func (k PaymentKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.UnitID, k.InvoiceNumber, k.PaidAt)
}

// KeyOf returns the natural key of a payment record.
func KeyOf(p PaymentRecord) PaymentKey {
	return PaymentKey{UnitID: p.UnitID, InvoiceNumber: p.InvoiceNumber, PaidAt: p.PaidAt}
}

// =============================================================================
// LEGACY PAYMENT - Raw document from the nested layout
// =============================================================================

// LegacyPayment is a payment document as stored in the legacy nested
// clients/{id}/units/{id}/payments/{id} layout. Fields are raw strings
// because legacy data is not trusted to be well-formed.
type LegacyPayment struct {
	DocID         string
	ClientID      ClientID
	UnitID        UnitID
	Plate         string
	InvoiceNumber string
	Amount        string
	PaidAt        string // expected YYYY-MM-DD, frequently not
	Method        string
}
