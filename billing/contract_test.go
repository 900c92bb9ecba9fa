package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loggier/fleet-billing/billing"
)

// =============================================================================
// MONTHLY COST DERIVATION
// =============================================================================

func TestMonthlyCost_FlatFee_AmortizesOverTerm(t *testing.T) {
	// GIVEN: A flat-fee contract of 1200.00 over 12 months
	// WHEN: Deriving the monthly cost
	// THEN: 100.00 per month

	u := billing.Unit{
		ContractType: billing.ContractFlatFee,
		TotalCost:    billing.NewMoneyFromInt(1200),
		TermMonths:   12,
	}

	assert.Equal(t, "100.00", billing.MonthlyCost(u).String())
}

func TestMonthlyCost_FlatFee_ZeroTermTreatedAsOneMonth(t *testing.T) {
	// GIVEN: A flat-fee contract with a blank term (legacy single-payment)
	// WHEN: Deriving the monthly cost
	// THEN: The whole cost lands in one month, no division by zero

	u := billing.Unit{
		ContractType: billing.ContractFlatFee,
		TotalCost:    billing.NewMoneyFromInt(350),
		TermMonths:   0,
	}

	assert.Equal(t, "350.00", billing.MonthlyCost(u).String())
}

func TestMonthlyCost_Metered_UsesRecurringCharge(t *testing.T) {
	u := billing.Unit{
		ContractType: billing.ContractMetered,
		MonthlyCost:  billing.NewMoney(29.90),
	}

	assert.Equal(t, "29.90", billing.MonthlyCost(u).String())
}

func TestMonthlyCost_UnknownContractType_BillsNothing(t *testing.T) {
	u := billing.Unit{
		ContractType: billing.ContractType("mystery"),
		TotalCost:    billing.NewMoneyFromInt(500),
		MonthlyCost:  billing.NewMoneyFromInt(50),
	}

	assert.True(t, billing.MonthlyCost(u).IsZero())
}

// =============================================================================
// MONEY COERCION POLICY
// =============================================================================

func TestParseMoney_MalformedInputCoercesToZero(t *testing.T) {
	// Legacy data carries blanks and garbage; both become zero, never an
	// error.
	assert.True(t, billing.ParseMoney("").IsZero())
	assert.True(t, billing.ParseMoney("no-es-numero").IsZero())
	assert.Equal(t, "350.50", billing.ParseMoney("350.50").String())
}

// =============================================================================
// DUE DATE DERIVATION
// =============================================================================

func TestNextDueAfter_OneMonthPastPayment(t *testing.T) {
	paidAt := billing.NewDate(2026, time.March, 15)
	next := billing.NextDueAfter(billing.Unit{}, paidAt)

	assert.Equal(t, "2026-04-15", next.String())
}

func TestRecomputeDueDate_WithRemainingHistory(t *testing.T) {
	// GIVEN: Two remaining payments, the latest on May 10
	// WHEN: Recomputing after a delete
	// THEN: Due one month past the latest remaining payment

	remaining := []billing.PaymentRecord{
		{PaidAt: billing.NewDate(2026, time.April, 10)},
		{PaidAt: billing.NewDate(2026, time.May, 10)},
	}
	deleted := billing.PaymentRecord{PaidAt: billing.NewDate(2026, time.June, 10)}

	due := billing.RecomputeDueDate(billing.Unit{}, remaining, deleted)
	assert.Equal(t, "2026-06-10", due.String())
}

func TestRecomputeDueDate_NoRemainingHistory_RevertsToDeletedDate(t *testing.T) {
	// With no other payments the unit was unpaid as of the deleted
	// payment's own date.
	deleted := billing.PaymentRecord{PaidAt: billing.NewDate(2026, time.June, 10)}

	due := billing.RecomputeDueDate(billing.Unit{}, nil, deleted)
	assert.Equal(t, "2026-06-10", due.String())
}
