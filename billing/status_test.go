package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/loggier/fleet-billing/billing"
)

var statusToday = billing.NewDate(2026, time.August, 20)

// =============================================================================
// UNIT CLASSIFICATION
// =============================================================================

func TestClassify_DueTodayIsCurrent(t *testing.T) {
	// Due date equal to today is not overdue yet.
	u := billing.Unit{NextDueDate: statusToday}

	cls := billing.Classify(u, statusToday)
	assert.Equal(t, billing.UnitCurrent, cls.Status)
	assert.Equal(t, 0, cls.DaysUntilDue)
}

func TestClassify_FutureDueDateIsCurrent(t *testing.T) {
	u := billing.Unit{NextDueDate: statusToday.AddDays(5)}

	cls := billing.Classify(u, statusToday)
	assert.Equal(t, billing.UnitCurrent, cls.Status)
	assert.Equal(t, 5, cls.DaysUntilDue)
}

func TestClassify_PastDueDateIsOverdue(t *testing.T) {
	u := billing.Unit{NextDueDate: statusToday.AddDays(-3)}

	cls := billing.Classify(u, statusToday)
	assert.Equal(t, billing.UnitOverdue, cls.Status)
	assert.Equal(t, 3, cls.DaysOverdue)
}

func TestClassify_WithdrawnWinsOverDates(t *testing.T) {
	// Withdrawn is manual and terminal; even a long-overdue unit reports
	// withdrawn once the flag is set.
	u := billing.Unit{NextDueDate: statusToday.AddDays(-90), Withdrawn: true}

	cls := billing.Classify(u, statusToday)
	assert.Equal(t, billing.UnitWithdrawn, cls.Status)
	assert.Equal(t, 0, cls.DaysOverdue)
}

// =============================================================================
// CLIENT ROLLUP
// =============================================================================

func metered(due billing.Date, monthly int) billing.Unit {
	return billing.Unit{
		ContractType: billing.ContractMetered,
		MonthlyCost:  billing.NewMoneyFromInt(monthly),
		NextDueDate:  due,
	}
}

func TestRollup_AnyOverdueUnitMakesClientOwing(t *testing.T) {
	// GIVEN: One current unit and one overdue unit at 30/month
	// WHEN: Rolling up
	// THEN: Client owes, with debt equal to the overdue unit's monthly cost

	units := []billing.Unit{
		metered(statusToday.AddDays(10), 25),
		metered(statusToday.AddDays(-1), 30),
	}

	r := billing.Rollup(units, statusToday)
	assert.Equal(t, billing.ClientOwing, r.Status)
	assert.Equal(t, 1, r.OverdueUnits)
	assert.Equal(t, "30.00", r.Debt.String())
}

func TestRollup_DebtSumsEveryOverdueUnitOnce(t *testing.T) {
	units := []billing.Unit{
		metered(statusToday.AddDays(-60), 30), // months behind still counts once
		metered(statusToday.AddDays(-2), 45),
	}

	r := billing.Rollup(units, statusToday)
	assert.Equal(t, 2, r.OverdueUnits)
	assert.Equal(t, "75.00", r.Debt.String())
}

func TestRollup_AllWithdrawnMeansClientWithdrawn(t *testing.T) {
	units := []billing.Unit{
		{Withdrawn: true},
		{Withdrawn: true},
	}

	r := billing.Rollup(units, statusToday)
	assert.Equal(t, billing.ClientWithdrawn, r.Status)
	assert.True(t, r.Debt.IsZero())
}

func TestRollup_MixedWithdrawnAndCurrentIsCurrent(t *testing.T) {
	units := []billing.Unit{
		{Withdrawn: true},
		metered(statusToday.AddDays(3), 25),
	}

	r := billing.Rollup(units, statusToday)
	assert.Equal(t, billing.ClientCurrent, r.Status)
}

func TestRollup_NoUnitsIsCurrent(t *testing.T) {
	r := billing.Rollup(nil, statusToday)
	assert.Equal(t, billing.ClientCurrent, r.Status)
	assert.True(t, r.Debt.IsZero())
}

// =============================================================================
// FLEET EXPOSURE
// =============================================================================

func TestExposure_SumsOverdueAcrossOwners(t *testing.T) {
	units := []billing.Unit{
		metered(statusToday.AddDays(-1), 30),
		metered(statusToday.AddDays(5), 99),
		metered(statusToday.AddDays(-10), 20),
		{Withdrawn: true, NextDueDate: statusToday.AddDays(-100)},
	}

	assert.Equal(t, "50.00", billing.Exposure(units, statusToday).String())
}
