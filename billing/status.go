/*
status.go - Payment status classification

PURPOSE:
  Classifies a unit into {current, overdue, withdrawn} from its due date
  and computes the client-level rollup. Pure functions over snapshots;
  storage never enters this file.

POLICY:
  withdrawn: explicit, manually-set terminal state. Never date-derived.
             Once set, the unit is excluded from reminder processing.
  current:   nextDueDate >= today
  overdue:   nextDueDate < today

ROLLUP:
  Worst unit status wins at the client level. Any overdue unit makes the
  client "adeuda". A client whose units are all withdrawn is "retirado".

SEE ALSO:
  - contract.go: Monthly cost used for exposure
  - sweep.go: Reminder bucketing built on the same due-date comparisons
*/
package billing

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classification is the derived billing state of one unit.
type Classification struct {
	Status       UnitStatus
	DaysUntilDue int // 0 when overdue or withdrawn
	DaysOverdue  int // 0 when current or withdrawn
}

// Classify derives a unit's status as of today.
func Classify(u Unit, today Date) Classification {
	if u.Withdrawn {
		return Classification{Status: UnitWithdrawn}
	}
	if u.NextDueDate.Before(today) {
		return Classification{
			Status:      UnitOverdue,
			DaysOverdue: DaysBetween(u.NextDueDate, today),
		}
	}
	return Classification{
		Status:       UnitCurrent,
		DaysUntilDue: DaysBetween(today, u.NextDueDate),
	}
}

// =============================================================================
// CLIENT ROLLUP
// =============================================================================

// ClientRollup aggregates a client's units into the client-level view.
type ClientRollup struct {
	Status       ClientStatus
	OverdueUnits int
	// Debt is the aggregate exposure: the monthly cost of every overdue
	// unit. A unit two months behind still counts once; the ledger, not
	// the rollup, is the place to reconstruct arrears in full.
	Debt Money
}

// Rollup derives a client's status and exposure from its units.
// Worst-case status wins: any overdue unit makes the client owing.
// A client with no units, or only withdrawn ones, is not owing.
func Rollup(units []Unit, today Date) ClientRollup {
	r := ClientRollup{Status: ClientCurrent, Debt: ZeroMoney()}

	if len(units) == 0 {
		return r
	}

	withdrawn := 0
	for _, u := range units {
		cls := Classify(u, today)
		switch cls.Status {
		case UnitOverdue:
			r.OverdueUnits++
			r.Debt = r.Debt.Add(MonthlyCost(u))
		case UnitWithdrawn:
			withdrawn++
		}
	}

	switch {
	case r.OverdueUnits > 0:
		r.Status = ClientOwing
	case withdrawn == len(units):
		r.Status = ClientWithdrawn
	}
	return r
}

// Exposure sums the monthly cost of all overdue units in a fleet,
// regardless of owner. Used by the summary aggregations.
func Exposure(units []Unit, today Date) Money {
	total := ZeroMoney()
	for _, u := range units {
		if Classify(u, today).Status == UnitOverdue {
			total = total.Add(MonthlyCost(u))
		}
	}
	return total
}
