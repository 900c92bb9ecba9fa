/*
contract.go - Contract cost and due-date derivation

PURPOSE:
  Pure functions deriving a unit's monthly cost and next due date from
  its contract type and payment history. No storage, no side effects,
  fully deterministic. Both the status engine and the summary
  aggregations reuse these; there is exactly one place the arithmetic
  lives.

POLICY:
  Flat-fee:  monthlyCost = totalContractCost / max(termMonths, 1)
  Metered:   monthlyCost = unit.MonthlyCost (zero when unset)

  Malformed numeric input coerces to zero and never errors. That is an
  explicit policy: legacy fleet data is full of blanks, and a zero charge
  surfaces in reports while a crash surfaces nowhere.

SEE ALSO:
  - status.go: Consumes MonthlyCost for exposure aggregation
  - ledger.go: Consumes NextDueAfter when registering payments
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// CONTRACT CALCULATOR
// =============================================================================

// MonthlyCost derives the monthly charge for a unit.
// A flat-fee term below 1 is treated as 1 month; the legacy system left
// the term blank on single-payment contracts.
func MonthlyCost(u Unit) Money {
	switch u.ContractType {
	case ContractFlatFee:
		term := u.TermMonths
		if term < 1 {
			term = 1
		}
		return u.TotalCost.Div(decimal.NewFromInt(int64(term)))
	case ContractMetered:
		return u.MonthlyCost
	default:
		// Unknown contract types bill nothing rather than guessing.
		return ZeroMoney()
	}
}

// NextDueAfter returns the due date that results from a payment made on
// paidAt: one billing period (1 month) past the payment date.
func NextDueAfter(u Unit, paidAt Date) Date {
	return paidAt.AddMonths(1)
}

// RecomputeDueDate derives a unit's due date from its remaining payment
// history. This is the fallback reversal rule for payments that carry no
// PrevDueDate snapshot (migrated records):
//
//   - With remaining payments, the due date is one period past the most
//     recent remaining payment.
//   - With none, the unit reverts to being due on the deleted payment's
//     own date; it was unpaid as of that day.
func RecomputeDueDate(u Unit, remaining []PaymentRecord, deleted PaymentRecord) Date {
	var latest Date
	for _, p := range remaining {
		if p.PaidAt.After(latest) {
			latest = p.PaidAt
		}
	}
	if latest.IsZero() {
		return deleted.PaidAt
	}
	return NextDueAfter(u, latest)
}
