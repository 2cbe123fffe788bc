// Package ledger reconciles charges against payments.
//
// Everything here is a pure function over slices loaded from a store: callers
// decide what to cache. The same primitives back the project, supplier and
// team views; the only difference between them is the Scope they pass.
package ledger

import (
	"atelier/internal/core"

	"github.com/shopspring/decimal"
)

// PaidAmount returns how much of the charge is settled.
//
// A charge flagged as paid counts as fully settled and its linked payments
// are ignored. Otherwise the non-deleted payments' contributions to the charge
// are summed; payments linked to other charges contribute nothing.
func PaidAmount(c core.Charge, payments []core.Payment) decimal.Decimal {
	if c.MarkedPaid() {
		return c.Amount
	}
	paid := core.Zero
	for _, p := range payments {
		if p.Deleted {
			continue
		}
		paid = paid.Add(p.AmountFor(c.ID))
	}
	return paid
}

// Balance is what remains to be paid on the charge. Negative on overpayment.
func Balance(c core.Charge, payments []core.Payment) decimal.Decimal {
	return c.Amount.Sub(PaidAmount(c, payments))
}

// Line is a charge decorated with its reconciliation state.
type Line struct {
	core.Charge
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
	Status  Status          `json:"status"`
}

// Resolve computes the Line for one charge.
func Resolve(c core.Charge, payments []core.Payment) Line {
	paid := PaidAmount(c, payments)
	return Line{
		Charge:  c,
		Paid:    paid,
		Balance: c.Amount.Sub(paid),
		Status:  Classify(c.Amount, paid),
	}
}

// Lines resolves every charge in order.
func Lines(charges []core.Charge, payments []core.Payment) []Line {
	out := make([]Line, 0, len(charges))
	for _, c := range charges {
		out = append(out, Resolve(c, payments))
	}
	return out
}
