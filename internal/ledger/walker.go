package ledger

import (
	"sort"

	"atelier/internal/core"

	"github.com/shopspring/decimal"
)

// Step is one payment in a charge's audit trail.
type Step struct {
	PaymentID       string           `json:"paymentId"`
	Date            core.Date        `json:"date"`
	Mode            core.PaymentMode `json:"mode"`
	Reference       string           `json:"reference,omitempty"`
	Applied         decimal.Decimal  `json:"applied"`
	PreviousBalance decimal.Decimal  `json:"previousBalance"`
	NewBalance      decimal.Decimal  `json:"newBalance"`
}

// Walk replays the charge's linked payments in date order and reports the
// balance before and after each one. Ties keep their input order and
// balances are allowed to go negative.
func Walk(c core.Charge, payments []core.Payment) []Step {
	linked := make([]core.Payment, 0)
	for _, p := range payments {
		if p.Deleted || p.AmountFor(c.ID).IsZero() {
			continue
		}
		linked = append(linked, p)
	}
	sort.SliceStable(linked, func(i, j int) bool {
		return linked[i].Date.Before(linked[j].Date.Time)
	})

	steps := make([]Step, 0, len(linked))
	balance := c.Amount
	for _, p := range linked {
		applied := p.AmountFor(c.ID)
		next := balance.Sub(applied)
		steps = append(steps, Step{
			PaymentID:       p.ID,
			Date:            p.Date,
			Mode:            p.Mode,
			Reference:       p.Reference,
			Applied:         applied,
			PreviousBalance: balance,
			NewBalance:      next,
		})
		balance = next
	}
	return steps
}

// History is a charge with its audit trail and current state.
type History struct {
	Line
	Steps []Step `json:"steps"`
}

// BuildHistory resolves the charge and walks its payments.
func BuildHistory(c core.Charge, payments []core.Payment) History {
	return History{Line: Resolve(c, payments), Steps: Walk(c, payments)}
}
