package ledger

import (
	"atelier/internal/core"

	"github.com/shopspring/decimal"
)

// Scope controls which records an aggregate counts.
type Scope struct {
	// IncludeUnlinked counts general payments (not tied to any charge)
	// towards the total paid.
	IncludeUnlinked bool
	// DeletedProjects holds ids of soft-deleted projects. Charges and
	// unlinked payments belonging to them are orphans and never counted.
	DeletedProjects map[string]struct{}
}

// The project view only counts payments tied to its expenses, while the
// supplier and team views also count general payments to the owner.
var (
	ProjectScope  = Scope{IncludeUnlinked: false}
	SupplierScope = Scope{IncludeUnlinked: true}
	TeamScope     = Scope{IncludeUnlinked: true}
)

// ScopeFor returns the default scope of an owner view.
func ScopeFor(kind core.OwnerKind) Scope {
	switch kind {
	case core.OwnerSupplier:
		return SupplierScope
	case core.OwnerTeamMember:
		return TeamScope
	default:
		return ProjectScope
	}
}

// WithDeletedProjects returns a copy of s that treats ids as deleted projects.
func (s Scope) WithDeletedProjects(ids map[string]struct{}) Scope {
	s.DeletedProjects = ids
	return s
}

func (s Scope) projectDeleted(id string) bool {
	if id == "" || s.DeletedProjects == nil {
		return false
	}
	_, ok := s.DeletedProjects[id]
	return ok
}

// Totals is the outcome of Aggregate.
type Totals struct {
	TotalCharges     decimal.Decimal `json:"totalCharges"`
	PaidFromStatus   decimal.Decimal `json:"paidFromStatus"`
	PaidFromPayments decimal.Decimal `json:"paidFromPayments"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	Outstanding      decimal.Decimal `json:"outstanding"`
}

// Add sums two Totals. Aggregates over disjoint inputs add up this way.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		TotalCharges:     t.TotalCharges.Add(o.TotalCharges),
		PaidFromStatus:   t.PaidFromStatus.Add(o.PaidFromStatus),
		PaidFromPayments: t.PaidFromPayments.Add(o.PaidFromPayments),
		TotalPaid:        t.TotalPaid.Add(o.TotalPaid),
		Outstanding:      t.Outstanding.Add(o.Outstanding),
	}
}

// ZeroTotals has every field set to zero.
func ZeroTotals() Totals {
	return Totals{
		TotalCharges:     core.Zero,
		PaidFromStatus:   core.Zero,
		PaidFromPayments: core.Zero,
		TotalPaid:        core.Zero,
		Outstanding:      core.Zero,
	}
}

// Active returns the charges that count: not soft-deleted and not owned by
// a soft-deleted project.
func Active(charges []core.Charge, scope Scope) []core.Charge {
	out := make([]core.Charge, 0, len(charges))
	for _, c := range charges {
		if c.Deleted || scope.projectDeleted(c.ProjectID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Aggregate totals charges and payments for one view.
//
// Payments only count through their contribution to active charges that are
// not flagged paid, so a payment linked to a deleted charge drops out with it.
// Unlinked payments count only when the scope includes them.
func Aggregate(charges []core.Charge, payments []core.Payment, scope Scope) Totals {
	t := ZeroTotals()

	open := make(map[string]struct{})
	for _, c := range Active(charges, scope) {
		t.TotalCharges = t.TotalCharges.Add(c.Amount)
		if c.MarkedPaid() {
			t.PaidFromStatus = t.PaidFromStatus.Add(c.Amount)
			continue
		}
		open[c.ID] = struct{}{}
	}

	for _, p := range payments {
		if p.Deleted {
			continue
		}
		if !p.Linked() {
			if scope.IncludeUnlinked && !scope.projectDeleted(p.ProjectID) {
				t.PaidFromPayments = t.PaidFromPayments.Add(p.Amount)
			}
			continue
		}
		for _, id := range p.ChargeIDs() {
			if _, ok := open[id]; ok {
				t.PaidFromPayments = t.PaidFromPayments.Add(p.AmountFor(id))
			}
		}
	}

	t.TotalPaid = t.PaidFromStatus.Add(t.PaidFromPayments)
	t.Outstanding = t.TotalCharges.Sub(t.TotalPaid)
	return t
}
