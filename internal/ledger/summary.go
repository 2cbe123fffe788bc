package ledger

import (
	"sort"

	"atelier/internal/core"
)

// EntitySummary is the reconciliation of one project, supplier or team member.
type EntitySummary struct {
	OwnerKind    core.OwnerKind `json:"ownerKind"`
	OwnerID      string         `json:"ownerId"`
	OwnerName    string         `json:"ownerName,omitempty"`
	Totals       Totals         `json:"totals"`
	ChargeCount  int            `json:"chargeCount"`
	PaymentCount int            `json:"paymentCount"`
	Status       Status         `json:"status"`
}

// Partition groups charges and payments by their owner of the given kind.
//
// Linked payments follow the charges they settle (a payment split across
// owners lands in each of them); general payments use their own owner
// reference. Records without an owner of that kind are skipped.
func Partition(kind core.OwnerKind, charges []core.Charge, payments []core.Payment) (map[string][]core.Charge, map[string][]core.Payment) {
	byCharge := make(map[string]string, len(charges))
	cs := make(map[string][]core.Charge)
	for _, c := range charges {
		owner := c.Owner(kind)
		if owner == "" {
			continue
		}
		byCharge[c.ID] = owner
		cs[owner] = append(cs[owner], c)
	}

	ps := make(map[string][]core.Payment)
	for _, p := range payments {
		if !p.Linked() {
			if owner := p.Owner(kind); owner != "" {
				ps[owner] = append(ps[owner], p)
			}
			continue
		}
		seen := make(map[string]struct{})
		for _, id := range p.ChargeIDs() {
			owner, ok := byCharge[id]
			if !ok {
				continue
			}
			if _, dup := seen[owner]; dup {
				continue
			}
			seen[owner] = struct{}{}
			ps[owner] = append(ps[owner], p)
		}
	}
	return cs, ps
}

// Summarize runs Aggregate once per owner and returns the summaries sorted
// by owner id.
func Summarize(kind core.OwnerKind, charges []core.Charge, payments []core.Payment, scope Scope) []EntitySummary {
	cs, ps := Partition(kind, charges, payments)

	owners := make(map[string]struct{}, len(cs)+len(ps))
	for id := range cs {
		owners[id] = struct{}{}
	}
	for id := range ps {
		owners[id] = struct{}{}
	}

	out := make([]EntitySummary, 0, len(owners))
	for id := range owners {
		out = append(out, summarizeOwner(kind, id, cs[id], ps[id], scope))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

// SummarizeOwner reconciles a single owner from already-scoped records.
func SummarizeOwner(kind core.OwnerKind, id string, charges []core.Charge, payments []core.Payment, scope Scope) EntitySummary {
	cs, ps := Partition(kind, charges, payments)
	return summarizeOwner(kind, id, cs[id], ps[id], scope)
}

func summarizeOwner(kind core.OwnerKind, id string, charges []core.Charge, payments []core.Payment, scope Scope) EntitySummary {
	t := Aggregate(charges, payments, scope)
	counted := 0
	for _, p := range payments {
		if !p.Deleted {
			counted++
		}
	}
	return EntitySummary{
		OwnerKind:    kind,
		OwnerID:      id,
		Totals:       t,
		ChargeCount:  len(Active(charges, scope)),
		PaymentCount: counted,
		Status:       Classify(t.TotalCharges, t.TotalPaid),
	}
}
