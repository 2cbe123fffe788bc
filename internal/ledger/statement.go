package ledger

import (
	"sort"

	"atelier/internal/core"
)

// Statement is everything needed to print or export one owner's account.
type Statement struct {
	OwnerKind core.OwnerKind `json:"ownerKind"`
	OwnerID   string         `json:"ownerId"`
	OwnerName string         `json:"ownerName"`
	Summary   EntitySummary  `json:"summary"`
	Lines     []Line         `json:"lines"`
	// Payments are the non-deleted payments counted for this owner, oldest first.
	Payments []core.Payment `json:"payments"`
}

// BuildStatement reconciles one owner. charges and payments may contain
// records of other owners; they are partitioned first.
func BuildStatement(kind core.OwnerKind, id, name string, charges []core.Charge, payments []core.Payment, scope Scope) Statement {
	cs, ps := Partition(kind, charges, payments)
	own := Active(cs[id], scope)

	sort.SliceStable(own, func(i, j int) bool { return own[i].Date.Before(own[j].Date.Time) })

	var counted []core.Payment
	for _, p := range ps[id] {
		if p.Deleted {
			continue
		}
		if !p.Linked() && (!scope.IncludeUnlinked || scope.projectDeleted(p.ProjectID)) {
			continue
		}
		counted = append(counted, p)
	}
	sort.SliceStable(counted, func(i, j int) bool { return counted[i].Date.Before(counted[j].Date.Time) })

	return Statement{
		OwnerKind: kind,
		OwnerID:   id,
		OwnerName: name,
		Summary:   summarizeOwner(kind, id, cs[id], ps[id], scope),
		Lines:     Lines(own, ps[id]),
		Payments:  counted,
	}
}
