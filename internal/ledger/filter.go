package ledger

import (
	"sort"
	"time"

	"atelier/internal/core"
)

// Filter applies the date window, then the status filter, and returns the
// surviving charges newest first. Soft-deleted charges never survive.
func Filter(charges []core.Charge, payments []core.Payment, date DateFilter, status StatusFilter, now time.Time) ([]core.Charge, error) {
	w, err := GetWindow(date)
	if err != nil {
		return nil, err
	}

	out := make([]core.Charge, 0, len(charges))
	for _, c := range charges {
		if c.Deleted || !w.Contains(c.Date.Time, now) {
			continue
		}
		if status != StatusAll && status != "" {
			if !status.Matches(Classify(c.Amount, PaidAmount(c, payments))) {
				continue
			}
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}
