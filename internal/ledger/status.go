package ledger

import (
	"fmt"
	"strings"

	"atelier/internal/core"

	"github.com/shopspring/decimal"
)

// Status is the settlement state of a charge or an owner.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Classify maps an amount and what has been paid against it to a Status.
// Overpayment is still paid; a zero charge with nothing paid is pending.
func Classify(amount, paid decimal.Decimal) Status {
	switch {
	case paid.IsZero():
		return StatusPending
	case paid.GreaterThanOrEqual(amount):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// StatusFilter selects charges by Status. StatusAll keeps everything.
type StatusFilter string

const StatusAll StatusFilter = "all"

// ParseStatusFilter accepts all, paid, partial and pending. Empty means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch v := StatusFilter(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return StatusAll, nil
	case StatusAll, StatusFilter(StatusPaid), StatusFilter(StatusPartial), StatusFilter(StatusPending):
		return v, nil
	default:
		return "", core.Validation("parse status filter", fmt.Errorf("unknown status filter %q", s))
	}
}

// Matches reports whether st passes the filter.
func (f StatusFilter) Matches(st Status) bool {
	return f == StatusAll || f == "" || Status(f) == st
}
