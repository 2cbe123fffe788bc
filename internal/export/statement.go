// Package export renders owner statements as tables for spreadsheets.
package export

import (
	"fmt"
	"strings"

	"atelier/internal/core"
	"atelier/internal/ledger"
)

// ChargeHeader and PaymentHeader are the column titles of the two tables in a
// statement.
var (
	ChargeHeader  = []string{"Date", "Description", "Category", "Amount", "Paid", "Balance", "Status"}
	PaymentHeader = []string{"Date", "Mode", "Reference", "Amount", "Applied to"}
)

// Title names a statement, e.g. "Supplier statement: Teak House".
func Title(st ledger.Statement) string {
	kind := strings.ReplaceAll(string(st.OwnerKind), "_", " ")
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	name := st.OwnerName
	if name == "" {
		name = st.OwnerID
	}
	return fmt.Sprintf("%s statement: %s", kind, name)
}

// Rows lays a statement out as a grid: title, totals, the charge table and
// the payment table, separated by blank rows. Amounts are plain decimal
// strings so spreadsheets parse them as numbers.
func Rows(st ledger.Statement) [][]any {
	t := st.Summary.Totals
	rows := [][]any{
		{Title(st)},
		{},
		{"Total charges", core.FormatAmount(t.TotalCharges)},
		{"Paid (flagged)", core.FormatAmount(t.PaidFromStatus)},
		{"Paid (payments)", core.FormatAmount(t.PaidFromPayments)},
		{"Total paid", core.FormatAmount(t.TotalPaid)},
		{"Outstanding", core.FormatAmount(t.Outstanding)},
		{"Status", string(st.Summary.Status)},
		{},
		strings2any(ChargeHeader),
	}
	for _, l := range st.Lines {
		rows = append(rows, []any{
			l.Date.Format(core.DateLayout),
			l.Description,
			l.Category,
			core.FormatAmount(l.Amount),
			core.FormatAmount(l.Paid),
			core.FormatAmount(l.Balance),
			string(l.Status),
		})
	}

	rows = append(rows, []any{}, strings2any(PaymentHeader))
	for _, p := range st.Payments {
		applied := "general"
		if p.Linked() {
			applied = strings.Join(p.ChargeIDs(), ", ")
		}
		rows = append(rows, []any{
			p.Date.Format(core.DateLayout),
			string(p.Mode),
			p.Reference,
			core.FormatAmount(p.Amount),
			applied,
		})
	}
	return rows
}

// SummaryHeader is the header of a per-kind summary table.
var SummaryHeader = []string{"Owner ID", "Name", "Charges", "Total", "Paid", "Outstanding", "Status"}

// SummaryRows lays out one row per owner under SummaryHeader.
func SummaryRows(sums []ledger.EntitySummary) [][]any {
	rows := [][]any{strings2any(SummaryHeader)}
	for _, s := range sums {
		rows = append(rows, []any{
			s.OwnerID,
			s.OwnerName,
			s.ChargeCount,
			core.FormatAmount(s.Totals.TotalCharges),
			core.FormatAmount(s.Totals.TotalPaid),
			core.FormatAmount(s.Totals.Outstanding),
			string(s.Status),
		})
	}
	return rows
}

func strings2any(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
