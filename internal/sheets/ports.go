package sheets

import (
	"context"

	"atelier/internal/core"
	"atelier/internal/ledger"
)

// Ports for outbound spreadsheet adapters.
type (
	// StatementWriter mirrors one owner's statement into its own tab.
	StatementWriter interface {
		WriteStatement(ctx context.Context, st ledger.Statement) (ref string, err error)
		RemoveStatement(ctx context.Context, kind core.OwnerKind, ownerID string) error
	}

	// SummaryWriter replaces the per-kind summary table.
	SummaryWriter interface {
		WriteSummaries(ctx context.Context, kind core.OwnerKind, sums []ledger.EntitySummary) (ref string, err error)
	}

	Exporter interface {
		StatementWriter
		SummaryWriter
	}
)

// StatementTab names the tab holding an owner's statement. Ids keep tab
// names stable when owners are renamed.
func StatementTab(base string, kind core.OwnerKind, ownerID string) string {
	return base + " " + string(kind) + " " + ownerID
}

// SummaryTab names the tab holding the summaries of one owner kind.
func SummaryTab(base string, kind core.OwnerKind) string {
	return base + " " + string(kind) + " summary"
}
