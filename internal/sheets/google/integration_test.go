//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"atelier/internal/core"
	"atelier/internal/ledger"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_StatementRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:      spreadsheetID,
		SheetName:          "Integration " + time.Now().Format("150405"),
		ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.ServiceAccountJSON == "" && cfg.ServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	c := core.Charge{
		ID: "it-1", Kind: core.ChargeExpense, Amount: core.MustAmount("12.34"),
		SupplierID: "it-supplier", Date: core.NewDate(2026, 1, 2), Description: "integration test",
	}
	st := ledger.BuildStatement(core.OwnerSupplier, "it-supplier", "Integration supplier",
		[]core.Charge{c}, nil, ledger.SupplierScope)

	ref, err := client.WriteStatement(ctx, st)
	if err != nil {
		t.Fatalf("WriteStatement: %v", err)
	}
	if !strings.Contains(ref, "it-supplier") {
		t.Errorf("unexpected ref %q", ref)
	}
	t.Logf("wrote %s", ref)

	if err := client.RemoveStatement(ctx, core.OwnerSupplier, "it-supplier"); err != nil {
		t.Fatalf("RemoveStatement: %v", err)
	}
}
