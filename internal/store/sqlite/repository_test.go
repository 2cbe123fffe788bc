package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"atelier/internal/core"
	"atelier/internal/store"
	"atelier/internal/store/storetest"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestAmountsKeepPrecision(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := core.Charge{
		ID: "c", Kind: core.ChargeExpense, Amount: core.MustAmount("123456789012.34"),
		ProjectID: "p", Date: core.NewDate(2025, 1, 1), Description: "big",
	}
	if err := repo.CreateCharge(ctx, c); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetCharge(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount.String() != "123456789012.34" {
		t.Fatalf("amount = %s", got.Amount)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
