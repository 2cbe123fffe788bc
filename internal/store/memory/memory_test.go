package memory

import (
	"context"
	"sync"
	"testing"

	"atelier/internal/core"
	"atelier/internal/store"
	"atelier/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestConcurrentCreate(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.CreateCharge(ctx, core.Charge{
				ID: core.NewID(), Kind: core.ChargeExpense, Amount: core.MustAmount("10"),
				ProjectID: "p", Date: core.NewDate(2025, 1, 1), Description: "x",
			})
		}()
	}
	wg.Wait()
	got, _ := s.ListCharges(ctx, store.ChargeQuery{})
	if len(got) != 50 {
		t.Fatalf("expected 50 charges, got %d", len(got))
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.CreateSupplier(ctx, core.Supplier{ID: "s", Name: "A"})
	list, _ := s.ListSuppliers(ctx, false)
	list[0].Name = "mutated"
	got, _ := s.GetSupplier(ctx, "s")
	if got.Name != "A" {
		t.Fatalf("store mutated through list result")
	}
}
