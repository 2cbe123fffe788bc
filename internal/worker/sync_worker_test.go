package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"atelier/internal/amqp"
	"atelier/internal/core"
	"atelier/internal/ledger"
	"atelier/internal/sheets/memory"
)

type fakeSource struct {
	mu        sync.Mutex
	owners    map[core.OwnerKind][]string
	failOwner string
	calls     int
}

func (f *fakeSource) Statement(_ context.Context, kind core.OwnerKind, id string) (ledger.Statement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if id == f.failOwner {
		return ledger.Statement{}, errors.New("store unavailable")
	}
	for _, o := range f.owners[kind] {
		if o == id {
			return ledger.Statement{OwnerKind: kind, OwnerID: id, OwnerName: "name-" + id}, nil
		}
	}
	return ledger.Statement{}, core.NotFound("statement", string(kind), id)
}

func (f *fakeSource) Summaries(_ context.Context, kind core.OwnerKind) ([]ledger.EntitySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ledger.EntitySummary
	for _, id := range f.owners[kind] {
		out = append(out, ledger.EntitySummary{OwnerKind: kind, OwnerID: id, Totals: ledger.ZeroTotals()})
	}
	return out, nil
}

func newSource() *fakeSource {
	return &fakeSource{owners: map[core.OwnerKind][]string{
		core.OwnerProject:    {"p1", "p2"},
		core.OwnerSupplier:   {"s1"},
		core.OwnerTeamMember: {},
	}}
}

func TestHandleEvent_WritesStatementAndSummary(t *testing.T) {
	src := newSource()
	out := memory.New()
	w := NewSyncWorker(src, out, 2)

	e := amqp.NewLedgerEvent(amqp.EventChargeCreated, string(core.OwnerSupplier), "s1")
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if _, ok := out.Tab("Statements supplier s1"); !ok {
		t.Errorf("statement tab missing, tabs=%v", out.Tabs())
	}
	if _, ok := out.Tab("Statements supplier summary"); !ok {
		t.Errorf("summary tab missing, tabs=%v", out.Tabs())
	}
}

func TestHandleEvent_OwnerDeletedRemovesTab(t *testing.T) {
	src := newSource()
	out := memory.New()
	w := NewSyncWorker(src, out, 1)
	ctx := context.Background()

	if err := w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventPaymentRecorded, string(core.OwnerProject), "p1")); err != nil {
		t.Fatal(err)
	}
	src.owners[core.OwnerProject] = []string{"p2"}
	if err := w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventOwnerDeleted, string(core.OwnerProject), "p1")); err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Tab("Statements project p1"); ok {
		t.Error("statement of deleted owner should be removed")
	}
}

func TestHandleEvent_MissingOwnerIsNotAnError(t *testing.T) {
	w := NewSyncWorker(newSource(), memory.New(), 1)
	e := amqp.NewLedgerEvent(amqp.EventChargeDeleted, string(core.OwnerProject), "gone")
	if err := w.HandleEvent(context.Background(), e); err != nil {
		t.Fatalf("expected nil for a vanished owner, got %v", err)
	}
}

func TestHandleEvent_SourceErrorRequeues(t *testing.T) {
	src := newSource()
	src.failOwner = "p1"
	w := NewSyncWorker(src, memory.New(), 1)
	e := amqp.NewLedgerEvent(amqp.EventChargeCreated, string(core.OwnerProject), "p1")
	if err := w.HandleEvent(context.Background(), e); err == nil {
		t.Fatal("expected error so the event is retried")
	}
}

func TestFullExport(t *testing.T) {
	src := newSource()
	out := memory.New()
	w := NewSyncWorker(src, out, 3)

	if err := w.FullExport(context.Background()); err != nil {
		t.Fatalf("FullExport: %v", err)
	}
	want := []string{
		"Statements project p1", "Statements project p2", "Statements project summary",
		"Statements supplier s1", "Statements supplier summary", "Statements team_member summary",
	}
	got := out.Tabs()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("tabs = %v\nwant %v", got, want)
	}
	if w.LastExport().IsZero() {
		t.Error("successful export should be recorded")
	}
}

func TestFullExport_ReportsFailuresAndContinues(t *testing.T) {
	src := newSource()
	src.failOwner = "p1"
	out := memory.New()
	w := NewSyncWorker(src, out, 2)

	err := w.FullExport(context.Background())
	if err == nil || !strings.Contains(err.Error(), "p1") {
		t.Fatalf("expected error naming p1, got %v", err)
	}
	if _, ok := out.Tab("Statements supplier s1"); !ok {
		t.Error("other owners should still be exported")
	}
	if !w.LastExport().IsZero() {
		t.Error("failed export should not be recorded as successful")
	}
}

func TestFullExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewSyncWorker(newSource(), memory.New(), 1)
	if err := w.FullExport(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
