// Package storetest holds the behaviour every store.Store adapter must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"atelier/internal/core"
	"atelier/internal/store"
)

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("owners", func(t *testing.T) { testOwners(t, newStore(t)) })
	t.Run("charges", func(t *testing.T) { testCharges(t, newStore(t)) })
	t.Run("foreign zone dates", func(t *testing.T) { testForeignZoneDates(t, newStore(t)) })
	t.Run("payments", func(t *testing.T) { testPayments(t, newStore(t)) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("idempotency", func(t *testing.T) { testIdempotency(t, newStore(t)) })
}

func testOwners(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := core.Project{ID: "p1", Name: "Villa", Budget: core.MustAmount("250000"), Status: "active", StartDate: core.NewDate(2025, 1, 10)}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := s.CreateProject(ctx, p); core.KindOf(err) != core.KindConflict {
		t.Fatalf("duplicate id: got %v", err)
	}
	got, err := s.GetProject(ctx, "p1")
	if err != nil || got.Name != "Villa" || !got.Budget.Equal(p.Budget) || !got.StartDate.Equal(p.StartDate.Time) {
		t.Fatalf("get project = %+v, %v", got, err)
	}
	got.Name = "Villa Rosa"
	if err := s.UpdateProject(ctx, got); err != nil {
		t.Fatalf("update project: %v", err)
	}
	if err := s.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	live, _ := s.ListProjects(ctx, false)
	all, _ := s.ListProjects(ctx, true)
	if len(live) != 0 || len(all) != 1 || !all[0].Deleted || all[0].Name != "Villa Rosa" {
		t.Fatalf("list after delete: live=%v all=%v", live, all)
	}
	if _, err := s.GetProject(ctx, "nope"); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("missing project: %v", err)
	}

	if err := s.CreateSupplier(ctx, core.Supplier{ID: "s1", Name: "Marble Co", Category: "stone"}); err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	if err := s.DeleteSupplier(ctx, "s1"); err != nil {
		t.Fatalf("delete supplier: %v", err)
	}
	sup, err := s.GetSupplier(ctx, "s1")
	if err != nil || !sup.Deleted {
		t.Fatalf("deleted supplier should stay readable: %+v %v", sup, err)
	}

	m := core.TeamMember{ID: "t1", Name: "Ravi", Role: "carpenter", DailyRate: core.MustAmount("1200")}
	if err := s.CreateTeamMember(ctx, m); err != nil {
		t.Fatalf("create team member: %v", err)
	}
	m.DailyRate = core.MustAmount("1350.50")
	if err := s.UpdateTeamMember(ctx, m); err != nil {
		t.Fatalf("update team member: %v", err)
	}
	members, _ := s.ListTeamMembers(ctx, false)
	if len(members) != 1 || !members[0].DailyRate.Equal(core.MustAmount("1350.50")) {
		t.Fatalf("team members = %+v", members)
	}
	if err := s.UpdateTeamMember(ctx, core.TeamMember{ID: "ghost", Name: "x"}); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("update missing member: %v", err)
	}
}

func testCharges(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	expense := core.Charge{
		ID: "c1", Kind: core.ChargeExpense, Amount: core.MustAmount("1500.75"),
		ProjectID: "p1", SupplierID: "s1", Date: core.NewDate(2025, 3, 1),
		Description: "Tiles", Category: "flooring", ImageURLs: []string{"https://img/1.jpg"},
		PaymentStatus: core.PaidStatus, CreatedAt: now, UpdatedAt: now,
	}
	work := core.Charge{
		ID: "w1", Kind: core.ChargeWork, Amount: core.MustAmount("2400"),
		ProjectID: "p1", TeamMemberID: "t1", Date: core.NewDate(2025, 3, 2),
		Description: "2 days", CreatedAt: now, UpdatedAt: now,
	}
	for _, c := range []core.Charge{expense, work} {
		if err := s.CreateCharge(ctx, c); err != nil {
			t.Fatalf("create charge %s: %v", c.ID, err)
		}
	}
	if err := s.CreateCharge(ctx, core.Charge{ID: "bad", Kind: core.ChargeExpense}); core.KindOf(err) != core.KindValidation {
		t.Fatalf("invalid charge: %v", err)
	}

	got, err := s.GetCharge(ctx, "c1")
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if !got.Amount.Equal(expense.Amount) || got.SupplierID != "s1" || len(got.ImageURLs) != 1 || got.Date.String() != "2025-03-01" {
		t.Fatalf("charge round trip = %+v", got)
	}

	bySupplier, _ := s.ListCharges(ctx, store.ChargeQuery{SupplierID: "s1"})
	byKind, _ := s.ListCharges(ctx, store.ChargeQuery{Kind: core.ChargeWork})
	byProject, _ := s.ListCharges(ctx, store.ChargeQuery{ProjectID: "p1"})
	if len(bySupplier) != 1 || len(byKind) != 1 || len(byProject) != 2 {
		t.Fatalf("queries: supplier=%d kind=%d project=%d", len(bySupplier), len(byKind), len(byProject))
	}

	if err := s.DeleteCharge(ctx, "w1"); err != nil {
		t.Fatalf("delete charge: %v", err)
	}
	live, _ := s.ListCharges(ctx, store.ChargeQuery{})
	all, _ := s.ListCharges(ctx, store.ChargeQuery{IncludeDeleted: true})
	if len(live) != 1 || !live[0].MarkedPaid() || len(all) != 2 {
		t.Fatalf("after delete: live=%d all=%d", len(live), len(all))
	}
}

// testForeignZoneDates stores dates that are midnight in a zone other than
// the process's and expects the same instants back.
func testForeignZoneDates(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, offset := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local).Zone()
	zone := time.FixedZone("away", offset+5*3600+1800)
	day := core.Date{Time: time.Date(2026, 3, 15, 0, 0, 0, 0, zone)}

	if err := s.CreateCharge(ctx, core.Charge{
		ID: "cz", Kind: core.ChargeExpense, Amount: core.MustAmount("10"),
		ProjectID: "p1", Date: day, Description: "Grout",
	}); err != nil {
		t.Fatalf("create charge: %v", err)
	}
	if err := s.CreatePayment(ctx, core.Payment{
		ID: "pz", Kind: core.PaymentProject, Amount: core.MustAmount("10"),
		ProjectID: "p1", ChargeID: "cz", Date: day, Mode: core.ModeCash,
	}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	c, err := s.GetCharge(ctx, "cz")
	if err != nil || !c.Date.Equal(day.Time) {
		t.Fatalf("charge date = %v (err %v), want %v", c.Date.Time, err, day.Time)
	}
	payments, err := s.ListPayments(ctx, store.PaymentQuery{ChargeID: "cz"})
	if err != nil || len(payments) != 1 || !payments[0].Date.Equal(day.Time) {
		t.Fatalf("payments = %+v (err %v), want date %v", payments, err, day.Time)
	}
}

func testPayments(t *testing.T, s store.Store) {
	ctx := context.Background()
	single := core.Payment{
		ID: "pay1", Kind: core.PaymentSupplier, Amount: core.MustAmount("400"),
		ChargeID: "c1", SupplierID: "s1", Date: core.NewDate(2025, 3, 5),
		Mode: core.ModeBankTransfer, Reference: "NEFT-1",
	}
	bulk := core.Payment{
		ID: "pay2", Kind: core.PaymentSupplier, Amount: core.MustAmount("500"),
		SupplierID: "s1", Date: core.NewDate(2025, 3, 6), Mode: core.ModeCheque,
		Allocations: []core.Allocation{
			{ChargeID: "c1", Amount: core.MustAmount("100")},
			{ChargeID: "c2", Amount: core.MustAmount("400")},
		},
	}
	general := core.Payment{
		ID: "pay3", Kind: core.PaymentTeam, Amount: core.MustAmount("50"),
		TeamMemberID: "t1", Date: core.NewDate(2025, 3, 7), Mode: core.ModeCash,
	}
	for _, p := range []core.Payment{single, bulk, general} {
		if err := s.CreatePayment(ctx, p); err != nil {
			t.Fatalf("create payment %s: %v", p.ID, err)
		}
	}

	got, err := s.GetPayment(ctx, "pay2")
	if err != nil || len(got.Allocations) != 2 || !got.AmountFor("c2").Equal(core.MustAmount("400")) {
		t.Fatalf("bulk round trip = %+v, %v", got, err)
	}

	forC1, _ := s.ListPayments(ctx, store.PaymentQuery{ChargeID: "c1"})
	if len(forC1) != 2 {
		t.Fatalf("payments for c1 = %d", len(forC1))
	}
	team, _ := s.ListPayments(ctx, store.PaymentQuery{Kind: core.PaymentTeam})
	if len(team) != 1 || team[0].Linked() {
		t.Fatalf("team payments = %+v", team)
	}

	if err := s.DeletePayment(ctx, "pay1"); err != nil {
		t.Fatalf("delete payment: %v", err)
	}
	forC1, _ = s.ListPayments(ctx, store.PaymentQuery{ChargeID: "c1"})
	withDeleted, _ := s.ListPayments(ctx, store.PaymentQuery{ChargeID: "c1", IncludeDeleted: true})
	if len(forC1) != 1 || len(withDeleted) != 2 {
		t.Fatalf("after delete: live=%d all=%d", len(forC1), len(withDeleted))
	}
	if err := s.DeletePayment(ctx, "missing"); core.KindOf(err) != core.KindNotFound {
		t.Fatalf("delete missing payment: %v", err)
	}
}

func testTasks(t *testing.T, s store.Store) {
	ctx := context.Background()
	tasks := []core.Task{
		{ID: "k1", ProjectID: "p1", Title: "Measure", Status: core.TaskCompleted, Priority: core.PriorityLow},
		{ID: "k2", ProjectID: "p1", Title: "Order", Status: core.TaskTodo, Priority: core.PriorityHigh, DueDate: core.NewDate(2025, 5, 1)},
		{ID: "k3", ProjectID: "p2", Title: "Paint", Status: core.TaskBlocked, Priority: core.PriorityUrgent},
	}
	for _, tk := range tasks {
		if err := s.CreateTask(ctx, tk); err != nil {
			t.Fatalf("create task %s: %v", tk.ID, err)
		}
	}
	p1, _ := s.ListTasks(ctx, "p1")
	if len(p1) != 2 {
		t.Fatalf("tasks for p1 = %d", len(p1))
	}
	k2, _ := s.GetTask(ctx, "k2")
	if k2.DueDate.String() != "2025-05-01" {
		t.Fatalf("due date = %q", k2.DueDate.String())
	}
	k2.Status = core.TaskInProgress
	if err := s.UpdateTask(ctx, k2); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if err := s.DeleteTask(ctx, "k1"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	p1, _ = s.ListTasks(ctx, "p1")
	if len(p1) != 1 || p1[0].Status != core.TaskInProgress {
		t.Fatalf("tasks after update/delete = %+v", p1)
	}
}

func testIdempotency(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := store.IdempotencyRecord{Key: "a", RequestHash: "h1", StatusCode: 201, ContentType: "application/json", Body: []byte(`{"ok":true}`), CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := store.IdempotencyRecord{Key: "b", RequestHash: "h2", StatusCode: 200, Body: []byte(`{}`), CreatedAt: time.Now()}
	for _, r := range []store.IdempotencyRecord{old, fresh} {
		if err := s.SaveIdempotency(ctx, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, ok, err := s.GetIdempotency(ctx, "a")
	if err != nil || !ok || got.StatusCode != 201 || string(got.Body) != `{"ok":true}` || got.RequestHash != "h1" {
		t.Fatalf("get = %+v %v %v", got, ok, err)
	}
	n, err := s.PurgeIdempotency(ctx, time.Now().Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if _, ok, _ := s.GetIdempotency(ctx, "a"); ok {
		t.Fatalf("old key survived purge")
	}
	if _, ok, _ := s.GetIdempotency(ctx, "b"); !ok {
		t.Fatalf("fresh key purged")
	}
}
