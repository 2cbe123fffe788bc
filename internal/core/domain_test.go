package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.March || d.Day() != 9 || d.Location() != time.Local {
		t.Fatalf("unexpected date %v", d)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("String() = %q", d.String())
	}
	if _, err := ParseDate("2025-03-09T10:00:00Z"); err != nil {
		t.Fatalf("rfc3339 rejected: %v", err)
	}
	if _, err := ParseDate("09/03/2025"); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}

func TestDateJSON(t *testing.T) {
	var d Date
	if err := d.UnmarshalJSON([]byte(`"2024-11-30"`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := d.MarshalJSON()
	if err != nil || string(b) != `"2024-11-30"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	zero, _ := Date{}.MarshalJSON()
	if string(zero) != "null" {
		t.Fatalf("zero date marshals to %s", zero)
	}
}

func TestChargeValidate(t *testing.T) {
	good := Charge{
		Kind:        ChargeExpense,
		Amount:      MustAmount("100"),
		ProjectID:   "p1",
		Date:        NewDate(2025, 1, 1),
		Description: "tiles",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	zero := good
	zero.Amount = Zero
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero-amount charge should be accepted, got %v", err)
	}

	bads := map[string]func(c *Charge){
		"negative":   func(c *Charge) { c.Amount = MustAmount("1").Neg() },
		"no owner":   func(c *Charge) { c.ProjectID = "" },
		"bad kind":   func(c *Charge) { c.Kind = "misc" },
		"zero date":  func(c *Charge) { c.Date = Date{} },
		"blank desc": func(c *Charge) { c.Description = "  " },
		"work no tm": func(c *Charge) { c.Kind = ChargeWork },
	}
	for name, mutate := range bads {
		c := good
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPaymentValidate(t *testing.T) {
	good := Payment{
		Kind:       PaymentSupplier,
		Amount:     MustAmount("50"),
		SupplierID: "s1",
		Date:       NewDate(2025, 2, 1),
		Mode:       ModeUPI,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(p *Payment)
		want   error
	}{
		{"zero amount", func(p *Payment) { p.Amount = Zero }, ErrZeroAmount},
		{"missing owner", func(p *Payment) { p.SupplierID = "" }, ErrMissingOwner},
		{"bad mode", func(p *Payment) { p.Mode = "barter" }, ErrInvalidMode},
		{"both links", func(p *Payment) {
			p.ChargeID = "c1"
			p.Allocations = []Allocation{{ChargeID: "c2", Amount: MustAmount("50")}}
		}, ErrInvalidAllocation},
		{"allocations do not sum", func(p *Payment) {
			p.Allocations = []Allocation{{ChargeID: "c1", Amount: MustAmount("20")}}
		}, ErrInvalidAllocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := good
			tc.mutate(&p)
			if err := p.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if KindOf(p.Validate()) != KindValidation {
				t.Fatalf("sentinel should classify as validation")
			}
		})
	}
}

func TestPaymentAmountFor(t *testing.T) {
	single := Payment{Amount: MustAmount("300"), ChargeID: "a"}
	if !single.AmountFor("a").Equal(MustAmount("300")) || !single.AmountFor("b").IsZero() {
		t.Fatalf("single link contribution wrong")
	}
	multi := Payment{Amount: MustAmount("500"), Allocations: []Allocation{
		{ChargeID: "a", Amount: MustAmount("200")},
		{ChargeID: "b", Amount: MustAmount("300")},
	}}
	if !multi.AmountFor("b").Equal(MustAmount("300")) {
		t.Fatalf("allocation contribution = %s", multi.AmountFor("b"))
	}
	if got := multi.ChargeIDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("ChargeIDs = %v", got)
	}
	if (Payment{Amount: MustAmount("1")}).Linked() {
		t.Fatalf("general payment reported as linked")
	}
}

func TestTaskValidate(t *testing.T) {
	good := Task{ProjectID: "p", Title: "Order tiles", Status: TaskTodo, Priority: PriorityHigh}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Status = "done"
	if !errors.Is(bad.Validate(), ErrInvalidTaskStatus) {
		t.Fatalf("expected invalid status")
	}
	bad = good
	bad.Priority = "p0"
	if !errors.Is(bad.Validate(), ErrInvalidPriority) {
		t.Fatalf("expected invalid priority")
	}
}

func TestErrorKinds(t *testing.T) {
	err := NotFound("get charge", "charge", "42")
	if KindOf(err) != KindNotFound || MessageOf(err) != "charge 42 not found" {
		t.Fatalf("unexpected %v / %s", KindOf(err), MessageOf(err))
	}
	wrapped := errors.Join(errors.New("ctx"), ExceedsBalance("pay", "too much"))
	if KindOf(wrapped) != KindExceedsBalance {
		t.Fatalf("wrapped kind lost")
	}
	if KindOf(errors.New("boom")) != KindInternal || MessageOf(errors.New("boom")) != "internal error" {
		t.Fatalf("plain errors should be internal")
	}
	if KindOf(nil) != "" {
		t.Fatalf("nil error should have no kind")
	}
}

func TestParseOwnerKind(t *testing.T) {
	for in, want := range map[string]OwnerKind{
		"projects": OwnerProject, "supplier": OwnerSupplier, "team": OwnerTeamMember, "team-members": OwnerTeamMember,
	} {
		got, ok := ParseOwnerKind(in)
		if !ok || got != want {
			t.Errorf("ParseOwnerKind(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseOwnerKind("clients"); ok {
		t.Errorf("unknown kind accepted")
	}
}
