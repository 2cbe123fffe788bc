package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"atelier/internal/core"
)

func TestBindAndValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "empty body"},
		{"not json", "amount=5", "invalid request body"},
		{"missing fields", `{}`, "kind is required"},
		{"bad date", `{"kind":"project","projectId":"p","amount":"5","mode":"cash","date":"10/03/2026"}`, "date must be a date"},
		{"comma amount rejected by json", `{"kind":"project","amount":"5,5","mode":"cash"}`, "invalid request body"},
		{"allocations with chargeIds", `{"kind":"project","amount":"5","mode":"cash","chargeIds":["a"],"allocations":[{"chargeId":"b","amount":"5"}]}`, "chargeIds cannot be combined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(tc.body))
			var req paymentRequest
			err := bindAndValidate(httptest.NewRecorder(), r, "record payment", &req)
			if core.KindOf(err) != core.KindValidation {
				t.Fatalf("kind = %q (err %v)", core.KindOf(err), err)
			}
			if !strings.Contains(core.MessageOf(err), tc.want) {
				t.Fatalf("message %q does not contain %q", core.MessageOf(err), tc.want)
			}
		})
	}
}

func TestPaymentRequestConversion(t *testing.T) {
	body := `{"kind":"supplier","supplierId":" s1 ","amount":12.345,"mode":"cheque","date":"2026-03-01","reference":"CHQ 1\u0007",
		"allocations":[{"chargeId":"c1","amount":"10"},{"chargeId":"c2","amount":"2.35"}]}`
	r := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(body))
	var req paymentRequest
	if err := bindAndValidate(httptest.NewRecorder(), r, "record payment", &req); err != nil {
		t.Fatalf("bind: %v", err)
	}
	p := req.toPayment()
	if p.SupplierID != "s1" || p.Reference != "CHQ 1" {
		t.Fatalf("not sanitized: %+v", p)
	}
	if core.FormatAmount(p.Amount) != "12.35" || len(p.Allocations) != 2 {
		t.Fatalf("amount %s allocations %v", core.FormatAmount(p.Amount), p.Allocations)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("converted payment invalid: %v", err)
	}
}

func TestTaskPatchRequest(t *testing.T) {
	title, empty, due := " Tiles ", "", "2026-04-01"
	patch, err := taskPatchRequest{Title: &title, DueDate: &due}.toPatch()
	if err != nil || *patch.Title != "Tiles" || patch.Status != nil || patch.DueDate.String() != "2026-04-01" {
		t.Fatalf("patch = %+v err=%v", patch, err)
	}
	patch, err = taskPatchRequest{DueDate: &empty}.toPatch()
	if err != nil || patch.DueDate == nil || !patch.DueDate.IsEmpty() {
		t.Fatalf("clearing due date: %+v err=%v", patch, err)
	}
	bad := "tomorrow"
	if _, err := (taskPatchRequest{DueDate: &bad}).toPatch(); core.KindOf(err) != core.KindValidation {
		t.Fatalf("bad due date err = %v", err)
	}
}
