package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atelier/internal/core"
	"atelier/internal/log"
	"atelier/internal/services"
	"atelier/internal/store/memory"

	"github.com/xuri/excelize/v2"
)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.Local)
	svc := services.NewLedgerService(st, services.WithClock(func() time.Time { return now }))
	opts.Logger = log.New(log.Config{Output: io.Discard})
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, st
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return string(body.Error.Kind)
}

func create(t *testing.T, srv *Server, path, body string) string {
	t.Helper()
	rr := do(t, srv, http.MethodPost, path, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST %s status=%d body=%s", path, rr.Code, rr.Body.String())
	}
	return decode(t, rr)["id"].(string)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing security headers", path)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s missing request id", path)
		}
	}
}

func TestProjectCRUD(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/projects", `{"client":"Rao"}`)
	if rr.Code != http.StatusBadRequest || errorKind(t, rr) != "validation" {
		t.Fatalf("missing name: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "name is required") {
		t.Fatalf("message should name the field: %s", rr.Body.String())
	}

	id := create(t, srv, "/api/projects", `{"name":"Villa Rao","budget":"250000","startDate":"2026-01-10"}`)

	rr = do(t, srv, http.MethodGet, "/api/projects/"+id, "")
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "active" {
		t.Fatalf("get: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/projects/"+id, `{"name":"Villa Rao II","status":"on_hold"}`)
	if rr.Code != http.StatusOK || decode(t, rr)["name"] != "Villa Rao II" {
		t.Fatalf("update: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/projects", "")
	var list []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list = %s", rr.Body.String())
	}

	if rr := do(t, srv, http.MethodDelete, "/api/projects/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/api/projects/"+id, "")
	if rr.Code != http.StatusNotFound || errorKind(t, rr) != "not_found" {
		t.Fatalf("after delete: status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/projects", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("empty list should be [], got %s", rr.Body.String())
	}
}

func TestPaymentFlow(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	supplier := create(t, srv, "/api/suppliers", `{"name":"Teak House"}`)
	expense := create(t, srv, "/api/expenses",
		`{"supplierId":"`+supplier+`","amount":"1000","date":"2026-03-01","description":"Teak veneer"}`)

	pay := func(amount, extra string) *httptest.ResponseRecorder {
		return do(t, srv, http.MethodPost, "/api/payments",
			`{"kind":"supplier","supplierId":"`+supplier+`","chargeId":"`+expense+`","amount":"`+amount+
				`","date":"2026-03-10","mode":"upi","reference":"UTR1"`+extra+`}`)
	}

	cases := []struct {
		name   string
		rr     *httptest.ResponseRecorder
		status int
		kind   string
	}{
		{"over balance", pay("1500", ""), http.StatusUnprocessableEntity, "exceeds_balance"},
		{"first", pay("400", ""), http.StatusCreated, ""},
		{"duplicate", pay("400", ""), http.StatusConflict, "duplicate"},
		{"confirmed duplicate", pay("400", `,"allowDuplicate":true`), http.StatusCreated, ""},
		{"bad mode", do(t, srv, http.MethodPost, "/api/payments", `{"kind":"supplier","supplierId":"`+supplier+`","amount":"5","mode":"barter"}`), http.StatusBadRequest, "validation"},
		{"negative", pay("-5", ""), http.StatusBadRequest, "validation"},
	}
	for _, tc := range cases {
		if tc.rr.Code != tc.status {
			t.Fatalf("%s: status=%d body=%s", tc.name, tc.rr.Code, tc.rr.Body.String())
		}
		if tc.kind != "" && errorKind(t, tc.rr) != tc.kind {
			t.Fatalf("%s: kind=%s", tc.name, errorKind(t, tc.rr))
		}
	}

	rr := do(t, srv, http.MethodGet, "/api/expenses/"+expense, "")
	line := decode(t, rr)
	if line["paid"] != "800" || line["balance"] != "200" || line["status"] != "partial" {
		t.Fatalf("line = %v", line)
	}

	rr = do(t, srv, http.MethodGet, "/api/expenses?status=partial&supplierId="+supplier, "")
	var lines []map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &lines)
	if len(lines) != 1 {
		t.Fatalf("filtered list = %s", rr.Body.String())
	}
	rr = do(t, srv, http.MethodGet, "/api/expenses?status=paid", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("paid filter = %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/api/expenses?status=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bogus status filter = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/charges/"+expense+"/history", "")
	steps, _ := decode(t, rr)["steps"].([]any)
	if len(steps) != 2 {
		t.Fatalf("history = %s", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/suppliers/"+supplier+"/summary", "")
	totals, _ := decode(t, rr)["totals"].(map[string]any)
	if totals["outstanding"] != "200" {
		t.Fatalf("summary = %s", rr.Body.String())
	}

	if rr := do(t, srv, http.MethodGet, "/api/work-entries/"+expense, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expense served as work entry: %d", rr.Code)
	}
}

func TestBulkPayment(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	member := create(t, srv, "/api/team-members", `{"name":"Ravi","dailyRate":"1200"}`)
	older := create(t, srv, "/api/work-entries", `{"teamMemberId":"`+member+`","amount":"300","date":"2026-02-01","description":"Site visit"}`)
	newer := create(t, srv, "/api/work-entries", `{"teamMemberId":"`+member+`","amount":"500","date":"2026-03-01","description":"Drawings"}`)

	rr := do(t, srv, http.MethodPost, "/api/payments",
		`{"kind":"team","teamMemberId":"`+member+`","amount":"400","mode":"cash","chargeIds":["`+newer+`","`+older+`"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("bulk: status=%d body=%s", rr.Code, rr.Body.String())
	}
	allocs, _ := decode(t, rr)["allocations"].([]any)
	if len(allocs) != 2 || allocs[0].(map[string]any)["chargeId"] != older {
		t.Fatalf("allocations = %v", allocs)
	}

	rr = do(t, srv, http.MethodPost, "/api/payments",
		`{"kind":"team","teamMemberId":"`+member+`","amount":"1","mode":"cash","chargeId":"`+older+`","chargeIds":["`+newer+`"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("chargeId with chargeIds: status=%d", rr.Code)
	}
}

func TestIdempotencyKey(t *testing.T) {
	srv, st := newTestServer(t, Options{})
	body := `{"name":"Teak House"}`

	first := do(t, srv, http.MethodPost, "/api/suppliers", body, HeaderIdempotencyKey, "k-1")
	second := do(t, srv, http.MethodPost, "/api/suppliers", body, HeaderIdempotencyKey, "k-1")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("codes %d %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if second.Header().Get(HeaderReplayed) != "true" || first.Header().Get(HeaderReplayed) != "" {
		t.Fatal("replay header wrong")
	}
	suppliers, _ := st.ListSuppliers(context.Background(), false)
	if len(suppliers) != 1 {
		t.Fatalf("suppliers stored = %d", len(suppliers))
	}

	reuse := do(t, srv, http.MethodPost, "/api/suppliers", `{"name":"Other"}`, HeaderIdempotencyKey, "k-1")
	if reuse.Code != http.StatusConflict || errorKind(t, reuse) != "conflict" {
		t.Fatalf("reuse: status=%d body=%s", reuse.Code, reuse.Body.String())
	}

	long := do(t, srv, http.MethodPost, "/api/suppliers", body, HeaderIdempotencyKey, strings.Repeat("k", 129))
	if long.Code != http.StatusBadRequest {
		t.Fatalf("long key status=%d", long.Code)
	}
}

func TestStatementXLSX(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	supplier := create(t, srv, "/api/suppliers", `{"name":"Teak House"}`)
	create(t, srv, "/api/expenses", `{"supplierId":"`+supplier+`","amount":"1000","date":"2026-03-01","description":"Teak veneer"}`)

	rr := do(t, srv, http.MethodGet, "/api/suppliers/"+supplier+"/statement.xlsx", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("status=%d type=%s", rr.Code, rr.Header().Get("Content-Type"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	title, _ := f.GetCellValue("Statement", "A1")
	if !strings.Contains(title, "Teak House") {
		t.Fatalf("title = %q", title)
	}

	if rr := do(t, srv, http.MethodGet, "/api/suppliers/nope/statement.xlsx", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown supplier status=%d", rr.Code)
	}
}

func TestTasksAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	project := create(t, srv, "/api/projects", `{"name":"Villa Rao"}`)
	task := create(t, srv, "/api/projects/"+project+"/tasks", `{"title":"Order tiles","priority":"high"}`)
	create(t, srv, "/api/projects/"+project+"/tasks", `{"title":"Measure kitchen"}`)

	rr := do(t, srv, http.MethodPatch, "/api/tasks/"+task, `{"status":"completed"}`)
	if rr.Code != http.StatusOK || decode(t, rr)["title"] != "Order tiles" {
		t.Fatalf("patch: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodPatch, "/api/tasks/"+task, `{"status":"done"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad status accepted: %d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/projects/"+project+"/task-metrics", "")
	m := decode(t, rr)
	if m["totalTasks"] != float64(2) || m["completedTasks"] != float64(1) || m["completionPercentage"] != float64(50) {
		t.Fatalf("metrics = %v", m)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/tasks/"+task, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete task status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/api/projects/"+project+"/tasks", "")
	var tasks []map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &tasks)
	if len(tasks) != 1 {
		t.Fatalf("tasks = %s", rr.Body.String())
	}
}

func TestSummariesAndDashboard(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	create(t, srv, "/api/projects", `{"name":"Villa Rao"}`)

	rr := do(t, srv, http.MethodGet, "/api/summaries/projects", "")
	var sums []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &sums); err != nil || len(sums) != 1 {
		t.Fatalf("summaries = %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/api/summaries/clients", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/api/dashboard", "")
	if rr.Code != http.StatusOK || decode(t, rr)["projectCount"] == nil {
		t.Fatalf("dashboard = %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/api/nothing", ""); rr.Code != http.StatusNotFound || errorKind(t, rr) != "not_found" {
		t.Fatalf("unknown route = %d %s", rr.Code, rr.Body.String())
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		create(t, srv, "/api/suppliers", `{"name":"S"}`)
	}
	rr := do(t, srv, http.MethodPost, "/api/suppliers", `{"name":"S"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("status=%d retry=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := do(t, srv, http.MethodGet, "/api/suppliers", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads should not be limited: %d", rr.Code)
	}
	_, limited, _ := srv.Metrics()
	if limited != 1 {
		t.Fatalf("limited = %d", limited)
	}
}

func TestWriteErrorStatus(t *testing.T) {
	cases := map[core.ErrorKind]int{
		core.KindValidation:     http.StatusBadRequest,
		core.KindNotFound:       http.StatusNotFound,
		core.KindConflict:       http.StatusConflict,
		core.KindDuplicate:      http.StatusConflict,
		core.KindExceedsBalance: http.StatusUnprocessableEntity,
		core.KindUnavailable:    http.StatusServiceUnavailable,
	}
	for kind, want := range cases {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), &core.Error{Kind: kind, Message: "x"})
		if rr.Code != want || errorKind(t, rr) != string(kind) {
			t.Errorf("%s -> %d, want %d", kind, rr.Code, want)
		}
	}

	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("db exploded"))
	if rr.Code != http.StatusInternalServerError || strings.Contains(rr.Body.String(), "exploded") {
		t.Fatalf("internal error leaked: %d %s", rr.Code, rr.Body.String())
	}
}
