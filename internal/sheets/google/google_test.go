package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"atelier/internal/core"
	"atelier/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets is a minimal Sheets API: tab listing, add/delete tab, clear
// and update values.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    map[string]int64
	nextID  int64
	updates map[string][][]any
	clears  []string
	gets    int
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{tabs: map[string]int64{"Sheet1": 0}, nextID: 100, updates: map[string][][]any{}}
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/v4/spreadsheets/sid"):
		f.gets++
		var sheets []map[string]any
		for title, id := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": id, "title": title}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var body struct {
			Requests []struct {
				AddSheet *struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
				DeleteSheet *struct {
					SheetID int64 `json:"sheetId"`
				} `json:"deleteSheet"`
			} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		var replies []map[string]any
		for _, req := range body.Requests {
			switch {
			case req.AddSheet != nil:
				f.nextID++
				f.tabs[req.AddSheet.Properties.Title] = f.nextID
				replies = append(replies, map[string]any{"addSheet": map[string]any{
					"properties": map[string]any{"sheetId": f.nextID, "title": req.AddSheet.Properties.Title},
				}})
			case req.DeleteSheet != nil:
				for title, id := range f.tabs {
					if id == req.DeleteSheet.SheetID {
						delete(f.tabs, title)
					}
				}
				replies = append(replies, map[string]any{})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "replies": replies})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := path[strings.Index(path, "/values/")+len("/values/") : len(path)-len(":clear")]
		f.clears = append(f.clears, rng)
		json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		f.updates[rng] = vr.Values
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})

	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := newFakeSheets()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sid", ""), fake
}

func statement() ledger.Statement {
	c := core.Charge{
		ID: "c1", Kind: core.ChargeExpense, Amount: core.MustAmount("250"),
		SupplierID: "s1", Date: core.NewDate(2026, 2, 1), Description: "hinges",
	}
	return ledger.BuildStatement(core.OwnerSupplier, "s1", "Brass & Co", []core.Charge{c}, nil, ledger.SupplierScope)
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", ServiceAccountFile: "/does/not/exist.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := NewWithService(nil, "sid", "")
	if _, err := c.WriteStatement(context.Background(), statement()); err == nil {
		t.Error("expected error with nil service")
	}
	if err := c.RemoveStatement(context.Background(), core.OwnerSupplier, "s1"); err == nil {
		t.Error("expected error with nil service")
	}
}

func TestWriteStatement_CreatesTabAndWritesRows(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	ref, err := c.WriteStatement(ctx, statement())
	if err != nil {
		t.Fatalf("WriteStatement: %v", err)
	}
	title := "Statements supplier s1"
	if _, ok := fake.tabs[title]; !ok {
		t.Fatalf("tab %q not created, tabs=%v", title, fake.tabs)
	}
	if !strings.HasPrefix(ref, "'"+title+"'!A1:") {
		t.Errorf("ref = %q", ref)
	}
	rows := fake.updates[ref]
	if len(rows) == 0 || rows[0][0] != "Supplier statement: Brass & Co" {
		t.Fatalf("rows = %v", rows)
	}
	if len(fake.clears) != 1 || fake.clears[0] != "'"+title+"'!A:Z" {
		t.Errorf("clears = %v", fake.clears)
	}

	// A second write reuses the tab.
	if _, err := c.WriteStatement(ctx, statement()); err != nil {
		t.Fatalf("second WriteStatement: %v", err)
	}
	if len(fake.tabs) != 2 {
		t.Errorf("expected 2 tabs, got %v", fake.tabs)
	}
	if fake.gets != 1 {
		t.Errorf("tab list should be cached, got %d reads", fake.gets)
	}
}

func TestWriteSummaries(t *testing.T) {
	c, fake := newTestClient(t)
	sums := []ledger.EntitySummary{{OwnerKind: core.OwnerProject, OwnerID: "p1", OwnerName: "Villa", Totals: ledger.ZeroTotals()}}
	ref, err := c.WriteSummaries(context.Background(), core.OwnerProject, sums)
	if err != nil {
		t.Fatalf("WriteSummaries: %v", err)
	}
	if ref != "'Statements project summary'!A1:G2" {
		t.Errorf("ref = %q", ref)
	}
	if got := fake.updates[ref]; len(got) != 2 || got[1][1] != "Villa" {
		t.Errorf("rows = %v", got)
	}
}

func TestRemoveStatement(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	if _, err := c.WriteStatement(ctx, statement()); err != nil {
		t.Fatalf("WriteStatement: %v", err)
	}
	if err := c.RemoveStatement(ctx, core.OwnerSupplier, "s1"); err != nil {
		t.Fatalf("RemoveStatement: %v", err)
	}
	if _, ok := fake.tabs["Statements supplier s1"]; ok {
		t.Error("tab should be deleted")
	}
	c.InvalidateSheetCache()
	if err := c.RemoveStatement(ctx, core.OwnerSupplier, "s1"); err != nil {
		t.Errorf("removing a missing tab should succeed: %v", err)
	}
}

func TestQuoteAndColumnName(t *testing.T) {
	if got := quoteSheet("Bob's tab"); got != "'Bob''s tab'" {
		t.Errorf("quoteSheet = %q", got)
	}
	for n, want := range map[int]string{1: "A", 7: "G", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"} {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
}
