// Package memory keeps exported statements in process, for development
// without a spreadsheet and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"atelier/internal/core"
	"atelier/internal/export"
	"atelier/internal/ledger"
	ports "atelier/internal/sheets"
)

const base = "Statements"

type Store struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	writes int
}

var _ ports.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{tabs: make(map[string][][]any)}
}

// WriteStatement stores the statement rows and returns a synthetic reference.
func (s *Store) WriteStatement(_ context.Context, st ledger.Statement) (string, error) {
	if st.OwnerID == "" {
		return "", fmt.Errorf("statement without owner: %w", core.ErrMissingOwner)
	}
	return s.put(ports.StatementTab(base, st.OwnerKind, st.OwnerID), export.Rows(st)), nil
}

func (s *Store) WriteSummaries(_ context.Context, kind core.OwnerKind, sums []ledger.EntitySummary) (string, error) {
	return s.put(ports.SummaryTab(base, kind), export.SummaryRows(sums)), nil
}

func (s *Store) RemoveStatement(_ context.Context, kind core.OwnerKind, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tabs, ports.StatementTab(base, kind, ownerID))
	return nil
}

func (s *Store) put(title string, rows [][]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tabs[title] = rows
	s.writes++
	return fmt.Sprintf("mem:%s:%d", title, s.writes)
}

// Tab returns a copy of a tab's rows.
func (s *Store) Tab(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[title]
	if !ok {
		return nil, false
	}
	return append([][]any(nil), rows...), true
}

// Tabs lists tab titles in order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tabs))
	for t := range s.tabs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Writes counts successful writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
