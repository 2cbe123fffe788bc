package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"atelier/internal/core"
	"atelier/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleOwnerSummary(kind core.OwnerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sum, err := s.svc.OwnerSummary(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// handleSummaries serves /api/summaries/{kind} for projects, suppliers and team.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	kind, ok := core.ParseOwnerKind(r.PathValue("kind"))
	if !ok {
		writeError(w, r, core.Validation("summaries", fmt.Errorf("%w: %q", core.ErrInvalidKind, r.PathValue("kind"))))
		return
	}
	sums, err := s.svc.Summaries(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sums))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleStatementXLSX renders the owner's statement as a workbook download.
func (s *Server) handleStatementXLSX(kind core.OwnerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		st, err := s.svc.Statement(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, st); err != nil {
			writeError(w, r, fmt.Errorf("render statement: %w", err))
			return
		}
		filename := fmt.Sprintf("%s-%s-statement.xlsx", kind, id)
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
