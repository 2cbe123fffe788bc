package http

import (
	"context"
	"net/http"

	"atelier/internal/core"
	"atelier/internal/log"
	"atelier/internal/services"
)

// deleteByID runs a soft delete for the {id} wildcard and answers 204.
func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, del func(context.Context, string) error) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListCharges serves ?date=&status=&projectId=&supplierId=&teamMemberId=.
func (s *Server) handleListCharges(kind core.ChargeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := s.svc.ListCharges(r.Context(), services.ChargeFilter{
			Kind:         kind,
			ProjectID:    query(r, "projectId"),
			SupplierID:   query(r, "supplierId"),
			TeamMemberID: query(r, "teamMemberId"),
			Date:         query(r, "date"),
			Status:       query(r, "status"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, orEmpty(lines))
	}
}

func (s *Server) handleCreateCharge(kind core.ChargeKind) http.HandlerFunc {
	op := "create " + string(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		var req chargeRequest
		if err := bindAndValidate(w, r, op, &req); err != nil {
			writeError(w, r, err)
			return
		}

		var (
			c   core.Charge
			err error
		)
		if kind == core.ChargeWork {
			c, err = s.svc.CreateWorkEntry(r.Context(), req.toCharge())
		} else {
			c, err = s.svc.CreateExpense(r.Context(), req.toCharge())
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		ownerKind, ownerID := core.OwnerTeamMember, c.TeamMemberID
		if kind == core.ChargeExpense {
			ownerKind, ownerID = core.OwnerSupplier, c.SupplierID
			if ownerID == "" {
				ownerKind, ownerID = core.OwnerProject, c.ProjectID
			}
		}
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogChargeCreated(r.Context(), c.ID, core.FormatAmount(c.Amount), string(ownerKind), ownerID)
		writeJSON(w, http.StatusCreated, c)
	}
}

func (s *Server) handleGetCharge(kind core.ChargeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		line, err := s.svc.GetCharge(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if line.Kind != kind {
			writeError(w, r, core.NotFound("get "+string(kind), string(kind), id))
			return
		}
		writeJSON(w, http.StatusOK, line)
	}
}

func (s *Server) handleDeleteCharge(kind core.ChargeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.deleteByID(w, r, func(ctx context.Context, id string) error {
			return s.svc.DeleteCharge(ctx, kind, id)
		})
	}
}

func (s *Server) handleChargeHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.svc.ChargeHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
