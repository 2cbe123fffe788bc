package http

import (
	"fmt"
	"net/http"

	"atelier/internal/core"
	"atelier/internal/log"
	"atelier/internal/store"
)

// handleListPayments serves ?kind=&projectId=&supplierId=&teamMemberId=&chargeId=.
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := store.PaymentQuery{
		Kind:         core.PaymentKind(query(r, "kind")),
		ProjectID:    query(r, "projectId"),
		SupplierID:   query(r, "supplierId"),
		TeamMemberID: query(r, "teamMemberId"),
		ChargeID:     query(r, "chargeId"),
	}
	switch q.Kind {
	case "", core.PaymentSupplier, core.PaymentTeam, core.PaymentProject:
	default:
		writeError(w, r, core.Validation("list payments", fmt.Errorf("%w: %q", core.ErrInvalidKind, q.Kind)))
		return
	}
	payments, err := s.svc.ListPayments(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(payments))
}

// handleRecordPayment stores a payment. With chargeIds the amount is spread
// over those charges, oldest first.
func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := bindAndValidate(w, r, "record payment", &req); err != nil {
		writeError(w, r, err)
		return
	}

	var (
		p   core.Payment
		err error
	)
	if len(req.ChargeIDs) > 0 {
		p, err = s.svc.RecordBulkPayment(r.Context(), req.toPayment(), req.ChargeIDs, req.options())
	} else {
		p, err = s.svc.RecordPayment(r.Context(), req.toPayment(), req.options())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	ownerKind := core.OwnerProject
	switch p.Kind {
	case core.PaymentSupplier:
		ownerKind = core.OwnerSupplier
	case core.PaymentTeam:
		ownerKind = core.OwnerTeamMember
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogPaymentRecorded(r.Context(), p.ID, core.FormatAmount(p.Amount), string(ownerKind), p.Owner(ownerKind))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.svc.DeletePayment)
}
