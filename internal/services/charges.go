package services

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/amqp"
	"atelier/internal/core"
	"atelier/internal/ledger"
	"atelier/internal/store"
)

// ChargeFilter selects charges for ListCharges. Date and Status use the
// ledger filter names; empty values mean "all".
type ChargeFilter struct {
	Kind         core.ChargeKind
	ProjectID    string
	SupplierID   string
	TeamMemberID string
	Date         string
	Status       string
}

// CreateExpense records an expense against a project, a supplier or both.
func (s *LedgerService) CreateExpense(ctx context.Context, c core.Charge) (core.Charge, error) {
	c.Kind = core.ChargeExpense
	c.TeamMemberID = ""
	return s.createCharge(ctx, c)
}

// CreateWorkEntry records a team member's work. The project is optional.
func (s *LedgerService) CreateWorkEntry(ctx context.Context, c core.Charge) (core.Charge, error) {
	c.Kind = core.ChargeWork
	c.SupplierID = ""
	return s.createCharge(ctx, c)
}

func (s *LedgerService) createCharge(ctx context.Context, c core.Charge) (core.Charge, error) {
	op := "create " + string(c.Kind)
	now := s.now()
	c.ID = core.NewID()
	c.Description = strings.TrimSpace(c.Description)
	c.Deleted = false
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Date.IsEmpty() {
		c.Date = core.Date{Time: now}
	}
	if err := c.Validate(); err != nil {
		return core.Charge{}, core.Validation(op, err)
	}

	if c.ProjectID != "" {
		if _, err := s.GetProject(ctx, c.ProjectID); err != nil {
			return core.Charge{}, err
		}
	}
	if c.SupplierID != "" {
		if _, err := s.GetSupplier(ctx, c.SupplierID); err != nil {
			return core.Charge{}, err
		}
	}
	if c.TeamMemberID != "" {
		if _, err := s.GetTeamMember(ctx, c.TeamMemberID); err != nil {
			return core.Charge{}, err
		}
	}

	if err := s.store.CreateCharge(ctx, c); err != nil {
		return core.Charge{}, fmt.Errorf("%s: %w", op, err)
	}
	s.changed(ctx, chargeEvents(amqp.EventChargeCreated, c)...)
	return c, nil
}

// GetCharge returns a live charge with its paid amount, balance and status.
func (s *LedgerService) GetCharge(ctx context.Context, id string) (ledger.Line, error) {
	c, payments, err := s.chargeWithPayments(ctx, id)
	if err != nil {
		return ledger.Line{}, err
	}
	return ledger.Resolve(c, payments), nil
}

// ChargeHistory replays the payments of a charge in date order.
func (s *LedgerService) ChargeHistory(ctx context.Context, id string) (ledger.History, error) {
	c, payments, err := s.chargeWithPayments(ctx, id)
	if err != nil {
		return ledger.History{}, err
	}
	return ledger.BuildHistory(c, payments), nil
}

func (s *LedgerService) chargeWithPayments(ctx context.Context, id string) (core.Charge, []core.Payment, error) {
	c, err := s.store.GetCharge(ctx, id)
	if err != nil {
		return core.Charge{}, nil, err
	}
	if c.Deleted {
		return core.Charge{}, nil, core.NotFound("get charge", "charge", id)
	}
	payments, err := s.store.ListPayments(ctx, store.PaymentQuery{ChargeID: id})
	if err != nil {
		return core.Charge{}, nil, fmt.Errorf("list payments for charge %s: %w", id, err)
	}
	return c, payments, nil
}

// ListCharges returns the charges matching f, newest first. Charges of
// deleted projects are left out.
func (s *LedgerService) ListCharges(ctx context.Context, f ChargeFilter) ([]ledger.Line, error) {
	date, err := ledger.ParseDateFilter(f.Date)
	if err != nil {
		return nil, err
	}
	status, err := ledger.ParseStatusFilter(f.Status)
	if err != nil {
		return nil, err
	}

	charges, err := s.store.ListCharges(ctx, store.ChargeQuery{
		Kind:         f.Kind,
		ProjectID:    f.ProjectID,
		SupplierID:   f.SupplierID,
		TeamMemberID: f.TeamMemberID,
	})
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	payments, err := s.store.ListPayments(ctx, store.PaymentQuery{})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	deleted, err := s.deletedProjects(ctx)
	if err != nil {
		return nil, err
	}

	live := ledger.Active(charges, ledger.Scope{}.WithDeletedProjects(deleted))
	filtered, err := ledger.Filter(live, payments, date, status, s.now())
	if err != nil {
		return nil, err
	}
	return ledger.Lines(filtered, payments), nil
}

// DeleteCharge soft-deletes a charge. Payments linked to it stop counting.
func (s *LedgerService) DeleteCharge(ctx context.Context, kind core.ChargeKind, id string) error {
	c, err := s.store.GetCharge(ctx, id)
	if err != nil {
		return err
	}
	if c.Deleted || (kind != "" && c.Kind != kind) {
		return core.NotFound("delete charge", "charge", id)
	}
	if err := s.store.DeleteCharge(ctx, id); err != nil {
		return fmt.Errorf("delete charge: %w", err)
	}
	s.changed(ctx, chargeEvents(amqp.EventChargeDeleted, c)...)
	return nil
}
