package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"atelier/internal/amqp"
	"atelier/internal/core"
	"atelier/internal/ledger"
	"atelier/internal/store"

	"github.com/shopspring/decimal"
)

// PaymentOptions tweak the checks RecordPayment runs.
type PaymentOptions struct {
	// AllowDuplicate skips the same-day duplicate check, for clients that
	// already confirmed the payment with the user.
	AllowDuplicate bool
}

// ownerKindOf maps a payment kind to the owner it settles.
func ownerKindOf(k core.PaymentKind) core.OwnerKind {
	switch k {
	case core.PaymentSupplier:
		return core.OwnerSupplier
	case core.PaymentTeam:
		return core.OwnerTeamMember
	default:
		return core.OwnerProject
	}
}

// RecordPayment validates and stores a payment.
//
// Linked charges must exist, be live and belong to the payment's owner; each
// contribution must fit in the charge's remaining balance. A payment that
// repeats another one of the same owner, amount, day and reference is
// rejected as a duplicate unless opts.AllowDuplicate is set.
func (s *LedgerService) RecordPayment(ctx context.Context, p core.Payment, opts PaymentOptions) (core.Payment, error) {
	const op = "record payment"

	p.ID = core.NewID()
	p.Reference = strings.TrimSpace(p.Reference)
	p.Deleted = false
	p.CreatedAt = s.now()
	if p.Date.IsEmpty() {
		p.Date = core.Date{Time: p.CreatedAt}
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, core.Validation(op, err)
	}

	kind := ownerKindOf(p.Kind)
	if _, err := s.ownerName(ctx, kind, p.Owner(kind)); err != nil {
		return core.Payment{}, err
	}

	projects := make(map[string]struct{})
	for _, id := range p.ChargeIDs() {
		c, payments, err := s.linkedCharge(ctx, op, kind, p.Owner(kind), id)
		if err != nil {
			return core.Payment{}, err
		}
		contribution := p.AmountFor(id)
		if balance := ledger.Balance(c, payments); contribution.GreaterThan(balance) {
			return core.Payment{}, core.ExceedsBalance(op, fmt.Sprintf(
				"payment of %s exceeds remaining balance %s on charge %s",
				core.FormatAmount(contribution), core.FormatAmount(decimal.Max(balance, core.Zero)), id))
		}
		if c.ProjectID != "" {
			projects[c.ProjectID] = struct{}{}
		}
	}
	if p.ProjectID == "" && len(projects) == 1 {
		for id := range projects {
			p.ProjectID = id
		}
	}

	if !opts.AllowDuplicate {
		if err := s.checkDuplicate(ctx, op, kind, p); err != nil {
			return core.Payment{}, err
		}
	}

	if err := s.store.CreatePayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("%s: %w", op, err)
	}
	s.changed(ctx, paymentEvents(amqp.EventPaymentRecorded, p)...)
	return p, nil
}

// RecordBulkPayment spreads one payment over several charges of the same
// owner, oldest charge first, filling each remaining balance in turn. The
// whole amount must fit in the combined balance.
func (s *LedgerService) RecordBulkPayment(ctx context.Context, p core.Payment, chargeIDs []string, opts PaymentOptions) (core.Payment, error) {
	const op = "record bulk payment"
	if len(chargeIDs) == 0 {
		return core.Payment{}, core.Validation(op, fmt.Errorf("no charges selected: %w", core.ErrInvalidAllocation))
	}
	if !p.Amount.IsPositive() {
		return core.Payment{}, core.Validation(op, core.ErrZeroAmount)
	}

	kind := ownerKindOf(p.Kind)
	type open struct {
		charge  core.Charge
		balance decimal.Decimal
	}
	var targets []open
	seen := make(map[string]struct{}, len(chargeIDs))
	for _, id := range chargeIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c, payments, err := s.linkedCharge(ctx, op, kind, p.Owner(kind), id)
		if err != nil {
			return core.Payment{}, err
		}
		targets = append(targets, open{charge: c, balance: ledger.Balance(c, payments)})
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].charge.Date.Before(targets[j].charge.Date.Time)
	})

	remaining := p.Amount
	var allocations []core.Allocation
	for _, t := range targets {
		if !remaining.IsPositive() {
			break
		}
		if !t.balance.IsPositive() {
			continue
		}
		share := decimal.Min(remaining, t.balance)
		allocations = append(allocations, core.Allocation{ChargeID: t.charge.ID, Amount: share})
		remaining = remaining.Sub(share)
	}
	if remaining.IsPositive() {
		return core.Payment{}, core.ExceedsBalance(op, fmt.Sprintf(
			"payment of %s exceeds the combined balance of the selected charges by %s",
			core.FormatAmount(p.Amount), core.FormatAmount(remaining)))
	}

	p.ChargeID = ""
	p.Allocations = allocations
	return s.RecordPayment(ctx, p, opts)
}

// linkedCharge loads a charge a payment wants to settle, together with the
// payments already linked to it.
func (s *LedgerService) linkedCharge(ctx context.Context, op string, kind core.OwnerKind, ownerID, id string) (core.Charge, []core.Payment, error) {
	c, err := s.store.GetCharge(ctx, id)
	if err != nil {
		return core.Charge{}, nil, err
	}
	if c.Deleted {
		return core.Charge{}, nil, core.Conflict(op, fmt.Sprintf("charge %s is deleted", id))
	}
	if c.Owner(kind) != ownerID {
		return core.Charge{}, nil, core.Validation(op,
			fmt.Errorf("charge %s does not belong to %s %s: %w", id, kind, ownerID, core.ErrInvalidAllocation))
	}
	if c.ProjectID != "" {
		p, err := s.store.GetProject(ctx, c.ProjectID)
		if err == nil && p.Deleted {
			return core.Charge{}, nil, core.Conflict(op, fmt.Sprintf("project %s of charge %s is deleted", p.ID, id))
		}
	}
	payments, err := s.store.ListPayments(ctx, store.PaymentQuery{ChargeID: id})
	if err != nil {
		return core.Charge{}, nil, fmt.Errorf("list payments for charge %s: %w", id, err)
	}
	return c, payments, nil
}

func (s *LedgerService) checkDuplicate(ctx context.Context, op string, kind core.OwnerKind, p core.Payment) error {
	q := store.PaymentQuery{Kind: p.Kind}
	switch kind {
	case core.OwnerSupplier:
		q.SupplierID = p.SupplierID
	case core.OwnerTeamMember:
		q.TeamMemberID = p.TeamMemberID
	default:
		q.ProjectID = p.ProjectID
	}
	existing, err := s.store.ListPayments(ctx, q)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	for _, e := range existing {
		if e.Amount.Equal(p.Amount) && e.Date.SameDay(p.Date.Time) && e.Reference == p.Reference {
			return core.Duplicate(op, fmt.Sprintf(
				"a payment of %s on %s already exists (%s)", core.FormatAmount(p.Amount), p.Date.Format(core.DateLayout), e.ID))
		}
	}
	return nil
}

// ListPayments returns live payments matching q.
func (s *LedgerService) ListPayments(ctx context.Context, q store.PaymentQuery) ([]core.Payment, error) {
	q.IncludeDeleted = false
	payments, err := s.store.ListPayments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// DeletePayment soft-deletes a payment; the charges it settled reopen.
func (s *LedgerService) DeletePayment(ctx context.Context, id string) error {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if p.Deleted {
		return core.NotFound("delete payment", "payment", id)
	}
	if err := s.store.DeletePayment(ctx, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	s.changed(ctx, paymentEvents(amqp.EventPaymentDeleted, p)...)
	return nil
}
