package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"atelier/internal/core"
	"atelier/internal/ledger"
	"atelier/internal/store"
)

// Dashboard is the firm-wide view across every owner kind.
type Dashboard struct {
	Projects        ledger.Totals `json:"projects"`
	Suppliers       ledger.Totals `json:"suppliers"`
	Team            ledger.Totals `json:"team"`
	ProjectCount    int           `json:"projectCount"`
	SupplierCount   int           `json:"supplierCount"`
	TeamMemberCount int           `json:"teamMemberCount"`
	OpenTasks       int           `json:"openTasks"`
}

func summaryKey(kind core.OwnerKind, id string) string {
	return "summary:" + string(kind) + ":" + id
}

func summariesKey(kind core.OwnerKind) string {
	return "summaries:" + string(kind)
}

// cached serves key from the summary cache, computing it at most once per
// key and write generation across concurrent callers. A result is only
// stored when no write landed while it was computed.
func (s *LedgerService) cached(ctx context.Context, key string, compute func(context.Context) ([]ledger.EntitySummary, error)) ([]ledger.EntitySummary, error) {
	gen := s.generation.Load()
	if v, ok := s.summaries.Get(ctx, key); ok {
		return append([]ledger.EntitySummary(nil), v...), nil
	}
	v, err, _ := s.group.Do(key+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if s.generation.Load() == gen {
			s.summaries.Set(ctx, key, out)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]ledger.EntitySummary(nil), v.([]ledger.EntitySummary)...), nil
}

// records loads the charges of the kind an owner view reconciles, with the
// live payments that can count for it: every linked payment, and general
// payments made to owners of that kind.
func (s *LedgerService) records(ctx context.Context, kind core.OwnerKind) ([]core.Charge, []core.Payment, error) {
	charges, err := s.store.ListCharges(ctx, store.ChargeQuery{Kind: core.ChargeKindForOwner(kind)})
	if err != nil {
		return nil, nil, fmt.Errorf("list charges: %w", err)
	}
	all, err := s.store.ListPayments(ctx, store.PaymentQuery{})
	if err != nil {
		return nil, nil, fmt.Errorf("list payments: %w", err)
	}
	payments := all[:0]
	for _, p := range all {
		if p.Linked() || ownerKindOf(p.Kind) == kind {
			payments = append(payments, p)
		}
	}
	return charges, payments, nil
}

// OwnerSummary reconciles one live project, supplier or team member.
func (s *LedgerService) OwnerSummary(ctx context.Context, kind core.OwnerKind, id string) (ledger.EntitySummary, error) {
	name, err := s.ownerName(ctx, kind, id)
	if err != nil {
		return ledger.EntitySummary{}, err
	}
	out, err := s.cached(ctx, summaryKey(kind, id), func(ctx context.Context) ([]ledger.EntitySummary, error) {
		charges, payments, err := s.records(ctx, kind)
		if err != nil {
			return nil, err
		}
		scope, err := s.scope(ctx, kind)
		if err != nil {
			return nil, err
		}
		sum := ledger.SummarizeOwner(kind, id, charges, payments, scope)
		sum.OwnerName = name
		return []ledger.EntitySummary{sum}, nil
	})
	if err != nil {
		return ledger.EntitySummary{}, err
	}
	return out[0], nil
}

// Summaries reconciles every live owner of a kind, sorted by owner id.
// Owners without records get a zero summary.
func (s *LedgerService) Summaries(ctx context.Context, kind core.OwnerKind) ([]ledger.EntitySummary, error) {
	return s.cached(ctx, summariesKey(kind), func(ctx context.Context) ([]ledger.EntitySummary, error) {
		ids, names, err := s.ownerIDs(ctx, kind)
		if err != nil {
			return nil, err
		}
		charges, payments, err := s.records(ctx, kind)
		if err != nil {
			return nil, err
		}
		scope, err := s.scope(ctx, kind)
		if err != nil {
			return nil, err
		}

		byOwner := make(map[string]ledger.EntitySummary)
		for _, sum := range ledger.Summarize(kind, charges, payments, scope) {
			byOwner[sum.OwnerID] = sum
		}
		out := make([]ledger.EntitySummary, 0, len(ids))
		for _, id := range ids {
			sum, ok := byOwner[id]
			if !ok {
				sum = ledger.EntitySummary{
					OwnerKind: kind,
					OwnerID:   id,
					Totals:    ledger.ZeroTotals(),
					Status:    ledger.StatusPending,
				}
			}
			sum.OwnerName = names[id]
			out = append(out, sum)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
		return out, nil
	})
}

// Dashboard adds up the summaries of every owner kind.
func (s *LedgerService) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	for _, v := range []struct {
		kind   core.OwnerKind
		totals *ledger.Totals
		count  *int
	}{
		{core.OwnerProject, &d.Projects, &d.ProjectCount},
		{core.OwnerSupplier, &d.Suppliers, &d.SupplierCount},
		{core.OwnerTeamMember, &d.Team, &d.TeamMemberCount},
	} {
		sums, err := s.Summaries(ctx, v.kind)
		if err != nil {
			return Dashboard{}, fmt.Errorf("dashboard %s: %w", v.kind, err)
		}
		t := ledger.ZeroTotals()
		for _, sum := range sums {
			t = t.Add(sum.Totals)
		}
		*v.totals = t
		*v.count = len(sums)
	}

	tasks, err := s.store.ListTasks(ctx, "")
	if err != nil {
		slog.WarnContext(ctx, "Failed to count open tasks for dashboard", "error", err)
		return d, nil
	}
	deleted, err := s.deletedProjects(ctx)
	if err != nil {
		return d, nil
	}
	for _, t := range tasks {
		if _, gone := deleted[t.ProjectID]; !gone && t.Status != core.TaskCompleted {
			d.OpenTasks++
		}
	}
	return d, nil
}

// Statement reconciles one owner in full, for exports.
func (s *LedgerService) Statement(ctx context.Context, kind core.OwnerKind, id string) (ledger.Statement, error) {
	name, err := s.ownerName(ctx, kind, id)
	if err != nil {
		return ledger.Statement{}, err
	}
	charges, payments, err := s.records(ctx, kind)
	if err != nil {
		return ledger.Statement{}, err
	}
	scope, err := s.scope(ctx, kind)
	if err != nil {
		return ledger.Statement{}, err
	}
	st := ledger.BuildStatement(kind, id, name, charges, payments, scope)
	st.Summary.OwnerName = name
	return st, nil
}
