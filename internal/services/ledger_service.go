// Package services orchestrates ledger operations across the store, the
// summary cache and the event publisher.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"atelier/internal/amqp"
	"atelier/internal/cache"
	"atelier/internal/core"
	"atelier/internal/ledger"
	"atelier/internal/store"

	"golang.org/x/sync/singleflight"
)

// Publisher sends ledger events. *amqp.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, event *amqp.LedgerEvent) error
}

// LedgerService writes to the store first, then invalidates cached summaries
// and publishes events. Publishing never fails a request.
type LedgerService struct {
	store     store.Store
	publisher Publisher
	summaries cache.Cache[[]ledger.EntitySummary]
	group     singleflight.Group
	// generation counts writes; summaries computed across a write are not cached.
	generation atomic.Uint64
	now        func() time.Time
}

// Option customises a LedgerService.
type Option func(*LedgerService)

// WithPublisher sets the event publisher. A nil publisher disables events.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithSummaryCache replaces the default in-process summary cache.
func WithSummaryCache(c cache.Cache[[]ledger.EntitySummary]) Option {
	return func(s *LedgerService) { s.summaries = c }
}

// WithoutSummaryCache makes every summary read hit the store. The worker
// uses it because API writes happen in another process.
func WithoutSummaryCache() Option {
	return WithSummaryCache(cache.Nop[[]ledger.EntitySummary]{})
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(st store.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     st,
		summaries: cache.NewLRUCache[[]ledger.EntitySummary](256, 5*time.Minute),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store exposes the underlying store for collaborators such as the
// idempotency middleware.
func (s *LedgerService) Store() store.Store {
	return s.store
}

// Ping checks that the store is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// changed is called after every successful write.
func (s *LedgerService) changed(ctx context.Context, events ...*amqp.LedgerEvent) {
	s.generation.Add(1)
	s.summaries.Clear(ctx)
	for _, e := range events {
		s.publish(ctx, e)
	}
}

func (s *LedgerService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping ledger event", "type", e.Type)
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type, "owner_kind", e.OwnerKind, "owner_id", e.OwnerID, "error", err)
	}
}

// chargeEvents builds one event per owner the charge belongs to.
func chargeEvents(t amqp.EventType, c core.Charge) []*amqp.LedgerEvent {
	var out []*amqp.LedgerEvent
	for _, kind := range []core.OwnerKind{core.OwnerProject, core.OwnerSupplier, core.OwnerTeamMember} {
		if id := c.Owner(kind); id != "" {
			e := amqp.NewLedgerEvent(t, string(kind), id)
			e.ChargeID = c.ID
			out = append(out, e)
		}
	}
	return out
}

func paymentEvents(t amqp.EventType, p core.Payment) []*amqp.LedgerEvent {
	var out []*amqp.LedgerEvent
	for _, kind := range []core.OwnerKind{core.OwnerProject, core.OwnerSupplier, core.OwnerTeamMember} {
		if id := p.Owner(kind); id != "" {
			e := amqp.NewLedgerEvent(t, string(kind), id)
			e.PaymentID = p.ID
			out = append(out, e)
		}
	}
	return out
}

// deletedProjects returns the ids of soft-deleted projects.
func (s *LedgerService) deletedProjects(ctx context.Context) (map[string]struct{}, error) {
	projects, err := s.store.ListProjects(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make(map[string]struct{})
	for _, p := range projects {
		if p.Deleted {
			out[p.ID] = struct{}{}
		}
	}
	return out, nil
}

func (s *LedgerService) scope(ctx context.Context, kind core.OwnerKind) (ledger.Scope, error) {
	deleted, err := s.deletedProjects(ctx)
	if err != nil {
		return ledger.Scope{}, err
	}
	return ledger.ScopeFor(kind).WithDeletedProjects(deleted), nil
}

// Close closes the publisher (when it can be closed) and the store.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
