// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"atelier/internal/core"
	"atelier/internal/store"
)

// table keeps records in insertion order.
type table[T any] struct {
	order []string
	rows  map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

type Store struct {
	mu          sync.RWMutex
	projects    *table[core.Project]
	suppliers   *table[core.Supplier]
	team        *table[core.TeamMember]
	charges     *table[core.Charge]
	payments    *table[core.Payment]
	tasks       *table[core.Task]
	idempotency map[string]store.IdempotencyRecord
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		projects:    newTable[core.Project](),
		suppliers:   newTable[core.Supplier](),
		team:        newTable[core.TeamMember](),
		charges:     newTable[core.Charge](),
		payments:    newTable[core.Payment](),
		tasks:       newTable[core.Task](),
		idempotency: make(map[string]store.IdempotencyRecord),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateProject(_ context.Context, p core.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects.rows[p.ID]; ok {
		return core.Conflict("create project", "project "+p.ID+" already exists")
	}
	s.projects.put(p.ID, p)
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects.rows[id]
	if !ok {
		return core.Project{}, core.NotFound("get project", "project", id)
	}
	return p, nil
}

func (s *Store) ListProjects(_ context.Context, includeDeleted bool) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.DeleteFunc(s.projects.all(), func(p core.Project) bool {
		return p.Deleted && !includeDeleted
	}), nil
}

func (s *Store) UpdateProject(_ context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects.rows[p.ID]; !ok {
		return core.NotFound("update project", "project", p.ID)
	}
	s.projects.put(p.ID, p)
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects.rows[id]
	if !ok {
		return core.NotFound("delete project", "project", id)
	}
	p.Deleted = true
	s.projects.put(id, p)
	return nil
}

func (s *Store) CreateSupplier(_ context.Context, v core.Supplier) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers.rows[v.ID]; ok {
		return core.Conflict("create supplier", "supplier "+v.ID+" already exists")
	}
	s.suppliers.put(v.ID, v)
	return nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (core.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.suppliers.rows[id]
	if !ok {
		return core.Supplier{}, core.NotFound("get supplier", "supplier", id)
	}
	return v, nil
}

func (s *Store) ListSuppliers(_ context.Context, includeDeleted bool) ([]core.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.DeleteFunc(s.suppliers.all(), func(v core.Supplier) bool {
		return v.Deleted && !includeDeleted
	}), nil
}

func (s *Store) UpdateSupplier(_ context.Context, v core.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suppliers.rows[v.ID]; !ok {
		return core.NotFound("update supplier", "supplier", v.ID)
	}
	s.suppliers.put(v.ID, v)
	return nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.suppliers.rows[id]
	if !ok {
		return core.NotFound("delete supplier", "supplier", id)
	}
	v.Deleted = true
	s.suppliers.put(id, v)
	return nil
}

func (s *Store) CreateTeamMember(_ context.Context, m core.TeamMember) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.team.rows[m.ID]; ok {
		return core.Conflict("create team member", "team member "+m.ID+" already exists")
	}
	s.team.put(m.ID, m)
	return nil
}

func (s *Store) GetTeamMember(_ context.Context, id string) (core.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.team.rows[id]
	if !ok {
		return core.TeamMember{}, core.NotFound("get team member", "team member", id)
	}
	return m, nil
}

func (s *Store) ListTeamMembers(_ context.Context, includeDeleted bool) ([]core.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.DeleteFunc(s.team.all(), func(m core.TeamMember) bool {
		return m.Deleted && !includeDeleted
	}), nil
}

func (s *Store) UpdateTeamMember(_ context.Context, m core.TeamMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.team.rows[m.ID]; !ok {
		return core.NotFound("update team member", "team member", m.ID)
	}
	s.team.put(m.ID, m)
	return nil
}

func (s *Store) DeleteTeamMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.team.rows[id]
	if !ok {
		return core.NotFound("delete team member", "team member", id)
	}
	m.Deleted = true
	s.team.put(id, m)
	return nil
}

func (s *Store) CreateCharge(_ context.Context, c core.Charge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charges.rows[c.ID]; ok {
		return core.Conflict("create charge", "charge "+c.ID+" already exists")
	}
	c.ImageURLs = slices.Clone(c.ImageURLs)
	s.charges.put(c.ID, c)
	return nil
}

func (s *Store) GetCharge(_ context.Context, id string) (core.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.charges.rows[id]
	if !ok {
		return core.Charge{}, core.NotFound("get charge", "charge", id)
	}
	return c, nil
}

func (s *Store) ListCharges(_ context.Context, q store.ChargeQuery) ([]core.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Charge
	for _, c := range s.charges.all() {
		if q.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteCharge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges.rows[id]
	if !ok {
		return core.NotFound("delete charge", "charge", id)
	}
	c.Deleted = true
	c.UpdatedAt = time.Now()
	s.charges.put(id, c)
	return nil
}

func (s *Store) CreatePayment(_ context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments.rows[p.ID]; ok {
		return core.Conflict("create payment", "payment "+p.ID+" already exists")
	}
	p.Allocations = slices.Clone(p.Allocations)
	s.payments.put(p.ID, p)
	return nil
}

func (s *Store) GetPayment(_ context.Context, id string) (core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments.rows[id]
	if !ok {
		return core.Payment{}, core.NotFound("get payment", "payment", id)
	}
	return p, nil
}

func (s *Store) ListPayments(_ context.Context, q store.PaymentQuery) ([]core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Payment
	for _, p := range s.payments.all() {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments.rows[id]
	if !ok {
		return core.NotFound("delete payment", "payment", id)
	}
	p.Deleted = true
	s.payments.put(id, p)
	return nil
}

func (s *Store) CreateTask(_ context.Context, t core.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks.rows[t.ID]; ok {
		return core.Conflict("create task", "task "+t.ID+" already exists")
	}
	s.tasks.put(t.ID, t)
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks.rows[id]
	if !ok {
		return core.Task{}, core.NotFound("get task", "task", id)
	}
	return t, nil
}

func (s *Store) ListTasks(_ context.Context, projectID string) ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Task
	for _, t := range s.tasks.all() {
		if !t.Deleted && (projectID == "" || t.ProjectID == projectID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateTask(_ context.Context, t core.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks.rows[t.ID]; !ok {
		return core.NotFound("update task", "task", t.ID)
	}
	s.tasks.put(t.ID, t)
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks.rows[id]
	if !ok {
		return core.NotFound("delete task", "task", id)
	}
	t.Deleted = true
	s.tasks.put(id, t)
	return nil
}

func (s *Store) GetIdempotency(_ context.Context, key string) (store.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idempotency[key]
	return rec, ok, nil
}

func (s *Store) SaveIdempotency(_ context.Context, rec store.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Body = slices.Clone(rec.Body)
	s.idempotency[rec.Key] = rec
	return nil
}

func (s *Store) PurgeIdempotency(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.idempotency {
		if rec.CreatedAt.Before(olderThan) {
			delete(s.idempotency, k)
			n++
		}
	}
	return n, nil
}
