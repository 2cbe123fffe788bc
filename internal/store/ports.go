// Package store declares the persistence ports used by the ledger services.
//
// Two adapters implement Store: store/memory for development and tests, and
// store/sqlite for deployments. Lookups of unknown ids return a core.Error of
// kind not_found; soft-deleted records stay readable by id.
package store

import (
	"context"
	"time"

	"atelier/internal/core"
)

// ChargeQuery narrows ListCharges. Empty fields match everything.
type ChargeQuery struct {
	Kind           core.ChargeKind
	ProjectID      string
	SupplierID     string
	TeamMemberID   string
	IncludeDeleted bool
}

// PaymentQuery narrows ListPayments. A payment matches ChargeID when it is
// linked to that charge directly or through an allocation.
type PaymentQuery struct {
	Kind           core.PaymentKind
	ProjectID      string
	SupplierID     string
	TeamMemberID   string
	ChargeID       string
	IncludeDeleted bool
}

// IdempotencyRecord is a stored response for a replayable request.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

type (
	ProjectRepository interface {
		CreateProject(ctx context.Context, p core.Project) error
		GetProject(ctx context.Context, id string) (core.Project, error)
		ListProjects(ctx context.Context, includeDeleted bool) ([]core.Project, error)
		UpdateProject(ctx context.Context, p core.Project) error
		DeleteProject(ctx context.Context, id string) error
	}

	SupplierRepository interface {
		CreateSupplier(ctx context.Context, s core.Supplier) error
		GetSupplier(ctx context.Context, id string) (core.Supplier, error)
		ListSuppliers(ctx context.Context, includeDeleted bool) ([]core.Supplier, error)
		UpdateSupplier(ctx context.Context, s core.Supplier) error
		DeleteSupplier(ctx context.Context, id string) error
	}

	TeamRepository interface {
		CreateTeamMember(ctx context.Context, m core.TeamMember) error
		GetTeamMember(ctx context.Context, id string) (core.TeamMember, error)
		ListTeamMembers(ctx context.Context, includeDeleted bool) ([]core.TeamMember, error)
		UpdateTeamMember(ctx context.Context, m core.TeamMember) error
		DeleteTeamMember(ctx context.Context, id string) error
	}

	ChargeRepository interface {
		CreateCharge(ctx context.Context, c core.Charge) error
		GetCharge(ctx context.Context, id string) (core.Charge, error)
		ListCharges(ctx context.Context, q ChargeQuery) ([]core.Charge, error)
		DeleteCharge(ctx context.Context, id string) error
	}

	PaymentRepository interface {
		CreatePayment(ctx context.Context, p core.Payment) error
		GetPayment(ctx context.Context, id string) (core.Payment, error)
		ListPayments(ctx context.Context, q PaymentQuery) ([]core.Payment, error)
		DeletePayment(ctx context.Context, id string) error
	}

	TaskRepository interface {
		CreateTask(ctx context.Context, t core.Task) error
		GetTask(ctx context.Context, id string) (core.Task, error)
		ListTasks(ctx context.Context, projectID string) ([]core.Task, error)
		UpdateTask(ctx context.Context, t core.Task) error
		DeleteTask(ctx context.Context, id string) error
	}

	IdempotencyStore interface {
		GetIdempotency(ctx context.Context, key string) (IdempotencyRecord, bool, error)
		SaveIdempotency(ctx context.Context, rec IdempotencyRecord) error
		PurgeIdempotency(ctx context.Context, olderThan time.Time) (int64, error)
	}

	// Store is everything the services need from persistence.
	Store interface {
		ProjectRepository
		SupplierRepository
		TeamRepository
		ChargeRepository
		PaymentRepository
		TaskRepository
		IdempotencyStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Matches reports whether c satisfies the query.
func (q ChargeQuery) Matches(c core.Charge) bool {
	if c.Deleted && !q.IncludeDeleted {
		return false
	}
	if q.Kind != "" && c.Kind != q.Kind {
		return false
	}
	if q.ProjectID != "" && c.ProjectID != q.ProjectID {
		return false
	}
	if q.SupplierID != "" && c.SupplierID != q.SupplierID {
		return false
	}
	if q.TeamMemberID != "" && c.TeamMemberID != q.TeamMemberID {
		return false
	}
	return true
}

// Matches reports whether p satisfies the query.
func (q PaymentQuery) Matches(p core.Payment) bool {
	if p.Deleted && !q.IncludeDeleted {
		return false
	}
	if q.Kind != "" && p.Kind != q.Kind {
		return false
	}
	if q.ProjectID != "" && p.ProjectID != q.ProjectID {
		return false
	}
	if q.SupplierID != "" && p.SupplierID != q.SupplierID {
		return false
	}
	if q.TeamMemberID != "" && p.TeamMemberID != q.TeamMemberID {
		return false
	}
	if q.ChargeID != "" && p.AmountFor(q.ChargeID).IsZero() {
		return false
	}
	return true
}
