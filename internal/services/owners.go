package services

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/amqp"
	"atelier/internal/core"
)

func (s *LedgerService) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	p.ID = core.NewID()
	p.Name = strings.TrimSpace(p.Name)
	p.Deleted = false
	p.CreatedAt = s.now()
	if p.Status == "" {
		p.Status = "active"
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, core.Validation("create project", err)
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", err)
	}
	s.changed(ctx)
	return p, nil
}

// GetProject returns a live project; soft-deleted projects are not found.
func (s *LedgerService) GetProject(ctx context.Context, id string) (core.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return core.Project{}, err
	}
	if p.Deleted {
		return core.Project{}, core.NotFound("get project", "project", id)
	}
	return p, nil
}

func (s *LedgerService) ListProjects(ctx context.Context) ([]core.Project, error) {
	return s.store.ListProjects(ctx, false)
}

// UpdateProject replaces the editable fields of a live project.
func (s *LedgerService) UpdateProject(ctx context.Context, id string, in core.Project) (core.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return core.Project{}, err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Client = in.Client
	p.Location = in.Location
	p.Budget = in.Budget
	p.StartDate = in.StartDate
	if in.Status != "" {
		p.Status = in.Status
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, core.Validation("update project", err)
	}
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("update project: %w", err)
	}
	s.changed(ctx)
	return p, nil
}

// DeleteProject soft-deletes the project. Its charges stay in the store but
// drop out of every aggregate.
func (s *LedgerService) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.changed(ctx, amqp.NewLedgerEvent(amqp.EventOwnerDeleted, string(core.OwnerProject), id))
	return nil
}

func (s *LedgerService) CreateSupplier(ctx context.Context, v core.Supplier) (core.Supplier, error) {
	v.ID = core.NewID()
	v.Name = strings.TrimSpace(v.Name)
	v.Deleted = false
	v.CreatedAt = s.now()
	if err := v.Validate(); err != nil {
		return core.Supplier{}, core.Validation("create supplier", err)
	}
	if err := s.store.CreateSupplier(ctx, v); err != nil {
		return core.Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	s.changed(ctx)
	return v, nil
}

func (s *LedgerService) GetSupplier(ctx context.Context, id string) (core.Supplier, error) {
	v, err := s.store.GetSupplier(ctx, id)
	if err != nil {
		return core.Supplier{}, err
	}
	if v.Deleted {
		return core.Supplier{}, core.NotFound("get supplier", "supplier", id)
	}
	return v, nil
}

func (s *LedgerService) ListSuppliers(ctx context.Context) ([]core.Supplier, error) {
	return s.store.ListSuppliers(ctx, false)
}

func (s *LedgerService) UpdateSupplier(ctx context.Context, id string, in core.Supplier) (core.Supplier, error) {
	v, err := s.GetSupplier(ctx, id)
	if err != nil {
		return core.Supplier{}, err
	}
	v.Name = strings.TrimSpace(in.Name)
	v.Contact = in.Contact
	v.Phone = in.Phone
	v.Category = in.Category
	if err := v.Validate(); err != nil {
		return core.Supplier{}, core.Validation("update supplier", err)
	}
	if err := s.store.UpdateSupplier(ctx, v); err != nil {
		return core.Supplier{}, fmt.Errorf("update supplier: %w", err)
	}
	s.changed(ctx)
	return v, nil
}

func (s *LedgerService) DeleteSupplier(ctx context.Context, id string) error {
	if _, err := s.GetSupplier(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteSupplier(ctx, id); err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	s.changed(ctx, amqp.NewLedgerEvent(amqp.EventOwnerDeleted, string(core.OwnerSupplier), id))
	return nil
}

func (s *LedgerService) CreateTeamMember(ctx context.Context, m core.TeamMember) (core.TeamMember, error) {
	m.ID = core.NewID()
	m.Name = strings.TrimSpace(m.Name)
	m.Deleted = false
	m.CreatedAt = s.now()
	if err := m.Validate(); err != nil {
		return core.TeamMember{}, core.Validation("create team member", err)
	}
	if err := s.store.CreateTeamMember(ctx, m); err != nil {
		return core.TeamMember{}, fmt.Errorf("create team member: %w", err)
	}
	s.changed(ctx)
	return m, nil
}

func (s *LedgerService) GetTeamMember(ctx context.Context, id string) (core.TeamMember, error) {
	m, err := s.store.GetTeamMember(ctx, id)
	if err != nil {
		return core.TeamMember{}, err
	}
	if m.Deleted {
		return core.TeamMember{}, core.NotFound("get team member", "team member", id)
	}
	return m, nil
}

func (s *LedgerService) ListTeamMembers(ctx context.Context) ([]core.TeamMember, error) {
	return s.store.ListTeamMembers(ctx, false)
}

func (s *LedgerService) UpdateTeamMember(ctx context.Context, id string, in core.TeamMember) (core.TeamMember, error) {
	m, err := s.GetTeamMember(ctx, id)
	if err != nil {
		return core.TeamMember{}, err
	}
	m.Name = strings.TrimSpace(in.Name)
	m.Role = in.Role
	m.DailyRate = in.DailyRate
	m.Phone = in.Phone
	if err := m.Validate(); err != nil {
		return core.TeamMember{}, core.Validation("update team member", err)
	}
	if err := s.store.UpdateTeamMember(ctx, m); err != nil {
		return core.TeamMember{}, fmt.Errorf("update team member: %w", err)
	}
	s.changed(ctx)
	return m, nil
}

func (s *LedgerService) DeleteTeamMember(ctx context.Context, id string) error {
	if _, err := s.GetTeamMember(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteTeamMember(ctx, id); err != nil {
		return fmt.Errorf("delete team member: %w", err)
	}
	s.changed(ctx, amqp.NewLedgerEvent(amqp.EventOwnerDeleted, string(core.OwnerTeamMember), id))
	return nil
}

// ownerName looks up a live owner and returns its display name.
func (s *LedgerService) ownerName(ctx context.Context, kind core.OwnerKind, id string) (string, error) {
	switch kind {
	case core.OwnerProject:
		p, err := s.GetProject(ctx, id)
		return p.Name, err
	case core.OwnerSupplier:
		v, err := s.GetSupplier(ctx, id)
		return v.Name, err
	case core.OwnerTeamMember:
		m, err := s.GetTeamMember(ctx, id)
		return m.Name, err
	}
	return "", core.Validation("owner name", fmt.Errorf("unknown owner kind %q", kind))
}

// ownerIDs lists the ids of live owners of a kind.
func (s *LedgerService) ownerIDs(ctx context.Context, kind core.OwnerKind) ([]string, map[string]string, error) {
	var (
		ids   []string
		names = make(map[string]string)
	)
	switch kind {
	case core.OwnerProject:
		list, err := s.store.ListProjects(ctx, false)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range list {
			ids = append(ids, p.ID)
			names[p.ID] = p.Name
		}
	case core.OwnerSupplier:
		list, err := s.store.ListSuppliers(ctx, false)
		if err != nil {
			return nil, nil, err
		}
		for _, v := range list {
			ids = append(ids, v.ID)
			names[v.ID] = v.Name
		}
	case core.OwnerTeamMember:
		list, err := s.store.ListTeamMembers(ctx, false)
		if err != nil {
			return nil, nil, err
		}
		for _, m := range list {
			ids = append(ids, m.ID)
			names[m.ID] = m.Name
		}
	default:
		return nil, nil, core.Validation("list owners", fmt.Errorf("unknown owner kind %q", kind))
	}
	return ids, names, nil
}
