// Package sqlite implements store.Store on SQLite via modernc.org/sqlite.
//
// Amounts are stored as decimal text so that no precision is lost, calendar
// dates as YYYY-MM-DD and timestamps as RFC 3339. Listing order is insertion
// order (rowid).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"atelier/internal/core"
	"atelier/internal/store"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

// NewRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatDate keeps the instant and its zone, so a date written from one
// zone reads back as the same moment in any other.
func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.RFC3339Nano)
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return core.Zero, nil
	}
	return decimal.NewFromString(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// softDelete flips the deleted flag and reports not_found when no row matched.
func (r *Repository) softDelete(ctx context.Context, table, what, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE "+table+" SET deleted = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	return mustAffect(res, "delete "+what, what, id)
}

func mustAffect(res sql.Result, op, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return core.NotFound(op, what, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Projects

const projectColumns = "id, name, client, location, budget, status, start_date, deleted, created_at"

func scanProject(s scanner) (core.Project, error) {
	var (
		p                        core.Project
		budget, start, createdAt string
		deleted                  int
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Client, &p.Location, &budget, &p.Status, &start, &deleted, &createdAt); err != nil {
		return p, err
	}
	var err error
	if p.Budget, err = parseDecimal(budget); err != nil {
		return p, fmt.Errorf("project %s budget: %w", p.ID, err)
	}
	if p.StartDate, err = parseDate(start); err != nil {
		return p, fmt.Errorf("project %s start date: %w", p.ID, err)
	}
	p.Deleted = deleted == 1
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (r *Repository) CreateProject(ctx context.Context, p core.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO projects ("+projectColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Client, p.Location, p.Budget.String(), p.Status, formatDate(p.StartDate), boolInt(p.Deleted), formatTime(p.CreatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("create project", "project "+p.ID+" already exists")
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, core.NotFound("get project", "project", id)
	}
	if err != nil {
		return p, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *Repository) ListProjects(ctx context.Context, includeDeleted bool) ([]core.Project, error) {
	q := "SELECT " + projectColumns + " FROM projects"
	if !includeDeleted {
		q += " WHERE deleted = 0"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateProject(ctx context.Context, p core.Project) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, client = ?, location = ?, budget = ?, status = ?, start_date = ?, deleted = ? WHERE id = ?",
		p.Name, p.Client, p.Location, p.Budget.String(), p.Status, formatDate(p.StartDate), boolInt(p.Deleted), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return mustAffect(res, "update project", "project", p.ID)
}

func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	return r.softDelete(ctx, "projects", "project", id)
}

// Suppliers

const supplierColumns = "id, name, contact, phone, category, deleted, created_at"

func scanSupplier(s scanner) (core.Supplier, error) {
	var (
		v         core.Supplier
		deleted   int
		createdAt string
	)
	if err := s.Scan(&v.ID, &v.Name, &v.Contact, &v.Phone, &v.Category, &deleted, &createdAt); err != nil {
		return v, err
	}
	v.Deleted = deleted == 1
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

func (r *Repository) CreateSupplier(ctx context.Context, v core.Supplier) error {
	if err := v.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO suppliers ("+supplierColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		v.ID, v.Name, v.Contact, v.Phone, v.Category, boolInt(v.Deleted), formatTime(v.CreatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("create supplier", "supplier "+v.ID+" already exists")
	}
	if err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}
	return nil
}

func (r *Repository) GetSupplier(ctx context.Context, id string) (core.Supplier, error) {
	v, err := scanSupplier(r.db.QueryRowContext(ctx, "SELECT "+supplierColumns+" FROM suppliers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return v, core.NotFound("get supplier", "supplier", id)
	}
	if err != nil {
		return v, fmt.Errorf("get supplier: %w", err)
	}
	return v, nil
}

func (r *Repository) ListSuppliers(ctx context.Context, includeDeleted bool) ([]core.Supplier, error) {
	q := "SELECT " + supplierColumns + " FROM suppliers"
	if !includeDeleted {
		q += " WHERE deleted = 0"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()
	var out []core.Supplier
	for rows.Next() {
		v, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateSupplier(ctx context.Context, v core.Supplier) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE suppliers SET name = ?, contact = ?, phone = ?, category = ?, deleted = ? WHERE id = ?",
		v.Name, v.Contact, v.Phone, v.Category, boolInt(v.Deleted), v.ID)
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}
	return mustAffect(res, "update supplier", "supplier", v.ID)
}

func (r *Repository) DeleteSupplier(ctx context.Context, id string) error {
	return r.softDelete(ctx, "suppliers", "supplier", id)
}

// Team members

const teamColumns = "id, name, role, daily_rate, phone, deleted, created_at"

func scanTeamMember(s scanner) (core.TeamMember, error) {
	var (
		m               core.TeamMember
		rate, createdAt string
		deleted         int
	)
	if err := s.Scan(&m.ID, &m.Name, &m.Role, &rate, &m.Phone, &deleted, &createdAt); err != nil {
		return m, err
	}
	var err error
	if m.DailyRate, err = parseDecimal(rate); err != nil {
		return m, fmt.Errorf("team member %s rate: %w", m.ID, err)
	}
	m.Deleted = deleted == 1
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

func (r *Repository) CreateTeamMember(ctx context.Context, m core.TeamMember) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO team_members ("+teamColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.Name, m.Role, m.DailyRate.String(), m.Phone, boolInt(m.Deleted), formatTime(m.CreatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("create team member", "team member "+m.ID+" already exists")
	}
	if err != nil {
		return fmt.Errorf("create team member: %w", err)
	}
	return nil
}

func (r *Repository) GetTeamMember(ctx context.Context, id string) (core.TeamMember, error) {
	m, err := scanTeamMember(r.db.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM team_members WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, core.NotFound("get team member", "team member", id)
	}
	if err != nil {
		return m, fmt.Errorf("get team member: %w", err)
	}
	return m, nil
}

func (r *Repository) ListTeamMembers(ctx context.Context, includeDeleted bool) ([]core.TeamMember, error) {
	q := "SELECT " + teamColumns + " FROM team_members"
	if !includeDeleted {
		q += " WHERE deleted = 0"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	defer rows.Close()
	var out []core.TeamMember
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTeamMember(ctx context.Context, m core.TeamMember) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE team_members SET name = ?, role = ?, daily_rate = ?, phone = ?, deleted = ? WHERE id = ?",
		m.Name, m.Role, m.DailyRate.String(), m.Phone, boolInt(m.Deleted), m.ID)
	if err != nil {
		return fmt.Errorf("update team member: %w", err)
	}
	return mustAffect(res, "update team member", "team member", m.ID)
}

func (r *Repository) DeleteTeamMember(ctx context.Context, id string) error {
	return r.softDelete(ctx, "team_members", "team member", id)
}
