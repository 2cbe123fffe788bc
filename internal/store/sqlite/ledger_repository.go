package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/internal/core"
	"atelier/internal/store"
)

// Charges

const chargeColumns = "id, kind, amount, payment_status, project_id, supplier_id, team_member_id, date, description, category, image_urls, deleted, created_at, updated_at"

func scanCharge(s scanner) (core.Charge, error) {
	var (
		c                          core.Charge
		kind, amount, date, images string
		createdAt, updatedAt       string
		deleted                    int
	)
	if err := s.Scan(&c.ID, &kind, &amount, &c.PaymentStatus, &c.ProjectID, &c.SupplierID, &c.TeamMemberID,
		&date, &c.Description, &c.Category, &images, &deleted, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	c.Kind = core.ChargeKind(kind)
	var err error
	if c.Amount, err = parseDecimal(amount); err != nil {
		return c, fmt.Errorf("charge %s amount: %w", c.ID, err)
	}
	if c.Date, err = parseDate(date); err != nil {
		return c, fmt.Errorf("charge %s date: %w", c.ID, err)
	}
	if images != "" && images != "[]" {
		if err := json.Unmarshal([]byte(images), &c.ImageURLs); err != nil {
			return c, fmt.Errorf("charge %s images: %w", c.ID, err)
		}
	}
	c.Deleted = deleted == 1
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func encodeImages(urls []string) (string, error) {
	if len(urls) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(urls)
	return string(b), err
}

func (r *Repository) CreateCharge(ctx context.Context, c core.Charge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	images, err := encodeImages(c.ImageURLs)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO charges ("+chargeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, string(c.Kind), c.Amount.String(), c.PaymentStatus, c.ProjectID, c.SupplierID, c.TeamMemberID,
		formatDate(c.Date), c.Description, c.Category, images, boolInt(c.Deleted), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("create charge", "charge "+c.ID+" already exists")
	}
	if err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	return nil
}

func (r *Repository) GetCharge(ctx context.Context, id string) (core.Charge, error) {
	c, err := scanCharge(r.db.QueryRowContext(ctx, "SELECT "+chargeColumns+" FROM charges WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, core.NotFound("get charge", "charge", id)
	}
	if err != nil {
		return c, fmt.Errorf("get charge: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCharges(ctx context.Context, q store.ChargeQuery) ([]core.Charge, error) {
	var (
		where []string
		args  []any
	)
	if !q.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	for col, v := range map[string]string{
		"kind":           string(q.Kind),
		"project_id":     q.ProjectID,
		"supplier_id":    q.SupplierID,
		"team_member_id": q.TeamMemberID,
	} {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	query := "SELECT " + chargeColumns + " FROM charges"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()
	var out []core.Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteCharge(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE charges SET deleted = 1, updated_at = ? WHERE id = ?", formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("delete charge: %w", err)
	}
	return mustAffect(res, "delete charge", "charge", id)
}

// Payments

const paymentColumns = "id, kind, amount, charge_id, project_id, supplier_id, team_member_id, date, mode, reference, note, deleted, created_at"

func scanPayment(s scanner) (core.Payment, error) {
	var (
		p                        core.Payment
		kind, amount, date, mode string
		createdAt                string
		deleted                  int
	)
	if err := s.Scan(&p.ID, &kind, &amount, &p.ChargeID, &p.ProjectID, &p.SupplierID, &p.TeamMemberID,
		&date, &mode, &p.Reference, &p.Note, &deleted, &createdAt); err != nil {
		return p, err
	}
	p.Kind = core.PaymentKind(kind)
	p.Mode = core.PaymentMode(mode)
	var err error
	if p.Amount, err = parseDecimal(amount); err != nil {
		return p, fmt.Errorf("payment %s amount: %w", p.ID, err)
	}
	if p.Date, err = parseDate(date); err != nil {
		return p, fmt.Errorf("payment %s date: %w", p.ID, err)
	}
	p.Deleted = deleted == 1
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// CreatePayment writes the payment and its allocations in one transaction.
func (r *Repository) CreatePayment(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO payments ("+paymentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, string(p.Kind), p.Amount.String(), p.ChargeID, p.ProjectID, p.SupplierID, p.TeamMemberID,
		formatDate(p.Date), string(p.Mode), p.Reference, p.Note, boolInt(p.Deleted), formatTime(p.CreatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("create payment", "payment "+p.ID+" already exists")
	}
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	for i, a := range p.Allocations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO payment_allocations (payment_id, position, charge_id, amount) VALUES (?, ?, ?, ?)",
			p.ID, i, a.ChargeID, a.Amount.String()); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPayment(ctx context.Context, id string) (core.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, core.NotFound("get payment", "payment", id)
	}
	if err != nil {
		return p, fmt.Errorf("get payment: %w", err)
	}
	allocs, err := r.loadAllocations(ctx, []string{p.ID})
	if err != nil {
		return p, err
	}
	p.Allocations = allocs[p.ID]
	return p, nil
}

func (r *Repository) ListPayments(ctx context.Context, q store.PaymentQuery) ([]core.Payment, error) {
	var (
		where []string
		args  []any
	)
	if !q.IncludeDeleted {
		where = append(where, "deleted = 0")
	}
	for col, v := range map[string]string{
		"kind":           string(q.Kind),
		"project_id":     q.ProjectID,
		"supplier_id":    q.SupplierID,
		"team_member_id": q.TeamMemberID,
	} {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	if q.ChargeID != "" {
		where = append(where, "(charge_id = ? OR id IN (SELECT payment_id FROM payment_allocations WHERE charge_id = ?))")
		args = append(args, q.ChargeID, q.ChargeID)
	}
	query := "SELECT " + paymentColumns + " FROM payments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var (
		out []core.Payment
		ids []string
	)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	allocs, err := r.loadAllocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Allocations = allocs[out[i].ID]
	}
	return out, nil
}

func (r *Repository) loadAllocations(ctx context.Context, paymentIDs []string) (map[string][]core.Allocation, error) {
	out := make(map[string][]core.Allocation)
	if len(paymentIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(paymentIDs)), ", ")
	args := make([]any, len(paymentIDs))
	for i, id := range paymentIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT payment_id, charge_id, amount FROM payment_allocations WHERE payment_id IN ("+placeholders+") ORDER BY payment_id, position",
		args...)
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var paymentID, chargeID, amount string
		if err := rows.Scan(&paymentID, &chargeID, &amount); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		d, err := parseDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("allocation amount: %w", err)
		}
		out[paymentID] = append(out[paymentID], core.Allocation{ChargeID: chargeID, Amount: d})
	}
	return out, rows.Err()
}

func (r *Repository) DeletePayment(ctx context.Context, id string) error {
	return r.softDelete(ctx, "payments", "payment", id)
}

// Tasks

const taskColumns = "id, project_id, title, status, priority, due_date, deleted, created_at, updated_at"

func scanTask(s scanner) (core.Task, error) {
	var (
		t                     core.Task
		status, priority, due string
		createdAt, updatedAt  string
		deleted               int
	)
	if err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &status, &priority, &due, &deleted, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.Status = core.TaskStatus(status)
	t.Priority = core.TaskPriority(priority)
	var err error
	if t.DueDate, err = parseDate(due); err != nil {
		return t, fmt.Errorf("task %s due date: %w", t.ID, err)
	}
	t.Deleted = deleted == 1
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (r *Repository) CreateTask(ctx context.Context, t core.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.ProjectID, t.Title, string(t.Status), string(t.Priority), formatDate(t.DueDate),
		boolInt(t.Deleted), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if isUniqueViolation(err) {
		return core.Conflict("create task", "task "+t.ID+" already exists")
	}
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (core.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, core.NotFound("get task", "task", id)
	}
	if err != nil {
		return t, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]core.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE deleted = 0"
	var args []any
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTask(ctx context.Context, t core.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET project_id = ?, title = ?, status = ?, priority = ?, due_date = ?, deleted = ?, updated_at = ? WHERE id = ?",
		t.ProjectID, t.Title, string(t.Status), string(t.Priority), formatDate(t.DueDate), boolInt(t.Deleted), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return mustAffect(res, "update task", "task", t.ID)
}

func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	return r.softDelete(ctx, "tasks", "task", id)
}

// Idempotency keys

func (r *Repository) GetIdempotency(ctx context.Context, key string) (store.IdempotencyRecord, bool, error) {
	var (
		rec       store.IdempotencyRecord
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT key, request_hash, status_code, content_type, body, created_at FROM idempotency_keys WHERE key = ?", key).
		Scan(&rec.Key, &rec.RequestHash, &rec.StatusCode, &rec.ContentType, &rec.Body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("get idempotency key: %w", err)
	}
	rec.CreatedAt = parseTime(createdAt)
	return rec, true, nil
}

func (r *Repository) SaveIdempotency(ctx context.Context, rec store.IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, status_code, content_type, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET request_hash = excluded.request_hash, status_code = excluded.status_code,
		 content_type = excluded.content_type, body = excluded.body, created_at = excluded.created_at`,
		rec.Key, rec.RequestHash, rec.StatusCode, rec.ContentType, rec.Body, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

func (r *Repository) PurgeIdempotency(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM idempotency_keys WHERE created_at < ?", formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return res.RowsAffected()
}
