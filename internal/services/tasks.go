package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"atelier/internal/core"
)

// TaskPatch holds the task fields a PATCH may change. Nil fields are kept.
type TaskPatch struct {
	Title    *string
	Status   *core.TaskStatus
	Priority *core.TaskPriority
	DueDate  *core.Date
}

type StatusCount struct {
	Status core.TaskStatus `json:"status"`
	Count  int             `json:"count"`
}

type PriorityCount struct {
	Priority core.TaskPriority `json:"priority"`
	Count    int               `json:"count"`
}

// TaskMetrics summarises the tasks of one project.
type TaskMetrics struct {
	TotalTasks           int             `json:"totalTasks"`
	CompletedTasks       int             `json:"completedTasks"`
	CompletionPercentage float64         `json:"completionPercentage"`
	StatusBreakdown      []StatusCount   `json:"statusBreakdown"`
	PriorityBreakdown    []PriorityCount `json:"priorityBreakdown"`
}

// ZeroTaskMetrics lists every status and priority with a zero count.
func ZeroTaskMetrics() TaskMetrics {
	m := TaskMetrics{
		StatusBreakdown:   make([]StatusCount, 0, len(core.TaskStatuses)),
		PriorityBreakdown: make([]PriorityCount, 0, len(core.TaskPriorities)),
	}
	for _, st := range core.TaskStatuses {
		m.StatusBreakdown = append(m.StatusBreakdown, StatusCount{Status: st})
	}
	for _, p := range core.TaskPriorities {
		m.PriorityBreakdown = append(m.PriorityBreakdown, PriorityCount{Priority: p})
	}
	return m
}

func (s *LedgerService) CreateTask(ctx context.Context, projectID string, t core.Task) (core.Task, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return core.Task{}, err
	}
	now := s.now()
	t.ID = core.NewID()
	t.ProjectID = projectID
	t.Title = strings.TrimSpace(t.Title)
	t.Deleted = false
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = core.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = core.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return core.Task{}, core.Validation("create task", err)
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return core.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (s *LedgerService) ListTasks(ctx context.Context, projectID string) ([]core.Task, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *LedgerService) getTask(ctx context.Context, op, id string) (core.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, err
	}
	if t.Deleted {
		return core.Task{}, core.NotFound(op, "task", id)
	}
	return t, nil
}

// UpdateTask applies a partial update.
func (s *LedgerService) UpdateTask(ctx context.Context, id string, patch TaskPatch) (core.Task, error) {
	t, err := s.getTask(ctx, "update task", id)
	if err != nil {
		return core.Task{}, err
	}
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	t.UpdatedAt = s.now()
	if err := t.Validate(); err != nil {
		return core.Task{}, core.Validation("update task", err)
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return core.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (s *LedgerService) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.getTask(ctx, "delete task", id); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// TaskMetrics never fails: when the tasks cannot be loaded it logs the error
// and reports zero counts.
func (s *LedgerService) TaskMetrics(ctx context.Context, projectID string) TaskMetrics {
	m := ZeroTaskMetrics()
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load task metrics, returning zeros",
			"project_id", projectID, "error", err)
		return m
	}

	for _, t := range tasks {
		m.TotalTasks++
		if t.Status == core.TaskCompleted {
			m.CompletedTasks++
		}
		for i := range m.StatusBreakdown {
			if m.StatusBreakdown[i].Status == t.Status {
				m.StatusBreakdown[i].Count++
			}
		}
		for i := range m.PriorityBreakdown {
			if m.PriorityBreakdown[i].Priority == t.Priority {
				m.PriorityBreakdown[i].Count++
			}
		}
	}
	if m.TotalTasks > 0 {
		pct := float64(m.CompletedTasks) / float64(m.TotalTasks) * 100
		m.CompletionPercentage = math.Round(pct*100) / 100
	}
	return m
}
