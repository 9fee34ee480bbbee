package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seniorcare/opscentre/internal/db"
	"github.com/seniorcare/opscentre/internal/schema"
)

func taskID(t schema.Task) string { return t.ID }

// Task returns the task with the given id. A unique id prefix is accepted.
func (s *Store) Task(ctx context.Context, id string) (schema.Task, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return schema.Task{}, err
	}
	i, err := resolve(tasks, id, taskID)
	if err != nil {
		return schema.Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	return tasks[i], nil
}

// AddTask validates t, assigns an id if it has none, records a Created
// audit entry and appends it to the task collection.
func (s *Store) AddTask(ctx context.Context, t schema.Task) (schema.Task, error) {
	err := mutateSlot(ctx, s, db.SlotTasks, func(tasks []schema.Task, now time.Time) ([]schema.Task, error) {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if indexOf(tasks, t.ID, taskID) >= 0 {
			return nil, fmt.Errorf("task %s already exists", t.ID)
		}
		t.SetDefaults(now)
		t.Logs = append(t.Logs, newLog(s.user, "Created", now))
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("invalid task: %w", err)
		}
		return append(tasks, t), nil
	})
	if err != nil {
		return schema.Task{}, err
	}
	s.logger.Info("task added", "id", t.ID, "title", t.Title)
	return t, nil
}

// UpdateTask applies fn to the task with the given id and records what
// changed in its audit log. fn must not change the id.
func (s *Store) UpdateTask(ctx context.Context, id string, fn func(*schema.Task) error) (schema.Task, error) {
	var updated schema.Task
	err := mutateSlot(ctx, s, db.SlotTasks, func(tasks []schema.Task, now time.Time) ([]schema.Task, error) {
		i, err := resolve(tasks, id, taskID)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		before := tasks[i]
		t := before
		t.Assignees = slices.Clone(before.Assignees)
		t.Logs = slices.Clone(before.Logs)
		if err := fn(&t); err != nil {
			return nil, err
		}
		if t.ID != before.ID {
			return nil, fmt.Errorf("task id cannot change")
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("invalid task: %w", err)
		}
		t.Logs = append(t.Logs, newLog(s.user, describeChange(before, t), now))
		tasks[i] = t
		updated = t
		return tasks, nil
	})
	if err != nil {
		return schema.Task{}, err
	}
	s.logger.Info("task updated", "id", updated.ID)
	return updated, nil
}

// SetTaskStatus is UpdateTask restricted to the status field.
func (s *Store) SetTaskStatus(ctx context.Context, id string, status schema.Status) (schema.Task, error) {
	return s.UpdateTask(ctx, id, func(t *schema.Task) error {
		t.Status = status
		return nil
	})
}

// DeleteTask removes the task with the given id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	var removed string
	err := mutateSlot(ctx, s, db.SlotTasks, func(tasks []schema.Task, _ time.Time) ([]schema.Task, error) {
		i, err := resolve(tasks, id, taskID)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, err)
		}
		removed = tasks[i].ID
		return slices.Delete(tasks, i, i+1), nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("task deleted", "id", removed)
	return nil
}

// DueTasks returns open tasks due on day, recurring occurrences included,
// followed by overdue one-off tasks.
func (s *Store) DueTasks(ctx context.Context, day time.Time) (due, overdue []schema.Task, err error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tasks {
		switch {
		case t.IsDueOn(day):
			due = append(due, t)
		case t.IsOverdue(day):
			overdue = append(overdue, t)
		}
	}
	return due, overdue, nil
}

func describeChange(before, after schema.Task) string {
	if before.Status != after.Status {
		return fmt.Sprintf("Status -> %s", after.Status)
	}
	var fields []string
	if before.Title != after.Title {
		fields = append(fields, "title")
	}
	if before.Deadline != after.Deadline {
		fields = append(fields, "deadline")
	}
	if before.Priority != after.Priority {
		fields = append(fields, "priority")
	}
	if !slices.Equal(before.Assignees, after.Assignees) {
		fields = append(fields, "assignees")
	}
	if len(fields) == 0 {
		return "Updated"
	}
	return "Updated " + strings.Join(fields, ", ")
}

// resolve finds id exactly, or as a unique prefix of one item id.
func resolve[T any](items []T, id string, key func(T) string) (int, error) {
	if id == "" {
		return -1, ErrNotFound
	}
	if i := indexOf(items, id, key); i >= 0 {
		return i, nil
	}
	match := -1
	for i, item := range items {
		if strings.HasPrefix(key(item), id) {
			if match >= 0 {
				return -1, fmt.Errorf("ambiguous id prefix %q", id)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, ErrNotFound
	}
	return match, nil
}
