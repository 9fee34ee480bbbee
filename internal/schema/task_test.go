package schema

import (
	"strings"
	"testing"
	"time"
)

func validTask() Task {
	return Task{
		ID:        "t-1",
		Title:     "Replace hallway light",
		Location:  "心薈",
		Assignees: []string{"Chris"},
		Status:    StatusPending,
		Priority:  PriorityNormal,
		Category:  CategoryMaintenance,
		Recurring: RecurNone,
		Deadline:  "2025-03-10",
		Logs:      []AuditLog{},
	}
}

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
		errMsg  string
	}{
		{name: "valid task", mutate: func(*Task) {}},
		{name: "no assignees", mutate: func(tk *Task) { tk.Assignees = nil }},
		{name: "missing id", mutate: func(tk *Task) { tk.ID = "" }, wantErr: true, errMsg: "id is required"},
		{name: "missing title", mutate: func(tk *Task) { tk.Title = "" }, wantErr: true, errMsg: "title is required"},
		{
			name:    "title too long",
			mutate:  func(tk *Task) { tk.Title = strings.Repeat("x", 501) },
			wantErr: true,
			errMsg:  "title must be 500 characters or less",
		},
		{name: "unknown location", mutate: func(tk *Task) { tk.Location = "Kowloon" }, wantErr: true, errMsg: "unknown location"},
		{name: "unknown status", mutate: func(tk *Task) { tk.Status = "open" }, wantErr: true, errMsg: "unknown status"},
		{name: "unknown priority", mutate: func(tk *Task) { tk.Priority = "P1" }, wantErr: true, errMsg: "unknown priority"},
		{name: "unknown category", mutate: func(tk *Task) { tk.Category = "IT" }, wantErr: true, errMsg: "unknown category"},
		{name: "unknown recurrence", mutate: func(tk *Task) { tk.Recurring = "hourly" }, wantErr: true, errMsg: "unknown recurrence"},
		{name: "bad deadline", mutate: func(tk *Task) { tk.Deadline = "10/03/2025" }, wantErr: true, errMsg: "invalid deadline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate() expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.HasPrefix(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %v, want error starting with %v", err, tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestTask_SetDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	task := Task{ID: "t-1", Title: "Check fire extinguishers"}

	task.SetDefaults(now)

	if task.Status != StatusPending {
		t.Errorf("SetDefaults() status = %v, want %v", task.Status, StatusPending)
	}
	if task.Recurring != RecurNone {
		t.Errorf("SetDefaults() recurring = %v, want %v", task.Recurring, RecurNone)
	}
	if task.Deadline != "2025-03-01" {
		t.Errorf("SetDefaults() deadline = %v, want 2025-03-01", task.Deadline)
	}
	if task.Assignees == nil || task.Logs == nil {
		t.Errorf("SetDefaults() left nil slices")
	}
	if err := task.Validate(); err != nil {
		t.Errorf("defaulted task should validate: %v", err)
	}
}

func TestTask_IsOverdue(t *testing.T) {
	today := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline string
		status   Status
		recur    Recurrence
		want     bool
	}{
		{"past open", "2025-03-09", StatusPending, RecurNone, true},
		{"today open", "2025-03-10", StatusPending, RecurNone, false},
		{"future open", "2025-03-11", StatusInProgress, RecurNone, false},
		{"past completed", "2025-03-01", StatusCompleted, RecurNone, false},
		{"past recurring", "2025-01-01", StatusPending, RecurWeekly, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			task.Deadline = tt.deadline
			task.Status = tt.status
			task.Recurring = tt.recur
			if got := task.IsOverdue(today); got != tt.want {
				t.Errorf("IsOverdue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTask_NextOccurrence(t *testing.T) {
	tests := []struct {
		name   string
		anchor string
		recur  Recurrence
		from   string
		want   string
	}{
		{"one-off in past", "2025-01-01", RecurNone, "2025-03-10", "2025-01-01"},
		{"anchor in future", "2025-04-01", RecurMonthly, "2025-03-10", "2025-04-01"},
		{"daily", "2025-01-01", RecurDaily, "2025-03-10", "2025-03-10"},
		{"weekly same weekday", "2025-01-06", RecurWeekly, "2025-01-13", "2025-01-13"},
		{"weekly mid week", "2025-01-06", RecurWeekly, "2025-01-08", "2025-01-13"},
		{"monthly", "2025-01-15", RecurMonthly, "2025-03-16", "2025-04-15"},
		{"monthly on day", "2025-01-15", RecurMonthly, "2025-03-15", "2025-03-15"},
		{"quarterly", "2025-01-01", RecurQuarterly, "2025-05-20", "2025-07-01"},
		{"yearly", "2024-06-30", RecurYearly, "2025-03-10", "2025-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			task.Deadline = tt.anchor
			task.Recurring = tt.recur
			from, err := ParseDate(tt.from)
			if err != nil {
				t.Fatalf("ParseDate failed: %v", err)
			}
			got, ok := task.NextOccurrence(from)
			if !ok {
				t.Fatalf("NextOccurrence() ok = false")
			}
			if FormatDate(got) != tt.want {
				t.Errorf("NextOccurrence() = %v, want %v", FormatDate(got), tt.want)
			}
		})
	}
}

func TestTask_IsDueOn(t *testing.T) {
	task := validTask()
	task.Deadline = "2025-01-06"
	task.Recurring = RecurWeekly

	monday := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	if !task.IsDueOn(monday) {
		t.Errorf("weekly task should be due on %v", FormatDate(monday))
	}
	if task.IsDueOn(tuesday) {
		t.Errorf("weekly task should not be due on %v", FormatDate(tuesday))
	}

	task.Status = StatusCompleted
	if task.IsDueOn(monday) {
		t.Errorf("completed task should never be due")
	}
}

func TestParseEnums(t *testing.T) {
	if got, err := ParseStatus("In_Progress"); err != nil || got != StatusInProgress {
		t.Errorf("ParseStatus(In_Progress) = %v, %v", got, err)
	}
	if got, err := ParseStatus("已完成"); err != nil || got != StatusCompleted {
		t.Errorf("ParseStatus(已完成) = %v, %v", got, err)
	}
	if got, err := ParsePriority("urgent"); err != nil || got != PriorityEmergency {
		t.Errorf("ParsePriority(urgent) = %v, %v", got, err)
	}
	if got, err := ParseRecurrence("quarterly"); err != nil || got != RecurQuarterly {
		t.Errorf("ParseRecurrence(quarterly) = %v, %v", got, err)
	}
	if got, err := ParseDocCategory("policy"); err != nil || got != DocPolicy {
		t.Errorf("ParseDocCategory(policy) = %v, %v", got, err)
	}
	if _, err := ParseCategory("finance"); err == nil {
		t.Errorf("ParseCategory(finance) expected error")
	}
}
