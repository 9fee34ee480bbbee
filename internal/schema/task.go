package schema

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for deadlines.
const DateLayout = "2006-01-02"

// TimestampLayout matches the ISO-8601 form the web client emits
// (millisecond precision, UTC).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// AuditLog is one entry of a task's append-only history.
type AuditLog struct {
	ID        string `json:"id" yaml:"id" toml:"id"`
	User      string `json:"user" yaml:"user" toml:"user"`
	Action    string `json:"action" yaml:"action" toml:"action"`
	Timestamp string `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
}

// Task is a unit of operational work.
type Task struct {
	ID            string     `json:"id" yaml:"id" toml:"id"`
	Title         string     `json:"title" yaml:"title" toml:"title"`
	Location      string     `json:"location" yaml:"location" toml:"location"`
	Assignees     []string   `json:"assignees" yaml:"assignees" toml:"assignees"`
	Status        Status     `json:"status" yaml:"status" toml:"status"`
	Priority      Priority   `json:"priority" yaml:"priority" toml:"priority"`
	Category      Category   `json:"category" yaml:"category" toml:"category"`
	Recurring     Recurrence `json:"recurring" yaml:"recurring" toml:"recurring"`
	Deadline      string     `json:"deadline" yaml:"deadline" toml:"deadline"`
	Description   string     `json:"description" yaml:"description" toml:"description"`
	AttachmentURL string     `json:"attachmentUrl,omitempty" yaml:"attachmentUrl,omitempty" toml:"attachmentUrl,omitempty"`
	Logs          []AuditLog `json:"logs" yaml:"logs" toml:"logs"`
}

// Validate checks the enumerated fields and the deadline format.
// Assignees may be empty.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if !IsLocation(t.Location) {
		return fmt.Errorf("unknown location %q", t.Location)
	}
	if !isOneOf(t.Status, Statuses) {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if !isOneOf(t.Priority, Priorities) {
		return fmt.Errorf("unknown priority %q", t.Priority)
	}
	if !isOneOf(t.Category, Categories) {
		return fmt.Errorf("unknown category %q", t.Category)
	}
	if !isOneOf(t.Recurring, Recurrences) {
		return fmt.Errorf("unknown recurrence %q", t.Recurring)
	}
	if _, err := ParseDate(t.Deadline); err != nil {
		return fmt.Errorf("invalid deadline: %w", err)
	}
	return nil
}

// SetDefaults fills optional fields so a partially specified task is valid.
func (t *Task) SetDefaults(now time.Time) {
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityNormal
	}
	if t.Category == "" {
		t.Category = CategoryAdmin
	}
	if t.Recurring == "" {
		t.Recurring = RecurNone
	}
	if t.Location == "" {
		t.Location = Locations[len(Locations)-1]
	}
	if t.Deadline == "" {
		t.Deadline = FormatDate(now)
	}
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	if t.Logs == nil {
		t.Logs = []AuditLog{}
	}
}

// IsRecurring reports whether the deadline is a recurrence anchor.
func (t *Task) IsRecurring() bool {
	return t.Recurring != "" && t.Recurring != RecurNone
}

// IsOverdue reports whether an open one-off task has passed its deadline.
func (t *Task) IsOverdue(today time.Time) bool {
	if t.Status == StatusCompleted || t.IsRecurring() {
		return false
	}
	deadline, err := ParseDate(t.Deadline)
	if err != nil {
		return false
	}
	return deadline.Before(Day(today))
}

// IsDueOn reports whether an open task falls due on day. Recurring tasks
// are due on every occurrence generated from their anchor.
func (t *Task) IsDueOn(day time.Time) bool {
	if t.Status == StatusCompleted {
		return false
	}
	next, ok := t.NextOccurrence(day)
	if !ok {
		return false
	}
	return next.Equal(Day(day))
}

// NextOccurrence returns the first due date on or after from. For one-off
// tasks this is simply the deadline, even when it lies in the past.
func (t *Task) NextOccurrence(from time.Time) (time.Time, bool) {
	anchor, err := ParseDate(t.Deadline)
	if err != nil {
		return time.Time{}, false
	}
	from = Day(from)
	if !t.IsRecurring() || !anchor.Before(from) {
		return anchor, true
	}

	switch t.Recurring {
	case RecurDaily:
		return from, true
	case RecurWeekly:
		days := int(from.Sub(anchor).Hours() / 24)
		n := (days + 6) / 7
		return anchor.AddDate(0, 0, 7*n), true
	case RecurMonthly, RecurQuarterly, RecurYearly:
		step := map[Recurrence]int{RecurMonthly: 1, RecurQuarterly: 3, RecurYearly: 12}[t.Recurring]
		months := (from.Year()-anchor.Year())*12 + int(from.Month()-anchor.Month())
		n := months / step
		if n > 0 {
			n--
		}
		for {
			candidate := anchor.AddDate(0, n*step, 0)
			if !candidate.Before(from) {
				return candidate, true
			}
			n++
		}
	}
	return time.Time{}, false
}

// ParseDate parses a YYYY-MM-DD calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders t's calendar date in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to midnight UTC of its calendar date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stamp renders t in the web client's timestamp format.
func Stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
