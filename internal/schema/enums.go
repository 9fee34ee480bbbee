package schema

import (
	"fmt"
	"strings"
)

// Status is the workflow state of a task.
type Status string

const (
	StatusPending    Status = "待處理"
	StatusInProgress Status = "跟進中"
	StatusCompleted  Status = "已完成"
	StatusStuck      Status = "卡住"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusStuck}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityEmergency Priority = "緊急"
	PriorityNormal    Priority = "一般"
	PriorityLow       Priority = "低度"
)

var Priorities = []Priority{PriorityEmergency, PriorityNormal, PriorityLow}

// Category classifies a task by department.
type Category string

const (
	CategoryMaintenance Category = "維修"
	CategoryHR          Category = "HR"
	CategoryAdmin       Category = "行政"
	CategoryProcurement Category = "採購"
	CategoryNursing     Category = "護理品質"
	CategorySafety      Category = "消防/安全"
)

var Categories = []Category{
	CategoryMaintenance, CategoryHR, CategoryAdmin,
	CategoryProcurement, CategoryNursing, CategorySafety,
}

// Recurrence is how often a task repeats. The task deadline is the anchor
// date for every recurrence other than RecurNone.
type Recurrence string

const (
	RecurNone      Recurrence = "單次"
	RecurDaily     Recurrence = "每日"
	RecurWeekly    Recurrence = "每週"
	RecurMonthly   Recurrence = "每月"
	RecurQuarterly Recurrence = "每季"
	RecurYearly    Recurrence = "每年"
)

var Recurrences = []Recurrence{
	RecurNone, RecurDaily, RecurWeekly, RecurMonthly, RecurQuarterly, RecurYearly,
}

// DocCategory is the closed set of reference document kinds.
type DocCategory string

const (
	DocGuideline DocCategory = "守則"
	DocDirectory DocCategory = "通訊錄"
	DocForm      DocCategory = "表格"
	DocPolicy    DocCategory = "政策"
)

var DocCategories = []DocCategory{DocGuideline, DocDirectory, DocForm, DocPolicy}

// Locations is the fixed set of sites a task can belong to.
var Locations = []string{"心薈", "康薈", "福群", "萬基", "大華", "總部營運"}

var statusAliases = map[string]Status{
	"pending":     StatusPending,
	"in-progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"completed":   StatusCompleted,
	"done":        StatusCompleted,
	"stuck":       StatusStuck,
}

var priorityAliases = map[string]Priority{
	"emergency": PriorityEmergency,
	"urgent":    PriorityEmergency,
	"normal":    PriorityNormal,
	"low":       PriorityLow,
}

var categoryAliases = map[string]Category{
	"maintenance": CategoryMaintenance,
	"hr":          CategoryHR,
	"admin":       CategoryAdmin,
	"procurement": CategoryProcurement,
	"nursing":     CategoryNursing,
	"safety":      CategorySafety,
}

var recurrenceAliases = map[string]Recurrence{
	"none":      RecurNone,
	"once":      RecurNone,
	"daily":     RecurDaily,
	"weekly":    RecurWeekly,
	"monthly":   RecurMonthly,
	"quarterly": RecurQuarterly,
	"yearly":    RecurYearly,
}

var docCategoryAliases = map[string]DocCategory{
	"guideline": DocGuideline,
	"directory": DocDirectory,
	"form":      DocForm,
	"policy":    DocPolicy,
}

// ParseStatus accepts a wire value or an English alias such as "in-progress".
func ParseStatus(s string) (Status, error) {
	return parseEnum("status", s, Statuses, statusAliases)
}

// ParsePriority accepts a wire value or an English alias.
func ParsePriority(s string) (Priority, error) {
	return parseEnum("priority", s, Priorities, priorityAliases)
}

// ParseCategory accepts a wire value or an English alias.
func ParseCategory(s string) (Category, error) {
	return parseEnum("category", s, Categories, categoryAliases)
}

// ParseRecurrence accepts a wire value or an English alias.
func ParseRecurrence(s string) (Recurrence, error) {
	return parseEnum("recurrence", s, Recurrences, recurrenceAliases)
}

// ParseDocCategory accepts a wire value or an English alias.
func ParseDocCategory(s string) (DocCategory, error) {
	return parseEnum("document category", s, DocCategories, docCategoryAliases)
}

// IsLocation reports whether loc is one of Locations.
func IsLocation(loc string) bool {
	for _, l := range Locations {
		if l == loc {
			return true
		}
	}
	return false
}

func parseEnum[T ~string](kind, s string, valid []T, aliases map[string]T) (T, error) {
	trimmed := strings.TrimSpace(s)
	for _, v := range valid {
		if string(v) == trimmed {
			return v, nil
		}
	}
	key := strings.ReplaceAll(strings.ToLower(trimmed), "_", "-")
	if v, ok := aliases[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown %s %q", kind, s)
}

func isOneOf[T comparable](v T, valid []T) bool {
	for _, x := range valid {
		if x == v {
			return true
		}
	}
	return false
}
