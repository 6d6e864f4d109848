package tasks

import (
	"strings"
	"time"
)

// Default values applied on create
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	DefaultStatus   = StatusPending
	DefaultPriority = PriorityMedium
)

// Task represents a unit of work owned by its creator
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Assignee    string     `json:"assignee,omitempty"` // empty when unassigned
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask is the input for task creation after validation
type NewTask struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Assignee    string
}

// Build returns the task to persist for creator
func (n NewTask) Build(id, createdBy string, now time.Time) *Task {
	t := &Task{
		ID:          id,
		Title:       strings.TrimSpace(n.Title),
		Description: n.Description,
		Status:      n.Status,
		Priority:    n.Priority,
		DueDate:     n.DueDate,
		Assignee:    n.Assignee,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = DefaultStatus
	}
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	return t
}

// Filter selects tasks for list and count queries.
// Empty fields do not constrain the result.
type Filter struct {
	CreatedBy string
	Status    string
	Priority  string
	Search    string // case-insensitive substring of the title
}

// WithStatus returns a copy of f restricted to status
func (f Filter) WithStatus(status string) Filter {
	f.Status = status
	return f
}

// WithPriority returns a copy of f restricted to priority
func (f Filter) WithPriority(priority string) Filter {
	f.Priority = priority
	return f
}

// PriorityCounts is the per-priority breakdown in Stats
type PriorityCounts struct {
	Low    int64 `json:"low"`
	Medium int64 `json:"medium"`
	High   int64 `json:"high"`
}

// Stats holds independent counts over one scoped filter.
// They need not add up to Total when other status values exist.
type Stats struct {
	Total      int64          `json:"total"`
	Completed  int64          `json:"completed"`
	Pending    int64          `json:"pending"`
	InProgress int64          `json:"inProgress"`
	ByPriority PriorityCounts `json:"byPriority"`
}
