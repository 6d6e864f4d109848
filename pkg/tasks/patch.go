package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
)

const dateOnly = "2006-01-02"

// Optional tracks whether a JSON field was present and whether it was null
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// UnmarshalJSON records presence; it is only called for keys in the body
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// Patch is a partial update body. Absent fields are left unchanged and
// explicit nulls clear the nullable ones.
type Patch struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Status      Optional[string] `json:"status"`
	Priority    Optional[string] `json:"priority"`
	DueDate     Optional[string] `json:"dueDate"`
	Assignee    Optional[string] `json:"assignee"`

	// Keys lists every top-level key in the body, including unknown ones
	Keys []string `json:"-"`
}

// ParsePatch decodes an update body and records its keys in sorted order
func ParsePatch(body []byte) (*Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.Validation("Invalid request body")
	}

	var p Patch
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apierrors.Validation("Invalid request body")
	}

	p.Keys = make([]string, 0, len(raw))
	for k := range raw {
		p.Keys = append(p.Keys, k)
	}
	sort.Strings(p.Keys)
	return &p, nil
}

// Validate checks the present fields without consulting the store
func (p *Patch) Validate() error {
	if p.Title.Set && (!p.Title.Valid || strings.TrimSpace(p.Title.Value) == "") {
		return apierrors.Validation("Title is required")
	}
	if p.Status.Set && (!p.Status.Valid || strings.TrimSpace(p.Status.Value) == "") {
		return apierrors.Validation("Status cannot be empty")
	}
	if p.Priority.Set && (!p.Priority.Valid || strings.TrimSpace(p.Priority.Value) == "") {
		return apierrors.Validation("Priority cannot be empty")
	}
	if p.DueDate.Set && p.DueDate.Valid {
		if _, err := ParseDueDate(p.DueDate.Value); err != nil {
			return err
		}
	}
	return nil
}

// AssigneeChange returns the new assignee id when the patch sets a non-empty one
func (p *Patch) AssigneeChange() (string, bool) {
	if p.Assignee.Set && p.Assignee.Valid && p.Assignee.Value != "" {
		return p.Assignee.Value, true
	}
	return "", false
}

// Apply writes the present fields onto t. CreatedBy is never touched.
func (p *Patch) Apply(t *Task, now time.Time) error {
	if p.Title.Set {
		t.Title = strings.TrimSpace(p.Title.Value)
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Status.Set {
		t.Status = p.Status.Value
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	if p.DueDate.Set {
		if !p.DueDate.Valid {
			t.DueDate = nil
		} else {
			due, err := ParseDueDate(p.DueDate.Value)
			if err != nil {
				return err
			}
			t.DueDate = due
		}
	}
	if p.Assignee.Set {
		t.Assignee = p.Assignee.Value
	}
	t.UpdatedAt = now
	return nil
}

// ParseDueDate accepts RFC 3339 timestamps or plain dates.
// An empty string means no due date.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return &t, nil
	}
	return nil, apierrors.Validation(fmt.Sprintf("Invalid due date %q", s))
}
