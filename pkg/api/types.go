package api

import (
	"strings"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/tasks"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials were supplied
func (r *LoginRequest) Validate() error {
	switch {
	case r.Email == "":
		return apierrors.Validation(`"email" is required`)
	case r.Password == "":
		return apierrors.Validation(`"password" is required`)
	}
	return nil
}

// RefreshRequest is the body of POST /auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateRoleRequest is the body of PUT /admin/users/{id}/role
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// CreateTaskRequest is the body of POST /tasks.
// Unknown keys, including createdBy, are ignored.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate"`
	Assignee    *string `json:"assignee"`
}

// NewTask validates the request and converts it for the domain.
// Blank status and priority fall back to their defaults.
func (r CreateTaskRequest) NewTask() (tasks.NewTask, error) {
	if strings.TrimSpace(r.Title) == "" {
		return tasks.NewTask{}, apierrors.Validation("Title is required")
	}

	n := tasks.NewTask{
		Title:       r.Title,
		Description: r.Description,
		Status:      strings.TrimSpace(r.Status),
		Priority:    strings.TrimSpace(r.Priority),
	}
	if r.DueDate != nil {
		due, err := tasks.ParseDueDate(*r.DueDate)
		if err != nil {
			return tasks.NewTask{}, err
		}
		n.DueDate = due
	}
	if r.Assignee != nil {
		n.Assignee = strings.TrimSpace(*r.Assignee)
	}
	return n, nil
}

// listResponse builds {"count": n, key: items}
func listResponse(key string, count int, items interface{}) httputil.Envelope {
	return httputil.Envelope{
		"count": count,
		key:     items,
	}
}
