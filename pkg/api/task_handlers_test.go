package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/rbac"
)

func (e *testEnv) createTask(t testing.TB, token string, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/v1/tasks", token, body)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	return res.Body["task"].(map[string]interface{})
}

func taskTitles(t *testing.T, res response) []string {
	t.Helper()
	list := res.Body["tasks"].([]interface{})
	titles := make([]string, 0, len(list))
	for _, item := range list {
		titles = append(titles, item.(map[string]interface{})["title"].(string))
	}
	return titles
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	bob := env.signup(t, "Bob", "bob@example.com", auth.RoleUser)
	admin := env.signup(t, "Root", "root@example.com", auth.RoleAdmin)

	res := env.do(t, http.MethodPost, "/api/v1/tasks", ann.AccessToken, map[string]interface{}{
		"title":       "T",
		"description": "D",
		"priority":    "high",
		"assignee":    bob.ID,
		"createdBy":   bob.ID,
	})
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "Task created successfully", res.message())

	task := res.Body["task"].(map[string]interface{})
	id := task["id"].(string)
	assert.Equal(t, ann.ID, task["createdBy"])
	assert.Equal(t, bob.ID, task["assignee"])
	assert.Equal(t, "pending", task["status"])
	assert.Equal(t, "high", task["priority"])

	unchanged := func(t *testing.T, got map[string]interface{}) {
		t.Helper()
		assert.Equal(t, "T", got["title"])
		assert.Equal(t, "D", got["description"])
		assert.Equal(t, "high", got["priority"])
		assert.Equal(t, bob.ID, got["assignee"])
		assert.Equal(t, ann.ID, got["createdBy"])
	}

	// Assignee may move the status
	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, bob.AccessToken, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, res.Code)
	updated := res.Body["task"].(map[string]interface{})
	assert.Equal(t, "completed", updated["status"])
	unchanged(t, updated)

	stored, err := env.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
	assert.Equal(t, "T", stored.Title)
	assert.Equal(t, "D", stored.Description)
	assert.Equal(t, "high", stored.Priority)
	assert.Equal(t, bob.ID, stored.Assignee)

	// but nothing else
	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, bob.AccessToken, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, rbac.MsgAssigneeStatus, res.message())

	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, bob.AccessToken, map[string]string{"status": "pending", "title": "x"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = env.do(t, http.MethodDelete, "/api/v1/tasks/"+id, bob.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	// Assignee can read it, and the rejected updates left no trace
	res = env.do(t, http.MethodGet, "/api/v1/tasks/"+id, bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	got := res.Body["task"].(map[string]interface{})
	assert.Equal(t, "completed", got["status"])
	unchanged(t, got)

	// Admin deletes regardless of creator
	res = env.do(t, http.MethodDelete, "/api/v1/tasks/"+id, admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Task deleted successfully", res.message())

	res = env.do(t, http.MethodGet, "/api/v1/tasks/"+id, ann.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestTaskRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/tasks", "/api/v1/tasks/stats", "/api/v1/tasks/abc"} {
		res := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code, path)
		assert.Equal(t, "Not authorized, no token", res.message())
	}

	res := env.do(t, http.MethodGet, "/api/v1/tasks", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"missing title", map[string]string{"description": "d"}, "Title is required"},
		{"blank title", map[string]string{"title": "   "}, "Title is required"},
		{"wrong type", map[string]interface{}{"title": 42}, "Invalid request body"},
		{"bad due date", map[string]string{"title": "T", "dueDate": "tomorrow"}, `Invalid due date "tomorrow"`},
		{"unknown assignee", map[string]string{"title": "T", "assignee": "ghost"}, "Assignee not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.do(t, http.MethodPost, "/api/v1/tasks", ann.AccessToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, res.Code)
			assert.Equal(t, tt.want, res.message())
		})
	}

	list := env.do(t, http.MethodGet, "/api/v1/tasks", ann.AccessToken, nil)
	assert.Equal(t, float64(0), list.Body["count"])
}

func TestCreateTaskWithDueDate(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)

	task := env.createTask(t, ann.AccessToken, map[string]interface{}{
		"title":    "Ship",
		"dueDate":  "2024-03-01",
		"priority": "high",
		"status":   "in-progress",
	})
	assert.Equal(t, "2024-03-01T00:00:00Z", task["dueDate"])
	assert.Equal(t, "high", task["priority"])
	assert.Equal(t, "in-progress", task["status"])
}

func TestListTasksScope(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	bob := env.signup(t, "Bob", "bob@example.com", auth.RoleUser)
	admin := env.signup(t, "Root", "root@example.com", auth.RoleAdmin)

	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Ann first"})
	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Ann second"})
	// Assigned to Ann but created by Bob: not in Ann's list
	env.createTask(t, bob.AccessToken, map[string]interface{}{"title": "Bob for Ann", "assignee": ann.ID})

	res := env.do(t, http.MethodGet, "/api/v1/tasks", ann.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, float64(2), res.Body["count"])
	assert.Equal(t, []string{"Ann second", "Ann first"}, taskTitles(t, res))

	res = env.do(t, http.MethodGet, "/api/v1/tasks", bob.AccessToken, nil)
	assert.Equal(t, []string{"Bob for Ann"}, taskTitles(t, res))

	res = env.do(t, http.MethodGet, "/api/v1/tasks", admin.AccessToken, nil)
	assert.Equal(t, float64(3), res.Body["count"])
}

func TestListTasksFilters(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)

	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Write report", "priority": "high"})
	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Buy milk", "status": "completed"})
	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "100% done"})

	res := env.do(t, http.MethodGet, "/api/v1/tasks?search=REPORT", ann.AccessToken, nil)
	assert.Equal(t, []string{"Write report"}, taskTitles(t, res))

	res = env.do(t, http.MethodGet, "/api/v1/tasks?status=completed", ann.AccessToken, nil)
	assert.Equal(t, []string{"Buy milk"}, taskTitles(t, res))

	res = env.do(t, http.MethodGet, "/api/v1/tasks?priority=high", ann.AccessToken, nil)
	assert.Equal(t, []string{"Write report"}, taskTitles(t, res))

	res = env.do(t, http.MethodGet, "/api/v1/tasks?search=%25", ann.AccessToken, nil)
	assert.Equal(t, []string{"100% done"}, taskTitles(t, res))

	res = env.do(t, http.MethodGet, "/api/v1/tasks?status=completed&priority=high", ann.AccessToken, nil)
	assert.Equal(t, float64(0), res.Body["count"])
	assert.Empty(t, res.Body["tasks"])
}

func TestTaskStats(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	bob := env.signup(t, "Bob", "bob@example.com", auth.RoleUser)
	admin := env.signup(t, "Root", "root@example.com", auth.RoleAdmin)

	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "a", "status": "completed", "priority": "high"})
	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "b"})
	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "c", "status": "in-progress", "priority": "low"})
	env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "d", "status": "blocked"})
	env.createTask(t, bob.AccessToken, map[string]interface{}{"title": "e", "status": "completed"})

	res := env.do(t, http.MethodGet, "/api/v1/tasks/stats", ann.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stats := res.Body["stats"].(map[string]interface{})
	assert.Equal(t, float64(4), stats["total"])
	assert.Equal(t, float64(1), stats["completed"])
	assert.Equal(t, float64(1), stats["pending"])
	assert.Equal(t, float64(1), stats["inProgress"])
	assert.Equal(t, map[string]interface{}{"low": float64(1), "medium": float64(2), "high": float64(1)}, stats["byPriority"])

	res = env.do(t, http.MethodGet, "/api/v1/tasks/stats", admin.AccessToken, nil)
	stats = res.Body["stats"].(map[string]interface{})
	assert.Equal(t, float64(5), stats["total"])
	assert.Equal(t, float64(2), stats["completed"])
}

func TestGetTaskAccess(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	eve := env.signup(t, "Eve", "eve@example.com", auth.RoleUser)
	admin := env.signup(t, "Root", "root@example.com", auth.RoleAdmin)

	id := env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Private"})["id"].(string)

	res := env.do(t, http.MethodGet, "/api/v1/tasks/"+id, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, rbac.MsgTaskAccessDenied, res.message())

	res = env.do(t, http.MethodGet, "/api/v1/tasks/"+id, admin.AccessToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	// A missing task is reported as 404 to everyone
	res = env.do(t, http.MethodGet, "/api/v1/tasks/does-not-exist", eve.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "Task not found", res.message())
}

func TestUpdateTaskByCreator(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	bob := env.signup(t, "Bob", "bob@example.com", auth.RoleUser)

	task := env.createTask(t, ann.AccessToken, map[string]interface{}{
		"title":       "Draft",
		"description": "first pass",
		"dueDate":     "2024-05-01",
		"assignee":    bob.ID,
	})
	id := task["id"].(string)

	res := env.do(t, http.MethodPut, "/api/v1/tasks/"+id, ann.AccessToken, map[string]interface{}{
		"title":       "Final",
		"description": nil,
		"dueDate":     nil,
		"assignee":    nil,
		"createdBy":   bob.ID,
	})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Task updated successfully", res.message())

	updated := res.Body["task"].(map[string]interface{})
	assert.Equal(t, "Final", updated["title"])
	assert.Equal(t, "medium", updated["priority"])
	assert.Equal(t, ann.ID, updated["createdBy"])
	assert.NotContains(t, updated, "description")
	assert.NotContains(t, updated, "dueDate")
	assert.NotContains(t, updated, "assignee")

	stored, err := env.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Final", stored.Title)
	assert.Equal(t, ann.ID, stored.CreatedBy)
	assert.Nil(t, stored.DueDate)
	assert.Empty(t, stored.Assignee)
}

func TestUpdateTaskRejections(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	eve := env.signup(t, "Eve", "eve@example.com", auth.RoleUser)

	id := env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Keep"})["id"].(string)

	res := env.do(t, http.MethodPut, "/api/v1/tasks/missing", ann.AccessToken, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, eve.AccessToken, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, rbac.MsgTaskUpdateDenied, res.message())

	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, ann.AccessToken, map[string]interface{}{"title": nil})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Title is required", res.message())

	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, ann.AccessToken, map[string]string{"assignee": "ghost"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "Assignee not found", res.message())

	res = env.do(t, http.MethodPut, "/api/v1/tasks/"+id, ann.AccessToken, `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	stored, err := env.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Keep", stored.Title)
	assert.Empty(t, stored.Assignee)
}

func TestDeleteTaskByCreator(t *testing.T) {
	env := newTestEnv(t)
	ann := env.signup(t, "Ann", "ann@example.com", auth.RoleUser)
	eve := env.signup(t, "Eve", "eve@example.com", auth.RoleUser)

	id := env.createTask(t, ann.AccessToken, map[string]interface{}{"title": "Temp"})["id"].(string)

	res := env.do(t, http.MethodDelete, "/api/v1/tasks/"+id, eve.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, rbac.MsgTaskDeleteDenied, res.message())

	res = env.do(t, http.MethodDelete, "/api/v1/tasks/"+id, ann.AccessToken, nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = env.do(t, http.MethodDelete, "/api/v1/tasks/"+id, ann.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
