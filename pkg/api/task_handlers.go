package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/contextkeys"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/middleware"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/rbac"
	"github.com/platinummonkey/taskapi/pkg/storage"
	"github.com/platinummonkey/taskapi/pkg/tasks"
)

// taskStore is the slice of storage the task handlers need
type taskStore interface {
	storage.TaskStore
	storage.UserReader
}

// TaskHandlers handles task CRUD and statistics
type TaskHandlers struct {
	store   taskStore
	metrics *observability.Metrics
	authn   *middleware.AuthMiddleware
	now     func() time.Time
	newID   func() string
}

// NewTaskHandlers creates a new task handlers instance
func NewTaskHandlers(store taskStore, metrics *observability.Metrics, authn *middleware.AuthMiddleware, now func() time.Time, newID func() string) *TaskHandlers {
	return &TaskHandlers{
		store:   store,
		metrics: metrics,
		authn:   authn,
		now:     now,
		newID:   newID,
	}
}

// RegisterRoutes registers task routes. /tasks/stats is registered ahead of
// /tasks/{id} so it is never read as an id.
func (h *TaskHandlers) RegisterRoutes(router *mux.Router) {
	r := subrouter(router, "/tasks")
	r.Use(h.authn.Handler)

	r.HandleFunc("", h.createTask).Methods(http.MethodPost)
	r.HandleFunc("", h.listTasks).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.getTask).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.updateTask).Methods(http.MethodPut)
	r.HandleFunc("/{id}", h.deleteTask).Methods(http.MethodDelete)
}

func principalFrom(r *http.Request) *auth.Principal {
	p, _ := contextkeys.Principal(r.Context())
	return p
}

// deny records a forbidden decision on taskID and writes it
func (h *TaskHandlers) deny(w http.ResponseWriter, r *http.Request, taskID string, d rbac.Decision) {
	h.metrics.RecordDenial(d.Permission.String())
	observability.FromContext(r.Context()).
		WithField("task_id", taskID).
		WithField("permission", d.Permission.String()).
		Debug(d.Reason)
	httputil.WriteAPIError(w, r, d.Err())
}

// checkAssignee rejects assignment to a user that does not exist
func (h *TaskHandlers) checkAssignee(r *http.Request, id string) error {
	if id == "" {
		return nil
	}
	if _, err := h.store.GetUserByID(r.Context(), id); err != nil {
		if apierrors.IsKind(err, apierrors.KindNotFound) {
			return apierrors.Validation("Assignee not found")
		}
		return err
	}
	return nil
}

// createTask handles POST /tasks
func (h *TaskHandlers) createTask(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if err := rbac.CanCreateTask(principal); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	var req CreateTaskRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	input, err := req.NewTask()
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if err := h.checkAssignee(r, input.Assignee); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	task := input.Build(h.newID(), rbac.OwnerForNewTask(principal), h.now())
	if err := h.store.CreateTask(r.Context(), task); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithField("task_id", task.ID).Info("Task created")
	httputil.WriteSuccess(w, http.StatusCreated, httputil.Envelope{
		"message": "Task created successfully",
		"task":    task,
	})
}

// scopedFilter limits non-admins to the tasks they created
func scopedFilter(p *auth.Principal) tasks.Filter {
	return tasks.Filter{CreatedBy: rbac.TaskListScope(p)}
}

// listTasks handles GET /tasks?status=&priority=&search=
func (h *TaskHandlers) listTasks(w http.ResponseWriter, r *http.Request) {
	filter := scopedFilter(principalFrom(r))
	filter.Status = httputil.QueryString(r, "status", "")
	filter.Priority = httputil.QueryString(r, "priority", "")
	filter.Search = httputil.QueryString(r, "search", "")

	result, err := h.store.ListTasks(r.Context(), filter)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, listResponse("tasks", len(result), result))
}

// stats handles GET /tasks/stats
func (h *TaskHandlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := tasks.ComputeStats(r.Context(), h.store, scopedFilter(principalFrom(r)))
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{"stats": stats})
}

// loadTask resolves the {id} path variable. A missing task is reported
// before any authorization decision.
func (h *TaskHandlers) loadTask(r *http.Request) (*tasks.Task, error) {
	id, err := httputil.PathVar(r, "id")
	if err != nil {
		return nil, err
	}
	return h.store.GetTask(r.Context(), id)
}

func taskRef(t *tasks.Task) rbac.TaskRef {
	return rbac.TaskRef{CreatedBy: t.CreatedBy, Assignee: t.Assignee}
}

// getTask handles GET /tasks/{id}
func (h *TaskHandlers) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.loadTask(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if d := rbac.CheckTaskRead(principalFrom(r), taskRef(task)); !d.Allowed {
		h.deny(w, r, task.ID, d)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{"task": task})
}

// updateTask handles PUT /tasks/{id}. Only fields present in the body change.
func (h *TaskHandlers) updateTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.loadTask(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	patch, err := tasks.ParsePatch(body)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if d := rbac.CheckTaskUpdate(principalFrom(r), taskRef(task), patch.Keys); !d.Allowed {
		h.deny(w, r, task.ID, d)
		return
	}

	if err := patch.Validate(); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if assignee, ok := patch.AssigneeChange(); ok {
		if err := h.checkAssignee(r, assignee); err != nil {
			httputil.WriteAPIError(w, r, err)
			return
		}
	}

	if err := patch.Apply(task, h.now()); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if err := h.store.UpdateTask(r.Context(), task); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("task_id", task.ID).
		WithField("fields", patch.Keys).
		Info("Task updated")

	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{
		"message": "Task updated successfully",
		"task":    task,
	})
}

// deleteTask handles DELETE /tasks/{id}
func (h *TaskHandlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.loadTask(r)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	if d := rbac.CheckTaskDelete(principalFrom(r), taskRef(task)); !d.Allowed {
		h.deny(w, r, task.ID, d)
		return
	}

	if err := h.store.DeleteTask(r.Context(), task.ID); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithField("task_id", task.ID).Info("Task deleted")
	httputil.WriteMessage(w, http.StatusOK, "Task deleted successfully")
}
