package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/tasks"
)

var base = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

// runStoreSuite exercises the full store contract against a migrated, empty database
func runStoreSuite(t *testing.T, s *Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, s) })
}

func mustCreateUser(t *testing.T, s *Store, name, email string, role auth.Role, at time.Time) *auth.User {
	t.Helper()
	u := &auth.User{Name: name, Email: email, PasswordHash: "hash-" + name, Role: role, CreatedAt: at}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, s *Store) {
	ctx := context.Background()

	ann := mustCreateUser(t, s, "Ann", "ann@example.com", auth.RoleUser, base)
	require.NotEmpty(t, ann.ID)
	mustCreateUser(t, s, "Root", "root@example.com", auth.RoleAdmin, base.Add(time.Minute))

	got, err := s.GetUserByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "hash-Ann", got.PasswordHash)
	assert.Equal(t, auth.RoleUser, got.Role)
	assert.True(t, base.Equal(got.CreatedAt))

	got, err = s.GetUserByEmail(ctx, "  ANN@example.com ")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, got.ID)

	_, err = s.GetUserByID(ctx, "missing")
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))

	err = s.CreateUser(ctx, &auth.User{Name: "Dup", Email: "ann@example.com", PasswordHash: "x"})
	assert.True(t, apierrors.IsKind(err, apierrors.KindDuplicateEmail))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ann", users[0].Name)

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	updated, err := s.UpdateUserRole(ctx, ann.ID, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, updated.Role)

	_, err = s.UpdateUserRole(ctx, "missing", auth.RoleAdmin)
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))

	require.NoError(t, s.DeleteUser(ctx, ann.ID))
	_, err = s.GetUserByID(ctx, ann.ID)
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))
	assert.True(t, apierrors.IsKind(s.DeleteUser(ctx, ann.ID), apierrors.KindNotFound))
}

func mustCreateTask(t *testing.T, s *Store, task *tasks.Task) *tasks.Task {
	t.Helper()
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

func testTasks(t *testing.T, s *Store) {
	ctx := context.Background()
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t1 := mustCreateTask(t, s, &tasks.Task{Title: "Write Report", Status: "pending", Priority: "high", CreatedBy: "ann", Assignee: "bob", DueDate: &due, CreatedAt: base})
	t2 := mustCreateTask(t, s, &tasks.Task{Title: "review report", Status: "completed", Priority: "low", CreatedBy: "ann", CreatedAt: base.Add(time.Hour)})
	t3 := mustCreateTask(t, s, &tasks.Task{Title: "Bob's 100% task_1", Status: "pending", Priority: "medium", CreatedBy: "bob", CreatedAt: base.Add(2 * time.Hour)})

	got, err := s.GetTask(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write Report", got.Title)
	assert.Equal(t, "bob", got.Assignee)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))

	got, err = s.GetTask(ctx, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Assignee)
	assert.Nil(t, got.DueDate)

	_, err = s.GetTask(ctx, "missing")
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))

	all, err := s.ListTasks(ctx, tasks.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{t3.ID, t2.ID, t1.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	filters := []tasks.Filter{
		{CreatedBy: "ann"},
		{CreatedBy: "ann", Status: "pending"},
		{CreatedBy: "ann", Priority: "low"},
		{CreatedBy: "ann", Search: "REPORT"},
		{CreatedBy: "ann", Search: "100%"},
		{CreatedBy: "ann", Status: "completed", Priority: "low", Search: "review"},
	}
	for _, f := range filters {
		list, err := s.ListTasks(ctx, f)
		require.NoError(t, err)
		for _, task := range list {
			assert.Equal(t, "ann", task.CreatedBy, "filter %+v", f)
		}
	}

	list, err := s.ListTasks(ctx, tasks.Filter{Search: "report"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// LIKE wildcards in the search term match literally
	list, err = s.ListTasks(ctx, tasks.Filter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, t3.ID, list[0].ID)

	list, err = s.ListTasks(ctx, tasks.Filter{Search: "%"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListTasks(ctx, tasks.Filter{Search: "k_1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := s.CountTasks(ctx, tasks.Filter{CreatedBy: "ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountTasks(ctx, tasks.Filter{Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stats, err := tasks.ComputeStats(ctx, s, tasks.Filter{CreatedBy: "ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.ByPriority.High)

	t1.Status = "completed"
	t1.Assignee = ""
	t1.DueDate = nil
	t1.CreatedBy = "eve"
	t1.UpdatedAt = base.Add(24 * time.Hour)
	require.NoError(t, s.UpdateTask(ctx, t1))

	got, err = s.GetTask(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "", got.Assignee)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, "ann", got.CreatedBy)

	err = s.UpdateTask(ctx, &tasks.Task{ID: "missing", Title: "x"})
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))

	require.NoError(t, s.DeleteTask(ctx, t2.ID))
	_, err = s.GetTask(ctx, t2.ID)
	assert.True(t, apierrors.IsKind(err, apierrors.KindNotFound))
	assert.True(t, apierrors.IsKind(s.DeleteTask(ctx, t2.ID), apierrors.KindNotFound))
}
