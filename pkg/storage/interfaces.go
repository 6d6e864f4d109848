package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/tasks"
)

// UserReader provides user lookups
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*auth.User, error)
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
	ListUsers(ctx context.Context) ([]*auth.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// UserWriter provides user mutations
type UserWriter interface {
	CreateUser(ctx context.Context, user *auth.User) error
	UpdateUserRole(ctx context.Context, id string, role auth.Role) (*auth.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserStore is the credential store.
// Missing records yield apierrors.NotFound and duplicate emails yield
// apierrors.DuplicateEmail; anything else is a wrapped driver error.
type UserStore interface {
	UserReader
	UserWriter
}

// TaskReader provides task queries
type TaskReader interface {
	GetTask(ctx context.Context, id string) (*tasks.Task, error)
	ListTasks(ctx context.Context, filter tasks.Filter) ([]*tasks.Task, error)
	CountTasks(ctx context.Context, filter tasks.Filter) (int64, error)
}

// TaskWriter provides task mutations
type TaskWriter interface {
	CreateTask(ctx context.Context, task *tasks.Task) error
	UpdateTask(ctx context.Context, task *tasks.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// TaskStore persists tasks
type TaskStore interface {
	TaskReader
	TaskWriter
}

// HealthChecker reports backend reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is the full persistence surface used by the server
type Store interface {
	UserStore
	TaskStore
	HealthChecker
	Close() error
}

// Config for the storage backend
type Config struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite3"
	DSN    string `yaml:"dsn"`

	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`

	AutoMigrate bool `yaml:"auto_migrate"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:      "sqlite3",
		DSN:         "file:taskapi.db?_foreign_keys=on",
		MaxConns:    20,
		MinConns:    2,
		Timeout:     10 * time.Second,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
		AutoMigrate: true,
	}
}
