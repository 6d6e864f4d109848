package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/taskapi/pkg/storage"
)

// Supported driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// sqliteDriverName is go-sqlite3 with utf8_lower registered on every
// connection. SQLite's built-in LOWER only folds ASCII.
const sqliteDriverName = "sqlite3_taskapi"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("utf8_lower", strings.ToLower, true)
		},
	})
}

// Store implements storage.Store over database/sql
type Store struct {
	db     *sql.DB
	driver string
	config storage.Config
}

var _ storage.Store = (*Store)(nil)

// Open connects to the configured database, verifies the connection and
// applies migrations when AutoMigrate is set
func Open(ctx context.Context, config storage.Config) (*Store, error) {
	switch config.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", config.Driver)
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("storage DSN is required")
	}

	driverName := config.Driver
	if driverName == DriverSQLite {
		driverName = sqliteDriverName
	}
	db, err := sql.Open(driverName, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", config.Driver, err)
	}

	configurePool(db, config)

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", config.Driver, err)
	}

	s := New(db, config.Driver)
	s.config = config

	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// New wraps an existing connection pool
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func configurePool(db *sql.DB, config storage.Config) {
	// Every connection to an in-memory SQLite database sees its own empty database
	if config.Driver == DriverSQLite && isMemoryDSN(config.DSN) {
		db.SetMaxOpenConns(1)
		return
	}

	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MinConns > 0 {
		db.SetMaxIdleConns(config.MinConns)
	}
	if config.MaxLifetime > 0 {
		db.SetConnMaxLifetime(config.MaxLifetime)
	}
	if config.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.MaxIdleTime)
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// DB returns the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the driver name the store was opened with
func (s *Store) Driver() string {
	return s.driver
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s unhealthy: %w", s.driver, err)
	}
	return nil
}

// Stats returns connection pool statistics
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
