// Package storage defines the persistence contracts for users and tasks.
//
// # Architecture
//
// The storage layer uses interface segregation to compose focused capabilities:
//
//   - UserReader / UserWriter: the credential store
//   - TaskReader / TaskWriter: the task store
//   - HealthChecker: backend reachability for readiness probes
//
// These compose into Store, which is what cmd/taskapi wires into the API.
// The only implementation lives in pkg/storage/sqlstore and runs on either
// PostgreSQL (lib/pq) or SQLite (mattn/go-sqlite3):
//
//	store, err := sqlstore.Open(ctx, storage.Config{
//		Driver: "postgres",
//		DSN:    "postgres://localhost/taskapi?sslmode=disable",
//	})
//
// # Errors
//
// Stores classify the two domain conditions callers branch on:
//
//	apierrors.KindNotFound       - id or email does not resolve
//	apierrors.KindDuplicateEmail - unique email constraint violated
//
// Every other failure is returned wrapped and becomes a 500 at the handler.
// No store operation retries.
//
// # Concurrency
//
// Updates are last-write-wins. UpdateTask overwrites every mutable column of
// the row with the values it is given; there is no version column.
package storage
