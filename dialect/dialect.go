// Package dialect provides the database dialect abstraction: the set of
// supported dialect names and the narrow driver interfaces the rest of
// the system executes through.
package dialect

import "context"

// Supported dialects.
const (
	MySQL     = "mysql"
	Postgres  = "postgres"
	SQLite    = "sqlite"
	SQLServer = "sqlserver"
)

// ExecQuerier wraps the two basic Exec and Query methods.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The args
	// parameter carries the positional bind list ([]any), and v an
	// optional out-parameter for the driver result (*sql.Result).
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows. v must be a
	// *sql.Rows out-parameter.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal interface for database drivers.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transaction operations on top of an active transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
