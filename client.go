// Package vireo is a dialect-neutral database access layer. A Client
// binds table definitions to a driver and turns logical operations into
// generated SQL, normalized results, and structured errors.
package vireo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/dialect/sql"
	"github.com/vireosql/vireo/schema"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithStatementCache sets the cache for generated read statements.
func WithStatementCache(c StatementCache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.log = l }
}

// Client is the top-level handle over one database. It owns the table
// registry, the statement generator and executor, and an optional cache
// of generated read statements.
type Client struct {
	drv   dialect.Driver
	exec  *sql.Executor
	cache StatementCache
	log   *slog.Logger

	mu     sync.RWMutex
	tables map[string]*schema.Table
}

// NewClient returns a client over the driver. Instrumented drivers
// (sql.StatsDriver, sql.DebugDriver) work the same as plain ones.
func NewClient(drv dialect.Driver, opts ...ClientOption) (*Client, error) {
	exec, err := sql.NewExecutor(drv)
	if err != nil {
		return nil, err
	}
	c := &Client{
		drv:    drv,
		exec:   exec,
		log:    slog.Default(),
		tables: make(map[string]*schema.Table),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open connects to the endpoint and returns a client over it.
func Open(ctx context.Context, cfg *sql.ConnectConfig, opts ...ClientOption) (*Client, error) {
	drv, err := sql.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(drv, opts...)
}

// Close closes the underlying driver.
func (c *Client) Close() error { return c.drv.Close() }

// Driver returns the underlying driver.
func (c *Client) Driver() dialect.Driver { return c.drv }

// AddTable validates and registers a table definition. Validation
// warnings are logged; errors reject the table.
func (c *Client) AddTable(t *schema.Table) error {
	res := t.Validate()
	for _, w := range res.Warnings {
		c.log.Warn("table definition warning", "table", t.Name, "warning", w.Message)
	}
	if res.HasErrors() {
		return fmt.Errorf("vireo: invalid table %q: %s", t.Name, res.String())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[t.Name] = t
	return nil
}

// Table returns a registered table definition.
func (c *Client) Table(name string) (*schema.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

func (c *Client) table(name string) (*schema.Table, error) {
	t, ok := c.Table(name)
	if !ok {
		return nil, fmt.Errorf("vireo: unknown table %q", name)
	}
	return t, nil
}

// Query returns the rows of table matching the predicate.
func (c *Client) Query(ctx context.Context, table string, where sql.Predicate, opts sql.Options) ([]map[string]any, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	req := &sql.Request{Kind: sql.KindSelect, Table: t, Where: where, Options: opts}
	env, err := c.do(ctx, req)
	if err != nil {
		return nil, &QueryError{Table: table, Op: "select", Err: err}
	}
	return env.Rows, nil
}

// QueryOne returns exactly one row. No match returns ErrNotFound, more
// than one returns a NotSingularError.
func (c *Client) QueryOne(ctx context.Context, table string, where sql.Predicate) (map[string]any, error) {
	// Fetch two rows; one more than needed detects the ambiguity.
	rows, err := c.Query(ctx, table, where, sql.Options{Limit: 2})
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, &NotFoundError{table: table}
	case 1:
		return rows[0], nil
	default:
		return nil, &NotSingularError{table: table, count: len(rows)}
	}
}

// Insert writes one row and returns the generated identity value, when
// the dialect reports one.
func (c *Client) Insert(ctx context.Context, table string, values map[string]any) (int64, error) {
	t, err := c.table(table)
	if err != nil {
		return 0, err
	}
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindInsert, Table: t, Values: values})
	if err != nil {
		return 0, &MutationError{Table: table, Op: "insert", Err: err}
	}
	return env.InsertID, nil
}

// InsertBulk writes rows in one statement and returns the generated
// identity rows when the dialect's batch reporting allows it.
func (c *Client) InsertBulk(ctx context.Context, table string, rows []map[string]any) ([]map[string]any, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindInsert, Table: t, Rows: rows})
	if err != nil {
		return nil, &MutationError{Table: table, Op: "insert", Err: err}
	}
	return env.Rows, nil
}

// Update modifies the matching rows and returns the affected count.
func (c *Client) Update(ctx context.Context, table string, values map[string]any, where sql.Predicate) (int64, error) {
	t, err := c.table(table)
	if err != nil {
		return 0, err
	}
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindUpdate, Table: t, Values: values, Where: where})
	if err != nil {
		return 0, &MutationError{Table: table, Op: "update", Err: err}
	}
	return env.Affected, nil
}

// Delete removes the matching rows and returns the affected count.
func (c *Client) Delete(ctx context.Context, table string, where sql.Predicate) (int64, error) {
	t, err := c.table(table)
	if err != nil {
		return 0, err
	}
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindDelete, Table: t, Where: where})
	if err != nil {
		return 0, &MutationError{Table: table, Op: "delete", Err: err}
	}
	return env.Affected, nil
}

// Upsert inserts the row or updates it in place on a key conflict.
func (c *Client) Upsert(ctx context.Context, table string, values map[string]any) error {
	t, err := c.table(table)
	if err != nil {
		return err
	}
	if _, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindUpsert, Table: t, Values: values}); err != nil {
		return &MutationError{Table: table, Op: "upsert", Err: err}
	}
	return nil
}

// Raw runs verbatim SQL with positional binds.
func (c *Client) Raw(ctx context.Context, text string, binds ...any) (*sql.Envelope, error) {
	return c.exec.Do(ctx, &sql.Request{Kind: sql.KindRaw, SQL: text, Options: sql.Options{Bind: binds}})
}

// Describe returns the live column definitions of the table.
func (c *Client) Describe(ctx context.Context, table string) ([]*schema.Column, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindDescribe, Table: t})
	if err != nil {
		return nil, &QueryError{Table: table, Op: "describe", Err: err}
	}
	return env.Described, nil
}

// Indexes returns the live index definitions of the table.
func (c *Client) Indexes(ctx context.Context, table string) ([]sql.IndexInfo, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindShowIndexes, Table: t})
	if err != nil {
		return nil, &QueryError{Table: table, Op: "show-indexes", Err: err}
	}
	return env.Indexes, nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	env, err := c.exec.Do(ctx, &sql.Request{Kind: sql.KindVersion})
	if err != nil {
		return "", err
	}
	return env.Version, nil
}

// Migrate creates the registered tables and their non-unique indexes.
// Tables are created in registration order of the given names, so
// parents must precede children.
func (c *Client) Migrate(ctx context.Context, names ...string) error {
	gen := c.exec.Generator()
	for _, name := range names {
		t, err := c.table(name)
		if err != nil {
			return err
		}
		stmt, err := gen.CreateTable(t)
		if err != nil {
			return err
		}
		if err := c.drv.Exec(ctx, stmt.Text, []any{}, nil); err != nil {
			return &MutationError{Table: name, Op: "create", Err: err}
		}
		for _, idx := range t.Indexes {
			if idx.Unique {
				continue
			}
			stmt, err := gen.CreateIndex(t, idx)
			if err != nil {
				return err
			}
			if err := c.drv.Exec(ctx, stmt.Text, []any{}, nil); err != nil {
				return &MutationError{Table: name, Op: "create-index", Err: err}
			}
		}
		c.log.Info("table created", "table", name)
	}
	return nil
}

// do routes a request through the statement cache when it is cacheable.
func (c *Client) do(ctx context.Context, req *sql.Request) (*sql.Envelope, error) {
	if c.cache == nil {
		return c.exec.Do(ctx, req)
	}
	key, ok := cacheKey(c.drv.Dialect(), req)
	if !ok {
		return c.exec.Do(ctx, req)
	}
	if stmt := c.cache.Get(key); stmt != nil {
		return c.exec.DoStatement(ctx, stmt, req)
	}
	stmt, err := c.exec.Generator().Generate(req)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, stmt)
	return c.exec.DoStatement(ctx, stmt, req)
}

// Tx starts a transaction bound to the client's executor.
func (c *Client) Tx(ctx context.Context) (dialect.Tx, error) {
	return c.drv.Tx(ctx)
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on error or panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := c.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return &RollbackError{Err: NewAggregateError(err, rerr)}
		}
		return err
	}
	return tx.Commit()
}

// ExecTx runs a request inside the transaction with deadlock handling;
// a serialization failure marks tx rollback-only.
func (c *Client) ExecTx(ctx context.Context, tx dialect.Tx, req *sql.Request) (*sql.Envelope, error) {
	return c.exec.DoTx(ctx, tx, req)
}
