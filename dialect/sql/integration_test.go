package sql

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vireosql/vireo/dialect"
)

func sqliteDriver(t *testing.T) *Driver {
	t.Helper()
	cfg := &ConnectConfig{
		Dialect: dialect.SQLite,
		File:    filepath.Join(t.TempDir(), "app.db"),
	}
	drv, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	drv := sqliteDriver(t)
	stats := NewStatsDriver(drv)
	exec, err := NewExecutor(stats)
	require.NoError(t, err)
	tbl := userTable()

	create, err := exec.Generator().CreateTable(tbl)
	require.NoError(t, err)
	require.NoError(t, drv.Exec(ctx, create.Text, []any{}, nil))

	env, err := exec.Do(ctx, &Request{Kind: KindInsert, Table: tbl, Values: map[string]any{"name": "rex", "age": 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.InsertID)
	assert.Equal(t, int64(1), env.Affected)

	_, err = exec.Do(ctx, &Request{Kind: KindInsert, Table: tbl, Values: map[string]any{"name": "bo"}})
	require.NoError(t, err)

	env, err = exec.Do(ctx, &Request{Kind: KindSelect, Table: tbl, Where: EQ("name", "rex")})
	require.NoError(t, err)
	require.Len(t, env.Rows, 1)
	assert.Equal(t, int64(1), env.Rows[0]["id"])
	assert.Equal(t, "rex", env.Rows[0]["name"])
	assert.Equal(t, int64(3), env.Rows[0]["age"])

	env, err = exec.Do(ctx, &Request{Kind: KindVersion})
	require.NoError(t, err)
	assert.NotEmpty(t, env.Version)

	snap := stats.QueryStats().Snapshot()
	assert.Equal(t, int64(2), snap.Kinds[KindInsert])
	assert.Equal(t, int64(1), snap.Kinds[KindSelect])
	assert.Equal(t, int64(1), snap.Kinds[KindVersion])
}

func TestSQLiteUniqueViolation(t *testing.T) {
	ctx := context.Background()
	drv := sqliteDriver(t)
	exec, err := NewExecutor(drv)
	require.NoError(t, err)
	tbl := uniqueIndexTable()

	create, err := exec.Generator().CreateTable(tbl)
	require.NoError(t, err)
	require.NoError(t, drv.Exec(ctx, create.Text, []any{}, nil))

	values := map[string]any{"owner": "john", "name": "rex"}
	_, err = exec.Do(ctx, &Request{Kind: KindInsert, Table: tbl, Values: values})
	require.NoError(t, err)

	_, err = exec.Do(ctx, &Request{Kind: KindInsert, Table: tbl, Values: values})
	require.Error(t, err)
	assert.True(t, IsUniqueConstraintError(err))
}

func TestSQLitePool(t *testing.T) {
	ctx := context.Background()
	drv := sqliteDriver(t)
	pool := NewPool(drv, 2, 30*time.Millisecond)

	c1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, c1.Validate())

	_, err = c1.ExecContext(ctx, "CREATE TABLE kv (k text NOT NULL, v text NOT NULL)")
	require.NoError(t, err)
	_, err = c1.ExecContext(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "greeting", "hello")
	require.NoError(t, err)

	c2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	rows, err := c2.QueryContext(ctx, "SELECT v FROM kv WHERE k = ?", "greeting")
	require.NoError(t, err)
	require.True(t, rows.Next())
	var v string
	require.NoError(t, rows.Scan(&v))
	require.NoError(t, rows.Close())
	assert.Equal(t, "hello", v)

	// Both slots held; a third acquire times out with the pool kind.
	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ConnPoolExhausted, ce.Kind)

	require.NoError(t, c1.Release())
	require.NoError(t, c2.Release())
	require.NoError(t, pool.Close())
}
