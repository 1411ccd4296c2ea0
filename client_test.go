package vireo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/dialect/sql"
	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

func mockClient(t *testing.T, opts ...ClientOption) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c, err := NewClient(sql.OpenDB("mysql", db), opts...)
	require.NoError(t, err)
	return c, mock
}

func registerUsers(t *testing.T, c *Client) *schema.Table {
	t.Helper()
	tbl := schema.NewTable("users")
	id := &schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}
	tbl.AddColumn(id)
	tbl.AddColumn(&schema.Column{Name: "name", Type: field.TypeString})
	tbl.SetPrimaryKey(id)
	require.NoError(t, c.AddTable(tbl))
	return tbl
}

func TestClientAddTable(t *testing.T) {
	c, _ := mockClient(t)

	t.Run("valid", func(t *testing.T) {
		registerUsers(t, c)
		tbl, ok := c.Table("users")
		require.True(t, ok)
		assert.Equal(t, "users", tbl.Name)
	})

	t.Run("invalid definitions rejected", func(t *testing.T) {
		bad := schema.NewTable("broken")
		bad.AddColumn(&schema.Column{Name: "state", Type: field.TypeEnum})
		err := c.AddTable(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
		_, ok := c.Table("broken")
		assert.False(t, ok)
	})
}

func TestClientQueryOne(t *testing.T) {
	c, mock := mockClient(t)
	registerUsers(t, c)

	t.Run("match", func(t *testing.T) {
		mock.ExpectQuery("SELECT `id`, `name` FROM `users` WHERE `id` = ? LIMIT 2").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "ariel"))

		row, err := c.QueryOne(context.Background(), "users", sql.EQ("id", 1))
		require.NoError(t, err)
		assert.Equal(t, "ariel", row["name"])
	})

	t.Run("no rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT `id`, `name` FROM `users` WHERE `id` = ? LIMIT 2").
			WithArgs(9).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

		_, err := c.QueryOne(context.Background(), "users", sql.EQ("id", 9))
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("many rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT `id`, `name` FROM `users` WHERE `name` = ? LIMIT 2").
			WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(int64(1), "a").AddRow(int64(2), "a"))

		_, err := c.QueryOne(context.Background(), "users", sql.EQ("name", "a"))
		require.Error(t, err)
		assert.True(t, IsNotSingular(err))
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := c.QueryOne(context.Background(), "nope", sql.EQ("id", 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown table "nope"`)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientMutations(t *testing.T) {
	c, mock := mockClient(t)
	registerUsers(t, c)
	ctx := context.Background()

	t.Run("insert", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
			WithArgs("ariel").
			WillReturnResult(sqlmock.NewResult(5, 1))

		id, err := c.Insert(ctx, "users", map[string]any{"name": "ariel"})
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)
	})

	t.Run("update", func(t *testing.T) {
		mock.ExpectExec("UPDATE `users` SET `name` = ? WHERE `id` = ?").
			WithArgs("b", 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := c.Update(ctx, "users", map[string]any{"name": "b"}, sql.EQ("id", 5))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("delete", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM `users` WHERE `id` = ?").
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := c.Delete(ctx, "users", sql.EQ("id", 5))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("upsert", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO `users` (`id`, `name`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)").
			WithArgs(5, "c").
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, c.Upsert(ctx, "users", map[string]any{"id": 5, "name": "c"}))
	})

	t.Run("failures wrap into mutation errors", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
			WithArgs("x").
			WillReturnError(errors.New("disk full"))

		_, err := c.Insert(ctx, "users", map[string]any{"name": "x"})
		require.Error(t, err)
		assert.True(t, IsMutationError(err))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientStatementCache(t *testing.T) {
	cache := NewLRUCache(16)
	c, mock := mockClient(t, WithStatementCache(cache))
	registerUsers(t, c)

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a")
	}
	mock.ExpectQuery("SELECT `id`, `name` FROM `users` LIMIT 10").WillReturnRows(rows())
	mock.ExpectQuery("SELECT `id`, `name` FROM `users` LIMIT 10").WillReturnRows(rows())

	ctx := context.Background()
	_, err := c.Query(ctx, "users", nil, sql.Options{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// Second run hits the cache and re-executes the same text.
	_, err = c.Query(ctx, "users", nil, sql.Options{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientWithTx(t *testing.T) {
	c, mock := mockClient(t)
	registerUsers(t, c)
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
			WithArgs("a").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := c.WithTx(ctx, func(tx dialect.Tx) error {
			tbl, _ := c.Table("users")
			_, err := c.ExecTx(ctx, tx, &sql.Request{
				Kind: sql.KindInsert, Table: tbl,
				Values: map[string]any{"name": "a"},
			})
			return err
		})
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := c.WithTx(ctx, func(dialect.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = c.WithTx(ctx, func(dialect.Tx) error { panic("bad") })
		})
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientMigrate(t *testing.T) {
	c, mock := mockClient(t)
	tbl := registerUsers(t, c)
	name, _ := tbl.Column("name")
	tbl.AddIndex(&schema.Index{Name: "users_name", Columns: []*schema.Column{name}})

	mock.ExpectExec("CREATE TABLE `users` (`id` bigint NOT NULL AUTO_INCREMENT, `name` varchar(255) NOT NULL, PRIMARY KEY (`id`))").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX `users_name` ON `users` (`name`)").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.Migrate(context.Background(), "users"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClientVersion(t *testing.T) {
	c, mock := mockClient(t)
	mock.ExpectQuery("SELECT VERSION() AS version").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("8.0.36"))

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "8.0.36", v)
}
