package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

func blogTables() (*schema.Table, *schema.Table) {
	users := schema.NewTable("users")
	uid := &schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}
	users.AddColumn(uid)
	users.AddColumn(&schema.Column{Name: "email", Type: field.TypeString, Size: 128})
	users.SetPrimaryKey(uid)

	posts := schema.NewTable("posts")
	pid := &schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}
	author := &schema.Column{Name: "author_id", Type: field.TypeInt64}
	slug := &schema.Column{Name: "slug", Type: field.TypeString, Size: 64}
	posts.AddColumn(pid)
	posts.AddColumn(author)
	posts.AddColumn(slug)
	posts.SetPrimaryKey(pid)
	posts.AddIndex(&schema.Index{Unique: true, Columns: []*schema.Column{slug}})
	posts.AddForeignKey(&schema.ForeignKey{
		Symbol:     "posts_author",
		Columns:    []*schema.Column{author},
		RefTable:   users,
		RefColumns: []*schema.Column{uid},
		OnDelete:   schema.Cascade,
	})
	return users, posts
}

func TestCreateTable(t *testing.T) {
	_, posts := blogTables()

	t.Run("mysql clause ordering", func(t *testing.T) {
		stmt, err := NewGenerator(MySQL).CreateTable(posts)
		require.NoError(t, err)
		assert.Equal(t, "CREATE TABLE `posts` ("+
			"`id` bigint NOT NULL AUTO_INCREMENT, "+
			"`author_id` bigint NOT NULL, "+
			"`slug` varchar(64) NOT NULL, "+
			"PRIMARY KEY (`id`), "+
			"CONSTRAINT `uniq_posts_slug` UNIQUE (`slug`), "+
			"CONSTRAINT `posts_author` FOREIGN KEY (`author_id`) REFERENCES `users` (`id`) ON DELETE CASCADE"+
			")", stmt.Text)
	})

	t.Run("sqlite inline primary key", func(t *testing.T) {
		users, _ := blogTables()
		stmt, err := NewGenerator(SQLite).CreateTable(users)
		require.NoError(t, err)
		assert.Equal(t, "CREATE TABLE `users` ("+
			"`id` integer NOT NULL PRIMARY KEY AUTOINCREMENT, "+
			"`email` varchar(128) NOT NULL"+
			")", stmt.Text)
	})

	t.Run("postgres serial", func(t *testing.T) {
		users, _ := blogTables()
		stmt, err := NewGenerator(Postgres).CreateTable(users)
		require.NoError(t, err)
		assert.Equal(t, `CREATE TABLE "users" (`+
			`"id" bigserial NOT NULL, `+
			`"email" varchar(128) NOT NULL, `+
			`PRIMARY KEY ("id")`+
			`)`, stmt.Text)
	})

	t.Run("sqlserver identity", func(t *testing.T) {
		users, _ := blogTables()
		stmt, err := NewGenerator(SQLServer).CreateTable(users)
		require.NoError(t, err)
		assert.Equal(t, `CREATE TABLE "users" (`+
			`"id" bigint NOT NULL IDENTITY(1,1), `+
			`"email" varchar(128) NOT NULL, `+
			`PRIMARY KEY ("id")`+
			`)`, stmt.Text)
	})

	t.Run("defaults", func(t *testing.T) {
		tbl := schema.NewTable("settings")
		tbl.AddColumn(&schema.Column{Name: "key", Type: field.TypeString, Size: 32})
		tbl.AddColumn(&schema.Column{Name: "enabled", Type: field.TypeBool, Default: true})
		tbl.AddColumn(&schema.Column{Name: "payload", Type: field.TypeText, Default: "ignored", Nullable: true})
		stmt, err := NewGenerator(MySQL).CreateTable(tbl)
		require.NoError(t, err)
		// Large-object columns never render a default.
		assert.Equal(t, "CREATE TABLE `settings` ("+
			"`key` varchar(32) NOT NULL, "+
			"`enabled` bool NOT NULL DEFAULT 1, "+
			"`payload` text NULL"+
			")", stmt.Text)
	})

	t.Run("unique column flag", func(t *testing.T) {
		tbl := schema.NewTable("tags")
		tbl.AddColumn(&schema.Column{Name: "name", Type: field.TypeString, Unique: true})
		stmt, err := NewGenerator(Postgres).CreateTable(tbl)
		require.NoError(t, err)
		assert.Equal(t, `CREATE TABLE "tags" ("name" varchar(255) NOT NULL UNIQUE)`, stmt.Text)
	})
}

func TestAlterStatements(t *testing.T) {
	users, _ := blogTables()
	bio := &schema.Column{Name: "bio", Type: field.TypeText, Nullable: true}

	t.Run("add column", func(t *testing.T) {
		stmt, err := NewGenerator(MySQL).AddColumn(users, bio)
		require.NoError(t, err)
		assert.Equal(t, "ALTER TABLE `users` ADD `bio` text NULL", stmt.Text)

		stmt, err = NewGenerator(Postgres).AddColumn(users, bio)
		require.NoError(t, err)
		assert.Equal(t, `ALTER TABLE "users" ADD COLUMN "bio" text NULL`, stmt.Text)
	})

	t.Run("drop column", func(t *testing.T) {
		stmt, err := NewGenerator(MySQL).DropColumn(users, "bio")
		require.NoError(t, err)
		assert.Equal(t, "ALTER TABLE `users` DROP COLUMN `bio`", stmt.Text)
	})

	t.Run("change column mysql joins fk clauses", func(t *testing.T) {
		other := schema.NewTable("teams")
		tid := &schema.Column{Name: "id", Type: field.TypeInt64}
		other.AddColumn(tid)
		team := &schema.Column{Name: "team_id", Type: field.TypeInt64, Nullable: true}
		fk := &schema.ForeignKey{
			Symbol:     "users_team",
			Columns:    []*schema.Column{team},
			RefTable:   other,
			RefColumns: []*schema.Column{tid},
		}
		stmt, err := NewGenerator(MySQL).ChangeColumn(users, team, fk)
		require.NoError(t, err)
		assert.Equal(t, "ALTER TABLE `users` CHANGE `team_id` `team_id` bigint NULL, "+
			"ADD CONSTRAINT `users_team` FOREIGN KEY (`team_id`) REFERENCES `teams` (`id`)", stmt.Text)
	})

	t.Run("change column sqlite unsupported", func(t *testing.T) {
		_, err := NewGenerator(SQLite).ChangeColumn(users, bio)
		require.Error(t, err)
		assert.True(t, IsRequestError(err))
	})

	t.Run("change column postgres", func(t *testing.T) {
		stmt, err := NewGenerator(Postgres).ChangeColumn(users, &schema.Column{Name: "email", Type: field.TypeText})
		require.NoError(t, err)
		assert.Equal(t, `ALTER TABLE "users" ALTER COLUMN "email" TYPE text`, stmt.Text)
	})

	t.Run("rename column", func(t *testing.T) {
		stmt, err := NewGenerator(Postgres).RenameColumn(users, "email", "mail")
		require.NoError(t, err)
		assert.Equal(t, `ALTER TABLE "users" RENAME COLUMN "email" TO "mail"`, stmt.Text)

		stmt, err = NewGenerator(SQLServer).RenameColumn(users, "email", "mail")
		require.NoError(t, err)
		assert.Equal(t, `EXEC sp_rename 'users.email', 'mail', 'COLUMN'`, stmt.Text)
	})

	t.Run("add foreign key sqlite unsupported", func(t *testing.T) {
		_, err := NewGenerator(SQLite).AddForeignKey(users, &schema.ForeignKey{})
		require.Error(t, err)
		assert.True(t, IsRequestError(err))
	})
}

func TestIndexStatements(t *testing.T) {
	users, posts := blogTables()

	t.Run("create index", func(t *testing.T) {
		email, _ := users.Column("email")
		stmt, err := NewGenerator(MySQL).CreateIndex(users, &schema.Index{Name: "users_email", Columns: []*schema.Column{email}})
		require.NoError(t, err)
		assert.Equal(t, "CREATE INDEX `users_email` ON `users` (`email`)", stmt.Text)
	})

	t.Run("unnamed unique index gets derived name", func(t *testing.T) {
		slug, _ := posts.Column("slug")
		stmt, err := NewGenerator(Postgres).CreateIndex(posts, &schema.Index{Unique: true, Columns: []*schema.Column{slug}})
		require.NoError(t, err)
		assert.Equal(t, `CREATE UNIQUE INDEX "uniq_posts_slug" ON "posts" ("slug")`, stmt.Text)
	})

	t.Run("drop index", func(t *testing.T) {
		stmt, err := NewGenerator(MySQL).DropIndex(users, "users_email")
		require.NoError(t, err)
		assert.Equal(t, "DROP INDEX `users_email` ON `users`", stmt.Text)

		stmt, err = NewGenerator(Postgres).DropIndex(users, "users_email")
		require.NoError(t, err)
		assert.Equal(t, `DROP INDEX "users_email"`, stmt.Text)
	})

	t.Run("drop table", func(t *testing.T) {
		stmt, err := NewGenerator(SQLite).DropTable(users, true)
		require.NoError(t, err)
		assert.Equal(t, "DROP TABLE IF EXISTS `users`", stmt.Text)
	})
}
