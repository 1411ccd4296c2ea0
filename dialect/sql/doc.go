// Package sql translates logical database requests into dialect-correct
// SQL and normalizes driver results and errors back into one shape.
//
// The package is organized around three pieces:
//
//   - Grammar: the per-dialect configuration (quoting, placeholders,
//     type mapping, upsert form). Dialect differences live in grammar
//     values, not in per-dialect code paths.
//   - Generator: translates a Request (insert, select, upsert, schema
//     statements, metadata queries) into a Statement with positional
//     binds and a kind tag.
//   - Executor: runs statements on a Driver, reshapes raw rows into
//     Envelope values, and maps driver errors onto the structured
//     taxonomy (UniqueConstraintError, ForeignKeyConstraintError,
//     ConnectionError, DatabaseError).
//
// # Dialect Support
//
// Generation adapts to MySQL, PostgreSQL, SQLite, and SQL Server:
//
//	g, _ := sql.GrammarFor(dialect.Postgres)
//	gen := sql.NewGenerator(g)
//	stmt, _ := gen.Generate(&sql.Request{
//	    Kind:  sql.KindSelect,
//	    Table: users,
//	    Where: sql.EQ("status", "active"),
//	})
//
// # Predicates
//
// Filter trees compile depth-first into parenthesized SQL with the
// dialect's placeholders:
//
//	sql.And(sql.EQ("name", "a8m"), sql.Or(sql.GT("age", 30), sql.IsNull("spouse")))
//
// # Execution
//
// An Executor ties a generator to a live driver:
//
//	drv, _ := sql.Open("postgres", dsn)
//	exec, _ := sql.NewExecutor(drv)
//	env, err := exec.Do(ctx, req)
package sql
