package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

// Warning is one entry of a dialect's statement warning list.
type Warning struct {
	Code    string
	Message string
}

// IndexColumn is one member column of a normalized index description.
type IndexColumn struct {
	Name    string
	Ordinal int
	// Direction is "ASC" or "DESC".
	Direction string
}

// IndexInfo is the dialect-neutral description of one index, grouped
// from the per-column rows the metadata statements return.
type IndexInfo struct {
	Name    string
	Unique  bool
	Columns []IndexColumn
}

// Envelope is the normalized result of one executed request. The kind
// tag decides which fields carry data: row sets fill Columns and Rows,
// writes fill Affected and InsertID, metadata kinds fill their
// dedicated projections.
type Envelope struct {
	Kind     QueryKind
	Columns  []string
	Rows     []map[string]any
	Affected int64
	InsertID int64
	Version  string
	// Described holds the reshaped column list of a describe request.
	Described []*schema.Column
	// Indexes holds the grouped index list of a show-indexes request.
	Indexes  []IndexInfo
	Warnings []Warning
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's statement logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// WithStatementWarnings makes the executor fetch the dialect's warning
// list after each write, on dialects exposing one.
func WithStatementWarnings() ExecutorOption {
	return func(e *Executor) { e.warnings = true }
}

// Executor runs generated statements on a driver and normalizes raw
// driver results into envelopes. It accepts any dialect.Driver, so
// instrumented drivers (StatsDriver, DebugDriver) observe every
// statement it runs.
type Executor struct {
	drv      dialect.Driver
	gen      *Generator
	log      *slog.Logger
	warnings bool
}

// NewExecutor returns an executor over the driver. The driver's dialect
// must have a grammar.
func NewExecutor(drv dialect.Driver, opts ...ExecutorOption) (*Executor, error) {
	g, err := GrammarFor(drv.Dialect())
	if err != nil {
		return nil, NewRequestError("driver dialect %q has no grammar", drv.Dialect())
	}
	e := &Executor{drv: drv, gen: NewGenerator(g), log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Generator returns the executor's statement generator.
func (e *Executor) Generator() *Generator { return e.gen }

// Do generates the request's statement, runs it on the driver pool, and
// returns the normalized envelope.
func (e *Executor) Do(ctx context.Context, req *Request) (*Envelope, error) {
	return e.run(ctx, e.drv, nil, req)
}

// DoTx runs the request inside tx. Serialization failures mark the
// transaction rollback-only before the error returns.
func (e *Executor) DoTx(ctx context.Context, tx dialect.Tx, req *Request) (*Envelope, error) {
	return e.run(ctx, tx, underlyingTx(tx), req)
}

// underlyingTx digs the concrete transaction out from under decorator
// wrappers so serialization failures can mark it rollback-only.
func underlyingTx(tx dialect.Tx) *Tx {
	for {
		if vtx, ok := tx.(*Tx); ok {
			return vtx
		}
		u, ok := tx.(interface{ Unwrap() dialect.Tx })
		if !ok {
			return nil
		}
		tx = u.Unwrap()
	}
}

// DoStatement runs an already generated statement, skipping generation.
// Callers caching generated SQL hand statements back through here.
func (e *Executor) DoStatement(ctx context.Context, stmt *Statement, req *Request) (*Envelope, error) {
	return e.runStatement(ctx, e.drv, nil, req, stmt)
}

func (e *Executor) run(ctx context.Context, conn dialect.ExecQuerier, tx *Tx, req *Request) (*Envelope, error) {
	stmt, err := e.gen.Generate(req)
	if err != nil {
		return nil, err
	}
	return e.runStatement(ctx, conn, tx, req, stmt)
}

func (e *Executor) runStatement(ctx context.Context, conn dialect.ExecQuerier, tx *Tx, req *Request, stmt *Statement) (*Envelope, error) {
	if req.Options.SearchPath != "" && e.gen.grammar.Name == dialect.Postgres {
		ctx = WithSearchPath(ctx, req.Options.SearchPath)
	}
	ctx = withStatementKind(ctx, stmt.Kind)
	e.log.LogAttrs(ctx, slog.LevelDebug, "executing statement",
		slog.String("kind", stmt.Kind.String()),
		slog.String("query", stmt.Text),
		slog.Int("binds", len(stmt.Binds)),
	)
	binds := stmt.Binds
	if binds == nil {
		binds = []any{}
	}
	if stmt.Kind.returnsRows() {
		var rows Rows
		if err := conn.Query(ctx, stmt.Text, binds, &rows); err != nil {
			return nil, e.classify(err, req, tx)
		}
		defer rows.Close()
		cols, data, err := scanRows(&rows)
		if err != nil {
			return nil, e.classify(err, req, tx)
		}
		return e.normalizeRows(stmt.Kind, req, cols, data)
	}
	var res Result
	if err := conn.Exec(ctx, stmt.Text, binds, &res); err != nil {
		return nil, e.classify(err, req, tx)
	}
	env := &Envelope{Kind: stmt.Kind}
	// Drivers without affected-row or insert-id support return errors
	// here; both stay zero in that case.
	if n, err := res.RowsAffected(); err == nil {
		env.Affected = n
	}
	if id, err := res.LastInsertId(); err == nil {
		env.InsertID = id
	}
	e.synthesizeInsertRows(req, env)
	if e.warnings && e.gen.grammar.Name == dialect.MySQL {
		e.fetchWarnings(ctx, conn, env)
	}
	return env, nil
}

// synthesizeInsertRows reconstructs the generated key rows of a
// multi-row insert. MySQL reports only the first identity value of a
// batch; the remaining keys follow sequentially.
func (e *Executor) synthesizeInsertRows(req *Request, env *Envelope) {
	if env.Kind != KindInsert || env.InsertID == 0 || len(req.Rows) < 2 {
		return
	}
	pk, ok := req.Table.AutoIncrementPK()
	if !ok {
		return
	}
	env.Columns = []string{pk.Name}
	env.Rows = make([]map[string]any, len(req.Rows))
	for i := range req.Rows {
		env.Rows[i] = map[string]any{pk.Name: env.InsertID + int64(i)}
	}
}

func (e *Executor) fetchWarnings(ctx context.Context, conn dialect.ExecQuerier, env *Envelope) {
	var rows Rows
	if err := conn.Query(ctx, "SHOW WARNINGS", []any{}, &rows); err != nil {
		e.log.LogAttrs(ctx, slog.LevelWarn, "warning fetch failed", slog.Any("error", err))
		return
	}
	defer rows.Close()
	for rows.Next() {
		var level, code, message string
		if err := rows.Scan(&level, &code, &message); err != nil {
			return
		}
		env.Warnings = append(env.Warnings, Warning{Code: code, Message: message})
	}
}

// scanRows drains a result set into generic rows. Byte slices become
// strings so envelope values survive the driver's buffer reuse.
func scanRows(rows *Rows) ([]string, []map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var data []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		data = append(data, row)
	}
	return cols, data, rows.Err()
}

func (e *Executor) normalizeRows(kind QueryKind, req *Request, cols []string, data []map[string]any) (*Envelope, error) {
	env := &Envelope{Kind: kind, Columns: cols, Rows: data}
	switch kind {
	case KindVersion:
		if len(data) > 0 {
			env.Version = asEnvelopeString(firstValue(data[0]))
		}
	case KindDescribe:
		env.Described = describeColumns(e.gen.grammar, data)
	case KindShowIndexes:
		env.Indexes = groupIndexes(data)
	}
	return env, nil
}

func firstValue(row map[string]any) any {
	for _, v := range row {
		return v
	}
	return nil
}

func asEnvelopeString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// describeColumns reshapes describe rows into schema columns. The
// metadata statements alias their projections into one shared shape, so
// only MySQL's DESCRIBE output needs its own field names.
func describeColumns(g *Grammar, data []map[string]any) []*schema.Column {
	out := make([]*schema.Column, 0, len(data))
	for _, row := range data {
		c := &schema.Column{}
		if g.Name == dialect.MySQL {
			c.Name = asEnvelopeString(row["Field"])
			c.Type = typeFromSQL(asEnvelopeString(row["Type"]))
			c.Nullable = strings.EqualFold(asEnvelopeString(row["Null"]), "YES")
			if d := row["Default"]; d != nil {
				c.Default = d
			}
		} else {
			c.Name = asEnvelopeString(row["name"])
			c.Type = typeFromSQL(asEnvelopeString(row["type"]))
			switch n := asEnvelopeString(row["nullable"]); {
			case strings.EqualFold(n, "YES"):
				c.Nullable = true
			case n == "":
				// SQLite reports a notnull flag instead.
				c.Nullable = asInt64(row["notnull"]) == 0
			}
			if d := row["default"]; d != nil {
				c.Default = d
			}
		}
		out = append(out, c)
	}
	return out
}

// typeFromSQL maps a reported SQL type back onto the abstract enum.
// Unrecognized types come back invalid rather than failing the request.
func typeFromSQL(s string) field.Type {
	base := strings.ToLower(s)
	if i := strings.IndexByte(base, '('); i > 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(base)
	switch {
	case base == "tinyint" && strings.Contains(s, "(1)"), base == "bool", base == "boolean", base == "bit":
		return field.TypeBool
	case base == "bigint":
		return field.TypeInt64
	case base == "int", base == "integer", base == "mediumint":
		return field.TypeInt
	case base == "smallint":
		return field.TypeInt16
	case base == "tinyint":
		return field.TypeInt8
	case base == "float", base == "real":
		return field.TypeFloat32
	case base == "double", base == "double precision":
		return field.TypeFloat64
	case base == "decimal", base == "numeric":
		return field.TypeDecimal
	case base == "char", base == "character", base == "nchar":
		return field.TypeChar
	case base == "varchar", base == "character varying", base == "nvarchar":
		return field.TypeString
	case strings.Contains(base, "text"):
		return field.TypeText
	case base == "enum":
		return field.TypeEnum
	case base == "json":
		return field.TypeJSON
	case base == "jsonb":
		return field.TypeJSONB
	case base == "uuid", base == "uniqueidentifier":
		return field.TypeUUID
	case base == "date":
		return field.TypeDateOnly
	case base == "time":
		return field.TypeTimeOnly
	case strings.Contains(base, "timestamp"), base == "datetime", base == "datetime2":
		return field.TypeTime
	case strings.Contains(base, "blob"), base == "bytea", base == "varbinary", base == "binary":
		return field.TypeBytes
	case base == "geometry":
		return field.TypeGeometry
	}
	return field.TypeInvalid
}

// groupIndexes folds per-column index rows into one entry per index,
// ordered by each column's reported ordinal.
func groupIndexes(data []map[string]any) []IndexInfo {
	var (
		order []string
		byKey = make(map[string]*IndexInfo)
	)
	for _, row := range data {
		key := asEnvelopeString(row["Key_name"])
		info, ok := byKey[key]
		if !ok {
			info = &IndexInfo{Name: key, Unique: asInt64(row["Non_unique"]) == 0}
			byKey[key] = info
			order = append(order, key)
		}
		dir := "ASC"
		if asEnvelopeString(row["Collation"]) == "D" {
			dir = "DESC"
		}
		info.Columns = append(info.Columns, IndexColumn{
			Name:      asEnvelopeString(row["Column_name"]),
			Ordinal:   int(asInt64(row["Seq_in_index"])),
			Direction: dir,
		})
	}
	out := make([]IndexInfo, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

var (
	mysqlDupRe    = regexp.MustCompile(`Duplicate entry '(.*)' for key '(?:(.*)\.)?(.*)'`)
	sqliteDupRe   = regexp.MustCompile(`UNIQUE constraint failed: (.+)`)
	mysqlFKRe     = regexp.MustCompile("CONSTRAINT `([^`]+)` FOREIGN KEY \\(`([^`]+)`\\) REFERENCES `([^`]+)`")
	pgConstraint  = regexp.MustCompile(`constraint "([^"]+)"`)
	deadlockCodes = map[string]bool{"40001": true, "40P01": true}
)

// classify maps a raw execution error onto the structured taxonomy.
// Serialization failures additionally mark the enclosing transaction
// rollback-only so a later commit cannot persist partial state.
func (e *Executor) classify(err error, req *Request, tx *Tx) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var (
		number uint16
		code   string
		myErr  *mysql.MySQLError
		pqErr  *pq.Error
	)
	switch {
	case errors.As(err, &myErr):
		number = myErr.Number
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		if n, ok := asError[errorNumberer](err); ok {
			number = n.Number()
		}
		if c, ok := asError[errorCoder](err); ok {
			code = c.Code()
		}
		if s, ok := asError[sqlStateError](err); ok && code == "" {
			code = s.SQLState()
		}
	}
	switch {
	case number == 1213, deadlockCodes[code], containsAny(msg, "Deadlock found", "deadlock detected"):
		if tx != nil {
			tx.MarkRollbackOnly()
		}
		return &DatabaseError{cause: err}
	case number == 1062, code == "23505", containsAny(msg, "Duplicate entry", "UNIQUE constraint failed", "duplicate key value"):
		return e.uniqueError(err, req, msg)
	case number == 1451, number == 1452, code == "23503", containsAny(msg, "FOREIGN KEY constraint failed", "foreign key constraint"):
		return e.foreignKeyError(err, req, msg, number == 1451)
	}
	return &DatabaseError{cause: err}
}

// uniqueError parses the driver's duplicate-key message into field and
// value pairs. The MySQL form carries the offending composite value;
// its parts split on '-' and zip against the violated key's fields.
func (e *Executor) uniqueError(err error, req *Request, msg string) error {
	out := &UniqueConstraintError{Fields: map[string]string{}, cause: err}
	switch {
	case mysqlDupRe.MatchString(msg):
		m := mysqlDupRe.FindStringSubmatch(msg)
		value, key := m[1], m[3]
		out.Constraint = key
		fields := e.keyFields(req.Table, key)
		if len(fields) > 0 {
			parts := strings.SplitN(value, "-", len(fields))
			for i, f := range fields {
				if i < len(parts) {
					out.Fields[f] = parts[i]
				}
			}
		}
	case sqliteDupRe.MatchString(msg):
		m := sqliteDupRe.FindStringSubmatch(msg)
		for _, part := range strings.Split(m[1], ",") {
			part = strings.TrimSpace(part)
			if i := strings.IndexByte(part, '.'); i >= 0 {
				part = part[i+1:]
			}
			out.Fields[part] = ""
		}
	case pgConstraint.MatchString(msg):
		m := pgConstraint.FindStringSubmatch(msg)
		out.Constraint = m[1]
		if req != nil && req.Table != nil {
			for _, f := range req.Table.UniqueIndexFields()[m[1]] {
				out.Fields[f] = ""
			}
		}
	}
	return out
}

// keyFields resolves a violated key name to its member fields. The
// primary key reports under the literal name PRIMARY on MySQL.
func (e *Executor) keyFields(t *schema.Table, key string) []string {
	if t == nil {
		return nil
	}
	if key == "PRIMARY" {
		return t.PrimaryKeyNames()
	}
	return t.UniqueIndexFields()[key]
}

func (e *Executor) foreignKeyError(err error, req *Request, msg string, parent bool) error {
	out := &ForeignKeyConstraintError{Parent: parent, cause: err}
	if req != nil && req.Table != nil {
		out.Table = req.Table.Name
	}
	if m := mysqlFKRe.FindStringSubmatch(msg); m != nil {
		out.Constraint = m[1]
		out.Fields = []string{m[2]}
	} else if m := pgConstraint.FindStringSubmatch(msg); m != nil {
		out.Constraint = m[1]
		if req != nil && req.Table != nil {
			for _, fk := range req.Table.ForeignKeys {
				if fk.Symbol == m[1] {
					out.Fields = fk.ColumnNames()
				}
			}
		}
	}
	return out
}
