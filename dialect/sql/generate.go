package sql

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

// QueryKind tags a statement with the kind of logical operation that
// produced it. The kind is decided at generation time and threaded
// through execution, so the result normalizer never re-inspects SQL
// text to decide how to reshape driver output.
type QueryKind uint8

// Query kinds.
const (
	KindSelect QueryKind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindUpsert
	KindBulkUpdate
	KindBulkDelete
	KindDescribe
	KindShowIndexes
	KindShowConstraints
	KindForeignKeys
	KindVersion
	KindRaw
	KindCall
)

var kindNames = [...]string{
	KindSelect:          "select",
	KindInsert:          "insert",
	KindUpdate:          "update",
	KindDelete:          "delete",
	KindUpsert:          "upsert",
	KindBulkUpdate:      "bulk-update",
	KindBulkDelete:      "bulk-delete",
	KindDescribe:        "describe",
	KindShowIndexes:     "show-indexes",
	KindShowConstraints: "show-constraints",
	KindForeignKeys:     "foreign-keys",
	KindVersion:         "version",
	KindRaw:             "raw",
	KindCall:            "call",
}

func (k QueryKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// returnsRows reports whether statements of this kind produce a row set
// rather than an affected-row count.
func (k QueryKind) returnsRows() bool {
	switch k {
	case KindSelect, KindDescribe, KindShowIndexes, KindShowConstraints,
		KindForeignKeys, KindVersion, KindRaw, KindCall:
		return true
	}
	return false
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Options carry the per-request modifiers of a logical request.
type Options struct {
	Limit   int
	Offset  int
	OrderBy []Order
	// Bind is the caller-supplied positional bind list for raw
	// statements and procedure calls.
	Bind []any
	// Replacements are named values substituted into the SQL text as
	// escaped literals before the statement is sent. A request may
	// carry bind values or replacements, never both.
	Replacements map[string]any
	// SearchPath prefixes the statement with a schema search-path
	// switch. Requires multiple round trips, so it forces bind-mode
	// off (see upsert generation).
	SearchPath string
	// ExceptionBlock wraps the statement in the dialect's exception
	// handling clause. Forces bind-mode off, as above.
	ExceptionBlock bool
	// Returning names the columns an insert should return, on dialects
	// supporting it.
	Returning []string
}

// Request is the dialect-neutral description of one database operation,
// handed over by the model layer.
type Request struct {
	Kind  QueryKind
	Table *schema.Table
	// Columns restricts the SELECT projection. Empty means every table
	// column in definition order.
	Columns []string
	// Values is the attribute map of INSERT/UPDATE/UPSERT requests.
	Values map[string]any
	// Rows holds the attribute maps of a bulk INSERT.
	Rows []map[string]any
	Where Predicate
	// SQL is the verbatim statement text of a raw request.
	SQL string
	// Proc is the procedure name of a call request.
	Proc    string
	Options Options
}

// Statement is generated SQL text with its positional bind list and the
// kind tag the executor dispatches on.
type Statement struct {
	Text  string
	Binds []any
	Kind  QueryKind
}

// Generator translates logical requests into dialect-correct SQL. It is
// stateless; generation is a pure function of the request and grammar.
type Generator struct {
	grammar *Grammar
}

// NewGenerator returns a generator for the given grammar.
func NewGenerator(g *Grammar) *Generator {
	return &Generator{grammar: g}
}

// Grammar returns the grammar the generator is bound to.
func (gen *Generator) Grammar() *Grammar { return gen.grammar }

// Generate translates a logical request into a statement. Construction
// errors (conflicting bind modes, missing replacement keys, malformed
// JSON paths) are detected here and never reach a connection.
func (gen *Generator) Generate(req *Request) (*Statement, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var (
		stmt *Statement
		err  error
	)
	switch req.Kind {
	case KindSelect:
		stmt, err = gen.selectStmt(req)
	case KindInsert:
		stmt, err = gen.insertStmt(req)
	case KindUpdate, KindBulkUpdate:
		stmt, err = gen.updateStmt(req)
	case KindDelete, KindBulkDelete:
		stmt, err = gen.deleteStmt(req)
	case KindUpsert:
		stmt, err = gen.upsertStmt(req)
	case KindDescribe:
		stmt, err = gen.describeStmt(req)
	case KindShowIndexes:
		stmt, err = gen.showIndexesStmt(req)
	case KindShowConstraints:
		stmt, err = gen.showConstraintsStmt(req)
	case KindForeignKeys:
		stmt, err = gen.foreignKeysStmt(req)
	case KindVersion:
		stmt, err = gen.versionStmt()
	case KindRaw:
		stmt, err = gen.rawStmt(req)
	case KindCall:
		stmt, err = gen.callStmt(req)
	default:
		return nil, NewRequestError("unknown query kind %d", req.Kind)
	}
	if err != nil {
		return nil, err
	}
	if len(req.Options.Replacements) > 0 {
		stmt.Text, err = gen.expandReplacements(stmt.Text, req.Options.Replacements)
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// validateRequest performs the synchronous request checks that must
// fail before any SQL is emitted or a connection is touched.
func validateRequest(req *Request) error {
	if len(req.Options.Bind) > 0 && len(req.Options.Replacements) > 0 {
		return NewRequestError("both bind and replacement values supplied; a request carries one or the other")
	}
	switch req.Kind {
	case KindRaw:
		if req.SQL == "" {
			return NewRequestError("raw request without SQL text")
		}
	case KindCall:
		if req.Proc == "" {
			return NewRequestError("call request without a procedure name")
		}
	case KindVersion:
	default:
		if req.Table == nil {
			return NewRequestError("%s request without a table", req.Kind)
		}
	}
	return nil
}

// orderedColumns returns the keys of m ordered by the table's column
// definition order; keys unknown to the table sort lexicographically at
// the end. This keeps generation byte-stable for identical input.
func orderedColumns(t *schema.Table, m map[string]any) []string {
	cols := make([]string, 0, len(m))
	for _, c := range t.Columns {
		if _, ok := m[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	var extras []string
	for k := range m {
		if _, ok := t.Column(k); !ok {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(cols, extras...)
}

func (gen *Generator) quoteTable(t *schema.Table) (string, error) {
	name := t.Name
	if t.Schema != "" {
		name = t.Schema + "." + t.Name
	}
	return gen.grammar.QuoteIdentifier(name)
}

func (gen *Generator) selectStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	b := NewBuilder(g)
	cols := req.Columns
	if len(cols) == 0 {
		for _, c := range req.Table.Columns {
			cols = append(cols, c.Name)
		}
	}
	b.WriteString("SELECT ")
	if g.Name == dialect.SQLServer && req.Options.Limit > 0 && req.Options.Offset == 0 {
		b.WriteString("TOP " + strconv.Itoa(req.Options.Limit) + " ")
	}
	if len(cols) == 0 {
		b.WriteString("*")
	} else {
		b.IdentComma(cols...)
	}
	b.WriteString(" FROM ")
	gen.writeTable(b, req.Table)
	if err := gen.writeWhere(b, req); err != nil {
		return nil, err
	}
	if len(req.Options.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range req.Options.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(o.Column)
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if err := gen.writeLimit(b, req.Options); err != nil {
		return nil, err
	}
	return b.Statement(KindSelect)
}

func (gen *Generator) writeTable(b *Builder, t *schema.Table) {
	q, err := gen.quoteTable(t)
	if err != nil {
		b.fail(err)
		return
	}
	b.WriteString(q)
}

func (gen *Generator) writeWhere(b *Builder, req *Request) error {
	if req.Where == nil {
		return nil
	}
	b.WriteString(" WHERE ")
	return req.Where.compile(b, req.Table)
}

func (gen *Generator) writeLimit(b *Builder, opts Options) error {
	g := gen.grammar
	switch {
	case g.Name == dialect.SQLServer:
		if opts.Offset > 0 {
			if len(opts.OrderBy) == 0 {
				return NewRequestError("offset requires an order on dialect %q", g.Name)
			}
			b.WriteString(" OFFSET " + strconv.Itoa(opts.Offset) + " ROWS")
			if opts.Limit > 0 {
				b.WriteString(" FETCH NEXT " + strconv.Itoa(opts.Limit) + " ROWS ONLY")
			}
		}
	default:
		if opts.Limit > 0 {
			b.WriteString(" LIMIT " + strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(opts.Offset))
		}
	}
	return nil
}

func (gen *Generator) insertStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	rows := req.Rows
	if len(rows) == 0 {
		if req.Values == nil {
			return nil, NewRequestError("insert request without values")
		}
		rows = []map[string]any{req.Values}
	}
	// Column set is the union over all rows, in table order.
	union := make(map[string]any)
	for _, r := range rows {
		for k := range r {
			union[k] = struct{}{}
		}
	}
	cols := orderedColumns(req.Table, union)
	// Identity columns are server-assigned; drop explicit values when
	// the dialect prohibits identity insert.
	if pk, ok := req.Table.AutoIncrementPK(); ok && !g.IdentityInsert {
		cols = excludeColumn(cols, pk.Name)
	}
	if len(cols) == 0 {
		return nil, NewRequestError("insert request with no insertable columns")
	}
	b := NewBuilder(g)
	b.WriteString("INSERT INTO ")
	gen.writeTable(b, req.Table)
	b.WriteString(" (").IdentComma(cols...).WriteString(") VALUES ")
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			b.Arg(r[c])
		}
		b.WriteByte(')')
	}
	if len(req.Options.Returning) > 0 {
		if !g.Returning {
			return nil, NewRequestError("dialect %q does not support returning clauses", g.Name)
		}
		b.WriteString(" RETURNING ").IdentComma(req.Options.Returning...)
	}
	return b.Statement(KindInsert)
}

func excludeColumn(cols []string, name string) []string {
	out := cols[:0]
	for _, c := range cols {
		if c != name {
			out = append(out, c)
		}
	}
	return out
}

func (gen *Generator) updateStmt(req *Request) (*Statement, error) {
	if len(req.Values) == 0 {
		return nil, NewRequestError("update request without values")
	}
	b := NewBuilder(gen.grammar)
	b.WriteString("UPDATE ")
	gen.writeTable(b, req.Table)
	b.WriteString(" SET ")
	for i, c := range orderedColumns(req.Table, req.Values) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(req.Values[c])
	}
	if err := gen.writeWhere(b, req); err != nil {
		return nil, err
	}
	if req.Options.Limit > 0 {
		if gen.grammar.Name != dialect.MySQL {
			return nil, NewRequestError("update limit is not supported on dialect %q", gen.grammar.Name)
		}
		b.WriteString(" LIMIT " + strconv.Itoa(req.Options.Limit))
	}
	return b.Statement(req.Kind)
}

func (gen *Generator) deleteStmt(req *Request) (*Statement, error) {
	b := NewBuilder(gen.grammar)
	b.WriteString("DELETE FROM ")
	gen.writeTable(b, req.Table)
	if err := gen.writeWhere(b, req); err != nil {
		return nil, err
	}
	if req.Options.Limit > 0 {
		if gen.grammar.Name != dialect.MySQL {
			return nil, NewRequestError("delete limit is not supported on dialect %q", gen.grammar.Name)
		}
		b.WriteString(" LIMIT " + strconv.Itoa(req.Options.Limit))
	}
	return b.Statement(req.Kind)
}

// Metadata statements below alias their projections into one shared
// shape per kind, so the result normalizer stays grammar-independent.

func (gen *Generator) describeStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	name := req.Table.Name
	switch g.Name {
	case dialect.MySQL:
		q, err := gen.quoteTable(req.Table)
		if err != nil {
			return nil, err
		}
		return &Statement{Text: "DESCRIBE " + q, Kind: KindDescribe}, nil
	case dialect.SQLite:
		return &Statement{
			Text: "SELECT `name`, `type`, `notnull`, `dflt_value` AS `default`, `pk` " +
				"FROM pragma_table_info(" + g.escapeString(name) + ") ORDER BY `cid`",
			Kind: KindDescribe,
		}, nil
	case dialect.Postgres:
		return &Statement{
			Text: `SELECT "column_name" AS "name", "data_type" AS "type", "is_nullable" AS "nullable", "column_default" AS "default" ` +
				`FROM "information_schema"."columns" WHERE "table_name" = ` + g.escapeString(name) + ` ORDER BY "ordinal_position"`,
			Kind: KindDescribe,
		}, nil
	default:
		return &Statement{
			Text: `SELECT "COLUMN_NAME" AS "name", "DATA_TYPE" AS "type", "IS_NULLABLE" AS "nullable", "COLUMN_DEFAULT" AS "default" ` +
				`FROM "INFORMATION_SCHEMA"."COLUMNS" WHERE "TABLE_NAME" = ` + g.escapeString(name) + ` ORDER BY "ORDINAL_POSITION"`,
			Kind: KindDescribe,
		}, nil
	}
}

func (gen *Generator) showIndexesStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	name := req.Table.Name
	switch g.Name {
	case dialect.MySQL:
		q, err := gen.quoteTable(req.Table)
		if err != nil {
			return nil, err
		}
		return &Statement{Text: "SHOW INDEX FROM " + q, Kind: KindShowIndexes}, nil
	case dialect.SQLite:
		return &Statement{
			Text: "SELECT il.`name` AS `Key_name`, ii.`name` AS `Column_name`, ii.`seqno` + 1 AS `Seq_in_index`, " +
				"NOT il.`unique` AS `Non_unique`, 'A' AS `Collation` " +
				"FROM pragma_index_list(" + g.escapeString(name) + ") il, pragma_index_info(il.`name`) ii " +
				"ORDER BY il.`name`, ii.`seqno`",
			Kind: KindShowIndexes,
		}, nil
	case dialect.Postgres:
		return &Statement{
			Text: `SELECT i.relname AS "Key_name", a.attname AS "Column_name", x.ordinality AS "Seq_in_index", ` +
				`CASE WHEN ix.indisunique THEN 0 ELSE 1 END AS "Non_unique", 'A' AS "Collation" ` +
				`FROM pg_class t JOIN pg_index ix ON t.oid = ix.indrelid JOIN pg_class i ON i.oid = ix.indexrelid ` +
				`JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS x(attnum, ordinality) ON true ` +
				`JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = x.attnum ` +
				`WHERE t.relname = ` + g.escapeString(name) + ` ORDER BY i.relname, x.ordinality`,
			Kind: KindShowIndexes,
		}, nil
	default:
		return &Statement{
			Text: `SELECT i.name AS "Key_name", c.name AS "Column_name", ic.key_ordinal AS "Seq_in_index", ` +
				`CASE WHEN i.is_unique = 1 THEN 0 ELSE 1 END AS "Non_unique", 'A' AS "Collation" ` +
				`FROM sys.indexes i JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id ` +
				`JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id ` +
				`WHERE i.object_id = OBJECT_ID(` + g.escapeString(name) + `) ORDER BY i.name, ic.key_ordinal`,
			Kind: KindShowIndexes,
		}, nil
	}
}

func (gen *Generator) showConstraintsStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	if g.Name == dialect.SQLite {
		return nil, NewRequestError("constraint listing is not supported on dialect %q", g.Name)
	}
	name := g.escapeString(req.Table.Name)
	return &Statement{
		Text: "SELECT CONSTRAINT_NAME AS constraint_name, CONSTRAINT_TYPE AS constraint_type, TABLE_NAME AS table_name " +
			"FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS WHERE TABLE_NAME = " + name,
		Kind: KindShowConstraints,
	}, nil
}

func (gen *Generator) foreignKeysStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	name := g.escapeString(req.Table.Name)
	switch g.Name {
	case dialect.SQLite:
		return &Statement{
			Text: "SELECT `id` AS `constraint_name`, `from` AS `column_name`, `table` AS `referenced_table_name`, `to` AS `referenced_column_name` " +
				"FROM pragma_foreign_key_list(" + name + ")",
			Kind: KindForeignKeys,
		}, nil
	default:
		return &Statement{
			Text: "SELECT CONSTRAINT_NAME AS constraint_name, COLUMN_NAME AS column_name, REFERENCED_TABLE_NAME AS referenced_table_name, " +
				"REFERENCED_COLUMN_NAME AS referenced_column_name FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE " +
				"WHERE TABLE_NAME = " + name + " AND REFERENCED_TABLE_NAME IS NOT NULL",
			Kind: KindForeignKeys,
		}, nil
	}
}

func (gen *Generator) versionStmt() (*Statement, error) {
	var text string
	switch gen.grammar.Name {
	case dialect.SQLite:
		text = "SELECT sqlite_version() AS version"
	case dialect.SQLServer:
		text = "SELECT @@VERSION AS version"
	default:
		text = "SELECT VERSION() AS version"
	}
	return &Statement{Text: text, Kind: KindVersion}, nil
}

func (gen *Generator) rawStmt(req *Request) (*Statement, error) {
	return &Statement{Text: req.SQL, Binds: req.Options.Bind, Kind: KindRaw}, nil
}

func (gen *Generator) callStmt(req *Request) (*Statement, error) {
	g := gen.grammar
	if g.Name == dialect.SQLite {
		return nil, NewRequestError("procedure calls are not supported on dialect %q", g.Name)
	}
	proc, err := g.QuoteIdentifier(req.Proc)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(g)
	if g.Name == dialect.SQLServer {
		b.WriteString("EXEC " + proc)
		if len(req.Options.Bind) > 0 {
			b.WriteByte(' ').Args(req.Options.Bind...)
		}
	} else {
		b.WriteString("CALL " + proc + "(")
		b.Args(req.Options.Bind...)
		b.WriteByte(')')
	}
	return b.Statement(KindCall)
}

// expandReplacements substitutes :name tokens in the statement text with
// escaped literal values. A referenced key without a value is a
// construction error. Double colons (type casts) pass through.
func (gen *Generator) expandReplacements(text string, values map[string]any) (string, error) {
	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'':
			// Skip string literals untouched.
			j := i + 1
			for j < len(text) {
				if text[j] == '\'' {
					if j+1 < len(text) && text[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			sb.WriteString(text[i:j])
			i = j
		case c == ':' && i+1 < len(text) && text[i+1] == ':':
			sb.WriteString("::")
			i += 2
		case c == ':' && i+1 < len(text) && isNameStart(text[i+1]):
			j := i + 1
			for j < len(text) && isNamePart(text[j]) {
				j++
			}
			key := text[i+1 : j]
			v, ok := values[key]
			if !ok {
				return "", NewRequestError("named replacement %q has no value", key)
			}
			lit, err := gen.grammar.EscapeValue(v, field.TypeInvalid)
			if err != nil {
				return "", err
			}
			sb.WriteString(lit)
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

func isNameStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// GenerateSQL builds a generator for the named dialect and translates
// the request in one call.
func GenerateSQL(dialectName string, req *Request) (*Statement, error) {
	g, err := GrammarFor(dialectName)
	if err != nil {
		return nil, err
	}
	return NewGenerator(g).Generate(req)
}
