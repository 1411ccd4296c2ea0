package sql

import (
	"strings"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/dialect/sql/sqljson"
	"github.com/vireosql/vireo/schema"
)

// Op is a comparison operator of a predicate leaf.
type Op uint8

// Comparison operators.
const (
	OpEQ Op = iota
	OpNEQ
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpLike
	OpNotLike
	OpIn
	OpNotIn
	OpIsNull
	OpNotNull
)

var opText = [...]string{
	OpEQ:      "=",
	OpNEQ:     "<>",
	OpGT:      ">",
	OpGTE:     ">=",
	OpLT:      "<",
	OpLTE:     "<=",
	OpLike:    "LIKE",
	OpNotLike: "NOT LIKE",
	OpIn:      "IN",
	OpNotIn:   "NOT IN",
	OpIsNull:  "IS NULL",
	OpNotNull: "IS NOT NULL",
}

// A Predicate is one node of a condition tree: a leaf comparison, a
// logical conjunction/disjunction, a raw SQL fragment, or a JSON-path
// access. Trees compile in insertion order; the compiler never reorders.
type Predicate interface {
	compile(b *Builder, t *schema.Table) error
}

type comparison struct {
	col   string
	op    Op
	value any
}

type logical struct {
	or    bool
	preds []Predicate
}

type rawFragment struct {
	sql  string
	args []any
}

type jsonPath struct {
	col      string
	path     string
	value    any
	hasValue bool
}

// EQ returns a column = value predicate.
func EQ(col string, v any) Predicate { return &comparison{col, OpEQ, v} }

// NEQ returns a column <> value predicate.
func NEQ(col string, v any) Predicate { return &comparison{col, OpNEQ, v} }

// GT returns a column > value predicate.
func GT(col string, v any) Predicate { return &comparison{col, OpGT, v} }

// GTE returns a column >= value predicate.
func GTE(col string, v any) Predicate { return &comparison{col, OpGTE, v} }

// LT returns a column < value predicate.
func LT(col string, v any) Predicate { return &comparison{col, OpLT, v} }

// LTE returns a column <= value predicate.
func LTE(col string, v any) Predicate { return &comparison{col, OpLTE, v} }

// Like returns a column LIKE pattern predicate.
func Like(col, pattern string) Predicate { return &comparison{col, OpLike, pattern} }

// NotLike returns a column NOT LIKE pattern predicate.
func NotLike(col, pattern string) Predicate { return &comparison{col, OpNotLike, pattern} }

// In returns a column IN (values...) predicate.
func In(col string, vs ...any) Predicate { return &comparison{col, OpIn, vs} }

// NotIn returns a column NOT IN (values...) predicate.
func NotIn(col string, vs ...any) Predicate { return &comparison{col, OpNotIn, vs} }

// IsNull returns a column IS NULL predicate.
func IsNull(col string) Predicate { return &comparison{col: col, op: OpIsNull} }

// NotNull returns a column IS NOT NULL predicate.
func NotNull(col string) Predicate { return &comparison{col: col, op: OpNotNull} }

// And joins the given predicates with AND, preserving order.
func And(preds ...Predicate) Predicate { return &logical{or: false, preds: preds} }

// Or joins the given predicates with OR, preserving order.
func Or(preds ...Predicate) Predicate { return &logical{or: true, preds: preds} }

// Raw returns a pass-through SQL fragment inserted verbatim with its
// bind values appended in place. The fragment is never escaped or
// re-parsed; its safety is the caller's responsibility by contract.
func Raw(sql string, args ...any) Predicate { return &rawFragment{sql: sql, args: args} }

// JSONPath returns a truthiness predicate over a JSON path of a column.
func JSONPath(col, path string) Predicate { return &jsonPath{col: col, path: path} }

// JSONPathEQ returns an equality predicate over a JSON path of a column.
func JSONPathEQ(col, path string, v any) Predicate {
	return &jsonPath{col: col, path: path, value: v, hasValue: true}
}

// CompilePredicate compiles a condition tree into SQL text and its bind
// list, resolving column types against the given table.
func CompilePredicate(g *Grammar, p Predicate, t *schema.Table) (string, []any, error) {
	b := NewBuilder(g)
	if err := p.compile(b, t); err != nil {
		return "", nil, err
	}
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	return b.String(), b.TakeArgs(), nil
}

func (c *comparison) compile(b *Builder, t *schema.Table) error {
	switch c.op {
	case OpIsNull, OpNotNull:
		b.Ident(c.col).WriteByte(' ').WriteString(opText[c.op])
	case OpIn, OpNotIn:
		vs, ok := c.value.([]any)
		if !ok {
			vs = []any{c.value}
		}
		if len(vs) == 0 {
			// An empty list can never match; render a constant so the
			// statement stays valid.
			if c.op == OpIn {
				b.WriteString("1 = 0")
			} else {
				b.WriteString("1 = 1")
			}
			return nil
		}
		b.Ident(c.col).WriteByte(' ').WriteString(opText[c.op]).WriteString(" (")
		b.Args(vs...)
		b.WriteByte(')')
	default:
		b.Ident(c.col).WriteByte(' ').WriteString(opText[c.op]).WriteByte(' ')
		if sub, ok := c.value.(Predicate); ok {
			return sub.compile(b, t)
		}
		b.Arg(c.value)
	}
	return nil
}

func (l *logical) compile(b *Builder, t *schema.Table) error {
	if len(l.preds) == 0 {
		return NewRequestError("empty logical predicate")
	}
	if len(l.preds) == 1 {
		return l.preds[0].compile(b, t)
	}
	sep := " AND "
	if l.or {
		sep = " OR "
	}
	b.WriteByte('(')
	for i, p := range l.preds {
		if i > 0 {
			b.WriteString(sep)
		}
		if err := p.compile(b, t); err != nil {
			return err
		}
	}
	b.WriteByte(')')
	return nil
}

func (r *rawFragment) compile(b *Builder, _ *schema.Table) error {
	b.WriteString(r.sql)
	b.args = append(b.args, r.args...)
	return nil
}

func (j *jsonPath) compile(b *Builder, _ *schema.Table) error {
	kind, err := sqljson.Classify(j.path)
	if err != nil {
		return NewRequestError("json path %q: %v", j.path, err)
	}
	switch kind {
	case sqljson.KindNative:
		// Already a dialect-native JSON expression; pass through as-is.
		b.WriteString(j.path)
	case sqljson.KindAccessor:
		segs := sqljson.Segments(j.path)
		if len(segs) == 0 {
			return NewRequestError("json path %q has no segments", j.path)
		}
		b.grammar.jsonExtract(b, j.col, segs)
		if err := b.Err(); err != nil {
			return err
		}
	}
	if j.hasValue {
		b.WriteString(" = ").Arg(j.value)
	}
	return nil
}

// jsonExtract writes a synthesized path-extraction expression.
func (g *Grammar) jsonExtract(b *Builder, col string, segs []string) {
	quoted, err := g.QuoteIdentifier(col)
	if err != nil {
		b.fail(err)
		return
	}
	switch g.Name {
	case dialect.Postgres:
		b.WriteString(quoted + " #>> '{" + strings.Join(segs, ",") + "}'")
	case dialect.SQLServer:
		b.WriteString("JSON_VALUE(" + quoted + ", " + g.escapeString(dollarPath(segs)) + ")")
	case dialect.SQLite:
		b.WriteString("json_extract(" + quoted + ", " + g.escapeString(dollarPath(segs)) + ")")
	default:
		b.WriteString("JSON_UNQUOTE(JSON_EXTRACT(" + quoted + ", " + g.escapeString(dollarPath(segs)) + "))")
	}
}

// dollarPath renders segments in the $.a.b[2] form. Purely numeric
// segments are treated as array subscripts.
func dollarPath(segs []string) string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, s := range segs {
		if isDigits(s) {
			sb.WriteByte('[')
			sb.WriteString(s)
			sb.WriteByte(']')
		} else {
			sb.WriteByte('.')
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
