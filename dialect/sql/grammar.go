package sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/schema/field"
)

// UpsertStyle selects the insert-or-update syntax family of a dialect.
type UpsertStyle uint8

const (
	// UpsertMerge synthesizes a MERGE INTO statement for dialects
	// without a native conflict clause.
	UpsertMerge UpsertStyle = iota
	// UpsertOnConflict renders INSERT ... ON CONFLICT ... DO UPDATE.
	UpsertOnConflict
	// UpsertOnDuplicateKey renders INSERT ... ON DUPLICATE KEY UPDATE.
	UpsertOnDuplicateKey
)

// A Grammar is the configuration value describing one SQL dialect:
// quoting and escaping rules, placeholder style, type mapping, and the
// capability flags the generators branch on. Grammars are immutable and
// shared; one generic generator consumes them instead of per-dialect
// subclassing.
type Grammar struct {
	// Name is the dialect name (see the dialect package constants).
	Name string
	// IdentQuote is the identifier quote character.
	IdentQuote byte
	// EscapeBackslash indicates backslashes are escape characters
	// inside string literals and must be doubled.
	EscapeBackslash bool
	// BoolLiterals holds the literals for false and true, in that
	// order, for dialects without a native boolean literal.
	BoolLiterals [2]string
	// PlaceholderPrefix is the prefix of numbered bind placeholders
	// ("$" or "@p"). Empty means anonymous "?" placeholders.
	PlaceholderPrefix string
	// DefaultPort is used when the connect configuration leaves the
	// port unset.
	DefaultPort int
	// TimeLayout renders timestamps with full sub-second precision.
	TimeLayout string
	// DummyTable is the single-row source table required by dialects
	// that reject a SELECT without a FROM clause.
	DummyTable string
	// Upsert selects the insert-or-update syntax family.
	Upsert UpsertStyle
	// NativeEnum indicates native enum column types. Without it, enum
	// columns render as fixed-width character columns sized to the
	// longest permitted value.
	NativeEnum bool
	// InlineIncrementPK renders a single auto-increment primary key
	// inline on its column instead of a trailing PRIMARY KEY clause.
	InlineIncrementPK bool
	// IdentityInsert indicates identity columns accept explicit values
	// on insert.
	IdentityInsert bool
	// IdentityUpdate indicates identity columns may appear in UPDATE
	// SET clauses.
	IdentityUpdate bool
	// Returning indicates INSERT ... RETURNING support.
	Returning bool
	// IncrementKeyword is the auto-increment column attribute, if any.
	IncrementKeyword string
}

// Built-in grammars.
var (
	// MySQL also covers MariaDB.
	MySQL = &Grammar{
		Name:             dialect.MySQL,
		IdentQuote:       '`',
		EscapeBackslash:  true,
		BoolLiterals:     [2]string{"0", "1"},
		DefaultPort:      3306,
		TimeLayout:       "2006-01-02 15:04:05.000000",
		DummyTable:       "DUAL",
		Upsert:           UpsertOnDuplicateKey,
		NativeEnum:       true,
		IdentityInsert:   true,
		IncrementKeyword: "AUTO_INCREMENT",
	}

	Postgres = &Grammar{
		Name:              dialect.Postgres,
		IdentQuote:        '"',
		BoolLiterals:      [2]string{"false", "true"},
		PlaceholderPrefix: "$",
		DefaultPort:       5432,
		TimeLayout:        "2006-01-02 15:04:05.000000-07",
		Upsert:            UpsertOnConflict,
		NativeEnum:        false,
		IdentityInsert:    true,
		Returning:         true,
	}

	SQLite = &Grammar{
		Name:              dialect.SQLite,
		IdentQuote:        '`',
		BoolLiterals:      [2]string{"0", "1"},
		DefaultPort:       0,
		TimeLayout:        "2006-01-02 15:04:05.000000",
		Upsert:            UpsertOnConflict,
		InlineIncrementPK: true,
		IdentityInsert:    true,
		IncrementKeyword:  "AUTOINCREMENT",
	}

	SQLServer = &Grammar{
		Name:              dialect.SQLServer,
		IdentQuote:        '"',
		BoolLiterals:      [2]string{"0", "1"},
		PlaceholderPrefix: "@p",
		DefaultPort:       1433,
		TimeLayout:        "2006-01-02 15:04:05.000000",
		Upsert:            UpsertMerge,
		NativeEnum:        false,
		IdentityInsert:    false,
		IncrementKeyword:  "IDENTITY(1,1)",
	}
)

var grammars = map[string]*Grammar{
	dialect.MySQL:     MySQL,
	dialect.Postgres:  Postgres,
	dialect.SQLite:    SQLite,
	dialect.SQLServer: SQLServer,
}

// GrammarFor returns the grammar registered for the given dialect name.
func GrammarFor(name string) (*Grammar, error) {
	// Strip instrumentation suffixes, e.g. "mysql+stats".
	for prefix, g := range grammars {
		if name == prefix || strings.HasPrefix(name, prefix+"+") {
			return g, nil
		}
	}
	return nil, fmt.Errorf("sql: unknown dialect %q", name)
}

// placeholder returns the 1-based positional bind placeholder.
func (g *Grammar) placeholder(n int) string {
	if g.PlaceholderPrefix == "" {
		return "?"
	}
	return g.PlaceholderPrefix + strconv.Itoa(n)
}

// QuoteIdentifier wraps an identifier in the grammar's quote character,
// doubling any embedded quote character. Qualified names are quoted per
// segment. Names carrying a statement terminator are a caller error.
func (g *Grammar) QuoteIdentifier(name string) (string, error) {
	if strings.ContainsRune(name, ';') {
		return "", &RequestError{msg: fmt.Sprintf("identifier %q contains a statement terminator", name)}
	}
	parts := strings.Split(name, ".")
	q := string(g.IdentQuote)
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, "."), nil
}

// EscapeValue renders a literal value of the given abstract type. The
// function is pure over its input and the grammar configuration.
func (g *Grammar) EscapeValue(v any, t field.Type) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch v := v.(type) {
	case bool:
		if v {
			return g.BoolLiterals[1], nil
		}
		return g.BoolLiterals[0], nil
	case time.Time:
		return "'" + v.Format(g.TimeLayout) + "'", nil
	case string:
		return g.escapeString(v), nil
	case []byte:
		return g.escapeBytes(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case fmt.Stringer:
		return g.escapeString(v.String()), nil
	default:
		if t == field.TypeJSON || t == field.TypeJSONB {
			return "", &RequestError{msg: fmt.Sprintf("cannot inline %T as a %s literal; pass it as a bind value", v, t)}
		}
		return "", &RequestError{msg: fmt.Sprintf("unsupported literal type %T", v)}
	}
}

// escapeString renders a quoted string literal, doubling embedded quote
// characters, and doubling backslashes where they act as escapes.
func (g *Grammar) escapeString(s string) string {
	if g.EscapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (g *Grammar) escapeBytes(b []byte) string {
	switch g.Name {
	case dialect.Postgres:
		return fmt.Sprintf(`'\x%x'`, b)
	case dialect.SQLServer:
		return fmt.Sprintf("0x%x", b)
	default:
		return fmt.Sprintf("X'%x'", b)
	}
}
