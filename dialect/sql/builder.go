package sql

import (
	"strings"

	"github.com/vireosql/vireo/schema/field"
)

// Builder accumulates SQL text and the positional bind list during
// generation. All writes go through the grammar's quoting and escaping
// rules, so identical input always yields byte-identical output.
type Builder struct {
	grammar *Grammar
	sb      strings.Builder
	args    []any
	err     error
}

// NewBuilder returns a builder bound to the given grammar.
func NewBuilder(g *Grammar) *Builder {
	return &Builder{grammar: g}
}

// WriteString appends raw text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends a single byte.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Ident appends a quoted identifier.
func (b *Builder) Ident(name string) *Builder {
	q, err := b.grammar.QuoteIdentifier(name)
	if err != nil {
		b.fail(err)
		return b
	}
	b.sb.WriteString(q)
	return b
}

// IdentComma appends a comma-separated list of quoted identifiers.
func (b *Builder) IdentComma(names ...string) *Builder {
	for i, name := range names {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Ident(name)
	}
	return b
}

// Arg appends a bind placeholder and records the value.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	b.sb.WriteString(b.grammar.placeholder(len(b.args)))
	return b
}

// Args appends a comma-separated placeholder list for the given values.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Literal appends an escaped literal value instead of a placeholder.
// Used when bind-mode is disabled.
func (b *Builder) Literal(v any, t field.Type) *Builder {
	lit, err := b.grammar.EscapeValue(v, t)
	if err != nil {
		b.fail(err)
		return b
	}
	b.sb.WriteString(lit)
	return b
}

// Wrap appends f's output surrounded by parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.sb.WriteByte('(')
	f(b)
	b.sb.WriteByte(')')
	return b
}

// Join appends each element produced by fs separated by sep.
func (b *Builder) Join(sep string, fs ...func(*Builder)) *Builder {
	for i, f := range fs {
		if i > 0 {
			b.sb.WriteString(sep)
		}
		f(b)
	}
	return b
}

// fail records the first error; later writes still run so the builder
// can be used fluently, but the statement is discarded.
func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first error recorded during building.
func (b *Builder) Err() error { return b.err }

// Statement finalizes the builder into a kind-tagged statement.
func (b *Builder) Statement(kind QueryKind) (*Statement, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Statement{Text: b.sb.String(), Binds: b.args, Kind: kind}, nil
}

// String returns the accumulated SQL text.
func (b *Builder) String() string { return b.sb.String() }

// TakeArgs returns the collected bind list.
func (b *Builder) TakeArgs() []any { return b.args }
