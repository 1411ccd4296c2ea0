package sql

import (
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

// CreateTable renders the CREATE TABLE statement for t. Columns appear
// in definition order, the composite primary key clause follows the
// last column, and foreign key clauses come last so the constraint tail
// never interleaves with column definitions.
func (gen *Generator) CreateTable(t *schema.Table) (*Statement, error) {
	g := gen.grammar
	b := NewBuilder(g)
	b.WriteString("CREATE TABLE ")
	gen.writeTable(b, t)
	b.WriteString(" (")
	inlined := gen.inlinePK(t)
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := gen.writeColumn(b, t, c, inlined); err != nil {
			return nil, err
		}
	}
	if len(t.PrimaryKey) > 0 && !inlined {
		b.WriteString(", PRIMARY KEY (").IdentComma(t.PrimaryKeyNames()...).WriteByte(')')
	}
	for _, idx := range t.Indexes {
		if !idx.Unique {
			continue
		}
		b.WriteString(", CONSTRAINT ")
		b.Ident(gen.indexName(t, idx))
		b.WriteString(" UNIQUE (").IdentComma(idx.ColumnNames()...).WriteByte(')')
	}
	for _, fk := range t.ForeignKeys {
		b.WriteString(", ")
		gen.writeForeignKey(b, fk)
	}
	b.WriteByte(')')
	return b.Statement(KindRaw)
}

// inlinePK reports whether the primary key is rendered inline on its
// column definition rather than as a separate clause. SQLite requires
// this form for auto-increment keys.
func (gen *Generator) inlinePK(t *schema.Table) bool {
	if !gen.grammar.InlineIncrementPK || len(t.PrimaryKey) != 1 {
		return false
	}
	_, ok := t.AutoIncrementPK()
	return ok
}

func (gen *Generator) writeColumn(b *Builder, t *schema.Table, c *schema.Column, inlined bool) error {
	g := gen.grammar
	typ, err := g.ColumnType(c)
	if err != nil {
		return err
	}
	if c.Increment && g.Name == dialect.Postgres {
		typ = "serial"
		if c.Type == field.TypeInt64 || c.Type == field.TypeUint64 {
			typ = "bigserial"
		}
	}
	b.Ident(c.Name).WriteByte(' ').WriteString(typ)
	if inlined && len(t.PrimaryKey) == 1 && t.PrimaryKey[0].Name == c.Name {
		b.WriteString(" NOT NULL PRIMARY KEY " + g.IncrementKeyword)
		return b.Err()
	}
	if c.Nullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil && !c.Type.NoDefault() {
		lit, err := g.EscapeValue(c.Default, c.Type)
		if err != nil {
			return err
		}
		b.WriteString(" DEFAULT " + lit)
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Increment && !inlined && g.Name != dialect.Postgres && g.IncrementKeyword != "" {
		b.WriteString(" " + g.IncrementKeyword)
	}
	return b.Err()
}

func (gen *Generator) writeForeignKey(b *Builder, fk *schema.ForeignKey) {
	if fk.Symbol != "" {
		b.WriteString("CONSTRAINT ").Ident(fk.Symbol).WriteByte(' ')
	}
	b.WriteString("FOREIGN KEY (").IdentComma(fk.ColumnNames()...).WriteString(") REFERENCES ")
	b.Ident(fk.RefTable.Name)
	b.WriteString(" (").IdentComma(fk.RefColumnNames()...).WriteByte(')')
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + string(fk.OnUpdate))
	}
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + string(fk.OnDelete))
	}
}

// indexName returns the index name, deriving the uniq_<table>_<columns>
// form when the schema left it unnamed.
func (gen *Generator) indexName(t *schema.Table, idx *schema.Index) string {
	if idx.Name != "" {
		return idx.Name
	}
	parts := append([]string{"uniq", t.Name}, idx.ColumnNames()...)
	return inflect.Underscore(strings.Join(parts, "_"))
}

// DropTable renders a DROP TABLE statement.
func (gen *Generator) DropTable(t *schema.Table, ifExists bool) (*Statement, error) {
	b := NewBuilder(gen.grammar)
	b.WriteString("DROP TABLE ")
	if ifExists {
		b.WriteString("IF EXISTS ")
	}
	gen.writeTable(b, t)
	return b.Statement(KindRaw)
}

// AddColumn renders an ALTER TABLE ... ADD statement for c.
func (gen *Generator) AddColumn(t *schema.Table, c *schema.Column) (*Statement, error) {
	b := NewBuilder(gen.grammar)
	b.WriteString("ALTER TABLE ")
	gen.writeTable(b, t)
	switch gen.grammar.Name {
	case dialect.Postgres, dialect.SQLite:
		b.WriteString(" ADD COLUMN ")
	default:
		b.WriteString(" ADD ")
	}
	if err := gen.writeColumn(b, t, c, false); err != nil {
		return nil, err
	}
	return b.Statement(KindRaw)
}

// DropColumn renders an ALTER TABLE ... DROP COLUMN statement.
func (gen *Generator) DropColumn(t *schema.Table, name string) (*Statement, error) {
	b := NewBuilder(gen.grammar)
	b.WriteString("ALTER TABLE ")
	gen.writeTable(b, t)
	b.WriteString(" DROP COLUMN ").Ident(name)
	return b.Statement(KindRaw)
}

// ChangeColumn renders the statement redefining an existing column.
// On MySQL the redefinition and any accompanying foreign key additions
// join into a single multi-clause ALTER TABLE, so the column change and
// its constraint land atomically.
func (gen *Generator) ChangeColumn(t *schema.Table, c *schema.Column, fks ...*schema.ForeignKey) (*Statement, error) {
	g := gen.grammar
	b := NewBuilder(g)
	b.WriteString("ALTER TABLE ")
	gen.writeTable(b, t)
	switch g.Name {
	case dialect.MySQL:
		b.WriteString(" CHANGE ").Ident(c.Name).WriteByte(' ')
		if err := gen.writeColumn(b, t, c, false); err != nil {
			return nil, err
		}
		for _, fk := range fks {
			b.WriteString(", ADD ")
			gen.writeForeignKey(b, fk)
		}
	case dialect.SQLite:
		return nil, NewRequestError("dialect %q cannot redefine columns in place", g.Name)
	default:
		typ, err := g.ColumnType(c)
		if err != nil {
			return nil, err
		}
		b.WriteString(" ALTER COLUMN ").Ident(c.Name)
		if g.Name == dialect.Postgres {
			b.WriteString(" TYPE " + typ)
		} else {
			b.WriteByte(' ').WriteString(typ)
			if c.Nullable {
				b.WriteString(" NULL")
			} else {
				b.WriteString(" NOT NULL")
			}
		}
		if len(fks) > 0 {
			return nil, NewRequestError("dialect %q adds foreign keys in a separate statement", g.Name)
		}
	}
	return b.Statement(KindRaw)
}

// RenameColumn renders a column rename.
func (gen *Generator) RenameColumn(t *schema.Table, from, to string) (*Statement, error) {
	g := gen.grammar
	b := NewBuilder(g)
	if g.Name == dialect.SQLServer {
		b.WriteString("EXEC sp_rename ")
		b.WriteString(g.escapeString(t.Name+"."+from) + ", " + g.escapeString(to) + ", 'COLUMN'")
		return b.Statement(KindRaw)
	}
	b.WriteString("ALTER TABLE ")
	gen.writeTable(b, t)
	b.WriteString(" RENAME COLUMN ").Ident(from).WriteString(" TO ").Ident(to)
	return b.Statement(KindRaw)
}

// AddForeignKey renders an ALTER TABLE ... ADD CONSTRAINT for fk.
func (gen *Generator) AddForeignKey(t *schema.Table, fk *schema.ForeignKey) (*Statement, error) {
	if gen.grammar.Name == dialect.SQLite {
		return nil, NewRequestError("dialect %q cannot add foreign keys to existing tables", gen.grammar.Name)
	}
	b := NewBuilder(gen.grammar)
	b.WriteString("ALTER TABLE ")
	gen.writeTable(b, t)
	b.WriteString(" ADD ")
	gen.writeForeignKey(b, fk)
	return b.Statement(KindRaw)
}

// CreateIndex renders the CREATE INDEX statement for a non-unique or
// custom index. Unique indexes declared on the table are emitted as
// constraint clauses by CreateTable instead.
func (gen *Generator) CreateIndex(t *schema.Table, idx *schema.Index) (*Statement, error) {
	b := NewBuilder(gen.grammar)
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ").Ident(gen.indexName(t, idx)).WriteString(" ON ")
	gen.writeTable(b, t)
	b.WriteString(" (").IdentComma(idx.ColumnNames()...).WriteByte(')')
	return b.Statement(KindRaw)
}

// DropIndex renders the DROP INDEX statement for the named index.
func (gen *Generator) DropIndex(t *schema.Table, name string) (*Statement, error) {
	g := gen.grammar
	b := NewBuilder(g)
	b.WriteString("DROP INDEX ").Ident(name)
	switch g.Name {
	case dialect.MySQL, dialect.SQLServer:
		b.WriteString(" ON ")
		gen.writeTable(b, t)
	}
	return b.Statement(KindRaw)
}
