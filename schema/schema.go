// Package schema defines the dialect-neutral table, column, index, and
// foreign-key descriptions consumed by the SQL generators at schema-sync
// time. Definitions are constructed by the model layer and passed to the
// core by value; the core never mutates them.
package schema

import (
	"fmt"

	"github.com/vireosql/vireo/schema/field"
)

// ReferenceAction is the action taken on a foreign key when the
// referenced row is updated or deleted.
type ReferenceAction string

// Reference actions.
const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// Column is a logical column definition.
type Column struct {
	// Name of the column.
	Name string
	// Type is the abstract column type.
	Type field.Type
	// Size is the character width for string/char columns (0 means the
	// dialect default).
	Size int64
	// Enums holds the permitted values for enum columns.
	Enums []string
	// Precision and Scale apply to decimal columns.
	Precision, Scale int
	// Nullable columns accept NULL.
	Nullable bool
	// Default is an optional literal default value. It must be
	// type-compatible with the column type. Large-object types never
	// render a default (see Table.Validate).
	Default any
	// Increment marks a server-assigned auto-increment column.
	Increment bool
	// Unique marks the column with a single-column uniqueness constraint.
	Unique bool
}

// Table is a logical table definition. Column order is preserved and
// defines both CREATE TABLE and SELECT projection ordering.
type Table struct {
	Name string
	// Schema is an optional schema qualifier.
	Schema      string
	Columns     []*Column
	PrimaryKey  []*Column
	ForeignKeys []*ForeignKey
	Indexes     []*Index

	columns map[string]*Column
}

// NewTable returns a new table with the given name.
func NewTable(name string) *Table {
	return &Table{Name: name, columns: make(map[string]*Column)}
}

// AddColumn appends a column to the table, preserving insertion order.
func (t *Table) AddColumn(c *Column) *Table {
	if t.columns == nil {
		t.columns = make(map[string]*Column)
	}
	t.columns[c.Name] = c
	t.Columns = append(t.Columns, c)
	return t
}

// SetPrimaryKey sets the composite primary key of the table.
func (t *Table) SetPrimaryKey(cols ...*Column) *Table {
	t.PrimaryKey = cols
	return t
}

// AddForeignKey appends a foreign key to the table.
func (t *Table) AddForeignKey(fk *ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return t
}

// AddIndex appends an index to the table.
func (t *Table) AddIndex(idx *Index) *Table {
	t.Indexes = append(t.Indexes, idx)
	return t
}

// Column returns the column with the given name, if it exists.
func (t *Table) Column(name string) (*Column, bool) {
	if t.columns != nil {
		c, ok := t.columns[name]
		return c, ok
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// AutoIncrementPK returns the primary-key column if the table has a
// single server-assigned (identity) primary key.
func (t *Table) AutoIncrementPK() (*Column, bool) {
	if len(t.PrimaryKey) == 1 && t.PrimaryKey[0].Increment {
		return t.PrimaryKey[0], true
	}
	return nil, false
}

// PrimaryKeyNames returns the ordered column names of the primary key.
func (t *Table) PrimaryKeyNames() []string {
	names := make([]string, len(t.PrimaryKey))
	for i, c := range t.PrimaryKey {
		names[i] = c.Name
	}
	return names
}

// ColumnType returns the abstract type of the named column, or
// TypeInvalid if the column is unknown.
func (t *Table) ColumnType(name string) field.Type {
	if c, ok := t.Column(name); ok {
		return c.Type
	}
	return field.TypeInvalid
}

// ForeignKey is a logical foreign-key constraint.
type ForeignKey struct {
	// Symbol is the constraint name. An empty symbol gets a generated
	// deterministic name at render time.
	Symbol     string
	Columns    []*Column
	RefTable   *Table
	RefColumns []*Column
	OnUpdate   ReferenceAction
	OnDelete   ReferenceAction
}

// ColumnNames returns the ordered referencing column names.
func (fk *ForeignKey) ColumnNames() []string {
	names := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		names[i] = c.Name
	}
	return names
}

// RefColumnNames returns the ordered referenced column names.
func (fk *ForeignKey) RefColumnNames() []string {
	names := make([]string, len(fk.RefColumns))
	for i, c := range fk.RefColumns {
		names[i] = c.Name
	}
	return names
}

// Index is a named index or unique-key constraint.
type Index struct {
	// Name of the index. Unique indexes without a name are assigned a
	// deterministic generated name at render time.
	Name    string
	Unique  bool
	Columns []*Column
	// Custom marks a caller-managed unique key that renders as a named
	// CONSTRAINT rather than a plain index.
	Custom bool
}

// ColumnNames returns the ordered column names of the index.
func (i *Index) ColumnNames() []string {
	names := make([]string, len(i.Columns))
	for j, c := range i.Columns {
		names[j] = c.Name
	}
	return names
}

// UniqueIndexFields maps each unique index or constraint name of the
// table to its ordered column names, including single-column uniqueness
// flags. The executor uses it to resolve constraint violations back to
// logical fields.
func (t *Table) UniqueIndexFields() map[string][]string {
	m := make(map[string][]string)
	for _, idx := range t.Indexes {
		if idx.Unique {
			m[idx.Name] = idx.ColumnNames()
		}
	}
	for _, c := range t.Columns {
		if c.Unique {
			m[c.Name] = []string{c.Name}
		}
	}
	return m
}

func (t *Table) fmtName() string {
	if t.Schema != "" {
		return t.Schema + "." + t.Name
	}
	return t.Name
}

func (t *Table) String() string {
	return fmt.Sprintf("table %s (%d columns)", t.fmtName(), len(t.Columns))
}
