// Package load reads table definitions from YAML files into the schema
// types the SQL layer consumes.
package load

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

// File is the top-level document of a schema file.
type File struct {
	Tables []TableSpec `yaml:"tables"`
}

// TableSpec is one table definition.
type TableSpec struct {
	Name        string           `yaml:"name"`
	Schema      string           `yaml:"schema,omitempty"`
	Columns     []ColumnSpec     `yaml:"columns"`
	PrimaryKey  []string         `yaml:"primary_key,omitempty"`
	Indexes     []IndexSpec      `yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKeySpec `yaml:"foreign_keys,omitempty"`
}

// ColumnSpec is one column definition.
type ColumnSpec struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Size      int64    `yaml:"size,omitempty"`
	Enums     []string `yaml:"enums,omitempty"`
	Precision int      `yaml:"precision,omitempty"`
	Scale     int      `yaml:"scale,omitempty"`
	Nullable  bool     `yaml:"nullable,omitempty"`
	Default   any      `yaml:"default,omitempty"`
	Increment bool     `yaml:"increment,omitempty"`
	Unique    bool     `yaml:"unique,omitempty"`
}

// IndexSpec is one index definition.
type IndexSpec struct {
	Name    string   `yaml:"name,omitempty"`
	Unique  bool     `yaml:"unique,omitempty"`
	Columns []string `yaml:"columns"`
}

// ForeignKeySpec is one foreign key definition.
type ForeignKeySpec struct {
	Symbol     string   `yaml:"symbol,omitempty"`
	Columns    []string `yaml:"columns"`
	RefTable   string   `yaml:"ref_table"`
	RefColumns []string `yaml:"ref_columns"`
	OnUpdate   string   `yaml:"on_update,omitempty"`
	OnDelete   string   `yaml:"on_delete,omitempty"`
}

// Read loads and validates the tables of a schema file.
func Read(path string) ([]*schema.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes schema YAML and validates every table it defines.
func Parse(data []byte) ([]*schema.Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("load: decoding schema: %w", err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("load: schema defines no tables")
	}
	tables := make([]*schema.Table, 0, len(f.Tables))
	byName := make(map[string]*schema.Table, len(f.Tables))
	for _, ts := range f.Tables {
		t, err := ts.build()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
		byName[t.Name] = t
	}
	// Foreign keys link after all tables exist, so references may point
	// forward in the file.
	for i, ts := range f.Tables {
		if err := ts.link(tables[i], byName); err != nil {
			return nil, err
		}
		if res := tables[i].Validate(); res.HasErrors() {
			return nil, fmt.Errorf("load: table %q: %s", tables[i].Name, res.String())
		}
	}
	return tables, nil
}

func (ts TableSpec) build() (*schema.Table, error) {
	t := schema.NewTable(ts.Name)
	t.Schema = ts.Schema
	for _, cs := range ts.Columns {
		typ := field.FromName(cs.Type)
		if !typ.Valid() {
			return nil, fmt.Errorf("load: table %q column %q: unknown type %q", ts.Name, cs.Name, cs.Type)
		}
		t.AddColumn(&schema.Column{
			Name:      cs.Name,
			Type:      typ,
			Size:      cs.Size,
			Enums:     cs.Enums,
			Precision: cs.Precision,
			Scale:     cs.Scale,
			Nullable:  cs.Nullable,
			Default:   cs.Default,
			Increment: cs.Increment,
			Unique:    cs.Unique,
		})
	}
	pk := make([]*schema.Column, 0, len(ts.PrimaryKey))
	for _, name := range ts.PrimaryKey {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("load: table %q: unknown primary key column %q", ts.Name, name)
		}
		pk = append(pk, c)
	}
	t.SetPrimaryKey(pk...)
	for _, is := range ts.Indexes {
		cols, err := resolveColumns(t, is.Columns)
		if err != nil {
			return nil, fmt.Errorf("load: table %q index %q: %w", ts.Name, is.Name, err)
		}
		t.AddIndex(&schema.Index{Name: is.Name, Unique: is.Unique, Columns: cols})
	}
	return t, nil
}

// link resolves the table's foreign keys against the full table set.
func (ts TableSpec) link(t *schema.Table, byName map[string]*schema.Table) error {
	for _, fs := range ts.ForeignKeys {
		cols, err := resolveColumns(t, fs.Columns)
		if err != nil {
			return fmt.Errorf("load: table %q foreign key %q: %w", ts.Name, fs.Symbol, err)
		}
		ref, ok := byName[fs.RefTable]
		if !ok {
			return fmt.Errorf("load: table %q foreign key %q: unknown table %q", ts.Name, fs.Symbol, fs.RefTable)
		}
		refCols, err := resolveColumns(ref, fs.RefColumns)
		if err != nil {
			return fmt.Errorf("load: table %q foreign key %q: %w", ts.Name, fs.Symbol, err)
		}
		t.AddForeignKey(&schema.ForeignKey{
			Symbol:     fs.Symbol,
			Columns:    cols,
			RefTable:   ref,
			RefColumns: refCols,
			OnUpdate:   schema.ReferenceAction(fs.OnUpdate),
			OnDelete:   schema.ReferenceAction(fs.OnDelete),
		})
	}
	return nil
}

func resolveColumns(t *schema.Table, names []string) ([]*schema.Column, error) {
	cols := make([]*schema.Column, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		cols = append(cols, c)
	}
	return cols, nil
}
