package schema

import (
	"fmt"
	"strings"
)

// ValidationError represents a table definition error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of validating a table definition.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("OK")
	}
	return sb.String()
}

// Validate checks a table definition for problems the generators cannot
// repair, and flags the ones they silently correct. A default value on a
// large-object column is a warning because the generator suppresses it;
// an unknown primary-key or foreign-key column is an error.
func (t *Table) Validate() *ValidationResult {
	r := &ValidationResult{}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Message: "column with empty name"})
			continue
		}
		if _, ok := seen[c.Name]; ok {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: "duplicate column name"})
		}
		seen[c.Name] = struct{}{}
		if !c.Type.Valid() {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: "invalid column type"})
		}
		if c.Default != nil && c.Type.NoDefault() {
			r.Warnings = append(r.Warnings, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: fmt.Sprintf("default value on %s column is not portable and will be dropped", c.Type),
			})
		}
		if c.Type.String() == "enum" && len(c.Enums) == 0 {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: "enum column without permitted values"})
		}
	}
	for _, pk := range t.PrimaryKey {
		if _, ok := seen[pk.Name]; !ok {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: pk.Name, Message: "primary-key column not defined in table"})
		}
	}
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key %q: column count mismatch", fk.Symbol)})
		}
		if fk.RefTable == nil {
			r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Message: fmt.Sprintf("foreign key %q: missing referenced table", fk.Symbol)})
		}
	}
	for _, idx := range t.Indexes {
		for _, c := range idx.Columns {
			if _, ok := seen[c.Name]; !ok {
				r.Errors = append(r.Errors, &ValidationError{Table: t.Name, Column: c.Name, Message: fmt.Sprintf("index %q references unknown column", idx.Name)})
			}
		}
	}
	return r
}
