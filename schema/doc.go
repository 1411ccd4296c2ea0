// Package schema describes tables the way the SQL layer consumes them:
// columns with abstract types, the primary key, foreign keys, and
// indexes. Definitions are plain values built in code or decoded from a
// configuration file; the dialect packages translate them into concrete
// DDL and use them to resolve constraint violations back to fields.
//
//	users := schema.NewTable("users").
//	    AddColumn(&schema.Column{Name: "id", Type: field.TypeInt64, Increment: true}).
//	    AddColumn(&schema.Column{Name: "name", Type: field.TypeString})
//	users.SetPrimaryKey(users.Columns[0])
//
// Validate reports structural problems (unknown key columns, duplicate
// names, defaults on unbounded types) before any SQL is generated.
package schema
