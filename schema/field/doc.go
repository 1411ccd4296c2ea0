// Package field defines the abstract column type enum shared by the
// schema and dialect layers. Each dialect maps these types onto its
// native SQL types and parses raw driver values back through them.
//
//	field.TypeString   // varchar(255), varchar(n) with an explicit size
//	field.TypeTime     // datetime / timestamp with time zone / datetime2
//	field.TypeJSON     // json, or jsonb on PostgreSQL via TypeJSONB
//
// Types carry behavior flags used across the generators: Numeric,
// Textual, and NoDefault (types too large to carry a DEFAULT clause).
package field
