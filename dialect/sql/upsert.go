package sql

import "github.com/vireosql/vireo/schema"

// upsertStmt synthesizes an insert-or-update statement in the form the
// grammar supports. MySQL gets ON DUPLICATE KEY UPDATE, Postgres and
// SQLite get ON CONFLICT, and SQL Server gets a full MERGE.
func (gen *Generator) upsertStmt(req *Request) (*Statement, error) {
	if len(req.Values) == 0 {
		return nil, NewRequestError("upsert request without values")
	}
	switch gen.grammar.Upsert {
	case UpsertOnDuplicateKey:
		return gen.upsertDuplicateKey(req)
	case UpsertOnConflict:
		return gen.upsertOnConflict(req)
	default:
		return gen.upsertMerge(req)
	}
}

// upsertColumns splits the ordered value columns into the insert list
// and the update list. Identity columns leave the insert list when the
// grammar forbids explicit identity values, and leave the update list
// unless the grammar allows reassigning them.
func (gen *Generator) upsertColumns(t *schema.Table, values map[string]any) (insert, update []string) {
	g := gen.grammar
	cols := orderedColumns(t, values)
	identity, hasIdentity := t.AutoIncrementPK()
	insert = cols
	if hasIdentity && !g.IdentityInsert {
		insert = excludeColumn(append([]string(nil), cols...), identity.Name)
	}
	for _, c := range cols {
		if isKeyColumn(t, c) && !g.IdentityUpdate {
			continue
		}
		update = append(update, c)
	}
	return insert, update
}

// isKeyColumn reports whether the column belongs to the primary key.
func isKeyColumn(t *schema.Table, name string) bool {
	for _, pk := range t.PrimaryKey {
		if pk.Name == name {
			return true
		}
	}
	return false
}

// writeUpsertValue emits the value either as a bind placeholder or,
// when the request options force statement batching, as an inline
// literal typed by the table column.
func (gen *Generator) writeUpsertValue(b *Builder, req *Request, col string) {
	if req.Options.SearchPath != "" || req.Options.ExceptionBlock {
		b.Literal(req.Values[col], req.Table.ColumnType(col))
		return
	}
	b.Arg(req.Values[col])
}

func (gen *Generator) upsertDuplicateKey(req *Request) (*Statement, error) {
	t := req.Table
	insert, update := gen.upsertColumns(t, req.Values)
	if len(insert) == 0 {
		return nil, NewRequestError("upsert request with no insertable columns")
	}
	b := NewBuilder(gen.grammar)
	b.WriteString("INSERT INTO ")
	gen.writeTable(b, t)
	b.WriteString(" (").IdentComma(insert...).WriteString(") VALUES (")
	for i, c := range insert {
		if i > 0 {
			b.WriteString(", ")
		}
		gen.writeUpsertValue(b, req, c)
	}
	b.WriteString(") ON DUPLICATE KEY UPDATE ")
	if len(update) == 0 {
		// MySQL requires at least one assignment. A self-assignment of
		// the first key column keeps the statement a no-op on conflict.
		key := insert[0]
		if len(t.PrimaryKey) > 0 {
			key = t.PrimaryKey[0].Name
		}
		b.Ident(key).WriteString(" = ").Ident(key)
	}
	for i, c := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = VALUES(").Ident(c).WriteString(")")
	}
	return b.Statement(KindUpsert)
}

// conflictTarget returns the columns the conflict clause keys on: the
// primary key when one exists, otherwise the columns of the first
// unique index.
func conflictTarget(t *schema.Table) ([]string, error) {
	if len(t.PrimaryKey) > 0 {
		return t.PrimaryKeyNames(), nil
	}
	for _, idx := range t.Indexes {
		if idx.Unique {
			return idx.ColumnNames(), nil
		}
	}
	return nil, NewRequestError("table %q has no key to upsert on", t.Name)
}

func (gen *Generator) upsertOnConflict(req *Request) (*Statement, error) {
	t := req.Table
	target, err := conflictTarget(t)
	if err != nil {
		return nil, err
	}
	insert, update := gen.upsertColumns(t, req.Values)
	if len(insert) == 0 {
		return nil, NewRequestError("upsert request with no insertable columns")
	}
	b := NewBuilder(gen.grammar)
	b.WriteString("INSERT INTO ")
	gen.writeTable(b, t)
	b.WriteString(" (").IdentComma(insert...).WriteString(") VALUES (")
	for i, c := range insert {
		if i > 0 {
			b.WriteString(", ")
		}
		gen.writeUpsertValue(b, req, c)
	}
	b.WriteString(") ON CONFLICT (").IdentComma(target...).WriteByte(')')
	if len(update) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET ")
		for i, c := range update {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(c).WriteString(" = ").WriteString("excluded.").Ident(c)
		}
	}
	if len(req.Options.Returning) > 0 && gen.grammar.Returning {
		b.WriteString(" RETURNING ").IdentComma(req.Options.Returning...)
	}
	return b.Statement(KindUpsert)
}

// upsertMerge synthesizes the SQL Server form in three stages: a
// candidate row source, a matched update, and a not-matched insert.
// When the identity column carries no value, the source still selects
// NULL under its name so the match condition can reference it.
func (gen *Generator) upsertMerge(req *Request) (*Statement, error) {
	t := req.Table
	target, err := conflictTarget(t)
	if err != nil {
		return nil, err
	}
	insert, update := gen.upsertColumns(t, req.Values)
	if len(insert) == 0 {
		return nil, NewRequestError("upsert request with no insertable columns")
	}
	identity, hasIdentity := t.AutoIncrementPK()
	b := NewBuilder(gen.grammar)
	b.WriteString("MERGE INTO ")
	gen.writeTable(b, t)
	b.WriteString(" WITH (HOLDLOCK) AS ").Ident("t")

	// Stage one: candidate source. The identity column appears first as
	// NULL when no value was supplied for it.
	b.WriteString(" USING (SELECT ")
	first := true
	if hasIdentity {
		if _, ok := req.Values[identity.Name]; !ok {
			b.WriteString("NULL AS ").Ident(identity.Name)
			first = false
		}
	}
	for _, c := range orderedColumns(t, req.Values) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		gen.writeUpsertValue(b, req, c)
		b.WriteString(" AS ").Ident(c)
	}
	b.WriteString(") AS ").Ident("s")

	b.WriteString(" ON ")
	for i, c := range target {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.Ident("t").WriteByte('.').Ident(c).WriteString(" = ").Ident("s").WriteByte('.').Ident(c)
	}

	// Stage two: matched rows update every non-identity column.
	if len(update) > 0 {
		b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
		for i, c := range update {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident("t").WriteByte('.').Ident(c).WriteString(" = ").Ident("s").WriteByte('.').Ident(c)
		}
	}

	// Stage three: unmatched rows insert from the source.
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (").IdentComma(insert...).WriteString(") VALUES (")
	for i, c := range insert {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident("s").WriteByte('.').Ident(c)
	}
	b.WriteString(");")
	return b.Statement(KindUpsert)
}
