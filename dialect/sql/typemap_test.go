package sql

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		grammar *Grammar
		col     *schema.Column
		want    string
	}{
		{MySQL, &schema.Column{Name: "active", Type: field.TypeBool}, "bool"},
		{Postgres, &schema.Column{Name: "active", Type: field.TypeBool}, "boolean"},
		{SQLServer, &schema.Column{Name: "active", Type: field.TypeBool}, "bit"},
		{MySQL, &schema.Column{Name: "age", Type: field.TypeInt8}, "tinyint"},
		{Postgres, &schema.Column{Name: "age", Type: field.TypeInt8}, "smallint"},
		{SQLite, &schema.Column{Name: "id", Type: field.TypeInt64}, "integer"},
		{MySQL, &schema.Column{Name: "id", Type: field.TypeInt64}, "bigint"},
		{MySQL, &schema.Column{Name: "count", Type: field.TypeUint32}, "int unsigned"},
		{Postgres, &schema.Column{Name: "count", Type: field.TypeUint32}, "bigint"},
		{Postgres, &schema.Column{Name: "count", Type: field.TypeUint64}, "numeric(20)"},
		{SQLite, &schema.Column{Name: "count", Type: field.TypeUint64}, "integer"},
		{Postgres, &schema.Column{Name: "ratio", Type: field.TypeFloat64}, "double precision"},
		{MySQL, &schema.Column{Name: "ratio", Type: field.TypeFloat64}, "double"},
		{MySQL, &schema.Column{Name: "price", Type: field.TypeDecimal}, "decimal(10,2)"},
		{MySQL, &schema.Column{Name: "price", Type: field.TypeDecimal, Precision: 8, Scale: 3}, "decimal(8,3)"},
		{MySQL, &schema.Column{Name: "name", Type: field.TypeString}, "varchar(255)"},
		{MySQL, &schema.Column{Name: "name", Type: field.TypeString, Size: 64}, "varchar(64)"},
		{SQLServer, &schema.Column{Name: "bio", Type: field.TypeText}, "varchar(max)"},
		{Postgres, &schema.Column{Name: "bio", Type: field.TypeText}, "text"},
		{MySQL, &schema.Column{Name: "created", Type: field.TypeTime}, "datetime(6)"},
		{Postgres, &schema.Column{Name: "created", Type: field.TypeTime}, "timestamptz"},
		{SQLServer, &schema.Column{Name: "created", Type: field.TypeTime}, "datetime2"},
		{SQLServer, &schema.Column{Name: "meta", Type: field.TypeJSON}, "nvarchar(max)"},
		{MySQL, &schema.Column{Name: "meta", Type: field.TypeJSON}, "json"},
		{Postgres, &schema.Column{Name: "meta", Type: field.TypeJSONB}, "jsonb"},
		{Postgres, &schema.Column{Name: "uid", Type: field.TypeUUID}, "uuid"},
		{SQLServer, &schema.Column{Name: "uid", Type: field.TypeUUID}, "uniqueidentifier"},
		{MySQL, &schema.Column{Name: "uid", Type: field.TypeUUID}, "char(36)"},
		{Postgres, &schema.Column{Name: "data", Type: field.TypeBytes}, "bytea"},
		{SQLServer, &schema.Column{Name: "data", Type: field.TypeBytes}, "varbinary(max)"},
		{SQLite, &schema.Column{Name: "data", Type: field.TypeBytes}, "blob"},
	}
	for _, tt := range tests {
		got, err := tt.grammar.ColumnType(tt.col)
		require.NoErrorf(t, err, "%s: %s", tt.grammar.Name, tt.col.Name)
		assert.Equalf(t, tt.want, got, "%s: %s", tt.grammar.Name, tt.col.Name)
	}
}

func TestColumnTypeEnum(t *testing.T) {
	c := &schema.Column{Name: "state", Type: field.TypeEnum, Enums: []string{"on", "off", "paused"}}

	got, err := MySQL.ColumnType(c)
	require.NoError(t, err)
	assert.Equal(t, "enum('on', 'off', 'paused')", got)

	// Without a native enum type, the column falls back to a character
	// column wide enough for the longest value.
	got, err = Postgres.ColumnType(c)
	require.NoError(t, err)
	assert.Equal(t, "char(6)", got)

	_, err = MySQL.ColumnType(&schema.Column{Name: "state", Type: field.TypeEnum})
	assert.Error(t, err)
}

func TestColumnTypeUnsupported(t *testing.T) {
	_, err := MySQL.ColumnType(&schema.Column{Name: "meta", Type: field.TypeJSONB})
	require.Error(t, err)
	var ute *UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "mysql", ute.Dialect)

	_, err = Postgres.ColumnType(&schema.Column{Name: "loc", Type: field.TypeGeometry})
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	g := MySQL

	t.Run("bool", func(t *testing.T) {
		for raw, want := range map[any]bool{int64(1): true, int64(0): false, "t": true, "false": false} {
			got, err := g.ParseValue(raw, field.TypeBool, ParseOptions{})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		got, err := g.ParseValue([]byte("1"), field.TypeBool, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})

	t.Run("int", func(t *testing.T) {
		got, err := g.ParseValue([]byte("42"), field.TypeInt, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, int64(42), got)
	})

	t.Run("decimal stays textual", func(t *testing.T) {
		got, err := g.ParseValue([]byte("12.3400"), field.TypeDecimal, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, "12.3400", got)
	})

	t.Run("time", func(t *testing.T) {
		got, err := g.ParseValue([]byte("2024-03-01 10:30:00.5"), field.TypeTime, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 500000000, time.UTC), got)

		berlin, err := time.LoadLocation("Europe/Berlin")
		require.NoError(t, err)
		got, err = g.ParseValue("2024-03-01", field.TypeDateOnly, ParseOptions{Location: berlin})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, berlin), got)

		_, err = g.ParseValue("not a time", field.TypeTime, ParseOptions{})
		assert.Error(t, err)
	})

	t.Run("json", func(t *testing.T) {
		got, err := g.ParseValue([]byte(`{"a": 1}`), field.TypeJSON, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(1)}, got)

		_, err = g.ParseValue([]byte(`{"a":`), field.TypeJSON, ParseOptions{})
		assert.Error(t, err)
	})

	t.Run("uuid", func(t *testing.T) {
		id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		got, err := g.ParseValue(id.String(), field.TypeUUID, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, id, got)

		// A 16-byte payload is the binary form, not text.
		raw := make([]byte, 16)
		copy(raw, id[:])
		got, err = g.ParseValue(raw, field.TypeUUID, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("geometry", func(t *testing.T) {
		payload := append([]byte{0, 0, 0, 0}, 0x01, 0x02, 0x03)
		got, err := g.ParseValue(payload, field.TypeGeometry, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02, 0x03}, got)

		_, err = g.ParseValue([]byte{0, 0}, field.TypeGeometry, ParseOptions{})
		assert.Error(t, err)
	})

	t.Run("nil passes through", func(t *testing.T) {
		got, err := g.ParseValue(nil, field.TypeString, ParseOptions{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
