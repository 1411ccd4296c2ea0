package sql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireosql/vireo/dialect"
	"github.com/vireosql/vireo/schema/field"
)

func TestGrammarFor(t *testing.T) {
	g, err := GrammarFor(dialect.MySQL)
	require.NoError(t, err)
	assert.Equal(t, dialect.MySQL, g.Name)

	// Instrumented driver names resolve to their base grammar.
	g, err = GrammarFor("mysql+stats")
	require.NoError(t, err)
	assert.Equal(t, dialect.MySQL, g.Name)

	_, err = GrammarFor("oracle")
	assert.Error(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		grammar *Grammar
		name    string
		want    string
	}{
		{MySQL, "users", "`users`"},
		{Postgres, "users", `"users"`},
		{SQLServer, "users", `"users"`},
		{MySQL, "db.users", "`db`.`users`"},
		{MySQL, "weird`name", "`weird``name`"},
		{Postgres, `weird"name`, `"weird""name"`},
	}
	for _, tt := range tests {
		got, err := tt.grammar.QuoteIdentifier(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestQuoteIdentifierTerminator(t *testing.T) {
	for _, g := range []*Grammar{MySQL, Postgres, SQLite, SQLServer} {
		_, err := g.QuoteIdentifier("users; DROP TABLE users")
		require.Error(t, err)
		assert.True(t, IsRequestError(err))
	}
}

func TestEscapeValue(t *testing.T) {
	t.Run("strings", func(t *testing.T) {
		got, err := MySQL.EscapeValue(`O'Brien \ co`, field.TypeString)
		require.NoError(t, err)
		assert.Equal(t, `'O''Brien \\ co'`, got)

		// Postgres treats backslashes literally in standard strings.
		got, err = Postgres.EscapeValue(`O'Brien \ co`, field.TypeString)
		require.NoError(t, err)
		assert.Equal(t, `'O''Brien \ co'`, got)
	})

	t.Run("bools", func(t *testing.T) {
		for g, want := range map[*Grammar]string{MySQL: "1", Postgres: "true", SQLServer: "1"} {
			got, err := g.EscapeValue(true, field.TypeBool)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		got, err := SQLServer.EscapeValue(false, field.TypeBool)
		require.NoError(t, err)
		assert.Equal(t, "0", got)
	})

	t.Run("time", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 10, 30, 0, 120000, time.UTC)
		got, err := MySQL.EscapeValue(ts, field.TypeTime)
		require.NoError(t, err)
		assert.Equal(t, "'2024-03-01 10:30:00.000120'", got)
	})

	t.Run("bytes", func(t *testing.T) {
		b := []byte{0xde, 0xad}
		got, err := Postgres.EscapeValue(b, field.TypeBytes)
		require.NoError(t, err)
		assert.Equal(t, `'\xdead'`, got)

		got, err = SQLServer.EscapeValue(b, field.TypeBytes)
		require.NoError(t, err)
		assert.Equal(t, "0xdead", got)

		got, err = MySQL.EscapeValue(b, field.TypeBytes)
		require.NoError(t, err)
		assert.Equal(t, "X'dead'", got)
	})

	t.Run("nil", func(t *testing.T) {
		got, err := SQLite.EscapeValue(nil, field.TypeString)
		require.NoError(t, err)
		assert.Equal(t, "NULL", got)
	})

	t.Run("structured json rejected inline", func(t *testing.T) {
		_, err := MySQL.EscapeValue(map[string]any{"a": 1}, field.TypeJSON)
		require.Error(t, err)
		assert.True(t, IsRequestError(err))
		assert.Contains(t, err.Error(), "bind value")
	})
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", MySQL.placeholder(3))
	assert.Equal(t, "$3", Postgres.placeholder(3))
	assert.Equal(t, "@p1", SQLServer.placeholder(1))
}
