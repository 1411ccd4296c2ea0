package vireo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vireosql/vireo/dialect/sql"
	"github.com/vireosql/vireo/schema"
	"github.com/vireosql/vireo/schema/field"
)

func cacheTable(name string) *schema.Table {
	t := schema.NewTable(name)
	t.AddColumn(&schema.Column{Name: "id", Type: field.TypeInt64})
	return t
}

func TestCacheKey(t *testing.T) {
	tbl := cacheTable("users")

	t.Run("cacheable select", func(t *testing.T) {
		key, ok := cacheKey("mysql", &sql.Request{
			Kind: sql.KindSelect, Table: tbl,
			Columns: []string{"id"},
			Options: sql.Options{Limit: 10, OrderBy: []sql.Order{{Column: "id", Desc: true}}},
		})
		require.True(t, ok)
		assert.Equal(t, "mysql:select:users:id:id desc,:10:0", key)
		assert.Equal(t, "users", tableOfKey(key))
	})

	t.Run("predicates are not cacheable", func(t *testing.T) {
		_, ok := cacheKey("mysql", &sql.Request{
			Kind: sql.KindSelect, Table: tbl, Where: sql.EQ("id", 1),
		})
		assert.False(t, ok)
	})

	t.Run("writes are not cacheable", func(t *testing.T) {
		_, ok := cacheKey("mysql", &sql.Request{
			Kind: sql.KindInsert, Table: tbl, Values: map[string]any{"id": 1},
		})
		assert.False(t, ok)
	})

	t.Run("replacements are not cacheable", func(t *testing.T) {
		_, ok := cacheKey("mysql", &sql.Request{
			Kind: sql.KindSelect, Table: tbl,
			Options: sql.Options{Replacements: map[string]any{"a": 1}},
		})
		assert.False(t, ok)
	})
}

func TestLRUCache(t *testing.T) {
	stmt := func(text string) *sql.Statement { return &sql.Statement{Text: text} }

	t.Run("get and set", func(t *testing.T) {
		c := NewLRUCache(4)
		assert.Nil(t, c.Get("missing"))
		c.Set("a", stmt("A"))
		require.NotNil(t, c.Get("a"))
		assert.Equal(t, "A", c.Get("a").Text)

		// Overwrites replace in place.
		c.Set("a", stmt("A2"))
		assert.Equal(t, "A2", c.Get("a").Text)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewLRUCache(2)
		c.Set("a", stmt("A"))
		c.Set("b", stmt("B"))
		// Touch a so b becomes the eviction candidate.
		c.Get("a")
		c.Set("c", stmt("C"))

		assert.Equal(t, 2, c.Len())
		assert.NotNil(t, c.Get("a"))
		assert.Nil(t, c.Get("b"))
		assert.NotNil(t, c.Get("c"))
	})

	t.Run("delete table", func(t *testing.T) {
		c := NewLRUCache(8)
		c.Set("mysql:select:users:::-:1:0", stmt("U"))
		c.Set("mysql:select:users:id::-:2:0", stmt("U2"))
		c.Set("mysql:select:pets:::-:1:0", stmt("P"))

		c.DeleteTable("users")
		assert.Equal(t, 1, c.Len())
		assert.NotNil(t, c.Get("mysql:select:pets:::-:1:0"))
	})

	t.Run("clear", func(t *testing.T) {
		c := NewLRUCache(8)
		c.Set("a", stmt("A"))
		c.Clear()
		assert.Equal(t, 0, c.Len())
		assert.Nil(t, c.Get("a"))
	})

	t.Run("zero size falls back to default", func(t *testing.T) {
		c := NewLRUCache(0)
		c.Set("a", stmt("A"))
		assert.NotNil(t, c.Get("a"))
	})
}
