package vireo

import (
	"container/list"
	"strconv"
	"strings"
	"sync"

	"github.com/vireosql/vireo/dialect/sql"
)

// StatementCache stores generated statements keyed by their logical
// request. Generation is deterministic, so a hit returns byte-identical
// SQL to a regeneration.
type StatementCache interface {
	// Get retrieves a statement. Returns nil if the key is absent.
	Get(key string) *sql.Statement

	// Set stores a statement under the key.
	Set(key string, stmt *sql.Statement)

	// DeleteTable removes all statements generated for the table.
	DeleteTable(table string)

	// Clear removes all statements.
	Clear()
}

// cacheKey fingerprints the parts of a request that shape its SQL text.
// Requests carrying values or raw SQL are not cacheable; their binds
// differ per call.
func cacheKey(dialectName string, req *sql.Request) (string, bool) {
	if req.Kind != sql.KindSelect || req.Where != nil || len(req.Options.Replacements) > 0 {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString(dialectName)
	sb.WriteByte(':')
	sb.WriteString(req.Kind.String())
	sb.WriteByte(':')
	sb.WriteString(req.Table.Name)
	sb.WriteByte(':')
	sb.WriteString(strings.Join(req.Columns, ","))
	sb.WriteByte(':')
	for _, o := range req.Options.OrderBy {
		sb.WriteString(o.Column)
		if o.Desc {
			sb.WriteString(" desc")
		}
		sb.WriteByte(',')
	}
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(req.Options.Limit))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(req.Options.Offset))
	return sb.String(), true
}

// tableOfKey extracts the table segment of a cache key.
func tableOfKey(key string) string {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) < 4 {
		return ""
	}
	return parts[2]
}

// LRUCache is an in-memory StatementCache bounded by entry count.
type LRUCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List
}

type lruEntry struct {
	key  string
	stmt *sql.Statement
}

// NewLRUCache returns a cache holding at most max statements.
func NewLRUCache(max int) *LRUCache {
	if max <= 0 {
		max = 128
	}
	return &LRUCache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a statement and marks it most recently used.
func (c *LRUCache) Get(key string) *sql.Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).stmt
}

// Set stores a statement, evicting the least recently used entry when
// the cache is full.
func (c *LRUCache) Set(key string, stmt *sql.Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).stmt = stmt
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&lruEntry{key: key, stmt: stmt})
	if c.order.Len() > c.max {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*lruEntry).key)
	}
}

// DeleteTable removes all statements generated for the table.
func (c *LRUCache) DeleteTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if tableOfKey(key) == table {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

// Clear removes all statements.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of cached statements.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
