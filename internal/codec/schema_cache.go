package codec

import (
	"context"
	"fmt"

	"github.com/leandrodaf/perfdiff/internal/cache"
)

// FetchFunc retrieves the raw schema descriptor, typically from the scoring service.
type FetchFunc func(ctx context.Context) ([]byte, error)

// SchemaCache is the load-once cache for the response schema. It implements SchemaStore.
type SchemaCache struct {
	once *cache.Once[*Schema]
}

// NewSchemaCache creates a cache that loads and validates descriptors from fetch.
func NewSchemaCache(fetch FetchFunc) *SchemaCache {
	return &SchemaCache{
		once: cache.NewOnce(func(ctx context.Context) (*Schema, error) {
			raw, err := fetch(ctx)
			if err != nil {
				return nil, fmt.Errorf("fetch schema: %w", err)
			}
			return ParseSchema(raw)
		}),
	}
}

// Current returns the loaded schema or nil.
func (c *SchemaCache) Current() *Schema {
	s, _ := c.once.Peek()
	return s
}

// Load fetches the schema if it is not loaded yet.
func (c *SchemaCache) Load(ctx context.Context) (*Schema, error) {
	return c.once.Get(ctx)
}

// Reload drops the cached schema and fetches it again.
func (c *SchemaCache) Reload(ctx context.Context) (*Schema, error) {
	c.once.Invalidate()
	return c.once.Get(ctx)
}

// Invalidate drops the cached schema after a decode error.
func (c *SchemaCache) Invalidate() {
	c.once.Invalidate()
}

// Clear drops the cached schema on navigation.
func (c *SchemaCache) Clear() {
	c.once.Invalidate()
}
