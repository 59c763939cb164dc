package extractor

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kozaktomas/face-id/internal/identity"
)

// Cache holds recent extractions keyed by the SHA-256 of the upload.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	entries *lru.Cache[[32]byte, identity.Embedding]
}

// NewCache returns a cache with room for size entries, or nil when size is 0.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[[32]byte, identity.Embedding](size)
	if err != nil {
		return nil, fmt.Errorf("creating extraction cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(key [32]byte) (identity.Embedding, bool) {
	if c == nil {
		return nil, false
	}
	emb, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return emb.Clone(), true
}

func (c *Cache) Add(key [32]byte, emb identity.Embedding) {
	if c == nil {
		return
	}
	c.entries.Add(key, emb.Clone())
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
