// Package cache implements the tiered cache that shields the object store
// from repeated requests: a bounded in-memory metadata tier and an
// unbounded on-disk content tier.
//
// Neither tier performs negative caching. A "not found" answer from the
// store is never recorded; every miss re-queries.
package cache

import (
	"fmt"

	"github.com/cosfs/cosfs/pkg/types"
)

// Config configures both cache tiers.
type Config struct {
	// Directory is the on-disk content cache root.
	Directory string `yaml:"directory"`

	// MetadataEntries bounds the in-memory metadata tier. Must be
	// positive.
	MetadataEntries int `yaml:"metadata_entries"`

	// Compression gzips content files on disk. Reads detect compression
	// from the file itself, so toggling the option between runs is safe.
	Compression bool `yaml:"compression"`
}

// DefaultMetadataEntries bounds the metadata tier when the configuration
// does not say otherwise.
const DefaultMetadataEntries = 1000

// Cache is the two-tier cache. All methods are safe for concurrent use by
// multiple handler threads.
type Cache struct {
	metadata *metadataLRU
	content  *contentStore
}

// New creates both tiers. The content directory is created if absent. A
// non-positive metadata capacity is a construction error.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache config is required")
	}
	if cfg.MetadataEntries <= 0 {
		return nil, fmt.Errorf("metadata cache capacity must be positive, got %d", cfg.MetadataEntries)
	}
	if cfg.Directory == "" {
		return nil, fmt.Errorf("cache directory is required")
	}

	content, err := newContentStore(cfg.Directory, cfg.Compression)
	if err != nil {
		return nil, err
	}

	return &Cache{
		metadata: newMetadataLRU(cfg.MetadataEntries),
		content:  content,
	}, nil
}

// GetMetadata returns cached metadata for key, marking it recently used.
func (c *Cache) GetMetadata(key string) (*types.ObjectMeta, bool) {
	return c.metadata.get(key)
}

// PutMetadata records metadata for key in the bounded tier.
func (c *Cache) PutMetadata(key string, meta *types.ObjectMeta) {
	c.metadata.put(key, meta)
}

// IsContentCached reports whether the full object bytes for key are on
// disk.
func (c *Cache) IsContentCached(key string) bool {
	return c.content.isCached(key)
}

// GetContent returns the cached object bytes for key. It fails with a
// not-found error if the key has no content file.
func (c *Cache) GetContent(key string) ([]byte, error) {
	return c.content.get(key)
}

// PutContent stores the full object bytes for key on disk.
func (c *Cache) PutContent(key string, content []byte) error {
	return c.content.put(key, content)
}

// Clear empties the metadata tier and recreates the content directory
// empty. Used at filesystem teardown.
func (c *Cache) Clear() error {
	c.metadata.clear()
	return c.content.clear()
}

// Stats returns combined statistics for both tiers.
func (c *Cache) Stats() types.CacheStats {
	hits, misses, evictions := c.metadata.counters()
	return types.CacheStats{
		MetadataHits:    hits,
		MetadataMisses:  misses,
		MetadataEntries: c.metadata.len(),
		Evictions:       evictions,
		ContentFiles:    c.content.fileCount(),
	}
}
