// internal/retrieve/cache.go - Overpass response cache
package retrieve

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

// Cache stores raw Overpass responses keyed by a hash of the query text. It
// keeps recent responses in memory and, when dir is set, every response on disk
// so that re-running a batch does not hit the API again.
type Cache struct {
	fs  afero.Fs
	dir string
	mem *lru.Cache[string, []byte]
}

// NewCache creates a cache. A non-positive entries value disables the memory
// tier; an empty dir disables the disk tier.
func NewCache(fs afero.Fs, dir string, entries int) (*Cache, error) {
	c := &Cache{fs: fs, dir: dir}

	if entries > 0 {
		mem, err := lru.New[string, []byte](entries)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		c.mem = mem
	}

	if dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	return c, nil
}

// Key returns the stable cache key for a query
func (c *Cache) Key(query string) string {
	return strconv.FormatUint(xxhash.Sum64String(query), 16)
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".osm")
}

// Get returns a cached response
func (c *Cache) Get(query string) ([]byte, bool) {
	key := c.Key(query)

	if c.mem != nil {
		if data, ok := c.mem.Get(key); ok {
			return data, true
		}
	}

	if c.dir == "" {
		return nil, false
	}
	data, err := afero.ReadFile(c.fs, c.path(key))
	if err != nil {
		return nil, false
	}
	if c.mem != nil {
		c.mem.Add(key, data)
	}
	return data, true
}

// Put stores a response in both tiers
func (c *Cache) Put(query string, data []byte) error {
	key := c.Key(query)

	if c.mem != nil {
		c.mem.Add(key, data)
	}

	if c.dir == "" {
		return nil
	}
	tmp := c.path(key) + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := c.fs.Rename(tmp, c.path(key)); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Len returns the number of responses held in memory
func (c *Cache) Len() int {
	if c.mem == nil {
		return 0
	}
	return c.mem.Len()
}

// Purge drops the memory tier and, if purgeDisk is set, every file on disk
func (c *Cache) Purge(purgeDisk bool) error {
	if c.mem != nil {
		c.mem.Purge()
	}
	if !purgeDisk || c.dir == "" {
		return nil
	}
	if err := c.fs.RemoveAll(c.dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return c.fs.MkdirAll(c.dir, 0o755)
}
