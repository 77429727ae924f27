// Package kernel loads and compiles the WGSL compute kernels used by the
// GPU pipelines.
package kernel

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/naga"
)

// ErrEmptySource is returned when a kernel source is empty.
var ErrEmptySource = errors.New("kernel: empty source")

// Load returns the source of the kernel name. It is looked up in fsys
// first, when fsys is not nil, and then on disk.
func Load(name string, fsys fs.FS) (string, error) {
	if name == "" {
		return "", ErrEmptySource
	}
	if fsys != nil {
		if b, err := fs.ReadFile(fsys, filepath.ToSlash(name)); err == nil {
			return string(b), nil
		}
	}
	b, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		return "", fmt.Errorf("kernel: read %s: %w", name, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptySource, name)
	}
	return string(b), nil
}

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	if wgsl == "" {
		return nil, ErrEmptySource
	}
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("kernel: compile: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// DefaultCacheLimit is the soft limit of a Cache with Limit 0.
const DefaultCacheLimit = 32

// Cache holds compiled kernels keyed by a digest of their source.
// When it grows past its soft limit the least recently used quarter is
// evicted. The zero value is ready to use.
type Cache struct {
	// Limit is the soft limit on cached kernels; 0 selects DefaultCacheLimit.
	Limit int

	mu      sync.Mutex
	entries map[uint64]*cacheEntry
	tick    int64 // monotonic access counter
	hits    int
}

type cacheEntry struct {
	words []uint32
	atime int64
}

// Compile returns the SPIR-V for wgsl, compiling it unless a previous
// result is cached. rebuild forces a fresh compile and replaces the entry.
func (c *Cache) Compile(wgsl string, rebuild bool) ([]uint32, error) {
	key := xxhash.Sum64String(wgsl)

	c.mu.Lock()
	if !rebuild {
		if e, ok := c.entries[key]; ok {
			c.hits++
			c.tick++
			e.atime = c.tick
			c.mu.Unlock()
			return e.words, nil
		}
	}
	c.mu.Unlock()

	words, err := CompileSPIRV(wgsl)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[uint64]*cacheEntry)
	}
	c.tick++
	c.entries[key] = &cacheEntry{words: words, atime: c.tick}
	if len(c.entries) > c.limit() {
		c.evictOldest()
	}
	return words, nil
}

func (c *Cache) limit() int {
	if c.Limit > 0 {
		return c.Limit
	}
	return DefaultCacheLimit
}

// evictOldest drops the least recently used entries until the cache is at
// three quarters of its limit. Caller must hold c.mu.
func (c *Cache) evictOldest() {
	target := max(c.limit()*3/4, 1)
	toEvict := len(c.entries) - target
	if toEvict <= 0 {
		return
	}

	type entry struct {
		key   uint64
		atime int64
	}
	entries := make([]entry, 0, len(c.entries))
	for key, e := range c.entries {
		entries = append(entries, entry{key, e.atime})
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.atime, b.atime) })
	for _, e := range entries[:toEvict] {
		delete(c.entries, e.key)
	}
}

// Hits returns how many Compile calls were served from the cache.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Len returns the number of cached kernels.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
