package huffman

import (
	"encoding/binary"
	"maps"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of codebooks a cache keeps when created
// with a non-positive size.
const DefaultCacheSize = 128

// CodebookCache keeps recently built codebooks keyed by their frequency
// table, so inputs with identical byte histograms skip tree construction.
// It is safe for concurrent use.
type CodebookCache struct {
	entries *lru.Cache[uint64, cacheEntry]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

type cacheEntry struct {
	freq     [256]uint64
	codebook Codebook
}

// NewCodebookCache creates a cache holding up to size codebooks.
func NewCodebookCache(size int) (*CodebookCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[uint64, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CodebookCache{entries: entries}, nil
}

func histogramKey(freq *[256]uint64) uint64 {
	var buf [256 * 8]byte
	for i, count := range freq {
		binary.LittleEndian.PutUint64(buf[i*8:], count)
	}
	return xxhash.Sum64(buf[:])
}

// Codebook returns the codebook for freq, building and storing it on a miss.
// The returned map is a copy and may be modified by the caller.
func (c *CodebookCache) Codebook(freq *[256]uint64) Codebook {
	key := histogramKey(freq)
	if e, ok := c.entries.Get(key); ok && e.freq == *freq {
		c.hits.Add(1)
		return maps.Clone(e.codebook)
	}
	c.misses.Add(1)

	cb := BuildTree(freq).Codebook()
	c.entries.Add(key, cacheEntry{freq: *freq, codebook: cb})
	log.Debugf("codebook cache miss, stored %d-symbol codebook (%d cached)", len(cb), c.entries.Len())
	return maps.Clone(cb)
}

// Len reports the number of cached codebooks.
func (c *CodebookCache) Len() int {
	return c.entries.Len()
}

// Stats reports cache hits and misses.
func (c *CodebookCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
