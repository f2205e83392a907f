package embedder

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/pkg/hash"
)

// CacheMetrics records cache activity.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	UpdateCacheSize(cacheType string, size int)
}

const cacheType = "embed"

type cacheEntry struct {
	key    string
	vector []float32
}

// Cache is an LRU of embeddings keyed by the SHA-256 of the text.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	metrics CacheMetrics
}

// NewCache creates a cache holding at most maxSize embeddings.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// SetMetrics sets the metrics recorder.
func (c *Cache) SetMetrics(metrics CacheMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// Get retrieves a copy of the cached embedding for text.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := hash.SHA256String(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(cacheType)
		}
		return nil, false
	}

	c.order.MoveToFront(el)
	if c.metrics != nil {
		c.metrics.RecordCacheHit(cacheType)
	}

	vec := el.Value.(*cacheEntry).vector
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a copy of embedding for text.
func (c *Cache) Set(text string, embedding []float32) {
	key := hash.SHA256String(text)

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).vector = vec
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vector: vec})

	if c.metrics != nil {
		c.metrics.UpdateCacheSize(cacheType, len(c.entries))
	}
}

// Size returns the number of cached embeddings.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()

	if c.metrics != nil {
		c.metrics.UpdateCacheSize(cacheType, 0)
	}
}

// CachedBackend serves repeated texts from a Cache and sends only misses to the backend.
type CachedBackend struct {
	backend Backend
	cache   *Cache
}

// NewCachedBackend wraps backend with cache.
func NewCachedBackend(backend Backend, cache *Cache) *CachedBackend {
	return &CachedBackend{backend: backend, cache: cache}
}

// Cache returns the underlying cache.
func (c *CachedBackend) Cache() *Cache {
	return c.cache
}

// EmbedBatch implements Backend.
func (c *CachedBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.backend.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, errors.EmbeddingError("backend returned wrong number of vectors",
			fmt.Errorf("expected %d, got %d", len(missTexts), len(vectors)))
	}

	for j, vec := range vectors {
		c.cache.Set(missTexts[j], vec)
		out[missIdx[j]] = vec
	}
	return out, nil
}
