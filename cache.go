package restkit

import (
	"container/list"
	"hash/fnv"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCacheSize is the entry capacity used when none is configured.
const DefaultCacheSize = 512

// CacheEntry is a stored response payload with its timestamps. Entries are
// owned exclusively by the cache that holds them.
type CacheEntry struct {
	Body       []byte      `json:"body"`
	StatusCode int         `json:"status_code"`
	StatusText string      `json:"status_text"`
	Header     http.Header `json:"header"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// expired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Cache is the response cache interface. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the entry and refreshes its recency; expired entries are
	// removed as a side effect and reported as absent.
	Get(key string) (*CacheEntry, bool)
	// Set inserts or overwrites. When at capacity and the key is new, the
	// least-recently-accessed entry is evicted first.
	Set(key string, entry *CacheEntry, ttl time.Duration)
	// Has performs the same expiry check as Get without refreshing recency.
	Has(key string) bool
	// Delete removes the key, reporting whether it was present.
	Delete(key string) bool
	// Clear removes every entry.
	Clear()
	// Cleanup removes all expired entries regardless of access and returns
	// how many were removed.
	Cleanup() int
}

// MemoryCache is an in-memory Cache with strict LRU eviction by access time
// and lazy TTL expiry.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type memoryCacheItem struct {
	key   string
	entry *CacheEntry
}

// NewMemoryCache creates a MemoryCache bounded to capacity entries.
// Non-positive capacities fall back to DefaultCacheSize.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(key string) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*memoryCacheItem)
	if item.entry.expired(time.Now()) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return item.entry, true
}

// Set implements Cache.
func (c *MemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	now := time.Now()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*memoryCacheItem).entry = entry
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
	c.entries[key] = c.order.PushFront(&memoryCacheItem{key: key, entry: entry})
}

// Has implements Cache.
func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	if el.Value.(*memoryCacheItem).entry.expired(time.Now()) {
		c.removeElement(el)
		return false
	}
	return true
}

// Delete implements Cache.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Clear implements Cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Cleanup implements Cache.
func (c *MemoryCache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryCacheItem).entry.expired(now) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of live entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*memoryCacheItem).key)
}

// FingerprintFunc derives a cache/deduplication key from a request and its
// resolved absolute URL.
type FingerprintFunc func(req *Request, resolvedURL string) string

// Fingerprint is the canonical key function used for both caching and
// deduplication: FNV-64a over method, resolved URL, serialized body and
// canonicalized headers. Equal logical requests yield equal keys; header
// order is irrelevant.
func Fingerprint(req *Request, resolvedURL string) string {
	h := fnv.New64a()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(resolvedURL))
	h.Write([]byte{0})

	if body, err := SerializeBody(req.Body); err == nil && len(body) > 0 {
		h.Write(body)
	}
	h.Write([]byte{0})
	h.Write([]byte(canonicalHeaders(req.Headers)))

	return strconv.FormatUint(h.Sum64(), 16)
}

// canonicalHeaders renders headers as sorted lowercase key=value lines so
// two header sets differing only in ordering serialize identically.
func canonicalHeaders(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	lines := make([]string, 0, len(h))
	for k, vs := range h {
		lines = append(lines, strings.ToLower(k)+"="+strings.Join(vs, ","))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// responseFromCache materializes a Response envelope from a cache entry.
func responseFromCache(entry *CacheEntry, req *Request) *Response {
	body := make([]byte, len(entry.Body))
	copy(body, entry.Body)
	return &Response{
		Status:     entry.StatusCode,
		StatusText: entry.StatusText,
		Header:     entry.Header.Clone(),
		Body:       body,
		Request:    req,
	}
}

// cacheEntryFromResponse snapshots a Response for storage.
func cacheEntryFromResponse(resp *Response) *CacheEntry {
	body := make([]byte, len(resp.Body))
	copy(body, resp.Body)
	return &CacheEntry{
		Body:       body,
		StatusCode: resp.Status,
		StatusText: resp.StatusText,
		Header:     resp.Header.Clone(),
	}
}
