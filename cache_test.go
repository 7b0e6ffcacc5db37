package restkit

import (
	"net/http"
	"testing"
	"time"
)

func testEntry(body string) *CacheEntry {
	return &CacheEntry{
		Body:       []byte(body),
		StatusCode: 200,
		StatusText: "OK",
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		CreatedAt:  time.Now(),
	}
}

func TestMemoryCacheGetSet(t *testing.T) {
	cache := NewMemoryCache(10)

	if _, ok := cache.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	cache.Set("a", testEntry("alpha"), time.Minute)
	entry, ok := cache.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(entry.Body) != "alpha" {
		t.Errorf("unexpected body: %s", entry.Body)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	cache := NewMemoryCache(10)
	cache.Set("a", testEntry("alpha"), 20*time.Millisecond)

	if _, ok := cache.Get("a"); !ok {
		t.Fatal("entry should be live before the TTL")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := cache.Get("a"); ok {
		t.Error("entry should have expired")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry should be dropped, len=%d", cache.Len())
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	cache := NewMemoryCache(2)
	cache.Set("a", testEntry("alpha"), time.Minute)
	cache.Set("b", testEntry("beta"), time.Minute)

	// Touch "a" so "b" becomes least recently used.
	if _, ok := cache.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	cache.Set("c", testEntry("gamma"), time.Minute)

	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("a should have survived")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("c should be present")
	}
}

func TestMemoryCacheHasDoesNotRefreshRecency(t *testing.T) {
	cache := NewMemoryCache(2)
	cache.Set("a", testEntry("alpha"), time.Minute)
	cache.Set("b", testEntry("beta"), time.Minute)

	if !cache.Has("a") {
		t.Fatal("expected Has(a)")
	}

	cache.Set("c", testEntry("gamma"), time.Minute)

	// Has must not promote "a", so "a" is still the LRU victim.
	if cache.Has("a") {
		t.Error("a should have been evicted despite the Has probe")
	}
	if !cache.Has("b") {
		t.Error("b should have survived")
	}
}

func TestMemoryCacheOverwrite(t *testing.T) {
	cache := NewMemoryCache(2)
	cache.Set("a", testEntry("v1"), time.Minute)
	cache.Set("a", testEntry("v2"), time.Minute)

	entry, ok := cache.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(entry.Body) != "v2" {
		t.Errorf("expected overwrite, got %s", entry.Body)
	}
	if cache.Len() != 1 {
		t.Errorf("overwrite must not grow the cache, len=%d", cache.Len())
	}
}

func TestMemoryCacheDeleteClear(t *testing.T) {
	cache := NewMemoryCache(10)
	cache.Set("a", testEntry("alpha"), time.Minute)
	cache.Set("b", testEntry("beta"), time.Minute)

	cache.Delete("a")
	if cache.Has("a") {
		t.Error("a should be deleted")
	}
	cache.Delete("a") // idempotent

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("clear should empty the cache, len=%d", cache.Len())
	}
}

func TestMemoryCacheCleanup(t *testing.T) {
	cache := NewMemoryCache(10)
	cache.Set("short", testEntry("x"), 10*time.Millisecond)
	cache.Set("long", testEntry("y"), time.Minute)

	time.Sleep(20 * time.Millisecond)

	if removed := cache.Cleanup(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if !cache.Has("long") {
		t.Error("live entry should survive cleanup")
	}
}

func TestFingerprintHeaderOrderInvariance(t *testing.T) {
	a := NewRequest(http.MethodGet, "/users")
	a.Headers.Set("Accept", "application/json")
	a.Headers.Set("X-Tenant", "acme")

	b := NewRequest(http.MethodGet, "/users")
	b.Headers.Set("X-Tenant", "acme")
	b.Headers.Set("accept", "application/json")

	url := "https://api.example.com/users"
	if Fingerprint(a, url) != Fingerprint(b, url) {
		t.Error("header order and case must not affect the fingerprint")
	}
}

func TestFingerprintDivergence(t *testing.T) {
	url := "https://api.example.com/users"
	base := NewRequest(http.MethodGet, "/users")

	byMethod := NewRequest(http.MethodPost, "/users")
	if Fingerprint(base, url) == Fingerprint(byMethod, url) {
		t.Error("method must affect the fingerprint")
	}

	byBody := NewRequest(http.MethodGet, "/users")
	byBody.Body = "payload"
	if Fingerprint(base, url) == Fingerprint(byBody, url) {
		t.Error("body must affect the fingerprint")
	}

	if Fingerprint(base, url) == Fingerprint(base, url+"?page=2") {
		t.Error("URL must affect the fingerprint")
	}
}

func TestCacheEntryRoundTrip(t *testing.T) {
	resp := &Response{
		Status:     200,
		StatusText: "OK",
		Header:     http.Header{"Etag": []string{"abc"}},
		Body:       []byte("payload"),
	}
	entry := cacheEntryFromResponse(resp)

	// Mutating the original must not leak into the stored entry.
	resp.Body[0] = 'X'
	resp.Header.Set("Etag", "mutated")

	req := NewRequest(http.MethodGet, "/x")
	out := responseFromCache(entry, req)
	if out.String() != "payload" {
		t.Errorf("entry body aliased: %q", out.String())
	}
	if out.Header.Get("Etag") != "abc" {
		t.Errorf("entry header aliased: %q", out.Header.Get("Etag"))
	}
	if out.Request != req {
		t.Error("reconstructed response should carry the request")
	}
}
