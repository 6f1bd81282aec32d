package enrich

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is a cached fetch outcome for a single URL. Exactly one of the
// success fields or the failure fields is populated.
type Entry struct {
	// Content is the cleaned content for a successful fetch.
	Content string

	// Title is the page title, when one could be extracted.
	Title string

	// FetchedAt is when a successful fetch completed.
	FetchedAt time.Time

	// Failed marks a recorded failure.
	Failed bool

	// Reason describes why the fetch failed.
	Reason string

	// FailedAt is when the failure was recorded.
	FailedAt time.Time
}

// Cache is a process-wide map from URL to fetch outcome. Entries (successes
// and failures alike) are never evicted within a process lifetime, so a URL
// is fetched at most once no matter how many documents reference it.
//
// Safe for concurrent use. GetOrFetch collapses concurrent misses for the
// same URL into a single fetch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	group   singleflight.Group
}

// NewCache creates an empty fetch cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
	}
}

// Get returns the cached entry for url, if present.
func (c *Cache) Get(url string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e, ok
}

// Put stores an entry for url. An existing entry is never overwritten:
// within a process the outcome for a URL is computed once, and the first
// write wins so concurrent callers observe a stable value.
func (c *Cache) Put(url string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[url]; exists {
		return
	}
	c.entries[url] = entry
}

// GetOrFetch returns the cached entry for url, computing it via fetch on a
// miss. Concurrent misses for the same URL share one fetch call. The fetch
// function has no error return because failures are themselves entries; its
// second result controls whether the entry is stored. Returning false keeps
// outcomes caused by the caller (a cancelled or expired request context)
// out of the cache, where they would wrongly fail the URL for every later
// document.
func (c *Cache) GetOrFetch(url string, fetch func() (Entry, bool)) Entry {
	if e, ok := c.Get(url); ok {
		return e
	}

	v, _, _ := c.group.Do(url, func() (any, error) {
		// Re-check under the group: another caller may have stored the
		// entry between our Get and Do.
		if e, ok := c.Get(url); ok {
			return e, nil
		}
		e, cacheable := fetch()
		if cacheable {
			c.Put(url, e)
		}
		return e, nil
	})
	return v.(Entry)
}

// Len returns the number of cached URLs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
