package catalog

import (
	"sync"
	"time"
)

// ListCache remembers which tickers each symbol collection returned, keyed by
// endpoint. Records themselves live in the Catalog; a cached list is resolved
// with GetMany.
type ListCache struct {
	mu      sync.Mutex
	entries map[string]listEntry
}

type listEntry struct {
	tickers []string
	at      time.Time
}

// NewListCache creates an empty cache.
func NewListCache() *ListCache {
	return &ListCache{entries: make(map[string]listEntry)}
}

// Put stores the ticker order for endpoint.
func (l *ListCache) Put(endpoint string, tickers []string) {
	cp := append([]string(nil), tickers...)
	l.mu.Lock()
	l.entries[endpoint] = listEntry{tickers: cp, at: time.Now()}
	l.mu.Unlock()
}

// Get returns the cached tickers for endpoint and when they were stored.
func (l *ListCache) Get(endpoint string) ([]string, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[endpoint]
	if !ok {
		return nil, time.Time{}, false
	}
	return append([]string(nil), e.tickers...), e.at, true
}

// Invalidate drops endpoint so the next reader refetches it.
func (l *ListCache) Invalidate(endpoint string) {
	l.mu.Lock()
	delete(l.entries, endpoint)
	l.mu.Unlock()
}

// Clear drops every entry.
func (l *ListCache) Clear() {
	l.mu.Lock()
	l.entries = make(map[string]listEntry)
	l.mu.Unlock()
}
