// Package catalog holds the session-wide set of Symbol records shared by
// every view, with change notification so views stay consistent without
// re-fetching.
package catalog

import (
	"log/slog"
	"sort"
	"sync"

	"finsview/internal/domain"
)

// Change is the set of tickers touched by one mutating call. An empty Change
// follows Clear.
type Change map[string]struct{}

// Tickers returns the changed tickers in sorted order.
func (c Change) Tickers() []string {
	out := make([]string, 0, len(c))
	for t := range c {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Has reports whether ticker is part of the change.
func (c Change) Has(ticker string) bool {
	_, ok := c[ticker]
	return ok
}

// Listener receives the changed set after each mutation.
type Listener func(Change)

// Field mutates a copy of a record inside UpdateFields. Fields may clear
// values as well as set them.
type Field func(*domain.Symbol)

// Catalog is the in-memory source of truth for Symbol records. It is safe
// for concurrent use; listeners run synchronously on the mutating goroutine
// after the write lock is released, so they may read the catalog.
type Catalog struct {
	mu      sync.RWMutex
	symbols map[string]domain.Symbol
	log     *slog.Logger

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]Listener
}

// New creates an empty Catalog.
func New(log *slog.Logger) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	return &Catalog{
		symbols: make(map[string]domain.Symbol),
		log:     log,
		subs:    make(map[int]Listener),
	}
}

// Get returns the record for ticker.
func (c *Catalog) Get(ticker string) (domain.Symbol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.symbols[ticker]
	return s, ok
}

// GetMany returns the known records for tickers in input order; unknown
// tickers are dropped.
func (c *Catalog) GetMany(tickers []string) []domain.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Symbol, 0, len(tickers))
	for _, t := range tickers {
		if s, ok := c.symbols[t]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether ticker is known.
func (c *Catalog) Has(ticker string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.symbols[ticker]
	return ok
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.symbols)
}

// Snapshot returns a copy of every record, sorted by ticker.
func (c *Catalog) Snapshot() []domain.Symbol {
	c.mu.RLock()
	out := make([]domain.Symbol, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, s)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// BulkUpsert merges each incoming record onto the existing one (incoming
// fields win, absent fields keep their value) or inserts it. Subscribers
// are notified once with every ticker processed; an empty batch notifies
// nobody.
func (c *Catalog) BulkUpsert(symbols []domain.Symbol) {
	changed := make(Change, len(symbols))
	c.mu.Lock()
	for _, in := range symbols {
		if in.Ticker == "" {
			continue
		}
		if cur, ok := c.symbols[in.Ticker]; ok {
			c.symbols[in.Ticker] = cur.Merge(in)
		} else {
			c.symbols[in.Ticker] = in
		}
		changed[in.Ticker] = struct{}{}
	}
	c.mu.Unlock()

	if len(changed) > 0 {
		c.log.Debug("catalog upsert", "symbols", len(changed))
		c.notify(changed)
	}
}

// UpdateFields applies fields to the record for ticker. Unknown tickers are
// ignored without notification.
func (c *Catalog) UpdateFields(ticker string, fields ...Field) bool {
	c.mu.Lock()
	cur, ok := c.symbols[ticker]
	if !ok {
		c.mu.Unlock()
		return false
	}
	for _, f := range fields {
		f(&cur)
	}
	cur.Ticker = ticker
	c.symbols[ticker] = cur
	c.mu.Unlock()

	c.notify(Change{ticker: {}})
	return true
}

// Clear removes every record and notifies with an empty change set.
func (c *Catalog) Clear() {
	c.mu.Lock()
	c.symbols = make(map[string]domain.Symbol)
	c.mu.Unlock()

	c.notify(Change{})
}

// Subscribe registers fn for every subsequent mutation. The returned
// function removes it and may be called more than once.
func (c *Catalog) Subscribe(fn Listener) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

// Watch delivers change sets on a channel until stop is called. Sends never
// block: a full buffer drops the change, so consumers should re-read the
// catalog rather than rely on every set arriving.
func (c *Catalog) Watch(bufSize int) (changes <-chan Change, stop func()) {
	ch := make(chan Change, bufSize)
	var mu sync.Mutex
	closed := false
	unsub := c.Subscribe(func(change Change) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- change:
		default:
		}
	})
	return ch, func() {
		unsub()
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
	}
}

func (c *Catalog) notify(changed Change) {
	c.subsMu.Lock()
	listeners := make([]Listener, 0, len(c.subs))
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		listeners = append(listeners, c.subs[id])
	}
	c.subsMu.Unlock()

	for _, fn := range listeners {
		fn(changed)
	}
}

// ---------------------------------------------------------------------------
// Field helpers
// ---------------------------------------------------------------------------

// SetFavorite sets the favorite flag.
func SetFavorite(v bool) Field {
	return func(s *domain.Symbol) { s.IsFavorite = domain.Ptr(v) }
}

// SetUserRating sets the user's rating; nil clears it.
func SetUserRating(r *int) Field {
	return func(s *domain.Symbol) {
		if r == nil {
			s.UserRating = nil
			return
		}
		s.UserRating = domain.Ptr(*r)
	}
}

// SetLatestRating sets the latest rating; nil clears it.
func SetLatestRating(r *int) Field {
	return func(s *domain.Symbol) {
		if r == nil {
			s.LatestRating = nil
			return
		}
		s.LatestRating = domain.Ptr(*r)
	}
}
