// Package favorites sequences favorite toggles per ticker and writes the
// server's answer into the shared catalog.
package favorites

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"finsview/internal/catalog"
	"finsview/internal/domain"
)

// API is the backend call behind a toggle.
type API interface {
	ToggleFavorite(ctx context.Context, ticker string) (bool, error)
}

// Toggler issues favorite toggles. Every request for a ticker gets a new
// generation; only the response of the latest generation is applied, so two
// rapid toggles cannot leave the older answer on screen. When the latest
// request fails, the newest successful answer stands in for it.
type Toggler struct {
	api     API
	catalog *catalog.Catalog
	lists   *catalog.ListCache
	log     *slog.Logger

	mu      sync.Mutex
	tickers map[string]*sequence
}

// sequence is the request bookkeeping of one ticker.
type sequence struct {
	latest  uint64 // newest generation issued
	failed  bool   // the latest generation ended in an error
	best    uint64 // newest generation that answered successfully
	bestFav bool
	applied uint64 // generation whose answer the catalog holds
}

// NewToggler creates a Toggler. lists may be nil.
func NewToggler(api API, cat *catalog.Catalog, lists *catalog.ListCache, log *slog.Logger) *Toggler {
	if log == nil {
		log = slog.Default()
	}
	return &Toggler{api: api, catalog: cat, lists: lists, log: log, tickers: make(map[string]*sequence)}
}

func (t *Toggler) seq(ticker string) *sequence {
	s, ok := t.tickers[ticker]
	if !ok {
		s = &sequence{}
		t.tickers[ticker] = s
	}
	return s
}

// Begin records a new request for ticker and returns its generation.
func (t *Toggler) Begin(ticker string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.seq(ticker)
	s.latest++
	s.failed = false
	return s.latest
}

// Apply writes the server's isFavorite for ticker if gen is still the latest
// request, or if the latest request failed and gen is the newest success so
// far. It invalidates the cached favorites list and reports whether the
// value was applied.
func (t *Toggler) Apply(ticker string, gen uint64, isFavorite bool) bool {
	t.mu.Lock()
	s := t.seq(ticker)
	if gen > s.best {
		s.best, s.bestFav = gen, isFavorite
	}
	use := gen == s.latest || (s.failed && gen == s.best && gen > s.applied)
	if use {
		s.applied = gen
	}
	t.mu.Unlock()

	if !use {
		t.log.Debug("discarding stale favorite response", "ticker", ticker, "gen", gen)
		return false
	}
	t.write(ticker, isFavorite)
	return true
}

// Fail records that request gen for ticker ended in an error. If it was the
// latest request and a newer successful answer than the one on screen was
// discarded meanwhile, that answer is applied. It reports whether the
// catalog changed.
func (t *Toggler) Fail(ticker string, gen uint64) bool {
	t.mu.Lock()
	s := t.seq(ticker)
	if gen != s.latest {
		t.mu.Unlock()
		return false
	}
	s.failed = true
	restore := s.best > s.applied
	fav := s.bestFav
	if restore {
		s.applied = s.best
	}
	t.mu.Unlock()

	if restore {
		t.log.Info("restoring last favorite state after failed toggle", "ticker", ticker, "favorite", fav)
		t.write(ticker, fav)
	}
	return restore
}

func (t *Toggler) write(ticker string, isFavorite bool) {
	t.catalog.UpdateFields(ticker, catalog.SetFavorite(isFavorite))
	if t.lists != nil {
		t.lists.Invalidate(domain.ListFavorites.Endpoint())
	}
}

// Result is the outcome of Toggle.
type Result struct {
	Ticker     string
	IsFavorite bool
	Applied    bool // false when a newer toggle superseded this one
}

// Toggle calls the backend and applies the answer. On error the catalog
// keeps its value unless a superseded request had succeeded; see Fail.
func (t *Toggler) Toggle(ctx context.Context, ticker string) (Result, error) {
	gen := t.Begin(ticker)
	fav, err := t.api.ToggleFavorite(ctx, ticker)
	if err != nil {
		t.log.Warn("toggle favorite failed", "ticker", ticker, "error", err)
		t.Fail(ticker, gen)
		return Result{Ticker: ticker}, fmt.Errorf("toggling favorite %s: %w", ticker, err)
	}
	applied := t.Apply(ticker, gen, fav)
	t.log.Info("favorite toggled", "ticker", ticker, "favorite", fav, "applied", applied)
	return Result{Ticker: ticker, IsFavorite: fav, Applied: applied}, nil
}
