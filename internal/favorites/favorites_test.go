package favorites

import (
	"context"
	"errors"
	"testing"

	"finsview/internal/catalog"
	"finsview/internal/domain"
)

type stubAPI struct {
	state map[string]bool
	err   error
}

func (s *stubAPI) ToggleFavorite(_ context.Context, ticker string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.state[ticker] = !s.state[ticker]
	return s.state[ticker], nil
}

func setup() (*catalog.Catalog, *catalog.ListCache) {
	cat := catalog.New(nil)
	cat.BulkUpsert([]domain.Symbol{{Ticker: "AAPL", IsFavorite: domain.Ptr(false)}})
	lists := catalog.NewListCache()
	lists.Put(domain.ListFavorites.Endpoint(), []string{"MSFT"})
	lists.Put(domain.ListActive.Endpoint(), []string{"AAPL", "MSFT"})
	return cat, lists
}

func TestToggleWritesServerValue(t *testing.T) {
	cat, lists := setup()
	tg := NewToggler(&stubAPI{state: map[string]bool{}}, cat, lists, nil)

	res, err := tg.Toggle(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !res.IsFavorite || !res.Applied {
		t.Errorf("Result = %+v, want applied favorite", res)
	}
	s, _ := cat.Get("AAPL")
	if !s.Favorite() {
		t.Error("catalog not updated")
	}
	if _, _, ok := lists.Get(domain.ListFavorites.Endpoint()); ok {
		t.Error("favorites list still cached")
	}
	if _, _, ok := lists.Get(domain.ListActive.Endpoint()); !ok {
		t.Error("active list was invalidated")
	}
}

func TestToggleErrorLeavesState(t *testing.T) {
	cat, lists := setup()
	tg := NewToggler(&stubAPI{err: errors.New("boom")}, cat, lists, nil)

	if _, err := tg.Toggle(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error")
	}
	s, _ := cat.Get("AAPL")
	if s.Favorite() {
		t.Error("catalog changed after failed toggle")
	}
	if _, _, ok := lists.Get(domain.ListFavorites.Endpoint()); !ok {
		t.Error("favorites list invalidated after failed toggle")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	cat, lists := setup()
	tg := NewToggler(&stubAPI{state: map[string]bool{}}, cat, lists, nil)

	first := tg.Begin("AAPL")
	second := tg.Begin("AAPL")

	// The newer request answers first, then the older one arrives late.
	if !tg.Apply("AAPL", second, false) {
		t.Fatal("latest response not applied")
	}
	if tg.Apply("AAPL", first, true) {
		t.Error("stale response applied")
	}
	s, _ := cat.Get("AAPL")
	if s.Favorite() {
		t.Error("stale value overwrote the latest")
	}

	// Generations are per ticker.
	other := tg.Begin("MSFT")
	if other != 1 {
		t.Errorf("MSFT generation = %d, want 1", other)
	}
}

func TestFailedLatestRestoresNewestSuccess(t *testing.T) {
	cat, lists := setup()
	tg := NewToggler(&stubAPI{state: map[string]bool{}}, cat, lists, nil)

	first := tg.Begin("AAPL")
	second := tg.Begin("AAPL")

	// The older request succeeds while the newer one is in flight.
	if tg.Apply("AAPL", first, true) {
		t.Fatal("superseded response applied while the latest was pending")
	}
	if s, _ := cat.Get("AAPL"); s.Favorite() {
		t.Fatal("catalog changed by superseded response")
	}

	// The newer request fails: the server holds the older answer.
	if !tg.Fail("AAPL", second) {
		t.Fatal("Fail did not restore the newest successful answer")
	}
	if s, _ := cat.Get("AAPL"); !s.Favorite() {
		t.Error("catalog does not reflect the server state after the failure")
	}
	if _, _, ok := lists.Get(domain.ListFavorites.Endpoint()); ok {
		t.Error("favorites list still cached")
	}
}

func TestLateSuccessAfterFailedLatest(t *testing.T) {
	cat, lists := setup()
	tg := NewToggler(&stubAPI{state: map[string]bool{}}, cat, lists, nil)

	first := tg.Begin("AAPL")
	second := tg.Begin("AAPL")

	if tg.Fail("AAPL", second) {
		t.Fatal("Fail changed the catalog with no successful answer")
	}
	// The older request answers after the newer one failed.
	if !tg.Apply("AAPL", first, true) {
		t.Fatal("only successful answer was discarded")
	}
	if s, _ := cat.Get("AAPL"); !s.Favorite() {
		t.Error("catalog not updated from the late answer")
	}

	// A fresh toggle takes over again.
	third := tg.Begin("AAPL")
	if tg.Fail("AAPL", first) {
		t.Error("Fail of an old generation changed the catalog")
	}
	if !tg.Apply("AAPL", third, false) {
		t.Error("latest response not applied")
	}
}
