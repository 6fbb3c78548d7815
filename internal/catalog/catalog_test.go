package catalog

import (
	"fmt"
	"testing"

	"finsview/internal/domain"
)

func TestBulkUpsertMergesFields(t *testing.T) {
	c := New(nil)
	c.BulkUpsert([]domain.Symbol{{Ticker: "X", Name: domain.Ptr("Acme"), MarketCap: domain.Ptr(100.0)}})
	c.BulkUpsert([]domain.Symbol{{Ticker: "X", MarketCap: domain.Ptr(200.0)}})

	got, ok := c.Get("X")
	if !ok {
		t.Fatal("X missing after upsert")
	}
	if domain.Deref(got.Name) != "Acme" {
		t.Errorf("Name = %q, want %q", domain.Deref(got.Name), "Acme")
	}
	if domain.Deref(got.MarketCap) != 200 {
		t.Errorf("MarketCap = %v, want 200", domain.Deref(got.MarketCap))
	}
}

func TestBulkUpsertNotifiesOncePerBatch(t *testing.T) {
	c := New(nil)
	var calls int
	var last Change
	c.Subscribe(func(ch Change) {
		calls++
		last = ch
	})

	batch := make([]domain.Symbol, 50)
	for i := range batch {
		batch[i] = domain.Symbol{Ticker: fmt.Sprintf("T%02d", i)}
	}
	c.BulkUpsert(batch)

	if calls != 1 {
		t.Fatalf("notifications = %d, want 1", calls)
	}
	if len(last) != 50 {
		t.Errorf("changed tickers = %d, want 50", len(last))
	}

	c.BulkUpsert(nil)
	if calls != 1 {
		t.Errorf("empty batch notified, calls = %d", calls)
	}
}

func TestUpdateFields(t *testing.T) {
	c := New(nil)
	c.BulkUpsert([]domain.Symbol{{Ticker: "AAA", UserRating: domain.Ptr(3)}})

	var changes []Change
	c.Subscribe(func(ch Change) { changes = append(changes, ch) })

	if c.UpdateFields("ZZZ", SetFavorite(true)) {
		t.Error("UpdateFields on unknown ticker reported success")
	}
	if len(changes) != 0 {
		t.Fatalf("unknown ticker notified %d times", len(changes))
	}

	if !c.UpdateFields("AAA", SetFavorite(true), SetUserRating(nil)) {
		t.Fatal("UpdateFields(AAA) = false")
	}
	if len(changes) != 1 || !changes[0].Has("AAA") || len(changes[0]) != 1 {
		t.Fatalf("changes = %v, want one set with AAA", changes)
	}
	got, _ := c.Get("AAA")
	if !got.Favorite() {
		t.Error("favorite not set")
	}
	if got.UserRating != nil {
		t.Errorf("UserRating = %v, want nil", *got.UserRating)
	}
}

func TestGetManyDropsUnknown(t *testing.T) {
	c := New(nil)
	c.BulkUpsert([]domain.Symbol{{Ticker: "A"}, {Ticker: "C"}})

	got := c.GetMany([]string{"C", "B", "A"})
	if len(got) != 2 || got[0].Ticker != "C" || got[1].Ticker != "A" {
		t.Errorf("GetMany = %+v, want [C A]", got)
	}
}

func TestClearNotifiesEmptySet(t *testing.T) {
	c := New(nil)
	c.BulkUpsert([]domain.Symbol{{Ticker: "A"}})

	var got Change
	called := false
	c.Subscribe(func(ch Change) { got, called = ch, true })
	c.Clear()

	if !called {
		t.Fatal("Clear did not notify")
	}
	if len(got) != 0 {
		t.Errorf("Clear change = %v, want empty", got)
	}
	if c.Has("A") || c.Len() != 0 {
		t.Error("catalog not empty after Clear")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	c := New(nil)
	var a, b int
	unsubA := c.Subscribe(func(Change) { a++ })
	c.Subscribe(func(Change) { b++ })

	c.BulkUpsert([]domain.Symbol{{Ticker: "A"}})
	unsubA()
	unsubA()
	c.BulkUpsert([]domain.Symbol{{Ticker: "B"}})

	if a != 1 {
		t.Errorf("unsubscribed listener calls = %d, want 1", a)
	}
	if b != 2 {
		t.Errorf("remaining listener calls = %d, want 2", b)
	}
}

func TestListenerSeesPostMutationState(t *testing.T) {
	c := New(nil)
	var seen float64
	c.Subscribe(func(ch Change) {
		s, _ := c.Get("A")
		seen = domain.Deref(s.MarketCap)
	})
	c.BulkUpsert([]domain.Symbol{{Ticker: "A", MarketCap: domain.Ptr(42.0)}})
	if seen != 42 {
		t.Errorf("listener saw MarketCap %v, want 42", seen)
	}
}

func TestWatch(t *testing.T) {
	c := New(nil)
	ch, stop := c.Watch(4)
	c.BulkUpsert([]domain.Symbol{{Ticker: "A"}})

	got := <-ch
	if !got.Has("A") {
		t.Errorf("watched change = %v, want A", got.Tickers())
	}
	stop()
	stop()
	if _, ok := <-ch; ok {
		t.Error("channel still open after stop")
	}
	c.BulkUpsert([]domain.Symbol{{Ticker: "B"}})
}
