package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"finsview/internal/domain"
)

func TestPricePath(t *testing.T) {
	c := NewParquetPriceCache("/data", time.Hour)

	got := c.pricePath("aapl", domain.IntervalMonthly)
	want := filepath.Join("/data", "prices", "monthly", "AAPL.parquet")
	if got != want {
		t.Errorf("pricePath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestPriceCacheWriteRead(t *testing.T) {
	dir := t.TempDir()
	c := NewParquetPriceCache(dir, time.Hour)
	ctx := context.Background()

	bars := []domain.PriceBar{
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Open: 10, High: 12, Low: 9, Close: 11, Avg: 10.5, YoY: domain.Ptr(12.5)},
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 9, High: 10, Low: 8, Close: 10, Avg: 9.2},
	}
	if err := c.WritePrices(ctx, "AAPL", domain.IntervalMonthly, bars); err != nil {
		t.Fatalf("WritePrices: %v", err)
	}

	got, _, ok, err := c.ReadPrices(ctx, "AAPL", domain.IntervalMonthly)
	if err != nil {
		t.Fatalf("ReadPrices: %v", err)
	}
	if !ok {
		t.Fatal("ReadPrices missed a fresh entry")
	}
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if !got[0].Date.Equal(bars[1].Date) {
		t.Errorf("first bar date = %v, want %v", got[0].Date, bars[1].Date)
	}
	if got[0].YoY != nil {
		t.Errorf("first bar YoY = %v, want nil", *got[0].YoY)
	}
	if got[1].YoY == nil || *got[1].YoY != 12.5 {
		t.Errorf("second bar YoY = %v, want 12.5", got[1].YoY)
	}
	if got[1].SymbolTicker != "AAPL" {
		t.Errorf("SymbolTicker = %q, want %q", got[1].SymbolTicker, "AAPL")
	}

	if _, _, ok, _ := c.ReadPrices(ctx, "AAPL", domain.IntervalWeekly); ok {
		t.Error("weekly interval should miss")
	}
}

func TestPriceCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewParquetPriceCache(dir, time.Minute)
	ctx := context.Background()

	bars := []domain.PriceBar{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 1}}
	if err := c.WritePrices(ctx, "MSFT", domain.IntervalWeekly, bars); err != nil {
		t.Fatalf("WritePrices: %v", err)
	}
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(c.pricePath("MSFT", domain.IntervalWeekly), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if _, _, ok, err := c.ReadPrices(ctx, "MSFT", domain.IntervalWeekly); ok || err != nil {
		t.Errorf("expired entry: ok=%v err=%v, want miss", ok, err)
	}

	if err := c.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "prices")); !os.IsNotExist(err) {
		t.Error("prices dir still present after Purge")
	}
}

type listState struct {
	SearchTerm string `json:"searchTerm"`
	Page       int    `json:"page"`
}

func TestSQLiteViewState(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "finsview.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	var v listState
	ok, err := s.LoadViewState(ctx, "symbolListFilters_symbols/active", &v)
	if err != nil || ok {
		t.Fatalf("empty load: ok=%v err=%v", ok, err)
	}

	if err := s.SaveViewState(ctx, "symbolListFilters_symbols/active", listState{SearchTerm: "tech", Page: 2}); err != nil {
		t.Fatalf("SaveViewState: %v", err)
	}
	if err := s.SaveViewState(ctx, "symbolListFilters_symbols/active", listState{SearchTerm: "bank"}); err != nil {
		t.Fatalf("SaveViewState overwrite: %v", err)
	}
	if err := s.SaveViewState(ctx, "symbolListFilters_symbols/favorites", listState{SearchTerm: "x"}); err != nil {
		t.Fatalf("SaveViewState: %v", err)
	}

	ok, err = s.LoadViewState(ctx, "symbolListFilters_symbols/active", &v)
	if err != nil || !ok {
		t.Fatalf("LoadViewState: ok=%v err=%v", ok, err)
	}
	if v.SearchTerm != "bank" || v.Page != 0 {
		t.Errorf("loaded %+v, want searchTerm bank", v)
	}

	keys, err := s.ViewStateKeys(ctx)
	if err != nil {
		t.Fatalf("ViewStateKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want 2", keys)
	}

	if err := s.DeleteViewState(ctx, "symbolListFilters_symbols/favorites"); err != nil {
		t.Fatalf("DeleteViewState: %v", err)
	}
	if ok, _ := s.LoadViewState(ctx, "symbolListFilters_symbols/favorites", &v); ok {
		t.Error("deleted key still present")
	}
}
