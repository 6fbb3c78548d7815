package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsview/internal/domain"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) PriceHistory(_ context.Context, interval domain.Interval, ticker string) ([]domain.PriceBar, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []domain.PriceBar{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 10, SymbolTicker: ticker},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Close: 11, SymbolTicker: ticker},
	}, nil
}

func TestLoadPricesFillsCache(t *testing.T) {
	cache := NewParquetPriceCache(t.TempDir(), time.Hour)
	src := &countingSource{}
	ctx := context.Background()

	bars, cached, err := LoadPrices(ctx, cache, src, domain.IntervalMonthly, "KO", nil)
	if err != nil || cached || len(bars) != 2 {
		t.Fatalf("first load = %d bars, cached=%v, err=%v", len(bars), cached, err)
	}
	bars, cached, err = LoadPrices(ctx, cache, src, domain.IntervalMonthly, "KO", nil)
	if err != nil || !cached || len(bars) != 2 {
		t.Fatalf("second load = %d bars, cached=%v, err=%v", len(bars), cached, err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestLoadPricesWithoutCache(t *testing.T) {
	src := &countingSource{}
	for i := 0; i < 2; i++ {
		if _, cached, err := LoadPrices(context.Background(), nil, src, domain.IntervalWeekly, "KO", nil); err != nil || cached {
			t.Fatalf("load %d: cached=%v err=%v", i, cached, err)
		}
	}
	if src.calls != 2 {
		t.Errorf("source called %d times, want 2", src.calls)
	}
}

func TestLoadPricesError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := LoadPrices(context.Background(), nil, &countingSource{err: boom}, domain.IntervalWeekly, "KO", nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}
