package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"finsview/internal/domain"
)

// Compile-time interface check.
var _ PriceCache = (*ParquetPriceCache)(nil)

// ParquetPriceCache implements PriceCache with one Parquet file per ticker
// and interval. Entries older than TTL are treated as misses; a zero TTL
// never expires.
type ParquetPriceCache struct {
	DataDir string
	TTL     time.Duration
}

// NewParquetPriceCache creates a cache rooted at dataDir.
func NewParquetPriceCache(dataDir string, ttl time.Duration) *ParquetPriceCache {
	return &ParquetPriceCache{DataDir: dataDir, TTL: ttl}
}

// PriceRecord is the Parquet schema for a cached price bar.
type PriceRecord struct {
	Ticker string   `parquet:"ticker"`
	Date   int64    `parquet:"date,timestamp(millisecond)"` // Unix ms
	Open   float64  `parquet:"open"`
	High   float64  `parquet:"high"`
	Low    float64  `parquet:"low"`
	Close  float64  `parquet:"close"`
	Avg    float64  `parquet:"avg"`
	YoY    *float64 `parquet:"yoy,optional"`
}

// pricePath returns <DataDir>/prices/<interval>/<TICKER>.parquet.
func (c *ParquetPriceCache) pricePath(ticker string, interval domain.Interval) string {
	return filepath.Join(c.DataDir, "prices", string(interval), strings.ToUpper(ticker)+".parquet")
}

// ReadPrices returns the cached bars in date order.
func (c *ParquetPriceCache) ReadPrices(_ context.Context, ticker string, interval domain.Interval) ([]domain.PriceBar, time.Time, bool, error) {
	path := c.pricePath(ticker, interval)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("stat price cache %s: %w", path, err)
	}
	fetchedAt := info.ModTime()
	if c.TTL > 0 && time.Since(fetchedAt) > c.TTL {
		return nil, fetchedAt, false, nil
	}

	records, err := readParquetFile[PriceRecord](path)
	if err != nil {
		return nil, fetchedAt, false, fmt.Errorf("reading price cache %s: %w", path, err)
	}
	bars := make([]domain.PriceBar, len(records))
	for i, r := range records {
		bars[i] = domain.PriceBar{
			Date:         time.UnixMilli(r.Date).UTC(),
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Avg:          r.Avg,
			YoY:          r.YoY,
			SymbolTicker: r.Ticker,
		}
	}
	return bars, fetchedAt, true, nil
}

// WritePrices replaces the cache file for ticker and interval.
func (c *ParquetPriceCache) WritePrices(_ context.Context, ticker string, interval domain.Interval, bars []domain.PriceBar) error {
	records := make([]PriceRecord, len(bars))
	for i, b := range bars {
		t := b.SymbolTicker
		if t == "" {
			t = ticker
		}
		records[i] = PriceRecord{
			Ticker: t,
			Date:   b.Date.UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Avg:    b.Avg,
			YoY:    b.YoY,
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })

	path := c.pricePath(ticker, interval)
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing price cache for %s/%s: %w", ticker, interval, err)
	}
	return nil
}

// Purge removes every cached file.
func (c *ParquetPriceCache) Purge() error {
	return os.RemoveAll(filepath.Join(c.DataDir, "prices"))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// writeParquetFile writes through a temp file so readers never see a partial
// file.
func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
