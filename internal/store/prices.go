package store

import (
	"context"
	"fmt"
	"log/slog"

	"finsview/internal/domain"
)

// PriceSource fetches price history from the backend.
type PriceSource interface {
	PriceHistory(ctx context.Context, interval domain.Interval, ticker string) ([]domain.PriceBar, error)
}

// LoadPrices returns bars for ticker from cache when fresh, otherwise from
// src, writing the fetched bars back. A nil cache always fetches. Cache
// failures are logged and never fail the load.
func LoadPrices(ctx context.Context, cache PriceCache, src PriceSource, interval domain.Interval, ticker string, log *slog.Logger) (bars []domain.PriceBar, cached bool, err error) {
	if log == nil {
		log = slog.Default()
	}
	if cache != nil {
		bars, _, ok, err := cache.ReadPrices(ctx, ticker, interval)
		if err != nil {
			log.Warn("reading price cache", "ticker", ticker, "interval", interval, "error", err)
		}
		if ok {
			return bars, true, nil
		}
	}

	bars, err = src.PriceHistory(ctx, interval, ticker)
	if err != nil {
		return nil, false, fmt.Errorf("fetching %s prices for %s: %w", interval, ticker, err)
	}
	if cache != nil && len(bars) > 0 {
		if err := cache.WritePrices(ctx, ticker, interval, bars); err != nil {
			log.Warn("writing price cache", "ticker", ticker, "interval", interval, "error", err)
		}
	}
	return bars, false, nil
}
