// Package store persists client-side state: list view settings in SQLite and
// fetched price history in Parquet files.
package store

import (
	"context"
	"time"

	"finsview/internal/domain"
)

// ViewStateStore keeps per-list view settings across runs. Values are
// JSON-encoded under a caller-chosen key.
type ViewStateStore interface {
	// LoadViewState decodes the value stored under key into v. It reports
	// false when nothing is stored.
	LoadViewState(ctx context.Context, key string, v any) (bool, error)

	// SaveViewState stores v under key, replacing any previous value.
	SaveViewState(ctx context.Context, key string, v any) error

	// DeleteViewState removes key.
	DeleteViewState(ctx context.Context, key string) error
}

// PriceCache holds price history fetched from the backend.
type PriceCache interface {
	// ReadPrices returns cached bars for ticker and interval, and when they
	// were written. ok is false on a miss or when the entry is older than
	// the cache TTL.
	ReadPrices(ctx context.Context, ticker string, interval domain.Interval) (bars []domain.PriceBar, fetchedAt time.Time, ok bool, err error)

	// WritePrices replaces the cached bars for ticker and interval.
	WritePrices(ctx context.Context, ticker string, interval domain.Interval, bars []domain.PriceBar) error
}
