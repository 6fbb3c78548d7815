// Package domain defines the records exchanged with the gofins backend:
// symbols, analysis packages and results, ratings, notes, price bars and
// error-log entries.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// Symbol is a tradable instrument. Ticker is the identity; every other field
// may be absent. Pointees are treated as immutable: updates replace the
// pointer, they never write through it.
type Symbol struct {
	Ticker            string     `json:"ticker"`
	Exchange          *string    `json:"exchange,omitempty"`
	Name              *string    `json:"name,omitempty"`
	Type              *string    `json:"type,omitempty"`
	Sector            *string    `json:"sector,omitempty"`
	Industry          *string    `json:"industry,omitempty"`
	Country           *string    `json:"country,omitempty"`
	Inception         *time.Time `json:"inception,omitempty"`
	OldestPrice       *time.Time `json:"oldestPrice,omitempty"`
	IsActivelyTrading *bool      `json:"isActivelyTrading,omitempty"`
	MarketCap         *float64   `json:"marketCap,omitempty"`
	ATH12M            *float64   `json:"ath12m,omitempty"`
	CurrentPriceUSD   *float64   `json:"currentPriceUsd,omitempty"`
	IsFavorite        *bool      `json:"isFavorite,omitempty"`
	LatestRating      *int       `json:"latestRating,omitempty"`
	UserRating        *int       `json:"userRating,omitempty"`
}

// Merge returns s with every field that is present in in copied over.
// Fields absent from in keep their value from s.
func (s Symbol) Merge(in Symbol) Symbol {
	out := s
	if in.Ticker != "" {
		out.Ticker = in.Ticker
	}
	if in.Exchange != nil {
		out.Exchange = in.Exchange
	}
	if in.Name != nil {
		out.Name = in.Name
	}
	if in.Type != nil {
		out.Type = in.Type
	}
	if in.Sector != nil {
		out.Sector = in.Sector
	}
	if in.Industry != nil {
		out.Industry = in.Industry
	}
	if in.Country != nil {
		out.Country = in.Country
	}
	if in.Inception != nil {
		out.Inception = in.Inception
	}
	if in.OldestPrice != nil {
		out.OldestPrice = in.OldestPrice
	}
	if in.IsActivelyTrading != nil {
		out.IsActivelyTrading = in.IsActivelyTrading
	}
	if in.MarketCap != nil {
		out.MarketCap = in.MarketCap
	}
	if in.ATH12M != nil {
		out.ATH12M = in.ATH12M
	}
	if in.CurrentPriceUSD != nil {
		out.CurrentPriceUSD = in.CurrentPriceUSD
	}
	if in.IsFavorite != nil {
		out.IsFavorite = in.IsFavorite
	}
	if in.LatestRating != nil {
		out.LatestRating = in.LatestRating
	}
	if in.UserRating != nil {
		out.UserRating = in.UserRating
	}
	return out
}

// Favorite reports whether the symbol is marked as a favorite.
func (s Symbol) Favorite() bool {
	return s.IsFavorite != nil && *s.IsFavorite
}

// DeltaATH returns the distance of the current price from the 12-month
// high in percent. ok is false unless both prices are known and the high
// is positive.
func (s Symbol) DeltaATH() (pct float64, ok bool) {
	if s.CurrentPriceUSD == nil || s.ATH12M == nil || *s.ATH12M <= 0 {
		return 0, false
	}
	return (*s.CurrentPriceUSD / *s.ATH12M - 1) * 100, true
}

// SymbolProfile is the detail record served for a single ticker.
type SymbolProfile struct {
	Symbol
	Currency    *string `json:"currency,omitempty"`
	Description *string `json:"description,omitempty"`
	Website     *string `json:"website,omitempty"`
	ISIN        *string `json:"isin,omitempty"`
}

// SymbolList selects one of the server-side symbol collections.
type SymbolList string

const (
	ListActive    SymbolList = "active"
	ListFavorites SymbolList = "favorites"
)

// Endpoint returns the API path serving the collection. It doubles as the
// identity of the list for cache and view-state keys.
func (l SymbolList) Endpoint() string {
	return "symbols/" + string(l)
}

// ---------------------------------------------------------------------------
// Analyses
// ---------------------------------------------------------------------------

// AnalysisStatus is the run state of an analysis package.
type AnalysisStatus string

const (
	StatusProcessing AnalysisStatus = "processing"
	StatusReady      AnalysisStatus = "ready"
	StatusFailed     AnalysisStatus = "failed"
)

// Terminal reports whether no further transition can happen.
func (s AnalysisStatus) Terminal() bool {
	return s != StatusProcessing
}

// Interval is the price bar granularity of an analysis.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Valid reports whether i is one of the known intervals.
func (i Interval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
		return true
	}
	return false
}

// AnalysisPackage is a persisted screening configuration plus its status.
// The backend serialises it with Go field names.
type AnalysisPackage struct {
	ID           string         `json:"ID"`
	Name         string         `json:"Name"`
	CreatedAt    time.Time      `json:"CreatedAt"`
	Interval     Interval       `json:"Interval"`
	TimeFrom     time.Time      `json:"TimeFrom"`
	TimeTo       time.Time      `json:"TimeTo"`
	HistBins     int            `json:"HistBins"`
	HistMin      float64        `json:"HistMin"`
	HistMax      float64        `json:"HistMax"`
	McapMin      *float64       `json:"McapMin,omitempty"`
	InceptionMax *time.Time     `json:"InceptionMax,omitempty"`
	SymbolCount  int            `json:"SymbolCount"`
	Status       AnalysisStatus `json:"Status"`
}

// AnalysisResult holds one symbol's return statistics within a package.
type AnalysisResult struct {
	Symbol    string     `json:"symbol"`
	Mean      float64    `json:"mean"`
	StdDev    float64    `json:"stddev"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Inception *time.Time `json:"inception,omitempty"`
}

// CreateAnalysisRequest is the body of POST analyses. Optional fields are
// omitted when nil so the backend applies its own defaults.
type CreateAnalysisRequest struct {
	Name         string   `json:"name"`
	Interval     Interval `json:"interval,omitempty"`
	TimeFrom     *string  `json:"time_from,omitempty"`
	TimeTo       *string  `json:"time_to,omitempty"`
	HistBins     *int     `json:"hist_bins,omitempty"`
	HistMin      *float64 `json:"hist_min,omitempty"`
	HistMax      *float64 `json:"hist_max,omitempty"`
	McapMin      *string  `json:"mcap_min,omitempty"`
	InceptionMax *string  `json:"inception_max,omitempty"`
}

// CreateAnalysisResponse acknowledges a newly queued analysis.
type CreateAnalysisResponse struct {
	PackageID string         `json:"package_id"`
	Status    AnalysisStatus `json:"status"`
}

// ---------------------------------------------------------------------------
// User data
// ---------------------------------------------------------------------------

// UserRating is one immutable rating event for a ticker.
type UserRating struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Rating    int       `json:"rating"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Note is a rating event presented as an annotation.
type Note = UserRating

// CurrentRating returns the most recent event by CreatedAt, or nil for an
// empty history.
func CurrentRating(history []UserRating) *UserRating {
	var cur *UserRating
	for i := range history {
		if cur == nil || history[i].CreatedAt.After(cur.CreatedAt) {
			cur = &history[i]
		}
	}
	return cur
}

// User is the account the API credentials resolve to.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	IsAdmin   bool      `json:"isAdmin,omitempty"`
}

// ---------------------------------------------------------------------------
// Prices and errors
// ---------------------------------------------------------------------------

// PriceBar is one weekly or monthly bar in USD. YoY is absent for the first
// year of history.
type PriceBar struct {
	Date         time.Time `json:"Date"`
	Open         float64   `json:"Open"`
	High         float64   `json:"High"`
	Low          float64   `json:"Low"`
	Close        float64   `json:"Close"`
	Avg          float64   `json:"Avg"`
	YoY          *float64  `json:"YoY"`
	SymbolTicker string    `json:"SymbolTicker"`
}

// ErrorEntry is a row of the backend error log.
type ErrorEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	ErrorType string    `json:"errorType"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// ParseFlexibleDate parses YYYY, YYYY-MM or YYYY-MM-DD (the formats the
// analysis form accepts). When end is true the result is the last day of the
// period, otherwise the first.
func ParseFlexibleDate(s string, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	var layout string
	switch len(s) {
	case 4:
		layout = "2006"
	case 7:
		layout = "2006-01"
	case 10:
		layout = "2006-01-02"
	default:
		if _, err := strconv.Atoi(s); err == nil {
			return time.Time{}, &time.ParseError{Layout: "2006", Value: s, Message: ": year must have four digits"}
		}
		return time.Parse("2006-01-02", s)
	}
	t, err := time.Parse(layout, s)
	if err != nil || !end {
		return t, err
	}
	switch layout {
	case "2006":
		return t.AddDate(1, 0, -1), nil
	case "2006-01":
		return t.AddDate(0, 1, -1), nil
	}
	return t, nil
}
