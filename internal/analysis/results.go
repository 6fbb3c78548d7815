// Package analysis scores, filters and orders analysis results, drives the
// status poller of a running analysis and validates the create form.
package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"finsview/internal/domain"
	"finsview/pkg/gofins"
)

// DefaultWeight balances mean return against volatility equally.
const DefaultWeight = 0.5

// Score combines mean and stddev: weight 1 ranks by mean alone, weight 0 by
// negated stddev alone.
func Score(mean, stddev, weight float64) float64 {
	return mean*weight + (-stddev)*(1-weight)
}

// Row is a result with its score under the current weight.
type Row struct {
	domain.AnalysisResult
	Score float64
}

// ---------------------------------------------------------------------------
// Filter
// ---------------------------------------------------------------------------

// Filter is the AND-combined predicate over results. Nil bounds are no-ops.
type Filter struct {
	InceptionFrom *time.Time
	InceptionTo   *time.Time
	MeanMin       *float64
	MeanMax       *float64
	StdDevMin     *float64
	StdDevMax     *float64
}

// Match reports whether r passes every bound. Results without an inception
// date are never rejected by the inception bounds.
func (f Filter) Match(r domain.AnalysisResult) bool {
	if r.Inception != nil {
		if f.InceptionFrom != nil && r.Inception.Before(*f.InceptionFrom) {
			return false
		}
		if f.InceptionTo != nil && r.Inception.After(*f.InceptionTo) {
			return false
		}
	}
	if f.MeanMin != nil && r.Mean < *f.MeanMin {
		return false
	}
	if f.MeanMax != nil && r.Mean > *f.MeanMax {
		return false
	}
	if f.StdDevMin != nil && r.StdDev < *f.StdDevMin {
		return false
	}
	if f.StdDevMax != nil && r.StdDev > *f.StdDevMax {
		return false
	}
	return true
}

// FilterInput holds the filter fields as typed; empty means unset.
type FilterInput struct {
	InceptionFrom string
	InceptionTo   string
	MeanMin       string
	MeanMax       string
	StdDevMin     string
	StdDevMax     string
}

// Parse converts the input into a Filter. Inception bounds accept YYYY,
// YYYY-MM or YYYY-MM-DD and both start at the beginning of their period, so
// an upper bound of "2020" keeps inceptions up to 2020-01-01 only.
func (in FilterInput) Parse() (Filter, error) {
	var f Filter
	var err error
	if f.InceptionFrom, err = parseDate("inceptionFrom", in.InceptionFrom); err != nil {
		return Filter{}, err
	}
	if f.InceptionTo, err = parseDate("inceptionTo", in.InceptionTo); err != nil {
		return Filter{}, err
	}
	for _, b := range []struct {
		name string
		raw  string
		dst  **float64
	}{
		{"meanMin", in.MeanMin, &f.MeanMin},
		{"meanMax", in.MeanMax, &f.MeanMax},
		{"stddevMin", in.StdDevMin, &f.StdDevMin},
		{"stddevMax", in.StdDevMax, &f.StdDevMax},
	} {
		if *b.dst, err = parseFloat(b.name, b.raw); err != nil {
			return Filter{}, err
		}
	}
	return f, nil
}

func parseDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := domain.ParseFlexibleDate(raw, false)
	if err != nil {
		return nil, &gofins.ValidationError{Field: field, Message: fmt.Sprintf("invalid date %q (use YYYY, YYYY-MM or YYYY-MM-DD)", raw)}
	}
	return &t, nil
}

func parseFloat(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &gofins.ValidationError{Field: field, Message: fmt.Sprintf("invalid number %q", raw)}
	}
	return &v, nil
}

// ---------------------------------------------------------------------------
// Sort
// ---------------------------------------------------------------------------

// Field is a sortable result column.
type Field string

const (
	FieldSymbol    Field = "symbol"
	FieldInception Field = "inception"
	FieldMean      Field = "mean"
	FieldStdDev    Field = "stddev"
	FieldScore     Field = "score"
)

// Fields lists the sortable columns in display order.
var Fields = []Field{FieldSymbol, FieldInception, FieldMean, FieldStdDev, FieldScore}

// Order is the active sort column and direction.
type Order struct {
	Field Field
	Desc  bool
}

// DefaultOrder ranks by score, best first.
var DefaultOrder = Order{Field: FieldScore, Desc: true}

// Toggle returns the order after a click on f: the same field flips, a new
// field starts descending.
func (o Order) Toggle(f Field) Order {
	if o.Field == f {
		return Order{Field: f, Desc: !o.Desc}
	}
	return Order{Field: f, Desc: true}
}

// Indicator returns the arrow shown next to f's header.
func (o Order) Indicator(f Field) string {
	switch {
	case o.Field != f:
		return ""
	case o.Desc:
		return "↓"
	}
	return "↑"
}

func less(a, b Row, f Field) bool {
	switch f {
	case FieldSymbol:
		return a.Symbol < b.Symbol
	case FieldInception:
		return inceptionKey(a) < inceptionKey(b)
	case FieldMean:
		return a.Mean < b.Mean
	case FieldStdDev:
		return a.StdDev < b.StdDev
	case FieldScore:
		return a.Score < b.Score
	}
	return false
}

// Absent inception orders as the Unix epoch.
func inceptionKey(r Row) int64 {
	if r.Inception == nil {
		return 0
	}
	return r.Inception.UnixMilli()
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Rows filters results, scores them with weight and sorts by order. Equal
// keys keep their input order.
func Rows(results []domain.AnalysisResult, f Filter, order Order, weight float64) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		if f.Match(r) {
			rows = append(rows, Row{AnalysisResult: r, Score: Score(r.Mean, r.StdDev, weight)})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if order.Desc {
			return less(rows[j], rows[i], order.Field)
		}
		return less(rows[i], rows[j], order.Field)
	})
	return rows
}
