package tui

import (
	"context"

	"finsview/internal/analysis"
	"finsview/internal/dashboard"
	"finsview/internal/domain"
	"finsview/internal/symbollist"
	"finsview/pkg/gofins"
)

// viewKind enumerates every screen the application can show. The set is
// closed: switches over it are expected to cover every kind.
type viewKind int

const (
	kindFavorites viewKind = iota
	kindNotes
	kindStocks
	kindAnalyses
	kindErrors
	kindAnalysis
	kindSymbol
	kindCreate
)

// permanent reports whether tabs of this kind can never be closed.
func (k viewKind) permanent() bool {
	switch k {
	case kindFavorites, kindNotes, kindStocks, kindAnalyses, kindErrors:
		return true
	case kindAnalysis, kindSymbol, kindCreate:
		return false
	}
	return false
}

// view is the state behind one tab. Only the types in this file implement
// it.
type view interface {
	kind() viewKind
	title() string
}

var (
	_ view = (*listView)(nil)
	_ view = (*notesView)(nil)
	_ view = (*analysesView)(nil)
	_ view = (*errorsView)(nil)
	_ view = (*analysisView)(nil)
	_ view = (*symbolView)(nil)
	_ view = (*createView)(nil)
)

// Tab keys.
const (
	keyFavorites = "favorites"
	keyNotes     = "notes"
	keyStocks    = "stocks"
	keyAnalyses  = "analyses"
	keyErrors    = "errors"
	keyCreate    = "create"
)

func analysisKey(id string) string { return "analysis/" + id }

func symbolKey(ticker, packageID string) string {
	if packageID == "" {
		return "symbol/" + ticker
	}
	return "symbol/" + ticker + "@" + packageID
}

// ---------------------------------------------------------------------------
// Symbol lists
// ---------------------------------------------------------------------------

// listView shows one server-side symbol collection. Records are resolved
// from the catalog at render time so favorite and rating changes show up
// without refetching.
type listView struct {
	which   domain.SymbolList
	list    *symbollist.List
	tickers []string
	loaded  bool
	loading bool
	err     error
	cursor  int // index within the current page
	page    symbollist.Page[domain.Symbol]
}

func newListView(which domain.SymbolList, pageSize int) *listView {
	return &listView{which: which, list: symbollist.NewList(which.Endpoint(), pageSize)}
}

func (v *listView) kind() viewKind {
	if v.which == domain.ListFavorites {
		return kindFavorites
	}
	return kindStocks
}

func (v *listView) title() string {
	if v.which == domain.ListFavorites {
		return "Favorites"
	}
	return "Stocks"
}

// selected returns the symbol under the cursor on the last rendered page.
func (v *listView) selected() (domain.Symbol, bool) {
	if v.cursor < 0 || v.cursor >= len(v.page.Items) {
		return domain.Symbol{}, false
	}
	return v.page.Items[v.cursor], true
}

// ---------------------------------------------------------------------------
// Notes, analyses, errors
// ---------------------------------------------------------------------------

type notesView struct {
	groups  []dashboard.NoteGroup
	loading bool
	err     error
	cursor  int
}

func (v *notesView) kind() viewKind { return kindNotes }
func (v *notesView) title() string  { return "Notes" }

type analysesView struct {
	pkgs    []domain.AnalysisPackage
	loading bool
	err     error
	cursor  int
}

func (v *analysesView) kind() viewKind { return kindAnalyses }
func (v *analysesView) title() string  { return "Analyses" }

func (v *analysesView) selected() (domain.AnalysisPackage, bool) {
	if v.cursor < 0 || v.cursor >= len(v.pkgs) {
		return domain.AnalysisPackage{}, false
	}
	return v.pkgs[v.cursor], true
}

type errorsView struct {
	entries []domain.ErrorEntry
	loading bool
	err     error
	cursor  int
	cleared *int64 // deleted count of the last clear
}

func (v *errorsView) kind() viewKind { return kindErrors }
func (v *errorsView) title() string  { return "Errors" }

// ---------------------------------------------------------------------------
// Analysis results
// ---------------------------------------------------------------------------

type analysisView struct {
	id            string
	pkg           *domain.AnalysisPackage
	results       []domain.AnalysisResult
	resultsLoaded bool
	notFound      bool
	err           error
	polling       bool
	updates       <-chan analysis.Update // current poller; stale channels are ignored
	cancel        context.CancelFunc

	order     analysis.Order
	weight    float64
	filterIn  analysis.FilterInput
	filter    analysis.Filter
	filterErr error
	rows      []analysis.Row
	cursor    int
}

func newAnalysisView(id string) *analysisView {
	return &analysisView{id: id, order: analysis.DefaultOrder, weight: analysis.DefaultWeight}
}

func (v *analysisView) kind() viewKind { return kindAnalysis }

func (v *analysisView) title() string {
	if v.pkg != nil && v.pkg.Name != "" {
		return v.pkg.Name
	}
	if len(v.id) > 8 {
		return v.id[:8]
	}
	return v.id
}

// recompute rebuilds the visible rows after a change of results, filter,
// order or weight.
func (v *analysisView) recompute() {
	v.rows = analysis.Rows(v.results, v.filter, v.order, v.weight)
	v.cursor = clamp(v.cursor, 0, len(v.rows)-1)
}

func (v *analysisView) stop() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.updates = nil
	v.polling = false
}

// ---------------------------------------------------------------------------
// Symbol detail
// ---------------------------------------------------------------------------

type symbolView struct {
	ticker    string
	packageID string // analysis-specific profile when set
	detail    *gofins.SymbolDetail
	loading   bool
	notFound  bool
	err       error
	ratingErr error
	cursor    int // index into detail.Ratings

	priceInterval domain.Interval // empty while prices are hidden
	prices        []domain.PriceBar
	pricesCached  bool
	pricesLoading bool
	pricesErr     error
}

func (v *symbolView) kind() viewKind { return kindSymbol }
func (v *symbolView) title() string  { return v.ticker }

func (v *symbolView) selectedRating() (domain.UserRating, bool) {
	if v.detail == nil || v.cursor < 0 || v.cursor >= len(v.detail.Ratings) {
		return domain.UserRating{}, false
	}
	return v.detail.Ratings[v.cursor], true
}

// ---------------------------------------------------------------------------
// Tabs
// ---------------------------------------------------------------------------

type tab struct {
	key     string
	view    view
	yOffset int
}

// tabSet keeps permanent tabs first, in insertion order, followed by
// dynamic tabs.
type tabSet struct {
	tabs   []*tab
	active int
}

func (ts *tabSet) current() *tab {
	if len(ts.tabs) == 0 {
		return nil
	}
	return ts.tabs[ts.active]
}

func (ts *tabSet) find(key string) int {
	for i, t := range ts.tabs {
		if t.key == key {
			return i
		}
	}
	return -1
}

func (ts *tabSet) byKey(key string) *tab {
	if i := ts.find(key); i >= 0 {
		return ts.tabs[i]
	}
	return nil
}

// addPermanent inserts a permanent tab after the existing permanent ones.
// Adding a key twice is a no-op.
func (ts *tabSet) addPermanent(key string, v view) *tab {
	if t := ts.byKey(key); t != nil {
		return t
	}
	pos := 0
	for pos < len(ts.tabs) && ts.tabs[pos].view.kind().permanent() {
		pos++
	}
	t := &tab{key: key, view: v}
	ts.tabs = append(ts.tabs, nil)
	copy(ts.tabs[pos+1:], ts.tabs[pos:])
	ts.tabs[pos] = t
	if len(ts.tabs) > 1 && ts.active >= pos {
		ts.active++
	}
	return t
}

// open focuses the tab with key, creating it with mk when absent. It
// reports whether a new tab was created.
func (ts *tabSet) open(key string, mk func() view) (*tab, bool) {
	if i := ts.find(key); i >= 0 {
		ts.active = i
		return ts.tabs[i], false
	}
	t := &tab{key: key, view: mk()}
	ts.tabs = append(ts.tabs, t)
	ts.active = len(ts.tabs) - 1
	return t, true
}

// close removes tab i unless it is permanent. Focus moves to the left
// neighbour.
func (ts *tabSet) close(i int) (*tab, bool) {
	if i < 0 || i >= len(ts.tabs) || ts.tabs[i].view.kind().permanent() {
		return nil, false
	}
	t := ts.tabs[i]
	ts.tabs = append(ts.tabs[:i], ts.tabs[i+1:]...)
	if ts.active >= i && ts.active > 0 {
		ts.active--
	}
	return t, true
}

// move cycles focus by delta, wrapping around.
func (ts *tabSet) move(delta int) {
	n := len(ts.tabs)
	if n == 0 {
		return
	}
	ts.active = ((ts.active+delta)%n + n) % n
}

func (ts *tabSet) focus(i int) bool {
	if i < 0 || i >= len(ts.tabs) {
		return false
	}
	ts.active = i
	return true
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
