package tui

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"finsview/internal/catalog"
	"finsview/internal/domain"
	"finsview/internal/httpapi"
	"finsview/internal/symbollist"
	"finsview/pkg/gofins"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestModel wires a model to the in-memory backend and gives it a
// terminal size.
func newTestModel(t *testing.T) (Model, *gofins.Client) {
	t.Helper()
	data := httpapi.NewBackend(httpapi.BackendOptions{Admin: true}, quietLogger())
	ts := httptest.NewServer(httpapi.NewServer(data, httpapi.Options{}, quietLogger()).Handler())
	t.Cleanup(ts.Close)

	client := gofins.NewClient(gofins.Options{BaseURL: ts.URL + "/api", Retries: 1, Logger: quietLogger()})
	m := New(context.Background(), Options{
		API:          client,
		Catalog:      catalog.New(quietLogger()),
		PollInterval: 10 * time.Millisecond,
		Logger:       quietLogger(),
	})
	t.Cleanup(m.Close)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 180, Height: 40})
	return m, client
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = update(t, m, keyMsg(k))
	}
	return m, cmd
}

// run executes cmd and feeds its message back, following the chain while
// the next command yields a message of the same type.
func run(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(t, m, cmd())
}

// ---------------------------------------------------------------------------
// Tabs
// ---------------------------------------------------------------------------

func TestTabSetOpenFocusesExisting(t *testing.T) {
	var ts tabSet
	ts.addPermanent(keyFavorites, &listView{which: domain.ListFavorites})
	ts.addPermanent(keyNotes, &notesView{})

	_, created := ts.open(symbolKey("AAPL", ""), func() view { return &symbolView{ticker: "AAPL"} })
	if !created || ts.active != 2 {
		t.Fatalf("open = created %v, active %d; want new tab at 2", created, ts.active)
	}
	ts.focus(0)
	_, created = ts.open(symbolKey("AAPL", ""), func() view { return &symbolView{ticker: "AAPL"} })
	if created || ts.active != 2 || len(ts.tabs) != 3 {
		t.Errorf("reopen = created %v, active %d, %d tabs; want focus on existing", created, ts.active, len(ts.tabs))
	}
}

func TestTabSetPermanentOrdering(t *testing.T) {
	var ts tabSet
	ts.addPermanent(keyFavorites, &listView{which: domain.ListFavorites})
	ts.open(analysisKey("p1"), func() view { return newAnalysisView("p1") })
	ts.addPermanent(keyErrors, &errorsView{})

	var keys []string
	for _, tb := range ts.tabs {
		keys = append(keys, tb.key)
	}
	if got := strings.Join(keys, ","); got != "favorites,errors,analysis/p1" {
		t.Errorf("tab order = %s", got)
	}
	if ts.current().key != analysisKey("p1") {
		t.Errorf("active tab = %s, want analysis/p1 to stay focused", ts.current().key)
	}

	if _, ok := ts.close(0); ok {
		t.Error("closed a permanent tab")
	}
	if _, ok := ts.close(2); !ok || len(ts.tabs) != 2 || ts.active != 1 {
		t.Errorf("close dynamic: ok=%v tabs=%d active=%d", ok, len(ts.tabs), ts.active)
	}
	ts.move(1)
	if ts.active != 0 {
		t.Errorf("move wraps to %d, want 0", ts.active)
	}
}

func TestViewKindPermanence(t *testing.T) {
	for k := kindFavorites; k <= kindCreate; k++ {
		want := k <= kindErrors
		if k.permanent() != want {
			t.Errorf("kind %d permanent = %v, want %v", k, k.permanent(), want)
		}
	}
}

// ---------------------------------------------------------------------------
// Filter expressions
// ---------------------------------------------------------------------------

func TestParseListFilter(t *testing.T) {
	base := symbollist.ViewState{SearchTerm: "app", SortColumn: symbollist.ColMarketCap, SortDirection: symbollist.Desc, SectorFilter: "Energy"}

	st, err := parseListFilter(base, "exchange=NYSE, sector=Consumer Defensive, mcap=10..500, inception=..2000, rating=3, fav")
	if err != nil {
		t.Fatalf("parseListFilter: %v", err)
	}
	if st.SearchTerm != "app" || st.SortColumn != symbollist.ColMarketCap {
		t.Errorf("search/sort not kept: %+v", st)
	}
	if st.ExchangeFilter != "NYSE" || st.SectorFilter != "Consumer Defensive" {
		t.Errorf("exact filters = %q, %q", st.ExchangeFilter, st.SectorFilter)
	}
	if st.McapMin != "10" || st.McapMax != "500" || st.InceptionMin != "" || st.InceptionMax != "2000" {
		t.Errorf("ranges = %+v", st)
	}
	if st.RatingMin != "3" || st.RatingMax != "3" || !st.FavoritesOnly || st.RatedOnly {
		t.Errorf("rating/flags = %+v", st)
	}

	f := st.Filter()
	if f.McapMin == nil || *f.McapMin != 10e9 {
		t.Errorf("McapMin = %v, want 1e10", f.McapMin)
	}

	if got := formatListFilter(st); got != "exchange=NYSE, sector=Consumer Defensive, mcap=10..500, inception=..2000, rating=3, fav" {
		t.Errorf("formatListFilter = %q", got)
	}

	cleared, err := parseListFilter(st, "")
	if err != nil || !cleared.Active() || cleared.SectorFilter != "" {
		t.Errorf("empty filter: %+v, %v; want only the search term left", cleared, err)
	}
}

func TestParseListFilterErrors(t *testing.T) {
	for _, expr := range []string{"color=red", "mcap=ten..20", "rating=..x"} {
		if _, err := parseListFilter(symbollist.DefaultViewState(), expr); !gofins.IsValidation(err) {
			t.Errorf("%q: err = %v, want ValidationError", expr, err)
		}
	}
}

func TestParseResultsFilter(t *testing.T) {
	in, f, err := parseResultsFilter("mean=6.., stddev=..3, inception=2005..2010")
	if err != nil {
		t.Fatalf("parseResultsFilter: %v", err)
	}
	if f.MeanMin == nil || *f.MeanMin != 6 || f.MeanMax != nil {
		t.Errorf("mean bounds = %v, %v", f.MeanMin, f.MeanMax)
	}
	if f.StdDevMax == nil || *f.StdDevMax != 3 {
		t.Errorf("StdDevMax = %v", f.StdDevMax)
	}
	if want := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC); f.InceptionTo == nil || !f.InceptionTo.Equal(want) {
		t.Errorf("InceptionTo = %v, want %v", f.InceptionTo, want)
	}
	if got := formatResultsFilter(in); got != "inception=2005..2010, mean=6.., stddev=..3" {
		t.Errorf("formatResultsFilter = %q", got)
	}

	if _, _, err := parseResultsFilter("median=3"); err == nil {
		t.Error("unknown field accepted")
	}
}

func TestParseRatingInput(t *testing.T) {
	tests := []struct {
		in      string
		rating  int
		notes   string
		wantErr bool
	}{
		{"+4 strong quarter", 4, "strong quarter", false},
		{"-5", -5, "", false},
		{"0   flat ", 0, "flat", false},
		{"6", 0, "", true},
		{"good", 0, "", true},
		{"", 0, "", true},
	}
	for _, tt := range tests {
		rating, notes, err := parseRatingInput(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if rating != tt.rating || notes != tt.notes {
			t.Errorf("%q = %d, %q; want %d, %q", tt.in, rating, notes, tt.rating, tt.notes)
		}
	}
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

func TestListLoadAndOpenSymbol(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, m.loadListCmd(domain.ListActive)())
	stocks := m.listView(domain.ListActive)
	if !stocks.loaded || len(stocks.tickers) == 0 {
		t.Fatalf("stocks not loaded: %+v", stocks)
	}
	if !m.catalog.Has("MSFT") {
		t.Error("catalog missing MSFT after list load")
	}

	m, _ = press(t, m, "3")
	if m.tabs.current().key != keyStocks {
		t.Fatalf("focused %s, want stocks", m.tabs.current().key)
	}
	if !strings.Contains(m.viewport.View(), "AAPL") {
		t.Error("stocks page does not show AAPL")
	}

	m, cmd := press(t, m, "enter")
	m, _ = run(t, m, cmd)
	cur := m.tabs.current()
	if cur.key != symbolKey("AAPL", "") {
		t.Fatalf("focused %s, want symbol/AAPL", cur.key)
	}
	sv := cur.view.(*symbolView)
	if sv.detail == nil || sv.detail.Profile.Ticker != "AAPL" {
		t.Fatalf("symbol detail not loaded: %+v", sv)
	}

	n := len(m.tabs.tabs)
	m, _ = press(t, m, "3")
	m, cmd = press(t, m, "enter")
	if cmd != nil || len(m.tabs.tabs) != n || m.tabs.current().key != symbolKey("AAPL", "") {
		t.Errorf("reopening created a tab: %d tabs, focused %s", len(m.tabs.tabs), m.tabs.current().key)
	}
}

func TestSearchResetsPage(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, m.loadListCmd(domain.ListActive)())
	m, _ = press(t, m, "3")

	stocks := m.listView(domain.ListActive)
	stocks.list.Page = 2
	m, _ = press(t, m, "/")
	if m.prompt == nil {
		t.Fatal("search prompt not open")
	}
	m.prompt.onSubmit(&m, "nestl")
	m.prompt = nil
	m.refresh()
	if stocks.list.Page != 1 || stocks.list.State.SearchTerm != "nestl" {
		t.Errorf("after search: page %d, term %q", stocks.list.Page, stocks.list.State.SearchTerm)
	}
	if len(stocks.page.Items) != 1 || stocks.page.Items[0].Ticker != "NESN" {
		t.Errorf("search rows = %v, want NESN", stocks.page.Items)
	}
}

func TestRatingSubmitUpdatesCatalog(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, m.loadListCmd(domain.ListActive)())
	m, _ = run(t, m, m.openSymbol("KO", ""))

	sv := m.tabs.current().view.(*symbolView)
	m, _ = press(t, m, "a")
	if m.prompt == nil {
		t.Fatal("rating prompt not open")
	}
	if cmd := m.prompt.onSubmit(&m, "9 too high"); cmd != nil || !gofins.IsValidation(sv.ratingErr) {
		t.Fatalf("out-of-range rating: cmd=%v err=%v", cmd != nil, sv.ratingErr)
	}
	cmd := m.prompt.onSubmit(&m, "3 steady dividend")
	m.prompt = nil
	m, _ = run(t, m, cmd)

	ko, _ := m.catalog.Get("KO")
	if ko.UserRating == nil || *ko.UserRating != 3 {
		t.Errorf("catalog rating = %v, want 3", ko.UserRating)
	}
	if sv.ratingErr != nil {
		t.Errorf("ratingErr = %v after success", sv.ratingErr)
	}
}

func TestFavoriteToggleReloadsFavorites(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, m.loadListCmd(domain.ListActive)())
	m, _ = run(t, m, m.openSymbol("AAPL", ""))

	m, cmd := press(t, m, " ")
	m, cmd = run(t, m, cmd)
	if aapl, _ := m.catalog.Get("AAPL"); aapl.Favorite() {
		t.Error("AAPL still a favorite after toggle")
	}
	m, _ = run(t, m, cmd)
	for _, tk := range m.listView(domain.ListFavorites).tickers {
		if tk == "AAPL" {
			t.Error("favorites list still contains AAPL")
		}
	}
}

func TestAnalysisPollingLoadsResults(t *testing.T) {
	m, client := newTestModel(t)
	pkgs, err := client.ListAnalyses(context.Background())
	if err != nil || len(pkgs) == 0 {
		t.Fatalf("ListAnalyses = %d, %v", len(pkgs), err)
	}
	id := pkgs[0].ID

	cmd := m.openAnalysis(id)
	for i := 0; i < 10 && cmd != nil; i++ {
		msg := cmd()
		if _, ok := msg.(pollMsg); !ok {
			break
		}
		m, cmd = update(t, m, msg)
	}

	v := m.tabs.byKey(analysisKey(id)).view.(*analysisView)
	if !v.resultsLoaded || len(v.rows) == 0 {
		t.Fatalf("results not loaded: loaded=%v rows=%d err=%v", v.resultsLoaded, len(v.rows), v.err)
	}
	if v.polling {
		t.Error("still polling after results")
	}
	for i := 1; i < len(v.rows); i++ {
		if v.rows[i-1].Score < v.rows[i].Score {
			t.Fatalf("rows not ordered by score desc at %d", i)
		}
	}

	m, _ = press(t, m, "f")
	m.prompt.onSubmit(&m, "mean=1000..")
	m.prompt = nil
	if len(v.rows) != 0 {
		t.Errorf("rows = %d with impossible mean floor", len(v.rows))
	}
}

func TestMissingAnalysisShowsNotFound(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := m.openAnalysis("nope")
	m, _ = update(t, m, cmd())

	v := m.tabs.current().view.(*analysisView)
	if !v.notFound {
		t.Fatalf("notFound = false, err = %v", v.err)
	}
	if !strings.Contains(m.viewport.View(), "not found") {
		t.Error("view does not say not found")
	}
}

func TestDeleteAnalysisNeedsConfirmation(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, m.loadAnalysesCmd()())
	av := m.tabs.byKey(keyAnalyses).view.(*analysesView)
	n := len(av.pkgs)
	if n == 0 {
		t.Fatal("no analyses seeded")
	}

	m, _ = press(t, m, "4", "d")
	if m.confirm == nil {
		t.Fatal("delete did not ask for confirmation")
	}
	m, cmd := press(t, m, "n")
	if cmd != nil || m.confirm != nil {
		t.Fatal("declining still deleted")
	}

	m, _ = press(t, m, "d")
	m, cmd = press(t, m, "y")
	m, cmd = run(t, m, cmd)
	m, _ = run(t, m, cmd)
	if len(av.pkgs) != n-1 {
		t.Errorf("analyses = %d after delete, want %d", len(av.pkgs), n-1)
	}
}

func TestRenameRejectsEmptyName(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, m.loadAnalysesCmd()())
	m, _ = press(t, m, "4", "R")
	if m.prompt == nil {
		t.Fatal("rename prompt not open")
	}
	if cmd := m.prompt.onSubmit(&m, "   "); cmd != nil {
		t.Error("empty name was submitted")
	}
	if av := m.tabs.byKey(keyAnalyses).view.(*analysesView); !gofins.IsValidation(av.err) {
		t.Errorf("err = %v, want ValidationError", av.err)
	}
}

func TestCreateFormValidatesBeforeSubmit(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "n")
	cv, ok := m.tabs.current().view.(*createView)
	if !ok {
		t.Fatalf("focused %T, want create form", m.tabs.current().view)
	}

	m, cmd := press(t, m, "enter")
	if cmd != nil || cv.err == nil || errorText(cv.err) != "Analysis name is required" {
		t.Fatalf("blank name: cmd=%v err=%v", cmd != nil, cv.err)
	}

	m, _ = press(t, m, "Q", "1")
	if got := cv.fields[0].input.Value(); got != "Q1" {
		t.Fatalf("name field = %q", got)
	}
	m, cmd = press(t, m, "enter")
	m, cmd = run(t, m, cmd)
	if m.tabs.byKey(keyCreate) != nil {
		t.Error("create tab still open after success")
	}
	if !strings.HasPrefix(m.tabs.current().key, "analysis/") {
		t.Errorf("focused %s, want the new analysis", m.tabs.current().key)
	}
	if cmd == nil {
		t.Error("expected polling and list reload commands")
	}
}

func TestAdminGetsErrorsTab(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := update(t, m, m.loadUserCmd()())
	if m.tabs.byKey(keyErrors) == nil {
		t.Fatal("errors tab missing for admin")
	}
	if cmd == nil {
		t.Error("expected errors load and refresh tick")
	}
	m, _ = update(t, m, m.loadErrorsCmd()())
	ev := m.tabs.byKey(keyErrors).view.(*errorsView)
	if len(ev.entries) == 0 {
		t.Fatal("no error entries loaded")
	}

	m, _ = press(t, m, "5", "c")
	if m.confirm == nil {
		t.Fatal("clear did not ask for confirmation")
	}
	m, cmd = press(t, m, "y")
	m, _ = run(t, m, cmd)
	if ev.cleared == nil || *ev.cleared == 0 {
		t.Errorf("cleared = %v", ev.cleared)
	}
}

func TestViewRendersChrome(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"finsview", "Favorites", "Notes", "Stocks", "Analyses", "q quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}
