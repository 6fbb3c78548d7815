// Package tui is the terminal client: permanent Favorites, Notes, Stocks,
// Analyses and (for admins) Errors tabs, plus analysis, symbol and
// new-analysis tabs opened on demand.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"finsview/internal/analysis"
	"finsview/internal/catalog"
	"finsview/internal/dashboard"
	"finsview/internal/domain"
	"finsview/internal/favorites"
	"finsview/internal/store"
	"finsview/internal/symbollist"
	"finsview/pkg/gofins"
)

// Options wires the model to its services. Search, ViewStates and Prices
// are optional.
type Options struct {
	API          API
	Catalog      *catalog.Catalog
	Lists        *catalog.ListCache
	Search       Searcher
	ViewStates   store.ViewStateStore
	Prices       store.PriceCache
	PageSize     int
	PollInterval time.Duration
	BaseURL      string // shown in the header
	Logger       *slog.Logger
}

// Model is the bubbletea model of the application.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	api     API
	catalog *catalog.Catalog
	lists   *catalog.ListCache
	toggler *favorites.Toggler
	poller  *analysis.Poller
	search  Searcher
	views   store.ViewStateStore
	prices  store.PriceCache
	baseURL string
	log     *slog.Logger

	changes   <-chan catalog.Change
	stopWatch func()

	user     *domain.User
	tabs     tabSet
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	prompt  *prompt
	confirm *confirm
	notice  string // blocking; dismissed by any key
	status  string
}

// New builds the model with the permanent tabs and restores persisted list
// view state.
func New(ctx context.Context, opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	lists := opts.Lists
	if lists == nil {
		lists = catalog.NewListCache()
	}
	ctx, cancel := context.WithCancel(ctx)
	changes, stop := opts.Catalog.Watch(64)

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		api:       opts.API,
		catalog:   opts.Catalog,
		lists:     lists,
		toggler:   favorites.NewToggler(opts.API, opts.Catalog, lists, log),
		poller:    analysis.NewPoller(opts.API, opts.PollInterval, log),
		search:    opts.Search,
		views:     opts.ViewStates,
		prices:    opts.Prices,
		baseURL:   opts.BaseURL,
		log:       log,
		changes:   changes,
		stopWatch: stop,
	}

	fav := newListView(domain.ListFavorites, opts.PageSize)
	stocks := newListView(domain.ListActive, opts.PageSize)
	m.restoreListState(fav)
	m.restoreListState(stocks)
	fav.loading, stocks.loading = true, true

	m.tabs.addPermanent(keyFavorites, fav)
	m.tabs.addPermanent(keyNotes, &notesView{loading: true})
	m.tabs.addPermanent(keyStocks, stocks)
	m.tabs.addPermanent(keyAnalyses, &analysesView{loading: true})
	return m
}

// Close stops background work. It is safe to call more than once.
func (m Model) Close() {
	for _, t := range m.tabs.tabs {
		if v, ok := t.view.(*analysisView); ok {
			v.stop()
		}
	}
	m.stopWatch()
	m.cancel()
}

func (m *Model) restoreListState(v *listView) {
	if m.views == nil {
		return
	}
	var st symbollist.ViewState
	ok, err := m.views.LoadViewState(m.ctx, v.list.Key(), &st)
	if err != nil {
		m.log.Warn("loading view state", "key", v.list.Key(), "error", err)
		return
	}
	if ok {
		v.list.State = st
		m.log.Info("restored view state", "key", v.list.Key())
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadUserCmd(),
		m.loadListCmd(domain.ListFavorites),
		m.loadListCmd(domain.ListActive),
		m.loadNotesCmd(),
		m.loadAnalysesCmd(),
		waitForChange(m.changes),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
		m.refresh()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-3, 1) // header, tab bar, footer
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case userLoadedMsg:
		if msg.err != nil {
			m.log.Warn("loading user", "error", msg.err)
			return m, nil
		}
		m.user = &msg.user
		m.log.Info("user loaded", "name", msg.user.Name, "admin", msg.user.IsAdmin)
		if msg.user.IsAdmin {
			m.tabs.addPermanent(keyErrors, &errorsView{loading: true})
			m.refresh()
			return m, tea.Batch(m.loadErrorsCmd(), errorsTickCmd())
		}
		return m, nil

	case listLoadedMsg:
		v := m.listView(msg.which)
		v.loading = false
		if msg.err != nil {
			m.log.Error("loading symbols", "list", msg.which, "error", msg.err)
			v.err = msg.err
		} else {
			v.err = nil
			v.tickers = msg.tickers
			v.loaded = true
			m.log.Info("symbols loaded", "list", msg.which, "count", len(msg.tickers))
		}
		m.refresh()
		return m, nil

	case catalogChangedMsg:
		if !msg.ok {
			return m, nil
		}
		m.refresh()
		return m, waitForChange(m.changes)

	case notesLoadedMsg:
		v := m.tabs.byKey(keyNotes).view.(*notesView)
		v.loading = false
		v.err = msg.err
		if msg.err == nil {
			v.groups = dashboard.GroupNotes(msg.notes)
		}
		m.refresh()
		return m, nil

	case analysesLoadedMsg:
		v := m.tabs.byKey(keyAnalyses).view.(*analysesView)
		v.loading = false
		v.err = msg.err
		if msg.err == nil {
			v.pkgs = msg.pkgs
			v.cursor = clamp(v.cursor, 0, len(v.pkgs)-1)
		}
		m.refresh()
		return m, nil

	case errorsLoadedMsg:
		if t := m.tabs.byKey(keyErrors); t != nil {
			v := t.view.(*errorsView)
			v.loading = false
			v.err = msg.err
			if msg.err == nil {
				v.entries = msg.entries
				v.cursor = clamp(v.cursor, 0, len(v.entries)-1)
			}
			m.refresh()
		}
		return m, nil

	case errorsClearedMsg:
		if msg.err != nil {
			m.log.Error("clearing error log", "error", msg.err)
			m.notice = "Clearing the error log failed: " + msg.err.Error()
			return m, nil
		}
		m.log.Info("error log cleared", "deleted", msg.deleted)
		if t := m.tabs.byKey(keyErrors); t != nil {
			v := t.view.(*errorsView)
			v.cleared = &msg.deleted
			v.entries = nil
		}
		m.refresh()
		return m, m.loadErrorsCmd()

	case errorsTickMsg:
		if m.tabs.byKey(keyErrors) == nil {
			return m, nil
		}
		return m, tea.Batch(m.loadErrorsCmd(), errorsTickCmd())

	case pollMsg:
		return m, m.handlePoll(msg)

	case symbolLoadedMsg:
		t := m.tabs.byKey(msg.key)
		if t == nil {
			return m, nil
		}
		v := t.view.(*symbolView)
		v.loading = false
		switch {
		case gofins.IsNotFound(msg.err):
			v.notFound = true
		case msg.err != nil:
			m.log.Error("loading symbol", "ticker", v.ticker, "error", msg.err)
			v.err = msg.err
		default:
			v.err, v.notFound = nil, false
			d := msg.detail
			v.detail = &d
			v.cursor = clamp(v.cursor, 0, len(d.Ratings)-1)
		}
		m.refresh()
		return m, nil

	case ratingsLoadedMsg:
		if msg.err != nil {
			m.log.Warn("loading rating history", "ticker", msg.ticker, "error", msg.err)
			return m, nil
		}
		m.applyRatings(msg.ticker, msg.ratings)
		m.refresh()
		return m, nil

	case ratingSubmittedMsg:
		if msg.err != nil {
			m.log.Warn("submitting rating", "ticker", msg.ticker, "error", msg.err)
			m.forSymbolTabs(msg.ticker, func(v *symbolView) { v.ratingErr = msg.err })
			m.refresh()
			return m, nil
		}
		m.log.Info("rating submitted", "ticker", msg.ticker, "rating", msg.rating.Rating)
		m.forSymbolTabs(msg.ticker, func(v *symbolView) { v.ratingErr = nil })
		r := msg.rating.Rating
		m.catalog.UpdateFields(msg.ticker, catalog.SetUserRating(&r), catalog.SetLatestRating(&r))
		return m, tea.Batch(m.loadRatingsCmd(msg.ticker), m.loadNotesCmd())

	case ratingDeletedMsg:
		if msg.err != nil {
			m.log.Error("deleting rating", "ticker", msg.ticker, "id", msg.id, "error", msg.err)
			m.notice = "Deleting the rating failed: " + msg.err.Error()
			return m, nil
		}
		m.log.Info("rating deleted", "ticker", msg.ticker, "id", msg.id)
		return m, tea.Batch(m.loadRatingsCmd(msg.ticker), m.loadNotesCmd())

	case favoriteToggledMsg:
		if msg.err != nil {
			m.status = "favorite toggle failed"
			return m, nil
		}
		if !msg.result.Applied {
			return m, nil
		}
		m.listView(domain.ListFavorites).loading = true
		return m, m.loadListCmd(domain.ListFavorites)

	case pricesLoadedMsg:
		t := m.tabs.byKey(msg.key)
		if t == nil {
			return m, nil
		}
		v := t.view.(*symbolView)
		if v.priceInterval != msg.interval {
			return m, nil
		}
		v.pricesLoading = false
		v.pricesErr = msg.err
		v.prices, v.pricesCached = msg.bars, msg.cached
		m.refresh()
		return m, nil

	case analysisCreatedMsg:
		t := m.tabs.byKey(keyCreate)
		if msg.err != nil {
			m.log.Warn("creating analysis", "error", msg.err)
			if t != nil {
				cv := t.view.(*createView)
				cv.err, cv.submitting = msg.err, false
			}
			m.refresh()
			return m, nil
		}
		m.log.Info("analysis created", "id", msg.resp.PackageID, "status", msg.resp.Status)
		if t != nil {
			m.closeTab(m.tabs.find(keyCreate))
		}
		cmd = m.openAnalysis(msg.resp.PackageID)
		return m, tea.Batch(cmd, m.loadAnalysesCmd())

	case analysisRenamedMsg:
		if msg.err != nil {
			m.log.Warn("renaming analysis", "error", msg.err)
			m.tabs.byKey(keyAnalyses).view.(*analysesView).err = msg.err
			m.refresh()
			return m, nil
		}
		if t := m.tabs.byKey(analysisKey(msg.pkg.ID)); t != nil {
			p := msg.pkg
			t.view.(*analysisView).pkg = &p
		}
		m.refresh()
		return m, m.loadAnalysesCmd()

	case analysisDeletedMsg:
		if msg.err != nil {
			m.log.Error("deleting analysis", "id", msg.id, "error", msg.err)
			m.notice = "Deleting the analysis failed: " + msg.err.Error()
			return m, nil
		}
		m.log.Info("analysis deleted", "id", msg.id)
		if i := m.tabs.find(analysisKey(msg.id)); i >= 0 {
			m.closeTab(i)
		}
		m.refresh()
		return m, m.loadAnalysesCmd()

	case stateSavedMsg:
		if msg.err != nil {
			m.log.Warn("saving view state", "key", msg.key, "error", msg.err)
		}
		return m, nil
	}

	// Cursor blinks and other input-owned messages.
	if m.prompt != nil {
		m.prompt.input, cmd = m.prompt.input.Update(msg)
		return m, cmd
	}
	if t := m.tabs.current(); t != nil {
		if cv, ok := t.view.(*createView); ok {
			return m, cv.updateInput(msg)
		}
	}
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) listView(which domain.SymbolList) *listView {
	key := keyStocks
	if which == domain.ListFavorites {
		key = keyFavorites
	}
	return m.tabs.byKey(key).view.(*listView)
}

func (m *Model) forSymbolTabs(ticker string, fn func(v *symbolView)) {
	for _, t := range m.tabs.tabs {
		if v, ok := t.view.(*symbolView); ok && v.ticker == ticker {
			fn(v)
		}
	}
}

// applyRatings stores a fresh rating history in the open symbol tabs and
// writes the resulting current rating into the catalog, which re-renders
// every list.
func (m *Model) applyRatings(ticker string, ratings []domain.UserRating) {
	m.forSymbolTabs(ticker, func(v *symbolView) {
		if v.detail != nil {
			v.detail.Ratings = ratings
			v.cursor = clamp(v.cursor, 0, len(ratings)-1)
		}
	})
	var r *int
	if cur := domain.CurrentRating(ratings); cur != nil {
		r = domain.Ptr(cur.Rating)
	}
	m.catalog.UpdateFields(ticker, catalog.SetUserRating(r), catalog.SetLatestRating(r))
}

func (m *Model) handlePoll(msg pollMsg) tea.Cmd {
	t := m.tabs.byKey(analysisKey(msg.id))
	if t == nil {
		return nil
	}
	v := t.view.(*analysisView)
	if v.updates != msg.ch {
		return nil
	}
	if !msg.ok {
		v.polling = false
		v.updates = nil
		m.refresh()
		return m.loadAnalysesCmd()
	}

	u := msg.update
	switch {
	case u.NotFound:
		v.notFound = true
	case u.Err != nil:
		v.err = u.Err
	}
	if u.Package != nil {
		v.pkg = u.Package
		v.err = nil
	}
	if u.ResultsLoaded {
		v.results = u.Results
		v.resultsLoaded = true
		v.recompute()
	}
	m.refresh()
	return waitForPoll(msg.id, msg.ch)
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

func (m *Model) quit() tea.Cmd {
	m.Close()
	return tea.Quit
}

func (m *Model) switchTab(fn func()) {
	if t := m.tabs.current(); t != nil && m.ready {
		t.yOffset = m.viewport.YOffset
	}
	fn()
	m.refresh()
	if t := m.tabs.current(); t != nil && m.ready {
		m.viewport.SetYOffset(t.yOffset)
	}
}

func (m *Model) closeTab(i int) {
	t, ok := m.tabs.close(i)
	if !ok {
		return
	}
	if v, ok := t.view.(*analysisView); ok {
		v.stop()
	}
	if m.ready {
		if cur := m.tabs.current(); cur != nil {
			m.viewport.SetYOffset(cur.yOffset)
		}
	}
}

// openAnalysis focuses or creates the tab of analysis id and starts its
// poller when the tab is new.
func (m *Model) openAnalysis(id string) tea.Cmd {
	var created bool
	var t *tab
	m.switchTab(func() {
		t, created = m.tabs.open(analysisKey(id), func() view { return newAnalysisView(id) })
	})
	if !created {
		return nil
	}
	return m.startPolling(t.view.(*analysisView))
}

// openSymbol focuses or creates a symbol tab. packageID selects the
// analysis-specific profile.
func (m *Model) openSymbol(ticker, packageID string) tea.Cmd {
	key := symbolKey(ticker, packageID)
	var created bool
	m.switchTab(func() {
		_, created = m.tabs.open(key, func() view {
			return &symbolView{ticker: ticker, packageID: packageID, loading: true}
		})
	})
	if !created {
		return nil
	}
	return m.loadSymbolCmd(key, ticker, packageID)
}

func (m *Model) openCreate() tea.Cmd {
	m.switchTab(func() {
		m.tabs.open(keyCreate, func() view { return newCreateView() })
	})
	return textinput.Blink
}

func (m *Model) openPrompt(label, value string, onSubmit func(m *Model, value string) tea.Cmd) tea.Cmd {
	m.prompt = newPrompt(label, value, onSubmit)
	return textinput.Blink
}

func (m *Model) ask(question string, onYes func(m *Model) tea.Cmd) {
	m.confirm = &confirm{question: question, onYes: onYes}
}

// gotoSymbol opens the symbol matching query: an exact ticker first, then
// the best quick-search hit.
func (m *Model) gotoSymbol(query string) tea.Cmd {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	if t := strings.ToUpper(q); m.catalog.Has(t) {
		return m.openSymbol(t, "")
	}
	if m.search == nil {
		return m.openSymbol(strings.ToUpper(q), "")
	}
	hits, err := m.search.Search(q, 10)
	if err != nil {
		m.log.Warn("searching symbols", "query", q, "error", err)
		m.status = "search failed"
		return nil
	}
	if len(hits) == 0 {
		m.status = fmt.Sprintf("no symbol matches %q", q)
		return nil
	}
	if len(hits) > 1 {
		m.status = "also: " + strings.Join(hits[1:min(len(hits), 6)], " ")
	}
	return m.openSymbol(hits[0], "")
}

// refreshCurrent reloads whatever the focused tab shows.
func (m *Model) refreshCurrent() tea.Cmd {
	t := m.tabs.current()
	switch v := t.view.(type) {
	case *listView:
		v.loading = true
		if m.lists != nil {
			m.lists.Invalidate(v.which.Endpoint())
		}
		return m.loadListCmd(v.which)
	case *notesView:
		v.loading = true
		return m.loadNotesCmd()
	case *analysesView:
		v.loading = true
		return m.loadAnalysesCmd()
	case *errorsView:
		v.loading = true
		return m.loadErrorsCmd()
	case *analysisView:
		v.err, v.notFound = nil, false
		return m.startPolling(v)
	case *symbolView:
		v.loading = true
		cmds := []tea.Cmd{m.loadSymbolCmd(t.key, v.ticker, v.packageID)}
		if v.priceInterval != "" {
			v.pricesLoading = true
			cmds = append(cmds, m.loadPricesCmd(t.key, v.ticker, v.priceInterval))
		}
		return tea.Batch(cmds...)
	case *createView:
		return nil
	}
	return nil
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}
	if m.notice != "" {
		m.notice = ""
		return nil
	}
	if c := m.confirm; c != nil {
		switch key {
		case "y", "Y", "enter":
			m.confirm = nil
			return c.onYes(m)
		case "n", "N", "esc", "q":
			m.confirm = nil
		}
		return nil
	}
	if p := m.prompt; p != nil {
		switch key {
		case "esc":
			m.prompt = nil
			return nil
		case "enter":
			m.prompt = nil
			return p.onSubmit(m, p.input.Value())
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return cmd
	}

	t := m.tabs.current()
	if cv, ok := t.view.(*createView); ok {
		return m.createKey(cv, msg)
	}

	m.status = ""
	switch key {
	case "q":
		return m.quit()
	case "tab":
		m.switchTab(func() { m.tabs.move(1) })
		return nil
	case "shift+tab":
		m.switchTab(func() { m.tabs.move(-1) })
		return nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(key[0] - '1')
		m.switchTab(func() { m.tabs.focus(i) })
		return nil
	case "x":
		m.closeTab(m.tabs.active)
		return nil
	case "g":
		return m.openPrompt("Go to symbol", "", func(m *Model, v string) tea.Cmd { return m.gotoSymbol(v) })
	case "r":
		return m.refreshCurrent()
	case "n":
		return m.openCreate()
	}

	switch v := t.view.(type) {
	case *listView:
		return m.listKey(v, key)
	case *notesView:
		return m.notesKey(v, key)
	case *analysesView:
		return m.analysesKey(v, key)
	case *errorsView:
		return m.errorsKey(v, key)
	case *analysisView:
		return m.analysisKey(v, key)
	case *symbolView:
		return m.symbolKey(t.key, v, key)
	case *createView:
		return nil
	}
	return nil
}

// moveCursor applies a navigation key to cur over n items.
func (m *Model) moveCursor(cur, n int, key string) (int, bool) {
	page := max(m.viewport.Height-1, 1)
	switch key {
	case "up", "k":
		cur--
	case "down", "j":
		cur++
	case "pgup":
		cur -= page
	case "pgdown":
		cur += page
	case "home":
		cur = 0
	case "end":
		cur = n - 1
	default:
		return cur, false
	}
	return clamp(cur, 0, n-1), true
}

func (m *Model) listKey(v *listView, key string) tea.Cmd {
	if cur, ok := m.moveCursor(v.cursor, len(v.page.Items), key); ok {
		v.cursor = cur
		return nil
	}
	switch key {
	case "left", "h":
		v.list.PrevPage()
		v.cursor = 0
	case "right", "l":
		v.list.NextPage()
		v.cursor = 0
	case "/":
		return m.openPrompt("Search", v.list.State.SearchTerm, func(m *Model, s string) tea.Cmd {
			v.list.SetSearch(strings.TrimSpace(s))
			v.cursor = 0
			return m.saveListStateCmd(v)
		})
	case "f":
		return m.openPrompt("Filter", formatListFilter(v.list.State), func(m *Model, s string) tea.Cmd {
			st, err := parseListFilter(v.list.State, s)
			if err != nil {
				v.err = err
				return nil
			}
			v.err = nil
			v.list.State = st
			return m.saveListStateCmd(v)
		})
	case "c":
		v.list.ClearFilters()
		v.cursor = 0
		return m.saveListStateCmd(v)
	case "s":
		v.list.ToggleSort(nextColumn(v.list.State.Sort().Column))
		return m.saveListStateCmd(v)
	case "S":
		v.list.ToggleSort(v.list.State.Sort().Column)
		return m.saveListStateCmd(v)
	case " ":
		if s, ok := v.selected(); ok {
			return m.toggleFavoriteCmd(s.Ticker)
		}
	case "enter":
		if s, ok := v.selected(); ok {
			return m.openSymbol(s.Ticker, "")
		}
	}
	return nil
}

func nextColumn(c symbollist.Column) symbollist.Column {
	for i, col := range symbollist.Columns {
		if col == c {
			return symbollist.Columns[(i+1)%len(symbollist.Columns)]
		}
	}
	return symbollist.DefaultSort.Column
}

func nextField(f analysis.Field) analysis.Field {
	for i, x := range analysis.Fields {
		if x == f {
			return analysis.Fields[(i+1)%len(analysis.Fields)]
		}
	}
	return analysis.DefaultOrder.Field
}

func (m *Model) notesKey(v *notesView, key string) tea.Cmd {
	if cur, ok := m.moveCursor(v.cursor, len(v.groups), key); ok {
		v.cursor = cur
		return nil
	}
	if v.cursor >= len(v.groups) {
		return nil
	}
	ticker := v.groups[v.cursor].Ticker
	switch key {
	case " ":
		return m.toggleFavoriteCmd(ticker)
	case "enter":
		return m.openSymbol(ticker, "")
	}
	return nil
}

func (m *Model) analysesKey(v *analysesView, key string) tea.Cmd {
	if cur, ok := m.moveCursor(v.cursor, len(v.pkgs), key); ok {
		v.cursor = cur
		return nil
	}
	pkg, ok := v.selected()
	if !ok {
		return nil
	}
	switch key {
	case "enter":
		return m.openAnalysis(pkg.ID)
	case "R":
		return m.renamePrompt(pkg)
	case "d":
		m.confirmDeleteAnalysis(pkg)
	}
	return nil
}

func (m *Model) renamePrompt(pkg domain.AnalysisPackage) tea.Cmd {
	return m.openPrompt("Rename", pkg.Name, func(m *Model, s string) tea.Cmd {
		name := strings.TrimSpace(s)
		if name == "" {
			m.tabs.byKey(keyAnalyses).view.(*analysesView).err = &gofins.ValidationError{Field: "name", Message: "Name cannot be empty"}
			return nil
		}
		return m.renameAnalysisCmd(pkg.ID, name)
	})
}

func (m *Model) confirmDeleteAnalysis(pkg domain.AnalysisPackage) {
	m.ask(fmt.Sprintf("Delete analysis %q?", pkg.Name), func(m *Model) tea.Cmd {
		return m.deleteAnalysisCmd(pkg.ID)
	})
}

func (m *Model) errorsKey(v *errorsView, key string) tea.Cmd {
	if cur, ok := m.moveCursor(v.cursor, len(v.entries), key); ok {
		v.cursor = cur
		return nil
	}
	if key == "c" {
		m.ask(fmt.Sprintf("Clear all %d error log entries?", len(v.entries)), func(m *Model) tea.Cmd {
			return m.clearErrorsCmd()
		})
	}
	return nil
}

func (m *Model) analysisKey(v *analysisView, key string) tea.Cmd {
	if cur, ok := m.moveCursor(v.cursor, len(v.rows), key); ok {
		v.cursor = cur
		return nil
	}
	switch key {
	case "s":
		v.order = v.order.Toggle(nextField(v.order.Field))
		v.recompute()
	case "S":
		v.order = v.order.Toggle(v.order.Field)
		v.recompute()
	case "w", "W":
		step := 0.1
		if key == "w" {
			step = -0.1
		}
		v.weight = min(max(float64(int((v.weight+step)*10+0.5))/10, 0), 1)
		v.recompute()
	case "f":
		return m.openPrompt("Filter", formatResultsFilter(v.filterIn), func(m *Model, s string) tea.Cmd {
			in, f, err := parseResultsFilter(s)
			if err != nil {
				v.filterErr = err
				return nil
			}
			v.filterErr = nil
			v.filterIn, v.filter = in, f
			v.recompute()
			return nil
		})
	case "enter":
		if v.cursor < len(v.rows) {
			return m.openSymbol(v.rows[v.cursor].Symbol, v.id)
		}
	case "R":
		if v.pkg != nil {
			return m.renamePrompt(*v.pkg)
		}
	case "d":
		if v.pkg != nil {
			m.confirmDeleteAnalysis(*v.pkg)
		}
	}
	return nil
}

func (m *Model) symbolKey(tabKey string, v *symbolView, key string) tea.Cmd {
	n := 0
	if v.detail != nil {
		n = len(v.detail.Ratings)
	}
	if cur, ok := m.moveCursor(v.cursor, n, key); ok {
		v.cursor = cur
		return nil
	}
	switch key {
	case " ":
		return m.toggleFavoriteCmd(v.ticker)
	case "a":
		return m.openPrompt("Rating -5..5 and notes", "", func(m *Model, s string) tea.Cmd {
			rating, notes, err := parseRatingInput(s)
			if err != nil {
				v.ratingErr = err
				return nil
			}
			v.ratingErr = nil
			return m.submitRatingCmd(v.ticker, rating, notes)
		})
	case "d":
		r, ok := v.selectedRating()
		if !ok {
			return nil
		}
		m.ask(fmt.Sprintf("Delete %s rating %s from %s?", r.Ticker, dashboard.FormatRating(&r.Rating), dashboard.FormatDay(r.CreatedAt)), func(m *Model) tea.Cmd {
			return m.deleteRatingCmd(r.Ticker, r.ID)
		})
	case "p":
		switch v.priceInterval {
		case "":
			v.priceInterval = domain.IntervalMonthly
		case domain.IntervalMonthly:
			v.priceInterval = domain.IntervalWeekly
		default:
			v.priceInterval = ""
			v.prices = nil
			return nil
		}
		v.prices, v.pricesErr, v.pricesLoading = nil, nil, true
		return m.loadPricesCmd(tabKey, v.ticker, v.priceInterval)
	}
	return nil
}

func (m *Model) createKey(v *createView, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.closeTab(m.tabs.active)
		return nil
	case "tab", "down":
		return v.setFocus(v.focus + 1)
	case "shift+tab", "up":
		return v.setFocus(v.focus - 1)
	case "enter":
		if v.submitting {
			return nil
		}
		req, err := v.form().Request()
		if err != nil {
			v.err = err
			return nil
		}
		v.err, v.submitting = nil, true
		return m.createAnalysisCmd(req)
	}
	return v.updateInput(msg)
}

// errorText renders err for inline display, preferring the validation
// message when there is one.
func errorText(err error) string {
	var verr *gofins.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}
