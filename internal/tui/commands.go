package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"finsview/internal/analysis"
	"finsview/internal/catalog"
	"finsview/internal/domain"
	"finsview/internal/favorites"
	"finsview/internal/store"
	"finsview/pkg/gofins"
)

// API is the part of the backend client the application drives.
type API interface {
	ListSymbols(ctx context.Context, list domain.SymbolList) ([]domain.Symbol, error)
	LoadSymbolDetail(ctx context.Context, ticker, packageID string) (gofins.SymbolDetail, error)
	ToggleFavorite(ctx context.Context, ticker string) (bool, error)
	RatingHistory(ctx context.Context, ticker string) ([]domain.UserRating, error)
	SubmitRating(ctx context.Context, ticker string, rating int, notes string) (domain.UserRating, error)
	DeleteRating(ctx context.Context, id int64) error
	ListNotes(ctx context.Context) ([]domain.Note, error)
	ListAnalyses(ctx context.Context) ([]domain.AnalysisPackage, error)
	GetAnalysis(ctx context.Context, id string) (domain.AnalysisPackage, error)
	AnalysisResults(ctx context.Context, id string) ([]domain.AnalysisResult, error)
	CreateAnalysis(ctx context.Context, req domain.CreateAnalysisRequest) (domain.CreateAnalysisResponse, error)
	RenameAnalysis(ctx context.Context, id, name string) (domain.AnalysisPackage, error)
	DeleteAnalysis(ctx context.Context, id string) error
	PriceHistory(ctx context.Context, interval domain.Interval, ticker string) ([]domain.PriceBar, error)
	ListErrors(ctx context.Context) ([]domain.ErrorEntry, error)
	ClearErrors(ctx context.Context) (int64, error)
	CurrentUser(ctx context.Context) (domain.User, error)
	ImageURL(path string) string
}

var _ API = (*gofins.Client)(nil)

// Searcher resolves free text to tickers. *search.Index satisfies it.
type Searcher interface {
	Search(query string, limit int) ([]string, error)
}

// errorsRefreshInterval is how often the admin error log reloads.
const errorsRefreshInterval = 30 * time.Second

// Messages.
type userLoadedMsg struct {
	user domain.User
	err  error
}

type listLoadedMsg struct {
	which   domain.SymbolList
	tickers []string
	err     error
}

type notesLoadedMsg struct {
	notes []domain.Note
	err   error
}

type analysesLoadedMsg struct {
	pkgs []domain.AnalysisPackage
	err  error
}

type errorsLoadedMsg struct {
	entries []domain.ErrorEntry
	err     error
}

type errorsClearedMsg struct {
	deleted int64
	err     error
}

type errorsTickMsg time.Time

type catalogChangedMsg struct {
	change catalog.Change
	ok     bool
}

type pollMsg struct {
	id     string
	update analysis.Update
	ch     <-chan analysis.Update
	ok     bool
}

type symbolLoadedMsg struct {
	key    string
	detail gofins.SymbolDetail
	err    error
}

type ratingsLoadedMsg struct {
	ticker  string
	ratings []domain.UserRating
	err     error
}

type ratingSubmittedMsg struct {
	ticker string
	rating domain.UserRating
	err    error
}

type ratingDeletedMsg struct {
	ticker string
	id     int64
	err    error
}

type favoriteToggledMsg struct {
	result favorites.Result
	err    error
}

type pricesLoadedMsg struct {
	key      string
	interval domain.Interval
	bars     []domain.PriceBar
	cached   bool
	err      error
}

type analysisCreatedMsg struct {
	resp domain.CreateAnalysisResponse
	err  error
}

type analysisRenamedMsg struct {
	pkg domain.AnalysisPackage
	err error
}

type analysisDeletedMsg struct {
	id  string
	err error
}

type stateSavedMsg struct {
	key string
	err error
}

func errorsTickCmd() tea.Cmd {
	return tea.Tick(errorsRefreshInterval, func(t time.Time) tea.Msg {
		return errorsTickMsg(t)
	})
}

// waitForChange delivers the next catalog change set.
func waitForChange(ch <-chan catalog.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		change, ok := <-ch
		return catalogChangedMsg{change: change, ok: ok}
	}
}

// waitForPoll delivers the next poller update for id.
func waitForPoll(id string, ch <-chan analysis.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		return pollMsg{id: id, update: u, ch: ch, ok: ok}
	}
}

func (m *Model) loadUserCmd() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		u, err := api.CurrentUser(ctx)
		return userLoadedMsg{user: u, err: err}
	}
}

// loadListCmd fetches a collection, merges it into the catalog and records
// its ticker order.
func (m *Model) loadListCmd(which domain.SymbolList) tea.Cmd {
	api, ctx, cat, lists := m.api, m.ctx, m.catalog, m.lists
	return func() tea.Msg {
		symbols, err := api.ListSymbols(ctx, which)
		if err != nil {
			return listLoadedMsg{which: which, err: err}
		}
		cat.BulkUpsert(symbols)
		tickers := make([]string, len(symbols))
		for i, s := range symbols {
			tickers[i] = s.Ticker
		}
		if lists != nil {
			lists.Put(which.Endpoint(), tickers)
		}
		return listLoadedMsg{which: which, tickers: tickers}
	}
}

func (m *Model) loadNotesCmd() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		notes, err := api.ListNotes(ctx)
		return notesLoadedMsg{notes: notes, err: err}
	}
}

func (m *Model) loadAnalysesCmd() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		pkgs, err := api.ListAnalyses(ctx)
		return analysesLoadedMsg{pkgs: pkgs, err: err}
	}
}

func (m *Model) loadErrorsCmd() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		entries, err := api.ListErrors(ctx)
		return errorsLoadedMsg{entries: entries, err: err}
	}
}

func (m *Model) clearErrorsCmd() tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		n, err := api.ClearErrors(ctx)
		return errorsClearedMsg{deleted: n, err: err}
	}
}

// loadSymbolCmd loads the profile and rating history of a symbol tab. The
// general profile is merged into the catalog; analysis-specific ones are
// not.
func (m *Model) loadSymbolCmd(key, ticker, packageID string) tea.Cmd {
	api, ctx, cat := m.api, m.ctx, m.catalog
	return func() tea.Msg {
		d, err := api.LoadSymbolDetail(ctx, ticker, packageID)
		if err == nil && packageID == "" {
			cat.BulkUpsert([]domain.Symbol{d.Profile.Symbol})
		}
		return symbolLoadedMsg{key: key, detail: d, err: err}
	}
}

func (m *Model) loadRatingsCmd(ticker string) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		r, err := api.RatingHistory(ctx, ticker)
		return ratingsLoadedMsg{ticker: ticker, ratings: r, err: err}
	}
}

func (m *Model) submitRatingCmd(ticker string, rating int, notes string) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		r, err := api.SubmitRating(ctx, ticker, rating, notes)
		return ratingSubmittedMsg{ticker: ticker, rating: r, err: err}
	}
}

func (m *Model) deleteRatingCmd(ticker string, id int64) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		return ratingDeletedMsg{ticker: ticker, id: id, err: api.DeleteRating(ctx, id)}
	}
}

func (m *Model) toggleFavoriteCmd(ticker string) tea.Cmd {
	toggler, ctx := m.toggler, m.ctx
	return func() tea.Msg {
		res, err := toggler.Toggle(ctx, ticker)
		return favoriteToggledMsg{result: res, err: err}
	}
}

func (m *Model) loadPricesCmd(key, ticker string, interval domain.Interval) tea.Cmd {
	api, ctx, cache, log := m.api, m.ctx, m.prices, m.log
	return func() tea.Msg {
		bars, cached, err := store.LoadPrices(ctx, cache, api, interval, ticker, log)
		return pricesLoadedMsg{key: key, interval: interval, bars: bars, cached: cached, err: err}
	}
}

func (m *Model) createAnalysisCmd(req domain.CreateAnalysisRequest) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		resp, err := api.CreateAnalysis(ctx, req)
		return analysisCreatedMsg{resp: resp, err: err}
	}
}

func (m *Model) renameAnalysisCmd(id, name string) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		pkg, err := api.RenameAnalysis(ctx, id, name)
		return analysisRenamedMsg{pkg: pkg, err: err}
	}
}

func (m *Model) deleteAnalysisCmd(id string) tea.Cmd {
	api, ctx := m.api, m.ctx
	return func() tea.Msg {
		return analysisDeletedMsg{id: id, err: api.DeleteAnalysis(ctx, id)}
	}
}

// saveListStateCmd persists the view state of a list.
func (m *Model) saveListStateCmd(v *listView) tea.Cmd {
	if m.views == nil {
		return nil
	}
	views, ctx, key, state := m.views, m.ctx, v.list.Key(), v.list.State
	return func() tea.Msg {
		return stateSavedMsg{key: key, err: views.SaveViewState(ctx, key, state)}
	}
}

// startPolling watches analysis id until it leaves processing. Any earlier
// poller of the view is stopped first.
func (m *Model) startPolling(v *analysisView) tea.Cmd {
	v.stop()
	ctx, cancel := context.WithCancel(m.ctx)
	v.cancel = cancel
	v.polling = true
	v.updates = m.poller.Start(ctx, v.id)
	return waitForPoll(v.id, v.updates)
}
