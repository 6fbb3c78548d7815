package symbollist

import (
	"strconv"
	"strings"

	"finsview/internal/domain"
)

// StateKeyPrefix prefixes the persistence key of each list instance.
const StateKeyPrefix = "symbolListFilters_"

// StateKey returns the persistence key for the list served by endpoint.
func StateKey(endpoint string) string {
	return StateKeyPrefix + endpoint
}

// ViewState is the persisted, user-edited form of a list's controls. Numeric
// fields hold the raw text typed by the user; market-cap bounds are in
// billions. Unparsable values act as unset.
type ViewState struct {
	SearchTerm     string    `json:"searchTerm"`
	ExchangeFilter string    `json:"exchangeFilter"`
	CountryFilter  string    `json:"countryFilter"`
	SectorFilter   string    `json:"sectorFilter"`
	McapMin        string    `json:"mcapMin"`
	McapMax        string    `json:"mcapMax"`
	InceptionMin   string    `json:"inceptionMin"`
	InceptionMax   string    `json:"inceptionMax"`
	OldestPriceMin string    `json:"oldestPriceMin"`
	OldestPriceMax string    `json:"oldestPriceMax"`
	FavoritesOnly  bool      `json:"favoritesOnly"`
	RatedOnly      bool      `json:"ratedOnly"`
	RatingMin      string    `json:"ratingMin"`
	RatingMax      string    `json:"ratingMax"`
	SortColumn     Column    `json:"sortColumn"`
	SortDirection  Direction `json:"sortDirection"`
}

// DefaultViewState has no filters and sorts by ticker ascending.
func DefaultViewState() ViewState {
	return ViewState{SortColumn: DefaultSort.Column, SortDirection: DefaultSort.Direction}
}

// Sort returns the sort key, falling back to DefaultSort for unknown values.
func (v ViewState) Sort() SortKey {
	k := SortKey{Column: v.SortColumn, Direction: v.SortDirection}
	if !k.Column.Valid() {
		k.Column = DefaultSort.Column
	}
	if k.Direction != Asc && k.Direction != Desc {
		k.Direction = Asc
	}
	return k
}

// Filter converts the view state into an engine filter. Market-cap bounds
// are scaled from billions to the stored unit.
func (v ViewState) Filter() Filter {
	return Filter{
		Search:         v.SearchTerm,
		Exchange:       v.ExchangeFilter,
		Country:        v.CountryFilter,
		Sector:         v.SectorFilter,
		McapMin:        parseBillions(v.McapMin),
		McapMax:        parseBillions(v.McapMax),
		InceptionMin:   parseInt(v.InceptionMin),
		InceptionMax:   parseInt(v.InceptionMax),
		OldestPriceMin: parseInt(v.OldestPriceMin),
		OldestPriceMax: parseInt(v.OldestPriceMax),
		FavoritesOnly:  v.FavoritesOnly,
		RatedOnly:      v.RatedOnly,
		RatingMin:      parseInt(v.RatingMin),
		RatingMax:      parseInt(v.RatingMax),
	}
}

// Active reports whether any filter is set.
func (v ViewState) Active() bool {
	f := v.Filter()
	return f.Search != "" || f.Exchange != "" || f.Country != "" || f.Sector != "" ||
		f.McapMin != nil || f.McapMax != nil ||
		f.InceptionMin != nil || f.InceptionMax != nil ||
		f.OldestPriceMin != nil || f.OldestPriceMax != nil ||
		f.FavoritesOnly || f.RatedOnly || f.RatingMin != nil || f.RatingMax != nil
}

func parseBillions(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return domain.Ptr(f * 1e9)
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is one list instance: its view state, current page and page size.
// The page resets to 1 when the search term changes; other filter changes
// keep the page, which is clamped into range on render.
type List struct {
	Endpoint string
	State    ViewState
	Page     int
	PageSize int
}

// NewList creates a list for endpoint with default state.
func NewList(endpoint string, pageSize int) *List {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &List{Endpoint: endpoint, State: DefaultViewState(), Page: 1, PageSize: pageSize}
}

// Key returns the persistence key of the list.
func (l *List) Key() string { return StateKey(l.Endpoint) }

// SetSearch updates the search term and returns to page 1 if it changed.
func (l *List) SetSearch(term string) {
	if term != l.State.SearchTerm {
		l.Page = 1
	}
	l.State.SearchTerm = term
}

// ToggleSort applies a click on col.
func (l *List) ToggleSort(col Column) {
	k := l.State.Sort().Toggle(col)
	l.State.SortColumn, l.State.SortDirection = k.Column, k.Direction
}

// ClearFilters resets every filter but keeps the sort.
func (l *List) ClearFilters() {
	sortCol, sortDir := l.State.SortColumn, l.State.SortDirection
	l.State = ViewState{SortColumn: sortCol, SortDirection: sortDir}
	l.Page = 1
}

// Render filters, sorts and paginates symbols. The input is not modified.
// The list's page is updated to the clamped page actually shown.
func (l *List) Render(symbols []domain.Symbol) Page[domain.Symbol] {
	rows := l.State.Filter().Apply(symbols)
	Sort(rows, l.State.Sort())
	p := Paginate(rows, l.Page, l.PageSize)
	l.Page = p.Number
	return p
}

// NextPage advances one page; Render clamps overshoot.
func (l *List) NextPage() { l.Page++ }

// PrevPage goes back one page, stopping at 1.
func (l *List) PrevPage() {
	if l.Page > 1 {
		l.Page--
	}
}
