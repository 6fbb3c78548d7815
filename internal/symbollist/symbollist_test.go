package symbollist

import (
	"fmt"
	"testing"
	"time"

	"finsview/internal/domain"
)

func date(y int) *time.Time {
	t := time.Date(y, 6, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func tickers(ss []domain.Symbol) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Ticker
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sample() []domain.Symbol {
	return []domain.Symbol{
		{Ticker: "AAPL", Name: domain.Ptr("Apple Inc"), Exchange: domain.Ptr("NASDAQ"), Country: domain.Ptr("US"),
			Sector: domain.Ptr("Technology"), MarketCap: domain.Ptr(3e12), Inception: date(1980),
			IsFavorite: domain.Ptr(true), UserRating: domain.Ptr(4)},
		{Ticker: "SAP", Name: domain.Ptr("SAP SE"), Exchange: domain.Ptr("XETRA"), Country: domain.Ptr("DE"),
			Sector: domain.Ptr("Technology"), MarketCap: domain.Ptr(2e11), Inception: date(1988)},
		{Ticker: "TINY", Name: domain.Ptr("Tiny Corp"), Exchange: domain.Ptr("NYSE"), Country: domain.Ptr("US"),
			Sector: domain.Ptr("Energy"), UserRating: domain.Ptr(-2)},
		{Ticker: "NEWCO", Name: domain.Ptr("New Co"), Exchange: domain.Ptr("NYSE"), Country: domain.Ptr("US"),
			MarketCap: domain.Ptr(5e9), Inception: date(2021), OldestPrice: date(2021)},
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"empty", Filter{}, []string{"AAPL", "SAP", "TINY", "NEWCO"}},
		{"search ticker case-insensitive", Filter{Search: "aap"}, []string{"AAPL"}},
		{"search sector", Filter{Search: "energy"}, []string{"TINY"}},
		{"search country", Filter{Search: "de"}, []string{"SAP"}},
		{"exchange exact", Filter{Exchange: "NYSE"}, []string{"TINY", "NEWCO"}},
		{"sector exact", Filter{Sector: "Tech"}, nil},
		{"mcap min rejects absent", Filter{McapMin: domain.Ptr(1e9)}, []string{"AAPL", "SAP", "NEWCO"}},
		{"mcap max rejects absent", Filter{McapMax: domain.Ptr(1e12)}, []string{"SAP", "NEWCO"}},
		{"inception min keeps absent", Filter{InceptionMin: domain.Ptr(1985)}, []string{"SAP", "TINY", "NEWCO"}},
		{"inception max", Filter{InceptionMax: domain.Ptr(1985)}, []string{"AAPL", "TINY"}},
		{"oldest price min", Filter{OldestPriceMin: domain.Ptr(2022)}, []string{"AAPL", "SAP", "TINY"}},
		{"favorites only", Filter{FavoritesOnly: true}, []string{"AAPL"}},
		{"rated only", Filter{RatedOnly: true}, []string{"AAPL", "TINY"}},
		{"rating min treats absent as zero", Filter{RatingMin: domain.Ptr(0)}, []string{"AAPL", "SAP", "NEWCO"}},
		{"rating max", Filter{RatingMax: domain.Ptr(-1)}, []string{"TINY"}},
		{"combined", Filter{Country: "US", McapMin: domain.Ptr(1e9)}, []string{"AAPL", "NEWCO"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tickers(tt.f.Apply(sample()))
			if !equal(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterRejectsZeroMarketCap(t *testing.T) {
	rows := []domain.Symbol{
		{Ticker: "ZERO", MarketCap: domain.Ptr(0.0)},
		{Ticker: "BIG", MarketCap: domain.Ptr(2e9)},
	}
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"mcap min rejects zero", Filter{McapMin: domain.Ptr(0.0)}, []string{"BIG"}},
		{"mcap max rejects zero", Filter{McapMax: domain.Ptr(1e10)}, []string{"BIG"}},
		{"no bound keeps zero", Filter{}, []string{"ZERO", "BIG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tickers(tt.f.Apply(rows)); !equal(got, tt.want) {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}

	v := DefaultViewState()
	v.McapMin = "0"
	if got := tickers(v.Filter().Apply(rows)); !equal(got, []string{"BIG"}) {
		t.Errorf("view state mcap=0.. kept %v, want [BIG]", got)
	}
}

func TestFilterIdempotent(t *testing.T) {
	f := Filter{Country: "US", RatingMin: domain.Ptr(0)}
	once := f.Apply(sample())
	twice := f.Apply(once)
	if !equal(tickers(once), tickers(twice)) {
		t.Errorf("twice = %v, once = %v", tickers(twice), tickers(once))
	}
}

func TestSortNullsLastBothDirections(t *testing.T) {
	for _, col := range Columns {
		for _, dir := range []Direction{Asc, Desc} {
			rows := sample()
			rows = append(rows, domain.Symbol{Ticker: "ZZZ"})
			Sort(rows, SortKey{Column: col, Direction: dir})

			seenAbsent := false
			for _, s := range rows {
				absent := sortValue(s, col).kind == kindAbsent
				if seenAbsent && !absent {
					t.Errorf("%s %s: present value after absent in %v", col, dir, tickers(rows))
					break
				}
				seenAbsent = seenAbsent || absent
			}
		}
	}
}

func TestSortNumericAndString(t *testing.T) {
	rows := sample()
	Sort(rows, SortKey{Column: ColMarketCap, Direction: Desc})
	if got, want := tickers(rows), []string{"AAPL", "SAP", "NEWCO", "TINY"}; !equal(got, want) {
		t.Errorf("marketCap desc = %v, want %v", got, want)
	}

	rows = sample()
	Sort(rows, SortKey{Column: ColName, Direction: Asc})
	if got, want := tickers(rows), []string{"AAPL", "NEWCO", "SAP", "TINY"}; !equal(got, want) {
		t.Errorf("name asc = %v, want %v", got, want)
	}
}

func TestSortDeltaATH(t *testing.T) {
	rows := []domain.Symbol{
		{Ticker: "A", CurrentPriceUSD: domain.Ptr(50.0), ATH12M: domain.Ptr(100.0)},
		{Ticker: "B", CurrentPriceUSD: domain.Ptr(95.0), ATH12M: domain.Ptr(100.0)},
		{Ticker: "C", CurrentPriceUSD: domain.Ptr(95.0), ATH12M: domain.Ptr(0.0)},
		{Ticker: "D", CurrentPriceUSD: domain.Ptr(70.0), ATH12M: domain.Ptr(100.0)},
	}
	Sort(rows, SortKey{Column: ColDeltaATH, Direction: Desc})
	if got, want := tickers(rows), []string{"B", "D", "A", "C"}; !equal(got, want) {
		t.Errorf("deltaAth desc = %v, want %v", got, want)
	}
}

func TestSortKeyToggle(t *testing.T) {
	k := DefaultSort
	k = k.Toggle(ColTicker)
	if k.Direction != Desc {
		t.Errorf("same column toggle = %s, want desc", k.Direction)
	}
	k = k.Toggle(ColMarketCap)
	if k.Column != ColMarketCap || k.Direction != Asc {
		t.Errorf("new column = %+v, want marketCap asc", k)
	}
}

func TestPaginateCoverage(t *testing.T) {
	for _, n := range []int{0, 1, 99, 100, 101, 250} {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		first := Paginate(items, 1, PageSize)
		wantCount := (n + PageSize - 1) / PageSize
		if wantCount == 0 {
			wantCount = 1
		}
		if first.Count != wantCount {
			t.Errorf("n=%d Count = %d, want %d", n, first.Count, wantCount)
		}

		next := 0
		for p := 1; p <= first.Count; p++ {
			for _, v := range Paginate(items, p, PageSize).Items {
				if v != next {
					t.Fatalf("n=%d page %d: item %d, want %d", n, p, v, next)
				}
				next++
			}
		}
		if next != n {
			t.Errorf("n=%d: pages covered %d items", n, next)
		}
	}
}

func TestPaginateScenario(t *testing.T) {
	items := make([]int, 250)
	p1 := Paginate(items, 1, PageSize)
	if p1.Start != 0 || p1.End != 100 {
		t.Errorf("page 1 = [%d,%d), want [0,100)", p1.Start, p1.End)
	}
	p3 := Paginate(items, 3, PageSize)
	if p3.Start != 200 || p3.End != 250 || len(p3.Items) != 50 {
		t.Errorf("page 3 = [%d,%d) len %d, want [200,250) len 50", p3.Start, p3.End, len(p3.Items))
	}
	if got, want := p3.Label(), "Page 3 of 3 (201-250 of 250)"; got != want {
		t.Errorf("Label = %q, want %q", got, want)
	}
	if p := Paginate(items, 9, PageSize); p.Number != 3 {
		t.Errorf("overshoot page = %d, want 3", p.Number)
	}
	if got := Paginate([]int{}, 1, PageSize).Label(); got != "Page 1 of 1 (0-0 of 0)" {
		t.Errorf("empty Label = %q", got)
	}
}

func TestViewStateFilterScalesBillions(t *testing.T) {
	v := DefaultViewState()
	v.McapMin = "1.5"
	v.RatingMax = "abc"
	f := v.Filter()
	if f.McapMin == nil || *f.McapMin != 1.5e9 {
		t.Errorf("McapMin = %v, want 1.5e9", f.McapMin)
	}
	if f.RatingMax != nil {
		t.Errorf("unparsable RatingMax = %v, want nil", *f.RatingMax)
	}
	if !v.Active() {
		t.Error("Active = false with mcap bound set")
	}
}

func TestListSearchResetsPageOnly(t *testing.T) {
	rows := make([]domain.Symbol, 250)
	for i := range rows {
		rows[i] = domain.Symbol{Ticker: fmt.Sprintf("S%03d", i), Country: domain.Ptr("US")}
	}
	l := NewList(domain.ListActive.Endpoint(), 0)
	l.Page = 3

	l.State.CountryFilter = "US"
	if p := l.Render(rows); p.Number != 3 {
		t.Errorf("page after country filter = %d, want 3", p.Number)
	}

	l.SetSearch("S1")
	if l.Page != 1 {
		t.Errorf("page after search = %d, want 1", l.Page)
	}
	l.Page = 2
	l.SetSearch("S1")
	if l.Page != 2 {
		t.Errorf("unchanged search reset page to %d", l.Page)
	}

	if got := l.Key(); got != "symbolListFilters_symbols/active" {
		t.Errorf("Key = %q", got)
	}
}

func TestCollectFacets(t *testing.T) {
	f := CollectFacets(sample())
	if want := []string{"NASDAQ", "NYSE", "XETRA"}; !equal(f.Exchanges, want) {
		t.Errorf("Exchanges = %v, want %v", f.Exchanges, want)
	}
	if want := []string{"DE", "US"}; !equal(f.Countries, want) {
		t.Errorf("Countries = %v, want %v", f.Countries, want)
	}
	if want := []string{"Energy", "Technology"}; !equal(f.Sectors, want) {
		t.Errorf("Sectors = %v, want %v", f.Sectors, want)
	}
}
