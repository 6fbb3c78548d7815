// Package symbollist turns a symbol collection plus user-adjustable view
// state into the visible page: filter, then sort, then paginate.
package symbollist

import (
	"strings"

	"finsview/internal/domain"
)

// Filter is the AND-combined predicate over symbols. Zero-valued criteria
// are no-ops. Market-cap bounds use the unit of Symbol.MarketCap.
type Filter struct {
	Search   string
	Exchange string
	Country  string
	Sector   string

	McapMin *float64
	McapMax *float64

	InceptionMin   *int
	InceptionMax   *int
	OldestPriceMin *int
	OldestPriceMax *int

	FavoritesOnly bool
	RatedOnly     bool
	RatingMin     *int
	RatingMax     *int
}

// Match reports whether s passes every criterion.
func (f Filter) Match(s domain.Symbol) bool {
	if f.Search != "" && !matchesSearch(s, strings.ToLower(f.Search)) {
		return false
	}
	if f.Exchange != "" && domain.Deref(s.Exchange) != f.Exchange {
		return false
	}
	if f.Country != "" && domain.Deref(s.Country) != f.Country {
		return false
	}
	if f.Sector != "" && domain.Deref(s.Sector) != f.Sector {
		return false
	}

	// A symbol without a market cap, or with a zero one, fails either bound.
	if f.McapMin != nil && (s.MarketCap == nil || *s.MarketCap == 0 || *s.MarketCap < *f.McapMin) {
		return false
	}
	if f.McapMax != nil && (s.MarketCap == nil || *s.MarketCap == 0 || *s.MarketCap > *f.McapMax) {
		return false
	}

	// Year bounds only apply when the date is known.
	if s.Inception != nil {
		y := s.Inception.Year()
		if f.InceptionMin != nil && y < *f.InceptionMin {
			return false
		}
		if f.InceptionMax != nil && y > *f.InceptionMax {
			return false
		}
	}
	if s.OldestPrice != nil {
		y := s.OldestPrice.Year()
		if f.OldestPriceMin != nil && y < *f.OldestPriceMin {
			return false
		}
		if f.OldestPriceMax != nil && y > *f.OldestPriceMax {
			return false
		}
	}

	if f.FavoritesOnly && !s.Favorite() {
		return false
	}
	if f.RatedOnly && s.UserRating == nil {
		return false
	}
	rating := domain.Deref(s.UserRating)
	if f.RatingMin != nil && rating < *f.RatingMin {
		return false
	}
	if f.RatingMax != nil && rating > *f.RatingMax {
		return false
	}
	return true
}

// Apply returns the symbols matching f, in input order.
func (f Filter) Apply(symbols []domain.Symbol) []domain.Symbol {
	out := make([]domain.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

func matchesSearch(s domain.Symbol, term string) bool {
	for _, v := range []string{s.Ticker, domain.Deref(s.Name), domain.Deref(s.Sector), domain.Deref(s.Country)} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
