package symbollist

import (
	"sort"

	"finsview/internal/domain"
)

// Facets are the distinct values offered by the exact-match filters.
type Facets struct {
	Exchanges []string
	Countries []string
	Sectors   []string
}

// CollectFacets returns the sorted distinct non-empty exchanges, countries
// and sectors of symbols.
func CollectFacets(symbols []domain.Symbol) Facets {
	ex := map[string]struct{}{}
	co := map[string]struct{}{}
	se := map[string]struct{}{}
	for _, s := range symbols {
		add(ex, s.Exchange)
		add(co, s.Country)
		add(se, s.Sector)
	}
	return Facets{Exchanges: keys(ex), Countries: keys(co), Sectors: keys(se)}
}

func add(set map[string]struct{}, v *string) {
	if v != nil && *v != "" {
		set[*v] = struct{}{}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
