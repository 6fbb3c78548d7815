package symbollist

import (
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"finsview/internal/domain"
)

// Column identifies a sortable field. Values match the persisted
// sortColumn key.
type Column string

const (
	ColTicker       Column = "ticker"
	ColName         Column = "name"
	ColExchange     Column = "exchange"
	ColType         Column = "type"
	ColSector       Column = "sector"
	ColIndustry     Column = "industry"
	ColCountry      Column = "country"
	ColInception    Column = "inception"
	ColOldestPrice  Column = "oldestPrice"
	ColActive       Column = "isActivelyTrading"
	ColMarketCap    Column = "marketCap"
	ColATH12M       Column = "ath12m"
	ColCurrentPrice Column = "currentPriceUsd"
	ColDeltaATH     Column = "deltaAth"
	ColFavorite     Column = "isFavorite"
	ColUserRating   Column = "userRating"
	ColLatestRating Column = "latestRating"
)

// Columns lists every sortable column in display order.
var Columns = []Column{
	ColTicker, ColName, ColExchange, ColType, ColSector, ColIndustry,
	ColCountry, ColInception, ColOldestPrice, ColActive, ColMarketCap,
	ColATH12M, ColCurrentPrice, ColDeltaATH, ColFavorite, ColUserRating,
	ColLatestRating,
}

// Valid reports whether c is a known column.
func (c Column) Valid() bool {
	for _, k := range Columns {
		if k == c {
			return true
		}
	}
	return false
}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// SortKey is the active column and direction.
type SortKey struct {
	Column    Column
	Direction Direction
}

// DefaultSort orders by ticker ascending.
var DefaultSort = SortKey{Column: ColTicker, Direction: Asc}

// Toggle returns the key after a click on col: the same column flips
// direction, a different column starts ascending.
func (k SortKey) Toggle(col Column) SortKey {
	if k.Column == col {
		return SortKey{Column: col, Direction: k.Direction.Flip()}
	}
	return SortKey{Column: col, Direction: Asc}
}

// ---------------------------------------------------------------------------
// Sort values
// ---------------------------------------------------------------------------

type valueKind int

const (
	kindAbsent valueKind = iota
	kindNumber
	kindString
)

type value struct {
	kind valueKind
	num  float64
	str  string
}

func num(p *float64) value {
	if p == nil {
		return value{}
	}
	return value{kind: kindNumber, num: *p}
}

func integer(p *int) value {
	if p == nil {
		return value{}
	}
	return value{kind: kindNumber, num: float64(*p)}
}

func str(p *string) value {
	if p == nil {
		return value{}
	}
	return value{kind: kindString, str: *p}
}

func (v value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindString:
		return v.str
	}
	return ""
}

func sortValue(s domain.Symbol, col Column) value {
	switch col {
	case ColTicker:
		return value{kind: kindString, str: s.Ticker}
	case ColName:
		return str(s.Name)
	case ColExchange:
		return str(s.Exchange)
	case ColType:
		return str(s.Type)
	case ColSector:
		return str(s.Sector)
	case ColIndustry:
		return str(s.Industry)
	case ColCountry:
		return str(s.Country)
	case ColInception:
		if s.Inception == nil {
			return value{}
		}
		return value{kind: kindNumber, num: float64(s.Inception.Unix())}
	case ColOldestPrice:
		if s.OldestPrice == nil {
			return value{}
		}
		return value{kind: kindNumber, num: float64(s.OldestPrice.Unix())}
	case ColActive:
		if s.IsActivelyTrading == nil {
			return value{}
		}
		return value{kind: kindString, str: strconv.FormatBool(*s.IsActivelyTrading)}
	case ColMarketCap:
		return num(s.MarketCap)
	case ColATH12M:
		return num(s.ATH12M)
	case ColCurrentPrice:
		return num(s.CurrentPriceUSD)
	case ColDeltaATH:
		if d, ok := s.DeltaATH(); ok {
			return value{kind: kindNumber, num: d}
		}
		return value{}
	case ColFavorite:
		if s.IsFavorite == nil {
			return value{}
		}
		return value{kind: kindString, str: strconv.FormatBool(*s.IsFavorite)}
	case ColUserRating:
		return integer(s.UserRating)
	case ColLatestRating:
		return integer(s.LatestRating)
	}
	panic(fmt.Sprintf("symbollist: unknown column %q", col))
}

// ---------------------------------------------------------------------------
// Sort
// ---------------------------------------------------------------------------

// Sort orders symbols in place by key. Absent values sort after present
// values in both directions. Strings use English collation, numbers compare
// numerically, and mixed kinds fall back to comparing their text forms.
// Unknown columns leave the input untouched.
func Sort(symbols []domain.Symbol, key SortKey) {
	if !key.Column.Valid() {
		return
	}
	coll := collate.New(language.English)
	vals := make([]value, len(symbols))
	for i, s := range symbols {
		vals[i] = sortValue(s, key.Column)
	}
	idx := make([]int, len(symbols))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := vals[idx[a]], vals[idx[b]]
		switch {
		case va.kind == kindAbsent:
			return false
		case vb.kind == kindAbsent:
			return true
		}
		c := compare(coll, va, vb)
		if key.Direction == Desc {
			c = -c
		}
		return c < 0
	})

	sorted := make([]domain.Symbol, len(symbols))
	for i, j := range idx {
		sorted[i] = symbols[j]
	}
	copy(symbols, sorted)
}

func compare(coll *collate.Collator, a, b value) int {
	switch {
	case a.kind == kindNumber && b.kind == kindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case a.kind == kindString && b.kind == kindString:
		return coll.CompareString(a.str, b.str)
	}
	return coll.CompareString(a.String(), b.String())
}
