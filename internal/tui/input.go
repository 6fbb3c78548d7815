package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"finsview/internal/analysis"
	"finsview/internal/symbollist"
	"finsview/pkg/gofins"
)

// prompt is a one-line input shown in place of the footer.
type prompt struct {
	label    string
	input    textinput.Model
	onSubmit func(m *Model, value string) tea.Cmd
}

func newPrompt(label, value string, onSubmit func(m *Model, value string) tea.Cmd) *prompt {
	ti := textinput.New()
	ti.Prompt = label + ": "
	ti.CharLimit = 256
	ti.SetValue(value)
	ti.CursorEnd()
	ti.Focus()
	return &prompt{label: label, input: ti, onSubmit: onSubmit}
}

// confirm asks a yes/no question before a destructive action.
type confirm struct {
	question string
	onYes    func(m *Model) tea.Cmd
}

// ---------------------------------------------------------------------------
// Filter expressions
// ---------------------------------------------------------------------------

// Filters are typed as comma-separated terms: "key=value" or a bare flag.
// Ranges are written "min..max" with either side optional.
//
//	exchange=NYSE, sector=Consumer Defensive, mcap=10..500, fav
func splitTerms(expr string) []string {
	var out []string
	for _, t := range strings.Split(expr, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitRange(v string) (lo, hi string) {
	lo, hi, found := strings.Cut(v, "..")
	if !found {
		return strings.TrimSpace(v), strings.TrimSpace(v)
	}
	return strings.TrimSpace(lo), strings.TrimSpace(hi)
}

func joinRange(lo, hi string) string {
	if lo == "" && hi == "" {
		return ""
	}
	if lo == hi {
		return lo
	}
	return lo + ".." + hi
}

func checkNumber(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return &gofins.ValidationError{Field: field, Message: fmt.Sprintf("%s: %q is not a number", field, v)}
	}
	return nil
}

// parseListFilter replaces the filters of state with those in expr. The
// search term and sort are kept.
func parseListFilter(state symbollist.ViewState, expr string) (symbollist.ViewState, error) {
	out := symbollist.ViewState{
		SearchTerm:    state.SearchTerm,
		SortColumn:    state.SortColumn,
		SortDirection: state.SortDirection,
	}
	for _, term := range splitTerms(expr) {
		key, val, _ := strings.Cut(term, "=")
		key, val = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(val)
		var lo, hi *string
		switch key {
		case "exchange":
			out.ExchangeFilter = val
			continue
		case "country":
			out.CountryFilter = val
			continue
		case "sector":
			out.SectorFilter = val
			continue
		case "fav", "favorites":
			out.FavoritesOnly = true
			continue
		case "rated":
			out.RatedOnly = true
			continue
		case "mcap":
			lo, hi = &out.McapMin, &out.McapMax
		case "inception":
			lo, hi = &out.InceptionMin, &out.InceptionMax
		case "oldest":
			lo, hi = &out.OldestPriceMin, &out.OldestPriceMax
		case "rating":
			lo, hi = &out.RatingMin, &out.RatingMax
		default:
			return state, &gofins.ValidationError{Field: key, Message: fmt.Sprintf("unknown filter %q", key)}
		}
		*lo, *hi = splitRange(val)
		if err := checkNumber(key, *lo); err != nil {
			return state, err
		}
		if err := checkNumber(key, *hi); err != nil {
			return state, err
		}
	}
	return out, nil
}

// formatListFilter renders the filters of state in the form parseListFilter
// reads.
func formatListFilter(s symbollist.ViewState) string {
	var terms []string
	add := func(key, v string) {
		if v != "" {
			terms = append(terms, key+"="+v)
		}
	}
	add("exchange", s.ExchangeFilter)
	add("country", s.CountryFilter)
	add("sector", s.SectorFilter)
	add("mcap", joinRange(s.McapMin, s.McapMax))
	add("inception", joinRange(s.InceptionMin, s.InceptionMax))
	add("oldest", joinRange(s.OldestPriceMin, s.OldestPriceMax))
	add("rating", joinRange(s.RatingMin, s.RatingMax))
	if s.FavoritesOnly {
		terms = append(terms, "fav")
	}
	if s.RatedOnly {
		terms = append(terms, "rated")
	}
	return strings.Join(terms, ", ")
}

// parseResultsFilter reads "inception=2000..2010, mean=6.., stddev=..3".
func parseResultsFilter(expr string) (analysis.FilterInput, analysis.Filter, error) {
	var in analysis.FilterInput
	for _, term := range splitTerms(expr) {
		key, val, _ := strings.Cut(term, "=")
		lo, hi := splitRange(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "inception":
			in.InceptionFrom, in.InceptionTo = lo, hi
		case "mean":
			in.MeanMin, in.MeanMax = lo, hi
		case "stddev":
			in.StdDevMin, in.StdDevMax = lo, hi
		default:
			return in, analysis.Filter{}, &gofins.ValidationError{Field: key, Message: fmt.Sprintf("unknown filter %q", key)}
		}
	}
	f, err := in.Parse()
	return in, f, err
}

func formatResultsFilter(in analysis.FilterInput) string {
	var terms []string
	for _, t := range []struct{ key, lo, hi string }{
		{"inception", in.InceptionFrom, in.InceptionTo},
		{"mean", in.MeanMin, in.MeanMax},
		{"stddev", in.StdDevMin, in.StdDevMax},
	} {
		if r := joinRange(t.lo, t.hi); r != "" {
			terms = append(terms, t.key+"="+r)
		}
	}
	return strings.Join(terms, ", ")
}

// parseRatingInput reads "<rating> [notes]".
func parseRatingInput(s string) (rating int, notes string, err error) {
	head, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
	rating, err = strconv.Atoi(strings.TrimPrefix(head, "+"))
	if err != nil {
		return 0, "", &gofins.ValidationError{Field: "rating", Message: "Rating must be a whole number"}
	}
	if err := gofins.ValidateRating(rating); err != nil {
		return 0, "", err
	}
	return rating, strings.TrimSpace(rest), nil
}
