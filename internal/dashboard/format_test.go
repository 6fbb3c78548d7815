package dashboard

import (
	"testing"
	"time"

	"finsview/internal/domain"
)

func TestFormatInt(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		if got := FormatInt(tt.in); got != tt.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "N/A"},
		{domain.Ptr(0.0), "0.00"},
		{domain.Ptr(5.5), "5.50"},
		{domain.Ptr(42.123), "42.1"},
		{domain.Ptr(187.456), "187"},
		{domain.Ptr(0.5), "0.50"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", domain.Deref(tt.in), got, tt.want)
		}
	}
}

func TestFormatMarketCap(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "N/A"},
		{domain.Ptr(0.0), "N/A"},
		{domain.Ptr(2.96e12), "$3.0T"},
		{domain.Ptr(1.25e9), "$1.3B"},
		{domain.Ptr(450e6), "$450.0M"},
		{domain.Ptr(12e3), "$12.0K"},
		{domain.Ptr(950.0), "$950"},
	}
	for _, tt := range tests {
		if got := FormatMarketCap(tt.in); got != tt.want {
			t.Errorf("FormatMarketCap(%v) = %q, want %q", domain.Deref(tt.in), got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(domain.Ptr(12.345), 1); got != "+12.3%" {
		t.Errorf("FormatPercent(12.345) = %q", got)
	}
	if got := FormatPercent(domain.Ptr(-3.0), 1); got != "-3.0%" {
		t.Errorf("FormatPercent(-3) = %q", got)
	}
	if got := FormatPercent(nil, 1); got != "N/A" {
		t.Errorf("FormatPercent(nil) = %q", got)
	}
}

func TestRatingLevel(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {5, 3}, {-1, -1}, {-4, -3},
	}
	for _, tt := range tests {
		if got := RatingLevel(tt.in); got != tt.want {
			t.Errorf("RatingLevel(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if FormatRating(domain.Ptr(3)) != "+3" || FormatRating(nil) != "-" {
		t.Error("FormatRating mismatch")
	}
}

func TestPadOrTrunc(t *testing.T) {
	if got := PadOrTrunc("abc", 5); got != "abc  " {
		t.Errorf("pad = %q", got)
	}
	if got := PadOrTrunc("abcdef", 4); got != "abc…" {
		t.Errorf("trunc = %q", got)
	}
}

func TestGroupNotes(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }
	notes := []domain.Note{
		{ID: 1, Ticker: "AAA", CreatedAt: at(5)},
		{ID: 2, Ticker: "BBB", CreatedAt: at(3)},
		{ID: 3, Ticker: "AAA", CreatedAt: at(1)},
		{ID: 4, Ticker: "CCC", CreatedAt: at(9)},
	}
	groups := GroupNotes(notes)
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	order := []string{groups[0].Ticker, groups[1].Ticker, groups[2].Ticker}
	if order[0] != "CCC" || order[1] != "AAA" || order[2] != "BBB" {
		t.Errorf("group order = %v, want [CCC AAA BBB]", order)
	}
	aaa := groups[1].Notes
	if aaa[0].ID != 3 || aaa[1].ID != 1 {
		t.Errorf("AAA notes = %d,%d, want oldest first 3,1", aaa[0].ID, aaa[1].ID)
	}
}
