package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSymbolMergePreservesUnseenFields(t *testing.T) {
	existing := Symbol{Ticker: "X", Name: Ptr("Acme"), MarketCap: Ptr(100.0)}
	incoming := Symbol{Ticker: "X", MarketCap: Ptr(200.0)}

	got := existing.Merge(incoming)

	if got.Ticker != "X" {
		t.Errorf("Ticker = %q, want %q", got.Ticker, "X")
	}
	if Deref(got.Name) != "Acme" {
		t.Errorf("Name = %q, want %q", Deref(got.Name), "Acme")
	}
	if Deref(got.MarketCap) != 200 {
		t.Errorf("MarketCap = %v, want 200", Deref(got.MarketCap))
	}
	if Deref(existing.MarketCap) != 100 {
		t.Error("Merge modified the receiver")
	}
}

func TestDeltaATH(t *testing.T) {
	tests := []struct {
		name   string
		sym    Symbol
		want   float64
		wantOK bool
	}{
		{"both present", Symbol{CurrentPriceUSD: Ptr(90.0), ATH12M: Ptr(100.0)}, -10, true},
		{"at high", Symbol{CurrentPriceUSD: Ptr(50.0), ATH12M: Ptr(50.0)}, 0, true},
		{"zero high", Symbol{CurrentPriceUSD: Ptr(90.0), ATH12M: Ptr(0.0)}, 0, false},
		{"missing price", Symbol{ATH12M: Ptr(100.0)}, 0, false},
		{"missing high", Symbol{CurrentPriceUSD: Ptr(100.0)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.sym.DeltaATH()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (got-tt.want > 1e-9 || tt.want-got > 1e-9) {
				t.Errorf("DeltaATH = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusProcessing.Terminal() {
		t.Error("processing should not be terminal")
	}
	if !StatusReady.Terminal() || !StatusFailed.Terminal() {
		t.Error("ready and failed should be terminal")
	}
}

func TestCurrentRating(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	history := []UserRating{
		{ID: 1, Rating: 2, CreatedAt: base},
		{ID: 3, Rating: -1, CreatedAt: base.Add(48 * time.Hour)},
		{ID: 2, Rating: 4, CreatedAt: base.Add(24 * time.Hour)},
	}
	cur := CurrentRating(history)
	if cur == nil || cur.ID != 3 {
		t.Fatalf("CurrentRating = %+v, want id 3", cur)
	}
	if CurrentRating(nil) != nil {
		t.Error("CurrentRating(nil) should be nil")
	}
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		in   string
		end  bool
		want string
	}{
		{"2009", false, "2009-01-01"},
		{"2009", true, "2009-12-31"},
		{"2024-02", false, "2024-02-01"},
		{"2024-02", true, "2024-02-29"},
		{"2023-07-15", true, "2023-07-15"},
	}
	for _, tt := range tests {
		got, err := ParseFlexibleDate(tt.in, tt.end)
		if err != nil {
			t.Fatalf("ParseFlexibleDate(%q) error: %v", tt.in, err)
		}
		if s := got.Format("2006-01-02"); s != tt.want {
			t.Errorf("ParseFlexibleDate(%q, %v) = %s, want %s", tt.in, tt.end, s, tt.want)
		}
	}

	for _, bad := range []string{"09", "2024-13", "yesterday"} {
		if _, err := ParseFlexibleDate(bad, false); err == nil {
			t.Errorf("ParseFlexibleDate(%q) should fail", bad)
		}
	}
}

func TestAnalysisPackageWireNames(t *testing.T) {
	raw := `{"ID":"p1","Name":"Tech","Interval":"weekly","HistBins":100,"SymbolCount":42,"Status":"processing","CreatedAt":"2024-01-02T03:04:05Z","TimeFrom":"2009-01-01T00:00:00Z","TimeTo":"2024-01-01T00:00:00Z"}`
	var pkg AnalysisPackage
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if pkg.ID != "p1" || pkg.Status != StatusProcessing || pkg.SymbolCount != 42 {
		t.Errorf("unexpected package %+v", pkg)
	}
	if pkg.Interval != IntervalWeekly {
		t.Errorf("Interval = %q, want %q", pkg.Interval, IntervalWeekly)
	}
}

func TestSymbolListEndpoint(t *testing.T) {
	if ListActive.Endpoint() != "symbols/active" {
		t.Errorf("ListActive.Endpoint() = %q", ListActive.Endpoint())
	}
	if ListFavorites.Endpoint() != "symbols/favorites" {
		t.Errorf("ListFavorites.Endpoint() = %q", ListFavorites.Endpoint())
	}
}
