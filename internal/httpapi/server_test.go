package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"finsview/internal/domain"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestServer(t *testing.T, admin bool, opts Options) (*httptest.Server, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
	data := NewBackend(BackendOptions{ProcessingDelay: 10 * time.Second, Admin: admin, Now: clk.Now}, nil)
	ts := httptest.NewServer(NewServer(data, opts, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, clk
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestActiveSymbols(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})

	resp := do(t, "GET", ts.URL+"/api/symbols/active", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body SymbolsResponse
	decode(t, resp, &body)

	if body.Total != len(body.Symbols) || body.Total == 0 {
		t.Fatalf("total = %d, symbols = %d", body.Total, len(body.Symbols))
	}
	seen := map[string]domain.Symbol{}
	for _, s := range body.Symbols {
		seen[s.Ticker] = s
	}
	if _, ok := seen["TWTR"]; ok {
		t.Error("inactive TWTR listed as active")
	}
	if !seen["AAPL"].Favorite() {
		t.Error("AAPL should be a seeded favorite")
	}
	if r := seen["NVDA"].UserRating; r == nil || *r != 4 {
		t.Errorf("NVDA userRating = %v, want 4", r)
	}
	if seen["SPY"].MarketCap != nil {
		t.Error("SPY should have no market cap")
	}
}

func TestToggleFavorite(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})

	var fav FavoriteResponse
	decode(t, do(t, "POST", ts.URL+"/api/favorites/msft", nil), &fav)
	if !fav.IsFavorite {
		t.Fatal("first toggle should favorite MSFT")
	}

	var list []string
	decode(t, do(t, "GET", ts.URL+"/api/favorites", nil), &list)
	if strings.Join(list, ",") != "AAPL,MSFT,NESN,NVDA" {
		t.Errorf("favorites = %v", list)
	}

	decode(t, do(t, "POST", ts.URL+"/api/favorites/MSFT", nil), &fav)
	if fav.IsFavorite {
		t.Error("second toggle should unfavorite MSFT")
	}

	if resp := do(t, "POST", ts.URL+"/api/favorites/NOPE", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown ticker status = %d, want 404", resp.StatusCode)
	}
}

func TestRatings(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})

	resp := do(t, "POST", ts.URL+"/api/ratings/AAPL", RatingRequest{Rating: 6})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range rating status = %d, want 400", resp.StatusCode)
	}

	notes := "Services growth"
	resp = do(t, "POST", ts.URL+"/api/ratings/AAPL", RatingRequest{Rating: -1, Notes: &notes})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add rating status = %d, want 201", resp.StatusCode)
	}
	var added domain.UserRating
	decode(t, resp, &added)

	var history []domain.UserRating
	decode(t, do(t, "GET", ts.URL+"/api/ratings/AAPL/history", nil), &history)
	if len(history) != 2 || history[0].ID != added.ID {
		t.Fatalf("history = %+v, want newest first", history)
	}

	var noteList []domain.Note
	decode(t, do(t, "GET", ts.URL+"/api/notes", nil), &noteList)
	if len(noteList) == 0 || noteList[0].ID != added.ID {
		t.Errorf("notes[0] should be the new note")
	}

	if resp := do(t, "DELETE", ts.URL+"/api/ratings/"+itoa(added.ID), nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	if resp := do(t, "DELETE", ts.URL+"/api/ratings/"+itoa(added.ID), nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAnalysisLifecycle(t *testing.T) {
	ts, clk := newTestServer(t, false, Options{})

	resp := do(t, "POST", ts.URL+"/api/analyses", domain.CreateAnalysisRequest{
		Name:     "Tech",
		Interval: domain.IntervalMonthly,
		TimeFrom: domain.Ptr("2012"),
		McapMin:  domain.Ptr("1B"),
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create status = %d, want 202", resp.StatusCode)
	}
	var created domain.CreateAnalysisResponse
	decode(t, resp, &created)
	if created.Status != domain.StatusProcessing || created.PackageID == "" {
		t.Fatalf("created = %+v", created)
	}

	var pkg domain.AnalysisPackage
	decode(t, do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID, nil), &pkg)
	if pkg.Status != domain.StatusProcessing {
		t.Errorf("status = %s, want processing", pkg.Status)
	}
	if resp := do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID+"/results", nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("results while processing status = %d, want 409", resp.StatusCode)
	}

	clk.Advance(11 * time.Second)
	decode(t, do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID, nil), &pkg)
	if pkg.Status != domain.StatusReady {
		t.Fatalf("status = %s, want ready", pkg.Status)
	}

	var results []domain.AnalysisResult
	decode(t, do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID+"/results", nil), &results)
	if len(results) != pkg.SymbolCount || len(results) == 0 {
		t.Fatalf("results = %d, SymbolCount = %d", len(results), pkg.SymbolCount)
	}
	for _, r := range results {
		if r.Symbol == "PENNY" {
			t.Error("PENNY is below the market cap floor")
		}
		if r.Min > r.Mean || r.Mean > r.Max || r.StdDev < 0 {
			t.Errorf("%s: inconsistent stats %+v", r.Symbol, r)
		}
	}

	resp = do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID+"/histogram/"+results[0].Symbol, nil)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("histogram content type = %q", ct)
	}

	var renamed domain.AnalysisPackage
	decode(t, do(t, "PUT", ts.URL+"/api/analysis/"+created.PackageID, RenameRequest{Name: "Tech v2"}), &renamed)
	if renamed.Name != "Tech v2" {
		t.Errorf("renamed = %q", renamed.Name)
	}

	if resp := do(t, "DELETE", ts.URL+"/api/analysis/"+created.PackageID, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp := do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestAnalysisWithoutSymbolsFails(t *testing.T) {
	ts, clk := newTestServer(t, false, Options{})

	var created domain.CreateAnalysisResponse
	decode(t, do(t, "POST", ts.URL+"/api/analyses", domain.CreateAnalysisRequest{
		Name: "Nothing", McapMin: domain.Ptr("1000T"),
	}), &created)

	clk.Advance(time.Minute)
	var pkg domain.AnalysisPackage
	decode(t, do(t, "GET", ts.URL+"/api/analysis/"+created.PackageID, nil), &pkg)
	if pkg.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", pkg.Status)
	}
}

func TestCreateAnalysisValidation(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})

	tests := []domain.CreateAnalysisRequest{
		{Name: ""},
		{Name: "x", Interval: "hourly"},
		{Name: "x", TimeFrom: domain.Ptr("20x9")},
		{Name: "x", TimeFrom: domain.Ptr("2020"), TimeTo: domain.Ptr("2010")},
		{Name: "x", McapMin: domain.Ptr("lots")},
	}
	for _, req := range tests {
		if resp := do(t, "POST", ts.URL+"/api/analyses", req); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("create %+v status = %d, want 400", req, resp.StatusCode)
		}
	}
}

func TestPrices(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})

	var body PricesResponse
	decode(t, do(t, "GET", ts.URL+"/api/prices/monthly/AAPL", nil), &body)
	if len(body.Prices) < 12 {
		t.Fatalf("monthly bars = %d", len(body.Prices))
	}
	if body.Prices[0].YoY != nil {
		t.Error("first monthly bar cannot have a YoY value")
	}
	if body.Prices[12].YoY == nil {
		t.Error("13th monthly bar should have a YoY value")
	}
	last := body.Prices[len(body.Prices)-1]
	if last.Close < 227 || last.Close > 228 {
		t.Errorf("last close = %v, want the seeded 227.5", last.Close)
	}

	if resp := do(t, "GET", ts.URL+"/api/prices/daily/AAPL", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("daily prices status = %d, want 400", resp.StatusCode)
	}
}

func TestErrorsAdminOnly(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})
	if resp := do(t, "GET", ts.URL+"/api/errors", nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", resp.StatusCode)
	}

	admin, _ := newTestServer(t, true, Options{})
	var entries []domain.ErrorEntry
	decode(t, do(t, "GET", admin.URL+"/api/errors", nil), &entries)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 seeded", len(entries))
	}
	if entries[0].Timestamp.Before(entries[1].Timestamp) {
		t.Error("errors should be newest first")
	}

	var cleared ClearErrorsResponse
	decode(t, do(t, "DELETE", admin.URL+"/api/errors", nil), &cleared)
	if cleared.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", cleared.Deleted)
	}
}

func TestBasicAuth(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{Username: "u", Password: "p"})

	if resp := do(t, "GET", ts.URL+"/api/user", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/user", nil)
	req.SetBasicAuth("u", "p")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}

	req, _ = http.NewRequest("OPTIONS", ts.URL+"/api/user", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp2.StatusCode)
	}
}

func TestSymbolChartPNG(t *testing.T) {
	ts, _ := newTestServer(t, false, Options{})

	resp := do(t, "GET", ts.URL+"/api/symbol/MSFT/chart", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	sig := make([]byte, 8)
	if _, err := io.ReadFull(resp.Body, sig); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(sig[1:4]) != "PNG" {
		t.Errorf("body does not start with a PNG signature: %q", sig)
	}
}

func TestParseMarketCap(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"100000000", 1e8},
		{"500M", 5e8},
		{"1.5b", 1.5e9},
		{"2T", 2e12},
	}
	for _, tt := range tests {
		got, err := parseMarketCap(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseMarketCap(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseMarketCap("-5"); err == nil {
		t.Error("negative market cap accepted")
	}
}

func TestHealthService(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := NewHealthServer(discardLogger())
	go hs.Serve(lis)
	t.Cleanup(hs.Stop)

	ctx := context.Background()
	if got, err := CheckHealth(ctx, lis.Addr().String()); err != nil || got != "NOT_SERVING" {
		t.Errorf("before SetServing = %q, %v", got, err)
	}
	hs.SetServing(true)
	if got, err := CheckHealth(ctx, lis.Addr().String()); err != nil || got != "SERVING" {
		t.Errorf("after SetServing = %q, %v", got, err)
	}
}
