// Package gofins is a Go SDK for the gofins backend API: symbols, favorites,
// ratings, analyses, prices and the error log.
package gofins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"finsview/internal/domain"
	"finsview/internal/trace"
	"finsview/internal/util"
)

// DefaultBaseURL is the backend address used when Options.BaseURL is empty.
const DefaultBaseURL = "http://localhost:8080/api"

// rateBurst is how many requests may go out back to back before the rate
// limit spaces them.
const rateBurst = 4

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string // Basic auth, skipped when empty
	Password string
	Timeout  time.Duration
	// Retries is the attempt count for GET requests. Mutating requests are
	// sent once.
	Retries    int
	RetryDelay time.Duration
	// RateLimitPerMin caps outgoing requests; zero disables the limiter.
	RateLimitPerMin int
	Logger          *slog.Logger
}

// Client talks to the backend over HTTP/JSON.
type Client struct {
	http       *resty.Client
	baseURL    string
	retries    int
	retryDelay time.Duration
	limiter    *util.RateLimiter
	log        *slog.Logger
}

// NewClient creates a new backend API client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	hc := resty.New()
	hc.SetBaseURL(opts.BaseURL)
	hc.SetTimeout(opts.Timeout)
	hc.SetHeader("Accept", "application/json")
	if opts.Username != "" {
		hc.SetBasicAuth(opts.Username, opts.Password)
	}

	c := &Client{
		http:       hc,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		limiter:    util.NewRateLimiter(opts.RateLimitPerMin, rateBurst),
		log:        opts.Logger,
	}
	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// ---------------------------------------------------------------------------
// Request plumbing
// ---------------------------------------------------------------------------

// do sends one API request. path is relative to the base URL and must be
// escaped already. A non-nil out receives the decoded JSON body; *[]byte
// receives the raw body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	ctx, span := trace.StartSpan(ctx, "gofins "+method)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	attempts := 1
	if method == http.MethodGet {
		attempts = c.retries
	}

	start := time.Now()
	var status int
	err := util.Retry(ctx, attempts, c.retryDelay, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(&TransportError{Op: op, Err: err})
		}

		req := c.http.R().SetContext(ctx)
		if body != nil {
			req.SetHeader("Content-Type", "application/json").SetBody(body)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			terr := &TransportError{Op: op, Err: err}
			if ctx.Err() != nil {
				return util.Permanent(terr)
			}
			c.log.Debug("api request failed, retrying", "op", op, "error", err)
			return terr
		}

		status = resp.StatusCode()
		if status < 200 || status > 299 {
			terr := &TransportError{Op: op, Status: status, Body: strings.TrimSpace(resp.String())}
			if terr.Temporary() {
				return terr
			}
			return util.Permanent(terr)
		}

		switch dst := out.(type) {
		case nil:
		case *[]byte:
			*dst = append((*dst)[:0], resp.Body()...)
		default:
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return util.Permanent(fmt.Errorf("decoding %s: %w", op, err))
			}
		}
		return nil
	})

	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.DebugContext(ctx, "api request", "op", op, "status", status, "elapsed", time.Since(start), "error", err)
		return err
	}
	c.log.DebugContext(ctx, "api request", "op", op, "status", status, "elapsed", time.Since(start))
	return nil
}

func seg(s string) string { return url.PathEscape(s) }

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

type symbolsResponse struct {
	Symbols []domain.Symbol `json:"symbols"`
}

// ListSymbols fetches the active or favorite symbol collection.
func (c *Client) ListSymbols(ctx context.Context, list domain.SymbolList) ([]domain.Symbol, error) {
	var out symbolsResponse
	if err := c.do(ctx, http.MethodGet, list.Endpoint(), nil, &out); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// GetSymbol fetches a symbol profile.
func (c *Client) GetSymbol(ctx context.Context, ticker string) (domain.SymbolProfile, error) {
	var out domain.SymbolProfile
	err := c.do(ctx, http.MethodGet, "symbol/"+seg(ticker), nil, &out)
	return out, err
}

// AnalysisProfile fetches a symbol profile as seen by one analysis package.
func (c *Client) AnalysisProfile(ctx context.Context, packageID, ticker string) (domain.SymbolProfile, error) {
	var out domain.SymbolProfile
	err := c.do(ctx, http.MethodGet, "analysis/"+seg(packageID)+"/profile/"+seg(ticker), nil, &out)
	return out, err
}

// SymbolDetail bundles what the symbol view shows on open.
type SymbolDetail struct {
	Profile domain.SymbolProfile
	Ratings []domain.UserRating // newest first
}

// LoadSymbolDetail fetches the profile and the rating history concurrently.
// With a packageID the analysis-specific profile is used.
func (c *Client) LoadSymbolDetail(ctx context.Context, ticker, packageID string) (SymbolDetail, error) {
	var d SymbolDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if packageID != "" {
			d.Profile, err = c.AnalysisProfile(gctx, packageID, ticker)
		} else {
			d.Profile, err = c.GetSymbol(gctx, ticker)
		}
		return err
	})
	g.Go(func() error {
		var err error
		d.Ratings, err = c.RatingHistory(gctx, ticker)
		return err
	})
	if err := g.Wait(); err != nil {
		return SymbolDetail{}, err
	}
	return d, nil
}

// ---------------------------------------------------------------------------
// Favorites
// ---------------------------------------------------------------------------

// ListFavorites returns the favorite tickers.
func (c *Client) ListFavorites(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "favorites", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleFavorite flips the favorite flag and returns the server's new value.
func (c *Client) ToggleFavorite(ctx context.Context, ticker string) (bool, error) {
	var out struct {
		IsFavorite bool `json:"isFavorite"`
	}
	if err := c.do(ctx, http.MethodPost, "favorites/"+seg(ticker), nil, &out); err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

// ---------------------------------------------------------------------------
// Ratings and notes
// ---------------------------------------------------------------------------

// Rating bounds accepted by SubmitRating.
const (
	MinRating = -5
	MaxRating = 5
)

// RatingHistory returns a ticker's ratings, newest first.
func (c *Client) RatingHistory(ctx context.Context, ticker string) ([]domain.UserRating, error) {
	var out []domain.UserRating
	if err := c.do(ctx, http.MethodGet, "ratings/"+seg(ticker)+"/history", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateRating checks the rating range before anything is sent.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return &ValidationError{
			Field:   "rating",
			Message: fmt.Sprintf("Rating must be between %d and %d", MinRating, MaxRating),
		}
	}
	return nil
}

// SubmitRating records a rating with optional notes. Blank notes are omitted.
func (c *Client) SubmitRating(ctx context.Context, ticker string, rating int, notes string) (domain.UserRating, error) {
	if err := ValidateRating(rating); err != nil {
		return domain.UserRating{}, err
	}
	body := struct {
		Rating int     `json:"rating"`
		Notes  *string `json:"notes,omitempty"`
	}{Rating: rating}
	if n := strings.TrimSpace(notes); n != "" {
		body.Notes = &n
	}

	var out domain.UserRating
	err := c.do(ctx, http.MethodPost, "ratings/"+seg(ticker), body, &out)
	return out, err
}

// DeleteRating removes one rating entry.
func (c *Client) DeleteRating(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "ratings/"+strconv.FormatInt(id, 10), nil, nil)
}

// ListNotes returns every rating that carries notes.
func (c *Client) ListNotes(ctx context.Context) ([]domain.Note, error) {
	var out []domain.Note
	if err := c.do(ctx, http.MethodGet, "notes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Analyses
// ---------------------------------------------------------------------------

// ListAnalyses returns every analysis package.
func (c *Client) ListAnalyses(ctx context.Context) ([]domain.AnalysisPackage, error) {
	var out []domain.AnalysisPackage
	if err := c.do(ctx, http.MethodGet, "analyses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAnalysis fetches one package. A missing package yields an error
// matching ErrNotFound.
func (c *Client) GetAnalysis(ctx context.Context, id string) (domain.AnalysisPackage, error) {
	var out domain.AnalysisPackage
	err := c.do(ctx, http.MethodGet, "analysis/"+seg(id), nil, &out)
	return out, err
}

// AnalysisResults fetches the per-symbol statistics of a ready package.
func (c *Client) AnalysisResults(ctx context.Context, id string) ([]domain.AnalysisResult, error) {
	var out []domain.AnalysisResult
	if err := c.do(ctx, http.MethodGet, "analysis/"+seg(id)+"/results", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAnalysis submits a new package. The backend answers immediately
// with the id; the package starts in the processing state.
func (c *Client) CreateAnalysis(ctx context.Context, req domain.CreateAnalysisRequest) (domain.CreateAnalysisResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.CreateAnalysisResponse{}, &ValidationError{Field: "name", Message: "Analysis name is required"}
	}
	var out domain.CreateAnalysisResponse
	err := c.do(ctx, http.MethodPost, "analyses", req, &out)
	return out, err
}

// RenameAnalysis changes a package name.
func (c *Client) RenameAnalysis(ctx context.Context, id, name string) (domain.AnalysisPackage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.AnalysisPackage{}, &ValidationError{Field: "name", Message: "Name cannot be empty"}
	}
	body := struct {
		Name string `json:"name"`
	}{Name: name}

	var out domain.AnalysisPackage
	err := c.do(ctx, http.MethodPut, "analysis/"+seg(id), body, &out)
	return out, err
}

// DeleteAnalysis removes a package and its results.
func (c *Client) DeleteAnalysis(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "analysis/"+seg(id), nil, nil)
}

// ---------------------------------------------------------------------------
// Prices, errors, user
// ---------------------------------------------------------------------------

// PriceHistory returns monthly or weekly bars for ticker, oldest first.
func (c *Client) PriceHistory(ctx context.Context, interval domain.Interval, ticker string) ([]domain.PriceBar, error) {
	if interval != domain.IntervalMonthly && interval != domain.IntervalWeekly {
		return nil, &ValidationError{Field: "interval", Message: fmt.Sprintf("unsupported price interval %q", interval)}
	}
	var out struct {
		Prices []domain.PriceBar `json:"prices"`
	}
	if err := c.do(ctx, http.MethodGet, "prices/"+string(interval)+"/"+seg(ticker), nil, &out); err != nil {
		return nil, err
	}
	return out.Prices, nil
}

// ListErrors returns the backend error log, newest first.
func (c *Client) ListErrors(ctx context.Context) ([]domain.ErrorEntry, error) {
	var out []domain.ErrorEntry
	if err := c.do(ctx, http.MethodGet, "errors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearErrors empties the error log and returns how many entries it held.
func (c *Client) ClearErrors(ctx context.Context) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "errors", nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, http.MethodGet, "user", nil, &out)
	return out, err
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

// ChartPath and the other image helpers return paths relative to the API
// root; pass them to ImageURL or FetchImage.
func ChartPath(ticker string) string { return "symbol/" + seg(ticker) + "/chart" }

func HistogramPath(ticker string) string { return "symbol/" + seg(ticker) + "/histogram" }

func AnalysisChartPath(packageID, ticker string) string {
	return "analysis/" + seg(packageID) + "/chart/" + seg(ticker)
}

func AnalysisHistogramPath(packageID, ticker string) string {
	return "analysis/" + seg(packageID) + "/histogram/" + seg(ticker)
}

// ImageURL returns the absolute URL of an image path.
func (c *Client) ImageURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// FetchImage downloads PNG bytes.
func (c *Client) FetchImage(ctx context.Context, path string) ([]byte, error) {
	var out []byte
	if err := c.do(ctx, http.MethodGet, strings.TrimLeft(path, "/"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
