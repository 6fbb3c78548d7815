package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finsview/internal/domain"
)

var errNotFound = errors.New("not found")

// badRequestError is returned for input the backend rejects with 400.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// errNotReady answers a results request for a package still processing.
var errNotReady = errors.New("analysis not ready")

type analysisRecord struct {
	pkg     domain.AnalysisPackage
	readyAt time.Time
	results []domain.AnalysisResult
	yoy     map[string][]float64
}

// Backend is the in-memory dataset behind the dev server. All methods are
// safe for concurrent use.
type Backend struct {
	mu  sync.Mutex
	log *slog.Logger
	now func() time.Time

	processing time.Duration

	order    []string
	profiles map[string]domain.SymbolProfile
	weekly   map[string][]domain.PriceBar
	monthly  map[string][]domain.PriceBar

	favorites    map[string]bool
	ratings      []domain.UserRating // insertion order
	nextRatingID int64

	analyses map[string]*analysisRecord

	errLog    []domain.ErrorEntry
	nextErrID int64

	user domain.User
}

// BackendOptions configures NewBackend.
type BackendOptions struct {
	// ProcessingDelay is how long a new analysis stays in processing.
	ProcessingDelay time.Duration
	UserName        string
	Admin           bool
	// Now replaces the wall clock in tests.
	Now func() time.Time
}

// NewBackend returns a backend seeded with the dev dataset.
func NewBackend(opts BackendOptions, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UserName == "" {
		opts.UserName = "dev"
	}
	b := &Backend{
		log:        log,
		now:        opts.Now,
		processing: opts.ProcessingDelay,
		profiles:   make(map[string]domain.SymbolProfile),
		weekly:     make(map[string][]domain.PriceBar),
		monthly:    make(map[string][]domain.PriceBar),
		favorites:  make(map[string]bool),
		analyses:   make(map[string]*analysisRecord),
	}
	b.user = domain.User{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("finsview:"+opts.UserName)).String(),
		Name:      opts.UserName,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsAdmin:   opts.Admin,
	}
	b.seed()
	return b
}

func (b *Backend) seed() {
	now := b.now().UTC()
	yearAgo := now.AddDate(-1, 0, 0)

	for _, s := range seedSymbols {
		p := domain.SymbolProfile{
			Symbol: domain.Symbol{
				Ticker:            s.ticker,
				Exchange:          nonEmpty(s.exchange),
				Name:              nonEmpty(s.name),
				Type:              nonEmpty(s.typ),
				Sector:            nonEmpty(s.sector),
				Industry:          nonEmpty(s.industry),
				Country:           nonEmpty(s.country),
				IsActivelyTrading: domain.Ptr(!s.inactive),
			},
			Currency: nonEmpty(s.currency),
			Website:  nonEmpty(s.website),
			ISIN:     nonEmpty(s.isin),
		}
		if s.mcap > 0 {
			p.MarketCap = domain.Ptr(s.mcap)
		}
		if t, err := time.Parse("2006-01-02", s.inception); err == nil {
			p.Inception = &t
		}
		oldest, err := time.Parse("2006-01-02", s.oldestPrice)
		if err != nil {
			oldest = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		p.OldestPrice = &oldest
		if s.industry != "" {
			p.Description = domain.Ptr(fmt.Sprintf("%s operates in %s.", s.name, strings.ToLower(s.industry)))
		}

		weekly := weeklyBars(s, oldest, now)
		if len(weekly) > 0 {
			p.CurrentPriceUSD = domain.Ptr(weekly[len(weekly)-1].Close)
			var ath float64
			for _, bar := range weekly {
				if !bar.Date.Before(yearAgo) && bar.High > ath {
					ath = bar.High
				}
			}
			p.ATH12M = domain.Ptr(ath)
		}

		b.order = append(b.order, s.ticker)
		b.profiles[s.ticker] = p
		b.weekly[s.ticker] = weekly
		b.monthly[s.ticker] = monthlyBars(weekly)
	}

	for _, t := range seedFavorites {
		b.favorites[t] = true
	}
	for _, r := range seedRatings {
		b.nextRatingID++
		ur := domain.UserRating{ID: b.nextRatingID, Ticker: r.ticker, Rating: r.rating, CreatedAt: now.Add(-r.ago)}
		if r.notes != "" {
			ur.Notes = domain.Ptr(r.notes)
		}
		b.ratings = append(b.ratings, ur)
	}
	sort.SliceStable(b.ratings, func(i, j int) bool { return b.ratings[i].CreatedAt.Before(b.ratings[j].CreatedAt) })

	for _, e := range seedErrors {
		b.nextErrID++
		entry := domain.ErrorEntry{
			ID: b.nextErrID, Timestamp: now.Add(-e.ago),
			Source: e.source, ErrorType: e.errorType, Message: e.message,
		}
		if e.details != "" {
			entry.Details = domain.Ptr(e.details)
		}
		b.errLog = append(b.errLog, entry)
	}

	// One finished analysis so the Analyses tab is not empty on first start.
	from := time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	pkg := domain.AnalysisPackage{
		ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("finsview:seed-analysis")).String(),
		Name:      "Large caps since 2009",
		CreatedAt: now.Add(-48 * time.Hour),
		Interval:  domain.IntervalMonthly,
		TimeFrom:  from,
		TimeTo:    to,
		HistBins:  100,
		HistMin:   -80,
		HistMax:   80,
		McapMin:   domain.Ptr(1e10),
	}
	b.addAnalysis(pkg, pkg.CreatedAt)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// decorate adds the per-user fields. Caller holds b.mu.
func (b *Backend) decorate(s domain.Symbol) domain.Symbol {
	s.IsFavorite = domain.Ptr(b.favorites[s.Ticker])
	if r := b.latestRating(s.Ticker); r != nil {
		s.UserRating = domain.Ptr(r.Rating)
		s.LatestRating = domain.Ptr(r.Rating)
	}
	return s
}

// Symbols returns the active symbols or the favorites, in seed order.
func (b *Backend) Symbols(list domain.SymbolList) []domain.Symbol {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Symbol, 0, len(b.order))
	for _, t := range b.order {
		p := b.profiles[t]
		switch list {
		case domain.ListFavorites:
			if !b.favorites[t] {
				continue
			}
		default:
			if !domain.Deref(p.IsActivelyTrading) {
				continue
			}
		}
		out = append(out, b.decorate(p.Symbol))
	}
	return out
}

// Profile returns the full profile of ticker.
func (b *Backend) Profile(ticker string) (domain.SymbolProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.profiles[strings.ToUpper(ticker)]
	if !ok {
		return domain.SymbolProfile{}, errNotFound
	}
	p.Symbol = b.decorate(p.Symbol)
	return p, nil
}

// AnalysisProfile returns ticker's profile if it is part of the package.
func (b *Backend) AnalysisProfile(id, ticker string) (domain.SymbolProfile, error) {
	b.mu.Lock()
	rec, ok := b.analyses[id]
	var member bool
	if ok {
		_, member = rec.yoy[strings.ToUpper(ticker)]
	}
	b.mu.Unlock()
	if !ok || !member {
		return domain.SymbolProfile{}, errNotFound
	}
	return b.Profile(ticker)
}

// Prices returns the bars of ticker for the weekly or monthly interval.
func (b *Backend) Prices(interval domain.Interval, ticker string) ([]domain.PriceBar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ticker = strings.ToUpper(ticker)
	if _, ok := b.profiles[ticker]; !ok {
		return nil, errNotFound
	}
	switch interval {
	case domain.IntervalWeekly:
		return b.weekly[ticker], nil
	case domain.IntervalMonthly:
		return b.monthly[ticker], nil
	}
	return nil, badRequest("Invalid interval (must be 'weekly' or 'monthly')")
}

// ---------------------------------------------------------------------------
// Favorites and ratings
// ---------------------------------------------------------------------------

// Favorites returns the favorite tickers sorted.
func (b *Backend) Favorites() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.favorites))
	for t, fav := range b.favorites {
		if fav {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// ToggleFavorite flips the flag of ticker and returns the new value.
func (b *Backend) ToggleFavorite(ticker string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ticker = strings.ToUpper(ticker)
	if _, ok := b.profiles[ticker]; !ok {
		return false, errNotFound
	}
	b.favorites[ticker] = !b.favorites[ticker]
	if !b.favorites[ticker] {
		delete(b.favorites, ticker)
		return false, nil
	}
	return true, nil
}

func (b *Backend) latestRating(ticker string) *domain.UserRating {
	for i := len(b.ratings) - 1; i >= 0; i-- {
		if b.ratings[i].Ticker == ticker {
			r := b.ratings[i]
			return &r
		}
	}
	return nil
}

// AddRating records a rating for ticker.
func (b *Backend) AddRating(ticker string, rating int, notes *string) (domain.UserRating, error) {
	if rating < -5 || rating > 5 {
		return domain.UserRating{}, badRequest("Rating must be between -5 and 5")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	ticker = strings.ToUpper(ticker)
	if _, ok := b.profiles[ticker]; !ok {
		return domain.UserRating{}, errNotFound
	}
	if notes != nil && strings.TrimSpace(*notes) == "" {
		notes = nil
	}
	b.nextRatingID++
	r := domain.UserRating{ID: b.nextRatingID, Ticker: ticker, Rating: rating, Notes: notes, CreatedAt: b.now().UTC()}
	b.ratings = append(b.ratings, r)
	return r, nil
}

// RatingHistory returns the ratings of ticker, newest first.
func (b *Backend) RatingHistory(ticker string) []domain.UserRating {
	b.mu.Lock()
	defer b.mu.Unlock()

	ticker = strings.ToUpper(ticker)
	out := []domain.UserRating{}
	for i := len(b.ratings) - 1; i >= 0; i-- {
		if b.ratings[i].Ticker == ticker {
			out = append(out, b.ratings[i])
		}
	}
	return out
}

// DeleteRating removes the rating with id.
func (b *Backend) DeleteRating(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, r := range b.ratings {
		if r.ID == id {
			b.ratings = append(b.ratings[:i], b.ratings[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

// Notes returns every rating with notes, newest first.
func (b *Backend) Notes() []domain.Note {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []domain.Note{}
	for i := len(b.ratings) - 1; i >= 0; i-- {
		if b.ratings[i].Notes != nil {
			out = append(out, b.ratings[i])
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Analyses
// ---------------------------------------------------------------------------

// status resolves the lazy processing → ready/failed transition. Caller
// holds b.mu.
func (b *Backend) status(rec *analysisRecord) domain.AnalysisStatus {
	if rec.pkg.Status == domain.StatusProcessing && !b.now().Before(rec.readyAt) {
		if len(rec.results) == 0 {
			rec.pkg.Status = domain.StatusFailed
			b.logErrorLocked("analysis.worker", "empty", fmt.Sprintf("Analysis %q matched no symbols", rec.pkg.Name), nil)
		} else {
			rec.pkg.Status = domain.StatusReady
		}
	}
	return rec.pkg.Status
}

// Analyses returns every package, newest first.
func (b *Backend) Analyses() []domain.AnalysisPackage {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.AnalysisPackage, 0, len(b.analyses))
	for _, rec := range b.analyses {
		b.status(rec)
		out = append(out, rec.pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Analysis returns one package.
func (b *Backend) Analysis(id string) (domain.AnalysisPackage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.analyses[id]
	if !ok {
		return domain.AnalysisPackage{}, errNotFound
	}
	b.status(rec)
	return rec.pkg, nil
}

// Results returns the statistics of a ready package.
func (b *Backend) Results(id string) ([]domain.AnalysisResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.analyses[id]
	if !ok {
		return nil, errNotFound
	}
	if b.status(rec) != domain.StatusReady {
		return nil, errNotReady
	}
	return rec.results, nil
}

// CreateAnalysis validates req and starts a new package in the processing
// state. Defaults follow the create form.
func (b *Backend) CreateAnalysis(req domain.CreateAnalysisRequest) (domain.CreateAnalysisResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.CreateAnalysisResponse{}, badRequest("name is required")
	}
	now := b.now().UTC()

	interval := req.Interval
	if interval == "" {
		interval = domain.IntervalWeekly
	}
	if !interval.Valid() {
		return domain.CreateAnalysisResponse{}, badRequest("Invalid interval (must be 'daily', 'weekly' or 'monthly')")
	}

	fromStr := "2009"
	if req.TimeFrom != nil && *req.TimeFrom != "" {
		fromStr = *req.TimeFrom
	}
	from, err := domain.ParseFlexibleDate(fromStr, false)
	if err != nil {
		return domain.CreateAnalysisResponse{}, badRequest("Invalid time_from: %v", err)
	}
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if req.TimeTo != nil && *req.TimeTo != "" {
		if to, err = domain.ParseFlexibleDate(*req.TimeTo, false); err != nil {
			return domain.CreateAnalysisResponse{}, badRequest("Invalid time_to: %v", err)
		}
	}
	if to.Before(from) {
		return domain.CreateAnalysisResponse{}, badRequest("time_to must not be before time_from")
	}

	mcapMin := 100_000_000.0
	if req.McapMin != nil && *req.McapMin != "" {
		if mcapMin, err = parseMarketCap(*req.McapMin); err != nil {
			return domain.CreateAnalysisResponse{}, badRequest("Invalid mcap_min format: %v", err)
		}
	}

	var inceptionMax *time.Time
	if req.InceptionMax != nil && *req.InceptionMax != "" {
		t, err := domain.ParseFlexibleDate(*req.InceptionMax, false)
		if err != nil {
			return domain.CreateAnalysisResponse{}, badRequest("Invalid inception_max: %v", err)
		}
		inceptionMax = &t
	}

	bins := domain.Deref(req.HistBins)
	if bins <= 0 {
		bins = 100
	}
	histMin, histMax := domain.Deref(req.HistMin), domain.Deref(req.HistMax)
	if histMin == 0 && histMax == 0 {
		histMin, histMax = -80, 80
	}
	if histMin >= histMax {
		return domain.CreateAnalysisResponse{}, badRequest("hist_min must be below hist_max")
	}

	pkg := domain.AnalysisPackage{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		CreatedAt:    now,
		Interval:     interval,
		TimeFrom:     from,
		TimeTo:       to,
		HistBins:     bins,
		HistMin:      histMin,
		HistMax:      histMax,
		McapMin:      &mcapMin,
		InceptionMax: inceptionMax,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.addAnalysis(pkg, now.Add(b.processing))
	b.log.Info("analysis created", "id", pkg.ID, "name", pkg.Name, "symbols", b.analyses[pkg.ID].pkg.SymbolCount)
	return domain.CreateAnalysisResponse{PackageID: pkg.ID, Status: domain.StatusProcessing}, nil
}

// addAnalysis computes the results up front; they are exposed once readyAt
// has passed. Caller holds b.mu (or is seeding).
func (b *Backend) addAnalysis(pkg domain.AnalysisPackage, readyAt time.Time) {
	rec := &analysisRecord{readyAt: readyAt, yoy: make(map[string][]float64)}
	for _, t := range b.order {
		p := b.profiles[t]
		if !domain.Deref(p.IsActivelyTrading) {
			continue
		}
		if pkg.McapMin != nil && (p.MarketCap == nil || *p.MarketCap < *pkg.McapMin) {
			continue
		}
		if pkg.InceptionMax != nil && p.Inception != nil && p.Inception.After(*pkg.InceptionMax) {
			continue
		}

		bars := b.weekly[t]
		if pkg.Interval == domain.IntervalMonthly {
			bars = b.monthly[t]
		}
		var series []float64
		for _, bar := range bars {
			if bar.YoY == nil || bar.Date.Before(pkg.TimeFrom) || bar.Date.After(pkg.TimeTo) {
				continue
			}
			series = append(series, *bar.YoY)
		}
		if len(series) < 2 {
			continue
		}

		mean, stddev, lo, hi := describe(series)
		rec.results = append(rec.results, domain.AnalysisResult{
			Symbol: t, Mean: mean, StdDev: stddev, Min: lo, Max: hi, Inception: p.Inception,
		})
		rec.yoy[t] = series
	}

	pkg.SymbolCount = len(rec.results)
	pkg.Status = domain.StatusProcessing
	rec.pkg = pkg
	b.analyses[pkg.ID] = rec
	b.status(rec)
}

// analysisSeries returns the YoY series of ticker within package id.
func (b *Backend) analysisSeries(id, ticker string) (domain.AnalysisPackage, []float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.analyses[id]
	if !ok {
		return domain.AnalysisPackage{}, nil, errNotFound
	}
	series, ok := rec.yoy[strings.ToUpper(ticker)]
	if !ok {
		return domain.AnalysisPackage{}, nil, errNotFound
	}
	return rec.pkg, series, nil
}

// RenameAnalysis changes the name of package id.
func (b *Backend) RenameAnalysis(id, name string) (domain.AnalysisPackage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.AnalysisPackage{}, badRequest("name is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.analyses[id]
	if !ok {
		return domain.AnalysisPackage{}, errNotFound
	}
	rec.pkg.Name = name
	b.status(rec)
	return rec.pkg, nil
}

// DeleteAnalysis removes package id.
func (b *Backend) DeleteAnalysis(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.analyses[id]; !ok {
		return errNotFound
	}
	delete(b.analyses, id)
	return nil
}

func describe(xs []float64) (mean, stddev, lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		mean += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		stddev += (x - mean) * (x - mean)
	}
	stddev = math.Sqrt(stddev / float64(len(xs)-1))
	return mean, stddev, lo, hi
}

// parseMarketCap accepts plain numbers and K/M/B/T suffixes ("500M", "1.5B").
func parseMarketCap(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "T"):
		mult = 1e12
	case strings.HasSuffix(s, "B"):
		mult = 1e9
	case strings.HasSuffix(s, "M"):
		mult = 1e6
	case strings.HasSuffix(s, "K"):
		mult = 1e3
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative market cap %q", s)
	}
	return v * mult, nil
}

// ---------------------------------------------------------------------------
// Error log and user
// ---------------------------------------------------------------------------

func (b *Backend) logErrorLocked(source, errorType, message string, details *string) {
	b.nextErrID++
	b.errLog = append(b.errLog, domain.ErrorEntry{
		ID: b.nextErrID, Timestamp: b.now().UTC(),
		Source: source, ErrorType: errorType, Message: message, Details: details,
	})
}

// LogError appends an entry to the error log.
func (b *Backend) LogError(source, errorType, message string, details *string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logErrorLocked(source, errorType, message, details)
}

// Errors returns the error log, newest first.
func (b *Backend) Errors() []domain.ErrorEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.ErrorEntry, len(b.errLog))
	for i, e := range b.errLog {
		out[len(b.errLog)-1-i] = e
	}
	return out
}

// ClearErrors empties the error log and returns the number removed.
func (b *Backend) ClearErrors() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.errLog)
	b.errLog = nil
	return n
}

// User returns the dev user.
func (b *Backend) User() domain.User {
	return b.user
}
