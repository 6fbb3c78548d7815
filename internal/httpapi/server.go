package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finsview/internal/domain"
)

// Options configures the HTTP layer.
type Options struct {
	// Username and Password enable Basic auth when Username is non-empty.
	Username string
	Password string
}

// Server serves the backend API.
type Server struct {
	data *Backend
	opts Options
	log  *slog.Logger
}

// NewServer creates a new HTTP server over data.
func NewServer(data *Backend, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{data: data, opts: opts, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/symbols/active", s.handleSymbols(domain.ListActive))
	mux.HandleFunc("GET /api/symbols/favorites", s.handleSymbols(domain.ListFavorites))
	mux.HandleFunc("GET /api/symbol/{ticker}", s.handleSymbol)
	mux.HandleFunc("GET /api/symbol/{ticker}/chart", s.handleSymbolChart)
	mux.HandleFunc("GET /api/symbol/{ticker}/histogram", s.handleSymbolHistogram)
	mux.HandleFunc("GET /api/prices/{interval}/{ticker}", s.handlePrices)

	mux.HandleFunc("GET /api/user", s.handleUser)

	mux.HandleFunc("GET /api/analyses", s.handleListAnalyses)
	mux.HandleFunc("POST /api/analyses", s.handleCreateAnalysis)
	mux.HandleFunc("GET /api/analysis/{id}", s.handleGetAnalysis)
	mux.HandleFunc("PUT /api/analysis/{id}", s.handleRenameAnalysis)
	mux.HandleFunc("DELETE /api/analysis/{id}", s.handleDeleteAnalysis)
	mux.HandleFunc("GET /api/analysis/{id}/results", s.handleAnalysisResults)
	mux.HandleFunc("GET /api/analysis/{id}/profile/{ticker}", s.handleAnalysisProfile)
	mux.HandleFunc("GET /api/analysis/{id}/chart/{ticker}", s.handleAnalysisChart)
	mux.HandleFunc("GET /api/analysis/{id}/histogram/{ticker}", s.handleAnalysisHistogram)

	mux.HandleFunc("GET /api/favorites", s.handleListFavorites)
	mux.HandleFunc("POST /api/favorites/{ticker}", s.handleToggleFavorite)

	mux.HandleFunc("POST /api/ratings/{ticker}", s.handleAddRating)
	mux.HandleFunc("GET /api/ratings/{ticker}/history", s.handleRatingHistory)
	mux.HandleFunc("DELETE /api/ratings/{id}", s.handleDeleteRating)
	mux.HandleFunc("GET /api/notes", s.handleNotes)

	mux.Handle("GET /api/errors", s.adminOnly(http.HandlerFunc(s.handleListErrors)))
	mux.Handle("DELETE /api/errors", s.adminOnly(http.HandlerFunc(s.handleClearErrors)))
}

// Handler returns an http.Handler with CORS, auth and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.logRequests(s.basicAuth(mux)))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	if s.opts.Username == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.opts.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.opts.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="finsview"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.data.User().IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// fail maps backend errors to HTTP statuses. Unexpected errors are recorded
// in the error log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequestError
	switch {
	case errors.Is(err, errNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &bad):
		s.data.LogError("api", "validation", bad.msg, domain.Ptr(r.Method+" "+r.URL.Path))
		writeError(w, http.StatusBadRequest, bad.msg)
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.data.LogError("api", "internal", err.Error(), domain.Ptr(r.Method+" "+r.URL.Path))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok", Symbols: len(s.data.Symbols(domain.ListActive))})
}

func (s *Server) handleSymbols(list domain.SymbolList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbols := s.data.Symbols(list)
		writeJSON(w, SymbolsResponse{Symbols: symbols, Total: len(symbols)})
	}
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	p, err := s.data.Profile(r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleSymbolChart(w http.ResponseWriter, r *http.Request) {
	bars, err := s.data.Prices(domain.IntervalWeekly, r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := renderChart(bars)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePNG(w, img)
}

func (s *Server) handleSymbolHistogram(w http.ResponseWriter, r *http.Request) {
	bars, err := s.data.Prices(domain.IntervalMonthly, r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var yoy []float64
	for _, b := range bars {
		if b.YoY != nil {
			yoy = append(yoy, *b.YoY)
		}
	}
	img, err := renderHistogram(yoy, 100, -80, 80)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePNG(w, img)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	interval := domain.Interval(r.PathValue("interval"))
	ticker := strings.ToUpper(r.PathValue("ticker"))
	bars, err := s.data.Prices(interval, ticker)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if bars == nil {
		bars = []domain.PriceBar{}
	}
	writeJSON(w, PricesResponse{Ticker: ticker, Interval: interval, Prices: bars})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.User())
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.Analyses())
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	resp, err := s.data.CreateAnalysis(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, resp)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.data.Analysis(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, pkg)
}

func (s *Server) handleRenameAnalysis(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	pkg, err := s.data.RenameAnalysis(r.PathValue("id"), req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, pkg)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.data.DeleteAnalysis(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalysisResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.data.Results(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if results == nil {
		results = []domain.AnalysisResult{}
	}
	writeJSON(w, results)
}

func (s *Server) handleAnalysisProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.data.AnalysisProfile(r.PathValue("id"), r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleAnalysisChart(w http.ResponseWriter, r *http.Request) {
	pkg, _, err := s.data.analysisSeries(r.PathValue("id"), r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	interval := pkg.Interval
	if interval == domain.IntervalDaily {
		interval = domain.IntervalWeekly
	}
	bars, err := s.data.Prices(interval, r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var window []domain.PriceBar
	for _, b := range bars {
		if !b.Date.Before(pkg.TimeFrom) && !b.Date.After(pkg.TimeTo) {
			window = append(window, b)
		}
	}
	img, err := renderChart(window)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePNG(w, img)
}

func (s *Server) handleAnalysisHistogram(w http.ResponseWriter, r *http.Request) {
	pkg, series, err := s.data.analysisSeries(r.PathValue("id"), r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	img, err := renderHistogram(series, pkg.HistBins, pkg.HistMin, pkg.HistMax)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePNG(w, img)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.Favorites())
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := s.data.ToggleFavorite(r.PathValue("ticker"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, FavoriteResponse{IsFavorite: fav})
}

func (s *Server) handleAddRating(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	rating, err := s.data.AddRating(r.PathValue("ticker"), req.Rating, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rating)
}

func (s *Server) handleRatingHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.RatingHistory(r.PathValue("ticker")))
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.fail(w, r, badRequest("Invalid rating ID"))
		return
	}
	if err := s.data.DeleteRating(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.Notes())
}

func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.data.Errors())
}

func (s *Server) handleClearErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ClearErrorsResponse{Deleted: s.data.ClearErrors()})
}
