package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"screenscrapehub/internal/crawler"
	"screenscrapehub/internal/metrics"
	"screenscrapehub/pkg/types"
)

const (
	serviceName  = "screenscrapehub"
	maxBodyBytes = 1 << 20
)

var errMalformedBody = errors.New("invalid json payload")

// Server exposes the scrape API.
type Server struct {
	scraper Scraper
	metrics *metrics.PrometheusMetrics
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// NewServer wires handlers onto an HTTP mux. m may be nil.
func NewServer(scraper Scraper, m *metrics.PrometheusMetrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		scraper: scraper,
		metrics: m,
		logger:  logger.With("component", "api"),
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.handler = s.withRequestID(s.withLogging(s.withRecovery(s.mux)))
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/scrape", s.handleScrape)
	s.mux.HandleFunc("/api/links", s.handleLinks)
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)
	s.mux.HandleFunc("/docs", s.handleDocs)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no route for " + r.URL.Path, Kind: KindNotFound})
		return
	}
	s.handleHealth(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   serviceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	seed, err := seedFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindInvalidRequest})
		return
	}

	results, err := s.scraper.Scrape(r.Context(), seed)
	if err != nil {
		s.writeScrapeError(w, r, seed, err)
		return
	}
	if results == nil {
		results = types.ScrapeResponse{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	seed, err := seedFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindInvalidRequest})
		return
	}

	report, err := s.scraper.Discover(r.Context(), seed)
	if err != nil {
		s.writeScrapeError(w, r, seed, err)
		return
	}
	if report.Links == nil {
		report.Links = []types.LinkCandidate{}
	}
	if report.Rejected == nil {
		report.Rejected = []types.RejectedLink{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) writeScrapeError(w http.ResponseWriter, r *http.Request, seed string, err error) {
	var seedErr *crawler.SeedError
	switch {
	case errors.Is(err, crawler.ErrInvalidSeed):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindInvalidURL})
	case errors.As(err, &seedErr):
		resp := ErrorResponse{Error: err.Error(), Kind: KindSeedFetchFailed}
		if seedErr.Failure != nil {
			resp.Reason = seedErr.Failure.Reason()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		s.logger.Error("scrape failed", "seed", seed, "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: KindInternal})
	}
}

// seedFromRequest reads the seed URL from the query string or, for POST, the
// JSON body. A non-empty query parameter wins over the body.
func seedFromRequest(r *http.Request) (string, error) {
	if q := strings.TrimSpace(r.URL.Query().Get("url")); q != "" {
		return q, nil
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return "", nil
	}

	var req types.ScrapeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return strings.TrimSpace(req.URL), nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error: fmt.Sprintf("method %s not allowed", r.Method),
		Kind:  KindMethodNotAllowed,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
