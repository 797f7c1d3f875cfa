// Package server exposes the search index over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hnm/search/internal/metrics"
	"github.com/hnm/search/internal/search"
)

// Server wires HTTP handlers to the indexer and searcher.
type Server struct {
	router   chi.Router
	indexer  *search.Indexer
	searcher *search.Searcher
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New constructs a Server with middleware and routes.
func New(indexer *search.Indexer, searcher *search.Searcher, opts ...Option) *Server {
	s := &Server{
		indexer:  indexer,
		searcher: searcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/search", s.search)
	r.Post("/index", s.addEntry)
	r.Delete("/index", s.removeEntry)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchResult struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Description string       `json:"description"`
	Group       *groupResult `json:"group,omitempty"`
}

type groupResult struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// search answers GET /search?ss=<text>&nl=<locale>[&gk=<json array>][&stat=1].
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if !params.Has("ss") || !params.Has("nl") {
		writeError(w, http.StatusNotFound, "search text and locale required")
		return
	}

	q := search.Query{
		Text:       params.Get("ss"),
		Locale:     params.Get("nl"),
		RecordStat: parseBool(params.Get("stat")),
	}
	if gk := params.Get("gk"); gk != "" {
		if err := json.Unmarshal([]byte(gk), &q.GroupKeys); err != nil {
			writeError(w, http.StatusBadRequest, "gk must be a JSON array of group keys")
			return
		}
	}
	if limit := params.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	hits, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		if errors.Is(err, search.ErrInvalidLocale) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", "text", q.Text, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]searchResult, 0, len(hits))
	for i := range hits {
		hit := &hits[i]
		result := searchResult{
			Title:       hit.Title,
			URL:         hit.URL,
			Description: search.Snippet(&hit.Entry, q.Text),
		}
		if hit.GroupLabel != nil {
			result.Group = &groupResult{
				Key:   hit.GroupLabel.GroupKey,
				Label: hit.GroupLabel.Label,
				URL:   hit.GroupLabel.URL,
			}
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   strings.TrimSpace(q.Text),
		"count":   len(results),
		"results": results,
	})
}

type indexRequest struct {
	URL                string   `json:"url"`
	HTML               string   `json:"html"`
	Locale             string   `json:"locale"`
	GroupKey           string   `json:"group_key"`
	AllowedQueryParams []string `json:"allowed_query_params"`
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	opts := search.DefaultHTMLOptions()
	opts.GroupKey = req.GroupKey
	opts.AllowedQueryParams = req.AllowedQueryParams

	entry, err := s.indexer.AddFromHTML(r.Context(), req.URL, req.HTML, req.Locale, opts)
	if err != nil {
		if errors.Is(err, search.ErrInvalidURL) || errors.Is(err, search.ErrInvalidLocale) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("index failed", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "index failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": entry.ID, "url": entry.URL})
}

func (s *Server) removeEntry(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rawURL := query.Get("url")
	removed, err := s.indexer.Remove(r.Context(), rawURL, query["allow_param"]...)
	if err != nil {
		if errors.Is(err, search.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("remove failed", "url", rawURL, "error", err)
		writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
