package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ajitpratap0/openclaw-ladder/internal/corpus"
	"github.com/ajitpratap0/openclaw-ladder/internal/graph"
	"github.com/ajitpratap0/openclaw-ladder/internal/ingest"
	"github.com/ajitpratap0/openclaw-ladder/internal/ladder"
	"github.com/ajitpratap0/openclaw-ladder/internal/metrics"
	"github.com/ajitpratap0/openclaw-ladder/internal/models"
	"github.com/ajitpratap0/openclaw-ladder/internal/render"
	"github.com/ajitpratap0/openclaw-ladder/internal/search"
	"github.com/ajitpratap0/openclaw-ladder/internal/store"
	"github.com/ajitpratap0/openclaw-ladder/internal/validate"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxBodyBytes    = 4 << 20
)

// Options configures a Server.
type Options struct {
	AuthToken   string // empty = no auth required
	SearchLimit int
	Fuzzy       bool
}

// Server is an HTTP API server that exposes the corpus.
type Server struct {
	corpus   *corpus.Corpus
	pipeline *ingest.Pipeline
	index    *search.Index
	logger   *slog.Logger
	opts     Options

	// refreshMu makes the snapshot taken last also the one indexed last.
	refreshMu sync.Mutex
}

// NewServer creates a new Server. pipeline may be nil for a read-only server and
// index may be nil when search is disabled.
func NewServer(c *corpus.Corpus, pipeline *ingest.Pipeline, index *search.Index, logger *slog.Logger, opts Options) *Server {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	return &Server{corpus: c, pipeline: pipeline, index: index, logger: logger, opts: opts}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth)

		r.Get("/entries", s.handleListEntries)
		r.Put("/entries", s.handlePutEntry)
		r.Get("/entries/{id}", s.handleGetEntry)
		r.Get("/entries/{id}/levels/{level}", s.handleSelectLevel)
		r.Get("/entries/{id}/render", s.handleRender)
		r.Get("/entries/{id}/neighbors", s.handleNeighbors)
		r.Get("/entries/{id}/ancestors", s.handleAncestors)
		r.Get("/entries/{id}/backlinks", s.handleBacklinks)
		r.Get("/references/dangling", s.handleDangling)
		r.Get("/tags/{facet}/{value}", s.handleByTag)
		r.Get("/coverage/{level}", s.handleCoverage)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Refresh recomputes corpus gauges and brings the search index up to date.
// Call it after the corpus changes outside the API.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	snap := s.corpus.Snapshot()
	metrics.CorpusEntries.Set(float64(snap.Len()))
	metrics.DanglingReferences.Set(float64(len(snap.ResolveReferences())))
	if s.index == nil {
		return nil
	}
	_, err := s.index.Rebuild(ctx, snap)
	return err
}

// --- middleware ---

// requestID propagates or assigns an X-Request-ID header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// observe records request metrics by route pattern and logs each request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("http request",
			"method", r.Method, "route", route, "status", status,
			"duration_ms", elapsed.Milliseconds(), "request_id", w.Header().Get("X-Request-ID"))
	})
}

// auth wraps a handler with Bearer token authentication when a token is configured.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "entries": s.corpus.Len()})
}

// listResponse is returned by GET /v1/entries.
type listResponse struct {
	Entries    []models.Entry `json:"entries"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &store.Filters{IncludeDeprecated: q.Get("includeDeprecated") == "true"}

	if v := q.Get("type"); v != "" {
		et := models.EntryType(v)
		if !et.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid entry type")
			return
		}
		filters.Type = &et
	}
	if v := q.Get("status"); v != "" {
		st := models.Status(v)
		if !st.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filters.Status = &st
	}
	if facet := q.Get("facet"); facet != "" {
		f := models.Facet(facet)
		if !f.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid tag facet")
			return
		}
		filters.Tag = &store.TagFilter{Facet: f, Value: q.Get("value")}
	}
	minLevel, err := intParam(q.Get("minLevel"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "minLevel must be an integer")
		return
	}
	filters.MinLevel = minLevel

	limit, err := intParam(q.Get("limit"), defaultPageSize)
	if err != nil || limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	entries, next, err := s.corpus.List(r.Context(), filters, uint64(limit), q.Get("cursor"))
	if err != nil {
		s.writeFailure(w, err, "failed to list entries")
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{Entries: entries, NextCursor: next})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := s.corpus.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err, "failed to get entry")
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeError(w, http.StatusMethodNotAllowed, "server is read-only")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := s.pipeline.AdmitOne(r.Context(), raw)
	if err != nil {
		s.writeFailure(w, err, "failed to store entry")
		return
	}
	if err := s.Refresh(r.Context()); err != nil {
		s.logger.Warn("refresh after put failed", "id", e.ID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, e)
}

// levelResponse is returned by GET /v1/entries/{id}/levels/{level}.
type levelResponse struct {
	EntryID        string              `json:"entryId"`
	RequestedLevel int                 `json:"requestedLevel"`
	Level          int                 `json:"level"`
	Content        models.LevelContent `json:"content"`
}

func (s *Server) handleSelectLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "level must be an integer")
		return
	}
	e, err := s.corpus.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err, "failed to get entry")
		return
	}
	lc, ok := ladder.Select(e, level)
	if !ok {
		s.writeError(w, http.StatusNotFound, "entry has no levels")
		return
	}
	s.writeJSON(w, http.StatusOK, levelResponse{EntryID: e.ID, RequestedLevel: level, Level: lc.Level, Content: lc})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	level, err := intParam(r.URL.Query().Get("level"), 1)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "level must be an integer")
		return
	}
	page := render.Render(s.corpus.Snapshot(), chi.URLParam(r, "id"), level)
	status := http.StatusOK
	if !page.Available {
		status = http.StatusNotFound
	}
	s.writeJSON(w, status, page)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	rels, ok := s.relationships(w, r)
	if !ok {
		return
	}
	edges, err := graph.Neighbors(s.corpus.Snapshot(), chi.URLParam(r, "id"), rels...)
	if err != nil {
		s.writeFailure(w, err, "failed to get neighbors")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"edges": nonNil(edges)})
}

func (s *Server) handleBacklinks(w http.ResponseWriter, r *http.Request) {
	rels, ok := s.relationships(w, r)
	if !ok {
		return
	}
	edges := graph.Backlinks(s.corpus.Snapshot(), chi.URLParam(r, "id"), rels...)
	s.writeJSON(w, http.StatusOK, map[string]any{"edges": nonNil(edges)})
}

func (s *Server) handleAncestors(w http.ResponseWriter, r *http.Request) {
	chain, err := graph.Ancestors(s.corpus.Snapshot(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, err, "failed to walk ancestors")
		return
	}
	s.writeJSON(w, http.StatusOK, chain)
}

func (s *Server) handleDangling(w http.ResponseWriter, _ *http.Request) {
	refs := s.corpus.Snapshot().ResolveReferences()
	s.writeJSON(w, http.StatusOK, map[string]any{"dangling": nonNil(refs)})
}

func (s *Server) handleByTag(w http.ResponseWriter, r *http.Request) {
	entries, err := s.corpus.Snapshot().ByTag(models.Facet(chi.URLParam(r, "facet")), chi.URLParam(r, "value"))
	if err != nil {
		s.writeFailure(w, err, "failed to query tags")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "level must be an integer")
		return
	}
	entries := s.corpus.Snapshot().ByLevelCoverage(level)
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": nonNil(entries)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.writeError(w, http.StatusServiceUnavailable, "search is disabled")
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), s.opts.SearchLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	opts := search.Options{Fuzzy: s.opts.Fuzzy || q.Get("fuzzy") == "true"}
	if t := q.Get("type"); t != "" {
		opts.Types = []models.EntryType{models.EntryType(t)}
	}
	hits, err := s.index.Search(r.Context(), q.Get("q"), limit, opts)
	if err != nil {
		s.writeFailure(w, err, "search failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.corpus.Stats(r.Context())
	if err != nil {
		s.writeFailure(w, err, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

func (s *Server) relationships(w http.ResponseWriter, r *http.Request) ([]models.Relationship, bool) {
	raw := r.URL.Query().Get("relationship")
	if raw == "" {
		return nil, true
	}
	var rels []models.Relationship
	for _, part := range strings.Split(raw, ",") {
		rel := models.Relationship(strings.TrimSpace(part))
		if !rel.IsValid() {
			s.writeError(w, http.StatusBadRequest, "invalid relationship "+string(rel))
			return nil, false
		}
		rels = append(rels, rel)
	}
	return rels, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error      string               `json:"error"`
	Violations []validate.Violation `json:"violations,omitempty"`
}

// writeFailure maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 with msg.
func (s *Server) writeFailure(w http.ResponseWriter, err error, msg string) {
	var ve *validate.ValidationError
	switch {
	case errors.As(err, &ve):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Error(), Violations: ve.Violations})
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrStaleVersion), errors.Is(err, store.ErrRetired), errors.Is(err, corpus.ErrFrozen):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, corpus.ErrUnknownFacet), errors.Is(err, search.ErrEmptyQuery):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(msg, "error", err)
		s.writeError(w, http.StatusInternalServerError, msg)
	}
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
