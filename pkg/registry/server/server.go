// Package server serves the registry wire protocol over a [store.Store].
//
// `nativepkg serve` runs it as a local mirror; tests run it behind httptest
// as a realistic registry.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/registry"
	"github.com/matzehuels/nativepkg/pkg/registry/store"
	"github.com/matzehuels/nativepkg/pkg/version"
)

// Options configures a [Server].
type Options struct {
	// Token is the bearer token required to publish. Empty disables publishing.
	Token string

	// Logger receives one line per request. Nil discards.
	Logger *log.Logger
}

// Server is an http.Handler implementing the registry protocol.
type Server struct {
	store  store.Store
	token  string
	logger *log.Logger
	router chi.Router
}

// New creates a server over st.
func New(st store.Store, opts Options) *Server {
	s := &Server{store: st, token: opts.Token, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/{id}/", s.handleList)
	r.Get("/{id}", s.handleLatest)
	r.Get("/{id}/{version}", s.handleGet)
	r.Put("/{id}/{version}", s.handlePublish)
	r.Post("/{id}/{version}", s.handlePublish)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rng, err := version.ParseRange(r.URL.Query().Get("req"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	versions, err := s.store.Versions(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}

	out := make([]registry.Summary, 0, len(versions))
	for _, v := range versions {
		if !rng.Match(version.MustParse(v)) {
			continue
		}
		out = append(out, registry.Summary{ID: id, Version: v})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rng, err := version.ParseRange(r.URL.Query().Get("req"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	versions, err := s.store.Versions(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	// versions are highest first
	for _, v := range versions {
		if rng.Match(version.MustParse(v)) {
			respondJSON(w, http.StatusOK, registry.Summary{ID: id, Version: v})
			return
		}
	}
	respondError(w, http.StatusNotFound, "no version of "+id+" matches "+rng.String())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "version"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.token == "" || r.Header.Get("Authorization") != "Bearer "+s.token {
		respondError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	var m manifest.Manifest
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		respondError(w, http.StatusBadRequest, "invalid manifest body")
		return
	}
	if err := m.NormalizeExtensions(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, ver := chi.URLParam(r, "id"), chi.URLParam(r, "version")
	if !strings.EqualFold(m.ID, id) || m.Version != ver {
		respondError(w, http.StatusBadRequest, "manifest id/version does not match the request path")
		return
	}
	if err := m.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.Put(r.Context(), &m)
	if err != nil {
		s.storeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, registry.Summary{ID: m.ID, Version: m.Version})
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if s.logger != nil {
		s.logger.Error("store failure", "error", err)
	}
	respondError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.logger == nil {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info(r.Method+" "+r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
