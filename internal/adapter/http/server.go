// Package http exposes geocoding and place management over HTTP, next to
// the health, readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/geocoder-bundle/internal/domain"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
	"github.com/couchcryptid/geocoder-bundle/internal/provider"
)

const maxBodyBytes = 1 << 20

// Geocoder resolves addresses with the default or a named provider.
type Geocoder interface {
	Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Collection, error)
	Using(name string) (domain.Provider, error)
}

// PlaceService creates, updates, and reads places.
type PlaceService interface {
	Create(ctx context.Context, in places.NewPlace) (*places.Place, error)
	Update(ctx context.Context, id int64, in places.PlaceUpdate) (*places.Place, error)
	Get(ctx context.Context, id int64) (*places.Place, error)
}

// Server exposes the geocoding API and operational endpoints.
type Server struct {
	httpServer *http.Server
	geocoder   Geocoder
	places     PlaceService
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /geocode, and /places routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, geocoder Geocoder, svc PlaceService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		geocoder: geocoder,
		places:   svc,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /geocode", s.handleGeocode)
	mux.HandleFunc("POST /places", s.handleCreatePlace)
	mux.HandleFunc("GET /places/{id}", s.handleGetPlace)
	mux.HandleFunc("PUT /places/{id}", s.handleUpdatePlace)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	text := strings.TrimSpace(params.Get("q"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	q := domain.NewGeocodeQuery(text)
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q = q.WithLimit(n)
	}
	if v := params.Get("locale"); v != "" {
		q = q.WithLocale(v)
	}

	var geocoder interface {
		Geocode(context.Context, domain.GeocodeQuery) (domain.Collection, error)
	} = s.geocoder
	if name := params.Get("provider"); name != "" {
		p, err := s.geocoder.Using(name)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		geocoder = p
	}

	results, err := geocoder.Geocode(r.Context(), q)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleCreatePlace(w http.ResponseWriter, r *http.Request) {
	var in places.NewPlace
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.places.Create(r.Context(), in)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPlace(w http.ResponseWriter, r *http.Request) {
	id, ok := placeID(w, r)
	if !ok {
		return
	}
	p, err := s.places.Get(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePlace(w http.ResponseWriter, r *http.Request) {
	id, ok := placeID(w, r)
	if !ok {
		return
	}
	var in places.PlaceUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	p, err := s.places.Update(r.Context(), id, in)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// writeFailure maps domain errors to HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, places.ErrNotFound), errors.Is(err, provider.ErrProviderNotRegistered):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, places.ErrInvalidPlace), errors.Is(err, domain.ErrUnsupportedOperation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidServerResponse):
		s.logger.Warn("geocoding provider failed", "error", err)
		writeError(w, http.StatusBadGateway, "geocoding provider failed")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func placeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid place id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
