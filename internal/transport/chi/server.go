// Package chi exposes the viewing session over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/logger"
	healthuc "github.com/kailas-cloud/panoview/internal/usecase/health"
	nearbyuc "github.com/kailas-cloud/panoview/internal/usecase/nearby"
	vieweruc "github.com/kailas-cloud/panoview/internal/usecase/viewer"
)

// Error codes returned in the response body alongside the HTTP status.
const (
	codeBadRequest          = "bad_request"
	codeAddressNotFound     = "address_not_found"
	codeRateLimited         = "rate_limited"
	codeSuperseded          = "superseded"
	codePanoramaUnavailable = "panorama_unavailable"
	codeProviderError       = "provider_error"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	viewer        *vieweruc.Service
	nearby        *nearbyuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	viewer *vieweruc.Service,
	nearby *nearbyuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		viewer: viewer,
		nearby: nearby,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrAddressNotFound, http.StatusNotFound, codeAddressNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrDeferred, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrSuperseded, http.StatusConflict, codeSuperseded),
		sentinelHandler(domain.ErrPanoramaUnavailable, http.StatusBadGateway, codePanoramaUnavailable),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, codeProviderError),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/view", s.GetView)
	r.Post("/view/open", s.OpenView)
	r.Post("/view/search", s.SearchView)
	r.Post("/view/select", s.SelectSuggestion)
	r.Post("/view/interact", s.Interact)
	r.Post("/view/pov", s.SetPov)
	r.Get("/suggest", s.Suggest)
	r.Get("/nearby", s.Nearby)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// GetView handles GET /view.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.viewer.Snapshot())
}

// OpenView handles POST /view/open.
func (s *Server) OpenView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	pos := domain.Coordinate{Lat: req.Lat, Lng: req.Lng}
	if !pos.Valid() {
		writeError(w, http.StatusBadRequest, codeBadRequest, "coordinate out of range: "+pos.String())
		return
	}

	if err := s.viewer.Open(r.Context(), pos); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.Snapshot())
}

// SearchView handles POST /view/search.
func (s *Server) SearchView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "address is required")
		return
	}

	if err := s.viewer.Search(r.Context(), req.Address); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.Snapshot())
}

// SelectSuggestion handles POST /view/select.
func (s *Server) SelectSuggestion(w http.ResponseWriter, r *http.Request) {
	var candidate domain.SearchCandidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if candidate.PlaceID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "placeId is required")
		return
	}

	if err := s.viewer.Select(r.Context(), candidate); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.Snapshot())
}

// Interact handles POST /view/interact.
func (s *Server) Interact(w http.ResponseWriter, r *http.Request) {
	s.viewer.Interact()
	w.WriteHeader(http.StatusNoContent)
}

// SetPov handles POST /view/pov.
func (s *Server) SetPov(w http.ResponseWriter, r *http.Request) {
	var req domain.Pov
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.viewer.SetPov(req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Suggest handles GET /suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.viewer.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": candidates})
}

// Nearby handles GET /nearby.
func (s *Server) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "lat and lng query parameters are required")
		return
	}
	origin := domain.Coordinate{Lat: lat, Lng: lng}
	if !origin.Valid() {
		writeError(w, http.StatusBadRequest, codeBadRequest, "coordinate out of range: "+origin.String())
		return
	}

	places, err := s.nearby.FindNearby(r.Context(), origin)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": places})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrAddressNotFound,
		domain.ErrRateLimited,
		domain.ErrDeferred,
		domain.ErrSuperseded,
		domain.ErrPanoramaUnavailable,
		domain.ErrProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
