package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Prometheus exposition
	if s.metricsCfg.Enabled && s.collector != nil {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, s.collector)
	}

	wsPath, wsUnderAPI := s.wsRoute()

	// API v1 routes
	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystemMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}/readings", s.handleDeviceReadings)
		})

		if wsUnderAPI {
			r.Get(wsPath, s.handleWebSocket)
		}
	})
	if !wsUnderAPI {
		r.Get(wsPath, s.handleWebSocket)
	}

	// Original flat contract: list of ids, and one device's full history.
	r.Get("/", s.handleListIDs)
	r.Get("/{id}", s.handleHistory)

	return r
}

const (
	apiPrefix     = "/api/v1"
	defaultWSPath = apiPrefix + "/ws"
)

// wsRoute returns the configured WebSocket path and whether it lives under
// /api/v1. Paths under the prefix are returned relative to it; anything else
// is mounted at the root as given.
func (s *Server) wsRoute() (string, bool) {
	p := s.wsCfg.Path
	if p == "" {
		p = defaultWSPath
	}
	if rel, ok := strings.CutPrefix(p, apiPrefix); ok && strings.HasPrefix(rel, "/") && rel != "/" {
		return rel, true
	}
	return p, false
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
