// Package api exposes the image mixer and the beam simulator over HTTP.
package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"ftbeamlab/internal/monitoring"
	"ftbeamlab/internal/session"
	"ftbeamlab/pkg/beam"
	"ftbeamlab/pkg/config"
)

// SessionHeader carries the client's session id. Requests without it use the
// default session.
const SessionHeader = "X-Session-ID"

// ANSI escape codes for status colouring in the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server binds the engines to HTTP routes.
type Server struct {
	cfg      *config.Config
	sessions *session.Registry
	sim      *beam.Simulator
}

// NewServer creates a server using cfg for limits and defaults.
func NewServer(cfg *config.Config, sessions *session.Registry) *Server {
	sim := beam.NewSimulator(cfg.Beam.Limits)
	if cfg.Beam.Workers > 0 {
		sim.Workers = cfg.Beam.Workers
	}
	return &Server{cfg: cfg, sessions: sessions, sim: sim}
}

// ServeMux returns the route table without middleware.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{sid}", s.handleDropSession)

	mux.HandleFunc("POST /api/mixer/upload/{id}", s.handleUpload)
	mux.HandleFunc("POST /api/mixer/process", s.handleMix)
	mux.HandleFunc("GET /api/mixer/component/{id}/{component}", s.handleComponent)
	mux.HandleFunc("GET /api/mixer/images", s.handleListImages)
	mux.HandleFunc("DELETE /api/mixer/images", s.handleClearImages)
	mux.HandleFunc("GET /api/mixer/images/{id}/stats", s.handleImageStats)
	mux.HandleFunc("GET /api/mixer/images/{id}/compare/{other}", s.handleCompareImages)
	mux.HandleFunc("DELETE /api/mixer/images/{id}", s.handleRemoveImage)

	mux.HandleFunc("POST /api/beam/simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/beam/heatmap", s.handleHeatmap)
	mux.HandleFunc("POST /api/beam/profile", s.handleProfile)
	mux.HandleFunc("GET /api/beam/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/beam/scenarios/{name}", s.handleScenario)
	return mux
}

// Handler returns the full handler chain: request logging, CORS, routes.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(CORSMiddleware(s.cfg.Server.AllowedOrigins, s.ServeMux()))
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// CORSMiddleware allows browser clients from the listed origins. "*" allows
// any origin. Preflight requests are answered directly.
func CORSMiddleware(allowed []string, next http.Handler) http.Handler {
	wildcard := slices.Contains(allowed, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (wildcard || slices.Contains(allowed, origin)) {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
			h.Set("Access-Control-Expose-Headers", SessionHeader)
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
