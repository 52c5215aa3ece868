// Package ops exposes the read-only operational HTTP surface: health,
// Prometheus metrics, and the pricing circuit-breaker debug view.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/pricing"
)

// Server is the ops HTTP server.
type Server struct {
	router     *mux.Router
	server     *http.Server
	aggregator *pricing.Aggregator
	kpi        *KPITracker
	startTime  time.Time
	version    string
}

// NewServer wires the ops server. aggregator and kpi may be nil; the
// corresponding debug endpoints then report empty views.
func NewServer(addr, version string, aggregator *pricing.Aggregator, kpi *KPITracker) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		aggregator: aggregator,
		kpi:        kpi,
		startTime:  time.Now(),
		version:    version,
	}
	s.routes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/circuits", s.handleCircuits).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/kpi", s.handleKPI).Methods(http.MethodGet)
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("ops server listening")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the router, used by tests.
func (s *Server) Handler() http.Handler { return s.router }

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	UptimeSec float64   `json:"uptime_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.version,
		UptimeSec: time.Since(s.startTime).Seconds(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleCircuits(w http.ResponseWriter, _ *http.Request) {
	stats := []pricing.AdapterStats{}
	if s.aggregator != nil {
		if got := s.aggregator.Stats(); got != nil {
			stats = got
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources":   stats,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleKPI(w http.ResponseWriter, _ *http.Request) {
	if s.kpi == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	var stats []pricing.AdapterStats
	if s.aggregator != nil {
		stats = s.aggregator.Stats()
	}
	writeJSON(w, http.StatusOK, s.kpi.Snapshot(stats))
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("failed to encode ops response")
	}
}
