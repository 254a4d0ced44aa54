package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stackrelay/stackrelay/pkg/config"
	"github.com/stackrelay/stackrelay/pkg/lifecycle"
	"github.com/stackrelay/stackrelay/pkg/stores"
	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// Server is the inbound HTTP server. It accepts lifecycle requests and
// hands them to the dispatcher; the terminal outcome is always delivered
// through the request's callback endpoint, never the HTTP response.
type Server struct {
	cfg        config.ServerConfig
	dispatcher *lifecycle.Dispatcher
	store      stores.Store
	metrics    *telemetry.Metrics
	log        *telemetry.Logger
	httpServer *http.Server
}

// New creates the HTTP server. The store may be nil.
func New(
	cfg config.ServerConfig,
	dispatcher *lifecycle.Dispatcher,
	store stores.Store,
	metrics *telemetry.Metrics,
	log *telemetry.Logger,
) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		store:      store,
		metrics:    metrics,
		log:        log.NewComponentLogger("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/lifecycle", s.handleLifecycle)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe runs the server until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.WithField("address", s.cfg.ListenAddress).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleLifecycle ingests one lifecycle request. A 202 means the request
// was accepted for processing; the outcome arrives via the callback.
func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.WithError(err).Warn("Rejected malformed lifecycle request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	if err := s.dispatcher.Dispatch(r.Context(), &req); err != nil {
		s.log.WithRequestID(req.RequestID).WithError(err).Error("Dispatch failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"request_id": req.RequestID,
		"status":     "accepted",
	})
}

// handleHealth reports liveness, including journal connectivity when a
// store is configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
