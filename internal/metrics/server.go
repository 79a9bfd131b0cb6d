package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports readiness details for /healthz. A non-nil error
// turns the response into 503.
type HealthFunc func(ctx context.Context) (map[string]any, error)

// NewRouter builds the side HTTP surface: /metrics and /healthz
func NewRouter(m *Metrics, health HealthFunc) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	if m != nil {
		router.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}
	router.Get("/healthz", healthHandler(health))

	return router
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		code := http.StatusOK

		if health != nil {
			details, err := health(r.Context())
			for k, v := range details {
				body[k] = v
			}
			if err != nil {
				body["status"] = "unavailable"
				body["error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Server serves the metrics router until its context is cancelled
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string, m *Metrics, health HealthFunc) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(m, health),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: slog.Default().With("component", "metrics"),
	}
}

// Run blocks serving HTTP until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("metrics server forced to shutdown", "err", err)
		return s.server.Close()
	}
	return nil
}
