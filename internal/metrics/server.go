package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// StatusFunc reports liveness details for /healthz, e.g. the queue depth.
type StatusFunc func(ctx context.Context) (map[string]any, error)

// NewRouter returns a router serving /metrics and /healthz.
func NewRouter(status StatusFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if reg := GetRegistry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{"status": "ok"}
		if status != nil {
			details, err := status(req.Context())
			if err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				body = map[string]any{"status": "degraded", "error": err.Error()}
			} else {
				body["details"] = details
			}
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	return r
}

// Serve runs the metrics listener on port until ctx is cancelled.
func Serve(ctx context.Context, port int, status StatusFunc) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(status),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
