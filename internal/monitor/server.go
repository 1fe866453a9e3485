// Package monitor hosts the operational surface: the health/metrics HTTP
// server and the session worker that snapshots engine state during trading
// hours.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health is the /healthz response body.
type Health struct {
	Status        string `json:"status"`
	Profile       string `json:"profile"`
	Feed          string `json:"feed"`
	DegradedClock bool   `json:"degraded_clock,omitempty"`
}

// Server serves /healthz and /metrics.
type Server struct {
	addr   string
	health Health
	log    *slog.Logger
}

func NewServer(addr string, health Health, log *slog.Logger) *Server {
	return &Server{addr: addr, health: health, log: log}
}

// Run blocks until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.health)
	})

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("monitor server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("monitor server: %w", err)
		}
		return nil
	}
}
