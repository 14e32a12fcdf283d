// File: server/metrics_http.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Admin metrics endpoint: a single GET /metrics handler serving the JSON
// snapshot shape this codebase's control/metrics.go registry already
// exposes for operator tooling, adapted here to the gateway's own counters.

package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// MetricsServer serves the admin GET /metrics endpoint.
type MetricsServer struct {
	gw *Gateway
	hs *http.Server
}

// NewMetricsServer builds an admin server bound to addr. It does not start
// listening until Run is called.
func NewMetricsServer(gw *Gateway, addr string) *MetricsServer {
	mux := http.NewServeMux()
	m := &MetricsServer{gw: gw}
	mux.HandleFunc("/metrics", m.handleMetrics)
	m.hs = &http.Server{Addr: addr, Handler: mux}
	return m
}

func (m *MetricsServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := m.gw.Stats().Snapshot(m.gw.connInfo())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Printf("metrics: encode failed: %v", err)
	}
}

// Run blocks serving until ctx is canceled, then shuts down the HTTP server
// within 5s.
func (m *MetricsServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return m.hs.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
