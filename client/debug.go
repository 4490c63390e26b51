package client

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebugMux exposes the session's runtime state for local inspection:
// GET /debug/connection   connection status as JSON
// GET /metrics            prometheus metrics
// GET /healthz            liveness probe
func (s *Session) DebugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/connection", s.handleConnectionStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Session) handleConnectionStatus(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"state":         s.Conn.State().String(),
		"lastError":     s.Conn.LastError(),
		"correlationId": s.Conn.CorrelationID(),
		"territories":   s.Store.Len(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
