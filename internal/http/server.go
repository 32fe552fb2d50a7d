// Package http exposes the derived views and the write path over a small
// JSON API. Handlers only read from the live controllers and write through
// the tracker service; they never talk to the record store directly.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/live"
	"fintrack/internal/services"
)

type Server struct {
	http.Server
	tracker *services.Tracker
	views   *live.Registry
}

func NewServer(addr string, tracker *services.Tracker, views *live.Registry) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		tracker: tracker,
		views:   views,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/api/dashboard", s.withRequestLog(s.handleDashboard))
	mux.HandleFunc("/api/analytics", s.withRequestLog(s.handleAnalytics))
	mux.HandleFunc("/api/profile", s.withRequestLog(s.handleProfile))
	mux.HandleFunc("/api/expenses", s.withRequestLog(s.handleExpenses))
	mux.HandleFunc("/api/income", s.withRequestLog(s.handleIncome))
	mux.HandleFunc("/api/budgets", s.withRequestLog(s.handleBudgets))

	return s
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// withRequestLog adds request logging to responses
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// ownerID extracts the authenticated owner identity. Authentication itself
// is an external collaborator; this layer only requires the identity header
// a fronting proxy sets after verifying credentials.
func ownerID(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
