package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// StatsProvider reports relay counters for the monitoring endpoint.
type StatsProvider interface {
	Stats() map[string]int
}

// Server exposes the relay over HTTP: the websocket endpoint plus small
// JSON monitoring routes. No relay logic lives here.
type Server struct {
	stats   StatsProvider
	ws      http.Handler
	router  *mux.Router
	logger  *slog.Logger
	started time.Time
}

// NewServer builds the HTTP surface. ws handles websocket upgrades on /ws.
func NewServer(stats StatsProvider, ws http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		stats:   stats,
		ws:      ws,
		router:  mux.NewRouter(),
		logger:  logger,
		started: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Handle("/ws", s.ws)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}
