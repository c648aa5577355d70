package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"teraleech/internal"
)

// StatsSource reports how busy the bot is
type StatsSource interface {
	ActiveCount() int
}

// Health serves liveness and stats endpoints for process supervisors
type Health struct {
	router    chi.Router
	stats     StatsSource
	startedAt time.Time
}

// New builds the health server around a stats source
func New(stats StatsSource) *Health {
	h := &Health{
		router:    chi.NewRouter(),
		stats:     stats,
		startedAt: time.Now(),
	}

	h.router.Use(middleware.Recoverer)
	h.router.Get("/healthz", h.handleHealthz)
	h.router.Get("/stats", h.handleStats)

	return h
}

// Start binds addr and serves until ctx is cancelled. A bind failure
// is returned synchronously so the caller can abort startup.
func (h *Health) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           h.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			internal.LogWarn("Health server shutdown: %v", err)
		}
	}()

	go func() {
		internal.LogInfo("Health endpoint listening on %s", addr)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			internal.LogError("Health server: %v", err)
		}
	}()

	return nil
}

// Handler exposes the router for tests
func (h *Health) Handler() http.Handler {
	return h.router
}

func (h *Health) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Health) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_transfers": h.stats.ActiveCount(),
		"uptime_seconds":   int64(time.Since(h.startedAt).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		internal.LogWarn("Encoding health response: %v", err)
	}
}
