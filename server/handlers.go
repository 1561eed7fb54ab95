// Package server exposes the HTTP API: OAuth flow, auth status, chat filter
// configuration, event history, synthetic test events, the display-client
// WebSocket endpoint, and metrics. It includes permissive CORS for overlay
// pages and injects correlation IDs into request contexts for consistent
// logging.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dinir/TTV-Toaster/auth"
	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/chatfilter"
	"github.com/Dinir/TTV-Toaster/config"
	"github.com/Dinir/TTV-Toaster/history"
	"github.com/Dinir/TTV-Toaster/listener"
	"github.com/Dinir/TTV-Toaster/transport"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg     *config.Config
	auth    *auth.Manager
	coord   *listener.Coordinator
	bridge  *bridge.Bridge
	hist    *history.History
	filters *chatfilter.Engine
	store   *chatfilter.FileStore
	hub     *transport.Hub
}

// NewHandlers creates a Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, mgr *auth.Manager, coord *listener.Coordinator, br *bridge.Bridge, hist *history.History, filters *chatfilter.Engine, store *chatfilter.FileStore, hub *transport.Hub) *Handlers {
	return &Handlers{
		cfg:     cfg,
		auth:    mgr,
		coord:   coord,
		bridge:  br,
		hist:    hist,
		filters: filters,
		store:   store,
		hub:     hub,
	}
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus reports auth, coordinator, and client connection state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	rec := h.auth.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated":    rec.Authenticated(),
		"listenersRunning": h.coord.Running(),
		"connectedClients": h.hub.ClientCount(),
		"history":          h.hist.GetStats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// restartListeners restarts the coordinator in the background after a
// successful (re-)authentication. The HTTP response does not wait for the
// connections to come up.
func (h *Handlers) restartListeners() {
	go func() {
		if err := h.coord.Restart(context.Background()); err != nil {
			slog.Error("listener restart after authentication failed", slog.Any("err", err))
		}
	}()
}
