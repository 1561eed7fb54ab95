package server

import (
	"net/http"
	"strings"
)

// HandleEvents returns recent events, optionally limited via ?limit=.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	events := h.hist.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// HandleEventsDispatcher routes /api/events/{type} and /api/events/clear.
func (h *Handlers) HandleEventsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/events/")
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	if rest == "clear" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.hist.Clear()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "event history cleared"})
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	events := h.hist.ListByType(rest, limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events), "type": rest})
}

// HandleEventsStats returns entry counts, total and per kind.
func (h *Handlers) HandleEventsStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.hist.GetStats())
}
