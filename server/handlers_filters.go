package server

import (
	"encoding/json"
	"net/http"

	"github.com/Dinir/TTV-Toaster/chatfilter"
)

// HandleChatFilters serves the current filter configuration and accepts
// merge updates. Updates are persisted as a whole document and swapped into
// the engine atomically, so no message is judged against a partial config.
func (h *Handlers) HandleChatFilters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.filters.Config())
	case http.MethodPost:
		var upd chatfilter.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid filter update: "+err.Error())
			return
		}
		merged := chatfilter.Merge(h.filters.Config(), upd)
		if err := h.store.Save(merged); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.filters.Replace(merged)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "filters": merged})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleChatFiltersReset restores the default configuration.
func (h *Handlers) HandleChatFiltersReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defaults := chatfilter.Defaults()
	if err := h.store.Save(defaults); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.filters.Replace(defaults)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filters": defaults})
}
