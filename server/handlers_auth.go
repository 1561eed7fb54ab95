package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dinir/TTV-Toaster/auth"
)

// HandleAuthStart redirects the browser to the provider authorization page.
func (h *Handlers) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.AuthorizeURL(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrNotConfigured) {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// HandleAuthCallback completes the authorization-code exchange. A stale or
// mismatched state nonce fails closed with a 400; success restarts the
// listeners and sends the browser back to the overlay page.
func (h *Handlers) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state parameter", http.StatusBadRequest)
		return
	}
	rec, err := h.auth.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		if errors.Is(err, auth.ErrStateInvalid) {
			http.Error(w, "invalid state parameter", http.StatusBadRequest)
			return
		}
		slog.Error("oauth callback failed", slog.Any("err", err))
		http.Error(w, "authentication failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("authentication complete", slog.String("user", rec.UserLogin))
	h.restartListeners()
	http.Redirect(w, r, "/?auth=success", http.StatusFound)
}

// HandleAuthStatus reports whether a user is authenticated and who.
func (h *Handlers) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	rec := h.auth.Current()
	if !rec.Authenticated() {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]string{
			"id":          rec.UserID,
			"login":       rec.UserLogin,
			"displayName": rec.UserDisplayName,
		},
	})
}

// HandleLogout stops the listeners and deletes the stored credential.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.coord.Stop()
	if err := h.auth.Logout(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
