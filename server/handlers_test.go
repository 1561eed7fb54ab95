package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dinir/TTV-Toaster/auth"
	"github.com/Dinir/TTV-Toaster/bridge"
	"github.com/Dinir/TTV-Toaster/chatfilter"
	"github.com/Dinir/TTV-Toaster/config"
	"github.com/Dinir/TTV-Toaster/history"
	"github.com/Dinir/TTV-Toaster/listener"
	"github.com/Dinir/TTV-Toaster/telemetry"
	"github.com/Dinir/TTV-Toaster/transport"
	"github.com/Dinir/TTV-Toaster/twitchapi"
)

func init() {
	telemetry.Init()
}

type fixture struct {
	handlers   *Handlers
	mux        http.Handler
	tokenStore *auth.Store
	stateStore *auth.StateStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		TwitchClientID:     "id",
		TwitchClientSecret: "secret",
		RedirectURI:        "http://localhost:3000/auth/callback",
		Scopes:             "chat:read",
		PublicDir:          dir,
		TokenFile:          filepath.Join(dir, "tokens.json"),
		StateFile:          filepath.Join(dir, "state.json"),
		ChatFiltersFile:    filepath.Join(dir, "filters.json"),
		HistorySize:        50,
	}
	tokenStore := auth.NewStore(cfg.TokenFile)
	stateStore := auth.NewStateStore(cfg.StateFile)
	mgr := auth.NewManager(cfg, tokenStore, stateStore, &twitchapi.HelixClient{})

	hub := transport.NewHub()
	hist := history.New(cfg.HistorySize)
	br := bridge.New(hist, hub)
	filterStore := chatfilter.NewFileStore(cfg.ChatFiltersFile)
	filters := chatfilter.NewEngine(chatfilter.Defaults())
	coord := listener.NewCoordinator(mgr)

	h := NewHandlers(cfg, mgr, coord, br, hist, filters, filterStore, hub)
	return &fixture{handlers: h, mux: NewMux(h), tokenStore: tokenStore, stateStore: stateStore}
}

func (f *fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rr.Body.String())
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("responses should carry a correlation id")
	}
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "fixed-id")
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "fixed-id" {
		t.Errorf("X-Correlation-ID = %q, want fixed-id", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodOptions, "/api/status", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing permissive CORS header")
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", body["authenticated"])
	}
	if body["listenersRunning"] != false {
		t.Errorf("listenersRunning = %v, want false", body["listenersRunning"])
	}
	if body["connectedClients"] != float64(0) {
		t.Errorf("connectedClients = %v, want 0", body["connectedClients"])
	}
}

func TestAuthStatusUnauthenticated(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/auth/status", "")
	body := decodeBody(t, rr)
	if body["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", body["authenticated"])
	}
	if _, ok := body["user"]; ok {
		t.Error("unauthenticated response must not carry a user block")
	}
}

func TestAuthStatusAuthenticated(t *testing.T) {
	f := newFixture(t)
	if err := f.tokenStore.Save(&auth.TokenRecord{
		AccessToken:     "tok",
		UserID:          "42",
		UserLogin:       "streamer",
		UserDisplayName: "Streamer",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rr := f.do(t, http.MethodGet, "/auth/status", "")
	body := decodeBody(t, rr)
	if body["authenticated"] != true {
		t.Fatalf("authenticated = %v, want true", body["authenticated"])
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("user block missing: %v", body)
	}
	if user["login"] != "streamer" || user["displayName"] != "Streamer" {
		t.Errorf("user = %v", user)
	}
}

func TestAuthStartRedirects(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/auth/twitch", "")
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://id.twitch.tv/oauth2/authorize?") {
		t.Errorf("Location = %q", loc)
	}
	if !strings.Contains(loc, "state=") {
		t.Error("authorize URL should carry a state nonce")
	}
}

func TestAuthCallbackMissingParams(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/auth/callback", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	rr = f.do(t, http.MethodGet, "/auth/callback?code=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status without state = %d, want 400", rr.Code)
	}
}

func TestAuthCallbackInvalidState(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stateStore.Issue(); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rr := f.do(t, http.MethodGet, "/auth/callback?code=abc&state=forged", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid state") {
		t.Errorf("body = %q, want invalid state message", rr.Body.String())
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	if err := f.tokenStore.Save(&auth.TokenRecord{AccessToken: "tok"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rr := f.do(t, http.MethodGet, "/auth/logout", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET logout status = %d, want 405", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/auth/logout", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if body := decodeBody(t, rr); body["success"] != true {
		t.Errorf("body = %v", body)
	}
	if f.handlers.auth.HasStoredToken() {
		t.Error("token file should be removed by logout")
	}
}
