package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Dinir/TTV-Toaster/config"
	"github.com/Dinir/TTV-Toaster/telemetry"
	"github.com/Dinir/TTV-Toaster/twitchapi"
)

// refresher is the mode-specific refresh strategy, selected once at
// initialization. Both variants return a record carrying only what the
// upstream reported; the Manager merges identity and persists.
type refresher interface {
	Refresh(ctx context.Context, cur *TokenRecord) (*TokenRecord, error)
}

// Manager owns the token record and coordinates the OAuth lifecycle:
// authorize URL issuance, code exchange, refresh, and logout. It is safe for
// concurrent use; at most one refresh completes the persist step at a time.
type Manager struct {
	cfg    *config.Config
	store  *Store
	states *StateStore
	helix  *twitchapi.HelixClient

	// TokenURL overrides the Twitch token endpoint (tests only).
	TokenURL string
	// Proxy overrides the proxy client built from config (tests only).
	Proxy *ProxyClient

	mu          sync.Mutex
	modeSet     bool
	initialized bool
	clientID    string
	oauthConf   *oauth2.Config
	strategy    refresher
	token       *TokenRecord

	refreshMu sync.Mutex
}

// NewManager wires the manager to its store, state store, and Helix client.
func NewManager(cfg *config.Config, store *Store, states *StateStore, helix *twitchapi.HelixClient) *Manager {
	return &Manager{cfg: cfg, store: store, states: states, helix: helix}
}

// Initialize selects the operating mode, loads the stored token record, and
// marks the manager ready. Idempotent: a second call while already
// initialized returns immediately without side effects.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := m.ensureModeLocked(ctx); err != nil {
		return err
	}
	rec, err := m.store.Load()
	if err != nil {
		return err
	}
	if rec == nil {
		access, refresh := m.cfg.EnvTokens()
		if access == "" {
			return ErrMissingToken
		}
		rec = &TokenRecord{AccessToken: access, RefreshToken: refresh}
	}
	m.token = rec
	m.initialized = true
	slog.Info("auth initialized",
		slog.String("mode", m.modeName()),
		slog.String("user", rec.UserLogin))
	return nil
}

// ensureModeLocked picks self-hosted or proxy mode once. Proxy mode needs a
// round trip to learn the public client id; failure to learn it means no
// client identity is available and initialization fails fast.
func (m *Manager) ensureModeLocked(ctx context.Context) error {
	if m.modeSet {
		return nil
	}
	switch {
	case m.cfg.SelfHosted():
		m.clientID = m.cfg.TwitchClientID
		m.oauthConf = &oauth2.Config{
			ClientID:     m.cfg.TwitchClientID,
			ClientSecret: m.cfg.TwitchClientSecret,
			RedirectURL:  m.cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   twitchapi.AuthorizeURL,
				TokenURL:  m.tokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		m.strategy = &selfHostedRefresher{conf: m.oauthConf}
	case m.cfg.ProxyMode():
		if m.Proxy == nil {
			m.Proxy = &ProxyClient{BaseURL: m.cfg.OAuthProxyURL}
		}
		id, err := m.Proxy.ClientID(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		m.clientID = id
		m.strategy = &proxyRefresher{proxy: m.Proxy}
	default:
		return ErrNotConfigured
	}
	m.helix.ClientID = m.clientID
	m.modeSet = true
	return nil
}

func (m *Manager) tokenURL() string {
	if m.TokenURL != "" {
		return m.TokenURL
	}
	return "https://id.twitch.tv/oauth2/token"
}

func (m *Manager) modeName() string {
	if m.cfg.SelfHosted() {
		return "self-hosted"
	}
	return "proxy"
}

// AuthorizeURL issues a fresh state nonce and builds the provider redirect URL.
func (m *Manager) AuthorizeURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	if err := m.ensureModeLocked(ctx); err != nil {
		m.mu.Unlock()
		return "", err
	}
	clientID := m.clientID
	m.mu.Unlock()

	state, err := m.states.Issue()
	if err != nil {
		return "", err
	}
	return twitchapi.BuildAuthorizeURL(clientID, m.cfg.RedirectURI, m.cfg.Scopes, state)
}

// CompleteAuthorization validates the callback state, exchanges the code,
// fetches the subject identity once, and persists the resulting record.
func (m *Manager) CompleteAuthorization(ctx context.Context, code, state string) (*TokenRecord, error) {
	m.mu.Lock()
	if err := m.ensureModeLocked(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	selfHosted := m.cfg.SelfHosted()
	conf := m.oauthConf
	proxy := m.Proxy
	m.mu.Unlock()

	if err := m.states.Consume(state); err != nil {
		return nil, err
	}

	var rec *TokenRecord
	if selfHosted {
		tok, err := conf.Exchange(ctx, code)
		if err != nil {
			return nil, &ExchangeError{Err: err}
		}
		rec = recordFromOAuthToken(tok)
		user, err := m.helix.GetCurrentUser(ctx, rec.AccessToken)
		if err != nil {
			return nil, &ExchangeError{Err: err}
		}
		rec.UserID = user.ID
		rec.UserLogin = user.Login
		rec.UserDisplayName = user.DisplayName
	} else {
		res, err := proxy.Exchange(ctx, code, m.cfg.RedirectURI)
		if err != nil {
			return nil, &ExchangeError{Err: err}
		}
		rec = &TokenRecord{
			AccessToken:     res.AccessToken,
			RefreshToken:    res.RefreshToken,
			ExpiresIn:       res.ExpiresIn,
			Scope:           res.Scope,
			UserID:          res.User.ID,
			UserLogin:       res.User.Login,
			UserDisplayName: res.User.DisplayName,
		}
	}
	rec.ObtainmentTimestamp = time.Now().UnixMilli()

	if err := m.store.Save(rec); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.token = rec
	m.initialized = true
	m.mu.Unlock()
	slog.Info("user authenticated",
		slog.String("user", rec.UserLogin),
		slog.String("display_name", rec.UserDisplayName))
	return rec, nil
}

// AccessToken returns a usable access token, refreshing first when the
// current one is stale.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if err := m.Initialize(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	tok := m.token
	m.mu.Unlock()
	if tok.Stale(time.Now()) {
		next, err := m.Refresh(ctx)
		if err != nil {
			return "", err
		}
		tok = next
	}
	return tok.AccessToken, nil
}

// Current returns the in-memory token record, falling back to disk when the
// manager has not been initialized yet (e.g. the status route after restart).
func (m *Manager) Current() *TokenRecord {
	m.mu.Lock()
	tok := m.token
	m.mu.Unlock()
	if tok != nil {
		return tok
	}
	rec, err := m.store.Load()
	if err != nil {
		return nil
	}
	return rec
}

// Refresh performs one refresh cycle: exchange via the mode strategy, merge
// identity, persist, then publish. Persisting before publishing guarantees a
// crash never silently loses the new refresh token. A concurrent caller that
// arrives while a refresh is in flight observes and returns its result
// instead of racing a second write.
func (m *Manager) Refresh(ctx context.Context) (*TokenRecord, error) {
	m.mu.Lock()
	observed := m.token
	strategy := m.strategy
	m.mu.Unlock()
	if observed == nil || strategy == nil {
		return nil, ErrMissingToken
	}

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	cur := m.token
	m.mu.Unlock()
	if cur != observed {
		// Another refresh completed while we waited for the lock.
		return cur, nil
	}

	next, err := strategy.Refresh(ctx, cur)
	if err != nil {
		telemetry.TokenRefreshErrors.Inc()
		return nil, err
	}
	// The upstream may omit fields it did not change; carry them over. The
	// proxy is never asked to re-resolve identity.
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if len(next.Scope) == 0 {
		next.Scope = cur.Scope
	}
	next.UserID = cur.UserID
	next.UserLogin = cur.UserLogin
	next.UserDisplayName = cur.UserDisplayName
	next.ObtainmentTimestamp = time.Now().UnixMilli()
	if next.ObtainmentTimestamp <= cur.ObtainmentTimestamp {
		next.ObtainmentTimestamp = cur.ObtainmentTimestamp + 1
	}

	if err := m.store.Save(next); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	m.mu.Lock()
	m.token = next
	m.mu.Unlock()
	telemetry.TokenRefreshes.Inc()
	slog.Info("tokens refreshed and saved", slog.String("mode", m.modeName()))
	return next, nil
}

// Logout deletes the stored credential and returns the manager to its
// uninitialized state. Mode selection is kept; a later login reuses it.
func (m *Manager) Logout() error {
	if err := m.store.Delete(); err != nil {
		return err
	}
	m.mu.Lock()
	m.token = nil
	m.initialized = false
	m.mu.Unlock()
	slog.Info("logged out, token file removed")
	return nil
}

// HasStoredToken reports whether a token file exists, used at boot to decide
// whether listeners can start without user interaction.
func (m *Manager) HasStoredToken() bool {
	return m.store.Exists()
}

// selfHostedRefresher refreshes directly against the platform token endpoint
// using the confidential client, the same way the service refreshes any
// oauth2-backed provider.
type selfHostedRefresher struct {
	conf *oauth2.Config
}

func (r *selfHostedRefresher) Refresh(ctx context.Context, cur *TokenRecord) (*TokenRecord, error) {
	if cur.RefreshToken == "" {
		return nil, &RefreshError{Err: fmt.Errorf("no refresh token on record")}
	}
	tok, err := r.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cur.RefreshToken}).Token()
	if err != nil {
		return nil, &RefreshError{Err: err}
	}
	return recordFromOAuthToken(tok), nil
}

// proxyRefresher forwards the refresh to the external proxy, which holds the
// client secret and performs the real grant.
type proxyRefresher struct {
	proxy *ProxyClient
}

func (r *proxyRefresher) Refresh(ctx context.Context, cur *TokenRecord) (*TokenRecord, error) {
	if cur.RefreshToken == "" {
		return nil, &RefreshError{Err: fmt.Errorf("no refresh token on record")}
	}
	res, err := r.proxy.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		return nil, &RefreshError{Err: err}
	}
	return &TokenRecord{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		Scope:        res.Scope,
	}, nil
}

func recordFromOAuthToken(tok *oauth2.Token) *TokenRecord {
	rec := &TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		if secs := int(time.Until(tok.Expiry) / time.Second); secs > 0 {
			rec.ExpiresIn = secs
		}
	}
	rec.Scope = scopesFromToken(tok)
	return rec
}

// scopesFromToken extracts the granted scope set from the token response
// extras. Twitch returns a JSON array; some providers return a space-joined
// string.
func scopesFromToken(tok *oauth2.Token) []string {
	switch v := tok.Extra("scope").(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return strings.Fields(v)
	}
	return nil
}
