// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Twitch credentials are optional at load time; the auth manager decides at
// initialization whether self-hosted or proxy mode is usable.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// DefaultScopes are requested during the OAuth code grant and cover every
// subscription the event and chat listeners create.
const DefaultScopes = "channel:read:subscriptions channel:read:redemptions bits:read moderator:read:followers chat:read"

type Config struct {
	// Twitch app credentials (self-hosted mode)
	TwitchClientID     string
	TwitchClientSecret string

	// OAuth proxy base URL (delegated-proxy mode)
	OAuthProxyURL string

	// OAuth flow
	RedirectURI string
	Scopes      string

	// HTTP
	Addr      string
	PublicDir string

	// Local state files
	DataDir         string
	TokenFile       string
	StateFile       string
	ChatFiltersFile string

	// Event history capacity
	HistorySize int
}

// Load reads environment variables and applies defaults. It never fails on
// missing Twitch credentials; mode selection happens in auth.Manager.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.OAuthProxyURL = os.Getenv("OAUTH_PROXY_URL")

	cfg.RedirectURI = os.Getenv("REDIRECT_URI")
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://localhost:3000/auth/callback"
	}
	cfg.Scopes = os.Getenv("TWITCH_SCOPES")
	if cfg.Scopes == "" {
		cfg.Scopes = DefaultScopes
	}

	cfg.Addr = os.Getenv("HTTP_ADDR")
	if cfg.Addr == "" {
		if p := os.Getenv("PORT"); p != "" {
			cfg.Addr = ":" + p
		} else {
			cfg.Addr = ":3000"
		}
	}
	cfg.PublicDir = os.Getenv("PUBLIC_DIR")
	if cfg.PublicDir == "" {
		cfg.PublicDir = "public"
	}

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	cfg.TokenFile = filepath.Join(cfg.DataDir, ".tokens.json")
	cfg.StateFile = filepath.Join(cfg.DataDir, ".oauth-state.json")
	cfg.ChatFiltersFile = filepath.Join(cfg.DataDir, ".chat-filters.json")

	cfg.HistorySize = 50
	if v := os.Getenv("EVENT_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistorySize = n
		}
	}

	return cfg, nil
}

// SelfHosted reports whether a confidential client is configured locally.
func (c *Config) SelfHosted() bool {
	return c.TwitchClientID != "" && c.TwitchClientSecret != ""
}

// ProxyMode reports whether token exchange is delegated to an external proxy.
// Self-hosted credentials take precedence when both are configured.
func (c *Config) ProxyMode() bool {
	return !c.SelfHosted() && c.OAuthProxyURL != ""
}

// EnvTokens returns bootstrap tokens supplied directly via environment, used
// in self-hosted mode when no token file exists yet.
func (c *Config) EnvTokens() (access, refresh string) {
	return os.Getenv("TWITCH_ACCESS_TOKEN"), os.Getenv("TWITCH_REFRESH_TOKEN")
}
