package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means neither self-hosted credentials nor a proxy URL
	// are available. Fatal to initialization; no retry.
	ErrNotConfigured = errors.New("no oauth client configured: set TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET or OAUTH_PROXY_URL")

	// ErrMissingToken means self-hosted mode has no stored or env-supplied
	// token and the OAuth flow has not been completed yet.
	ErrMissingToken = errors.New("no tokens found: complete the oauth flow or set TWITCH_ACCESS_TOKEN")

	// ErrStateInvalid means the authorization callback carried a state nonce
	// that is missing, already consumed, or mismatched.
	ErrStateInvalid = errors.New("invalid oauth state")
)

// ExchangeError wraps an upstream failure during authorization-code exchange.
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string { return fmt.Sprintf("token exchange failed: %v", e.Err) }
func (e *ExchangeError) Unwrap() error { return e.Err }

// RefreshError wraps an upstream failure during token refresh.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return fmt.Sprintf("token refresh failed: %v", e.Err) }
func (e *RefreshError) Unwrap() error { return e.Err }
