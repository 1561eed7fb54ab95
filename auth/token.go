// Package auth manages the OAuth credential lifecycle for the authenticated
// Twitch user: durable token storage, the single-use authorization state
// nonce, and token refresh in either self-hosted or delegated-proxy mode.
package auth

import (
	"time"
)

// TokenRecord is the persisted credential for the authenticated subject.
// Field names match the on-disk token file shape.
type TokenRecord struct {
	AccessToken         string   `json:"accessToken"`
	RefreshToken        string   `json:"refreshToken,omitempty"`
	ExpiresIn           int      `json:"expiresIn"`
	ObtainmentTimestamp int64    `json:"obtainmentTimestamp"` // unix milliseconds
	Scope               []string `json:"scope,omitempty"`
	UserID              string   `json:"userId,omitempty"`
	UserLogin           string   `json:"userLogin,omitempty"`
	UserDisplayName     string   `json:"userDisplayName,omitempty"`
}

// Authenticated reports whether the record carries a usable access token.
func (t *TokenRecord) Authenticated() bool {
	return t != nil && t.AccessToken != ""
}

// Stale reports whether the access token should be refreshed before use.
// Records with unknown lifetime (ExpiresIn <= 0) are never considered stale;
// an upstream 401 surfaces through the listener instead.
func (t *TokenRecord) Stale(now time.Time) bool {
	if t == nil || t.ExpiresIn <= 0 {
		return false
	}
	expiry := time.UnixMilli(t.ObtainmentTimestamp).Add(time.Duration(t.ExpiresIn) * time.Second)
	// 1 min safety buffer, same as the app-token cache convention
	return now.After(expiry.Add(-60 * time.Second))
}
