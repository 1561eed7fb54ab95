package twitchapi

import (
	"errors"
	"net/url"
	"strings"
)

// AuthorizeURL is the Twitch OAuth user authorization endpoint.
const AuthorizeURL = "https://id.twitch.tv/oauth2/authorize"

// BuildAuthorizeURL constructs the user authorization URL for the OAuth code grant.
func BuildAuthorizeURL(clientID, redirectURI, scopes, state string) (string, error) {
	if clientID == "" || redirectURI == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	v := url.Values{}
	v.Set("response_type", "code")
	v.Set("client_id", clientID)
	v.Set("redirect_uri", redirectURI)
	if scopes != "" {
		v.Set("scope", strings.TrimSpace(strings.ReplaceAll(scopes, ",", " ")))
	}
	if state != "" {
		v.Set("state", state)
	}
	return AuthorizeURL + "?" + v.Encode(), nil
}
