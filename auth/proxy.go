package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ProxyClient talks to the external OAuth proxy that holds the confidential
// client secret in delegated-proxy mode. The proxy is treated as an opaque
// credential oracle: whatever token pair it returns is persisted as-is.
type ProxyClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *ProxyClient) http() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

// ProxyUser is the identity block returned by the proxy's exchange endpoint.
type ProxyUser struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

// ProxyTokens is a token pair returned by the proxy.
type ProxyTokens struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int      `json:"expiresIn"`
	Scope        []string `json:"scope"`
}

// ProxyExchangeResult is the proxy's response to a code exchange: the token
// pair plus the subject identity the proxy resolved on our behalf.
type ProxyExchangeResult struct {
	ProxyTokens
	User ProxyUser `json:"user"`
}

// ClientID fetches the proxy's public client identifier from its root endpoint.
func (p *ProxyClient) ClientID(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.BaseURL, "/")+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := p.http().Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth proxy unreachable: %w", err)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oauth proxy returned %s", resp.Status)
	}
	var body struct {
		ClientID string `json:"clientId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.ClientID == "" {
		return "", errors.New("oauth proxy returned no clientId")
	}
	return body.ClientID, nil
}

// Exchange forwards an authorization code to the proxy for the real exchange.
func (p *ProxyClient) Exchange(ctx context.Context, code, redirectURI string) (*ProxyExchangeResult, error) {
	var res ProxyExchangeResult
	if err := p.post(ctx, "/exchange", map[string]string{"code": code, "redirectUri": redirectURI}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh forwards a refresh token to the proxy for the real refresh grant.
func (p *ProxyClient) Refresh(ctx context.Context, refreshToken string) (*ProxyTokens, error) {
	var res ProxyTokens
	if err := p.post(ctx, "/refresh", map[string]string{"refreshToken": refreshToken}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *ProxyClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.http().Do(req)
	if err != nil {
		return fmt.Errorf("oauth proxy unreachable: %w", err)
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("oauth proxy %s failed: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
