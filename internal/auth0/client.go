package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"diabuddy/internal/config"
)

// ErrUserNotFound reports that the identity provider has no record for the
// user id. Callers map it to 404; every other provider failure is generic.
var ErrUserNotFound = errors.New("user not found")

// Client talks to the Auth0 Authentication and Management APIs. Management
// calls authenticate with a client-credentials token that is refreshed
// shortly before expiry.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	httpClient   *http.Client

	mu      sync.Mutex
	mgmtTok string
	mgmtExp time.Time
}

// NewClient creates an Auth0 client for the configured tenant domain.
func NewClient(cfg config.Auth0Config) *Client {
	base := cfg.Domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	audience := cfg.Audience
	if audience == "" {
		audience = base + "/api/v2/"
	}
	return &Client{
		baseURL:      strings.TrimSuffix(base, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		audience:     audience,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (c *Client) managementToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mgmtTok != "" && time.Now().Before(c.mgmtExp) {
		return c.mgmtTok, nil
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"audience":      c.audience,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request management token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("management token grant failed: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty management token")
	}

	c.mgmtTok = tok.AccessToken
	// Refresh a minute early so in-flight calls never carry a stale token.
	c.mgmtExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.mgmtTok, nil
}

func (c *Client) doManagement(ctx context.Context, method, path string, body, out any) error {
	token, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("management request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("management API error: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type userRecord struct {
	UserMetadata map[string]any `json:"user_metadata"`
}

// GetUserMetadata fetches the user_metadata blob for the user.
func (c *Client) GetUserMetadata(ctx context.Context, userID string) (map[string]any, error) {
	var rec userRecord
	path := "/api/v2/users/" + url.PathEscape(userID) + "?fields=user_metadata"
	if err := c.doManagement(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return nil, err
	}
	if rec.UserMetadata == nil {
		rec.UserMetadata = map[string]any{}
	}
	return rec.UserMetadata, nil
}

// UpdateUserMetadata replaces the user_metadata blob for the user.
func (c *Client) UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error {
	path := "/api/v2/users/" + url.PathEscape(userID)
	return c.doManagement(ctx, http.MethodPatch, path, map[string]any{"user_metadata": metadata}, nil)
}

// DeleteUser removes the identity record.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.doManagement(ctx, http.MethodDelete, "/api/v2/users/"+url.PathEscape(userID), nil, nil)
}

// UserInfo resolves an end-user access token to its subject claim.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
	if err != nil {
		return "", fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", errors.New("invalid token")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo failed: %s", resp.Status)
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	if claims.Sub == "" {
		return "", errors.New("userinfo response missing subject")
	}
	return claims.Sub, nil
}
