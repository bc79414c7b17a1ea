package omt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// tokenPair is replaced wholesale on every authenticate; callers never see
// one field from an old pair and one from a new.
type tokenPair struct {
	access  string
	refresh string
}

// Credentials caches the OMT token pair for the process lifetime. OMT has no
// refresh-token grant, so Refresh re-runs the username/password
// authentication and swaps the pair.
type Credentials struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string

	mu   sync.Mutex
	pair tokenPair
}

func NewCredentials(httpClient *http.Client, baseURL, username, password string) *Credentials {
	return &Credentials{
		httpClient: httpClient,
		baseURL:    baseURL,
		username:   username,
		password:   password,
	}
}

// Token returns the cached access token, authenticating first if the cache
// is empty. Authentication failure is fatal to the triggering request.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pair.access != "" {
		return c.pair.access, nil
	}
	pair, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	c.pair = pair
	return pair.access, nil
}

// Refresh unconditionally re-authenticates and replaces both tokens.
func (c *Credentials) Refresh(ctx context.Context) (string, error) {
	pair, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.pair = pair
	c.mu.Unlock()
	return pair.access, nil
}

func (c *Credentials) authenticate(ctx context.Context) (tokenPair, error) {
	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return tokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authenticate-user", bytes.NewReader(payload))
	if err != nil {
		return tokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokenPair{}, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenPair{}, &AuthError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return tokenPair{}, &AuthError{Err: fmt.Errorf("authenticate-user status=%d", resp.StatusCode)}
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return tokenPair{}, &AuthError{Err: fmt.Errorf("decode authenticate response: %w", err)}
	}
	if auth.AccessToken == "" {
		return tokenPair{}, &AuthError{Err: fmt.Errorf("authenticate response missing access token")}
	}

	return tokenPair{access: auth.AccessToken, refresh: auth.RefreshToken}, nil
}
