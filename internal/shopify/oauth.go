package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

var shopDomainRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-]*\.myshopify\.com$`)

// ValidShopDomain guards every surface that receives a shop parameter.
func ValidShopDomain(shop string) bool {
	return shopDomainRe.MatchString(shop)
}

// OAuth drives the one-shot app installation handshake: authorize redirect,
// code exchange, webhook registration.
type OAuth struct {
	httpClient *http.Client
	apiKey     string
	apiSecret  string
	scopes     string
	apiVersion string
	host       string // public base URL of this service
}

func NewOAuth(httpClient *http.Client, apiKey, apiSecret, scopes, apiVersion, host string) *OAuth {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuth{
		httpClient: httpClient,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		scopes:     scopes,
		apiVersion: apiVersion,
		host:       host,
	}
}

// InstallURL builds the merchant-facing authorize redirect.
func (o *OAuth) InstallURL(shop, state string) string {
	q := url.Values{}
	q.Set("client_id", o.apiKey)
	q.Set("scope", o.scopes)
	q.Set("state", state)
	q.Set("redirect_uri", o.host+"/api/shopify/auth/callback")
	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, q.Encode())
}

type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// ExchangeCode trades the authorization code for a permanent access token.
func (o *OAuth) ExchangeCode(ctx context.Context, shop, code string) (AccessTokenResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     o.apiKey,
		"client_secret": o.apiSecret,
		"code":          code,
	})
	if err != nil {
		return AccessTokenResponse{}, err
	}

	u := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return AccessTokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return AccessTokenResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessTokenResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return AccessTokenResponse{}, fmt.Errorf("oauth access_token exchange failed: status=%d body=%s", resp.StatusCode, body)
	}

	var tok AccessTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return AccessTokenResponse{}, fmt.Errorf("decode access_token response: %w", err)
	}
	if tok.AccessToken == "" {
		return AccessTokenResponse{}, fmt.Errorf("access_token response missing token")
	}
	return tok, nil
}

// RegisterWebhooks subscribes the app/uninstalled topic after install.
// Registration failure is reported but should not abort the install; the
// token is already stored.
func (o *OAuth) RegisterWebhooks(ctx context.Context, shop, accessToken string) error {
	payload, err := json.Marshal(map[string]any{
		"webhook": map[string]string{
			"topic":   "app/uninstalled",
			"address": o.host + "/api/shopify/webhooks/app-uninstalled",
			"format":  "json",
		},
	})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("https://%s/admin/api/%s/webhooks.json", shop, o.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook registration failed: status=%d body=%s", resp.StatusCode, body)
	}
	return nil
}

// ShopInfo fetches shop.json for an installed shop.
func (o *OAuth) ShopInfo(ctx context.Context, shop, accessToken string) (json.RawMessage, error) {
	u := fmt.Sprintf("https://%s/admin/api/%s/shop.json", shop, o.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shop info failed: status=%d body=%s", resp.StatusCode, body)
	}

	var wrapper struct {
		Shop json.RawMessage `json:"shop"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode shop info: %w", err)
	}
	return wrapper.Shop, nil
}
