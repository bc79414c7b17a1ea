package omt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps the OMT online-payment API. Every operation ensures a cached
// token, issues the call, and on a 401 refreshes the token and retries the
// same call exactly once, as an explicit bounded loop rather than recursion.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	creds      *Credentials
}

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		username:   cfg.Username,
		creds:      NewCredentials(httpClient, cfg.BaseURL, cfg.Username, cfg.Password),
	}
}

// Credentials exposes the token holder (tests and operator tooling).
func (c *Client) Credentials() *Credentials { return c.creds }

func (c *Client) InitiatePayment(ctx context.Context, in InitiatePaymentRequest) (InitiatePaymentResponse, error) {
	payload := map[string]any{
		"username":       c.username,
		"amount":         in.Amount.StringFixed(2),
		"currency":       in.Currency,
		"identifier":     in.Identifier,
		"transaction_id": in.SessionID,
	}

	var out InitiatePaymentResponse
	if err := c.post(ctx, "/initiate-payment", payload, &out); err != nil {
		return InitiatePaymentResponse{}, err
	}
	if out.TransactionID == "" || out.PaymentURL == "" {
		return InitiatePaymentResponse{}, &RequestError{Status: http.StatusOK, Body: "initiate-payment response missing transaction_id or payment_url"}
	}
	return out, nil
}

func (c *Client) PaymentStatus(ctx context.Context, transactionID string) (PaymentStatusResponse, error) {
	payload := map[string]any{
		"username":       c.username,
		"transaction_id": transactionID,
	}

	var out PaymentStatusResponse
	if err := c.post(ctx, "/payment-status", payload, &out); err != nil {
		return PaymentStatusResponse{}, err
	}
	return out, nil
}

func (c *Client) Refund(ctx context.Context, in RefundRequest) (RefundResponse, error) {
	payload := map[string]any{
		"username":       c.username,
		"transaction_id": in.TransactionID,
		"amount":         in.Amount.StringFixed(2),
		"currency":       in.Currency,
	}

	var out RefundResponse
	if err := c.post(ctx, "/refund-payment", payload, &out); err != nil {
		return RefundResponse{}, err
	}
	return out, nil
}

func (c *Client) Capture(ctx context.Context, in CaptureRequest) (OperationResponse, error) {
	payload := map[string]any{
		"username":       c.username,
		"transaction_id": in.TransactionID,
	}
	if !in.Amount.IsZero() {
		payload["amount"] = in.Amount.StringFixed(2)
	}

	var out OperationResponse
	if err := c.post(ctx, "/capture-payment", payload, &out); err != nil {
		return OperationResponse{}, err
	}
	return out, nil
}

func (c *Client) Void(ctx context.Context, transactionID string) (OperationResponse, error) {
	payload := map[string]any{
		"username":       c.username,
		"transaction_id": transactionID,
	}

	var out OperationResponse
	if err := c.post(ctx, "/void-payment", payload, &out); err != nil {
		return OperationResponse{}, err
	}
	return out, nil
}

// post runs one bearer-authenticated call with the bounded 401 retry.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return err
	}

	const maxAttempts = 2 // first call + one retry after refresh
	for attempt := 1; ; attempt++ {
		status, body, err := c.doRequest(ctx, path, token, payload)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized {
			if attempt >= maxAttempts {
				return &AuthError{Err: fmt.Errorf("%s unauthorized after token refresh", path)}
			}
			token, err = c.creds.Refresh(ctx)
			if err != nil {
				return err
			}
			continue
		}

		if status < 200 || status > 299 {
			return &RequestError{Status: status, Body: string(body)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return &RequestError{Status: status, Body: fmt.Sprintf("malformed response: %v", err)}
		}
		return nil
	}
}

func (c *Client) doRequest(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &RequestError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &RequestError{Status: resp.StatusCode, Body: err.Error()}
	}
	return resp.StatusCode, body, nil
}
