package omt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// omtStub scripts the portal: authenticate-user issues sequential tokens,
// every other endpoint runs the configured handler.
type omtStub struct {
	authCalls atomic.Int32
	apiCalls  atomic.Int32
	handleAPI func(w http.ResponseWriter, r *http.Request, token string)
	srv       *httptest.Server
}

func newOMTStub(t *testing.T, handleAPI func(w http.ResponseWriter, r *http.Request, token string)) *omtStub {
	t.Helper()
	s := &omtStub{handleAPI: handleAPI}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/authenticate-user" {
			n := s.authCalls.Add(1)
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "merchant", creds["username"])
			assert.Equal(t, "secret", creds["password"])
			writeJSON(w, http.StatusOK, map[string]string{
				"access_token":  tokenForAttempt(n),
				"refresh_token": "rt-" + tokenForAttempt(n),
			})
			return
		}
		s.apiCalls.Add(1)
		token := r.Header.Get("Authorization")
		s.handleAPI(w, r, token)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func tokenForAttempt(n int32) string {
	return fmt.Sprintf("tok-%d", n)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *omtStub) client() *Client {
	return NewClient(Config{
		BaseURL:  s.srv.URL,
		Username: "merchant",
		Password: "secret",
	}, s.srv.Client())
}

func TestInitiatePayment_Success(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, r *http.Request, token string) {
		assert.Equal(t, "/initiate-payment", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", token)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "merchant", body["username"])
		assert.Equal(t, "25.50", body["amount"])
		assert.Equal(t, "USD", body["currency"])
		assert.Equal(t, "s1", body["transaction_id"])

		writeJSON(w, http.StatusOK, map[string]string{
			"transaction_id": "omt-tx-1",
			"payment_url":    "https://pay/omt-tx-1",
		})
	})

	resp, err := stub.client().InitiatePayment(context.Background(), InitiatePaymentRequest{
		Amount:     decimal.RequireFromString("25.5"),
		Currency:   "USD",
		Identifier: "shop1.myshopify.com",
		SessionID:  "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "omt-tx-1", resp.TransactionID)
	assert.Equal(t, "https://pay/omt-tx-1", resp.PaymentURL)
	assert.Equal(t, int32(1), stub.authCalls.Load())
}

func TestInitiatePayment_MissingFieldsRejected(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		writeJSON(w, http.StatusOK, map[string]string{"transaction_id": "omt-tx-1"})
	})

	_, err := stub.client().InitiatePayment(context.Background(), InitiatePaymentRequest{
		Amount: decimal.New(1, 0), Currency: "USD", SessionID: "s1",
	})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Body, "payment_url")
}

// A 401 triggers exactly one re-authentication and one retry of the same
// request with the fresh token.
func TestPost_RefreshesOnceOn401(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, _ *http.Request, token string) {
		if token == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", token)
		writeJSON(w, http.StatusOK, map[string]string{"transaction_id": "omt-tx-1", "status": OutcomeSuccess})
	})

	resp, err := stub.client().PaymentStatus(context.Background(), "omt-tx-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, resp.Status)
	assert.Equal(t, int32(2), stub.authCalls.Load(), "initial auth plus one refresh")
	assert.Equal(t, int32(2), stub.apiCalls.Load(), "original call plus one retry")
}

// A second consecutive 401 surfaces as AuthError with no third attempt.
func TestPost_SecondUnauthorizedIsFatal(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := stub.client().PaymentStatus(context.Background(), "omt-tx-1")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, int32(2), stub.apiCalls.Load(), "exactly two attempts, never a third")
}

// Non-401 failures pass the upstream status and body through and are never
// retried.
func TestPost_UpstreamErrorNotRetried(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := stub.client().Refund(context.Background(), RefundRequest{
		TransactionID: "omt-tx-1",
		Amount:        decimal.RequireFromString("5.00"),
		Currency:      "USD",
	})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadGateway, reqErr.Status)
	assert.Equal(t, "upstream exploded", reqErr.Body)
	assert.Equal(t, int32(1), stub.apiCalls.Load())
}

func TestPost_MalformedJSONResponse(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	})

	_, err := stub.client().Void(context.Background(), "omt-tx-1")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Contains(t, reqErr.Body, "malformed response")
}

func TestCapture_OmitsZeroAmount(t *testing.T) {
	stub := newOMTStub(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasAmount := body["amount"]
		assert.False(t, hasAmount, "full capture sends no amount")
		writeJSON(w, http.StatusOK, map[string]string{"transaction_id": "omt-tx-1", "status": OutcomeSuccess})
	})

	resp, err := stub.client().Capture(context.Background(), CaptureRequest{TransactionID: "omt-tx-1"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, resp.Status)
}
