package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newShopServer stands in for a shop's Admin GraphQL endpoint. The shop
// domain handed to the notifier is the TLS listener's host:port, so the
// https URL the notifier builds lands here.
func newShopServer(t *testing.T, handler http.HandlerFunc) (shop string, n *Notifier) {
	t.Helper()
	srv := httptest.NewTLSServer(handler)
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().String(), NewNotifier(srv.Client(), "2025-01")
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func TestResolvePayment_ReturnsRedirectURL(t *testing.T) {
	shop, n := newShopServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-01/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "paymentSessionResolve")
		assert.Equal(t, "gid://shopify/PaymentSession/s1", req.Variables["id"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"paymentSessionResolve": map[string]any{
					"paymentSession": map[string]any{
						"id": "gid://shopify/PaymentSession/s1",
						"nextAction": map[string]any{
							"action": "REDIRECT",
							"context": map[string]any{
								"redirectUrl": "https://shop1.myshopify.com/checkout/done",
							},
						},
					},
					"userErrors": []any{},
				},
			},
		})
	})

	redirect, err := n.ResolvePayment(context.Background(), shop, "shpat_test", "gid://shopify/PaymentSession/s1")
	require.NoError(t, err)
	assert.Equal(t, "https://shop1.myshopify.com/checkout/done", redirect)
}

func TestRejectPayment_SendsReason(t *testing.T) {
	shop, n := newShopServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "paymentSessionReject")

		reason, ok := req.Variables["reason"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "PROCESSING_ERROR", reason["code"])
		assert.Equal(t, "card declined", reason["merchantMessage"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"paymentSessionReject": map[string]any{
					"paymentSession": map[string]any{"id": "gid://shopify/PaymentSession/s1"},
					"userErrors":     []any{},
				},
			},
		})
	})

	err := n.RejectPayment(context.Background(), shop, "shpat_test", "gid://shopify/PaymentSession/s1", "card declined")
	require.NoError(t, err)
}

func TestMutate_UserErrorsBecomeNotifyError(t *testing.T) {
	shop, n := newShopServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"refundSessionResolve": map[string]any{
					"refundSession": nil,
					"userErrors": []map[string]any{
						{"field": []string{"id"}, "message": "Refund session already resolved"},
					},
				},
			},
		})
	})

	err := n.ResolveRefund(context.Background(), shop, "shpat_test", "gid://shopify/RefundSession/r1")
	var nerr *NotifyError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "refundSessionResolve", nerr.Operation)
	assert.Contains(t, nerr.Detail, "already resolved")
}

func TestMutate_TopLevelErrorsBecomeNotifyError(t *testing.T) {
	shop, n := newShopServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "Throttled"}},
		})
	})

	err := n.RejectRefund(context.Background(), shop, "shpat_test", "gid://shopify/RefundSession/r1", "gateway error")
	var nerr *NotifyError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "Throttled", nerr.Detail)
}

func TestMutate_HTTPFailureBecomesNotifyError(t *testing.T) {
	shop, n := newShopServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream error"))
	})

	_, err := n.ResolvePayment(context.Background(), shop, "shpat_test", "gid://shopify/PaymentSession/s1")
	var nerr *NotifyError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusBadGateway, nerr.Status)
	assert.Contains(t, nerr.Detail, "upstream error")
}

func TestResolvePayment_NoRedirectIsEmpty(t *testing.T) {
	shop, n := newShopServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"paymentSessionResolve": map[string]any{
					"paymentSession": map[string]any{"id": "gid://shopify/PaymentSession/s1"},
					"userErrors":     []any{},
				},
			},
		})
	})

	redirect, err := n.ResolvePayment(context.Background(), shop, "shpat_test", "gid://shopify/PaymentSession/s1")
	require.NoError(t, err)
	assert.Empty(t, redirect)
}
