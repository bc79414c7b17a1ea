package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier performs the outcome mutations against the Shopify Payments Apps
// GraphQL API. It never touches persisted state; callers write first, then
// notify.
type Notifier struct {
	httpClient *http.Client
	apiVersion string
}

func NewNotifier(httpClient *http.Client, apiVersion string) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{httpClient: httpClient, apiVersion: apiVersion}
}

const paymentSessionResolveMutation = `
mutation PaymentSessionResolve($id: ID!) {
  paymentSessionResolve(id: $id) {
    paymentSession {
      id
      nextAction {
        action
        context {
          ... on PaymentSessionActionsRedirect {
            redirectUrl
          }
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}`

const paymentSessionRejectMutation = `
mutation PaymentSessionReject($id: ID!, $reason: PaymentSessionRejectionReasonInput!) {
  paymentSessionReject(id: $id, reason: $reason) {
    paymentSession {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const refundSessionResolveMutation = `
mutation RefundSessionResolve($id: ID!) {
  refundSessionResolve(id: $id) {
    refundSession {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

const refundSessionRejectMutation = `
mutation RefundSessionReject($id: ID!, $reason: RefundSessionRejectionReasonInput!) {
  refundSessionReject(id: $id, reason: $reason) {
    refundSession {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// ResolvePayment marks the payment session successful. Returns the
// platform-provided redirect URL when Shopify supplies one.
func (n *Notifier) ResolvePayment(ctx context.Context, shop, accessToken, sessionGID string) (string, error) {
	body, err := n.mutate(ctx, shop, accessToken, "paymentSessionResolve", paymentSessionResolveMutation, map[string]any{
		"id": sessionGID,
	})
	if err != nil {
		return "", err
	}
	return extractRedirectURL(body), nil
}

// RejectPayment marks the payment session failed with a merchant-visible
// reason.
func (n *Notifier) RejectPayment(ctx context.Context, shop, accessToken, sessionGID, reason string) error {
	_, err := n.mutate(ctx, shop, accessToken, "paymentSessionReject", paymentSessionRejectMutation, map[string]any{
		"id": sessionGID,
		"reason": map[string]any{
			"code":            "PROCESSING_ERROR",
			"merchantMessage": reason,
		},
	})
	return err
}

func (n *Notifier) ResolveRefund(ctx context.Context, shop, accessToken, refundGID string) error {
	_, err := n.mutate(ctx, shop, accessToken, "refundSessionResolve", refundSessionResolveMutation, map[string]any{
		"id": refundGID,
	})
	return err
}

func (n *Notifier) RejectRefund(ctx context.Context, shop, accessToken, refundGID, reason string) error {
	_, err := n.mutate(ctx, shop, accessToken, "refundSessionReject", refundSessionRejectMutation, map[string]any{
		"id": refundGID,
		"reason": map[string]any{
			"code":            "PROCESSING_ERROR",
			"merchantMessage": reason,
		},
	})
	return err
}

type graphqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type mutationPayload struct {
	UserErrors []struct {
		Field   []string `json:"field"`
		Message string   `json:"message"`
	} `json:"userErrors"`
}

func (n *Notifier) mutate(ctx context.Context, shop, accessToken, operation, query string, variables map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, n.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, &NotifyError{Operation: operation, Status: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: string(body)}
	}

	var gql graphqlResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: "malformed graphql response"}
	}
	if len(gql.Errors) > 0 {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: gql.Errors[0].Message}
	}

	raw, ok := gql.Data[operation]
	if !ok {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: "missing mutation payload"}
	}

	var mp mutationPayload
	if err := json.Unmarshal(raw, &mp); err != nil {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: "malformed mutation payload"}
	}
	if len(mp.UserErrors) > 0 {
		return nil, &NotifyError{Operation: operation, Status: resp.StatusCode, Detail: mp.UserErrors[0].Message}
	}

	return raw, nil
}

func extractRedirectURL(raw json.RawMessage) string {
	var payload struct {
		PaymentSession struct {
			NextAction struct {
				Context struct {
					RedirectURL string `json:"redirectUrl"`
				} `json:"context"`
			} `json:"nextAction"`
		} `json:"paymentSession"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.PaymentSession.NextAction.Context.RedirectURL
}
