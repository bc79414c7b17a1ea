package payments

import (
	"context"

	"github.com/koushikdev2022/shphifyotm/internal/omt"
)

// Gateway is the slice of the OMT client the orchestrator drives.
// *omt.Client satisfies it; tests substitute fakes.
type Gateway interface {
	InitiatePayment(ctx context.Context, in omt.InitiatePaymentRequest) (omt.InitiatePaymentResponse, error)
	PaymentStatus(ctx context.Context, transactionID string) (omt.PaymentStatusResponse, error)
	Refund(ctx context.Context, in omt.RefundRequest) (omt.RefundResponse, error)
	Capture(ctx context.Context, in omt.CaptureRequest) (omt.OperationResponse, error)
	Void(ctx context.Context, transactionID string) (omt.OperationResponse, error)
}

// Notifier is the Shopify outcome surface. *shopify.Notifier satisfies it.
type Notifier interface {
	ResolvePayment(ctx context.Context, shop, accessToken, sessionGID string) (string, error)
	RejectPayment(ctx context.Context, shop, accessToken, sessionGID, reason string) error
	ResolveRefund(ctx context.Context, shop, accessToken, refundGID string) error
	RejectRefund(ctx context.Context, shop, accessToken, refundGID, reason string) error
}
