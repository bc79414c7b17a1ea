package payments

import "errors"

var (
	// ErrNoGatewayTransaction rejects refund/capture/void against a payment
	// that never reached OMT. Business error, not a system failure.
	ErrNoGatewayTransaction = errors.New("payment has no gateway transaction")

	// ErrShopNotFound means no active credentials exist for the session's
	// shop, so the platform cannot be notified.
	ErrShopNotFound = errors.New("shop credentials not found")
)
