package omt

import "github.com/shopspring/decimal"

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type InitiatePaymentRequest struct {
	Amount     decimal.Decimal
	Currency   string
	Identifier string // shop/merchant identifier
	SessionID  string // shopify session id, echoed as transaction_id
}

type InitiatePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
}

type PaymentStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"` // success|failed
	ErrorMessage  string `json:"error_message"`
}

type RefundRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
}

type RefundResponse struct {
	RefundID     string `json:"refund_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type CaptureRequest struct {
	TransactionID string
	Amount        decimal.Decimal
}

type OperationResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
}

const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)
