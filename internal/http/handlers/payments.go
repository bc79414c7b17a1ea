package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/koushikdev2022/shphifyotm/internal/http/middleware"
	"github.com/koushikdev2022/shphifyotm/internal/http/validation"
	"github.com/koushikdev2022/shphifyotm/internal/modules/payments"
	"github.com/koushikdev2022/shphifyotm/internal/shared/apperr"
)

type PaymentHandler struct {
	Logger       *slog.Logger
	Orchestrator *payments.Service
}

func NewPaymentHandler(logger *slog.Logger, svc *payments.Service) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Orchestrator: svc}
}

type createSessionInput struct {
	ID             string `json:"id" binding:"required,max=255"`
	Amount         string `json:"amount" binding:"required,max=32"`
	Currency       string `json:"currency" binding:"required,len=3"`
	MerchantLocale struct {
		ShopID string `json:"shop_id" binding:"required,max=255"`
	} `json:"merchant_locale" binding:"required"`
	Customer *struct {
		Email string `json:"email" binding:"omitempty,email,max=255"`
	} `json:"customer"`
	RedirectURL   string          `json:"redirect_url" binding:"omitempty,url"`
	Kind          string          `json:"kind" binding:"omitempty,max=32"`
	Group         string          `json:"group" binding:"omitempty,max=255"`
	PaymentMethod json.RawMessage `json:"payment_method"`
	Test          bool            `json:"test"`
}

// sessionMetadata collects the create-payload fields we keep for audit but
// do not act on. Returns nil when there is nothing to keep.
func sessionMetadata(in createSessionInput) []byte {
	meta := map[string]any{}
	if in.Kind != "" {
		meta["kind"] = in.Kind
	}
	if in.Group != "" {
		meta["group"] = in.Group
	}
	if len(in.PaymentMethod) > 0 {
		meta["payment_method"] = in.PaymentMethod
	}
	if len(meta) == 0 {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return b
}

// POST /api/payments/session
// Shopify opens a payment session; the response must carry a redirect URL
// on every success.
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	var in createSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fields := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Missing or malformed payment parameters.", fields))
		return
	}

	c.Set(middleware.CtxKeySessionID, in.ID)

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		middleware.Fail(c, apperr.InvalidErr("Amount must be a positive decimal.", validation.FieldErrors{"amount": "Invalid value."}))
		return
	}

	var email *string
	if in.Customer != nil && in.Customer.Email != "" {
		e := in.Customer.Email
		email = &e
	}
	var redirect *string
	if in.RedirectURL != "" {
		r := in.RedirectURL
		redirect = &r
	}

	res, err := h.Orchestrator.CreateSession(c.Request.Context(), payments.CreateSessionInput{
		SessionID:     in.ID,
		Shop:          in.MerchantLocale.ShopID,
		Amount:        amount,
		Currency:      in.Currency,
		CustomerEmail: email,
		RedirectURL:   redirect,
		Metadata:      sessionMetadata(in),
		Test:          in.Test,
	})
	if err != nil {
		middleware.Fail(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"redirect_url": res.RedirectURL})
}

type callbackInput struct {
	TransactionID string `form:"transaction_id" binding:"required,max=255"`
	Status        string `form:"status" binding:"omitempty,max=32"`
}

// GET /api/payments/callback
// OMT sends the customer back here after the hosted payment page. On
// success the customer is redirected onward to Shopify.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var in callbackInput
	if err := c.ShouldBindQuery(&in); err != nil {
		fields := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Missing transaction_id.", fields))
		return
	}

	c.Set(middleware.CtxKeyTransactionID, in.TransactionID)

	res, err := h.Orchestrator.HandleCallback(c.Request.Context(), in.TransactionID, in.Status)
	if err != nil {
		middleware.Fail(c, mapServiceError(err))
		return
	}

	c.Redirect(http.StatusFound, res.RedirectURL)
}
