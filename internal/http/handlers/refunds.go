package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/koushikdev2022/shphifyotm/internal/http/middleware"
	"github.com/koushikdev2022/shphifyotm/internal/http/validation"
	"github.com/koushikdev2022/shphifyotm/internal/modules/payments"
	"github.com/koushikdev2022/shphifyotm/internal/shared/apperr"
)

type RefundHandler struct {
	Logger *slog.Logger
	Svc    *payments.RefundService
}

func NewRefundHandler(logger *slog.Logger, svc *payments.RefundService) *RefundHandler {
	return &RefundHandler{Logger: logger, Svc: svc}
}

type refundInput struct {
	ID        string `json:"id" binding:"required,max=255"`
	PaymentID string `json:"payment_id" binding:"required,max=255"`
	Amount    string `json:"amount" binding:"required,max=32"`
	Currency  string `json:"currency" binding:"required,len=3"`
}

// POST /api/payments/refund
func (h *RefundHandler) Refund(c *gin.Context) {
	var in refundInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fields := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Missing or malformed refund parameters.", fields))
		return
	}

	c.Set(middleware.CtxKeySessionID, in.PaymentID)

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		middleware.Fail(c, apperr.InvalidErr("Amount must be a positive decimal.", validation.FieldErrors{"amount": "Invalid value."}))
		return
	}

	res, err := h.Svc.Refund(c.Request.Context(), payments.RefundInput{
		RefundID:         in.ID,
		PaymentSessionID: in.PaymentID,
		Amount:           amount,
		Currency:         in.Currency,
	})
	if err != nil {
		middleware.Fail(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": res.Message, "status": res.Status})
}

type operationInput struct {
	ID        string `json:"id" binding:"required,max=255"`
	PaymentID string `json:"payment_id" binding:"required,max=255"`
	Amount    string `json:"amount" binding:"omitempty,max=32"`
}

// POST /api/payments/capture
func (h *RefundHandler) Capture(c *gin.Context) {
	h.operate(c, h.Svc.Capture)
}

// POST /api/payments/void
func (h *RefundHandler) Void(c *gin.Context) {
	h.operate(c, h.Svc.Void)
}

func (h *RefundHandler) operate(c *gin.Context, op func(ctx context.Context, in payments.OperationInput) (payments.OperationResult, error)) {
	var in operationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fields := validation.FromBindError(err, &in)
		middleware.Fail(c, apperr.InvalidErr("Missing or malformed parameters.", fields))
		return
	}

	c.Set(middleware.CtxKeySessionID, in.PaymentID)

	amount := decimal.Zero
	if in.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(in.Amount)
		if err != nil || amount.IsNegative() {
			middleware.Fail(c, apperr.InvalidErr("Amount must be a decimal.", validation.FieldErrors{"amount": "Invalid value."}))
			return
		}
	}

	res, err := op(c.Request.Context(), payments.OperationInput{
		ID:               in.ID,
		PaymentSessionID: in.PaymentID,
		Amount:           amount,
	})
	if err != nil {
		middleware.Fail(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": res.Message, "status": res.Status})
}
