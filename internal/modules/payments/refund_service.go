package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/koushikdev2022/shphifyotm/internal/modules/sessions"
	"github.com/koushikdev2022/shphifyotm/internal/omt"
)

// RefundService drives the terminally-resolved side operations against an
// existing payment: refund, capture, void. All three require a payment that
// actually reached OMT; anything else is a business error rejected before
// any gateway call.
type RefundService struct {
	store    sessions.Store
	gateway  Gateway
	notifier Notifier
	logger   *slog.Logger
}

func NewRefundService(store sessions.Store, gw Gateway, n Notifier, logger *slog.Logger) *RefundService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefundService{store: store, gateway: gw, notifier: n, logger: logger}
}

type RefundInput struct {
	RefundID         string // shopify refund session id
	PaymentSessionID string // shopify payment session id
	Amount           decimal.Decimal
	Currency         string
}

type RefundResult struct {
	RefundID string
	Status   sessions.Status
	Message  string
}

// Refund calls the synchronous OMT refund (or synthesizes a mock for test
// payments), persists the terminal refund row, then resolves or rejects the
// refund session on Shopify based on the gateway outcome.
func (s *RefundService) Refund(ctx context.Context, in RefundInput) (RefundResult, error) {
	gtx, creds, err := s.loadTarget(ctx, in.PaymentSessionID)
	if err != nil {
		return RefundResult{}, err
	}

	var omtRefundID *string
	outcome := omt.OutcomeFailed
	failMsg := "Refund failed"

	if gtx.Session.Test {
		id := testTxPrefix + "refund-" + in.RefundID
		omtRefundID = &id
		outcome = omt.OutcomeSuccess
	} else {
		resp, gerr := s.gateway.Refund(ctx, omt.RefundRequest{
			TransactionID: gtx.OmtTxID,
			Amount:        in.Amount,
			Currency:      in.Currency,
		})
		switch {
		case gerr == nil:
			outcome = resp.Status
			if resp.RefundID != "" {
				id := resp.RefundID
				omtRefundID = &id
			}
			if resp.ErrorMessage != "" {
				failMsg = resp.ErrorMessage
			}
		case isUpstreamReject(gerr):
			failMsg = gerr.Error()
		default:
			// auth/transport failure before a business outcome existed
			return RefundResult{}, gerr
		}
	}

	// terminal refund row, written before the platform hears anything
	now := time.Now()
	rs := &sessions.RefundSession{
		ID:              uuid.NewString(),
		ShopifyRefundID: in.RefundID,
		PaymentID:       gtx.Session.ID,
		OmtRefundID:     omtRefundID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if outcome == omt.OutcomeSuccess {
		rs.Status = sessions.StatusCompleted
	} else {
		rs.Status = sessions.StatusFailed
		rs.ErrorMessage = &failMsg
	}
	if err := s.store.CreateRefund(ctx, rs); err != nil {
		return RefundResult{}, err
	}

	if rs.Status == sessions.StatusCompleted {
		// completed -> refunded; a payment in any other state keeps its
		// status and the refund row stands alone
		if err := s.store.UpdateStatusIf(ctx, gtx.OmtTxID, []sessions.Status{sessions.StatusCompleted}, sessions.StatusRefunded, nil); err != nil && !errors.Is(err, sessions.ErrConflict) {
			return RefundResult{}, err
		}
	}

	if rs.Status == sessions.StatusCompleted {
		err = s.notifier.ResolveRefund(ctx, gtx.Session.Shop, creds.AccessToken, in.RefundID)
	} else {
		err = s.notifier.RejectRefund(ctx, gtx.Session.Shop, creds.AccessToken, in.RefundID, failMsg)
	}
	if err != nil {
		return RefundResult{}, err
	}

	s.logger.InfoContext(ctx, "refund processed", "refund_id", in.RefundID, "payment_session_id", in.PaymentSessionID, "status", string(rs.Status))

	msg := "Refund completed"
	if rs.Status == sessions.StatusFailed {
		msg = failMsg
	}
	return RefundResult{RefundID: in.RefundID, Status: rs.Status, Message: msg}, nil
}

type OperationInput struct {
	ID               string // shopify capture/void session id
	PaymentSessionID string
	Amount           decimal.Decimal // optional for capture
}

type OperationResult struct {
	Status  sessions.Status
	Message string
}

// Capture moves a processing/completed payment to captured.
func (s *RefundService) Capture(ctx context.Context, in OperationInput) (OperationResult, error) {
	return s.operate(ctx, in, sessions.StatusCaptured)
}

// Void moves a processing/completed payment to voided.
func (s *RefundService) Void(ctx context.Context, in OperationInput) (OperationResult, error) {
	return s.operate(ctx, in, sessions.StatusVoided)
}

func (s *RefundService) operate(ctx context.Context, in OperationInput, target sessions.Status) (OperationResult, error) {
	gtx, creds, err := s.loadTarget(ctx, in.PaymentSessionID)
	if err != nil {
		return OperationResult{}, err
	}

	outcome := omt.OutcomeSuccess
	failMsg := string(target) + " failed"

	if !gtx.Session.Test {
		var resp omt.OperationResponse
		var gerr error
		if target == sessions.StatusCaptured {
			resp, gerr = s.gateway.Capture(ctx, omt.CaptureRequest{TransactionID: gtx.OmtTxID, Amount: in.Amount})
		} else {
			resp, gerr = s.gateway.Void(ctx, gtx.OmtTxID)
		}
		switch {
		case gerr == nil:
			outcome = resp.Status
			if resp.ErrorMessage != "" {
				failMsg = resp.ErrorMessage
			}
		case isUpstreamReject(gerr):
			outcome = omt.OutcomeFailed
			failMsg = gerr.Error()
		default:
			return OperationResult{}, gerr
		}
	}

	if outcome != omt.OutcomeSuccess {
		if err := s.notifier.RejectPayment(ctx, gtx.Session.Shop, creds.AccessToken, in.ID, failMsg); err != nil {
			return OperationResult{}, err
		}
		return OperationResult{Status: sessions.StatusFailed, Message: failMsg}, nil
	}

	// conditional write: only processing/completed payments can transition
	if err := s.store.UpdateStatusIf(ctx, gtx.OmtTxID, []sessions.Status{sessions.StatusProcessing, sessions.StatusCompleted}, target, nil); err != nil {
		return OperationResult{}, err
	}

	if _, err := s.notifier.ResolvePayment(ctx, gtx.Session.Shop, creds.AccessToken, in.ID); err != nil {
		return OperationResult{}, err
	}

	s.logger.InfoContext(ctx, "payment operation processed", "operation", string(target), "payment_session_id", in.PaymentSessionID)
	return OperationResult{Status: target, Message: string(target) + " completed"}, nil
}

// loadTarget resolves the payment, requires a gateway transaction, and
// fetches the shop credentials needed for the platform notification.
func (s *RefundService) loadTarget(ctx context.Context, paymentSessionID string) (sessions.GatewayTransaction, sessions.ShopCredentials, error) {
	ps, err := s.store.FindBySessionID(ctx, paymentSessionID)
	if err != nil {
		return sessions.GatewayTransaction{}, sessions.ShopCredentials{}, err
	}

	gtx, ok := ps.WithGatewayTransaction()
	if !ok {
		return sessions.GatewayTransaction{}, sessions.ShopCredentials{}, ErrNoGatewayTransaction
	}

	creds, err := s.store.FindShopCredentials(ctx, ps.Shop)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return sessions.GatewayTransaction{}, sessions.ShopCredentials{}, ErrShopNotFound
		}
		return sessions.GatewayTransaction{}, sessions.ShopCredentials{}, err
	}
	return gtx, creds, nil
}

// isUpstreamReject tells a gateway business rejection (carries an upstream
// status/body) apart from auth or transport failures that abort the trigger.
func isUpstreamReject(err error) bool {
	var re *omt.RequestError
	return errors.As(err, &re) && re.Status >= 400 && re.Status < 500 && re.Status != 401
}
