package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/koushikdev2022/shphifyotm/internal/modules/sessions"
	"github.com/koushikdev2022/shphifyotm/internal/omt"
)

// testTxPrefix marks simulated transactions. The mock id is derived from the
// session id so replays stay deterministic.
const testTxPrefix = "test-omt-"

// Service is the payment orchestrator: it owns every payment-session status
// transition. Within one trigger the local write always happens before the
// Shopify notification, so a crash between the two leaves a record that can
// be reconciled from the stored status.
type Service struct {
	store    sessions.Store
	gateway  Gateway
	notifier Notifier
	host     string // public base URL, used for simulated callback URLs
	logger   *slog.Logger
}

func NewService(store sessions.Store, gw Gateway, n Notifier, host string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gateway: gw, notifier: n, host: host, logger: logger}
}

type CreateSessionInput struct {
	SessionID     string
	Shop          string
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail *string
	RedirectURL   *string // shopify return URL, stored for the callback hop
	Test          bool
	Metadata      []byte
}

type CreateSessionResult struct {
	RedirectURL string
}

// CreateSession persists the pending row, initiates the OMT payment (or
// synthesizes a deterministic mock for test sessions; that branch lives
// here, never inside the gateway client), and moves the session to
// processing. A success always carries a redirect URL; a gateway failure
// fails the whole trigger with the pending row kept for audit.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (CreateSessionResult, error) {
	now := time.Now()
	ps := &sessions.PaymentSession{
		ID:                 uuid.NewString(),
		Shop:               in.Shop,
		ShopifySessionID:   in.SessionID,
		Amount:             in.Amount,
		Currency:           in.Currency,
		Status:             sessions.StatusPending,
		ShopifyRedirectURL: in.RedirectURL,
		CustomerEmail:      in.CustomerEmail,
		Test:               in.Test,
		Metadata:           in.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreatePaymentSession(ctx, ps); err != nil {
		return CreateSessionResult{}, err
	}

	var txID, payURL string
	if in.Test {
		txID = testTxPrefix + in.SessionID
		payURL = fmt.Sprintf("%s/api/payments/callback?transaction_id=%s&status=%s", s.host, txID, omt.OutcomeSuccess)
		s.logger.InfoContext(ctx, "simulated payment initiated", "session_id", in.SessionID, "omt_tx_id", txID)
	} else {
		resp, err := s.gateway.InitiatePayment(ctx, omt.InitiatePaymentRequest{
			Amount:     in.Amount,
			Currency:   in.Currency,
			Identifier: in.Shop,
			SessionID:  in.SessionID,
		})
		if err != nil {
			// no partial processing state; keep the failure on the pending row
			if rerr := s.store.RecordSessionError(ctx, in.SessionID, err.Error()); rerr != nil {
				s.logger.ErrorContext(ctx, "failed to record initiation error", "session_id", in.SessionID, "err", rerr)
			}
			return CreateSessionResult{}, err
		}
		txID = resp.TransactionID
		payURL = resp.PaymentURL
	}

	if err := s.store.UpdateGatewayTransaction(ctx, in.SessionID, txID, payURL); err != nil {
		return CreateSessionResult{}, err
	}

	s.logger.InfoContext(ctx, "payment session created", "session_id", in.SessionID, "shop", in.Shop, "omt_tx_id", txID, "test", in.Test)
	return CreateSessionResult{RedirectURL: payURL}, nil
}

type CallbackResult struct {
	Status      sessions.Status
	RedirectURL string // where the customer goes next
}

// HandleCallback reconciles the OMT outcome for one transaction id onto the
// Shopify session. An unknown transaction id is rejected with zero writes
// and zero platform calls; acting on an unverified id could credit the
// wrong shop.
func (s *Service) HandleCallback(ctx context.Context, transactionID, statusParam string) (CallbackResult, error) {
	ps, err := s.store.FindByGatewayTransactionID(ctx, transactionID)
	if err != nil {
		return CallbackResult{}, err
	}

	// determine the outcome; simulated sessions trust the callback's own
	// status parameter instead of calling the network
	var outcome string
	var gatewayMsg string
	if ps.Test {
		outcome = statusParam
	} else {
		st, err := s.gateway.PaymentStatus(ctx, transactionID)
		if err != nil {
			return CallbackResult{}, err
		}
		outcome = st.Status
		gatewayMsg = st.ErrorMessage
	}

	newStatus := sessions.StatusFailed
	var errMsg *string
	if outcome == omt.OutcomeSuccess {
		newStatus = sessions.StatusCompleted
	} else {
		msg := gatewayMsg
		if msg == "" {
			msg = "Payment failed"
		}
		errMsg = &msg
	}

	// durable write happens-before the platform notification. The write is
	// conditional: only a processing session finalizes, so a redelivered
	// callback can never resurrect a terminal one.
	if err := s.store.UpdateStatusIf(ctx, transactionID, []sessions.Status{sessions.StatusProcessing}, newStatus, errMsg); err != nil {
		if errors.Is(err, sessions.ErrConflict) && ps.Status == newStatus {
			// duplicate delivery of the same outcome; the first one already
			// notified the platform
			s.logger.InfoContext(ctx, "duplicate payment callback ignored", "omt_tx_id", transactionID, "status", string(newStatus))
			return CallbackResult{Status: newStatus, RedirectURL: fallbackRedirect(ps)}, nil
		}
		return CallbackResult{}, err
	}

	creds, err := s.store.FindShopCredentials(ctx, ps.Shop)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return CallbackResult{}, ErrShopNotFound
		}
		return CallbackResult{}, err
	}

	var platformRedirect string
	if newStatus == sessions.StatusCompleted {
		platformRedirect, err = s.notifier.ResolvePayment(ctx, ps.Shop, creds.AccessToken, ps.ShopifySessionID)
	} else {
		reason := "Payment failed"
		if errMsg != nil {
			reason = *errMsg
		}
		err = s.notifier.RejectPayment(ctx, ps.Shop, creds.AccessToken, ps.ShopifySessionID, reason)
	}
	if err != nil {
		// local state is already durable; surface the notify failure as-is
		return CallbackResult{}, err
	}

	redirect := platformRedirect
	if redirect == "" {
		redirect = fallbackRedirect(ps)
	}

	s.logger.InfoContext(ctx, "payment callback processed", "omt_tx_id", transactionID, "status", string(newStatus), "shop", ps.Shop)
	return CallbackResult{Status: newStatus, RedirectURL: redirect}, nil
}

// fallbackRedirect is where the customer goes when Shopify supplies no
// redirect of its own.
func fallbackRedirect(ps sessions.PaymentSession) string {
	if ps.ShopifyRedirectURL != nil && *ps.ShopifyRedirectURL != "" {
		return *ps.ShopifyRedirectURL
	}
	return "https://" + ps.Shop
}
