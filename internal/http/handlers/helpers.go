package handlers

import (
	"errors"

	"github.com/koushikdev2022/shphifyotm/internal/modules/payments"
	"github.com/koushikdev2022/shphifyotm/internal/modules/sessions"
	"github.com/koushikdev2022/shphifyotm/internal/omt"
	"github.com/koushikdev2022/shphifyotm/internal/shared/apperr"
	"github.com/koushikdev2022/shphifyotm/internal/shopify"
)

// mapServiceError translates orchestration errors into the apperr taxonomy.
// Upstream bodies are passed through for diagnosis.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return apperr.NotFoundErr("Payment session not found.")
	case errors.Is(err, payments.ErrShopNotFound):
		return apperr.NotFoundErr("Shop not found.")
	case errors.Is(err, sessions.ErrDuplicate):
		return apperr.ConflictErr("Session already exists.")
	case errors.Is(err, sessions.ErrConflict):
		return apperr.ConflictErr("Session is not in a state that allows this operation.")
	case errors.Is(err, payments.ErrNoGatewayTransaction):
		return apperr.InvalidErr("Payment has no gateway transaction.", nil)
	}

	var authErr *omt.AuthError
	if errors.As(err, &authErr) {
		return apperr.InternalErr("Failed to authenticate with OMT portal.", err)
	}

	var reqErr *omt.RequestError
	if errors.As(err, &reqErr) {
		return apperr.InternalErr("OMT request failed: "+reqErr.Body, err)
	}

	var notifyErr *shopify.NotifyError
	if errors.As(err, &notifyErr) {
		return apperr.InternalErr("Failed to notify Shopify: "+notifyErr.Detail, err)
	}

	return apperr.Wrap(err)
}
