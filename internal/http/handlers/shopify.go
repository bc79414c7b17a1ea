package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/koushikdev2022/shphifyotm/internal/http/middleware"
	"github.com/koushikdev2022/shphifyotm/internal/modules/sessions"
	"github.com/koushikdev2022/shphifyotm/internal/shared/apperr"
	"github.com/koushikdev2022/shphifyotm/internal/shopify"
)

const webhookSignatureHeader = "X-Shopify-Hmac-Sha256"

type ShopifyHandler struct {
	Logger   *slog.Logger
	Store    sessions.Store
	OAuth    *shopify.OAuth
	Verifier *shopify.Verifier
}

func NewShopifyHandler(logger *slog.Logger, store sessions.Store, oauth *shopify.OAuth, verifier *shopify.Verifier) *ShopifyHandler {
	return &ShopifyHandler{Logger: logger, Store: store, OAuth: oauth, Verifier: verifier}
}

// GET /api/shopify/install?shop=store.myshopify.com
func (h *ShopifyHandler) Install(c *gin.Context) {
	shop := c.Query("shop")
	if shop == "" {
		middleware.Fail(c, apperr.InvalidErr("Missing shop parameter. Use ?shop=your-store.myshopify.com", nil))
		return
	}
	if !shopify.ValidShopDomain(shop) {
		middleware.Fail(c, apperr.InvalidErr("Invalid shop domain format.", nil))
		return
	}

	state := uuid.NewString()
	h.Logger.InfoContext(c.Request.Context(), "redirecting to shopify oauth", "shop", shop)
	c.Redirect(http.StatusFound, h.OAuth.InstallURL(shop, state))
}

// GET /api/shopify/auth/callback
// The HMAC over the sorted query parameters must check out before anything
// else happens; a failed check produces no side effects.
func (h *ShopifyHandler) OAuthCallback(c *gin.Context) {
	params := c.Request.URL.Query()
	shop := params.Get("shop")
	code := params.Get("code")

	if shop == "" || code == "" || params.Get("hmac") == "" {
		middleware.Fail(c, apperr.InvalidErr("Missing required parameters.", nil))
		return
	}
	if !shopify.ValidShopDomain(shop) {
		middleware.Fail(c, apperr.InvalidErr("Invalid shop domain format.", nil))
		return
	}
	if !h.Verifier.VerifyInstallCallback(params) {
		middleware.Fail(c, apperr.ForbiddenErr("HMAC validation failed."))
		return
	}

	tok, err := h.OAuth.ExchangeCode(c.Request.Context(), shop, code)
	if err != nil {
		middleware.Fail(c, apperr.InternalErr("OAuth callback failed.", err))
		return
	}

	var scope *string
	if tok.Scope != "" {
		s := tok.Scope
		scope = &s
	}
	now := time.Now()
	if err := h.Store.UpsertShopCredentials(c.Request.Context(), &sessions.ShopCredentials{
		ID:          uuid.NewString(),
		Shop:        shop,
		AccessToken: tok.AccessToken,
		Scope:       scope,
		IsActive:    true,
		InstalledAt: now,
		UpdatedAt:   now,
	}); err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	// the token is stored; a webhook registration failure should not undo
	// the install
	if err := h.OAuth.RegisterWebhooks(c.Request.Context(), shop, tok.AccessToken); err != nil {
		h.Logger.ErrorContext(c.Request.Context(), "webhook registration failed", "shop", shop, "err", err)
	}

	h.Logger.InfoContext(c.Request.Context(), "shop installed", "shop", shop)
	c.Redirect(http.StatusFound, "https://"+shop+"/admin/apps")
}

// GET /api/shopify/shop/info?shop=store.myshopify.com
func (h *ShopifyHandler) ShopInfo(c *gin.Context) {
	shop := c.Query("shop")
	if shop == "" {
		middleware.Fail(c, apperr.InvalidErr("Missing shop parameter.", nil))
		return
	}

	creds, err := h.Store.FindShopCredentials(c.Request.Context(), shop)
	if err != nil {
		middleware.Fail(c, apperr.UnauthorizedErr("Shop not authenticated."))
		return
	}

	info, err := h.OAuth.ShopInfo(c.Request.Context(), shop, creds.AccessToken)
	if err != nil {
		middleware.Fail(c, apperr.InternalErr("Failed to fetch shop information.", err))
		return
	}

	c.Data(http.StatusOK, "application/json", info)
}

// POST /api/shopify/webhooks/app-uninstalled
// The signature covers the raw body, so it is read before any parsing.
func (h *ShopifyHandler) AppUninstalled(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid body.", nil))
		return
	}

	if !h.Verifier.VerifyWebhook(rawBody, c.GetHeader(webhookSignatureHeader)) {
		middleware.Fail(c, apperr.UnauthorizedErr("Webhook verification failed."))
		return
	}

	var payload struct {
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil || payload.Domain == "" {
		middleware.Fail(c, apperr.InvalidErr("Malformed webhook payload.", nil))
		return
	}

	if err := h.Store.DeactivateShop(c.Request.Context(), payload.Domain); err != nil {
		// already-gone shops still get a 200 so Shopify stops retrying
		if !errors.Is(err, sessions.ErrNotFound) {
			middleware.Fail(c, apperr.Wrap(err))
			return
		}
	}

	h.Logger.InfoContext(c.Request.Context(), "app uninstalled", "shop", payload.Domain)
	c.String(http.StatusOK, "OK")
}
