package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/koushikdev2022/shphifyotm/internal/http/handlers"
	"github.com/koushikdev2022/shphifyotm/internal/http/middleware"
	"github.com/koushikdev2022/shphifyotm/internal/modules/payments"
	"github.com/koushikdev2022/shphifyotm/internal/modules/sessions"
	"github.com/koushikdev2022/shphifyotm/internal/omt"
	"github.com/koushikdev2022/shphifyotm/internal/shopify"
)

type Config struct {
	Host              string // public base URL of this service
	OMTBaseURL        string
	OMTUsername       string
	OMTPassword       string
	ShopifyAPIKey     string
	ShopifyAPISecret  string
	ShopifyScopes     string
	ShopifyAPIVersion string
}

func NewRouter(logger *slog.Logger, db *gorm.DB, cfg Config) *gin.Engine {
	store := sessions.NewStore(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	gateway := omt.NewClient(omt.Config{
		BaseURL:  cfg.OMTBaseURL,
		Username: cfg.OMTUsername,
		Password: cfg.OMTPassword,
	}, httpClient)
	notifier := shopify.NewNotifier(httpClient, cfg.ShopifyAPIVersion)
	verifier := shopify.NewVerifier(cfg.ShopifyAPISecret)
	oauth := shopify.NewOAuth(httpClient, cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.ShopifyScopes, cfg.ShopifyAPIVersion, cfg.Host)

	orchestrator := payments.NewService(store, gateway, notifier, cfg.Host, logger)
	refundSvc := payments.NewRefundService(store, gateway, notifier, logger)

	paymentH := handlers.NewPaymentHandler(logger, orchestrator)
	refundH := handlers.NewRefundHandler(logger, refundSvc)
	shopifyH := handlers.NewShopifyHandler(logger, store, oauth, verifier)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ErrorHandler(logger))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := store.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := r.Group("/api")
	{
		pay := api.Group("/payments")
		pay.POST("/session", paymentH.CreateSession)
		pay.GET("/callback", paymentH.Callback)
		pay.POST("/refund", refundH.Refund)
		pay.POST("/capture", refundH.Capture)
		pay.POST("/void", refundH.Void)

		shop := api.Group("/shopify")
		shop.GET("/install", shopifyH.Install)
		shop.GET("/auth/callback", shopifyH.OAuthCallback)
		shop.GET("/shop/info", shopifyH.ShopInfo)
		shop.POST("/webhooks/app-uninstalled", shopifyH.AppUninstalled)
	}

	return r
}
