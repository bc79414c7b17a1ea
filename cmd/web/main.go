package main

import (
	"log"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	apphttp "github.com/koushikdev2022/shphifyotm/internal/http"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	cfg := apphttp.Config{
		Host:              mustEnv("HOST"),
		OMTBaseURL:        envOr("OMT_BASE_URL", "https://pay-test.omt.com.lb/onlinepayment/api"),
		OMTUsername:       mustEnv("OMT_USERNAME"),
		OMTPassword:       mustEnv("OMT_PASSWORD"),
		ShopifyAPIKey:     mustEnv("SHOPIFY_API_KEY"),
		ShopifyAPISecret:  mustEnv("SHOPIFY_API_SECRET"),
		ShopifyScopes:     envOr("SHOPIFY_SCOPES", "write_payment_gateways,write_payment_sessions"),
		ShopifyAPIVersion: envOr("SHOPIFY_API_VERSION", "2025-01"),
	}

	r := apphttp.NewRouter(logger, db, cfg)
	addr := ":" + envOr("PORT", "8080")
	logger.Info("listening", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s environment variable is required", key)
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
