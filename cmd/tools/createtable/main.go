package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	// DSN must carry multiStatements=true for the batched DDL below
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	sql := `
	CREATE TABLE IF NOT EXISTS shop_credentials (
	  id CHAR(36) NOT NULL,
	  shop VARCHAR(255) NOT NULL,
	  access_token TEXT NOT NULL,
	  scope TEXT NULL,
	  is_active TINYINT(1) NOT NULL DEFAULT 1,
	  installed_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  uninstalled_at DATETIME(3) NULL,
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_shop_credentials_shop (shop)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payment_sessions (
	  id CHAR(36) NOT NULL,
	  shop VARCHAR(255) NOT NULL,
	  shopify_session_id VARCHAR(255) NOT NULL,
	  omt_transaction_id VARCHAR(255) NULL,
	  amount DECIMAL(10,2) NOT NULL,
	  currency CHAR(3) NOT NULL,
	  status VARCHAR(32) NOT NULL DEFAULT 'pending',
	  shopify_redirect_url TEXT NULL,
	  omt_payment_url TEXT NULL,
	  error_message TEXT NULL,
	  customer_email VARCHAR(255) NULL,
	  test TINYINT(1) NOT NULL DEFAULT 0,
	  metadata JSON NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_payment_sessions_shopify_session (shopify_session_id),
	  KEY ix_payment_sessions_omt_tx (omt_transaction_id),
	  KEY ix_payment_sessions_shop (shop),
	  KEY ix_payment_sessions_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS refund_sessions (
	  id CHAR(36) NOT NULL,
	  shopify_refund_id VARCHAR(255) NOT NULL,
	  payment_id CHAR(36) NOT NULL,
	  omt_refund_id VARCHAR(255) NULL,
	  amount DECIMAL(10,2) NOT NULL,
	  currency CHAR(3) NOT NULL,
	  status VARCHAR(32) NOT NULL DEFAULT 'pending',
	  error_message TEXT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_refund_sessions_shopify_refund (shopify_refund_id),
	  KEY ix_refund_sessions_payment_id (payment_id),
	  CONSTRAINT fk_refund_sessions_payment FOREIGN KEY (payment_id) REFERENCES payment_sessions(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := sqlDB.Exec(sql); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("✓ shop_credentials table created successfully")
	log.Println("✓ payment_sessions table created successfully")
	log.Println("✓ refund_sessions table created successfully")
}
