package sessions

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCaptured   Status = "captured"
	StatusVoided     Status = "voided"
)

// PaymentSession is one checkout-to-outcome attempt. ShopifySessionID is
// assigned by Shopify and unique; OmtTransactionID stays nil until OMT
// accepts the payment, then never changes.
type PaymentSession struct {
	ID                 string          `gorm:"type:char(36);primaryKey"`
	Shop               string          `gorm:"type:varchar(255);not null;index:ix_payment_sessions_shop"`
	ShopifySessionID   string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_sessions_shopify_session"`
	OmtTransactionID   *string         `gorm:"type:varchar(255);index:ix_payment_sessions_omt_tx"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency           string          `gorm:"type:char(3);not null"`
	Status             Status          `gorm:"type:varchar(32);not null;index:ix_payment_sessions_status"`
	ShopifyRedirectURL *string         `gorm:"type:text"`
	OmtPaymentURL      *string         `gorm:"type:text"`
	ErrorMessage       *string         `gorm:"type:text"`
	CustomerEmail      *string         `gorm:"type:varchar(255)"`
	Test               bool            `gorm:"not null;default:false"`
	Metadata           datatypes.JSON  `gorm:"type:json"`
	CreatedAt          time.Time       `gorm:"type:datetime(3);not null"`
	UpdatedAt          time.Time       `gorm:"type:datetime(3);not null"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }

// GatewayTransaction narrows a session whose OMT transaction id is known to
// exist. Refund/capture/void preconditions go through here instead of
// re-checking the pointer at every call site.
type GatewayTransaction struct {
	Session PaymentSession
	OmtTxID string
}

// WithGatewayTransaction returns the narrowed form, or false when the
// session never reached OMT.
func (p PaymentSession) WithGatewayTransaction() (GatewayTransaction, bool) {
	if p.OmtTransactionID == nil || *p.OmtTransactionID == "" {
		return GatewayTransaction{}, false
	}
	return GatewayTransaction{Session: p, OmtTxID: *p.OmtTransactionID}, true
}

// RefundSession is one refund attempt against exactly one payment session.
// The OMT refund call is synchronous, so rows are created already terminal.
type RefundSession struct {
	ID              string          `gorm:"type:char(36);primaryKey"`
	ShopifyRefundID string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_refund_sessions_shopify_refund"`
	PaymentID       string          `gorm:"type:char(36);not null;index:ix_refund_sessions_payment_id"`
	OmtRefundID     *string         `gorm:"type:varchar(255)"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency        string          `gorm:"type:char(3);not null"`
	Status          Status          `gorm:"type:varchar(32);not null"`
	ErrorMessage    *string         `gorm:"type:text"`
	CreatedAt       time.Time       `gorm:"type:datetime(3);not null"`
	UpdatedAt       time.Time       `gorm:"type:datetime(3);not null"`

	Payment *PaymentSession `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

func (RefundSession) TableName() string { return "refund_sessions" }

// ShopCredentials holds the per-shop Shopify Admin API token. At most one
// row per shop; re-installation supersedes the existing row.
type ShopCredentials struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	Shop          string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_shop_credentials_shop"`
	AccessToken   string     `gorm:"type:text;not null"`
	Scope         *string    `gorm:"type:text"`
	IsActive      bool       `gorm:"not null;default:true"`
	InstalledAt   time.Time  `gorm:"type:datetime(3);not null"`
	UninstalledAt *time.Time `gorm:"type:datetime(3)"`
	UpdatedAt     time.Time  `gorm:"type:datetime(3);not null"`
}

func (ShopCredentials) TableName() string { return "shop_credentials" }
