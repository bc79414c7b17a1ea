package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Store is the persistence surface the orchestrator drives. Every update is
// a keyed single-row write; a lookup miss is ErrNotFound, never swallowed.
type Store interface {
	CreatePaymentSession(ctx context.Context, s *PaymentSession) error
	FindBySessionID(ctx context.Context, shopifySessionID string) (PaymentSession, error)
	FindByGatewayTransactionID(ctx context.Context, omtTxID string) (PaymentSession, error)
	UpdateGatewayTransaction(ctx context.Context, shopifySessionID, omtTxID, omtURL string) error
	// UpdateStatusIf writes the status only when the current status is one of
	// from; a row that exists but is in another state returns ErrConflict.
	// errMsg, when non-nil, is written alongside the status.
	UpdateStatusIf(ctx context.Context, omtTxID string, from []Status, to Status, errMsg *string) error
	// RecordSessionError stamps an error message on a session that never
	// received a gateway transaction id (failed initiation audit trail).
	RecordSessionError(ctx context.Context, shopifySessionID, errMsg string) error
	CreateRefund(ctx context.Context, r *RefundSession) error

	FindShopCredentials(ctx context.Context, shop string) (ShopCredentials, error)
	UpsertShopCredentials(ctx context.Context, c *ShopCredentials) error
	DeactivateShop(ctx context.Context, shop string) error
}

type GormStore struct{ db *gorm.DB }

func NewStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// DB returns the underlying database connection for direct queries.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) CreatePaymentSession(ctx context.Context, ps *PaymentSession) error {
	if err := s.db.WithContext(ctx).Create(ps).Error; err != nil {
		if isDup(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *GormStore) FindBySessionID(ctx context.Context, shopifySessionID string) (PaymentSession, error) {
	var ps PaymentSession
	err := s.db.WithContext(ctx).First(&ps, "shopify_session_id = ?", shopifySessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentSession{}, ErrNotFound
	}
	return ps, err
}

func (s *GormStore) FindByGatewayTransactionID(ctx context.Context, omtTxID string) (PaymentSession, error) {
	var ps PaymentSession
	err := s.db.WithContext(ctx).First(&ps, "omt_transaction_id = ?", omtTxID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentSession{}, ErrNotFound
	}
	return ps, err
}

func (s *GormStore) UpdateGatewayTransaction(ctx context.Context, shopifySessionID, omtTxID, omtURL string) error {
	res := s.db.WithContext(ctx).Model(&PaymentSession{}).
		Where("shopify_session_id = ?", shopifySessionID).
		Updates(map[string]any{
			"omt_transaction_id": omtTxID,
			"omt_payment_url":    omtURL,
			"status":             StatusProcessing,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdateStatusIf(ctx context.Context, omtTxID string, from []Status, to Status, errMsg *string) error {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if errMsg != nil {
		updates["error_message"] = errMsg
	}
	res := s.db.WithContext(ctx).Model(&PaymentSession{}).
		Where("omt_transaction_id = ? AND status IN ?", omtTxID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// distinguish missing row from a lost precondition race
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&PaymentSession{}).
		Where("omt_transaction_id = ?", omtTxID).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *GormStore) RecordSessionError(ctx context.Context, shopifySessionID, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&PaymentSession{}).
		Where("shopify_session_id = ?", shopifySessionID).
		Updates(map[string]any{
			"error_message": errMsg,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateRefund(ctx context.Context, r *RefundSession) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if isDup(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *GormStore) FindShopCredentials(ctx context.Context, shop string) (ShopCredentials, error) {
	var c ShopCredentials
	err := s.db.WithContext(ctx).First(&c, "shop = ? AND is_active = ?", shop, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ShopCredentials{}, ErrNotFound
	}
	return c, err
}

// UpsertShopCredentials supersedes any existing row for the shop: a
// re-install reactivates and replaces the token instead of inserting a
// second row.
func (s *GormStore) UpsertShopCredentials(ctx context.Context, c *ShopCredentials) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ShopCredentials
		err := tx.First(&existing, "shop = ?", c.Shop).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(c).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&ShopCredentials{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"access_token":   c.AccessToken,
				"scope":          c.Scope,
				"is_active":      true,
				"installed_at":   c.InstalledAt,
				"uninstalled_at": nil,
				"updated_at":     time.Now(),
			}).Error
	})
}

func (s *GormStore) DeactivateShop(ctx context.Context, shop string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&ShopCredentials{}).
		Where("shop = ?", shop).
		Updates(map[string]any{
			"access_token":   "",
			"is_active":      false,
			"uninstalled_at": &now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
