package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/observability/logger"
	"github.com/ynterhq/gateway/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type store struct {
	db    *gorm.DB
	genID *snowflake.Node
}

// Provide builds the gorm-backed entitlement store.
func Provide(conn *gorm.DB, genID *snowflake.Node) domain.Store {
	return &store{db: conn, genID: genID}
}

func (s *store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, customer_id, email, created_at FROM accounts WHERE id = ?`,
		accountID,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == "" {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (s *store) AttachCustomer(ctx context.Context, accountID, customerID string) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("id = ?", accountID).
		Update("customer_id", customerID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *store) GetActiveSubscription(ctx context.Context, customerID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.db.WithContext(ctx).Raw(
		`SELECT subscription_id, customer_id, usage_tokens, expires_at, cancel_at_period_end, created_at, updated_at
		 FROM subscriptions
		 WHERE customer_id = ? AND expires_at > ?
		 ORDER BY expires_at DESC
		 LIMIT 1`,
		customerID,
		time.Now().UTC(),
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionID == "" {
		return nil, domain.ErrNoActiveSubscription
	}
	return &sub, nil
}

func (s *store) IncrementUsage(ctx context.Context, subscriptionID string, delta int64) (int64, int64, error) {
	// MySQL has no UPDATE ... RETURNING; the transactional path holds the
	// row lock across the update and re-read instead.
	if s.db.Dialector.Name() == "mysql" {
		return s.incrementUsageTx(ctx, subscriptionID, delta)
	}

	var after int64
	res := s.db.WithContext(ctx).Raw(
		`UPDATE subscriptions
		 SET usage_tokens = usage_tokens + ?, updated_at = ?
		 WHERE subscription_id = ?
		 RETURNING usage_tokens`,
		delta,
		time.Now().UTC(),
		subscriptionID,
	).Scan(&after)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, 0, domain.ErrNoActiveSubscription
	}
	return after - delta, after, nil
}

func (s *store) incrementUsageTx(ctx context.Context, subscriptionID string, delta int64) (int64, int64, error) {
	var after int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE subscriptions
			 SET usage_tokens = usage_tokens + ?, updated_at = ?
			 WHERE subscription_id = ?`,
			delta,
			time.Now().UTC(),
			subscriptionID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNoActiveSubscription
		}
		return tx.Raw(
			`SELECT usage_tokens FROM subscriptions WHERE subscription_id = ?`,
			subscriptionID,
		).Scan(&after).Error
	})
	if err != nil {
		return 0, 0, err
	}
	return after - delta, after, nil
}

func (s *store) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	sub.UpdatedAt = now
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscription_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"customer_id":  sub.CustomerID,
			"usage_tokens": sub.UsageTokens,
			"expires_at":   sub.ExpiresAt,
			"updated_at":   now,
		}),
	}).Create(sub).Error
}

func (s *store) UpdateSubscriptionLifecycle(ctx context.Context, subscriptionID string, patch domain.LifecyclePatch) error {
	updates := map[string]interface{}{}
	if patch.ExpiresAt != nil {
		updates["expires_at"] = patch.ExpiresAt.UTC()
	}
	if patch.CancelAtPeriodEnd != nil {
		updates["cancel_at_period_end"] = *patch.CancelAtPeriodEnd
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Lifecycle events can land before the payment that creates the
		// row; acknowledge without effect.
		logger.FromContext(ctx).Info("lifecycle update for unknown subscription",
			zap.String("subscription_id", subscriptionID),
		)
	}
	return nil
}

func (s *store) AppendPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == 0 {
		payment.ID = s.genID.Generate().Int64()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "charge_id"}},
		DoNothing: true,
	}).Create(payment).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		logger.FromContext(ctx).Info("duplicate charge ignored",
			zap.String("charge_id", payment.ChargeID),
		)
		return nil
	}
	return err
}
