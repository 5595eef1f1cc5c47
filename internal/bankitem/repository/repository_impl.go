package repository

import (
	"context"
	"time"

	"github.com/ynterhq/gateway/internal/bankitem/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

// Provide builds the gorm-backed bank item repository.
func Provide(conn *gorm.DB) domain.Repository {
	return &repo{db: conn}
}

func (r *repo) Upsert(ctx context.Context, item *domain.BankItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}, {Name: "institution_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"item_id":      item.ItemID,
			"access_token": item.AccessToken,
		}),
	}).Create(item).Error
}

func (r *repo) Get(ctx context.Context, customerID, institutionID string) (*domain.BankItem, error) {
	var item domain.BankItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT item_id, customer_id, institution_id, access_token, created_at
		 FROM bank_items WHERE customer_id = ? AND institution_id = ?`,
		customerID,
		institutionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ItemID == "" {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (r *repo) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.BankItem{}).
		Where("customer_id = ?", customerID).
		Count(&count).Error
	return count, err
}

func (r *repo) Delete(ctx context.Context, customerID, institutionID string) error {
	return r.db.WithContext(ctx).
		Where("customer_id = ? AND institution_id = ?", customerID, institutionID).
		Delete(&domain.BankItem{}).Error
}
