// Package domain contains persistence models for linked bank institutions.
package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("bank_item_not_found")

// BankItem stores the aggregation-provider access token for one linked
// institution. A customer holds at most one item per institution.
type BankItem struct {
	ItemID        string    `gorm:"not null" json:"item_id"`
	CustomerID    string    `gorm:"primaryKey" json:"customer_id"`
	InstitutionID string    `gorm:"primaryKey" json:"institution_id"`
	AccessToken   string    `gorm:"not null" json:"-"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BankItem) TableName() string { return "bank_items" }

// Repository owns bank_items persistence.
type Repository interface {
	// Upsert inserts or replaces the row keyed by (customer_id,
	// institution_id); re-linking an institution rotates its token.
	Upsert(ctx context.Context, item *BankItem) error
	Get(ctx context.Context, customerID, institutionID string) (*BankItem, error)
	CountByCustomer(ctx context.Context, customerID string) (int64, error)
	Delete(ctx context.Context, customerID, institutionID string) error
}
