// Package domain contains persistence models for accounts, subscriptions,
// and the payment ledger.
package domain

import (
	"time"
)

// Account links an authenticated user to a billing-provider customer.
// customer_id stays empty until the first payment flow attaches it.
type Account struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	CustomerID string    `gorm:"index" json:"customer_id"`
	Email      string    `gorm:"not null;default:''" json:"email"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Subscription captures a customer's entitlement period and accumulated
// usage. A subscription is active while ExpiresAt is in the future.
type Subscription struct {
	SubscriptionID    string    `gorm:"primaryKey" json:"subscription_id"`
	CustomerID        string    `gorm:"not null;index" json:"customer_id"`
	UsageTokens       int64     `gorm:"not null;default:0" json:"usage_tokens"`
	ExpiresAt         time.Time `gorm:"not null" json:"expires_at"`
	CancelAtPeriodEnd bool      `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Active reports whether the subscription entitles usage at the given time.
func (s Subscription) Active(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// Payment is an append-only ledger row recorded per successful charge.
// Rows are never updated or deleted; they exist for audit, not for
// entitlement decisions.
type Payment struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	ChargeID       string    `gorm:"uniqueIndex;not null" json:"charge_id"`
	SubscriptionID string    `gorm:"not null" json:"subscription_id"`
	CustomerID     string    `gorm:"not null" json:"customer_id"`
	Amount         int64     `gorm:"not null" json:"amount"`
	Currency       string    `gorm:"not null;default:''" json:"currency"`
	Country        string    `gorm:"not null;default:''" json:"country"`
	CustomerEmail  string    `gorm:"not null;default:''" json:"customer_email"`
	CustomerName   string    `gorm:"not null;default:''" json:"customer_name"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// LifecyclePatch is a partial update of a subscription's lifecycle fields.
// Nil fields are left untouched.
type LifecyclePatch struct {
	ExpiresAt         *time.Time
	CancelAtPeriodEnd *bool
}
