package domain

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrNoActiveSubscription = errors.New("no_active_subscription")
)

// Store owns all reads and writes of accounts, subscriptions, and the
// payment ledger. Mutations are atomic at the row level: both the usage
// gate and the webhook reconciler call into the same rows concurrently.
type Store interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	AttachCustomer(ctx context.Context, accountID, customerID string) error

	// GetActiveSubscription returns the subscription for the customer whose
	// expiry is strictly after now; when several rows qualify the one with
	// the latest expiry wins.
	GetActiveSubscription(ctx context.Context, customerID string) (*Subscription, error)

	// IncrementUsage atomically adds delta to the subscription's usage
	// counter and returns the counter value before and after.
	IncrementUsage(ctx context.Context, subscriptionID string, delta int64) (before, after int64, err error)

	// UpsertSubscription inserts or replaces the row keyed by
	// subscription_id. It is the period-reset write: usage_tokens is set to
	// the value carried by sub (zero on a new billing period).
	UpsertSubscription(ctx context.Context, sub *Subscription) error

	// UpdateSubscriptionLifecycle partially updates lifecycle fields,
	// leaving usage untouched. An unknown subscription_id is a logged no-op,
	// not an error: billing events may arrive out of order.
	UpdateSubscriptionLifecycle(ctx context.Context, subscriptionID string, patch LifecyclePatch) error

	// AppendPayment inserts a ledger row; a redelivered charge_id is
	// ignored idempotently.
	AppendPayment(ctx context.Context, payment *Payment) error
}
