package billing

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ynterhq/gateway/internal/billing/domain"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/observability/logger"
	obsmetrics "github.com/ynterhq/gateway/internal/observability/metrics"
)

const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
	outcomeError   = "error"
)

// Reconciler folds provider billing events into the entitlement store.
// Events may arrive out of order and more than once; every handler is
// written to be safe under replay.
type Reconciler struct {
	store   entitlementdomain.Store
	metrics *obsmetrics.Metrics
}

func NewReconciler(store entitlementdomain.Store, metrics *obsmetrics.Metrics) *Reconciler {
	return &Reconciler{store: store, metrics: metrics}
}

// Apply parses the already-verified payload and performs the matching
// store operation. Unrecognized event types are acknowledged untouched so
// the provider does not retry them forever.
func (r *Reconciler) Apply(ctx context.Context, payload []byte) error {
	log := logger.FromContext(ctx)

	var event domain.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.ErrInvalidPayload
	}
	eventType := strings.TrimSpace(event.Type)
	if strings.TrimSpace(event.ID) == "" || eventType == "" {
		// Signed but incomplete envelope. A non-200 here would make the
		// provider redeliver forever.
		log.Warn("billing event without id or type ignored",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
		)
		r.metrics.RecordWebhookEvent("unknown", outcomeIgnored)
		return nil
	}

	var err error
	switch eventType {
	case domain.EventPaymentSucceeded:
		err = r.applyPaymentSucceeded(ctx, event)
	case domain.EventSubscriptionUpdated:
		err = r.applySubscriptionUpdated(ctx, event)
	case domain.EventSubscriptionDeleted:
		err = r.applySubscriptionDeleted(ctx, event)
	case domain.EventScheduleExpiring:
		log.Info("subscription schedule expiring",
			zap.String("event_id", event.ID),
		)
		r.metrics.RecordWebhookEvent(eventType, outcomeApplied)
		return nil
	default:
		log.Info("unhandled billing event",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
		)
		r.metrics.RecordWebhookEvent(eventType, outcomeIgnored)
		return nil
	}

	if err != nil {
		r.metrics.RecordWebhookEvent(eventType, outcomeError)
		return err
	}
	r.metrics.RecordWebhookEvent(eventType, outcomeApplied)
	return nil
}

// applyPaymentSucceeded starts a fresh billing period: the subscription
// row is upserted with its usage counter reset to zero and its expiry
// pushed to the paid period's end, and the charge is recorded in the
// payments ledger.
func (r *Reconciler) applyPaymentSucceeded(ctx context.Context, event domain.Event) error {
	log := logger.FromContext(ctx)

	var invoice domain.Invoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return domain.ErrInvalidPayload
	}
	if invoice.Subscription == "" {
		log.Info("invoice without subscription ignored",
			zap.String("event_id", event.ID),
			zap.String("invoice_id", invoice.ID),
		)
		return nil
	}
	expiresAt, ok := invoice.PeriodEnd()
	if !ok {
		log.Warn("invoice without line periods ignored",
			zap.String("event_id", event.ID),
			zap.String("invoice_id", invoice.ID),
		)
		return nil
	}

	if err := r.store.UpsertSubscription(ctx, &entitlementdomain.Subscription{
		SubscriptionID: invoice.Subscription,
		CustomerID:     invoice.Customer,
		UsageTokens:    0,
		ExpiresAt:      expiresAt,
	}); err != nil {
		return err
	}

	if invoice.Charge != "" {
		if err := r.store.AppendPayment(ctx, &entitlementdomain.Payment{
			ChargeID:       invoice.Charge,
			SubscriptionID: invoice.Subscription,
			CustomerID:     invoice.Customer,
			Amount:         invoice.Total,
			Currency:       invoice.Currency,
			Country:        invoice.AccountCountry,
			CustomerEmail:  invoice.CustomerEmail,
			CustomerName:   invoice.CustomerName,
		}); err != nil {
			return err
		}
	}

	log.Info("billing period renewed",
		zap.String("event_id", event.ID),
		zap.String("subscription_id", invoice.Subscription),
		zap.String("customer_id", invoice.Customer),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, event domain.Event) error {
	var update domain.SubscriptionUpdate
	if err := json.Unmarshal(event.Data.Object, &update); err != nil {
		return domain.ErrInvalidPayload
	}
	if update.ID == "" {
		logger.FromContext(ctx).Warn("subscription update without id ignored",
			zap.String("event_id", event.ID),
		)
		return nil
	}

	expiresAt := update.EffectiveEnd()
	cancel := update.CancelAtPeriodEnd
	return r.store.UpdateSubscriptionLifecycle(ctx, update.ID, entitlementdomain.LifecyclePatch{
		ExpiresAt:         &expiresAt,
		CancelAtPeriodEnd: &cancel,
	})
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, event domain.Event) error {
	var deletion domain.SubscriptionDeletion
	if err := json.Unmarshal(event.Data.Object, &deletion); err != nil {
		return domain.ErrInvalidPayload
	}
	if deletion.ID == "" {
		logger.FromContext(ctx).Warn("subscription deletion without id ignored",
			zap.String("event_id", event.ID),
		)
		return nil
	}

	expiresAt := time.Unix(deletion.CanceledAt, 0).UTC()
	return r.store.UpdateSubscriptionLifecycle(ctx, deletion.ID, entitlementdomain.LifecyclePatch{
		ExpiresAt: &expiresAt,
	})
}
