package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidSignature = errors.New("billing: invalid signature")
	ErrInvalidPayload   = errors.New("billing: invalid payload")
)

// Event types the reconciler acts on. Everything else is acknowledged
// without a state change.
const (
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventScheduleExpiring    = "subscription_schedule.expiring"
)

// Event is the provider webhook envelope. Data.Object stays raw until the
// event type is known.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type Invoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Charge       string `json:"charge"`
	Total        int64  `json:"total"`
	Currency     string `json:"currency"`

	AccountCountry string `json:"account_country"`
	CustomerEmail  string `json:"customer_email"`
	CustomerName   string `json:"customer_name"`

	Lines struct {
		Data []InvoiceLine `json:"data"`
	} `json:"lines"`
}

type InvoiceLine struct {
	Period struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"period"`
}

// PeriodEnd returns the latest line-item period end. Invoices with several
// lines (proration plus the new period) must settle on the furthest date.
func (i Invoice) PeriodEnd() (time.Time, bool) {
	var max int64
	for _, line := range i.Lines.Data {
		if line.Period.End > max {
			max = line.Period.End
		}
	}
	if max == 0 {
		return time.Time{}, false
	}
	return time.Unix(max, 0).UTC(), true
}

type SubscriptionUpdate struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	CancelAt          *int64 `json:"cancel_at"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// EffectiveEnd is the moment access should lapse: the scheduled cancel
// time when one is set, otherwise the end of the current period.
func (s SubscriptionUpdate) EffectiveEnd() time.Time {
	if s.CancelAt != nil {
		return time.Unix(*s.CancelAt, 0).UTC()
	}
	return time.Unix(s.CurrentPeriodEnd, 0).UTC()
}

type SubscriptionDeletion struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	CanceledAt int64  `json:"canceled_at"`
}
