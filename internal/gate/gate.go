// Package gate is the single admission path in front of every metered
// operation. Checks run in a fixed order and no partial charge survives
// a denial.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ynterhq/gateway/internal/auth"
	"github.com/ynterhq/gateway/internal/config"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"github.com/ynterhq/gateway/internal/observability/logger"
	obsmetrics "github.com/ynterhq/gateway/internal/observability/metrics"
	"github.com/ynterhq/gateway/internal/ratelimit"
	"github.com/ynterhq/gateway/internal/tokencount"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	denialReasonAuth        = "auth"
	denialReasonRate        = "rate"
	denialReasonEntitlement = "entitlement"
	denialReasonQuota       = "quota"
)

// RateLimiter is the throttle consulted per admission.
type RateLimiter interface {
	Allow(ctx context.Context, operation, identity string, policy ratelimit.Policy) (bool, error)
}

// Request is one admission attempt.
type Request struct {
	Credential string
	Operation  string
	// Cost is the precomputed request cost. The same value is checked
	// against the cap and charged on admission.
	Cost tokencount.Cost
}

// Admission is the terminal success state. Subscription is nil for
// operations whose policy does not require one.
type Admission struct {
	Identity     auth.Identity
	Account      entitlementdomain.Account
	Subscription *entitlementdomain.Subscription
	UsageBefore  int64
	UsageAfter   int64
	Cap          int64
}

// Params collects the gate's injected collaborators.
type Params struct {
	fx.In

	Verifier auth.Verifier
	Store    entitlementdomain.Store
	Limiter  RateLimiter
	Plans    *config.PlanConfigHolder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Gate runs the admission state machine.
type Gate struct {
	verifier auth.Verifier
	store    entitlementdomain.Store
	limiter  RateLimiter
	plans    *config.PlanConfigHolder
	metrics  *obsmetrics.Metrics
}

// New builds a Gate from its collaborators.
func New(p Params) *Gate {
	return &Gate{
		verifier: p.Verifier,
		store:    p.Store,
		limiter:  p.Limiter,
		plans:    p.Plans,
		metrics:  p.Metrics,
	}
}

// Admit runs every check for the operation and, on success, charges the
// precomputed cost against the subscription before the downstream call is
// made. Charging up front bounds exposure when downstream responses stream
// with unknown true cost; an aborted downstream call is not refunded.
func (g *Gate) Admit(ctx context.Context, req Request) (*Admission, error) {
	log := logger.FromContext(ctx).With(zap.String("operation", req.Operation))

	policy, ok := g.plans.Operation(req.Operation)
	if !ok {
		return nil, fmt.Errorf("no gate policy for operation %q", req.Operation)
	}

	identity, err := g.verifier.Verify(ctx, req.Credential)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredential) {
			g.deny(req.Operation, denialReasonAuth)
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	allowed, err := g.limiter.Allow(ctx, req.Operation, identity.UserID, ratelimit.Policy{
		Limit:  policy.Limit,
		Window: policy.Window,
	})
	if err != nil {
		// Backend outage: the policy owns the fail-open decision.
		if !policy.FailOpen {
			log.Warn("rate limit backend unreachable, failing closed", zap.Error(err))
			g.deny(req.Operation, denialReasonRate)
			return nil, ErrRateLimited
		}
		log.Warn("rate limit backend unreachable, failing open", zap.Error(err))
		allowed = true
	}
	if !allowed {
		g.deny(req.Operation, denialReasonRate)
		return nil, ErrRateLimited
	}

	account, err := g.store.GetAccount(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, entitlementdomain.ErrAccountNotFound) {
			g.deny(req.Operation, denialReasonEntitlement)
			return nil, ErrNoEntitlement
		}
		return nil, err
	}
	if account.CustomerID == "" {
		g.deny(req.Operation, denialReasonEntitlement)
		return nil, ErrNoEntitlement
	}

	admission := &Admission{
		Identity: *identity,
		Account:  *account,
	}
	if !policy.RequireSubscription {
		g.admitMetric(req.Operation)
		return admission, nil
	}

	sub, err := g.store.GetActiveSubscription(ctx, account.CustomerID)
	if err != nil {
		if errors.Is(err, entitlementdomain.ErrNoActiveSubscription) {
			g.deny(req.Operation, denialReasonEntitlement)
			return nil, ErrNoEntitlement
		}
		return nil, err
	}

	cap := g.plans.Get().MonthlyTokenCap
	total := req.Cost.Total()
	if sub.UsageTokens+total > cap {
		g.deny(req.Operation, denialReasonQuota)
		return nil, &QuotaExceededError{Used: sub.UsageTokens, Cost: total, Cap: cap}
	}

	admission.Subscription = sub
	admission.Cap = cap
	admission.UsageBefore = sub.UsageTokens
	admission.UsageAfter = sub.UsageTokens

	if total > 0 {
		before, after, err := g.store.IncrementUsage(ctx, sub.SubscriptionID, total)
		if err != nil {
			return nil, err
		}
		admission.UsageBefore = before
		admission.UsageAfter = after
		g.metrics.RecordTokensCharged(total)

		log.Info("usage charged",
			zap.String("account_id", account.ID),
			zap.String("subscription_id", sub.SubscriptionID),
			zap.Int64("tokens_used", total),
			zap.Int64("tokens_before", before),
			zap.Int64("tokens_after", after),
		)
	}

	g.admitMetric(req.Operation)
	return admission, nil
}

func (g *Gate) admitMetric(operation string) {
	g.metrics.RecordAdmission(operation)
}

func (g *Gate) deny(operation, reason string) {
	g.metrics.RecordDenial(operation, reason)
}
