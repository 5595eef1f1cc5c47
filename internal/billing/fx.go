package billing

import (
	"go.uber.org/fx"

	"github.com/ynterhq/gateway/internal/config"
)

var Module = fx.Module("billing",
	fx.Provide(
		func(cfg config.Config) *SignatureVerifier {
			return NewSignatureVerifier(cfg.Billing.WebhookSecret)
		},
		func(cfg config.Config) *CustomerClient {
			return NewCustomerClient(cfg.Billing.BaseURL, cfg.Billing.APIKey)
		},
		NewReconciler,
		NewRegistrar,
	),
)
