package bankdata

import (
	"go.uber.org/fx"

	"github.com/ynterhq/gateway/internal/config"
)

var Module = fx.Module("providers.bankdata",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	return NewHTTP(Config{
		BaseURL:    cfg.Bank.BaseURL,
		ClientID:   cfg.Bank.ClientID,
		Secret:     cfg.Bank.Secret,
		ClientName: cfg.Bank.ClientName,
	})
}
