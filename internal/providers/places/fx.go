package places

import (
	"go.uber.org/fx"

	"github.com/ynterhq/gateway/internal/config"
)

var Module = fx.Module("providers.places",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	return NewHTTP(Config{
		BaseURL: cfg.Places.BaseURL,
		APIKey:  cfg.Places.APIKey,
	})
}
