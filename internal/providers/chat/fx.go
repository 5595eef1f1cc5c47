package chat

import (
	"go.uber.org/fx"

	"github.com/ynterhq/gateway/internal/config"
)

var Module = fx.Module("providers.chat",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	return NewHTTP(Config{
		BaseURL:   cfg.Chat.BaseURL,
		APIKey:    cfg.Chat.APIKey,
		Model:     cfg.Chat.Model,
		MaxTokens: cfg.Chat.MaxTokens,
	})
}
