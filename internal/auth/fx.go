package auth

import (
	"github.com/ynterhq/gateway/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Verifier {
	return NewHTTPVerifier(cfg.AuthBaseURL, cfg.AuthAPIKey)
}
