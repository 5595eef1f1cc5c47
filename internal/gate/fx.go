package gate

import (
	"github.com/ynterhq/gateway/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.gate",
	fx.Provide(
		func(l *ratelimit.Limiter) RateLimiter { return l },
		New,
	),
)
