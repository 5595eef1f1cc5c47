package entitlement

import (
	"github.com/ynterhq/gateway/internal/entitlement/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.store",
	fx.Provide(repository.Provide),
)
