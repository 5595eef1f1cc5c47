package bankitem

import (
	"github.com/ynterhq/gateway/internal/bankitem/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("bankitem.store",
	fx.Provide(repository.Provide),
)
