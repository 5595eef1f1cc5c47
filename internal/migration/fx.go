package migration

import (
	bankitemdomain "github.com/ynterhq/gateway/internal/bankitem/domain"
	"github.com/ynterhq/gateway/internal/config"
	entitlementdomain "github.com/ynterhq/gateway/internal/entitlement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres deployments (local sqlite, mysql) fall back to the
		// model-driven schema.
		return conn.AutoMigrate(
			&entitlementdomain.Account{},
			&entitlementdomain.Subscription{},
			&entitlementdomain.Payment{},
			&bankitemdomain.BankItem{},
		)
	}),
)
