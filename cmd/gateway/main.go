package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/ynterhq/gateway/internal/auth"
	"github.com/ynterhq/gateway/internal/bankitem"
	"github.com/ynterhq/gateway/internal/billing"
	"github.com/ynterhq/gateway/internal/config"
	"github.com/ynterhq/gateway/internal/entitlement"
	"github.com/ynterhq/gateway/internal/gate"
	"github.com/ynterhq/gateway/internal/migration"
	"github.com/ynterhq/gateway/internal/observability"
	"github.com/ynterhq/gateway/internal/providers/bankdata"
	"github.com/ynterhq/gateway/internal/providers/chat"
	"github.com/ynterhq/gateway/internal/providers/places"
	"github.com/ynterhq/gateway/internal/ratelimit"
	"github.com/ynterhq/gateway/internal/server"
	"github.com/ynterhq/gateway/internal/tokencount"
	"github.com/ynterhq/gateway/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Domain
		entitlement.Module,
		bankitem.Module,
		ratelimit.Module,
		auth.Module,
		fx.Provide(func() tokencount.Counter { return tokencount.NewHeuristic() }),
		gate.Module,
		billing.Module,

		// External providers
		chat.Module,
		bankdata.Module,
		places.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
