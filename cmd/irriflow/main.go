package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/irriflow/internal/clock"
	"github.com/smallbiznis/irriflow/internal/config"
	"github.com/smallbiznis/irriflow/internal/migration"
	"github.com/smallbiznis/irriflow/internal/observability"
	"github.com/smallbiznis/irriflow/internal/server"
	"github.com/smallbiznis/irriflow/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
