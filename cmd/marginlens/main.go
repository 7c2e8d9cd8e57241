package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/marginlens/marginlens/internal/clock"
	"github.com/marginlens/marginlens/internal/config"
	"github.com/marginlens/marginlens/internal/migration"
	"github.com/marginlens/marginlens/internal/observability"
	"github.com/marginlens/marginlens/internal/scheduler"
	"github.com/marginlens/marginlens/internal/server"
	"github.com/marginlens/marginlens/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		server.Module,
		scheduler.Module,
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
