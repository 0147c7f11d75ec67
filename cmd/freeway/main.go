package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/freewayhq/freeway/internal/admission"
	"github.com/freewayhq/freeway/internal/clock"
	"github.com/freewayhq/freeway/internal/completion"
	"github.com/freewayhq/freeway/internal/config"
	"github.com/freewayhq/freeway/internal/ledger"
	"github.com/freewayhq/freeway/internal/migration"
	"github.com/freewayhq/freeway/internal/observability"
	"github.com/freewayhq/freeway/internal/principal"
	"github.com/freewayhq/freeway/internal/provider"
	"github.com/freewayhq/freeway/internal/ratelimit"
	"github.com/freewayhq/freeway/internal/registry"
	"github.com/freewayhq/freeway/internal/server"
	"github.com/freewayhq/freeway/internal/user"
	"github.com/freewayhq/freeway/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,

		// Domains
		principal.Module,
		user.Module,
		registry.Module,
		ledger.Module,
		admission.Module,
		provider.Module,
		completion.Module,
		ratelimit.Module,

		// HTTP surface
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
