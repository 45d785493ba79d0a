package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/studyloop/polarsync/internal/authdir"
	"github.com/studyloop/polarsync/internal/catalog"
	"github.com/studyloop/polarsync/internal/clock"
	"github.com/studyloop/polarsync/internal/config"
	"github.com/studyloop/polarsync/internal/events"
	"github.com/studyloop/polarsync/internal/identity"
	"github.com/studyloop/polarsync/internal/ingest"
	"github.com/studyloop/polarsync/internal/migration"
	"github.com/studyloop/polarsync/internal/observability/logger"
	"github.com/studyloop/polarsync/internal/observability/tracing"
	"github.com/studyloop/polarsync/internal/polar"
	"github.com/studyloop/polarsync/internal/server"
	"github.com/studyloop/polarsync/internal/subscription"
	"github.com/studyloop/polarsync/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		polar.Module,
		authdir.Module,
		catalog.Module,
		identity.Module,
		subscription.Module,
		fx.Provide(events.NewOutbox),
		ingest.Module,
		server.Module,
	)
	app.Run()
}
