package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/oceandata/internal/cache"
	"github.com/smallbiznis/oceandata/internal/clock"
	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/dataset"
	"github.com/smallbiznis/oceandata/internal/filestore"
	"github.com/smallbiznis/oceandata/internal/migration"
	"github.com/smallbiznis/oceandata/internal/observability"
	"github.com/smallbiznis/oceandata/pkg/db"
)

// coreModules is the infrastructure every command needs: configuration,
// logging, ids, the database with its schema and the upload stores.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		filestore.Module,
		cache.Module,
		dataset.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
