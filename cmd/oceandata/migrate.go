package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/migration"
	"github.com/smallbiznis/oceandata/internal/observability"
	"github.com/smallbiznis/oceandata/pkg/db"
)

func newMigrateCommand(stdout, _ io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			app := fx.New(
				fx.NopLogger,
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.Populate(&cfg),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "schema up to date (%s)\n", cfg.DBType)
			return app.Stop(ctx)
		},
	}
}
