package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/smallbiznis/oceandata/internal/ingestion/pipeline"
	"github.com/smallbiznis/oceandata/internal/server"
)

func newServeCommand(_, _ io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background ingestion workers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				pipeline.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
