package main

import (
	"io"

	"github.com/spf13/cobra"
)

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "oceandata",
		Short: "Ocean species dataset ingestion and query service.",
		Long: `oceandata ingests marine species datasets (CSV or JSON exported from
NOAA, OBIS or custom sources), normalizes them into one canonical record
shape and serves them over an HTTP API together with a marine biology
assistant.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	rc.AddCommand(newServeCommand(stdout, stderr))
	rc.AddCommand(newMigrateCommand(stdout, stderr))
	rc.AddCommand(newIngestCommand(stdin, stdout, stderr))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
