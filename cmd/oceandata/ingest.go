package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/ingestion/pipeline"
)

type ingestOptions struct {
	Name        string
	Source      string
	Description string
	Timeout     time.Duration
}

func newIngestCommand(_ io.Reader, stdout, _ io.Writer) *cobra.Command {
	opts := ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a local CSV or JSON file synchronously.",
		Long: `Ingest copies the file into the dataset upload directory, registers the
dataset and runs the ingestion pipeline in the foreground. The resulting
status and record count are printed when it finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), stdout, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Name, "name", "", "dataset display name (defaults to the file name)")
	flags.StringVar(&opts.Source, "source", "Custom", "dataset source: NOAA, OBIS or Custom")
	flags.StringVar(&opts.Description, "description", "", "optional dataset description")
	flags.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "maximum time to spend on the file")
	return cmd
}

func runIngest(ctx context.Context, stdout io.Writer, path string, opts ingestOptions) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var svc datasetdomain.Service
	app := fx.New(
		fx.NopLogger,
		coreModules(),
		pipeline.InlineModule,
		fx.Populate(&svc),
	)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.WithoutCancel(ctx)) }()

	resp, err := svc.Upload(ctx, datasetdomain.UploadRequest{
		Name:             name,
		Source:           opts.Source,
		Description:      opts.Description,
		OriginalFilename: filepath.Base(path),
		Body:             file,
	})
	if err != nil {
		return err
	}

	detail, err := svc.Get(ctx, resp.DatasetID.String())
	if err != nil {
		return err
	}
	ds := detail.Dataset
	fmt.Fprintf(stdout, "dataset %s: %s, %d records\n", ds.ID, ds.ProcessingStatus, ds.RecordsCount)

	if ds.ProcessingStatus == datasetdomain.StatusFailed {
		return errors.New("ingestion failed; processing logs are available at /api/datasets/" + ds.ID.String() + "/logs")
	}
	return nil
}
