package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/oceandata/internal/clock"
	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/filestore"
	"github.com/smallbiznis/oceandata/internal/ingestion/normalize"
	"github.com/smallbiznis/oceandata/internal/ingestion/parser"
	obscontext "github.com/smallbiznis/oceandata/internal/observability/context"
	"github.com/smallbiznis/oceandata/internal/observability/metrics"
	"github.com/smallbiznis/oceandata/internal/observability/tracing"
)

var tracer = otel.Tracer("oceandata/ingestion")

// Processor runs the pipeline for one job.
type Processor interface {
	Process(ctx context.Context, job domain.IngestionJob) Outcome
}

// Outcome summarises one Process call. Status is one of the
// metrics.IngestionStatus* values.
type Outcome struct {
	Status    string
	Records   int
	RowErrors int
	Err       error
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Files   *filestore.Store `name:"datasets"`
	Clock   clock.Clock
	Node    *snowflake.Node
	Config  *config.IngestionConfigHolder `optional:"true"`
	Metrics *metrics.IngestionMetrics     `optional:"true"`
	Stats   domain.StatisticsInvalidator  `optional:"true"`
}

// Orchestrator parses, normalizes and persists one dataset file and moves
// the dataset to a terminal status.
type Orchestrator struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	files   *filestore.Store
	clock   clock.Clock
	node    *snowflake.Node
	cfg     *config.IngestionConfigHolder
	metrics *metrics.IngestionMetrics
	stats   domain.StatisticsInvalidator
}

func NewOrchestrator(p Params) *Orchestrator {
	return &Orchestrator{
		db:      p.DB,
		log:     p.Log.Named("ingestion.orchestrator"),
		repo:    p.Repo,
		files:   p.Files,
		clock:   p.Clock,
		node:    p.Node,
		cfg:     p.Config,
		metrics: p.Metrics,
		stats:   p.Stats,
	}
}

// Process claims the dataset before doing any work, so a second call for
// the same dataset is skipped instead of appending duplicate records.
func (o *Orchestrator) Process(ctx context.Context, job domain.IngestionJob) Outcome {
	start := o.clock.Now()
	log := o.log.With(
		zap.String("dataset_id", job.DatasetID.String()),
		zap.String("format", string(job.Format)),
		zap.String("source", string(job.Source)),
	)

	ctx = obscontext.WithDatasetID(ctx, job.DatasetID.String())

	claimed, err := o.repo.ClaimDataset(ctx, o.db, job.DatasetID, start)
	if err != nil {
		log.Warn("claim dataset failed", zap.Error(err))
		o.metrics.RecordRun(string(job.Format), metrics.IngestionStatusSkipped, 0)
		return Outcome{Status: metrics.IngestionStatusSkipped, Err: err}
	}
	if !claimed {
		log.Info("dataset already claimed, skipping")
		o.metrics.RecordRun(string(job.Format), metrics.IngestionStatusSkipped, 0)
		return Outcome{Status: metrics.IngestionStatusSkipped}
	}

	ctx, span := tracer.Start(ctx, "ingestion.process", trace.WithAttributes(tracing.SafeAttributes(
		attribute.String("dataset.id", job.DatasetID.String()),
		attribute.String("dataset.format", string(job.Format)),
		attribute.String("dataset.source", string(job.Source)),
	)...))
	defer span.End()

	log.Info("ingestion started")

	outcome := o.run(ctx, log, job)
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("ingestion.status", outcome.Status),
		attribute.Int("ingestion.records", outcome.Records),
		attribute.Int("ingestion.row_errors", outcome.RowErrors),
	)...)
	if outcome.Err != nil {
		if safe := tracing.SafeError(outcome.Err); safe != nil {
			span.RecordError(safe)
			span.SetStatus(codes.Error, safe.Error())
		}
	}

	o.metrics.RecordRun(string(job.Format), outcome.Status, o.clock.Now().Sub(start))
	if o.stats != nil {
		o.stats.InvalidateStatistics()
	}

	log.Info("ingestion finished",
		zap.String("status", outcome.Status),
		zap.Int("records", outcome.Records),
		zap.Int("row_warnings", outcome.RowErrors),
		zap.Duration("elapsed", o.clock.Now().Sub(start)),
	)
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, job domain.IngestionJob) Outcome {
	cfg := o.cfg.Get()

	path, err := o.files.Path(job.Filename)
	if err != nil {
		return o.fail(ctx, log, job, 0, fmt.Errorf("%w: %v", parser.ErrIO, err))
	}

	result, err := parser.ParseFile(path, job.Format)
	if err != nil {
		return o.fail(ctx, log, job, 0, err)
	}

	for _, rowErr := range result.RowErrors {
		o.appendLog(ctx, log, job.DatasetID, domain.LogWarning, rowErr.String())
	}
	o.metrics.RecordRowWarnings(string(job.Format), len(result.RowErrors))

	normalizer := normalize.New(cfg.ExtraAliases)
	now := o.clock.Now()
	records := make([]domain.Record, 0, len(result.Records))
	for _, raw := range result.Records {
		record := normalizer.Normalize(raw)
		record.ID = o.node.Generate()
		record.DatasetID = job.DatasetID
		record.CreatedAt = now
		records = append(records, record)
	}

	// Records only become visible together with the processed status and its count.
	count := 0
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := o.repo.BulkInsertRecords(ctx, tx, job.DatasetID, records, cfg.InsertBatchSize)
		if err != nil {
			return fmt.Errorf("store records: %w", err)
		}
		count = int(inserted)
		if err := o.repo.UpdateDatasetStatus(ctx, tx, job.DatasetID, domain.StatusProcessed, count, o.clock.Now()); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("dataset deleted during ingestion", zap.Error(err))
		return Outcome{Status: metrics.IngestionStatusSkipped, RowErrors: len(result.RowErrors), Err: err}
	case err != nil:
		return o.fail(ctx, log, job, len(result.RowErrors), err)
	}

	o.appendLog(ctx, log, job.DatasetID, domain.LogInfo, fmt.Sprintf("Successfully processed %d records", count))
	o.metrics.RecordRecords(string(job.Source), count)

	return Outcome{Status: metrics.IngestionStatusProcessed, Records: count, RowErrors: len(result.RowErrors)}
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, job domain.IngestionJob, rowErrors int, cause error) Outcome {
	log.Error("ingestion failed", zap.Error(cause))
	o.appendLog(ctx, log, job.DatasetID, domain.LogError, cause.Error())

	err := o.repo.UpdateDatasetStatus(ctx, o.db, job.DatasetID, domain.StatusFailed, 0, o.clock.Now())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("dataset deleted during ingestion", zap.Error(err))
	case err != nil:
		log.Error("mark dataset failed", zap.Error(err))
	}

	return Outcome{Status: metrics.IngestionStatusFailed, RowErrors: rowErrors, Err: cause}
}

// appendLog never interrupts the pipeline.
func (o *Orchestrator) appendLog(ctx context.Context, log *zap.Logger, datasetID snowflake.ID, level domain.LogLevel, message string) {
	entry := &domain.ProcessingLog{
		ID:        o.node.Generate(),
		DatasetID: datasetID,
		LogLevel:  level,
		Message:   message,
		CreatedAt: o.clock.Now(),
	}
	if err := o.repo.AppendLog(ctx, o.db, entry); err != nil {
		log.Warn("append processing log failed",
			zap.String("level", string(level)),
			zap.Error(err),
		)
	}
}

var _ Processor = (*Orchestrator)(nil)
