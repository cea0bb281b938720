package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/oceandata/internal/clock"
	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/observability/metrics"
)

type QueueParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Processor Processor
	Clock     clock.Clock
	Node      *snowflake.Node
	Config    *config.IngestionConfigHolder `optional:"true"`
	Metrics   *metrics.IngestionMetrics     `optional:"true"`
}

// Queue hands jobs to a fixed pool of workers through a bounded channel.
// A recovery loop re-enqueues datasets still waiting in the uploaded state.
type Queue struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	processor Processor
	clock     clock.Clock
	node      *snowflake.Node
	cfg       *config.IngestionConfigHolder
	metrics   *metrics.IngestionMetrics

	jobs chan domain.IngestionJob

	mu      sync.Mutex
	queued  map[snowflake.ID]struct{}
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewQueue(p QueueParams) *Queue {
	cfg := p.Config.Get()
	return &Queue{
		db:        p.DB,
		log:       p.Log.Named("ingestion.queue"),
		repo:      p.Repo,
		processor: p.Processor,
		clock:     p.Clock,
		node:      p.Node,
		cfg:       p.Config,
		metrics:   p.Metrics,
		jobs:      make(chan domain.IngestionJob, cfg.QueueSize),
		queued:    make(map[snowflake.ID]struct{}),
	}
}

// Enqueue never blocks. A job for a dataset that is already queued is
// accepted without being queued twice.
func (q *Queue) Enqueue(_ context.Context, job domain.IngestionJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[job.DatasetID]; ok {
		return true
	}

	select {
	case q.jobs <- job:
		q.queued[job.DatasetID] = struct{}{}
		q.metrics.SetQueueDepth(len(q.jobs))
		return true
	default:
		q.metrics.RecordDropped()
		q.log.Warn("ingestion queue full, dataset left for recovery",
			zap.String("dataset_id", job.DatasetID.String()),
		)
		return false
	}
}

// Start launches the workers and the recovery loop. It returns immediately.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true

	workers := q.cfg.Get().Workers
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.RunForever(ctx)
	}()

	q.log.Info("ingestion queue started", zap.Int("workers", workers), zap.Int("capacity", cap(q.jobs)))
}

// Stop waits for running jobs to finish. Jobs still buffered stay in the
// uploaded state and are recovered on the next start.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.mu.Lock()
			delete(q.queued, job.DatasetID)
			q.metrics.SetQueueDepth(len(q.jobs))
			q.mu.Unlock()

			// In-flight runs are not tied to shutdown.
			q.processor.Process(context.WithoutCancel(ctx), job)
		}
	}
}

func (q *Queue) RunForever(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.Get().RecoveryEvery)
	defer ticker.Stop()

	for {
		if _, err := q.RecoverOnce(ctx); err != nil && ctx.Err() == nil {
			q.log.Warn("ingestion recovery failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RecoverOnce resets runs interrupted in the processing state, then enqueues
// datasets uploaded before the grace window that were never picked up. It
// returns the number of jobs accepted.
func (q *Queue) RecoverOnce(ctx context.Context) (int, error) {
	cfg := q.cfg.Get()
	if err := q.resetStale(ctx, cfg.StaleAfter, cfg.QueueSize); err != nil {
		return 0, err
	}
	before := q.clock.Now().Add(-cfg.RecoveryGrace)

	pending, err := q.repo.ListPendingDatasets(ctx, q.db, before, cfg.QueueSize)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, ds := range pending {
		if !q.Enqueue(ctx, JobFor(ds)) {
			break
		}
		accepted++
	}
	if accepted > 0 {
		q.log.Info("recovered pending datasets", zap.Int("count", accepted))
	}
	return accepted, nil
}

// JobFor builds the ingestion job for a stored dataset.
func (q *Queue) resetStale(ctx context.Context, staleAfter time.Duration, limit int) error {
	claimedBefore := q.clock.Now().Add(-staleAfter)
	stale, err := q.repo.ListStaleDatasets(ctx, q.db, claimedBefore, limit)
	if err != nil {
		return err
	}
	for _, ds := range stale {
		entry := &domain.ProcessingLog{
			ID:        q.node.Generate(),
			LogLevel:  domain.LogWarning,
			Message:   "Processing was interrupted, partial records were discarded and the dataset was requeued",
			CreatedAt: q.clock.Now(),
		}
		reset, err := q.repo.ResetStaleDataset(ctx, q.db, ds.ID, claimedBefore, entry)
		if err != nil {
			return err
		}
		if reset {
			q.log.Warn("requeued interrupted dataset", zap.String("dataset_id", ds.ID.String()))
		}
	}
	return nil
}

func JobFor(ds domain.Dataset) domain.IngestionJob {
	return domain.IngestionJob{
		DatasetID: ds.ID,
		Filename:  ds.Filename,
		Source:    ds.Source,
		Format:    ds.Format,
	}
}

// InlineQueue runs every job synchronously in the caller's goroutine.
type InlineQueue struct {
	Processor Processor
}

func (q InlineQueue) Enqueue(ctx context.Context, job domain.IngestionJob) bool {
	q.Processor.Process(context.WithoutCancel(ctx), job)
	return true
}

var (
	_ domain.IngestionQueue = (*Queue)(nil)
	_ domain.IngestionQueue = InlineQueue{}
)
