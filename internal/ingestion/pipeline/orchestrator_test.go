package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/oceandata/internal/clock"
	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/dataset/domain"
	datasetrepo "github.com/smallbiznis/oceandata/internal/dataset/repository"
	"github.com/smallbiznis/oceandata/internal/filestore"
	"github.com/smallbiznis/oceandata/internal/observability/metrics"
)

type fixture struct {
	db    *gorm.DB
	repo  domain.Repository
	files *filestore.Store
	clock *clock.FakeClock
	node  *snowflake.Node
	stats *countingInvalidator
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateStatistics() { c.calls++ }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(&domain.Dataset{}, &domain.Record{}, &domain.ProcessingLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	files, err := filestore.New(t.TempDir())
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &fixture{
		db:    conn,
		repo:  datasetrepo.Provide(),
		files: files,
		clock: clock.NewFakeClock(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)),
		node:  node,
		stats: &countingInvalidator{},
	}
}

func (f *fixture) orchestrator(repo domain.Repository) *Orchestrator {
	if repo == nil {
		repo = f.repo
	}
	return NewOrchestrator(Params{
		DB:      f.db,
		Log:     zap.NewNop(),
		Repo:    repo,
		Files:   f.files,
		Clock:   f.clock,
		Node:    f.node,
		Config:  config.NewStaticIngestionConfigHolder(config.IngestionConfig{InsertBatchSize: 3}),
		Metrics: metrics.NewIngestionMetricsWithRegisterer(prometheus.NewRegistry(), metrics.Config{}),
		Stats:   f.stats,
	})
}

func (f *fixture) upload(t *testing.T, name string, format domain.Format, body string) domain.IngestionJob {
	t.Helper()
	stored, size, err := f.files.Save(context.Background(), name, strings.NewReader(body), 0)
	require.NoError(t, err)

	ds := &domain.Dataset{
		ID:               f.node.Generate(),
		Name:             name,
		Filename:         stored,
		OriginalFilename: name,
		Source:           domain.SourceNOAA,
		Format:           format,
		FileSize:         size,
		ProcessingStatus: domain.StatusUploaded,
		UploadDate:       f.clock.Now(),
	}
	require.NoError(t, f.repo.CreateDataset(context.Background(), f.db, ds))
	return JobFor(*ds)
}

func (f *fixture) logsByLevel(t *testing.T, id snowflake.ID) map[domain.LogLevel][]string {
	t.Helper()
	logs, err := f.repo.ListLogs(context.Background(), f.db, id)
	require.NoError(t, err)
	out := map[domain.LogLevel][]string{}
	for _, l := range logs {
		out[l.LogLevel] = append(out[l.LogLevel], l.Message)
	}
	return out
}

func (f *fixture) dataset(t *testing.T, id snowflake.ID) *domain.Dataset {
	t.Helper()
	ds, err := f.repo.FindDatasetByID(context.Background(), f.db, id)
	require.NoError(t, err)
	return ds
}

func TestProcessCSVWithMalformedRows(t *testing.T) {
	f := newFixture(t)

	var b strings.Builder
	b.WriteString("species_name,scientific_name,lat\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "Fish %d,Genus species%d,%d\n", i, i, i)
		if i == 2 {
			b.WriteString("broken row\n")
		}
		if i == 5 {
			b.WriteString("a,b,c,d\n")
		}
	}
	job := f.upload(t, "survey.csv", domain.FormatCSV, b.String())

	outcome := f.orchestrator(nil).Process(context.Background(), job)
	require.NoError(t, outcome.Err)
	assert.Equal(t, metrics.IngestionStatusProcessed, outcome.Status)
	assert.Equal(t, 8, outcome.Records)
	assert.Equal(t, 2, outcome.RowErrors)

	ds := f.dataset(t, job.DatasetID)
	require.NotNil(t, ds)
	assert.Equal(t, domain.StatusProcessed, ds.ProcessingStatus)
	assert.Equal(t, 8, ds.RecordsCount)
	require.NotNil(t, ds.ProcessedDate)

	records, err := f.repo.ListAllRecords(context.Background(), f.db, job.DatasetID)
	require.NoError(t, err)
	assert.Len(t, records, 8)
	for _, rec := range records {
		assert.NotEmpty(t, rec.RawData)
		assert.Equal(t, job.DatasetID, rec.DatasetID)
	}

	logs := f.logsByLevel(t, job.DatasetID)
	assert.Len(t, logs[domain.LogWarning], 2)
	assert.Equal(t, []string{"Successfully processed 8 records"}, logs[domain.LogInfo])
	assert.Empty(t, logs[domain.LogError])
	assert.Equal(t, 1, f.stats.calls)
}

func TestProcessInvalidJSONFails(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "broken.json", domain.FormatJSON, `{"records": [ {"name": "cod"`)

	outcome := f.orchestrator(nil).Process(context.Background(), job)
	assert.Equal(t, metrics.IngestionStatusFailed, outcome.Status)
	assert.Error(t, outcome.Err)

	ds := f.dataset(t, job.DatasetID)
	require.NotNil(t, ds)
	assert.Equal(t, domain.StatusFailed, ds.ProcessingStatus)
	assert.Zero(t, ds.RecordsCount)

	logs := f.logsByLevel(t, job.DatasetID)
	assert.NotEmpty(t, logs[domain.LogError])
	assert.Empty(t, logs[domain.LogInfo])
}

func TestProcessMissingFileFails(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "gone.json", domain.FormatJSON, `[]`)
	require.NoError(t, f.files.Remove(job.Filename))

	outcome := f.orchestrator(nil).Process(context.Background(), job)
	assert.Equal(t, metrics.IngestionStatusFailed, outcome.Status)
	assert.Equal(t, domain.StatusFailed, f.dataset(t, job.DatasetID).ProcessingStatus)
}

func TestProcessTwiceIsSkipped(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "list.json", domain.FormatJSON, `[{"name":"a"},{"name":"b"}]`)
	o := f.orchestrator(nil)

	first := o.Process(context.Background(), job)
	require.Equal(t, metrics.IngestionStatusProcessed, first.Status)

	second := o.Process(context.Background(), job)
	assert.Equal(t, metrics.IngestionStatusSkipped, second.Status)
	assert.NoError(t, second.Err)

	records, err := f.repo.ListAllRecords(context.Background(), f.db, job.DatasetID)
	require.NoError(t, err)
	assert.Len(t, records, 2, "second run must not append duplicates")
}

// deletingRepo removes the dataset right after the run claimed it.
type deletingRepo struct {
	domain.Repository
}

func (r deletingRepo) ClaimDataset(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	claimed, err := r.Repository.ClaimDataset(ctx, db, id, at)
	if err != nil || !claimed {
		return claimed, err
	}
	return true, r.Repository.DeleteDataset(ctx, db, id)
}

func TestProcessConcurrentDeleteIsTolerated(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "race.json", domain.FormatJSON, `[{"name":"a"}]`)

	outcome := f.orchestrator(deletingRepo{Repository: f.repo}).Process(context.Background(), job)
	assert.Equal(t, metrics.IngestionStatusSkipped, outcome.Status)
	assert.ErrorIs(t, outcome.Err, domain.ErrNotFound)
	assert.Nil(t, f.dataset(t, job.DatasetID))
}

// failingLogRepo rejects every processing log write.
type failingLogRepo struct {
	domain.Repository
}

func (failingLogRepo) AppendLog(context.Context, *gorm.DB, *domain.ProcessingLog) error {
	return errors.New("disk full")
}

func TestProcessToleratesLogFailures(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "logs.csv", domain.FormatCSV, "name\ncod\n\"bad\",extra\n")

	outcome := f.orchestrator(failingLogRepo{Repository: f.repo}).Process(context.Background(), job)
	require.NoError(t, outcome.Err)
	assert.Equal(t, metrics.IngestionStatusProcessed, outcome.Status)
	assert.Equal(t, 1, outcome.Records)
	assert.Equal(t, 1, outcome.RowErrors)
	assert.Equal(t, domain.StatusProcessed, f.dataset(t, job.DatasetID).ProcessingStatus)
}

// failingInsertRepo fails the bulk insert.
type failingInsertRepo struct {
	domain.Repository
}

func (failingInsertRepo) BulkInsertRecords(context.Context, *gorm.DB, snowflake.ID, []domain.Record, int) (int64, error) {
	return 0, errors.New("constraint violated")
}

func TestProcessInsertFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "insert.json", domain.FormatJSON, `[{"name":"a"}]`)

	outcome := f.orchestrator(failingInsertRepo{Repository: f.repo}).Process(context.Background(), job)
	assert.Equal(t, metrics.IngestionStatusFailed, outcome.Status)

	ds := f.dataset(t, job.DatasetID)
	assert.Equal(t, domain.StatusFailed, ds.ProcessingStatus)
	assert.Zero(t, ds.RecordsCount)

	records, err := f.repo.ListAllRecords(context.Background(), f.db, job.DatasetID)
	require.NoError(t, err)
	assert.Empty(t, records)

	logs := f.logsByLevel(t, job.DatasetID)
	require.Len(t, logs[domain.LogError], 1)
	assert.Contains(t, logs[domain.LogError][0], "constraint violated")
}

func TestProcessAppliesExtraAliases(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "obis.json", domain.FormatJSON, `[{"vernacularName":"Sea otter"}]`)

	o := f.orchestrator(nil)
	o.cfg = config.NewStaticIngestionConfigHolder(config.IngestionConfig{
		ExtraAliases: map[string][]string{"species_name": {"vernacularName"}},
	})
	outcome := o.Process(context.Background(), job)
	require.Equal(t, metrics.IngestionStatusProcessed, outcome.Status)

	records, err := f.repo.ListAllRecords(context.Background(), f.db, job.DatasetID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].SpeciesName)
	assert.Equal(t, "Sea otter", *records[0].SpeciesName)
}

// failingFinishRepo rejects the move to processed.
type failingFinishRepo struct {
	domain.Repository
}

func (r failingFinishRepo) UpdateDatasetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, count int, at time.Time) error {
	if status == domain.StatusProcessed {
		return errors.New("connection reset")
	}
	return r.Repository.UpdateDatasetStatus(ctx, db, id, status, count, at)
}

func TestProcessStatusFailureRollsBackRecords(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "finish.json", domain.FormatJSON, `[{"name":"a"},{"name":"b"}]`)

	outcome := f.orchestrator(failingFinishRepo{Repository: f.repo}).Process(context.Background(), job)
	assert.Equal(t, metrics.IngestionStatusFailed, outcome.Status)

	ds := f.dataset(t, job.DatasetID)
	assert.Equal(t, domain.StatusFailed, ds.ProcessingStatus)
	assert.Zero(t, ds.RecordsCount)

	records, err := f.repo.ListAllRecords(context.Background(), f.db, job.DatasetID)
	require.NoError(t, err)
	assert.Empty(t, records, "records of a failed run must not stay visible")
}

func TestProcessRecordsClaimTime(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "claim.json", domain.FormatJSON, `[{"name":"a"}]`)

	outcome := f.orchestrator(nil).Process(context.Background(), job)
	require.Equal(t, metrics.IngestionStatusProcessed, outcome.Status)

	ds := f.dataset(t, job.DatasetID)
	require.NotNil(t, ds.ClaimedAt)
	assert.True(t, f.clock.Now().Equal(*ds.ClaimedAt))
	assert.Equal(t, 1, ds.RecordsCount)
}
