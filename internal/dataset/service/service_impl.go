package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/oceandata/internal/cache"
	"github.com/smallbiznis/oceandata/internal/clock"
	"github.com/smallbiznis/oceandata/internal/config"
	"github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/filestore"
	"github.com/smallbiznis/oceandata/internal/observability/metrics"
	"github.com/smallbiznis/oceandata/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Files   *filestore.Store `name:"datasets"`
	Queue   domain.IngestionQueue
	Clock   clock.Clock
	Config  config.Config
	Stats   *cache.StatisticsCache `optional:"true"`
	Metrics *metrics.Metrics       `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	files    *filestore.Store
	queue    domain.IngestionQueue
	clock    clock.Clock
	maxBytes int64
	stats    *cache.StatisticsCache
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("dataset.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		files:    p.Files,
		queue:    p.Queue,
		clock:    p.Clock,
		maxBytes: p.Config.MaxDatasetBytes,
		stats:    p.Stats,
		metrics:  p.Metrics,
	}
}

func (s *Service) Upload(ctx context.Context, req domain.UploadRequest) (domain.UploadResponse, error) {
	original := strings.TrimSpace(req.OriginalFilename)
	if req.Body == nil || original == "" {
		return domain.UploadResponse{}, domain.ErrFileRequired
	}

	name := strings.TrimSpace(req.Name)
	sourceValue := strings.TrimSpace(req.Source)
	if name == "" || sourceValue == "" {
		return domain.UploadResponse{}, domain.ErrInvalidName
	}
	source := domain.Source(sourceValue)
	if !source.Valid() {
		return domain.UploadResponse{}, domain.ErrInvalidSource
	}

	format, err := formatFromFilename(original)
	if err != nil {
		return domain.UploadResponse{}, err
	}

	stored, size, err := s.files.Save(ctx, original, req.Body, s.maxBytes)
	if err != nil {
		if errors.Is(err, filestore.ErrTooLarge) {
			return domain.UploadResponse{}, domain.ErrFileTooLarge
		}
		return domain.UploadResponse{}, err
	}

	dataset := domain.Dataset{
		ID:               s.genID.Generate(),
		Name:             name,
		Filename:         stored,
		OriginalFilename: original,
		Source:           source,
		Format:           format,
		FileSize:         size,
		ProcessingStatus: domain.StatusUploaded,
		UploadDate:       s.clock.Now(),
	}
	if description := strings.TrimSpace(req.Description); description != "" {
		dataset.Description = &description
	}

	if err := s.repo.CreateDataset(ctx, s.db, &dataset); err != nil {
		if rmErr := s.files.Remove(stored); rmErr != nil {
			s.log.Warn("remove orphaned upload", zap.String("filename", stored), zap.Error(rmErr))
		}
		return domain.UploadResponse{}, err
	}

	job := domain.IngestionJob{
		DatasetID: dataset.ID,
		Filename:  dataset.Filename,
		Source:    dataset.Source,
		Format:    dataset.Format,
	}
	if !s.queue.Enqueue(ctx, job) {
		s.log.Warn("ingestion deferred to recovery", zap.String("dataset_id", dataset.ID.String()))
	}

	s.invalidateStatistics()
	s.metrics.RecordDatasetUpload(ctx, string(source), string(format))
	s.log.Info("dataset uploaded",
		zap.String("dataset_id", dataset.ID.String()),
		zap.String("source", string(source)),
		zap.String("format", string(format)),
		zap.Int64("size", size),
	)

	return domain.UploadResponse{
		DatasetID:        dataset.ID,
		Filename:         dataset.Filename,
		OriginalFilename: dataset.OriginalFilename,
		Format:           dataset.Format,
		Size:             dataset.FileSize,
	}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDatasetRequest) ([]domain.Dataset, error) {
	source, err := parseSource(req.Source)
	if err != nil {
		return nil, err
	}

	status := domain.Status(strings.TrimSpace(req.Status))
	if status != "" && !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.ListDatasets(ctx, s.db, domain.DatasetFilter{Source: source, Status: status}, req.Page.Normalize())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Dataset{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, idValue string) (domain.DatasetDetail, error) {
	dataset, err := s.find(ctx, idValue)
	if err != nil {
		return domain.DatasetDetail{}, err
	}

	records, _, err := s.repo.ListRecords(ctx, s.db, dataset.ID, "", pagination.Page{Limit: domain.PreviewLimit})
	if err != nil {
		return domain.DatasetDetail{}, err
	}
	if records == nil {
		records = []domain.Record{}
	}

	return domain.DatasetDetail{Dataset: *dataset, Records: records}, nil
}

func (s *Service) ListRecords(ctx context.Context, req domain.ListRecordsRequest) (domain.ListRecordsResponse, error) {
	dataset, err := s.find(ctx, req.DatasetID)
	if err != nil {
		return domain.ListRecordsResponse{}, err
	}

	page := req.Page.Normalize()
	records, total, err := s.repo.ListRecords(ctx, s.db, dataset.ID, strings.TrimSpace(req.Search), page)
	if err != nil {
		return domain.ListRecordsResponse{}, err
	}
	if records == nil {
		records = []domain.Record{}
	}

	return domain.ListRecordsResponse{
		Records: records,
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}, nil
}

func (s *Service) ListLogs(ctx context.Context, idValue string) ([]domain.ProcessingLog, error) {
	dataset, err := s.find(ctx, idValue)
	if err != nil {
		return nil, err
	}

	logs, err := s.repo.ListLogs(ctx, s.db, dataset.ID)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []domain.ProcessingLog{}
	}
	return logs, nil
}

// Delete removes the rows first. A stored file that cannot be removed is
// only logged since the dataset is already gone.
func (s *Service) Delete(ctx context.Context, idValue string) error {
	dataset, err := s.find(ctx, idValue)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteDataset(ctx, s.db, dataset.ID); err != nil {
		return err
	}

	if err := s.files.Remove(dataset.Filename); err != nil {
		s.log.Warn("remove dataset file",
			zap.String("dataset_id", dataset.ID.String()),
			zap.String("filename", dataset.Filename),
			zap.Error(err),
		)
	}

	s.invalidateStatistics()
	s.metrics.RecordDatasetDelete(ctx)
	s.log.Info("dataset deleted", zap.String("dataset_id", dataset.ID.String()))
	return nil
}

func (s *Service) Export(ctx context.Context, req domain.ExportRequest) (*domain.Export, error) {
	format := domain.Format(strings.ToLower(strings.TrimSpace(req.Format)))
	if format == "" {
		format = domain.FormatCSV
	}
	if !format.Valid() {
		return nil, domain.ErrInvalidFormat
	}

	dataset, err := s.find(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListAllRecords(ctx, s.db, dataset.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDatasetExport(ctx, string(format))
	return &domain.Export{Dataset: *dataset, Records: records, Format: format}, nil
}

func (s *Service) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if utf8.RuneCountInString(query) < domain.MinQueryLength {
		return domain.SearchResponse{}, domain.ErrQueryTooShort
	}

	source, err := parseSource(req.Source)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	page := req.Page.Normalize()
	hits, total, err := s.repo.SearchRecords(ctx, s.db, domain.SearchFilter{Query: query, Source: source}, page)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}

	s.metrics.RecordSearch(ctx, string(source))
	return domain.SearchResponse{
		Records: hits,
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		Query:   query,
	}, nil
}

func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	load := func(ctx context.Context) (*domain.Statistics, error) {
		stats, err := s.repo.Statistics(ctx, s.db)
		if err != nil {
			return nil, err
		}
		return &stats, nil
	}

	if s.stats == nil {
		stats, err := load(ctx)
		if err != nil {
			return domain.Statistics{}, err
		}
		return *stats, nil
	}

	stats, err := s.stats.Get(ctx, load)
	if err != nil {
		return domain.Statistics{}, err
	}
	return *stats, nil
}

func (s *Service) find(ctx context.Context, idValue string) (*domain.Dataset, error) {
	id, err := s.parseID(idValue)
	if err != nil {
		return nil, err
	}

	dataset, err := s.repo.FindDatasetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, domain.ErrNotFound
	}
	return dataset, nil
}

func (s *Service) invalidateStatistics() {
	if s.stats != nil {
		s.stats.InvalidateStatistics()
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseSource(value string) (domain.Source, error) {
	source := domain.Source(strings.TrimSpace(value))
	if source != "" && !source.Valid() {
		return "", domain.ErrInvalidSource
	}
	return source, nil
}

func formatFromFilename(name string) (domain.Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return domain.FormatCSV, nil
	case ".json":
		return domain.FormatJSON, nil
	default:
		return "", domain.ErrUnsupportedFormat
	}
}
