package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/pkg/db"
	"github.com/smallbiznis/oceandata/pkg/db/pagination"
	"gorm.io/gorm"
)

const defaultInsertBatchSize = 500

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateDataset(ctx context.Context, conn *gorm.DB, dataset *domain.Dataset) error {
	return conn.WithContext(ctx).Create(dataset).Error
}

func (r *repo) FindDatasetByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Dataset, error) {
	var dataset domain.Dataset
	err := conn.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&dataset).Error
	if err != nil {
		return nil, err
	}
	if dataset.ID == 0 {
		return nil, nil
	}
	return &dataset, nil
}

func (r *repo) ListDatasets(ctx context.Context, conn *gorm.DB, filter domain.DatasetFilter, page pagination.Page) ([]domain.Dataset, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Dataset{})
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	if filter.Status != "" {
		stmt = stmt.Where("processing_status = ?", filter.Status)
	}

	datasets := []domain.Dataset{}
	err := page.Apply(stmt).
		Order("upload_date desc, id desc").
		Find(&datasets).Error
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

func (r *repo) ListPendingDatasets(ctx context.Context, conn *gorm.DB, uploadedBefore time.Time, limit int) ([]domain.Dataset, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var datasets []domain.Dataset
	err := conn.WithContext(ctx).
		Where("processing_status = ? AND upload_date <= ?", domain.StatusUploaded, uploadedBefore).
		Order("upload_date asc, id asc").
		Limit(limit).
		Find(&datasets).Error
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

// ClaimDataset moves an uploaded dataset to processing. It reports false when
// another run already claimed it or the dataset is gone.
func (r *repo) ClaimDataset(ctx context.Context, conn *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := conn.WithContext(ctx).
		Model(&domain.Dataset{}).
		Where("id = ? AND processing_status = ?", id, domain.StatusUploaded).
		Updates(map[string]any{
			"processing_status":     domain.StatusProcessing,
			"processing_started_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListStaleDatasets returns datasets stuck in processing since before claimedBefore.
// Rows claimed before the column existed have no timestamp and count as stale.
func (r *repo) ListStaleDatasets(ctx context.Context, conn *gorm.DB, claimedBefore time.Time, limit int) ([]domain.Dataset, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var datasets []domain.Dataset
	err := conn.WithContext(ctx).
		Where("processing_status = ? AND (processing_started_at IS NULL OR processing_started_at <= ?)",
			domain.StatusProcessing, claimedBefore).
		Order("upload_date asc, id asc").
		Limit(limit).
		Find(&datasets).Error
	if err != nil {
		return nil, err
	}
	return datasets, nil
}

// ResetStaleDataset drops the partial records of an interrupted run and puts the
// dataset back to uploaded, together with entry, in one transaction. It reports
// false when the dataset finished, was reclaimed or was deleted in the meantime.
func (r *repo) ResetStaleDataset(ctx context.Context, conn *gorm.DB, id snowflake.ID, claimedBefore time.Time, entry *domain.ProcessingLog) (bool, error) {
	reset := false
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE datasets SET processing_status = ?, records_count = 0, processing_started_at = NULL
			 WHERE id = ? AND processing_status = ?
			 AND (processing_started_at IS NULL OR processing_started_at <= ?)`,
			domain.StatusUploaded,
			id,
			domain.StatusProcessing,
			claimedBefore,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Exec(`DELETE FROM dataset_records WHERE dataset_id = ?`, id).Error; err != nil {
			return err
		}
		if entry != nil {
			entry.DatasetID = id
			if err := tx.Omit("Dataset").Create(entry).Error; err != nil {
				return err
			}
		}
		reset = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return reset, nil
}

func (r *repo) UpdateDatasetStatus(ctx context.Context, conn *gorm.DB, id snowflake.ID, status domain.Status, recordsCount int, at time.Time) error {
	if !status.Terminal() {
		return domain.ErrInvalidTransition
	}

	res := conn.WithContext(ctx).Exec(
		`UPDATE datasets SET processing_status = ?, records_count = ?, processed_date = ?
		 WHERE id = ? AND processing_status = ?`,
		status,
		recordsCount,
		at,
		id,
		domain.StatusProcessing,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	existing, err := r.FindDatasetByID(ctx, conn, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}

func (r *repo) DeleteDataset(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM processing_logs WHERE dataset_id = ?`, id).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM dataset_records WHERE dataset_id = ?`, id).Error; err != nil {
			return err
		}
		res := tx.Exec(`DELETE FROM datasets WHERE id = ?`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// BulkInsertRecords writes every record in one transaction; a failure on any
// batch rolls back all of them.
func (r *repo) BulkInsertRecords(ctx context.Context, conn *gorm.DB, datasetID snowflake.ID, records []domain.Record, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	var inserted int64
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Dataset{}).Where("id = ?", datasetID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		if len(records) == 0 {
			return nil
		}

		for i := range records {
			records[i].DatasetID = datasetID
		}
		res := tx.Omit("Dataset").CreateInBatches(&records, batchSize)
		if res.Error != nil {
			if db.IsForeignKeyErr(res.Error) {
				return domain.ErrNotFound
			}
			return res.Error
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

var recordSearchColumns = []string{"species_name", "scientific_name", "habitat"}

func (r *repo) ListRecords(ctx context.Context, conn *gorm.DB, datasetID snowflake.ID, search string, page pagination.Page) ([]domain.Record, int64, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Record{}).
		Where("dataset_id = ?", datasetID)
	if term := strings.TrimSpace(search); term != "" {
		clause, args := likeAny(recordSearchColumns, term)
		stmt = stmt.Where(clause, args...)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	records := []domain.Record{}
	err := page.Apply(stmt).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repo) ListAllRecords(ctx context.Context, conn *gorm.DB, datasetID snowflake.ID) ([]domain.Record, error) {
	records := []domain.Record{}
	err := conn.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

var hitSearchColumns = []string{"dr.species_name", "dr.scientific_name", "dr.habitat", "dr.distribution"}

func (r *repo) SearchRecords(ctx context.Context, conn *gorm.DB, filter domain.SearchFilter, page pagination.Page) ([]domain.SearchHit, int64, error) {
	term := strings.TrimSpace(filter.Query)
	if len([]rune(term)) < domain.MinQueryLength {
		return nil, 0, domain.ErrQueryTooShort
	}

	clause, args := likeAny(hitSearchColumns, term)
	stmt := conn.WithContext(ctx).
		Table("dataset_records AS dr").
		Joins("JOIN datasets d ON d.id = dr.dataset_id").
		Where(clause, args...)
	if filter.Source != "" {
		stmt = stmt.Where("d.source = ?", filter.Source)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	hits := []domain.SearchHit{}
	err := page.Apply(stmt.Session(&gorm.Session{})).
		Select("dr.*, d.name AS dataset_name, d.source AS dataset_source").
		Order("dr.species_name asc, dr.id asc").
		Scan(&hits).Error
	if err != nil {
		return nil, 0, err
	}
	return hits, total, nil
}

func (r *repo) AppendLog(ctx context.Context, conn *gorm.DB, entry *domain.ProcessingLog) error {
	err := conn.WithContext(ctx).Omit("Dataset").Create(entry).Error
	if db.IsForeignKeyErr(err) {
		return domain.ErrNotFound
	}
	return err
}

func (r *repo) ListLogs(ctx context.Context, conn *gorm.DB, datasetID snowflake.ID) ([]domain.ProcessingLog, error) {
	logs := []domain.ProcessingLog{}
	err := conn.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("created_at desc, id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

type groupCount struct {
	Label string
	Count int64
}

func (r *repo) Statistics(ctx context.Context, conn *gorm.DB) (domain.Statistics, error) {
	conn = conn.WithContext(ctx)
	stats := domain.Statistics{
		CountsBySource: map[string]int64{},
		CountsByStatus: map[string]int64{},
	}

	if err := conn.Model(&domain.Dataset{}).Count(&stats.TotalDatasets).Error; err != nil {
		return domain.Statistics{}, err
	}
	if err := conn.Model(&domain.Record{}).Count(&stats.TotalRecords).Error; err != nil {
		return domain.Statistics{}, err
	}
	if err := conn.Raw(
		`SELECT COUNT(DISTINCT species_name) FROM dataset_records WHERE species_name IS NOT NULL`,
	).Scan(&stats.UniqueSpeciesCount).Error; err != nil {
		return domain.Statistics{}, err
	}
	if err := conn.Raw(
		`SELECT COUNT(DISTINCT scientific_name) FROM dataset_records WHERE scientific_name IS NOT NULL`,
	).Scan(&stats.UniqueScientificNameCount).Error; err != nil {
		return domain.Statistics{}, err
	}

	var bySource []groupCount
	if err := conn.Raw(
		`SELECT source AS label, COUNT(*) AS count FROM datasets GROUP BY source`,
	).Scan(&bySource).Error; err != nil {
		return domain.Statistics{}, err
	}
	for _, row := range bySource {
		stats.CountsBySource[row.Label] = row.Count
	}

	var byStatus []groupCount
	if err := conn.Raw(
		`SELECT processing_status AS label, COUNT(*) AS count FROM datasets GROUP BY processing_status`,
	).Scan(&byStatus).Error; err != nil {
		return domain.Statistics{}, err
	}
	for _, row := range byStatus {
		stats.CountsByStatus[row.Label] = row.Count
	}

	return stats, nil
}

// likeAny builds a case-insensitive substring match over columns, with user
// wildcards escaped.
func likeAny(columns []string, term string) (string, []any) {
	pattern := "%" + strings.ToLower(db.EscapeLike(term)) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, "LOWER("+col+") LIKE ? ESCAPE '!'")
		args = append(args, pattern)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

var _ domain.Repository = (*repo)(nil)
