package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/oceandata/pkg/db/pagination"
	"gorm.io/gorm"
)

type DatasetFilter struct {
	Source Source
	Status Status
}

type SearchFilter struct {
	Query  string
	Source Source
}

// Repository is the only reader and writer of datasets, records and processing logs.
type Repository interface {
	CreateDataset(ctx context.Context, db *gorm.DB, dataset *Dataset) error
	FindDatasetByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Dataset, error)
	ListDatasets(ctx context.Context, db *gorm.DB, filter DatasetFilter, page pagination.Page) ([]Dataset, error)
	ListPendingDatasets(ctx context.Context, db *gorm.DB, uploadedBefore time.Time, limit int) ([]Dataset, error)
	ClaimDataset(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ListStaleDatasets(ctx context.Context, db *gorm.DB, claimedBefore time.Time, limit int) ([]Dataset, error)
	ResetStaleDataset(ctx context.Context, db *gorm.DB, id snowflake.ID, claimedBefore time.Time, entry *ProcessingLog) (bool, error)
	UpdateDatasetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, recordsCount int, at time.Time) error
	DeleteDataset(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	BulkInsertRecords(ctx context.Context, db *gorm.DB, datasetID snowflake.ID, records []Record, batchSize int) (int64, error)
	ListRecords(ctx context.Context, db *gorm.DB, datasetID snowflake.ID, search string, page pagination.Page) ([]Record, int64, error)
	ListAllRecords(ctx context.Context, db *gorm.DB, datasetID snowflake.ID) ([]Record, error)
	SearchRecords(ctx context.Context, db *gorm.DB, filter SearchFilter, page pagination.Page) ([]SearchHit, int64, error)

	AppendLog(ctx context.Context, db *gorm.DB, entry *ProcessingLog) error
	ListLogs(ctx context.Context, db *gorm.DB, datasetID snowflake.ID) ([]ProcessingLog, error)

	Statistics(ctx context.Context, db *gorm.DB) (Statistics, error)
}
