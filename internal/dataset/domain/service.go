package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/oceandata/pkg/db/pagination"
)

type UploadRequest struct {
	Name             string
	Source           string
	Description      string
	OriginalFilename string
	Body             io.Reader
}

type UploadResponse struct {
	DatasetID        snowflake.ID `json:"datasetId"`
	Filename         string       `json:"filename"`
	OriginalFilename string       `json:"originalFilename"`
	Format           Format       `json:"format"`
	Size             int64        `json:"size"`
}

type ListDatasetRequest struct {
	Source string
	Status string
	Page   pagination.Page
}

type DatasetDetail struct {
	Dataset Dataset  `json:"dataset"`
	Records []Record `json:"records"`
}

type ListRecordsRequest struct {
	DatasetID string
	Search    string
	Page      pagination.Page
}

type ListRecordsResponse struct {
	Records []Record `json:"records"`
	Total   int64    `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

type SearchRequest struct {
	Query  string
	Source string
	Page   pagination.Page
}

type SearchResponse struct {
	Records []SearchHit `json:"records"`
	Total   int64       `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Query   string      `json:"query"`
}

type ExportRequest struct {
	DatasetID string
	Format    string
}

// Service is the dataset lifecycle surface consumed by the HTTP layer.
type Service interface {
	Upload(context.Context, UploadRequest) (UploadResponse, error)
	List(context.Context, ListDatasetRequest) ([]Dataset, error)
	Get(context.Context, string) (DatasetDetail, error)
	ListRecords(context.Context, ListRecordsRequest) (ListRecordsResponse, error)
	ListLogs(context.Context, string) ([]ProcessingLog, error)
	Delete(context.Context, string) error
	Export(context.Context, ExportRequest) (*Export, error)
	Search(context.Context, SearchRequest) (SearchResponse, error)
	Statistics(context.Context) (Statistics, error)
}

// IngestionJob identifies one stored file awaiting the ingestion pipeline.
type IngestionJob struct {
	DatasetID snowflake.ID
	Filename  string
	Source    Source
	Format    Format
}

// IngestionQueue accepts jobs without blocking the caller. It returns false
// when the job could not be accepted; the dataset then stays uploaded.
type IngestionQueue interface {
	Enqueue(ctx context.Context, job IngestionJob) bool
}

// StatisticsInvalidator drops any cached aggregate view of the store.
type StatisticsInvalidator interface {
	InvalidateStatistics()
}

const (
	PreviewLimit   = 100
	MinQueryLength = 2
)

var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidSource     = errors.New("invalid_source")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidFormat     = errors.New("invalid_export_format")
	ErrUnsupportedFormat = errors.New("unsupported_format")
	ErrFileRequired      = errors.New("file_required")
	ErrFileTooLarge      = errors.New("file_too_large")
	ErrQueryTooShort     = errors.New("query_too_short")
	ErrInvalidTransition = errors.New("invalid_status_transition")
)
