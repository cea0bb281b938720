package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Source string

const (
	SourceNOAA   Source = "NOAA"
	SourceOBIS   Source = "OBIS"
	SourceCustom Source = "Custom"
)

func (s Source) Valid() bool {
	switch s {
	case SourceNOAA, SourceOBIS, SourceCustom:
		return true
	}
	return false
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatJSON
}

type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further ingestion transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Dataset is one uploaded source file and its processing metadata.
type Dataset struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"not null" json:"name"`
	Filename         string         `gorm:"not null" json:"filename"`
	OriginalFilename string         `gorm:"not null" json:"original_filename"`
	Source           Source         `gorm:"not null;index" json:"source"`
	Format           Format         `gorm:"not null" json:"format"`
	FileSize         int64          `gorm:"not null;default:0" json:"file_size"`
	RecordsCount     int            `gorm:"not null;default:0" json:"records_count"`
	ProcessingStatus Status         `gorm:"not null;index;default:uploaded" json:"processing_status"`
	UploadDate       time.Time      `gorm:"not null;index" json:"upload_date"`
	ProcessedDate    *time.Time     `json:"processed_date"`
	ClaimedAt        *time.Time     `gorm:"column:processing_started_at" json:"-"`
	Description      *string        `json:"description"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`
}

func (Dataset) TableName() string { return "datasets" }

// Record is one normalized species observation owned by a dataset.
type Record struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	DatasetID          snowflake.ID   `gorm:"not null;index" json:"dataset_id"`
	SpeciesName        *string        `json:"species_name"`
	ScientificName     *string        `json:"scientific_name"`
	Habitat            *string        `json:"habitat"`
	DepthRange         *string        `json:"depth_range"`
	TemperatureRange   *string        `json:"temperature_range"`
	Distribution       *string        `json:"distribution"`
	ConservationStatus *string        `json:"conservation_status"`
	Diet               *string        `json:"diet"`
	Size               *string        `json:"size"`
	Weight             *string        `json:"weight"`
	Characteristics    *string        `json:"characteristics"`
	Threats            *string        `json:"threats"`
	Latitude           *float64       `json:"latitude"`
	Longitude          *float64       `json:"longitude"`
	ObservationDate    *string        `json:"observation_date"`
	RawData            datatypes.JSON `gorm:"not null" json:"raw_data"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`

	Dataset *Dataset `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Record) TableName() string { return "dataset_records" }

// ProcessingLog is one append-only diagnostic entry written during ingestion.
type ProcessingLog struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	DatasetID snowflake.ID `gorm:"not null;index" json:"dataset_id"`
	LogLevel  LogLevel     `gorm:"not null" json:"log_level"`
	Message   string       `gorm:"not null" json:"message"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`

	Dataset *Dataset `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ProcessingLog) TableName() string { return "processing_logs" }

// SearchHit is a record joined with the provenance of its dataset.
type SearchHit struct {
	Record
	DatasetName   string `json:"dataset_name"`
	DatasetSource Source `json:"dataset_source"`
}

// Statistics aggregates the whole store.
type Statistics struct {
	TotalDatasets             int64            `json:"totalDatasets"`
	TotalRecords              int64            `json:"totalRecords"`
	UniqueSpeciesCount        int64            `json:"uniqueSpeciesCount"`
	UniqueScientificNameCount int64            `json:"uniqueScientificNameCount"`
	CountsBySource            map[string]int64 `json:"countsBySource"`
	CountsByStatus            map[string]int64 `json:"countsByStatus"`
}
