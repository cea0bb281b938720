package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SpeciesIdentification is one stored answer to an image analysis request.
type SpeciesIdentification struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	Filename           *string       `json:"filename"`
	CommonName         string        `gorm:"not null" json:"common_name"`
	ScientificName     string        `gorm:"not null" json:"scientific_name"`
	Description        string        `json:"description"`
	ConfidenceScore    float64       `gorm:"not null;default:0.5" json:"confidence_score"`
	Habitat            *string       `json:"habitat,omitempty"`
	DepthRange         *string       `json:"depth_range,omitempty"`
	Distribution       *string       `json:"distribution,omitempty"`
	ConservationStatus *string       `json:"conservation_status,omitempty"`
	Diet               *string       `json:"diet,omitempty"`
	Size               *string       `json:"size,omitempty"`
	Weight             *string       `json:"weight,omitempty"`
	Threats            *string       `json:"threats,omitempty"`
	MatchedRecordID    *snowflake.ID `json:"matched_record_id,omitempty"`
	CreatedAt          time.Time     `gorm:"not null;index" json:"created_at"`
}

func (SpeciesIdentification) TableName() string { return "species_identifications" }

type ChatMessage struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Message   string       `gorm:"not null" json:"message"`
	Response  string       `gorm:"not null" json:"response"`
	CreatedAt time.Time    `gorm:"not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_history" }

// Analysis is the structured identification returned to the caller.
type Analysis struct {
	CommonName         string   `json:"commonName"`
	ScientificName     string   `json:"scientificName"`
	Description        string   `json:"description"`
	Confidence         float64  `json:"confidence"`
	Habitat            string   `json:"habitat,omitempty"`
	Characteristics    []string `json:"characteristics,omitempty"`
	DepthRange         string   `json:"depthRange,omitempty"`
	Distribution       string   `json:"distribution,omitempty"`
	ConservationStatus string   `json:"conservationStatus,omitempty"`
	Diet               string   `json:"diet,omitempty"`
	Size               string   `json:"size,omitempty"`
	Weight             string   `json:"weight,omitempty"`
	Threats            string   `json:"threats,omitempty"`
	DatasetMatch       bool     `json:"datasetMatch"`
}
