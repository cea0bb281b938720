package domain

import (
	"context"
	"errors"

	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
	"gorm.io/gorm"
)

// InlineImage is binary image content sent alongside a prompt.
type InlineImage struct {
	MimeType string
	Data     []byte
}

type Prompt struct {
	System string
	Text   string
	Image  *InlineImage
}

// Completer is an opaque text completion service.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

type ChatResponse struct {
	Reply          string                    `json:"reply"`
	DatasetMatches []datasetdomain.SearchHit `json:"datasetMatches"`
}

type IdentifyRequest struct {
	Image    []byte
	MimeType string
	Filename string
}

type UploadImageRequest struct {
	Filename string
	MimeType string
	Body     []byte
}

type UploadImageResponse struct {
	Message  string   `json:"message"`
	Filename string   `json:"filename"`
	Analysis Analysis `json:"analysis"`
	FileURL  string   `json:"fileUrl"`
}

type Service interface {
	Chat(ctx context.Context, message string) (ChatResponse, error)
	IdentifyImage(ctx context.Context, req IdentifyRequest) (Analysis, error)
	UploadImage(ctx context.Context, req UploadImageRequest) (UploadImageResponse, error)
	ChatHistory(ctx context.Context, limit int) ([]ChatMessage, error)
	RecentIdentifications(ctx context.Context, limit int) ([]SpeciesIdentification, error)
}

type Repository interface {
	InsertChat(ctx context.Context, db *gorm.DB, msg *ChatMessage) error
	ListChats(ctx context.Context, db *gorm.DB, limit int) ([]ChatMessage, error)
	InsertIdentification(ctx context.Context, db *gorm.DB, item *SpeciesIdentification) error
	ListIdentifications(ctx context.Context, db *gorm.DB, limit int) ([]SpeciesIdentification, error)
}

const (
	MaxMessageLength          = 1000
	DefaultChatHistoryLimit   = 20
	DefaultIdentificationList = 10
)

var (
	ErrEmptyMessage   = errors.New("empty_message")
	ErrMessageTooLong = errors.New("message_too_long")
	ErrImageRequired  = errors.New("image_required")
	ErrInvalidImage   = errors.New("invalid_image")
	ErrImageTooLarge  = errors.New("image_too_large")
	ErrNotConfigured  = errors.New("assistant_not_configured")
	ErrEmptyResponse  = errors.New("empty_completion")
	ErrUpstream       = errors.New("upstream_failure")
)
