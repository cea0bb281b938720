package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	assistantdomain "github.com/smallbiznis/oceandata/internal/assistant/domain"
	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/pkg/db/pagination"
)

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

var (
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrUploadInProgress   = errors.New("upload_in_progress")
	ErrImageFileRequired  = errors.New("image_file_required")
	ErrInvalidImageData   = errors.New("invalid_image_data")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

const (
	typeValidation   = "validation_error"
	typeNotFound     = "not_found"
	typeTooLarge     = "payload_too_large"
	typeRateLimited  = "rate_limited"
	typeUpstream     = "upstream_error"
	typeUnavailable  = "service_unavailable"
	typeInternal     = "internal_error"
	internalMessage  = "Internal server error."
	notFoundMessage  = "Dataset not found."
	assistantMessage = "Failed to get a response from the assistant."
)

type errorRule struct {
	targets []error
	status  int
	kind    string
	message string
}

// errorRules is checked in order; the first rule with a matching target wins.
var errorRules = []errorRule{
	{[]error{datasetdomain.ErrFileRequired}, http.StatusBadRequest, typeValidation, "No dataset file uploaded."},
	{[]error{datasetdomain.ErrInvalidName}, http.StatusBadRequest, typeValidation, "Dataset name and source are required."},
	{[]error{datasetdomain.ErrInvalidSource}, http.StatusBadRequest, typeValidation, "Source must be NOAA, OBIS, or Custom."},
	{[]error{datasetdomain.ErrUnsupportedFormat}, http.StatusBadRequest, typeValidation, "Unsupported file format. Only CSV and JSON files are allowed."},
	{[]error{datasetdomain.ErrInvalidStatus}, http.StatusBadRequest, typeValidation, "Status must be uploaded, processing, processed, or failed."},
	{[]error{datasetdomain.ErrInvalidFormat}, http.StatusBadRequest, typeValidation, "Export format must be csv or json."},
	{[]error{datasetdomain.ErrQueryTooShort}, http.StatusBadRequest, typeValidation, "Search query must be at least 2 characters long."},
	{[]error{pagination.ErrInvalidPage}, http.StatusBadRequest, typeValidation, "limit and offset must be non-negative integers."},
	{[]error{datasetdomain.ErrFileTooLarge}, http.StatusRequestEntityTooLarge, typeTooLarge, "Dataset file is too large."},
	{[]error{datasetdomain.ErrNotFound, datasetdomain.ErrInvalidID, gorm.ErrRecordNotFound}, http.StatusNotFound, typeNotFound, notFoundMessage},

	{[]error{assistantdomain.ErrEmptyMessage}, http.StatusBadRequest, typeValidation, "Message cannot be empty."},
	{[]error{assistantdomain.ErrMessageTooLong}, http.StatusBadRequest, typeValidation, "Message too long. Please keep it under 1000 characters."},
	{[]error{assistantdomain.ErrImageRequired}, http.StatusBadRequest, typeValidation, "Missing image data or mimeType."},
	{[]error{ErrImageFileRequired}, http.StatusBadRequest, typeValidation, "No image file uploaded."},
	{[]error{assistantdomain.ErrInvalidImage}, http.StatusBadRequest, typeValidation, "Only image files are allowed."},
	{[]error{ErrInvalidImageData}, http.StatusBadRequest, typeValidation, "Image data must be base64 encoded."},
	{[]error{assistantdomain.ErrImageTooLarge}, http.StatusRequestEntityTooLarge, typeTooLarge, "Image file is too large."},
	{[]error{assistantdomain.ErrNotConfigured, ErrServiceUnavailable}, http.StatusServiceUnavailable, typeUnavailable, "The assistant is not configured."},
	{[]error{assistantdomain.ErrUpstream, assistantdomain.ErrEmptyResponse}, http.StatusBadGateway, typeUpstream, assistantMessage},

	{[]error{ErrInvalidRequest}, http.StatusBadRequest, typeValidation, "Invalid request."},
	{[]error{ErrPayloadTooLarge}, http.StatusRequestEntityTooLarge, typeTooLarge, "Request body is too large."},
	{[]error{ErrRateLimited}, http.StatusTooManyRequests, typeRateLimited, "Too many uploads. Please try again later."},
	{[]error{ErrUploadInProgress}, http.StatusTooManyRequests, typeRateLimited, "Another upload from this client is still in progress."},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	if rule, _, ok := matchRule(err); ok {
		return rule.status, errorResponse{Error: rule.message, Type: rule.kind}
	}
	return http.StatusInternalServerError, errorResponse{Error: internalMessage, Type: typeInternal}
}

// classifyErrorForLog returns the response type and the sentinel code for
// request logs.
func classifyErrorForLog(err error) (string, string) {
	if rule, target, ok := matchRule(err); ok {
		return rule.kind, target.Error()
	}
	return typeInternal, "internal_error"
}

func matchRule(err error) (errorRule, error, bool) {
	if err == nil {
		return errorRule{}, nil, false
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = ErrPayloadTooLarge
	}
	for _, rule := range errorRules {
		for _, target := range rule.targets {
			if errors.Is(err, target) {
				return rule, target, true
			}
		}
	}
	return errorRule{}, nil, false
}
