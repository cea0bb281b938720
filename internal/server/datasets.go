package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/observability/logger"
)

const (
	datasetFormField = "dataset"
	uploadedMessage  = "Dataset uploaded successfully and processing started"
	deletedMessage   = "Dataset deleted successfully"
)

type uploadDatasetResponse struct {
	Message string `json:"message"`
	datasetdomain.UploadResponse
}

func (s *Server) UploadDataset(c *gin.Context) {
	header, err := c.FormFile(datasetFormField)
	if err != nil {
		AbortWithError(c, formFileError(err, datasetdomain.ErrFileRequired))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	resp, err := s.datasetSvc.Upload(c.Request.Context(), datasetdomain.UploadRequest{
		Name:             c.PostForm("name"),
		Source:           c.PostForm("source"),
		Description:      c.PostForm("description"),
		OriginalFilename: header.Filename,
		Body:             file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadDatasetResponse{Message: uploadedMessage, UploadResponse: resp})
}

func (s *Server) ListDatasets(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.datasetSvc.List(c.Request.Context(), datasetdomain.ListDatasetRequest{
		Source: strings.TrimSpace(c.Query("source")),
		Status: strings.TrimSpace(c.Query("status")),
		Page:   page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetDataset(c *gin.Context) {
	resp, err := s.datasetSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListDatasetRecords(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.datasetSvc.ListRecords(c.Request.Context(), datasetdomain.ListRecordsRequest{
		DatasetID: strings.TrimSpace(c.Param("id")),
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListDatasetLogs(c *gin.Context) {
	resp, err := s.datasetSvc.ListLogs(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteDataset(c *gin.Context) {
	if err := s.datasetSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": deletedMessage})
}

func (s *Server) ExportDataset(c *gin.Context) {
	export, err := s.datasetSvc.Export(c.Request.Context(), datasetdomain.ExportRequest{
		DatasetID: strings.TrimSpace(c.Param("id")),
		Format:    c.Query("format"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", export.ContentType())
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(export.Filename()))
	c.Status(http.StatusOK)
	if err := export.WriteTo(c.Writer); err != nil {
		// Headers are already sent; the client sees a truncated body.
		logger.FromContext(c.Request.Context()).Error("export write failed",
			zap.String("dataset_id", export.Dataset.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Server) SearchRecords(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.datasetSvc.Search(c.Request.Context(), datasetdomain.SearchRequest{
		Query:  c.Query("q"),
		Source: strings.TrimSpace(c.Query("source")),
		Page:   page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetStatistics(c *gin.Context) {
	resp, err := s.datasetSvc.Statistics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// formFileError maps a multipart lookup failure to missing, too large or malformed.
func formFileError(err, missing error) error {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return missing
	case errors.As(err, &maxBytesErr):
		return ErrPayloadTooLarge
	case errors.Is(err, http.ErrNotMultipart):
		return missing
	default:
		return ErrInvalidRequest
	}
}
