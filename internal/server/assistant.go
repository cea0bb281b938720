package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	assistantdomain "github.com/smallbiznis/oceandata/internal/assistant/domain"
)

const imageFormField = "image"

type chatRequest struct {
	Message string `json:"message"`
}

type analyzeImageRequest struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType"`
}

func (s *Server) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.assistantSvc.Chat(c.Request.Context(), req.Message)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AnalyzeImage(c *gin.Context) {
	var req analyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	if strings.TrimSpace(req.ImageBase64) == "" || strings.TrimSpace(req.MimeType) == "" {
		AbortWithError(c, assistantdomain.ErrImageRequired)
		return
	}

	image, err := decodeImage(req.ImageBase64)
	if err != nil {
		AbortWithError(c, ErrInvalidImageData)
		return
	}
	if s.cfg.MaxImageBytes > 0 && int64(len(image)) > s.cfg.MaxImageBytes {
		AbortWithError(c, assistantdomain.ErrImageTooLarge)
		return
	}

	analysis, err := s.assistantSvc.IdentifyImage(c.Request.Context(), assistantdomain.IdentifyRequest{
		Image:    image,
		MimeType: req.MimeType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

func (s *Server) UploadImage(c *gin.Context) {
	header, err := c.FormFile(imageFormField)
	if err != nil {
		AbortWithError(c, formFileError(err, ErrImageFileRequired))
		return
	}
	if s.cfg.MaxImageBytes > 0 && header.Size > s.cfg.MaxImageBytes {
		AbortWithError(c, assistantdomain.ErrImageTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.assistantSvc.UploadImage(c.Request.Context(), assistantdomain.UploadImageRequest{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ChatHistory(c *gin.Context) {
	limit, err := parseOptionalLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.assistantSvc.ChatHistory(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RecentIdentifications(c *gin.Context) {
	limit, err := parseOptionalLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.assistantSvc.RecentIdentifications(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:") {
		if i := strings.Index(value, ","); i >= 0 {
			value = value[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(value)
}

func bindError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return ErrPayloadTooLarge
	}
	return ErrInvalidRequest
}
