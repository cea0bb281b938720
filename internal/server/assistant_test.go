package server

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assistantdomain "github.com/smallbiznis/oceandata/internal/assistant/domain"
	"github.com/smallbiznis/oceandata/internal/config"
)

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(jsonRequest(http.MethodPost, "/api/chat", `{"message":"What eats krill?"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reply":"hello","datasetMatches":[]}`, w.Body.String())
	assert.Equal(t, "What eats krill?", ts.assistant.message)
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"empty", assistantdomain.ErrEmptyMessage, http.StatusBadRequest, "Message cannot be empty."},
		{"disabled", assistantdomain.ErrNotConfigured, http.StatusServiceUnavailable, "The assistant is not configured."},
		{"upstream", assistantdomain.ErrUpstream, http.StatusBadGateway, "Failed to get a response from the assistant."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, config.Config{}, nil)
			ts.assistant.err = tt.err

			w := ts.do(jsonRequest(http.MethodPost, "/api/chat", `{"message":"hi"}`))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeError(t, w).Error)
		})
	}

	ts := newTestServer(t, config.Config{}, nil)
	w := ts.do(jsonRequest(http.MethodPost, "/api/chat", `not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request.", decodeError(t, w).Error)
}

func TestAnalyzeImage(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	payload := base64.StdEncoding.EncodeToString([]byte("fake-image"))

	w := ts.do(jsonRequest(http.MethodPost, "/api/analyze-image", `{"imageBase64":"data:image/png;base64,`+payload+`","mimeType":"image/png"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"analysis":{`)
	assert.Contains(t, w.Body.String(), `"commonName":"Clownfish"`)
	assert.Equal(t, []byte("fake-image"), ts.assistant.identifyReq.Image)
	assert.Equal(t, "image/png", ts.assistant.identifyReq.MimeType)
}

func TestAnalyzeImageValidation(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(jsonRequest(http.MethodPost, "/api/analyze-image", `{"imageBase64":"abc"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing image data or mimeType.", decodeError(t, w).Error)

	w = ts.do(jsonRequest(http.MethodPost, "/api/analyze-image", `{"imageBase64":"%%%","mimeType":"image/png"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Image data must be base64 encoded.", decodeError(t, w).Error)
}

func TestUploadImage(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	req := multipartRequest(t, "/api/upload", "image", "octopus.png", []byte("png-bytes"), nil)

	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"fileUrl":"/uploads/x.png"`)
	assert.Equal(t, "octopus.png", ts.assistant.uploadReq.Filename)
	assert.Equal(t, []byte("png-bytes"), ts.assistant.uploadReq.Body)
}

func TestUploadImageMissingFile(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	req := multipartRequest(t, "/api/upload", "", "", nil, map[string]string{"note": "x"})

	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No image file uploaded.", decodeError(t, w).Error)
}

func TestUploadImageTooLarge(t *testing.T) {
	ts := newTestServer(t, config.Config{MaxImageBytes: 8}, nil)
	req := multipartRequest(t, "/api/upload", "image", "big.png", bytes.Repeat([]byte("x"), 64), nil)

	w := ts.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "Image file is too large.", decodeError(t, w).Error)
}

func TestHistoryLimits(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/chat-history?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, 5, ts.assistant.historyLimit)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/recent-identifications", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.assistant.historyLimit)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/recent-identifications?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
