package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/oceandata/internal/config"
	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
)

func TestUploadDataset(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	req := multipartRequest(t, "/api/datasets/upload", "dataset", "reef.csv", []byte("species_name\nClownfish\n"), map[string]string{
		"name":        "Reef Survey",
		"source":      "NOAA",
		"description": "Spring dives",
	})

	w := ts.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Dataset uploaded successfully and processing started", body["message"])
	assert.Equal(t, "42", body["datasetId"])
	assert.Equal(t, "reef.csv", body["originalFilename"])
	assert.Equal(t, "csv", body["format"])

	assert.Equal(t, "Reef Survey", ts.datasets.uploadReq.Name)
	assert.Equal(t, "NOAA", ts.datasets.uploadReq.Source)
	assert.Equal(t, "Spring dives", ts.datasets.uploadReq.Description)
	assert.Equal(t, "species_name\nClownfish\n", ts.datasets.uploadBody)
}

func TestUploadDatasetMissingFile(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	req := multipartRequest(t, "/api/datasets/upload", "", "", nil, map[string]string{"name": "x", "source": "NOAA"})

	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "No dataset file uploaded.", body.Error)
	assert.Equal(t, "validation_error", body.Type)
}

func TestUploadDatasetServiceValidation(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	ts.datasets.uploadErr = datasetdomain.ErrInvalidSource
	req := multipartRequest(t, "/api/datasets/upload", "dataset", "reef.csv", []byte("a\n1\n"), map[string]string{"name": "x", "source": "NASA"})

	w := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Source must be NOAA, OBIS, or Custom.", decodeError(t, w).Error)
}

func TestUploadDatasetBodyLimit(t *testing.T) {
	ts := newTestServer(t, config.Config{MaxDatasetBytes: 16}, nil)
	big := bytes.Repeat([]byte("a"), multipartOverhead+1024)
	req := multipartRequest(t, "/api/datasets/upload", "dataset", "big.csv", big, map[string]string{"name": "x", "source": "NOAA"})

	w := ts.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, w).Type)
}

func TestListDatasetsQuery(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets?source=OBIS&status=processed&limit=10&offset=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, "OBIS", ts.datasets.listReq.Source)
	assert.Equal(t, "processed", ts.datasets.listReq.Status)
	assert.Equal(t, 10, ts.datasets.listReq.Page.Limit)
	assert.Equal(t, 5, ts.datasets.listReq.Page.Offset)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, ts.datasets.listReq.Page.Limit)
	assert.Equal(t, 0, ts.datasets.listReq.Page.Offset)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRecordsCapsLimit(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets/7/records?limit=5000&search=shark", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", ts.datasets.recordsReq.DatasetID)
	assert.Equal(t, "shark", ts.datasets.recordsReq.Search)
	assert.Equal(t, 1000, ts.datasets.recordsReq.Page.Limit)
}

func TestGetDatasetNotFound(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	ts.datasets.err = datasetdomain.ErrNotFound

	for _, path := range []string{"/api/datasets/1", "/api/datasets/1/logs", "/api/datasets/1/records"} {
		w := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Dataset not found.", decodeError(t, w).Error, path)
	}

	w := ts.do(httptest.NewRequest(http.MethodDelete, "/api/datasets/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDataset(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(httptest.NewRequest(http.MethodDelete, "/api/datasets/99", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Dataset deleted successfully"}`, w.Body.String())
	assert.Equal(t, "99", ts.datasets.deleted)
}

func TestExportDataset(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	name := "Clownfish"
	ts.datasets.export = &datasetdomain.Export{
		Dataset: datasetdomain.Dataset{Name: "Gulf Survey"},
		Format:  datasetdomain.FormatCSV,
		Records: []datasetdomain.Record{{SpeciesName: &name}},
	}

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets/5/export?format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="gulf-survey-export.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(datasetdomain.ExportColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Clownfish,"))
	assert.Equal(t, "5", ts.datasets.exportReq.DatasetID)
}

func TestExportDatasetInvalidFormat(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)
	ts.datasets.err = datasetdomain.ErrInvalidFormat

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets/5/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Export format must be csv or json.", decodeError(t, w).Error)
}

func TestSearchRecords(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/search?q=%20a%20", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Search query must be at least 2 characters long.", decodeError(t, w).Error)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/search?q=shark&source=NOAA", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NOAA", ts.datasets.searchReq.Source)
	assert.Contains(t, w.Body.String(), `"query":"shark"`)
}

func TestStatisticsRouteIsNotDatasetID(t *testing.T) {
	ts := newTestServer(t, config.Config{}, nil)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/datasets/statistics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.datasets.statsCalls)
	assert.Contains(t, w.Body.String(), `"totalDatasets":3`)
}
