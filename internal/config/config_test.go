package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("MAX_DATASET_BYTES", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxDatasetBytes)
	assert.False(t, cfg.Gemini.Enabled())
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "Postgres")
	t.Setenv("MAX_IMAGE_BYTES", "2048")
	t.Setenv("UPLOAD_BURST", "not-a-number")
	t.Setenv("GEMINI_API_KEY", " secret ")
	t.Setenv("GEMINI_BASE_URL", "http://gemini.local/v1/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, int64(2048), cfg.MaxImageBytes)
	assert.Equal(t, 5, cfg.UploadBurst)
	assert.True(t, cfg.Gemini.Enabled())
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
	assert.Equal(t, "http://gemini.local/v1", cfg.Gemini.BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
