package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionConfigHolderDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewIngestionConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	defaults := DefaultIngestionConfig()
	assert.Equal(t, defaults.Workers, cfg.Workers)
	assert.Equal(t, defaults.QueueSize, cfg.QueueSize)
	assert.Equal(t, defaults.InsertBatchSize, cfg.InsertBatchSize)
	assert.Equal(t, defaults.RecoveryEvery, cfg.RecoveryEvery)
	assert.Equal(t, 30*time.Minute, cfg.StaleAfter)
	assert.Empty(t, cfg.ExtraAliases)
}

func TestIngestionConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`ingestion:
  workers: 4
  queueSize: 8
  insertBatchSize: 100
  recoveryEvery: 1m
  extraAliases:
    species_name:
      - vernacular
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingestion.yml"), content, 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewIngestionConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Equal(t, 100, cfg.InsertBatchSize)
	assert.Equal(t, time.Minute, cfg.RecoveryEvery)
	assert.Equal(t, []string{"vernacular"}, cfg.ExtraAliases["species_name"])
}

func TestValidateIngestionConfigRejectsEmptyAlias(t *testing.T) {
	err := validateIngestionConfig(IngestionConfig{
		ExtraAliases: map[string][]string{"species_name": {" "}},
	})
	assert.Error(t, err)
}

func TestStaticHolderAppliesDefaults(t *testing.T) {
	holder := NewStaticIngestionConfigHolder(IngestionConfig{Workers: 1})
	cfg := holder.Get()
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, DefaultIngestionConfig().QueueSize, cfg.QueueSize)
	assert.Equal(t, DefaultIngestionConfig().StaleAfter, cfg.StaleAfter)

	var nilHolder *IngestionConfigHolder
	assert.Equal(t, DefaultIngestionConfig().Workers, nilHolder.Get().Workers)
}
