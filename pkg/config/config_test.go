package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCacheTTLHours, cfg.CacheTTLHours)
	assert.Equal(t, DefaultMaxConcurrentDownloads, cfg.MaxConcurrentDownloads)
	assert.NotEmpty(t, cfg.InstallDir)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.MaxConcurrentDownloads = 8
	cfg.BackupRetention = 5
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.MaxConcurrentDownloads)
	assert.Equal(t, 5, loaded.BackupRetention)
}

func TestSave_WritesTwoSpaceIndentedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, Save(Default(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"install_dir\"")
	assert.NoDirExists(t, path+".tmp")
}

func TestLoad_PartialFileGetsDefaultsFilledIn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backup_retention": 10}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BackupRetention)
	assert.Equal(t, DefaultMaxConcurrentDownloads, cfg.MaxConcurrentDownloads)
	assert.NotEmpty(t, cfg.InstallDir)
}

func TestValidate_RejectsEmptyRequiredField(t *testing.T) {
	cfg := Default()
	cfg.InstallDir = ""
	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsNonPositiveConcurrency(t *testing.T) {
	cfg := Default()
	cfg.MaxConcurrentDownloads = 0
	assert.Error(t, Validate(cfg))
}

func TestValidate_AcceptsDefault(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}
