package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5000, cfg.Caches.TokenizerSize)
	assert.Equal(t, 1000, cfg.Caches.ProcessorSize)
	assert.Equal(t, 1000, cfg.Caches.CompilerSize)
	assert.Equal(t, 1000, cfg.Caches.QuerySize)
	assert.Equal(t, 0, cfg.MaxSQLLength)
	assert.Equal(t, "postgres", cfg.DefaultDialect)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SQLBIND_MAX_SQL_LENGTH", "4096")
	t.Setenv("SQLBIND_DEFAULT_DIALECT", "mysql")
	t.Setenv("SQLBIND_TOKENIZER_CACHE_SIZE", "100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.MaxSQLLength)
	assert.Equal(t, "mysql", cfg.DefaultDialect)
	assert.Equal(t, 100, cfg.Caches.TokenizerSize)
	// Untouched settings keep their defaults.
	assert.Equal(t, 1000, cfg.Caches.ProcessorSize)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlbind.yaml")
	content := `caches:
  tokenizer_size: 64
  processor_size: 32
  compiler_size: 16
  query_size: 8
max_sql_length: 2048
default_dialect: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Caches.TokenizerSize)
	assert.Equal(t, 32, cfg.Caches.ProcessorSize)
	assert.Equal(t, 16, cfg.Caches.CompilerSize)
	assert.Equal(t, 8, cfg.Caches.QuerySize)
	assert.Equal(t, 2048, cfg.MaxSQLLength)
	assert.Equal(t, "sqlite", cfg.DefaultDialect)
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Caches.TokenizerSize)
}

func TestLoadRejectsInvalidSizes(t *testing.T) {
	t.Setenv("SQLBIND_PROCESSOR_CACHE_SIZE", "0")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processor")
}

func TestLoadRejectsNegativeMaxLength(t *testing.T) {
	t.Setenv("SQLBIND_MAX_SQL_LENGTH", "-1")
	_, err := Load("")
	assert.Error(t, err)
}
