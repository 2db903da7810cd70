// Package config loads process-level sqlbind settings.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Settings holds the tunables for the statement-processing core.
// Configuration can come from a YAML file or environment variables;
// environment variables always override YAML values.
type Settings struct {
	// Cache bounds for the pipeline caches.
	Caches CacheSettings `yaml:"caches"`

	// MaxSQLLength rejects SQL longer than this many bytes before any
	// scanning. 0 disables the guard.
	MaxSQLLength int `yaml:"max_sql_length" env:"SQLBIND_MAX_SQL_LENGTH" env-default:"0"`

	// DefaultDialect names the dialect preset used when a caller does not
	// pick one explicitly.
	DefaultDialect string `yaml:"default_dialect" env:"SQLBIND_DEFAULT_DIALECT" env-default:"postgres"`
}

// CacheSettings bounds each pipeline cache.
type CacheSettings struct {
	TokenizerSize int `yaml:"tokenizer_size" env:"SQLBIND_TOKENIZER_CACHE_SIZE" env-default:"5000"`
	ProcessorSize int `yaml:"processor_size" env:"SQLBIND_PROCESSOR_CACHE_SIZE" env-default:"1000"`
	CompilerSize  int `yaml:"compiler_size" env:"SQLBIND_COMPILER_CACHE_SIZE" env-default:"1000"`
	QuerySize     int `yaml:"query_size" env:"SQLBIND_QUERY_CACHE_SIZE" env-default:"1000"`
}

// Default returns the built-in settings without consulting the environment.
func Default() *Settings {
	return &Settings{
		Caches: CacheSettings{
			TokenizerSize: 5000,
			ProcessorSize: 1000,
			CompilerSize:  1000,
			QuerySize:     1000,
		},
		DefaultDialect: "postgres",
	}
}

// Load reads settings from path with environment variable overrides. When the
// file does not exist, settings come from the environment alone.
func Load(path string) (*Settings, error) {
	cfg := &Settings{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (s *Settings) validate() error {
	for name, size := range map[string]int{
		"tokenizer": s.Caches.TokenizerSize,
		"processor": s.Caches.ProcessorSize,
		"compiler":  s.Caches.CompilerSize,
		"query":     s.Caches.QuerySize,
	} {
		if size <= 0 {
			return fmt.Errorf("cache size for %s must be positive, got %d", name, size)
		}
	}
	if s.MaxSQLLength < 0 {
		return fmt.Errorf("max_sql_length must be >= 0, got %d", s.MaxSQLLength)
	}
	return nil
}
