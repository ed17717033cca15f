// Package config loads the process-wide search configuration.
//
// Values come from, in priority order: environment variables with the
// GENOMESEARCH_ prefix, an optional YAML config file, and built-in defaults.
// The configuration is loaded once at startup and treated as immutable; the
// orchestrator must be rebuilt to pick up changes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable of the search engine.
type Config struct {
	// Backend locations
	S3Buckets         []string `mapstructure:"s3_buckets"`
	SequenceStoreIDs  []string `mapstructure:"sequence_store_ids"`
	ReferenceStoreIDs []string `mapstructure:"reference_store_ids"`
	ManifestPath      string   `mapstructure:"manifest_path"`
	AWSRegion         string   `mapstructure:"aws_region"`

	// Concurrency and timeouts
	MaxConcurrentRequests int           `mapstructure:"max_concurrent_requests"`
	TagConcurrency        int           `mapstructure:"tag_concurrency"`
	SearchTimeout         time.Duration `mapstructure:"search_timeout"`

	// Cache tuning
	TagCacheTTL         time.Duration `mapstructure:"tag_cache_ttl"`
	TagCacheSize        int           `mapstructure:"tag_cache_size"`
	ResultCacheTTL      time.Duration `mapstructure:"result_cache_ttl"`
	ResultCacheSize     int           `mapstructure:"result_cache_size"`
	PaginationCacheTTL  time.Duration `mapstructure:"pagination_cache_ttl"`
	PaginationCacheSize int           `mapstructure:"pagination_cache_size"`
	CacheKeepRatio      float64       `mapstructure:"cache_keep_ratio"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`

	// Pagination tuning
	MinBufferSize          int  `mapstructure:"min_buffer_size"`
	MaxBufferSize          int  `mapstructure:"max_buffer_size"`
	BufferMultiplier       int  `mapstructure:"buffer_multiplier"`
	LargeBufferThreshold   int  `mapstructure:"large_buffer_threshold"`
	DeepPageThreshold      int  `mapstructure:"deep_page_threshold"`
	EnableCursorPagination bool `mapstructure:"enable_cursor_pagination"`

	// Request bounds
	MaxResults int `mapstructure:"max_results"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads the configuration from the environment and the optional config
// file at path (empty path skips the file).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GENOMESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma-separated env values for list fields.
	cfg.S3Buckets = splitList(cfg.S3Buckets)
	cfg.SequenceStoreIDs = splitList(cfg.SequenceStoreIDs)
	cfg.ReferenceStoreIDs = splitList(cfg.ReferenceStoreIDs)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("aws_region", "us-east-1")

	v.SetDefault("max_concurrent_requests", 10)
	v.SetDefault("tag_concurrency", 5)
	v.SetDefault("search_timeout", 30*time.Second)

	v.SetDefault("tag_cache_ttl", 5*time.Minute)
	v.SetDefault("tag_cache_size", 10000)
	v.SetDefault("result_cache_ttl", time.Minute)
	v.SetDefault("result_cache_size", 100)
	v.SetDefault("pagination_cache_ttl", 10*time.Minute)
	v.SetDefault("pagination_cache_size", 500)
	v.SetDefault("cache_keep_ratio", 0.8)
	v.SetDefault("maintenance_interval", time.Minute)

	v.SetDefault("min_buffer_size", 100)
	v.SetDefault("max_buffer_size", 5000)
	v.SetDefault("buffer_multiplier", 3)
	v.SetDefault("large_buffer_threshold", 1000)
	v.SetDefault("deep_page_threshold", 10)
	v.SetDefault("enable_cursor_pagination", true)

	v.SetDefault("max_results", 100)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max_concurrent_requests must be positive, got %d", c.MaxConcurrentRequests)
	}
	if c.TagConcurrency <= 0 {
		return fmt.Errorf("tag_concurrency must be positive, got %d", c.TagConcurrency)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("search_timeout must be positive, got %s", c.SearchTimeout)
	}
	if c.CacheKeepRatio <= 0 || c.CacheKeepRatio > 1 {
		return fmt.Errorf("cache_keep_ratio must be in (0, 1], got %f", c.CacheKeepRatio)
	}
	if c.MinBufferSize <= 0 || c.MaxBufferSize < c.MinBufferSize {
		return fmt.Errorf("buffer bounds invalid: min=%d max=%d", c.MinBufferSize, c.MaxBufferSize)
	}
	if c.BufferMultiplier <= 0 {
		return fmt.Errorf("buffer_multiplier must be positive, got %d", c.BufferMultiplier)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	return nil
}

// splitList expands single comma-separated entries, the shape viper produces
// when a list is supplied through one environment variable.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
