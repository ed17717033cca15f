package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxConcurrentRequests)
	assert.Equal(t, 30*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 0.8, cfg.CacheKeepRatio)
	assert.Equal(t, 100, cfg.MinBufferSize)
	assert.True(t, cfg.EnableCursorPagination)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GENOMESEARCH_S3_BUCKETS", "s3://bucket-a,s3://bucket-b")
	t.Setenv("GENOMESEARCH_MAX_CONCURRENT_REQUESTS", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"s3://bucket-a", "s3://bucket-b"}, cfg.S3Buckets)
	assert.Equal(t, 4, cfg.MaxConcurrentRequests)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
s3_buckets:
  - s3://genomics-data
search_timeout: 5s
deep_page_threshold: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"s3://genomics-data"}, cfg.S3Buckets)
	assert.Equal(t, 5*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 3, cfg.DeepPageThreshold)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.CacheKeepRatio = 1.5
	assert.Error(t, cfg.Validate())

	cfg.CacheKeepRatio = 0.8
	cfg.MaxBufferSize = cfg.MinBufferSize - 1
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
