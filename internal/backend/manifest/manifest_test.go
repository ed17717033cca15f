package manifest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

func openTestManifest(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func record(path string, tags map[string]string) types.GenomicsFile {
	return types.GenomicsFile{
		Path:         path,
		SourceSystem: types.SourceManifest,
		SizeBytes:    2048,
		StorageClass: "STANDARD",
		LastModified: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Tags:         tags,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	b := openTestManifest(t)
	files, err := b.Search(context.Background(), backend.Query{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestAddAndSearch(t *testing.T) {
	b := openTestManifest(t)
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, record("data/NA12878.bam", nil)))
	require.NoError(t, b.Add(ctx, record("data/NA12878.bam.bai", nil)))
	require.NoError(t, b.Add(ctx, record("data/other.vcf.gz", nil)))
	require.NoError(t, b.Add(ctx, record("data/readme.txt", nil)))

	files, err := b.Search(ctx, backend.Query{})
	require.NoError(t, err)
	assert.Len(t, files, 3, "unknown file types are skipped")

	files, err = b.Search(ctx, backend.Query{TypeFilter: "bam"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "data/NA12878.bam", files[0].Path)
	assert.Equal(t, types.FileTypeBAM, files[0].FileType)
	assert.Equal(t, types.SourceManifest, files[0].SourceSystem)
}

func TestSearchMatchesTags(t *testing.T) {
	b := openTestManifest(t)
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, record("runs/r1.bam", map[string]string{"sample": "NA12878"})))
	require.NoError(t, b.Add(ctx, record("runs/r2.bam", map[string]string{"sample": "NA24385"})))

	files, err := b.Search(ctx, backend.Query{Terms: []string{"na12878"}})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "runs/r1.bam", files[0].Path)
	assert.Equal(t, "NA12878", files[0].Tags["sample"])
}

func TestAddRejectsInvalidRecord(t *testing.T) {
	b := openTestManifest(t)
	err := b.Add(context.Background(), types.GenomicsFile{SourceSystem: types.SourceManifest})
	assert.Error(t, err)
}

func TestSearchPaginatedStablePathOrderNoDuplicates(t *testing.T) {
	b := openTestManifest(t)
	ctx := context.Background()

	paths := []string{"a.bam", "b.bam", "c.vcf", "d.fastq", "e.cram", "f.bam"}
	for _, p := range paths {
		require.NoError(t, b.Add(ctx, record(p, nil)))
	}

	var collected []string
	token := ""
	for {
		files, next, scanned, err := b.SearchPaginated(ctx, backend.Query{}, token, 2)
		require.NoError(t, err)
		assert.Positive(t, scanned)
		for _, f := range files {
			collected = append(collected, f.Path)
		}
		if next == "" {
			break
		}
		token = next
	}

	assert.Equal(t, paths, collected, "pages walk path order without duplicates")
}

func TestSearchPaginatedRejectsGarbageToken(t *testing.T) {
	b := openTestManifest(t)
	_, _, _, err := b.SearchPaginated(context.Background(), backend.Query{}, "garbage", 5)
	assert.ErrorIs(t, err, backend.ErrInvalidPageToken)
}

func TestAddReplacesExistingPath(t *testing.T) {
	b := openTestManifest(t)
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, record("x.bam", nil)))
	updated := record("x.bam", map[string]string{"rev": "2"})
	updated.SizeBytes = 4096
	require.NoError(t, b.Add(ctx, updated))

	files, err := b.Search(ctx, backend.Query{})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, int64(4096), files[0].SizeBytes)
}
