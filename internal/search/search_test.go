package search

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		SearchTimeout:       5 * time.Second,
		PaginationCacheTTL:  time.Minute,
		PaginationCacheSize: 100,
		CacheKeepRatio:      0.8,
		MaintenanceInterval: time.Hour,

		MinBufferSize:        4,
		MaxBufferSize:        64,
		BufferMultiplier:     2,
		LargeBufferThreshold: 32,
		DeepPageThreshold:    10,

		MaxResults: 100,
	}
}

// fakeBackend serves a fixed file list and paginates with an integer offset
// cursor, mirroring how the real adapters wrap their native tokens.
type fakeBackend struct {
	name           string
	files          []types.GenomicsFile
	err            error
	searchCalls    int
	lastMaxResults int
	swept          int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(_ context.Context, _ backend.Query) ([]types.GenomicsFile, error) {
	f.searchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.files, nil
}

func (f *fakeBackend) SearchPaginated(_ context.Context, _ backend.Query, pageToken string, maxResults int) ([]types.GenomicsFile, string, int, error) {
	f.searchCalls++
	f.lastMaxResults = maxResults
	if f.err != nil {
		return nil, "", 0, f.err
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", 0, backend.ErrInvalidPageToken
		}
		offset = n
	}
	if offset >= len(f.files) {
		return nil, "", 0, nil
	}
	end := offset + maxResults
	if end > len(f.files) {
		end = len(f.files)
	}
	next := ""
	if end < len(f.files) {
		next = strconv.Itoa(end)
	}
	return f.files[offset:end], next, end - offset, nil
}

func (f *fakeBackend) Sweep() { f.swept++ }

func gf(path string) types.GenomicsFile {
	return types.GenomicsFile{
		Path:         path,
		SizeBytes:    1024,
		StorageClass: "STANDARD",
		LastModified: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testEngine(t *testing.T, backends ...backend.Backend) *Engine {
	t.Helper()
	cfg := testConfig()
	e, err := New(cfg, backends...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(testConfig())
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestSearchValidation(t *testing.T) {
	be := &fakeBackend{name: "a"}
	e := testEngine(t, be)
	ctx := context.Background()

	_, err := e.Search(ctx, Request{MaxResults: 10_000})
	assert.ErrorIs(t, err, ErrInvalidMaxResult)

	_, err = e.Search(ctx, Request{Offset: -1})
	assert.ErrorIs(t, err, ErrInvalidMaxResult)

	_, err = e.Search(ctx, Request{TypeFilter: "spreadsheet"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	assert.Equal(t, 0, be.searchCalls, "invalid requests must not reach backends")
}

func TestSearchRanksAcrossBackends(t *testing.T) {
	a := &fakeBackend{name: "a", files: []types.GenomicsFile{
		gf("s3://b/other/notes.bam"),
		gf("s3://b/sample42/reads.bam"),
	}}
	b := &fakeBackend{name: "b", files: []types.GenomicsFile{
		gf("s3://c/sample42/variants.vcf.gz"),
	}}
	e := testEngine(t, a, b)

	resp, err := e.Search(context.Background(), Request{Terms: []string{"sample42"}, MaxResults: 10})
	require.NoError(t, err)

	require.Equal(t, 3, resp.TotalFound)
	require.Len(t, resp.SearchedBackends, 2)
	assert.Equal(t, "a", resp.SearchedBackends[0].Name)
	assert.Equal(t, 2, resp.SearchedBackends[0].Files)

	// Term matches outrank the non-match.
	assert.Equal(t, "s3://b/other/notes.bam", resp.Results[2].Primary.Path)
	assert.Greater(t, resp.Results[0].RelevanceScore, resp.Results[2].RelevanceScore)
}

func TestSearchDeduplicatesFirstWins(t *testing.T) {
	a := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/reads.bam")}}
	b := &fakeBackend{name: "b", files: []types.GenomicsFile{gf("s3://b/reads.bam")}}
	e := testEngine(t, a, b)

	resp, err := e.Search(context.Background(), Request{MaxResults: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalFound)
}

func TestSearchGroupsIndexWithPrimary(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{
		gf("s3://b/reads.bam"),
		gf("s3://b/reads.bam.bai"),
	}}
	e := testEngine(t, be)

	resp, err := e.Search(context.Background(), Request{MaxResults: 10})
	require.NoError(t, err)

	require.Equal(t, 1, resp.TotalFound)
	assert.Equal(t, "s3://b/reads.bam", resp.Results[0].Primary.Path)
	require.Len(t, resp.Results[0].Associated, 1)
	assert.Equal(t, "s3://b/reads.bam.bai", resp.Results[0].Associated[0].Path)
}

func TestSearchFailingBackendContributesZero(t *testing.T) {
	good := &fakeBackend{name: "good", files: []types.GenomicsFile{gf("s3://b/ok.bam")}}
	bad := &fakeBackend{name: "bad", err: errors.New("listing refused")}
	e := testEngine(t, good, bad)

	resp, err := e.Search(context.Background(), Request{MaxResults: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.TotalFound)
	require.Len(t, resp.SearchedBackends, 2)
	assert.Empty(t, resp.SearchedBackends[0].Error)
	assert.Contains(t, resp.SearchedBackends[1].Error, "listing refused")
}

func TestSearchOffsetPaging(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{
		gf("s3://b/a.bam"), gf("s3://b/b.bam"), gf("s3://b/c.bam"),
	}}
	e := testEngine(t, be)
	ctx := context.Background()

	first, err := e.Search(ctx, Request{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, first.Results, 2)
	assert.Equal(t, 3, first.TotalFound)

	rest, err := e.Search(ctx, Request{MaxResults: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest.Results, 1)

	past, err := e.Search(ctx, Request{MaxResults: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past.Results)
}

func TestSearchPaginatedWalkVisitsEverythingOnce(t *testing.T) {
	var files []types.GenomicsFile
	for i := 0; i < 7; i++ {
		files = append(files, gf("s3://b/f"+strconv.Itoa(i)+".bam"))
	}
	be := &fakeBackend{name: "a", files: files}
	e := testEngine(t, be)
	ctx := context.Background()

	seen := make(map[string]int)
	token := ""
	pages := 0
	for {
		resp, err := e.SearchPaginated(ctx, PaginatedRequest{PageSize: 2, Token: token})
		require.NoError(t, err)
		pages++
		require.LessOrEqual(t, len(resp.Results), 2)
		for _, r := range resp.Results {
			seen[r.Primary.Path]++
		}
		if !resp.HasMore {
			assert.Empty(t, resp.NextToken)
			break
		}
		require.NotEmpty(t, resp.NextToken)
		token = resp.NextToken
		require.Less(t, pages, 20, "walk did not terminate")
	}

	assert.Len(t, seen, 7)
	for path, count := range seen {
		assert.Equal(t, 1, count, "path %s repeated", path)
	}
}

func TestSearchPaginatedSpansBackends(t *testing.T) {
	a := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/a.bam"), gf("s3://b/b.bam")}}
	b := &fakeBackend{name: "b", files: []types.GenomicsFile{gf("omics://seqstore/s1/readSet/r1/source1")}}
	e := testEngine(t, a, b)
	ctx := context.Background()

	seen := make(map[string]bool)
	token := ""
	for i := 0; i < 10; i++ {
		resp, err := e.SearchPaginated(ctx, PaginatedRequest{PageSize: 1, Token: token})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.False(t, seen[r.Primary.Path], "duplicate %s", r.Primary.Path)
			seen[r.Primary.Path] = true
		}
		if !resp.HasMore {
			break
		}
		token = resp.NextToken
	}
	assert.Len(t, seen, 3)
}

func TestSearchPaginatedGarbageTokenStartsFresh(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/a.bam")}}
	e := testEngine(t, be)

	resp, err := e.SearchPaginated(context.Background(), PaginatedRequest{PageSize: 5, Token: "gst1.corrupt"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Len(t, resp.Results, 1)
}

func TestSearchPaginatedForgedBufferSizeRestartsWalk(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{
		gf("s3://b/a.bam"), gf("s3://b/b.bam"), gf("s3://b/c.bam"),
	}}
	e := testEngine(t, be)
	ctx := context.Background()

	for _, bufferSize := range []int{0, -5} {
		forged, err := EncodeToken(ContinuationToken{
			Page:           2,
			BackendCursors: map[string]string{"a": "0"},
			BufferSize:     bufferSize,
		})
		require.NoError(t, err)

		token := forged
		seen := 0
		for i := 0; i < 10; i++ {
			resp, err := e.SearchPaginated(ctx, PaginatedRequest{PageSize: 2, Token: token})
			require.NoError(t, err)
			seen += len(resp.Results)
			if !resp.HasMore {
				break
			}
			require.NotEmpty(t, resp.NextToken)
			token = resp.NextToken
		}
		assert.Equal(t, 3, seen, "buffer_size=%d must restart and terminate", bufferSize)
	}
}

func TestSearchPaginatedClampsOversizedBuffer(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/a.bam")}}
	e := testEngine(t, be)

	forged, err := EncodeToken(ContinuationToken{
		Page:           2,
		BackendCursors: map[string]string{"a": "0"},
		BufferSize:     1 << 30,
		ScoreFloor:     1.0,
	})
	require.NoError(t, err)

	resp, err := e.SearchPaginated(context.Background(), PaginatedRequest{PageSize: 2, Token: forged})
	require.NoError(t, err)
	assert.LessOrEqual(t, be.lastMaxResults, e.cfg.MaxBufferSize)
	assert.False(t, resp.HasMore)
}

func TestSearchPaginatedQueryChangeStartsFresh(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/a.bam"), gf("s3://b/b.bam")}}
	e := testEngine(t, be)
	ctx := context.Background()

	first, err := e.SearchPaginated(ctx, PaginatedRequest{Terms: []string{"alpha"}, PageSize: 1})
	require.NoError(t, err)
	require.True(t, first.HasMore)

	// Same token, different terms: walk restarts at page 1.
	resp, err := e.SearchPaginated(ctx, PaginatedRequest{Terms: []string{"beta"}, PageSize: 1, Token: first.NextToken})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
}

func TestSearchPaginatedReportsMetrics(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/a.bam"), gf("s3://b/b.bam")}}
	e := testEngine(t, be)

	resp, err := e.SearchPaginated(context.Background(), PaginatedRequest{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Metrics.ObjectsScanned)
	assert.False(t, resp.Metrics.BufferOverflow)
}

func TestCursorEscalationServesDeepWalk(t *testing.T) {
	var files []types.GenomicsFile
	for i := 0; i < 12; i++ {
		files = append(files, gf("s3://b/f"+strconv.Itoa(i)+".bam"))
	}
	be := &fakeBackend{name: "a", files: files}

	cfg := testConfig()
	cfg.EnableCursorPagination = true
	cfg.DeepPageThreshold = 2
	e, err := New(cfg, be)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	ctx := context.Background()

	seen := make(map[string]bool)
	token := ""
	sawCursorToken := false
	for i := 0; i < 20; i++ {
		resp, err := e.SearchPaginated(ctx, PaginatedRequest{PageSize: 2, Token: token})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.False(t, seen[r.Primary.Path], "duplicate %s", r.Primary.Path)
			seen[r.Primary.Path] = true
		}
		if !resp.HasMore {
			break
		}
		token = resp.NextToken
		if IsCursorToken(token) {
			sawCursorToken = true
		}
	}

	assert.True(t, sawCursorToken, "deep walk never escalated to the cursor strategy")
	assert.Len(t, seen, 12)
}

func TestCursorStateMissStartsFresh(t *testing.T) {
	be := &fakeBackend{name: "a", files: []types.GenomicsFile{gf("s3://b/a.bam")}}
	e := testEngine(t, be)

	stale, err := EncodeCursorToken("no-such-state")
	require.NoError(t, err)

	resp, err := e.SearchPaginated(context.Background(), PaginatedRequest{PageSize: 5, Token: stale})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Page)
	assert.Len(t, resp.Results, 1)
}

func TestSweepAllReachesBackends(t *testing.T) {
	be := &fakeBackend{name: "a"}
	e := testEngine(t, be)

	e.sweepAll()
	assert.Equal(t, 1, be.swept)
}
