// Package s3 implements the object-storage search backend.
//
// Construction is guarded: New refuses direct construction, NewFromConfig
// validates that every configured bucket is reachable, and NewForTesting
// bypasses validation for tests with mock clients.
package s3

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/internal/cache"
	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/internal/logging"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// S3API is the narrow slice of the S3 client used by the backend. Tests
// provide mock implementations.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	GetObjectTagging(ctx context.Context, params *awss3.GetObjectTaggingInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectTaggingOutput, error)
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Backend searches one or more S3 buckets.
type Backend struct {
	client  S3API
	buckets []string

	maxConcurrency int
	tagConcurrency int

	tagCache    *cache.TTLCache[string, map[string]string]
	resultCache *cache.TTLCache[[32]byte, []types.GenomicsFile]
}

// New refuses direct construction. Use NewFromConfig or NewForTesting.
func New() (*Backend, error) {
	return nil, backend.ErrDirectConstruction
}

// NewFromConfig builds a validated backend: every configured bucket must
// answer a HeadBucket call or construction fails.
func NewFromConfig(ctx context.Context, cfg *config.Config, client S3API) (*Backend, error) {
	if len(cfg.S3Buckets) == 0 {
		return nil, fmt.Errorf("no s3 buckets configured")
	}
	for _, bucket := range cfg.S3Buckets {
		_, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucket)})
		if err != nil {
			return nil, fmt.Errorf("bucket %s not reachable: %w", bucket, err)
		}
	}
	return newBackend(client, cfg.S3Buckets, cfg)
}

// NewForTesting builds a backend without reachability validation.
func NewForTesting(client S3API, buckets []string, cfg *config.Config) *Backend {
	b, err := newBackend(client, buckets, cfg)
	if err != nil {
		panic(fmt.Sprintf("invalid test backend config: %v", err))
	}
	return b
}

func newBackend(client S3API, buckets []string, cfg *config.Config) (*Backend, error) {
	tagCache, err := cache.New[string, map[string]string](cfg.TagCacheSize, cfg.TagCacheTTL, cfg.CacheKeepRatio)
	if err != nil {
		return nil, fmt.Errorf("create tag cache: %w", err)
	}
	resultCache, err := cache.New[[32]byte, []types.GenomicsFile](cfg.ResultCacheSize, cfg.ResultCacheTTL, cfg.CacheKeepRatio)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &Backend{
		client:         client,
		buckets:        buckets,
		maxConcurrency: cfg.MaxConcurrentRequests,
		tagConcurrency: cfg.TagConcurrency,
		tagCache:       tagCache,
		resultCache:    resultCache,
	}, nil
}

// Name identifies the backend in responses and logs.
func (b *Backend) Name() string { return "s3" }

// Search lists every configured bucket concurrently and returns the files
// matching the query. A failing bucket is logged and contributes zero
// results; results for the whole query are cached briefly.
func (b *Backend) Search(ctx context.Context, query backend.Query) ([]types.GenomicsFile, error) {
	key := b.resultCacheKey(query)
	if files, ok := b.resultCache.Get(key); ok {
		return files, nil
	}

	files := b.searchBuckets(ctx, query)
	b.resultCache.Put(key, files)
	return files, nil
}

// searchBuckets fans one task per bucket bounded by a semaphore. Per-bucket
// errors are caught and logged so one bad bucket does not fail the search.
func (b *Backend) searchBuckets(ctx context.Context, query backend.Query) []types.GenomicsFile {
	semaphore := make(chan struct{}, b.maxConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var all []types.GenomicsFile

	for _, bucket := range b.buckets {
		g.Go(func() error {
			select {
			case semaphore <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-semaphore }()

			files, err := b.searchBucket(gctx, bucket, query)
			if err != nil {
				logging.Warn("bucket search failed",
					zap.String("bucket", bucket),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			all = append(all, files...)
			mu.Unlock()
			return nil
		})
	}

	// Errors inside tasks were already converted to zero results; the only
	// remaining error is context cancellation, which leaves partial output.
	if err := g.Wait(); err != nil {
		logging.Warn("bucket fan-out interrupted", zap.Error(err))
	}
	return all
}

// searchBucket lists one bucket fully and filters the objects. Unlike
// searchBuckets, errors propagate to the caller.
func (b *Backend) searchBucket(ctx context.Context, bucket string, query backend.Query) ([]types.GenomicsFile, error) {
	var (
		matched   []types.GenomicsFile
		undecided []types.GenomicsFile
	)

	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
		}

		for _, obj := range out.Contents {
			file, decision := b.classify(bucket, obj, query)
			switch decision {
			case decisionMatch:
				matched = append(matched, file)
			case decisionNeedTags:
				undecided = append(undecided, file)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}

	resolved, err := b.resolveByTags(ctx, bucket, undecided, query.Terms)
	if err != nil {
		return nil, err
	}
	return append(matched, resolved...), nil
}

// Classification outcome for a listed object.
type decision int

const (
	decisionSkip decision = iota
	decisionMatch
	decisionNeedTags
)

// classify applies type detection and path-pattern filtering without extra
// backend calls. Objects the path alone cannot resolve are deferred to tag
// retrieval.
func (b *Backend) classify(bucket string, obj s3types.Object, query backend.Query) (types.GenomicsFile, decision) {
	key := aws.ToString(obj.Key)
	path := "s3://" + bucket + "/" + key

	ft, known := filetype.Detect(path)
	if !known {
		return types.GenomicsFile{}, decisionSkip
	}
	if query.TypeFilter != "" && !filetype.MatchesFilter(path, query.TypeFilter) {
		return types.GenomicsFile{}, decisionSkip
	}

	file := types.GenomicsFile{
		Path:         path,
		FileType:     ft,
		SourceSystem: types.SourceS3,
		SizeBytes:    aws.ToInt64(obj.Size),
		StorageClass: string(obj.StorageClass),
		LastModified: aws.ToTime(obj.LastModified),
		Provenance: types.S3Provenance{
			Bucket: bucket,
			Key:    key,
			ETag:   strings.Trim(aws.ToString(obj.ETag), `"`),
		},
	}
	if file.StorageClass == "" {
		file.StorageClass = "STANDARD"
	}

	if len(query.Terms) == 0 || pathMatchesAny(path, query.Terms) {
		return file, decisionMatch
	}
	return file, decisionNeedTags
}

// resolveByTags fetches tags for the undecided objects, bounded by the tag
// semaphore and backed by the tag cache, and keeps the ones whose tags match
// a search term.
func (b *Backend) resolveByTags(ctx context.Context, bucket string, undecided []types.GenomicsFile, terms []string) ([]types.GenomicsFile, error) {
	if len(undecided) == 0 {
		return nil, nil
	}

	semaphore := make(chan struct{}, b.tagConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var resolved []types.GenomicsFile

	for i := range undecided {
		file := undecided[i]
		g.Go(func() error {
			select {
			case semaphore <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-semaphore }()

			tags, err := b.objectTags(gctx, bucket, file)
			if err != nil {
				return fmt.Errorf("get tags for %s: %w", file.Path, err)
			}
			if !tagsMatchAny(tags, terms) {
				return nil
			}
			file.Tags = tags
			mu.Lock()
			resolved = append(resolved, file)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// objectTags returns the object's tag map, consulting the tag cache first.
func (b *Backend) objectTags(ctx context.Context, bucket string, file types.GenomicsFile) (map[string]string, error) {
	if tags, ok := b.tagCache.Get(file.Path); ok {
		return tags, nil
	}

	prov, ok := file.Provenance.(types.S3Provenance)
	if !ok {
		return nil, fmt.Errorf("file %s has no s3 provenance", file.Path)
	}
	out, err := b.client.GetObjectTagging(ctx, &awss3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(prov.Key),
	})
	if err != nil {
		return nil, err
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	b.tagCache.Put(file.Path, tags)
	return tags, nil
}

// SearchPaginated lists the configured buckets sequentially using the native
// S3 continuation token and stops once maxResults matches have been found.
// The returned token encodes the bucket index and the in-bucket cursor; the
// scanned count reports how many raw objects were examined for this page.
func (b *Backend) SearchPaginated(ctx context.Context, query backend.Query, pageToken string, maxResults int) ([]types.GenomicsFile, string, int, error) {
	bucketIdx, cursor, err := splitPageToken(pageToken)
	if err != nil {
		return nil, "", 0, err
	}
	if bucketIdx >= len(b.buckets) {
		return nil, "", 0, fmt.Errorf("%w: bucket index out of range", backend.ErrInvalidPageToken)
	}

	var (
		files   []types.GenomicsFile
		scanned int
	)

	for bucketIdx < len(b.buckets) {
		bucket := b.buckets[bucketIdx]

		var token *string
		if cursor != "" {
			token = aws.String(cursor)
		}
		out, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
			MaxKeys:           aws.Int32(int32(listPageSize(maxResults))),
		})
		if err != nil {
			return nil, "", scanned, fmt.Errorf("list bucket %s: %w", bucket, err)
		}

		scanned += len(out.Contents)

		var undecided []types.GenomicsFile
		for _, obj := range out.Contents {
			file, d := b.classify(bucket, obj, query)
			switch d {
			case decisionMatch:
				files = append(files, file)
			case decisionNeedTags:
				undecided = append(undecided, file)
			}
		}
		resolved, err := b.resolveByTags(ctx, bucket, undecided, query.Terms)
		if err != nil {
			return nil, "", scanned, err
		}
		files = append(files, resolved...)

		truncated := out.IsTruncated != nil && *out.IsTruncated
		if truncated {
			cursor = aws.ToString(out.NextContinuationToken)
		} else {
			bucketIdx++
			cursor = ""
		}

		if len(files) >= maxResults {
			if !truncated && bucketIdx >= len(b.buckets) {
				return files, "", scanned, nil
			}
			return files, joinPageToken(bucketIdx, cursor), scanned, nil
		}
	}

	return files, "", scanned, nil
}

// Sweep removes expired entries from both caches. Called by the
// orchestrator's background maintenance loop.
func (b *Backend) Sweep() {
	b.tagCache.Sweep()
	b.resultCache.Sweep()
}

// CacheHitRatio reports the combined hit ratio of both caches.
func (b *Backend) CacheHitRatio() float64 {
	return (b.tagCache.HitRatio() + b.resultCache.HitRatio()) / 2
}

func (b *Backend) resultCacheKey(query backend.Query) [32]byte {
	q := backend.Query{
		Terms:      append([]string{"buckets:" + strings.Join(b.buckets, ",")}, query.Terms...),
		TypeFilter: query.TypeFilter,
	}
	return q.Hash()
}

// listPageSize caps the per-call listing size. S3 allows at most 1000 keys.
func listPageSize(maxResults int) int {
	size := maxResults * 2
	if size < 100 {
		size = 100
	}
	if size > 1000 {
		size = 1000
	}
	return size
}

// splitPageToken decodes "<bucketIdx>:<s3cursor>". Empty means first page.
func splitPageToken(token string) (int, string, error) {
	if token == "" {
		return 0, "", nil
	}
	idx := strings.Index(token, ":")
	if idx < 0 {
		return 0, "", fmt.Errorf("%w: missing separator", backend.ErrInvalidPageToken)
	}
	var bucketIdx int
	if _, err := fmt.Sscanf(token[:idx], "%d", &bucketIdx); err != nil || bucketIdx < 0 {
		return 0, "", fmt.Errorf("%w: bad bucket index", backend.ErrInvalidPageToken)
	}
	return bucketIdx, token[idx+1:], nil
}

func joinPageToken(bucketIdx int, cursor string) string {
	return fmt.Sprintf("%d:%s", bucketIdx, cursor)
}

func pathMatchesAny(path string, terms []string) bool {
	lower := strings.ToLower(path)
	for _, t := range terms {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func tagsMatchAny(tags map[string]string, terms []string) bool {
	for k, v := range tags {
		lk, lv := strings.ToLower(k), strings.ToLower(v)
		for _, t := range terms {
			if t == "" {
				continue
			}
			lt := strings.ToLower(t)
			if strings.Contains(lk, lt) || strings.Contains(lv, lt) {
				return true
			}
		}
	}
	return false
}

var _ backend.Backend = (*Backend)(nil)
