// Package omics implements search backends over AWS HealthOmics stores.
//
// Two adapters share one narrow API surface: SequenceStoreBackend lists read
// sets and expands each into source and index files, ReferenceStoreBackend
// lists reference genomes with their indexes. Files are addressed with
// omics:// paths since the stores expose no object keys.
package omics

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsomics "github.com/aws/aws-sdk-go-v2/service/omics"
	omicstypes "github.com/aws/aws-sdk-go-v2/service/omics/types"
	"go.uber.org/zap"

	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/internal/logging"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// OmicsAPI is the slice of the HealthOmics client used by both adapters.
type OmicsAPI interface {
	ListReadSets(ctx context.Context, params *awsomics.ListReadSetsInput, optFns ...func(*awsomics.Options)) (*awsomics.ListReadSetsOutput, error)
	GetReadSetMetadata(ctx context.Context, params *awsomics.GetReadSetMetadataInput, optFns ...func(*awsomics.Options)) (*awsomics.GetReadSetMetadataOutput, error)
	ListReferences(ctx context.Context, params *awsomics.ListReferencesInput, optFns ...func(*awsomics.Options)) (*awsomics.ListReferencesOutput, error)
}

// readSetFileTypes maps the store-declared read set file type to ours.
var readSetFileTypes = map[omicstypes.FileType]types.FileType{
	omicstypes.FileTypeFastq: types.FileTypeFASTQ,
	omicstypes.FileTypeBam:   types.FileTypeBAM,
	omicstypes.FileTypeCram:  types.FileTypeCRAM,
	omicstypes.FileTypeUbam:  types.FileTypeBAM,
}

// storageClassForStatus maps read set archive status to a storage tier name
// consumed by the scoring engine.
func storageClassForStatus(status omicstypes.ReadSetStatus) string {
	if status == omicstypes.ReadSetStatusArchived {
		return "ARCHIVE"
	}
	return "ACTIVE"
}

// SequenceStoreBackend searches HealthOmics sequence stores.
type SequenceStoreBackend struct {
	client   OmicsAPI
	storeIDs []string
	pageSize int32
}

// NewSequenceStore builds the sequence store adapter from configuration.
func NewSequenceStore(cfg *config.Config, client OmicsAPI) *SequenceStoreBackend {
	return &SequenceStoreBackend{
		client:   client,
		storeIDs: cfg.SequenceStoreIDs,
		pageSize: 100,
	}
}

// Name identifies the backend in responses and logs.
func (b *SequenceStoreBackend) Name() string { return "sequence_store" }

// Search lists every configured sequence store fully. A failing store is
// logged and contributes zero results.
func (b *SequenceStoreBackend) Search(ctx context.Context, query backend.Query) ([]types.GenomicsFile, error) {
	var all []types.GenomicsFile
	for _, storeID := range b.storeIDs {
		files, err := b.searchStore(ctx, storeID, query, "", 0)
		if err != nil {
			logging.Warn("sequence store search failed",
				zap.String("store_id", storeID),
				zap.Error(err))
			continue
		}
		all = append(all, files.files...)
	}
	return all, nil
}

// SearchPaginated resumes the native NextToken cursor. The page token encodes
// the store index alongside the store's own cursor.
func (b *SequenceStoreBackend) SearchPaginated(ctx context.Context, query backend.Query, pageToken string, maxResults int) ([]types.GenomicsFile, string, int, error) {
	storeIdx, cursor, err := decodeStoreToken(pageToken, len(b.storeIDs))
	if err != nil {
		return nil, "", 0, err
	}

	var (
		files   []types.GenomicsFile
		scanned int
	)
	for storeIdx < len(b.storeIDs) {
		page, err := b.searchStore(ctx, b.storeIDs[storeIdx], query, cursor, int32(maxResults))
		if err != nil {
			return nil, "", scanned, err
		}
		files = append(files, page.files...)
		scanned += page.scanned

		if page.nextToken != "" {
			cursor = page.nextToken
		} else {
			storeIdx++
			cursor = ""
		}
		if len(files) >= maxResults {
			if cursor == "" && storeIdx >= len(b.storeIDs) {
				return files, "", scanned, nil
			}
			return files, encodeStoreToken(storeIdx, cursor), scanned, nil
		}
	}
	return files, "", scanned, nil
}

type storePage struct {
	files     []types.GenomicsFile
	nextToken string
	scanned   int
}

// searchStore lists read sets from one store. When maxResults is zero the
// store is walked completely; otherwise a single page is fetched from cursor.
func (b *SequenceStoreBackend) searchStore(ctx context.Context, storeID string, query backend.Query, cursor string, maxResults int32) (*storePage, error) {
	page := &storePage{}
	var token *string
	if cursor != "" {
		token = aws.String(cursor)
	}

	for {
		input := &awsomics.ListReadSetsInput{
			SequenceStoreId: aws.String(storeID),
			MaxResults:      aws.Int32(b.pageSize),
			NextToken:       token,
		}
		out, err := b.client.ListReadSets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list read sets in %s: %w", storeID, err)
		}

		page.scanned += len(out.ReadSets)
		for _, rs := range out.ReadSets {
			files, err := b.expandReadSet(ctx, storeID, rs, query)
			if err != nil {
				logging.Warn("read set expansion failed",
					zap.String("store_id", storeID),
					zap.String("read_set_id", aws.ToString(rs.Id)),
					zap.Error(err))
				continue
			}
			page.files = append(page.files, files...)
		}

		if out.NextToken == nil {
			return page, nil
		}
		token = out.NextToken
		if maxResults > 0 {
			page.nextToken = aws.ToString(out.NextToken)
			return page, nil
		}
	}
}

// expandReadSet turns one read set into its per-slot files, filtered by the
// query. Metadata is only fetched for read sets that pass the cheap filters.
func (b *SequenceStoreBackend) expandReadSet(ctx context.Context, storeID string, rs omicstypes.ReadSetListItem, query backend.Query) ([]types.GenomicsFile, error) {
	ft, ok := readSetFileTypes[rs.FileType]
	if !ok {
		return nil, nil
	}
	if !filetype.TypeMatchesFilter(ft, query.TypeFilter) {
		return nil, nil
	}
	if !readSetMatches(rs, query.Terms) {
		return nil, nil
	}

	meta, err := b.client.GetReadSetMetadata(ctx, &awsomics.GetReadSetMetadataInput{
		Id:              rs.Id,
		SequenceStoreId: aws.String(storeID),
	})
	if err != nil {
		return nil, fmt.Errorf("read set metadata %s: %w", aws.ToString(rs.Id), err)
	}
	if meta.Files == nil {
		return nil, nil
	}

	readSetID := aws.ToString(rs.Id)
	paired := meta.Files.Source2 != nil
	prov := func(source string) types.ReadSetProvenance {
		return types.ReadSetProvenance{
			SequenceStoreID: storeID,
			ReadSetID:       readSetID,
			Source:          source,
			Paired:          paired,
			SampleID:        aws.ToString(rs.SampleId),
			SubjectID:       aws.ToString(rs.SubjectId),
		}
	}

	build := func(source string, info *omicstypes.FileInformation, fileType types.FileType) types.GenomicsFile {
		return types.GenomicsFile{
			Path:         readSetPath(storeID, readSetID, source),
			FileType:     fileType,
			SourceSystem: types.SourceSequenceStore,
			SizeBytes:    fileSize(info),
			StorageClass: storageClassForStatus(rs.Status),
			LastModified: aws.ToTime(rs.CreationTime),
			Provenance:   prov(source),
			Metadata: map[string]string{
				"name":       aws.ToString(rs.Name),
				"sample_id":  aws.ToString(rs.SampleId),
				"subject_id": aws.ToString(rs.SubjectId),
			},
		}
	}

	var files []types.GenomicsFile
	if meta.Files.Source1 != nil {
		files = append(files, build("source1", meta.Files.Source1, ft))
	}
	if meta.Files.Source2 != nil {
		files = append(files, build("source2", meta.Files.Source2, ft))
	}
	if meta.Files.Index != nil {
		files = append(files, build("index", meta.Files.Index, indexTypeFor(ft)))
	}
	return files, nil
}

// readSetMatches applies term matching against the read set identifiers.
// Empty terms match everything.
func readSetMatches(rs omicstypes.ReadSetListItem, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{
		aws.ToString(rs.Name),
		aws.ToString(rs.SampleId),
		aws.ToString(rs.SubjectId),
		aws.ToString(rs.Id),
		aws.ToString(rs.Description),
	}, "\n"))
	for _, t := range terms {
		if t != "" && strings.Contains(haystack, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// ReferenceStoreBackend searches HealthOmics reference stores.
type ReferenceStoreBackend struct {
	client   OmicsAPI
	storeIDs []string
	pageSize int32
}

// NewReferenceStore builds the reference store adapter from configuration.
func NewReferenceStore(cfg *config.Config, client OmicsAPI) *ReferenceStoreBackend {
	return &ReferenceStoreBackend{
		client:   client,
		storeIDs: cfg.ReferenceStoreIDs,
		pageSize: 100,
	}
}

// Name identifies the backend in responses and logs.
func (b *ReferenceStoreBackend) Name() string { return "reference_store" }

// Search lists every configured reference store fully. A failing store is
// logged and contributes zero results.
func (b *ReferenceStoreBackend) Search(ctx context.Context, query backend.Query) ([]types.GenomicsFile, error) {
	var all []types.GenomicsFile
	for _, storeID := range b.storeIDs {
		page, err := b.searchStore(ctx, storeID, query, "", 0)
		if err != nil {
			logging.Warn("reference store search failed",
				zap.String("store_id", storeID),
				zap.Error(err))
			continue
		}
		all = append(all, page.files...)
	}
	return all, nil
}

// SearchPaginated resumes the native NextToken cursor, same token shape as
// the sequence store adapter.
func (b *ReferenceStoreBackend) SearchPaginated(ctx context.Context, query backend.Query, pageToken string, maxResults int) ([]types.GenomicsFile, string, int, error) {
	storeIdx, cursor, err := decodeStoreToken(pageToken, len(b.storeIDs))
	if err != nil {
		return nil, "", 0, err
	}

	var (
		files   []types.GenomicsFile
		scanned int
	)
	for storeIdx < len(b.storeIDs) {
		page, err := b.searchStore(ctx, b.storeIDs[storeIdx], query, cursor, int32(maxResults))
		if err != nil {
			return nil, "", scanned, err
		}
		files = append(files, page.files...)
		scanned += page.scanned

		if page.nextToken != "" {
			cursor = page.nextToken
		} else {
			storeIdx++
			cursor = ""
		}
		if len(files) >= maxResults {
			if cursor == "" && storeIdx >= len(b.storeIDs) {
				return files, "", scanned, nil
			}
			return files, encodeStoreToken(storeIdx, cursor), scanned, nil
		}
	}
	return files, "", scanned, nil
}

func (b *ReferenceStoreBackend) searchStore(ctx context.Context, storeID string, query backend.Query, cursor string, maxResults int32) (*storePage, error) {
	// References are FASTA files; a filter that excludes them skips the
	// whole store without any backend call.
	if !filetype.TypeMatchesFilter(types.FileTypeFASTA, query.TypeFilter) &&
		!filetype.TypeMatchesFilter(types.FileTypeFAI, query.TypeFilter) {
		return &storePage{}, nil
	}

	page := &storePage{}
	var token *string
	if cursor != "" {
		token = aws.String(cursor)
	}

	for {
		out, err := b.client.ListReferences(ctx, &awsomics.ListReferencesInput{
			ReferenceStoreId: aws.String(storeID),
			MaxResults:       aws.Int32(b.pageSize),
			NextToken:        token,
		})
		if err != nil {
			return nil, fmt.Errorf("list references in %s: %w", storeID, err)
		}

		page.scanned += len(out.References)
		for _, ref := range out.References {
			page.files = append(page.files, b.expandReference(storeID, ref, query)...)
		}

		if out.NextToken == nil {
			return page, nil
		}
		token = out.NextToken
		if maxResults > 0 {
			page.nextToken = aws.ToString(out.NextToken)
			return page, nil
		}
	}
}

// expandReference turns one reference into its source and index files.
func (b *ReferenceStoreBackend) expandReference(storeID string, ref omicstypes.ReferenceListItem, query backend.Query) []types.GenomicsFile {
	if !referenceMatches(ref, query.Terms) {
		return nil
	}

	refID := aws.ToString(ref.Id)
	build := func(source string, ft types.FileType) types.GenomicsFile {
		f := types.GenomicsFile{
			Path:         referencePath(storeID, refID, source),
			FileType:     ft,
			SourceSystem: types.SourceReferenceStore,
			StorageClass: "ACTIVE",
			LastModified: aws.ToTime(ref.UpdateTime),
			Provenance: types.ReferenceProvenance{
				ReferenceStoreID: storeID,
				ReferenceID:      refID,
				Source:           source,
				MD5:              aws.ToString(ref.Md5),
			},
			Metadata: map[string]string{
				"name": aws.ToString(ref.Name),
			},
		}
		if desc := aws.ToString(ref.Description); desc != "" {
			f.Metadata["description"] = desc
		}
		return f
	}

	var files []types.GenomicsFile
	if filetype.TypeMatchesFilter(types.FileTypeFASTA, query.TypeFilter) {
		files = append(files, build("source", types.FileTypeFASTA))
	}
	if filetype.TypeMatchesFilter(types.FileTypeFAI, query.TypeFilter) {
		files = append(files, build("index", types.FileTypeFAI))
	}
	return files
}

func referenceMatches(ref omicstypes.ReferenceListItem, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join([]string{
		aws.ToString(ref.Name),
		aws.ToString(ref.Id),
		aws.ToString(ref.Description),
	}, "\n"))
	for _, t := range terms {
		if t != "" && strings.Contains(haystack, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// readSetPath and referencePath build the omics:// addressing scheme used
// across the module for managed-store files.
func readSetPath(storeID, readSetID, source string) string {
	return fmt.Sprintf("omics://seqstore/%s/readSet/%s/%s", storeID, readSetID, source)
}

func referencePath(storeID, refID, source string) string {
	return fmt.Sprintf("omics://refstore/%s/reference/%s/%s", storeID, refID, source)
}

// indexTypeFor returns the index file type matching a read set's data type.
func indexTypeFor(ft types.FileType) types.FileType {
	switch ft {
	case types.FileTypeCRAM:
		return types.FileTypeCRAI
	default:
		return types.FileTypeBAI
	}
}

func fileSize(info *omicstypes.FileInformation) int64 {
	if info == nil || info.ContentLength == nil {
		return 0
	}
	return *info.ContentLength
}

// decodeStoreToken splits "<storeIdx>:<cursor>". Empty means first page.
func decodeStoreToken(token string, storeCount int) (int, string, error) {
	if token == "" {
		return 0, "", nil
	}
	sep := strings.Index(token, ":")
	if sep < 0 {
		return 0, "", fmt.Errorf("%w: missing separator", backend.ErrInvalidPageToken)
	}
	var idx int
	if _, err := fmt.Sscanf(token[:sep], "%d", &idx); err != nil || idx < 0 || idx > storeCount {
		return 0, "", fmt.Errorf("%w: bad store index", backend.ErrInvalidPageToken)
	}
	return idx, token[sep+1:], nil
}

func encodeStoreToken(storeIdx int, cursor string) string {
	return fmt.Sprintf("%d:%s", storeIdx, cursor)
}

var (
	_ backend.Backend = (*SequenceStoreBackend)(nil)
	_ backend.Backend = (*ReferenceStoreBackend)(nil)
)
