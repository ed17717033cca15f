// Package manifest implements a search backend over a local SQLite manifest.
//
// A manifest is a pre-built inventory of genomics files (path, size, tier,
// tags), used for offline development and integration tests where no cloud
// backend is reachable. The pure Go sqlite driver keeps the binary free of
// cgo.
package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS files (
    path          TEXT PRIMARY KEY,
    size_bytes    INTEGER NOT NULL DEFAULT 0,
    storage_class TEXT NOT NULL DEFAULT 'STANDARD',
    last_modified TIMESTAMP,
    tags          TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
`

// Backend reads genomics file records from a SQLite manifest database.
type Backend struct {
	db *sql.DB
}

// Open opens (or creates) the manifest database at path and ensures the
// schema exists.
func Open(path string) (*Backend, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}

	// WAL mode for concurrent readers; sqlite prefers a single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init manifest schema: %w", err)
	}
	return &Backend{db: db}, nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Name identifies the backend in responses and logs.
func (b *Backend) Name() string { return "manifest" }

// Add inserts or replaces one manifest record. Used by tests and by the
// manifest build tooling.
func (b *Backend) Add(ctx context.Context, file types.GenomicsFile) error {
	if err := file.Validate(); err != nil {
		return err
	}
	tags, err := json.Marshal(file.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags for %s: %w", file.Path, err)
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO files (path, size_bytes, storage_class, last_modified, tags)
		VALUES (?, ?, ?, ?, ?)`,
		file.Path, file.SizeBytes, file.StorageClass, file.LastModified, string(tags))
	if err != nil {
		return fmt.Errorf("insert manifest record %s: %w", file.Path, err)
	}
	return nil
}

// Search returns every manifest record matching the query.
func (b *Backend) Search(ctx context.Context, query backend.Query) ([]types.GenomicsFile, error) {
	files, _, _, err := b.SearchPaginated(ctx, query, "", 0)
	return files, err
}

// SearchPaginated walks the manifest in stable path order using LIMIT/OFFSET.
// The page token is the row offset; maxResults <= 0 returns everything.
func (b *Backend) SearchPaginated(ctx context.Context, query backend.Query, pageToken string, maxResults int) ([]types.GenomicsFile, string, int, error) {
	offset, err := decodeOffsetToken(pageToken)
	if err != nil {
		return nil, "", 0, err
	}

	const batchSize = 500
	var (
		files   []types.GenomicsFile
		scanned int
	)

	for {
		rows, err := b.fetchBatch(ctx, offset, batchSize)
		if err != nil {
			return nil, "", scanned, err
		}
		if len(rows) == 0 {
			return files, "", scanned, nil
		}

		for i, file := range rows {
			scanned++
			if !matches(file, query) {
				continue
			}
			files = append(files, file)
			if maxResults > 0 && len(files) >= maxResults {
				next := offset + i + 1
				// Probe whether anything follows before issuing a token.
				if i+1 < len(rows) || len(rows) == batchSize {
					return files, strconv.Itoa(next), scanned, nil
				}
				return files, "", scanned, nil
			}
		}
		offset += len(rows)
	}
}

func (b *Backend) fetchBatch(ctx context.Context, offset, limit int) ([]types.GenomicsFile, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT path, size_bytes, storage_class, last_modified, tags
		FROM files ORDER BY path LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.GenomicsFile
	for rows.Next() {
		var (
			file     types.GenomicsFile
			modified sql.NullTime
			tagsJSON string
		)
		if err := rows.Scan(&file.Path, &file.SizeBytes, &file.StorageClass, &modified, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		if modified.Valid {
			file.LastModified = modified.Time
		}
		if tagsJSON != "" && tagsJSON != "{}" {
			if err := json.Unmarshal([]byte(tagsJSON), &file.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", file.Path, err)
			}
		}
		file.SourceSystem = types.SourceManifest
		if ft, ok := filetype.BaseType(file.Path); ok {
			file.FileType = ft
		} else {
			file.FileType = types.FileTypeUnknown
		}
		out = append(out, file)
	}
	return out, rows.Err()
}

// matches applies the type and term filters to one record.
func matches(file types.GenomicsFile, query backend.Query) bool {
	if file.FileType == types.FileTypeUnknown {
		return false
	}
	if !filetype.TypeMatchesFilter(file.FileType, query.TypeFilter) {
		return false
	}
	if len(query.Terms) == 0 {
		return true
	}
	lower := strings.ToLower(file.Path)
	for _, t := range query.Terms {
		if t == "" {
			continue
		}
		lt := strings.ToLower(t)
		if strings.Contains(lower, lt) {
			return true
		}
		for k, v := range file.Tags {
			if strings.Contains(strings.ToLower(k), lt) || strings.Contains(strings.ToLower(v), lt) {
				return true
			}
		}
	}
	return false
}

func decodeOffsetToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: bad offset", backend.ErrInvalidPageToken)
	}
	return offset, nil
}

var _ backend.Backend = (*Backend)(nil)
