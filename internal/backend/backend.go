// Package backend defines the storage backend contract shared by every
// search adapter. A Backend lists genomics files from one storage system
// and optionally supports native pagination for deep result walks.
package backend

import (
	"context"
	"crypto/sha256"
	"errors"
	"sort"
	"strings"

	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// Sentinel errors shared by backend constructors.
var (
	// ErrDirectConstruction is returned when a backend is built without
	// going through its validated constructor.
	ErrDirectConstruction = errors.New("backend must be created through NewFromConfig or NewForTesting")

	// ErrInvalidPageToken is returned when a native page token cannot be
	// resumed by the backend that issued it.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// Query carries the normalized search parameters handed to a backend.
type Query struct {
	// Terms are the lowercase search patterns. Empty means match-all.
	Terms []string

	// TypeFilter restricts results to one file type or category. Empty
	// means no restriction.
	TypeFilter string
}

// Hash returns a stable digest of the query, usable as a cache key.
func (q Query) Hash() [32]byte {
	var b strings.Builder
	terms := make([]string, len(q.Terms))
	copy(terms, q.Terms)
	sort.Strings(terms)
	b.WriteString(strings.Join(terms, ","))
	b.WriteString("|")
	b.WriteString(q.TypeFilter)
	return sha256.Sum256([]byte(b.String()))
}

// Backend is implemented by every storage adapter.
type Backend interface {
	// Name identifies the backend in responses and logs.
	Name() string

	// Search returns every matching file. Used by the single-shot search
	// path where result sets are expected to be small.
	Search(ctx context.Context, query Query) ([]types.GenomicsFile, error)

	// SearchPaginated returns up to maxResults matching files starting
	// from pageToken ("" for the first page), the token for the next page
	// ("" when exhausted), and the number of objects scanned to produce
	// the page.
	SearchPaginated(ctx context.Context, query Query, pageToken string, maxResults int) (files []types.GenomicsFile, nextToken string, scanned int, err error)
}
