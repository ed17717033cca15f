// Package search implements the orchestrator that fans a query out to the
// configured backends, merges and deduplicates the results, runs association
// and scoring, and paginates the ranked output.
//
// Two pagination strategies exist. The standard strategy resumes each
// backend's native cursor and carries a score floor in the continuation
// token so later pages skip results that would have sorted above it; the
// ordering across pages is best-effort under concurrent fan-out, not strict.
// The cursor strategy materializes the full ranked result set server-side
// and serves slices from the pagination-state cache; the orchestrator
// escalates to it when the requested buffer or page depth crosses the
// configured thresholds.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jtreece/genomesearch-mcp/internal/association"
	"github.com/jtreece/genomesearch-mcp/internal/backend"
	"github.com/jtreece/genomesearch-mcp/internal/cache"
	"github.com/jtreece/genomesearch-mcp/internal/config"
	"github.com/jtreece/genomesearch-mcp/internal/filetype"
	"github.com/jtreece/genomesearch-mcp/internal/logging"
	"github.com/jtreece/genomesearch-mcp/internal/scoring"
	"github.com/jtreece/genomesearch-mcp/pkg/types"
)

// Validation errors surfaced verbatim to the caller.
var (
	ErrNoBackends       = errors.New("no backends configured")
	ErrInvalidMaxResult = errors.New("max_results out of range")
	ErrInvalidFilter    = errors.New("unknown file type filter")
)

// Sweeper is implemented by backends that maintain internal caches; the
// engine's background maintenance loop calls Sweep on each.
type Sweeper interface {
	Sweep()
}

// hitRatioReporter is implemented by backends that track cache hit ratios.
type hitRatioReporter interface {
	CacheHitRatio() float64
}

// Request is a single-shot search.
type Request struct {
	Terms      []string
	TypeFilter string
	MaxResults int
	Offset     int
}

// PaginatedRequest is one page of a token-driven search walk.
type PaginatedRequest struct {
	Terms      []string
	TypeFilter string
	PageSize   int
	Token      string
}

// BackendStatus reports one backend's contribution to a search.
type BackendStatus struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Files    int           `json:"files"`
	Error    string        `json:"error,omitempty"`
}

// Response is the ranked output of a single-shot search.
type Response struct {
	Results          []types.ScoredResult `json:"results"`
	TotalFound       int                  `json:"total_found"`
	SearchedBackends []BackendStatus      `json:"searched_backends"`
	Duration         time.Duration        `json:"duration"`
}

// Metrics carries the pagination telemetry for one page.
type Metrics struct {
	ObjectsScanned int     `json:"objects_scanned"`
	CacheHitRatio  float64 `json:"cache_hit_ratio"`
	BufferOverflow bool    `json:"buffer_overflow"`
}

// PaginatedResponse is one page of a token-driven search walk.
type PaginatedResponse struct {
	Results          []types.ScoredResult `json:"results"`
	Page             int                  `json:"page"`
	NextToken        string               `json:"next_token,omitempty"`
	HasMore          bool                 `json:"has_more"`
	SearchedBackends []BackendStatus      `json:"searched_backends"`
	Duration         time.Duration        `json:"duration"`
	Metrics          Metrics              `json:"metrics"`
}

// cursorState is the server-side state behind a cursor token: the full
// ranked result set with a read offset. States are immutable; each served
// page mints a fresh state ID for the next offset.
type cursorState struct {
	query   backend.Query
	results []types.ScoredResult
	offset  int
	page    int
	scanned int
}

// carryState holds the ranked remainder of a standard-strategy page that did
// not fit in the page, so the next page can serve it without refetching.
type carryState struct {
	results []types.ScoredResult
}

// Engine coordinates search across the configured backends.
type Engine struct {
	backends []backend.Backend
	assoc    *association.Engine
	scorer   *scoring.Engine
	cfg      *config.Config

	cursorStates *cache.TTLCache[string, *cursorState]
	carryStates  *cache.TTLCache[string, *carryState]

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds an engine over the given backends and starts the background
// cache maintenance loop.
func New(cfg *config.Config, backends ...backend.Backend) (*Engine, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	cursorStates, err := cache.New[string, *cursorState](cfg.PaginationCacheSize, cfg.PaginationCacheTTL, cfg.CacheKeepRatio)
	if err != nil {
		return nil, fmt.Errorf("create pagination cache: %w", err)
	}
	carryStates, err := cache.New[string, *carryState](cfg.PaginationCacheSize, cfg.PaginationCacheTTL, cfg.CacheKeepRatio)
	if err != nil {
		return nil, fmt.Errorf("create carry cache: %w", err)
	}

	e := &Engine{
		backends:     backends,
		assoc:        association.NewEngine(),
		scorer:       scoring.NewEngine(),
		cfg:          cfg,
		cursorStates: cursorStates,
		carryStates:  carryStates,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go e.maintain()
	return e, nil
}

// Close stops the background maintenance loop.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.stop)
		<-e.done
	})
}

// maintain sweeps the engine's and every backend's caches on a fixed
// interval. A sweep failure is logged and never interrupts a search.
func (e *Engine) maintain() {
	defer close(e.done)

	interval := e.cfg.MaintenanceInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweepAll()
		}
	}
}

func (e *Engine) sweepAll() {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("cache maintenance panicked", zap.Any("cause", r))
		}
	}()

	e.cursorStates.Sweep()
	e.carryStates.Sweep()
	for _, be := range e.backends {
		if s, ok := be.(Sweeper); ok {
			s.Sweep()
		}
	}
}

// Search runs the full pipeline and applies simple offset/limit pagination
// over the ranked list.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	maxResults, err := e.validate(req.MaxResults, req.TypeFilter, req.Offset)
	if err != nil {
		return nil, err
	}
	query := backend.Query{Terms: normalizeTerms(req.Terms), TypeFilter: req.TypeFilter}

	files, statuses := e.fanOut(ctx, query)
	results := e.rank(files, query)

	total := len(results)
	results = page(results, req.Offset, maxResults)

	return &Response{
		Results:          results,
		TotalFound:       total,
		SearchedBackends: statuses,
		Duration:         time.Since(start),
	}, nil
}

// rank runs dedupe, virtual index synthesis, association, scoring, and the
// final stable sort. Pure computation, no backend calls.
func (e *Engine) rank(files []types.GenomicsFile, query backend.Query) []types.ScoredResult {
	files = dedupe(files)
	files = association.SynthesizeVirtualIndexes(files)

	groups := e.assoc.Group(files)
	results := make([]types.ScoredResult, 0, len(groups))
	for _, g := range groups {
		score, reasons := e.scorer.Score(g, query.Terms, query.TypeFilter)
		results = append(results, types.ScoredResult{
			Primary:        g.Primary,
			Associated:     g.Associated,
			GroupType:      g.GroupType,
			RelevanceScore: score,
			MatchReasons:   reasons,
		})
	}
	scoring.Rank(results)
	return results
}

// backendRun is the outcome of one backend's fan-out task.
type backendRun struct {
	files   []types.GenomicsFile
	status  BackendStatus
	scanned int
	cursor  string
}

// fanOut queries every backend concurrently, each under its own timeout. A
// backend that fails or times out contributes zero results and is still
// reported in the statuses.
func (e *Engine) fanOut(ctx context.Context, query backend.Query) ([]types.GenomicsFile, []BackendStatus) {
	runs := make([]backendRun, len(e.backends))
	var g errgroup.Group

	for i, be := range e.backends {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
			defer cancel()

			start := time.Now()
			files, err := be.Search(bctx, query)
			runs[i] = backendRun{
				files: files,
				status: BackendStatus{
					Name:     be.Name(),
					Duration: time.Since(start),
					Files:    len(files),
				},
			}
			if err != nil {
				logging.Warn("backend search failed",
					zap.String("backend", be.Name()),
					zap.Error(err))
				runs[i].files = nil
				runs[i].status.Files = 0
				runs[i].status.Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	// Merge in registration order so first-wins dedupe is deterministic.
	var files []types.GenomicsFile
	statuses := make([]BackendStatus, len(runs))
	for i, run := range runs {
		files = append(files, run.files...)
		statuses[i] = run.status
	}
	return files, statuses
}

// SearchPaginated serves one page of a token-driven walk. A malformed or
// expired token is logged and treated as the start of a fresh walk.
func (e *Engine) SearchPaginated(ctx context.Context, req PaginatedRequest) (*PaginatedResponse, error) {
	start := time.Now()

	pageSize, err := e.validate(req.PageSize, req.TypeFilter, 0)
	if err != nil {
		return nil, err
	}
	query := backend.Query{Terms: normalizeTerms(req.Terms), TypeFilter: req.TypeFilter}

	if IsCursorToken(req.Token) {
		if resp := e.serveCursorPage(req.Token, pageSize, start); resp != nil {
			return resp, nil
		}
		logging.Warn("cursor state missing, starting fresh walk")
		req.Token = ""
	}

	tok, fresh := e.resumeToken(req.Token, query, pageSize)

	// Escalate to the cursor strategy when the next buffer would be large
	// or the walk is deep; the full result set is ranked once and served
	// from the pagination cache from here on.
	if e.cfg.EnableCursorPagination && !fresh &&
		(tok.BufferSize > e.cfg.LargeBufferThreshold || tok.Page >= e.cfg.DeepPageThreshold) {
		return e.startCursorWalk(ctx, query, tok, pageSize, start)
	}

	return e.serveStandardPage(ctx, query, tok, fresh, pageSize, start)
}

// resumeToken decodes a standard token, verifying it was minted for the same
// query. Any failure falls back to a fresh walk.
func (e *Engine) resumeToken(token string, query backend.Query, pageSize int) (ContinuationToken, bool) {
	if token == "" {
		return e.freshToken(query, pageSize), true
	}
	tok, err := DecodeToken(token)
	if err != nil {
		logging.Warn("continuation token rejected", zap.Error(err))
		return e.freshToken(query, pageSize), true
	}
	if !sameQuery(tok, query) {
		logging.Warn("continuation token minted for a different query")
		return e.freshToken(query, pageSize), true
	}
	// The buffer size is attacker-controllable token state: a non-positive
	// value would be forwarded to every backend as an unbounded fetch, so
	// it is treated like a malformed token.
	if tok.BufferSize <= 0 {
		logging.Warn("continuation token rejected: buffer size out of range",
			zap.Int("buffer_size", tok.BufferSize))
		return e.freshToken(query, pageSize), true
	}
	if tok.Overflow {
		tok.BufferSize *= e.cfg.BufferMultiplier
	}
	if tok.BufferSize < e.cfg.MinBufferSize {
		tok.BufferSize = e.cfg.MinBufferSize
	}
	if tok.BufferSize > e.cfg.MaxBufferSize {
		tok.BufferSize = e.cfg.MaxBufferSize
	}
	return tok, false
}

func (e *Engine) freshToken(query backend.Query, pageSize int) ContinuationToken {
	buffer := e.cfg.MinBufferSize
	if b := e.cfg.BufferMultiplier * pageSize; b > buffer {
		buffer = b
	}
	if buffer > e.cfg.MaxBufferSize {
		buffer = e.cfg.MaxBufferSize
	}
	cursors := make(map[string]string, len(e.backends))
	for _, be := range e.backends {
		cursors[be.Name()] = ""
	}
	return ContinuationToken{
		Terms:          query.Terms,
		TypeFilter:     query.TypeFilter,
		Page:           1,
		BackendCursors: cursors,
		BufferSize:     buffer,
	}
}

// serveStandardPage fetches one buffer per live backend cursor, ranks the
// union with any carried remainder, and emits the next page.
func (e *Engine) serveStandardPage(ctx context.Context, query backend.Query, tok ContinuationToken, fresh bool, pageSize int, start time.Time) (*PaginatedResponse, error) {
	runs, statuses := e.fanOutPaginated(ctx, query, tok.BackendCursors, tok.BufferSize)

	var (
		files    []types.GenomicsFile
		scanned  int
		overflow bool
	)
	cursors := make(map[string]string)
	for _, run := range runs {
		files = append(files, run.files...)
		scanned += run.scanned
		if run.cursor != "" {
			cursors[run.status.Name] = run.cursor
			if len(run.files) >= tok.BufferSize {
				overflow = true
			}
		}
	}

	results := e.rank(files, query)
	results = e.applyScoreFloor(results, tok, fresh)
	results = append(e.loadCarry(tok), results...)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	results = dedupeResults(results)

	pageResults := results
	var remainder []types.ScoredResult
	if len(results) > pageSize {
		pageResults = results[:pageSize]
		remainder = results[pageSize:]
	}

	hasMore := len(remainder) > 0 || len(cursors) > 0
	next := ""
	if hasMore {
		nextTok := ContinuationToken{
			Terms:          tok.Terms,
			TypeFilter:     tok.TypeFilter,
			Page:           tok.Page + 1,
			BackendCursors: cursors,
			BufferSize:     tok.BufferSize,
			Overflow:       overflow,
		}
		nextTok.ScoreFloor, nextTok.EmittedTail = floorOf(pageResults, tok, fresh)
		if len(remainder) > 0 {
			nextTok.CarryStateID = e.storeCarry(remainder)
		}
		encoded, err := EncodeToken(nextTok)
		if err != nil {
			return nil, err
		}
		next = encoded
	}

	return &PaginatedResponse{
		Results:          pageResults,
		Page:             tok.Page,
		NextToken:        next,
		HasMore:          hasMore,
		SearchedBackends: statuses,
		Duration:         time.Since(start),
		Metrics: Metrics{
			ObjectsScanned: scanned,
			CacheHitRatio:  e.cacheHitRatio(),
			BufferOverflow: overflow,
		},
	}, nil
}

// fanOutPaginated resumes each live backend cursor concurrently. Only
// backends present in cursors are queried; a backend that fails is logged,
// reported in its status, and treated as exhausted.
func (e *Engine) fanOutPaginated(ctx context.Context, query backend.Query, cursors map[string]string, bufferSize int) ([]backendRun, []BackendStatus) {
	live := make([]backend.Backend, 0, len(e.backends))
	for _, be := range e.backends {
		if _, ok := cursors[be.Name()]; ok {
			live = append(live, be)
		}
	}

	runs := make([]backendRun, len(live))
	var g errgroup.Group
	for i, be := range live {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
			defer cancel()

			begin := time.Now()
			files, next, scanned, err := be.SearchPaginated(bctx, query, cursors[be.Name()], bufferSize)
			runs[i] = backendRun{
				files:   files,
				scanned: scanned,
				cursor:  next,
				status: BackendStatus{
					Name:     be.Name(),
					Duration: time.Since(begin),
					Files:    len(files),
				},
			}
			if err != nil {
				logging.Warn("backend paginated search failed",
					zap.String("backend", be.Name()),
					zap.Error(err))
				runs[i] = backendRun{status: BackendStatus{
					Name:     be.Name(),
					Duration: time.Since(begin),
					Error:    err.Error(),
				}}
			}
			return nil
		})
	}
	_ = g.Wait()

	statuses := make([]BackendStatus, len(runs))
	for i, run := range runs {
		statuses[i] = run.status
	}
	return runs, statuses
}

// applyScoreFloor drops results that would have sorted above the floor
// carried in the token; they either appeared on an earlier page or arrived
// too late to keep strict order. Best-effort monotonic ranking.
func (e *Engine) applyScoreFloor(results []types.ScoredResult, tok ContinuationToken, fresh bool) []types.ScoredResult {
	if fresh || tok.Page <= 1 {
		return results
	}
	tail := make(map[string]bool, len(tok.EmittedTail))
	for _, p := range tok.EmittedTail {
		tail[p] = true
	}

	kept := results[:0]
	for _, r := range results {
		if r.RelevanceScore > tok.ScoreFloor {
			continue
		}
		if r.RelevanceScore == tok.ScoreFloor && tail[r.Primary.Path] {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// floorOf computes the score floor and floor-tie tail for the next token.
func floorOf(pageResults []types.ScoredResult, tok ContinuationToken, fresh bool) (float64, []string) {
	if len(pageResults) == 0 {
		if fresh {
			return 1.0, nil
		}
		return tok.ScoreFloor, tok.EmittedTail
	}
	floor := pageResults[len(pageResults)-1].RelevanceScore
	var tail []string
	for _, r := range pageResults {
		if r.RelevanceScore == floor {
			tail = append(tail, r.Primary.Path)
		}
	}
	if !fresh && floor == tok.ScoreFloor {
		tail = append(tail, tok.EmittedTail...)
	}
	return floor, tail
}

// storeCarry stashes the unserved remainder; loadCarry retrieves it. An
// expired carry means those results are lost to the walk, which is the
// documented best-effort behavior.
func (e *Engine) storeCarry(remainder []types.ScoredResult) string {
	id := uuid.NewString()
	e.carryStates.Put(id, &carryState{results: remainder})
	return id
}

func (e *Engine) loadCarry(tok ContinuationToken) []types.ScoredResult {
	if tok.CarryStateID == "" {
		return nil
	}
	state, ok := e.carryStates.Get(tok.CarryStateID)
	if !ok {
		logging.Warn("carried page remainder expired", zap.String("state_id", tok.CarryStateID))
		return nil
	}
	e.carryStates.Remove(tok.CarryStateID)
	return state.results
}

// startCursorWalk materializes the complete ranked result set and serves the
// first cursor-strategy page, skipping everything already emitted by the
// standard pages that preceded it.
func (e *Engine) startCursorWalk(ctx context.Context, query backend.Query, tok ContinuationToken, pageSize int, start time.Time) (*PaginatedResponse, error) {
	files, statuses := e.fanOut(ctx, query)
	results := e.rank(files, query)
	results = e.applyScoreFloor(results, tok, false)
	results = append(e.loadCarry(tok), results...)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	results = dedupeResults(results)

	state := &cursorState{query: query, results: results, page: tok.Page, scanned: len(files)}
	return e.emitCursorPage(state, pageSize, statuses, start)
}

// serveCursorPage serves the next slice of a materialized walk; nil when the
// state has expired.
func (e *Engine) serveCursorPage(token string, pageSize int, start time.Time) *PaginatedResponse {
	stateID, err := DecodeCursorToken(token)
	if err != nil {
		logging.Warn("cursor token rejected", zap.Error(err))
		return nil
	}
	state, ok := e.cursorStates.Get(stateID)
	if !ok {
		return nil
	}

	resp, err := e.emitCursorPage(state, pageSize, nil, time.Now())
	if err != nil {
		logging.Warn("cursor page failed", zap.Error(err))
		return nil
	}
	return resp
}

// emitCursorPage slices one page out of the state and stores the advanced
// state under a fresh ID for the next token.
func (e *Engine) emitCursorPage(state *cursorState, pageSize int, statuses []BackendStatus, start time.Time) (*PaginatedResponse, error) {
	endOffset := state.offset + pageSize
	if endOffset > len(state.results) {
		endOffset = len(state.results)
	}
	pageResults := state.results[state.offset:endOffset]

	hasMore := endOffset < len(state.results)
	next := ""
	if hasMore {
		nextID := uuid.NewString()
		e.cursorStates.Put(nextID, &cursorState{
			query:   state.query,
			results: state.results,
			offset:  endOffset,
			page:    state.page + 1,
			scanned: state.scanned,
		})
		encoded, err := EncodeCursorToken(nextID)
		if err != nil {
			return nil, err
		}
		next = encoded
	}

	return &PaginatedResponse{
		Results:          pageResults,
		Page:             state.page,
		NextToken:        next,
		HasMore:          hasMore,
		SearchedBackends: statuses,
		Duration:         time.Since(start),
		Metrics: Metrics{
			ObjectsScanned: state.scanned,
			CacheHitRatio:  e.cacheHitRatio(),
		},
	}, nil
}

// validate checks the request bounds and filter vocabulary, returning the
// effective result count.
func (e *Engine) validate(maxResults int, typeFilter string, offset int) (int, error) {
	if maxResults == 0 {
		maxResults = e.cfg.MaxResults
	}
	if maxResults < 0 || maxResults > e.cfg.MaxResults {
		return 0, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidMaxResult, maxResults, e.cfg.MaxResults)
	}
	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrInvalidMaxResult, offset)
	}
	if !filetype.ValidFilter(typeFilter) {
		return 0, fmt.Errorf("%w: %q (valid: %v)", ErrInvalidFilter, typeFilter, filetype.Filters())
	}
	return maxResults, nil
}

// cacheHitRatio averages the hit ratios of every cache-bearing component.
func (e *Engine) cacheHitRatio() float64 {
	ratios := []float64{e.cursorStates.HitRatio(), e.carryStates.HitRatio()}
	for _, be := range e.backends {
		if r, ok := be.(hitRatioReporter); ok {
			ratios = append(ratios, r.CacheHitRatio())
		}
	}
	var sum float64
	for _, r := range ratios {
		sum += r
	}
	return sum / float64(len(ratios))
}

// dedupe keeps the first occurrence of each path.
func dedupe(files []types.GenomicsFile) []types.GenomicsFile {
	seen := make(map[string]bool, len(files))
	out := files[:0]
	for _, f := range files {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		out = append(out, f)
	}
	return out
}

// dedupeResults keeps the first occurrence of each primary path.
func dedupeResults(results []types.ScoredResult) []types.ScoredResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.Primary.Path] {
			continue
		}
		seen[r.Primary.Path] = true
		out = append(out, r)
	}
	return out
}

// page applies offset/limit to the ranked list.
func page(results []types.ScoredResult, offset, limit int) []types.ScoredResult {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// normalizeTerms lowercases and drops empty terms.
func normalizeTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		t = normalizeTerm(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeTerm(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

func sameQuery(tok ContinuationToken, query backend.Query) bool {
	if tok.TypeFilter != query.TypeFilter || len(tok.Terms) != len(query.Terms) {
		return false
	}
	for i := range tok.Terms {
		if tok.Terms[i] != query.Terms[i] {
			return false
		}
	}
	return true
}
