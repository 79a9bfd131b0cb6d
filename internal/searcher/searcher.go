package searcher

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/medcontext-mcp/internal/metrics"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// SearchMode defines which index answers a request
type SearchMode string

const (
	SearchModeHybrid SearchMode = "hybrid" // dense then sparse, de-duplicated
	SearchModeDense  SearchMode = "dense"  // embedding similarity only
	SearchModeSparse SearchMode = "sparse" // bm25 only
)

// MaxLimit caps the number of results a single request can ask for
const MaxLimit = 50

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query string
	Limit int
	Mode  SearchMode
	Drug  string // dense only: exact drug_name filter
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	SearchMode   SearchMode
	Duration     time.Duration
}

// Searcher dispatches direct index queries by mode
type Searcher struct {
	dense   DenseSearcher
	sparse  SparseSearcher
	hybrid  *HybridRetriever
	metrics *metrics.Metrics
}

// NewSearcher creates a new Searcher instance. m may be nil.
func NewSearcher(dense DenseSearcher, sparse SparseSearcher, hybrid *HybridRetriever, m *metrics.Metrics) *Searcher {
	return &Searcher{
		dense:   dense,
		sparse:  sparse,
		hybrid:  hybrid,
		metrics: m,
	}
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	var results []types.SearchResult
	var err error

	switch req.Mode {
	case SearchModeHybrid:
		results, err = s.hybrid.Retrieve(ctx, req.Query)
		if len(results) > req.Limit {
			results = results[:req.Limit]
		}
	case SearchModeDense:
		results, err = s.dense.Search(ctx, req.Query, req.Limit, req.Drug)
	case SearchModeSparse:
		results, err = s.sparse.Search(ctx, req.Query, req.Limit)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		if types.IsUpstream(err) {
			s.metrics.ObserveUpstreamError("embedding")
		}
		return nil, err
	}

	duration := time.Since(startTime)
	s.metrics.ObserveSearch(string(req.Mode), duration)

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		SearchMode:   req.Mode,
		Duration:     duration,
	}, nil
}

// validateRequest ensures search request is valid
func validateRequest(req *SearchRequest) error {
	if req.Query == "" {
		return types.ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultKDense + DefaultKSparse
	}

	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}

	if req.Drug != "" && req.Mode != SearchModeDense {
		return fmt.Errorf("drug filter requires %s mode", SearchModeDense)
	}

	return nil
}
