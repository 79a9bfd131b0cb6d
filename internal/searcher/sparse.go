package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/medcontext-mcp/internal/storage"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Index state names
const (
	SparseStateName = "sparse"
	DenseStateName  = "dense"
)

// SparseIndex ranks compact documents lexically with SQLite FTS5 bm25
type SparseIndex struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewSparseIndex creates a sparse index over s
func NewSparseIndex(s storage.Storage) *SparseIndex {
	return &SparseIndex{
		storage: s,
		logger:  slog.Default().With("component", "sparse-index"),
	}
}

// Build replaces the indexed documents with docs in one transaction.
// Document order is the tie-break order for equal scores.
func (i *SparseIndex) Build(ctx context.Context, docs []types.RetrievableDocument) error {
	start := time.Now()

	stored := make([]*storage.Document, len(docs))
	for pos, doc := range docs {
		stored[pos] = storage.NewDocument(doc, pos)
	}

	tx, err := i.storage.BeginTx(ctx)
	if err != nil {
		return &types.IndexBuildError{Index: SparseStateName, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ReplaceDocuments(ctx, types.VariantCompact, stored); err != nil {
		return &types.IndexBuildError{Index: SparseStateName, Err: err}
	}
	if err := tx.SetIndexState(ctx, &storage.IndexState{
		Name:       SparseStateName,
		Documents:  len(docs),
		CorpusHash: CorpusFingerprint(docs),
	}); err != nil {
		return &types.IndexBuildError{Index: SparseStateName, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &types.IndexBuildError{Index: SparseStateName, Err: err}
	}

	i.logger.Info("sparse index built", "documents", len(docs), "duration", time.Since(start))
	return nil
}

// Search returns up to k documents ordered by descending lexical relevance
func (i *SparseIndex) Search(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	if k <= 0 {
		return []types.SearchResult{}, nil
	}

	hits, err := i.storage.SearchText(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}

	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc, err := i.storage.GetDocument(ctx, hit.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("load document %d: %w", hit.DocumentID, err)
		}
		results = append(results, types.SearchResult{
			Document: doc.ToTypesDocument(),
			Rank:     len(results) + 1,
			Score:    hit.BM25Score,
			Source:   SparseStateName,
		})
	}
	return results, nil
}
