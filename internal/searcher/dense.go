package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/medcontext-mcp/internal/embedder"
	"github.com/dshills/medcontext-mcp/internal/storage"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// DenseOptions tunes dense index construction
type DenseOptions struct {
	BatchSize int // texts per embedding call
	Workers   int // concurrent embedding calls
}

// DenseIndex ranks full documents by cosine similarity of their embeddings
type DenseIndex struct {
	storage  storage.Storage
	embedder embedder.Embedder
	opts     DenseOptions
	logger   *slog.Logger
}

// NewDenseIndex creates a dense index
func NewDenseIndex(s storage.Storage, emb embedder.Embedder, opts DenseOptions) *DenseIndex {
	if opts.BatchSize <= 0 || opts.BatchSize > embedder.MaxBatchSize {
		opts.BatchSize = embedder.DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &DenseIndex{
		storage:  s,
		embedder: emb,
		opts:     opts,
		logger:   slog.Default().With("component", "dense-index"),
	}
}

// Build embeds and persists docs. When a previous build with the same
// embedding model over the same document contents is recorded, the stored
// vectors are reused and Build returns (true, nil).
func (i *DenseIndex) Build(ctx context.Context, docs []types.RetrievableDocument) (reused bool, err error) {
	start := time.Now()
	model := i.embedder.Model()
	fingerprint := CorpusFingerprint(docs)

	state, err := i.storage.GetIndexState(ctx, DenseStateName)
	switch {
	case err == nil && state.Model == model && state.Documents == len(docs) && state.CorpusHash == fingerprint:
		i.logger.Info("reusing persisted dense index", "documents", state.Documents, "model", model)
		return true, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}

	// Drop the marker first so a failed build is never mistaken for a finished one
	if err := i.storage.DeleteIndexState(ctx, DenseStateName); err != nil {
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}

	stored := make([]*storage.Document, len(docs))
	for pos, doc := range docs {
		stored[pos] = storage.NewDocument(doc, pos)
	}
	if err := i.storage.ReplaceDocuments(ctx, types.VariantFull, stored); err != nil {
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}

	vectors, err := i.embedAll(ctx, docs)
	if err != nil {
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}

	tx, err := i.storage.BeginTx(ctx)
	if err != nil {
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for pos, emb := range vectors {
		err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			DocumentID: stored[pos].ID,
			Vector:     storage.SerializeVector(emb.Vector),
			Dimension:  emb.Dimension,
			Provider:   emb.Provider,
			Model:      emb.Model,
		})
		if err != nil {
			return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
		}
	}
	if err := tx.SetIndexState(ctx, &storage.IndexState{
		Name:       DenseStateName,
		Documents:  len(docs),
		Model:      model,
		CorpusHash: fingerprint,
	}); err != nil {
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return false, &types.IndexBuildError{Index: DenseStateName, Err: err}
	}

	i.logger.Info("dense index built",
		"documents", len(docs),
		"model", model,
		"duration", time.Since(start),
	)
	return false, nil
}

// CorpusFingerprint hashes the ordered document contents
func CorpusFingerprint(docs []types.RetrievableDocument) string {
	h := sha256.New()
	for idx := range docs {
		sum := docs[idx].ContentHash()
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// embedAll embeds docs in batches with bounded concurrency, keeping order
func (i *DenseIndex) embedAll(ctx context.Context, docs []types.RetrievableDocument) ([]*embedder.Embedding, error) {
	vectors := make([]*embedder.Embedding, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Workers)

	for start := 0; start < len(docs); start += i.opts.BatchSize {
		end := min(start+i.opts.BatchSize, len(docs))
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Content)
		}

		g.Go(func() error {
			resp, err := i.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
			}
			if len(resp.Embeddings) != len(texts) {
				return fmt.Errorf("embed documents %d-%d: got %d vectors", start, end-1, len(resp.Embeddings))
			}
			copy(vectors[start:end], resp.Embeddings)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Search returns up to k full documents closest to query. A non-empty
// drug restricts results to documents with that exact drug name.
func (i *DenseIndex) Search(ctx context.Context, query string, k int, drug string) ([]types.SearchResult, error) {
	if k <= 0 || strings.TrimSpace(query) == "" {
		return []types.SearchResult{}, nil
	}

	emb, err := i.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		if types.IsUpstream(err) {
			return nil, err
		}
		return nil, &types.UpstreamServiceError{Service: "embedding", Op: "embed query", Err: err}
	}

	var filters *storage.SearchFilters
	if drug != "" {
		filters = &storage.SearchFilters{DrugName: drug}
	}

	hits, err := i.storage.SearchVector(ctx, emb.Vector, k, filters)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
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
			Score:    hit.SimilarityScore,
			Source:   DenseStateName,
		})
	}
	return results, nil
}
