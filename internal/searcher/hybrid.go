package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Default result counts per index
const (
	DefaultKDense  = 2
	DefaultKSparse = 2
)

// DenseSearcher is the dense half of hybrid retrieval
type DenseSearcher interface {
	Search(ctx context.Context, query string, k int, drug string) ([]types.SearchResult, error)
}

// SparseSearcher is the lexical half of hybrid retrieval
type SparseSearcher interface {
	Search(ctx context.Context, query string, k int) ([]types.SearchResult, error)
}

// HybridOptions configures a HybridRetriever
type HybridOptions struct {
	KDense    int
	KSparse   int
	CacheSize int // 0 disables the result cache
}

// HybridRetriever merges dense and sparse results: dense first, then
// sparse, dropping any document whose content was already returned
type HybridRetriever struct {
	dense   DenseSearcher
	sparse  SparseSearcher
	kDense  int
	kSparse int
	cache   *lru.Cache[[32]byte, []types.SearchResult]
}

// NewHybridRetriever creates a retriever over both indices
func NewHybridRetriever(dense DenseSearcher, sparse SparseSearcher, opts HybridOptions) *HybridRetriever {
	if opts.KDense <= 0 {
		opts.KDense = DefaultKDense
	}
	if opts.KSparse <= 0 {
		opts.KSparse = DefaultKSparse
	}

	h := &HybridRetriever{
		dense:   dense,
		sparse:  sparse,
		kDense:  opts.KDense,
		kSparse: opts.KSparse,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[[32]byte, []types.SearchResult](opts.CacheSize)
		if err != nil {
			panic(fmt.Sprintf("failed to create LRU cache: %v", err))
		}
		h.cache = cache
	}
	return h
}

// Retrieve returns at most KDense+KSparse documents with pairwise distinct
// content. Dense and sparse searches run concurrently.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []types.SearchResult{}, nil
	}

	key := h.cacheKey(query)
	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			return copyResults(cached), nil
		}
	}

	var denseResults, sparseResults []types.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		denseResults, err = h.dense.Search(gctx, query, h.kDense, "")
		return err
	})
	g.Go(func() error {
		var err error
		sparseResults, err = h.sparse.Search(gctx, query, h.kSparse)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Fuse(denseResults, sparseResults)
	if h.cache != nil {
		h.cache.Add(key, copyResults(merged))
	}
	return merged, nil
}

// Fuse concatenates result lists in order, keeping the first occurrence of
// each distinct content, and renumbers ranks from 1
func Fuse(lists ...[]types.SearchResult) []types.SearchResult {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[string]struct{}, total)
	out := make([]types.SearchResult, 0, total)
	for _, l := range lists {
		for _, r := range l {
			if _, dup := seen[r.Document.Content]; dup {
				continue
			}
			seen[r.Document.Content] = struct{}{}
			r.Rank = len(out) + 1
			out = append(out, r)
		}
	}
	return out
}

// Purge drops every cached result
func (h *HybridRetriever) Purge() {
	if h.cache != nil {
		h.cache.Purge()
	}
}

func (h *HybridRetriever) cacheKey(query string) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", query, h.kDense, h.kSparse)))
}

func copyResults(src []types.SearchResult) []types.SearchResult {
	dst := make([]types.SearchResult, len(src))
	copy(dst, src)
	return dst
}
