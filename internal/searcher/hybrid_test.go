package searcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

type fakeDense struct {
	results []types.SearchResult
	err     error
	calls   atomic.Int32
}

func (f *fakeDense) Search(ctx context.Context, query string, k int, drug string) ([]types.SearchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return limit(f.results, k), nil
}

type fakeSparse struct {
	results []types.SearchResult
	calls   atomic.Int32
}

func (f *fakeSparse) Search(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	f.calls.Add(1)
	return limit(f.results, k), nil
}

func limit(rs []types.SearchResult, k int) []types.SearchResult {
	if k < len(rs) {
		return rs[:k]
	}
	return rs
}

func result(content string) types.SearchResult {
	return types.SearchResult{Document: types.RetrievableDocument{Content: content}}
}

func TestHybridRetriever_DedupAndOrder(t *testing.T) {
	dense := &fakeDense{results: []types.SearchResult{result("a"), result("b")}}
	sparse := &fakeSparse{results: []types.SearchResult{result("b"), result("c")}}
	h := NewHybridRetriever(dense, sparse, HybridOptions{KDense: 2, KSparse: 2})

	got, err := h.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Document.Content != w {
			t.Errorf("result %d = %q, want %q", i, got[i].Document.Content, w)
		}
		if got[i].Rank != i+1 {
			t.Errorf("result %d rank = %d", i, got[i].Rank)
		}
	}
}

func TestHybridRetriever_LengthBound(t *testing.T) {
	var many []types.SearchResult
	for i := 0; i < 10; i++ {
		many = append(many, result(fmt.Sprintf("doc-%d", i)))
	}
	var others []types.SearchResult
	for i := 0; i < 10; i++ {
		others = append(others, result(fmt.Sprintf("other-%d", i)))
	}

	for _, k := range [][2]int{{1, 1}, {2, 2}, {3, 1}, {1, 5}} {
		h := NewHybridRetriever(&fakeDense{results: many}, &fakeSparse{results: others}, HybridOptions{KDense: k[0], KSparse: k[1]})
		got, err := h.Retrieve(context.Background(), "q")
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if len(got) > k[0]+k[1] {
			t.Errorf("k=%v: got %d results", k, len(got))
		}
		seen := map[string]bool{}
		for _, r := range got {
			if seen[r.Document.Content] {
				t.Errorf("k=%v: duplicate content %q", k, r.Document.Content)
			}
			seen[r.Document.Content] = true
		}
	}
}

func TestHybridRetriever_EmptyQuery(t *testing.T) {
	dense := &fakeDense{results: []types.SearchResult{result("a")}}
	sparse := &fakeSparse{results: []types.SearchResult{result("b")}}
	h := NewHybridRetriever(dense, sparse, HybridOptions{})

	got, err := h.Retrieve(context.Background(), "  ")
	if err != nil || len(got) != 0 {
		t.Errorf("Retrieve(blank) = %v, %v", got, err)
	}
	if dense.calls.Load() != 0 || sparse.calls.Load() != 0 {
		t.Error("blank query reached an index")
	}
}

func TestHybridRetriever_DenseFailure(t *testing.T) {
	upstream := &types.UpstreamServiceError{Service: "embedding", Op: "embed query", Err: errors.New("down")}
	h := NewHybridRetriever(&fakeDense{err: upstream}, &fakeSparse{}, HybridOptions{})

	_, err := h.Retrieve(context.Background(), "migraine")
	if !types.IsUpstream(err) {
		t.Errorf("error = %v, want UpstreamServiceError", err)
	}
}

func TestHybridRetriever_Cache(t *testing.T) {
	dense := &fakeDense{results: []types.SearchResult{result("a")}}
	sparse := &fakeSparse{results: []types.SearchResult{result("b")}}
	h := NewHybridRetriever(dense, sparse, HybridOptions{CacheSize: 8})
	ctx := context.Background()

	first, err := h.Retrieve(ctx, "migraine")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	first[0].Document.Content = "mutated"

	second, err := h.Retrieve(ctx, "migraine")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if dense.calls.Load() != 1 || sparse.calls.Load() != 1 {
		t.Errorf("calls dense=%d sparse=%d, want cache hit", dense.calls.Load(), sparse.calls.Load())
	}
	if second[0].Document.Content != "a" {
		t.Errorf("cached result mutated: %q", second[0].Document.Content)
	}

	h.Purge()
	if _, err := h.Retrieve(ctx, "migraine"); err != nil {
		t.Fatal(err)
	}
	if dense.calls.Load() != 2 {
		t.Error("expected miss after Purge")
	}
}

func TestFuse(t *testing.T) {
	got := Fuse(nil, []types.SearchResult{result("x"), result("x")}, nil)
	if len(got) != 1 || got[0].Rank != 1 {
		t.Errorf("Fuse() = %+v", got)
	}
	if len(Fuse()) != 0 {
		t.Error("Fuse() of nothing should be empty")
	}
}
