package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeHash(tt.text); got != tt.want {
				t.Errorf("ComputeHash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(EmbeddingRequest{Text: "migraine"}); err != nil {
		t.Errorf("ValidateRequest() error = %v", err)
	}
	if err := ValidateRequest(EmbeddingRequest{}); err != ErrEmptyText {
		t.Errorf("ValidateRequest() error = %v, want %v", err, ErrEmptyText)
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid batch", []string{"text1", "text2", "text3"}, false},
		{"empty batch", []string{}, true},
		{"contains empty text", []string{"text1", "", "text3"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBatchRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error %v does not wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	cache := NewCache(2)

	emb := &Embedding{Vector: []float32{1, 2}, Dimension: 2, Provider: "local", Model: "m"}
	cache.Set("a", emb)

	got, ok := cache.Get("a")
	if !ok {
		t.Fatal("expected cache hit")
	}

	// Mutating the returned copy must not affect the cache
	got.Vector[0] = 99
	again, _ := cache.Get("a")
	if again.Vector[0] != 1 {
		t.Errorf("cached vector mutated: %v", again.Vector)
	}

	cache.Set("b", emb)
	cache.Set("c", emb)
	if cache.Size() != 2 {
		t.Errorf("Size() = %d, want 2", cache.Size())
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size() after Clear = %d", cache.Size())
	}
}

func TestCacheKey_ScopedByModel(t *testing.T) {
	if cacheKey("a", "text") == cacheKey("b", "text") {
		t.Error("cache keys for different models collide")
	}
}

func TestLocalProvider(t *testing.T) {
	cache := NewCache(10)
	provider, err := NewLocalProvider(cache)
	if err != nil {
		t.Fatalf("NewLocalProvider() error = %v", err)
	}
	defer provider.Close()

	t.Run("provider metadata", func(t *testing.T) {
		if provider.Provider() != ProviderLocal {
			t.Errorf("Provider() = %s, want %s", provider.Provider(), ProviderLocal)
		}
		if provider.Dimension() != LocalDimension {
			t.Errorf("Dimension() = %d, want %d", provider.Dimension(), LocalDimension)
		}
		if provider.Model() != DefaultLocalModel {
			t.Errorf("Model() = %s", provider.Model())
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		ctx := context.Background()
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "side effects of compoz"})
		if err != nil {
			t.Fatalf("GenerateEmbedding() error = %v", err)
		}
		cache.Clear()
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "side effects of compoz"})
		if err != nil {
			t.Fatalf("GenerateEmbedding() error = %v", err)
		}
		for i := range a.Vector {
			if a.Vector[i] != b.Vector[i] {
				t.Fatalf("vectors differ at %d", i)
			}
		}
	})

	t.Run("shared words score higher", func(t *testing.T) {
		ctx := context.Background()
		q, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "migraine"})
		hit, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "medical_condition: Migraine"})
		miss, _ := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "medical_condition: Insomnia"})
		if dot(q.Vector, hit.Vector) <= dot(q.Vector, miss.Vector) {
			t.Error("expected overlapping text to be closer")
		}
	})

	t.Run("batch embedding", func(t *testing.T) {
		resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
			Texts: []string{"text1", "text2", "text3"},
		})
		if err != nil {
			t.Fatalf("GenerateBatch() error = %v", err)
		}
		if len(resp.Embeddings) != 3 {
			t.Errorf("Got %d embeddings, want 3", len(resp.Embeddings))
		}
		for i, emb := range resp.Embeddings {
			if len(emb.Vector) != LocalDimension {
				t.Errorf("Embedding %d: dimension = %d, want %d", i, len(emb.Vector), LocalDimension)
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "uncached text"}); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("NormalizeVector() = %v", v)
	}

	zero := NormalizeVector([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("NormalizeVector(zero) = %v", zero)
	}
}

// fakeClient implements embeddings.EmbedderClient
type fakeClient struct {
	calls int
	fail  int // number of leading calls that fail
	err   error
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.fail {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func TestLangchainProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch and query", func(t *testing.T) {
		client := &fakeClient{}
		p, err := newLangchainProvider(client, ProviderOllama, "test-model", NewCache(10), DefaultRetryConfig())
		if err != nil {
			t.Fatalf("newLangchainProvider() error = %v", err)
		}

		if p.Dimension() != 0 {
			t.Errorf("Dimension() before first call = %d", p.Dimension())
		}

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"ab", "abcd"}})
		if err != nil {
			t.Fatalf("GenerateBatch() error = %v", err)
		}
		if len(resp.Embeddings) != 2 || resp.Model != "test-model" || resp.Provider != ProviderOllama {
			t.Fatalf("unexpected response %+v", resp)
		}
		if resp.Embeddings[1].Vector[0] != 4 {
			t.Errorf("vector = %v", resp.Embeddings[1].Vector)
		}
		if p.Dimension() != 3 {
			t.Errorf("Dimension() = %d, want 3", p.Dimension())
		}

		// Cached from the batch call
		calls := client.calls
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "ab"})
		if err != nil {
			t.Fatalf("GenerateEmbedding() error = %v", err)
		}
		if client.calls != calls {
			t.Error("expected cache hit")
		}
		if emb.Vector[0] != 2 {
			t.Errorf("vector = %v", emb.Vector)
		}
	})

	t.Run("upstream failure is typed", func(t *testing.T) {
		client := &fakeClient{fail: 1, err: errors.New("connection refused")}
		p, err := newLangchainProvider(client, ProviderOllama, "m", nil, DefaultRetryConfig())
		if err != nil {
			t.Fatalf("newLangchainProvider() error = %v", err)
		}

		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "migraine"})
		if !types.IsUpstream(err) {
			t.Fatalf("expected UpstreamServiceError, got %v", err)
		}
		if client.calls != 1 {
			t.Errorf("calls = %d, want a single attempt", client.calls)
		}
	})

	t.Run("retries when configured", func(t *testing.T) {
		client := &fakeClient{fail: 2, err: errors.New("503")}
		retry := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
		p, err := newLangchainProvider(client, ProviderOpenAI, "m", nil, retry)
		if err != nil {
			t.Fatalf("newLangchainProvider() error = %v", err)
		}

		if _, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x"}}); err != nil {
			t.Fatalf("GenerateBatch() error = %v", err)
		}
		if client.calls != 3 {
			t.Errorf("calls = %d, want 3", client.calls)
		}
	})

	t.Run("batch too large", func(t *testing.T) {
		p, _ := newLangchainProvider(&fakeClient{}, ProviderOllama, "m", nil, DefaultRetryConfig())
		texts := make([]string, MaxBatchSize+1)
		for i := range texts {
			texts[i] = "x"
		}
		if _, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts}); !errors.Is(err, ErrBatchTooLarge) {
			t.Errorf("error = %v, want ErrBatchTooLarge", err)
		}
	})
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := retryWithBackoff(ctx, RetryConfig{MaxRetries: 5, BaseDelay: time.Second}, func() (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		provider string
		wantErr  bool
	}{
		{"local", Config{Provider: "local", CacheSize: 10}, ProviderLocal, false},
		{"ollama default", Config{}, ProviderOllama, false},
		{"ollama explicit", Config{Provider: "OLLAMA", Host: "http://127.0.0.1:11434", Model: "mxbai-embed-large"}, ProviderOllama, false},
		{"openai with key", Config{Provider: "openai", APIKey: "sk-test", BaseURL: "http://127.0.0.1:8080/v1"}, ProviderOpenAI, false},
		{"unknown", Config{Provider: "jina"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrUnsupportedModel) {
					t.Errorf("error = %v, want ErrUnsupportedModel", err)
				}
				return
			}
			defer emb.Close()
			if emb.Provider() != tt.provider {
				t.Errorf("Provider() = %s, want %s", emb.Provider(), tt.provider)
			}
		})
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
