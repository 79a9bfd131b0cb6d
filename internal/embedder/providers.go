package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "hash-384"

	DefaultOllamaHost = "http://localhost:11434"

	// Dimensions
	LocalDimension = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	DefaultCacheSize = 10000

	// Retry configuration
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// LangchainProvider implements Embedder on top of a langchaingo embedding
// client. Ollama and OpenAI-compatible servers share it.
type LangchainProvider struct {
	embedder  embeddings.Embedder
	provider  string
	model     string
	dimension atomic.Int64
	cache     *Cache
	retry     RetryConfig
	logger    *slog.Logger
}

// NewOllamaProvider creates an embedder backed by an Ollama server
func NewOllamaProvider(host, model string, cache *Cache, retry RetryConfig) (*LangchainProvider, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}

	client, err := ollama.New(
		ollama.WithServerURL(host),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return newLangchainProvider(client, ProviderOllama, model, cache, retry)
}

// NewOpenAIProvider creates an embedder backed by an OpenAI-compatible API
func NewOpenAIProvider(apiKey, baseURL, model string, cache *Cache, retry RetryConfig) (*LangchainProvider, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{openai.WithEmbeddingModel(model)}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}
	return newLangchainProvider(client, ProviderOpenAI, model, cache, retry)
}

func newLangchainProvider(client embeddings.EmbedderClient, provider, model string, cache *Cache, retry RetryConfig) (*LangchainProvider, error) {
	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(false),
		embeddings.WithBatchSize(DefaultBatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &LangchainProvider{
		embedder: emb,
		provider: provider,
		model:    model,
		cache:    cache,
		retry:    retry,
		logger:   slog.Default().With("component", "embedder", "provider", provider),
	}, nil
}

func (p *LangchainProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	key := cacheKey(p.model, req.Text)
	if p.cache != nil {
		if emb, ok := p.cache.Get(key); ok {
			return emb, nil
		}
	}

	vector, err := retryWithBackoff(ctx, p.retry, func() ([]float32, error) {
		return p.embedder.EmbedQuery(ctx, req.Text)
	})
	if err != nil {
		p.logger.Error("failed to embed query", "length", len(req.Text), "err", err)
		return nil, &types.UpstreamServiceError{Service: "embedding", Op: "embed query", Err: err}
	}
	if len(vector) == 0 {
		return nil, &types.UpstreamServiceError{
			Service: "embedding", Op: "embed query",
			Err: fmt.Errorf("%w: empty vector returned", ErrProviderFailed),
		}
	}

	emb := p.wrap(vector, key)
	if p.cache != nil {
		p.cache.Set(key, emb)
	}
	return emb, nil
}

func (p *LangchainProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	p.logger.Debug("generating embeddings", "count", len(req.Texts))
	vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		return p.embedder.EmbedDocuments(ctx, req.Texts)
	})
	if err != nil {
		p.logger.Error("failed to embed documents", "count", len(req.Texts), "err", err)
		return nil, &types.UpstreamServiceError{Service: "embedding", Op: "embed documents", Err: err}
	}
	if len(vectors) != len(req.Texts) {
		return nil, &types.UpstreamServiceError{
			Service: "embedding", Op: "embed documents",
			Err: fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vectors), len(req.Texts)),
		}
	}

	out := make([]*Embedding, len(vectors))
	for i, vector := range vectors {
		key := cacheKey(p.model, req.Texts[i])
		out[i] = p.wrap(vector, key)
		if p.cache != nil {
			p.cache.Set(key, out[i])
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   p.provider,
		Model:      p.model,
	}, nil
}

func (p *LangchainProvider) wrap(vector []float32, key string) *Embedding {
	p.dimension.Store(int64(len(vector)))
	return &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  p.provider,
		Model:     p.model,
		Hash:      key,
	}
}

// Dimension reports the size of the last vector returned by the server,
// or 0 before the first call.
func (p *LangchainProvider) Dimension() int {
	return int(p.dimension.Load())
}

func (p *LangchainProvider) Provider() string {
	return p.provider
}

func (p *LangchainProvider) Model() string {
	return p.model
}

func (p *LangchainProvider) Close() error {
	return nil
}

// LocalProvider embeds text offline by hashing word tokens into a fixed
// number of buckets. Texts that share words get a positive cosine score,
// which is enough for development and tests without a model server.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey(l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(key); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashVector(req.Text, LocalDimension),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      key,
	}

	if l.cache != nil {
		l.cache.Set(key, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector counts lowercased word tokens into dim buckets and normalizes
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vector[h.Sum32()%uint32(dim)]++
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
