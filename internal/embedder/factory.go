package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // ollama, openai or local
	Model     string
	Host      string // Ollama server URL
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint
	CacheSize int
	Attempts  int // upstream attempts per call, values below 1 mean 1
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	retry := DefaultRetryConfig()
	if cfg.Attempts > 1 {
		retry.MaxRetries = cfg.Attempts
	}

	var (
		emb Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		emb, err = NewOllamaProvider(cfg.Host, cfg.Model, cache, retry)
	case ProviderOpenAI:
		emb, err = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache, retry)
	case ProviderLocal:
		emb, err = NewLocalProvider(cache)
	default:
		err = fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return emb, nil
}

// DefaultRetryConfig makes a single attempt. Retrying upstream calls is
// an operator decision, see Config.Attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 1,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}
