package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Provider names
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaModel = "mistral"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOllamaHost  = "http://localhost:11434"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	ErrEmptyPrompt         = errors.New("prompt cannot be empty")
)

// Generator produces answer text for a fully rendered prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Config holds generator configuration
type Config struct {
	Provider    string // ollama or openai
	Model       string
	Host        string // Ollama server URL
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint
	Temperature float64
}

// New creates a generator for the configured provider
func New(cfg Config) (*LangchainGenerator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllama(cfg.Host, cfg.Model, cfg.Temperature)
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// LangchainGenerator implements Generator on top of a langchaingo model
type LangchainGenerator struct {
	client      llms.Model
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewOllama creates a generator backed by an Ollama server
func NewOllama(host, model string, temperature float64) (*LangchainGenerator, error) {
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
	return NewWithModel(client, model, temperature), nil
}

// NewOpenAI creates a generator backed by an OpenAI-compatible chat API.
// A blank key is sent as "none" for local servers that skip auth.
func NewOpenAI(apiKey, baseURL, model string, temperature float64) (*LangchainGenerator, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if apiKey == "" {
		apiKey = "none"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewWithModel(client, model, temperature), nil
}

// NewWithModel wraps an existing langchaingo model
func NewWithModel(client llms.Model, model string, temperature float64) *LangchainGenerator {
	return &LangchainGenerator{
		client:      client,
		model:       model,
		temperature: temperature,
		logger:      slog.Default().With("component", "llm", "model", model),
	}
}

// Generate sends prompt as a single human message and returns the
// completion. Failures are reported as UpstreamServiceError.
func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("generation failed", "duration", time.Since(start), "err", err)
		return "", &types.UpstreamServiceError{Service: "llm", Op: "generate", Err: err}
	}

	g.logger.Debug("generated", "prompt_length", len(prompt), "duration", time.Since(start))
	return out, nil
}

// Model returns the model name
func (g *LangchainGenerator) Model() string {
	return g.model
}
