// Package config loads service configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/medcontext-mcp/internal/corpus"
)

// Environment variable names
const (
	EnvCSVPath           = "MEDCONTEXT_CSV_PATH"
	EnvCSVEncoding       = "MEDCONTEXT_CSV_ENCODING"
	EnvDataDir           = "MEDCONTEXT_DATA_DIR"
	EnvEmbeddingProvider = "MEDCONTEXT_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "MEDCONTEXT_EMBEDDING_MODEL"
	EnvLLMProvider       = "MEDCONTEXT_LLM_PROVIDER"
	EnvLLMModel          = "MEDCONTEXT_LLM_MODEL"
	EnvOllamaHost        = "OLLAMA_HOST"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvKDense            = "MEDCONTEXT_K_DENSE"
	EnvKSparse           = "MEDCONTEXT_K_SPARSE"
	EnvSymptomTopK       = "MEDCONTEXT_SYMPTOM_TOP_K"
	EnvCacheSize         = "MEDCONTEXT_CACHE_SIZE"
	EnvSessionBackend    = "MEDCONTEXT_SESSION_BACKEND"
	EnvSessionTTL        = "MEDCONTEXT_SESSION_TTL"
	EnvEmbedWorkers      = "MEDCONTEXT_EMBED_WORKERS"
	EnvUpstreamAttempts  = "MEDCONTEXT_UPSTREAM_ATTEMPTS"
	EnvMetricsAddr       = "MEDCONTEXT_METRICS_ADDR"
	EnvLogLevel          = "MEDCONTEXT_LOG_LEVEL"
)

// Session backends
const (
	SessionMemory = "memory"
	SessionBadger = "badger"
)

var (
	validEmbeddingProviders = []string{"ollama", "openai", "local"}
	validLLMProviders       = []string{"ollama", "openai"}
	validSessionBackends    = []string{SessionMemory, SessionBadger}
	validLogLevels          = []string{"debug", "info", "warn", "error"}
)

// Config holds all application configuration
type Config struct {
	CSVPath     string
	CSVEncoding string
	DataDir     string // holds the index database and persistent sessions

	EmbeddingProvider string
	EmbeddingModel    string // empty selects the provider default
	LLMProvider       string
	LLMModel          string
	OllamaHost        string
	OpenAIKey         string
	OpenAIBaseURL     string

	KDense      int
	KSparse     int
	SymptomTopK int
	CacheSize   int // LRU entries for embeddings and hybrid results, 0 disables

	SessionBackend string
	SessionTTL     time.Duration

	EmbedWorkers     int
	UpstreamAttempts int

	MetricsAddr string // empty disables the metrics endpoint
	LogLevel    string
}

// Load reads files as .env sources (".env" when none are given), then
// builds and validates the configuration from the environment. Missing
// .env files are ignored; variables already set win over file values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var errs []error
	cfg := &Config{
		CSVPath:           getEnvWithDefault(EnvCSVPath, "data/drugs_side_effects_drugs_com.csv"),
		CSVEncoding:       getEnvWithDefault(EnvCSVEncoding, corpus.EncodingUTF8),
		DataDir:           getEnvWithDefault(EnvDataDir, "data/medcontext"),
		EmbeddingProvider: strings.ToLower(getEnvWithDefault(EnvEmbeddingProvider, "ollama")),
		EmbeddingModel:    os.Getenv(EnvEmbeddingModel),
		LLMProvider:       strings.ToLower(getEnvWithDefault(EnvLLMProvider, "ollama")),
		LLMModel:          os.Getenv(EnvLLMModel),
		OllamaHost:        getEnvWithDefault(EnvOllamaHost, "http://localhost:11434"),
		OpenAIKey:         os.Getenv(EnvOpenAIKey),
		OpenAIBaseURL:     os.Getenv(EnvOpenAIBaseURL),
		KDense:            getIntEnv(EnvKDense, 2, &errs),
		KSparse:           getIntEnv(EnvKSparse, 2, &errs),
		SymptomTopK:       getIntEnv(EnvSymptomTopK, 3, &errs),
		CacheSize:         getIntEnv(EnvCacheSize, 1000, &errs),
		SessionBackend:    strings.ToLower(getEnvWithDefault(EnvSessionBackend, SessionMemory)),
		SessionTTL:        getDurationEnv(EnvSessionTTL, 24*time.Hour, &errs),
		EmbedWorkers:      getIntEnv(EnvEmbedWorkers, 4, &errs),
		UpstreamAttempts:  getIntEnv(EnvUpstreamAttempts, 1, &errs),
		MetricsAddr:       os.Getenv(EnvMetricsAddr),
		LogLevel:          strings.ToLower(getEnvWithDefault(EnvLogLevel, "info")),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration parse failed: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every value. CLI flag overrides should be validated again.
func (c *Config) Validate() error {
	if c.CSVPath == "" {
		return fmt.Errorf("%s cannot be empty", EnvCSVPath)
	}
	if !corpus.SupportedEncoding(c.CSVEncoding) {
		return fmt.Errorf("%s: unsupported encoding %q", EnvCSVEncoding, c.CSVEncoding)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%s cannot be empty", EnvDataDir)
	}
	if err := oneOf(EnvEmbeddingProvider, c.EmbeddingProvider, validEmbeddingProviders); err != nil {
		return err
	}
	if err := oneOf(EnvLLMProvider, c.LLMProvider, validLLMProviders); err != nil {
		return err
	}
	if err := oneOf(EnvSessionBackend, c.SessionBackend, validSessionBackends); err != nil {
		return err
	}
	if err := oneOf(EnvLogLevel, c.LogLevel, validLogLevels); err != nil {
		return err
	}
	if err := inRange(EnvKDense, c.KDense, 1, 50); err != nil {
		return err
	}
	if err := inRange(EnvKSparse, c.KSparse, 1, 50); err != nil {
		return err
	}
	if err := inRange(EnvSymptomTopK, c.SymptomTopK, 1, 50); err != nil {
		return err
	}
	if err := inRange(EnvCacheSize, c.CacheSize, 0, 1_000_000); err != nil {
		return err
	}
	if err := inRange(EnvEmbedWorkers, c.EmbedWorkers, 1, 64); err != nil {
		return err
	}
	if err := inRange(EnvUpstreamAttempts, c.UpstreamAttempts, 1, 10); err != nil {
		return err
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("%s must not be negative, got: %s", EnvSessionTTL, c.SessionTTL)
	}
	return nil
}

// DBPath is the SQLite index database location
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "medcontext.db")
}

// SessionDir is the persistent session store location
func (c *Config) SessionDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// SlogLevel maps LogLevel onto slog
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func oneOf(name, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of: %v, got: %s", name, valid, value)
}

func inRange(name string, value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("%s must be between %d and %d, got: %d", name, lo, hi, value)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got: %s", key, value))
		return defaultValue
	}
	return n
}

func getDurationEnv(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration, got: %s", key, value))
		return defaultValue
	}
	return d
}
