package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/medcontext-mcp/internal/assistant"
	"github.com/dshills/medcontext-mcp/internal/config"
	"github.com/dshills/medcontext-mcp/internal/corpus"
	"github.com/dshills/medcontext-mcp/internal/embedder"
	"github.com/dshills/medcontext-mcp/internal/indexer"
	"github.com/dshills/medcontext-mcp/internal/llm"
	"github.com/dshills/medcontext-mcp/internal/metrics"
	"github.com/dshills/medcontext-mcp/internal/searcher"
	"github.com/dshills/medcontext-mcp/internal/session"
	"github.com/dshills/medcontext-mcp/internal/storage"
	"github.com/dshills/medcontext-mcp/internal/symptom"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// application holds the wired components shared by every command
type application struct {
	cfg       *config.Config
	records   []types.DrugRecord
	store     storage.Storage
	embedder  embedder.Embedder
	dense     *searcher.DenseIndex
	sparse    *searcher.SparseIndex
	hybrid    *searcher.HybridRetriever
	searcher  *searcher.Searcher
	indexer   *indexer.Indexer
	sessions  session.Store
	assistant *assistant.Assistant
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// openStorage opens the index database under the data directory
func openStorage(cfg *config.Config) (storage.Storage, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// newApplication loads the corpus and wires storage, indices and the
// assistant. withLLM is false for commands that never generate text.
func newApplication(cfg *config.Config, withLLM bool) (*application, error) {
	logger := slog.Default().With("component", "app")

	records, err := corpus.LoadFile(cfg.CSVPath, corpus.Options{Encoding: cfg.CSVEncoding})
	if err != nil {
		return nil, err
	}
	logger.Info("corpus loaded", "path", cfg.CSVPath, "records", len(records))

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	a := &application{
		cfg:     cfg,
		records: records,
		store:   store,
		metrics: metrics.New(),
		logger:  logger,
	}

	a.embedder, err = embedder.New(embedder.Config{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModel,
		Host:      cfg.OllamaHost,
		APIKey:    cfg.OpenAIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		CacheSize: cfg.CacheSize,
		Attempts:  cfg.UpstreamAttempts,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	a.dense = searcher.NewDenseIndex(store, a.embedder, searcher.DenseOptions{Workers: cfg.EmbedWorkers})
	a.sparse = searcher.NewSparseIndex(store)
	a.hybrid = searcher.NewHybridRetriever(a.dense, a.sparse, searcher.HybridOptions{
		KDense:    cfg.KDense,
		KSparse:   cfg.KSparse,
		CacheSize: cfg.CacheSize,
	})
	a.searcher = searcher.NewSearcher(a.dense, a.sparse, a.hybrid, a.metrics)
	a.indexer = indexer.New(a.dense, a.sparse, a.metrics)

	if !withLLM {
		return a, nil
	}

	gen, err := llm.New(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		Host:     cfg.OllamaHost,
		APIKey:   cfg.OpenAIKey,
		BaseURL:  cfg.OpenAIBaseURL,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize language model: %w", err)
	}

	switch cfg.SessionBackend {
	case config.SessionBadger:
		bs, err := session.OpenBadgerStore(cfg.SessionDir(), cfg.SessionTTL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.sessions = bs
	default:
		a.sessions = session.NewMemoryStore()
	}

	a.assistant = assistant.New(assistant.Deps{
		Records:     records,
		Names:       corpus.NewNameSet(records),
		Dense:       a.dense,
		Hybrid:      a.hybrid,
		Symptoms:    symptom.NewMatcher(records),
		Generator:   gen,
		Sessions:    a.sessions,
		Metrics:     a.metrics,
		SymptomTopK: cfg.SymptomTopK,
	})
	return a, nil
}

// buildIndices builds both indices. force discards the dense marker so
// every document is embedded again.
func (a *application) buildIndices(ctx context.Context, force bool) (*indexer.Statistics, error) {
	if force {
		if err := a.store.DeleteIndexState(ctx, searcher.DenseStateName); err != nil {
			return nil, fmt.Errorf("failed to reset dense index: %w", err)
		}
	}

	stats, err := a.indexer.Build(ctx, a.records)
	if err != nil {
		return nil, err
	}
	a.hybrid.Purge()

	a.logger.Info("indices ready",
		"records", stats.Records,
		"dense_reused", stats.DenseReused,
		"dense_duration", stats.DenseDuration,
		"sparse_duration", stats.SparseDuration)
	return stats, nil
}

// health reports readiness for the metrics server
func (a *application) health(ctx context.Context) (map[string]any, error) {
	status, err := a.store.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"full_documents":    status.FullDocuments,
		"compact_documents": status.CompactDocuments,
		"embeddings":        status.Embeddings,
		"indexing":          a.indexer.InProgress(),
	}, nil
}

func (a *application) close() {
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Warn("failed to close session store", "err", err)
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn("failed to close embedder", "err", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close storage", "err", err)
		}
	}
}
