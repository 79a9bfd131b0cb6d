package indexer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/medcontext-mcp/internal/metrics"
	"github.com/dshills/medcontext-mcp/internal/projector"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// ErrIndexingInProgress is returned when a build is already running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// DenseBuilder builds the embedding index. It reports whether persisted
// vectors were reused instead of recomputed.
type DenseBuilder interface {
	Build(ctx context.Context, docs []types.RetrievableDocument) (reused bool, err error)
}

// SparseBuilder builds the lexical index
type SparseBuilder interface {
	Build(ctx context.Context, docs []types.RetrievableDocument) error
}

// Indexer coordinates the indexing pipeline: project -> build dense + sparse
type Indexer struct {
	dense   DenseBuilder
	sparse  SparseBuilder
	metrics *metrics.Metrics
	lock    IndexLock
	logger  *slog.Logger
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	Records          int
	FullDocuments    int
	CompactDocuments int
	DenseReused      bool
	DenseDuration    time.Duration
	SparseDuration   time.Duration
	Duration         time.Duration
}

// New creates a new Indexer instance. m may be nil.
func New(dense DenseBuilder, sparse SparseBuilder, m *metrics.Metrics) *Indexer {
	return &Indexer{
		dense:   dense,
		sparse:  sparse,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Build projects records and builds both indices concurrently. Only one
// build runs at a time; a concurrent call fails with ErrIndexingInProgress.
// Failures are returned as *types.IndexBuildError.
func (idx *Indexer) Build(ctx context.Context, records []types.DrugRecord) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()
	full := projector.Project(records, types.VariantFull)
	compact := projector.Project(records, types.VariantCompact)

	stats := &Statistics{
		Records:          len(records),
		FullDocuments:    len(full),
		CompactDocuments: len(compact),
	}

	idx.logger.Info("building indices", "records", len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		reused, err := idx.dense.Build(gctx, full)
		if err != nil {
			return asBuildError("dense", err)
		}
		stats.DenseReused = reused
		stats.DenseDuration = time.Since(start)
		idx.metrics.ObserveIndexBuild("dense", stats.DenseDuration, len(full))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		if err := idx.sparse.Build(gctx, compact); err != nil {
			return asBuildError("sparse", err)
		}
		stats.SparseDuration = time.Since(start)
		idx.metrics.ObserveIndexBuild("sparse", stats.SparseDuration, len(compact))
		return nil
	})

	if err := g.Wait(); err != nil {
		idx.logger.Error("index build failed", "err", err)
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indices ready",
		"documents", stats.FullDocuments,
		"dense_reused", stats.DenseReused,
		"duration", stats.Duration,
	)
	return stats, nil
}

// InProgress reports whether a build is currently running
func (idx *Indexer) InProgress() bool {
	return idx.lock.Held()
}

func asBuildError(index string, err error) error {
	var buildErr *types.IndexBuildError
	if errors.As(err, &buildErr) {
		return err
	}
	return &types.IndexBuildError{Index: index, Err: err}
}
