package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/petrorag/petrorag/internal/embedding"
	"github.com/petrorag/petrorag/internal/storage"
	"github.com/petrorag/petrorag/internal/telemetry"
)

// CorpusBuilder produces the current corpus from the source documents.
type CorpusBuilder interface {
	ProcessDir(ctx context.Context, dir string) (*domain.Corpus, error)
}

// IndexerConfig locates the corpus and tunes embedding.
type IndexerConfig struct {
	DataDir string
	Compute embedding.ComputeOptions
}

// PrepareResult summarizes one Prepare run.
type PrepareResult struct {
	Chunks     int
	Recomputed bool
	Duration   time.Duration
}

// Indexer brings the engine to Ready: it builds the corpus, reuses the
// persisted embedding store when it still matches, and otherwise recomputes
// and persists a new one.
type Indexer struct {
	builder  CorpusBuilder
	embedder embedding.Embedder
	blob     storage.Blob
	engine   *Engine
	cfg      IndexerConfig
	logger   *slog.Logger
}

// NewIndexer creates a new Indexer.
func NewIndexer(builder CorpusBuilder, embedder embedding.Embedder, blob storage.Blob, engine *Engine, cfg IndexerConfig, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "indexer")
	if cfg.Compute.Logger == nil {
		cfg.Compute.Logger = logger
	}
	return &Indexer{
		builder:  builder,
		embedder: embedder,
		blob:     blob,
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
	}
}

// Prepare builds the corpus and loads it into the engine. With force, any
// persisted store is ignored and rebuilt. A missing, corrupt or stale store
// is recomputed in full. Embedding failures abort without touching the
// persisted store or the engine's current snapshot.
func (ix *Indexer) Prepare(ctx context.Context, force bool) (*PrepareResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.Prepare", telemetry.SpanAttributes{
		Operation: "prepare",
	})
	defer span.End()

	start := time.Now()

	corpus, err := ix.builder.ProcessDir(ctx, ix.cfg.DataDir)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to build corpus: %w", err)
	}

	store, recomputed, err := ix.loadOrCompute(ctx, corpus, force)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := ix.engine.Load(corpus, store); err != nil {
		span.SetError(err)
		return nil, err
	}

	result := &PrepareResult{
		Chunks:     corpus.Len(),
		Recomputed: recomputed,
		Duration:   time.Since(start),
	}
	ix.logger.Info("prepare complete", "chunks", result.Chunks, "recomputed", recomputed, "duration", result.Duration)
	return result, nil
}

func (ix *Indexer) loadOrCompute(ctx context.Context, corpus *domain.Corpus, force bool) (*embedding.Store, bool, error) {
	if !force {
		store, err := embedding.Load(ctx, ix.blob)
		switch {
		case err == nil && !embedding.IsStale(store, corpus):
			ix.logger.Info("reusing persisted embeddings", "chunks", store.Len())
			telemetry.AddBreadcrumb(ctx, "store", "reused persisted embeddings")
			return store, false, nil
		case err == nil:
			ix.logger.Info("persisted embeddings are stale", "stored", store.Len(), "corpus", corpus.Len())
		case errors.Is(err, domain.ErrStoreNotFound):
			ix.logger.Info("no persisted embeddings")
		case errors.Is(err, domain.ErrStoreCorrupt):
			ix.logger.Warn("persisted embeddings are corrupt", "err", err)
		default:
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			ix.logger.Warn("failed to read persisted embeddings", "err", err)
		}
	}

	ix.logger.Info("computing embeddings", "chunks", corpus.Len())
	telemetry.AddBreadcrumb(ctx, "store", "recomputing embeddings")
	store, err := embedding.Compute(ctx, corpus, ix.embedder, ix.cfg.Compute)
	if err != nil {
		return nil, false, err
	}

	if err := embedding.Save(ctx, ix.blob, store); err != nil {
		return nil, false, fmt.Errorf("failed to persist embeddings: %w", err)
	}
	return store, true, nil
}
