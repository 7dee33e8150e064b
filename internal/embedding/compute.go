package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/petrorag/petrorag/internal/domain"
)

// Embedder turns text into a vector via a remote model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ComputeOptions tunes batch embedding.
type ComputeOptions struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// DefaultComputeOptions returns the defaults used for ingestion.
func DefaultComputeOptions() ComputeOptions {
	return ComputeOptions{
		Concurrency: 4,
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	}
}

// Compute embeds every chunk of corpus exactly once, with up to
// opts.Concurrency calls in flight. Failure is fail-fast: once any chunk
// exhausts its retries, outstanding work is cancelled and no store is
// returned. The resulting store follows corpus order regardless of which
// call completes first.
func Compute(ctx context.Context, corpus *domain.Corpus, embedder Embedder, opts ComputeOptions) (*Store, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		results  = make(map[string][]float32, corpus.Len())
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, ch := range corpus.Chunks() {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}

			var vec []float32
			err := RetryWithBackoff(ctx, func() error {
				v, err := embedder.Embed(ctx, ch.Text)
				if err != nil {
					return err
				}
				vec = v
				return nil
			}, opts.MaxAttempts, opts.RetryDelay)
			if err != nil {
				fail(fmt.Errorf("chunk %s: %w", ch.ID, err))
				return
			}

			mu.Lock()
			results[ch.ID] = vec
			done := len(results)
			mu.Unlock()

			if done%100 == 0 {
				logger.Info("embedding progress", "done", done, "total", corpus.Len())
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit embedding task: %w", submitErr))
			break
		}
	}

	wg.Wait()

	if firstErr != nil {
		if errors.Is(firstErr, context.Canceled) || errors.Is(firstErr, context.DeadlineExceeded) {
			return nil, firstErr
		}
		if !errors.Is(firstErr, domain.ErrEmbeddingProvider) {
			firstErr = domain.EmbeddingProviderError(firstErr)
		}
		return nil, firstErr
	}
	// Parent cancellation without a recorded failure.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store := NewStore(0)
	for _, ch := range corpus.Chunks() {
		if err := store.Add(ch.ID, results[ch.ID]); err != nil {
			return nil, err
		}
	}

	logger.Info("embeddings computed", "chunks", store.Len(), "dimension", store.Dimension())
	return store, nil
}
