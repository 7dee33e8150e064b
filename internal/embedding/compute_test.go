package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps text to a vector and counts calls per text.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   map[string]int
	vectors map[string][]float32
	failOn  map[string]int // text -> number of leading failures; -1 fails forever
	delay   func(text string) time.Duration
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		calls:   make(map[string]int),
		vectors: make(map[string][]float32),
		failOn:  make(map[string]int),
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.delay != nil {
		select {
		case <-time.After(f.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls[text]++
	n := f.calls[text]
	limit, failing := f.failOn[text]
	f.mu.Unlock()

	if failing && (limit < 0 || n <= limit) {
		return nil, errors.New("upstream 500")
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

func quietOpts(concurrency int) ComputeOptions {
	return ComputeOptions{
		Concurrency: concurrency,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestCompute_EmbedsEveryChunkOnce(t *testing.T) {
	corpus := mustCorpus(t, "A_0", "A_5", "A_10", "B_0")
	embedder := newFakeEmbedder()

	store, err := Compute(context.Background(), corpus, embedder, quietOpts(3))
	require.NoError(t, err)

	assert.Equal(t, corpus.IDs(), store.IDs())
	assert.False(t, IsStale(store, corpus))
	for _, ch := range corpus.Chunks() {
		assert.Equal(t, 1, embedder.calls[ch.Text], ch.ID)
	}
}

func TestCompute_OrderIndependentOfCompletion(t *testing.T) {
	corpus := mustCorpus(t, "a", "b", "c", "d")
	embedder := newFakeEmbedder()
	embedder.vectors["text a"] = []float32{1, 0}
	embedder.vectors["text d"] = []float32{0, 1}
	// Earlier chunks finish last.
	embedder.delay = func(text string) time.Duration {
		switch text {
		case "text a":
			return 30 * time.Millisecond
		case "text b":
			return 20 * time.Millisecond
		case "text c":
			return 10 * time.Millisecond
		}
		return 0
	}

	store, err := Compute(context.Background(), corpus, embedder, quietOpts(4))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, store.IDs())
	va, _ := store.Get("a")
	vd, _ := store.Get("d")
	assert.Equal(t, []float32{1, 0}, va)
	assert.Equal(t, []float32{0, 1}, vd)
}

func TestCompute_RetriesTransientFailure(t *testing.T) {
	corpus := mustCorpus(t, "a", "b")
	embedder := newFakeEmbedder()
	embedder.failOn["text b"] = 2

	store, err := Compute(context.Background(), corpus, embedder, quietOpts(1))
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 3, embedder.calls["text b"])
}

func TestCompute_FailFast(t *testing.T) {
	corpus := mustCorpus(t, "a", "b", "c")
	embedder := newFakeEmbedder()
	embedder.failOn["text b"] = -1

	store, err := Compute(context.Background(), corpus, embedder, quietOpts(1))

	require.Error(t, err)
	assert.Nil(t, store)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Contains(t, err.Error(), "chunk b")
	assert.Equal(t, 3, embedder.calls["text b"])
	assert.Zero(t, embedder.calls["text c"], "work after the failure is not started")
}

func TestCompute_DimensionMismatch(t *testing.T) {
	corpus := mustCorpus(t, "a", "b")
	embedder := newFakeEmbedder()
	embedder.vectors["text a"] = []float32{1, 2, 3}
	embedder.vectors["text b"] = []float32{1, 2}

	_, err := Compute(context.Background(), corpus, embedder, quietOpts(2))

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCompute_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compute(ctx, mustCorpus(t, "a"), newFakeEmbedder(), quietOpts(1))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompute_RespectsConcurrencyLimit(t *testing.T) {
	corpus := mustCorpus(t, "a", "b", "c", "d", "e", "f", "g", "h")

	var inFlight, peak atomic.Int32
	embedder := &limitProbe{inFlight: &inFlight, peak: &peak}

	_, err := Compute(context.Background(), corpus, embedder, quietOpts(2))
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type limitProbe struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (p *limitProbe) Embed(ctx context.Context, text string) ([]float32, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return []float32{1}, nil
}

func TestCompute_EmptyCorpus(t *testing.T) {
	store, err := Compute(context.Background(), mustCorpus(t), newFakeEmbedder(), quietOpts(2))
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("all attempts fail", func(t *testing.T) {
		want := errors.New("persistent")
		attempts := 0
		err := RetryWithBackoff(context.Background(), func() error {
			attempts++
			return want
		}, 3, time.Millisecond)
		assert.Equal(t, want, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		attempts := 0
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			cancel()
			return errors.New("boom")
		}, 5, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
