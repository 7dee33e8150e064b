package service

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/petrorag/petrorag/internal/domain"
	"github.com/petrorag/petrorag/internal/embedding"
	"github.com/petrorag/petrorag/internal/memory"
	"github.com/petrorag/petrorag/internal/telemetry"
)

// EngineConfig controls query answering.
type EngineConfig struct {
	TopN            int
	MemoryMaxTokens int
}

// DefaultEngineConfig returns the default answering policy.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopN:            DefaultTopN,
		MemoryMaxTokens: 1000,
	}
}

// EngineStats describes what the engine is serving.
type EngineStats struct {
	Ready     bool
	Chunks    int
	Dimension int
}

type snapshot struct {
	corpus *domain.Corpus
	store  *embedding.Store
}

// Engine answers questions over a loaded corpus. It starts uninitialized and
// becomes ready on the first successful Load. Each Load swaps in a new
// immutable snapshot; queries already running keep the one they started with.
type Engine struct {
	provider Provider
	sessions *memory.Store
	cfg      EngineConfig
	current  atomic.Pointer[snapshot]
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil sessions store disables stateful mode.
func NewEngine(provider Provider, sessions *memory.Store, cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.TopN < 1 {
		cfg.TopN = DefaultTopN
	}
	if cfg.MemoryMaxTokens < 1 {
		cfg.MemoryMaxTokens = DefaultEngineConfig().MemoryMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: provider,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With("component", "engine"),
	}
}

// Load makes corpus and store the active snapshot. The store must hold a
// vector for every chunk in corpus.
func (e *Engine) Load(corpus *domain.Corpus, store *embedding.Store) error {
	if embedding.IsStale(store, corpus) {
		return domain.NewDomainError(domain.ErrCodeValidation, "embedding store does not match corpus")
	}

	e.current.Store(&snapshot{corpus: corpus, store: store})
	e.logger.Info("engine ready", "chunks", corpus.Len(), "dimension", store.Dimension())
	return nil
}

// Ready reports whether a snapshot has been loaded.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

func (e *Engine) Stats() EngineStats {
	snap := e.current.Load()
	if snap == nil {
		return EngineStats{}
	}
	return EngineStats{
		Ready:     true,
		Chunks:    snap.corpus.Len(),
		Dimension: snap.store.Dimension(),
	}
}

// MemoryEnabled reports whether stateful mode is on.
func (e *Engine) MemoryEnabled() bool {
	return e.sessions != nil
}

func (e *Engine) active() (*snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, domain.ErrEngineNotReady
	}
	return snap, nil
}

// Retrieve returns the topN chunks most similar to query. A topN below 1
// uses the configured default.
func (e *Engine) Retrieve(ctx context.Context, query string, topN int) ([]ScoredChunk, error) {
	snap, err := e.active()
	if err != nil {
		return nil, err
	}
	if topN < 1 {
		topN = e.cfg.TopN
	}
	return Retrieve(ctx, e.provider, query, snap.store, topN)
}

// Answer answers query statelessly.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	query, snap, err := e.begin(query)
	if err != nil {
		return "", err
	}

	answer, err := Answer(ctx, e.provider, query, snap.corpus, snap.store, e.cfg.TopN)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return answer, nil
}

// AnswerInSession answers query with the session's recent history prepended
// to the prompt, then records the exchange. Without memory or a session id
// it behaves like Answer. A failed generation leaves the history unchanged.
func (e *Engine) AnswerInSession(ctx context.Context, sessionID, query string) (string, error) {
	if e.sessions == nil || sessionID == "" {
		return e.Answer(ctx, query)
	}

	ctx, span := telemetry.StartSpan(ctx, "Engine.AnswerInSession", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "answer",
	})
	defer span.End()

	query, snap, err := e.begin(query)
	if err != nil {
		return "", err
	}

	sess := e.sessions.Session(sessionID)
	sess.Lock()
	defer sess.Unlock()

	history, err := sess.FormatForPrompt(ctx, e.cfg.MemoryMaxTokens)
	if err != nil {
		return "", err
	}

	prompt, err := preparePrompt(ctx, e.provider, query, snap.corpus, snap.store, e.cfg.TopN)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	if history != "" {
		prompt = history + "\n" + prompt
	}

	answer, err := e.provider.Generate(ctx, prompt)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	if err := sess.AddExchange(ctx, query, answer); err != nil {
		e.logger.Warn("failed to record exchange", "session_id", sessionID, "err", err)
	}
	return answer, nil
}

// ClearSession forgets the history of sessionID. It reports false when
// stateful mode is disabled.
func (e *Engine) ClearSession(sessionID string) bool {
	if e.sessions == nil {
		return false
	}
	e.sessions.Clear(sessionID)
	return true
}

func (e *Engine) begin(query string) (string, *snapshot, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil, domain.ErrEmptyQuery
	}
	snap, err := e.active()
	if err != nil {
		return "", nil, err
	}
	return query, snap, nil
}
