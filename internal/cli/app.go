// Package cli implements the petrorag commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/embedding"
	"github.com/petrorag/petrorag/internal/ingest"
	"github.com/petrorag/petrorag/internal/memory"
	"github.com/petrorag/petrorag/internal/openai"
	"github.com/petrorag/petrorag/internal/pdf"
	"github.com/petrorag/petrorag/internal/service"
	"github.com/petrorag/petrorag/internal/storage"
	"github.com/petrorag/petrorag/internal/telemetry"
	"github.com/petrorag/petrorag/internal/textproc"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds the wired pipeline shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *service.Engine
	indexer *service.Indexer
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func initTelemetry(cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.HasSentry() {
		return func() {}
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRate(cfg.Environment),
		Debug:            cfg.Debug,
	})
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", "err", err)
		return func() {}
	}
	return shutdown
}

// newBlob returns the local embeddings file, mirrored to S3 when configured.
// Reads prefer the S3 copy.
func newBlob(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Blob, error) {
	local := storage.NewFileBlob(cfg.EmbeddingsFile)
	if !cfg.HasS3() {
		return local, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}

	remote := storage.NewS3Blob(client, cfg.S3Key)
	logger.Info("embedding store mirrored to S3", "remote", remote.String(), "local", local.String())
	return storage.NewMirror(remote, local), nil
}

func newProvider(cfg *config.Config) *openai.Client {
	return openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: goopenai.EmbeddingModel(cfg.EmbeddingModel),
		ChatModel:      cfg.LLMModel,
		Timeout:        cfg.ProviderTimeout,
		SystemPrompt:   cfg.SystemPrompt,
	})
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	segmenter, err := textproc.NewPunktSegmenter()
	if err != nil {
		return nil, err
	}
	processor := ingest.NewProcessor(
		pdf.NewExtractor(),
		segmenter,
		service.ChunkConfig{SentencesPerChunk: cfg.ChunkSize},
		logger,
	)

	blob, err := newBlob(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var sessions *memory.Store
	if cfg.UseMemory {
		sessions = memory.NewStore(memory.Config{
			MaxHistory:  cfg.MaxHistory,
			MaxSessions: cfg.MaxSessions,
			TTL:         cfg.SessionTTL,
		})
	}

	provider := newProvider(cfg)
	engine := service.NewEngine(provider, sessions, service.EngineConfig{
		TopN:            cfg.MaxContextSections,
		MemoryMaxTokens: cfg.MemoryMaxTokens,
	}, logger)

	indexer := service.NewIndexer(processor, provider, blob, engine, service.IndexerConfig{
		DataDir: cfg.DataDir,
		Compute: embedding.ComputeOptions{
			Concurrency: cfg.EmbedConcurrency,
			MaxAttempts: cfg.EmbedMaxAttempts,
			RetryDelay:  cfg.EmbedRetryDelay,
		},
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		indexer: indexer,
	}, nil
}
