package jobs

import (
	"context"
	"log/slog"

	"github.com/petrorag/petrorag/internal/service"
)

// Preparer rebuilds the engine's corpus and embeddings.
type Preparer interface {
	Prepare(ctx context.Context, force bool) (*service.PrepareResult, error)
}

// Reload is a Task that re-scans the document directory. Unchanged corpora
// reuse the persisted store, so a quiet tick costs one extraction pass.
type Reload struct {
	preparer Preparer
	logger   *slog.Logger
}

func NewReload(preparer Preparer, logger *slog.Logger) *Reload {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reload{preparer: preparer, logger: logger.With("component", "reload")}
}

func (r *Reload) Run(ctx context.Context) error {
	result, err := r.preparer.Prepare(ctx, false)
	if err != nil {
		return err
	}
	if result.Recomputed {
		r.logger.Info("corpus reloaded", "chunks", result.Chunks, "duration", result.Duration)
	}
	return nil
}
