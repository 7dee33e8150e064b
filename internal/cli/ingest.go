package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process the corpus and build the embedding store",
		Long: `Extract, chunk and embed every PDF in the data directory, then persist
the embedding store. An existing store that still matches the corpus is
reused unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: runIngest,
	}

	cmd.Flags().BoolP("force", "f", false, "Recompute embeddings even if a matching store exists")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stderr)
	defer initTelemetry(cfg, logger)()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	result, err := a.indexer.Prepare(ctx, force)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "chunks: %d\nrecomputed: %t\nduration: %s\n",
		result.Chunks, result.Recomputed, result.Duration.Round(time.Millisecond))
	return nil
}
