package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/petrorag/petrorag/internal/service"
	"github.com/spf13/cobra"
)

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the command line",
		Long: `Prepare the corpus (reusing the persisted store when possible) and print
the answer to a single question. Arguments are joined with spaces.

With --sources the chunks used as context are listed after the answer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().Bool("sources", false, "List the retrieved chunks and their scores")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	if _, err := a.indexer.Prepare(ctx, false); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	answer, err := a.engine.Answer(ctx, query)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)

	if sources, _ := cmd.Flags().GetBool("sources"); sources {
		ranked, err := a.engine.Retrieve(ctx, query, 0)
		if err != nil {
			return err
		}
		printSources(cmd.OutOrStdout(), ranked)
	}
	return nil
}

func printSources(w io.Writer, ranked []service.ScoredChunk) {
	fmt.Fprintln(w, "\nSources:")
	for i, sc := range ranked {
		fmt.Fprintf(w, "%d. %s (%.4f)\n", i+1, sc.ChunkID, sc.Score)
	}
}
