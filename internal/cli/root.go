package cli

import (
	"fmt"
	"strconv"

	"github.com/petrorag/petrorag/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRootCmd assembles the petrorag command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "petrorag",
		Short: "Question answering over petroleum engineering documents",
		Long: `PetroRAG indexes a directory of PDF documents and answers questions
grounded in their most relevant passages.

Settings are read from the environment (PETRORAG_ prefix optional) and an
optional .env file. Flags override the environment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("data-dir", "data", "Directory of source PDFs")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(ServeCmd())
	root.AddCommand(IngestCmd())
	root.AddCommand(AskCmd())

	return root
}

// loadConfig reads the environment, then applies flags the user set
// explicitly.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var parseErr error
	flags.Visit(func(f *pflag.Flag) {
		value := f.Value.String()
		switch f.Name {
		case "host":
			cfg.Host = value
		case "port":
			cfg.Port = value
		case "data-dir":
			cfg.DataDir = value
		case "debug":
			debug, err := strconv.ParseBool(value)
			if err != nil {
				parseErr = fmt.Errorf("invalid --debug: %w", err)
				return
			}
			cfg.Debug = debug
		}
	})
	if parseErr != nil {
		return parseErr
	}
	return cfg.Validate()
}
