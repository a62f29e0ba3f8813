// Package commands defines the Cobra command tree for the pressqa binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/audit"
	"github.com/54b3r/pressqa-go/internal/config"
	"github.com/54b3r/pressqa-go/internal/logging"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	// configPath is the --config YAML override.
	configPath string
	// envFile is the --env-file dotenv path.
	envFile string
}

// NewRootCmd constructs the root command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "pressqa",
		Short: "Question answering over Deutsche Telekom press releases",
		Long: `pressqa keeps a local corpus of Deutsche Telekom press releases and
answers questions about them with citations.

Typical flow:
  pressqa scrape                 fetch the latest press releases to disk
  pressqa ingest                 chunk, embed, and index them
  pressqa ask "What are the AI initiatives at Deutsche Telekom?"
  pressqa serve                  expose the same over HTTP

Settings come from the environment, an optional .env file, and an optional
YAML file (~/.pressqa/config.yaml). Real environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// The logger is built after both files are applied so LOG_LEVEL
			// and LOG_FORMAT can come from either of them.
			bootstrap := logging.New()
			if err := config.LoadDotenv(flags.envFile, bootstrap); err != nil {
				return err
			}
			path, err := config.Load(flags.configPath, bootstrap)
			if err != nil {
				return err
			}

			log := logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))
			audit.LogCommandStart(log, cmd.CommandPath(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML config file (default: ~/.pressqa/config.yaml)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to a dotenv file; missing files are ignored")

	root.AddCommand(
		NewScrapeCmd(),
		NewIngestCmd(),
		NewIndexCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)
	return root
}
