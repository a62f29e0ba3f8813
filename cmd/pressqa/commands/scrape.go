package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/scraper"
)

// NewScrapeCmd constructs `pressqa scrape`, which downloads press releases
// from the feed into the output directory.
func NewScrapeCmd() *cobra.Command {
	var (
		target      int
		outDir      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Download press releases from the Telekom feed",
		Long: `Walk the paginated press-release feed until the target number of unique
article URLs is collected, fetch and parse every article, then replace the
contents of the output directory with one press_release_<n>.json per article.

Articles that still fail after retries are logged and skipped.

Environment:
  SCRAPE_BASE_URL, SCRAPE_FEED_URL, SCRAPE_TARGET_COUNT (250),
  PRESS_RELEASES_DIR (./press_releases), SCRAPE_CONCURRENCY (4), SCRAPE_RPS (2)

Examples:
  pressqa scrape
  pressqa scrape --target 50 --out ./data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			cfg := scraper.ConfigFromEnv()
			if cmd.Flags().Changed("target") {
				cfg.TargetCount = target
			}
			if cmd.Flags().Changed("out") {
				cfg.OutputDir = outDir
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}

			s, err := scraper.New(cfg)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			res, err := s.Run(ctx, progressLogger(log))
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d press releases to %s (%d URLs, %d failed)\n",
				res.Written, cfg.OutputDir, res.URLs, res.Failed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&target, "target", "n", scraper.DefaultTargetCount, "Number of unique articles to collect")
	cmd.Flags().StringVarP(&outDir, "out", "o", scraper.DefaultOutputDir, "Output directory (emptied first)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Article fetches in flight")
	return cmd
}
