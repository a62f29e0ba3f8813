package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/rag"
)

// retrievalFlags are the --top-k and --threshold flags shared by search and ask.
type retrievalFlags struct {
	topK      int
	threshold float64
}

func (f *retrievalFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", rag.DefaultTopK, fmt.Sprintf("Chunks to retrieve [%d, %d] (default: $RETRIEVAL_TOP_K or %d)", rag.MinTopK, rag.MaxTopK, rag.DefaultTopK))
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", rag.DefaultThreshold, "Minimum similarity in [0, 1] (default: $RETRIEVAL_THRESHOLD or 0.5)")
}

// resolve applies environment defaults for flags the user did not set. An
// environment value is only read, and only validated, when its flag is unset.
func (f *retrievalFlags) resolve(cmd *cobra.Command) (topK int, threshold float64, err error) {
	topK, threshold = f.topK, f.threshold
	if !cmd.Flags().Changed("top-k") {
		if topK, err = envTopK(); err != nil {
			return 0, 0, err
		}
	}
	if !cmd.Flags().Changed("threshold") {
		if threshold, err = envThreshold(); err != nil {
			return 0, 0, err
		}
	}
	return topK, threshold, nil
}

// NewSearchCmd constructs `pressqa search`, which prints the raw retrieval
// results for a query without calling the language model.
func NewSearchCmd() *cobra.Command {
	var (
		rf     retrievalFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show the press-release passages most similar to a query",
		Long: `Embed the query and print the indexed chunks whose similarity is at least
the threshold, best first. Useful for tuning --top-k and --threshold.

Examples:
  pressqa search "5G network expansion"
  pressqa search -k 10 -t 0.3 --json "T-Systems cloud"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			topK, threshold, err := rf.resolve(cmd)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			retriever, idx, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer idx.Close()

			results, err := retriever.Retrieve(ctx, strings.Join(args, " "), topK, threshold)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if asJSON {
				if results == nil {
					results = []rag.Result{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}
