package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/logging"
	"github.com/54b3r/pressqa-go/internal/qa"
	"github.com/54b3r/pressqa-go/internal/tracing"
)

// NewAskCmd constructs `pressqa ask`, which answers one question from the
// indexed press releases and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	var (
		rf          retrievalFlags
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed press releases",
		Long: `Retrieve the most relevant press-release passages and ask the language
model to answer from them only, citing the numbered sources.

If nothing clears the similarity threshold the model is not called and a
fixed "no relevant information" message is printed. If the model cannot be
reached a fixed apology is printed instead of an error.

Examples:
  pressqa ask "What are the AI initiatives at Deutsche Telekom?"
  pressqa ask -k 8 -t 0.4 --show-context "How is Telekom expanding fiber?"
  MODEL_PROVIDER=ollama pressqa ask "Who leads T-Mobile US?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			flush, _ := tracing.Setup()
			defer flush()

			topK, threshold, err := rf.resolve(cmd)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			retriever, idx, err := buildRetriever(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer idx.Close()

			history := openHistory(log)
			if history != nil {
				defer history.Close()
			}

			svc, err := qa.NewService(retriever, buildGenerator(ctx, log), history)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			ans, err := svc.Answer(ctx, strings.Join(args, " "), topK, threshold)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ans.Text)
			if len(ans.Results) > 0 {
				printSources(out, ans.Results)
			}
			if showContext {
				fmt.Fprintln(out, "\nRetrieved context:")
				printResults(out, ans.Results)
			}
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVar(&showContext, "show-context", false, "Also print the retrieved passages")
	return cmd
}
