package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/logging"
)

// NewHistoryCmd constructs `pressqa history`, which lists recently answered
// questions from the query log.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently answered questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return errors.New("history: --limit must be positive")
			}
			ctx := cmd.Context()
			hs := openHistory(logging.FromContext(ctx))
			if hs == nil {
				return errors.New("history: query log is disabled or unavailable")
			}
			defer hs.Close()

			entries, err := hs.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  k=%d t=%.2f results=%d\n  Q: %s\n  A: %s\n\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"), e.TopK, e.Threshold, e.Results,
					e.Question, indent(e.Answer, "     "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}
