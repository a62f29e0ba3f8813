package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/index"
	"github.com/54b3r/pressqa-go/internal/logging"
)

// NewIndexCmd constructs `pressqa index`, the vector index lifecycle group.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, inspect, or clear the vector index",
	}
	cmd.AddCommand(newIndexCreateCmd(), newIndexClearCmd())
	return cmd
}

func newIndexCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the index schema or collection if it does not exist",
		Long: `Open the configured index, creating its schema (SQLite, PostgreSQL) or
collection (Qdrant) bound to the current embedding model. Opening an index
that was built with a different model or dimension fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("index create: %w", err)
			}
			idx, err := buildIndex(ctx, emb, log)
			if err != nil {
				return fmt.Errorf("index create: %w", err)
			}
			defer idx.Close()

			n, err := idx.Count(ctx)
			if err != nil {
				return fmt.Errorf("index create: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s index ready for %s (%d dims), %d chunks stored\n",
				index.BackendFromEnv(), emb.Model(), emb.Dimensions(), n)
			return nil
		},
	}
}

func newIndexClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every chunk from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("index clear: refusing to delete all chunks without --yes")
			}
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("index clear: %w", err)
			}
			idx, err := buildIndex(ctx, emb, log)
			if err != nil {
				return fmt.Errorf("index clear: %w", err)
			}
			defer idx.Close()

			if err := idx.Clear(ctx); err != nil {
				return fmt.Errorf("index clear: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s index cleared\n", index.BackendFromEnv())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}
