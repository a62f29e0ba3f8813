package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pressqa-go/internal/version"
)

// NewVersionCmd constructs `pressqa version`.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pressqa version, git commit, and build date",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
