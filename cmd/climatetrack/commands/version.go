package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/version"
)

// NewVersionCmd constructs `climatetrack version`.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version, git commit and build date",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
