package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/fogroute/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fogroute "+version.String())
		},
	}
}
