// Package cli holds the fogroute command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root fogroute command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fogroute",
		Short: "Route orchestration for fog instances",
		Long: `fogroute creates and deletes data routes between element instances
running on fog instances. Routes between two instances are carried by a
relay circuit leased on a satellite.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewCatalogCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
