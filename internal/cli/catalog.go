package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/fogroute/internal/catalog"
)

func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect fabric catalog files",
	}
	cmd.AddCommand(newCatalogValidateCommand())
	return cmd
}

func newCatalogValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog file and print what it declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := catalog.NewLoader(args[0]).Load()
			if err != nil {
				return err
			}
			snap, err := catalog.NewMapper().Map(file)
			if err != nil {
				return fmt.Errorf("catalog %s is invalid: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog %s is valid\n", args[0])
			fmt.Fprintf(out, "  users:             %d\n", len(snap.Users))
			fmt.Fprintf(out, "  fabric types:      %d\n", len(snap.FabricTypes))
			fmt.Fprintf(out, "  network elements:  %d\n", len(snap.NetworkElements))
			fmt.Fprintf(out, "  satellites:        %d\n", len(snap.Satellites))
			fmt.Fprintf(out, "  tracks:            %d\n", len(snap.Tracks))
			fmt.Fprintf(out, "  instances:         %d\n", len(snap.Instances))
			fmt.Fprintf(out, "  element instances: %d\n", len(snap.ElementInstances))
			return nil
		},
	}
}
