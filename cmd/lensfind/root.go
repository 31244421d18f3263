package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for lensfind.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lensfind",
		Short: "Search source catalogs for gravitational lensing patterns",
		Long: `lensfind analyses catalogs of detected point sources (position and flux)
and reports groups that look like strong gravitational lensing:

- Einstein Cross candidates: four images of similar brightness tightly
  grouped around the central lensing mass
- Gravitational arcs: sources at a common distance from the lens spread
  over a wide angle

Runs are stored in a local SQLite database so that results can be compared
over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "text", "Log output format on stderr: text or json")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewSimulateCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
