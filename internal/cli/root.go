package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "tictoc",
	Short:   "Inspect and render performance sessions recorded by tictoc",
	Version: version,
	Long: `Tictoc records wall-clock time and process memory per named step across
iterations and persists each session as JSON artifacts. This tool reads
those artifacts back, prints per-step statistics and renders HTML reports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is provided, print help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands to root command
	RootCmd.AddCommand(reportCmd)
	RootCmd.AddCommand(demoCmd)
}
