package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tictocbench/tictoc/internal/output"
	"github.com/tictocbench/tictoc/plot"
	"github.com/tictocbench/tictoc/record"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a recorded session and optionally render it to HTML",
	Long: `Read the JSON artifacts of a recorded session and print per-step
statistics to the terminal.

Without --path the newest session under the root directory is used:

  tictoc report --root TICTOC_PERFORMANCE

With --plot an HTML report with summary bars and chronological timelines
is written alongside the terminal output:

  tictoc report --plot --out report.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd)
	},
}

func runReport(cmd *cobra.Command) error {
	root, _ := cmd.Flags().GetString("root")
	path, _ := cmd.Flags().GetString("path")
	doPlot, _ := cmd.Flags().GetBool("plot")
	outPath, _ := cmd.Flags().GetString("out")
	noColor, _ := cmd.Flags().GetBool("no-color")
	filterNoChange, _ := cmd.Flags().GetFloat64("filter-no-change")
	clusterLen, _ := cmd.Flags().GetInt("cluster-length")

	if path == "" {
		latest, err := record.LatestSession(root)
		if err != nil {
			return fmt.Errorf("locating latest session under %s: %w", root, err)
		}
		path = latest
	}

	sess, err := record.LoadSession(path)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", path, err)
	}

	formatter := output.NewFormatter(noColor)
	fmt.Fprint(cmd.OutOrStdout(), formatter.FormatSession(sess))

	if doPlot {
		o := plot.DefaultOptions()
		o.FilterNoChange = filterNoChange
		o.ClusterMaxLength = clusterLen
		if err := plot.RenderSession(sess, outPath, o); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", outPath)
	}
	return nil
}

func init() {
	reportCmd.Flags().String("root", record.SessionDirName, "Directory holding timestamped sessions")
	reportCmd.Flags().String("path", "", "Exact session directory (overrides --root)")
	reportCmd.Flags().Bool("plot", false, "Render an HTML report")
	reportCmd.Flags().String("out", "report.html", "Output path for the HTML report")
	reportCmd.Flags().Float64("filter-no-change", -1, "Drop memory timeline entries that moved less than this fraction of the range (negative disables)")
	reportCmd.Flags().Int("cluster-length", 5, "Collapse repeated step patterns up to this length (0 disables)")
}
