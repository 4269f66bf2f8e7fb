package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tictocbench/tictoc/bench"
	"github.com/tictocbench/tictoc/config"
	"github.com/tictocbench/tictoc/internal/output"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Record a synthetic workload and save a session",
	Long: `Run a small synthetic pipeline (load, normalise, compute, postprocess)
for a number of iterations, recording step times and memory, then save
the session so it can be inspected with "tictoc report".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd)
	},
}

func runDemo(cmd *cobra.Command) error {
	iterations, _ := cmd.Flags().GetInt("iterations")
	configPath, _ := cmd.Flags().GetString("config")
	outputDir, _ := cmd.Flags().GetString("output")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	log := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		log = dev
	}

	reg, err := cfg.Registry(log)
	if err != nil {
		return err
	}

	items := make([]int, iterations)
	for i := range items {
		items[i] = i
	}

	acc := reg.Lookup("pipeline")
	for i := range bench.Iterate(reg, "pipeline", items) {
		buf := loadStage(i)
		acc.Step("load")
		normaliseStage(buf)
		acc.Step("normalise")
		sum := computeStage(buf)
		acc.Step("compute")
		postprocessStage(sum)
		acc.Step("postprocess")
	}
	acc.GStop()

	if err := reg.Save(); err != nil {
		return err
	}

	formatter := output.NewFormatter(noColor)
	fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s\n", reg.DefaultPath())
	fmt.Fprint(cmd.OutOrStdout(), formatter.FormatLatency(acc.LatencySnapshot()))
	return nil
}

// loadStage allocates a buffer sized by the iteration so the memory
// timeline has visible movement.
func loadStage(i int) []float64 {
	buf := make([]float64, 64*1024*(1+i%4))
	for j := range buf {
		buf[j] = float64(j % 97)
	}
	time.Sleep(2 * time.Millisecond)
	return buf
}

func normaliseStage(buf []float64) {
	max := 1.0
	for _, v := range buf {
		if v > max {
			max = v
		}
	}
	for j := range buf {
		buf[j] /= max
	}
	time.Sleep(time.Millisecond)
}

func computeStage(buf []float64) float64 {
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	time.Sleep(3 * time.Millisecond)
	return sum
}

func postprocessStage(sum float64) {
	_ = fmt.Sprintf("%.4f", sum)
	time.Sleep(time.Millisecond)
}

func init() {
	demoCmd.Flags().Int("iterations", 12, "Number of pipeline iterations to record")
	demoCmd.Flags().String("config", "", "YAML configuration file")
	demoCmd.Flags().String("output", "", "Override the session output directory")
	demoCmd.Flags().Bool("verbose", false, "Log accumulator activity")
}
