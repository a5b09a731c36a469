package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/tempo-bot/tempomig/internal/cli/ui"
	"github.com/tempo-bot/tempomig/internal/engine"
	"github.com/tempo-bot/tempomig/internal/migrate"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Inspect the legacy store without migrating",
	Long: `Load and structurally validate the legacy activity.json, then print a
pre-flight report of what a migration would process. The target database is
never touched.

Examples:
  tempomig analyze
  tempomig analyze --source /data/activity.json --json`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("source", "", "Path to the legacy activity.json (overrides config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sp := ui.NewStepSpinner(os.Stderr, !ui.Interactive())
	sp.Start("Reading legacy store...")

	eng := engine.New(engine.Options{SourcePath: cfg.Source.Path},
		nil, nil, newLogger(cfg), migrate.NopReporter{})
	report, err := eng.Analyze()
	if err != nil {
		sp.Fail()
		return err
	}
	sp.Done()

	if jsonOutput(cmd) {
		return json.NewEncoder(os.Stdout).Encode(report)
	}
	report.PrintReport(os.Stdout)
	return nil
}
