package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tempo-bot/tempomig/internal/backup"
	"github.com/tempo-bot/tempomig/internal/engine"
	"github.com/tempo-bot/tempomig/internal/migrate"
	"github.com/tempo-bot/tempomig/internal/pgtx"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run the full migration pipeline",
	Long: `Migrate the legacy activity.json store into the target PostgreSQL
database: back up both sides, initialize the schema, convert each collection
in dependency order, verify the result, and record the run.

Re-running against the same target is safe: every write is an idempotent
upsert. With --resume, collections already completed for the exact same
source file (matched by checksum) are skipped entirely.

Examples:
  tempomig migrate
  tempomig migrate --source /data/activity.json --database-url postgres://localhost/tempo
  tempomig migrate --resume`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("source", "", "Path to the legacy activity.json (overrides config)")
	migrateCmd.Flags().String("database-url", "", "Target PostgreSQL URL (overrides config)")
	migrateCmd.Flags().String("backup-dir", "", "Directory for pre-migration backups (overrides config)")
	migrateCmd.Flags().Bool("resume", false, "Skip collections already migrated for this source file")
	migrateCmd.Flags().Bool("skip-target-backup", false, "Do not pg_dump the target before migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	resume, _ := cmd.Flags().GetBool("resume")
	skipTargetBackup, _ := cmd.Flags().GetBool("skip-target-backup")

	var reporter migrate.ProgressReporter = migrate.NewCLIReporter(os.Stderr)
	if jsonOutput(cmd) {
		reporter = migrate.NopReporter{}
	}

	eng := engine.New(engine.Options{
		SourcePath:       cfg.Source.Path,
		Resume:           resume,
		SkipTargetBackup: skipTargetBackup,
		SumTolerance:     cfg.Verify.SumTolerance,
	},
		pgtx.NewManager(pool, logger, cfg.SlowThreshold()),
		backup.NewManager(cfg.Backup.Dir, cfg.Database.URL, logger),
		logger,
		reporter,
	)

	report, runErr := eng.Migrate(ctx)

	if jsonOutput(cmd) {
		if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
			return err
		}
	} else if runErr != nil {
		// Failed runs print their report, error list included, to stderr.
		report.Print(os.Stderr)
	} else {
		report.Print(os.Stdout)
	}

	if runErr != nil {
		return fmt.Errorf("migration failed: %w", runErr)
	}
	return nil
}
