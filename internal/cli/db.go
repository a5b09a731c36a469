package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tempo-bot/tempomig/internal/backup"
	"github.com/tempo-bot/tempomig/internal/cli/ui"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Backup and restore the migration source and target",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the source file and the target database",
	Long: `Write a timestamped copy of the legacy activity.json and a pg_dump of the
target database into the backup directory. The migrate command takes these
snapshots automatically; this command exists for taking one on demand.`,
	RunE: runDBBackup,
}

var dbRestoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore a snapshot taken by backup or migrate",
	Long: `Restore a snapshot from the backup directory. A .json snapshot is copied
back over the source file (or to --to); a .sql or .dump snapshot is replayed
into the target database with psql or pg_restore.`,
	Args: cobra.ExactArgs(1),
	RunE: runDBRestore,
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in the backup directory",
	RunE:  runDBList,
}

func init() {
	dbBackupCmd.Flags().String("source", "", "Path to the legacy activity.json (overrides config)")
	dbBackupCmd.Flags().String("database-url", "", "Target PostgreSQL URL (overrides config)")
	dbBackupCmd.Flags().String("backup-dir", "", "Backup directory (overrides config)")
	dbBackupCmd.Flags().Bool("source-only", false, "Snapshot only the source file")

	dbRestoreCmd.Flags().String("database-url", "", "Target PostgreSQL URL (overrides config)")
	dbRestoreCmd.Flags().String("backup-dir", "", "Backup directory (overrides config)")
	dbRestoreCmd.Flags().String("to", "", "Destination path for a source-file restore (default: configured source path)")

	dbListCmd.Flags().String("backup-dir", "", "Backup directory (overrides config)")

	dbCmd.AddCommand(dbBackupCmd)
	dbCmd.AddCommand(dbRestoreCmd)
	dbCmd.AddCommand(dbListCmd)
}

func runDBBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	mgr := backup.NewManager(cfg.Backup.Dir, cfg.Database.URL, logger)

	srcPath, err := mgr.SnapshotSource(cfg.Source.Path)
	if err != nil {
		return fmt.Errorf("snapshotting source: %w", err)
	}
	fmt.Printf("  source %s %s\n", ui.SymbolArrow, srcPath)

	sourceOnly, _ := cmd.Flags().GetBool("source-only")
	if sourceOnly {
		return nil
	}

	tgtPath, err := mgr.SnapshotTarget(cmd.Context())
	if err != nil {
		return fmt.Errorf("snapshotting target: %w", err)
	}
	fmt.Printf("  target %s %s\n", ui.SymbolArrow, tgtPath)
	return nil
}

func runDBRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	mgr := backup.NewManager(cfg.Backup.Dir, cfg.Database.URL, logger)

	backupPath := args[0]
	if strings.EqualFold(filepath.Ext(backupPath), ".json") {
		dest, _ := cmd.Flags().GetString("to")
		if dest == "" {
			dest = cfg.Source.Path
		}
		if err := mgr.RestoreSource(backupPath, dest); err != nil {
			return err
		}
		fmt.Printf("  restored %s %s %s\n", backupPath, ui.SymbolArrow, dest)
		return nil
	}

	if err := mgr.RestoreTarget(cmd.Context(), backupPath); err != nil {
		return err
	}
	fmt.Printf("  restored target from %s\n", backupPath)
	return nil
}

func runDBList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(cfg.Backup.Dir)
	if os.IsNotExist(err) {
		fmt.Println("  no backups yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading backup directory: %w", err)
	}

	type row struct {
		name string
		size int64
	}
	var rows []row
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		rows = append(rows, row{e.Name(), info.Size()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	if len(rows) == 0 {
		fmt.Println("  no backups yet")
		return nil
	}

	useColor := ui.ColorEnabledFd(os.Stdout.Fd())
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, bold("NAME\tSIZE", useColor))
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.name, formatSize(r.size))
	}
	return tw.Flush()
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
