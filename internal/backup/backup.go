// Package backup snapshots the legacy source file and the target database
// before any mutation, and restores either. Target snapshots shell out to
// pg_dump; restores use psql for plain SQL dumps and pg_restore for custom
// formats. Prior backups are never deleted.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const timestampLayout = "20060102-150405"

// Manager writes timestamped snapshots into a single backup directory.
type Manager struct {
	dir         string
	databaseURL string
	logger      *slog.Logger
}

// NewManager creates a backup manager rooted at dir.
func NewManager(dir, databaseURL string, logger *slog.Logger) *Manager {
	return &Manager{dir: dir, databaseURL: databaseURL, logger: logger}
}

// SnapshotSource copies the legacy source file byte-for-byte to a timestamped
// path inside the backup directory and returns that path.
func (m *Manager) SnapshotSource(path string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening source for backup: %w", err)
	}
	defer src.Close()

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := fmt.Sprintf("%s-%s", base[:len(base)-len(ext)], time.Now().Format(timestampLayout))
	dest := uniquePath(m.dir, stem, ext)

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return "", fmt.Errorf("copying source to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("syncing backup file: %w", err)
	}

	m.logger.Info("source snapshot written", "path", dest, "bytes", n)
	return dest, nil
}

// uniquePath returns dir/stem+ext, suffixing a counter if a prior backup from
// the same second already holds the name. Existing backups are never replaced.
func uniquePath(dir, stem, ext string) string {
	dest := filepath.Join(dir, stem+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
}

// SnapshotTarget dumps the target database to a timestamped plain-SQL file
// using pg_dump and returns the path.
func (m *Manager) SnapshotTarget(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	pgDump, err := exec.LookPath("pg_dump")
	if err != nil {
		return "", fmt.Errorf("pg_dump not found in PATH: install PostgreSQL client tools")
	}

	dest := uniquePath(m.dir, "target-"+time.Now().Format(timestampLayout), ".sql")
	cmd := exec.CommandContext(ctx, pgDump,
		"--dbname="+m.databaseURL,
		"--format=plain",
		"--file="+dest,
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pg_dump failed: %w", err)
	}

	if info, err := os.Stat(dest); err == nil {
		m.logger.Info("target snapshot written", "path", dest, "bytes", info.Size())
	}
	return dest, nil
}

// RestoreSource copies a source backup back over destPath.
func (m *Manager) RestoreSource(backupPath, destPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating restore target: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restoring source file: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("syncing restored file: %w", err)
	}

	m.logger.Info("source restored", "from", backupPath, "to", destPath)
	return nil
}

// RestoreTarget replays a target backup against the database. Plain .sql
// dumps go through psql; .dump and .tar formats go through pg_restore.
func (m *Manager) RestoreTarget(ctx context.Context, backupPath string) error {
	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	m.logger.Info("restoring target", "path", backupPath, "bytes", info.Size())

	ext := filepath.Ext(backupPath)
	if ext == ".dump" || ext == ".tar" {
		pgRestore, lookErr := exec.LookPath("pg_restore")
		if lookErr != nil {
			return fmt.Errorf("pg_restore not found in PATH: install PostgreSQL client tools")
		}
		cmd := exec.CommandContext(ctx, pgRestore,
			"--dbname="+m.databaseURL,
			"--clean",
			"--if-exists",
			backupPath,
		)
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("pg_restore failed: %w", err)
		}
		return nil
	}

	psql, lookErr := exec.LookPath("psql")
	if lookErr != nil {
		return fmt.Errorf("psql not found in PATH: install PostgreSQL client tools")
	}
	cmd := exec.CommandContext(ctx, psql, "--dbname="+m.databaseURL, "--file="+backupPath)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("psql failed: %w", err)
	}
	return nil
}
