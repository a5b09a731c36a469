package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// loadCheckpoints returns the groups already completed for the given source
// checksum. A changed source file yields a new checksum and an empty set, so
// resume never skips work against different data.
func (e *Engine) loadCheckpoints(ctx context.Context, checksum string) (map[string]bool, error) {
	rows, err := e.db.Query(ctx,
		`SELECT group_name FROM migration_checkpoints WHERE source_checksum = $1`, checksum)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoints: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		done[name] = true
	}
	return done, rows.Err()
}

func (e *Engine) saveCheckpoint(ctx context.Context, checksum, group string) error {
	return e.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO migration_checkpoints (source_checksum, group_name, run_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (source_checksum, group_name) DO UPDATE SET
				run_id       = EXCLUDED.run_id,
				completed_at = now()`,
			checksum, group, e.runID,
		)
		if err != nil {
			return fmt.Errorf("recording checkpoint for %s: %w", group, err)
		}
		return nil
	})
}
