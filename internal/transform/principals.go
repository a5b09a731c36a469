package transform

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/validate"
)

// Principals migrates the user_activity collection into the principals and
// principal_activity tables. Exactly one principal_activity row exists per
// principal; re-runs update totals without duplicating rows.
func (t *Transformer) Principals(ctx context.Context, col map[string]legacy.UserActivity) Result {
	var res Result
	seen := make(map[string]bool, len(col))

	for _, id := range legacy.SortedKeys(col) {
		entry := col[id]

		if err := validate.Snowflake(id); err != nil {
			res.reject(id, "invalid identifier format")
			continue
		}
		if seen[id] {
			res.Skipped++
			continue
		}
		seen[id] = true

		totalTime, err := validate.NonNegativeInt(entry.TotalTime)
		if err != nil {
			res.reject(id, fmt.Sprintf("totalTime: %v", err))
			continue
		}
		sessionStart, err := validate.Timestamp(entry.StartTime)
		if err != nil {
			res.reject(id, fmt.Sprintf("startTime: %v", err))
			continue
		}
		displayName := validate.DisplayName(entry.DisplayName)

		active := sessionStart != nil
		lastSeen := t.now
		if sessionStart != nil {
			lastSeen = *sessionStart
		}
		sessionCount := 0
		if active {
			sessionCount = 1
		}

		err = t.db.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `
				INSERT INTO principals (id, display_name, first_seen, last_seen, is_active)
				VALUES ($1, $2, $3, $4, true)
				ON CONFLICT (id) DO UPDATE SET
					display_name = EXCLUDED.display_name,
					last_seen    = EXCLUDED.last_seen,
					updated_at   = now()`,
				id, displayName, lastSeen, lastSeen,
			); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO principal_activity
					(principal_id, total_time_ms, current_session_start, is_currently_active, session_count)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (principal_id) DO UPDATE SET
					total_time_ms         = EXCLUDED.total_time_ms,
					current_session_start = EXCLUDED.current_session_start,
					is_currently_active   = EXCLUDED.is_currently_active`,
				id, totalTime, sessionStart, active, sessionCount,
			)
			return err
		})
		if err != nil {
			res.reject(id, txReason(err))
			continue
		}

		t.knownPrincipals[id] = true
		res.Processed++
	}

	return res
}
