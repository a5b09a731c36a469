package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/validate"
)

// ActivityLogs migrates the ordered activity_logs list. Events reference a
// principal by snowflake; events whose principal was rejected upstream are
// foreign-key errors here, not silently dropped. Replayed events dedup on
// (principal_id, occurred_at, event_type).
func (t *Transformer) ActivityLogs(ctx context.Context, logs []legacy.ActivityLog) Result {
	var res Result
	seen := make(map[string]bool, len(logs))

	for i, entry := range logs {
		key := fmt.Sprintf("activity_logs[%d]", i)

		if err := validate.Snowflake(entry.UserID); err != nil {
			res.reject(key, "invalid identifier format")
			continue
		}
		if entry.EventType == "" {
			res.reject(key, "eventType: missing")
			continue
		}

		ts, err := validate.Timestamp(entry.Timestamp)
		if err != nil || ts == nil {
			res.reject(key, "timestamp: missing or invalid")
			continue
		}

		dedup := fmt.Sprintf("%s@%d/%s", entry.UserID, ts.UnixMilli(), entry.EventType)
		if seen[dedup] {
			res.Skipped++
			continue
		}
		seen[dedup] = true

		exists, err := t.principalExists(ctx, entry.UserID)
		if err != nil {
			res.reject(key, txReason(err))
			continue
		}
		if !exists {
			res.reject(key, fmt.Sprintf("principal not found: %s", entry.UserID))
			continue
		}

		var duration *int64
		if entry.DurationMS != nil {
			d, err := validate.NonNegativeInt(entry.DurationMS)
			if err != nil {
				res.reject(key, fmt.Sprintf("durationMs: %v", err))
				continue
			}
			duration = &d
		}

		var extra []byte
		if len(entry.Extra) > 0 {
			extra, err = json.Marshal(entry.Extra)
			if err != nil {
				res.reject(key, fmt.Sprintf("extra: %v", err))
				continue
			}
		}

		err = t.db.WithTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
				INSERT INTO activity_log
					(principal_id, event_type, occurred_at, channel_id, channel_name, duration_ms, extra)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (principal_id, occurred_at, event_type) DO NOTHING`,
				entry.UserID, entry.EventType, *ts,
				nullIfEmpty(entry.ChannelID), nullIfEmpty(entry.ChannelName),
				duration, extra,
			)
			return err
		})
		if err != nil {
			res.reject(key, txReason(err))
			continue
		}

		res.Processed++
	}

	return res
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
