package transform

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/validate"
)

// AFKStatus migrates the afk_status collection. Rows are unique on
// (principal_id, afk_start); is_active is derived from afk_until.
func (t *Transformer) AFKStatus(ctx context.Context, col map[string]legacy.AFKEntry) Result {
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

		exists, err := t.principalExists(ctx, id)
		if err != nil {
			res.reject(id, txReason(err))
			continue
		}
		if !exists {
			res.reject(id, fmt.Sprintf("principal not found: %s", id))
			continue
		}

		afkStart, err := validate.Timestamp(entry.AFKStart)
		if err != nil || afkStart == nil {
			res.reject(id, "afkStart: missing or invalid")
			continue
		}
		afkUntil, err := validate.Timestamp(entry.AFKUntil)
		if err != nil {
			res.reject(id, fmt.Sprintf("afkUntil: %v", err))
			continue
		}

		active := afkUntil == nil || afkUntil.After(t.now)

		err = t.db.WithTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
				INSERT INTO afk_status (principal_id, afk_start, afk_until, is_active)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (principal_id, afk_start) DO UPDATE SET
					afk_until = EXCLUDED.afk_until,
					is_active = EXCLUDED.is_active`,
				id, *afkStart, afkUntil, active,
			)
			return err
		})
		if err != nil {
			res.reject(id, txReason(err))
			continue
		}

		res.Processed++
	}

	return res
}

// ForumMessages migrates the forum_messages collection: each thread maps
// message types to message snowflakes, one row per (thread, message).
func (t *Transformer) ForumMessages(ctx context.Context, col map[string]map[string]string) Result {
	var res Result
	seen := make(map[string]bool)

	for _, threadID := range legacy.SortedKeys(col) {
		if err := validate.Snowflake(threadID); err != nil {
			res.reject(threadID, "invalid identifier format")
			continue
		}

		for _, msgType := range legacy.SortedKeys(col[threadID]) {
			messageID := col[threadID][msgType]
			key := threadID + "/" + msgType

			if err := validate.Snowflake(messageID); err != nil {
				res.reject(key, "invalid identifier format")
				continue
			}

			dedup := threadID + ":" + messageID
			if seen[dedup] {
				res.Skipped++
				continue
			}
			seen[dedup] = true

			err := t.db.WithTx(ctx, func(tx pgx.Tx) error {
				_, err := tx.Exec(ctx, `
					INSERT INTO forum_messages (thread_id, message_type, message_id)
					VALUES ($1, $2, $3)
					ON CONFLICT (thread_id, message_id) DO UPDATE SET
						message_type = EXCLUDED.message_type`,
					threadID, msgType, messageID,
				)
				return err
			})
			if err != nil {
				res.reject(key, txReason(err))
				continue
			}

			res.Processed++
		}
	}

	return res
}

// VoiceChannelMappings migrates the voice_channel_mappings collection, keyed
// by voice channel snowflake.
func (t *Transformer) VoiceChannelMappings(ctx context.Context, col map[string]legacy.VoiceMapping) Result {
	var res Result
	seen := make(map[string]bool, len(col))

	for _, channelID := range legacy.SortedKeys(col) {
		entry := col[channelID]

		if err := validate.Snowflake(channelID); err != nil {
			res.reject(channelID, "invalid identifier format")
			continue
		}
		if seen[channelID] {
			res.Skipped++
			continue
		}
		seen[channelID] = true

		if err := validate.Snowflake(entry.ForumPostID); err != nil {
			res.reject(channelID, fmt.Sprintf("forumPostId: %v", err))
			continue
		}
		var participants int64
		if entry.LastParticipantCount != nil {
			var err error
			participants, err = validate.NonNegativeInt(entry.LastParticipantCount)
			if err != nil {
				res.reject(channelID, fmt.Sprintf("lastParticipantCount: %v", err))
				continue
			}
		}

		err := t.db.WithTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `
				INSERT INTO voice_channel_mappings (voice_channel_id, forum_post_id, last_participant_count)
				VALUES ($1, $2, $3)
				ON CONFLICT (voice_channel_id) DO UPDATE SET
					forum_post_id          = EXCLUDED.forum_post_id,
					last_participant_count = EXCLUDED.last_participant_count`,
				channelID, entry.ForumPostID, participants,
			)
			return err
		})
		if err != nil {
			res.reject(channelID, txReason(err))
			continue
		}

		res.Processed++
	}

	return res
}
