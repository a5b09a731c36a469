package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/validate"
)

const maxRoleNameLen = 100

// RolePriority derives a role's priority from its minimum-hours requirement.
// Lower number means higher priority.
func RolePriority(minHours float64) int {
	switch {
	case minHours >= 100:
		return 1
	case minHours >= 50:
		return 2
	case minHours >= 20:
		return 3
	case minHours >= 10:
		return 4
	default:
		return 5
	}
}

// reportCycleWeeks interprets a legacy reportCycle value. The bot stored 0
// for roles whose cycle was never configured and omitted the field entirely
// on the oldest entries; both mean the default weekly cycle. Anything else
// must be a non-negative integer.
func reportCycleWeeks(raw any) (int64, error) {
	if raw == nil {
		return 1, nil
	}
	weeks, err := validate.NonNegativeInt(raw)
	if err != nil {
		return 0, err
	}
	if weeks == 0 {
		return 1, nil
	}
	return weeks, nil
}

// Roles migrates the role_config collection into the roles table. A role
// carrying a legacy reset_time additionally produces one role_reset_history
// row.
func (t *Transformer) Roles(ctx context.Context, col map[string]legacy.RoleConfig) Result {
	var res Result
	seen := make(map[string]bool, len(col))

	for _, rawName := range legacy.SortedKeys(col) {
		entry := col[rawName]

		name := strings.TrimSpace(rawName)
		if name == "" || len([]rune(name)) > maxRoleNameLen {
			res.reject(rawName, "invalid role name")
			continue
		}
		if seen[name] {
			res.Skipped++
			continue
		}
		seen[name] = true

		minHours, err := validate.NonNegativeFloat(entry.MinHours)
		if err != nil {
			res.reject(name, fmt.Sprintf("minHours: %v", err))
			continue
		}
		reportCycle, err := reportCycleWeeks(entry.ReportCycle)
		if err != nil {
			res.reject(name, fmt.Sprintf("reportCycle: %v", err))
			continue
		}
		resetTime, err := validate.Timestamp(entry.ResetTime)
		if err != nil {
			res.reject(name, fmt.Sprintf("resetTime: %v", err))
			continue
		}

		priority := RolePriority(minHours)

		err = t.db.WithTx(ctx, func(tx pgx.Tx) error {
			var roleID int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO roles (name, min_hours, report_cycle_weeks, priority, is_active)
				VALUES ($1, $2, $3, $4, true)
				ON CONFLICT (name) DO UPDATE SET
					min_hours          = EXCLUDED.min_hours,
					report_cycle_weeks = EXCLUDED.report_cycle_weeks,
					priority           = EXCLUDED.priority
				RETURNING id`,
				name, minHours, reportCycle, priority,
			).Scan(&roleID); err != nil {
				return err
			}
			t.roleIDs[name] = roleID

			if resetTime != nil {
				if _, err := tx.Exec(ctx, `
					INSERT INTO role_reset_history (role_id, reset_timestamp, reason, admin_username)
					VALUES ($1, $2, 'scheduled reset', '')
					ON CONFLICT (role_id, reset_timestamp) DO NOTHING`,
					roleID, *resetTime,
				); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			res.reject(name, txReason(err))
			continue
		}

		res.Processed++
	}

	return res
}

// ResetHistory migrates the reset_history collection, resolving each role
// name to its surrogate id. Events for unknown roles are rejected, never
// backed by a fabricated parent.
func (t *Transformer) ResetHistory(ctx context.Context, col map[string][]legacy.ResetEvent) Result {
	var res Result
	seen := make(map[string]bool)

	for _, roleName := range legacy.SortedKeys(col) {
		roleID, found, err := t.resolveRole(ctx, roleName)
		if err != nil {
			res.reject(roleName, txReason(err))
			continue
		}

		for i, event := range col[roleName] {
			key := fmt.Sprintf("%s[%d]", roleName, i)

			if !found {
				res.reject(key, fmt.Sprintf("role not found: %s", roleName))
				continue
			}

			ts, err := validate.Timestamp(event.Timestamp)
			if err != nil || ts == nil {
				res.reject(key, "timestamp: missing or invalid")
				continue
			}

			dedup := fmt.Sprintf("%d@%d", roleID, ts.UnixMilli())
			if seen[dedup] {
				res.Skipped++
				continue
			}
			seen[dedup] = true

			err = t.db.WithTx(ctx, func(tx pgx.Tx) error {
				_, err := tx.Exec(ctx, `
					INSERT INTO role_reset_history (role_id, reset_timestamp, reason, admin_username)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (role_id, reset_timestamp) DO UPDATE SET
						reason         = EXCLUDED.reason,
						admin_username = EXCLUDED.admin_username`,
					roleID, *ts, event.Reason, event.AdminUsername,
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
