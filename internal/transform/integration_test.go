//go:build integration

package transform_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/pgtx"
	"github.com/tempo-bot/tempomig/internal/testutil"
	"github.com/tempo-bot/tempomig/internal/transform"
)

var pg *testutil.PG

func TestMain(m *testing.M) {
	ctx := context.Background()
	var cleanup func()
	pg, cleanup = testutil.StartPostgresForTestMain(ctx)
	code := m.Run()
	cleanup()
	os.Exit(code)
}

const testSchema = `
CREATE TABLE principals (
    id           text PRIMARY KEY,
    display_name text NOT NULL,
    first_seen   timestamptz NOT NULL,
    last_seen    timestamptz NOT NULL,
    is_active    boolean NOT NULL DEFAULT true,
    updated_at   timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE principal_activity (
    principal_id          text NOT NULL UNIQUE REFERENCES principals(id),
    total_time_ms         bigint NOT NULL CHECK (total_time_ms >= 0),
    current_session_start timestamptz,
    is_currently_active   boolean NOT NULL DEFAULT false,
    session_count         integer NOT NULL DEFAULT 0
);
CREATE TABLE roles (
    id                 bigserial PRIMARY KEY,
    name               text NOT NULL UNIQUE,
    min_hours          double precision NOT NULL,
    report_cycle_weeks integer NOT NULL DEFAULT 1,
    priority           integer NOT NULL,
    is_active          boolean NOT NULL DEFAULT true
);
CREATE TABLE role_reset_history (
    id              bigserial PRIMARY KEY,
    role_id         bigint NOT NULL REFERENCES roles(id),
    reset_timestamp timestamptz NOT NULL,
    reason          text NOT NULL DEFAULT '',
    admin_username  text NOT NULL DEFAULT '',
    UNIQUE (role_id, reset_timestamp)
);
CREATE TABLE afk_status (
    id           bigserial PRIMARY KEY,
    principal_id text NOT NULL REFERENCES principals(id),
    afk_start    timestamptz NOT NULL,
    afk_until    timestamptz,
    is_active    boolean NOT NULL,
    UNIQUE (principal_id, afk_start)
);
CREATE TABLE forum_messages (
    id           bigserial PRIMARY KEY,
    thread_id    text NOT NULL,
    message_type text NOT NULL,
    message_id   text NOT NULL,
    UNIQUE (thread_id, message_id)
);
`

func setup(t *testing.T) (*pgtx.Manager, context.Context) {
	t.Helper()
	ctx := context.Background()
	testutil.NoError(t, pg.ResetSchema(ctx))
	_, err := pg.Pool.Exec(ctx, testSchema)
	testutil.NoError(t, err)
	return pgtx.NewManager(pg.Pool, testutil.DiscardLogger(), 0), ctx
}

func TestPrincipalsUpsertUpdatesInPlace(t *testing.T) {
	db, ctx := setup(t)

	first := transform.New(db, testutil.DiscardLogger())
	res := first.Principals(ctx, map[string]legacy.UserActivity{
		"123456789012345678": {TotalTime: float64(1000), DisplayName: "Alice"},
	})
	testutil.Equal(t, 1, res.Processed)

	// Same principal with new totals migrates as an update, not a new row.
	second := transform.New(db, testutil.DiscardLogger())
	res = second.Principals(ctx, map[string]legacy.UserActivity{
		"123456789012345678": {TotalTime: float64(5000), DisplayName: "Alice Renamed"},
	})
	testutil.Equal(t, 1, res.Processed)

	var count int
	testutil.NoError(t, pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM principals`).Scan(&count))
	testutil.Equal(t, 1, count)

	var name string
	var total int64
	testutil.NoError(t, pg.Pool.QueryRow(ctx, `
		SELECT p.display_name, a.total_time_ms
		FROM principals p JOIN principal_activity a ON a.principal_id = p.id
		WHERE p.id = '123456789012345678'`).Scan(&name, &total))
	testutil.Equal(t, "Alice Renamed", name)
	testutil.Equal(t, int64(5000), total)
}

func TestStatementTimingCoversTransactions(t *testing.T) {
	_, ctx := setup(t)

	// A nanosecond threshold makes every statement slow, including the
	// upserts the transformer runs inside its per-entry transactions.
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	db := pgtx.NewManager(pg.Pool, logger, time.Nanosecond)

	tr := transform.New(db, testutil.DiscardLogger())
	res := tr.Principals(ctx, map[string]legacy.UserActivity{
		"123456789012345678": {TotalTime: float64(1000), DisplayName: "Alice"},
	})
	testutil.Equal(t, 1, res.Processed)

	out := buf.String()
	testutil.True(t, strings.Contains(out, "slow statement"), "transactional writes are timed")
	testutil.True(t, strings.Contains(out, "INSERT INTO principals"), "log names the statement")
}

func TestResetHistoryResolvesRolesFromPriorRun(t *testing.T) {
	db, ctx := setup(t)

	first := transform.New(db, testutil.DiscardLogger())
	res := first.Roles(ctx, map[string]legacy.RoleConfig{
		"Veteran": {MinHours: float64(60), ReportCycle: float64(1)},
	})
	testutil.Equal(t, 1, res.Processed)

	// A fresh transformer has an empty memo and must resolve the role from
	// the target table.
	second := transform.New(db, testutil.DiscardLogger())
	res = second.ResetHistory(ctx, map[string][]legacy.ResetEvent{
		"Veteran": {{Timestamp: float64(1690000000000), Reason: "manual", AdminUsername: "admin"}},
	})
	testutil.Equal(t, 1, res.Processed)
	testutil.SliceLen(t, res.Errors, 0)

	var reason string
	testutil.NoError(t, pg.Pool.QueryRow(ctx, `
		SELECT h.reason FROM role_reset_history h
		JOIN roles r ON r.id = h.role_id WHERE r.name = 'Veteran'`).Scan(&reason))
	testutil.Equal(t, "manual", reason)
}

func TestAFKActiveDerivation(t *testing.T) {
	db, ctx := setup(t)

	tr := transform.New(db, testutil.DiscardLogger())
	res := tr.Principals(ctx, map[string]legacy.UserActivity{
		"111111111111111111": {TotalTime: float64(0)},
		"222222222222222222": {TotalTime: float64(0)},
	})
	testutil.Equal(t, 2, res.Processed)

	res = tr.AFKStatus(ctx, map[string]legacy.AFKEntry{
		// afkUntil in the past: the AFK window has expired.
		"111111111111111111": {AFKStart: float64(1600000000000), AFKUntil: float64(1600003600000)},
		// No afkUntil: indefinitely AFK.
		"222222222222222222": {AFKStart: float64(1600000000000)},
	})
	testutil.Equal(t, 2, res.Processed)

	var active bool
	testutil.NoError(t, pg.Pool.QueryRow(ctx,
		`SELECT is_active FROM afk_status WHERE principal_id = '111111111111111111'`).Scan(&active))
	testutil.False(t, active)

	testutil.NoError(t, pg.Pool.QueryRow(ctx,
		`SELECT is_active FROM afk_status WHERE principal_id = '222222222222222222'`).Scan(&active))
	testutil.True(t, active)
}

func TestForumMessagesDedupAndUpsert(t *testing.T) {
	db, ctx := setup(t)

	tr := transform.New(db, testutil.DiscardLogger())
	res := tr.ForumMessages(ctx, map[string]map[string]string{
		"345678901234567890": {
			"summary": "456789012345678901",
			"weekly":  "456789012345678901", // same message listed twice
		},
	})
	testutil.Equal(t, 1, res.Processed)
	testutil.Equal(t, 1, res.Skipped)

	var count int
	testutil.NoError(t, pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM forum_messages`).Scan(&count))
	testutil.Equal(t, 1, count)
}
