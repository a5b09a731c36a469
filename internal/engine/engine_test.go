package engine

import (
	"strings"
	"testing"

	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/sqlplan"
	"github.com/tempo-bot/tempomig/internal/testutil"
	"github.com/tempo-bot/tempomig/internal/transform"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateBackingUp, "backing-up"},
		{StateInitializingSchema, "initializing-schema"},
		{StateMigrating, "migrating"},
		{StateVerifying, "verifying"},
		{StateFinalizing, "finalizing"},
		{StateCompleted, "completed"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		testutil.Equal(t, tt.want, tt.state.String())
	}
}

func TestEmbeddedSchemaPlans(t *testing.T) {
	stmts := sqlplan.Plan(schemaSQL)
	testutil.True(t, len(stmts) > 10)

	// The drop-function statement must run first and the trigger last among
	// the DDL so recreation after a cascade drop always succeeds.
	testutil.Equal(t, sqlplan.StatementDropFunction, stmts[0].Type)

	var sawFunction, sawTrigger bool
	for _, s := range stmts {
		switch s.Type {
		case sqlplan.StatementCreateFunction:
			sawFunction = true
			testutil.False(t, sawTrigger)
		case sqlplan.StatementCreateTrigger:
			sawTrigger = true
			testutil.True(t, sawFunction)
		}
	}
	testutil.True(t, sawFunction)
	testutil.True(t, sawTrigger)
}

func TestExpectedTotalTime(t *testing.T) {
	doc := &legacy.Document{
		UserActivity: map[string]legacy.UserActivity{
			"111111111111111111": {TotalTime: float64(1000)},
			"222222222222222222": {TotalTime: float64(500), StartTime: float64(1700000000000)},
			"abc123":             {TotalTime: float64(9999)},
			"333333333333333333": {TotalTime: float64(-5)},
			"444444444444444444": {TotalTime: float64(100), StartTime: "bogus"},
		},
	}
	testutil.Equal(t, int64(1500), expectedTotalTime(doc))
}

func TestReportPrint(t *testing.T) {
	report := newReport()
	report.Success = true
	report.ElapsedMs = 1234
	report.BackupPaths = []string{"/backups/activity-20260115-120000.json"}
	report.record("principals", transform.Result{Processed: 3, Skipped: 1})
	report.record("roles", transform.Result{
		Processed: 2,
		Errors:    []transform.EntryError{{Key: "abc", Reason: "invalid identifier format"}},
	})
	report.Stats["afk_status"] = GroupStats{Resumed: true}

	var sb strings.Builder
	report.Print(&sb)
	out := sb.String()

	testutil.True(t, strings.Contains(out, "Migration completed"))
	testutil.True(t, strings.Contains(out, "3 migrated, 1 skipped, 0 rejected"))
	testutil.True(t, strings.Contains(out, "2 migrated, 0 skipped, 1 rejected"))
	testutil.True(t, strings.Contains(out, "! abc: invalid identifier format"))
	testutil.True(t, strings.Contains(out, "resumed"))
	testutil.True(t, strings.Contains(out, "/backups/activity-20260115-120000.json"))
	testutil.Equal(t, 1, report.EntryErrors())
}

func TestReportPrintFailure(t *testing.T) {
	report := newReport()
	report.Errors = append(report.Errors, "2026-01-15T12:00:00Z  verify: row count mismatch")

	var sb strings.Builder
	report.Print(&sb)
	out := sb.String()

	testutil.True(t, strings.Contains(out, "Migration FAILED"))
	testutil.True(t, strings.Contains(out, "verify: row count mismatch"))
}
