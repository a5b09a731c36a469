// Package engine orchestrates the full legacy-to-relational migration: backup,
// schema initialization, collection migration in dependency order, structural
// verification, and finalization. The engine owns the pipeline state machine;
// all console output goes through an injected ProgressReporter.
package engine

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tempo-bot/tempomig/internal/backup"
	"github.com/tempo-bot/tempomig/internal/legacy"
	"github.com/tempo-bot/tempomig/internal/migrate"
	"github.com/tempo-bot/tempomig/internal/pgtx"
	"github.com/tempo-bot/tempomig/internal/sqlplan"
	"github.com/tempo-bot/tempomig/internal/transform"
	"github.com/tempo-bot/tempomig/internal/validate"
	"github.com/tempo-bot/tempomig/internal/verify"
)

//go:embed schema.sql
var schemaSQL string

// Options configures a single migration run.
type Options struct {
	// SourcePath is the legacy activity.json file.
	SourcePath string

	// Resume skips collections already checkpointed for this exact source
	// file (matched by checksum).
	Resume bool

	// SkipTargetBackup suppresses the pg_dump snapshot of an existing target
	// schema. The source file snapshot is always taken.
	SkipTargetBackup bool

	// SumTolerance is passed through to verification.
	SumTolerance float64
}

// Engine runs the migration pipeline. Create one per run.
type Engine struct {
	opts     Options
	db       *pgtx.Manager
	backups  *backup.Manager
	logger   *slog.Logger
	progress migrate.ProgressReporter

	state State
	runID uuid.UUID
}

// New creates an engine in the Idle state.
func New(opts Options, db *pgtx.Manager, backups *backup.Manager, logger *slog.Logger, progress migrate.ProgressReporter) *Engine {
	if progress == nil {
		progress = migrate.NopReporter{}
	}
	return &Engine{
		opts:     opts,
		db:       db,
		backups:  backups,
		logger:   logger,
		progress: progress,
		state:    StateIdle,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

func (e *Engine) setState(s State) {
	e.state = s
	e.logger.Info("state change", "state", s.String())
}

// group binds one legacy collection to its transformer and the target tables
// whose row counts it determines.
type group struct {
	name   string
	tables []string
	items  func(doc *legacy.Document) int
	run    func(ctx context.Context, tr *transform.Transformer, doc *legacy.Document) transform.Result
}

// groups lists the collections in dependency order: principals and roles
// first so later collections can resolve foreign keys against them.
var groups = []group{
	{
		name:   "principals",
		tables: []string{"principals", "principal_activity"},
		items:  func(d *legacy.Document) int { return len(d.UserActivity) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.Principals(ctx, d.UserActivity)
		},
	},
	{
		name:   "roles",
		tables: []string{"roles"},
		items:  func(d *legacy.Document) int { return len(d.RoleConfig) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.Roles(ctx, d.RoleConfig)
		},
	},
	{
		// Reset history shares its table with scheduled resets written by the
		// roles group, so it carries no row-count expectation of its own.
		name:  "reset_history",
		items: func(d *legacy.Document) int { return len(d.ResetHistory) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.ResetHistory(ctx, d.ResetHistory)
		},
	},
	{
		name:   "afk_status",
		tables: []string{"afk_status"},
		items:  func(d *legacy.Document) int { return len(d.AFKStatus) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.AFKStatus(ctx, d.AFKStatus)
		},
	},
	{
		name:   "forum_messages",
		tables: []string{"forum_messages"},
		items:  func(d *legacy.Document) int { return len(d.ForumMessages) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.ForumMessages(ctx, d.ForumMessages)
		},
	},
	{
		name:   "voice_channel_mappings",
		tables: []string{"voice_channel_mappings"},
		items:  func(d *legacy.Document) int { return len(d.VoiceChannelMappings) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.VoiceChannelMappings(ctx, d.VoiceChannelMappings)
		},
	},
	{
		name:   "activity_logs",
		tables: []string{"activity_log"},
		items:  func(d *legacy.Document) int { return len(d.ActivityLogs) },
		run: func(ctx context.Context, tr *transform.Transformer, d *legacy.Document) transform.Result {
			return tr.ActivityLogs(ctx, d.ActivityLogs)
		},
	},
}

// Migrate runs the full pipeline. The returned report is populated on both
// success and failure; on failure err is also non-nil and the report carries
// the fatal error with its step and timestamp.
func (e *Engine) Migrate(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := newReport()
	e.runID = uuid.New()

	fail := func(step string, err error) (*Report, error) {
		e.setState(StateFailed)
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s  %s: %v", time.Now().UTC().Format(time.RFC3339), step, err))
		report.ElapsedMs = time.Since(start).Milliseconds()
		return report, fmt.Errorf("%s: %w", step, err)
	}

	total := len(groups) + 4
	step := 0
	phase := func(name string) migrate.Phase {
		step++
		return migrate.Phase{Name: name, Index: step, Total: total}
	}

	// Backup: load and structurally validate the source, then snapshot it.
	// The target is only dumped when it already has a schema to dump.
	e.setState(StateBackingUp)
	ph := phase("Backup")
	phStart := time.Now()
	e.progress.StartPhase(ph, 0)

	doc, err := legacy.Load(e.opts.SourcePath)
	if err != nil {
		return fail("backup", err)
	}

	srcBackup, err := e.backups.SnapshotSource(e.opts.SourcePath)
	if err != nil {
		return fail("backup", err)
	}
	report.BackupPaths = append(report.BackupPaths, srcBackup)

	hasSchema := false
	if !e.opts.SkipTargetBackup {
		hasSchema, err = e.targetHasSchema(ctx)
		if err != nil {
			return fail("backup", err)
		}
	}
	if hasSchema {
		tgtBackup, err := e.backups.SnapshotTarget(ctx)
		if err != nil {
			return fail("backup", err)
		}
		report.BackupPaths = append(report.BackupPaths, tgtBackup)
	}
	e.progress.CompletePhase(ph, len(report.BackupPaths), time.Since(phStart))

	// Schema: plan the embedded script and apply it in one transaction. A
	// schema failure leaves the target untouched.
	e.setState(StateInitializingSchema)
	ph = phase("Schema")
	phStart = time.Now()
	stmts := sqlplan.Plan(schemaSQL)
	e.progress.StartPhase(ph, len(stmts))

	err = e.db.WithTx(ctx, func(tx pgx.Tx) error {
		for i, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt.SQL); err != nil {
				return fmt.Errorf("applying %s statement: %w", stmt.Type, err)
			}
			e.progress.Progress(ph, i+1, len(stmts))
		}
		return nil
	})
	if err != nil {
		return fail("schema", err)
	}
	e.progress.CompletePhase(ph, len(stmts), time.Since(phStart))

	done := make(map[string]bool)
	if e.opts.Resume {
		done, err = e.loadCheckpoints(ctx, doc.Checksum)
		if err != nil {
			return fail("resume", err)
		}
	}

	e.setState(StateMigrating)
	tr := transform.New(e.db, e.logger)
	for _, g := range groups {
		ph := phase(g.name)
		phStart := time.Now()
		items := g.items(doc)
		e.progress.StartPhase(ph, items)

		if done[g.name] {
			report.Stats[g.name] = GroupStats{Resumed: true}
			e.progress.CompletePhase(ph, 0, time.Since(phStart))
			continue
		}

		res := g.run(ctx, tr, doc)
		report.record(g.name, res)
		if err := e.saveCheckpoint(ctx, doc.Checksum, g.name); err != nil {
			return fail(g.name, err)
		}
		e.progress.CompletePhase(ph, res.Processed, time.Since(phStart))
	}

	e.setState(StateVerifying)
	ph = phase("Verify")
	phStart = time.Now()
	e.progress.StartPhase(ph, 0)

	if err := verify.Verify(ctx, e.db, e.expectations(doc, report), verify.Options{
		SumTolerance: e.opts.SumTolerance,
	}); err != nil {
		return fail("verify", err)
	}
	e.progress.CompletePhase(ph, 0, time.Since(phStart))

	// Finalize: persist the run marker and refresh planner statistics.
	e.setState(StateFinalizing)
	ph = phase("Finalize")
	phStart = time.Now()
	e.progress.StartPhase(ph, 0)

	statsJSON, err := json.Marshal(report.Stats)
	if err != nil {
		return fail("finalize", err)
	}
	err = e.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO migration_runs
				(id, source_checksum, started_at, elapsed_ms, success, stats)
			VALUES ($1, $2, $3, $4, true, $5)`,
			e.runID, doc.Checksum, start.UTC(), time.Since(start).Milliseconds(), statsJSON,
		)
		return err
	})
	if err != nil {
		return fail("finalize", err)
	}
	if _, err := e.db.Exec(ctx, `ANALYZE`); err != nil {
		return fail("finalize", err)
	}
	e.progress.CompletePhase(ph, 0, time.Since(phStart))

	e.setState(StateCompleted)
	report.Success = true
	report.ElapsedMs = time.Since(start).Milliseconds()
	e.logger.Info("migration completed",
		"run_id", e.runID, "elapsed", time.Since(start), "rejected", report.EntryErrors())
	return report, nil
}

// expectations derives the verification contract from this run's outcomes.
// Resumed groups carry no row-count expectation; their rows predate this run.
func (e *Engine) expectations(doc *legacy.Document, report *Report) verify.Expectations {
	want := verify.Expectations{
		RowCounts:    make(map[string]int),
		TotalTimeSum: expectedTotalTime(doc),
	}
	for _, g := range groups {
		st, ok := report.Stats[g.name]
		if !ok || st.Resumed {
			continue
		}
		for _, table := range g.tables {
			want.RowCounts[table] = st.Processed
		}
	}
	return want
}

// expectedTotalTime sums totalTime over entries that pass the same validation
// the principals transformer applies, so the aggregate check compares like
// with like.
func expectedTotalTime(doc *legacy.Document) int64 {
	var sum int64
	for id, entry := range doc.UserActivity {
		if validate.Snowflake(id) != nil {
			continue
		}
		total, err := validate.NonNegativeInt(entry.TotalTime)
		if err != nil {
			continue
		}
		if _, err := validate.Timestamp(entry.StartTime); err != nil {
			continue
		}
		sum += total
	}
	return sum
}

func (e *Engine) targetHasSchema(ctx context.Context) (bool, error) {
	var exists bool
	err := e.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'principals'
		)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probing target schema: %w", err)
	}
	return exists, nil
}

// Analyze loads the source and reports what a migration would process,
// without touching the target.
func (e *Engine) Analyze() (*migrate.AnalysisReport, error) {
	doc, err := legacy.Load(e.opts.SourcePath)
	if err != nil {
		return nil, err
	}

	rep := &migrate.AnalysisReport{
		SourceInfo:    fmt.Sprintf("%s (sha256 %s)", e.opts.SourcePath, doc.Checksum[:12]),
		Principals:    len(doc.UserActivity),
		Roles:         len(doc.RoleConfig),
		AFKEntries:    len(doc.AFKStatus),
		ForumThreads:  len(doc.ForumMessages),
		VoiceMappings: len(doc.VoiceChannelMappings),
		ActivityLogs:  len(doc.ActivityLogs),
	}
	for _, events := range doc.ResetHistory {
		rep.ResetEvents += len(events)
	}

	badIDs := 0
	for id := range doc.UserActivity {
		if validate.Snowflake(id) != nil {
			badIDs++
		}
	}
	if badIDs > 0 {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("%d user_activity entries have malformed IDs and will be rejected", badIDs))
	}
	return rep, nil
}
