// Package pgtx wraps a pgx connection pool with transaction lifecycle
// management and statement timing. Every unit of work goes through WithTx:
// begin, invoke, commit on success, roll back and surface the original error
// otherwise. Statements slower than the configured threshold are logged with
// a truncated preview; nothing is retried at this layer.
package pgtx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSlowThreshold is used when the caller passes a zero threshold.
const DefaultSlowThreshold = 500 * time.Millisecond

const previewLen = 120

// Manager owns a pool and instruments every statement that flows through it.
// The pool is passed in explicitly; there is no package-level state.
type Manager struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	slowThreshold time.Duration
}

// NewManager creates a Manager over an existing pool.
func NewManager(pool *pgxpool.Pool, logger *slog.Logger, slowThreshold time.Duration) *Manager {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowThreshold
	}
	return &Manager{pool: pool, logger: logger, slowThreshold: slowThreshold}
}

// Pool exposes the underlying pool for read-only callers (verifier queries).
func (m *Manager) Pool() *pgxpool.Pool { return m.pool }

// WithTx acquires a connection, begins a transaction, and invokes fn with it.
// Commit on nil return; roll back and return the original error otherwise.
// The connection is always released. Statements fn runs on the handle get the
// same timing as the pool paths.
func (m *Manager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(timedTx{Tx: tx, m: m}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	if elapsed := time.Since(start); elapsed > m.slowThreshold {
		m.logger.Warn("slow transaction", "elapsed", elapsed)
	}
	return nil
}

// Exec runs a statement on the pool with timing.
func (m *Manager) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := m.pool.Exec(ctx, sql, args...)
	m.observe(sql, time.Since(start))
	return tag, err
}

// Query runs a query on the pool with timing.
func (m *Manager) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := m.pool.Query(ctx, sql, args...)
	m.observe(sql, time.Since(start))
	return rows, err
}

// QueryRow runs a single-row query on the pool with timing.
func (m *Manager) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := time.Now()
	row := m.pool.QueryRow(ctx, sql, args...)
	m.observe(sql, time.Since(start))
	return row
}

// timedTx instruments statements run inside a WithTx callback. Lifecycle
// calls (Commit, Rollback, nested Begin) pass through to the wrapped handle.
type timedTx struct {
	pgx.Tx
	m *Manager
}

func (t timedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := t.Tx.Exec(ctx, sql, args...)
	t.m.observe(sql, time.Since(start))
	return tag, err
}

func (t timedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := t.Tx.Query(ctx, sql, args...)
	t.m.observe(sql, time.Since(start))
	return rows, err
}

func (t timedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	start := time.Now()
	row := t.Tx.QueryRow(ctx, sql, args...)
	t.m.observe(sql, time.Since(start))
	return row
}

func (m *Manager) observe(sql string, elapsed time.Duration) {
	if elapsed > m.slowThreshold {
		m.logger.Warn("slow statement", "elapsed", elapsed, "sql", Preview(sql))
	}
}

// Preview collapses whitespace and truncates a statement for log output.
func Preview(sql string) string {
	collapsed := strings.Join(strings.Fields(sql), " ")
	if len(collapsed) > previewLen {
		return collapsed[:previewLen] + "..."
	}
	return collapsed
}

// PostgreSQL error codes used for failure classification.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// IsForeignKeyViolation reports whether err is a foreign key constraint error.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}

// IsUniqueViolation reports whether err is a unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsConstraintViolation reports whether err is any integrity constraint error.
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeForeignKeyViolation, codeUniqueViolation, codeCheckViolation:
		return true
	}
	return strings.HasPrefix(pgErr.Code, "23")
}
