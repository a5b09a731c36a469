// Package transform converts one legacy collection at a time into its
// relational tables. Every transformer follows the same contract: validate
// each entry, skip duplicates seen this run, resolve foreign keys against
// already-migrated parents, and upsert idempotently — one transaction per
// entry, so a bad entry never aborts the batch and a mid-run crash loses at
// most the entry in flight.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tempo-bot/tempomig/internal/pgtx"
)

// EntryError records one rejected entry and why.
type EntryError struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Result is the outcome of migrating one collection.
type Result struct {
	Processed int          `json:"processed"`
	Skipped   int          `json:"skipped"`
	Errors    []EntryError `json:"errors,omitempty"`
}

func (r *Result) reject(key, reason string) {
	r.Errors = append(r.Errors, EntryError{Key: key, Reason: reason})
}

// Transformer migrates legacy collections in dependency order. Parent lookups
// (role name → id, principal existence) are memoized across collections so
// children migrated later in the run resolve against parents migrated earlier.
type Transformer struct {
	db     *pgtx.Manager
	logger *slog.Logger

	// now pins derived "seen" timestamps so a single run is internally
	// consistent.
	now time.Time

	roleIDs         map[string]int64
	knownPrincipals map[string]bool
}

// New creates a transformer bound to the target store.
func New(db *pgtx.Manager, logger *slog.Logger) *Transformer {
	return &Transformer{
		db:              db,
		logger:          logger,
		now:             time.Now().UTC(),
		roleIDs:         make(map[string]int64),
		knownPrincipals: make(map[string]bool),
	}
}

// principalExists resolves a principal FK against parents migrated this run
// or present from a prior run. It never fabricates a parent row.
func (t *Transformer) principalExists(ctx context.Context, id string) (bool, error) {
	if t.knownPrincipals[id] {
		return true, nil
	}
	var exists bool
	err := t.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM principals WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("resolving principal %s: %w", id, err)
	}
	if exists {
		t.knownPrincipals[id] = true
	}
	return exists, nil
}

// resolveRole maps a role name to its surrogate id, consulting roles migrated
// this run first and the target table second.
func (t *Transformer) resolveRole(ctx context.Context, name string) (int64, bool, error) {
	if id, ok := t.roleIDs[name]; ok {
		return id, true, nil
	}
	var id int64
	err := t.db.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving role %q: %w", name, err)
	}
	t.roleIDs[name] = id
	return id, true, nil
}

// txReason renders a store-level failure for the error report.
func txReason(err error) string {
	if pgtx.IsConstraintViolation(err) {
		return fmt.Sprintf("constraint violation: %v", err)
	}
	return fmt.Sprintf("transaction failed: %v", err)
}
