// Package verify runs the post-migration structural and aggregate checks:
// row-count parity per entity, aggregate-sum parity on tracked time, and
// referential completeness. A failure is fatal to the pipeline's finalize
// phase; it does not roll back committed entity transactions — that is the
// backup manager's job.
package verify

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tempo-bot/tempomig/internal/pgtx"
)

// Options configures verification policy. SumTolerance is the maximum
// absolute difference allowed between the source and target total-time sums;
// the default of 0 demands exact equality, which integer totals always permit.
type Options struct {
	SumTolerance float64
}

// Expectations carries the counts the engine derived from valid (non-rejected)
// source entries.
type Expectations struct {
	RowCounts    map[string]int // target table name → expected row count
	TotalTimeSum int64          // expected sum of principal_activity.total_time_ms
}

// Failure describes the first check that did not hold.
type Failure struct {
	Check    string
	Entity   string
	Expected string
	Got      string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("verification failed: %s on %s: expected %s, got %s",
		f.Check, f.Entity, f.Expected, f.Got)
}

// orphanChecks are FK-completeness queries; each must return zero.
var orphanChecks = []struct {
	entity string
	query  string
}{
	{"principal_activity", `
		SELECT COUNT(*) FROM principal_activity pa
		LEFT JOIN principals p ON p.id = pa.principal_id
		WHERE p.id IS NULL`},
	{"afk_status", `
		SELECT COUNT(*) FROM afk_status a
		LEFT JOIN principals p ON p.id = a.principal_id
		WHERE p.id IS NULL`},
	{"activity_log", `
		SELECT COUNT(*) FROM activity_log l
		LEFT JOIN principals p ON p.id = l.principal_id
		WHERE p.id IS NULL`},
	{"role_reset_history", `
		SELECT COUNT(*) FROM role_reset_history h
		LEFT JOIN roles r ON r.id = h.role_id
		WHERE r.id IS NULL`},
}

// Verify runs all checks in order and returns the first *Failure, or nil.
// All queries are read-only.
func Verify(ctx context.Context, db *pgtx.Manager, want Expectations, opts Options) error {
	for _, table := range sortedTables(want.RowCounts) {
		expected := want.RowCounts[table]
		var got int
		if err := db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&got); err != nil {
			return fmt.Errorf("counting %s: %w", table, err)
		}
		if got != expected {
			return &Failure{
				Check:    "row-count parity",
				Entity:   table,
				Expected: fmt.Sprintf("%d rows", expected),
				Got:      fmt.Sprintf("%d rows", got),
			}
		}
	}

	var gotSum int64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_time_ms), 0) FROM principal_activity`).Scan(&gotSum)
	if err != nil {
		return fmt.Errorf("summing total_time_ms: %w", err)
	}
	if !WithinTolerance(float64(want.TotalTimeSum), float64(gotSum), opts.SumTolerance) {
		return &Failure{
			Check:    "aggregate-sum parity",
			Entity:   "principal_activity.total_time_ms",
			Expected: fmt.Sprintf("%d", want.TotalTimeSum),
			Got:      fmt.Sprintf("%d", gotSum),
		}
	}

	for _, check := range orphanChecks {
		var orphans int
		if err := db.QueryRow(ctx, check.query).Scan(&orphans); err != nil {
			return fmt.Errorf("checking orphans in %s: %w", check.entity, err)
		}
		if orphans != 0 {
			return &Failure{
				Check:    "referential completeness",
				Entity:   check.entity,
				Expected: "0 orphaned rows",
				Got:      fmt.Sprintf("%d orphaned rows", orphans),
			}
		}
	}

	return nil
}

// WithinTolerance reports whether |want - got| <= tolerance.
func WithinTolerance(want, got, tolerance float64) bool {
	return math.Abs(want-got) <= tolerance
}

func sortedTables(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
