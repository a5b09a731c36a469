package engine

import (
	"fmt"
	"io"

	"github.com/tempo-bot/tempomig/internal/transform"
)

// GroupStats is the per-collection outcome of a run.
type GroupStats struct {
	Processed int                    `json:"processed"`
	Skipped   int                    `json:"skipped"`
	Resumed   bool                   `json:"resumed,omitempty"`
	Errors    []transform.EntryError `json:"errors,omitempty"`
}

// Report is the full outcome of a migration run. It is returned on failure
// too, carrying whatever completed before the fatal error.
type Report struct {
	Success     bool                  `json:"success"`
	Stats       map[string]GroupStats `json:"stats"`
	ElapsedMs   int64                 `json:"elapsedMs"`
	BackupPaths []string              `json:"backupPaths,omitempty"`
	Errors      []string              `json:"errors,omitempty"`
}

func newReport() *Report {
	return &Report{Stats: make(map[string]GroupStats)}
}

func (r *Report) record(group string, res transform.Result) {
	r.Stats[group] = GroupStats{
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Errors:    res.Errors,
	}
}

// EntryErrors returns the total number of per-entry rejections across groups.
func (r *Report) EntryErrors() int {
	n := 0
	for _, st := range r.Stats {
		n += len(st.Errors)
	}
	return n
}

// Print writes a human-readable summary to w. Groups appear in pipeline
// order; rejected entries are listed under their group.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w)
	if r.Success {
		fmt.Fprintln(w, "  Migration completed")
	} else {
		fmt.Fprintln(w, "  Migration FAILED")
	}
	fmt.Fprintf(w, "  Elapsed: %dms\n", r.ElapsedMs)
	fmt.Fprintln(w)

	for _, g := range groups {
		st, ok := r.Stats[g.name]
		if !ok {
			continue
		}
		if st.Resumed {
			fmt.Fprintf(w, "  %-24s resumed (already migrated)\n", g.name)
			continue
		}
		fmt.Fprintf(w, "  %-24s %d migrated, %d skipped, %d rejected\n",
			g.name, st.Processed, st.Skipped, len(st.Errors))
		for _, e := range st.Errors {
			fmt.Fprintf(w, "    ! %s: %s\n", e.Key, e.Reason)
		}
	}

	if len(r.BackupPaths) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Backups:")
		for _, p := range r.BackupPaths {
			fmt.Fprintf(w, "    %s\n", p)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Fatal errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintln(w)
}
