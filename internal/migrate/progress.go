// Package migrate provides the progress-reporting infrastructure shared by
// the migration engine and the CLI: named phases, an observer interface, and
// terminal/noop implementations. Reporters are injected; the engine never
// writes to the console directly.
package migrate

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Phase is one named step of the migration pipeline (e.g. "Backup",
// "Principals", "Verify").
type Phase struct {
	Name  string
	Index int // 1-based step index
	Total int // total number of steps
}

// Percent returns pipeline completion after this phase, in whole percent.
func (p Phase) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Index * 100 / p.Total
}

// ProgressReporter receives progress events from the engine.
type ProgressReporter interface {
	// StartPhase is called when a pipeline step begins.
	StartPhase(phase Phase, totalItems int)
	// Progress is called as items are processed within a step.
	Progress(phase Phase, completed int, totalItems int)
	// CompletePhase is called when a step finishes.
	CompletePhase(phase Phase, totalItems int, elapsed time.Duration)
	// Warn reports a non-fatal warning.
	Warn(msg string)
}

// CLIReporter prints progress to a terminal writer.
type CLIReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewCLIReporter creates a reporter that writes to w.
func NewCLIReporter(w io.Writer) *CLIReporter {
	return &CLIReporter{w: w}
}

func (r *CLIReporter) StartPhase(phase Phase, totalItems int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  [%d/%d] %-16s", phase.Index, phase.Total, phase.Name)
}

func (r *CLIReporter) Progress(phase Phase, completed int, totalItems int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if totalItems > 0 {
		fmt.Fprintf(r.w, "\r  [%d/%d] %-16s %d/%d",
			phase.Index, phase.Total, phase.Name, completed, totalItems)
	}
}

func (r *CLIReporter) CompletePhase(phase Phase, totalItems int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label := fmt.Sprintf("%d items", totalItems)
	if totalItems == 0 {
		label = "done"
	}
	fmt.Fprintf(r.w, "\r  [%d/%d] %-16s %-16s %3d%%  (%s)\n",
		phase.Index, phase.Total, phase.Name, label, phase.Percent(), formatDuration(elapsed))
}

func (r *CLIReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  Warning: %s\n", msg)
}

// NopReporter discards all progress updates (tests and --json mode).
type NopReporter struct{}

func (NopReporter) StartPhase(Phase, int)                   {}
func (NopReporter) Progress(Phase, int, int)                {}
func (NopReporter) CompletePhase(Phase, int, time.Duration) {}
func (NopReporter) Warn(string)                             {}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// AnalysisReport summarizes what a migration will process, shown before
// proceeding.
type AnalysisReport struct {
	SourceInfo    string `json:"sourceInfo"`
	Principals    int    `json:"principals"`
	Roles         int    `json:"roles"`
	ResetEvents   int    `json:"resetEvents"`
	AFKEntries    int    `json:"afkEntries"`
	ForumThreads  int    `json:"forumThreads"`
	VoiceMappings int    `json:"voiceMappings"`
	ActivityLogs  int    `json:"activityLogs"`

	Warnings []string `json:"warnings,omitempty"`
}

// PrintReport writes a formatted pre-flight report to w.
func (r *AnalysisReport) PrintReport(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Tempo Migration Report")
	fmt.Fprintln(w)
	if r.SourceInfo != "" {
		fmt.Fprintf(w, "  Source: %s\n", r.SourceInfo)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  Principals:       %d\n", r.Principals)
	fmt.Fprintf(w, "  Roles:            %d\n", r.Roles)
	if r.ResetEvents > 0 {
		fmt.Fprintf(w, "  Reset events:     %d\n", r.ResetEvents)
	}
	if r.AFKEntries > 0 {
		fmt.Fprintf(w, "  AFK entries:      %d\n", r.AFKEntries)
	}
	if r.ForumThreads > 0 {
		fmt.Fprintf(w, "  Forum threads:    %d\n", r.ForumThreads)
	}
	if r.VoiceMappings > 0 {
		fmt.Fprintf(w, "  Voice mappings:   %d\n", r.VoiceMappings)
	}
	if r.ActivityLogs > 0 {
		fmt.Fprintf(w, "  Activity logs:    %d\n", r.ActivityLogs)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
		fmt.Fprintln(w)
	}
}
