package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tempo-bot/tempomig/internal/cli/ui"
	"github.com/tempo-bot/tempomig/internal/pgtx"
	"github.com/tempo-bot/tempomig/internal/sqlplan"
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "SQL script utilities",
}

var sqlPlanCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Show the execution order for a SQL script",
	Long: `Split a SQL script into statements and print them in the order the
migration engine would execute them. Splitting respects comments, string
literals, and dollar-quoted function bodies; ordering puts structural DDL
(tables) before the DDL that depends on it (indexes, triggers).

Examples:
  tempomig sql plan schema.sql
  tempomig sql plan schema.sql --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSQLPlan,
}

func init() {
	sqlCmd.AddCommand(sqlPlanCmd)
}

func runSQLPlan(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	stmts := sqlplan.Plan(string(data))
	if jsonOutput(cmd) {
		return writePlanJSON(os.Stdout, stmts)
	}
	writePlanTable(os.Stdout, stmts, ui.ColorEnabledFd(os.Stdout.Fd()))
	return nil
}

func writePlanJSON(w io.Writer, stmts []sqlplan.Statement) error {
	type planEntry struct {
		Order    int    `json:"order"`
		Type     string `json:"type"`
		Priority int    `json:"priority"`
		SQL      string `json:"sql"`
	}
	entries := make([]planEntry, len(stmts))
	for i, s := range stmts {
		entries[i] = planEntry{Order: i + 1, Type: s.Type.String(), Priority: s.Type.Priority(), SQL: s.SQL}
	}
	return json.NewEncoder(w).Encode(entries)
}

func writePlanTable(w io.Writer, stmts []sqlplan.Statement, useColor bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, bold("#\tTYPE\tSTATEMENT", useColor))
	for i, s := range stmts {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, s.Type, pgtx.Preview(s.SQL))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%s\n", dim(fmt.Sprintf("(%d statements: %s)", len(stmts), statementSummary(stmts)), useColor))
}

// statementSummary counts statements by type in first-seen order.
func statementSummary(stmts []sqlplan.Statement) string {
	counts := make(map[string]int)
	order := []string{}
	for _, s := range stmts {
		name := s.Type.String()
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}
	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[name], name))
	}
	return strings.Join(parts, ", ")
}
