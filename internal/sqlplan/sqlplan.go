// Package sqlplan turns a raw SQL script into an ordered list of statements
// that are safe to execute one at a time. Splitting respects single-quoted
// strings, line and block comments, and PostgreSQL dollar-quoted bodies
// ($$ ... $$ or $tag$ ... $tag$), so a semicolon inside a function body never
// ends a statement. Statements are then classified by keyword and stably
// sorted so structural DDL runs before the DDL that depends on it.
//
// The package performs no I/O and holds no state; it can be tested without a
// database connection.
package sqlplan

import (
	"sort"
	"strings"
)

// StatementType classifies a statement for execution ordering.
type StatementType int

// Statement types in execution-priority order; lower runs first.
const (
	StatementDropFunction StatementType = iota + 1
	StatementCreateTable
	StatementCreateFunction
	StatementCreateIndex
	StatementCreateTrigger
	StatementDataCall
	StatementDoBlock
	StatementOther
)

func (t StatementType) String() string {
	switch t {
	case StatementDropFunction:
		return "drop-function"
	case StatementCreateTable:
		return "create-table"
	case StatementCreateFunction:
		return "create-function"
	case StatementCreateIndex:
		return "create-index"
	case StatementCreateTrigger:
		return "create-trigger"
	case StatementDataCall:
		return "data-call"
	case StatementDoBlock:
		return "do-block"
	default:
		return "other"
	}
}

// Priority returns the execution priority; lower runs first.
func (t StatementType) Priority() int { return int(t) }

// Statement is one classified statement from a script.
type Statement struct {
	SQL  string
	Type StatementType
}

// Plan splits, classifies, and orders a raw script. The sort is stable:
// statements sharing a priority keep their original relative order. An empty
// or comment-only script yields an empty plan.
func Plan(script string) []Statement {
	parts := Split(script)
	stmts := make([]Statement, 0, len(parts))
	for _, p := range parts {
		stmts = append(stmts, Statement{SQL: p, Type: Classify(p)})
	}
	sort.SliceStable(stmts, func(i, j int) bool {
		return stmts[i].Type.Priority() < stmts[j].Type.Priority()
	})
	return stmts
}

// Split breaks a script into trimmed statements on unquoted semicolons.
// Fragments with no executable content (empty or comment-only) are dropped.
// A trailing statement without a terminator is kept.
func Split(script string) []string {
	var (
		out     []string
		current strings.Builder
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" && hasExecutableContent(stmt) {
			out = append(out, stmt)
		}
	}

	i := 0
	for i < len(script) {
		c := script[i]

		// Line comment: copy through end of line.
		if c == '-' && i+1 < len(script) && script[i+1] == '-' {
			end := strings.IndexByte(script[i:], '\n')
			if end == -1 {
				current.WriteString(script[i:])
				i = len(script)
				continue
			}
			current.WriteString(script[i : i+end+1])
			i += end + 1
			continue
		}

		// Block comment: copy through closing */.
		if c == '/' && i+1 < len(script) && script[i+1] == '*' {
			end := strings.Index(script[i+2:], "*/")
			if end == -1 {
				current.WriteString(script[i:])
				i = len(script)
				continue
			}
			current.WriteString(script[i : i+2+end+2])
			i += 2 + end + 2
			continue
		}

		// Single-quoted string: '' escapes a quote.
		if c == '\'' {
			j := i + 1
			for j < len(script) {
				if script[j] == '\'' {
					if j+1 < len(script) && script[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			current.WriteString(script[i:j])
			i = j
			continue
		}

		// Dollar-quoted body: semicolons inside are ordinary content.
		if c == '$' {
			if tag, ok := dollarTag(script[i:]); ok {
				close := strings.Index(script[i+len(tag):], tag)
				if close == -1 {
					current.WriteString(script[i:])
					i = len(script)
					continue
				}
				end := i + len(tag) + close + len(tag)
				current.WriteString(script[i:end])
				i = end
				continue
			}
		}

		if c == ';' {
			current.WriteByte(';')
			flush()
			i++
			continue
		}

		current.WriteByte(c)
		i++
	}
	flush()

	return out
}

// dollarTag reports whether s starts with a dollar-quote opener ($$ or
// $tag$ where tag is alphanumeric/underscore) and returns the full tag.
func dollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for j := 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[:j+1], true
		}
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return "", false
		}
	}
	return "", false
}

// hasExecutableContent reports whether a fragment contains anything besides
// whitespace and comments.
func hasExecutableContent(stmt string) bool {
	i := 0
	for i < len(stmt) {
		c := stmt[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';':
			i++
		case c == '-' && i+1 < len(stmt) && stmt[i+1] == '-':
			end := strings.IndexByte(stmt[i:], '\n')
			if end == -1 {
				return false
			}
			i += end + 1
		case c == '/' && i+1 < len(stmt) && stmt[i+1] == '*':
			end := strings.Index(stmt[i+2:], "*/")
			if end == -1 {
				return false
			}
			i += 2 + end + 2
		default:
			return true
		}
	}
	return false
}

// Classify assigns a type by keyword, most specific test first: a statement
// containing both CREATE OR REPLACE FUNCTION and CREATE TABLE text (a
// function that creates tables) must classify as a function.
func Classify(stmt string) StatementType {
	upper := strings.ToUpper(stmt)
	switch {
	case strings.Contains(upper, "DROP FUNCTION"):
		return StatementDropFunction
	case strings.Contains(upper, "CREATE OR REPLACE FUNCTION"),
		strings.Contains(upper, "CREATE FUNCTION"):
		return StatementCreateFunction
	case strings.Contains(upper, "CREATE TABLE"):
		return StatementCreateTable
	case strings.Contains(upper, "CREATE INDEX"),
		strings.Contains(upper, "CREATE UNIQUE INDEX"):
		return StatementCreateIndex
	case strings.Contains(upper, "CREATE TRIGGER"),
		strings.Contains(upper, "CREATE OR REPLACE TRIGGER"):
		return StatementCreateTrigger
	case strings.HasPrefix(upper, "INSERT "),
		strings.HasPrefix(upper, "UPDATE "),
		strings.HasPrefix(upper, "DELETE "),
		strings.HasPrefix(upper, "SELECT "):
		return StatementDataCall
	case strings.HasPrefix(upper, "DO ") || strings.HasPrefix(upper, "DO$"):
		return StatementDoBlock
	default:
		return StatementOther
	}
}
