package ui

import "strings"

// FormatError renders an error for the terminal: a bold red "Error:" line
// followed by an optional "Try:" block listing concrete next steps. The
// styles degrade to plain text when color is off, so the same output is safe
// on piped stderr.
func FormatError(msg string, suggestions ...string) string {
	lines := []string{StyleBoldRed.Render("Error:") + " " + msg}

	if len(suggestions) > 0 {
		lines = append(lines, "", StyleHint.Render("  Try:"))
		for _, s := range suggestions {
			lines = append(lines, "    "+StyleHint.Render(SymbolArrow)+" "+s)
		}
	}

	return strings.Join(lines, "\n") + "\n"
}
