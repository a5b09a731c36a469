package cli

import (
	"github.com/tempo-bot/tempomig/internal/cli/ui"
)

// Color helpers for tabular output. The color flag is decided once by the
// caller (usually ui.ColorEnabledFd on the destination fd); when true, the
// forced renderer guarantees ANSI output even under output redirection.

func bold(s string, color bool) string {
	if !color {
		return s
	}
	return ui.ForcedRenderer().NewStyle().Bold(true).Render(s)
}

func dim(s string, color bool) string {
	if !color {
		return s
	}
	return ui.ForcedRenderer().NewStyle().Faint(true).Render(s)
}

func green(s string, color bool) string {
	if !color {
		return s
	}
	return ui.ForcedRenderer().NewStyle().Foreground(ui.ColorGreen).Render(s)
}

func red(s string, color bool) string {
	if !color {
		return s
	}
	return ui.ForcedRenderer().NewStyle().Foreground(ui.ColorRed).Render(s)
}
