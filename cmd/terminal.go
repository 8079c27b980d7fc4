package cmd

import "os"

// ensureColorTerm upgrades bare terminal types so the mood colours survive.
// Must run before the first lipgloss render.
func ensureColorTerm() {
	switch os.Getenv("TERM") {
	case "", "dumb", "linux", "vt100":
		os.Setenv("TERM", "xterm-256color")
	}
	if os.Getenv("COLORTERM") == "" {
		os.Setenv("COLORTERM", "truecolor")
	}
}
