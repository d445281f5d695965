package main

import (
	"os"
	"strings"
)

// init runs before Bubble Tea acquires the terminal.
//
// Lipgloss/Termenv background detection can emit OSC/DSR control sequences
// to stdout. Those are harmless in a real terminal but corrupt --stats JSON
// and scripted --export runs, so non-interactive invocations set CI=1, which
// Termenv reads to skip TTY probing.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args[1:], os.Getenv("CASCADE_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envTest bool) bool {
	if envTest {
		return true
	}
	for _, arg := range args {
		switch arg {
		case "--version", "-version", "--help", "-help", "-h",
			"--stats", "-stats", "--export", "-export":
			return true
		}
		if strings.HasPrefix(arg, "--export=") || strings.HasPrefix(arg, "-export=") {
			return true
		}
	}
	return false
}
