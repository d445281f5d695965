// Package debug provides conditional debug logging for cascadegrid.
//
// Debug logging is enabled by setting the CASCADE_DEBUG environment variable:
//
//	CASCADE_DEBUG=1 cascadegrid --rows 5000
//
// When enabled, debug messages are written to stderr with timestamps.
// When disabled (default), all debug functions are no-ops.
//
// The terminal UI owns stdout, so redirect stderr to a file when running
// interactively:
//
//	CASCADE_DEBUG=1 cascadegrid 2>debug.log
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

var (
	// enabled is true when CASCADE_DEBUG env var is set
	enabled bool
	// logger writes to stderr with [CASCADE_DEBUG] prefix
	logger *log.Logger
)

const prefix = "[CASCADE_DEBUG] "

func init() {
	if os.Getenv("CASCADE_DEBUG") != "" {
		enabled = true
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, log.Ltime|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	logger = log.New(w, prefix, 0)
}

// Log writes a debug message if debug logging is enabled.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Printf("%s took %v", name, d)
}

// LogEnterExit logs function entry and exit with timing.
//
//	func myFunc() {
//	    defer debug.LogEnterExit("myFunc")()
//	}
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Printf("-> %s", name)
	start := time.Now()
	return func() {
		logger.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// AssertNoError logs and panics if err is not nil.
// Only active when debug is enabled.
func AssertNoError(err error, context string) {
	if !enabled {
		return
	}
	if err != nil {
		logger.Printf("ASSERTION FAILED: %s: %v", context, err)
		panic(fmt.Sprintf("debug assertion failed: %s: %v", context, err))
	}
}
