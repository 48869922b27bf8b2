// Package logging provides the small diagnostic-writer interface used
// across the server so library code never reaches for global log state.
package logging

import (
	"fmt"
	"io"
	"os"
)

// Logger is the diagnostic sink passed into components that need to report
// non-fatal conditions (skipped objects, rejected refs, slow operations)
// without owning where those messages go.
type Logger interface {
	// Printf writes a formatted informational message.
	Printf(format string, v ...interface{})

	// Warningf writes a formatted warning message.
	Warningf(format string, v ...interface{})
}

// StandardLogger writes to an io.Writer, defaulting to os.Stderr.
type StandardLogger struct {
	out io.Writer
}

// NewStandardLogger returns a Logger writing to os.Stderr.
func NewStandardLogger() *StandardLogger {
	return &StandardLogger{out: os.Stderr}
}

// NewLogger returns a Logger writing to the given stream.
func NewLogger(out io.Writer) *StandardLogger {
	return &StandardLogger{out: out}
}

func (l *StandardLogger) Printf(format string, v ...interface{}) {
	fmt.Fprintf(l.out, format+"\n", v...)
}

func (l *StandardLogger) Warningf(format string, v ...interface{}) {
	fmt.Fprintf(l.out, "warning: "+format+"\n", v...)
}

// NopLogger discards everything. Used by tests and by components that were
// not given a logger.
type NopLogger struct{}

func (NopLogger) Printf(format string, v ...interface{})   {}
func (NopLogger) Warningf(format string, v ...interface{}) {}
