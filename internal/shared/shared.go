// Package shared defines helpers used across the archiver: logging setup,
// run identifiers and the cross-cutting error taxonomy.
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a [log.Logger] writing to w with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// DiscardLogger returns a logger that drops everything. Used as the default
// when a component is constructed without one.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}

// SetDebug switches l to debug level when enabled.
func SetDebug(l *log.Logger, enabled bool) {
	if enabled {
		l.SetLevel(log.DebugLevel)
		return
	}
	l.SetLevel(log.InfoLevel)
}

// NewRunID generates a new v4 [uuid.UUID] identifying one sync run.
func NewRunID() uuid.UUID {
	return uuid.New()
}
