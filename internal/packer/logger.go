package packer

import (
	"fmt"
	"io"
)

// Logger is the explicit replacement for the reference implementation's
// process-wide verbose flag (spec §9): it is threaded through the planner
// instead of read from a global.
type Logger struct {
	w       io.Writer
	enabled bool
}

// NewLogger builds a Logger that writes to w only when enabled is true.
func NewLogger(w io.Writer, enabled bool) *Logger {
	return &Logger{w: w, enabled: enabled}
}

// Printf writes a trace line when the logger is enabled; it is always safe
// to call on a nil *Logger.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || !l.enabled || l.w == nil {
		return
	}
	fmt.Fprintf(l.w, format, args...)
}
