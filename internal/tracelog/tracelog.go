// Package tracelog is a minimal, env-gated trace logger for the store
// package. An embedded library should not impose a logging framework on
// its importers, so this writes to stderr only when TASKQ_DEBUG is set.
package tracelog

import (
	"fmt"
	"os"
)

var enabled = os.Getenv("TASKQ_DEBUG") != ""

// Enabled reports whether trace logging is currently on.
func Enabled() bool { return enabled }

// SetEnabled lets a façade force trace logging on (e.g. a --debug flag)
// without requiring the env var.
func SetEnabled(v bool) { enabled = v }

// Logf writes a trace line to stderr if tracing is enabled.
func Logf(format string, args ...interface{}) {
	if enabled {
		fmt.Fprintf(os.Stderr, "[taskq] "+format+"\n", args...)
	}
}
