package store

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// dsn builds a SQLite connection string with the pragmas the store
// depends on for correctness under concurrency.
//
// Includes busy_timeout (turns "database is locked" into a bounded wait
// instead of an immediate failure) and foreign_keys (required for cascade
// delete to work at all). Honors the
// TASKQ_LOCK_TIMEOUT env var for the busy timeout (default 30s). If path
// is already a file: URI, pragmas are appended only if absent, so callers
// may pass their own URI with extra query parameters.
func dsn(path string, readOnly bool) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	busy := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("TASKQ_LOCK_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			busy = d
		}
	}
	busyMs := int64(busy / time.Millisecond)

	if strings.HasPrefix(path, "file:") {
		conn := path
		sep := "?"
		if strings.Contains(conn, "?") {
			sep = "&"
		}
		if readOnly && !strings.Contains(conn, "mode=") {
			conn += sep + "mode=ro"
			sep = "&"
		}
		if !strings.Contains(conn, "_pragma=busy_timeout") {
			conn += fmt.Sprintf("%s_pragma=busy_timeout(%d)", sep, busyMs)
			sep = "&"
		}
		if !strings.Contains(conn, "_pragma=foreign_keys") {
			conn += sep + "_pragma=foreign_keys(ON)"
		}
		return conn
	}

	if readOnly {
		return fmt.Sprintf("file:%s?mode=ro&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", path, busyMs)
	}
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", path, busyMs)
}
