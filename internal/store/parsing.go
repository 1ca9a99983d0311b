package store

import (
	"database/sql"
	"time"
)

// The ncruces/go-sqlite3 driver only auto-converts TEXT -> time.Time for
// columns declared as DATE/DATETIME/TIME/TIMESTAMP. This store's
// timestamp columns are plain TEXT (so the raw value is also readable by
// any other SQLite client), so reads and writes both go through these
// helpers rather than relying on driver-side conversion.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTimeString parses a required timestamp column. Returns the zero
// time if the value is unparseable, which should not happen for data
// written by this package.
func parseTimeString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseNullableTimeString parses a nullable timestamp column.
func parseNullableTimeString(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTimeString(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}
